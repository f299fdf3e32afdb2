package auth

import (
	"crypto/sha256"
	"errors"
	"net/http"
	"sharecal/config"

	"github.com/gorilla/sessions"
)

var Store *sessions.CookieStore

func InitStore() {
	// Derive two 32-byte keys from the session key to ensure secure encryption
	// Auth key for signing (HMAC)
	authKey := sha256.Sum256([]byte(config.AppConfig.SessionKey + "auth"))
	// Encryption key for content encryption (AES)
	encKey := sha256.Sum256([]byte(config.AppConfig.SessionKey + "encryption"))

	Store = sessions.NewCookieStore(authKey[:], encKey[:])

	// Ensure cookie security settings
	Store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   config.AppConfig.ListenPort != 8080, // Default to true unless dev port
		SameSite: http.SameSiteLaxMode,
	}
}

const SessionName = "sharecal-session"

// SessionAccount returns the logged-in account name, or "" when the
// request carries no valid session.
func SessionAccount(r *http.Request) string {
	session, _ := Store.Get(r, SessionName)
	if account, ok := session.Values["account"].(string); ok {
		return account
	}
	return ""
}

// SessionLoginID returns the login id the session authenticated with.
func SessionLoginID(r *http.Request) string {
	session, _ := Store.Get(r, SessionName)
	if loginID, ok := session.Values["login"].(string); ok {
		return loginID
	}
	return ""
}

func SetSession(w http.ResponseWriter, r *http.Request, account, loginID string) {
	session, _ := Store.Get(r, SessionName)
	session.Values["account"] = account
	session.Values["login"] = loginID
	session.Save(r, w)
}

func ClearSession(w http.ResponseWriter, r *http.Request) {
	session, _ := Store.Get(r, SessionName)
	session.Options.MaxAge = -1
	session.Save(r, w)
}

// ValidatePassword enforces the minimum password policy at signup.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}
