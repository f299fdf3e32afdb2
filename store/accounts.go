package store

import (
	"sharecal/models"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when the login id is unknown so that a
// failed lookup costs a full bcrypt compare (timing attack mitigation).
var dummyHash = func() string {
	h, _ := bcrypt.GenerateFromPassword([]byte("sharecal-dummy-password"), bcryptCost)
	return string(h)
}()

const bcryptCost = 14

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func (s *Store) loadAccounts() ([]models.Account, error) {
	var accounts []models.Account
	if _, err := s.readJSON(accountsFile, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// Accounts returns all credential records in registration order. The
// order is load-bearing: the color legend hangs off it.
func (s *Store) Accounts() ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadAccounts()
}

// Register stores a new credential record. Both the display name and the
// login id must be unused; the password is stored as a bcrypt digest,
// never in plaintext.
func (s *Store) Register(account, loginID, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.loadAccounts()
	if err != nil {
		return err
	}
	for _, a := range accounts {
		if a.Name == account || a.LoginID == loginID {
			return ErrDuplicateAccount
		}
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	accounts = append(accounts, models.Account{Name: account, LoginID: loginID, PasswordHash: hash})
	return s.writeJSON(accountsFile, accounts)
}

// Authenticate returns the account name owning the login id on an exact
// credential match. An unknown login id is indistinguishable from a
// wrong password to avoid user enumeration.
func (s *Store) Authenticate(loginID, password string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.loadAccounts()
	if err != nil {
		return "", err
	}

	account := ""
	target := dummyHash
	for _, a := range accounts {
		if a.LoginID == loginID {
			account = a.Name
			target = a.PasswordHash
			break
		}
	}

	if !CheckPasswordHash(password, target) || account == "" {
		return "", ErrInvalidCredentials
	}
	return account, nil
}

// Verify reports whether the credentials are valid AND belong to the
// claimed account name. This is the capability check gating visibility
// grants: prove you know the account's credentials.
func (s *Store) Verify(account, loginID, password string) bool {
	got, err := s.Authenticate(loginID, password)
	return err == nil && got == account
}
