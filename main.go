package main

import (
	"fmt"
	"log"
	"net/http"

	"sharecal/auth"
	"sharecal/config"
	"sharecal/handlers"
	"sharecal/i18n"
	"sharecal/store"

	"github.com/dchest/captcha"
	"github.com/gorilla/csrf"
)

func main() {
	if err := config.LoadConfig("config.json"); err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	if err := i18n.LoadTranslations("i18n"); err != nil {
		log.Fatalf("Error loading translations: %v", err)
	}

	auth.InitStore()

	st, err := store.Open(config.AppConfig.DataDir, config.AppConfig.UploadDir)
	if err != nil {
		log.Fatalf("Error opening data store: %v", err)
	}

	// Web pages, CSRF-protected
	webMux := http.NewServeMux()
	webMux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))
	webMux.Handle("/uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(config.AppConfig.UploadDir))))
	webMux.Handle("/captcha/", captcha.Server(captcha.StdWidth, captcha.StdHeight))
	handlers.RegisterHandlers(webMux, st)

	// JSON API, token-authenticated, outside the CSRF wrap
	apiMux := http.NewServeMux()
	handlers.RegisterAPIHandlers(apiMux, st)

	// CSRF Protection
	// We need a 32-byte key. Using session key for now, assuming it's suitable.
	// In production, this should be a separate key.
	csrfMiddleware := csrf.Protect(
		[]byte(config.AppConfig.SessionKey),
		csrf.Secure(false), // Set to true in production with HTTPS
		csrf.Path("/"),
	)

	root := http.NewServeMux()
	root.Handle("/api/", apiMux)
	root.Handle("/", csrfMiddleware(webMux))

	addr := fmt.Sprintf("%s:%d", config.AppConfig.ListenIP, config.AppConfig.ListenPort)
	log.Printf("Server starting on %s (%s)", addr, config.AppConfig.AppName)

	wrapped := handlers.SecurityHeadersMiddleware(handlers.CORSMiddleware(root))
	if err := http.ListenAndServe(addr, wrapped); err != nil {
		log.Fatal(err)
	}
}
