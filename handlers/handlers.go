package handlers

import (
	"errors"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"time"

	"sharecal/auth"
	"sharecal/config"
	"sharecal/i18n"
	"sharecal/models"
	"sharecal/store"

	"github.com/dchest/captcha"
	"github.com/gorilla/csrf"
)

var data *store.Store

// RegisterHandlers wires the HTML pages onto mux. The store is kept as a
// package variable, mirroring how the session store is shared.
func RegisterHandlers(mux *http.ServeMux, st *store.Store) {
	data = st

	mux.HandleFunc("/", IndexHandler)
	mux.HandleFunc("/login", LoginHandler)
	mux.HandleFunc("/signup", SignupHandler)
	mux.HandleFunc("/logout", LogoutHandler)
	mux.HandleFunc("/calendar", CalendarHandler)
	mux.HandleFunc("/calendar.ics", CalendarICSHandler)
	mux.HandleFunc("/events", EventListHandler)
	mux.HandleFunc("/events/add", AddEventHandler)
	mux.HandleFunc("/events/update", UpdateEventHandler)
	mux.HandleFunc("/events/delete", DeleteEventHandler)
	mux.HandleFunc("/visibility/add", AddVisibilityHandler)
	mux.HandleFunc("/visibility/remove", RemoveVisibilityHandler)
}

func IndexHandler(w http.ResponseWriter, r *http.Request) {
	if auth.SessionAccount(r) != "" {
		http.Redirect(w, r, "/calendar", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func LoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		ip := getClientIP(r)
		if !loginLimiter.Allow(ip) {
			renderTemplate(w, r, "login.html", map[string]any{"Error": "TooManyAttempts"})
			return
		}

		loginID := r.FormValue("login_id")
		password := r.FormValue("password")

		account, err := data.Authenticate(loginID, password)
		if err != nil {
			loginLimiter.RecordFailure(ip)
			renderTemplate(w, r, "login.html", map[string]any{"Error": errorKey(err)})
			return
		}
		loginLimiter.Reset(ip)

		auth.SetSession(w, r, account, loginID)
		http.Redirect(w, r, "/calendar", http.StatusSeeOther)
		return
	}
	renderTemplate(w, r, "login.html", map[string]any{"Info": r.URL.Query().Get("info")})
}

func SignupHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		ip := getClientIP(r)
		if !signupLimiter.Allow(ip) {
			renderSignup(w, r, "TooManyAttempts")
			return
		}

		if !captcha.VerifyString(r.FormValue("captcha_id"), r.FormValue("captcha_solution")) {
			renderSignup(w, r, "CaptchaFailed")
			return
		}

		account := r.FormValue("account")
		loginID := r.FormValue("login_id")
		password := r.FormValue("password")
		if account == "" || loginID == "" || password == "" {
			renderSignup(w, r, "MissingFields")
			return
		}
		if err := auth.ValidatePassword(password); err != nil {
			renderSignup(w, r, "PasswordTooShort")
			return
		}

		if err := data.Register(account, loginID, password); err != nil {
			renderSignup(w, r, errorKey(err))
			return
		}

		// Limit the rate of account creation per IP
		signupLimiter.RecordFailure(ip)

		http.Redirect(w, r, "/login?info=Registered", http.StatusSeeOther)
		return
	}
	renderSignup(w, r, "")
}

func renderSignup(w http.ResponseWriter, r *http.Request, errKey string) {
	renderTemplate(w, r, "signup.html", map[string]any{
		"Error":     errKey,
		"CaptchaID": captcha.New(),
	})
}

func LogoutHandler(w http.ResponseWriter, r *http.Request) {
	auth.ClearSession(w, r)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

type legendEntry struct {
	Account string
	Color   string
}

func CalendarHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := requireSession(w, r)
	if !ok {
		return
	}

	month := time.Now()
	if m := r.URL.Query().Get("month"); m != "" {
		parsed, err := time.Parse("2006-01", m)
		if err == nil {
			month = parsed
		}
	}

	visible, events, colors, errKey := visibleEvents(account)
	grid := buildMonth(month.Year(), month.Month(), events)

	renderTemplate(w, r, "calendar.html", map[string]any{
		"Account":    account,
		"Grid":       grid,
		"MonthLabel": month.Format("2006-01"),
		"PrevMonth":  month.AddDate(0, -1, 0).Format("2006-01"),
		"NextMonth":  month.AddDate(0, 1, 0).Format("2006-01"),
		"Legend":     legend(visible, colors),
		"Visible":    visible,
		"FormDate":   r.URL.Query().Get("date"),
		"Removable":  removable(account, visible),
		"Error":      firstKey(errKey, r.URL.Query().Get("error")),
		"Info":       r.URL.Query().Get("info"),
	})
}

func EventListHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := requireSession(w, r)
	if !ok {
		return
	}

	visible, events, colors, errKey := visibleEvents(account)

	renderTemplate(w, r, "events.html", map[string]any{
		"Account": account,
		"Events":  events,
		"Colors":  colors,
		"Legend":  legend(visible, colors),
		"Error":   firstKey(errKey, r.URL.Query().Get("error")),
		"Info":    r.URL.Query().Get("info"),
	})
}

func AddEventHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := requirePost(w, r)
	if !ok {
		return
	}

	visible, err := data.Visibility(account)
	if err != nil {
		redirectError(w, r, "/calendar", err)
		return
	}

	owner := r.FormValue("account")
	if !containsName(visible, owner) {
		redirectError(w, r, "/calendar", store.ErrNotEditable)
		return
	}

	date, err := time.Parse(store.DateLayout, r.FormValue("date"))
	if err != nil {
		redirectError(w, r, "/calendar", store.ErrValidation)
		return
	}
	start, end, err := parseTimes(r)
	if err != nil {
		redirectError(w, r, "/calendar", store.ErrValidation)
		return
	}

	attachment, err := saveUpload(r)
	if err != nil {
		log.Printf("Error saving attachment: %v", err)
		redirectError(w, r, "/calendar", err)
		return
	}

	event := models.Event{
		Date:       date,
		Start:      start,
		End:        end,
		Title:      r.FormValue("title"),
		Memo:       r.FormValue("memo"),
		Account:    owner,
		Attachment: attachment,
	}
	if _, err := data.CreateEvent(event); err != nil {
		redirectError(w, r, "/calendar?month="+date.Format("2006-01"), err)
		return
	}

	http.Redirect(w, r, "/calendar?month="+date.Format("2006-01"), http.StatusSeeOther)
}

func UpdateEventHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := requirePost(w, r)
	if !ok {
		return
	}

	visible, err := data.Visibility(account)
	if err != nil {
		redirectError(w, r, "/events", err)
		return
	}

	start, end, err := parseTimes(r)
	if err != nil {
		redirectError(w, r, "/events", store.ErrValidation)
		return
	}

	attachment, err := saveUpload(r)
	if err != nil {
		log.Printf("Error saving attachment: %v", err)
		redirectError(w, r, "/events", err)
		return
	}

	fields := models.Event{
		Title:      r.FormValue("title"),
		Memo:       r.FormValue("memo"),
		Start:      start,
		End:        end,
		Attachment: attachment,
	}
	if err := data.UpdateEvent(r.FormValue("id"), visible, fields); err != nil {
		redirectError(w, r, "/events", err)
		return
	}

	http.Redirect(w, r, "/events?info=Updated", http.StatusSeeOther)
}

func DeleteEventHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := requirePost(w, r)
	if !ok {
		return
	}

	visible, err := data.Visibility(account)
	if err != nil {
		redirectError(w, r, "/events", err)
		return
	}

	if err := data.DeleteEvent(r.FormValue("id"), visible); err != nil {
		redirectError(w, r, "/events", err)
		return
	}

	http.Redirect(w, r, "/events?info=Deleted", http.StatusSeeOther)
}

func AddVisibilityHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := requirePost(w, r)
	if !ok {
		return
	}

	target := r.FormValue("account")
	loginID := r.FormValue("login_id")
	password := r.FormValue("password")

	if err := data.GrantVisibility(account, target, loginID, password); err != nil {
		redirectError(w, r, "/calendar", err)
		return
	}

	http.Redirect(w, r, "/calendar?info=VisibilityAdded", http.StatusSeeOther)
}

func RemoveVisibilityHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := requirePost(w, r)
	if !ok {
		return
	}

	if err := data.RemoveVisible(account, r.FormValue("account")); err != nil {
		redirectError(w, r, "/calendar", err)
		return
	}

	http.Redirect(w, r, "/calendar?info=VisibilityRemoved", http.StatusSeeOther)
}

// --- helpers ---

func requireSession(w http.ResponseWriter, r *http.Request) (string, bool) {
	account := auth.SessionAccount(r)
	if account == "" {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return "", false
	}
	return account, true
}

func requirePost(w http.ResponseWriter, r *http.Request) (string, bool) {
	account := auth.SessionAccount(r)
	if account == "" || r.Method != http.MethodPost {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return "", false
	}
	return account, true
}

// visibleEvents loads the session's visibility set, its events and the
// color legend in one go. A store failure is reported as an error key
// for the page banner; the page still renders with what is available.
func visibleEvents(account string) ([]string, []models.Event, map[string]string, string) {
	visible, err := data.Visibility(account)
	if err != nil {
		log.Printf("Error loading visibility for %q: %v", account, err)
		return []string{account}, nil, nil, errorKey(err)
	}
	events, err := data.Events(visible)
	if err != nil {
		log.Printf("Error loading events for %q: %v", account, err)
		return visible, nil, nil, errorKey(err)
	}
	colors, err := data.Colors()
	if err != nil {
		log.Printf("Error loading colors: %v", err)
		return visible, events, nil, errorKey(err)
	}
	return visible, events, colors, ""
}

func legend(visible []string, colors map[string]string) []legendEntry {
	entries := make([]legendEntry, 0, len(visible))
	for _, name := range visible {
		entries = append(entries, legendEntry{Account: name, Color: store.ColorFor(colors, name)})
	}
	return entries
}

func removable(account string, visible []string) []string {
	var names []string
	for _, name := range visible {
		if name != account {
			names = append(names, name)
		}
	}
	return names
}

func parseTimes(r *http.Request) (time.Time, time.Time, error) {
	start, err := time.Parse(store.TimeLayout, r.FormValue("start_time"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := time.Parse(store.TimeLayout, r.FormValue("end_time"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// saveUpload stores the optional attachment field and returns its
// relative path, or "" when no file was sent.
func saveUpload(r *http.Request) (string, error) {
	file, header, err := r.FormFile("attachment")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		// Non-multipart form posts have no attachment field
		return "", nil
	}
	defer file.Close()
	return data.SaveAttachment(header.Filename, file)
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// errorKey maps a store error to its translation catalog key.
func errorKey(err error) string {
	switch {
	case errors.Is(err, store.ErrDuplicateAccount):
		return "DuplicateAccount"
	case errors.Is(err, store.ErrInvalidCredentials):
		return "InvalidCredentials"
	case errors.Is(err, store.ErrUnknownEvent):
		return "UnknownEvent"
	case errors.Is(err, store.ErrNotEditable):
		return "NotEditable"
	case errors.Is(err, store.ErrValidation):
		return "ValidationFailed"
	case errors.Is(err, store.ErrAlreadyVisible):
		return "AlreadyVisible"
	case errors.Is(err, store.ErrRemoveSelf):
		return "RemoveSelf"
	case errors.Is(err, store.ErrCorruptState):
		return "CorruptState"
	default:
		return "InternalError"
	}
}

func firstKey(keys ...string) string {
	for _, k := range keys {
		if k != "" {
			return k
		}
	}
	return ""
}

func redirectError(w http.ResponseWriter, r *http.Request, target string, err error) {
	sep := "?"
	if u, parseErr := url.Parse(target); parseErr == nil && u.RawQuery != "" {
		sep = "&"
	}
	http.Redirect(w, r, target+sep+"error="+errorKey(err), http.StatusSeeOther)
}

func renderTemplate(w http.ResponseWriter, r *http.Request, name string, data any) {
	lang := i18n.DetectLanguage(r)

	funcMap := template.FuncMap{
		"T": func(key string) string {
			return i18n.T(lang, key)
		},
		"timefmt": func(t time.Time) string {
			return t.Format(store.TimeLayout)
		},
		"datefmt": func(t time.Time) string {
			return t.Format(store.DateLayout)
		},
		"colorFor": store.ColorFor,
	}

	tmpl, err := template.New(name).Funcs(funcMap).ParseFiles("templates/layout.html", "templates/"+name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Prepare CSRF field
	csrfField := csrf.TemplateField(r)

	// If data is a map, ensure AppName and Lang are there
	if m, ok := data.(map[string]any); ok {
		if _, exists := m["AppName"]; !exists {
			m["AppName"] = config.AppConfig.AppName
		}
		m["Lang"] = lang
		m["csrfField"] = csrfField
	} else if data == nil {
		data = map[string]any{
			"AppName":   config.AppConfig.AppName,
			"Lang":      lang,
			"csrfField": csrfField,
		}
	}

	tmpl.ExecuteTemplate(w, "layout", data)
}
