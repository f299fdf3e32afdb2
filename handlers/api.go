package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"sharecal/auth"
	"sharecal/i18n"
	"sharecal/models"
	"sharecal/store"
)

type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// RegisterAPIHandlers wires the JSON API onto mux. The API authenticates
// with X-API-Token headers and is mounted outside the CSRF wrap.
func RegisterAPIHandlers(mux *http.ServeMux, st *store.Store) {
	data = st

	mux.HandleFunc("/api/v1/login", APILoginHandler)
	mux.HandleFunc("/api/v1/signup", APISignupHandler)
	mux.HandleFunc("/api/v1/events", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			APIListEventsHandler(w, r)
		case http.MethodPost:
			APIAddEventHandler(w, r)
		case http.MethodPut:
			APIUpdateEventHandler(w, r)
		case http.MethodDelete:
			APIDeleteEventHandler(w, r)
		default:
			sendJSONResponse(w, http.StatusMethodNotAllowed, APIResponse{Status: "error", Message: "Method not allowed"})
		}
	})
	mux.HandleFunc("/api/v1/visibility", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			APIListVisibilityHandler(w, r)
		case http.MethodPost:
			APIAddVisibilityHandler(w, r)
		case http.MethodDelete:
			APIRemoveVisibilityHandler(w, r)
		default:
			sendJSONResponse(w, http.StatusMethodNotAllowed, APIResponse{Status: "error", Message: "Method not allowed"})
		}
	})
}

func sendJSONResponse(w http.ResponseWriter, status int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func getAPISession(r *http.Request) (store.APISession, bool) {
	token := r.Header.Get("X-API-Token")
	if token == "" {
		return store.APISession{}, false
	}
	return data.APISessionFor(token)
}

// statusForError maps the store taxonomy onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, store.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrNotEditable):
		return http.StatusForbidden
	case errors.Is(err, store.ErrUnknownEvent):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicateAccount), errors.Is(err, store.ErrAlreadyVisible):
		return http.StatusConflict
	case errors.Is(err, store.ErrValidation), errors.Is(err, store.ErrRemoveSelf):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func sendStoreError(w http.ResponseWriter, lang string, err error) {
	sendJSONResponse(w, statusForError(err), APIResponse{Status: "error", Message: i18n.T(lang, errorKey(err))})
}

type eventJSON struct {
	ID         string `json:"id"`
	Date       string `json:"date"`
	Start      string `json:"start_time"`
	End        string `json:"end_time"`
	Title      string `json:"title"`
	Memo       string `json:"memo"`
	Account    string `json:"account"`
	Attachment string `json:"attachment,omitempty"`
	Color      string `json:"color,omitempty"`
}

func toEventJSON(e models.Event, colors map[string]string) eventJSON {
	return eventJSON{
		ID:         e.ID,
		Date:       e.Date.Format(store.DateLayout),
		Start:      e.Start.Format(store.TimeLayout),
		End:        e.End.Format(store.TimeLayout),
		Title:      e.Title,
		Memo:       e.Memo,
		Account:    e.Account,
		Attachment: e.Attachment,
		Color:      store.ColorFor(colors, e.Account),
	}
}

func (in eventJSON) toModel() (models.Event, error) {
	date, err := time.Parse(store.DateLayout, in.Date)
	if err != nil {
		return models.Event{}, err
	}
	start, err := time.Parse(store.TimeLayout, in.Start)
	if err != nil {
		return models.Event{}, err
	}
	end, err := time.Parse(store.TimeLayout, in.End)
	if err != nil {
		return models.Event{}, err
	}
	return models.Event{
		ID:      in.ID,
		Date:    date,
		Start:   start,
		End:     end,
		Title:   in.Title,
		Memo:    in.Memo,
		Account: in.Account,
	}, nil
}

func APILoginHandler(w http.ResponseWriter, r *http.Request) {
	lang := i18n.DetectLanguage(r)
	if r.Method != http.MethodPost {
		sendJSONResponse(w, http.StatusMethodNotAllowed, APIResponse{Status: "error", Message: i18n.T(lang, "MethodNotAllowed")})
		return
	}

	ip := getClientIP(r)
	if !loginLimiter.Allow(ip) {
		sendJSONResponse(w, http.StatusTooManyRequests, APIResponse{Status: "error", Message: i18n.T(lang, "TooManyAttempts")})
		return
	}

	var input struct {
		LoginID  string `json:"login_id"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendJSONResponse(w, http.StatusBadRequest, APIResponse{Status: "error", Message: i18n.T(lang, "InvalidRequestBody")})
		return
	}

	account, err := data.Authenticate(input.LoginID, input.Password)
	if err != nil {
		loginLimiter.RecordFailure(ip)
		sendStoreError(w, lang, err)
		return
	}
	loginLimiter.Reset(ip)

	token, err := data.CreateAPIToken(account, input.LoginID)
	if err != nil {
		sendJSONResponse(w, http.StatusInternalServerError, APIResponse{Status: "error", Message: i18n.T(lang, "InternalError")})
		return
	}

	sendJSONResponse(w, http.StatusOK, APIResponse{
		Status: "success",
		Data: map[string]any{
			"token":    token,
			"account":  account,
			"login_id": input.LoginID,
		},
	})
}

func APISignupHandler(w http.ResponseWriter, r *http.Request) {
	lang := i18n.DetectLanguage(r)
	if r.Method != http.MethodPost {
		sendJSONResponse(w, http.StatusMethodNotAllowed, APIResponse{Status: "error", Message: i18n.T(lang, "MethodNotAllowed")})
		return
	}

	ip := getClientIP(r)
	if !signupLimiter.Allow(ip) {
		sendJSONResponse(w, http.StatusTooManyRequests, APIResponse{Status: "error", Message: i18n.T(lang, "TooManyAttempts")})
		return
	}

	var input struct {
		Account  string `json:"account"`
		LoginID  string `json:"login_id"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendJSONResponse(w, http.StatusBadRequest, APIResponse{Status: "error", Message: i18n.T(lang, "InvalidRequestBody")})
		return
	}
	if input.Account == "" || input.LoginID == "" {
		sendJSONResponse(w, http.StatusBadRequest, APIResponse{Status: "error", Message: i18n.T(lang, "MissingFields")})
		return
	}
	if err := auth.ValidatePassword(input.Password); err != nil {
		sendJSONResponse(w, http.StatusBadRequest, APIResponse{Status: "error", Message: i18n.T(lang, "PasswordTooShort")})
		return
	}

	if err := data.Register(input.Account, input.LoginID, input.Password); err != nil {
		sendStoreError(w, lang, err)
		return
	}

	// Record signup attempt to limit rate of creation per IP
	signupLimiter.RecordFailure(ip)

	token, err := data.CreateAPIToken(input.Account, input.LoginID)
	if err != nil {
		sendJSONResponse(w, http.StatusInternalServerError, APIResponse{Status: "error", Message: i18n.T(lang, "InternalError")})
		return
	}

	sendJSONResponse(w, http.StatusCreated, APIResponse{
		Status: "success",
		Data: map[string]any{
			"token":    token,
			"account":  input.Account,
			"login_id": input.LoginID,
		},
	})
}

func APIListEventsHandler(w http.ResponseWriter, r *http.Request) {
	lang := i18n.DetectLanguage(r)
	session, ok := getAPISession(r)
	if !ok {
		sendJSONResponse(w, http.StatusUnauthorized, APIResponse{Status: "error", Message: i18n.T(lang, "Unauthorized")})
		return
	}

	visible, err := data.Visibility(session.Account)
	if err != nil {
		sendStoreError(w, lang, err)
		return
	}
	events, err := data.Events(visible)
	if err != nil {
		sendStoreError(w, lang, err)
		return
	}
	colors, err := data.Colors()
	if err != nil {
		sendStoreError(w, lang, err)
		return
	}

	// Optional month filter, e.g. ?month=2024-06
	if month := r.URL.Query().Get("month"); month != "" {
		filtered := events[:0]
		for _, e := range events {
			if e.Date.Format("2006-01") == month {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	out := make([]eventJSON, 0, len(events))
	for _, e := range events {
		out = append(out, toEventJSON(e, colors))
	}
	sendJSONResponse(w, http.StatusOK, APIResponse{Status: "success", Data: out})
}

func APIAddEventHandler(w http.ResponseWriter, r *http.Request) {
	lang := i18n.DetectLanguage(r)
	session, ok := getAPISession(r)
	if !ok {
		sendJSONResponse(w, http.StatusUnauthorized, APIResponse{Status: "error", Message: i18n.T(lang, "Unauthorized")})
		return
	}

	var input eventJSON
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendJSONResponse(w, http.StatusBadRequest, APIResponse{Status: "error", Message: i18n.T(lang, "InvalidRequestBody")})
		return
	}
	if input.Account == "" {
		input.Account = session.Account
	}

	visible, err := data.Visibility(session.Account)
	if err != nil {
		sendStoreError(w, lang, err)
		return
	}
	if !containsName(visible, input.Account) {
		sendStoreError(w, lang, store.ErrNotEditable)
		return
	}

	event, err := input.toModel()
	if err != nil {
		sendJSONResponse(w, http.StatusBadRequest, APIResponse{Status: "error", Message: i18n.T(lang, "ValidationFailed")})
		return
	}
	created, err := data.CreateEvent(event)
	if err != nil {
		sendStoreError(w, lang, err)
		return
	}

	sendJSONResponse(w, http.StatusCreated, APIResponse{Status: "success", Data: map[string]string{"id": created.ID}})
}

func APIUpdateEventHandler(w http.ResponseWriter, r *http.Request) {
	lang := i18n.DetectLanguage(r)
	session, ok := getAPISession(r)
	if !ok {
		sendJSONResponse(w, http.StatusUnauthorized, APIResponse{Status: "error", Message: i18n.T(lang, "Unauthorized")})
		return
	}

	var input eventJSON
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendJSONResponse(w, http.StatusBadRequest, APIResponse{Status: "error", Message: i18n.T(lang, "InvalidRequestBody")})
		return
	}
	if input.Date == "" {
		// The date is fixed at creation and only used for parsing here
		input.Date = time.Now().Format(store.DateLayout)
	}
	fields, err := input.toModel()
	if err != nil {
		sendJSONResponse(w, http.StatusBadRequest, APIResponse{Status: "error", Message: i18n.T(lang, "ValidationFailed")})
		return
	}

	visible, err := data.Visibility(session.Account)
	if err != nil {
		sendStoreError(w, lang, err)
		return
	}
	if err := data.UpdateEvent(input.ID, visible, fields); err != nil {
		sendStoreError(w, lang, err)
		return
	}

	sendJSONResponse(w, http.StatusOK, APIResponse{Status: "success", Message: i18n.T(lang, "EventUpdated")})
}

func APIDeleteEventHandler(w http.ResponseWriter, r *http.Request) {
	lang := i18n.DetectLanguage(r)
	session, ok := getAPISession(r)
	if !ok {
		sendJSONResponse(w, http.StatusUnauthorized, APIResponse{Status: "error", Message: i18n.T(lang, "Unauthorized")})
		return
	}

	var input struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendJSONResponse(w, http.StatusBadRequest, APIResponse{Status: "error", Message: i18n.T(lang, "InvalidRequestBody")})
		return
	}

	visible, err := data.Visibility(session.Account)
	if err != nil {
		sendStoreError(w, lang, err)
		return
	}
	if err := data.DeleteEvent(input.ID, visible); err != nil {
		sendStoreError(w, lang, err)
		return
	}

	sendJSONResponse(w, http.StatusOK, APIResponse{Status: "success", Message: i18n.T(lang, "EventDeleted")})
}

func APIListVisibilityHandler(w http.ResponseWriter, r *http.Request) {
	lang := i18n.DetectLanguage(r)
	session, ok := getAPISession(r)
	if !ok {
		sendJSONResponse(w, http.StatusUnauthorized, APIResponse{Status: "error", Message: i18n.T(lang, "Unauthorized")})
		return
	}

	visible, err := data.Visibility(session.Account)
	if err != nil {
		sendStoreError(w, lang, err)
		return
	}
	sendJSONResponse(w, http.StatusOK, APIResponse{Status: "success", Data: visible})
}

func APIAddVisibilityHandler(w http.ResponseWriter, r *http.Request) {
	lang := i18n.DetectLanguage(r)
	session, ok := getAPISession(r)
	if !ok {
		sendJSONResponse(w, http.StatusUnauthorized, APIResponse{Status: "error", Message: i18n.T(lang, "Unauthorized")})
		return
	}

	var input struct {
		Account  string `json:"account"`
		LoginID  string `json:"login_id"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendJSONResponse(w, http.StatusBadRequest, APIResponse{Status: "error", Message: i18n.T(lang, "InvalidRequestBody")})
		return
	}

	if err := data.GrantVisibility(session.Account, input.Account, input.LoginID, input.Password); err != nil {
		sendStoreError(w, lang, err)
		return
	}
	sendJSONResponse(w, http.StatusOK, APIResponse{Status: "success", Message: i18n.T(lang, "VisibilityAdded")})
}

func APIRemoveVisibilityHandler(w http.ResponseWriter, r *http.Request) {
	lang := i18n.DetectLanguage(r)
	session, ok := getAPISession(r)
	if !ok {
		sendJSONResponse(w, http.StatusUnauthorized, APIResponse{Status: "error", Message: i18n.T(lang, "Unauthorized")})
		return
	}

	var input struct {
		Account string `json:"account"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendJSONResponse(w, http.StatusBadRequest, APIResponse{Status: "error", Message: i18n.T(lang, "InvalidRequestBody")})
		return
	}

	if err := data.RemoveVisible(session.Account, input.Account); err != nil {
		sendStoreError(w, lang, err)
		return
	}
	sendJSONResponse(w, http.StatusOK, APIResponse{Status: "success", Message: i18n.T(lang, "VisibilityRemoved")})
}
