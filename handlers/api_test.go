package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"sharecal/auth"
	"sharecal/config"
	"sharecal/i18n"
	"sharecal/store"
)

var testMux *http.ServeMux

func TestMain(m *testing.M) {
	// Setup
	config.AppConfig.SessionKey = "test-secret-key-for-api-handlers-test"
	config.AppConfig.AppName = "ShareCalTest"
	if err := i18n.LoadTranslations("../i18n"); err != nil {
		panic(err)
	}
	auth.InitStore()

	dir, err := os.MkdirTemp("", "sharecal-handlers-test")
	if err != nil {
		panic(err)
	}
	st, err := store.Open(filepath.Join(dir, "data"), filepath.Join(dir, "uploads"))
	if err != nil {
		panic(err)
	}

	testMux = http.NewServeMux()
	RegisterAPIHandlers(testMux, st)

	// Run tests
	code := m.Run()

	// Teardown
	os.RemoveAll(dir)

	os.Exit(code)
}

func apiRequest(t *testing.T, method, path, token, ip string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-API-Token", token)
	}
	req.RemoteAddr = ip + ":12345"
	w := httptest.NewRecorder()
	testMux.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func signup(t *testing.T, account, loginID, password, ip string) string {
	t.Helper()
	w := apiRequest(t, "POST", "/api/v1/signup", "", ip, map[string]string{
		"account":  account,
		"login_id": loginID,
		"password": password,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Signup for %s failed, expected 201, got %d. Body: %s", account, w.Code, w.Body.String())
	}
	resp := decodeResponse(t, w)
	token := resp.Data.(map[string]interface{})["token"].(string)
	if token == "" {
		t.Fatalf("Signup for %s did not return a token", account)
	}
	return token
}

func listTitles(t *testing.T, token, ip string) []string {
	t.Helper()
	w := apiRequest(t, "GET", "/api/v1/events", token, ip, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("List events failed, expected 200, got %d. Body: %s", w.Code, w.Body.String())
	}
	resp := decodeResponse(t, w)
	var titles []string
	if resp.Data == nil {
		return titles
	}
	for _, item := range resp.Data.([]interface{}) {
		titles = append(titles, item.(map[string]interface{})["title"].(string))
	}
	return titles
}

func TestAPISharedCalendarScenario(t *testing.T) {
	ip := "10.1.0.1"

	aliceToken := signup(t, "Alice", "alice", "password-p1", ip)
	bobToken := signup(t, "Bob", "bob", "password-p2", "10.1.0.2")

	// Alice creates an event
	w := apiRequest(t, "POST", "/api/v1/events", aliceToken, ip, map[string]string{
		"date":       "2024-06-01",
		"start_time": "09:00",
		"end_time":   "10:00",
		"title":      "Standup",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Create event failed, expected 201, got %d. Body: %s", w.Code, w.Body.String())
	}

	// Bob's default visibility is only himself, so the event is hidden
	for _, title := range listTitles(t, bobToken, ip) {
		if title == "Standup" {
			t.Fatal("Bob sees Alice's event without a visibility grant")
		}
	}

	// Granting visibility requires Alice's actual credentials
	w = apiRequest(t, "POST", "/api/v1/visibility", bobToken, ip, map[string]string{
		"account":  "Alice",
		"login_id": "alice",
		"password": "wrong-password",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for wrong grant credentials, got %d", w.Code)
	}

	w = apiRequest(t, "POST", "/api/v1/visibility", bobToken, ip, map[string]string{
		"account":  "Alice",
		"login_id": "alice",
		"password": "password-p1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Visibility grant failed, expected 200, got %d. Body: %s", w.Code, w.Body.String())
	}

	// Now Bob sees the shared event
	found := false
	for _, title := range listTitles(t, bobToken, ip) {
		if title == "Standup" {
			found = true
		}
	}
	if !found {
		t.Error("Bob does not see Alice's event after the visibility grant")
	}

	// Repeated grant is a conflict, not a change
	w = apiRequest(t, "POST", "/api/v1/visibility", bobToken, ip, map[string]string{
		"account":  "Alice",
		"login_id": "alice",
		"password": "password-p1",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for repeated grant, got %d", w.Code)
	}

	// Removing the grant hides the event again
	w = apiRequest(t, "DELETE", "/api/v1/visibility", bobToken, ip, map[string]string{"account": "Alice"})
	if w.Code != http.StatusOK {
		t.Fatalf("Visibility removal failed, got %d", w.Code)
	}
	for _, title := range listTitles(t, bobToken, ip) {
		if title == "Standup" {
			t.Error("Bob still sees Alice's event after removing the grant")
		}
	}

	// Removing yourself is rejected
	w = apiRequest(t, "DELETE", "/api/v1/visibility", bobToken, ip, map[string]string{"account": "Bob"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for self removal, got %d", w.Code)
	}
}

func TestAPIEventValidation(t *testing.T) {
	ip := "10.2.0.1"
	token := signup(t, "Carol", "carol", "password-p3", ip)

	w := apiRequest(t, "POST", "/api/v1/events", token, ip, map[string]string{
		"date":       "2024-06-01",
		"start_time": "09:00",
		"end_time":   "10:00",
		"title":      "",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty title, got %d", w.Code)
	}

	w = apiRequest(t, "POST", "/api/v1/events", token, ip, map[string]string{
		"date":       "2024-06-01",
		"start_time": "10:00",
		"end_time":   "09:00",
		"title":      "Backwards",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for start after end, got %d", w.Code)
	}

	w = apiRequest(t, "POST", "/api/v1/events", token, ip, map[string]string{
		"date":       "2024-06-01",
		"start_time": "09:00",
		"end_time":   "10:00",
		"title":      "Valid",
	})
	if w.Code != http.StatusCreated {
		t.Errorf("Expected 201 for valid event, got %d. Body: %s", w.Code, w.Body.String())
	}
}

func TestAPINotEditable(t *testing.T) {
	ip := "10.3.0.1"
	daveToken := signup(t, "Dave", "dave", "password-p4", ip)
	eveToken := signup(t, "Eve", "eve", "password-p5", "10.3.0.2")

	w := apiRequest(t, "POST", "/api/v1/events", daveToken, ip, map[string]string{
		"date":       "2024-07-01",
		"start_time": "09:00",
		"end_time":   "10:00",
		"title":      "Private",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Create event failed: %d", w.Code)
	}
	id := decodeResponse(t, w).Data.(map[string]interface{})["id"].(string)

	// Eve cannot update or delete Dave's event
	w = apiRequest(t, "PUT", "/api/v1/events", eveToken, ip, map[string]string{
		"id":         id,
		"start_time": "11:00",
		"end_time":   "12:00",
		"title":      "Hijacked",
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for update of invisible event, got %d", w.Code)
	}

	w = apiRequest(t, "DELETE", "/api/v1/events", eveToken, ip, map[string]string{"id": id})
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for delete of invisible event, got %d", w.Code)
	}

	// Dave's event is unchanged
	titles := listTitles(t, daveToken, ip)
	if len(titles) != 1 || titles[0] != "Private" {
		t.Errorf("Event store changed by rejected operations: %v", titles)
	}

	// Creating an event for a non-visible account is also rejected
	w = apiRequest(t, "POST", "/api/v1/events", eveToken, ip, map[string]string{
		"date":       "2024-07-01",
		"start_time": "09:00",
		"end_time":   "10:00",
		"title":      "Planted",
		"account":    "Dave",
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for create under foreign account, got %d", w.Code)
	}
}

func TestAPIDuplicateSignup(t *testing.T) {
	ip := "10.4.0.1"
	signup(t, "Frank", "frank", "password-p6", ip)

	w := apiRequest(t, "POST", "/api/v1/signup", "", "10.4.0.2", map[string]string{
		"account":  "Frank",
		"login_id": "frank2",
		"password": "password-p7",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate account name, got %d", w.Code)
	}

	w = apiRequest(t, "POST", "/api/v1/signup", "", "10.4.0.3", map[string]string{
		"account":  "Frank2",
		"login_id": "frank",
		"password": "password-p7",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate login id, got %d", w.Code)
	}
}

func TestAPIUnauthorized(t *testing.T) {
	w := apiRequest(t, "GET", "/api/v1/events", "", "10.5.0.1", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 Unauthorized, got %d", w.Code)
	}

	w = apiRequest(t, "GET", "/api/v1/events", "invalid-token", "10.5.0.1", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for invalid token, got %d", w.Code)
	}
}
