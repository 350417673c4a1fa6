package users

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	NewHandler(newTestService(t), discardLogger()).Register(mux, func(h http.HandlerFunc) http.HandlerFunc { return h })
	return mux
}

func post(t *testing.T, mux *http.ServeMux, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return rec, decoded
}

const registerBody = `{"email":"grace@example.com","password":"cobol4ever","first_name":"Grace","last_name":"Hopper"}`

func TestHandler_RegisterAndLogin(t *testing.T) {
	mux := newTestMux(t)

	rec, body := post(t, mux, "/api/auth/register", registerBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "User created successfully", body["message"])
	assert.NotEmpty(t, body["token"])
	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "grace@example.com", user["email"])
	assert.Equal(t, "customer", user["role"])
	assert.Equal(t, "Grace", user["first_name"])
	assert.NotContains(t, user, "password_hash")

	rec, body = post(t, mux, "/api/auth/register", registerBody)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "User already exists with this email", body["error"])

	rec, body = post(t, mux, "/api/auth/login", `{"email":"grace@example.com","password":"cobol4ever"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Login successful", body["message"])
	assert.NotEmpty(t, body["token"])

	rec, body = post(t, mux, "/api/auth/login", `{"email":"grace@example.com","password":"fortran"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid email or password", body["error"])
}

func TestHandler_RegisterRejections(t *testing.T) {
	mux := newTestMux(t)

	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"malformed body", `{"email":`, http.StatusBadRequest, "invalid request body"},
		{"missing last name", `{"email":"a@b.co","password":"pw","first_name":"A"}`, http.StatusBadRequest, "last_name is required"},
		{"bad role", `{"email":"a@b.co","password":"pw","first_name":"A","last_name":"B","role":"owner"}`, http.StatusBadRequest, "Invalid role specified"},
		{"admin signup disabled", `{"email":"a@b.co","password":"pw","first_name":"A","last_name":"B","role":"admin"}`, http.StatusForbidden, "admin accounts cannot be self-registered"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := post(t, mux, "/api/auth/register", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, body["error"])
		})
	}
}
