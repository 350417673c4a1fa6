package users

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/roastdirect/internal/domain"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the public account routes. wrap decorates each handler
// without authenticating it.
func (h *Handler) Register(mux *http.ServeMux, wrap func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("POST /api/auth/register", wrap(h.HandleRegister))
	mux.HandleFunc("POST /api/auth/login", wrap(h.HandleLogin))
}

type userView struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type sessionResponse struct {
	Message string   `json:"message"`
	Token   string   `json:"token"`
	User    userView `json:"user"`
}

func newSessionResponse(message string, s *Session) sessionResponse {
	return sessionResponse{
		Message: message,
		Token:   s.Token,
		User: userView{
			ID:        s.User.ID,
			Email:     s.User.Email,
			Role:      s.User.Role,
			FirstName: s.User.FirstName,
			LastName:  s.User.LastName,
		},
	}
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, err, "failed to register user")
		return
	}

	h.logger.Info("user registered", "user_id", session.User.ID, "role", session.User.Role)
	h.writeJSON(w, http.StatusCreated, newSessionResponse("User created successfully", session))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeDomainError(w, err, "failed to log in")
		return
	}

	h.logger.Info("user logged in", "user_id", session.User.ID)
	h.writeJSON(w, http.StatusOK, newSessionResponse("Login successful", session))
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error, logMsg string) {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		h.logger.Error(logMsg, "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	}
	h.writeError(w, status, derr.Message)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
