// Package email is a stand-in mail service: it validates, simulates delivery
// latency and keeps the most recent messages in memory.
package email

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Message struct {
	ID      string    `json:"id"`
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sent_at"`
}

// Outbox keeps the last size messages, oldest dropped first.
type Outbox struct {
	mu       sync.Mutex
	size     int
	messages []Message
}

func NewOutbox(size int) *Outbox {
	return &Outbox{size: size}
}

func (o *Outbox) Add(m Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, m)
	if over := len(o.messages) - o.size; over > 0 {
		o.messages = append([]Message(nil), o.messages[over:]...)
	}
}

// Recent returns messages newest first.
func (o *Outbox) Recent() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Message, len(o.messages))
	for i, m := range o.messages {
		out[len(out)-1-i] = m
	}
	return out
}

type Handler struct {
	outbox *Outbox
	delay  func() time.Duration
	logger *slog.Logger
}

type Option func(*Handler)

// WithDelay replaces the simulated delivery latency.
func WithDelay(delay func() time.Duration) Option {
	return func(h *Handler) {
		h.delay = delay
	}
}

func NewHandler(outbox *Outbox, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		outbox: outbox,
		delay: func() time.Duration {
			return time.Duration(50+rand.Intn(151)) * time.Millisecond
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /send", h.HandleSend)
	mux.HandleFunc("GET /outbox", h.HandleOutbox)
}

type sendRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type sendResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var missing []string
	if !strings.Contains(req.To, "@") {
		missing = append(missing, "to")
	}
	if strings.TrimSpace(req.Subject) == "" {
		missing = append(missing, "subject")
	}
	if strings.TrimSpace(req.Body) == "" {
		missing = append(missing, "body")
	}
	if len(missing) > 0 {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid email", "details": missing})
		return
	}

	select {
	case <-time.After(h.delay()):
	case <-r.Context().Done():
		return
	}

	msg := Message{
		ID:      uuid.NewString(),
		To:      req.To,
		Subject: req.Subject,
		Body:    req.Body,
		SentAt:  time.Now().UTC(),
	}
	h.outbox.Add(msg)

	h.logger.Info("email sent", "id", msg.ID, "to", req.To, "subject", req.Subject)

	h.writeJSON(w, http.StatusOK, sendResponse{Status: "sent", ID: msg.ID})
}

func (h *Handler) HandleOutbox(w http.ResponseWriter, _ *http.Request) {
	messages := h.outbox.Recent()
	h.writeJSON(w, http.StatusOK, map[string]any{"count": len(messages), "messages": messages})
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
