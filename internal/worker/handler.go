// Package worker turns order events into customer emails.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/roastdirect/internal/domain"
)

type NotificationHandler struct {
	emailServiceURL string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: emailServiceURL,
		httpClient:      client,
		logger:          logger,
	}
}

type email struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Handle sends one email per event. Undecodable or unknown events are logged and
// skipped; a mail failure is returned so the event is redelivered.
func (h *NotificationHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Error("skipping undecodable order event", "error", err)
		return nil
	}

	msg, ok := compose(event)
	if !ok {
		h.logger.Warn("skipping unknown order event", "type", event.Type, "order_id", event.OrderID)
		return nil
	}

	h.logger.Info("processing order event", "type", event.Type, "order_id", event.OrderID, "user_id", event.UserID)

	if err := h.sendEmail(ctx, msg); err != nil {
		h.logger.Error("failed to send notification", "error", err, "type", event.Type, "order_id", event.OrderID)
		return fmt.Errorf("send %s email: %w", event.Type, err)
	}

	h.logger.Info("notification sent", "type", event.Type, "order_id", event.OrderID)
	return nil
}

func recipient(event domain.OrderEvent) string {
	if event.CustomerEmail != "" {
		return event.CustomerEmail
	}
	return event.UserID + "@example.com"
}

func compose(event domain.OrderEvent) (email, bool) {
	var subject, body string
	switch event.Type {
	case domain.OrderEventPlaced:
		subject = "Order Confirmation: " + event.OrderNumber
		body = fmt.Sprintf("Thanks for your order %s. %d item(s), total $%s. We'll let you know when it ships.",
			event.OrderNumber, len(event.Items), event.FinalTotal.StringFixed(2))
	case domain.OrderEventCanceled:
		subject = "Order Canceled: " + event.OrderNumber
		body = fmt.Sprintf("Your order %s has been canceled. You will be refunded $%s.",
			event.OrderNumber, event.FinalTotal.StringFixed(2))
	case domain.OrderEventDelivered:
		subject = "Order Delivered: " + event.OrderNumber
		body = fmt.Sprintf("Your order %s has been delivered. Enjoy your coffee!", event.OrderNumber)
	default:
		return email{}, false
	}
	return email{To: recipient(event), Subject: subject, Body: body}, true
}

func (h *NotificationHandler) sendEmail(ctx context.Context, msg email) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
