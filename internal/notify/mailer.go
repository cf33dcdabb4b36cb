package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const sendgridAPI = "https://api.sendgrid.com/v3/mail/send"

type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer is the notification sink. Delivery is best-effort and always happens
// outside the booking transaction.
type Mailer interface {
	Send(ctx context.Context, msg Email) error
}

// SendGridMailer posts messages to the SendGrid v3 API. With an empty API key
// it degrades to logging the message, which keeps local development working
// without credentials.
type SendGridMailer struct {
	apiKey string
	from   string
	client *http.Client
	logger *slog.Logger
	url    string
}

func NewSendGridMailer(apiKey, from string, logger *slog.Logger) *SendGridMailer {
	return &SendGridMailer{
		apiKey: apiKey,
		from:   from,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
		url:    sendgridAPI,
	}
}

type sgAddress struct {
	Email string `json:"email"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgPersonalization struct {
	To []sgAddress `json:"to"`
}

type sgPayload struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
}

func (m *SendGridMailer) Send(ctx context.Context, msg Email) error {
	const op = "notify.SendGridMailer.Send"

	if m.apiKey == "" {
		m.logger.Warn("no mail API key configured, logging message instead",
			"to", msg.To, "subject", msg.Subject)
		return nil
	}

	payload := sgPayload{
		Personalizations: []sgPersonalization{{To: []sgAddress{{Email: msg.To}}}},
		From:             sgAddress{Email: m.from},
		Subject:          msg.Subject,
		Content: []sgContent{
			{Type: "text/plain", Value: msg.Text},
			{Type: "text/html", Value: msg.HTML},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%s: sendgrid status %d: %s", op, resp.StatusCode, string(b))
	}

	return nil
}
