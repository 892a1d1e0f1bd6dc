package notification

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

// Mailer sends transactional email. Implementations must be safe for
// concurrent use; all sends are fire-and-forget from the caller's side.
type Mailer interface {
	Send(ctx context.Context, to, toName, subject, htmlBody, textBody string) error
}

type Config struct {
	APIURL    string
	APIToken  string
	FromEmail string
	FromName  string
}

// HTTPMailer delivers mail through an HTTP mail API (Mailtrap-style
// transactional endpoint).
type HTTPMailer struct {
	apiURL     string
	apiToken   string
	fromEmail  string
	fromName   string
	httpClient *http.Client
	logger     *slog.Logger
}

type person struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type mailPayload struct {
	From     person   `json:"from"`
	To       []person `json:"to"`
	Subject  string   `json:"subject"`
	Text     string   `json:"text,omitempty"`
	HTML     string   `json:"html,omitempty"`
	Category string   `json:"category,omitempty"`
}

func NewHTTPMailer(config Config, logger *slog.Logger) *HTTPMailer {
	return &HTTPMailer{
		apiURL:     config.APIURL,
		apiToken:   config.APIToken,
		fromEmail:  config.FromEmail,
		fromName:   config.FromName,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

func (m *HTTPMailer) Send(ctx context.Context, to, toName, subject, htmlBody, textBody string) error {
	if m.apiURL == "" || m.apiToken == "" {
		return fmt.Errorf("mail API credentials not configured")
	}

	payload := mailPayload{
		From:     person{Email: m.fromEmail, Name: m.fromName},
		To:       []person{{Email: to, Name: toName}},
		Subject:  subject,
		Text:     textBody,
		HTML:     htmlBody,
		Category: "clinic-booking",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal mail payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create mail request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+m.apiToken)

	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("mail request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("mail API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	m.logger.Info("email sent", "to", to, "subject", subject)

	return nil
}
