package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Zachkp/portfolio/internal/contact"
)

// DefaultEmailJSEndpoint is the hosted send endpoint.
const DefaultEmailJSEndpoint = "https://api.emailjs.com/api/v1.0/email/send"

// StatusError is a non-2xx answer from an HTTP relay.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("relay: unexpected status %d", e.Code)
	}
	return fmt.Sprintf("relay: unexpected status %d: %s", e.Code, e.Body)
}

// EmailJSOptions configures an EmailJS relay.
type EmailJSOptions struct {
	Endpoint    string
	ServiceID   string
	TemplateID  string
	PublicKey   string
	AccessToken string // private key, optional
	HTTPClient  *http.Client
}

// EmailJS sends payloads as template parameters to the EmailJS API.
type EmailJS struct {
	opts   EmailJSOptions
	client *http.Client
}

// NewEmailJS returns an EmailJS relay. Missing endpoint and client fall
// back to DefaultEmailJSEndpoint and a client with DefaultClientTimeout.
func NewEmailJS(opts EmailJSOptions) *EmailJS {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEmailJSEndpoint
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultClientTimeout}
	}
	return &EmailJS{opts: opts, client: client}
}

type emailJSRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams map[string]string `json:"template_params"`
}

// Send posts one payload. Any non-2xx status is a *StatusError.
func (e *EmailJS) Send(ctx context.Context, p contact.Payload) error {
	body, err := json.Marshal(emailJSRequest{
		ServiceID:      e.opts.ServiceID,
		TemplateID:     e.opts.TemplateID,
		UserID:         e.opts.PublicKey,
		AccessToken:    e.opts.AccessToken,
		TemplateParams: p.Params(),
	})
	if err != nil {
		return fmt.Errorf("relay: encode emailjs request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("relay: build emailjs request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("relay: emailjs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
