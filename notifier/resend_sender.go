package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultResendBaseURL = "https://api.resend.com"
	DefaultMailFrom      = "onboarding@resend.dev"
)

// ResendSender sends email through the Resend HTTP API.
type ResendSender struct {
	apiKey     string
	from       string
	baseURL    string
	httpClient *http.Client
}

func NewResendSender(apiKey, from string) (*ResendSender, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("RESEND_API_KEY not set")
	}
	if from == "" {
		from = DefaultMailFrom
	}
	return &ResendSender{
		apiKey:     apiKey,
		from:       from,
		baseURL:    DefaultResendBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// WithBaseURL returns a copy of the sender aimed at another API root.
func (r *ResendSender) WithBaseURL(u string) *ResendSender {
	cp := *r
	cp.baseURL = strings.TrimSuffix(u, "/")
	return &cp
}

type resendEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (r *ResendSender) SendEmail(ctx context.Context, to, subject, body string) (SendResult, error) {
	payload, err := json.Marshal(resendEmail{From: r.from, To: []string{to}, Subject: subject, HTML: body})
	if err != nil {
		return SendResult{}, fmt.Errorf("failed to encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return SendResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("resend request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return SendResult{}, fmt.Errorf("email API failed: %d %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var out struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(respBody, &out)
	return SendResult{MessageID: out.ID, SentAt: time.Now()}, nil
}
