package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/wandernook/wandernook/internal/pkg/metrics"
)

const defaultResendBaseURL = "https://api.resend.com"

// ResendProvider sends mail through the Resend HTTP API.
type ResendProvider struct {
	APIKey  string
	BaseURL string

	HTTPClient *http.Client
}

func (p *ResendProvider) Name() string { return "resend" }

type resendAttachment struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"`
	ContentType string `json:"content_type,omitempty"`
}

type resendRequest struct {
	From        string             `json:"from"`
	To          []string           `json:"to"`
	Subject     string             `json:"subject"`
	HTML        string             `json:"html"`
	Text        string             `json:"text,omitempty"`
	Attachments []resendAttachment `json:"attachments,omitempty"`
}

type resendResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Name    string `json:"name"`
}

func (p *ResendProvider) send(ctx context.Context, from string, m Message) (Result, error) {
	payload := resendRequest{
		From:    from,
		To:      []string{m.To},
		Subject: m.Subject,
		HTML:    m.HTML,
		Text:    m.Text,
	}
	for _, a := range m.Attachments {
		payload.Attachments = append(payload.Attachments, resendAttachment{
			Filename:    a.Filename,
			Content:     base64.StdEncoding.EncodeToString(a.Content),
			ContentType: a.ContentType,
		})
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Result{}, err
	}

	base := strings.TrimRight(p.BaseURL, "/")
	if base == "" {
		base = defaultResendBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/emails", bytes.NewReader(raw))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	req.Header.Set("Content-Type", "application/json")

	client := p.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	defer metrics.ObserveUpstream("resend", time.Now())
	resp, err := client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var out resendResponse
	_ = json.Unmarshal(body, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := out.Message
		if msg == "" {
			msg = out.Name
		}
		if msg == "" {
			msg = fmt.Sprintf("Failed to send email (HTTP %d)", resp.StatusCode)
		}
		log.Errorf("[Mailer] Resend send to %s failed: status=%d body=%s", m.To, resp.StatusCode, string(body))
		return Result{}, errors.New(msg)
	}

	log.Infof("[Mailer] Email sent to %s via resend (%s)", m.To, out.ID)
	return Result{Sent: true, ProviderID: out.ID}, nil
}

func parseAddress(v string) (string, error) {
	a, err := mail.ParseAddress(v)
	if err != nil {
		return "", err
	}
	return a.Address, nil
}
