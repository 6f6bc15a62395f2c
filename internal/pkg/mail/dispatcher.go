package mail

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/wandernook/wandernook/internal/pkg/config"
)

// SkippedMissingProvider is reported when no email provider is configured.
const SkippedMissingProvider = "missing_email_provider_config"

type Attachment struct {
	Filename    string
	Content     []byte
	ContentType string
}

type Message struct {
	To          string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

// Result describes a delivery attempt. Sent is false with a SkippedReason
// when nothing was attempted.
type Result struct {
	Sent          bool
	ProviderID    string
	SkippedReason string
}

// Sender is implemented by Dispatcher and by test doubles.
type Sender interface {
	Send(ctx context.Context, m Message) (Result, error)
}

// Provider is one of SMTPProvider, ResendProvider or Unconfigured.
type Provider interface {
	Name() string
	send(ctx context.Context, from string, m Message) (Result, error)
}

type Unconfigured struct{}

func (Unconfigured) Name() string { return "none" }

func (Unconfigured) send(context.Context, string, Message) (Result, error) {
	return Result{Sent: false, SkippedReason: SkippedMissingProvider}, nil
}

// Dispatcher sends transactional email through the provider chosen at startup.
type Dispatcher struct {
	provider Provider
	from     string
}

// NewDispatcher picks SMTP when host, port, user and password are all set,
// otherwise Resend when an API key is set, otherwise Unconfigured.
func NewDispatcher(cfg config.MailConfig) *Dispatcher {
	return NewDispatcherWithProvider(ResolveProvider(cfg), cfg.From)
}

func NewDispatcherWithProvider(p Provider, from string) *Dispatcher {
	if p == nil {
		p = Unconfigured{}
	}
	from = strings.TrimSpace(from)
	if from == "" {
		from = "support@wondernook.in"
	}
	return &Dispatcher{provider: p, from: from}
}

func ResolveProvider(cfg config.MailConfig) Provider {
	if cfg.SMTPHost != "" && cfg.SMTPPort != "" && cfg.SMTPUser != "" && cfg.SMTPPass != "" {
		return &SMTPProvider{
			Host:   cfg.SMTPHost,
			Port:   cfg.SMTPPort,
			User:   cfg.SMTPUser,
			Pass:   cfg.SMTPPass,
			Secure: cfg.SMTPSecure || cfg.SMTPPort == "465",
		}
	}
	if cfg.ResendAPIKey != "" {
		return &ResendProvider{
			APIKey:  cfg.ResendAPIKey,
			BaseURL: cfg.ResendBaseURL,
			HTTPClient: &http.Client{
				Timeout: 15 * time.Second,
			},
		}
	}
	return Unconfigured{}
}

func (d *Dispatcher) Provider() Provider { return d.provider }

func (d *Dispatcher) From() string { return d.from }

func (d *Dispatcher) Send(ctx context.Context, m Message) (Result, error) {
	return d.provider.send(ctx, d.from, m)
}
