package newsletter

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/errgroup"

	"github.com/wandernook/wandernook/app/models"
	"github.com/wandernook/wandernook/internal/pkg/mail"
	"github.com/wandernook/wandernook/internal/pkg/metrics"
	"github.com/wandernook/wandernook/internal/pkg/tracking"
)

var (
	ErrInvalidEmail   = errors.New("invalid email address")
	ErrMissingContent = errors.New("subject and html are required")
)

const (
	DefaultSource   = "website"
	DefaultLimit    = 50
	MaxLimit        = 500
	sendConcurrency = 20
)

type SubscribeInput struct {
	Email  string `json:"email" validate:"required,email"`
	Name   string `json:"name"`
	Source string `json:"source"`
}

type DispatchInput struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
	Limit   int    `json:"limit"`
}

type DispatchResult struct {
	Total     int `json:"total"`
	Delivered int `json:"delivered"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

type Tracker interface {
	Track(ctx context.Context, ev tracking.Event) tracking.Outcome
}

type Service struct {
	repo     Repository
	mailer   mail.Sender
	tracker  Tracker
	validate *validator.Validate
}

func NewService(repo Repository, mailer mail.Sender, tracker Tracker) *Service {
	return &Service{
		repo:     repo,
		mailer:   mailer,
		tracker:  tracker,
		validate: validator.New(),
	}
}

// Subscribe stores or reactivates a subscriber.
func (s *Service) Subscribe(ctx context.Context, in SubscribeInput) error {
	in.Email = clip(strings.ToLower(in.Email), 120)
	in.Name = clip(in.Name, 120)
	in.Source = clip(in.Source, 60)
	if in.Source == "" {
		in.Source = DefaultSource
	}
	if err := s.validate.Struct(in); err != nil || !hasDottedDomain(in.Email) {
		return ErrInvalidEmail
	}

	sub := &models.NewsletterSubscriber{
		Email:  in.Email,
		Source: in.Source,
		Status: models.NewsletterStatusActive,
	}
	if in.Name != "" {
		sub.Name = &in.Name
	}
	if err := s.repo.UpsertSubscriber(ctx, sub); err != nil {
		return err
	}

	if s.tracker != nil {
		s.tracker.Track(ctx, tracking.Event{
			Name:          tracking.EventNewsletterSubscribed,
			CustomerEmail: in.Email,
			Metadata:      map[string]any{"source": in.Source},
		})
	}
	return nil
}

// ClampLimit applies the default and bounds of a dispatch batch.
func ClampLimit(limit int) int {
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 1 {
		return 1
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Dispatch emails the newest active subscribers once each. Individual send
// failures are counted, never retried.
func (s *Service) Dispatch(ctx context.Context, in DispatchInput) (*DispatchResult, error) {
	subject := clip(in.Subject, 140)
	html := strings.TrimSpace(in.HTML)
	text := strings.TrimSpace(in.Text)
	if subject == "" || html == "" {
		return nil, ErrMissingContent
	}

	subscribers, err := s.repo.ListActive(ctx, ClampLimit(in.Limit))
	if err != nil {
		return nil, err
	}

	var delivered, skipped, failed int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sendConcurrency)
	for i := range subscribers {
		to := subscribers[i].Email
		g.Go(func() error {
			res, err := s.mailer.Send(gctx, mail.Message{To: to, Subject: subject, HTML: html, Text: text})
			switch {
			case err != nil:
				atomic.AddInt64(&failed, 1)
				metrics.NewsletterSends.WithLabelValues("failed").Inc()
				log.Warnf("[Newsletter] Send to %s failed: %v", to, err)
			case res.Sent:
				atomic.AddInt64(&delivered, 1)
				metrics.NewsletterSends.WithLabelValues("sent").Inc()
			default:
				atomic.AddInt64(&skipped, 1)
				metrics.NewsletterSends.WithLabelValues("skipped").Inc()
			}
			return nil
		})
	}
	_ = g.Wait()

	result := &DispatchResult{
		Total:     len(subscribers),
		Delivered: int(delivered),
		Skipped:   int(skipped),
		Failed:    int(failed),
	}
	log.Infof("[Newsletter] Dispatched %q: %d delivered, %d skipped, %d failed", subject, result.Delivered, result.Skipped, result.Failed)
	return result, nil
}

func hasDottedDomain(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 1 {
		return false
	}
	domain := email[at+1:]
	dot := strings.Index(domain, ".")
	return dot > 0 && dot < len(domain)-1
}

func clip(v string, max int) string {
	v = strings.TrimSpace(v)
	if r := []rune(v); len(r) > max {
		return string(r[:max])
	}
	return v
}
