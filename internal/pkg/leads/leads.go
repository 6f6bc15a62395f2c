package leads

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"

	"github.com/wandernook/wandernook/app/models"
	"github.com/wandernook/wandernook/internal/pkg/config"
	"github.com/wandernook/wandernook/internal/pkg/metrics"
	"github.com/wandernook/wandernook/internal/pkg/tracking"
)

var (
	ErrMissingDetails     = errors.New("name and email are required")
	ErrSubmitDisabled     = errors.New("lead form endpoint is not configured")
	ErrDownloadNotAllowed = errors.New("download url is not allowed")
)

const (
	SampleRequestedEvent = "sample_requested"
	maxDownloadBytes     = 25 << 20
)

// SampleRequestInput is the sample issue form. The same fields are posted to
// the contact form endpoint.
type SampleRequestInput struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	ContactNo  string `json:"contactNo" validate:"omitempty,max=20"`
	City       string `json:"city"`
	SchoolName string `json:"schoolName"`
}

func (in SampleRequestInput) sanitized() SampleRequestInput {
	return SampleRequestInput{
		Name:       clip(in.Name, 120),
		Email:      strings.ToLower(clip(in.Email, 120)),
		ContactNo:  strings.ReplaceAll(clip(in.ContactNo, 20), " ", ""),
		City:       clip(in.City, 80),
		SchoolName: clip(in.SchoolName, 160),
	}
}

// UpstreamError is a non JSON answer from the contact form endpoint.
type UpstreamError struct {
	Status  int
	Details string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("non-JSON response from lead form endpoint (HTTP %d)", e.Status)
}

type Repository interface {
	CreateSampleRequest(ctx context.Context, r *models.SampleRequest) error
}

type Tracker interface {
	Track(ctx context.Context, ev tracking.Event) tracking.Outcome
}

type Service struct {
	repo     Repository
	tracker  Tracker
	cfg      config.LeadsConfig
	allowed  map[string]bool
	http     *http.Client
	validate *validator.Validate
}

// NewService builds the lead service. siteURL's host is always accepted by
// the download proxy.
func NewService(repo Repository, tracker Tracker, cfg config.LeadsConfig, siteURL string) *Service {
	allowed := map[string]bool{}
	for _, h := range cfg.DownloadHosts {
		allowed[strings.ToLower(h)] = true
	}
	if u, err := url.Parse(siteURL); err == nil && u.Hostname() != "" {
		allowed[strings.ToLower(u.Hostname())] = true
	}
	return &Service{
		repo:     repo,
		tracker:  tracker,
		cfg:      cfg,
		allowed:  allowed,
		http:     &http.Client{Timeout: 15 * time.Second},
		validate: validator.New(),
	}
}

// SampleDownloadPath is the public path of the launch issue PDF.
func (s *Service) SampleDownloadPath() string { return s.cfg.SampleDownloadPath }

// RequestSample validates and stores a sample request. The download path is
// returned even when the store fails so the visitor is never blocked.
func (s *Service) RequestSample(ctx context.Context, in SampleRequestInput) (string, error) {
	in = in.sanitized()
	if err := s.validate.Struct(in); err != nil {
		return "", ErrMissingDetails
	}
	if in.ContactNo != "" && !strings.HasPrefix(in.ContactNo, "+") {
		log.Warnf("[Leads] Contact number for %s has no country code", in.Email)
	}

	record := &models.SampleRequest{
		Name:       in.Name,
		Email:      in.Email,
		ContactNo:  in.ContactNo,
		City:       in.City,
		SchoolName: in.SchoolName,
	}
	if err := s.repo.CreateSampleRequest(ctx, record); err != nil {
		metrics.LeadsCaptured.WithLabelValues("sample", "store_failed").Inc()
		return s.cfg.SampleDownloadPath, fmt.Errorf("store sample request: %w", err)
	}
	metrics.LeadsCaptured.WithLabelValues("sample", "stored").Inc()
	log.Infof("[Leads] Stored sample request %d for %s", record.ID, in.Email)

	if s.tracker != nil {
		s.tracker.Track(ctx, tracking.Event{
			Name:          SampleRequestedEvent,
			CustomerEmail: in.Email,
			Metadata:      map[string]any{"city": in.City, "schoolName": in.SchoolName},
		})
	}
	return s.cfg.SampleDownloadPath, nil
}

// Submit forwards the contact form to the configured endpoint and returns
// its JSON answer untouched.
func (s *Service) Submit(ctx context.Context, in SampleRequestInput) (json.RawMessage, error) {
	if s.cfg.SubmitURL == "" {
		return nil, ErrSubmitDisabled
	}
	payload, err := json.Marshal(in.sanitized())
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.SubmitURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	defer metrics.ObserveUpstream("lead_form", time.Now())
	resp, err := s.http.Do(req)
	if err != nil {
		metrics.LeadsCaptured.WithLabelValues("submit", "failed").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "application/json") || !json.Valid(body) {
		metrics.LeadsCaptured.WithLabelValues("submit", "failed").Inc()
		return nil, &UpstreamError{Status: resp.StatusCode, Details: string(body)}
	}
	metrics.LeadsCaptured.WithLabelValues("submit", "forwarded").Inc()
	return json.RawMessage(body), nil
}

// FetchSample downloads a sample PDF from an allowed host.
func (s *Service) FetchSample(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || !s.allowed[strings.ToLower(u.Hostname())] {
		return nil, ErrDownloadNotAllowed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	defer metrics.ObserveUpstream("sample_download", time.Now())
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sample download: HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxDownloadBytes {
		return nil, fmt.Errorf("sample download exceeds %d bytes", maxDownloadBytes)
	}
	return body, nil
}

func clip(v string, n int) string {
	v = strings.TrimSpace(v)
	if len(v) > n {
		v = v[:n]
	}
	return v
}
