package tracking

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/wandernook/wandernook/app/models"
)

const (
	EventAutopayVerified      = "autopay_verified"
	EventNewsletterSubscribed = "newsletter_subscribed"
)

type Event struct {
	Name                   string         `json:"eventName"`
	PlanID                 string         `json:"planId,omitempty"`
	CustomerEmail          string         `json:"customerEmail,omitempty"`
	RazorpayPaymentID      string         `json:"razorpayPaymentId,omitempty"`
	RazorpaySubscriptionID string         `json:"razorpaySubscriptionId,omitempty"`
	Metadata               map[string]any `json:"metadata,omitempty"`
}

// Outcome reports what happened to an event. Degraded means the event was
// valid but could not be stored; Err carries the cause for logging only.
type Outcome struct {
	Recorded bool
	Degraded bool
	Err      error
}

type Store interface {
	CreateConversionEvent(ctx context.Context, e *models.ConversionEvent) error
}

type Tracker struct {
	store Store
}

func NewTracker(store Store) *Tracker {
	return &Tracker{store: store}
}

// Track stores one conversion event. It never fails the caller.
func (t *Tracker) Track(ctx context.Context, ev Event) Outcome {
	name := clip(ev.Name, 100)
	if name == "" {
		return Outcome{}
	}

	record := &models.ConversionEvent{
		EventName:              name,
		PlanID:                 optional(clip(ev.PlanID, 40)),
		CustomerEmail:          optional(clip(strings.ToLower(ev.CustomerEmail), 120)),
		RazorpayPaymentID:      optional(clip(ev.RazorpayPaymentID, 80)),
		RazorpaySubscriptionID: optional(clip(ev.RazorpaySubscriptionID, 80)),
	}
	if len(ev.Metadata) > 0 {
		raw, err := json.Marshal(ev.Metadata)
		if err != nil {
			log.Warnf("[Tracking] Dropping unserializable metadata for %s: %v", name, err)
		} else {
			s := string(raw)
			record.Metadata = &s
		}
	}

	if t == nil || t.store == nil {
		return Outcome{Degraded: true}
	}
	if err := t.store.CreateConversionEvent(ctx, record); err != nil {
		log.Errorf("[Tracking] Failed to track conversion event %s: %v", name, err)
		return Outcome{Degraded: true, Err: err}
	}
	return Outcome{Recorded: true}
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) CreateConversionEvent(ctx context.Context, e *models.ConversionEvent) error {
	return s.db.WithContext(ctx).Create(e).Error
}

func clip(v string, max int) string {
	v = strings.TrimSpace(v)
	if r := []rune(v); len(r) > max {
		return string(r[:max])
	}
	return v
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
