package billing

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wandernook/wandernook/app/models"
)

// Repository provides DB operations used by the billing service.
type Repository interface {
	FindAutopayOrder(ctx context.Context, paymentID string) (*models.AutopayOrder, error)
	ClaimAutopayOrder(ctx context.Context, order *models.AutopayOrder) (bool, error)
	TakeOverStaleClaim(ctx context.Context, paymentID string, staleBefore, now time.Time) (bool, error)
	CompleteAutopayOrder(ctx context.Context, paymentID, orderID, orderName string) error
	ReleaseAutopayOrder(ctx context.Context, paymentID string) error
	CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FindAutopayOrder(ctx context.Context, paymentID string) (*models.AutopayOrder, error) {
	var o models.AutopayOrder
	err := r.db.WithContext(ctx).Where("razorpay_payment_id = ?", paymentID).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *gormRepository) ClaimAutopayOrder(ctx context.Context, order *models.AutopayOrder) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "razorpay_payment_id"}},
		DoNothing: true,
	}).Create(order)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) TakeOverStaleClaim(ctx context.Context, paymentID string, staleBefore, now time.Time) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&models.AutopayOrder{}).
		Where("razorpay_payment_id = ? AND status = ? AND claimed_at < ?", paymentID, models.AutopayOrderStatusPending, staleBefore).
		Update("claimed_at", now)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) CompleteAutopayOrder(ctx context.Context, paymentID, orderID, orderName string) error {
	return r.db.WithContext(ctx).Model(&models.AutopayOrder{}).
		Where("razorpay_payment_id = ?", paymentID).
		Updates(map[string]interface{}{
			"status":             models.AutopayOrderStatusCreated,
			"shopify_order_id":   orderID,
			"shopify_order_name": orderName,
		}).Error
}

func (r *gormRepository) ReleaseAutopayOrder(ctx context.Context, paymentID string) error {
	return r.db.WithContext(ctx).
		Where("razorpay_payment_id = ? AND status = ?", paymentID, models.AutopayOrderStatusPending).
		Delete(&models.AutopayOrder{}).Error
}

func (r *gormRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	db := r.db.WithContext(ctx)
	tx := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(ctx context.Context, id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.WithContext(ctx).Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
