package newsletter

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wandernook/wandernook/app/models"
)

type Repository interface {
	UpsertSubscriber(ctx context.Context, s *models.NewsletterSubscriber) error
	ListActive(ctx context.Context, limit int) ([]models.NewsletterSubscriber, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// UpsertSubscriber reactivates an existing email. A blank name keeps the
// stored one.
func (r *gormRepository) UpsertSubscriber(ctx context.Context, s *models.NewsletterSubscriber) error {
	updates := []string{"source", "status", "updated_at"}
	if s.Name != nil {
		updates = append(updates, "name")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(s).Error
}

func (r *gormRepository) ListActive(ctx context.Context, limit int) ([]models.NewsletterSubscriber, error) {
	var subs []models.NewsletterSubscriber
	err := r.db.WithContext(ctx).
		Where("status = ?", models.NewsletterStatusActive).
		Order("created_at DESC").
		Limit(limit).
		Find(&subs).Error
	return subs, err
}
