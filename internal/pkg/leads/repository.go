package leads

import (
	"context"

	"gorm.io/gorm"

	"github.com/wandernook/wandernook/app/models"
)

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateSampleRequest(ctx context.Context, s *models.SampleRequest) error {
	return r.db.WithContext(ctx).Create(s).Error
}
