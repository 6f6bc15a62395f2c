package invoice

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wandernook/wandernook/app/models"
)

// ErrDuplicate is returned by Create when the payment already has an invoice.
var ErrDuplicate = errors.New("invoice already exists")

// Repository provides DB operations used by the invoice service. Find
// methods return nil, nil when nothing matches.
type Repository interface {
	FindByPaymentID(ctx context.Context, paymentID string) (*models.Invoice, error)
	FindByID(ctx context.Context, id string) (*models.Invoice, error)
	FindByPublicToken(ctx context.Context, token string) (*models.Invoice, error)
	UpsertCustomer(ctx context.Context, c *models.Customer) (*models.Customer, error)
	Create(ctx context.Context, inv *models.Invoice) error
	MarkEmailSent(ctx context.Context, id string, at time.Time, providerID string) error
	MarkArchived(ctx context.Context, id string, at time.Time, key string) error
	List(ctx context.Context, query string, limit int) ([]models.Invoice, error)
	ListCustomers(ctx context.Context, query string, limit int) ([]models.Customer, error)
	ListUnarchived(ctx context.Context, limit int) ([]models.Invoice, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) findOne(ctx context.Context, where string, arg any) (*models.Invoice, error) {
	var inv models.Invoice
	err := r.db.WithContext(ctx).Preload("Customer").Where(where, arg).First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *gormRepository) FindByPaymentID(ctx context.Context, paymentID string) (*models.Invoice, error) {
	return r.findOne(ctx, "razorpay_payment_id = ?", paymentID)
}

func (r *gormRepository) FindByID(ctx context.Context, id string) (*models.Invoice, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *gormRepository) FindByPublicToken(ctx context.Context, token string) (*models.Invoice, error) {
	return r.findOne(ctx, "public_token = ?", token)
}

// UpsertCustomer inserts by email or overwrites the stored details.
func (r *gormRepository) UpsertCustomer(ctx context.Context, c *models.Customer) (*models.Customer, error) {
	db := r.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"full_name", "phone", "address_line1", "address_line2",
			"city", "state", "pincode", "country", "updated_at",
		}),
	}).Create(c).Error
	if err != nil {
		return nil, err
	}
	var stored models.Customer
	if err := db.Where("email = ?", c.Email).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *gormRepository) Create(ctx context.Context, inv *models.Invoice) error {
	err := r.db.WithContext(ctx).Omit("Customer").Create(inv).Error
	if isDuplicateKey(err) {
		return ErrDuplicate
	}
	return err
}

func (r *gormRepository) MarkEmailSent(ctx context.Context, id string, at time.Time, providerID string) error {
	return r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"email_sent_at":     at,
			"email_provider_id": providerID,
		}).Error
}

func (r *gormRepository) MarkArchived(ctx context.Context, id string, at time.Time, key string) error {
	return r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"archived_at": at,
			"archive_key": key,
		}).Error
}

func (r *gormRepository) List(ctx context.Context, query string, limit int) ([]models.Invoice, error) {
	db := r.db.WithContext(ctx).Preload("Customer").
		Joins("JOIN customers ON customers.id = invoices.customer_id").
		Order("invoices.issued_at DESC").
		Limit(limit)
	if query != "" {
		like := "%" + escapeLike(query) + "%"
		db = db.Where(
			"invoices.invoice_number LIKE ? OR invoices.razorpay_payment_id LIKE ? OR customers.email LIKE ? OR customers.full_name LIKE ?",
			like, like, like, like,
		)
	}
	var out []models.Invoice
	return out, db.Find(&out).Error
}

func (r *gormRepository) ListCustomers(ctx context.Context, query string, limit int) ([]models.Customer, error) {
	db := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if query != "" {
		like := "%" + escapeLike(query) + "%"
		db = db.Where("email LIKE ? OR full_name LIKE ? OR phone LIKE ?", like, like, like)
	}
	var out []models.Customer
	return out, db.Find(&out).Error
}

func (r *gormRepository) ListUnarchived(ctx context.Context, limit int) ([]models.Invoice, error) {
	var out []models.Invoice
	err := r.db.WithContext(ctx).
		Where("archived_at IS NULL").
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1062
}

func escapeLike(v string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(v)
}
