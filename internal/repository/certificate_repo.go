package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-training-api/internal/models"
)

// CertificateRepository defines persistence operations for certificates and their renewal history.
type CertificateRepository interface {
	GetByID(ctx context.Context, id uint) (models.Certificate, error)
	GetByCode(ctx context.Context, code string) (models.Certificate, error)
	Create(ctx context.Context, certificate *models.Certificate) error
	CompareAndUpdate(ctx context.Context, certificate *models.Certificate, from models.CertificateStatus) (bool, error)
	FindOpen(ctx context.Context, traineeID, courseID uint) (models.Certificate, error)
	HasRevoked(ctx context.Context, traineeID, courseID uint) (bool, error)
	ListByTrainee(ctx context.Context, traineeID uint) ([]models.Certificate, error)
	ListByCourse(ctx context.Context, courseID uint) ([]models.Certificate, error)
	ListActiveExpiringBefore(ctx context.Context, cutoff time.Time) ([]models.Certificate, error)
	MarkExpiringNotified(ctx context.Context, id uint, at time.Time) (bool, error)
	MarkExpired(ctx context.Context, id uint, at time.Time) (bool, error)
	AppendRenewal(ctx context.Context, renewal *models.CertificateRenewal) error
	ListRenewals(ctx context.Context, certificateID uint) ([]models.CertificateRenewal, error)
}

type certificateRepository struct {
	db *gorm.DB
}

// NewCertificateRepository instantiates a GORM-backed repository.
func NewCertificateRepository(db *gorm.DB) CertificateRepository {
	return &certificateRepository{db: db}
}

func (r *certificateRepository) GetByID(ctx context.Context, id uint) (models.Certificate, error) {
	var certificate models.Certificate
	if err := r.db.WithContext(ctx).First(&certificate, id).Error; err != nil {
		return models.Certificate{}, err
	}
	return certificate, nil
}

func (r *certificateRepository) GetByCode(ctx context.Context, code string) (models.Certificate, error) {
	var certificate models.Certificate
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&certificate).Error; err != nil {
		return models.Certificate{}, err
	}
	return certificate, nil
}

func (r *certificateRepository) Create(ctx context.Context, certificate *models.Certificate) error {
	return r.db.WithContext(ctx).Create(certificate).Error
}

// CompareAndUpdate writes every column of the certificate provided the stored row is
// still in the expected status.
func (r *certificateRepository) CompareAndUpdate(ctx context.Context, certificate *models.Certificate, from models.CertificateStatus) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Certificate{}).
		Where("id = ? AND status = ?", certificate.ID, string(from)).
		Select("*").
		Updates(certificate)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// FindOpen returns the most recent non-revoked certificate for the pair.
func (r *certificateRepository) FindOpen(ctx context.Context, traineeID, courseID uint) (models.Certificate, error) {
	var certificate models.Certificate
	if err := r.db.WithContext(ctx).
		Where("trainee_id = ? AND course_id = ?", traineeID, courseID).
		Where("status <> ?", string(models.CertificateStatusRevoked)).
		Order("id DESC").
		First(&certificate).Error; err != nil {
		return models.Certificate{}, err
	}
	return certificate, nil
}

// HasRevoked reports whether the pair ever had a certificate revoked.
func (r *certificateRepository) HasRevoked(ctx context.Context, traineeID, courseID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Certificate{}).
		Where("trainee_id = ? AND course_id = ? AND status = ?", traineeID, courseID, string(models.CertificateStatusRevoked)).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *certificateRepository) ListByTrainee(ctx context.Context, traineeID uint) ([]models.Certificate, error) {
	var certificates []models.Certificate
	if err := r.db.WithContext(ctx).
		Where("trainee_id = ?", traineeID).
		Order("issue_date DESC").
		Find(&certificates).Error; err != nil {
		return nil, err
	}
	return certificates, nil
}

func (r *certificateRepository) ListByCourse(ctx context.Context, courseID uint) ([]models.Certificate, error) {
	var certificates []models.Certificate
	if err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("id ASC").
		Find(&certificates).Error; err != nil {
		return nil, err
	}
	return certificates, nil
}

func (r *certificateRepository) ListActiveExpiringBefore(ctx context.Context, cutoff time.Time) ([]models.Certificate, error) {
	var certificates []models.Certificate
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(models.CertificateStatusActive)).
		Where("expiration_date IS NOT NULL AND expiration_date <= ?", cutoff).
		Order("expiration_date ASC").
		Find(&certificates).Error; err != nil {
		return nil, err
	}
	return certificates, nil
}

// MarkExpiringNotified claims the expiring-soon notification for a certificate.
// Only the first caller gets true.
func (r *certificateRepository) MarkExpiringNotified(ctx context.Context, id uint, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Certificate{}).
		Where("id = ? AND status = ? AND expiring_notified_at IS NULL", id, string(models.CertificateStatusActive)).
		Update("expiring_notified_at", at)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkExpired moves an active certificate to expired and claims the expiry notification.
func (r *certificateRepository) MarkExpired(ctx context.Context, id uint, at time.Time) (bool, error) {
	return compareAndSetStatus(ctx, r.db, &models.Certificate{}, id,
		string(models.CertificateStatusActive), string(models.CertificateStatusExpired),
		map[string]interface{}{"expired_notified_at": at})
}

// AppendRenewal stores the next renewal record, assigning its sequence number.
func (r *certificateRepository) AppendRenewal(ctx context.Context, renewal *models.CertificateRenewal) error {
	var last int
	if err := r.db.WithContext(ctx).Model(&models.CertificateRenewal{}).
		Where("certificate_id = ?", renewal.CertificateID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&last).Error; err != nil {
		return err
	}

	renewal.Sequence = last + 1
	return r.db.WithContext(ctx).Create(renewal).Error
}

func (r *certificateRepository) ListRenewals(ctx context.Context, certificateID uint) ([]models.CertificateRenewal, error) {
	var renewals []models.CertificateRenewal
	if err := r.db.WithContext(ctx).
		Where("certificate_id = ?", certificateID).
		Order("renewal_date ASC").
		Order("sequence ASC").
		Find(&renewals).Error; err != nil {
		return nil, err
	}
	return renewals, nil
}
