package repository

import (
	"context"
	"errors"

	"training_backend/internal/model"
	"training_backend/internal/util"

	"gorm.io/gorm"
)

type CertificateRepository struct {
	DB *gorm.DB
}

func NewCertificateRepository(db *gorm.DB) *CertificateRepository {
	return &CertificateRepository{DB: db}
}

func (r *CertificateRepository) WithTx(tx *gorm.DB) *CertificateRepository {
	return &CertificateRepository{DB: tx}
}

func (r *CertificateRepository) Create(ctx context.Context, cert *model.Certificate) error {
	return r.DB.WithContext(ctx).Create(cert).Error
}

// ListByUser 最新发放的在前
func (r *CertificateRepository) ListByUser(ctx context.Context, userID uint) ([]model.Certificate, error) {
	var certs []model.Certificate
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("issued_at desc, id desc").
		Find(&certs).Error
	return certs, err
}

func (r *CertificateRepository) FindLatestByType(ctx context.Context, userID uint, kind model.CertificateType) (*model.Certificate, error) {
	var cert model.Certificate
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND certificate_type = ?", userID, kind).
		Order("issued_at desc, id desc").
		First(&cert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCertificateNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

func (r *CertificateRepository) FindByCode(ctx context.Context, code string) (*model.Certificate, error) {
	var cert model.Certificate
	err := r.DB.WithContext(ctx).Where("code = ?", code).First(&cert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCertificateNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

// FindForUser 只返回属于该用户的证书
func (r *CertificateRepository) FindForUser(ctx context.Context, userID, certID uint) (*model.Certificate, error) {
	var cert model.Certificate
	err := r.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", certID, userID).
		First(&cert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCertificateNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

func (r *CertificateRepository) UpdateDocumentURL(ctx context.Context, certID uint, url string) error {
	return r.DB.WithContext(ctx).Model(&model.Certificate{}).
		Where("id = ?", certID).
		Update("document_url", url).Error
}
