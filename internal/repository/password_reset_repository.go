package repository

import (
	"context"
	"errors"
	"time"

	"training_backend/internal/model"
	"training_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PasswordResetRepository struct {
	DB *gorm.DB
}

func NewPasswordResetRepository(db *gorm.DB) *PasswordResetRepository {
	return &PasswordResetRepository{DB: db}
}

func (r *PasswordResetRepository) WithTx(tx *gorm.DB) *PasswordResetRepository {
	return &PasswordResetRepository{DB: tx}
}

// Save 每个邮箱只保留最新的一次重置令牌
func (r *PasswordResetRepository) Save(ctx context.Context, email, token string, expiresAt time.Time) error {
	row := &model.PasswordReset{Email: email, Token: token, ExpiresAt: expiresAt}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "email"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"token":      token,
			"expires_at": expiresAt,
			"updated_at": time.Now(),
		}),
	}).Create(row).Error
}

func (r *PasswordResetRepository) FindValid(ctx context.Context, token string, now time.Time) (*model.PasswordReset, error) {
	var row model.PasswordReset
	err := r.DB.WithContext(ctx).
		Where("token = ? AND expires_at > ?", token, now).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrInvalidResetToken
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *PasswordResetRepository) Delete(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Delete(&model.PasswordReset{}, id).Error
}
