package repository

import (
	"context"

	"training_backend/internal/model"

	"gorm.io/gorm"
)

type ExamRepository struct {
	DB *gorm.DB
}

func NewExamRepository(db *gorm.DB) *ExamRepository {
	return &ExamRepository{DB: db}
}

func (r *ExamRepository) WithTx(tx *gorm.DB) *ExamRepository {
	return &ExamRepository{DB: tx}
}

func (r *ExamRepository) CreateAttempt(ctx context.Context, attempt *model.ExamAttempt) error {
	return r.DB.WithContext(ctx).Create(attempt).Error
}

func (r *ExamRepository) CreateAnswers(ctx context.Context, answers []model.ExamAnswer) error {
	if len(answers) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).CreateInBatches(answers, 100).Error
}

func (r *ExamRepository) ListAttempts(ctx context.Context, userID uint) ([]model.ExamAttempt, error) {
	var attempts []model.ExamAttempt
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("submitted_at desc, id desc").
		Find(&attempts).Error
	return attempts, err
}

func (r *ExamRepository) ListAnswers(ctx context.Context, userID, attemptID uint) ([]model.ExamAnswer, error) {
	var answers []model.ExamAnswer
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND attempt_id = ?", userID, attemptID).
		Order("question_id asc").
		Find(&answers).Error
	return answers, err
}
