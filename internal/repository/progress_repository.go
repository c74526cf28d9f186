package repository

import (
	"context"
	"errors"
	"time"

	"training_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

func (r *ProgressRepository) WithTx(tx *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: tx}
}

// MarkTopicCompleted 按 (user, module, topic) upsert，重复标记只刷新完成时间
func (r *ProgressRepository) MarkTopicCompleted(ctx context.Context, userID uint, moduleID, topicID string, at time.Time) error {
	p := &model.TopicProgress{
		UserID:      userID,
		ModuleID:    moduleID,
		TopicID:     topicID,
		Completed:   true,
		CompletedAt: &at,
	}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "module_id"}, {Name: "topic_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"completed":    true,
			"completed_at": at,
			"updated_at":   at,
		}),
	}).Create(p).Error
}

func (r *ProgressRepository) CountCompletedTopics(ctx context.Context, userID uint, moduleID string) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.TopicProgress{}).
		Where("user_id = ? AND module_id = ? AND completed = ?", userID, moduleID, true).
		Count(&count).Error
	return count, err
}

func (r *ProgressRepository) ListCompletedTopics(ctx context.Context, userID uint) ([]model.TopicProgress, error) {
	var rows []model.TopicProgress
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND completed = ?", userID, true).
		Order("module_id asc, topic_id asc").
		Find(&rows).Error
	return rows, err
}

// UpsertRating 同一主题再次评分时覆盖旧值
func (r *ProgressRepository) UpsertRating(ctx context.Context, userID uint, moduleID, topicID string, rating int, at time.Time) error {
	row := &model.ContentRating{
		UserID:   userID,
		ModuleID: moduleID,
		TopicID:  topicID,
		Rating:   rating,
	}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "module_id"}, {Name: "topic_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"rating":     rating,
			"updated_at": at,
		}),
	}).Create(row).Error
}

func (r *ProgressRepository) ListRatings(ctx context.Context, userID uint) ([]model.ContentRating, error) {
	var rows []model.ContentRating
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("module_id asc, topic_id asc").
		Find(&rows).Error
	return rows, err
}

func (r *ProgressRepository) CompletedModuleExists(ctx context.Context, userID uint, moduleID string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.CompletedModule{}).
		Where("user_id = ? AND module_id = ?", userID, moduleID).
		Count(&count).Error
	return count > 0, err
}

// InsertCompletedModule 依赖 (user_id, module_id) 唯一索引做插入即判重；
// 返回 false 表示该行已存在（包括并发请求先一步插入的情况）
func (r *ProgressRepository) InsertCompletedModule(ctx context.Context, userID uint, moduleID string, at time.Time) (bool, error) {
	row := &model.CompletedModule{
		UserID:      userID,
		ModuleID:    moduleID,
		CompletedAt: at,
	}
	res := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "module_id"}},
		DoNothing: true,
	}).Create(row)
	if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ProgressRepository) ListCompletedModules(ctx context.Context, userID uint) ([]model.CompletedModule, error) {
	var rows []model.CompletedModule
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("completed_at asc, id asc").
		Find(&rows).Error
	return rows, err
}
