package service

import (
	"context"
	"errors"
	"time"

	"training_backend/internal/catalog"
	"training_backend/internal/model"
	"training_backend/internal/repository"
	"training_backend/internal/util"
	"training_backend/pkg/logger"
	"training_backend/pkg/monitoring"
	"training_backend/pkg/tracing"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxContentIDLength = 64

// SnapshotStore 进度快照缓存，Redis 未启用时为 nil
type SnapshotStore interface {
	Get(ctx context.Context, userID uint, dst interface{}) (bool, error)
	Set(ctx context.Context, userID uint, snapshot interface{}) error
	Invalidate(ctx context.Context, userID uint) error
}

type ModuleSummary struct {
	ModuleID        string `json:"moduleId"`
	Title           string `json:"title"`
	CompletedTopics int    `json:"completedTopics"`
	RequiredTopics  int    `json:"requiredTopics"`
	Completed       bool   `json:"completed"`
}

// ProgressSnapshot progress 和 ratings 的键为 "模块ID-主题ID"
type ProgressSnapshot struct {
	Progress         map[string]bool   `json:"progress"`
	Ratings          map[string]int    `json:"ratings"`
	CompletedModules []string          `json:"completedModules"`
	Certificates     []CertificateView `json:"certificates"`
	ExamPassed       bool              `json:"examPassed"`
	Modules          []ModuleSummary   `json:"modules"`
}

type MarkReadResult struct {
	ModuleID        string           `json:"moduleId"`
	TopicID         string           `json:"topicId"`
	Outcome         string           `json:"outcome"`
	ModuleCompleted bool             `json:"moduleCompleted"`
	Certificate     *CertificateView `json:"certificate,omitempty"`
}

type ProgressService struct {
	DB           *gorm.DB
	ProgressRepo *repository.ProgressRepository
	UserRepo     *repository.UserRepository
	CertRepo     *repository.CertificateRepository
	Catalog      *catalog.Catalog
	Evaluator    *CompletionEvaluator
	Certificates *CertificateService
	Cache        SnapshotStore
}

func NewProgressService(
	db *gorm.DB,
	progressRepo *repository.ProgressRepository,
	userRepo *repository.UserRepository,
	certRepo *repository.CertificateRepository,
	cat *catalog.Catalog,
	evaluator *CompletionEvaluator,
	certs *CertificateService,
	cache SnapshotStore,
) *ProgressService {
	return &ProgressService{
		DB:           db,
		ProgressRepo: progressRepo,
		UserRepo:     userRepo,
		CertRepo:     certRepo,
		Catalog:      cat,
		Evaluator:    evaluator,
		Certificates: certs,
		Cache:        cache,
	}
}

func validateContentIDs(moduleID, topicID string) error {
	if moduleID == "" || topicID == "" {
		return util.Validationf("moduleId and topicId are required")
	}
	if len(moduleID) > maxContentIDLength || len(topicID) > maxContentIDLength {
		return util.Validationf("moduleId and topicId must be at most %d characters", maxContentIDLength)
	}
	return nil
}

// MarkTopicRead 标记主题已读并在同一事务内评估模块完成情况；新证书在提交后通知
func (s *ProgressService) MarkTopicRead(ctx context.Context, userID uint, moduleID, topicID string) (*MarkReadResult, error) {
	ctx, span := tracing.StartSpan(ctx, "ProgressService.MarkTopicRead", userID)
	var err error
	defer func() { tracing.EndSpan(span, err) }()

	if userID == 0 {
		err = util.ErrMissingIdentity
		return nil, err
	}
	if err = validateContentIDs(moduleID, topicID); err != nil {
		return nil, err
	}

	var (
		outcome CompletionOutcome
		cert    *model.Certificate
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 先锁用户行，否则并发标记不同的最后主题时双方计数都看不到对方的插入
		if err := s.UserRepo.WithTx(tx).LockForUpdate(ctx, userID); err != nil {
			if errors.Is(err, util.ErrNotFound) {
				return err
			}
			return util.Persistence("lock user", err)
		}
		if err := s.ProgressRepo.WithTx(tx).MarkTopicCompleted(ctx, userID, moduleID, topicID, time.Now()); err != nil {
			return util.Persistence("mark topic completed", err)
		}
		var err error
		outcome, cert, err = s.Evaluator.Evaluate(ctx, tx, userID, moduleID)
		return err
	})
	if err != nil {
		logger.Log.Error("Failed to mark topic read",
			zap.Uint("user_id", userID),
			zap.String("module_id", moduleID),
			zap.String("topic_id", topicID),
			zap.Error(err))
		return nil, err
	}

	monitoring.TopicsMarked.Inc()
	s.invalidate(ctx, userID)

	result := &MarkReadResult{
		ModuleID:        moduleID,
		TopicID:         topicID,
		Outcome:         outcome.String(),
		ModuleCompleted: outcome == OutcomeNewlyCompleted || outcome == OutcomeAlreadyCompleted,
	}
	if cert != nil {
		monitoring.ModulesCompleted.Inc()
		logger.Log.Info("Module completed",
			zap.Uint("user_id", userID),
			zap.String("module_id", moduleID))
		s.Certificates.Announce(ctx, cert)
		view := NewCertificateView(*cert)
		result.Certificate = &view
	}
	return result, nil
}

func (s *ProgressService) RateContent(ctx context.Context, userID uint, moduleID, topicID string, rating int) error {
	if userID == 0 {
		return util.ErrMissingIdentity
	}
	if err := validateContentIDs(moduleID, topicID); err != nil {
		return err
	}
	if rating < 1 || rating > 5 {
		return util.ErrRatingOutOfRange
	}

	if err := s.ProgressRepo.UpsertRating(ctx, userID, moduleID, topicID, rating, time.Now()); err != nil {
		logger.Log.Error("Failed to save rating",
			zap.Uint("user_id", userID),
			zap.String("module_id", moduleID),
			zap.Error(err))
		return util.Persistence("upsert rating", err)
	}
	s.invalidate(ctx, userID)
	return nil
}

// GetProgressSnapshot 先读缓存，未命中时从数据库汇总后回填
func (s *ProgressService) GetProgressSnapshot(ctx context.Context, userID uint) (*ProgressSnapshot, error) {
	if userID == 0 {
		return nil, util.ErrMissingIdentity
	}

	if s.Cache != nil {
		var cached ProgressSnapshot
		hit, err := s.Cache.Get(ctx, userID, &cached)
		if err != nil {
			logger.Log.Warn("Progress cache read failed", zap.Uint("user_id", userID), zap.Error(err))
		} else if hit {
			return &cached, nil
		}
	}

	snapshot, err := s.buildSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, userID, snapshot); err != nil {
			logger.Log.Warn("Progress cache write failed", zap.Uint("user_id", userID), zap.Error(err))
		}
	}
	return snapshot, nil
}

func (s *ProgressService) buildSnapshot(ctx context.Context, userID uint) (*ProgressSnapshot, error) {
	user, err := s.UserRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, err
		}
		return nil, util.Persistence("find user", err)
	}

	topics, err := s.ProgressRepo.ListCompletedTopics(ctx, userID)
	if err != nil {
		return nil, util.Persistence("list completed topics", err)
	}
	ratings, err := s.ProgressRepo.ListRatings(ctx, userID)
	if err != nil {
		return nil, util.Persistence("list ratings", err)
	}
	modules, err := s.ProgressRepo.ListCompletedModules(ctx, userID)
	if err != nil {
		return nil, util.Persistence("list completed modules", err)
	}
	certs, err := s.CertRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, util.Persistence("list certificates", err)
	}

	snapshot := &ProgressSnapshot{
		Progress:         make(map[string]bool, len(topics)),
		Ratings:          make(map[string]int, len(ratings)),
		CompletedModules: make([]string, 0, len(modules)),
		Certificates:     make([]CertificateView, 0, len(certs)),
		ExamPassed:       user.ExamPassed,
	}

	perModule := make(map[string]int)
	for _, t := range topics {
		snapshot.Progress[t.ModuleID+"-"+t.TopicID] = true
		perModule[t.ModuleID]++
	}
	for _, r := range ratings {
		snapshot.Ratings[r.ModuleID+"-"+r.TopicID] = r.Rating
	}
	done := make(map[string]bool, len(modules))
	for _, m := range modules {
		snapshot.CompletedModules = append(snapshot.CompletedModules, m.ModuleID)
		done[m.ModuleID] = true
	}
	for _, c := range certs {
		snapshot.Certificates = append(snapshot.Certificates, NewCertificateView(c))
	}
	for _, m := range s.Catalog.Modules() {
		snapshot.Modules = append(snapshot.Modules, ModuleSummary{
			ModuleID:        m.ID,
			Title:           m.Title,
			CompletedTopics: perModule[m.ID],
			RequiredTopics:  m.RequiredTopics,
			Completed:       done[m.ID],
		})
	}
	return snapshot, nil
}

func (s *ProgressService) ListCompletedTopics(ctx context.Context, userID uint) ([]model.TopicProgress, error) {
	if userID == 0 {
		return nil, util.ErrMissingIdentity
	}
	rows, err := s.ProgressRepo.ListCompletedTopics(ctx, userID)
	if err != nil {
		return nil, util.Persistence("list completed topics", err)
	}
	return rows, nil
}

func (s *ProgressService) ListRatings(ctx context.Context, userID uint) ([]model.ContentRating, error) {
	if userID == 0 {
		return nil, util.ErrMissingIdentity
	}
	rows, err := s.ProgressRepo.ListRatings(ctx, userID)
	if err != nil {
		return nil, util.Persistence("list ratings", err)
	}
	return rows, nil
}

func (s *ProgressService) ListCompletedModules(ctx context.Context, userID uint) ([]string, error) {
	if userID == 0 {
		return nil, util.ErrMissingIdentity
	}
	rows, err := s.ProgressRepo.ListCompletedModules(ctx, userID)
	if err != nil {
		return nil, util.Persistence("list completed modules", err)
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ModuleID)
	}
	return ids, nil
}

func (s *ProgressService) invalidate(ctx context.Context, userID uint) {
	invalidateSnapshot(ctx, s.Cache, userID)
}

// invalidateSnapshot 缓存失效失败只记日志，快照会在 TTL 后自然过期
func invalidateSnapshot(ctx context.Context, cache SnapshotStore, userID uint) {
	if cache == nil {
		return
	}
	if err := cache.Invalidate(ctx, userID); err != nil {
		logger.Log.Warn("Failed to invalidate progress cache", zap.Uint("user_id", userID), zap.Error(err))
	}
}
