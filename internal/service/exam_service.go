package service

import (
	"context"
	"encoding/json"
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
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// errExamAlreadyPassed 并发交卷时抢占 exam_passed 失败，用于回滚整个事务
var errExamAlreadyPassed = errors.New("exam already passed")

type ExamResult struct {
	Passed        bool             `json:"passed"`
	Score         float64          `json:"score"`
	Correct       int              `json:"correct"`
	Total         int              `json:"total"`
	AlreadyPassed bool             `json:"alreadyPassed"`
	Certificate   *CertificateView `json:"certificate,omitempty"`
}

type ExamService struct {
	DB            *gorm.DB
	ExamRepo      *repository.ExamRepository
	UserRepo      *repository.UserRepository
	CertRepo      *repository.CertificateRepository
	AnswerKey     *catalog.AnswerKey
	PassThreshold int
	Certificates  *CertificateService
	Cache         SnapshotStore
}

func NewExamService(
	db *gorm.DB,
	examRepo *repository.ExamRepository,
	userRepo *repository.UserRepository,
	certRepo *repository.CertificateRepository,
	key *catalog.AnswerKey,
	passThreshold int,
	certs *CertificateService,
	cache SnapshotStore,
) *ExamService {
	return &ExamService{
		DB:            db,
		ExamRepo:      examRepo,
		UserRepo:      userRepo,
		CertRepo:      certRepo,
		AnswerKey:     key,
		PassThreshold: passThreshold,
		Certificates:  certs,
		Cache:         cache,
	}
}

type grade struct {
	correct int
	total   int
	score   float64
	passed  bool
	rows    []model.ExamAnswer
}

// gradeAnswers 总题数固定取答案表长度，未知题号计为错误
func (s *ExamService) gradeAnswers(userID uint, answers map[int]int, at time.Time) grade {
	g := grade{total: s.AnswerKey.Total(), rows: make([]model.ExamAnswer, 0, len(answers))}
	for questionID, selected := range answers {
		ok := s.AnswerKey.IsCorrect(questionID, selected)
		if ok {
			g.correct++
		}
		g.rows = append(g.rows, model.ExamAnswer{
			UserID:         userID,
			QuestionID:     questionID,
			SelectedAnswer: selected,
			IsCorrect:      ok,
			SubmittedAt:    at,
		})
	}
	g.score = float64(g.correct*100) / float64(g.total)
	g.passed = g.correct*100 >= s.PassThreshold*g.total
	return g
}

// Submit 批改并保存答卷；已通过的用户再次交卷不写入任何数据
func (s *ExamService) Submit(ctx context.Context, userID uint, answers map[int]int) (*ExamResult, error) {
	ctx, span := tracing.StartSpan(ctx, "ExamService.Submit", userID)
	var err error
	defer func() { tracing.EndSpan(span, err) }()

	if userID == 0 {
		err = util.ErrMissingIdentity
		return nil, err
	}
	if len(answers) == 0 {
		err = util.ErrEmptyAnswers
		return nil, err
	}

	var user *model.User
	if user, err = s.UserRepo.FindByID(ctx, userID); err != nil {
		if !errors.Is(err, util.ErrNotFound) {
			err = util.Persistence("find user", err)
		}
		return nil, err
	}
	if user.ExamPassed {
		monitoring.ExamSubmissions.WithLabelValues("already_passed").Inc()
		return s.alreadyPassed(ctx, userID)
	}

	now := time.Now()
	g := s.gradeAnswers(userID, answers, now)

	snapshot, err := json.Marshal(answers)
	if err != nil {
		return nil, err
	}

	var cert *model.Certificate
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		examRepo := s.ExamRepo.WithTx(tx)
		attempt := &model.ExamAttempt{
			UserID:      userID,
			Correct:     g.correct,
			Total:       g.total,
			Score:       g.score,
			Passed:      g.passed,
			Answers:     datatypes.JSON(snapshot),
			SubmittedAt: now,
		}
		if err := examRepo.CreateAttempt(ctx, attempt); err != nil {
			return util.Persistence("insert exam attempt", err)
		}
		for i := range g.rows {
			g.rows[i].AttemptID = attempt.ID
		}
		if err := examRepo.CreateAnswers(ctx, g.rows); err != nil {
			return util.Persistence("insert exam answers", err)
		}
		if !g.passed {
			return nil
		}

		marked, err := s.UserRepo.WithTx(tx).MarkExamPassed(ctx, userID)
		if err != nil {
			return util.Persistence("mark exam passed", err)
		}
		if !marked {
			return errExamAlreadyPassed
		}
		score := g.score
		cert, err = s.Certificates.Issue(ctx, tx, userID, model.CertificateCertified, nil, &score)
		return err
	})
	if errors.Is(err, errExamAlreadyPassed) {
		err = nil
		monitoring.ExamSubmissions.WithLabelValues("already_passed").Inc()
		return s.alreadyPassed(ctx, userID)
	}
	if err != nil {
		logger.Log.Error("Failed to submit exam", zap.Uint("user_id", userID), zap.Error(err))
		return nil, err
	}

	result := &ExamResult{
		Passed:  g.passed,
		Score:   g.score,
		Correct: g.correct,
		Total:   g.total,
	}
	logger.Log.Info("Exam graded",
		zap.Uint("user_id", userID),
		zap.Int("correct", g.correct),
		zap.Int("total", g.total),
		zap.Bool("passed", g.passed))

	if !g.passed {
		monitoring.ExamSubmissions.WithLabelValues("failed").Inc()
		return result, nil
	}

	monitoring.ExamSubmissions.WithLabelValues("passed").Inc()
	invalidateSnapshot(ctx, s.Cache, userID)
	s.Certificates.Announce(ctx, cert)
	view := NewCertificateView(*cert)
	result.Certificate = &view
	return result, nil
}

// alreadyPassed 返回最近一张认证证书上的成绩
func (s *ExamService) alreadyPassed(ctx context.Context, userID uint) (*ExamResult, error) {
	result := &ExamResult{
		Passed:        true,
		AlreadyPassed: true,
		Total:         s.AnswerKey.Total(),
	}
	cert, err := s.CertRepo.FindLatestByType(ctx, userID, model.CertificateCertified)
	if errors.Is(err, util.ErrNotFound) {
		return result, nil
	}
	if err != nil {
		return nil, util.Persistence("find certified certificate", err)
	}
	if cert.Score != nil {
		result.Score = *cert.Score
		result.Correct = int(*cert.Score*float64(result.Total)/100 + 0.5)
	}
	view := NewCertificateView(*cert)
	result.Certificate = &view
	return result, nil
}

// Attempts 历次交卷记录，最新的在前
func (s *ExamService) Attempts(ctx context.Context, userID uint) ([]model.ExamAttempt, error) {
	if userID == 0 {
		return nil, util.ErrMissingIdentity
	}
	attempts, err := s.ExamRepo.ListAttempts(ctx, userID)
	if err != nil {
		return nil, util.Persistence("list exam attempts", err)
	}
	return attempts, nil
}

func (s *ExamService) AttemptAnswers(ctx context.Context, userID, attemptID uint) ([]model.ExamAnswer, error) {
	if userID == 0 {
		return nil, util.ErrMissingIdentity
	}
	answers, err := s.ExamRepo.ListAnswers(ctx, userID, attemptID)
	if err != nil {
		return nil, util.Persistence("list exam answers", err)
	}
	return answers, nil
}
