package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"training_backend/internal/catalog"
	"training_backend/internal/config"
	"training_backend/internal/model"
	"training_backend/internal/repository"
	"training_backend/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type sentMail struct {
	To    string
	Name  string
	Kind  model.CertificateType
	Score *float64
	Link  string
}

type fakeMailer struct {
	mu    sync.Mutex
	sent  []sentMail
	reset []sentMail
	err   error
}

func (m *fakeMailer) SendCertificate(ctx context.Context, to, name string, kind model.CertificateType, score *float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: to, Name: name, Kind: kind, Score: score})
	return nil
}

func (m *fakeMailer) SendPasswordReset(ctx context.Context, to, name, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.reset = append(m.reset, sentMail{To: to, Name: name, Link: link})
	return nil
}

func (m *fakeMailer) certificates() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

func (m *fakeMailer) resets() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.reset...)
}

// memoryCache 以 JSON 保存快照，行为与 Redis 实现一致
type memoryCache struct {
	mu          sync.Mutex
	data        map[uint][]byte
	invalidated int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[uint][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, userID uint, dst interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[userID]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (c *memoryCache) Set(ctx context.Context, userID uint, snapshot interface{}) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[userID] = raw
	return nil
}

func (c *memoryCache) Invalidate(ctx context.Context, userID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, userID)
	c.invalidated++
	return nil
}

func (c *memoryCache) has(userID uint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[userID]
	return ok
}

var testTime = time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC)

var testModules = []config.ModuleEntry{
	{ID: "inicio", Title: "Inicio", Topics: 2},
	{ID: "ventas", Title: "Ventas", Topics: 3},
	{ID: "gastos", Title: "Gastos", Topics: 1},
}

var testQuestions = []config.QuestionEntry{
	{ID: 1, Answer: 1}, {ID: 2, Answer: 2}, {ID: 3, Answer: 1}, {ID: 4, Answer: 1}, {ID: 5, Answer: 2},
	{ID: 6, Answer: 1}, {ID: 7, Answer: 2}, {ID: 8, Answer: 1}, {ID: 9, Answer: 0}, {ID: 10, Answer: 1},
}

type harness struct {
	db         *gorm.DB
	mailer     *fakeMailer
	cache      *memoryCache
	dispatcher *NotificationDispatcher
	certs      *CertificateService
	progress   *ProgressService
	exam       *ExamService
	userRepo   *repository.UserRepository
	certRepo   *repository.CertificateRepository
	storage    *StorageService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithDB(t, testutil.NewDB(t))
}

func newHarnessWithDB(t *testing.T, db *gorm.DB) *harness {
	t.Helper()

	cat, err := catalog.NewCatalog(testModules)
	require.NoError(t, err)
	key, err := catalog.NewAnswerKey(testQuestions)
	require.NoError(t, err)

	h := &harness{
		db:         db,
		mailer:     &fakeMailer{},
		cache:      newMemoryCache(),
		dispatcher: NewNotificationDispatcher(2),
		userRepo:   repository.NewUserRepository(db),
		certRepo:   repository.NewCertificateRepository(db),
		storage:    &StorageService{Provider: &LocalStorageProvider{Config: &config.StorageConfig{LocalPath: t.TempDir()}}},
	}
	h.dispatcher.backoff = 0
	t.Cleanup(func() { h.dispatcher.Close(context.Background()) })

	progressRepo := repository.NewProgressRepository(db)
	h.certs = NewCertificateService(h.certRepo, h.userRepo, cat, h.storage, h.mailer, h.dispatcher, h.cache, "MyPyMEs Training")
	evaluator := NewCompletionEvaluator(progressRepo, cat, h.certs)
	h.progress = NewProgressService(db, progressRepo, h.userRepo, h.certRepo, cat, evaluator, h.certs, h.cache)
	h.exam = NewExamService(db, repository.NewExamRepository(db), h.userRepo, h.certRepo, key, 70, h.certs, h.cache)
	return h
}

func (h *harness) countRows(t *testing.T, m interface{}, userID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(m).Where("user_id = ?", userID).Count(&n).Error)
	return n
}
