package repository

import (
	"context"
	"testing"
	"time"

	"training_backend/internal/model"
	"training_backend/internal/testutil"
	"training_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func TestUserRepository_CreateDuplicateEmail(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &model.User{Name: "a", Email: "a@example.com", Password: "x"}))
	err := repo.Create(ctx, &model.User{Name: "b", Email: "a@example.com", Password: "y"})
	assert.ErrorIs(t, err, util.ErrEmailRegistered)
	assert.ErrorIs(t, err, util.ErrConflict)

	_, err = repo.FindByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestUserRepository_MarkExamPassedOnlyOnce(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	user := testutil.CreateUser(t, db, "exam@example.com")
	ctx := context.Background()

	first, err := repo.MarkExamPassed(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := repo.MarkExamPassed(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, second)

	got, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.ExamPassed)
}

func TestUserRepository_LockForUpdate(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "lock@example.com")
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		return NewUserRepository(db).WithTx(tx).LockForUpdate(ctx, user.ID)
	})
	require.NoError(t, err)

	err = NewUserRepository(db).LockForUpdate(ctx, user.ID+100)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestUserRepository_LockForUpdateSQL(t *testing.T) {
	// sqlite 会忽略行锁子句，这里用 MySQL 方言只生成 SQL 不连接
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "training:secret@tcp(127.0.0.1:3306)/training?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)

	var statement string
	require.NoError(t, db.Callback().Query().After("gorm:query").Register("test:capture_sql", func(tx *gorm.DB) {
		statement = tx.Statement.SQL.String()
	}))

	require.NoError(t, NewUserRepository(db).LockForUpdate(context.Background(), 7))
	assert.Contains(t, statement, "FROM `users`")
	assert.Contains(t, statement, "FOR UPDATE")
}

func TestProgressRepository_MarkTopicCompletedIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewProgressRepository(db)
	user := testutil.CreateUser(t, db, "p@example.com")
	ctx := context.Background()

	first := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	later := first.Add(time.Hour)
	require.NoError(t, repo.MarkTopicCompleted(ctx, user.ID, "ventas", "1", first))
	require.NoError(t, repo.MarkTopicCompleted(ctx, user.ID, "ventas", "1", later))
	require.NoError(t, repo.MarkTopicCompleted(ctx, user.ID, "ventas", "2", first))

	n, err := repo.CountCompletedTopics(ctx, user.ID, "ventas")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	rows, err := repo.ListCompletedTopics(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0].TopicID)
	require.NotNil(t, rows[0].CompletedAt)
	assert.True(t, rows[0].CompletedAt.Equal(later), "re-marking refreshes the completion time")
}

func TestProgressRepository_UpsertRatingKeepsLatest(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewProgressRepository(db)
	user := testutil.CreateUser(t, db, "r@example.com")
	ctx := context.Background()

	require.NoError(t, repo.UpsertRating(ctx, user.ID, "inicio", "1", 2, time.Now()))
	require.NoError(t, repo.UpsertRating(ctx, user.ID, "inicio", "1", 5, time.Now()))

	ratings, err := repo.ListRatings(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, ratings, 1)
	assert.Equal(t, 5, ratings[0].Rating)
}

func TestProgressRepository_InsertCompletedModuleOnce(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewProgressRepository(db)
	user := testutil.CreateUser(t, db, "m@example.com")
	ctx := context.Background()

	inserted, err := repo.InsertCompletedModule(ctx, user.ID, "gastos", time.Now())
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.InsertCompletedModule(ctx, user.ID, "gastos", time.Now())
	require.NoError(t, err)
	assert.False(t, inserted)

	exists, err := repo.CompletedModuleExists(ctx, user.ID, "gastos")
	require.NoError(t, err)
	assert.True(t, exists)

	modules, err := repo.ListCompletedModules(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, modules, 1)
}

func TestProgressRepository_WithTxRollsBack(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewProgressRepository(db)
	user := testutil.CreateUser(t, db, "tx@example.com")
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, repo.WithTx(tx).MarkTopicCompleted(ctx, user.ID, "hardware", "1", time.Now()))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	n, err := repo.CountCompletedTopics(ctx, user.ID, "hardware")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCertificateRepository_Lookups(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewCertificateRepository(db)
	owner := testutil.CreateUser(t, db, "owner@example.com")
	other := testutil.CreateUser(t, db, "other@example.com")
	ctx := context.Background()

	module := "inicio"
	score := 80.0
	older := &model.Certificate{Code: model.GenerateUUID(), UserID: owner.ID, Type: model.CertificateKnowledge, ModuleID: &module, IssuedAt: time.Now().Add(-time.Hour)}
	newer := &model.Certificate{Code: model.GenerateUUID(), UserID: owner.ID, Type: model.CertificateCertified, Score: &score, IssuedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))

	certs, err := repo.ListByUser(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, certs, 2)
	assert.Equal(t, newer.ID, certs[0].ID)

	latest, err := repo.FindLatestByType(ctx, owner.ID, model.CertificateKnowledge)
	require.NoError(t, err)
	assert.Equal(t, older.ID, latest.ID)

	_, err = repo.FindLatestByType(ctx, other.ID, model.CertificateKnowledge)
	assert.ErrorIs(t, err, util.ErrCertificateNotFound)

	byCode, err := repo.FindByCode(ctx, newer.Code)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, byCode.ID)

	_, err = repo.FindForUser(ctx, other.ID, newer.ID)
	assert.ErrorIs(t, err, util.ErrNotFound, "certificates are only visible to their owner")

	require.NoError(t, repo.UpdateDocumentURL(ctx, newer.ID, "/uploads/x.html"))
	got, err := repo.FindForUser(ctx, owner.ID, newer.ID)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/x.html", got.DocumentURL)
}

func TestExamRepository_AttemptsAndAnswers(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewExamRepository(db)
	user := testutil.CreateUser(t, db, "e@example.com")
	ctx := context.Background()
	now := time.Now()

	attempt := &model.ExamAttempt{UserID: user.ID, Correct: 1, Total: 10, Score: 10, Answers: []byte(`{"1":1}`), SubmittedAt: now}
	require.NoError(t, repo.CreateAttempt(ctx, attempt))
	require.NoError(t, repo.CreateAnswers(ctx, []model.ExamAnswer{
		{UserID: user.ID, AttemptID: attempt.ID, QuestionID: 2, SelectedAnswer: 0, SubmittedAt: now},
		{UserID: user.ID, AttemptID: attempt.ID, QuestionID: 1, SelectedAnswer: 1, IsCorrect: true, SubmittedAt: now},
	}))
	require.NoError(t, repo.CreateAnswers(ctx, nil))

	answers, err := repo.ListAnswers(ctx, user.ID, attempt.ID)
	require.NoError(t, err)
	require.Len(t, answers, 2)
	assert.Equal(t, 1, answers[0].QuestionID)

	attempts, err := repo.ListAttempts(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.JSONEq(t, `{"1":1}`, string(attempts[0].Answers))
}

func TestPasswordResetRepository_SaveReplacesToken(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPasswordResetRepository(db)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Save(ctx, "a@example.com", "old", now.Add(time.Hour)))
	require.NoError(t, repo.Save(ctx, "a@example.com", "new", now.Add(time.Hour)))

	_, err := repo.FindValid(ctx, "old", now)
	assert.ErrorIs(t, err, util.ErrInvalidResetToken)

	row, err := repo.FindValid(ctx, "new", now)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", row.Email)

	_, err = repo.FindValid(ctx, "new", now.Add(2*time.Hour))
	assert.ErrorIs(t, err, util.ErrInvalidResetToken, "expired tokens are rejected")

	require.NoError(t, repo.Delete(ctx, row.ID))
	_, err = repo.FindValid(ctx, "new", now)
	assert.ErrorIs(t, err, util.ErrInvalidResetToken)
}
