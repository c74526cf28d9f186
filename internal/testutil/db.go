// Package testutil 为仓储层和服务层测试提供带正式表结构的 sqlite 库
package testutil

import (
	"path/filepath"
	"testing"

	"training_backend/internal/model"
	"training_backend/pkg/database"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB 每次调用返回独立的内存库；单连接保证 :memory: 库在整个测试期间可见
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// NewFileDB 基于临时文件的多连接库，事务可在多个 goroutine 间真正并发
func NewFileDB(t testing.TB, conns int) *gorm.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") +
		"?_busy_timeout=10000&_journal_mode=WAL&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(conns)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func CreateUser(t testing.TB, db *gorm.DB, email string) *model.User {
	t.Helper()
	user := &model.User{
		Name:     "Ana Pérez",
		Email:    email,
		Password: "not-a-real-hash",
		Country:  "Ecuador",
		City:     "Quito",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}
