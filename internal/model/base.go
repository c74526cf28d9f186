package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// swagger:model
type BaseModel struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func GenerateUUID() string {
	return uuid.New().String()
}

// Migratable 返回需要 AutoMigrate 的全部模型
func Migratable() []interface{} {
	return []interface{}{
		&User{},
		&TopicProgress{},
		&ContentRating{},
		&CompletedModule{},
		&Certificate{},
		&ExamAttempt{},
		&ExamAnswer{},
		&PasswordReset{},
	}
}
