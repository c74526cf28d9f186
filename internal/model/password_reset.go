package model

import "time"

type PasswordReset struct {
	ID        uint      `gorm:"primaryKey"`
	Email     string    `gorm:"size:100;uniqueIndex;not null"`
	Token     string    `gorm:"size:64;index;not null"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (PasswordReset) TableName() string {
	return "password_resets"
}
