package model

import (
	"time"

	"gorm.io/datatypes"
)

// ExamAttempt 一次交卷的汇总
type ExamAttempt struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"index;not null" json:"-"`
	Correct     int            `gorm:"not null" json:"correct"`
	Total       int            `gorm:"not null" json:"total"`
	Score       float64        `gorm:"not null" json:"score"`
	Passed      bool           `gorm:"not null" json:"passed"`
	Answers     datatypes.JSON `json:"answers"`
	SubmittedAt time.Time      `gorm:"not null" json:"submittedAt"`
}

func (ExamAttempt) TableName() string {
	return "exam_attempts"
}

// ExamAnswer 逐题作答记录，只追加不去重
type ExamAnswer struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"index;not null" json:"-"`
	AttemptID      uint      `gorm:"index;not null" json:"attemptId"`
	QuestionID     int       `gorm:"not null" json:"questionId"`
	SelectedAnswer int       `gorm:"not null" json:"selectedAnswer"`
	IsCorrect      bool      `gorm:"not null" json:"isCorrect"`
	SubmittedAt    time.Time `gorm:"not null" json:"submittedAt"`
}

func (ExamAnswer) TableName() string {
	return "exam_answers"
}
