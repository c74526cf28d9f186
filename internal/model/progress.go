package model

import (
	"time"
)

// TopicProgress 用户对某模块下某主题的阅读进度
type TopicProgress struct {
	ID          uint       `gorm:"primaryKey" json:"-"`
	UserID      uint       `gorm:"not null;uniqueIndex:idx_progress_user_topic,priority:1" json:"-"`
	ModuleID    string     `gorm:"size:64;not null;uniqueIndex:idx_progress_user_topic,priority:2" json:"moduleId"`
	TopicID     string     `gorm:"size:64;not null;uniqueIndex:idx_progress_user_topic,priority:3" json:"topicId"`
	Completed   bool       `gorm:"not null;default:false" json:"completed"`
	CompletedAt *time.Time `json:"completedAt"`
	CreatedAt   time.Time  `json:"-"`
	UpdatedAt   time.Time  `json:"-"`
}

func (TopicProgress) TableName() string {
	return "user_progress"
}

// ContentRating 1-5 分的内容评分，同一主题只保留最新一次
type ContentRating struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_rating_user_topic,priority:1" json:"-"`
	ModuleID  string    `gorm:"size:64;not null;uniqueIndex:idx_rating_user_topic,priority:2" json:"moduleId"`
	TopicID   string    `gorm:"size:64;not null;uniqueIndex:idx_rating_user_topic,priority:3" json:"topicId"`
	Rating    int       `gorm:"not null" json:"rating"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (ContentRating) TableName() string {
	return "content_ratings"
}

// CompletedModule 行存在即表示模块已完成，唯一索引保证每个用户每个模块只有一行
type CompletedModule struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_completed_user_module,priority:1" json:"-"`
	ModuleID    string    `gorm:"size:64;not null;uniqueIndex:idx_completed_user_module,priority:2" json:"moduleId"`
	CompletedAt time.Time `gorm:"not null" json:"completedAt"`
}

func (CompletedModule) TableName() string {
	return "completed_modules"
}
