package model

// swagger:model User
type User struct {
	BaseModel
	Name         string `gorm:"size:100;not null" json:"name"`
	Email        string `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Password     string `gorm:"size:100;not null" json:"-"`
	Phone        string `gorm:"size:30" json:"phone"`
	BusinessType string `gorm:"size:100" json:"businessType"`
	Country      string `gorm:"size:100" json:"country"`
	Province     string `gorm:"size:100" json:"province"`
	City         string `gorm:"size:100" json:"city"`
	// 仅在首次通过考试时由阅卷流程置为 true
	ExamPassed bool `gorm:"not null;default:false" json:"examPassed"`
}

func (User) TableName() string {
	return "users"
}
