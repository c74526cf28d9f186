package model

import (
	"time"
)

type CertificateType string

const (
	CertificateKnowledge CertificateType = "knowledge"
	CertificateCertified CertificateType = "certified"
)

func (t CertificateType) Valid() bool {
	return t == CertificateKnowledge || t == CertificateCertified
}

// DisplayName 证书在邮件和证书页上的名称
func (t CertificateType) DisplayName() string {
	if t == CertificateKnowledge {
		return "Certificado de Conocimiento"
	}
	return "Certificado de Usuario Calificado"
}

// swagger:model Certificate
type Certificate struct {
	ID       uint            `gorm:"primaryKey" json:"id"`
	Code     string          `gorm:"size:36;uniqueIndex;not null" json:"code"`
	UserID   uint            `gorm:"index;not null" json:"-"`
	Type     CertificateType `gorm:"column:certificate_type;size:20;index;not null" json:"type"`
	ModuleID *string         `gorm:"size:64" json:"module"`
	Score    *float64        `json:"score"`
	// 证书归档地址，发放后异步写入
	DocumentURL string    `gorm:"size:255" json:"documentUrl,omitempty"`
	IssuedAt    time.Time `gorm:"index;not null" json:"issuedAt"`
}

func (Certificate) TableName() string {
	return "certificates"
}
