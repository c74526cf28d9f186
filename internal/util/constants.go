package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
	// CertificateDateFormat 证书及邮件中展示的日期格式
	CertificateDateFormat = "02/01/2006"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

const (
	MimeHTML = "text/html; charset=utf-8"
)
