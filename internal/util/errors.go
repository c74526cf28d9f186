package util

import (
	"errors"
	"fmt"
)

// 错误类别，具体错误通过 %w 包装类别，调用方用 errors.Is 判断
var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrPersistence     = errors.New("persistence error")
	ErrNotification    = errors.New("notification error")
)

var (
	ErrUserNotFound        = fmt.Errorf("%w: 用户不存在", ErrNotFound)
	ErrEmailRegistered     = fmt.Errorf("%w: 该邮箱已被注册", ErrConflict)
	ErrInvalidCredentials  = fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
	ErrMissingIdentity     = fmt.Errorf("%w: no authenticated user", ErrUnauthenticated)
	ErrEmptyAnswers        = fmt.Errorf("%w: exam answers are required", ErrValidation)
	ErrRatingOutOfRange    = fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	ErrCertificateNotFound = fmt.Errorf("%w: certificate not found", ErrNotFound)
	ErrInvalidResetToken   = fmt.Errorf("%w: reset token is invalid or expired", ErrValidation)
)

// Validationf 构造参数校验错误
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Persistence 包装数据库错误，原始信息只进日志
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}
