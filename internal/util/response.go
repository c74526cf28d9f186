package util

import (
	"errors"
	"net/http"
	"strings"

	"training_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error",
		zap.String("path", c.FullPath()),
		zap.Error(err))
	InternalServerError(c)
}

// RespondError 按错误类别映射 HTTP 状态码，持久化等内部错误不向调用方透出细节
func RespondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		BadRequest(c, publicMessage(err))
	case errors.Is(err, ErrUnauthenticated):
		Error(c, http.StatusUnauthorized, publicMessage(err))
	case errors.Is(err, ErrNotFound):
		Error(c, http.StatusNotFound, publicMessage(err))
	case errors.Is(err, ErrConflict):
		Error(c, http.StatusConflict, publicMessage(err))
	case errors.Is(err, ErrNotification):
		logger.Log.Warn("Notification failed", zap.String("path", c.FullPath()), zap.Error(err))
		Error(c, http.StatusBadGateway, "failed to send email")
	default:
		LogInternalError(c, err)
	}
}

// publicMessage 去掉类别前缀，只保留面向用户的描述
func publicMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}
