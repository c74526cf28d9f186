package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"training_backend/internal/config"
	"training_backend/internal/model"
	"training_backend/internal/repository"
	"training_backend/internal/util"
	"training_backend/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TokenBlacklist 注销令牌存储，Redis 未启用时为 nil，注销只在客户端生效
type TokenBlacklist interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type RegisterInput struct {
	Name         string `json:"name" binding:"required"`
	Email        string `json:"email" binding:"required"`
	Password     string `json:"password" binding:"required"`
	Phone        string `json:"phone" binding:"required"`
	BusinessType string `json:"businessType" binding:"required"`
	Country      string `json:"country" binding:"required"`
	Province     string `json:"province" binding:"required"`
	City         string `json:"city" binding:"required"`
}

type AuthResult struct {
	Token    string            `json:"token"`
	User     *model.User       `json:"user"`
	Progress *ProgressSnapshot `json:"progress,omitempty"`
}

type AuthService struct {
	DB        *gorm.DB
	UserRepo  *repository.UserRepository
	ResetRepo *repository.PasswordResetRepository
	Progress  *ProgressService
	Mailer    Mailer
	Tokens    TokenBlacklist
	Cfg       *config.Config

	now func() time.Time
}

func NewAuthService(
	db *gorm.DB,
	userRepo *repository.UserRepository,
	resetRepo *repository.PasswordResetRepository,
	progress *ProgressService,
	mailer Mailer,
	tokens TokenBlacklist,
	cfg *config.Config,
) *AuthService {
	return &AuthService{
		DB:        db,
		UserRepo:  userRepo,
		ResetRepo: resetRepo,
		Progress:  progress,
		Mailer:    mailer,
		Tokens:    tokens,
		Cfg:       cfg,
		now:       time.Now,
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", util.Validationf("invalid email address")
	}
	return email, nil
}

func (s *AuthService) checkPassword(password string) error {
	if minLen := s.Cfg.Auth.PasswordMinLength; utf8.RuneCountInString(password) < minLen {
		return util.Validationf("password must be at least %d characters", minLen)
	}
	return nil
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := s.checkPassword(in.Password); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		Password:     string(hashedPassword),
		Phone:        strings.TrimSpace(in.Phone),
		BusinessType: strings.TrimSpace(in.BusinessType),
		Country:      strings.TrimSpace(in.Country),
		Province:     strings.TrimSpace(in.Province),
		City:         strings.TrimSpace(in.City),
	}
	if err := s.UserRepo.Create(ctx, user); err != nil {
		if errors.Is(err, util.ErrConflict) {
			return nil, err
		}
		return nil, util.Persistence("create user", err)
	}

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return nil, err
	}
	logger.Log.Info("User registered", zap.Uint("user_id", user.ID))
	return &AuthResult{Token: token, User: user}, nil
}

// Login 成功时同时返回进度快照，前端据此恢复状态
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, util.Validationf("email and password are required")
	}

	user, err := s.UserRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, util.ErrInvalidCredentials
		}
		return nil, util.Persistence("find user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, util.ErrInvalidCredentials
	}

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.Progress.GetProgressSnapshot(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user, Progress: snapshot}, nil
}

// Logout 将令牌 ID 加入黑名单直到其自然过期
func (s *AuthService) Logout(ctx context.Context, claims *util.Claims) error {
	if claims == nil {
		return util.ErrMissingIdentity
	}
	if s.Tokens == nil || claims.ID == "" {
		return nil
	}
	ttl := s.Cfg.JWT.ExpireTime
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if err := s.Tokens.Revoke(ctx, claims.ID, ttl); err != nil {
		return util.Persistence("revoke token", err)
	}
	return nil
}

func (s *AuthService) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if s.Tokens == nil || tokenID == "" {
		return false, nil
	}
	return s.Tokens.IsRevoked(ctx, tokenID)
}

// Verify 返回当前用户及其进度
func (s *AuthService) Verify(ctx context.Context, userID uint) (*AuthResult, error) {
	if userID == 0 {
		return nil, util.ErrMissingIdentity
	}
	user, err := s.UserRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, util.ErrMissingIdentity
		}
		return nil, util.Persistence("find user", err)
	}
	snapshot, err := s.Progress.GetProgressSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Progress: snapshot}, nil
}

func newResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// ForgotPassword 邮箱不存在时同样返回成功，不暴露账号是否存在
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return util.Validationf("email is required")
	}

	user, err := s.UserRepo.FindByEmail(ctx, email)
	if errors.Is(err, util.ErrNotFound) {
		return nil
	}
	if err != nil {
		return util.Persistence("find user", err)
	}

	token, err := newResetToken()
	if err != nil {
		return err
	}
	if err := s.ResetRepo.Save(ctx, user.Email, token, s.now().Add(s.Cfg.Auth.ResetTokenTTL)); err != nil {
		return util.Persistence("save reset token", err)
	}

	if s.Mailer == nil {
		return nil
	}
	link := strings.TrimRight(s.Cfg.Server.BaseURL, "/") + "/reset-password?token=" + token
	if err := s.Mailer.SendPasswordReset(ctx, user.Email, user.Name, link); err != nil {
		logger.Log.Error("Failed to send password reset email", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	return nil
}

// ResetPassword 令牌一次性使用，密码更新与令牌删除在同一事务
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	if token == "" {
		return util.ErrInvalidResetToken
	}
	if err := s.checkPassword(password); err != nil {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		resetRepo := s.ResetRepo.WithTx(tx)
		reset, err := resetRepo.FindValid(ctx, token, s.now())
		if err != nil {
			if errors.Is(err, util.ErrValidation) {
				return err
			}
			return util.Persistence("find reset token", err)
		}
		userRepo := s.UserRepo.WithTx(tx)
		user, err := userRepo.FindByEmail(ctx, reset.Email)
		if err != nil {
			if errors.Is(err, util.ErrNotFound) {
				return util.ErrInvalidResetToken
			}
			return util.Persistence("find user", err)
		}
		if err := userRepo.UpdatePassword(ctx, user.ID, string(hashed)); err != nil {
			return util.Persistence("update password", err)
		}
		if err := resetRepo.Delete(ctx, reset.ID); err != nil {
			return util.Persistence("delete reset token", err)
		}
		return nil
	})
}
