package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"training_backend/internal/catalog"
	"training_backend/internal/model"
	"training_backend/internal/repository"
	"training_backend/internal/util"
	"training_backend/pkg/logger"
	"training_backend/pkg/monitoring"
	"training_backend/pkg/tracing"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CertificateView 证书对外展示结构，日期按 dd/mm/yyyy 输出
type CertificateView struct {
	ID          uint                  `json:"id"`
	Code        string                `json:"code"`
	Type        model.CertificateType `json:"type"`
	TypeName    string                `json:"typeName"`
	Module      *string               `json:"module"`
	Score       *float64              `json:"score"`
	Date        string                `json:"date"`
	IssuedAt    time.Time             `json:"issuedAt"`
	DocumentURL string                `json:"documentUrl,omitempty"`
}

func NewCertificateView(c model.Certificate) CertificateView {
	return CertificateView{
		ID:          c.ID,
		Code:        c.Code,
		Type:        c.Type,
		TypeName:    c.Type.DisplayName(),
		Module:      c.ModuleID,
		Score:       c.Score,
		Date:        c.IssuedAt.Format(util.CertificateDateFormat),
		IssuedAt:    c.IssuedAt,
		DocumentURL: c.DocumentURL,
	}
}

// VerifiedCertificate 公开验证接口返回，不含邮箱等个人信息
type VerifiedCertificate struct {
	CertificateView
	HolderName string `json:"holderName"`
}

type CertificateService struct {
	CertRepo   *repository.CertificateRepository
	UserRepo   *repository.UserRepository
	Catalog    *catalog.Catalog
	Storage    *StorageService
	Mailer     Mailer
	Dispatcher *NotificationDispatcher
	Cache      SnapshotStore
	AppName    string

	now func() time.Time
}

func NewCertificateService(
	certRepo *repository.CertificateRepository,
	userRepo *repository.UserRepository,
	cat *catalog.Catalog,
	storage *StorageService,
	mailer Mailer,
	dispatcher *NotificationDispatcher,
	cache SnapshotStore,
	appName string,
) *CertificateService {
	return &CertificateService{
		CertRepo:   certRepo,
		UserRepo:   userRepo,
		Catalog:    cat,
		Storage:    storage,
		Mailer:     mailer,
		Dispatcher: dispatcher,
		Cache:      cache,
		AppName:    appName,
		now:        time.Now,
	}
}

// Issue 在调用方事务中写入证书；是否允许重复发放由调用方保证
func (s *CertificateService) Issue(ctx context.Context, tx *gorm.DB, userID uint, kind model.CertificateType, moduleID *string, score *float64) (*model.Certificate, error) {
	if userID == 0 {
		return nil, util.ErrMissingIdentity
	}
	if !kind.Valid() {
		return nil, util.Validationf("unknown certificate type %q", kind)
	}

	cert := &model.Certificate{
		Code:     model.GenerateUUID(),
		UserID:   userID,
		Type:     kind,
		ModuleID: moduleID,
		Score:    score,
		IssuedAt: s.now(),
	}
	if err := s.CertRepo.WithTx(tx).Create(ctx, cert); err != nil {
		return nil, util.Persistence("insert certificate", err)
	}
	return cert, nil
}

// Announce 必须在事务提交后调用；归档和邮件都在通知协程池中完成，失败不影响调用方
func (s *CertificateService) Announce(ctx context.Context, cert *model.Certificate) {
	monitoring.CertificatesIssued.WithLabelValues(string(cert.Type)).Inc()
	logger.Log.Info("Certificate issued",
		zap.Uint("user_id", cert.UserID),
		zap.String("type", string(cert.Type)),
		zap.String("code", cert.Code))

	if s.Dispatcher == nil {
		return
	}

	issued := *cert
	err := s.Dispatcher.Dispatch("certificate:"+issued.Code, func(ctx context.Context) error {
		user, err := s.UserRepo.FindByID(ctx, issued.UserID)
		if err != nil {
			return err
		}
		if issued.DocumentURL == "" {
			s.archive(ctx, &issued, user)
		}
		if s.Mailer == nil {
			return nil
		}
		return s.Mailer.SendCertificate(ctx, user.Email, user.Name, issued.Type, issued.Score)
	})
	if err != nil {
		logger.Log.Warn("Certificate notification not dispatched",
			zap.Uint("user_id", cert.UserID),
			zap.String("code", cert.Code),
			zap.Error(err))
	}
}

// archive 渲染证书并上传，成功后回写 document_url
func (s *CertificateService) archive(ctx context.Context, cert *model.Certificate, user *model.User) {
	if s.Storage == nil {
		return
	}
	doc, err := s.render(cert, user)
	if err != nil {
		logger.Log.Error("Failed to render certificate", zap.String("code", cert.Code), zap.Error(err))
		return
	}

	filename := fmt.Sprintf("certificates/%d/%s.html", cert.UserID, cert.Code)
	url, err := s.Storage.Upload(ctx, filename, bytes.NewReader(doc), int64(len(doc)), util.MimeHTML)
	if err != nil {
		logger.Log.Error("Failed to archive certificate", zap.String("code", cert.Code), zap.Error(err))
		return
	}
	if err := s.CertRepo.UpdateDocumentURL(ctx, cert.ID, url); err != nil {
		logger.Log.Error("Failed to save certificate url", zap.String("code", cert.Code), zap.Error(err))
		if derr := s.Storage.Delete(ctx, filename); derr != nil {
			logger.Log.Warn("Failed to remove orphaned certificate file", zap.String("file", filename), zap.Error(derr))
		}
		return
	}
	cert.DocumentURL = url
	invalidateSnapshot(ctx, s.Cache, cert.UserID)
}

type certificateDocumentData struct {
	AppName     string
	Name        string
	TypeName    string
	ModuleTitle string
	ScoreText   string
	IssuedOn    string
	Code        string
}

func (s *CertificateService) render(cert *model.Certificate, user *model.User) ([]byte, error) {
	data := certificateDocumentData{
		AppName:  s.AppName,
		Name:     user.Name,
		TypeName: cert.Type.DisplayName(),
		IssuedOn: cert.IssuedAt.Format(util.CertificateDateFormat),
		Code:     cert.Code,
	}
	if cert.ModuleID != nil {
		data.ModuleTitle = *cert.ModuleID
		if s.Catalog != nil {
			if m, ok := s.Catalog.Lookup(*cert.ModuleID); ok && m.Title != "" {
				data.ModuleTitle = m.Title
			}
		}
	}
	if cert.Score != nil {
		data.ScoreText = fmt.Sprintf("%.0f%%", *cert.Score)
	}

	var buf bytes.Buffer
	if err := certificateDocument.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *CertificateService) ListForUser(ctx context.Context, userID uint) ([]CertificateView, error) {
	if userID == 0 {
		return nil, util.ErrMissingIdentity
	}
	certs, err := s.CertRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, util.Persistence("list certificates", err)
	}
	views := make([]CertificateView, 0, len(certs))
	for _, c := range certs {
		views = append(views, NewCertificateView(c))
	}
	return views, nil
}

func (s *CertificateService) FindByCode(ctx context.Context, code string) (*VerifiedCertificate, error) {
	if code == "" {
		return nil, util.Validationf("certificate code is required")
	}
	cert, err := s.CertRepo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, err
		}
		return nil, util.Persistence("find certificate", err)
	}
	user, err := s.UserRepo.FindByID(ctx, cert.UserID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, util.ErrCertificateNotFound
		}
		return nil, util.Persistence("find certificate holder", err)
	}
	return &VerifiedCertificate{CertificateView: NewCertificateView(*cert), HolderName: user.Name}, nil
}

// ResendLatest 用户主动触发，同步发送并返回发送错误
func (s *CertificateService) ResendLatest(ctx context.Context, userID uint, kind model.CertificateType) error {
	ctx, span := tracing.StartSpan(ctx, "CertificateService.ResendLatest", userID)
	var err error
	defer func() { tracing.EndSpan(span, err) }()

	if userID == 0 {
		err = util.ErrMissingIdentity
		return err
	}
	if !kind.Valid() {
		err = util.Validationf("unknown certificate type %q", kind)
		return err
	}

	var user *model.User
	if user, err = s.UserRepo.FindByID(ctx, userID); err != nil {
		if !errors.Is(err, util.ErrNotFound) {
			err = util.Persistence("find user", err)
		}
		return err
	}
	var cert *model.Certificate
	if cert, err = s.CertRepo.FindLatestByType(ctx, userID, kind); err != nil {
		if !errors.Is(err, util.ErrNotFound) {
			err = util.Persistence("find certificate", err)
		}
		return err
	}
	if s.Mailer == nil {
		err = fmt.Errorf("%w: mailer not configured", util.ErrNotification)
		return err
	}
	if err = s.Mailer.SendCertificate(ctx, user.Email, user.Name, cert.Type, cert.Score); err != nil {
		monitoring.NotificationsSent.WithLabelValues("failed").Inc()
		if !errors.Is(err, util.ErrNotification) {
			err = fmt.Errorf("%w: %v", util.ErrNotification, err)
		}
		return err
	}
	monitoring.NotificationsSent.WithLabelValues("sent").Inc()
	return nil
}

// Document 渲染证书 HTML，只允许证书持有人访问
func (s *CertificateService) Document(ctx context.Context, userID, certID uint) ([]byte, error) {
	if userID == 0 {
		return nil, util.ErrMissingIdentity
	}
	cert, err := s.CertRepo.FindForUser(ctx, userID, certID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, err
		}
		return nil, util.Persistence("find certificate", err)
	}
	user, err := s.UserRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, err
		}
		return nil, util.Persistence("find user", err)
	}
	doc, err := s.render(cert, user)
	if err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	return doc, nil
}
