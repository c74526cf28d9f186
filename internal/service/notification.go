package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"runtime/debug"
	"strconv"
	"sync"
	texttemplate "text/template"
	"time"

	"training_backend/internal/config"
	"training_backend/internal/model"
	"training_backend/internal/util"
	"training_backend/pkg/logger"
	"training_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// Mailer 发送证书及账户相关邮件
type Mailer interface {
	SendCertificate(ctx context.Context, to, name string, kind model.CertificateType, score *float64) error
	SendPasswordReset(ctx context.Context, to, name, link string) error
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer 配置可在运行时通过 ReloadConfig 替换
type SMTPMailer struct {
	mu      sync.RWMutex
	cfg     config.MailConfig
	baseURL string

	sendMail sendMailFunc
	now      func() time.Time
}

func NewSMTPMailer(cfg config.MailConfig, baseURL string) *SMTPMailer {
	return &SMTPMailer{
		cfg:      cfg,
		baseURL:  baseURL,
		sendMail: smtp.SendMail,
		now:      time.Now,
	}
}

// ReloadConfig 供配置热加载回调使用
func (m *SMTPMailer) ReloadConfig(cfg *config.Config) {
	m.mu.Lock()
	m.cfg = cfg.Mail
	m.baseURL = cfg.Server.BaseURL
	m.mu.Unlock()
	logger.Log.Info("Mail settings reloaded",
		zap.Bool("enabled", cfg.Mail.Enabled),
		zap.String("host", cfg.Mail.Host))
}

func (m *SMTPMailer) settings() (config.MailConfig, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg, m.baseURL
}

type certificateMailData struct {
	AppName   string
	Name      string
	TypeName  string
	ScoreText string
	IssuedOn  string
	BaseURL   string
}

func (m *SMTPMailer) SendCertificate(ctx context.Context, to, name string, kind model.CertificateType, score *float64) error {
	cfg, baseURL := m.settings()
	data := certificateMailData{
		AppName:  cfg.AppName,
		Name:     name,
		TypeName: kind.DisplayName(),
		IssuedOn: m.now().Format(util.CertificateDateFormat),
		BaseURL:  baseURL,
	}
	if score != nil {
		data.ScoreText = fmt.Sprintf(" con una calificación de %.0f%%", *score)
	}

	subject := fmt.Sprintf("¡Felicitaciones! Has obtenido tu certificado %s", cfg.AppName)
	return m.send(ctx, cfg, to, name, subject, certificateHTML, certificateText, data)
}

type resetMailData struct {
	AppName string
	Name    string
	Link    string
}

func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, name, link string) error {
	cfg, _ := m.settings()
	data := resetMailData{AppName: cfg.AppName, Name: name, Link: link}
	subject := fmt.Sprintf("Recuperación de Contraseña - %s", cfg.AppName)
	return m.send(ctx, cfg, to, name, subject, resetHTML, resetText, data)
}

func (m *SMTPMailer) send(ctx context.Context, cfg config.MailConfig, to, name, subject string,
	htmlTpl *htmltemplate.Template, textTpl *texttemplate.Template, data interface{}) error {
	if !cfg.Enabled {
		logger.Log.Debug("Mail disabled, skipping", zap.String("to", to), zap.String("subject", subject))
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var htmlBody, textBody bytes.Buffer
	if err := htmlTpl.Execute(&htmlBody, data); err != nil {
		return fmt.Errorf("%w: render html: %v", util.ErrNotification, err)
	}
	if err := textTpl.Execute(&textBody, data); err != nil {
		return fmt.Errorf("%w: render text: %v", util.ErrNotification, err)
	}

	msg, err := buildMessage(cfg, to, name, subject, textBody.Bytes(), htmlBody.Bytes())
	if err != nil {
		return fmt.Errorf("%w: build message: %v", util.ErrNotification, err)
	}

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	addr := cfg.Host + ":" + strconv.Itoa(cfg.Port)
	if err := m.sendMail(addr, auth, cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("%w: smtp: %v", util.ErrNotification, err)
	}
	return nil
}

// buildMessage 生成 multipart/alternative 邮件，纯文本在前
func buildMessage(cfg config.MailConfig, to, name, subject string, text, html []byte) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	for _, part := range []struct {
		contentType string
		content     []byte
	}{
		{"text/plain; charset=UTF-8", text},
		{"text/html; charset=UTF-8", html},
	} {
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.contentType},
			"Content-Transfer-Encoding": {"8bit"},
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(part.content); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", cfg.FromName), cfg.From)
	fmt.Fprintf(&msg, "To: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", name), to)
	fmt.Fprintf(&msg, "Reply-To: %s\r\n", cfg.From)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", mw.Boundary())
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

// NotificationJob 在通知协程池中执行，ctx 带有单次任务超时
type NotificationJob func(ctx context.Context) error

var ErrDispatcherClosed = errors.New("notification dispatcher closed")

// NotificationDispatcher 事务提交后异步执行通知，失败只记录日志和指标
type NotificationDispatcher struct {
	workerPool chan struct{}
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewNotificationDispatcher(workers int) *NotificationDispatcher {
	if workers <= 0 {
		workers = 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &NotificationDispatcher{
		workerPool: make(chan struct{}, workers),
		timeout:    30 * time.Second,
		maxRetries: 2,
		backoff:    500 * time.Millisecond,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Dispatch 不阻塞调用方
func (d *NotificationDispatcher) Dispatch(name string, job NotificationJob) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		select {
		case d.workerPool <- struct{}{}:
		case <-d.ctx.Done():
			logger.Log.Warn("Notification dropped on shutdown", zap.String("job", name))
			monitoring.NotificationsSent.WithLabelValues("dropped").Inc()
			return
		}
		defer func() { <-d.workerPool }()
		d.run(name, job)
	}()
	return nil
}

func (d *NotificationDispatcher) run(name string, job NotificationJob) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("Notification job panicked",
				zap.String("job", name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			monitoring.NotificationsSent.WithLabelValues("failed").Inc()
		}
	}()

	var err error
	backoff := d.backoff
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-d.ctx.Done():
				return
			}
		}
		ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
		err = job(ctx)
		cancel()
		if err == nil {
			monitoring.NotificationsSent.WithLabelValues("sent").Inc()
			return
		}
		logger.Log.Warn("Notification attempt failed",
			zap.String("job", name),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	logger.Log.Error("Notification failed", zap.String("job", name), zap.Error(err))
	monitoring.NotificationsSent.WithLabelValues("failed").Inc()
}

// Wait 等待已提交的任务全部结束
func (d *NotificationDispatcher) Wait() {
	d.wg.Wait()
}

// Close 拒绝新任务并等待进行中的任务，ctx 到期后取消剩余任务
func (d *NotificationDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
