package service

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"training_backend/internal/config"
	"training_backend/internal/model"
	"training_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func newTestMailer(enabled bool) (*SMTPMailer, *[]capturedMail) {
	var sent []capturedMail
	m := NewSMTPMailer(config.MailConfig{
		Enabled:  enabled,
		Host:     "smtp.example.com",
		Port:     587,
		From:     "no-reply@example.com",
		FromName: "Capacitación",
		AppName:  "MyPyMEs Training",
	}, "https://training.example.com")
	m.now = func() time.Time { return testTime }
	m.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, capturedMail{addr: addr, from: from, to: to, msg: string(msg)})
		return nil
	}
	return m, &sent
}

func TestSMTPMailer_SendCertificate(t *testing.T) {
	m, sent := newTestMailer(true)
	score := 90.0

	err := m.SendCertificate(context.Background(), "ana@example.com", "Ana", model.CertificateCertified, &score)
	require.NoError(t, err)
	require.Len(t, *sent, 1)

	mail := (*sent)[0]
	assert.Equal(t, "smtp.example.com:587", mail.addr)
	assert.Equal(t, "no-reply@example.com", mail.from)
	assert.Equal(t, []string{"ana@example.com"}, mail.to)
	assert.Contains(t, mail.msg, "Content-Type: multipart/alternative")
	assert.Contains(t, mail.msg, "text/plain; charset=UTF-8")
	assert.Contains(t, mail.msg, "text/html; charset=UTF-8")
	assert.Contains(t, mail.msg, "Certificado de Usuario Calificado")
	assert.Contains(t, mail.msg, "90%")
	assert.Contains(t, mail.msg, "15/06/2025")
	// 非 ASCII 主题按 RFC 2047 编码
	assert.Contains(t, mail.msg, "Subject: =?utf-8?q?")
}

func TestSMTPMailer_Disabled(t *testing.T) {
	m, sent := newTestMailer(false)

	require.NoError(t, m.SendCertificate(context.Background(), "a@example.com", "A", model.CertificateKnowledge, nil))
	require.NoError(t, m.SendPasswordReset(context.Background(), "a@example.com", "A", "https://x/reset"))
	assert.Empty(t, *sent)
}

func TestSMTPMailer_SendFailureIsNotificationError(t *testing.T) {
	m, _ := newTestMailer(true)
	m.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("421 service not available")
	}

	err := m.SendPasswordReset(context.Background(), "a@example.com", "A", "https://x/reset")
	assert.ErrorIs(t, err, util.ErrNotification)
}

func TestSMTPMailer_ReloadConfig(t *testing.T) {
	m, sent := newTestMailer(false)

	m.ReloadConfig(&config.Config{
		Server: config.ServerConfig{BaseURL: "https://new.example.com"},
		Mail:   config.MailConfig{Enabled: true, Host: "mail.internal", Port: 25, From: "x@example.com", AppName: "App"},
	})
	require.NoError(t, m.SendPasswordReset(context.Background(), "a@example.com", "A", "https://new.example.com/reset-password?token=t"))
	require.Len(t, *sent, 1)
	assert.Equal(t, "mail.internal:25", (*sent)[0].addr)
	assert.True(t, strings.Contains((*sent)[0].msg, "https://new.example.com/reset-password?token=t"))
}

func TestNotificationDispatcher_RetriesUntilSuccess(t *testing.T) {
	d := NewNotificationDispatcher(1)
	d.backoff = time.Millisecond
	defer d.Close(context.Background())

	var calls int32
	require.NoError(t, d.Dispatch("flaky", func(ctx context.Context) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("temporary")
		}
		return nil
	}))
	d.Wait()
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestNotificationDispatcher_GivesUpAfterMaxRetries(t *testing.T) {
	d := NewNotificationDispatcher(1)
	d.backoff = 0
	defer d.Close(context.Background())

	var calls int32
	require.NoError(t, d.Dispatch("broken", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("permanent")
	}))
	d.Wait()
	assert.EqualValues(t, d.maxRetries+1, atomic.LoadInt32(&calls))
}

func TestNotificationDispatcher_RecoversPanics(t *testing.T) {
	d := NewNotificationDispatcher(1)
	defer d.Close(context.Background())

	require.NoError(t, d.Dispatch("panics", func(ctx context.Context) error {
		panic("boom")
	}))
	d.Wait()

	var ran int32
	require.NoError(t, d.Dispatch("after", func(ctx context.Context) error {
		atomic.StoreInt32(&ran, 1)
		return nil
	}))
	d.Wait()
	assert.EqualValues(t, 1, atomic.LoadInt32(&ran))
}

func TestNotificationDispatcher_CloseRejectsNewJobs(t *testing.T) {
	d := NewNotificationDispatcher(2)

	var done int32
	require.NoError(t, d.Dispatch("slow", func(ctx context.Context) error {
		time.Sleep(20 * time.Millisecond)
		atomic.StoreInt32(&done, 1)
		return nil
	}))

	require.NoError(t, d.Close(context.Background()))
	assert.EqualValues(t, 1, atomic.LoadInt32(&done), "close drains in-flight jobs")

	err := d.Dispatch("late", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrDispatcherClosed)
}

func TestNotificationDispatcher_CloseTimeoutCancelsJobs(t *testing.T) {
	d := NewNotificationDispatcher(1)

	require.NoError(t, d.Dispatch("stuck", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
