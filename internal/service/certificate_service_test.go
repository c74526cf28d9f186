package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"training_backend/internal/model"
	"training_backend/internal/testutil"
	"training_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCertificateView_FormatsDate(t *testing.T) {
	score := 85.0
	view := NewCertificateView(model.Certificate{
		ID:       3,
		Code:     "abc",
		Type:     model.CertificateCertified,
		Score:    &score,
		IssuedAt: testTime,
	})
	assert.Equal(t, "15/06/2025", view.Date)
	assert.Equal(t, "Certificado de Usuario Calificado", view.TypeName)
	assert.Nil(t, view.Module)
}

func TestAnnounce_ArchivesDocumentAndSendsMail(t *testing.T) {
	h := newHarness(t)
	user := testutil.CreateUser(t, h.db, "archive@example.com")
	ctx := context.Background()

	result, err := h.progress.MarkTopicRead(ctx, user.ID, "gastos", "1")
	require.NoError(t, err)
	require.NotNil(t, result.Certificate)
	h.dispatcher.Wait()

	cert, err := h.certRepo.FindForUser(ctx, user.ID, result.Certificate.ID)
	require.NoError(t, err)
	uid := strconv.FormatUint(uint64(user.ID), 10)
	want := "/uploads/certificates/" + uid + "/" + cert.Code + ".html"
	assert.Equal(t, want, cert.DocumentURL)

	local := h.storage.Provider.(*LocalStorageProvider)
	doc, err := os.ReadFile(filepath.Join(local.Config.LocalPath, "certificates", uid, cert.Code+".html"))
	require.NoError(t, err)
	assert.Contains(t, string(doc), "Ana Pérez")
	assert.Contains(t, string(doc), "Gastos")
	assert.Contains(t, string(doc), cert.Code)

	assert.Len(t, h.mailer.certificates(), 1)
}

func TestAnnounce_MailFailureDoesNotAffectCaller(t *testing.T) {
	h := newHarness(t)
	h.mailer.err = errors.New("smtp down")
	user := testutil.CreateUser(t, h.db, "down@example.com")

	result, err := h.progress.MarkTopicRead(context.Background(), user.ID, "gastos", "1")
	require.NoError(t, err)
	require.NotNil(t, result.Certificate)
	h.dispatcher.Wait()

	assert.EqualValues(t, 1, h.countRows(t, &model.Certificate{}, user.ID))
	assert.EqualValues(t, 1, h.countRows(t, &model.CompletedModule{}, user.ID))
}

func TestResendLatest(t *testing.T) {
	h := newHarness(t)
	user := testutil.CreateUser(t, h.db, "resend@example.com")
	ctx := context.Background()

	err := h.certs.ResendLatest(ctx, user.ID, model.CertificateKnowledge)
	assert.ErrorIs(t, err, util.ErrNotFound)

	err = h.certs.ResendLatest(ctx, user.ID, model.CertificateType("gold"))
	assert.ErrorIs(t, err, util.ErrValidation)

	_, err = h.progress.MarkTopicRead(ctx, user.ID, "gastos", "1")
	require.NoError(t, err)
	h.dispatcher.Wait()

	require.NoError(t, h.certs.ResendLatest(ctx, user.ID, model.CertificateKnowledge))
	assert.Len(t, h.mailer.certificates(), 2)

	h.mailer.err = errors.New("connection refused")
	err = h.certs.ResendLatest(ctx, user.ID, model.CertificateKnowledge)
	assert.ErrorIs(t, err, util.ErrNotification)
}

func TestFindByCode(t *testing.T) {
	h := newHarness(t)
	user := testutil.CreateUser(t, h.db, "verify@example.com")
	ctx := context.Background()

	result, err := h.exam.Submit(ctx, user.ID, answersWithCorrect(9))
	require.NoError(t, err)
	require.NotNil(t, result.Certificate)

	verified, err := h.certs.FindByCode(ctx, result.Certificate.Code)
	require.NoError(t, err)
	assert.Equal(t, "Ana Pérez", verified.HolderName)
	assert.Equal(t, model.CertificateCertified, verified.Type)

	_, err = h.certs.FindByCode(ctx, "does-not-exist")
	assert.ErrorIs(t, err, util.ErrNotFound)

	_, err = h.certs.FindByCode(ctx, "")
	assert.ErrorIs(t, err, util.ErrValidation)
}

func TestDocument_OnlyForOwner(t *testing.T) {
	h := newHarness(t)
	owner := testutil.CreateUser(t, h.db, "owner@example.com")
	other := testutil.CreateUser(t, h.db, "other@example.com")
	ctx := context.Background()

	result, err := h.exam.Submit(ctx, owner.ID, answersWithCorrect(7))
	require.NoError(t, err)
	require.NotNil(t, result.Certificate)

	doc, err := h.certs.Document(ctx, owner.ID, result.Certificate.ID)
	require.NoError(t, err)
	assert.Contains(t, string(doc), "70%")
	assert.Contains(t, string(doc), "evaluación final")

	_, err = h.certs.Document(ctx, other.ID, result.Certificate.ID)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestListForUser(t *testing.T) {
	h := newHarness(t)
	user := testutil.CreateUser(t, h.db, "list@example.com")
	ctx := context.Background()

	views, err := h.certs.ListForUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, views)

	_, err = h.progress.MarkTopicRead(ctx, user.ID, "gastos", "1")
	require.NoError(t, err)
	_, err = h.exam.Submit(ctx, user.ID, answersWithCorrect(10))
	require.NoError(t, err)

	views, err = h.certs.ListForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	kinds := []model.CertificateType{views[0].Type, views[1].Type}
	assert.ElementsMatch(t, []model.CertificateType{model.CertificateKnowledge, model.CertificateCertified}, kinds)
}
