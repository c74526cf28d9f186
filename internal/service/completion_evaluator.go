package service

import (
	"context"
	"time"

	"training_backend/internal/catalog"
	"training_backend/internal/model"
	"training_backend/internal/repository"
	"training_backend/internal/util"

	"gorm.io/gorm"
)

type CompletionOutcome int

const (
	OutcomeNotApplicable CompletionOutcome = iota
	OutcomeIncomplete
	OutcomeAlreadyCompleted
	OutcomeNewlyCompleted
)

func (o CompletionOutcome) String() string {
	switch o {
	case OutcomeIncomplete:
		return "incomplete"
	case OutcomeAlreadyCompleted:
		return "already_completed"
	case OutcomeNewlyCompleted:
		return "newly_completed"
	default:
		return "not_applicable"
	}
}

// CompletionEvaluator 判断模块是否完成，首次完成时发放知识证书
type CompletionEvaluator struct {
	ProgressRepo *repository.ProgressRepository
	Catalog      *catalog.Catalog
	Certificates *CertificateService
}

func NewCompletionEvaluator(progressRepo *repository.ProgressRepository, cat *catalog.Catalog, certs *CertificateService) *CompletionEvaluator {
	return &CompletionEvaluator{
		ProgressRepo: progressRepo,
		Catalog:      cat,
		Certificates: certs,
	}
}

// Evaluate 必须在标记主题的同一事务内调用。
// completed_modules 的唯一索引保证并发请求中只有一个能插入成功并发证。
func (e *CompletionEvaluator) Evaluate(ctx context.Context, tx *gorm.DB, userID uint, moduleID string) (CompletionOutcome, *model.Certificate, error) {
	required, ok := e.Catalog.RequiredTopics(moduleID)
	if !ok {
		return OutcomeNotApplicable, nil, nil
	}

	repo := e.ProgressRepo.WithTx(tx)
	count, err := repo.CountCompletedTopics(ctx, userID, moduleID)
	if err != nil {
		return OutcomeNotApplicable, nil, util.Persistence("count completed topics", err)
	}
	if count < int64(required) {
		return OutcomeIncomplete, nil, nil
	}

	exists, err := repo.CompletedModuleExists(ctx, userID, moduleID)
	if err != nil {
		return OutcomeNotApplicable, nil, util.Persistence("check completed module", err)
	}
	if exists {
		return OutcomeAlreadyCompleted, nil, nil
	}

	inserted, err := repo.InsertCompletedModule(ctx, userID, moduleID, time.Now())
	if err != nil {
		return OutcomeNotApplicable, nil, util.Persistence("insert completed module", err)
	}
	if !inserted {
		return OutcomeAlreadyCompleted, nil, nil
	}

	module := moduleID
	cert, err := e.Certificates.Issue(ctx, tx, userID, model.CertificateKnowledge, &module, nil)
	if err != nil {
		return OutcomeNotApplicable, nil, err
	}
	return OutcomeNewlyCompleted, cert, nil
}
