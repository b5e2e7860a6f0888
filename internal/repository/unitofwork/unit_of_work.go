package unitofwork

import (
	"context"

	"property-insight-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	FeedbackRepository() contract.FeedbackRepository
	TriggerRecordRepository() contract.TriggerRecordRepository
	SessionArchiveRepository() contract.SessionArchiveRepository
}

// RepositoryFactory hands out one UnitOfWork per operation.
type RepositoryFactory interface {
	NewUnitOfWork(ctx context.Context) UnitOfWork
}
