package contract

import (
	"context"

	"property-insight-be/internal/entity"
	"property-insight-be/internal/repository/specification"
)

type TriggerRecordRepository interface {
	Create(ctx context.Context, record *entity.TriggerRecord) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.TriggerRecord, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
