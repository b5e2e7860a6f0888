package mapper

import (
	"encoding/json"

	"property-insight-be/internal/entity"
	"property-insight-be/internal/model"

	"gorm.io/datatypes"
)

type TriggerMapper struct{}

func NewTriggerMapper() *TriggerMapper {
	return &TriggerMapper{}
}

func (m *TriggerMapper) ToModel(e *entity.TriggerRecord) (*model.TriggerRecord, error) {
	if e == nil {
		return nil, nil
	}

	var details datatypes.JSON
	if e.Details != nil {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			return nil, err
		}
		details = datatypes.JSON(raw)
	}

	var baseline datatypes.JSON
	if e.Baseline != nil {
		raw, err := json.Marshal(e.Baseline)
		if err != nil {
			return nil, err
		}
		baseline = datatypes.JSON(raw)
	}

	return &model.TriggerRecord{
		Id:          e.Id,
		SessionId:   e.SessionId,
		TriggeredAt: e.TriggeredAt,
		Reason:      string(e.Reason),
		Details:     details,
		Baseline:    baseline,
	}, nil
}

func (m *TriggerMapper) ToEntity(t *model.TriggerRecord) *entity.TriggerRecord {
	if t == nil {
		return nil
	}

	var details map[string]interface{}
	if len(t.Details) > 0 {
		// A corrupt details column leaves Details nil rather than failing the read.
		_ = json.Unmarshal(t.Details, &details)
	}

	var baseline *entity.FeedbackBaseline
	if len(t.Baseline) > 0 {
		var b entity.FeedbackBaseline
		if err := json.Unmarshal(t.Baseline, &b); err == nil {
			baseline = &b
		}
	}

	return &entity.TriggerRecord{
		Id:          t.Id,
		SessionId:   t.SessionId,
		TriggeredAt: t.TriggeredAt,
		Reason:      entity.TriggerReason(t.Reason),
		Details:     details,
		Baseline:    baseline,
	}
}

func (m *TriggerMapper) ToEntities(models []*model.TriggerRecord) []*entity.TriggerRecord {
	entities := make([]*entity.TriggerRecord, len(models))
	for i, t := range models {
		entities[i] = m.ToEntity(t)
	}
	return entities
}
