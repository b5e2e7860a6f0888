package service

import (
	"sort"

	"property-insight-be/internal/config"
	"property-insight-be/internal/entity"
)

// TriggerPolicy decides whether accumulated feedback is bad enough to force
// a fresh analysis run.
type TriggerPolicy struct {
	NegativeRatio     float64
	MinSectionSamples int
	RatingFloor       float64
	MinRatings        int
}

func NewTriggerPolicy(cfg config.TriggerConfig) TriggerPolicy {
	return TriggerPolicy{
		NegativeRatio:     cfg.NegativeRatio,
		MinSectionSamples: cfg.MinSectionSamples,
		RatingFloor:       cfg.RatingFloor,
		MinRatings:        cfg.MinRatings,
	}
}

// Breach is a threshold crossing found in an aggregate.
type Breach struct {
	Reason  entity.TriggerReason
	Details map[string]interface{}
}

// Evaluate returns the breach to act on, if any. Among breaching sections the
// one with the highest negative ratio wins, ties broken by section id; a
// section breach takes precedence over a low average rating.
func (p TriggerPolicy) Evaluate(agg entity.FeedbackAggregate) (*Breach, bool) {
	ids := make([]string, 0, len(agg.Sections))
	for id := range agg.Sections {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var (
		worstId    string
		worstRatio float64
		found      bool
	)
	for _, id := range ids {
		tally := agg.Sections[id]
		if tally.Total() < p.MinSectionSamples || tally.Total() == 0 {
			continue
		}
		ratio := tally.NegativeRatio()
		if ratio <= p.NegativeRatio {
			continue
		}
		if !found || ratio > worstRatio {
			worstId, worstRatio, found = id, ratio, true
		}
	}
	if found {
		tally := agg.Sections[worstId]
		return &Breach{
			Reason: entity.TriggerReasonNegativeSection,
			Details: map[string]interface{}{
				"reason":        string(entity.TriggerReasonNegativeSection),
				"sectionId":     worstId,
				"negativeRatio": worstRatio,
				"negativeCount": tally.Negative,
				"sampleCount":   tally.Total(),
				"threshold":     p.NegativeRatio,
			},
		}, true
	}

	if count := agg.RatingCount(); count > 0 && count >= p.MinRatings && agg.AverageRating < p.RatingFloor {
		return &Breach{
			Reason: entity.TriggerReasonLowRating,
			Details: map[string]interface{}{
				"reason":        string(entity.TriggerReasonLowRating),
				"averageRating": agg.AverageRating,
				"ratingCount":   count,
				"threshold":     p.RatingFloor,
			},
		}, true
	}

	return nil, false
}
