// Package fixtures provides producer payloads matched to the default review
// gate catalog, for tests that drive workflows through the pipeline.
package fixtures

import (
	"github.com/reviewflow/reviewflow/review"
	"github.com/reviewflow/reviewflow/types"
)

// PassingPayload returns a producer payload that satisfies every
// auto-approval threshold of the given default-catalog gate.
func PassingPayload(t review.CheckpointType) types.Attrs {
	switch t {
	case review.CheckpointIntakeReview:
		return types.Attrs{
			"completeness_score":      types.Number(0.95),
			"missing_required_fields": types.Int(0),
			"species":                 types.String("Mus musculus"),
			"total_animals":           types.Int(120),
		}
	case review.CheckpointRegulatoryReview:
		return types.Attrs{
			"pain_category_confidence":   types.Number(0.9),
			"three_rs_sections_complete": types.Int(3),
			"pain_category":              types.String("D"),
		}
	case review.CheckpointStatisticalReview:
		return types.Attrs{
			"power":                 types.Number(0.85),
			"sample_size_justified": types.Bool(true),
			"test":                  types.String("two-way ANOVA"),
		}
	case review.CheckpointVeterinaryReview:
		return types.Attrs{
			"drug_doses_validated": types.Bool(true),
			"endpoints_defined":    types.Bool(true),
			"critical_issues":      types.Int(0),
		}
	case review.CheckpointFinalReview:
		return types.Attrs{
			"completeness_score": types.Number(0.97),
			"consistency_errors": types.Int(0),
		}
	}
	return types.Attrs{}
}

// FailingIntakePayload misses the intake completeness threshold and drops a
// required field, so auto-approval reports both reasons.
func FailingIntakePayload() types.Attrs {
	return types.Attrs{
		"completeness_score": types.Number(0.5),
	}
}

// ProtocolInput is a minimal workflow input document.
func ProtocolInput() types.Attrs {
	return types.Attrs{
		"title":   types.String("Evaluation of compound X in a murine sepsis model"),
		"species": types.String("Mus musculus"),
	}
}
