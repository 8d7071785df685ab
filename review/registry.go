package review

import (
	"sort"

	"github.com/reviewflow/reviewflow/types"
)

// CheckpointType identifies one of the review gates in the pipeline.
type CheckpointType string

// The five production review gates, in pipeline order.
const (
	CheckpointIntakeReview      CheckpointType = "intake_review"
	CheckpointRegulatoryReview  CheckpointType = "regulatory_review"
	CheckpointStatisticalReview CheckpointType = "statistical_review"
	CheckpointVeterinaryReview  CheckpointType = "veterinary_review"
	CheckpointFinalReview       CheckpointType = "final_review"
)

// Threshold is one auto-approval condition on a named payload field. Min and
// Max bound a numeric field (inclusive); Equals matches a boolean field. A
// threshold may combine Min and Max; Equals stands alone.
type Threshold struct {
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
	Equals *bool    `json:"equals,omitempty"`
}

// CheckpointConfig is a read-only registry entry describing one review gate.
type CheckpointConfig struct {
	Type               CheckpointType       `json:"type"`
	Name               string               `json:"name"`
	Description        string               `json:"description"`
	RequiredProducers  []string             `json:"required_producers"`
	ReviewInstructions string               `json:"review_instructions"`
	AutoApprove        map[string]Threshold `json:"auto_approve,omitempty"`
	Order              int                  `json:"order"`
}

// Registry is the immutable catalog of checkpoint configurations. It is
// constructed once at process start and is safe for concurrent use without
// synchronization.
type Registry struct {
	byType  map[CheckpointType]CheckpointConfig
	ordered []CheckpointConfig
}

// NewRegistry builds a registry from the given configs. Types must be
// unique and orders must form the exact set {1..n} so the pipeline frontier
// is well defined.
func NewRegistry(configs ...CheckpointConfig) (*Registry, error) {
	if len(configs) == 0 {
		return nil, types.NewError(types.ErrValidation, "registry requires at least one checkpoint config")
	}

	byType := make(map[CheckpointType]CheckpointConfig, len(configs))
	ordered := make([]CheckpointConfig, len(configs))
	copy(ordered, configs)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	for i, cfg := range ordered {
		if cfg.Type == "" {
			return nil, types.NewError(types.ErrValidation, "checkpoint config missing type")
		}
		if cfg.Name == "" {
			return nil, types.NewErrorf(types.ErrValidation, "checkpoint %s missing name", cfg.Type)
		}
		if cfg.Order != i+1 {
			return nil, types.NewErrorf(types.ErrValidation,
				"checkpoint orders must form the set 1..%d, got %d for %s", len(ordered), cfg.Order, cfg.Type)
		}
		if _, dup := byType[cfg.Type]; dup {
			return nil, types.NewErrorf(types.ErrValidation, "duplicate checkpoint type %s", cfg.Type)
		}
		for field, th := range cfg.AutoApprove {
			if th.Min == nil && th.Max == nil && th.Equals == nil {
				return nil, types.NewErrorf(types.ErrValidation,
					"checkpoint %s: auto-approve condition %q has no bound", cfg.Type, field)
			}
			if th.Equals != nil && (th.Min != nil || th.Max != nil) {
				return nil, types.NewErrorf(types.ErrValidation,
					"checkpoint %s: auto-approve condition %q mixes equals with min/max", cfg.Type, field)
			}
		}
		byType[cfg.Type] = cfg
	}

	return &Registry{byType: byType, ordered: ordered}, nil
}

// MustRegistry is NewRegistry that panics on invalid configs. Intended for
// the static default catalog.
func MustRegistry(configs ...CheckpointConfig) *Registry {
	r, err := NewRegistry(configs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Get returns the config for a checkpoint type.
func (r *Registry) Get(t CheckpointType) (CheckpointConfig, error) {
	cfg, ok := r.byType[t]
	if !ok {
		return CheckpointConfig{}, types.NewErrorf(types.ErrInvalidCheckpointType,
			"unknown checkpoint type %q", string(t))
	}
	return cfg, nil
}

// All returns every config in ascending pipeline order.
func (r *Registry) All() []CheckpointConfig {
	out := make([]CheckpointConfig, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Types returns every checkpoint type in ascending pipeline order.
func (r *Registry) Types() []CheckpointType {
	out := make([]CheckpointType, len(r.ordered))
	for i, cfg := range r.ordered {
		out[i] = cfg.Type
	}
	return out
}

// Len returns the number of registered checkpoints.
func (r *Registry) Len() int { return len(r.ordered) }

func f64(v float64) *float64 { return &v }
func boolp(v bool) *bool     { return &v }

// DefaultRegistry returns the standard five-gate review catalog for
// generated animal-research protocols.
func DefaultRegistry() *Registry {
	return MustRegistry(
		CheckpointConfig{
			Type:              CheckpointIntakeReview,
			Name:              "Research Profile Review",
			Description:       "Review the extracted research parameters and ensure completeness",
			RequiredProducers: []string{"intake_specialist"},
			ReviewInstructions: `Please review the extracted research profile:
1. Verify species and strain are correctly identified
2. Confirm animal numbers are reasonable
3. Check that procedures are accurately captured
4. Identify any missing critical information
5. Ensure the research classification is appropriate

Approve if all essential information is captured correctly.
Request revision if critical details are missing or incorrect.`,
			AutoApprove: map[string]Threshold{
				"completeness_score":      {Min: f64(0.9)},
				"missing_required_fields": {Max: f64(0)},
			},
			Order: 1,
		},
		CheckpointConfig{
			Type:              CheckpointRegulatoryReview,
			Name:              "Regulatory Compliance Review",
			Description:       "Review regulatory requirements and 3Rs documentation",
			RequiredProducers: []string{"regulatory_scout", "alternatives_researcher"},
			ReviewInstructions: `Please review the regulatory assessment:
1. Verify correct USDA pain category classification
2. Confirm all applicable regulations are identified
3. Check that 3Rs documentation is complete
4. Review alternatives search methodology
5. Ensure literature search databases are appropriate

Approve if regulatory requirements are properly identified.
Request revision if pain category seems incorrect or 3Rs incomplete.`,
			AutoApprove: map[string]Threshold{
				"pain_category_confidence":   {Min: f64(0.8)},
				"three_rs_sections_complete": {Min: f64(3)},
			},
			Order: 2,
		},
		CheckpointConfig{
			Type:              CheckpointStatisticalReview,
			Name:              "Statistical Design Review",
			Description:       "Review sample size justification and statistical approach",
			RequiredProducers: []string{"statistical_consultant"},
			ReviewInstructions: `Please review the statistical analysis:
1. Verify power analysis calculations
2. Confirm appropriate statistical tests are selected
3. Check that sample size is justified
4. Review effect size assumptions
5. Ensure experimental design is sound

Approve if statistical justification is rigorous.
Request revision if power is insufficient or assumptions seem wrong.`,
			AutoApprove: map[string]Threshold{
				"power":                 {Min: f64(0.8)},
				"sample_size_justified": {Equals: boolp(true)},
			},
			Order: 3,
		},
		CheckpointConfig{
			Type:              CheckpointVeterinaryReview,
			Name:              "Veterinary/Welfare Review",
			Description:       "Review animal welfare considerations and procedures",
			RequiredProducers: []string{"veterinary_reviewer", "procedure_writer"},
			ReviewInstructions: `Please review the veterinary and welfare aspects:
1. Verify anesthesia and analgesia protocols
2. Check drug dosages against formulary
3. Confirm humane endpoints are appropriate
4. Review monitoring schedules
5. Ensure euthanasia methods are AVMA-approved

Approve if welfare considerations are adequately addressed.
Request revision if dosages are incorrect or endpoints are missing.`,
			AutoApprove: map[string]Threshold{
				"drug_doses_validated": {Equals: boolp(true)},
				"endpoints_defined":    {Equals: boolp(true)},
				"critical_issues":      {Max: f64(0)},
			},
			Order: 4,
		},
		CheckpointConfig{
			Type:              CheckpointFinalReview,
			Name:              "Final Protocol Review",
			Description:       "Final review of complete assembled protocol",
			RequiredProducers: []string{"protocol_assembler", "lay_summary_writer"},
			ReviewInstructions: `Please perform final review of the complete protocol:
1. Verify all sections are present and complete
2. Check for internal consistency
3. Review lay summary for clarity
4. Confirm regulatory compliance
5. Ensure protocol is ready for IACUC submission

Approve if protocol is complete and submission-ready.
Request revision if any sections need improvement.`,
			AutoApprove: map[string]Threshold{
				"completeness_score": {Min: f64(0.95)},
				"consistency_errors": {Max: f64(0)},
			},
			Order: 5,
		},
	)
}
