package review

import (
	"fmt"
	"sort"

	"github.com/reviewflow/reviewflow/types"
)

// AutoApprovalResult is the outcome of evaluating a checkpoint's
// auto-approval thresholds against its stored payload.
type AutoApprovalResult struct {
	CanApprove   bool     `json:"can_approve"`
	UnmetReasons []string `json:"unmet_reasons"`
}

// EvaluateAutoApproval checks the config's thresholds against a producer
// payload. It is pure: no store access, no mutation. A config without
// thresholds never auto-approves. Conditions are evaluated in sorted field
// order so the reasons are deterministic.
func (c CheckpointConfig) EvaluateAutoApproval(payload types.Attrs) AutoApprovalResult {
	if len(c.AutoApprove) == 0 {
		return AutoApprovalResult{CanApprove: false, UnmetReasons: []string{"No auto-approval conditions defined"}}
	}

	fields := make([]string, 0, len(c.AutoApprove))
	for field := range c.AutoApprove {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var reasons []string
	for _, field := range fields {
		th := c.AutoApprove[field]
		value, present := payload[field]

		switch {
		case th.Equals != nil:
			if !present {
				reasons = append(reasons, fmt.Sprintf("%s missing from output", field))
				continue
			}
			b, ok := value.AsBool()
			if !ok || b != *th.Equals {
				reasons = append(reasons, fmt.Sprintf("%s is %s, expected %t", field, value, *th.Equals))
			}
		default:
			if !present {
				reasons = append(reasons, fmt.Sprintf("%s missing from output", field))
				continue
			}
			n, ok := value.AsNumber()
			if !ok {
				reasons = append(reasons, fmt.Sprintf("%s is not a number", field))
				continue
			}
			if th.Min != nil && n < *th.Min {
				reasons = append(reasons, fmt.Sprintf("%s below minimum (%s < %s)",
					field, value, types.Number(*th.Min)))
			}
			if th.Max != nil && n > *th.Max {
				reasons = append(reasons, fmt.Sprintf("%s above maximum (%s > %s)",
					field, value, types.Number(*th.Max)))
			}
		}
	}

	if len(reasons) > 0 {
		return AutoApprovalResult{CanApprove: false, UnmetReasons: reasons}
	}
	return AutoApprovalResult{CanApprove: true, UnmetReasons: []string{}}
}
