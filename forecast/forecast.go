// Package forecast defines InterventionForecast and the two resolution
// algorithms (hard-metric, deterministic; qualitative, LLM-judged) that
// turn a predicted probability into a scored, resolved record.
package forecast

// Category distinguishes a forecast auto-resolvable from inventory state
// from one requiring an LLM judge's qualitative verdict.
type Category string

const (
	CategoryHardMetric  Category = "hard_metric"
	CategoryQualitative Category = "qualitative"
)

// HardMetricCriteria names the inventory threshold a hard-metric forecast
// resolves against.
type HardMetricCriteria struct {
	AgentName string               `json:"agent_name"`
	ItemName  string               `json:"item_name"`
	Operator  ComparisonOp         `json:"operator"`
	Threshold int                  `json:"threshold"`
}

// ComparisonOp mirrors situation.ComparisonOp's operator set for
// forecast criteria, kept independent so forecast never imports
// situation (the resolver only needs inventories, not the full
// situation model).
type ComparisonOp string

const (
	OpGTE ComparisonOp = ">="
	OpLTE ComparisonOp = "<="
	OpEQ  ComparisonOp = "=="
	OpGT  ComparisonOp = ">"
	OpLT  ComparisonOp = "<"
	OpNEQ ComparisonOp = "!="
)

func (op ComparisonOp) evaluate(actual, threshold int) (bool, bool) {
	switch op {
	case OpGTE:
		return actual >= threshold, true
	case OpLTE:
		return actual <= threshold, true
	case OpEQ:
		return actual == threshold, true
	case OpGT:
		return actual > threshold, true
	case OpLT:
		return actual < threshold, true
	case OpNEQ:
		return actual != threshold, true
	default:
		return false, false
	}
}

// InterventionForecast is one typed prediction produced by the policy
// agent and later resolved against a branch's final state.
type InterventionForecast struct {
	QuestionTitle       string              `json:"question_title"`
	QuestionText        string              `json:"question_text"`
	ResolutionCriteria  string              `json:"resolution_criteria"`
	Prediction          float64             `json:"prediction"`
	Reasoning           string              `json:"reasoning"`
	IsConditional       bool                `json:"is_conditional"`
	Category            Category            `json:"category"`
	HardMetricCriteria  *HardMetricCriteria `json:"hard_metric_criteria,omitempty"`
	Resolved            bool                `json:"resolved"`
	Resolution          *bool               `json:"resolution"`
	BrierScore          *float64            `json:"brier_score,omitempty"`
}

// CalculateBrierScore scores a predicted probability against a realized
// boolean outcome: (prediction - outcome)^2, outcome mapped to 1.0/0.0.
func CalculateBrierScore(prediction float64, outcome bool) float64 {
	target := 0.0
	if outcome {
		target = 1.0
	}
	diff := prediction - target
	return diff * diff
}
