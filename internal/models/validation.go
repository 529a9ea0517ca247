package models

// FeedbackKind is the closed set of feedback variants
type FeedbackKind string

const (
	FeedbackSuccess FeedbackKind = "success"
	FeedbackError   FeedbackKind = "error"
	FeedbackWarning FeedbackKind = "warning"
	FeedbackInfo    FeedbackKind = "info"
)

// Feedback is one message shown to the learner after a check
type Feedback struct {
	Kind    FeedbackKind `json:"type"`
	Message string       `json:"message"`
}

// KeywordCheck reports which expected keywords are absent from the code
type KeywordCheck struct {
	Passed  bool     `json:"passed"`
	Missing []string `json:"missing"`
}

// OutputCheck reports how program output compared with the expected output
type OutputCheck struct {
	Passed   bool     `json:"passed"`
	Expected []string `json:"expected"`
	Actual   []string `json:"actual"`
	Missing  []string `json:"missing"`
}

// ValidationDetails carries the per-signal checks that ran
type ValidationDetails struct {
	KeywordCheck *KeywordCheck `json:"keywordCheck,omitempty"`
	OutputCheck  *OutputCheck  `json:"outputCheck,omitempty"`
}

// ValidationResult is the verdict for one submission. It is never mutated after it is returned.
type ValidationResult struct {
	IsCorrect bool              `json:"isCorrect"`
	Score     float64           `json:"score"`
	Feedback  []Feedback        `json:"feedback"`
	Details   ValidationDetails `json:"details"`
}

// FirstOf returns the first feedback entry of the given kind
func (r *ValidationResult) FirstOf(kind FeedbackKind) (Feedback, bool) {
	for _, f := range r.Feedback {
		if f.Kind == kind {
			return f, true
		}
	}
	return Feedback{}, false
}
