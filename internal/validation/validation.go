// Package validation scores a submission against a lesson's success criteria.
//
// Two signals contribute: static keyword presence in the source and dynamic
// matching of the program's standard output. Each signal is worth 50 points
// and the mode of the lesson decides how they combine into a score out of 100.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Ryo-cool/go-concurrency-learner/internal/models"
)

// PassThreshold is the minimum score for a correct submission
const PassThreshold = 80.0

// halfScore is the weight of a single signal
const halfScore = 50.0

// Feedback messages
const (
	MsgPerfect           = "完璧です！全ての要件を満たしています。"
	MsgCorrect           = "正解です！基本的な要件を満たしています。"
	MsgMissingKeywords   = "必要なキーワードが不足しています: "
	MsgRunFirst          = "コードを実行してから答え合わせしてください。"
	MsgOutputMismatch    = "期待する出力が得られていません。"
	MsgRequiredOutputs   = "必要な出力: "
	MsgExecuteFirst      = "まずコードを実行してください。"
	MsgRequirementsUnmet = "要件を満たしていません。フィードバックを確認してください。"

	patternLabel = "パターン: "
)

// Validate judges code and its outputs against the lesson. It is pure and never fails.
func Validate(lesson *models.Lesson, code string, outputs []models.OutputRecord) models.ValidationResult {
	mode := lesson.ValidationMode.OrDefault()

	var (
		feedback     []models.Feedback
		details      models.ValidationDetails
		keywordScore float64
		outputScore  float64
	)

	if mode.UsesKeywords() {
		kc := CheckKeywords(lesson, code)
		details.KeywordCheck = &kc
		keywordScore = partialScore(len(lesson.ExpectedKeywords), len(kc.Missing), kc.Passed)
		if !kc.Passed {
			feedback = append(feedback, models.Feedback{
				Kind:    models.FeedbackWarning,
				Message: MsgMissingKeywords + strings.Join(kc.Missing, ", "),
			})
		}
	}

	if mode.UsesOutput() {
		oc := CheckOutputs(lesson, outputs)
		details.OutputCheck = &oc
		outputScore = partialScore(len(oc.Expected), len(oc.Missing), oc.Passed)
		if !oc.Passed {
			if len(outputs) == 0 {
				feedback = append(feedback, models.Feedback{Kind: models.FeedbackError, Message: MsgRunFirst})
			} else {
				feedback = append(feedback, models.Feedback{Kind: models.FeedbackWarning, Message: MsgOutputMismatch})
				if len(oc.Missing) > 0 {
					feedback = append(feedback, models.Feedback{
						Kind:    models.FeedbackInfo,
						Message: MsgRequiredOutputs + strings.Join(oc.Missing, ", "),
					})
				}
			}
		}
	}

	var score float64
	switch mode {
	case models.ModeKeywords:
		score = keywordScore * 2
	case models.ModeOutput:
		score = outputScore * 2
	case models.ModeBoth:
		score = keywordScore + outputScore
	}

	correct := score >= PassThreshold
	if correct {
		msg := MsgCorrect
		if score == 100 {
			msg = MsgPerfect
		}
		feedback = append([]models.Feedback{{Kind: models.FeedbackSuccess, Message: msg}}, feedback...)
	}
	if feedback == nil {
		feedback = []models.Feedback{}
	}

	return models.ValidationResult{
		IsCorrect: correct,
		Score:     score,
		Feedback:  feedback,
		Details:   details,
	}
}

// partialScore awards the full half score on pass, otherwise credit proportional to what was found.
func partialScore(total, missing int, passed bool) float64 {
	if passed {
		return halfScore
	}
	if total == 0 {
		return 0
	}
	return halfScore * float64(total-missing) / float64(total)
}

// CheckKeywords reports the expected keywords absent from code, in lesson order.
func CheckKeywords(lesson *models.Lesson, code string) models.KeywordCheck {
	missing := []string{}
	for _, kw := range lesson.ExpectedKeywords {
		if !strings.Contains(code, kw) {
			missing = append(missing, kw)
		}
	}
	return models.KeywordCheck{Passed: len(missing) == 0, Missing: missing}
}

// CheckOutputs compares the standard output records against the lesson's output criteria.
func CheckOutputs(lesson *models.Lesson, outputs []models.OutputRecord) models.OutputCheck {
	actual := []string{}
	for _, o := range outputs {
		if o.Kind == models.OutputStdout {
			actual = append(actual, strings.TrimSpace(o.Content))
		}
	}

	expected := []string{}
	missing := []string{}

	for _, tc := range lesson.TestCases {
		expected = append(expected, tc.ExpectedOutput)
		if !anyMatch(actual, tc.ExpectedOutput) {
			missing = append(missing, tc.ExpectedOutput)
		}
	}

	for _, req := range lesson.RequiredOutputs {
		expected = append(expected, req)
		if !anyMatch(actual, req) && !contains(missing, req) {
			missing = append(missing, req)
		}
	}

	for _, pattern := range lesson.ExpectedOutputPatterns {
		if !patternMatches(actual, pattern) {
			label := patternLabel + pattern
			expected = append(expected, label)
			missing = append(missing, label)
		}
	}

	return models.OutputCheck{
		Passed:   len(missing) == 0,
		Expected: expected,
		Actual:   actual,
		Missing:  missing,
	}
}

func anyMatch(actual []string, want string) bool {
	for _, a := range actual {
		if FuzzyMatch(a, want) {
			return true
		}
	}
	return false
}

// patternMatches treats a pattern that fails to compile as unmatched.
func patternMatches(actual []string, pattern string) bool {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	for _, a := range actual {
		if re.MatchString(a) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// NeedsExecution reports whether a check should be refused until the code has been run.
func NeedsExecution(lesson *models.Lesson, outputs []models.OutputRecord) bool {
	return lesson.ValidationMode.UsesOutput() && len(outputs) == 0
}

// ToastFor picks the notification shown after a check.
func ToastFor(result models.ValidationResult) models.Toast {
	if result.IsCorrect {
		if len(result.Feedback) > 0 {
			return models.Toast{Kind: models.FeedbackSuccess, Message: result.Feedback[0].Message}
		}
		return models.Toast{Kind: models.FeedbackSuccess, Message: MsgCorrect}
	}
	if f, ok := result.FirstOf(models.FeedbackError); ok {
		return models.Toast{Kind: models.FeedbackError, Message: f.Message}
	}
	return models.Toast{Kind: models.FeedbackError, Message: MsgRequirementsUnmet}
}

// ExecuteFirstToast is shown when a check is attempted before running output-based lessons.
func ExecuteFirstToast() models.Toast {
	return models.Toast{Kind: models.FeedbackInfo, Message: MsgExecuteFirst}
}

// Summary renders the result as a single line for logs and the CLI.
func Summary(result models.ValidationResult) string {
	verdict := "incorrect"
	if result.IsCorrect {
		verdict = "correct"
	}
	return fmt.Sprintf("%s (score %.1f)", verdict, result.Score)
}
