// Package guard screens submitted source before it is sent for remote execution.
package guard

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// MaxCodeBytes is the largest submission accepted
const MaxCodeBytes = 10 * 1024

// Rejection reasons
const (
	ReasonDisallowedPackage = "セキュリティ上の理由により、このパッケージは使用できません"
	ReasonTooLarge          = "コードが大きすぎます（最大10KB）"
)

// ErrGuardRejected is returned by Result.Err for rejected code
var ErrGuardRejected = errors.New("code rejected by guard")

// Rule names the check that rejected a submission
type Rule string

const (
	RuleNone     Rule = ""
	RuleProcess  Rule = "process-execution"
	RuleNetwork  Rule = "raw-networking"
	RuleSyscall  Rule = "syscall-access"
	RuleUnsafe   Rule = "unsafe-memory"
	RuleCodeSize Rule = "code-size"
)

type denyRule struct {
	rule   Rule
	inline *regexp.Regexp
	path   *regexp.Regexp
}

// Deny-list evaluated in order. inline matches the single-line import form
// (optionally aliased), path matches one quoted path inside an import block.
var denyList = []denyRule{
	{RuleProcess, regexp.MustCompile(`import\s+(?:[\w.]+\s+)?['"]\s*os/exec`), regexp.MustCompile(`^\s*os/exec`)},
	{RuleNetwork, regexp.MustCompile(`import\s+(?:[\w.]+\s+)?['"]\s*net`), regexp.MustCompile(`^\s*net`)},
	{RuleSyscall, regexp.MustCompile(`import\s+(?:[\w.]+\s+)?['"]\s*syscall`), regexp.MustCompile(`^\s*syscall`)},
	{RuleUnsafe, regexp.MustCompile(`import\s+(?:[\w.]+\s+)?['"]\s*unsafe`), regexp.MustCompile(`^\s*unsafe`)},
}

var (
	importBlock = regexp.MustCompile(`(?s)import\s*\((.*?)\)`)
	quotedPath  = regexp.MustCompile("[\"`']([^\"`']*)[\"`']")
)

// Result is the outcome of screening
type Result struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
	Rule   Rule   `json:"rule,omitempty"`
}

// Err returns nil for accepted code and an error wrapping ErrGuardRejected otherwise
func (r *Result) Err() error {
	if r.OK {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrGuardRejected, r.Reason)
}

// Screen checks code against the deny-list and the size limit. The first failing rule wins.
func Screen(code string) Result {
	paths := groupedImports(code)
	for _, d := range denyList {
		if d.inline.MatchString(code) || anyPath(paths, d.path) {
			return Result{Reason: ReasonDisallowedPackage, Rule: d.rule}
		}
	}

	if len(code) > MaxCodeBytes {
		return Result{Reason: ReasonTooLarge, Rule: RuleCodeSize}
	}

	return Result{OK: true}
}

func groupedImports(code string) []string {
	var paths []string
	for _, block := range importBlock.FindAllStringSubmatch(code, -1) {
		for _, m := range quotedPath.FindAllStringSubmatch(block[1], -1) {
			paths = append(paths, m[1])
		}
	}
	return paths
}

func anyPath(paths []string, re *regexp.Regexp) bool {
	for _, p := range paths {
		if re.MatchString(strings.TrimSpace(p)) {
			return true
		}
	}
	return false
}
