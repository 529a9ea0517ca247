package models

// Category identifies one of the lesson groups
type Category string

const (
	CategoryBasic   Category = "basic"
	CategoryChannel Category = "channel"
	CategorySync    Category = "sync"
	CategoryPattern Category = "pattern"
)

// Categories lists the known categories in display order
var Categories = []Category{CategoryBasic, CategoryChannel, CategorySync, CategoryPattern}

// IsValid reports whether c is a known category
func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Difficulty of a lesson
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// ValidationMode selects which signals contribute to a lesson's score
type ValidationMode string

const (
	ModeKeywords ValidationMode = "keywords"
	ModeOutput   ValidationMode = "output"
	ModeBoth     ValidationMode = "both"
)

// IsValid reports whether m is a known mode. The empty mode is valid and means keywords.
func (m ValidationMode) IsValid() bool {
	switch m {
	case "", ModeKeywords, ModeOutput, ModeBoth:
		return true
	}
	return false
}

// OrDefault returns the mode, falling back to keywords when unset
func (m ValidationMode) OrDefault() ValidationMode {
	if m == "" {
		return ModeKeywords
	}
	return m
}

// UsesOutput reports whether program output takes part in scoring
func (m ValidationMode) UsesOutput() bool {
	m = m.OrDefault()
	return m == ModeOutput || m == ModeBoth
}

// UsesKeywords reports whether keyword presence takes part in scoring
func (m ValidationMode) UsesKeywords() bool {
	m = m.OrDefault()
	return m == ModeKeywords || m == ModeBoth
}

// Lesson is a single exercise together with its success criteria.
// Field names follow the lesson JSON files so existing content loads unchanged.
type Lesson struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	Category    Category   `json:"category" yaml:"category"`
	Difficulty  Difficulty `json:"difficulty" yaml:"difficulty"`
	Objectives  []string   `json:"objectives" yaml:"objectives"`
	Hints       []Hint     `json:"hints" yaml:"hints"`
	InitialCode string     `json:"initialCode" yaml:"initialCode"`
	Solution    string     `json:"solution" yaml:"solution"`
	Resources   []Resource `json:"resources,omitempty" yaml:"resources"`

	// Success criteria
	ExpectedKeywords       []string       `json:"expectedKeywords" yaml:"expectedKeywords"`
	TestCases              []TestCase     `json:"testCases,omitempty" yaml:"testCases"`
	RequiredOutputs        []string       `json:"requiredOutputs,omitempty" yaml:"requiredOutputs"`
	ExpectedOutputPatterns []string       `json:"expectedOutputPatterns,omitempty" yaml:"expectedOutputPatterns"`
	ValidationMode         ValidationMode `json:"validationMode,omitempty" yaml:"validationMode"`
}

// HasOutputCriteria reports whether the lesson declares anything to match program output against
func (l *Lesson) HasOutputCriteria() bool {
	return len(l.TestCases) > 0 || len(l.RequiredOutputs) > 0 || len(l.ExpectedOutputPatterns) > 0
}

// Hint is a progressively revealed tip
type Hint struct {
	Text  string `json:"text" yaml:"text"`
	Level int    `json:"level" yaml:"level"`
}

// TestCase pairs an optional input with the output the program must print
type TestCase struct {
	Input          string `json:"input,omitempty" yaml:"input"`
	ExpectedOutput string `json:"expectedOutput" yaml:"expectedOutput"`
}

// Resource links to further reading
type Resource struct {
	Title string `json:"title" yaml:"title"`
	URL   string `json:"url" yaml:"url"`
}

// CategoryInfo describes a category for listing screens
type CategoryInfo struct {
	ID          Category `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Icon        string   `json:"icon,omitempty" yaml:"icon"`
	Order       int      `json:"order" yaml:"order"`
}
