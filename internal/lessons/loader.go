// Package lessons loads lesson content and serves lookups over it.
package lessons

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Ryo-cool/go-concurrency-learner/internal/models"
)

// ErrLessonNotFound is returned when a lesson ID is unknown
var ErrLessonNotFound = errors.New("lesson not found")

// extensions tried for each content file, in order. JSON parses as YAML.
var extensions = []string{".yaml", ".yml", ".json"}

// Loader manages loading and caching of lessons and categories
type Loader struct {
	mu         sync.RWMutex
	lessons    map[string]*models.Lesson
	order      []string
	categories map[models.Category]*models.CategoryInfo
}

// NewLoader creates an empty lesson loader
func NewLoader() *Loader {
	return &Loader{
		lessons:    make(map[string]*models.Lesson),
		categories: make(map[models.Category]*models.CategoryInfo),
	}
}

// Filter narrows a lesson listing
type Filter struct {
	Category models.Category
	Search   string
}

// LoadFromDir loads categories and the lessons of every known category from dir.
// A category file that is missing or broken is skipped so the others still load.
func (l *Loader) LoadFromDir(dir string) error {
	slog.Info("loading lessons from directory", "dir", dir)

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to read lessons directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	if path, ok := findFile(dir, "categories"); ok {
		if err := l.loadCategories(path); err != nil {
			slog.Warn("failed to load categories", "file", path, "error", err)
		}
	} else {
		slog.Warn("categories file not found", "dir", dir)
	}

	loaded := 0
	for _, category := range models.Categories {
		path, ok := findFile(dir, string(category))
		if !ok {
			continue
		}

		n, err := l.LoadFromFile(path, category)
		if err != nil {
			slog.Warn("failed to load lessons", "category", category, "file", path, "error", err)
			continue
		}
		loaded += n
	}

	slog.Info("lessons loaded", "count", loaded)
	return nil
}

// LoadFromFile loads the lessons of one category file and returns how many were added
func (l *Loader) LoadFromFile(path string, category models.Category) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read file: %w", err)
	}

	var lf lessonsFile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return 0, fmt.Errorf("failed to parse lessons: %w", err)
	}

	added := 0
	for i := range lf.Lessons {
		lesson := lf.Lessons[i]
		if lesson.Category == "" {
			lesson.Category = category
		}

		if err := prepare(&lesson); err != nil {
			slog.Warn("skipping lesson", "file", path, "index", i, "error", err)
			continue
		}

		l.Add(&lesson)
		added++
	}

	return added, nil
}

// prepare validates a lesson and applies defaults
func prepare(lesson *models.Lesson) error {
	if lesson.ID == "" {
		return fmt.Errorf("lesson id is required")
	}
	if lesson.Title == "" {
		return fmt.Errorf("lesson %s: title is required", lesson.ID)
	}
	if !lesson.ValidationMode.IsValid() {
		return fmt.Errorf("lesson %s: unknown validation mode %q", lesson.ID, lesson.ValidationMode)
	}
	lesson.ValidationMode = lesson.ValidationMode.OrDefault()

	if lesson.ValidationMode.UsesOutput() && !lesson.HasOutputCriteria() {
		slog.Warn("lesson checks output but declares no expected output; any run will pass the output check",
			"id", lesson.ID, "mode", lesson.ValidationMode)
	}
	return nil
}

func (l *Loader) loadCategories(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var cf categoriesFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return fmt.Errorf("failed to parse categories: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range cf.Categories {
		c := cf.Categories[i]
		if c.ID == "" {
			continue
		}
		l.categories[c.ID] = &c
	}
	return nil
}

func findFile(dir, name string) (string, bool) {
	for _, ext := range extensions {
		path := filepath.Join(dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// Add registers a lesson. A lesson with an existing ID replaces it in place.
func (l *Loader) Add(lesson *models.Lesson) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.lessons[lesson.ID]; !exists {
		l.order = append(l.order, lesson.ID)
	}
	l.lessons[lesson.ID] = lesson
}

// AddCategory registers a category
func (l *Loader) AddCategory(category *models.CategoryInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.categories[category.ID] = category
}

// Get retrieves a lesson by ID
func (l *Loader) Get(id string) (*models.Lesson, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	lesson, ok := l.lessons[id]
	if !ok {
		return nil, ErrLessonNotFound
	}
	return lesson, nil
}

// List returns the lessons matching the filter in load order
func (l *Loader) List(filter Filter) []*models.Lesson {
	l.mu.RLock()
	defer l.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	result := make([]*models.Lesson, 0, len(l.order))
	for _, id := range l.order {
		lesson := l.lessons[id]
		if filter.Category != "" && lesson.Category != filter.Category {
			continue
		}
		if search != "" && !matchesSearch(lesson, search) {
			continue
		}
		result = append(result, lesson)
	}
	return result
}

func matchesSearch(lesson *models.Lesson, search string) bool {
	if strings.Contains(strings.ToLower(lesson.Title), search) ||
		strings.Contains(strings.ToLower(lesson.Description), search) {
		return true
	}
	for _, obj := range lesson.Objectives {
		if strings.Contains(strings.ToLower(obj), search) {
			return true
		}
	}
	return false
}

// Categories returns all categories sorted by their order
func (l *Loader) Categories() []*models.CategoryInfo {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*models.CategoryInfo, 0, len(l.categories))
	for _, c := range l.categories {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Order != result[j].Order {
			return result[i].Order < result[j].Order
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// Next returns the lesson after id within the filtered listing, or nil at the end
func (l *Loader) Next(filter Filter, id string) (*models.Lesson, error) {
	return l.neighbor(filter, id, 1)
}

// Previous returns the lesson before id within the filtered listing, or nil at the start
func (l *Loader) Previous(filter Filter, id string) (*models.Lesson, error) {
	return l.neighbor(filter, id, -1)
}

func (l *Loader) neighbor(filter Filter, id string, step int) (*models.Lesson, error) {
	list := l.List(filter)
	for i, lesson := range list {
		if lesson.ID != id {
			continue
		}
		j := i + step
		if j < 0 || j >= len(list) {
			return nil, nil
		}
		return list[j], nil
	}
	return nil, ErrLessonNotFound
}

// Count returns the number of loaded lessons
func (l *Loader) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.lessons)
}

// --- file structs ---

// lessonsFile represents one <category> content file
type lessonsFile struct {
	Lessons []models.Lesson `yaml:"lessons"`
}

// categoriesFile represents the categories content file
type categoriesFile struct {
	Categories []models.CategoryInfo `yaml:"categories"`
}
