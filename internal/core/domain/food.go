package domain

import (
	"fmt"
	"strings"
	"time"
)

type SpiceLevel string

const (
	SpiceMild   SpiceLevel = "mild"
	SpiceMedium SpiceLevel = "medium"
	SpiceHot    SpiceLevel = "hot"
)

// Rank orders spice levels so a ceiling filter can compare them.
// Unknown values rank above hot and are never excluded by mistake.
func (s SpiceLevel) Rank() int {
	switch s {
	case SpiceMild:
		return 0
	case SpiceMedium:
		return 1
	case SpiceHot:
		return 2
	default:
		return 3
	}
}

func ParseSpiceLevel(raw string) (SpiceLevel, bool) {
	switch SpiceLevel(strings.ToLower(strings.TrimSpace(raw))) {
	case SpiceMild:
		return SpiceMild, true
	case SpiceMedium:
		return SpiceMedium, true
	case SpiceHot:
		return SpiceHot, true
	default:
		return "", false
	}
}

// FoodItem is the authoritative catalog record. The catalog store owns it;
// the semantic index only carries a derived projection keyed by the same id.
type FoodItem struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Description  string             `json:"description"`
	Cuisine      string             `json:"cuisine"`
	MealType     string             `json:"meal_type"`
	Course       string             `json:"course"`
	Tags         []string           `json:"tags"`
	Allergens    []string           `json:"allergens"`
	Diets        []string           `json:"diets"`
	Nutrition    map[string]float64 `json:"nutrition"`
	PrepTimeMins int                `json:"prep_time_mins"`
	SpiceLevel   SpiceLevel         `json:"spice_level"`
	CreatedAt    time.Time          `json:"created_at"`
}

// RawFoodRecord is one unvalidated ingestion input. Optional fields default
// during normalization.
type RawFoodRecord struct {
	ID           string             `json:"id" yaml:"id"`
	Name         string             `json:"name" yaml:"name"`
	Description  string             `json:"description" yaml:"description"`
	Cuisine      string             `json:"cuisine,omitempty" yaml:"cuisine"`
	MealType     string             `json:"meal_type,omitempty" yaml:"meal_type"`
	Course       string             `json:"course,omitempty" yaml:"course"`
	Tags         []string           `json:"tags,omitempty" yaml:"tags"`
	Allergens    []string           `json:"allergens,omitempty" yaml:"allergens"`
	Diets        []string           `json:"diets,omitempty" yaml:"diets"`
	Nutrition    map[string]float64 `json:"nutrition,omitempty" yaml:"nutrition"`
	PrepTimeMins int                `json:"prep_time_mins,omitempty" yaml:"prep_time_mins"`
	SpiceLevel   string             `json:"spice_level,omitempty" yaml:"spice_level"`
}

const (
	defaultCuisine      = "indian"
	defaultMealType     = "main"
	defaultCourse       = "main"
	defaultPrepTimeMins = 30
	defaultDiet         = "vegetarian"
)

// Normalize validates a raw record and fills defaults, producing the catalog
// form of the item.
func (r RawFoodRecord) Normalize() (FoodItem, error) {
	id := strings.TrimSpace(r.ID)
	name := strings.TrimSpace(r.Name)
	description := strings.TrimSpace(r.Description)
	if id == "" {
		return FoodItem{}, fmt.Errorf("id is required")
	}
	if name == "" {
		return FoodItem{}, fmt.Errorf("name is required")
	}
	if description == "" {
		return FoodItem{}, fmt.Errorf("description is required")
	}
	if r.PrepTimeMins < 0 {
		return FoodItem{}, fmt.Errorf("prep_time_mins must be positive")
	}

	item := FoodItem{
		ID:           id,
		Name:         name,
		Description:  description,
		Cuisine:      strings.TrimSpace(r.Cuisine),
		MealType:     strings.TrimSpace(r.MealType),
		Course:       strings.TrimSpace(r.Course),
		Tags:         normalizeSet(r.Tags),
		Allergens:    normalizeSet(r.Allergens),
		Diets:        normalizeSet(r.Diets),
		Nutrition:    r.Nutrition,
		PrepTimeMins: r.PrepTimeMins,
		CreatedAt:    time.Now().UTC(),
	}
	if item.Cuisine == "" {
		item.Cuisine = defaultCuisine
	}
	if item.MealType == "" {
		item.MealType = defaultMealType
	}
	if item.Course == "" {
		item.Course = defaultCourse
	}
	if item.PrepTimeMins == 0 {
		item.PrepTimeMins = defaultPrepTimeMins
	}
	if len(item.Diets) == 0 {
		item.Diets = []string{defaultDiet}
	}
	if item.Nutrition == nil {
		item.Nutrition = map[string]float64{}
	}

	level, ok := ParseSpiceLevel(r.SpiceLevel)
	if !ok {
		if strings.TrimSpace(r.SpiceLevel) != "" {
			return FoodItem{}, fmt.Errorf("unsupported spice_level: %s", r.SpiceLevel)
		}
		level = SpiceMedium
	}
	item.SpiceLevel = level
	return item, nil
}

func normalizeSet(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// CanonicalDocument builds the text indexed for an item. The field order
// (name, description, tags, cuisine) is a contract: relevance scores stay
// comparable across index rebuilds only if every writer derives the document
// the same way.
func CanonicalDocument(item FoodItem) string {
	return fmt.Sprintf("%s: %s. Tags: %s. Cuisine: %s.",
		item.Name, item.Description, strings.Join(item.Tags, ", "), item.Cuisine)
}

// IndexMetadata is the payload projection stored next to the vector for
// post-filtering and candidate reconstruction.
func IndexMetadata(item FoodItem) map[string]any {
	return map[string]any{
		"name":           item.Name,
		"cuisine":        item.Cuisine,
		"meal_type":      item.MealType,
		"course":         item.Course,
		"spice_level":    string(item.SpiceLevel),
		"spice_rank":     item.SpiceLevel.Rank(),
		"tags":           item.Tags,
		"allergens":      item.Allergens,
		"diets":          item.Diets,
		"prep_time_mins": item.PrepTimeMins,
	}
}
