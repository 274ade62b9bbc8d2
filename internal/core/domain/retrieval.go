package domain

import "strings"

// PreferenceFilter carries per-request preference constraints. It is never
// persisted by the core; absence of a field means no constraint.
type PreferenceFilter struct {
	Allergies         []string `json:"allergies,omitempty"`
	DietaryType       string   `json:"dietary_type,omitempty"`
	PreferredCuisines []string `json:"preferred_cuisines,omitempty"`
	SpiceLevel        string   `json:"spice_level,omitempty"`
}

// IndexFilter is the metadata pre-filter handed to the semantic index. Hard
// exclusions only; soft ranking preferences never reach the index.
type IndexFilter struct {
	ExcludeAllergens []string
	DietType         string
	MaxSpiceRank     int // -1 when no ceiling applies
}

// IndexHit is one raw result from the semantic index.
type IndexHit struct {
	ID       string
	Score    float64
	Metadata map[string]any
	Snippet  string
}

// RetrievedCandidate is a scored catalog item surfaced by one retrieval call.
// Score includes soft boosts; BaseScore is the index relevance alone.
type RetrievedCandidate struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Cuisine    string     `json:"cuisine"`
	SpiceLevel SpiceLevel `json:"spice_level"`
	Tags       []string   `json:"tags,omitempty"`
	Allergens  []string   `json:"allergens,omitempty"`
	Diets      []string   `json:"diets,omitempty"`
	Snippet    string     `json:"snippet"`
	Score      float64    `json:"score"`
	BaseScore  float64    `json:"-"`
}

// HasAllergen reports whether the candidate's allergen set intersects the
// given exclusion set. Comparison is case-insensitive.
func (c RetrievedCandidate) HasAllergen(exclusions []string) bool {
	if len(exclusions) == 0 || len(c.Allergens) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(exclusions))
	for _, a := range exclusions {
		set[strings.ToLower(strings.TrimSpace(a))] = struct{}{}
	}
	for _, a := range c.Allergens {
		if _, hit := set[strings.ToLower(a)]; hit {
			return true
		}
	}
	return false
}

// CompatibleWithDiet reports whether the candidate satisfies a dietary type.
// An empty dietary type means no constraint.
func (c RetrievedCandidate) CompatibleWithDiet(dietaryType string) bool {
	dietaryType = strings.ToLower(strings.TrimSpace(dietaryType))
	if dietaryType == "" {
		return true
	}
	for _, d := range c.Diets {
		if strings.ToLower(d) == dietaryType {
			return true
		}
	}
	return false
}
