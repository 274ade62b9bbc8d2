package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/food-recommender/internal/core/domain"
	"github.com/kirillkom/food-recommender/internal/core/ports"
)

// RetrievalConfig carries the documented ranking tunables. The defaults are
// deliberate choices, not inferred values: over-fetching 3x absorbs
// post-filter losses, and a 10% cuisine boost reorders near-ties without
// overriding a large relevance gap.
type RetrievalConfig struct {
	OverfetchFactor int
	CuisineBoost    float64
}

// RetrievalUseCase narrows semantic search results by hard preference
// constraints before applying soft ranking boosts. The two stages stay
// separate so an allergen match can never be outscored into the results.
type RetrievalUseCase struct {
	index ports.SemanticIndex
	cfg   RetrievalConfig
}

func NewRetrievalUseCase(index ports.SemanticIndex, cfg RetrievalConfig) *RetrievalUseCase {
	if cfg.OverfetchFactor <= 0 {
		cfg.OverfetchFactor = 3
	}
	if cfg.CuisineBoost <= 0 {
		cfg.CuisineBoost = 0.10
	}
	return &RetrievalUseCase{
		index: index,
		cfg:   cfg,
	}
}

func (uc *RetrievalUseCase) Search(
	ctx context.Context,
	query string,
	filter domain.PreferenceFilter,
	topK int,
) ([]domain.RetrievedCandidate, error) {
	if topK <= 0 {
		return []domain.RetrievedCandidate{}, nil
	}
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidQuery, "search", fmt.Errorf("query text is empty"))
	}

	hits, err := uc.index.Query(ctx, query, topK*uc.cfg.OverfetchFactor, buildIndexFilter(filter))
	if err != nil {
		return nil, fmt.Errorf("semantic query: %w", err)
	}

	candidates := candidatesFromHits(hits)
	candidates = applyHardExclusions(candidates, filter)
	applyCuisineBoost(candidates, filter.PreferredCuisines, uc.cfg.CuisineBoost)

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].BaseScore != candidates[j].BaseScore {
			return candidates[i].BaseScore > candidates[j].BaseScore
		}
		return candidates[i].ID < candidates[j].ID
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

// buildIndexFilter mirrors the hard exclusions into the index query so the
// over-fetch window is not dominated by items the post-filter would drop.
// The post-filter pass applies the same rules either way.
func buildIndexFilter(filter domain.PreferenceFilter) domain.IndexFilter {
	out := domain.IndexFilter{
		ExcludeAllergens: filter.Allergies,
		DietType:         strings.ToLower(strings.TrimSpace(filter.DietaryType)),
		MaxSpiceRank:     -1,
	}
	if level, ok := domain.ParseSpiceLevel(filter.SpiceLevel); ok {
		out.MaxSpiceRank = level.Rank()
	}
	return out
}

func applyHardExclusions(candidates []domain.RetrievedCandidate, filter domain.PreferenceFilter) []domain.RetrievedCandidate {
	maxSpiceRank := -1
	if level, ok := domain.ParseSpiceLevel(filter.SpiceLevel); ok {
		maxSpiceRank = level.Rank()
	}

	out := candidates[:0]
	for _, c := range candidates {
		if c.HasAllergen(filter.Allergies) {
			continue
		}
		if !c.CompatibleWithDiet(filter.DietaryType) {
			continue
		}
		if maxSpiceRank >= 0 && c.SpiceLevel.Rank() > maxSpiceRank {
			continue
		}
		out = append(out, c)
	}
	return out
}

// applyCuisineBoost adds a bounded fraction of the base score for preferred
// cuisines. Additive and proportional, so it reorders near-ties but cannot
// flip a large relevance gap.
func applyCuisineBoost(candidates []domain.RetrievedCandidate, preferred []string, boost float64) {
	if len(preferred) == 0 {
		return
	}
	set := make(map[string]struct{}, len(preferred))
	for _, cuisine := range preferred {
		cuisine = strings.ToLower(strings.TrimSpace(cuisine))
		if cuisine != "" {
			set[cuisine] = struct{}{}
		}
	}
	for i := range candidates {
		if _, ok := set[strings.ToLower(candidates[i].Cuisine)]; ok {
			candidates[i].Score = candidates[i].BaseScore * (1 + boost)
		}
	}
}

func candidatesFromHits(hits []domain.IndexHit) []domain.RetrievedCandidate {
	out := make([]domain.RetrievedCandidate, 0, len(hits))
	for _, hit := range hits {
		candidate := domain.RetrievedCandidate{
			ID:         hit.ID,
			Name:       metadataString(hit.Metadata, "name"),
			Cuisine:    metadataString(hit.Metadata, "cuisine"),
			SpiceLevel: domain.SpiceLevel(metadataString(hit.Metadata, "spice_level")),
			Tags:       metadataStrings(hit.Metadata, "tags"),
			Allergens:  metadataStrings(hit.Metadata, "allergens"),
			Diets:      metadataStrings(hit.Metadata, "diets"),
			Snippet:    hit.Snippet,
			Score:      hit.Score,
			BaseScore:  hit.Score,
		}
		out = append(out, candidate)
	}
	return out
}

func metadataString(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	value, ok := metadata[key]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

func metadataStrings(metadata map[string]any, key string) []string {
	if metadata == nil {
		return nil
	}
	switch typed := metadata[key].(type) {
	case []string:
		return typed
	case []any:
		out := make([]string, 0, len(typed))
		for _, v := range typed {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
