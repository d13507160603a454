// Package resolve maps user-typed plant names to plant IDs.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/conalog/patch-cli/internal/api"
)

// Named is any resource with an ID and a display name.
type Named struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Match is one ranked fuzzy result.
type Match struct {
	ID    string
	Name  string
	Score int
}

var (
	ErrEmptyQuery = errors.New("empty search query")
	ErrEmptyItems = errors.New("no items to match against")
)

// AmbiguousError is returned when the best candidates tie.
type AmbiguousError struct {
	Query   string
	Matches []Match
}

func (e *AmbiguousError) Error() string {
	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "ambiguous match for %q", e.Query)
	if len(e.Matches) > 0 {
		b.WriteString(", candidates:")
		for _, m := range e.Matches {
			_, _ = fmt.Fprintf(&b, "\n  %s: %s", m.ID, m.Name)
		}
	}
	return b.String()
}

type lowerNames []Named

func (s lowerNames) String(i int) string { return strings.ToLower(s[i].Name) }
func (s lowerNames) Len() int            { return len(s) }

// FuzzyMatch returns the ID of the item best matching query.
// An exact ID or a case-insensitive exact name wins outright; otherwise the
// top fuzzy score must be unique.
func FuzzyMatch(query string, items []Named) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ErrEmptyQuery
	}
	if len(items) == 0 {
		return "", ErrEmptyItems
	}

	for _, item := range items {
		if item.ID == query {
			return item.ID, nil
		}
	}
	for _, item := range items {
		if strings.EqualFold(item.Name, query) {
			return item.ID, nil
		}
	}

	results := fuzzy.FindFrom(strings.ToLower(query), lowerNames(items))
	if len(results) == 0 {
		return "", fmt.Errorf("no plant matches %q", query)
	}
	if len(results) > 1 && results[0].Score == results[1].Score {
		return "", &AmbiguousError{Query: query, Matches: buildMatches(items, results, 5)}
	}
	return items[results[0].Index].ID, nil
}

// FuzzyMatchAll returns up to limit matches, best first.
func FuzzyMatchAll(query string, items []Named, limit int) []Match {
	query = strings.TrimSpace(query)
	if query == "" || len(items) == 0 || limit <= 0 {
		return nil
	}
	return buildMatches(items, fuzzy.FindFrom(strings.ToLower(query), lowerNames(items)), limit)
}

func buildMatches(items []Named, results fuzzy.Matches, limit int) []Match {
	if len(results) == 0 || limit <= 0 {
		return nil
	}
	if len(results) > limit {
		results = results[:limit]
	}
	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{ID: items[r.Index].ID, Name: items[r.Index].Name, Score: r.Score}
	}
	return matches
}

// PlantLister lists plant pages. api.PlantsService implements it.
type PlantLister interface {
	List(ctx context.Context, opts api.PageOptions) (*api.PlantList, error)
}

// Cache holds plant lists between runs. *cache.Store implements it.
type Cache interface {
	Get(dst any) bool
	Put(items any)
}

// Plant resolves query to a plant ID. Values starting with '=' are taken
// verbatim. Otherwise the query is matched by ID or name against the cached
// plant list, or against every plant page when the cache misses or has no
// match. cache may be nil.
func Plant(ctx context.Context, plants PlantLister, cache Cache, query string) (string, error) {
	if id, ok := strings.CutPrefix(query, "="); ok {
		if id == "" {
			return "", ErrEmptyQuery
		}
		return id, nil
	}
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyQuery
	}

	if cache != nil {
		var cached []Named
		if cache.Get(&cached) {
			if id, err := FuzzyMatch(query, cached); err == nil {
				return id, nil
			}
		}
	}

	items, err := ListPlants(ctx, plants)
	if err != nil {
		return "", err
	}
	if cache != nil {
		cache.Put(items)
	}
	return FuzzyMatch(query, items)
}

// ListPlants collects the ID and name of every plant, page by page.
func ListPlants(ctx context.Context, plants PlantLister) ([]Named, error) {
	var items []Named
	for page := 1; ; page++ {
		list, err := plants.List(ctx, api.Pages(page, 100))
		if err != nil {
			return nil, err
		}
		for _, p := range list.Items {
			items = append(items, Named{ID: p.ID, Name: p.Name})
		}
		if len(list.Items) == 0 || list.TotalPages <= int64(page) {
			return items, nil
		}
	}
}
