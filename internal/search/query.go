package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Search limits.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// SearchParams configures a rock search.
type SearchParams struct {
	Query   string
	OwnerID string // Only rocks owned by this user when set
	Limit   int    // DefaultLimit when <= 0, capped at MaxLimit
}

// Search returns the ids of matching rocks, best match first.
// A blank query matches nothing.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) ([]int64, error) {
	text := strings.TrimSpace(params.Query)
	if text == "" {
		return []int64{}, nil
	}

	limit := params.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(buildQuery(text, params.OwnerID), limit, 0, false)
	req.SortBy([]string{"-_score", "id"})

	result, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	ids := make([]int64, 0, len(result.Hits))
	for _, hit := range result.Hits {
		id, err := ParseDocID(hit.ID)
		if err != nil {
			s.logger.Warn("skipping search hit with bad id", "doc_id", hit.ID)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// buildQuery matches the text against the rock name first, then the type
// label and owner name. Fuzzy and prefix matches on the name catch typos
// and partially typed words.
func buildQuery(text, ownerID string) query.Query {
	nameMatch := bleve.NewMatchQuery(text)
	nameMatch.SetField("name")
	nameMatch.SetBoost(3.0)

	typeMatch := bleve.NewMatchQuery(text)
	typeMatch.SetField("type_label")
	typeMatch.SetBoost(1.5)

	ownerMatch := bleve.NewMatchQuery(text)
	ownerMatch.SetField("owner_name")

	textQueries := []query.Query{nameMatch, typeMatch, ownerMatch}

	lowered := strings.ToLower(text)
	if !strings.ContainsRune(lowered, ' ') {
		fuzzy := bleve.NewFuzzyQuery(lowered)
		fuzzy.SetFuzziness(1)
		fuzzy.SetField("name")
		fuzzy.SetBoost(0.8)
		textQueries = append(textQueries, fuzzy)

		if len(lowered) >= 2 {
			prefix := bleve.NewPrefixQuery(lowered)
			prefix.SetField("name")
			prefix.SetBoost(0.5)
			textQueries = append(textQueries, prefix)
		}
	}

	textQuery := bleve.NewDisjunctionQuery(textQueries...)
	if ownerID == "" {
		return textQuery
	}

	owner := bleve.NewTermQuery(ownerID)
	owner.SetField("owner_id")
	return bleve.NewConjunctionQuery(textQuery, owner)
}
