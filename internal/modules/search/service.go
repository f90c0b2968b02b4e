// README: Two-phase product search, suggestions, trending categories and related keywords.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

var ErrEmptyQuery = errors.New("search query is required")

const (
	defaultLimit       = 10
	maxLimit           = 50
	maxTrendingLimit   = 20
	relatedSample      = 15
	maxRelatedKeywords = 5
	relatedFromTop     = 10
	suggestPerSource   = 8
	maxSuggestions     = 10
	minSuggestSim      = 60
)

type Service struct {
	catalog Catalog
	log     *slog.Logger
}

func NewService(catalog Catalog, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{catalog: catalog, log: log}
}

func clampPage(limit, skip, maxL int) (int, int) {
	if limit == 0 {
		limit = defaultLimit
	}
	limit = min(max(limit, 1), maxL)
	return limit, max(skip, 0)
}

func paginate(ranked []Scored, limit, skip int) ([]Hit, Pagination, int, bool) {
	total := len(ranked)
	hits := []Hit{}
	if skip < total {
		for _, s := range ranked[skip:min(skip+limit, total)] {
			hits = append(hits, toHit(s.Product))
		}
	}
	pg := Pagination{Limit: limit, Skip: skip, TotalPages: int(math.Ceil(float64(total) / float64(limit)))}
	return hits, pg, skip/limit + 1, skip+limit < total
}

// Search ranks the substring prefilter and falls back to scoring the whole catalog
// when the prefilter finds nothing, which is what catches typo-heavy queries.
func (s *Service) Search(ctx context.Context, raw string, limit, skip int) (*Result, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyQuery
	}
	limit, skip = clampPage(limit, skip, maxLimit)
	query := Sanitize(raw)
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: invalid search query", ErrEmptyQuery)
	}

	candidates, err := s.catalog.Candidates(ctx, tokens, Filter{})
	if err != nil {
		return nil, err
	}
	ranked := Rank(candidates, tokens, query)
	if len(ranked) == 0 {
		s.log.Debug("no prefilter matches, scoring full catalog", "query", query)
		all, err := s.catalog.All(ctx)
		if err != nil {
			return nil, err
		}
		ranked = Rank(all, tokens, query)
	}

	res := &Result{Query: query}
	res.Results, res.Pagination, res.Page, res.HasMore = paginate(ranked, limit, skip)
	res.Total = len(ranked)
	if res.Total > 0 {
		res.Type = "exact"
		res.Message = fmt.Sprintf("Found %d results for %q", res.Total, query)
		top := make([]Product, 0, relatedFromTop)
		for _, r := range ranked[:min(relatedFromTop, len(ranked))] {
			top = append(top, r.Product)
		}
		res.RelatedKeywords, err = s.RelatedKeywords(ctx, top)
	} else {
		res.Type = "empty"
		res.Message = fmt.Sprintf("No products found for %q. Try different keywords.", query)
		res.RelatedKeywords, err = s.RelatedKeywords(ctx, nil)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// RelatedKeywords returns up to five keywords: categories of found, then names of
// other products in those categories. With nothing found it lists categories.
func (s *Service) RelatedKeywords(ctx context.Context, found []Product) ([]string, error) {
	seen := map[string]bool{}
	out := []string{}
	add := func(kw string) {
		if kw != "" && !seen[kw] {
			seen[kw] = true
			out = append(out, kw)
		}
	}

	if len(found) == 0 {
		cats, err := s.catalog.Categories(ctx)
		if err != nil {
			return nil, err
		}
		for _, c := range cats {
			add(c)
		}
		return out[:min(len(out), maxRelatedKeywords)], nil
	}

	var categories, ids []string
	for _, p := range found {
		ids = append(ids, p.ID)
		if p.Category != "" && !seen[p.Category] {
			categories = append(categories, p.Category)
		}
		add(p.Category)
	}
	if len(categories) > 0 {
		related, err := s.catalog.Related(ctx, categories, ids, relatedSample)
		if err != nil {
			return nil, err
		}
		for _, p := range related {
			add(p.Name)
		}
	}
	return out[:min(len(out), maxRelatedKeywords)], nil
}

type AdvancedQuery struct {
	Query    string
	Category string
	MinPrice *float64
	MaxPrice *float64
	Limit    int
	Skip     int
}

// Advanced filters by category and selling price, ranking only when a query is given.
func (s *Service) Advanced(ctx context.Context, q AdvancedQuery) (*Result, error) {
	limit, skip := clampPage(q.Limit, q.Skip, maxLimit)
	query := Sanitize(q.Query)
	tokens := Tokenize(query)

	products, err := s.catalog.Candidates(ctx, tokens, Filter{
		Category: strings.TrimSpace(q.Category),
		MinPrice: q.MinPrice,
		MaxPrice: q.MaxPrice,
	})
	if err != nil {
		return nil, err
	}
	var ranked []Scored
	if len(tokens) > 0 {
		ranked = Rank(products, tokens, query)
	} else {
		ranked = make([]Scored, len(products))
		for i, p := range products {
			ranked[i] = Scored{Product: p}
		}
	}

	res := &Result{Query: query, Total: len(ranked)}
	res.Results, res.Pagination, res.Page, res.HasMore = paginate(ranked, limit, skip)
	return res, nil
}

// Suggestions autocompletes q from product names and categories, topping up with
// similar catalog entries when direct matches are scarce.
func (s *Service) Suggestions(ctx context.Context, raw string) ([]Suggestion, error) {
	q := strings.TrimSpace(fold(raw))
	if q == "" {
		return []Suggestion{}, nil
	}

	var names, categories []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		names, err = s.catalog.NamesLike(gctx, q, suggestPerSource)
		return err
	})
	g.Go(func() (err error) {
		categories, err = s.catalog.CategoriesLike(gctx, q, suggestPerSource)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	type entry struct {
		Suggestion
		sim int
	}
	seen := map[string]bool{}
	var entries []entry
	add := func(text string, t SuggestionType, sim int) {
		k := strings.ToLower(text)
		if text == "" || seen[k] {
			return
		}
		seen[k] = true
		entries = append(entries, entry{Suggestion{Text: text, Type: t}, sim})
	}
	for _, n := range names {
		add(n, SuggestProduct, 0)
	}
	for _, c := range categories {
		add(c, SuggestCategory, 0)
	}

	if len(entries) < maxSuggestions {
		all, err := s.catalog.All(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range all {
			if sim := Similarity(q, fold(p.Name)); sim >= minSuggestSim {
				add(p.Name, SuggestProduct, sim)
			}
			if p.Category == "" {
				continue
			}
			if sim := Similarity(q, fold(p.Category)); sim >= minSuggestSim {
				add(p.Category, SuggestCategory, sim)
			}
		}
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].sim > entries[j].sim })
	out := make([]Suggestion, 0, min(len(entries), maxSuggestions))
	for _, e := range entries[:min(len(entries), maxSuggestions)] {
		out = append(out, e.Suggestion)
	}
	return out, nil
}

// Trending lists categories by product count with their share of the catalog.
func (s *Service) Trending(ctx context.Context, limit int) (*Trending, error) {
	if limit == 0 {
		limit = defaultLimit
	}
	limit = min(max(limit, 1), maxTrendingLimit)

	counts, err := s.catalog.CategoryCounts(ctx)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, c := range counts {
		total += c.Count
	}
	for i := range counts {
		if total > 0 {
			counts[i].Percentage = math.Round(float64(counts[i].Count)/float64(total)*1000) / 10
		}
	}
	sort.SliceStable(counts, func(i, j int) bool { return counts[i].Count > counts[j].Count })

	return &Trending{
		Trending:        append([]CategoryCount{}, counts[:min(limit, len(counts))]...),
		TotalCategories: len(counts),
		TotalProducts:   total,
	}, nil
}
