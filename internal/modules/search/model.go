// README: Catalog product and search response shapes.
package search

import (
	"regexp"
	"strings"
)

type Price struct {
	MRP     float64 `json:"mrp"`
	Selling float64 `json:"selling_price"`
}

type Product struct {
	ID            string
	Name          string
	Description   string
	Category      string
	Price         Price
	Images        []string
	AverageRating float64
}

// Hit is the trimmed product shape returned to clients.
type Hit struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Category      string  `json:"category"`
	Price         Price   `json:"price"`
	Image         *string `json:"image"`
	AverageRating float64 `json:"averageRating"`
	Slug          string  `json:"slug"`
}

var slugJunk = regexp.MustCompile(`[^a-z0-9]+`)

func toHit(p Product) Hit {
	h := Hit{
		ID:            p.ID,
		Name:          p.Name,
		Category:      p.Category,
		Price:         p.Price,
		AverageRating: p.AverageRating,
	}
	if h.Category == "" {
		h.Category = "Uncategorized"
	}
	if len(p.Images) > 0 {
		img := p.Images[0]
		h.Image = &img
	}
	h.Slug = strings.Trim(slugJunk.ReplaceAllString(strings.ToLower(p.Name), "-"), "-")
	if h.Slug == "" {
		h.Slug = "product"
	}
	return h
}

type Pagination struct {
	Limit      int `json:"limit"`
	Skip       int `json:"skip"`
	TotalPages int `json:"totalPages"`
}

type Result struct {
	Query           string     `json:"query,omitempty"`
	Type            string     `json:"type,omitempty"`
	Message         string     `json:"message,omitempty"`
	Results         []Hit      `json:"results"`
	Total           int        `json:"total"`
	Page            int        `json:"page"`
	HasMore         bool       `json:"hasMore"`
	RelatedKeywords []string   `json:"relatedKeywords,omitempty"`
	Pagination      Pagination `json:"pagination"`
}

type SuggestionType string

const (
	SuggestProduct  SuggestionType = "product"
	SuggestCategory SuggestionType = "category"
)

type Suggestion struct {
	Text string         `json:"text"`
	Type SuggestionType `json:"type"`
}

type CategoryCount struct {
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type Trending struct {
	Trending        []CategoryCount `json:"trending"`
	TotalCategories int             `json:"totalCategories"`
	TotalProducts   int             `json:"totalProducts"`
}
