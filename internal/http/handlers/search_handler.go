// README: Public product search handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"keeva/internal/modules/search"
)

type SearchHandler struct {
	search *search.Service
}

func NewSearchHandler(svc *search.Service) *SearchHandler {
	return &SearchHandler{search: svc}
}

func (h *SearchHandler) Search(c *gin.Context) {
	res, err := h.search.Search(c.Request.Context(), c.Query("query"), queryInt(c, "limit", 0), queryInt(c, "skip", 0))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (h *SearchHandler) Advanced(c *gin.Context) {
	res, err := h.search.Advanced(c.Request.Context(), search.AdvancedQuery{
		Query:    c.Query("query"),
		Category: c.Query("category"),
		MinPrice: queryFloat(c, "minPrice"),
		MaxPrice: queryFloat(c, "maxPrice"),
		Limit:    queryInt(c, "limit", 0),
		Skip:     queryInt(c, "skip", 0),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (h *SearchHandler) Suggestions(c *gin.Context) {
	s, err := h.search.Suggestions(c.Request.Context(), c.Query("q"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"suggestions": s})
}

func (h *SearchHandler) Trending(c *gin.Context) {
	t, err := h.search.Trending(c.Request.Context(), queryInt(c, "limit", 0))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, t)
}
