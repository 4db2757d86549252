// Package api implements the HTTP handlers for articles and questions.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/hlog"

	"gpress/aggregator/internal/enrich"
	"gpress/aggregator/internal/llm"
	"gpress/aggregator/internal/models"
	"gpress/aggregator/internal/server/pagination"
	"gpress/aggregator/internal/server/storage"
	"gpress/aggregator/internal/store"
)

const (
	defaultLimit  = 20
	maxLimit      = 100
	cursorLimit   = 100
	maxCursorPage = 1000
	iso8601Format = time.RFC3339
)

// CursorResponse is the payload of the keyset-paginated articles endpoint.
type CursorResponse struct {
	Items      []models.Article `json:"items"`
	NextCursor *string          `json:"next_cursor,omitempty"`
}

// PagedResponse is the payload of the page/limit news endpoints.
type PagedResponse struct {
	Items      []models.Article `json:"items"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	Total      int              `json:"total"`
	TotalPages int              `json:"totalPages"`
}

// QuestionsResponse is the payload of the questions endpoint.
type QuestionsResponse struct {
	ArticleID int64             `json:"articleId"`
	Source    string            `json:"source"`
	Questions []models.Question `json:"questions"`
}

// Handler serves the article and question endpoints.
type Handler struct {
	repo      storage.ArticleRepository
	stores    map[string]*store.ArticleStore
	questions *store.QuestionStore
	enricher  *enrich.Engine
}

// NewHandler creates a handler over the read repository and the per-source
// stores used by the on-demand questions endpoint.
func NewHandler(repo storage.ArticleRepository, stores []*store.ArticleStore, questions *store.QuestionStore, enricher *enrich.Engine) *Handler {
	bySource := make(map[string]*store.ArticleStore, len(stores))
	for _, s := range stores {
		bySource[s.Source().Key] = s
	}
	return &Handler{
		repo:      repo,
		stores:    bySource,
		questions: questions,
		enricher:  enricher,
	}
}

// GetArticles serves keyset-paginated articles for incremental consumers.
func (h *Handler) GetArticles(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	query := r.URL.Query()

	limit := cursorLimit
	if limitStr := query.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 || parsed > maxCursorPage {
			http.Error(w, fmt.Sprintf("Invalid 'limit' parameter: must be between 1 and %d", maxCursorPage), http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	var since *time.Time
	var cursorTimestamp *time.Time
	var cursorID *int64

	if cursorStr := query.Get("cursor"); cursorStr != "" {
		ts, id, err := pagination.DecodeCursor(cursorStr)
		if err != nil {
			log.Warn().Err(err).Msg("Invalid cursor parameter")
			http.Error(w, "Invalid 'cursor' parameter", http.StatusBadRequest)
			return
		}
		cursorTimestamp = &ts
		cursorID = &id
	} else if sinceStr := query.Get("since"); sinceStr != "" {
		parsed, err := time.Parse(iso8601Format, sinceStr)
		if err != nil {
			http.Error(w, "Invalid 'since' parameter: use RFC3339 format (e.g., 2025-03-28T15:00:00Z)", http.StatusBadRequest)
			return
		}
		utc := parsed.UTC()
		since = &utc
	} else {
		http.Error(w, "Missing required parameter: 'since' or 'cursor'", http.StatusBadRequest)
		return
	}

	// Fetch one extra row to detect a next page.
	articles, err := h.repo.FetchArticles(r.Context(), limit+1, since, cursorTimestamp, cursorID)
	if err != nil {
		log.Error().Err(err).Msg("Error fetching articles")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var nextCursor *string
	if len(articles) > limit {
		articles = articles[:limit]
		last := articles[len(articles)-1]
		cursor := pagination.EncodeCursor(last.CreatedAt.UTC(), last.ID)
		nextCursor = &cursor
	}

	writeJSON(w, r, CursorResponse{Items: articles, NextCursor: nextCursor})
}

// GetAllNews serves every stored article, newest first.
func (h *Handler) GetAllNews(w http.ResponseWriter, r *http.Request) {
	h.servePage(w, r, h.repo.ListAll)
}

// GetCurrentAffairs serves current-affairs articles, question-bearing ones
// first.
func (h *Handler) GetCurrentAffairs(w http.ResponseWriter, r *http.Request) {
	h.servePage(w, r, h.repo.ListCurrentAffairs)
}

// SearchNews serves articles matching the q parameter.
func (h *Handler) SearchNews(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	if term == "" {
		http.Error(w, "Missing required parameter: 'q'", http.StatusBadRequest)
		return
	}
	h.servePage(w, r, func(ctx context.Context, page, limit int) ([]models.Article, int, error) {
		return h.repo.Search(ctx, term, page, limit)
	})
}

// GetNewsBySource serves one source's articles, newest first.
func (h *Handler) GetNewsBySource(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("source")
	if _, ok := h.stores[key]; !ok {
		http.Error(w, "Unknown source", http.StatusNotFound)
		return
	}
	h.servePage(w, r, func(ctx context.Context, page, limit int) ([]models.Article, int, error) {
		return h.repo.ListBySource(ctx, key, page, limit)
	})
}

// GetQuestions serves the questions for one article, generating them on
// demand when none are stored yet.
func (h *Handler) GetQuestions(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	key := r.PathValue("source")
	s, ok := h.stores[key]
	if !ok {
		http.Error(w, "Unknown source", http.StatusNotFound)
		return
	}

	articleID, err := strconv.ParseInt(r.PathValue("articleID"), 10, 64)
	if err != nil || articleID <= 0 {
		http.Error(w, "Invalid article id", http.StatusBadRequest)
		return
	}

	article, err := s.FindByID(r.Context(), articleID)
	if err != nil {
		log.Error().Err(err).Int64("article_id", articleID).Msg("Error loading article")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if article == nil {
		http.Error(w, "Article not found", http.StatusNotFound)
		return
	}

	questions, err := h.questions.ListByArticle(r.Context(), articleID)
	if err != nil {
		log.Error().Err(err).Int64("article_id", articleID).Msg("Error loading questions")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if len(questions) == 0 {
		log.Info().Int64("article_id", articleID).Str("source", key).Msg("Generating questions on demand")
		questions, err = h.enricher.EnrichArticle(r.Context(), s, article)
		if err != nil {
			log.Error().Err(err).Int64("article_id", articleID).Msg("On-demand generation failed")
			if errors.Is(err, llm.ErrExhausted) {
				http.Error(w, "Question generation is temporarily unavailable", http.StatusBadGateway)
				return
			}
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}

	if questions == nil {
		questions = []models.Question{}
	}
	writeJSON(w, r, QuestionsResponse{
		ArticleID: articleID,
		Source:    key,
		Questions: questions,
	})
}

// servePage handles the shared page/limit parsing and response envelope of
// the news endpoints.
func (h *Handler) servePage(w http.ResponseWriter, r *http.Request, list func(ctx context.Context, page, limit int) ([]models.Article, int, error)) {
	log := hlog.FromRequest(r)

	page, limit, err := pageParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	articles, total, err := list(r.Context(), page, limit)
	if err != nil {
		log.Error().Err(err).Msg("Error listing articles")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}

	writeJSON(w, r, PagedResponse{
		Items:      articles,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	})
}

func pageParams(r *http.Request) (int, int, error) {
	query := r.URL.Query()

	page := 1
	if pageStr := query.Get("page"); pageStr != "" {
		parsed, err := strconv.Atoi(pageStr)
		if err != nil || parsed <= 0 {
			return 0, 0, fmt.Errorf("invalid 'page' parameter: must be a positive integer")
		}
		page = parsed
	}

	limit := defaultLimit
	if limitStr := query.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 || parsed > maxLimit {
			return 0, 0, fmt.Errorf("invalid 'limit' parameter: must be between 1 and %d", maxLimit)
		}
		limit = parsed
	}

	return page, limit, nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, payload any) {
	log := hlog.FromRequest(r)

	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Error marshaling JSON response")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Error().Err(err).Msg("Error writing response body")
	}
}
