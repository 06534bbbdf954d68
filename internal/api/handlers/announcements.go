package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stbhakita/parish/internal/api/middleware"
	"github.com/stbhakita/parish/internal/api/response"
	"github.com/stbhakita/parish/internal/db/repository"
	"github.com/stbhakita/parish/internal/models"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// AnnouncementStore is the announcement persistence the handler needs
type AnnouncementStore interface {
	Create(ctx context.Context, a *models.Announcement) (*models.Announcement, error)
	GetByID(ctx context.Context, id int64) (*models.Announcement, error)
	List(ctx context.Context, limit, offset int) ([]*models.Announcement, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, a *models.Announcement) (*models.Announcement, error)
	Delete(ctx context.Context, id int64) error
}

// AnnouncementHandler serves the announcements board
type AnnouncementHandler struct {
	store AnnouncementStore
}

// NewAnnouncementHandler creates a new announcement handler
func NewAnnouncementHandler(store AnnouncementStore) *AnnouncementHandler {
	return &AnnouncementHandler{store: store}
}

// AnnouncementRequest is the body of create and update requests
type AnnouncementRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Venue       string `json:"venue"`
}

// Page is a paginated list
type Page[T any] struct {
	Results  []T    `json:"results"`
	Count    int    `json:"count"`
	Next     string `json:"next,omitempty"`
	Previous string `json:"previous,omitempty"`
}

// newPage fills in the next and previous links for one page of results
func newPage[T any](items []T, count, limit, offset int) Page[T] {
	page := Page[T]{Results: items, Count: count}
	if offset+limit < count {
		page.Next = fmt.Sprintf("?limit=%d&offset=%d", limit, offset+limit)
	}
	if offset > 0 {
		page.Previous = fmt.Sprintf("?limit=%d&offset=%d", limit, max(0, offset-limit))
	}
	return page
}

// pageParams reads limit and offset from the query string
func pageParams(c *gin.Context) (limit, offset int) {
	limit = queryInt(c, "limit", defaultPageSize)
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset = queryInt(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// List returns a page of announcements
// GET /api/announcements
func (h *AnnouncementHandler) List(c *gin.Context) {
	limit, offset := pageParams(c)
	ctx := c.Request.Context()

	items, err := h.store.List(ctx, limit, offset)
	if err != nil {
		response.Internal(c, err)
		return
	}
	count, err := h.store.Count(ctx)
	if err != nil {
		response.Internal(c, err)
		return
	}

	c.JSON(http.StatusOK, newPage(items, count, limit, offset))
}

// Get returns a single announcement
// GET /api/announcements/:id
func (h *AnnouncementHandler) Get(c *gin.Context) {
	a, ok := h.load(c)
	if !ok {
		return
	}
	response.Data(c, http.StatusOK, a, "")
}

// Create publishes a new announcement
// POST /api/announcements
func (h *AnnouncementHandler) Create(c *gin.Context) {
	var req AnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Title == "" || req.Description == "" || req.Date == "" {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Title, description, and date are required")
		return
	}

	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthenticated, "Authentication required")
		return
	}

	created, err := h.store.Create(c.Request.Context(), &models.Announcement{
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		Time:        req.Time,
		Venue:       req.Venue,
		CreatedByID: user.ID,
	})
	if err != nil {
		response.Internal(c, err)
		return
	}

	response.Data(c, http.StatusCreated, created, "Announcement created successfully")
}

// Update edits an announcement. Empty fields keep their current value.
// PUT /api/announcements/:id
func (h *AnnouncementHandler) Update(c *gin.Context) {
	existing, ok := h.load(c)
	if !ok {
		return
	}

	var req AnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}

	if req.Title != "" {
		existing.Title = req.Title
	}
	if req.Description != "" {
		existing.Description = req.Description
	}
	if req.Date != "" {
		existing.Date = req.Date
	}
	if req.Time != "" {
		existing.Time = req.Time
	}
	if req.Venue != "" {
		existing.Venue = req.Venue
	}

	updated, err := h.store.Update(c.Request.Context(), existing)
	if errors.Is(err, repository.ErrNotFound) {
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "Announcement not found")
		return
	}
	if err != nil {
		response.Internal(c, err)
		return
	}

	response.Data(c, http.StatusOK, updated, "Announcement updated successfully")
}

// Delete removes an announcement
// DELETE /api/announcements/:id
func (h *AnnouncementHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "Announcement not found")
		return
	}

	err := h.store.Delete(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "Announcement not found")
		return
	}
	if err != nil {
		response.Internal(c, err)
		return
	}

	response.Message(c, http.StatusOK, "Announcement deleted successfully")
}

// load fetches the announcement named by the :id path parameter and writes
// the 404 itself when it does not exist.
func (h *AnnouncementHandler) load(c *gin.Context) (*models.Announcement, bool) {
	id, ok := pathID(c)
	if !ok {
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "Announcement not found")
		return nil, false
	}

	a, err := h.store.GetByID(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "Announcement not found")
		return nil, false
	}
	if err != nil {
		response.Internal(c, err)
		return nil, false
	}

	return a, true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
