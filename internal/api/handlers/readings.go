package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stbhakita/parish/internal/api/middleware"
	"github.com/stbhakita/parish/internal/api/response"
	"github.com/stbhakita/parish/internal/db/repository"
	"github.com/stbhakita/parish/internal/models"
)

// ReadingStore is the Sunday reading persistence the handler needs
type ReadingStore interface {
	Create(ctx context.Context, r *models.Reading) (*models.Reading, error)
	GetByID(ctx context.Context, id int64) (*models.Reading, error)
	Current(ctx context.Context, day string) (*models.Reading, error)
	List(ctx context.Context, limit, offset int) ([]*models.Reading, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, r *models.Reading) (*models.Reading, error)
	Delete(ctx context.Context, id int64) error
}

// ReadingHandler serves the Sunday readings
type ReadingHandler struct {
	store ReadingStore
	now   func() time.Time
}

// NewReadingHandler creates a new reading handler. now decides which
// reading is current.
func NewReadingHandler(store ReadingStore, now func() time.Time) *ReadingHandler {
	if now == nil {
		now = time.Now
	}
	return &ReadingHandler{store: store, now: now}
}

// ReadingRequest is the body of create and update requests
type ReadingRequest struct {
	Title       string `json:"title"`
	ReadingText string `json:"reading_text"`
	SundayDate  string `json:"sunday_date"`
}

const (
	msgReadingNotFound = "Sunday reading not found"
	msgReadingExists   = "Reading for this Sunday already exists"
)

// List returns a page of readings
// GET /api/readings
func (h *ReadingHandler) List(c *gin.Context) {
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

// Current returns the reading for the most recent Sunday up to today (UTC)
// GET /api/readings/current
func (h *ReadingHandler) Current(c *gin.Context) {
	today := h.now().UTC().Format(time.DateOnly)

	r, err := h.store.Current(c.Request.Context(), today)
	if errors.Is(err, repository.ErrNotFound) {
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "No Sunday reading available")
		return
	}
	if err != nil {
		response.Internal(c, err)
		return
	}

	response.Data(c, http.StatusOK, r, "")
}

// Get returns a single reading
// GET /api/readings/:id
func (h *ReadingHandler) Get(c *gin.Context) {
	r, ok := h.load(c)
	if !ok {
		return
	}
	response.Data(c, http.StatusOK, r, "")
}

// Create stores the reading for a Sunday
// POST /api/readings
func (h *ReadingHandler) Create(c *gin.Context) {
	var req ReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Title == "" || req.SundayDate == "" {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Title and Sunday date are required")
		return
	}
	if req.ReadingText == "" {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Reading text is required")
		return
	}
	if !validDate(req.SundayDate) {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Sunday date must be YYYY-MM-DD")
		return
	}

	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthenticated, "Authentication required")
		return
	}

	created, err := h.store.Create(c.Request.Context(), &models.Reading{
		Title:        req.Title,
		ReadingText:  req.ReadingText,
		SundayDate:   req.SundayDate,
		UploadedByID: user.ID,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		response.Error(c, http.StatusConflict, response.CodeConflict, msgReadingExists)
		return
	}
	if err != nil {
		response.Internal(c, err)
		return
	}

	response.Data(c, http.StatusCreated, created, "Sunday reading created successfully")
}

// Update edits a reading. Empty fields keep their current value.
// PUT /api/readings/:id
func (h *ReadingHandler) Update(c *gin.Context) {
	existing, ok := h.load(c)
	if !ok {
		return
	}

	var req ReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}

	if req.Title != "" {
		existing.Title = req.Title
	}
	if req.ReadingText != "" {
		existing.ReadingText = req.ReadingText
	}
	if req.SundayDate != "" {
		if !validDate(req.SundayDate) {
			response.Error(c, http.StatusBadRequest, response.CodeValidation, "Sunday date must be YYYY-MM-DD")
			return
		}
		existing.SundayDate = req.SundayDate
	}

	updated, err := h.store.Update(c.Request.Context(), existing)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, msgReadingNotFound)
	case errors.Is(err, repository.ErrDuplicate):
		response.Error(c, http.StatusConflict, response.CodeConflict, msgReadingExists)
	case err != nil:
		response.Internal(c, err)
	default:
		response.Data(c, http.StatusOK, updated, "Sunday reading updated successfully")
	}
}

// Delete removes a reading
// DELETE /api/readings/:id
func (h *ReadingHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		response.Error(c, http.StatusNotFound, response.CodeNotFound, msgReadingNotFound)
		return
	}

	err := h.store.Delete(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		response.Error(c, http.StatusNotFound, response.CodeNotFound, msgReadingNotFound)
		return
	}
	if err != nil {
		response.Internal(c, err)
		return
	}

	response.Message(c, http.StatusOK, "Sunday reading deleted successfully")
}

func (h *ReadingHandler) load(c *gin.Context) (*models.Reading, bool) {
	id, ok := pathID(c)
	if !ok {
		response.Error(c, http.StatusNotFound, response.CodeNotFound, msgReadingNotFound)
		return nil, false
	}

	r, err := h.store.GetByID(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		response.Error(c, http.StatusNotFound, response.CodeNotFound, msgReadingNotFound)
		return nil, false
	}
	if err != nil {
		response.Internal(c, err)
		return nil, false
	}

	return r, true
}

// validDate keeps sunday_date in the form the current-reading lookup compares
// lexically
func validDate(s string) bool {
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}
