package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/threaded-comments-api/internal/models"
	"github.com/threaded-comments-api/internal/service"
)

// CommentHandler handles comment endpoints
type CommentHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(services *service.Services, log zerolog.Logger) *CommentHandler {
	return &CommentHandler{
		services: services,
		log:      log.With().Str("handler", "comment").Logger(),
	}
}

// List handles GET /api/comment. type=list selects the moderation listing.
func (h *CommentHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	caller := identityFrom(c)

	if c.Query("type") == "list" {
		page, err := h.services.Comment.ListForAdmin(ctx, caller, models.AdminQuery{
			Owner:   c.Query("owner"),
			Status:  c.Query("status"),
			Keyword: c.Query("keyword"),
			Page:    queryInt(c, "page"),
		})
		if err != nil {
			fail(c, h.log, err)
			return
		}
		respond(c, page)
		return
	}

	path := c.Query("path")
	if path == "" {
		badRequest(c, "path is required")
		return
	}

	page, err := h.services.Thread.List(ctx, caller, models.ThreadQuery{
		Path:     path,
		Page:     queryInt(c, "page"),
		PageSize: queryInt(c, "pageSize"),
		SortBy:   c.Query("sortBy"),
	})
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, page)
}

// Create handles POST /api/comment
func (h *CommentHandler) Create(c *gin.Context) {
	var req models.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	req.IP = clientIP(c)
	if req.UA == "" {
		req.UA = c.Request.UserAgent()
	}

	view, err := h.services.Comment.Create(c.Request.Context(), identityFrom(c), &req)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	respond(c, view)
}

// Update handles PUT /api/comment/:id
func (h *CommentHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var patch models.CommentPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	view, err := h.services.Comment.Update(c.Request.Context(), identityFrom(c), id, &patch)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, view)
}

// Delete handles DELETE /api/comment/:id
func (h *CommentHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.services.Comment.Delete(c.Request.Context(), identityFrom(c), id); err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, nil)
}

// queryInt reads an optional integer query value; anything unparsable is 0
// and the services apply their defaults
func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}

func pathID(c *gin.Context, key string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(key), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, key+" must be a positive integer")
		return 0, false
	}
	return id, true
}
