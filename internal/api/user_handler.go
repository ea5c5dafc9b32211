package api

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/threaded-comments-api/internal/models"
	"github.com/threaded-comments-api/internal/service"
)

// UserHandler handles account and token endpoints
type UserHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(services *service.Services, log zerolog.Logger) *UserHandler {
	return &UserHandler{
		services: services,
		log:      log.With().Str("handler", "user").Logger(),
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type setTypeRequest struct {
	Type string `json:"type"`
}

// Register handles POST /api/user
func (h *UserHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	verify, err := h.services.User.Register(c.Request.Context(), &req)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, gin.H{"verify": verify})
}

// UpdateProfile handles PUT /api/user
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var patch models.UserPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	profile, err := h.services.User.UpdateProfile(c.Request.Context(), identityFrom(c), &patch)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, profile)
}

// List handles GET /api/user
func (h *UserHandler) List(c *gin.Context) {
	page, err := h.services.User.List(c.Request.Context(), identityFrom(c), queryInt(c, "page"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, page)
}

// Login handles POST /api/token
func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	profile, err := h.services.User.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, profile)
}

// Profile handles GET /api/token
func (h *UserHandler) Profile(c *gin.Context) {
	profile, err := h.services.User.Profile(c.Request.Context(), identityFrom(c))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, profile)
}

// Logout handles DELETE /api/token. Tokens are stateless, so there is nothing to revoke.
func (h *UserHandler) Logout(c *gin.Context) {
	respond(c, nil)
}

// SetType handles PUT /api/token/:user_id
func (h *UserHandler) SetType(c *gin.Context) {
	id, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	var req setTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	if err := h.services.User.SetType(c.Request.Context(), identityFrom(c), id, req.Type); err != nil {
		fail(c, h.log, err)
		return
	}

	h.log.Info().Int64("user_id", id).Str("type", req.Type).Msg("Account type changed")
	respond(c, nil)
}

// Verify handles POST /api/verification
func (h *UserHandler) Verify(c *gin.Context) {
	if err := h.services.User.Verify(c.Request.Context(), c.Query("email"), c.Query("token")); err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, nil)
}
