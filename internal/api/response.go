package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/threaded-comments-api/internal/service"
)

// Envelope error numbers
const (
	errnoSuccess      = 0
	errnoUnauthorized = 401
	errnoForbidden    = 403
	errnoError        = 1000
)

// Envelope is the body of every /api response
type Envelope struct {
	Errno  int         `json:"errno"`
	Errmsg string      `json:"errmsg"`
	Data   interface{} `json:"data,omitempty"`
}

func respond(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Errno: errnoSuccess, Data: data})
}

// fail writes err as an envelope. Clients read errno, so the HTTP status stays 200.
func fail(c *gin.Context, log zerolog.Logger, err error) {
	errno, msg := classify(err)
	if errno == errnoError && (msg == "" || errors.Is(err, service.ErrUpstream)) {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
	} else {
		log.Debug().Err(err).Int("errno", errno).Msg("Request rejected")
	}
	c.JSON(http.StatusOK, Envelope{Errno: errno, Errmsg: msg})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		return errnoUnauthorized, "Unauthorized"
	case errors.Is(err, service.ErrForbidden):
		return errnoForbidden, "FORBIDDEN"
	case errors.Is(err, service.ErrFrequencyLimited):
		return errnoError, "Comment too fast"
	case errors.Is(err, service.ErrDuplicateContent):
		return errnoError, "Duplicate Content"
	case errors.Is(err, service.ErrUserRegistered):
		return errnoError, "USER_REGISTERED"
	case errors.Is(err, service.ErrTokenExpired):
		return errnoError, "TOKEN_EXPIRED"
	case errors.Is(err, service.ErrNotFound):
		return errnoError, "Not Found"
	case errors.Is(err, service.ErrUpstream):
		return errnoError, "Upstream failure"
	case errors.Is(err, service.ErrValidation):
		return errnoError, strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": ")
	default:
		return errnoError, ""
	}
}

// badRequest answers a malformed request body or query
func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, Envelope{Errno: errnoError, Errmsg: msg})
}
