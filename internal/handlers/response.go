package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stickerlab/packsmith-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondAPIError maps a service error onto the envelope. Internal errors get
// a generic message so stack details never reach the client.
func RespondAPIError(c *gin.Context, err error) {
	ae := apierr.From(err)
	if ae.Code == apierr.CodeInternal {
		RespondError(c, http.StatusInternalServerError, ae.Code, nil)
		return
	}
	RespondError(c, ae.Status, ae.Code, ae.Err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
