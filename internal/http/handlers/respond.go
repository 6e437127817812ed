package handlers

import (
	"log/slog"
	"net/http"

	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

type kindResponse struct {
	status int
	code   string
}

// kindResponses maps every error kind to its HTTP status and error code.
var kindResponses = map[apperr.Kind]kindResponse{
	apperr.KindValidation:           {http.StatusBadRequest, "invalid_request"},
	apperr.KindDuplicateIdentity:    {http.StatusConflict, "email_taken"},
	apperr.KindAuthenticationFailed: {http.StatusUnauthorized, "invalid_credentials"},
	apperr.KindCredentialExpired:    {http.StatusUnauthorized, "token_expired"},
	apperr.KindInvalidCredential:    {http.StatusUnauthorized, "invalid_token"},
	apperr.KindNotFound:             {http.StatusNotFound, "not_found"},
	apperr.KindForbidden:            {http.StatusForbidden, "forbidden"},
	apperr.KindInternal:             {http.StatusInternalServerError, "internal_error"},
}

// StatusFor returns the HTTP status for an error kind.
func StatusFor(kind apperr.Kind) int {
	if r, ok := kindResponses[kind]; ok {
		return r.status
	}
	return http.StatusInternalServerError
}

func requestIDFrom(ctx *gin.Context) string {
	if id := ctx.GetString(middlewares.CtxRequestID); id != "" {
		return id
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func exposeErrors(ctx *gin.Context) bool {
	return ctx.GetBool(middlewares.CtxExposeErrors)
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

// RespondAppError writes err using the kind table. Errors that are not
// *apperr.Error are treated as internal.
func RespondAppError(ctx *gin.Context, err error) {
	e, ok := apperr.As(err)
	if !ok {
		e = apperr.Internal("Internal server error", err)
	}

	resp, ok := kindResponses[e.Kind]
	if !ok {
		resp = kindResponses[apperr.KindInternal]
	}

	message := e.Message
	if message == "" {
		message = http.StatusText(resp.status)
	}

	var details interface{}
	switch {
	case len(e.Fields) > 0:
		details = gin.H{"fields": e.Fields}
	case e.Kind == apperr.KindInternal:
		slog.Default().ErrorContext(ctx.Request.Context(), "request failed",
			"err", err,
			"request_id", requestIDFrom(ctx),
			"route", ctx.FullPath(),
		)
		if exposeErrors(ctx) && e.Err != nil {
			details = gin.H{"reason": e.Err.Error()}
		}
	}

	RespondError(ctx, resp.status, resp.code, message, details)
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}
