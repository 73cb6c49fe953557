package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	"spendsnap/internal/domain"
	apperrors "spendsnap/internal/errors"
	"spendsnap/internal/logger"
)

// ErrorBody builds the failure envelope {success:false, message, error:CODE}.
func ErrorBody(appErr *apperrors.AppError) domain.APIResponse[any] {
	return domain.APIResponse[any]{
		Success: false,
		Message: appErr.Message,
		Error:   appErr.Code,
	}
}

// RespondWithError writes a consistent JSON error response and aborts the
// chain. AppErrors keep their status, code and message; anything else is
// logged and reported as an internal error.
func RespondWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Internal != nil {
			logger.Get().Errorw("app error",
				"code", appErr.Code,
				"message", appErr.Message,
				"internal", appErr.Internal.Error(),
				"path", c.Request.URL.Path,
			)
		}
		c.AbortWithStatusJSON(appErr.StatusCode, ErrorBody(appErr))
		return
	}

	logger.Get().Errorw("unexpected error",
		"error", err.Error(),
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
	)
	c.AbortWithStatusJSON(apperrors.ErrInternalServer.StatusCode, ErrorBody(apperrors.ErrInternalServer))
}

// ErrorHandler returns a Gin middleware that converts errors set on the Gin
// context into envelope responses when the handler has not written one.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		// Process the last error (most relevant in a middleware chain)
		RespondWithError(c, c.Errors.Last().Err)
	}
}

// Recovery turns panics into an internal error envelope.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Get().Errorw("panic recovered",
			"panic", recovered,
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		)
		c.AbortWithStatusJSON(apperrors.ErrInternalServer.StatusCode, ErrorBody(apperrors.ErrInternalServer))
	})
}

// NoRoute answers unknown paths with the not-found envelope.
func NoRoute(c *gin.Context) {
	RespondWithError(c, apperrors.WithMessage(apperrors.ErrNotFound, "Route not found"))
}
