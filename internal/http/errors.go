package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/lending"
)

var kindStatus = map[lending.Kind]int{
	lending.KindNotFound:         http.StatusNotFound,
	lending.KindForbidden:        http.StatusForbidden,
	lending.KindConflict:         http.StatusConflict,
	lending.KindInvalidState:     http.StatusConflict,
	lending.KindLimitReached:     http.StatusUnprocessableEntity,
	lending.KindCapacityExceeded: http.StatusUnprocessableEntity,
	lending.KindInvalid:          http.StatusBadRequest,
}

// statusForKind maps a lending failure class to an HTTP status.
func statusForKind(kind lending.Kind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusBadRequest
}

// respondLendingError reports a lending or catalog failure. Tagged business
// failures keep their message and code; anything else is an internal error.
func respondLendingError(c *gin.Context, err error, context string) {
	if lerr, ok := lending.AsError(err); ok {
		respondError(c, statusForKind(lerr.Kind), lerr.Error(), lerr.Code())
		return
	}
	respondInternalError(c, err, context)
}
