package httpapi

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/studentverse/redemption/internal/domain"
)

// statusOf maps every error kind to its HTTP status in one place.
func statusOf(kind domain.Kind) int {
	switch kind {
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	case domain.KindForbidden, domain.KindDeviceMismatch:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidArgument:
		return http.StatusBadRequest
	case domain.KindDailyLimit, domain.KindIneligibleOffer,
		domain.KindInvalidState, domain.KindVoidWindowExpired:
		return http.StatusConflict
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	case domain.KindInvalidOrExpired:
		return http.StatusGone
	case domain.KindTransient:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// publicMessage is what the caller sees. Domain messages are written for
// users; infrastructure details stay in the logs.
func publicMessage(err error) string {
	var de *domain.Error
	if errors.As(err, &de) {
		switch de.Kind {
		case domain.KindTransient:
			return "temporarily unavailable, retry shortly"
		case domain.KindInternal:
			return "internal error"
		}
		return de.Message
	}
	return "internal error"
}

// abortError ends the request with the error envelope. Rate-limit
// rejections carry a Retry-After hint.
func abortError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	if kind == domain.KindRateLimited {
		var de *domain.Error
		if errors.As(err, &de) && de.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(de.RetryAfter.Seconds()))))
		}
	}
	c.AbortWithStatusJSON(statusOf(kind), gin.H{
		"error": publicMessage(err),
		"code":  string(kind),
	})
}
