package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/studentverse/redemption/internal/domain"
	"github.com/studentverse/redemption/internal/kv"
)

const (
	idemKeyPrefix   = "idem:"
	maxRequestIDLen = 128

	// ReplayHeader marks a response served from the idempotency record
	// instead of being produced fresh.
	ReplayHeader = "X-Idempotent-Replay"
)

type idemRecord struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

// Idempotency replays POSTs that carry an X-Request-ID the caller already
// used: the first response is recorded per (user, request id) and repeats
// get it back verbatim. The record store failing open is fine; replay
// safety then rests on the CAS transitions and the daily unique index.
// Retryable outcomes (5xx) are never pinned.
func Idempotency(kvc *kv.Client, ttl time.Duration, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		reqID := strings.TrimSpace(c.GetHeader("X-Request-ID"))
		if reqID == "" {
			c.Next()
			return
		}
		if len(reqID) > maxRequestIDLen {
			abortError(c, domain.E(domain.KindInvalidArgument, "X-Request-ID is too long"))
			return
		}

		key := idemKeyPrefix + callerID(c) + ":" + reqID
		ctx := c.Request.Context()

		raw, err := kvc.Get(ctx, key)
		switch {
		case err == nil:
			var rec idemRecord
			if json.Unmarshal([]byte(raw), &rec) == nil {
				c.Header(ReplayHeader, "true")
				c.Data(rec.Status, "application/json; charset=utf-8", []byte(rec.Body))
				c.Abort()
				return
			}
		case !errors.Is(err, kv.ErrNotFound):
			log.Warn("idempotency store unavailable, proceeding without replay protection",
				zap.Error(err))
			c.Next()
			return
		}

		rw := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = rw
		c.Next()

		if status := rw.Status(); status < http.StatusInternalServerError {
			rec, err := json.Marshal(idemRecord{Status: status, Body: rw.body.String()})
			if err != nil {
				return
			}
			// SETNX: a concurrent duplicate may have recorded first; the
			// loser's response was produced under CAS protection anyway.
			if _, err := kvc.SetIfAbsent(ctx, key, string(rec), ttl); err != nil {
				log.Warn("idempotency record not stored", zap.Error(err))
			}
		}
	}
}

// recordingWriter tees the response body so it can be replayed later.
type recordingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
