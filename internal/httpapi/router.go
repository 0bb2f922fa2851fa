package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/studentverse/redemption/internal/kv"
	"github.com/studentverse/redemption/internal/redemption"
)

// NewRouter assembles the full engine: liveness, bearer auth, idempotent
// replay, then the redemption routes under /api/v1.
func NewRouter(svc *redemption.Service, kvc *kv.Client, jwtSecret []byte, idemTTL time.Duration, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	api := r.Group("/api/v1", Auth(jwtSecret), Idempotency(kvc, idemTTL, log))
	NewHandler(svc, log).Register(api)
	return r
}
