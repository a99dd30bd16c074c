package server

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	walletdomain "github.com/lvlrf/radpanel/internal/wallet/domain"
)

const headerActorID = "X-Actor-ID"

func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	access := log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		access.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// actorFrom resolves the acting admin from the request header. Ledger rows
// written without the header attribute to the system actor.
func actorFrom(c *gin.Context) walletdomain.Actor {
	raw := strings.TrimSpace(c.GetHeader(headerActorID))
	if raw == "" {
		return walletdomain.System
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return walletdomain.System
	}
	return walletdomain.ByUser(id)
}
