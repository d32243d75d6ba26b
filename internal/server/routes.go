package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/danmuck/mxprint/internal/protocol"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type commandInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (a *Admin) registerRoutes() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"device":   a.name,
			"uptime":   time.Since(a.started).Round(time.Second).String(),
			"magic":    fmt.Sprintf("0x%04X", a.magic),
			"sessions": a.registry.Len(),
		})
	})

	a.router.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sessions": a.registry.Snapshot()})
	})

	a.router.GET("/sessions/:id", func(c *gin.Context) {
		s, ok := a.registry.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusOK, s.Status())
	})

	a.router.GET("/commands", func(c *gin.Context) {
		all := protocol.Commands()
		out := make([]commandInfo, 0, len(all))
		for _, cmd := range all {
			out = append(out, commandInfo{ID: fmt.Sprintf("0x%02X", uint8(cmd)), Name: cmd.String()})
		}
		c.JSON(http.StatusOK, gin.H{"commands": out})
	})

	a.router.GET(metricsPath, gin.WrapH(promhttp.Handler()))
}
