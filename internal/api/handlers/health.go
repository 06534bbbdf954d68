package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health reports liveness
// GET /health
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ping answers with the configured ping message
// GET /api/ping
func Ping(message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": message})
	}
}
