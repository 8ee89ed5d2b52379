package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/goliatone/go-arcade/core"
)

// renderError normalizes any error into the arcade envelope and writes it
// as the response. Every error leaving the API carries a category, an
// HTTP status, and a stable text code.
func renderError(c *gin.Context, err error) {
	mapped := core.ArcadeErrorMapper(err)
	c.AbortWithStatusJSON(mapped.Code, gin.H{
		"error": gin.H{
			"message":   mapped.Message,
			"category":  string(mapped.Category),
			"code":      mapped.Code,
			"text_code": mapped.TextCode,
		},
	})
}
