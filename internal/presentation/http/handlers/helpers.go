package handlers

import (
	"github.com/convertrack/convertrack-go/internal/domain/events"
	"github.com/gin-gonic/gin"
)

// pageFromQuery builds a minimal page context for GET endpoints that
// only need a profile scope, not a full beacon payload.
func pageFromQuery(c *gin.Context) events.PageContext {
	return events.PageContext{
		URL:  c.Query("url"),
		Path: c.Query("path"),
	}
}
