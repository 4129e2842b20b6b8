package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// ParseLimit parses the limit query parameter with default and maximum bounds
func ParseLimit(c *gin.Context, defaultLimit, maxLimit int) int {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))

	if limit < 1 {
		limit = defaultLimit
	} else if limit > maxLimit {
		limit = maxLimit // Cap the maximum limit
	}

	return limit
}

// SendErrorResponse sends a standardized error response
func SendErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{"error": message})
}
