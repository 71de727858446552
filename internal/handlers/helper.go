package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	versionHeader   = "If-Match"
)

func ParseStringIDParam(c *gin.Context, param string) string {
	idStr := c.Param(param)
	idStr = strings.TrimSpace(idStr)
	if idStr == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "ID cannot be empty",
		})
		return ""
	}
	return idStr
}

func parseIntQuery(c *gin.Context, param string, defaultValue int) int {
	valueStr := c.Query(param)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// parsePagination turns page/size query parameters into limit and offset.
func parsePagination(c *gin.Context) (limit, offset int) {
	page := parseIntQuery(c, "page", 1)
	size := parseIntQuery(c, "size", defaultPageSize)
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	return size, (page - 1) * size
}

// parseExpectedVersion reads the document version the client edited from
// If-Match or the version query parameter. 0 means no check. ok is false when
// a bad value was sent; the 400 response is already written then.
func parseExpectedVersion(c *gin.Context) (version int, ok bool) {
	raw := strings.Trim(c.GetHeader(versionHeader), `"W/`)
	if raw == "" {
		raw = c.Query("version")
	}
	if raw == "" {
		return 0, true
	}

	version, err := strconv.Atoi(raw)
	if err != nil || version < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid version",
			Details: "version must be a non-negative integer",
		})
		return 0, false
	}
	return version, true
}

// parseIndexParam reads a non-negative integer path parameter.
func parseIndexParam(c *gin.Context, param string) (int, bool) {
	index, err := strconv.Atoi(c.Param(param))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "must be a non-negative integer",
		})
		return 0, false
	}
	return index, true
}
