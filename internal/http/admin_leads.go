package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/jmehdipour/lead-intake/internal/repository"
	echo "github.com/labstack/echo/v4"
)

func listLeadsHandler(chRepo repository.CHLeadsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := 0
		offset := 0
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				offset = n
			}
		}
		limit, offset = repository.ClampPage(limit, offset)

		mode := strings.TrimSpace(c.QueryParam("mode"))

		leads, err := chRepo.ListRecent(c.Request().Context(), mode, limit, offset)
		if err != nil {
			c.Logger().Errorf("clickhouse list failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(leads),
			"results": leads,
		})
	}
}
