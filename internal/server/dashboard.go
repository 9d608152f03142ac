package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/folio/internal/store"
)

// DashboardStore reads the aggregate documents other processes maintain.
type DashboardStore interface {
	GetCounters(ctx context.Context, docID string) (map[string]any, error)
	ListActivity(ctx context.Context, q store.ActivityQuery) ([]store.Activity, error)
	ListWeeklyMetrics(ctx context.Context, since string) ([]map[string]any, error)
}

type DashboardHandler struct {
	Store        DashboardStore
	CountersDoc  string
	WeeklyDays   int
	DefaultLimit int
	MaxLimit     int

	now func() time.Time
}

func (h *DashboardHandler) Register(g *echo.Group) {
	g.GET("/stats", h.stats)
	g.GET("/activity", h.activity)
	g.GET("/weekly", h.weekly)
}

var statKeys = []string{"total_queries", "total_uploads", "total_logins"}

// stats
//
//	@Summary	Usage counters
//	@Tags		dashboard
//	@Security	BearerAuth
//	@Success	200	{object}	StatsResponse
//	@Router		/api/v1/dashboard/stats [get]
func (h *DashboardHandler) stats(c echo.Context) error {
	doc, err := h.Store.GetCounters(c.Request().Context(), h.CountersDoc)
	if err != nil {
		return err
	}
	stats := make(map[string]any, len(statKeys))
	for _, k := range statKeys {
		if v, ok := doc[k]; ok {
			stats[k] = v
		} else {
			stats[k] = 0
		}
	}
	return c.JSON(http.StatusOK, StatsResponse{Status: statusSuccess, Stats: stats})
}

// activity
//
//	@Summary	Recent admin actions, newest first
//	@Tags		dashboard
//	@Security	BearerAuth
//	@Param		limit	query	int		false	"Max entries"
//	@Param		type	query	string	false	"Filter by action type"
//	@Success	200	{object}	ActivityResponse
//	@Router		/api/v1/dashboard/activity [get]
func (h *DashboardHandler) activity(c echo.Context) error {
	limit := h.DefaultLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}
	if h.MaxLimit > 0 && limit > h.MaxLimit {
		limit = h.MaxLimit
	}
	items, err := h.Store.ListActivity(c.Request().Context(), store.ActivityQuery{Limit: limit, Type: c.QueryParam("type")})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ActivityResponse{Status: statusSuccess, Activity: items})
}

// weekly
//
//	@Summary	Daily aggregates for the trailing week
//	@Tags		dashboard
//	@Security	BearerAuth
//	@Success	200	{object}	WeeklyResponse
//	@Router		/api/v1/dashboard/weekly [get]
func (h *DashboardHandler) weekly(c echo.Context) error {
	now := time.Now
	if h.now != nil {
		now = h.now
	}
	days := h.WeeklyDays
	if days <= 0 {
		days = 7
	}
	since := now().UTC().AddDate(0, 0, -(days - 1)).Format("2006-01-02")
	docs, err := h.Store.ListWeeklyMetrics(c.Request().Context(), since)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, WeeklyResponse{Status: statusSuccess, Weekly: docs})
}
