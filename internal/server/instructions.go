package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/folio/internal/content"
)

type InstructionsHandler struct {
	Content *content.Service
}

func (h *InstructionsHandler) Register(g *echo.Group, saveLimit echo.MiddlewareFunc) {
	g.GET("", h.get)
	g.POST("/save", h.save, saveLimit)
	g.GET("/history", h.history)
}

func (h *InstructionsHandler) get(c echo.Context) error {
	ins, err := h.Content.GetInstructions(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, InstructionsResponse{Status: statusSuccess, Content: ins.Content, SHA: ins.SHA})
}

func (h *InstructionsHandler) save(c echo.Context) error {
	var req ContentSaveRequest
	if err := c.Bind(&req); err != nil || req.Content == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}
	commit, err := h.Content.SaveInstructions(c.Request().Context(), actor(c), *req.Content, req.Message)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SaveResponse{Status: statusSuccess, Message: "System instructions saved", Commit: commit})
}

func (h *InstructionsHandler) history(c echo.Context) error {
	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 200 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 200")
		}
		limit = n
	}
	hist, err := h.Content.InstructionsHistory(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, HistoryResponse{Status: statusSuccess, History: hist})
}
