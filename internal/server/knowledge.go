package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/folio/internal/content"
)

type KnowledgeHandler struct {
	Content *content.Service
}

func (h *KnowledgeHandler) Register(g *echo.Group, saveLimit echo.MiddlewareFunc) {
	g.GET("", h.all)
	g.GET("/categories", h.categories)
	g.GET("/:category", h.get)
	g.POST("/:category/save", h.save, saveLimit)
}

func (h *KnowledgeHandler) all(c echo.Context) error {
	entries, err := h.Content.GetAllKnowledge(c.Request().Context())
	if err != nil {
		return err
	}
	out := make(map[string]KnowledgeEntry, len(entries))
	for k, e := range entries {
		out[k] = KnowledgeEntry{Content: e.Content, Exists: e.Exists}
	}
	return c.JSON(http.StatusOK, KnowledgeAllResponse{Status: statusSuccess, Categories: out})
}

func (h *KnowledgeHandler) categories(c echo.Context) error {
	return c.JSON(http.StatusOK, CategoriesResponse{Status: statusSuccess, Categories: content.Categories})
}

func (h *KnowledgeHandler) get(c echo.Context) error {
	category := c.Param("category")
	e, err := h.Content.GetKnowledge(c.Request().Context(), category)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, KnowledgeResponse{Status: statusSuccess, Category: category, Content: e.Content, SHA: e.SHA})
}

func (h *KnowledgeHandler) save(c echo.Context) error {
	category := c.Param("category")
	var req ContentSaveRequest
	if err := c.Bind(&req); err != nil || req.Content == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}
	commit, err := h.Content.SaveKnowledge(c.Request().Context(), actor(c), category, *req.Content, req.Message)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SaveResponse{Status: statusSuccess, Message: category + " saved", Commit: commit})
}
