package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/folio/internal/content"
)

type ContactsHandler struct {
	Content *content.Service
}

func (h *ContactsHandler) Register(g *echo.Group, saveLimit echo.MiddlewareFunc) {
	g.GET("", h.get)
	g.POST("/save", h.save, saveLimit)
}

func (h *ContactsHandler) get(c echo.Context) error {
	ct, err := h.Content.GetContacts(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ContactResponse{Status: statusSuccess, Contact: ct.Data, Commit: ct.Commit})
}

func (h *ContactsHandler) save(c echo.Context) error {
	var req SaveContactRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	commit, err := h.Content.SaveContacts(c.Request().Context(), actor(c), req.Contact, req.Message)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SaveResponse{Status: statusSuccess, Message: "Contacts saved", Commit: commit})
}
