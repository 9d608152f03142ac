package server

import (
	"context"
	"net/http"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/folio/internal/content"
	"github.com/mohammad-safakhou/folio/internal/store"
	"github.com/mohammad-safakhou/folio/internal/tasks"
)

// CommunicationStore persists contact-form submissions.
type CommunicationStore interface {
	CreateCommunication(ctx context.Context, name, email, message string) (store.Communication, error)
	ListCommunications(ctx context.Context, q store.CommunicationQuery) ([]store.Communication, error)
	UpdateCommunicationStatus(ctx context.Context, id, status string) error
	DeleteCommunication(ctx context.Context, id string) error
}

type CommunicationHandler struct {
	Store     CommunicationStore
	Activity  content.ActivityLog
	Tasks     tasks.Dispatcher
	ListLimit int
}

// Register mounts the public submit endpoint and the authenticated inbox.
func (h *CommunicationHandler) Register(g *echo.Group, requireAuth echo.MiddlewareFunc) {
	g.POST("/submit", h.submit)
	g.GET("", h.list, requireAuth)
	g.PATCH("/:id/status", h.updateStatus, requireAuth)
	g.DELETE("/:id", h.remove, requireAuth)
}

func validateSubmission(req *SubmitCommunicationRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if n := utf8.RuneCountInString(req.Name); n < 1 || n > 100 {
		return echo.NewHTTPError(http.StatusBadRequest, "name must be 1 to 100 characters")
	}
	if n := utf8.RuneCountInString(req.Message); n < 1 || n > 2000 || strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message must be 1 to 2000 characters")
	}
	addr, err := mail.ParseAddress(req.Email)
	if err != nil || addr.Address != req.Email || !strings.Contains(addr.Address[strings.LastIndex(addr.Address, "@"):], ".") {
		return echo.NewHTTPError(http.StatusBadRequest, "a valid email is required")
	}
	return nil
}

// submit
//
//	@Summary	Public contact form
//	@Tags		communication
//	@Param		payload	body		SubmitCommunicationRequest	true	"Message"
//	@Success	200		{object}	SubmitCommunicationResponse
//	@Failure	400		{object}	HTTPError
//	@Router		/api/v1/communication/submit [post]
func (h *CommunicationHandler) submit(c echo.Context) error {
	var req SubmitCommunicationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validateSubmission(&req); err != nil {
		return err
	}
	rec, err := h.Store.CreateCommunication(c.Request().Context(), req.Name, req.Email, req.Message)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SubmitCommunicationResponse{
		Status:   statusSuccess,
		Message:  "Your message has been received!",
		RecordID: rec.ID,
	})
}

func (h *CommunicationHandler) list(c echo.Context) error {
	status := c.QueryParam("status")
	if status != "" && !store.ValidStatus(status) {
		status = ""
	}
	recs, err := h.Store.ListCommunications(c.Request().Context(), store.CommunicationQuery{Status: status, Limit: h.ListLimit})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, CommunicationListResponse{Status: statusSuccess, Records: recs, Count: len(recs)})
}

func (h *CommunicationHandler) updateStatus(c echo.Context) error {
	id := c.Param("id")
	var req StatusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if !store.ValidStatus(req.Status) {
		return echo.NewHTTPError(http.StatusBadRequest, "status must be one of new, done, dismissed")
	}
	if err := h.Store.UpdateCommunicationStatus(c.Request().Context(), id, req.Status); err != nil {
		return err
	}
	content.RecordActivity(h.Tasks, h.Activity, store.Activity{
		Type:         "communication_updated",
		UserID:       actor(c),
		ResourceType: "communication",
		ResourceID:   &id,
		Details:      map[string]any{"status": req.Status},
	})
	return c.JSON(http.StatusOK, MessageResponse{Status: statusSuccess, Message: "Record marked as " + req.Status})
}

func (h *CommunicationHandler) remove(c echo.Context) error {
	id := c.Param("id")
	if err := h.Store.DeleteCommunication(c.Request().Context(), id); err != nil {
		return err
	}
	content.RecordActivity(h.Tasks, h.Activity, store.Activity{
		Type:         "communication_deleted",
		UserID:       actor(c),
		ResourceType: "communication",
		ResourceID:   &id,
	})
	return c.JSON(http.StatusOK, MessageResponse{Status: statusSuccess, Message: "Record deleted"})
}
