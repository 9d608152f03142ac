package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/folio/internal/content"
)

type ProjectsHandler struct {
	Content *content.Service
}

func (h *ProjectsHandler) Register(g *echo.Group, saveLimit echo.MiddlewareFunc) {
	g.GET("", h.list)
	g.POST("/save", h.save, saveLimit)
	g.POST("/upload-image", h.uploadImage, saveLimit)
}

// list
//
//	@Summary	Projects file contents
//	@Tags		projects
//	@Security	BearerAuth
//	@Success	200	{object}	ProjectsResponse
//	@Router		/api/v1/projects [get]
func (h *ProjectsHandler) list(c echo.Context) error {
	p, err := h.Content.GetProjects(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ProjectsResponse{Status: statusSuccess, Projects: p.Items, Commit: p.Commit})
}

// save
//
//	@Summary	Replace the projects list
//	@Tags		projects
//	@Security	BearerAuth
//	@Param		payload	body		SaveProjectsRequest	true	"Projects"
//	@Success	200		{object}	SaveResponse
//	@Failure	409		{object}	HTTPError
//	@Router		/api/v1/projects/save [post]
func (h *ProjectsHandler) save(c echo.Context) error {
	var req SaveProjectsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Projects must be a list")
	}
	commit, err := h.Content.SaveProjects(c.Request().Context(), actor(c), req.Projects, req.OldProjects, req.Message)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SaveResponse{Status: statusSuccess, Message: "Projects saved", Commit: commit})
}

// uploadImage
//
//	@Summary	Upload a project image, stored as WebP
//	@Tags		projects
//	@Security	BearerAuth
//	@Accept		multipart/form-data
//	@Param		file		formData	file	true	"Image"
//	@Param		projectName	formData	string	true	"Project name used for the filename"
//	@Success	200	{object}	UploadResponse
//	@Router		/api/v1/projects/upload-image [post]
func (h *ProjectsHandler) uploadImage(c echo.Context) error {
	projectName := strings.TrimSpace(c.FormValue("projectName"))
	if projectName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "projectName is required")
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	if err := h.Content.Images.Validate(fh.Filename, fh.Header.Get(echo.HeaderContentType), fh.Size); err != nil {
		return err
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.Content.Images.MaxBytes+1))
	if err != nil {
		return err
	}
	up, err := h.Content.UploadImage(c.Request().Context(), actor(c), projectName, fh.Filename, fh.Header.Get(echo.HeaderContentType), data)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, UploadResponse{Status: statusSuccess, ImageURL: up.URL, Filename: up.Filename})
}
