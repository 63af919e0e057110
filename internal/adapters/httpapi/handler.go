package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"kincore/internal/apperror"
	"kincore/internal/blob"
	"kincore/internal/core"
	"kincore/internal/export"
	"kincore/pkg/domain"
)

// Handler handles HTTP requests for persons, trees and exports
type Handler struct {
	svc       *core.Service
	exporter  *export.Exporter
	urlExpiry time.Duration
}

// NewHandler creates a handler. exporter may be nil, in which case the export
// routes answer 501.
func NewHandler(svc *core.Service, exporter *export.Exporter) *Handler {
	return &Handler{svc: svc, exporter: exporter, urlExpiry: blob.DefaultURLExpiry}
}

func viewer(c echo.Context) (domain.Viewer, error) {
	v, ok := ViewerFrom(c)
	if !ok {
		return domain.Viewer{}, apperror.ErrUnauthorized
	}
	return v, nil
}

// ListPersons returns the persons visible to the viewer
// GET /api/v1/persons
func (h *Handler) ListPersons(c echo.Context) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	persons, err := h.svc.ListPersons(c.Request().Context(), v)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, persons)
}

// CreatePerson creates a person owned by the viewer unless owner_id says otherwise
// POST /api/v1/persons
func (h *Handler) CreatePerson(c echo.Context) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	var req PersonRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	var p domain.Person
	if err := req.apply(&p); err != nil {
		return apperror.NewBadRequest(err.Error())
	}
	created, res, err := h.svc.CreatePerson(c.Request().Context(), v, p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, PersonResponse{Person: created, Warnings: findings(res)})
}

// GetPerson returns a single person
// GET /api/v1/persons/:id
func (h *Handler) GetPerson(c echo.Context) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPerson(c.Request().Context(), v, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// UpdatePerson replaces the editable fields of a person
// PUT /api/v1/persons/:id
func (h *Handler) UpdatePerson(c echo.Context) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	var req PersonRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	var badInput error
	updated, res, err := h.svc.UpdatePerson(c.Request().Context(), v, c.Param("id"), func(p *domain.Person) error {
		badInput = req.apply(p)
		return badInput
	})
	if badInput != nil {
		return apperror.NewBadRequest(badInput.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, PersonResponse{Person: updated, Warnings: findings(res)})
}

// DeletePerson removes a person and clears references to it
// DELETE /api/v1/persons/:id
func (h *Handler) DeletePerson(c echo.Context) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	if _, err := h.svc.DeletePerson(c.Request().Context(), v, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// SetSpouse writes the directed spouse link
// PUT /api/v1/persons/:id/spouse
func (h *Handler) SetSpouse(c echo.Context) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	var req SpouseRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	p, res, err := h.svc.SetSpouse(c.Request().Context(), v, c.Param("id"), req.SpouseID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, PersonResponse{Person: p, Warnings: findings(res)})
}

// Tree builds the tree rooted at :id
// GET /api/v1/persons/:id/tree?reference=<id>
func (h *Handler) Tree(c echo.Context) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	tree, err := h.svc.BuildTree(c.Request().Context(), v, c.Param("id"), c.QueryParam("reference"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tree)
}

// DefaultReference returns the person a tree view starts from when none is chosen
// GET /api/v1/reference
func (h *Handler) DefaultReference(c echo.Context) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	p, ok, err := h.svc.DefaultReference(c.Request().Context(), v)
	if err != nil {
		return err
	}
	if !ok {
		return c.JSON(http.StatusOK, ReferenceResponse{})
	}
	return c.JSON(http.StatusOK, ReferenceResponse{Person: &p})
}

// ExportTree builds the tree rooted at :id and stores it as a blob
// POST /api/v1/persons/:id/tree/exports?reference=<id>
func (h *Handler) ExportTree(c echo.Context) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	if h.exporter == nil {
		return apperror.ErrUnsupported.WithMessage("exports are not configured")
	}
	ctx := c.Request().Context()
	tree, err := h.svc.BuildTree(ctx, v, c.Param("id"), c.QueryParam("reference"))
	if err != nil {
		return err
	}
	rec, err := h.exporter.Export(ctx, v, tree)
	if err != nil {
		return err
	}
	url, err := h.exporter.URL(ctx, v, rec.Key, h.urlExpiry)
	switch {
	case err == nil:
		rec.URL = url
	case !errors.Is(err, blob.ErrUnsupported):
		return err
	}
	return c.JSON(http.StatusCreated, ExportResponse{Record: rec})
}

// ListExports lists stored tree exports
// GET /api/v1/exports?owner=<id>
func (h *Handler) ListExports(c echo.Context) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	if h.exporter == nil {
		return apperror.ErrUnsupported.WithMessage("exports are not configured")
	}
	recs, err := h.exporter.List(c.Request().Context(), v, c.QueryParam("owner"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, recs)
}
