package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/akabemail-hash/asutkosks/internal/model"
)

// TaxonomyHandler serves visit types and problem types.
type TaxonomyHandler struct {
	VisitTypes   VisitTypeStore
	ProblemTypes ProblemTypeStore
}

func NewTaxonomyHandler(vts VisitTypeStore, pts ProblemTypeStore) *TaxonomyHandler {
	return &TaxonomyHandler{VisitTypes: vts, ProblemTypes: pts}
}

type visitTypeReq struct {
	Name                string `json:"name" validate:"required,max=100"`
	RequiresProblemType bool   `json:"requires_problem_type"`
}

type problemTypeReq struct {
	Name string `json:"name" validate:"required,max=100"`
}

const (
	visitTypeConflict   = "Visit type already exists or is in use"
	problemTypeConflict = "Problem type already exists or is in use"
)

func (h *TaxonomyHandler) ListVisitTypes(c echo.Context) error {
	vts, err := h.VisitTypes.List(c.Request().Context())
	if err != nil {
		return storeErr(err, "", "")
	}
	return c.JSON(http.StatusOK, vts)
}

func (h *TaxonomyHandler) CreateVisitType(c echo.Context) error {
	var req visitTypeReq
	if err := bind(c, &req); err != nil {
		return err
	}
	vt := model.VisitType{Name: strings.TrimSpace(req.Name), RequiresProblemType: req.RequiresProblemType}
	if err := h.VisitTypes.Create(c.Request().Context(), &vt); err != nil {
		return storeErr(err, "", visitTypeConflict)
	}
	return c.JSON(http.StatusCreated, vt)
}

func (h *TaxonomyHandler) UpdateVisitType(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req visitTypeReq
	if err := bind(c, &req); err != nil {
		return err
	}
	vt := model.VisitType{ID: id, Name: strings.TrimSpace(req.Name), RequiresProblemType: req.RequiresProblemType}
	if err := h.VisitTypes.Update(c.Request().Context(), vt); err != nil {
		return storeErr(err, "Visit type not found", visitTypeConflict)
	}
	return message(c, "Visit type updated")
}

func (h *TaxonomyHandler) DeleteVisitType(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.VisitTypes.Delete(c.Request().Context(), id); err != nil {
		return storeErr(err, "Visit type not found", visitTypeConflict)
	}
	return message(c, "Visit type deleted")
}

func (h *TaxonomyHandler) ListProblemTypes(c echo.Context) error {
	pts, err := h.ProblemTypes.List(c.Request().Context())
	if err != nil {
		return storeErr(err, "", "")
	}
	return c.JSON(http.StatusOK, pts)
}

func (h *TaxonomyHandler) CreateProblemType(c echo.Context) error {
	var req problemTypeReq
	if err := bind(c, &req); err != nil {
		return err
	}
	pt := model.ProblemType{Name: strings.TrimSpace(req.Name)}
	if err := h.ProblemTypes.Create(c.Request().Context(), &pt); err != nil {
		return storeErr(err, "", problemTypeConflict)
	}
	return c.JSON(http.StatusCreated, pt)
}

func (h *TaxonomyHandler) UpdateProblemType(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req problemTypeReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.ProblemTypes.Update(c.Request().Context(), model.ProblemType{ID: id, Name: strings.TrimSpace(req.Name)}); err != nil {
		return storeErr(err, "Problem type not found", problemTypeConflict)
	}
	return message(c, "Problem type updated")
}

func (h *TaxonomyHandler) DeleteProblemType(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.ProblemTypes.Delete(c.Request().Context(), id); err != nil {
		return storeErr(err, "Problem type not found", problemTypeConflict)
	}
	return message(c, "Problem type deleted")
}
