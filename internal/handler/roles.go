package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/akabemail-hash/asutkosks/internal/model"
)

type RoleHandler struct {
	Roles RoleStore
}

func NewRoleHandler(roles RoleStore) *RoleHandler { return &RoleHandler{Roles: roles} }

type roleReq struct {
	Name        string   `json:"name" validate:"required,max=64"`
	Permissions []string `json:"permissions" validate:"dive,max=255"`
}

// cleanPermissions trims entries and drops blanks and repeats, keeping order.
func cleanPermissions(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func (h *RoleHandler) List(c echo.Context) error {
	roles, err := h.Roles.List(c.Request().Context())
	if err != nil {
		return storeErr(err, "", "")
	}
	return c.JSON(http.StatusOK, roles)
}

func (h *RoleHandler) Create(c echo.Context) error {
	var req roleReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ro := model.Role{Name: strings.TrimSpace(req.Name), Permissions: cleanPermissions(req.Permissions)}
	if err := h.Roles.Create(c.Request().Context(), &ro); err != nil {
		return storeErr(err, "", "Role name already exists")
	}
	return c.JSON(http.StatusCreated, ro)
}

func (h *RoleHandler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req roleReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ro := model.Role{ID: id, Name: strings.TrimSpace(req.Name), Permissions: cleanPermissions(req.Permissions)}
	if err := h.Roles.Update(c.Request().Context(), ro); err != nil {
		return storeErr(err, "Role not found", "Role name already exists")
	}
	return message(c, "Role updated")
}

func (h *RoleHandler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.Roles.Delete(c.Request().Context(), id); err != nil {
		return storeErr(err, "Role not found", "Role is assigned to users")
	}
	return message(c, "Role deleted")
}
