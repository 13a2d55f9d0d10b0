package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/akabemail-hash/asutkosks/internal/apperr"
	"github.com/akabemail-hash/asutkosks/internal/model"
	"github.com/akabemail-hash/asutkosks/internal/repository"
	"github.com/akabemail-hash/asutkosks/internal/utils"
)

type UserHandler struct {
	Users      UserStore
	BcryptCost int
}

func NewUserHandler(users UserStore, bcryptCost int) *UserHandler {
	return &UserHandler{Users: users, BcryptCost: bcryptCost}
}

type createUserReq struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=72"`
	RoleID   uint64 `json:"role_id" validate:"required"`
	Language string `json:"language" validate:"omitempty,oneof=en az ru tr"`
}

type updateUserReq struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"max=72"`
	RoleID   uint64 `json:"role_id" validate:"required"`
	Language string `json:"language" validate:"omitempty,oneof=en az ru tr"`
}

const userConflict = "Username already exists"

func (h *UserHandler) List(c echo.Context) error {
	users, err := h.Users.List(c.Request().Context())
	if err != nil {
		return storeErr(err, "", "")
	}
	return c.JSON(http.StatusOK, users)
}

func (h *UserHandler) Create(c echo.Context) error {
	var req createUserReq
	if err := bind(c, &req); err != nil {
		return err
	}
	hash, err := utils.HashPassword(req.Password, h.BcryptCost)
	if err != nil {
		return apperr.Upstream("Internal Server Error", err)
	}
	u := model.User{
		Username:     strings.TrimSpace(req.Username),
		PasswordHash: hash,
		RoleID:       req.RoleID,
		Language:     req.Language,
	}
	if u.Language == "" {
		u.Language = "en"
	}
	if err := h.Users.Create(c.Request().Context(), &u); err != nil {
		return storeErr(err, "", userConflict)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":       u.ID,
		"username": u.Username,
		"role_id":  u.RoleID,
		"language": u.Language,
	})
}

// Update re-hashes the password only when one is supplied.
func (h *UserHandler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req updateUserReq
	if err := bind(c, &req); err != nil {
		return err
	}
	upd := repository.UserUpdate{
		Username: strings.TrimSpace(req.Username),
		RoleID:   req.RoleID,
		Language: req.Language,
	}
	if upd.Language == "" {
		upd.Language = "en"
	}
	if req.Password != "" {
		hash, err := utils.HashPassword(req.Password, h.BcryptCost)
		if err != nil {
			return apperr.Upstream("Internal Server Error", err)
		}
		upd.PasswordHash = &hash
	}
	if err := h.Users.Update(c.Request().Context(), id, upd); err != nil {
		return storeErr(err, "User not found", userConflict)
	}
	return message(c, "User updated")
}

func (h *UserHandler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.Users.Delete(c.Request().Context(), id); err != nil {
		return storeErr(err, "User not found", "User has recorded visits")
	}
	return message(c, "User deleted")
}
