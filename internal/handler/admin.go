package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/campus-forum/internal/auth"
	"github.com/iliyamo/campus-forum/internal/repository"
)

// AdminHandler backs the administrative panel. Route-level capability
// guards (manage-users, manage-boards, manage-staff) gate each group;
// handlers assume an already-authorized staff subject.
type AdminHandler struct {
	Users      *repository.FrontUserRepo
	Boards     *repository.BoardRepo
	Staff      *repository.StaffRepo
	BcryptCost int
}

func NewAdminHandler(u *repository.FrontUserRepo, b *repository.BoardRepo,
	s *repository.StaffRepo, bcryptCost int) *AdminHandler {
	return &AdminHandler{Users: u, Boards: b, Staff: s, BcryptCost: bcryptCost}
}

// ListUsers pages through front users.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	offset, limit := pageParams(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	users, err := h.Users.List(ctx, offset, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"users": users})
}

type setStatusReq struct {
	Status int `json:"status"` // 0 = banned, 1 = active
}

// SetUserStatus bans or restores a front user. A ban takes full effect
// once the user's cached token entries expire or their next validation
// reloads the row.
func (h *AdminHandler) SetUserStatus(c echo.Context) error {
	id := c.Param("id")
	var req setStatusReq
	if err := c.Bind(&req); err != nil || (req.Status != 0 && req.Status != 1) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be 0 or 1"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.SetStatus(ctx, id, req.Status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

type createBoardReq struct {
	Name      string `json:"name"`
	Desc      string `json:"desc"`
	AvatarURL string `json:"avatar_url"`
}

// CreateBoard adds a board.
func (h *AdminHandler) CreateBoard(c echo.Context) error {
	var req createBoardReq
	if err := c.Bind(&req); err != nil || req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Boards.Create(ctx, req.Name, req.Desc, req.AvatarURL)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// SetBoardStatus hides or restores a board.
func (h *AdminHandler) SetBoardStatus(c echo.Context) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req setStatusReq
	if err := c.Bind(&req); err != nil || (req.Status != 0 && req.Status != 1) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be 0 or 1"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Boards.SetStatus(ctx, id, req.Status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "board not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

type createStaffReq struct {
	Email      string          `json:"email"`
	Username   string          `json:"username"`
	Password   string          `json:"password"`
	Permission auth.Permission `json:"permission"`
}

// CreateStaff adds a staff account with an explicit capability bitmask.
func (h *AdminHandler) CreateStaff(c echo.Context) error {
	var req createStaffReq
	if err := c.Bind(&req); err != nil || req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}
	if req.Permission == 0 {
		req.Permission = auth.Operator
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Staff.Create(ctx, req.Email, req.Username, req.Password, req.Permission, h.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

type setPermissionReq struct {
	Permission auth.Permission `json:"permission"`
}

// SetStaffPermission replaces a staff account's bitmask.
func (h *AdminHandler) SetStaffPermission(c echo.Context) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req setPermissionReq
	if err := c.Bind(&req); err != nil || req.Permission == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "permission required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Staff.SetPermission(ctx, id, req.Permission); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "staff not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
