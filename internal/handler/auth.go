package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/campus-forum/internal/auth"
	"github.com/iliyamo/campus-forum/internal/middleware"
	"github.com/iliyamo/campus-forum/internal/repository"
	"github.com/iliyamo/campus-forum/internal/utils"
	"github.com/iliyamo/campus-forum/internal/wx"
)

// CodeExchanger trades a third-party login code for the identifiers of
// the account behind it. The real implementation talks to the WeChat
// code2session endpoint; it is a collaborator, not part of this core.
type CodeExchanger interface {
	Exchange(ctx context.Context, code string) (openID, unionID string, err error)
}

// AuthHandler bundles dependencies for session endpoints: staff log in
// with email and password, front users arrive with a third-party code.
type AuthHandler struct {
	Staff     *repository.StaffRepo
	Users     *repository.FrontUserRepo
	StaffAuth *auth.Authority
	FrontAuth *auth.Authority
	Exchanger CodeExchanger
}

func NewAuthHandler(staff *repository.StaffRepo, users *repository.FrontUserRepo,
	staffAuth, frontAuth *auth.Authority, ex CodeExchanger) *AuthHandler {
	return &AuthHandler{Staff: staff, Users: users, StaffAuth: staffAuth, FrontAuth: frontAuth, Exchanger: ex}
}

type staffLoginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

type frontLoginReq struct {
	Code     string `json:"code"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

type sessionResp struct {
	Token   string `json:"token"`
	Subject string `json:"subject_id"`
}

// StaffLogin verifies credentials and issues a session token. Remember
// stretches the token to the long expiry.
func (h *AuthHandler) StaffLogin(c echo.Context) error {
	var req staffLoginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Staff.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !utils.VerifyPassword(s.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if !s.Active() {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account blocked"})
	}

	token, err := h.StaffAuth.Issue(ctx, s.SubjectID(), req.Remember)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	return c.JSON(http.StatusOK, sessionResp{Token: token, Subject: s.SubjectID()})
}

// FrontLogin exchanges a third-party code for a session, creating the
// account on first sight. Front sessions always use the long expiry, the
// way the mini-program keeps users signed in.
func (h *AuthHandler) FrontLogin(c echo.Context) error {
	var req frontLoginReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Code) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	openID, unionID, err := h.Exchanger.Exchange(ctx, req.Code)
	if err != nil {
		if errors.Is(err, wx.ErrInvalidCode) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid code"})
		}
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "code exchange failed"})
	}

	u, err := h.Users.GetByOpenID(ctx, openID)
	if errors.Is(err, repository.ErrNotFound) {
		u, err = h.Users.Create(ctx, openID, unionID, req.Username, req.Avatar)
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	if !u.Active() {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account blocked"})
	}

	token, err := h.FrontAuth.Issue(ctx, u.ID, true)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	return c.JSON(http.StatusOK, sessionResp{Token: token, Subject: u.ID})
}

// Logout revokes the token that authenticated this request.
func (h *AuthHandler) Logout(authority *auth.Authority) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := middleware.CurrentToken(c)
		if token == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "no session"})
		}
		if err := authority.Revoke(c.Request().Context(), token); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "retry"})
		}
		return c.NoContent(http.StatusNoContent)
	}
}

type updateProfileReq struct {
	Username  string `json:"username"`
	Signature string `json:"signature"`
	AvatarURL string `json:"avatar_url"`
	Gender    int    `json:"gender"`
}

// UpdateProfile lets a front user change their own display fields.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	var req updateProfileReq
	if err := c.Bind(&req); err != nil || req.Username == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username required"})
	}
	subj := middleware.CurrentSubject(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.UpdateProfile(ctx, subj.SubjectID(), req.Username, req.Signature, req.AvatarURL, req.Gender); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated subject's id and capability bitmask.
func (h *AuthHandler) Me(c echo.Context) error {
	subj := middleware.CurrentSubject(c)
	return c.JSON(http.StatusOK, echo.Map{
		"subject_id": subj.SubjectID(),
		"permission": subj.Capabilities(),
	})
}
