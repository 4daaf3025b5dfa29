package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/campus-forum/internal/cache"
	"github.com/iliyamo/campus-forum/internal/middleware"
	"github.com/iliyamo/campus-forum/internal/repository"
)

// NotifyHandler serves the notifications the reconciliation jobs create.
// The unread counter is read-through: seeded from the store on a miss,
// bumped by the reconciler, decremented on mark-read.
type NotifyHandler struct {
	Notifications *repository.NotificationRepo
	Cache         cache.Store
}

func NewNotifyHandler(n *repository.NotificationRepo, c cache.Store) *NotifyHandler {
	return &NotifyHandler{Notifications: n, Cache: c}
}

func unreadKey(userID string) string { return "notify:" + userID }

// List pages through the caller's notifications.
func (h *NotifyHandler) List(c echo.Context) error {
	subj := middleware.CurrentSubject(c)
	offset, limit := pageParams(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Notifications.ListForUser(ctx, subj.SubjectID(), offset, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"notifications": items})
}

// Unread returns the caller's unread count from the cache, computing it
// from the store once per cold entry.
func (h *NotifyHandler) Unread(c echo.Context) error {
	subj := middleware.CurrentSubject(c)
	key := unreadKey(subj.SubjectID())

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	v, err := h.Cache.GetField(ctx, key, "unread")
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily unavailable, retry"})
	}
	if v == "" {
		n, err := h.Notifications.CountUnread(ctx, subj.SubjectID())
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		if _, err := h.Cache.SetAllNX(ctx, key, map[string]string{"unread": strconv.FormatInt(n, 10)}, false); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily unavailable, retry"})
		}
		if v, err = h.Cache.GetField(ctx, key, "unread"); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily unavailable, retry"})
		}
	}
	n, _ := strconv.ParseInt(v, 10, 64)
	return c.JSON(http.StatusOK, echo.Map{"unread": n})
}

type markReadReq struct {
	IDs []uint64 `json:"ids"` // empty = all
}

// MarkRead flags notifications as read and settles the unread counter by
// the number of rows that actually flipped.
func (h *NotifyHandler) MarkRead(c echo.Context) error {
	var req markReadReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	subj := middleware.CurrentSubject(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	flipped, err := h.Notifications.MarkRead(ctx, subj.SubjectID(), req.IDs)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	if flipped > 0 {
		if _, err := h.Cache.IncrField(ctx, unreadKey(subj.SubjectID()), "unread", -flipped); err != nil {
			c.Logger().Warnf("unread counter settle failed: %v", err)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"read": flipped})
}
