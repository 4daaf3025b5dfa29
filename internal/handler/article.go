package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/campus-forum/internal/auth"
	"github.com/iliyamo/campus-forum/internal/cache"
	"github.com/iliyamo/campus-forum/internal/engagement"
	"github.com/iliyamo/campus-forum/internal/middleware"
	"github.com/iliyamo/campus-forum/internal/repository"
)

// ArticleHandler bundles dependencies for the article surface. All
// counter traffic goes through the engagement layer; the repositories
// only see durable rows.
type ArticleHandler struct {
	Articles *repository.ArticleRepo
	Boards   *repository.BoardRepo
	Props    *engagement.PropertyCache
	Engine   *engagement.Engine
}

func NewArticleHandler(a *repository.ArticleRepo, b *repository.BoardRepo,
	p *engagement.PropertyCache, e *engagement.Engine) *ArticleHandler {
	return &ArticleHandler{Articles: a, Boards: b, Props: p, Engine: e}
}

type createArticleReq struct {
	BoardID uint64 `json:"board_id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Images  string `json:"images"`
}

// Create posts a new article into a board.
func (h *ArticleHandler) Create(c echo.Context) error {
	var req createArticleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Title == "" || req.Content == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title/content required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Boards.GetByID(ctx, req.BoardID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "board not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	subj := middleware.CurrentSubject(c)
	id, err := h.Articles.Create(ctx, req.BoardID, subj.SubjectID(), req.Title, req.Content, req.Images)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// Detail returns an article with its live counters and bumps the view
// count through the write-back cache; the durable counter catches up on
// the next flush.
func (h *ArticleHandler) Detail(c echo.Context) error {
	id := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	a, err := h.Articles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "article not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	if err := h.Props.Increase(ctx, engagement.ArticleKind, id, "views", 1); err != nil {
		if errors.Is(err, cache.ErrUnavailable) {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily unavailable, retry"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "counter update failed"})
	}
	counters, err := h.Props.Get(ctx, engagement.ArticleKind, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "counter read failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"id":       a.ID,
		"board_id": a.BoardID,
		"author":   a.AuthorID,
		"title":    a.Title,
		"content":  a.Content,
		"images":   a.Images,
		"created":  a.CreatedAt,
		"counters": counters,
	})
}

// ListBoards returns all live boards for the public browse surface.
func (h *ArticleHandler) ListBoards(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	boards, err := h.Boards.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"boards": boards})
}

// List pages through a board's articles.
func (h *ArticleHandler) List(c echo.Context) error {
	boardID, err := strconv.ParseUint(c.QueryParam("board_id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "board_id required"})
	}
	offset, limit := pageParams(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	articles, err := h.Articles.ListByBoard(ctx, boardID, offset, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"articles": articles})
}

// Delete soft-deletes an article. Ownership stands in for the poster bit
// for default-permission users; elevated users pass on the bitmask alone.
func (h *ArticleHandler) Delete(c echo.Context) error {
	id := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	a, err := h.Articles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "article not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	subj := middleware.CurrentSubject(c)
	if !auth.Authorize(subj.SubjectID(), subj.Capabilities(), auth.Poster, a) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if err := h.Articles.SoftDelete(ctx, id); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	if err := h.Props.Invalidate(ctx, engagement.ArticleKind, id); err != nil {
		c.Logger().Warnf("counter invalidate failed: %v", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ToggleLike flips the caller's like state for an article. The response
// carries the new status so clients can render without a second fetch.
func (h *ArticleHandler) ToggleLike(c echo.Context) error {
	id := c.Param("id")
	subj := middleware.CurrentSubject(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rec, err := h.Engine.ToggleOne(ctx, engagement.Like, subj.SubjectID(), id)
	if err != nil {
		return toggleError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": rec.Status})
}

// Likes returns the caller's like map for articles.
func (h *ArticleHandler) Likes(c echo.Context) error {
	subj := middleware.CurrentSubject(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	all, err := h.Engine.GetAll(ctx, engagement.Like, subj.SubjectID())
	if err != nil {
		return toggleError(c, err)
	}
	liked := make([]string, 0, len(all))
	for target, rec := range all {
		if rec.Status == 1 {
			liked = append(liked, target)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"liked": liked})
}

func toggleError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "target not found"})
	case errors.Is(err, cache.ErrUnavailable):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily unavailable, retry"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "operation failed"})
	}
}

func parseUintParam(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}

func pageParams(c echo.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.QueryParam("offset"))
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return offset, limit
}
