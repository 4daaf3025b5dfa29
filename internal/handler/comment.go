package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/campus-forum/internal/auth"
	"github.com/iliyamo/campus-forum/internal/engagement"
	"github.com/iliyamo/campus-forum/internal/middleware"
	"github.com/iliyamo/campus-forum/internal/repository"
)

// CommentHandler bundles dependencies for comments and nested replies.
type CommentHandler struct {
	Comments *repository.CommentRepo
	Articles *repository.ArticleRepo
	Props    *engagement.PropertyCache
	Engine   *engagement.Engine
}

func NewCommentHandler(cm *repository.CommentRepo, a *repository.ArticleRepo,
	p *engagement.PropertyCache, e *engagement.Engine) *CommentHandler {
	return &CommentHandler{Comments: cm, Articles: a, Props: p, Engine: e}
}

type createCommentReq struct {
	ArticleID string `json:"article_id"`
	Content   string `json:"content"`
	Images    string `json:"images"`
}

type createReplyReq struct {
	CommentID string `json:"comment_id"`
	Content   string `json:"content"`
}

// Create adds a comment under an article and bumps the article's comment
// counter through the write-back cache.
func (h *CommentHandler) Create(c echo.Context) error {
	var req createCommentReq
	if err := c.Bind(&req); err != nil || req.ArticleID == "" || req.Content == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "article_id/content required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Articles.GetByID(ctx, req.ArticleID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "article not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	subj := middleware.CurrentSubject(c)
	id, err := h.Comments.Create(ctx, req.ArticleID, subj.SubjectID(), req.Content, req.Images)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	if err := h.Props.Increase(ctx, engagement.ArticleKind, req.ArticleID, "comments", 1); err != nil {
		// The row is durable; the counter self-heals on invalidation.
		c.Logger().Warnf("comment counter bump failed: %v", err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// List pages through an article's comments with their counter maps.
func (h *CommentHandler) List(c echo.Context) error {
	articleID := c.QueryParam("article_id")
	if articleID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "article_id required"})
	}
	offset, limit := pageParams(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	comments, err := h.Comments.ListByArticle(ctx, articleID, offset, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"comments": comments})
}

// Delete soft-deletes a comment. The ownership table allows the comment's
// author and the root article's author; elevated users pass on the
// bitmask alone.
func (h *CommentHandler) Delete(c echo.Context) error {
	id := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	cm, err := h.Comments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "comment not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	subj := middleware.CurrentSubject(c)
	if !auth.Authorize(subj.SubjectID(), subj.Capabilities(), auth.Commenter, cm) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if err := h.Comments.SoftDelete(ctx, id); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	if err := h.Props.Increase(ctx, engagement.ArticleKind, cm.ArticleID, "comments", -1); err != nil {
		c.Logger().Warnf("comment counter bump failed: %v", err)
	}
	if err := h.Props.Invalidate(ctx, engagement.CommentKind, id); err != nil {
		c.Logger().Warnf("counter invalidate failed: %v", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateReply adds a nested reply and bumps the parent comment's
// sub-comment counter.
func (h *CommentHandler) CreateReply(c echo.Context) error {
	var req createReplyReq
	if err := c.Bind(&req); err != nil || req.CommentID == "" || req.Content == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "comment_id/content required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Comments.GetByID(ctx, req.CommentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "comment not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	subj := middleware.CurrentSubject(c)
	id, err := h.Comments.CreateSubComment(ctx, req.CommentID, subj.SubjectID(), req.Content)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	if err := h.Props.Increase(ctx, engagement.CommentKind, req.CommentID, "sub_comments", 1); err != nil {
		c.Logger().Warnf("sub-comment counter bump failed: %v", err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// DeleteReply soft-deletes a reply. The ownership table allows the
// reply's author, the enclosing comment's author, and the article's
// author.
func (h *CommentHandler) DeleteReply(c echo.Context) error {
	id := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sc, err := h.Comments.GetSubComment(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reply not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	subj := middleware.CurrentSubject(c)
	if !auth.Authorize(subj.SubjectID(), subj.Capabilities(), auth.Commenter, sc) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if err := h.Comments.SoftDeleteSubComment(ctx, id); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	if err := h.Props.Increase(ctx, engagement.CommentKind, sc.CommentID, "sub_comments", -1); err != nil {
		c.Logger().Warnf("sub-comment counter bump failed: %v", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ToggleRate flips the caller's rate state for a comment.
func (h *CommentHandler) ToggleRate(c echo.Context) error {
	id := c.Param("id")
	subj := middleware.CurrentSubject(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rec, err := h.Engine.ToggleOne(ctx, engagement.Rate, subj.SubjectID(), id)
	if err != nil {
		return toggleError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": rec.Status})
}
