package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/campus-forum/internal/auth"
	"github.com/iliyamo/campus-forum/internal/handler"
	"github.com/iliyamo/campus-forum/internal/middleware"
)

// Handlers collects every handler the router wires up. main builds one
// of these so route registration stays in a single place.
type Handlers struct {
	Auth    *handler.AuthHandler
	Article *handler.ArticleHandler
	Comment *handler.CommentHandler
	Notify  *handler.NotifyHandler
	Admin   *handler.AdminHandler
}

// Register mounts all routes on the provided Echo instance. Browse
// endpoints carry no session middleware so guests can read the forum.
// Creating content needs only an authenticated account; acting on
// existing content is decided per target by auth.Authorize, and the
// staff console adds route-level capability guards.
func Register(e *echo.Echo, h Handlers, frontAuth, staffAuth *auth.Authority) {
	// Health check for load balancers and monitoring.
	e.GET("/healthz", handler.Health)

	// Public browse surface. No authentication, read only.
	e.GET("/v1/boards", h.Article.ListBoards)
	e.GET("/v1/articles", h.Article.List)
	e.GET("/v1/articles/:id", h.Article.Detail)
	e.GET("/v1/comments", h.Comment.List)

	// Front-user session endpoints. Login exchanges a mini-program code,
	// so there is no register route; the account is created on first
	// login.
	e.POST("/v1/auth/login", h.Auth.FrontLogin)

	// Everything under this group requires a valid front-user session.
	front := e.Group("/v1")
	front.Use(middleware.Identity(frontAuth))
	front.Use(middleware.RequireUser())
	front.GET("/me", h.Auth.Me)
	front.PUT("/me/profile", h.Auth.UpdateProfile)
	front.POST("/auth/logout", h.Auth.Logout(frontAuth))

	front.POST("/articles", h.Article.Create)
	front.DELETE("/articles/:id", h.Article.Delete)
	front.POST("/articles/:id/like", h.Article.ToggleLike)
	front.GET("/likes", h.Article.Likes)

	front.POST("/comments", h.Comment.Create)
	front.DELETE("/comments/:id", h.Comment.Delete)
	front.POST("/comments/:id/rate", h.Comment.ToggleRate)
	front.POST("/replies", h.Comment.CreateReply)
	front.DELETE("/replies/:id", h.Comment.DeleteReply)

	front.GET("/notifications", h.Notify.List)
	front.GET("/notifications/unread", h.Notify.Unread)
	front.POST("/notifications/read", h.Notify.MarkRead)

	// Staff console. A separate authority validates staff tokens, and
	// each route names the capability it needs.
	e.POST("/v1/admin/auth/login", h.Auth.StaffLogin)

	admin := e.Group("/v1/admin")
	admin.Use(middleware.Identity(staffAuth))
	admin.Use(middleware.RequireUser())
	admin.GET("/me", h.Auth.Me)
	admin.POST("/auth/logout", h.Auth.Logout(staffAuth))

	admin.GET("/users", h.Admin.ListUsers, middleware.RequireCapability(auth.ManageUsers))
	admin.PATCH("/users/:id/status", h.Admin.SetUserStatus, middleware.RequireCapability(auth.ManageUsers))
	admin.POST("/boards", h.Admin.CreateBoard, middleware.RequireCapability(auth.ManageBoards))
	admin.PATCH("/boards/:id/status", h.Admin.SetBoardStatus, middleware.RequireCapability(auth.ManageBoards))
	admin.POST("/staff", h.Admin.CreateStaff, middleware.RequireCapability(auth.ManageStaff))
	admin.PATCH("/staff/:id/permission", h.Admin.SetStaffPermission, middleware.RequireCapability(auth.ManageStaff))
}
