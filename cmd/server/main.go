package main // Entry point package

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/campus-forum/internal/auth"
	"github.com/iliyamo/campus-forum/internal/cache"
	"github.com/iliyamo/campus-forum/internal/config"
	"github.com/iliyamo/campus-forum/internal/database"
	"github.com/iliyamo/campus-forum/internal/engagement"
	"github.com/iliyamo/campus-forum/internal/handler"
	"github.com/iliyamo/campus-forum/internal/middleware"
	"github.com/iliyamo/campus-forum/internal/queue"
	"github.com/iliyamo/campus-forum/internal/repository"
	"github.com/iliyamo/campus-forum/internal/router"
	"github.com/iliyamo/campus-forum/internal/scheduler"
	"github.com/iliyamo/campus-forum/internal/wx"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set the environment directly

	cfg := config.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.Env == "dev" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	store := cache.NewRedis(rdb, cfg.CacheTTL, cfg.CacheLongTTL)

	// Repositories.
	users := repository.NewFrontUserRepo(db)
	staff := repository.NewStaffRepo(db)
	boards := repository.NewBoardRepo(db)
	articles := repository.NewArticleRepo(db)
	comments := repository.NewCommentRepo(db)
	counters := repository.NewCounterRepo(db)
	appreciations := repository.NewAppreciationRepo(db)
	notifications := repository.NewNotificationRepo(db)

	// Two authorities share one token implementation: front users carry
	// UUID subjects, staff carry numeric ids, and the stores keep them
	// apart.
	shortTTL := time.Duration(cfg.TokenTTLMin) * time.Minute
	longTTL := time.Duration(cfg.LongTTLDays) * 24 * time.Hour
	frontAuth := auth.NewAuthority(store, users, cfg.JWTSecret, shortTTL, longTTL)
	staffAuth := auth.NewAuthority(store, staff, cfg.JWTSecret, shortTTL, longTTL)

	// Engagement stack: cached counters in front, durable rows behind,
	// reconciled on a schedule.
	props := engagement.NewPropertyCache(store, counters)
	engine := engagement.NewEngine(store, props, appreciations)
	publisher := queue.NewPublisher(logger)
	reconciler := engagement.NewReconciler(store, appreciations, publisher, logger)

	sched := scheduler.New(logger, 2*time.Minute)
	jobs := []struct {
		name string
		expr string
		job  scheduler.Job
	}{
		{"save_views", cfg.ViewsCron, reconciler.FlushViews},
		{"save_likes", cfg.LikesCron, func(ctx context.Context) (int, error) {
			return reconciler.FlushAppreciations(ctx, engagement.Like)
		}},
		{"save_rates", cfg.RatesCron, func(ctx context.Context) (int, error) {
			return reconciler.FlushAppreciations(ctx, engagement.Rate)
		}},
	}
	for _, j := range jobs {
		if err := sched.Register(j.name, j.expr, j.job); err != nil {
			logger.Fatal().Err(err).Str("job", j.name).Msg("register flush job")
		}
	}
	sched.Start()
	defer sched.Stop()

	go func() {
		if err := queue.StartNotificationConsumer(logger); err != nil {
			logger.Error().Err(err).Msg("notification consumer stopped")
		}
	}()

	exchanger := wx.NewClient(cfg.WXAppID, cfg.WXAppSecret)

	h := router.Handlers{
		Auth:    handler.NewAuthHandler(staff, users, staffAuth, frontAuth, exchanger),
		Article: handler.NewArticleHandler(articles, boards, props, engine),
		Comment: handler.NewCommentHandler(comments, articles, props, engine),
		Notify:  handler.NewNotifyHandler(notifications, store),
		Admin:   handler.NewAdminHandler(users, boards, staff, cfg.BcryptCost),
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	router.Register(e, h, frontAuth, staffAuth)

	addr := ":" + cfg.Port
	logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
	if err := e.Start(addr); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
