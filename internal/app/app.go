package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/citysafe/planning-backend/internal/cache"
	"github.com/citysafe/planning-backend/internal/db"
	"github.com/citysafe/planning-backend/internal/handlers"
	"github.com/citysafe/planning-backend/internal/middleware"
	"github.com/citysafe/planning-backend/internal/observability"
	"github.com/citysafe/planning-backend/internal/platform/logger"
	"github.com/citysafe/planning-backend/internal/platform/sendgrid"
	"github.com/citysafe/planning-backend/internal/platform/storage"
	"github.com/citysafe/planning-backend/internal/repos"
	"github.com/citysafe/planning-backend/internal/server"
	"github.com/citysafe/planning-backend/internal/services"
)

type App struct {
	Log    *logger.Logger
	Config Config
	Router *gin.Engine

	postgres     *db.PostgresService
	summaryCache *cache.SummaryCache
	otelShutdown func(context.Context) error

	repos    repoSet
	services serviceSet
}

type repoSet struct {
	user      repos.UserRepo
	userToken repos.UserTokenRepo
	problem   repos.ProblemRepo
	cause     repos.CauseRepo
	indicator repos.CauseIndicatorRepo
	init      repos.InitiativeRepo
	lookup    repos.LookupRepo
	plan      repos.PlanRepo
	strategic repos.StrategicRepo
	diagnosis repos.DiagnosisRepo
	tactical  repos.TacticalRepo
}

type serviceSet struct {
	auth           services.AuthService
	problem        services.ProblemService
	cause          services.CauseService
	initiative     services.InitiativeService
	plan           services.PlanService
	prioritization services.PrioritizationService
}

func New(ctx context.Context) (*App, error) {
	cfg := LoadConfig()
	log, err := logger.New(cfg.Mode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	if err := cfg.CheckAuthSecret(); err != nil {
		return nil, err
	}
	if len(cfg.Auth.JWTSecret) == 0 {
		log.Warn("JWT_SECRET is not set, access tokens will be signed with an empty key")
	}

	otelShutdown := observability.InitTracing(ctx, log, observability.TracingConfig{
		ServiceName: "planning-backend",
		Environment: cfg.Mode,
	})

	pg, err := db.NewPostgresService(log)
	if err != nil {
		return nil, err
	}
	if err := pg.AutoMigrateAll(); err != nil {
		return nil, err
	}

	summaryCache, err := cache.NewSummaryCache(log, cfg.RedisAddr, cfg.SummaryCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("init summary cache: %w", err)
	}

	annexStore, err := storage.NewAnnexStore(cfg.AnnexDir, log)
	if err != nil {
		return nil, err
	}

	var mailer sendgrid.Client
	if m, err := sendgrid.NewFromEnv(log); err != nil {
		log.Warn("mailer disabled", "reason", err)
	} else {
		mailer = m
	}

	a := &App{
		Log:          log,
		Config:       cfg,
		postgres:     pg,
		summaryCache: summaryCache,
		otelShutdown: otelShutdown,
	}

	gdb := pg.DB()
	a.repos = repoSet{
		user:      repos.NewUserRepo(gdb, log),
		userToken: repos.NewUserTokenRepo(gdb, log),
		problem:   repos.NewProblemRepo(gdb, log),
		cause:     repos.NewCauseRepo(gdb, log),
		indicator: repos.NewCauseIndicatorRepo(gdb, log),
		init:      repos.NewInitiativeRepo(gdb, log),
		lookup:    repos.NewLookupRepo(gdb, log),
		plan:      repos.NewPlanRepo(gdb, log),
		strategic: repos.NewStrategicRepo(gdb, log),
		diagnosis: repos.NewDiagnosisRepo(gdb, log),
		tactical:  repos.NewTacticalRepo(gdb, log),
	}

	a.services = serviceSet{
		auth: services.NewAuthService(gdb, log, cfg.Auth, a.repos.user, a.repos.userToken, mailer),
		prioritization: services.NewPrioritizationService(
			gdb, log, a.repos.problem, a.repos.cause, a.repos.init, summaryCache),
		problem: services.NewProblemService(gdb, log, a.repos.problem, a.repos.cause, summaryCache),
		cause: services.NewCauseService(
			gdb, log, a.repos.cause, a.repos.problem, a.repos.indicator, a.repos.init, annexStore, summaryCache),
		initiative: services.NewInitiativeService(
			gdb, log, a.repos.init, a.repos.cause, a.repos.lookup, annexStore, summaryCache),
		plan: services.NewPlanService(
			gdb, log, a.repos.plan, a.repos.problem, a.repos.cause, a.repos.indicator,
			a.repos.init, a.repos.strategic, a.repos.diagnosis, a.repos.tactical, a.repos.lookup),
	}

	authMW := middleware.NewAuthMiddleware(a.services.auth, log)
	a.Router = server.NewRouter(server.RouterDeps{
		Healthcheck:    handlers.NewHealthcheckHandler(gdb),
		Auth:           handlers.NewAuthHandler(a.services.auth),
		Problem:        handlers.NewProblemHandler(a.services.problem, a.services.prioritization),
		Cause:          handlers.NewCauseHandler(a.services.cause, a.services.prioritization),
		Initiative:     handlers.NewInitiativeHandler(a.services.initiative, a.services.prioritization),
		Plan:           handlers.NewPlanHandler(a.services.plan),
		Lookup:         handlers.NewLookupHandler(a.repos.lookup),
		AuthMiddleware: authMW,
	})
	return a, nil
}

func (a *App) Run() error {
	a.Log.Info("starting server", "port", a.Config.Port, "mode", a.Config.Mode)
	return a.Router.Run(":" + a.Config.Port)
}

func (a *App) Close(ctx context.Context) {
	if a.summaryCache != nil {
		if err := a.summaryCache.Close(); err != nil {
			a.Log.Warn("summary cache close failed", "error", err)
		}
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
}
