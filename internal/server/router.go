package server

import (
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/citysafe/planning-backend/internal/handlers"
	"github.com/citysafe/planning-backend/internal/middleware"
)

type RouterDeps struct {
	Healthcheck *handlers.HealthcheckHandler
	Auth        *handlers.AuthHandler
	Problem     *handlers.ProblemHandler
	Cause       *handlers.CauseHandler
	Initiative  *handlers.InitiativeHandler
	Plan        *handlers.PlanHandler
	Lookup      *handlers.LookupHandler

	AuthMiddleware *middleware.AuthMiddleware
}

func NewRouter(deps RouterDeps) *gin.Engine {
	if os.Getenv("APP_MODE") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("planning-backend"))

	allowed := strings.Split(os.Getenv("CORS_ALLOWED_ORIGINS"), ",")
	if len(allowed) == 1 && allowed[0] == "" {
		allowed = []string{"http://localhost:3000"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowed,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthcheck", deps.Healthcheck.Healthcheck)

	api := r.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/login", deps.Auth.Login)
		auth.POST("/refresh", deps.Auth.Refresh)
		auth.POST("/activate", deps.Auth.Activate)
		auth.POST("/recovery", deps.Auth.RequestRecovery)
		auth.POST("/reset-password", deps.Auth.ResetPassword)
	}

	protected := api.Group("")
	protected.Use(deps.AuthMiddleware.RequireAuth())
	{
		protected.POST("/auth/logout", deps.Auth.Logout)
		protected.POST("/auth/invite", deps.Auth.Invite)

		problems := protected.Group("/problems")
		{
			problems.GET("", deps.Problem.List)
			problems.GET("/summary", deps.Problem.Summary)
			problems.GET("/:id", deps.Problem.Get)
			problems.POST("", deps.Problem.Create)
			problems.PUT("/:id", deps.Problem.Update)
			problems.DELETE("/:id", deps.Problem.Delete)
			problems.PUT("/prioritization", deps.Problem.SetPrioritization)
		}

		causes := protected.Group("/causes")
		{
			causes.GET("", deps.Cause.List)
			causes.GET("/summary", deps.Cause.Summary)
			causes.GET("/prioritization/all", deps.Cause.Prioritization)
			causes.PUT("/prioritization", deps.Cause.SetPrioritization)
			causes.GET("/annexes/:key", deps.Cause.DownloadAnnex)
			causes.GET("/:id", deps.Cause.Get)
			causes.GET("/:id/indicators", deps.Cause.Indicators)
			causes.POST("", deps.Cause.Create)
			causes.PUT("/:id", deps.Cause.Update)
			causes.DELETE("/:id", deps.Cause.Delete)
		}

		initiatives := protected.Group("/initiatives")
		{
			initiatives.GET("", deps.Initiative.List)
			initiatives.GET("/summary", deps.Initiative.Summary)
			initiatives.GET("/options", deps.Initiative.Options)
			initiatives.GET("/prioritization/all", deps.Initiative.Prioritization)
			initiatives.PUT("/prioritization", deps.Initiative.SetPrioritization)
			initiatives.GET("/annexes/:key", deps.Initiative.DownloadAnnex)
			initiatives.GET("/:id", deps.Initiative.Get)
			initiatives.POST("", deps.Initiative.Create)
			initiatives.PUT("/:id", deps.Initiative.Update)
			initiatives.DELETE("/:id", deps.Initiative.Delete)
		}

		plan := protected.Group("/plan")
		{
			plan.POST("", deps.Plan.Create)
			plan.GET("", deps.Plan.Current)
			plan.PUT("/basic-info", deps.Plan.UpdateBasicInfo)
			plan.GET("/status", deps.Plan.Status)

			plan.GET("/macro-objectives", deps.Plan.MacroObjectives)
			plan.PUT("/macro-objectives/:id/goals", deps.Plan.SetMacroObjectiveGoals)
			plan.PUT("/focuses/:id/goals", deps.Plan.SetFocusGoals)

			plan.GET("/diagnosis", deps.Plan.Diagnosis)
			plan.PUT("/diagnosis/problems", deps.Plan.UpsertProblemDiagnoses)
			plan.PUT("/diagnosis/causes/:id", deps.Plan.UpsertCauseDiagnoses)

			plan.GET("/tactical", deps.Plan.TacticalDimensions)
			plan.GET("/tactical/:id", deps.Plan.TacticalDimension)
			plan.PUT("/tactical", deps.Plan.SetTacticalDimension)
		}

		lookups := protected.Group("/lookups")
		{
			lookups.GET("/departments", deps.Lookup.Departments)
			lookups.GET("/neighborhoods", deps.Lookup.Neighborhoods)
			lookups.GET("/outcomes", deps.Lookup.Outcomes)
		}
	}

	return r
}
