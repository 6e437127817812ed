package http

import (
	"log/slog"

	"github.com/geocoder89/taskhub/internal/config"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/http/handlers"
	"github.com/geocoder89/taskhub/internal/http/middlewares"
	"github.com/geocoder89/taskhub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Deps is everything the router needs; main builds it once.
type Deps struct {
	Config config.Config
	Log    *slog.Logger

	// Prom and Gatherer are optional; /metrics is only mounted with a Gatherer.
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer

	Auth   handlers.AuthService
	Tasks  handlers.TaskService
	Tokens middlewares.TokenVerifier

	// AuthLimiter guards register/login. Nil disables rate limiting.
	AuthLimiter middlewares.Limiter

	Health map[string]handlers.Pinger
	// ShuttingDown flips readiness to 503 while the server drains.
	ShuttingDown func() bool
}

func NewRouter(d Deps) *gin.Engine {
	if !d.Config.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(gin.CustomRecovery(func(ctx *gin.Context, rec any) {
		d.Log.ErrorContext(ctx.Request.Context(), "panic recovered",
			"panic", rec,
			"request_id", ctx.GetString(middlewares.CtxRequestID),
		)
		handlers.RespondInternal(ctx, "Internal server error")
		ctx.Abort()
	}))
	r.Use(otelgin.Middleware("taskhub"))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORS(d.Config.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(d.Config.MaxBodyBytes))
	r.Use(middlewares.RequireJSON())
	r.Use(middlewares.ExposeErrors(d.Config.IsDev()))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}

	notFound := func(ctx *gin.Context) {
		handlers.RespondNotFound(ctx, "Route not found")
	}
	r.NoRoute(notFound)
	r.NoMethod(notFound)

	authMW := middlewares.NewAuthMiddleware(d.Tokens)

	health := handlers.NewHealthHandler(d.Health).WithShutdownCheck(d.ShuttingDown)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	if d.Gatherer != nil {
		r.GET("/metrics",
			authMW.RequireAuth(),
			authMW.RequireRole(user.RoleAdmin),
			gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})),
		)
	}

	api := r.Group("/api/v1")
	api.GET("/health", health.Health)

	authH := handlers.NewAuthHandler(d.Auth)
	public := api.Group("/auth")
	if d.AuthLimiter != nil {
		public.Use(middlewares.RateLimit(d.AuthLimiter, middlewares.KeyByRouteAndIP, d.Prom.RateLimited))
	}
	public.POST("/register", authH.Register)
	public.POST("/login", authH.Login)

	api.GET("/auth/profile", authMW.RequireAuth(), authH.Profile)

	tasksH := handlers.NewTasksHandler(d.Tasks)
	tasks := api.Group("/tasks", authMW.RequireAuth())
	tasks.POST("", tasksH.Create)
	tasks.GET("", tasksH.List)
	tasks.GET("/:id", tasksH.Get)
	tasks.PUT("/:id", tasksH.Update)
	tasks.PATCH("/:id", tasksH.Update)
	tasks.DELETE("/:id", tasksH.Delete)

	return r
}
