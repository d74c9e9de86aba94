package main

import (
	"net/http"
	"time"

	"todo-app/backend/internal/cache"
	"todo-app/backend/internal/config"
	"todo-app/backend/internal/handlers"
	"todo-app/backend/internal/middleware"
	"todo-app/backend/internal/monitoring"
	"todo-app/backend/internal/repositories"
	"todo-app/backend/internal/services"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type routerDeps struct {
	Config   *config.Config
	Logger   *log.Logger
	DB       *gorm.DB
	Cache    cache.Cache
	Monitor  *monitoring.Monitor
	Limiter  *middleware.RateLimiter
	Renderer handlers.Renderer
}

func newRouter(deps routerDeps) *gin.Engine {
	cfg := deps.Config

	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.AccessLog(deps.Logger),
		middleware.RecoveryWithLog(deps.Logger),
		deps.Monitor.MetricsMiddleware(),
	)
	if len(cfg.CORS.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.AntiForgeryHeader, middleware.RequestIDHeader},
			ExposeHeaders:    []string{middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	if deps.Limiter != nil {
		router.Use(deps.Limiter.Middleware())
	}

	deps.Monitor.RegisterRoutes(router)

	items := services.NewTodoItemService(
		repositories.NewTodoItemRepository(deps.DB),
		repositories.NewUserRepository(deps.DB),
		deps.Logger,
	)
	var service services.TodoItemService = items
	if deps.Cache != nil {
		cached := services.NewCachedTodoItemService(items, deps.Cache, cfg.Cache.ListTTL, deps.Logger)
		deps.Monitor.RegisterStats("cache", cached.Stats)
		service = cached
	}

	authed := router.Group("/")
	authed.Use(
		middleware.RequireUser(middleware.AuthConfig{
			Secret:     []byte(cfg.Auth.JWTSecret),
			Issuer:     cfg.Auth.Issuer,
			CookieName: cfg.Auth.CookieName,
			LoginURL:   cfg.Auth.LoginURL,
			Logger:     deps.Logger,
		}),
		middleware.RequireAntiForgery(),
	)
	handlers.NewTodoItemHandler(service, deps.Renderer, deps.Logger).RegisterRoutes(authed)

	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/tasks")
	})

	return router
}
