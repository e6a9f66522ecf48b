package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"splitshare-service/internal/auth"
	"splitshare-service/internal/db"
	"splitshare-service/internal/handlers"
	"splitshare-service/internal/logging"
	"splitshare-service/internal/middleware"
	"splitshare-service/internal/observability"
	"splitshare-service/internal/rabbitmq"
	"splitshare-service/internal/repositories"
	"splitshare-service/internal/telemetry"
)

const serviceName = "splitshare-service"

func main() {
	logging.Setup()

	ctx := context.Background()

	shutdownTracer, err := telemetry.InitTracer(ctx, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), serviceName)
	if err != nil {
		slog.Error("tracer init failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}()

	database, err := db.Connect()
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		slog.Error("JWT_SECRET is required")
		os.Exit(1)
	}
	tokens := auth.NewTokenManager(
		secret,
		durationEnv("ACCESS_TOKEN_TTL", 15*time.Minute),
		durationEnv("REFRESH_TOKEN_TTL", 7*24*time.Hour),
	)

	publisher := rabbitmq.NewPublisher(os.Getenv("AMQP_URL"), getEnv("AMQP_EXCHANGE", "splitshare.audit"))
	defer publisher.Close()
	slog.Info("audit publisher ready", "mode", rabbitmq.Mode(publisher))

	environment := getEnv("ENVIRONMENT", "development")
	audit := telemetry.NewAuditEmitter(publisher, getEnv("AUDIT_ROUTING_KEY", "audit.splitshare"), serviceName, environment)

	userRepo := repositories.NewUserRepo(database)
	followRepo := repositories.NewFollowRepo(database)
	groupRepo := repositories.NewGroupRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	secureCookies := getEnv("SECURE_COOKIES", "true") == "true"
	userHandler := handlers.NewUserHandler(userRepo, tokens, audit, secureCookies)
	followHandler := handlers.NewFollowHandler(followRepo, userRepo, audit)
	groupHandler := handlers.NewGroupHandler(groupRepo, userRepo, audit)
	messageHandler := handlers.NewMessageHandler(messageRepo, groupRepo, audit)

	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		if err := database.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	handlers.RegisterDebugRoutes(router, audit, getEnv("DEBUG_ROUTES", "false") == "true")

	api := router.Group("/api")

	// no session required
	api.POST("/user/create", userHandler.Register)
	api.POST("/user/login", userHandler.Login)
	api.POST("/user/refresh", userHandler.Refresh)
	api.GET("/user/:username", userHandler.GetByUsername)

	authed := api.Group("/")
	authed.Use(middleware.AuthMiddleware(tokens, userRepo))

	authed.POST("/user/logout", userHandler.Logout)
	authed.GET("/user/me", userHandler.Me)
	authed.PUT("/user/update", userHandler.Update)
	authed.PUT("/user/change-password", userHandler.ChangePassword)
	authed.DELETE("/user/delete", userHandler.Delete)

	authed.GET("/follow/:username", followHandler.Follow)
	authed.DELETE("/unfollow/:username", followHandler.Unfollow)
	authed.GET("/followers", followHandler.Followers)
	authed.GET("/following", followHandler.Following)

	authed.POST("/group/create", groupHandler.Create)
	authed.GET("/group/:id", groupHandler.Get)
	authed.GET("/groups", groupHandler.List)
	authed.POST("/group/add", groupHandler.AddMember)
	authed.DELETE("/group/remove", groupHandler.RemoveMember)
	authed.PUT("/group/update", groupHandler.Update)

	authed.POST("/message/create", messageHandler.Create)
	authed.GET("/message/:groupId", messageHandler.List)

	port := getEnv("PORT", "8080")
	slog.Info("server starting", "port", port, "environment", environment)
	if err := router.Run(":" + port); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		slog.Warn("invalid duration, using default", "key", key, "value", val, "default", fallback)
		return fallback
	}
	return d
}
