package main

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messaging-core/internal/auth"
	"messaging-core/internal/config"
	"messaging-core/internal/db"
	"messaging-core/internal/handlers"
	"messaging-core/internal/observability"
	"messaging-core/internal/rabbitmq"
	"messaging-core/internal/repositories"
	"messaging-core/internal/telemetry"
	"messaging-core/internal/ws"
)

const serviceName = "messaging-core"

func main() {
	cfg := config.Load()

	shutdownTracing, err := observability.InitTracing(context.Background(), serviceName, cfg.Environment)
	if err != nil {
		log.Printf("tracing disabled: %v", err)
	} else {
		defer shutdownTracing(context.Background())
	}

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)

	audit := telemetry.NewAuditEmitter(publisher, "audit.messaging", serviceName, cfg.Environment)

	verifier := auth.NewJWTVerifier(cfg.JWTSecret)
	convRepo := repositories.NewConversationRepo(database)
	msgRepo := repositories.NewMessageRepo(database)
	userRepo := repositories.NewUserRepo(database)

	hub := ws.NewHub()
	socket := ws.NewHandler(hub, verifier, convRepo, msgRepo, userRepo, audit, ws.Options{
		OpTimeout:  cfg.OpTimeout,
		SendBuffer: cfg.SendBuffer,
		OpRate:     cfg.OpRate,
		OpBurst:    cfg.OpBurst,
	})

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/ws", socket.Handle)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, audit, cfg.EnableDebugRoutes)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
