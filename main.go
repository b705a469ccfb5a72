package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/JayKadi/ecommerce-project/cache"
	"github.com/JayKadi/ecommerce-project/config"
	"github.com/JayKadi/ecommerce-project/consumers"
	"github.com/JayKadi/ecommerce-project/controllers"
	"github.com/JayKadi/ecommerce-project/database"
	"github.com/JayKadi/ecommerce-project/events"
	"github.com/JayKadi/ecommerce-project/gateway"
	"github.com/JayKadi/ecommerce-project/middlewares"
	"github.com/JayKadi/ecommerce-project/notify"
	"github.com/JayKadi/ecommerce-project/rabbitmq"
	"github.com/JayKadi/ecommerce-project/repository"
	"github.com/JayKadi/ecommerce-project/services"
	"github.com/JayKadi/ecommerce-project/telemetry"
	"github.com/JayKadi/ecommerce-project/zones"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const serviceName = "order-service"

func main() {
	cfg := config.LoadConfig()
	log := telemetry.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("Tracer initialization failed: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.WithError(err).Warn("Tracer shutdown failed")
		}
	}()

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	db, err := database.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Database initialization failed: %v", err)
	}
	defer db.Close()
	store := repository.NewStore(db)

	var redisCache cache.Cache
	if cfg.RedisAddr != "" {
		if err := cache.Ping(ctx, cfg.RedisAddr); err != nil {
			log.WithError(err).Warn("Redis unavailable, running without cache")
		} else {
			redisCache = cache.NewRedisCache(cfg.RedisAddr, serviceName)
		}
	}

	directory := zones.NewDirectory(store, redisCache, cfg.ZoneCacheTTL, log)

	gw := gateway.NewClient(gateway.Config{
		BaseURL:        cfg.GatewayBaseURL,
		ConsumerKey:    cfg.GatewayConsumerKey,
		ConsumerSecret: cfg.GatewayConsumerSecret,
		IPNID:          cfg.GatewayIPNID,
		CallbackURL:    cfg.GatewayCallbackURL,
		CountryCode:    cfg.PhoneCountryCode,
		Timeout:        cfg.GatewayTimeout,
		MaxConcurrency: cfg.GatewayMaxConcurrency,
	}, redisCache)
	if cfg.GatewayIPNID == "" {
		log.Warn("GATEWAY_IPN_ID is empty; run cmd/register-ipn to register the notification URL")
	}

	hub := events.NewHub(cfg.CORSOrigins)

	var rmq *rabbitmq.RabbitMQ
	if cfg.RabbitMQURL != "" {
		if rmq, err = rabbitmq.NewRabbitMQ(cfg); err != nil {
			log.Fatalf("RabbitMQ initialization failed: %v", err)
		}
		defer rmq.Close()

		if err := rmq.SetupQueues(); err != nil {
			log.Fatalf("Failed to setup RabbitMQ queues: %v", err)
		}
		if !rmq.DelayedChecks() {
			log.Warn("Delayed message exchange unavailable; pending payments are not re-checked")
		}
	} else {
		log.Warn("RABBITMQ_URL is empty; order events stay in-process and pending payments are not re-checked")
	}

	sinks := []events.Sink{hub}
	if cfg.SMTPHost != "" {
		notifier := notify.NewNotifier(store, notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		}), cfg.ShopName, log)
		notifier.Start(ctx)
		sinks = append(sinks, notifier)
	} else {
		log.Warn("SMTP_HOST is empty; customer order emails are disabled")
	}

	var fanout *events.Fanout
	if rmq != nil {
		fanout = events.NewFanout(rmq, append([]events.Sink{rmq}, sinks...)...)
	} else {
		fanout = events.NewFanout(nil, sinks...)
	}

	orders := services.NewOrderService(store, directory, gw, fanout, services.Options{
		Currency:          cfg.Currency,
		RequirePaid:       cfg.RequirePaidFulfillment(),
		PaymentCheckDelay: cfg.PaymentCheckDelay,
	}, log)

	if rmq != nil {
		consumer := consumers.NewOrderConsumer(orders, fanout, cfg)
		if err := consumer.Start(ctx, rmq.Channel, cfg); err != nil {
			log.Fatalf("Failed to start order consumer: %v", err)
		}
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middlewares.RequestID(), middlewares.PrometheusMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middlewares.RequestIDHeader},
		ExposeHeaders:    []string{middlewares.RequestIDHeader, "Content-Disposition"},
		AllowCredentials: !containsWildcard(cfg.CORSOrigins),
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "ws_clients": hub.Clients()})
	})

	controllers.RegisterRoutes(r, controllers.NewOrderController(orders, directory, log), http.HandlerFunc(hub.ServeWS), cfg.JWTSecret)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("Order service starting on port %s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
