package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"food-marketplace-api/config"
	"food-marketplace-api/events"
	"food-marketplace-api/handlers"
	"food-marketplace-api/middleware"
	"food-marketplace-api/notify"
	"food-marketplace-api/otp"
	"food-marketplace-api/routes"
	"food-marketplace-api/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	log := config.NewLogger(cfg)

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.OpenDB(cfg.DB)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}

	var (
		pending otp.PendingStore[services.PendingRegistration] = otp.NewMemoryStore[services.PendingRegistration]()
		locator services.Locator                               = services.DBLocator{DB: db}
	)
	if cfg.Redis.Enabled {
		client, err := config.NewRedis(ctx, cfg.Redis)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to redis")
		}
		defer client.Close()

		pending = otp.NewRedisStore[services.PendingRegistration](client, "pending-registration:")
		geoIndex := services.NewRedisLocator(client)
		n, err := geoIndex.Rebuild(ctx, db)
		if err != nil {
			log.WithError(err).Fatal("failed to index delivery locations")
		}
		log.WithField("indexed", n).Info("delivery location index rebuilt")
		locator = geoIndex
	}

	var publisher events.Publisher = events.LogPublisher{Log: log}
	if cfg.Kafka.Enabled {
		kp, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.App.Name, log)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to kafka")
		}
		defer kp.Close()
		publisher = kp
	}

	var notifier notify.Notifier = notify.LogNotifier{Log: log}
	if cfg.SMTP.Host != "" {
		notifier = notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}

	tokens := middleware.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	dispatcher := services.NewDispatcher(db, locator, publisher, log, cfg.Dispatch.RadiusKm)
	orders := services.NewOrderService(db, dispatcher, notifier, publisher, log)
	restaurants := services.NewRestaurantService(db, log)
	auth := services.NewAuthService(db, pending, notifier, tokens, log)

	if err := auth.EnsureAdmin(ctx, services.AdminSeed{
		Name:     cfg.Admin.Name,
		Email:    cfg.Admin.Email,
		Phone:    cfg.Admin.Phone,
		Password: cfg.Admin.Password,
	}); err != nil {
		log.WithError(err).Fatal("failed to seed admin")
	}

	responder := handlers.Responder{Log: log, Production: cfg.App.IsProduction()}
	handlers.RegisterValidation()

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(log), middleware.CORS(cfg.HTTP.CORSOrigins))
	routes.SetupRoutes(r, routes.Handlers{
		Auth:   &handlers.AuthHandler{Responder: responder, Auth: auth},
		Orders: &handlers.OrderHandler{Responder: responder, Orders: orders, DebugOTP: cfg.App.DebugOTP},
		Public: &handlers.PublicHandler{Responder: responder, Restaurants: restaurants},
		Vendor: &handlers.VendorHandler{Responder: responder, Restaurants: restaurants},
		Delivery: &handlers.DeliveryHandler{
			Responder: responder,
			Delivery:  services.NewDeliveryService(db, locator, orders, log),
			Orders:    orders,
		},
		Admin: &handlers.AdminHandler{
			Responder:  responder,
			Admin:      services.NewAdminService(db, log),
			Dispatcher: dispatcher,
		},
	}, tokens, middleware.NewRateLimiter(cfg.HTTP.OTPRatePerMinute).Middleware())

	go dispatcher.Run(ctx, cfg.Dispatch.SweepInterval)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: r,
	}
	go func() {
		log.WithField("addr", srv.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
