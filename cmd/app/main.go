package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rushrental/carbooking/config"
	"github.com/rushrental/carbooking/internal/bootstrap"
	"github.com/rushrental/carbooking/internal/draftstore"
	"github.com/rushrental/carbooking/internal/kafka"
	"github.com/rushrental/carbooking/internal/payment"
	"github.com/rushrental/carbooking/internal/repository"
	"github.com/rushrental/carbooking/internal/service/wizard"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	var store draftstore.Store
	if cfg.Redis.Addr != "" {
		store = draftstore.NewRedisStore(cfg.Redis)
	} else {
		log.Println("redis not configured, using in-memory draft store")
		store = draftstore.NewMemoryStore()
	}

	var gateway wizard.PaymentGateway
	if cfg.Stripe.SecretKey != "" {
		gateway = payment.NewStripeGateway(cfg.Stripe.SecretKey)
	} else {
		log.Println("stripe not configured, using mock payment gateway")
		gateway = payment.NewMockGateway()
	}

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	catalogRepo := repository.NewCatalogRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	profileRepo := repository.NewProfileRepository(pool)

	draftService := wizard.NewWizardService(
		store,
		catalogRepo,
		bookingRepo,
		profileRepo,
		gateway,
		producer,
		cfg.Kafka.BookingTopic,
		time.Duration(cfg.Booking.DraftTTLMinutes)*time.Minute,
		cfg.Stripe.Currency,
		wizard.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		wizard.WithHostedCheckoutURLs(cfg.Stripe.SuccessURL, cfg.Stripe.CancelURL),
	)

	if err := bootstrap.Run(ctx, cfg, draftService); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
