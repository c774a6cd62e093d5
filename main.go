package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sanjay9342/ramesh-computers/common/apperrors"
	"github.com/sanjay9342/ramesh-computers/common/logger"
	"github.com/sanjay9342/ramesh-computers/controllers"
	"github.com/sanjay9342/ramesh-computers/database"
	"github.com/sanjay9342/ramesh-computers/events"
	"github.com/sanjay9342/ramesh-computers/lock"
	"github.com/sanjay9342/ramesh-computers/middleware"
	"github.com/sanjay9342/ramesh-computers/notifier"
	"github.com/sanjay9342/ramesh-computers/payment"
	aws_pkg "github.com/sanjay9342/ramesh-computers/pkg/aws"
	"github.com/sanjay9342/ramesh-computers/routes"
	"github.com/sanjay9342/ramesh-computers/services"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const serviceName = "storefront-api"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("storefront stopped: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := LoadConfig(ctx)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// AWS config is only loaded once something needs it
	awsConfig := sync.OnceValues(func() (aws.Config, error) {
		return aws_pkg.LoadAWSConfig(ctx)
	})

	var sink io.Writer
	if cfg.CloudWatchEnabled && cfg.CloudWatchLogGroup != "" {
		if awsCfg, err := awsConfig(); err != nil {
			log.Printf("CloudWatch Logs disabled: %v", err)
		} else if w, err := aws_pkg.NewCloudWatchLogsWriter(ctx, awsCfg, cfg.CloudWatchLogGroup, serviceName); err != nil {
			log.Printf("CloudWatch Logs disabled: %v", err)
		} else {
			sink = w
		}
	}
	zapLogger, err := logger.New(cfg.AppEnv, sink)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	// --- Datastore ---
	store, err := database.OpenStore(ctx, database.StoreOptions{
		Driver:        cfg.StoreDriver,
		MongoURL:      cfg.MongoURL,
		MongoDB:       cfg.MongoDB,
		ProductsTable: cfg.ProductsTable,
		OrdersTable:   cfg.OrdersTable,
		AWS:           func(context.Context) (aws.Config, error) { return awsConfig() },
	}, zapLogger)
	if err != nil {
		return fmt.Errorf("store init failed: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			zapLogger.Error("Store close error", zap.Error(err))
		}
	}()

	// --- CloudWatch metrics (non-fatal) ---
	var metricsCfg aws.Config
	if cfg.CloudWatchEnabled {
		if metricsCfg, err = awsConfig(); err != nil {
			zapLogger.Warn("CloudWatch metrics disabled", zap.Error(err))
			cfg.CloudWatchEnabled = false
		}
	}
	metricsClient := aws_pkg.NewMetricsClient(metricsCfg, cfg.CloudWatchNamespace, cfg.CloudWatchEnabled)

	// --- Notifications ---
	emailNotifier, err := notifier.NewEmailNotifier(buildEmailSender(cfg, zapLogger), cfg.AdminEmail, zapLogger)
	if err != nil {
		return err
	}
	var orderNotifier notifier.Notifier = emailNotifier
	var notificationQueue *aws_pkg.SQSQueue
	if cfg.NotificationQueue != "" {
		awsCfg, err := awsConfig()
		if err != nil {
			return fmt.Errorf("notification queue needs AWS config: %w", err)
		}
		notificationQueue = aws_pkg.NewSQSQueue(awsCfg, cfg.NotificationQueue, zapLogger)
		orderNotifier = notifier.NewQueuedNotifier(notificationQueue)
		zapLogger.Info("Order emails are queued", zap.String("queue_url", cfg.NotificationQueue))
	}

	// --- Order events ---
	publisher, closePublisher, err := buildPublisher(cfg, awsConfig, zapLogger)
	if err != nil {
		return err
	}
	defer closePublisher()

	// --- Sweep lock ---
	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		locker = lock.NewRedisLocker(redisClient, "storefront:lock:")
		zapLogger.Info("Connected to Redis")
	}

	// --- Dependency injection ---
	razorpay := payment.NewRazorpayClient(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)
	if !razorpay.Configured() {
		zapLogger.Warn("Razorpay keys not set, online payments are disabled")
	}

	orderService := services.NewOrderService(store, orderNotifier, publisher, metricsClient, services.OrderServiceConfig{
		Retry:        cfg.Retry,
		StatusPolicy: cfg.StatusPolicy,
	}, zapLogger)
	productService := services.NewProductService(store.Products(), zapLogger)
	paymentService := services.NewPaymentService(razorpay, metricsClient, zapLogger)
	sweeper := services.NewReminderSweeper(store.Orders(), orderNotifier, locker, metricsClient, cfg.ReminderDelay, zapLogger)

	// --- HTTP router ---
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestID())
	r.Use(logger.RequestLogger(zapLogger))
	r.Use(middleware.SecurityHeaders())
	r.Use(cors.New(middleware.CORSConfig(cfg.AllowedOrigins)))
	r.Use(middleware.RateLimitMiddleware(120, 30))
	r.Use(middleware.MetricsMiddleware(metricsClient, serviceName))
	r.Use(apperrors.ErrorMiddleware())

	routes.RegisterRoutes(r, routes.Controllers{
		Health:  controllers.NewHealthController(cfg.StoreDriver),
		Product: controllers.NewProductController(productService),
		Order:   controllers.NewOrderController(orderService),
		Payment: controllers.NewPaymentController(paymentService),
	}, middleware.Auth(cfg.JWTSecret))
	if cfg.JWTSecret == "" {
		zapLogger.Warn("JWT_SECRET not set, trusting gateway identity headers")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zapLogger.Info("Storefront API started", zap.String("port", cfg.Port), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		sweeper.Start(gctx, cfg.ReminderInterval)
		return nil
	})
	if notificationQueue != nil {
		dispatcher := notifier.NewDispatcher(emailNotifier, zapLogger)
		g.Go(func() error {
			return notificationQueue.StartPolling(gctx, dispatcher.Handle)
		})
	}

	// --- Graceful shutdown ---
	g.Go(func() error {
		<-gctx.Done()
		zapLogger.Info("Initiating graceful shutdown...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("Server shutdown error", zap.Error(err))
		}
		return nil
	})

	err = g.Wait()
	zapLogger.Info("Storefront API stopped")
	return err
}

// buildEmailSender prefers Resend, then SMTP. A nil sender leaves email
// disabled.
func buildEmailSender(cfg *Config, zapLogger *zap.Logger) notifier.EmailSender {
	if cfg.ResendAPIKey != "" {
		sender, err := notifier.NewResendSender(cfg.ResendAPIKey, cfg.MailFrom)
		if err == nil {
			return sender
		}
		zapLogger.Warn("Resend sender unavailable", zap.Error(err))
	}
	if cfg.SMTPHost != "" {
		sender, err := notifier.NewSMTPSender(notifier.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.MailFrom,
		})
		if err == nil {
			return sender
		}
		zapLogger.Warn("SMTP sender unavailable", zap.Error(err))
	}
	zapLogger.Warn("No email provider configured, order emails are disabled")
	return nil
}

// buildPublisher fans order events out to SNS and Kafka, whichever are
// configured.
func buildPublisher(cfg *Config, awsConfig func() (aws.Config, error), zapLogger *zap.Logger) (events.Publisher, func(), error) {
	var publishers events.Multi
	closeFn := func() {}

	if cfg.OrderSNSTopicARN != "" {
		awsCfg, err := awsConfig()
		if err != nil {
			return nil, nil, fmt.Errorf("order SNS topic needs AWS config: %w", err)
		}
		publishers = append(publishers, events.NewSNSPublisher(aws_pkg.NewSNSClient(awsCfg), cfg.OrderSNSTopicARN))
	}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.OrderEventsTopic))
		publishers = append(publishers, kafkaPublisher)
		closeFn = func() {
			if err := kafkaPublisher.Close(); err != nil {
				zapLogger.Error("Kafka writer close error", zap.Error(err))
			}
		}
	}

	if len(publishers) == 0 {
		zapLogger.Info("No order event sinks configured")
		return events.Nop{}, closeFn, nil
	}
	return publishers, closeFn, nil
}
