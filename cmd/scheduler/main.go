// cmd/scheduler/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"content-scheduler/internal/allocator"
	"content-scheduler/internal/audit"
	"content-scheduler/internal/common/aws"
	"content-scheduler/internal/common/clock"
	"content-scheduler/internal/common/config"
	"content-scheduler/internal/common/database"
	"content-scheduler/internal/common/logger"
	"content-scheduler/internal/common/observability"
	"content-scheduler/internal/common/retry"
	"content-scheduler/internal/fallback"
	"content-scheduler/internal/generator"
	"content-scheduler/internal/ledger"
	"content-scheduler/internal/models"
	"content-scheduler/internal/notifier"
	"content-scheduler/internal/publisher"
	"content-scheduler/internal/store"
	"content-scheduler/internal/tasks"
	"content-scheduler/pkg/registry"

	allocatebatch "content-scheduler/internal/workers/allocation/allocate-batch"
	allocatesingle "content-scheduler/internal/workers/allocation/allocate-single"
	querycalendar "content-scheduler/internal/workers/allocation/query-calendar"
	cyclerollover "content-scheduler/internal/workers/billing/cycle-rollover"
	graceperiod "content-scheduler/internal/workers/billing/grace-period"
	paymentwebhook "content-scheduler/internal/workers/billing/payment-webhook"
	publishdispatch "content-scheduler/internal/workers/publishing/publish-dispatch"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("starting content scheduler",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Postgres with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "PostgreSQL initialization")
	if err != nil {
		zapLog.Fatal("postgres unavailable", zap.Error(err))
	}
	defer pg.Close()

	st := store.NewPostgresStore(pg.GetDB())
	if err := st.Migrate(ctx); err != nil {
		zapLog.Fatal("store migration failed", zap.Error(err))
	}

	// --- Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis initialization")
	if err != nil {
		zapLog.Fatal("redis unavailable", zap.Error(err))
	}
	defer rdb.Close()

	// --- Optional collaborators ---
	var auditor *audit.Indexer
	if cfg.Audit.Enabled {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			zapLog.Fatal("elasticsearch init failed", zap.Error(err))
		}
		auditor = audit.NewIndexer(es, cfg.Audit.Index, log)
	}

	var notify notifier.Notifier = notifier.NoOpNotifier{}
	if cfg.Notifications.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.AWSRegion)
		if err != nil {
			zapLog.Fatal("ses init failed", zap.Error(err))
		}
		// Notification addresses live with the payment provider; clients are
		// addressed per their gateway profile alias.
		notify = notifier.NewSESNotifier(sesClient, cfg.Notifications.Sender, func(clientID string) string {
			return fmt.Sprintf("billing+%s@%s", clientID, "notifications.invalid")
		}, log)
	}

	snsClient, err := aws.NewSNSClient(ctx, cfg.Publisher.AWSRegion)
	if err != nil {
		zapLog.Fatal("sns init failed", zap.Error(err))
	}
	pub := publisher.NewSNSPublisher(snsClient, cfg.Publisher.TopicARN, log)

	// --- Core wiring ---
	clk := clock.System()

	quotas := make(map[models.BillingCycleKind]int, len(cfg.Billing.Plans))
	for kind, plan := range cfg.Billing.Plans {
		quotas[models.BillingCycleKind(kind)] = plan.QuotaPerCycle
	}
	led := ledger.New(st, ledger.Config{
		GracePeriodDays: cfg.Billing.GracePeriodDays,
		QuotaPerCycle:   quotas,
	}, clk, log)

	gen := generator.NewClient(cfg.Generator.URL, time.Duration(cfg.Generator.Timeout)*time.Millisecond, log)
	pool := fallback.NewRedisPool(rdb, cfg.Pool.KeyPrefix)
	selector := fallback.NewSelector(gen, pool, retry.Policy{
		MaxAttempts: cfg.Generator.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Generator.BackoffBase) * time.Millisecond,
		Multiplier:  cfg.Generator.BackoffMultiplier,
	}, log)

	alloc := allocator.New(led, st, selector, clk, log)

	deduper := paymentwebhook.NewRedisDeduper(rdb, time.Duration(cfg.Webhook.DedupTTL)*time.Hour)

	// --- Periodic tasks ---
	runners := []*tasks.Runner{
		tasks.NewRunner(cyclerollover.NewTask(led, st, clk, log),
			time.Duration(cfg.Tasks.CycleRolloverInterval)*time.Minute, log, obs),
		tasks.NewRunner(graceperiod.NewTask(led, st, notify, clk, log),
			time.Duration(cfg.Tasks.GracePeriodInterval)*time.Minute, log, obs),
		tasks.NewRunner(publishdispatch.NewTask(st, pub, auditor, clk, log),
			time.Duration(cfg.Tasks.PublishDispatchInterval)*time.Minute, log, obs),
	}

	taskCtx, cancelTasks := context.WithCancel(ctx)
	for _, r := range runners {
		r.Start(taskCtx)
	}

	// --- HTTP surface ---
	reg := registry.New(cfg.App.Version)
	reg.Register(registry.Operation{
		Name: allocatesingle.OperationName, Method: http.MethodPost, Path: "/allocations",
		Description: "Allocate one content piece on a specific date",
		InputSchema: allocatesingle.GetInputSchema(),
		ErrorCodes:  []string{"QUOTA_EXCEEDED", "PAYMENT_BLOCKED", "DATE_OUT_OF_CYCLE", "DUPLICATE_ALLOCATION", "VALIDATION_ERROR"},
	})
	reg.Register(registry.Operation{
		Name: allocatebatch.OperationName, Method: http.MethodPost, Path: "/allocations/batch",
		Description: "Allocate a batch spread across a window, all-or-nothing",
		InputSchema: allocatebatch.GetInputSchema(),
		ErrorCodes:  []string{"QUOTA_EXCEEDED", "PAYMENT_BLOCKED", "DATE_OUT_OF_CYCLE", "DUPLICATE_ALLOCATION", "VALIDATION_ERROR"},
	})
	reg.Register(registry.Operation{
		Name: querycalendar.OperationName, Method: http.MethodGet, Path: "/calendar",
		Description: "List a client's allocations ordered by schedule",
		ErrorCodes:  []string{"VALIDATION_ERROR"},
	})
	reg.Register(registry.Operation{
		Name: paymentwebhook.OperationName, Method: http.MethodPost, Path: "/webhooks/payment",
		Description: "Payment gateway event intake, idempotent per eventId",
		InputSchema: paymentwebhook.GetInputSchema(),
		ErrorCodes:  []string{"VALIDATION_ERROR", "WEBHOOK_PROCESSING_FAILED"},
	})
	reg.Register(registry.Operation{
		Name: publishdispatch.ReenqueueOperation, Method: http.MethodPost, Path: "/allocations/reenqueue",
		Description: "Reset a failed allocation back to scheduled",
		ErrorCodes:  []string{"ALLOCATION_NOT_FOUND", "VALIDATION_ERROR"},
	})

	mux := http.NewServeMux()
	mux.Handle("/allocations", allocatesingle.NewHandler(alloc, log))
	mux.Handle("/allocations/batch", allocatebatch.NewHandler(alloc, log))
	mux.Handle("/allocations/reenqueue", publishdispatch.NewReenqueueHandler(st, log))
	mux.Handle("/calendar", querycalendar.NewHandler(st, log))
	mux.Handle("/webhooks/payment", paymentwebhook.NewHandler(led, deduper, notify, clk, log))
	mux.Handle("/operations", reg.Handler())
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pg.Ping(r.Context()); err != nil {
			http.Error(w, "postgres unavailable", http.StatusServiceUnavailable)
			return
		}
		if err := rdb.Ping(r.Context()); err != nil {
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		zapLog.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	zapLog.Info("shutting down", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("http shutdown incomplete", zap.Error(err))
	}

	cancelTasks()
	for _, r := range runners {
		r.Stop()
	}

	zapLog.Info("stopped")
}
