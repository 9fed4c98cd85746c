package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/richdadretirement/leadrelay/internal/config"
	"github.com/richdadretirement/leadrelay/internal/entity"
	"github.com/richdadretirement/leadrelay/internal/infra/cache"
	"github.com/richdadretirement/leadrelay/internal/infra/database"
	"github.com/richdadretirement/leadrelay/internal/infra/http/handlers"
	metrics "github.com/richdadretirement/leadrelay/internal/infra/http/middleware"
	"github.com/richdadretirement/leadrelay/internal/infra/integration/goldprice"
	"github.com/richdadretirement/leadrelay/internal/infra/integration/resend"
	"github.com/richdadretirement/leadrelay/internal/infra/integration/supabase"
	"github.com/richdadretirement/leadrelay/internal/infra/integration/telegram"
	"github.com/richdadretirement/leadrelay/internal/infra/mail"
	"github.com/richdadretirement/leadrelay/internal/infra/queue"
	"github.com/richdadretirement/leadrelay/internal/infra/worker"
	"github.com/richdadretirement/leadrelay/internal/notification"
	"github.com/richdadretirement/leadrelay/internal/usecase"
)

const version = "1.4.0"

type closer interface {
	Close(ctx context.Context) error
}

func main() {
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Lead store
	var db *sql.DB
	var leads entity.LeadRepositoryInterface
	switch {
	case cfg.DatabaseURL != "":
		db, err = database.NewDBConnection(cfg.DBDriver, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("❌ database: %v", err)
		}
		if err := database.EnsureSchema(ctx, db); err != nil {
			log.Fatalf("❌ database schema: %v", err)
		}
		leads = database.NewLeadRepository(db)
		log.Printf("🗄️ Lead store: postgres (%s)", cfg.DBDriver)
	case cfg.SupabaseURL != "" && cfg.SupabaseServiceKey != "":
		leads = supabase.NewLeadRepository(cfg.SupabaseURL, cfg.SupabaseServiceKey)
		log.Println("🗄️ Lead store: supabase")
	case cfg.IsDev():
		leads = database.NewMemoryLeadRepository()
		log.Println("🗄️ Lead store: memory (dev)")
	default:
		log.Println("⚠️ Lead store disabled, leads will only be notified")
	}

	// 2. Postback dedup
	var redisDedup *cache.RedisDeduper
	var deduper usecase.Deduper
	if cfg.RedisAddr != "" {
		redisDedup = cache.NewRedisDeduper(cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword))
		deduper = redisDedup
	} else {
		deduper = cache.NewMemoryDeduper()
	}

	// 3. Notification channels
	renderer, err := notification.LoadRenderer(cfg.NotifyTimezone)
	if err != nil {
		log.Printf("⚠️ %v, rendering times in UTC", err)
	}

	telegramCh := telegram.NewChannel(telegram.NewClient(cfg.TelegramBotToken), cfg.TelegramChatID)
	resendCh := resend.NewChannel(resend.NewClient(cfg.ResendAPIKey), cfg.EmailFrom, cfg.NotificationEmail)
	smtpCh := mail.NewEmailSender(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.EmailFrom,
		To:       cfg.NotificationEmail,
	})

	dispatcher := notification.NewDispatcher(renderer, telegramCh, resendCh, smtpCh)
	dispatcher.OnResult(metrics.RecordNotification)
	log.Printf("📣 Notification channels enabled: %v", dispatcher.Enabled())

	policy := notification.NewExponentialBackoff(time.Second, 60*time.Second, cfg.NotifyMaxAttempts)

	// 4. Outbox
	var outbox notification.Outbox
	var rmq *queue.RabbitMQ
	var closers []closer
	switch {
	case cfg.AMQPURL != "":
		rmq, err = queue.NewRabbitMQ(cfg.AMQPURL)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		outbox = queue.NewRabbitMQOutbox(rmq.Ch)

		consumeCh, err := rmq.Conn.Channel()
		if err != nil {
			log.Fatalf("❌ rabbitmq consumer channel: %v", err)
		}
		w := queue.NewWorker(consumeCh, dispatcher, policy, cfg.NotifySendTimeout)
		go func() {
			if err := w.Start(ctx, queue.QueueName); err != nil {
				log.Printf("❌ [WORKER] stopped: %v", err)
			}
		}()
		log.Println("📬 Outbox: rabbitmq")
	case cfg.NotifyOutbox == "direct":
		direct := notification.NewDirectOutbox(dispatcher, cfg.NotifySendTimeout)
		outbox = direct
		closers = append(closers, direct)
		log.Println("📬 Outbox: direct")
	default:
		mem := notification.NewMemoryOutbox(dispatcher, notification.MemoryOutboxConfig{
			SendTimeout: cfg.NotifySendTimeout,
			Policy:      policy,
		})
		outbox = mem
		closers = append(closers, mem)
		log.Println("📬 Outbox: memory")
	}

	// 5. UseCases
	trackUC := usecase.NewTrackClickUseCase(outbox, cfg.SiteURL, cfg.DefaultCompany, cfg.TrackAllowedHosts, cfg.NotifyEnqueueTimeout)
	linkUC := usecase.NewBuildLinkUseCase(cfg.TrackPath, cfg.DefaultCompany)
	postbackUC := usecase.NewHandlePostbackUseCase(outbox, leads, deduper, cfg.PostbackDedupTTL, cfg.NotifyEnqueueTimeout)
	leadUC := usecase.NewCaptureLeadUseCase(leads, outbox, cfg.NotifyEnqueueTimeout)

	// 6. Prices
	gold := goldprice.NewClient(cfg.GoldPriceURL)
	prices := cache.NewTTLCache(cfg.PriceCacheTTL, gold.Spot)
	refreshEvery := cfg.PriceCacheTTL - time.Minute
	if refreshEvery < time.Minute {
		refreshEvery = cfg.PriceCacheTTL / 2
	}
	go worker.NewPriceRefreshWorker[goldprice.Spot](prices, refreshEvery).Start(ctx)

	// 7. Handlers
	limiter := handlers.NewRateLimiter(10, time.Minute)
	go limiter.Cleanup(5*time.Minute, ctx.Done())

	trackHandler := handlers.NewTrackHandler(trackUC)
	linkHandler := handlers.NewLinkHandler(linkUC)
	postbackHandler := handlers.NewPostbackHandler(postbackUC, cfg.PostbackToken)
	leadHandler := handlers.NewLeadHandler(leadUC, limiter)
	priceHandler := handlers.NewPriceHandler(prices)

	health := handlers.NewHealthHandler(version)
	if db != nil {
		health.AddCheck("database", db.PingContext)
	}
	if rmq != nil {
		health.AddCheck("rabbitmq", func(context.Context) error {
			if !rmq.Healthy() {
				return errors.New("connection closed")
			}
			return nil
		})
	}
	if redisDedup != nil {
		health.AddCheck("redis", redisDedup.Ping)
	}
	health.
		AddIntegration("telegram", telegramCh.Enabled()).
		AddIntegration("email", resendCh.Enabled() || smtpCh.Enabled()).
		AddIntegration("supabase", cfg.SupabaseURL != "" && cfg.SupabaseServiceKey != "")

	// 8. Router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Postback-Token"},
		MaxAge:         300,
	}))

	r.Get("/track", trackHandler.Handle)
	r.Get("/api/track-click", trackHandler.Handle)
	if cfg.TrackPath != "/track" && cfg.TrackPath != "/api/track-click" {
		r.Get(cfg.TrackPath, trackHandler.Handle)
	}
	for _, path := range []string{"/api/postback", "/postback"} {
		r.Get(path, postbackHandler.Handle)
		r.Post(path, postbackHandler.Handle)
	}
	r.Post("/api/links", linkHandler.Handle)
	r.Post("/api/leads", leadHandler.CaptureLead)
	r.Get("/api/prices", priceHandler.Handle)
	r.Get("/health", health.Handle)
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		log.Printf("🔥 LeadRelay %s listening on %s (env=%s)", version, srv.Addr, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("🛑 Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ server shutdown: %v", err)
	}
	for _, c := range closers {
		if err := c.Close(shutdownCtx); err != nil {
			log.Printf("⚠️ outbox drain: %v", err)
		}
	}
	if rmq != nil {
		rmq.Close()
	}
	if db != nil {
		db.Close()
	}
	log.Println("👋 Bye")
}
