package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"portal/internal/admin"
	"portal/internal/auth"
	"portal/internal/blob"
	"portal/internal/config"
	"portal/internal/handler"
	"portal/internal/httpmiddleware"
	"portal/internal/logger"
	"portal/internal/metrics"
	"portal/internal/notify"
	"portal/internal/queue"
	"portal/internal/registration"
	"portal/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	sugar, err := logger.New(cfg.LogDir, cfg.IsProduction())
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = sugar.Sync() }()

	if err := runHTTP(cfg, sugar); err != nil {
		sugar.Fatalw("http server failed", "err", err)
	}
}

func runHTTP(cfg config.App, sugar *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	var (
		db        *store.DB
		regStore  registration.Store
		adminData admin.Store
	)
	if cfg.StoreBackend == "memory" {
		sugar.Warnw("using in-memory store; data is lost on restart")
		regStore = registration.NewMemoryStore()
		adminData = admin.NewMemoryStore()
	} else {
		var err error
		db, err = store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		if cfg.MigrateOnStart {
			if err := store.Migrate(ctx, db.Client); err != nil {
				return err
			}
		}
		repo := registration.NewRepository(db.Client, sugar)
		if err := repo.LoadColumns(ctx); err != nil {
			sugar.Warnw("could not inspect registrations table; writing core columns only", "err", err)
		}
		regStore = repo
		adminData = admin.NewPGStore(db.Client)
	}

	var (
		redisClient *store.Redis
		q           queue.Queue
	)
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		redisClient = store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		rq := queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
		rq.OnError(func(err error) { sugar.Warnw("redis queue error", "err", err) })
		q = rq
	}

	files, err := blob.New(ctx, blob.Config{
		Backend:             cfg.StorageBackend,
		S3Bucket:            cfg.S3Bucket,
		S3Region:            cfg.S3Region,
		S3Endpoint:          cfg.S3Endpoint,
		S3AccessKey:         cfg.S3AccessKey,
		S3SecretKey:         cfg.S3SecretKey,
		S3PublicURL:         cfg.S3PublicURL,
		CloudinaryCloudName: cfg.CloudinaryCloudName,
		CloudinaryAPIKey:    cfg.CloudinaryAPIKey,
		CloudinaryAPISecret: cfg.CloudinaryAPISecret,
		CloudinaryFolder:    cfg.CloudinaryFolder,
		MemoryBaseURL:       cfg.APIURL,
	})
	if err != nil {
		return err
	}
	sugar.Infow("file storage ready", "backend", cfg.StorageBackend)

	regs := registration.NewService(regStore, registration.NewGenerator(cfg.IDPrefix), files, notify.NewPublisher(q), registration.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		EnqueueTimeout: cfg.EnqueueTimeout,
		Metrics:        m,
		Logger:         sugar,
	})
	admins := admin.NewService(adminData, cfg.AdminSetupCode, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, sugar)
	if cfg.AdminSetupCode == "" {
		sugar.Infow("admin setup disabled (ADMIN_SETUP_CODE not set)")
	}
	h := handler.New(regs, admins, admin.NewGate(adminData), cfg.SiteURL, cfg.MaxUploadBytes, sugar)

	// Without a broker the API process delivers its own confirmations.
	if cfg.QueueBackend == "memory" {
		var sender notify.Sender = notify.NewLogSender(sugar)
		if cfg.SMTPConfigured() {
			sender = notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
		}
		w := notify.NewWorker(q, sender, cfg.SiteURL, cfg.NotifyTimeout, m, sugar)
		go func() {
			if err := w.Run(ctx); err != nil {
				sugar.Errorw("in-process notification worker stopped", "err", err)
			}
		}()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.Logger(sugar, "/healthz", "/metrics"))
	r.Use(httpmiddleware.Metrics(m))
	r.Use(httpmiddleware.CORS(cfg.CORSOrigins))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.Timeout(cfg.RequestTimeout))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		dbHealthy := db == nil || db.Healthy(c.Request.Context())
		redisHealthy := redisClient == nil || redisClient.Healthy(c.Request.Context())
		status := http.StatusOK
		if !dbHealthy || !redisHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "db": dbHealthy, "redis": redisHealthy})
	})

	if mem, ok := files.(*blob.Memory); ok {
		r.GET("/files/*key", handler.MemoryFiles(mem))
	}

	h.Routes(r, auth.Authenticate(cfg.JWTSigningKey, cfg.JWTIssuer))

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		sugar.Infow("starting server", "port", cfg.HTTPPort, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	sugar.Infow("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("server forced shutdown", "err", err)
	}
	sugar.Infow("server exited")
	return nil
}
