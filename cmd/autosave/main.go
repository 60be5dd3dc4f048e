package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gogotex/gogotex/backend/autosave/handlers"
	"github.com/gogotex/gogotex/backend/autosave/internal/bootstrap"
	"github.com/gogotex/gogotex/backend/autosave/internal/config"
	dochandler "github.com/gogotex/gogotex/backend/autosave/internal/document/handler"
	revhandler "github.com/gogotex/gogotex/backend/autosave/internal/revision/handler"
	"github.com/gogotex/gogotex/backend/autosave/internal/tokens"
	"github.com/gogotex/gogotex/backend/autosave/pkg/logger"
	"github.com/gogotex/gogotex/backend/autosave/pkg/metrics"
	"github.com/gogotex/gogotex/backend/autosave/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: backend=%s mongo=%v redis=%v interval=%s",
		cfg.Autosave.Backend, cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.Autosave.MinInterval)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := bootstrap.NewRedisClient(ctx, cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	backend, closeBackend, err := bootstrap.OpenBackend(cfg, redisClient)
	if err != nil {
		logger.Fatalf("failed to open revision storage: %v", err)
	}
	defer closeBackend()

	host, closeHost := bootstrap.OpenHost(ctx, cfg)
	defer closeHost()

	revisions, err := bootstrap.NewRevisionService(cfg, backend, host)
	if err != nil {
		logger.Fatalf("failed to create revision service: %v", err)
	}

	if cfg.Autosave.ReconcileOnStart {
		rep, err := revisions.Reconcile(ctx)
		if err != nil {
			logger.Errorf("startup reconcile failed: %v", err)
		} else {
			logger.Infof("startup reconcile: dangling=%d duplicates=%d orphans=%d",
				len(rep.Dangling), len(rep.Duplicates), len(rep.Orphans))
		}
	}

	var verifier middleware.Verifier
	if cfg.JWT.Secret != "" {
		v, err := tokens.NewVerifier(cfg.JWT.Secret)
		if err != nil {
			logger.Fatalf("failed to create token verifier: %v", err)
		}
		verifier = v
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{"mongo": host.Mongo}

		// the revision backend must answer a read
		_, _, err := backend.Get(c.Request.Context(), cfg.Autosave.IndexKey)
		deps["storage"] = err == nil
		if err != nil {
			ready = false
		}

		if cfg.RateLimit.Enabled && cfg.RateLimit.UseRedis {
			deps["redis"] = redisClient != nil
			if redisClient == nil {
				ready = false
			}
		}

		status, code := "ready", http.StatusOK
		if !ready {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterSwagger(r)

	api := r.Group("/")
	api.Use(middleware.OptionalAuthMiddleware(verifier))
	if cfg.RateLimit.Enabled {
		logger.Infof("rate limiter enabled: rps=%.2f burst=%d redis=%v", cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.UseRedis)
		if cfg.RateLimit.UseRedis {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			api.Use(middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			api.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}
	revhandler.RegisterRevisionRoutes(api, revisions, host.Users)
	dochandler.RegisterDocumentRoutes(api, host.Documents)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Infof("starting autosave service on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}

	// write whatever edit is still waiting for its window, then refuse new ones
	revisions.Flush()
	revisions.Stop()
}
