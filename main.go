package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/humanproof/server/internal/challenge"
	"github.com/humanproof/server/internal/config"
	"github.com/humanproof/server/internal/risk"
	"github.com/humanproof/server/internal/server"
	"github.com/humanproof/server/internal/store"
	"github.com/humanproof/server/internal/token"
	"github.com/humanproof/server/internal/verify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config error: %v", err)
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}
	if cfg.Environment != "dev" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	// Session store: Redis when configured, process memory otherwise.
	var sessionStore store.Store
	if cfg.RedisURL != "" {
		redisStore, err := store.NewRedisStore(cfg.RedisURL, time.Duration(cfg.RetentionHours)*time.Hour)
		if err != nil {
			logrus.Fatalf("redis store error: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisStore.Ping(ctx); err != nil {
			logrus.Fatalf("redis unreachable: %v", err)
		}
		cancel()
		defer redisStore.Close()
		sessionStore = redisStore
		logrus.Info("using redis session store")
	} else {
		sessionStore = store.NewMemoryStore()
		logrus.Info("using in-memory session store")
	}

	var classifier risk.Classifier
	if cfg.ClassifierURL != "" {
		classifier = risk.NewHTTPClassifier(cfg.ClassifierURL, time.Duration(cfg.ClassifierTimeoutMs)*time.Millisecond)
		logrus.WithField("url", cfg.ClassifierURL).Info("external classifier enabled")
	} else {
		logrus.Info("no classifier configured, scoring with fallback algorithm only")
	}

	tokens := token.NewIssuer(cfg.SecretKey)

	engine := verify.New(verify.Config{
		Classifier: classifier,
		Store:      sessionStore,
		Tokens:     tokens,
		ChallengeLimits: challenge.Limits{
			PointerMs: cfg.PointerTimeLimitMs,
			ClickMs:   cfg.ClickTimeLimitMs,
			TypingMs:  cfg.TypingTimeLimitMs,
		},
		ChallengesEnabled: cfg.ChallengesEnabled,
	})
	defer engine.Close()

	api := server.New(engine, tokens, cfg.RateLimitPerMin)

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      api.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("humanproof server starting on port %d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Fatalf("shutdown error: %v", err)
	}
}
