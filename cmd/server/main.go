package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mamadbah2/greenbook/internal/config"
	"github.com/mamadbah2/greenbook/internal/lock"
	"github.com/mamadbah2/greenbook/internal/repository/mongodb"
	"github.com/mamadbah2/greenbook/internal/repository/records"
	"github.com/mamadbah2/greenbook/internal/repository/sheets"
	"github.com/mamadbah2/greenbook/internal/repository/store"
	"github.com/mamadbah2/greenbook/internal/scheduler"
	"github.com/mamadbah2/greenbook/internal/server/handlers"
	"github.com/mamadbah2/greenbook/internal/server/router"
	assistsvc "github.com/mamadbah2/greenbook/internal/service/assist"
	catalogsvc "github.com/mamadbah2/greenbook/internal/service/catalog"
	commandsvc "github.com/mamadbah2/greenbook/internal/service/commands"
	inventorysvc "github.com/mamadbah2/greenbook/internal/service/inventory"
	reportingsvc "github.com/mamadbah2/greenbook/internal/service/reporting"
	"github.com/mamadbah2/greenbook/internal/service/review"
	salessvc "github.com/mamadbah2/greenbook/internal/service/sales"
	"github.com/mamadbah2/greenbook/internal/service/settlement"
	whatsappsvc "github.com/mamadbah2/greenbook/internal/service/whatsapp"
	"github.com/mamadbah2/greenbook/pkg/clients/anthropic"
	whatsappclient "github.com/mamadbah2/greenbook/pkg/clients/whatsapp"
	"github.com/mamadbah2/greenbook/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.Store.Backend == config.BackendRedis || cfg.Lock.Backend == config.LockRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			baseLogger.Fatal("failed to reach redis", zap.String("addr", cfg.Store.Redis.Addr), zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				baseLogger.Error("failed to close redis connection", zap.Error(err))
			}
		}()
	}

	var kv store.Store
	switch cfg.Store.Backend {
	case config.BackendMongo:
		mongoRepo, err := mongodb.NewMongoDBRepository(ctx, cfg.Store.MongoDB.URI, cfg.Store.MongoDB.DBName, cfg.Store.MongoDB.Collection, baseLogger.Named("repo.mongodb"))
		if err != nil {
			baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
		}
		defer func() {
			if err := mongoRepo.Close(context.Background()); err != nil {
				baseLogger.Error("failed to close mongodb connection", zap.Error(err))
			}
		}()
		kv = mongoRepo
	case config.BackendRedis:
		kv = store.NewRedis(redisClient)
	default:
		baseLogger.Warn("using in-memory store, data is lost on restart")
		kv = store.NewMemory()
	}

	var locker lock.Locker = lock.NewLocal()
	if cfg.Lock.Backend == config.LockRedis {
		locker = lock.NewRedis(redislock.New(redisClient), cfg.Lock.TTL, baseLogger.Named("lock.redis"))
	}

	var mirror salessvc.Mirror
	if cfg.Sheets.Enabled() {
		salesLog, err := sheets.NewSalesLog(ctx, cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets sales log", zap.Error(err))
		}
		if err := salesLog.EnsureHeader(ctx); err != nil {
			baseLogger.Warn("could not write sales sheet header", zap.Error(err))
		}
		mirror = salesLog
	} else {
		baseLogger.Warn("google sheets not configured, sales mirror disabled")
	}

	var rewriter assistsvc.Rewriter
	if cfg.AI.Enabled() {
		rewriter = anthropic.NewClient(cfg.AI.AnthropicKey, "", cfg.AI.Timeout)
		baseLogger.Info("anthropic ai client enabled")
	} else {
		baseLogger.Warn("anthropic api key missing, /fix suggestions disabled")
	}

	var waClient whatsappclient.Client
	if cfg.WhatsApp.Enabled() {
		waClient = whatsappclient.NewClient(cfg.WhatsApp, 0)
	} else {
		baseLogger.Warn("whatsapp credentials missing, replies are logged only")
	}

	repo := records.New(kv)
	evaluator := review.NewEvaluator(cfg.Review.Threshold)
	inventorySvc := inventorysvc.NewService(kv, baseLogger.Named("svc.inventory"))
	catalogSvc := catalogsvc.NewService(kv, repo, inventorySvc, baseLogger.Named("svc.catalog"))
	assembler := salessvc.NewAssembler(repo, mirror, baseLogger.Named("svc.sales"))
	engine := settlement.NewEngine(repo, locker, baseLogger.Named("svc.settlement"))
	assistant := assistsvc.NewService(rewriter, cfg.AI.Timeout, baseLogger.Named("svc.assist"))
	reportingSvc := reportingsvc.NewService(assembler, engine, inventorySvc, kv, baseLogger.Named("svc.reporting"))
	drafts := whatsappsvc.NewSessionManager(whatsappsvc.DefaultDraftTTL)

	commandDispatcher := commandsvc.NewService(commandsvc.Deps{
		Catalog:    catalogSvc,
		Evaluator:  evaluator,
		Assembler:  assembler,
		Settlement: engine,
		Resolver:   repo,
		Assistant:  assistant,
		Drafts:     drafts,
		Locker:     locker,
	}, baseLogger.Named("svc.commands"))

	messagingSvc := whatsappsvc.NewMetaWhatsAppService(cfg.WhatsApp, waClient, commandDispatcher, baseLogger.Named("svc.whatsapp"))

	engineHTTP := router.New(router.Handlers{
		Webhook:   handlers.NewWebhookHandler(messagingSvc, baseLogger.Named("handlers.whatsapp")),
		Sales:     handlers.NewSalesHandler(assembler, engine, catalogSvc, repo, evaluator, baseLogger.Named("handlers.sales")),
		Inventory: handlers.NewInventoryHandler(inventorySvc, baseLogger.Named("handlers.inventory")),
		Catalog:   handlers.NewCatalogHandler(catalogSvc, assistant, reportingSvc, baseLogger.Named("handlers.catalog")),
	}, baseLogger.Named("router"))

	sched, err := scheduler.NewScheduler(*cfg, reportingSvc, messagingSvc, drafts, baseLogger.Named("scheduler"))
	if err != nil {
		baseLogger.Fatal("failed to init scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engineHTTP,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Store.Backend), zap.String("lock", cfg.Lock.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
