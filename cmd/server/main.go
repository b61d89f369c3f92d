package main // Entry point package

import (
    "context"
    "errors"
    "net/http"
    "os"
    "os/signal"
    "path/filepath"
    "syscall"
    "time"

    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"
    "github.com/labstack/gommon/log"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/mentor-booking/internal/besteffort"
    "github.com/iliyamo/mentor-booking/internal/config"
    "github.com/iliyamo/mentor-booking/internal/database"
    "github.com/iliyamo/mentor-booking/internal/discord"
    "github.com/iliyamo/mentor-booking/internal/handler"
    "github.com/iliyamo/mentor-booking/internal/mailer"
    "github.com/iliyamo/mentor-booking/internal/metrics"
    "github.com/iliyamo/mentor-booking/internal/middleware"
    "github.com/iliyamo/mentor-booking/internal/queue"
    "github.com/iliyamo/mentor-booking/internal/ratelimit"
    "github.com/iliyamo/mentor-booking/internal/repository"
    "github.com/iliyamo/mentor-booking/internal/router"
    "github.com/iliyamo/mentor-booking/internal/service"
)

// auditLogPath is where the session.booked consumer appends its lines.
const auditLogPath = "logs/sessions.log"

func main() {
    cfg := config.Load()

    logger := log.New("mentor-booking")
    logger.SetLevel(cfg.LogLvl())

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        logger.Fatalf("open database: %v", err)
    }
    defer db.Close()
    if cfg.AutoMigrate {
        applied, err := database.Migrate(ctx, db)
        if err != nil {
            logger.Fatalf("migrate: %v", err)
        }
        if len(applied) > 0 {
            logger.Infoj(log.JSON{"event": "migrations_applied", "versions": applied})
        }
    }

    // Redis is optional: the rate limiter falls back to memory and the
    // response cache turns itself off without it.
    var rdb *redis.Client
    if cfg.RateLimit.Backend == config.RateLimitRedis || cfg.Cache.Enabled {
        rdb, err = config.NewRedisClient(cfg.Redis)
        if err != nil {
            logger.Warnf("redis unavailable, continuing without it: %v", err)
            rdb = nil
        } else {
            defer rdb.Close()
        }
    }

    reg := prometheus.NewRegistry()
    reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    m, err := metrics.New(reg)
    if err != nil {
        logger.Fatalf("metrics: %v", err)
    }

    mail, err := mailer.New(cfg.Mail, logger)
    if err != nil {
        logger.Fatalf("mailer: %v", err)
    }
    admin, err := discord.New(cfg.Discord)
    if err != nil {
        logger.Warnf("discord disabled: %v", err)
        admin = nil
    }

    publisher := queue.NewPublisher(cfg.RabbitURL)
    defer publisher.Close()

    tasks := besteffort.NewRunner(logger, 10*time.Second)
    // The in-process notifier fallback fans out a whole waitlist, so it
    // gets a longer budget than a single side effect.
    fallbackTasks := besteffort.NewRunner(logger, 5*time.Minute)

    // Repositories
    packs := repository.NewPackRepo(db)
    sessions := repository.NewSessionRepo(db)
    waitlist := repository.NewWaitlistRepo(db)
    offers := repository.NewOfferRepo(db)
    inventory := repository.NewInventoryRepo(db)
    users := repository.NewUserRepo(db)
    tokens := repository.NewTokenRepo(db)

    // Services
    checker := service.NewEligibilityChecker(packs, m, logger)
    booking := service.NewBookingService(packs, sessions, publisher, tasks, m, logger)
    notifier := service.NewWaitlistNotifier(waitlist, offers, mail, admin, tasks, m, logger, cfg.Notifier, cfg.SiteURL)
    joins := service.NewWaitlistService(waitlist, offers, mail, admin, tasks, logger, cfg.SiteURL)
    inventorySvc := service.NewInventoryService(inventory, offers, publisher, notifier, fallbackTasks, logger)

    audit, err := openAuditLog(auditLogPath)
    if err != nil {
        logger.Fatalf("audit log: %v", err)
    }
    defer audit.Close()
    sessionBooked := service.NewSessionBookedHandler(users, mail, admin, tasks, audit, logger)

    consumer := queue.NewConsumer(cfg.RabbitURL, queue.RetryPolicy{
        MaxAttempts: cfg.Notifier.MaxAttempts,
        Backoff:     cfg.Notifier.RetryBackoff,
    }, logger)
    consumer.Handle(queue.InventoryChangedQueue, notifier.HandleEvent)
    consumer.Handle(queue.SessionBookedQueue, sessionBooked.HandleEvent)
    consumerDone := make(chan struct{})
    go func() {
        defer close(consumerDone)
        if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
            logger.Errorf("queue consumer stopped: %v", err)
        }
    }()

    // Rate limiter
    var store ratelimit.Store
    if cfg.RateLimit.Backend == config.RateLimitRedis && rdb != nil {
        store = ratelimit.NewRedisStore(rdb)
    } else {
        mem := ratelimit.NewMemoryStore()
        mem.Start(cfg.RateLimit.JanitorInterval)
        defer mem.Close()
        store = mem
    }
    limiter := ratelimit.New(store, cfg.RateLimit.Limit, cfg.RateLimit.Window)

    var cache *middleware.ResponseCache
    if rdb != nil {
        cache = middleware.NewResponseCache(cfg.Cache, rdb)
    }

    e := echo.New()
    e.HideBanner = true
    e.Logger = logger
    e.Use(echomw.Recover())
    e.Use(echomw.RequestID())
    e.Use(middleware.RateLimit(cfg.RateLimit, limiter, m))

    router.RegisterRoutes(e, db, reg)
    router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
    router.RegisterPacks(e, handler.NewBookingHandler(packs, checker, booking, sessions), cfg.JWTSecret)
    router.RegisterWaitlist(e, handler.NewWaitlistHandler(joins, waitlist, users), cfg.JWTSecret)
    router.RegisterInventory(e, handler.NewInventoryHandler(inventorySvc, inventory, cacheInvalidator(cache)), cache, cfg.JWTSecret)
    router.RegisterAdmin(e, handler.NewAdminHandler(packs), cfg.JWTSecret)

    addr := ":" + cfg.Port
    go func() {
        logger.Infoj(log.JSON{"event": "listening", "addr": addr, "env": cfg.Env})
        if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
            logger.Fatal(err)
        }
    }()

    <-ctx.Done()
    logger.Info("shutting down")
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
    defer cancel()
    if err := e.Shutdown(shutdownCtx); err != nil {
        logger.Errorf("http shutdown: %v", err)
    }
    select {
    case <-consumerDone:
    case <-shutdownCtx.Done():
        logger.Warn("queue consumer did not stop in time")
    }
}

// cacheInvalidator keeps a nil cache from becoming a non-nil interface.
func cacheInvalidator(c *middleware.ResponseCache) handler.CacheInvalidator {
    if c == nil {
        return nil
    }
    return c
}

func openAuditLog(path string) (*os.File, error) {
    if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
        return nil, err
    }
    return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}
