package main

import (
	"flag"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	v1 "domainsync/api/v1"
	"domainsync/internal/cache"
	"domainsync/internal/config"
	"domainsync/internal/db"
	"domainsync/internal/secrets"
	"domainsync/internal/store"
	syncsvc "domainsync/internal/sync"
	"domainsync/internal/upstream"
)

func main() {
	iniPath := flag.String("config", "", "path to INI config file (default: environment variables)")
	flag.Parse()

	// 1. Load configuration
	var cfg *config.Config
	var err error
	if *iniPath != "" {
		cfg, err = config.LoadFromINI(*iniPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Println("✓ Configuration loaded")

	// 2. Initialize MySQL
	if err := db.InitMySQL(cfg.MySQL.DSN); err != nil {
		log.Fatalf("Failed to initialize MySQL: %v", err)
	}
	defer db.Close()

	if cfg.Migrate {
		if err := db.Migrate(db.DB); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
	}

	// 3. Response cache: Redis when configured, in-process otherwise
	var respCache cache.ResponseCache
	if cfg.Redis.Addr != "" {
		client, err := cache.InitRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("Failed to initialize Redis: %v", err)
		}
		defer client.Close()
		respCache = cache.NewRedisCache(client)
	} else {
		respCache = cache.NewMemoryCache()
		log.Println("✓ Using in-process response cache")
	}

	// 4. Secret cipher for upstream credentials
	var cipher secrets.Cipher
	if cfg.Secrets.Key != "" {
		box, err := secrets.NewBox(cfg.Secrets.Key)
		if err != nil {
			log.Fatalf("Failed to initialize secrets cipher: %v", err)
		}
		cipher = box
	} else {
		cipher = secrets.Plaintext{}
		log.Println("⚠ SECRETS_KEY not set, storing upstream secrets unencrypted")
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	rootEntry := logrus.NewEntry(logger)

	// 5. Wire the sync engine
	st := store.NewStore(db.DB)
	client := upstream.NewClient(time.Duration(cfg.Sync.HTTPTimeoutSec) * time.Second)
	orchestrator := syncsvc.NewOrchestrator(client, st, respCache, cipher, rootEntry, syncsvc.Options{
		MaxBatchSize: cfg.Sync.MaxBatchSize,
		Concurrency:  cfg.Sync.Concurrency,
		BatchBudget:  time.Duration(cfg.Sync.BatchBudgetSec) * time.Second,
		CacheTTL:     time.Duration(cfg.Sync.CacheTTLSec) * time.Second,
		UsePageCache: cfg.Sync.UsePageCache,
	})

	// 6. Background cache sweeper
	sweeper := cache.NewSweeper(respCache, rootEntry, cache.SweeperConfig{
		Enabled:     cfg.Sweeper.Enabled,
		IntervalSec: cfg.Sweeper.IntervalSec,
	})
	sweeper.Start()
	defer sweeper.Stop()

	// 7. HTTP server
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()
	v1.SetupRouter(r, orchestrator, st, respCache, cipher)

	log.Printf("✓ Server starting on %s", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
