package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"puzzle-ledger/core/config"
	"puzzle-ledger/core/database"
	"puzzle-ledger/core/loader"
	"puzzle-ledger/core/logger"
	"puzzle-ledger/core/middleware/auth"
	"puzzle-ledger/core/middleware/rayid"
	"puzzle-ledger/core/storage"
	"puzzle-ledger/core/vision"

	"puzzle-ledger/feature/inventory"
	"puzzle-ledger/feature/inventory/models"
	"puzzle-ledger/feature/scan"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// @title Puzzle Ledger API
// @version 1.0
// @description API for reconciling puzzle piece inventories from screenshot scans.
// @host localhost:8080
// @BasePath /

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the puzzle ledger server",
	Long:  `Starts the HTTP server and initializes all enabled features.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load Configuration
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		// 2. Initialize Logger
		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		// 3. Connect to Database. Every feature writes through it, so unlike
		// the archive this connection is mandatory.
		db, err := database.Connect(cfg.Database)
		if err != nil {
			logg.Fatal("Failed to connect to database", zap.Error(err))
		}
		if err := models.Migrate(db); err != nil {
			logg.Fatal("Failed to migrate schema", zap.Error(err))
		}
		logg.Info("Connected to database", zap.String("name", cfg.Database.Name))

		// 4. Initialize Storage (screenshot archive)
		store, err := storage.NewClient(cfg.Storage)
		if err != nil {
			logg.Fatal("Failed to create storage client", zap.Error(err))
		}
		ensureCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := storage.EnsureBucket(ensureCtx, store, cfg.Storage.Bucket); err != nil {
			// Archiving is best-effort; scanning works without it.
			logg.Warn("Screenshot archive unavailable", zap.Error(err))
		}
		cancel()

		// 5. Build the scan pipeline
		extractor := vision.NewHTTPExtractor(cfg.Vision)
		invStore := inventory.NewStore(db, logg)
		engine := inventory.NewEngine(invStore, logg)
		guard := scan.NewGuard(db, logg)
		ledger := scan.NewLedger(db, logg)
		rollbacker := scan.NewRollbacker(ledger, invStore, guard, store, cfg.Storage.Bucket, logg)
		scanSvc := scan.NewService(invStore, extractor, engine, guard, ledger, rollbacker, store, cfg.Storage.Bucket, logg)

		// 6. Initialize Fiber App
		app := fiber.New(fiber.Config{
			DisableStartupMessage: true, // We log our own startup message
			BodyLimit:             cfg.Server.BodyLimitBytes(),
		})

		// 7. Register Features
		mgr := loader.NewManager()
		mgr.Register(inventory.NewFeature(invStore, logg))
		mgr.Register(scan.NewFeature(scanSvc, logg))

		// Middleware Registration
		// RayID must be first so everything downstream can be traced.
		app.Use(rayid.New())

		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// Auth protects the whole API surface.
		app.Use(auth.New(auth.Config{ApiKey: cfg.Server.ApiKey}))

		// 8. Load Features
		if err := mgr.LoadAll(app); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		// 9. Start Server
		go func() {
			logg.Info("Starting server", zap.String("port", cfg.Server.Port))
			if err := app.Listen(":" + cfg.Server.Port); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// 10. Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		_ = app.Shutdown()
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
