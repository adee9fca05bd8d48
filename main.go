package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"civic-gamification/handlers"
	"civic-gamification/middleware"
	"civic-gamification/models"
	"civic-gamification/services"
	"civic-gamification/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "gamification-service",
	Short: "XP, levels, streaks, achievements, challenges and leaderboards for the civic platform",
	Long: `gamification-service turns resident activity (issue reports, comments,
helpful votes, resolutions) into XP, levels, streaks, achievements, challenge
completions and leaderboards. Running it without a subcommand starts the server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API, scheduler and activity consumer",
	RunE:  runServe,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the default achievement catalog (idempotent)",
	RunE:  runSeed,
}

var recalcCmd = &cobra.Command{
	Use:   "recalc-leaderboards",
	Short: "Recalculate every leaderboard for its current period",
	RunE:  runRecalc,
}

var servePort string

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (overrides PORT)")
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())
	rootCmd.AddCommand(serveCmd, seedCmd, recalcCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger

	if a.cfg.StoreDriver == "memory" {
		if _, err := a.g.Achievements.SeedAchievements(ctx); err != nil {
			return fmt.Errorf("seed achievements: %w", err)
		}
	}

	loc, _ := a.cfg.Gamification.Location()
	sched, err := services.StartScheduler(ctx, a.g, services.ScheduleConfig{
		LeaderboardRefresh: a.cfg.LeaderboardRefreshInterval,
		ChallengeStatus:    a.cfg.ChallengeStatusInterval,
		Location:           loc,
	}, a.clock, logger.Named("scheduler"))
	if err != nil {
		return err
	}
	defer func() {
		if err := sched.Shutdown(); err != nil {
			logger.Warn("scheduler shutdown", zap.Error(err))
		}
	}()

	if a.natsConn != nil {
		consumer := workers.NewActivityConsumer(a.natsConn, a.g, logger.Named("activity"))
		if err := consumer.Start(ctx); err != nil {
			return err
		}
		defer consumer.Stop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed
	app.Use(middleware.GatewayAuthMiddleware(a.cfg.ServiceToken, logger.Named("gateway")))

	allowedOrigins := strings.Split(a.cfg.AllowedOrigins, ",")
	for i, origin := range allowedOrigins {
		allowedOrigins[i] = strings.TrimSpace(origin)
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(allowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	handlers.SetupRoutes(app, a.g, logger.Named("http"))

	port := a.cfg.Port
	if servePort != "" {
		port = servePort
	}
	go func() {
		if err := app.Listen(":" + port); err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}()

	logger.Info("✅ server running",
		zap.String("port", port),
		zap.String("store", a.cfg.StoreDriver),
		zap.Bool("nats", a.natsConn != nil),
		zap.Strings("cors_origins", allowedOrigins),
	)

	<-ctx.Done()
	logger.Info("shutting down server...")
	return app.ShutdownWithTimeout(10 * time.Second)
}

func runSeed(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	created, err := a.g.Achievements.SeedAchievements(cmd.Context())
	if err != nil {
		return err
	}
	a.logger.Info("✅ achievement catalog seeded",
		zap.Int("created", created),
		zap.Int("catalog", len(models.DefaultAchievements)),
	)
	return nil
}

func runRecalc(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	boards, err := a.g.RecalculateLeaderboards(cmd.Context())
	if err != nil {
		return err
	}
	for _, lb := range boards {
		a.logger.Info("✅ leaderboard recalculated",
			zap.String("time_range", string(lb.TimeRange)),
			zap.String("period", lb.Period),
			zap.Int("entries", len(lb.Rankings)),
		)
	}
	return nil
}
