package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ayusman/posetrack/internal/app"
	"github.com/ayusman/posetrack/internal/config"
	"github.com/ayusman/posetrack/internal/recorder"
	"github.com/ayusman/posetrack/internal/server"
	"github.com/ayusman/posetrack/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	serveRecord  bool
	serveName    string
	serveReplay  string
	serveAddr    string
	serveNoHTTP  bool
	serveWebRoot string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tracking loop and HTTP API",
	Long: `Run the tracking loop against the configured feed. The live state is served
over HTTP and WebSocket, and the session can optionally be recorded.`,
	Example: `  posetrack serve
  posetrack serve --record --name warmup
  posetrack serve --replay 3f2a9c1e-... --addr :9090`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveRecord, "record", false, "Record the session to the store")
	serveCmd.Flags().StringVar(&serveName, "name", "", "Name for the recorded session")
	serveCmd.Flags().StringVar(&serveReplay, "replay", "", "Replay a recorded session instead of the configured feed")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveNoHTTP, "no-http", false, "Run the loop without the HTTP API")
	serveCmd.Flags().StringVar(&serveWebRoot, "web", "", "Directory of static files to serve")
	rootCmd.AddCommand(serveCmd)
}

func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("record") {
		cfg.Recording.Enabled = serveRecord
	}
	if serveName != "" {
		cfg.Recording.Name = serveName
	}
	if serveReplay != "" {
		cfg.Feed.Type = config.FeedReplay
		cfg.Feed.Session = serveReplay
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveNoHTTP {
		cfg.Server.Addr = ""
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	applyServeFlags(cmd, cfg)

	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("feed", cfg.Feed.Type).
		Str("policy", cfg.Scheduler.UpdatePhase).
		Msg("Starting posetrack")

	st, err := store.New(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close store")
		}
	}()
	logger.Info().Str("path", cfg.Storage.Path).Msg("Store opened")

	feed, err := app.OpenFeed(cfg, st)
	if err != nil {
		return err
	}

	tracker := app.New(cfg, feed, logger)

	if cfg.Recording.Enabled {
		rec, err := recorder.New(recorder.Config{
			Store:         st,
			Name:          cfg.Recording.Name,
			FrameRate:     cfg.Loop.FrameRate,
			Roles:         cfg.Tracking.ParsedRoles(),
			FlushInterval: cfg.Recording.FlushInterval,
			Logger:        logger,
		})
		if err != nil {
			return err
		}
		tracker.SetRecorder(rec)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracker.Start(ctx)
	defer tracker.Stop()

	if cfg.Server.Addr == "" {
		<-ctx.Done()
		logger.Info().Msg("Shutting down")
		return nil
	}

	webDir := serveWebRoot
	if webDir == "" {
		webDir = findWebDir()
	}
	if webDir != "" {
		logger.Info().Str("dir", webDir).Msg("Serving static files")
	}

	srv := server.New(server.Config{
		StaticDir: webDir,
		Store:     st,
		Tracker:   tracker,
		Logger:    logger,
	})
	if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	logger.Info().Msg("Shutting down")
	return nil
}

// findWebDir returns the first of ./web and ~/.posetrack/web that exists, or "".
func findWebDir() string {
	if info, err := os.Stat("web"); err == nil && info.IsDir() {
		if abs, err := filepath.Abs("web"); err == nil {
			return abs
		}
		return "web"
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	homeWebDir := filepath.Join(homeDir, ".posetrack", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}
	return ""
}
