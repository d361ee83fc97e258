package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"rigdiogo/internal/api"
	"rigdiogo/pkg/audio"
	"rigdiogo/pkg/audio/mockaudio"
	"rigdiogo/pkg/config"
	"rigdiogo/pkg/game"
	"rigdiogo/pkg/library"
	"rigdiogo/pkg/logging"
	"rigdiogo/pkg/match"
	"rigdiogo/pkg/metrics"
	"rigdiogo/pkg/version"

	"github.com/joho/godotenv"
)

const defaultConfigPath = "configs/rigdio.yaml"

var (
	configPath = flag.String("config", defaultConfigPath, "Path to the config file")
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
	homeFlag   = flag.String("home", "", "Home team file (overrides match.home)")
	awayFlag   = flag.String("away", "", "Away team file (overrides match.away)")
	typeFlag   = flag.String("type", "", "Match type (overrides match.type)")
	convert    = flag.String("convert", "", "Rewrite a team file as YAML to the given path and exit; takes the team file as argument")
)

func main() {
	flag.Parse()

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated:", *configPath)
		return
	}

	if *convert != "" {
		if err := convertTeam(flag.Arg(0), *convert); err != nil {
			fmt.Fprintf(os.Stderr, "Conversion failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// A missing .env is fine; it only fills gaps in the config.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to read .env", "error", err)
	}

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(appCfg)

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("Rigdio Started", "version", version.Version)

	var title *logging.TitleLog
	if appCfg.Log.Title.Enabled {
		title, err = logging.NewTitleLog(appCfg.Log.Title.Path, time.Duration(appCfg.Log.Title.ClearAfter))
		if err != nil {
			return fmt.Errorf("failed to open title log: %w", err)
		}
		defer title.Close()
	}

	engine := newEngine(appCfg.Audio)
	collector := metrics.NewCollector(appCfg.Metrics, nil)

	home, err := loadTeam(appCfg, appCfg.Match.Home, true, engine, collector)
	if err != nil {
		return err
	}
	away, err := loadTeam(appCfg, appCfg.Match.Away, false, engine, collector)
	if err != nil {
		home.Close()
		return err
	}

	var prompter game.MinutePrompter
	if appCfg.Match.PromptTime {
		prompter = game.NewStdinPrompter(os.Stdin, os.Stdout)
	}

	hub := api.NewEventHub()
	defer hub.Close()

	m := match.New(home, away, match.Options{
		MatchType: appCfg.Match.Type,
		EndPoll:   time.Duration(appCfg.Playback.EndPoll),
		Prompter:  prompter,
		Metrics:   collector,
		Title:     title,
		Sinks:     []match.EventSink{hub},
	})
	defer m.Close()

	var metricsH http.Handler
	if appCfg.Metrics.Enabled {
		metricsH = collector.Handler()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	srv := api.NewServer(appCfg.Server.Address, api.NewMatchHandler(m), hub, metricsH, func() {
		quit <- syscall.SIGTERM
	})
	srv.Handler = loggingMiddleware(srv.Handler)

	return runServerLifecycle(ctx, srv, quit)
}

func applyFlags(cfg *config.Config) {
	if *homeFlag != "" {
		cfg.Match.Home = *homeFlag
	}
	if *awayFlag != "" {
		cfg.Match.Away = *awayFlag
	}
	if *typeFlag != "" {
		cfg.Match.Type = *typeFlag
	}
}

func newEngine(cfg config.AudioConfig) audio.Engine {
	if strings.EqualFold(cfg.Provider, "mock") {
		slog.Info("Using mock audio engine")
		e := mockaudio.New()
		e.CheckDisk = true
		return e
	}
	return audio.NewBeepEngine(cfg)
}

func teamPath(cfg *config.Config, path string) string {
	if path == "" || filepath.IsAbs(path) || cfg.Library.Dir == "" {
		return path
	}
	return filepath.Join(cfg.Library.Dir, path)
}

// loadTeam loads one side. Entry problems are logged and skipped; only an
// unreadable team file stops startup.
func loadTeam(cfg *config.Config, path string, home bool, engine audio.Engine, collector *metrics.Collector) (*library.Team, error) {
	side := "away"
	if home {
		side = "home"
	}
	if path == "" {
		return nil, fmt.Errorf("no %s team file configured", side)
	}
	team, report, err := library.Load(teamPath(cfg, path), home, engine, library.OptionsFromConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s team: %w", side, err)
	}
	for _, p := range report.Missing {
		slog.Warn("Library: missing media", "team", team.Name, "path", p)
	}
	for _, e := range report.Errors {
		slog.Error("Library: invalid entry", "team", team.Name, "error", e)
	}
	collector.RecordMissing(team.Name, len(report.Missing))
	return team, nil
}

func convertTeam(in, out string) error {
	if in == "" {
		return errors.New("usage: rigdio -convert out.yml team.4ccm")
	}
	// Media is only inspected, never played.
	engine := mockaudio.New()
	team, report, err := library.Load(in, true, engine, library.Options{})
	if err != nil {
		return err
	}
	defer team.Close()
	if !report.OK() {
		fmt.Fprintln(os.Stderr, report.Error())
	}
	if err := library.Save(out, team); err != nil {
		return err
	}
	fmt.Println("Team file written:", out)
	return nil
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.RequestLogger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
