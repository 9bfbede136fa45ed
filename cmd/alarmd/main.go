// Command alarmd runs the habit alarm daemon: an MCP server on stdio plus
// the loop that delivers due notifications and re-arms them weekly.
//
// Usage:
//
//	./alarmd                      # Start MCP server (stdio) and dispatcher
//	./alarmd --config path.yaml   # Use another config file
//	./alarmd --help               # Show help
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/notexe/habit-alarm/internal/app"
	"github.com/notexe/habit-alarm/internal/config"
	"github.com/notexe/habit-alarm/internal/dispatcher"
	"github.com/notexe/habit-alarm/internal/logger"
)

func main() {
	configPath := flag.String("config", config.GetDefaultConfigPath(), "Path to configuration file")
	noDispatch := flag.Bool("no-dispatch", false, "Serve tools only, do not deliver notifications")
	flag.Usage = printHelp
	flag.Parse()

	if err := run(*configPath, *noDispatch); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, noDispatch bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.New("alarmd", cfg.Log.Level)

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	reg := dispatcher.Default()
	if err := a.HandleNotifications(reg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Timers may have been lost or gone stale while the daemon was down.
	report, err := a.Service.ReconcileAll(ctx)
	if err != nil {
		log.Warn().Err(err).Strs("failed", report.Failed).Msg("startup reconciliation incomplete")
	}

	if cfg.Dispatcher.Enabled && !noDispatch {
		d := a.Dispatcher(reg)
		go func() {
			if err := d.Run(ctx); err != nil {
				log.Error().Err(err).Msg("dispatcher stopped")
			}
		}()
	}

	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	log.Info().Str("db", cfg.DBPath).Str("timezone", a.Location.String()).Msg("serving MCP on stdio")
	if err := server.ServeStdio(a.Server(reg).MCPServer()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func serveMetrics(addr string, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info().Str("addr", addr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	return srv
}

func printHelp() {
	fmt.Println(`alarmd - Recurring habit alarms via MCP protocol

USAGE:
    alarmd [--config PATH] [--no-dispatch]

FLAGS:
    --config PATH   Configuration file (default: ~/.habit-alarm/config.yaml)
    --no-dispatch   Serve tools only, do not deliver notifications
    --help          Show this help

ENVIRONMENT:
    HABIT_ALARM_DB_PATH                  SQLite database (default: ~/.habit-alarm/habit.db)
    HABIT_ALARM_TIMEZONE                 IANA zone alarms are evaluated in (default: system)
    HABIT_ALARM_NOTIFY__PROVIDER         log or telegram
    HABIT_ALARM_METRICS__ADDR            Prometheus /metrics listen address (default: off)
    TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID Telegram delivery credentials

TOOLS:
    create_alarm, list_alarms, get_alarm, update_alarm, toggle_alarm, delete_alarm
    schedule_alarm, cancel_alarm_notifications, list_pending_notifications
    respond_notification, notification_event
    record_completion, completion_history, reconcile

CONFIGURATION:
    Add to your mcp.json:
    {
      "mcpServers": {
        "habit-alarm": {
          "command": "/path/to/alarmd",
          "args": []
        }
      }
    }`)
}
