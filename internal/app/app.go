// Package app wires the stores, engine and runtime together from config.
package app

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/notexe/habit-alarm/internal/alarm"
	"github.com/notexe/habit-alarm/internal/completion"
	"github.com/notexe/habit-alarm/internal/config"
	"github.com/notexe/habit-alarm/internal/dispatcher"
	"github.com/notexe/habit-alarm/internal/engine"
	"github.com/notexe/habit-alarm/internal/notify"
	"github.com/notexe/habit-alarm/internal/reconciler"
	"github.com/notexe/habit-alarm/internal/server"
	"github.com/notexe/habit-alarm/internal/storage"
	"github.com/notexe/habit-alarm/internal/timer"
)

// App holds every long-lived component of a process.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Location *time.Location

	DB          *sql.DB
	Alarms      *alarm.Store
	Service     *alarm.Service
	Completions *completion.Store
	Timers      *timer.SQLiteStore
	Engine      *engine.Engine
	Reconciler  *reconciler.Reconciler
	Notifier    notify.Notifier
}

// New opens the database and builds the components described by cfg.
func New(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger, Location: loc, DB: db}
	if err := a.build(); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build() error {
	var err error

	a.Notifier = newNotifier(a.Config, a.Logger)

	if a.Alarms, err = alarm.NewStore(a.DB, a.Config.UserID, a.Now); err != nil {
		return err
	}
	if a.Completions, err = completion.NewStore(a.DB, a.Config.UserID, a.Now); err != nil {
		return err
	}
	if a.Timers, err = timer.NewSQLiteStore(a.DB, a.Location, a.Notifier); err != nil {
		return err
	}

	a.Engine = engine.New(a.Timers,
		engine.WithClock(a.Now),
		engine.WithAlarmLookup(a.Alarms),
		engine.WithLogger(a.Logger),
	)
	a.Service = alarm.NewService(a.Alarms, a.Engine, a.Logger)
	a.Reconciler = reconciler.New(a.Completions, a.Engine, a.Now, a.Logger)
	return nil
}

func newNotifier(cfg *config.Config, logger zerolog.Logger) notify.Notifier {
	if cfg.Notify.Provider == config.ProviderTelegram {
		tg := cfg.Notify.Telegram
		return notify.NewTelegram(tg.BotToken, tg.ChatID, tg.BaseURL)
	}
	return notify.NewLogNotifier(logger)
}

// Now is the wall clock in the configured zone.
func (a *App) Now() time.Time {
	return time.Now().In(a.Location)
}

// HandleNotifications registers the reconciler as the handler of reg.
func (a *App) HandleNotifications(reg *dispatcher.Registry) error {
	if err := reg.SetupNotificationHandling(a.Reconciler); err != nil {
		return fmt.Errorf("failed to set up notification handling: %w", err)
	}
	return nil
}

// Dispatcher builds the delivery loop over the timer store.
func (a *App) Dispatcher(reg *dispatcher.Registry) *dispatcher.Dispatcher {
	return dispatcher.New(a.Timers, a.Notifier, reg, a.Config.DispatchInterval(),
		dispatcher.WithClock(a.Now),
		dispatcher.WithLogger(a.Logger),
		dispatcher.WithRetry(a.Config.Dispatcher.Retries, time.Second),
	)
}

// Server builds the MCP tool server.
func (a *App) Server(reg *dispatcher.Registry) *server.Server {
	return server.NewServer(server.Deps{
		Alarms:      a.Service,
		Engine:      a.Engine,
		Runtime:     a.Timers,
		Events:      reg,
		Completions: a.Completions,
		Now:         a.Now,
		GraphWeeks:  a.Config.Graph.Weeks,
	})
}

func (a *App) Close() error {
	return a.DB.Close()
}
