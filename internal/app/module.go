// Package app composes the client from its parts.
package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"gram/internal/attach"
	"gram/internal/backend"
	"gram/internal/bus"
	"gram/internal/config"
	"gram/internal/draft"
	"gram/internal/files"
	"gram/internal/lock"
	"gram/internal/logging"
	"gram/internal/outbox"
	"gram/internal/sched"
	"gram/internal/session"
	"gram/internal/status"
	"gram/internal/store"
	intsync "gram/internal/sync"
	"gram/internal/telegram"
	"gram/internal/tui"
	"gram/internal/tui/ui"
	"gram/internal/typing"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	Config      *config.Config
}

// Module returns the fx module composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("gram",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideRecords,
			provideSched,
			provideAdapter,
			provideClient,
			provideTyping,
			provideDrafts,
			provideBinder,
			provideUploads,
			provideDispatcher,
			provideSyncEngine,
			provideFlash,
			provideTUI,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired", zap.String("session", p.SessionName))
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.AppDBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideRecords() *store.Records {
	return store.NewRecords()
}

func provideSched() *sched.Registry {
	return sched.New(nil)
}

func provideAdapter(p Params, b *bus.Bus, machine *status.Machine, logger *zap.Logger) (*telegram.Adapter, error) {
	return telegram.New(telegram.Config{
		APIID:       p.Config.Telegram.APIID,
		APIHash:     p.Config.Telegram.APIHash,
		Phone:       p.Config.Telegram.Phone,
		Code:        p.Config.Telegram.Code,
		Password:    p.Config.Telegram.Password,
		SessionFile: session.TelegramSessionPath(p.SessionName),
	}, telegram.NewPeerCache(), b, machine, logger.Named("telegram"))
}

func provideClient(adapter *telegram.Adapter) backend.Client {
	return adapter.Outbound()
}

func provideTyping(p Params, client backend.Client, logger *zap.Logger) *typing.Throttle {
	return typing.New(client, nil, p.Config.TypingWindow(), logger.Named("typing"))
}

func provideDrafts(db *store.DB, client backend.Client, b *bus.Bus, logger *zap.Logger) *draft.Reconciler {
	return draft.New(db, client, b, logger.Named("draft"))
}

func provideBinder(records *store.Records, b *bus.Bus, logger *zap.Logger) *attach.Binder {
	return attach.New(records, b, logger.Named("attach"))
}

func provideUploads(adapter *telegram.Adapter, records *store.Records, b *bus.Bus, logger *zap.Logger) *files.Queue {
	return files.NewQueue(adapter.Outbound(), records, b, logger.Named("files"))
}

func provideDispatcher(client backend.Client, records *store.Records, binder *attach.Binder, uploads *files.Queue, reg *sched.Registry, b *bus.Bus, logger *zap.Logger) *outbox.Dispatcher {
	return outbox.New(client, records, binder, uploads, reg, b, logger.Named("outbox"))
}

func provideSyncEngine(db *store.DB, records *store.Records, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(db, records, b, logger.Named("sync"))
}

func provideFlash(p Params) *ui.FlashModel {
	return ui.NewFlashModel(p.Config.NotificationDuration())
}

func provideTUI(p Params, b *bus.Bus, db *store.DB, client backend.Client, dispatcher *outbox.Dispatcher, drafts *draft.Reconciler, throttle *typing.Throttle, reg *sched.Registry, flash *ui.FlashModel, adapter *telegram.Adapter, logger *zap.Logger) *tui.App {
	return tui.NewApp(tui.Deps{
		Bus:        b,
		DB:         db,
		Client:     client,
		Dispatcher: dispatcher,
		Drafts:     drafts,
		Typing:     throttle,
		Sched:      reg,
		Flash:      flash,
		Logger:     logger.Named("tui"),
		Session:    p.SessionName,
		SelfID:     adapter.SelfID,
	})
}

func registerLifecycle(lc fx.Lifecycle, shutdowner fx.Shutdowner, lk *lock.Lock, adapter *telegram.Adapter, engine *intsync.Engine, uploads *files.Queue, app *tui.App, logger *zap.Logger) {
	runCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			engine.Start(runCtx)
			uploads.Start(runCtx)

			go func() {
				if err := adapter.Run(runCtx); err != nil && runCtx.Err() == nil {
					logger.Error("telegram client stopped", zap.Error(err))
				}
			}()

			go func() {
				if err := app.Run(); err != nil {
					logger.Error("ui stopped", zap.Error(err))
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			app.Stop()
			cancel()
			uploads.Stop()
			engine.Stop()
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("client stopped")
			return nil
		},
	})
}
