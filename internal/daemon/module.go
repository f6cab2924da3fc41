package daemon

import (
	"context"

	"github.com/parley-chat/parley/internal/bus"
	"github.com/parley-chat/parley/internal/focus"
	"github.com/parley-chat/parley/internal/lock"
	"github.com/parley-chat/parley/internal/logging"
	"github.com/parley-chat/parley/internal/outbox"
	"github.com/parley-chat/parley/internal/presence"
	"github.com/parley-chat/parley/internal/profile"
	"github.com/parley-chat/parley/internal/status"
	"github.com/parley-chat/parley/internal/store"
	intsync "github.com/parley-chat/parley/internal/sync"
	"github.com/parley-chat/parley/internal/transport"
	"github.com/parley-chat/parley/internal/unread"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
	ServerURL   string
	UserID      int64
	UserName    string
	DBPath      string // optional override for testing; empty = use default
	LogPath     string // optional override for testing; empty = use default
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideTracker,
			provideFocusRegistry,
			provideUnreadAggregator,
			provideTransport,
			provideEngine,
			provideSender,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	logPath := p.LogPath
	if logPath == "" {
		logPath = profile.LogPath(p.ProfileName)
	}
	return logging.New(logPath, p.ProfileName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(profile.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := p.DBPath
	if dbPath == "" {
		dbPath = profile.DBPath(p.ProfileName)
	}
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
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideTracker() *presence.Tracker {
	return presence.NewTracker()
}

func provideFocusRegistry() *focus.Registry {
	return focus.NewRegistry()
}

func provideUnreadAggregator() *unread.Aggregator {
	return unread.NewAggregator()
}

func provideTransport(p Params, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *transport.Client {
	return transport.NewClient(p.ServerURL, b, machine, logger)
}

func provideEngine(p Params, db *store.DB, tracker *presence.Tracker, b *bus.Bus, reg *focus.Registry, agg *unread.Aggregator, client *transport.Client, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(db, tracker, b, reg, agg, client, p.UserID, logger)
}

func provideSender(p Params, db *store.DB, client *transport.Client, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, client, b, p.UserID, p.UserName, logger)
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, db *store.DB, client *transport.Client, engine *intsync.Engine, sender *outbox.Sender, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// The engine subscribes before the transport connects so the
			// remote.connected event cannot be missed.
			engine.Start(context.Background())
			sender.Start(context.Background())

			go func() {
				if err := client.Connect(context.Background()); err != nil {
					logger.Error("connect failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			sender.Stop()
			engine.Stop()
			client.Close()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
