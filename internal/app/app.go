// Package app builds the object graph shared by the server and worker
// binaries from a loaded configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hibiken/asynq"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/aslmarket/aslmatch/internal/api"
	"github.com/aslmarket/aslmatch/internal/attachments"
	"github.com/aslmarket/aslmatch/internal/config"
	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/aslmarket/aslmatch/internal/pkg/clock"
	"github.com/aslmarket/aslmatch/internal/pkg/distlock"
	"github.com/aslmarket/aslmatch/internal/pkg/logger"
	"github.com/aslmarket/aslmatch/internal/pkg/retry"
	"github.com/aslmarket/aslmatch/internal/push"
	"github.com/aslmarket/aslmatch/internal/repository/memory"
	"github.com/aslmarket/aslmatch/internal/repository/postgres"
	"github.com/aslmarket/aslmatch/internal/repository/redisstore"
	"github.com/aslmarket/aslmatch/internal/service/chat"
	"github.com/aslmarket/aslmatch/internal/service/contact"
	"github.com/aslmarket/aslmatch/internal/service/matching"
	"github.com/aslmarket/aslmatch/internal/service/notification"
	"github.com/aslmarket/aslmatch/internal/service/rating"
	"github.com/aslmarket/aslmatch/internal/sms"
	"github.com/aslmarket/aslmatch/internal/worker"
)

// Directory is everything the services read from the user directory.
type Directory interface {
	matching.VisitorDirectory
	contact.Directory
	notification.RecipientResolver
}

type stores struct {
	requests  matching.Repository
	chat      chat.Repository
	ratings   rating.Repository
	summaries rating.SummaryCache
	ledger    contact.Ledger
	inbox     notification.InboxRepository
	idem      notification.IdempotencyStore
	directory Directory
}

// App holds the wired services and the connections behind them.
type App struct {
	Config *config.Config
	Clock  clock.Clock

	DB    *sql.DB
	Redis *redis.Client
	S3    *s3.Client

	Matching    *matching.Service
	Chat        *chat.Service
	Ratings     *rating.Service
	Contacts    *contact.Service
	Inbox       *notification.Inbox
	Attachments *attachments.Service
	Deliverer   *notification.Deliverer
	Dispatcher  *notification.Dispatcher

	memQueue   *notification.MemoryQueue
	asynqQueue *worker.AsynqQueue
	asynqConn  *asynq.Client
	inspector  *asynq.Inspector
}

// New opens the configured backends and wires every service. The caller
// must Close the returned App.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Clock: clock.Real{}}
	if err := a.connect(ctx); err != nil {
		a.Close()
		return nil, err
	}

	st, err := a.stores()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Deliverer = notification.NewDeliverer(st.directory, st.idem, a.transports(st.inbox))
	switch cfg.Notifications.Queue {
	case "memory":
		a.memQueue = notification.NewMemoryQueue(a.Deliverer, cfg.Notifications.Workers, a.RetryPolicy(), a.Clock)
		a.Dispatcher = notification.NewDispatcher(a.memQueue)
	case "asynq":
		if a.Redis == nil {
			a.Close()
			return nil, errors.New("notifications.queue=asynq requires redis.addr")
		}
		opt := worker.RedisOpt(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		a.asynqConn = asynq.NewClient(opt)
		a.inspector = asynq.NewInspector(opt)
		a.asynqQueue = worker.NewAsynqQueue(a.asynqConn, a.inspector, a.RetryPolicy())
		a.Dispatcher = notification.NewDispatcher(a.asynqQueue)
	default:
		a.Close()
		return nil, fmt.Errorf("unknown notifications.queue %q", cfg.Notifications.Queue)
	}

	for ch := range a.disabledChannels() {
		a.Dispatcher.Disable(ch)
	}

	locker := distlock.NewLocker(a.Redis, a.DB, cfg.Matching.LockTTL())

	a.Chat = chat.NewService(st.chat, chat.RequestReaderFunc(st.requests.Get), a.Dispatcher, a.Clock)
	a.Matching = matching.NewService(matching.Deps{
		Repo:           st.requests,
		Visitors:       st.directory,
		Chat:           a.Chat,
		Notifier:       a.Dispatcher,
		Locker:         locker,
		Clock:          a.Clock,
		LockWait:       cfg.Matching.LockWait(),
		SuggestedLimit: cfg.Matching.SuggestedLimit,
	})
	a.Ratings = rating.NewService(st.ratings, st.summaries, a.Matching, a.Dispatcher, locker, a.Clock)
	a.Contacts = contact.NewService(st.ledger, st.directory, st.directory, a.Clock, contact.Config{
		MaxViews:        cfg.Contact.MaxViews,
		DefaultTimezone: cfg.Contact.DefaultTimezone,
		MaxViewsByPlan:  cfg.Contact.MaxViewsByPlan,
	})
	a.Inbox = notification.NewInbox(st.inbox, a.Clock)

	if cfg.Attachments.Enabled {
		svc, client, err := attachments.NewFromConfig(ctx, cfg.Attachments)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("attachments: %w", err)
		}
		a.Attachments, a.S3 = svc, client
		logger.Info("chat attachments enabled", "bucket", cfg.Attachments.S3Bucket, "region", cfg.Attachments.S3Region)
	}

	return a, nil
}

func (a *App) connect(ctx context.Context) error {
	cfg := a.Config
	if cfg.Storage.Type == "postgres" {
		if cfg.Database.URL == "" {
			return errors.New("storage.type=postgres requires database.url")
		}
		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(5 * time.Minute)
		db.SetConnMaxIdleTime(time.Minute)
		a.DB = db

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		logger.Info("connected to database", "max_open_conns", cfg.Database.MaxOpenConns)
	}

	if cfg.Redis.Enabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.Redis = client

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		logger.Info("connected to redis", "addr", cfg.Redis.Addr)
	}
	return nil
}

// stores picks one implementation per repository. Redis, when present,
// backs the quota ledger, delivery idempotency and rating summaries since
// those must agree across nodes.
func (a *App) stores() (stores, error) {
	var st stores
	switch a.Config.Storage.Type {
	case "postgres":
		st.requests = postgres.NewRequestRepo(a.DB)
		st.chat = postgres.NewChatRepo(a.DB)
		st.ratings = postgres.NewRatingRepo(a.DB)
		st.ledger = postgres.NewContactLedger(a.DB)
		st.inbox = postgres.NewInboxRepo(a.DB)
		st.directory = postgres.NewDirectoryRepo(a.DB)
	case "memory":
		dir := memory.NewDirectory()
		if path := a.Config.Storage.SeedFile; path != "" {
			n, err := memory.LoadSeed(dir, path, a.Clock.Now())
			if err != nil {
				return st, err
			}
			logger.Info("directory seeded", "file", path, "records", n)
		}
		st.requests = memory.NewRequestStore()
		st.chat = memory.NewChatStore()
		st.ratings = memory.NewRatingStore()
		st.ledger = memory.NewContactLedger()
		st.inbox = memory.NewInboxStore()
		st.directory = dir
	default:
		return st, fmt.Errorf("unknown storage.type %q", a.Config.Storage.Type)
	}

	ttl := a.Config.Notifications.IdempotencyTTL()
	if a.Redis != nil {
		st.ledger = redisstore.NewQuotaLedger(a.Redis)
		st.idem = redisstore.NewIdempotencyStore(a.Redis, ttl)
		st.summaries = redisstore.NewSummaryCache(a.Redis, 10*time.Minute)
	} else {
		st.idem = memory.NewIdempotencyStore(ttl, a.Clock)
		st.summaries = memory.NewSummaryCache()
	}
	logger.Info("storage ready", "type", a.Config.Storage.Type, "redis", a.Redis != nil)
	return st, nil
}

func (a *App) transports(inbox notification.InboxRepository) map[domain.Channel]notification.Transport {
	n := a.Config.Notifications
	t := map[domain.Channel]notification.Transport{
		domain.ChannelInApp: notification.NewInAppTransport(inbox, a.Clock),
	}
	if n.Push.BaseURL != "" {
		t[domain.ChannelPush] = push.NewClient(n.Push, nil)
	}
	if n.SMS.BaseURL != "" {
		t[domain.ChannelSMS] = sms.NewClient(n.SMS, nil)
	}
	return t
}

// disabledChannels lists the channels without a configured gateway.
func (a *App) disabledChannels() map[domain.Channel]bool {
	n := a.Config.Notifications
	off := make(map[domain.Channel]bool)
	if n.Push.BaseURL == "" {
		off[domain.ChannelPush] = true
		logger.Warn("push gateway not configured, push notifications disabled")
	}
	if n.SMS.BaseURL == "" {
		off[domain.ChannelSMS] = true
		logger.Warn("sms gateway not configured, sms notifications disabled")
	}
	return off
}

// RetryPolicy is the notification delivery retry policy.
func (a *App) RetryPolicy() retry.Policy {
	n := a.Config.Notifications
	return retry.Policy{MaxAttempts: n.MaxAttempts, BaseDelay: n.BaseDelay(), MaxDelay: n.MaxDelay()}
}

// Services returns the API's view of the wired services.
func (a *App) Services() api.Services {
	return api.Services{
		Matching:    a.Matching,
		Chat:        a.Chat,
		Ratings:     a.Ratings,
		Contacts:    a.Contacts,
		Inbox:       a.Inbox,
		Attachments: a.Attachments,
	}
}

// HealthDeps lists the connections /health probes.
func (a *App) HealthDeps() api.HealthDeps {
	d := api.HealthDeps{DB: a.DB, QueueDepth: a.QueueDepth}
	if a.Redis != nil {
		d.Redis = a.Redis
	}
	if a.S3 != nil {
		d.S3 = a.S3
		d.S3Bucket = a.Config.Attachments.S3Bucket
	}
	return d
}

// QueueDepth reports the undelivered notification jobs of whichever queue
// is in use.
func (a *App) QueueDepth(ctx context.Context) (int, error) {
	if a.memQueue != nil {
		return a.memQueue.Pending(), nil
	}
	return a.asynqQueue.Depth(ctx)
}

// ExpirySweeper builds the periodic request expiry job.
func (a *App) ExpirySweeper() *worker.ExpirySweeper {
	return worker.NewExpirySweeper(a.Matching, a.Config.Matching.SweepInterval(), a.Clock)
}

// StartDelivery starts the in-process delivery workers. It is a no-op when
// delivery runs on the asynq worker.
func (a *App) StartDelivery() {
	if a.memQueue != nil {
		a.memQueue.Start()
	}
}

// UsesAsynq reports whether notifications go through the Redis task queue.
func (a *App) UsesAsynq() bool {
	return a.asynqQueue != nil
}

// Close stops delivery and releases every connection.
func (a *App) Close() {
	if a.memQueue != nil {
		a.memQueue.Stop()
	}
	if a.asynqConn != nil {
		if err := a.asynqConn.Close(); err != nil {
			logger.Warn("close asynq client", "error", err)
		}
	}
	if a.inspector != nil {
		_ = a.inspector.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			logger.Warn("close redis", "error", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			logger.Warn("close database", "error", err)
		}
	}
}
