// Package custodian wires the module's components together from
// configuration. The cmd binaries and embedding applications use App rather
// than assembling stores, the engine, and the machine by hand.
package custodian

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/custodian-sh/custodian/config"
	"github.com/custodian-sh/custodian/core/access"
	"github.com/custodian-sh/custodian/core/audit"
	"github.com/custodian-sh/custodian/core/catalog"
	"github.com/custodian-sh/custodian/core/conversation"
	"github.com/custodian-sh/custodian/core/reconcile"
	"github.com/custodian-sh/custodian/core/tuple"
	"github.com/custodian-sh/custodian/custgorm"
	"github.com/custodian-sh/custodian/logger"
)

// App bundles every long-lived component built from one Config.
type App struct {
	Config   *config.Config
	Repo     *custgorm.Repository
	Tuples   *tuple.Client
	Engine   *reconcile.Engine
	Resolver *access.Resolver
	Recorder *audit.Recorder
	Catalog  *catalog.Service
	Pending  conversation.Store
	Machine  *conversation.Machine
	Log      *zap.Logger

	// Redis is nil when the in-memory pending store is selected.
	Redis *redis.Client
}

// New builds the application from configuration. The relational schema is
// migrated unless the config says otherwise.
func New(cfg *config.Config) (*App, error) {
	logger.InitLogger(cfg.LogLevel)
	log := logger.Log

	repo, err := custgorm.Open(cfg.DBType, cfg.DSN, nil, cfg.SkipAutoMigrate)
	if err != nil {
		return nil, err
	}

	tuples := tuple.NewClient(cfg.TupleStoreURL, cfg.TupleStoreID, cfg.TupleTimeout, log)

	engine := reconcile.NewEngine(repo.Users(), repo.Resources(), tuples, log,
		reconcile.WithBatchSize(cfg.ReconcileBatch),
		reconcile.WithWorkers(cfg.ReconcileWorkers),
	)
	resolver := access.NewResolver(tuples, access.WithWorkers(cfg.ResolverWorkers))
	recorder := audit.NewRecorder(repo.Audit(), log)
	svc := catalog.NewService(repo.Users(), repo.Resources(), engine, resolver, recorder, log)

	var pending conversation.Store
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pending = conversation.NewRedisStore(redisClient, "", cfg.PendingTTL)
	} else {
		pending = conversation.NewMemoryStore(cfg.PendingTTL)
	}

	var classifier conversation.Classifier
	if cfg.ClassifierURL != "" {
		classifier = conversation.NewHTTPClassifier(cfg.ClassifierURL, cfg.TupleTimeout)
	}
	machine := conversation.NewMachine(pending, svc, classifier, cfg.PendingTTL, log)

	return &App{
		Config:   cfg,
		Repo:     repo,
		Tuples:   tuples,
		Engine:   engine,
		Resolver: resolver,
		Recorder: recorder,
		Catalog:  svc,
		Pending:  pending,
		Machine:  machine,
		Log:      log,
		Redis:    redisClient,
	}, nil
}
