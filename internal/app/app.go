// Package app wires shelfindex components from configuration. Both the
// API server and the admin CLI build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shelfindex/internal/config"
	"github.com/kailas-cloud/shelfindex/internal/db"
	"github.com/kailas-cloud/shelfindex/internal/db/memory"
	"github.com/kailas-cloud/shelfindex/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/shelfindex/internal/db/redis"
	"github.com/kailas-cloud/shelfindex/internal/domain"
	"github.com/kailas-cloud/shelfindex/internal/domain/search/operator"
	"github.com/kailas-cloud/shelfindex/internal/metrics"
	catalogrepo "github.com/kailas-cloud/shelfindex/internal/repository/catalog"
	"github.com/kailas-cloud/shelfindex/internal/repository/embcache"
	"github.com/kailas-cloud/shelfindex/internal/repository/index"
	"github.com/kailas-cloud/shelfindex/internal/repository/wordnet"
	"github.com/kailas-cloud/shelfindex/internal/text/expand"
	"github.com/kailas-cloud/shelfindex/internal/text/extract"
	minioTransport "github.com/kailas-cloud/shelfindex/internal/transport/minio"
	openaiEmb "github.com/kailas-cloud/shelfindex/internal/transport/openai"
	cataloguc "github.com/kailas-cloud/shelfindex/internal/usecase/catalog"
	embeddinguc "github.com/kailas-cloud/shelfindex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/shelfindex/internal/usecase/health"
	"github.com/kailas-cloud/shelfindex/internal/usecase/indexing"
	searchuc "github.com/kailas-cloud/shelfindex/internal/usecase/search"
)

// App holds the wired services and owns every client it opened.
type App struct {
	Store    db.Store
	Index    *index.Repo
	Indexing *indexing.Service
	Queue    *indexing.Queue
	Search   *searchuc.Service
	Health   *healthuc.Service
	// Catalog is nil when catalog.dsn is empty.
	Catalog *cataloguc.Service

	logger  *zap.Logger
	closers []func()
}

// New connects to every configured backend and builds the services. The
// queue is created but not started.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}
	if err := a.build(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, cfg *config.Config) error {
	metrics.Register()

	store, err := newStore(cfg.Database)
	if err != nil {
		return fmt.Errorf("create index store: %w", err)
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	if err := store.WaitForReady(ctx, config.Duration(cfg.Database.ReadinessTimeout)); err != nil {
		return fmt.Errorf("index store not ready: %w", err)
	}
	a.logger.Info("Connected to index store", zap.String("driver", cfg.Database.Driver))

	vectorDim := 0
	if cfg.Embedding.Enabled() {
		vectorDim = cfg.Embedding.Dimensions
	}
	a.Index, err = index.New(store, index.Options{
		KeyPrefix:      cfg.Storage.KeyPrefix,
		CategoryWeight: cfg.Index.CategoryWeight,
		VectorDim:      vectorDim,
		Algorithm:      db.VectorAlgorithm(strings.ToUpper(cfg.Index.Algorithm)),
		M:              cfg.Index.HNSWM,
		EFConstruct:    cfg.Index.HNSWEFConstruct,
		Scorer:         cfg.Index.Scorer,
	})
	if err != nil {
		return fmt.Errorf("create document index: %w", err)
	}
	if err := a.Index.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("ensure document index: %w", err)
	}
	a.logger.Info("Document index ready", zap.Stringer("schema", a.Index.Definition()))

	health := healthuc.New(store).WithTimeout(config.Duration(3))

	// Pass nil interfaces, not typed nil pointers, when embeddings are off.
	var docEncoder, queryEncoder *embeddinguc.Encoder
	if cfg.Embedding.Enabled() {
		base := newBaseEmbedder(&cfg.Embedding, a.logger)
		docEncoder = embeddinguc.NewEncoder(
			buildEmbedder(base, cfg, domain.PurposeDocument, cfg.Embedding.DocumentInstruction, store, a.logger), cfg.Embedding.Dimensions).
			WithInputLimit(cfg.Embedding.MaxInputChars, cfg.Embedding.MaxChunks)
		queryEncoder = embeddinguc.NewEncoder(
			buildEmbedder(base, cfg, domain.PurposeQuery, cfg.Embedding.QueryInstruction, store, a.logger), cfg.Embedding.Dimensions).
			WithInputLimit(cfg.Embedding.MaxInputChars, 1)
		health = health.WithEmbedding(base)
		a.logger.Info("Embedders created",
			zap.String("provider", cfg.Embedding.Provider),
			zap.String("model", cfg.Embedding.Model),
			zap.Int("dimensions", cfg.Embedding.Dimensions),
			zap.Int("max_input_chars", cfg.Embedding.MaxInputChars),
			zap.Int("max_chunks", cfg.Embedding.MaxChunks),
		)
	} else {
		a.logger.Info("Semantic search disabled: no embedding model configured")
	}

	expander, err := newExpander(&cfg.Expansion, queryEncoder, a.logger)
	if err != nil {
		return err
	}

	strictOp, err := operator.Parse(cfg.Search.StrictOperator, operator.And)
	if err != nil {
		return fmt.Errorf("search.strict_operator: %w", err)
	}
	expandedOp, err := operator.Parse(cfg.Search.ExpandedOperator, operator.Or)
	if err != nil {
		return fmt.Errorf("search.expanded_operator: %w", err)
	}
	searchCfg := searchuc.Config{
		LexicalThreshold:  cfg.Search.LexicalThreshold,
		SemanticThreshold: cfg.Search.SemanticThreshold,
		StrictOperator:    strictOp,
		ExpandedOperator:  expandedOp,
	}
	if queryEncoder != nil {
		a.Search = searchuc.New(a.Index, expander, queryEncoder, searchCfg)
	} else {
		a.Search = searchuc.New(a.Index, expander, nil, searchCfg)
	}

	var blobs *minioTransport.Store
	if cfg.Blobs.Endpoint != "" {
		blobs, err = minioTransport.New(minioTransport.Config{
			Endpoint:  cfg.Blobs.Endpoint,
			AccessKey: cfg.Blobs.AccessKey,
			SecretKey: cfg.Blobs.SecretKey,
			Bucket:    cfg.Blobs.Bucket,
			UseSSL:    cfg.Blobs.UseSSL,
			Region:    cfg.Blobs.Region,
		})
		if err != nil {
			return fmt.Errorf("create blob store: %w", err)
		}
		if err := blobs.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("ensure bucket: %w", err)
		}
		health = health.WithBlobStore(blobs)
		a.logger.Info("Connected to blob store",
			zap.String("endpoint", cfg.Blobs.Endpoint),
			zap.String("bucket", cfg.Blobs.Bucket),
		)
	}

	extractor := extract.New(
		extract.WithMaxSize(int64(cfg.Extraction.MaxFileMB)<<20),
		extract.WithStrictPages(cfg.Extraction.StrictPages),
	)
	if blobs != nil {
		a.Indexing = indexing.New(a.Index, extractor, blobs)
	} else {
		a.Indexing = indexing.New(a.Index, extractor, nil)
	}
	if docEncoder != nil {
		a.Indexing = a.Indexing.WithEncoder(docEncoder)
	}

	a.Queue, err = indexing.NewQueue(a.Indexing, indexing.QueueConfig{
		Workers:        cfg.Indexing.Workers,
		Buffer:         cfg.Indexing.QueueSize,
		MaxAttempts:    cfg.Indexing.MaxAttempts,
		JobTimeout:     config.Duration(cfg.Indexing.JobTimeoutSec),
		InitialBackoff: config.DurationMS(cfg.Indexing.InitialBackoffMS),
		MaxBackoff:     config.Duration(cfg.Indexing.MaxBackoffSec),
	}, a.logger)
	if err != nil {
		return fmt.Errorf("create indexing queue: %w", err)
	}

	if cfg.Catalog.DSN != "" {
		pool, err := a.openCatalog(ctx, &cfg.Catalog)
		if err != nil {
			return err
		}
		repo := catalogrepo.New(pool)
		if cfg.Catalog.Migrate {
			if err := repo.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate catalog: %w", err)
			}
		}
		if blobs != nil {
			a.Catalog = cataloguc.New(repo, blobs, a.Queue)
		} else {
			a.Catalog = cataloguc.New(repo, nil, a.Queue)
		}
		health = health.WithCatalog(pool)
	} else {
		a.logger.Info("Catalog disabled: catalog.dsn is empty")
	}

	a.Health = health
	return nil
}

func (a *App) openCatalog(ctx context.Context, cfg *config.CatalogConfig) (*pgxpool.Pool, error) {
	pool, err := postgres.Open(ctx, postgres.Config{DSN: cfg.DSN, MaxConns: cfg.MaxConns})
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	a.closers = append(a.closers, pool.Close)
	a.logger.Info("Connected to catalog database")
	return pool, nil
}

// Close releases clients in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func newStore(cfg config.DatabaseConfig) (db.Store, error) {
	switch cfg.Driver {
	case "redis":
		return dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	case "memory":
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func newBaseEmbedder(cfg *config.EmbeddingConfig, logger *zap.Logger) *openaiEmb.Embedder {
	return openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   cfg.Provider,
		Timeout:    config.Duration(cfg.TimeoutSec),
		Logger:     logger,
	})
}

// buildEmbedder assembles the decorator chain: provider -> cached -> instrumented -> instruction.
func buildEmbedder(
	base domain.Embedder,
	cfg *config.Config,
	purpose domain.Purpose,
	instruction string,
	store db.KVStore,
	logger *zap.Logger,
) domain.Embedder {
	embedder := base
	if cfg.Embedding.CacheTTLSec > 0 {
		embedder = embcache.New(base, store, embcache.Options{
			KeyPrefix:  cfg.Storage.KeyPrefix,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			TTL:        config.Duration(cfg.Embedding.CacheTTLSec),
		}, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, purpose, cfg.Embedding.Model, logger)

	// Outermost so the cache key includes the instruction.
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, purpose, instruction)
	}
	return embedder
}

func newExpander(cfg *config.ExpansionConfig, scorer *embeddinguc.Encoder, logger *zap.Logger) (*expand.Expander, error) {
	var lex expand.Lexicon = expand.NopLexicon{}
	if cfg.WordNetDir != "" {
		dict, err := wordnet.Load(cfg.WordNetDir)
		if err != nil {
			return nil, fmt.Errorf("load wordnet: %w", err)
		}
		lex = dict
		logger.Info("WordNet lexicon loaded", zap.String("dir", cfg.WordNetDir))
	} else {
		logger.Warn("No WordNet directory configured; expanded search only drops stop words")
	}

	opts := []expand.Option{expand.WithMaxTermsPerWord(cfg.MaxTermsPerWord)}
	if cfg.SimilarityFilter {
		if scorer == nil {
			return nil, errors.New("expansion.similarity_filter requires an embedding model")
		}
		opts = append(opts, expand.WithSimilarityFilter(scorer, cfg.MinSimilarity))
	}
	return expand.New(lex, opts...), nil
}
