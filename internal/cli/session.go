package cli

import (
	"context"
	"path/filepath"

	"github.com/openhydro/sewerflow/pkg/cache"
	"github.com/openhydro/sewerflow/pkg/cascade"
	"github.com/openhydro/sewerflow/pkg/config"
	"github.com/openhydro/sewerflow/pkg/elevation"
	"github.com/openhydro/sewerflow/pkg/engine"
	"github.com/openhydro/sewerflow/pkg/provider"
	"github.com/openhydro/sewerflow/pkg/snapshot"
)

// session bundles everything a command needs to work on one network file:
// the loaded file, an editable in-memory store, the assembled engine and
// the backing cache and snapshot stores.
type session struct {
	cfg   config.Config
	path  string
	file  *provider.NetworkFile
	store *provider.Memory

	engine    *engine.Engine
	cache     cache.Cache
	snapStore snapshot.Store
}

// openSession loads the network file and assembles an engine per the
// effective configuration.
func (c *CLI) openSession(ctx context.Context, path string) (*session, error) {
	ctx = withLogger(ctx, c.Logger)

	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}

	file, err := provider.LoadFile(path)
	if err != nil {
		return nil, err
	}
	store := file.Provider()

	sampleCache, err := newSampleCache(ctx, cfg)
	if err != nil {
		return nil, err
	}
	sampler, err := newSampler(cfg, file, sampleCache)
	if err != nil {
		sampleCache.Close()
		return nil, err
	}

	snapStore, err := newSnapshotStore(ctx, cfg)
	if err != nil {
		sampleCache.Close()
		return nil, err
	}

	eng, err := engine.New(ctx, engine.Options{
		Provider:          store,
		Sampler:           sampler,
		Store:             snapStore,
		SnapshotName:      filepath.Base(path),
		Tolerance:         cfg.Network.Tolerance,
		MovementTolerance: cfg.Network.MovementTolerance,
		Method:            cfg.Method(),
		Params: cascade.Params{
			MinCover:     cfg.Cascade.MinCover,
			Diameter:     cfg.Cascade.Diameter,
			Slope:        cfg.Cascade.Slope,
			Epsilon:      cfg.Cascade.Epsilon,
			InitialDepth: cfg.Cascade.InitialDepth,
		},
		Logger: c.Logger,
	})
	if err != nil {
		sampleCache.Close()
		_ = snapStore.Close(ctx)
		return nil, err
	}

	return &session{
		cfg:       cfg,
		path:      path,
		file:      file,
		store:     store,
		engine:    eng,
		cache:     sampleCache,
		snapStore: snapStore,
	}, nil
}

// save writes the store's current segment state back to the network file.
func (s *session) save(ctx context.Context) error {
	return provider.SaveFile(ctx, s.path, s.file, s.store)
}

func (s *session) close(ctx context.Context) {
	s.cache.Close()
	_ = s.snapStore.Close(ctx)
}

// newSampler builds the terrain sampler: a grid configured in the config
// file wins over one embedded in the network file, and results go through
// the sample cache. A nil return means no terrain source.
func newSampler(cfg config.Config, file *provider.NetworkFile, c cache.Cache) (elevation.Sampler, error) {
	var base elevation.Sampler
	if cfg.Elevation.Grid != "" {
		grid, err := elevation.LoadGrid(cfg.Elevation.Grid)
		if err != nil {
			return nil, err
		}
		base = elevation.NewGridSampler(grid)
	} else {
		base = file.Sampler()
	}
	if base == nil {
		return nil, nil
	}
	return elevation.NewCachedSampler(base, c, cfg.Network.Tolerance), nil
}

func newSampleCache(ctx context.Context, cfg config.Config) (cache.Cache, error) {
	logger := loggerFromContext(ctx)
	switch cfg.Cache.Backend {
	case "redis":
		logger.Debug("using redis sample cache", "addr", cfg.Cache.RedisAddr)
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
	case "file":
		dir := cfg.Cache.Dir
		if dir == "" {
			var err error
			dir, err = cacheDir()
			if err != nil {
				return cache.NewNullCache(), nil
			}
		}
		logger.Debug("using file sample cache", "dir", dir)
		return cache.NewFileCache(dir)
	}
	return cache.NewNullCache(), nil
}

func newSnapshotStore(ctx context.Context, cfg config.Config) (snapshot.Store, error) {
	logger := loggerFromContext(ctx)
	switch cfg.Snapshot.Backend {
	case "mongo":
		logger.Debug("using mongo snapshot store", "database", cfg.Snapshot.MongoDatabase)
		return snapshot.NewMongoStore(ctx, snapshot.MongoConfig{
			URI:        cfg.Snapshot.MongoURI,
			Database:   cfg.Snapshot.MongoDatabase,
			Collection: cfg.Snapshot.MongoCollection,
		})
	case "file":
		dir := cfg.Snapshot.Path
		if dir == "" {
			var err error
			dir, err = stateDir()
			if err != nil {
				return snapshot.NewNullStore(), nil
			}
		}
		logger.Debug("using file snapshot store", "dir", dir)
		return snapshot.NewFileStore(dir)
	}
	return snapshot.NewNullStore(), nil
}
