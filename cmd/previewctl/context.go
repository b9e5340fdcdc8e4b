package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"asset-preview/internal/assets"
	"asset-preview/internal/database"
	"asset-preview/internal/engine"
	"asset-preview/internal/filesystem"
	"asset-preview/internal/hostexec"
	"asset-preview/internal/namespace"
	"asset-preview/internal/scene/memscene"
	"asset-preview/internal/scheduler"
	"asset-preview/internal/startup"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *startup.Config
	configErr  error
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*startup.Config, error) {
	c.configOnce.Do(func() {
		path := os.Getenv(startup.ConfigFileEnv)
		if c.configFlag != nil && strings.TrimSpace(*c.configFlag) != "" {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := startup.LoadFile(path)
		if err != nil {
			c.configErr = err
			return
		}
		for _, dir := range []string{cfg.CacheDir, cfg.DatabaseDir} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				c.configErr = fmt.Errorf("create %s: %w", dir, err)
				return
			}
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// withDatabase opens the catalog for the duration of fn.
func (c *commandContext) withDatabase(ctx context.Context, fn func(*database.Database) error) (err error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	db, err := database.New(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close database: %w", cerr)
		}
	}()
	return fn(db)
}

// engineSession is an engine whose callbacks run on the command goroutine.
type engineSession struct {
	cfg   *startup.Config
	db    *database.Database
	eng   *engine.Engine
	queue *scheduler.Queue
}

// withEngine builds an engine over the catalog. Callbacks are queued and
// only run inside await.
func (c *commandContext) withEngine(ctx context.Context, fn func(*engineSession) error) error {
	return c.withDatabase(ctx, func(db *database.Database) error {
		exec, err := hostexec.New(c.config.HostExecutor)
		if err != nil {
			return err
		}
		defer exec.Close()

		queue := scheduler.NewQueue()
		eng, err := engine.New(memscene.New(), exec, engine.Config{
			CacheDir:   c.config.CacheDir,
			MasterSize: c.config.MasterSize,
			Scheduler:  scheduler.DefaultConfig(),
			Dispatcher: queue,
			Metadata:   db,
			Reports:    db,
			Allocator:  namespace.NewAllocator(),
		})
		if err != nil {
			return err
		}
		defer eng.Stop()

		return fn(&engineSession{cfg: c.config, db: db, eng: eng, queue: queue})
	})
}

// await runs queued callbacks until done reports true.
func (s *engineSession) await(ctx context.Context, done func() bool) error {
	for !done() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.queue.Ready():
			s.queue.Drain()
		}
	}
	return nil
}

// defaultSize is the largest configured preview size.
func (s *engineSession) defaultSize() int {
	if n := len(s.cfg.PreviewSizes); n > 0 {
		return s.cfg.PreviewSizes[n-1]
	}
	return s.eng.MasterSize()
}

var errNotAnAsset = errors.New("not a supported asset")

// assetRef resolves a command-line path to an asset on disk.
func assetRef(path string) (assets.AssetRef, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return assets.AssetRef{}, err
	}
	info, err := filesystem.StatWithRetry(abs)
	if err != nil {
		return assets.AssetRef{}, err
	}
	if info.IsDir() {
		return assets.AssetRef{}, fmt.Errorf("%s is a directory", path)
	}
	ref, err := assets.NewRef(abs)
	if err != nil {
		return assets.AssetRef{}, err
	}
	if !ref.Type.IsAsset() {
		return assets.AssetRef{}, fmt.Errorf("%s: %w", path, errNotAnAsset)
	}
	return ref, nil
}
