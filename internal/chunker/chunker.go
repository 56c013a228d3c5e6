// Package chunker ties detection, parsing, accelerated extraction,
// indexing and sharding together for files on disk.
package chunker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/itsmostafa/hierchunk/internal/bridge"
	"github.com/itsmostafa/hierchunk/internal/config"
	"github.com/itsmostafa/hierchunk/internal/hierarchy"
	"github.com/itsmostafa/hierchunk/internal/index"
	"github.com/itsmostafa/hierchunk/internal/shard"
)

// ErrPathNotFound is returned when an extraction query names no node.
var ErrPathNotFound = errors.New("no node at path")

// Chunker runs the parse, index and shard pipeline. Sources are addressed
// by absolute path so node ids do not depend on the working directory.
type Chunker struct {
	cfg      *config.Config
	bridge   *bridge.Bridge
	store    *index.Store
	logger   *zap.Logger
	prefix   int
	debounce time.Duration
}

type options struct {
	logger    *zap.Logger
	bridge    *bridge.Bridge
	bridgeSet bool
	store     *index.Store
}

// Option customizes a Chunker.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithBridge replaces the bridge built from the configuration. A nil
// bridge disables accelerated extraction.
func WithBridge(b *bridge.Bridge) Option {
	return func(o *options) { o.bridge, o.bridgeSet = b, true }
}

// WithStore replaces the index store built from the configuration.
func WithStore(s *index.Store) Option {
	return func(o *options) { o.store = s }
}

// New creates a Chunker from cfg. A nil cfg selects the defaults.
func New(cfg *config.Config, opts ...Option) (*Chunker, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout, _ := cfg.BridgeTimeout()
	debounce, _ := cfg.WatchDebounce()

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if !o.bridgeSet && cfg.Bridge.Enabled {
		o.bridge = bridge.New(bridge.Config{
			Timeout: timeout,
			Tools:   bridge.DefaultTools(cfg.Bridge.Tools),
			Logger:  o.logger.Named("bridge"),
		})
	}
	if o.store == nil {
		o.store = index.NewStore(cfg.Index.Dir, cfg.Index.Compress, o.logger.Named("index"))
	}

	return &Chunker{
		cfg:      cfg,
		bridge:   o.bridge,
		store:    o.store,
		logger:   o.logger,
		prefix:   cfg.Detect.PrefixBytes,
		debounce: debounce,
	}, nil
}

// Bridge returns the accelerated-extraction bridge, or nil when disabled.
func (c *Chunker) Bridge() *bridge.Bridge {
	return c.bridge
}

// Store returns the index store.
func (c *Chunker) Store() *index.Store {
	return c.store
}

// Parse detects the format of the file at path and parses it in-process.
func (c *Chunker) Parse(ctx context.Context, path string) (*hierarchy.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, f, err := c.detect(path)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	return c.parse(abs, f, content)
}

// ParseContent parses in-memory content. A zero format is detected from
// name and the content prefix.
func (c *Chunker) ParseContent(name string, f hierarchy.Format, content []byte) (*hierarchy.Tree, error) {
	if !f.Valid() {
		var err error
		if f, err = hierarchy.Detect(name, content[:min(len(content), c.prefix)]); err != nil {
			return nil, err
		}
	}
	return c.parse(name, f, content)
}

func (c *Chunker) parse(source string, f hierarchy.Format, content []byte) (*hierarchy.Tree, error) {
	start := time.Now()
	c.logger.Debug("parse start", zap.String("path", source), zap.String("format", f.String()), zap.Int("bytes", len(content)))
	tree, err := hierarchy.Parse(source, f, content)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("parse finished",
		zap.String("path", source),
		zap.String("format", f.String()),
		zap.Int("nodes", tree.Len()),
		zap.Duration("took", time.Since(start)))
	return tree, nil
}

func (c *Chunker) detect(path string) (string, hierarchy.Format, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", 0, err
	}
	f, err := hierarchy.DetectFile(abs, c.prefix)
	if err != nil {
		return "", 0, err
	}
	return abs, f, nil
}

// BuildIndex returns the persisted index for path when it is still valid,
// otherwise parses the file, persists a fresh index and returns it. A
// corrupt persisted index is reported; Rebuild replaces it.
func (c *Chunker) BuildIndex(ctx context.Context, path string) (*index.Index, error) {
	idx, err := c.store.Valid(path)
	if err == nil {
		return idx, nil
	}
	var stale *index.StaleIndexError
	if !errors.As(err, &stale) {
		return nil, err
	}
	return c.Rebuild(ctx, path)
}

// Rebuild parses path and overwrites its persisted index regardless of
// the current one.
func (c *Chunker) Rebuild(ctx context.Context, path string) (*index.Index, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	// The signature is taken before reading so a concurrent edit leaves
	// the new index stale rather than wrongly fresh.
	sig, err := index.SignatureFor(abs)
	if err != nil {
		return nil, err
	}
	tree, err := c.Parse(ctx, abs)
	if err != nil {
		return nil, err
	}
	idx := index.Build(tree, sig)
	dest, err := c.store.Save(idx)
	if err != nil {
		return nil, err
	}
	c.logger.Info("index built", zap.String("path", abs), zap.String("index", dest), zap.Int("nodes", idx.Len()))
	return idx, nil
}

// Query answers q against the valid index of path.
func (c *Chunker) Query(ctx context.Context, path string, q index.Query) ([]*hierarchy.Node, error) {
	idx, err := c.BuildIndex(ctx, path)
	if err != nil {
		return nil, err
	}
	return idx.Run(q)
}

// Shard partitions the valid index of path. A nil policy selects the
// configured one.
func (c *Chunker) Shard(ctx context.Context, path string, p shard.Policy) (*shard.Set, error) {
	if p == nil {
		var err error
		if p, err = c.DefaultPolicy(); err != nil {
			return nil, err
		}
	}
	idx, err := c.BuildIndex(ctx, path)
	if err != nil {
		return nil, err
	}
	set, err := shard.Partition(idx, p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", idx.Source, err)
	}
	c.logger.Debug("sharded", zap.String("path", idx.Source), zap.String("policy", p.Name()), zap.Int("shards", set.Len()))
	return set, nil
}

// DefaultPolicy returns the shard policy named in the configuration.
func (c *Chunker) DefaultPolicy() (shard.Policy, error) {
	return shard.ParsePolicy(c.cfg.Shard.Policy, c.cfg.ShardSize())
}
