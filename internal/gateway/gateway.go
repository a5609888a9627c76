// Package gateway provides the tiered storage gateway: one uniform
// put/get/list/exists surface over the physical backends that hold each
// tier. Which backend serves which tier is wiring, decided at
// construction; callers branch on Tier only.
package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/lmoraga/lakeflow/internal/fault"
	"github.com/lmoraga/lakeflow/internal/logging"
	"github.com/lmoraga/lakeflow/internal/tier"
)

// Format is the physical storage format of an artifact.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
	FormatJSON    Format = "json"
	FormatBinary  Format = "binary"
)

// FormatForName guesses the format of an externally produced file from
// its extension. Used by the results intake, which never interprets
// artifact content.
func FormatForName(name string) Format {
	switch path.Ext(name) {
	case ".csv":
		return FormatCSV
	case ".parquet":
		return FormatParquet
	case ".json":
		return FormatJSON
	default:
		return FormatBinary
	}
}

// Artifact is a physical object at a tier. Artifacts are immutable once
// written; a re-run either matches the existing checksum (no-op) or
// atomically supersedes the object.
type Artifact struct {
	Name      string    `json:"name"`
	Tier      tier.Tier `json:"tier"`
	Format    Format    `json:"format"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
	WrittenAt time.Time `json:"written_at"`
}

// ObjectInfo is backend-level object metadata.
type ObjectInfo struct {
	Name     string
	Size     int64
	Checksum string
	ModTime  time.Time
}

// Backend is a physical storage service holding one or more tiers.
//
// Write must be atomic with respect to readers: a replaced object is
// either the old bytes or the new bytes, never a partial overwrite.
// Stat returns fault.ErrNotFound for absent objects.
type Backend interface {
	Name() string
	Ensure(ctx context.Context, t tier.Tier) error
	Write(ctx context.Context, t tier.Tier, name string, data []byte, checksum string) error
	Read(ctx context.Context, t tier.Tier, name string) ([]byte, error)
	Stat(ctx context.Context, t tier.Tier, name string) (ObjectInfo, error)
	List(ctx context.Context, t tier.Tier) ([]ObjectInfo, error)
}

// Config tunes gateway call behavior.
type Config struct {
	// Retry bounds the transient-error retry loop.
	Retry RetryConfig

	// CallTimeout is the per-call deadline for each backend operation.
	// A timed-out call is treated as a transient failure.
	CallTimeout time.Duration
}

// DefaultConfig returns the default gateway configuration.
func DefaultConfig() Config {
	return Config{
		Retry:       DefaultRetryConfig(),
		CallTimeout: 30 * time.Second,
	}
}

// Gateway routes tier operations to their configured backends and adds
// checksum-based idempotency, per-call timeouts, and transient-error
// retries on top of them.
type Gateway struct {
	backends map[tier.Tier]Backend
	cfg      Config
	log      *slog.Logger
}

// New creates a gateway over the given tier→backend wiring.
func New(backends map[tier.Tier]Backend, cfg Config) *Gateway {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultConfig().CallTimeout
	}
	return &Gateway{
		backends: backends,
		cfg:      cfg,
		log:      logging.Component("gateway"),
	}
}

// Checksum returns the hex SHA-256 of data; the content identity used
// for idempotency and verification everywhere in the pipeline.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (g *Gateway) backend(t tier.Tier) (Backend, error) {
	b, ok := g.backends[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", fault.ErrTierNotBacked, t)
	}
	return b, nil
}

// Preflight verifies every configured backend is reachable and creates
// missing buckets/directories. Runs before any phase; a failure here is
// a configuration problem, not a pipeline failure.
func (g *Gateway) Preflight(ctx context.Context) error {
	for t, b := range g.backends {
		err := g.withRetry(ctx, "ensure", func(ctx context.Context) error {
			return b.Ensure(ctx, t)
		})
		if err != nil {
			return fmt.Errorf("%w: backend %s for tier %s: %v",
				fault.ErrInvalidConfig, b.Name(), t, err)
		}
	}
	return nil
}

// Put writes an artifact. If the tier already holds name with an
// identical checksum, the write is a no-op and the existing artifact is
// returned with reused=true; a different checksum atomically supersedes
// the old object.
func (g *Gateway) Put(ctx context.Context, t tier.Tier, name string, data []byte, format Format) (Artifact, bool, error) {
	b, err := g.backend(t)
	if err != nil {
		return Artifact{}, false, err
	}

	checksum := Checksum(data)
	art := Artifact{
		Name:     name,
		Tier:     t,
		Format:   format,
		Size:     int64(len(data)),
		Checksum: checksum,
	}

	var existing ObjectInfo
	statErr := g.withRetry(ctx, "stat", func(ctx context.Context) error {
		var err error
		existing, err = b.Stat(ctx, t, name)
		return err
	})
	switch {
	case statErr == nil && existing.Checksum == checksum:
		g.log.Debug("put is a no-op", "tier", t.String(), "name", name, "checksum", checksum)
		art.WrittenAt = existing.ModTime
		return art, true, nil
	case statErr != nil && !fault.Is(statErr, fault.ErrNotFound):
		return Artifact{}, false, fmt.Errorf("stat %s/%s: %w", t, name, statErr)
	}

	err = g.withRetry(ctx, "write", func(ctx context.Context) error {
		return b.Write(ctx, t, name, data, checksum)
	})
	if err != nil {
		return Artifact{}, false, fmt.Errorf("put %s/%s: %w", t, name, err)
	}

	art.WrittenAt = time.Now().UTC()
	g.log.Info("artifact written",
		"tier", t.String(), "name", name, "bytes", art.Size, "checksum", checksum)
	return art, false, nil
}

// Get reads an artifact's bytes.
func (g *Gateway) Get(ctx context.Context, t tier.Tier, name string) ([]byte, error) {
	b, err := g.backend(t)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = g.withRetry(ctx, "read", func(ctx context.Context) error {
		var err error
		data, err = b.Read(ctx, t, name)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", t, name, err)
	}
	return data, nil
}

// List returns metadata for every artifact in a tier.
func (g *Gateway) List(ctx context.Context, t tier.Tier) ([]Artifact, error) {
	b, err := g.backend(t)
	if err != nil {
		return nil, err
	}

	var infos []ObjectInfo
	err = g.withRetry(ctx, "list", func(ctx context.Context) error {
		var err error
		infos, err = b.List(ctx, t)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t, err)
	}

	arts := make([]Artifact, len(infos))
	for i, info := range infos {
		arts[i] = Artifact{
			Name:      info.Name,
			Tier:      t,
			Format:    FormatForName(info.Name),
			Size:      info.Size,
			Checksum:  info.Checksum,
			WrittenAt: info.ModTime,
		}
	}
	return arts, nil
}

// Stat returns metadata for one artifact.
func (g *Gateway) Stat(ctx context.Context, t tier.Tier, name string) (Artifact, error) {
	b, err := g.backend(t)
	if err != nil {
		return Artifact{}, err
	}

	var info ObjectInfo
	err = g.withRetry(ctx, "stat", func(ctx context.Context) error {
		var err error
		info, err = b.Stat(ctx, t, name)
		return err
	})
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{
		Name:      info.Name,
		Tier:      t,
		Format:    FormatForName(info.Name),
		Size:      info.Size,
		Checksum:  info.Checksum,
		WrittenAt: info.ModTime,
	}, nil
}

// Exists reports whether the tier holds an artifact with the given name.
func (g *Gateway) Exists(ctx context.Context, t tier.Tier, name string) (bool, error) {
	_, err := g.Stat(ctx, t, name)
	if err != nil {
		if fault.Is(err, fault.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
