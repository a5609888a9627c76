// Package dfs implements the gateway backend for the distributed
// filesystem (HDFS) mirroring the cleaned tier.
//
// Layout: one directory per tier under the configured root, artifact
// names may carry a dataset-kind subdirectory (weather/, traffic/,
// merged/). Atomic replace is write-to-temp-then-rename; checksums live
// in ".sha256" sidecar files because HDFS block checksums are not
// content hashes a client can compare against.
package dfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/colinmarc/hdfs/v2"

	"github.com/lmoraga/lakeflow/internal/fault"
	"github.com/lmoraga/lakeflow/internal/gateway"
	"github.com/lmoraga/lakeflow/internal/tier"
)

const (
	sidecarSuffix = ".sha256"
	tempSuffix    = ".tmp"
)

// Config connects a Backend to one HDFS deployment.
type Config struct {
	// Namenode is the namenode address, host:port.
	Namenode string

	// User is the HDFS user for all operations.
	User string

	// Root is the directory holding the mirrored tiers, e.g. /bigdata.
	Root string
}

// Backend is a distributed-filesystem gateway backend.
type Backend struct {
	client *hdfs.Client
	root   string
}

// New creates a DFS backend. The namenode address is required; its
// absence is a startup configuration error.
func New(cfg Config) (*Backend, error) {
	if cfg.Namenode == "" {
		return nil, fmt.Errorf("%w: dfs namenode", fault.ErrMissingEndpoint)
	}
	if cfg.Root == "" {
		cfg.Root = "/bigdata"
	}

	client, err := hdfs.NewClient(hdfs.ClientOptions{
		Addresses: []string{cfg.Namenode},
		User:      cfg.User,
	})
	if err != nil {
		return nil, fault.Transientf("connect to namenode %s: %v", cfg.Namenode, err)
	}

	return &Backend{client: client, root: cfg.Root}, nil
}

// Name identifies the backend in logs and errors.
func (b *Backend) Name() string { return "dfs" }

func (b *Backend) tierDir(t tier.Tier) string {
	return path.Join(b.root, t.String())
}

func (b *Backend) objectPath(t tier.Tier, name string) string {
	return path.Join(b.tierDir(t), name)
}

// Ensure creates the tier directory if absent.
func (b *Backend) Ensure(_ context.Context, t tier.Tier) error {
	if err := b.client.MkdirAll(b.tierDir(t), 0o755); err != nil {
		return classify(err)
	}
	return nil
}

// Write stores an object via write-new-then-rename. The rename is the
// commit point; readers see either the old object or the new one.
func (b *Backend) Write(_ context.Context, t tier.Tier, name string, data []byte, checksum string) error {
	dst := b.objectPath(t, name)
	tmp := dst + tempSuffix

	if err := b.client.MkdirAll(path.Dir(dst), 0o755); err != nil {
		return classify(err)
	}

	// Leftover temp file from an interrupted run.
	_ = b.client.Remove(tmp)

	w, err := b.client.Create(tmp)
	if err != nil {
		return classify(err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		_ = b.client.Remove(tmp)
		return classify(err)
	}
	if err := w.Close(); err != nil {
		_ = b.client.Remove(tmp)
		return classify(err)
	}

	// HDFS rename does not overwrite; drop the superseded object first.
	if _, err := b.client.Stat(dst); err == nil {
		if err := b.client.Remove(dst); err != nil {
			return classify(err)
		}
	}
	if err := b.client.Rename(tmp, dst); err != nil {
		return classify(err)
	}

	return b.writeSidecar(dst, checksum)
}

func (b *Backend) writeSidecar(dst, checksum string) error {
	side := dst + sidecarSuffix
	_ = b.client.Remove(side)
	w, err := b.client.Create(side)
	if err != nil {
		return classify(err)
	}
	if _, err := w.Write([]byte(checksum)); err != nil {
		w.Close()
		return classify(err)
	}
	return classify(w.Close())
}

// Read returns an object's bytes.
func (b *Backend) Read(_ context.Context, t tier.Tier, name string) ([]byte, error) {
	f, err := b.client.Open(b.objectPath(t, name))
	if err != nil {
		return nil, classify(err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, classify(err)
	}
	return data, nil
}

// Stat returns an object's size and sidecar checksum.
func (b *Backend) Stat(_ context.Context, t tier.Tier, name string) (gateway.ObjectInfo, error) {
	dst := b.objectPath(t, name)

	info, err := b.client.Stat(dst)
	if err != nil {
		return gateway.ObjectInfo{}, classify(err)
	}

	checksum := ""
	if side, err := b.client.ReadFile(dst + sidecarSuffix); err == nil {
		checksum = strings.TrimSpace(string(side))
	}

	return gateway.ObjectInfo{
		Name:     name,
		Size:     info.Size(),
		Checksum: checksum,
		ModTime:  info.ModTime(),
	}, nil
}

// List walks the tier directory one kind-subdirectory deep, skipping
// sidecars and temp files.
func (b *Backend) List(ctx context.Context, t tier.Tier) ([]gateway.ObjectInfo, error) {
	var infos []gateway.ObjectInfo

	var walk func(dir, prefix string) error
	walk = func(dir, prefix string) error {
		entries, err := b.client.ReadDir(dir)
		if err != nil {
			return classify(err)
		}
		for _, entry := range entries {
			name := prefix + entry.Name()
			if entry.IsDir() {
				if err := walk(path.Join(dir, entry.Name()), name+"/"); err != nil {
					return err
				}
				continue
			}
			if strings.HasSuffix(name, sidecarSuffix) || strings.HasSuffix(name, tempSuffix) {
				continue
			}
			info, err := b.Stat(ctx, t, name)
			if err != nil {
				return err
			}
			infos = append(infos, info)
		}
		return nil
	}

	if err := walk(b.tierDir(t), ""); err != nil {
		return nil, err
	}
	return infos, nil
}

// classify maps HDFS errors onto the fault taxonomy. The client
// surfaces missing paths as os.ErrNotExist; anything else from the
// namenode/datanode RPC layer is treated as a connection problem.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if os.IsNotExist(err) || fault.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %v", fault.ErrNotFound, err)
	}
	if os.IsPermission(err) {
		return err
	}
	if fault.IsTransient(err) {
		return err
	}
	return fault.Transient(err)
}
