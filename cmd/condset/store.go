package main

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/hupe1980/condset"
	"github.com/hupe1980/condset/snapstore"
	snapminio "github.com/hupe1980/condset/snapstore/minio"
	snaps3 "github.com/hupe1980/condset/snapstore/s3"
)

// location is a parsed snapshot address.
type location struct {
	scheme string // "", "s3" or "minio"
	bucket string
	dir    string
	name   string
}

// parseLocation accepts s3://bucket/key, minio://bucket/key or a file path.
func parseLocation(raw string) (location, error) {
	if !strings.Contains(raw, "://") {
		return location{dir: filepath.Dir(raw), name: filepath.Base(raw)}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return location{}, err
	}
	switch u.Scheme {
	case "s3", "minio":
	default:
		return location{}, fmt.Errorf("unsupported snapshot scheme %q", u.Scheme)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return location{}, fmt.Errorf("snapshot location %q needs a bucket and a key", raw)
	}
	dir, name := "", key
	if i := strings.LastIndexByte(key, '/'); i >= 0 {
		dir, name = key[:i], key[i+1:]
	}
	return location{scheme: u.Scheme, bucket: u.Host, dir: dir, name: name}, nil
}

func openStore(ctx context.Context, cfg StoreConfig, loc location) (snapstore.Store, error) {
	switch loc.scheme {
	case "s3":
		return snaps3.NewFromEnv(ctx, cfg.Region, cfg.Endpoint, loc.bucket, loc.dir)
	case "minio":
		client, err := snapminio.Dial(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, cfg.Secure)
		if err != nil {
			return nil, err
		}
		return snapminio.NewStore(client, loc.bucket, loc.dir), nil
	default:
		return snapstore.NewLocalStore(loc.dir), nil
	}
}

func writeSnapshot(ctx context.Context, cs *condset.ConditioningSet, cfg Config) (int64, error) {
	c, err := condset.ParseCompression(cfg.Output.Compression)
	if err != nil {
		return 0, err
	}
	loc, err := parseLocation(cfg.Output.Snapshot)
	if err != nil {
		return 0, err
	}
	store, err := openStore(ctx, cfg.Store, loc)
	if err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	n, err := cs.WriteSnapshot(&buf, c)
	if err != nil {
		return n, err
	}
	if err := store.Put(ctx, loc.name, buf.Bytes()); err != nil {
		return n, fmt.Errorf("snapshot %s: %w", cfg.Output.Snapshot, err)
	}
	return n, nil
}

func readSnapshot(ctx context.Context, cfg Config, variants condset.VariantMap, panel condset.Panel, opts ...condset.Option) (*condset.ConditioningSet, error) {
	loc, err := parseLocation(cfg.Index.Snapshot)
	if err != nil {
		return nil, err
	}
	store, err := openStore(ctx, cfg.Store, loc)
	if err != nil {
		return nil, err
	}
	data, err := store.Get(ctx, loc.name)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", cfg.Index.Snapshot, err)
	}
	return condset.Restore(variants, panel, bytes.NewReader(data), opts...)
}
