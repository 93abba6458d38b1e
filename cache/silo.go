package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/agentuity/go-cachew/logger"
	"github.com/cockroachdb/errors"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"go.opentelemetry.io/otel/attribute"
)

const tempPrefix = ".silo-"

// Silo is a durable tier that stores one file per key under its own
// directory. Files are named by the key hash; two keys whose hashes collide
// overwrite each other. A Silo must not share its directory with another
// Silo instance.
type Silo[K comparable, V any] struct {
	name   string
	fs     billy.Filesystem
	codec  Codec[V]
	hasher KeyHasher
	logger logger.Logger

	mutex sync.RWMutex
}

// NewSilo returns a Silo storing values in the directory name under the
// resolved root: WithRoot, else the user cache directory joined with
// "cachew", else the temp directory joined with "cachew". A nil codec
// selects msgpack. The directory is created here on a best-effort basis;
// a failure is logged and surfaces again on the first write.
func NewSilo[K comparable, V any](name string, codec Codec[V], opts ...Option) *Silo[K, V] {
	cfg := applyOptions(opts)
	if name == "" {
		name = "default"
	}
	if codec == nil {
		codec = MsgpackCodec[V]{}
	}
	fs := cfg.fs
	if fs == nil {
		fs = osfs.New(resolveRoot(cfg.root))
	}
	s := &Silo[K, V]{
		name:   filepath.Base(filepath.Clean(name)),
		fs:     fs,
		codec:  codec,
		hasher: cfg.hasher,
		logger: cfg.logger.WithPrefix("[silo]"),
	}
	if err := s.fs.MkdirAll(s.name, 0o755); err != nil {
		s.logger.Warn("unable to create directory %s: %s", s.Dir(), err)
	}
	return s
}

func resolveRoot(root string) string {
	if root != "" {
		return root
	}
	if dir, err := os.UserCacheDir(); err == nil && dir != "" {
		return filepath.Join(dir, "cachew")
	}
	return filepath.Join(os.TempDir(), "cachew")
}

// Name returns the directory name of the Silo.
func (s *Silo[K, V]) Name() string {
	return s.name
}

// Dir returns the directory entries are stored in.
func (s *Silo[K, V]) Dir() string {
	return filepath.Join(s.fs.Root(), s.name)
}

// Path returns the file a key is stored in.
func (s *Silo[K, V]) Path(key K) (string, error) {
	rel, err := s.file(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.fs.Root(), rel), nil
}

func (s *Silo[K, V]) file(key K) (string, error) {
	name, err := s.hasher(key)
	if err != nil {
		return "", err
	}
	return s.fs.Join(s.name, name), nil
}

func (s *Silo[K, V]) attrs() attribute.KeyValue {
	return attribute.String("cachew.silo", s.name)
}

// Set encodes value and atomically replaces the file for key.
func (s *Silo[K, V]) Set(ctx context.Context, key K, value V) (err error) {
	_, span := startSpan(ctx, "silo.Set", s.attrs())
	defer func() { endSpan(span, err) }()

	path, err := s.file(key)
	if err != nil {
		return err
	}
	data, err := s.codec.Encode(value)
	if err != nil {
		return encodeError(err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err := s.fs.MkdirAll(s.name, 0o755); err != nil {
		return errors.Wrapf(err, "cache: create %s", s.Dir())
	}
	tmp, err := util.TempFile(s.fs, s.name, tempPrefix)
	if err != nil {
		return errors.Wrapf(err, "cache: create temp file in %s", s.Dir())
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return errors.Wrapf(err, "cache: write %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return errors.Wrapf(err, "cache: close %s", tmpName)
	}
	if err := s.fs.Rename(tmpName, path); err != nil {
		s.fs.Remove(tmpName)
		return errors.Wrapf(err, "cache: rename %s", tmpName)
	}
	return nil
}

// Get returns the value stored for key. A missing file is a miss; bytes that
// do not decode return ErrDecodeFailed.
func (s *Silo[K, V]) Get(ctx context.Context, key K) (_ V, _ bool, err error) {
	_, span := startSpan(ctx, "silo.Get", s.attrs())
	defer func() { endSpan(span, err) }()

	var zero V
	path, err := s.file(key)
	if err != nil {
		return zero, false, err
	}
	s.mutex.RLock()
	data, err := util.ReadFile(s.fs, path)
	s.mutex.RUnlock()
	if errors.Is(err, os.ErrNotExist) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, errors.Wrapf(err, "cache: read %s", path)
	}
	v, err := s.codec.Decode(data)
	if err != nil {
		return zero, false, decodeError(err)
	}
	return v, true, nil
}

// Remove deletes the file for key. Removing a missing key succeeds.
func (s *Silo[K, V]) Remove(ctx context.Context, key K) (err error) {
	_, span := startSpan(ctx, "silo.Remove", s.attrs())
	defer func() { endSpan(span, err) }()

	path, err := s.file(key)
	if err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err := s.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "cache: remove %s", path)
	}
	return nil
}

// Size returns the total size in bytes of the files under the Silo
// directory, recursively. In-flight temp files are not counted.
func (s *Silo[K, V]) Size(ctx context.Context) (total int64, err error) {
	_, span := startSpan(ctx, "silo.Size", s.attrs())
	defer func() { endSpan(span, err) }()

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	err = util.Walk(s.fs, s.name, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() && !strings.HasPrefix(info.Name(), ".") {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, withCause(ErrDirectoryUnavailable, err, "enumerate %s: %s", s.Dir(), err)
	}
	return total, nil
}

// Purge removes every entry and recreates the empty directory.
func (s *Silo[K, V]) Purge(ctx context.Context) (err error) {
	_, span := startSpan(ctx, "silo.Purge", s.attrs())
	defer func() { endSpan(span, err) }()

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err := util.RemoveAll(s.fs, s.name); err != nil {
		return errors.Wrapf(err, "cache: purge %s", s.Dir())
	}
	if err := s.fs.MkdirAll(s.name, 0o755); err != nil {
		return errors.Wrapf(err, "cache: create %s", s.Dir())
	}
	return nil
}
