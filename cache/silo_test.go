package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/agentuity/go-cachew/logger"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemSilo[K comparable, V any](t *testing.T, name string) (*Silo[K, V], billy.Filesystem) {
	t.Helper()
	fs := memfs.New()
	return NewSilo[K, V](name, nil, WithFilesystem(fs), WithLogger(logger.NewTestLogger())), fs
}

func TestSiloRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newMemSilo[string, profile](t, "profiles")
	in := profile{Name: "Ada", Age: 36}

	require.NoError(t, s.Set(ctx, "ada", in))
	out, ok, err := s.Get(ctx, "ada")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, in, out)

	in.Age = 37
	require.NoError(t, s.Set(ctx, "ada", in))
	out, ok, err = s.Get(ctx, "ada")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 37, out.Age)
}

func TestSiloMissAndIdempotentRemove(t *testing.T) {
	ctx := context.Background()
	s, _ := newMemSilo[int, string](t, "ints")

	v, ok, err := s.Get(ctx, 99)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "", v)

	assert.NoError(t, s.Remove(ctx, 99))
	require.NoError(t, s.Set(ctx, 99, "x"))
	assert.NoError(t, s.Remove(ctx, 99))
	assert.NoError(t, s.Remove(ctx, 99))
	_, ok, err = s.Get(ctx, 99)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestSiloFileLayout(t *testing.T) {
	ctx := context.Background()
	s, fs := newMemSilo[string, string](t, "layout")
	require.NoError(t, s.Set(ctx, "k", "v"))

	hash, err := HashKey("k")
	require.NoError(t, err)
	entries, err := fs.ReadDir("layout")
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files are renamed away")
	assert.Equal(t, hash, entries[0].Name())

	path, err := s.Path("k")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fs.Root(), "layout", hash), path)
	assert.Equal(t, filepath.Join(fs.Root(), "layout"), s.Dir())
}

func TestSiloDecodeFailureIsNotAMiss(t *testing.T) {
	ctx := context.Background()
	s, fs := newMemSilo[string, profile](t, "corrupt")
	hash, err := HashKey("bad")
	require.NoError(t, err)
	require.NoError(t, util.WriteFile(fs, fs.Join("corrupt", hash), []byte{0xc1, 0xc1}, 0o644))

	_, ok, err := s.Get(ctx, "bad")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrDecodeFailed)
}

func TestSiloEncodeFailure(t *testing.T) {
	ctx := context.Background()
	s, _ := newMemSilo[string, chan int](t, "chans")
	err := s.Set(ctx, "c", make(chan int))
	assert.ErrorIs(t, err, ErrEncodeFailed)
}

func TestSiloSize(t *testing.T) {
	ctx := context.Background()
	fs := memfs.New()
	s := NewSilo[string, []byte](
		"sized",
		rawCodec{},
		WithFilesystem(fs),
		WithLogger(logger.NewTestLogger()),
	)
	size, err := s.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)

	require.NoError(t, s.Set(ctx, "a", make([]byte, 100)))
	require.NoError(t, s.Set(ctx, "b", make([]byte, 28)))
	require.NoError(t, util.WriteFile(fs, "sized/nested/extra", make([]byte, 2), 0o644))
	require.NoError(t, util.WriteFile(fs, "sized/.silo-pending", make([]byte, 1000), 0o644))

	size, err = s.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(130), size)

	require.NoError(t, s.Purge(ctx))
	size, err = s.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)
}

func TestSiloSizeDirectoryUnavailable(t *testing.T) {
	ctx := context.Background()
	s, fs := newMemSilo[string, string](t, "gone")
	require.NoError(t, util.RemoveAll(fs, "gone"))

	_, err := s.Size(ctx)
	assert.ErrorIs(t, err, ErrDirectoryUnavailable)

	require.NoError(t, s.Set(ctx, "k", "v"), "a write recreates the directory")
	_, err = s.Size(ctx)
	assert.NoError(t, err)
}

func TestSiloCustomHasher(t *testing.T) {
	ctx := context.Background()
	fs := memfs.New()
	s := NewSilo[string, string]("plain", nil,
		WithFilesystem(fs),
		WithLogger(logger.NewTestLogger()),
		WithKeyHasher(func(key any) (string, error) { return "fixed", nil }),
	)
	require.NoError(t, s.Set(ctx, "a", "1"))
	require.NoError(t, s.Set(ctx, "b", "2"))

	// colliding hashes overwrite each other
	v, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2", v)
	_, err = fs.Stat("plain/fixed")
	assert.NoError(t, err)
}

func TestSiloOnDisk(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := NewSilo[string, string]("disk", JSONCodec[string]{}, WithRoot(root), WithLogger(logger.NewTestLogger()))
	assert.Equal(t, filepath.Join(root, "disk"), s.Dir())

	require.NoError(t, s.Set(ctx, "k", "value"))
	path, err := s.Path("k")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `"value"`, string(data))

	other := NewSilo[string, string]("disk", JSONCodec[string]{}, WithRoot(root), WithLogger(logger.NewTestLogger()))
	v, ok, err := other.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "value", v)

	size, err := s.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(`"value"`)), size)
}

func TestResolveRoot(t *testing.T) {
	assert.Equal(t, "/explicit", resolveRoot("/explicit"))
	assert.Equal(t, "cachew", filepath.Base(resolveRoot("")))
}

type rawCodec struct{}

func (rawCodec) Encode(v []byte) ([]byte, error) { return v, nil }
func (rawCodec) Decode(b []byte) ([]byte, error) { return b, nil }
