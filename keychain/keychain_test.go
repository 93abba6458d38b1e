package keychain

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/agentuity/go-cachew/crypto"
	"github.com/agentuity/go-cachew/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func newTestSealer(t *testing.T) *crypto.Sealer {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	s, err := crypto.NewSealer(key)
	require.NoError(t, err)
	return s
}

func backends(t *testing.T) map[string]Keychain {
	t.Helper()
	_, client := newTestRedis(t)
	sq, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "keychain.db"), WithLogger(logger.NewTestLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })
	return map[string]Keychain{
		"memory":    NewMemory(),
		"redis":     NewRedis(client, WithLogger(logger.NewTestLogger())),
		"sqlite":    sq,
		"encrypted": NewEncrypted(NewMemory(), newTestSealer(t)),
	}
}

func TestKeychainContract(t *testing.T) {
	ctx := context.Background()
	for name, kc := range backends(t) {
		t.Run(name, func(t *testing.T) {
			q := Query{Service: "cachew", Account: "testUser1"}

			_, status := kc.Find(ctx, q)
			assert.Equal(t, StatusItemNotFound, status)
			assert.Equal(t, StatusItemNotFound, kc.Delete(ctx, q))

			add := q
			add.Data = []byte("MySuperSecretToken")
			assert.Equal(t, StatusSuccess, kc.Add(ctx, add))
			assert.Equal(t, StatusDuplicateItem, kc.Add(ctx, add))

			data, status := kc.Find(ctx, q)
			assert.Equal(t, StatusSuccess, status)
			assert.Equal(t, []byte("MySuperSecretToken"), data)

			other := Query{Service: "other", Account: "testUser1"}
			_, status = kc.Find(ctx, other)
			assert.Equal(t, StatusItemNotFound, status, "service namespaces records")

			assert.Equal(t, StatusSuccess, kc.Delete(ctx, q))
			_, status = kc.Find(ctx, q)
			assert.Equal(t, StatusItemNotFound, status)
		})
	}
}

func TestKeychainRejectsEmptyAccount(t *testing.T) {
	ctx := context.Background()
	for name, kc := range backends(t) {
		t.Run(name, func(t *testing.T) {
			q := Query{Service: "cachew", Data: []byte("x")}
			assert.Equal(t, StatusInvalidQuery, kc.Add(ctx, q))
			_, status := kc.Find(ctx, q)
			assert.Equal(t, StatusInvalidQuery, status)
			assert.Equal(t, StatusInvalidQuery, kc.Delete(ctx, q))
		})
	}
}

func TestMemoryKeychainCopiesData(t *testing.T) {
	ctx := context.Background()
	kc := NewMemory()
	data := []byte("abc")
	require.Equal(t, StatusSuccess, kc.Add(ctx, Query{Account: "a", Data: data}))
	data[0] = 'z'
	got, status := kc.Find(ctx, Query{Account: "a"})
	require.Equal(t, StatusSuccess, status)
	assert.Equal(t, []byte("abc"), got)
	got[0] = 'q'
	again, _ := kc.Find(ctx, Query{Account: "a"})
	assert.Equal(t, []byte("abc"), again)
}

func TestMemoryKeychainConcurrent(t *testing.T) {
	ctx := context.Background()
	kc := NewMemory()
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if kc.Add(ctx, Query{Account: "race", Data: []byte("v")}) == StatusSuccess {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
}

func TestRedisKeychainPrefix(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	kc := NewRedis(client, WithPrefix("vault"), WithLogger(logger.NewTestLogger()))
	require.Equal(t, StatusSuccess, kc.Add(ctx, Query{Service: "svc", Account: "acct", Data: []byte("v")}))
	assert.True(t, mr.Exists("vault:svc:acct"))
	val, err := mr.Get("vault:svc:acct")
	require.NoError(t, err)
	assert.Equal(t, "v", val)
}

func TestRedisKeychainUnavailable(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	log := logger.NewTestLogger()
	kc := NewRedis(client, WithLogger(log))
	mr.Close()

	q := Query{Service: "svc", Account: "acct", Data: []byte("v")}
	assert.Equal(t, StatusUnavailable, kc.Add(ctx, q))
	_, status := kc.Find(ctx, q)
	assert.Equal(t, StatusUnavailable, status)
	assert.Equal(t, StatusUnavailable, kc.Delete(ctx, q))
	assert.Len(t, log.Find("ERROR", "keychain redis"), 3)
}

func TestSQLiteKeychainPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "persist.db")

	kc, err := NewSQLite(ctx, path)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, kc.Add(ctx, Query{Service: "s", Account: "a", Data: []byte("kept")}))
	require.NoError(t, kc.Close())
	assert.NoError(t, kc.Close())

	reopened, err := NewSQLite(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()
	data, status := reopened.Find(ctx, Query{Service: "s", Account: "a"})
	assert.Equal(t, StatusSuccess, status)
	assert.Equal(t, []byte("kept"), data)
}

func TestSQLiteKeychainInMemory(t *testing.T) {
	ctx := context.Background()
	kc, err := NewSQLite(ctx, "")
	require.NoError(t, err)
	defer kc.Close()
	assert.Equal(t, StatusSuccess, kc.Add(ctx, Query{Account: "a", Data: []byte{}}))
	_, status := kc.Find(ctx, Query{Account: "a"})
	assert.Equal(t, StatusSuccess, status)
}

func TestEncryptedKeychainSealsPayload(t *testing.T) {
	ctx := context.Background()
	inner := NewMemory()
	kc := NewEncrypted(inner, newTestSealer(t))
	q := Query{Service: "cachew", Account: "token", Data: []byte("plaintext-secret")}
	require.Equal(t, StatusSuccess, kc.Add(ctx, q))

	raw, status := inner.Find(ctx, Query{Service: "cachew", Account: "token"})
	require.Equal(t, StatusSuccess, status)
	assert.False(t, bytes.Contains(raw, []byte("plaintext-secret")))

	data, status := kc.Find(ctx, Query{Service: "cachew", Account: "token"})
	require.Equal(t, StatusSuccess, status)
	assert.Equal(t, []byte("plaintext-secret"), data)
}

func TestEncryptedKeychainAuthFailure(t *testing.T) {
	ctx := context.Background()
	inner := NewMemory()
	writer := NewEncrypted(inner, newTestSealer(t))
	reader := NewEncrypted(inner, newTestSealer(t))
	require.Equal(t, StatusSuccess, writer.Add(ctx, Query{Account: "a", Data: []byte("v")}))

	_, status := reader.Find(ctx, Query{Account: "a"})
	assert.Equal(t, StatusAuthFailed, status)

	// a sealed blob copied to another account does not open there
	raw, _ := inner.Find(ctx, Query{Account: "a"})
	require.Equal(t, StatusSuccess, inner.Add(ctx, Query{Account: "b", Data: raw}))
	_, status = writer.Find(ctx, Query{Account: "b"})
	assert.Equal(t, StatusAuthFailed, status)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "item not found", StatusItemNotFound.String())
	assert.Equal(t, "status(42)", Status(42).String())
}
