package main

import (
	"context"

	"github.com/agentuity/go-cachew/config"
	"github.com/agentuity/go-cachew/crypto"
	"github.com/agentuity/go-cachew/keychain"
	"github.com/agentuity/go-cachew/logger"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// openKeychain builds the keychain named by the vault config. The returned
// func releases the backend.
func openKeychain(ctx context.Context, vc config.Vault, log logger.Logger) (keychain.Keychain, func(), error) {
	opts := []keychain.Option{keychain.WithLogger(log.WithPrefix("[keychain]"))}
	var (
		kc     keychain.Keychain
		closer = func() {}
	)
	switch vc.Backend {
	case "", "memory":
		kc = keychain.NewMemory()
	case "redis":
		ropts, err := redis.ParseURL(vc.RedisURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "parse vault.redis_url")
		}
		client := redis.NewClient(ropts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, errors.Wrap(err, "connect to redis")
		}
		kc = keychain.NewRedis(client, opts...)
		closer = func() { client.Close() }
	case "sqlite":
		db, err := keychain.NewSQLite(ctx, vc.SQLitePath, opts...)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "open %s", vc.SQLitePath)
		}
		kc = db
		closer = func() { db.Close() }
	default:
		return nil, nil, errors.Newf("unknown vault backend %q", vc.Backend)
	}
	if vc.Key == "" {
		return kc, closer, nil
	}
	key, err := crypto.ParseKey(vc.Key)
	if err != nil {
		closer()
		return nil, nil, errors.Wrap(err, "vault.key")
	}
	sealer, err := crypto.NewSealer(key)
	if err != nil {
		closer()
		return nil, nil, errors.Wrap(err, "vault.key")
	}
	return keychain.NewEncrypted(kc, sealer), closer, nil
}
