package registry

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/redis/go-redis/v9"

	"vpntrack-server-go/internal/platform/config"
	platformerrors "vpntrack-server-go/internal/platform/errors"
)

// Store key layout:
//
//	user:id          counter minting application ids
//	user:<user_id>   set of application keys owned by the user
//	app:<app_id>     hash with fields token, id, address
const (
	counterKey   = "user:id"
	fieldToken   = "token"
	fieldOwner   = "id"
	fieldAddress = "address"
)

// Counter seed range used when the key does not exist yet.
const (
	counterSeedMin = 1000
	counterSeedMax = 10000
)

func UserKey(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

func AppKey(appID uint64) string {
	return fmt.Sprintf("app:%d", appID)
}

// Store is a thin adapter over the Redis connection. It is constructed
// once at bootstrap and handed to the worker, which is its only user.
type Store struct {
	client *redis.Client
}

// NewStore connects to Redis and verifies the connection with a ping.
// An unreachable store is fatal to startup.
func NewStore(cfg *config.RedisConfig) (*Store, error) {
	if cfg == nil || cfg.Addr == "" {
		return nil, platformerrors.New(
			platformerrors.KindConfig, "store", "redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, platformerrors.Wrap(
			platformerrors.KindStore, "store", "redis ping failed", err)
	}

	return &Store{client: client}, nil
}

// EnsureCounter seeds the application-id counter on first startup. The
// seed is random so freshly provisioned deployments do not all start
// handing out the same ids.
func (s *Store) EnsureCounter(ctx context.Context) error {
	n, err := s.client.Exists(ctx, counterKey).Result()
	if err != nil {
		return platformerrors.Wrap(
			platformerrors.KindStore, "ensure_counter", "exists check failed", err)
	}
	if n > 0 {
		return nil
	}

	seed := counterSeedMin + rand.IntN(counterSeedMax-counterSeedMin)
	if err := s.client.Set(ctx, counterKey, seed, 0).Err(); err != nil {
		return platformerrors.Wrap(
			platformerrors.KindStore, "ensure_counter", "seed write failed", err)
	}
	return nil
}

// NextAppID reads the counter value that will identify the next
// registered application. The increment happens inside RegisterApp.
func (s *Store) NextAppID(ctx context.Context) (uint64, error) {
	id, err := s.client.Get(ctx, counterKey).Uint64()
	if err != nil {
		return 0, platformerrors.Wrap(
			platformerrors.KindStore, "next_app_id", "counter read failed", err)
	}
	return id, nil
}

// Exists reports whether the given application key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, platformerrors.Wrap(
			platformerrors.KindStore, "exists", key, err)
	}
	return n > 0, nil
}

// Token reads the stored credential of an application. A missing key or
// field is not an error; ok is false.
func (s *Store) Token(ctx context.Context, appKey string) (string, bool, error) {
	token, err := s.client.HGet(ctx, appKey, fieldToken).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, platformerrors.Wrap(
			platformerrors.KindStore, "token", appKey, err)
	}
	return token, true, nil
}

// Address reads the last reported address of an application, absent
// until the first successful report.
func (s *Store) Address(ctx context.Context, appKey string) (string, bool, error) {
	addr, err := s.client.HGet(ctx, appKey, fieldAddress).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, platformerrors.Wrap(
			platformerrors.KindStore, "address", appKey, err)
	}
	return addr, true, nil
}

// SetAddress records a successfully validated report.
func (s *Store) SetAddress(ctx context.Context, appKey, addr string) error {
	if err := s.client.HSet(ctx, appKey, fieldAddress, addr).Err(); err != nil {
		return platformerrors.Wrap(
			platformerrors.KindStore, "set_address", appKey, err)
	}
	return nil
}

// Applications lists the application keys registered for a user, in the
// order the store returns them. Callers consult only the first.
func (s *Store) Applications(ctx context.Context, userKey string) ([]string, error) {
	members, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return nil, platformerrors.Wrap(
			platformerrors.KindStore, "applications", userKey, err)
	}
	return members, nil
}

// RegisterApp commits a new application as one atomic MULTI/EXEC unit:
// token, owning user, counter increment and set membership become
// visible together or not at all.
func (s *Store) RegisterApp(
	ctx context.Context,
	appKey, userKey, token string,
	userID int64,
) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, appKey, fieldToken, token)
		pipe.HSet(ctx, appKey, fieldOwner, userID)
		pipe.Incr(ctx, counterKey)
		pipe.SAdd(ctx, userKey, appKey)
		return nil
	})
	if err != nil {
		return platformerrors.Wrap(
			platformerrors.KindStore, "register_app", appKey, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
