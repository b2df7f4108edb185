// Package redisstore keeps resources in Redis and implements expunge.Store.
//
// Every resource is stored under "<prefix>:<id>" with its version history
// under "<prefix>:<id>:history".
package redisstore

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	redisV9 "github.com/redis/go-redis/v9"

	"github.com/Andrej220/go-utils/partition/config"
	"github.com/Andrej220/go-utils/partition/expunge"
)

const (
	defaultKeyPrefix    = "fhir:resource"
	defaultPoolSize     = 10
	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 3 * time.Second
	defaultWriteTimeout = 3 * time.Second
	pingTimeout         = 5 * time.Second
)

type Store struct {
	client *redisV9.Client
	prefix string
}

var _ expunge.Store = (*Store)(nil)

// New connects to Redis and pings it.
func New(cfg config.Redis) (*Store, error) {
	setDefaultConfig(&cfg)

	client := redisV9.NewClient(&redisV9.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "redisstore: ping %s", cfg.Addr)
	}
	return NewWithClient(client, cfg.KeyPrefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redisV9.Client, prefix string) *Store {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func setDefaultConfig(cfg *config.Redis) {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaultPoolSize
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultKeyPrefix
	}
}

func (s *Store) Close() error { return s.client.Close() }

// ResourceKey returns the key holding the current version of id.
func (s *Store) ResourceKey(id int64) string {
	return s.prefix + ":" + strconv.FormatInt(id, 10)
}

// HistoryKey returns the key holding the version history of id.
func (s *Store) HistoryKey(id int64) string {
	return s.ResourceKey(id) + ":history"
}

// Put stores a resource body, appending the previous body to its history.
func (s *Store) Put(ctx context.Context, id int64, body []byte) error {
	key := s.ResourceKey(id)
	_, err := s.client.TxPipelined(ctx, func(pipe redisV9.Pipeliner) error {
		pipe.Set(ctx, key, body, 0)
		pipe.RPush(ctx, s.HistoryKey(id), body)
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "redisstore: put %s", key)
	}
	return nil
}

// DeleteResources removes every resource of the batch and its history in
// one pipeline. The count covers resource keys only and includes the keys
// removed before a pipeline error.
func (s *Store) DeleteResources(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	cmds := make([]*redisV9.IntCmd, len(ids))
	_, err := s.client.Pipelined(ctx, func(pipe redisV9.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.Del(ctx, s.ResourceKey(id))
			pipe.Del(ctx, s.HistoryKey(id))
		}
		return nil
	})
	n := countDeleted(cmds)
	if err != nil {
		return n, classify(errors.Wrapf(err, "redisstore: delete %d resources", len(ids)))
	}
	return n, nil
}

// countDeleted sums the DEL replies that succeeded. A failed pipeline can
// still have removed some keys, and a retry will not see them again.
func countDeleted(cmds []*redisV9.IntCmd) int {
	n := 0
	for _, cmd := range cmds {
		if cmd != nil && cmd.Err() == nil {
			n += int(cmd.Val())
		}
	}
	return n
}

// classify marks network failures and the Redis replies that signal a
// temporary condition as transient so the expunger retries them.
func classify(err error) error {
	var rerr redisV9.Error
	if errors.As(err, &rerr) {
		for _, prefix := range transientReplies {
			if strings.HasPrefix(rerr.Error(), prefix) {
				return expunge.Transient(err)
			}
		}
		return err
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return expunge.Transient(err)
	}
	return err
}

var transientReplies = []string{"LOADING ", "BUSY ", "TRYAGAIN ", "CLUSTERDOWN "}

func (s *Store) String() string {
	return fmt.Sprintf("redisstore(%s)", s.prefix)
}
