// Package rediskv implements kvstore.Store on Redis. Values live in a hash
// per namespace; keys are mirrored into a zset (all scores zero) so
// ZRANGEBYLEX yields the ascending byte-order scan the store contract
// requires.
package rediskv

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/larry-a4/bidmore/pkg/kvstore"
)

// Store implements kvstore.Store using Redis.
//
// Conditional read-modify-write is serialized with an in-process lock per
// namespace/key pair. That assumes a single writer process against the
// Redis instance, which matches the service's execution model: every
// state-mutating operation runs through one service instance at a time.
type Store struct {
	client *redis.Client
	prefix string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var _ kvstore.Store = (*Store)(nil)

// NewStore creates a Redis-backed store. All Redis keys are prefixed to
// isolate the service's data from anything else on the instance.
func NewStore(client *redis.Client, prefix string) *Store {
	return &Store{
		client: client,
		prefix: prefix,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (s *Store) valuesKey(namespace string) string {
	return fmt.Sprintf("%s:%s:values", s.prefix, namespace)
}

func (s *Store) orderKey(namespace string) string {
	return fmt.Sprintf("%s:%s:keys", s.prefix, namespace)
}

// keyLock returns the mutex serializing operations on one namespace/key pair.
func (s *Store) keyLock(namespace string, key []byte) *sync.Mutex {
	name := namespace + "\x00" + string(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[name] = lock
	}
	return lock
}

// Get returns the value at key, or kvstore.ErrNotFound.
func (s *Store) Get(ctx context.Context, namespace string, key []byte) ([]byte, error) {
	value, err := s.client.HGet(ctx, s.valuesKey(namespace), string(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, kvstore.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return value, nil
}

// Create installs produce()'s result if the key is absent.
func (s *Store) Create(ctx context.Context, namespace string, key []byte, produce kvstore.ProduceFunc) error {
	lock := s.keyLock(namespace, key)
	lock.Lock()
	defer lock.Unlock()

	value, err := produce()
	if err != nil {
		return err
	}

	set, err := s.client.HSetNX(ctx, s.valuesKey(namespace), string(key), value).Result()
	if err != nil {
		return fmt.Errorf("failed to create record: %w", err)
	}
	if !set {
		return kvstore.ErrExists
	}

	if err := s.client.ZAdd(ctx, s.orderKey(namespace), redis.Z{Score: 0, Member: string(key)}).Err(); err != nil {
		return fmt.Errorf("failed to index key: %w", err)
	}
	return nil
}

// Update replaces the record at key with transform(existing) if present.
func (s *Store) Update(ctx context.Context, namespace string, key []byte, transform kvstore.TransformFunc) error {
	lock := s.keyLock(namespace, key)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.client.HGet(ctx, s.valuesKey(namespace), string(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return kvstore.ErrNotFound
		}
		return fmt.Errorf("failed to read record: %w", err)
	}

	next, err := transform(existing)
	if err != nil {
		return err
	}

	if err := s.client.HSet(ctx, s.valuesKey(namespace), string(key), next).Err(); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// Keys returns up to limit keys in ascending byte order, strictly after
// startAfter when non-nil. With all zset scores equal, ZRANGEBYLEX orders
// members bytewise.
func (s *Store) Keys(ctx context.Context, namespace string, startAfter []byte, limit int) ([][]byte, error) {
	min := "-"
	if startAfter != nil {
		min = "(" + string(startAfter)
	}

	members, err := s.client.ZRangeByLex(ctx, s.orderKey(namespace), &redis.ZRangeBy{
		Min:    min,
		Max:    "+",
		Offset: 0,
		Count:  int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to scan keys: %w", err)
	}

	keys := make([][]byte, len(members))
	for i, m := range members {
		keys[i] = []byte(m)
	}
	return keys, nil
}
