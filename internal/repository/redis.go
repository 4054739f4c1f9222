package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"

	"campus-locator/internal/models"
)

// RedisStore keeps each document as a JSON string with a set index per collection
// and announces changes on a pub/sub channel per collection.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a store; prefix namespaces every key
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "campus"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) docKey(collection, id string) string {
	return fmt.Sprintf("%s:doc:%s:%s", s.prefix, collection, id)
}

func (s *RedisStore) indexKey(collection string) string {
	return fmt.Sprintf("%s:index:%s", s.prefix, collection)
}

func (s *RedisStore) channel(collection string) string {
	return fmt.Sprintf("%s:changes:%s", s.prefix, collection)
}

func (s *RedisStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	raw, err := s.client.Get(ctx, s.docKey(collection, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	fields := Fields{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode %s/%s: %w", collection, id, err)
	}
	return &Document{ID: id, Fields: fields}, nil
}

func (s *RedisStore) Set(ctx context.Context, collection, id string, fields Fields, mergeFields bool) error {
	if mergeFields {
		existing, err := s.Get(ctx, collection, id)
		switch {
		case err == nil:
			fields = merge(existing.Fields, fields)
		case !errors.Is(err, models.ErrNotFound):
			return err
		}
	}
	return s.write(ctx, collection, id, fields)
}

func (s *RedisStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	existing, err := s.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	return s.write(ctx, collection, id, merge(existing.Fields, fields))
}

func (s *RedisStore) write(ctx context.Context, collection, id string, fields Fields) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.docKey(collection, id), raw, 0)
	pipe.SAdd(ctx, s.indexKey(collection), id)
	pipe.Publish(ctx, s.channel(collection), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, collection, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.docKey(collection, id))
	pipe.SRem(ctx, s.indexKey(collection), id)
	pipe.Publish(ctx, s.channel(collection), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *RedisStore) Query(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Strings(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.docKey(collection, id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", collection, err)
	}

	var docs []Document
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// index entry left behind by a concurrent delete
			continue
		}
		fields := Fields{}
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			log.Printf("❌ Skipping undecodable %s/%s: %v", collection, ids[i], err)
			continue
		}
		if matches(fields, filter) {
			docs = append(docs, Document{ID: ids[i], Fields: fields})
		}
	}
	return docs, nil
}

func (s *RedisStore) Subscribe(ctx context.Context, collection string, filter Filter, onChange func([]Document)) (func(), error) {
	pubsub := s.client.Subscribe(ctx, s.channel(collection))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", collection, err)
	}

	docs, err := s.Query(ctx, collection, filter)
	if err != nil {
		_ = pubsub.Close()
		return nil, err
	}
	onChange(docs)

	subCtx, cancel := context.WithCancel(ctx)
	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			cancel()
			_ = pubsub.Close()
		})
	}

	go func() {
		defer unsubscribe()
		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				docs, err := s.Query(subCtx, collection, filter)
				if err != nil {
					log.Printf("❌ Re-query of %s after change failed: %v", collection, err)
					continue
				}
				onChange(docs)
			}
		}
	}()

	return unsubscribe, nil
}
