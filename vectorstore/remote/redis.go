// Package remote implements the vector store on Redis. Records are JSON
// documents under namespace-prefixed keys; queries rank candidates client-side
// so the store works on stock Redis without a search module.
package remote

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Anas-2357/CodeSage/similarity"
	"github.com/Anas-2357/CodeSage/vectorstore"
)

const defaultPrefix = "codesage:"

// RedisStore implements vectorstore.Store on a Redis connection.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	compare similarity.Func
}

// redisDocument is the stored form of one record.
type redisDocument struct {
	ID        string               `json:"id"`
	Embedding []float32            `json:"embedding"`
	Metadata  vectorstore.Metadata `json:"metadata"`
	Timestamp int64                `json:"timestamp"`
}

// Config provides connection options for the Redis store.
type Config struct {
	// ConnectionString is a redis:// or rediss:// URL, or a plain host:port
	ConnectionString string
	Username         string
	Password         string
	Database         int

	// Prefix namespaces every key written by this store
	Prefix string

	// Similarity ranks query candidates; nil uses cosine similarity
	Similarity similarity.Func
}

// parseRedisURL parses a Redis URL and returns redis.Options
func parseRedisURL(connectionString string) (*redis.Options, error) {
	// Handle redis:// or rediss:// URLs
	if strings.HasPrefix(connectionString, "redis://") || strings.HasPrefix(connectionString, "rediss://") {
		parsedURL, err := url.Parse(connectionString)
		if err != nil {
			return nil, fmt.Errorf("invalid Redis URL: %w", err)
		}

		opts := &redis.Options{
			Addr: parsedURL.Host,
		}

		if parsedURL.Scheme == "rediss" {
			opts.TLSConfig = &tls.Config{
				MinVersion: tls.VersionTLS12,
			}
		}

		if parsedURL.User != nil {
			opts.Username = parsedURL.User.Username()
			if password, ok := parsedURL.User.Password(); ok {
				opts.Password = password
			}
		}

		if parsedURL.Path != "" && parsedURL.Path != "/" {
			dbStr := strings.TrimPrefix(parsedURL.Path, "/")
			if db, err := strconv.Atoi(dbStr); err == nil {
				opts.DB = db
			}
		}

		return opts, nil
	}

	// For simple address format (host:port), return minimal options
	return &redis.Options{
		Addr: connectionString,
	}, nil
}

// NewRedisStore connects to Redis and returns a namespaced vector store.
func NewRedisStore(ctx context.Context, config Config) (*RedisStore, error) {
	opts, err := parseRedisURL(config.ConnectionString)
	if err != nil {
		return nil, err
	}

	if config.Username != "" {
		opts.Username = config.Username
	}
	if config.Password != "" {
		opts.Password = config.Password
	}
	if config.Database != 0 {
		opts.DB = config.Database
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := config.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}

	compare := config.Similarity
	if compare == nil {
		compare = similarity.Cosine
	}

	return &RedisStore{
		client:  client,
		prefix:  prefix,
		compare: compare,
	}, nil
}

// key builds the Redis key for one record in a namespace.
func (s *RedisStore) key(namespace, id string) string {
	return s.prefix + namespace + ":" + id
}

// Upsert writes records as JSON documents under namespace-prefixed keys.
func (s *RedisStore) Upsert(ctx context.Context, namespace string, records []vectorstore.Record) error {
	now := time.Now().Unix()
	for _, rec := range records {
		doc := redisDocument{
			ID:        rec.ID,
			Embedding: rec.Values,
			Metadata:  rec.Metadata,
			Timestamp: now,
		}
		if _, err := s.client.JSONSet(ctx, s.key(namespace, rec.ID), "$", doc).Result(); err != nil {
			return fmt.Errorf("failed to upsert %s: %w", rec.ID, err)
		}
	}
	return nil
}

// Query scans the namespace and ranks every record against vector, returning
// the topK best matches.
func (s *RedisStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]vectorstore.Match, error) {
	keys, err := s.scanNamespace(ctx, namespace)
	if err != nil {
		return nil, err
	}

	matches := make([]vectorstore.Match, 0, len(keys))
	for _, key := range keys {
		result, err := s.client.JSONGet(ctx, key, "$").Result()
		if err == redis.Nil {
			continue // Deleted between SCAN and fetch
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get %s: %w", key, err)
		}

		var docs []redisDocument
		if err := json.Unmarshal([]byte(result), &docs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", key, err)
		}
		if len(docs) == 0 {
			continue
		}

		doc := docs[0]
		matches = append(matches, vectorstore.Match{
			ID:       doc.ID,
			Score:    s.compare(vector, doc.Embedding),
			Metadata: doc.Metadata,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// DeleteNamespace removes every record in the namespace.
func (s *RedisStore) DeleteNamespace(ctx context.Context, namespace string) error {
	keys, err := s.scanNamespace(ctx, namespace)
	if err != nil {
		return err
	}
	if len(keys) > 0 {
		if err := s.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to delete namespace %s: %w", namespace, err)
		}
	}
	return nil
}

// scanNamespace collects every key in the namespace via SCAN.
func (s *RedisStore) scanNamespace(ctx context.Context, namespace string) ([]string, error) {
	pattern := s.prefix + namespace + ":*"
	var keys []string
	var cursor uint64

	for {
		result, nextCursor, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan namespace %s: %w", namespace, err)
		}
		keys = append(keys, result...)
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

// Ping reports whether Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
