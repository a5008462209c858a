package store

import (
	"context"
	"encoding/json"
	"path"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
)

// The redis store keeps one JSON document per chat.
// The keys namespace is organized as follows:
// - `<prefix>/transcripts/runs/<chatID>` for the run
// - `<prefix>/transcripts/chats` for the set of chat IDs

type redisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore returns a store backed by Redis.
// The runs expire after ttl, zero keeps them until deleted.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) TranscriptStore {
	return &redisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (m *redisStore) getRunKey(chatID string) string {
	return path.Join(m.prefix, "transcripts", "runs", chatID)
}

func (m *redisStore) getChatListKey() string {
	return path.Join(m.prefix, "transcripts", "chats")
}

func (m *redisStore) Save(ctx context.Context, run *Run) error {
	if err := validate(run); err != nil {
		return err
	}

	data, err := json.Marshal(run)
	if err != nil {
		return errors.Wrap(err, "failed to marshal run")
	}

	pipe := m.client.Pipeline()
	pipe.Set(ctx, m.getRunKey(run.ChatID), data, m.ttl)
	pipe.SAdd(ctx, m.getChatListKey(), run.ChatID)
	if _, err = pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to store run in Redis")
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "saved",
		"chat_id", run.ChatID,
		"messages", len(run.Messages),
	)
	return nil
}

func (m *redisStore) Load(ctx context.Context, chatID string) (*Run, error) {
	data, err := m.client.Get(ctx, m.getRunKey(chatID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get run from Redis")
	}

	run := new(Run)
	if err = json.Unmarshal([]byte(data), run); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal run")
	}
	return run, nil
}

func (m *redisStore) List(ctx context.Context) ([]string, error) {
	chatIDs, err := m.client.SMembers(ctx, m.getChatListKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to list chats from Redis")
	}
	slices.Sort(chatIDs)
	return chatIDs, nil
}

func (m *redisStore) Delete(ctx context.Context, chatID string) error {
	pipe := m.client.Pipeline()
	pipe.Del(ctx, m.getRunKey(chatID))
	pipe.SRem(ctx, m.getChatListKey(), chatID)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to delete run from Redis")
	}
	return nil
}

func (m *redisStore) Cleanup(ctx context.Context, olderThan time.Duration) (uint32, error) {
	chatIDs, err := m.client.SMembers(ctx, m.getChatListKey()).Result()
	if err != nil {
		return 0, errors.Wrap(err, "failed to list chats from Redis")
	}

	deleted := uint32(0)
	cutoff := time.Now().Add(-olderThan)
	for _, chatID := range chatIDs {
		run, err := m.Load(ctx, chatID)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				return deleted, err
			}
			// expired, drop it from the set
		} else if !run.CreatedAt.Before(cutoff) {
			continue
		}

		if err = m.Delete(ctx, chatID); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
