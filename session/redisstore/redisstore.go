// Package redisstore persists session.Entry history in Redis so a
// conversation's memory survives a pipeline process restart. Grounded in
// shape on rulestore/mongostore's thin-wrapper-over-a-driver-client pattern,
// using an append-only Redis list (RPush) per conversation, which maps
// directly onto session.Store's append-only contract.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/cadforge/codepilot/session"
)

const keyPrefix = "codepilot:session:"

// Store implements session.Store on top of a Redis list per conversation.
type Store struct {
	client *redis.Client
}

// New returns a Store backed by the provided Redis client.
func New(client *redis.Client) (*Store, error) {
	if client == nil {
		return nil, errors.New("redisstore: client is required")
	}
	return &Store{client: client}, nil
}

func key(conversationID string) string { return keyPrefix + conversationID }

func (s *Store) Append(ctx context.Context, conversationID string, entry session.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("redisstore: marshal entry: %w", err)
	}
	if err := s.client.RPush(ctx, key(conversationID), data).Err(); err != nil {
		return fmt.Errorf("redisstore: append: %w", err)
	}
	return nil
}

func (s *Store) History(ctx context.Context, conversationID string) ([]session.Entry, error) {
	raw, err := s.client.LRange(ctx, key(conversationID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: history: %w", err)
	}
	entries := make([]session.Entry, 0, len(raw))
	for _, item := range raw {
		var e session.Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("redisstore: decode entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *Store) Reset(ctx context.Context, conversationID string) error {
	if err := s.client.Del(ctx, key(conversationID)).Err(); err != nil {
		return fmt.Errorf("redisstore: reset: %w", err)
	}
	return nil
}
