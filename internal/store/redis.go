package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type participantRecord struct {
	UserID   string    `json:"userId,omitempty"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joinedAt"`
}

type chatRecord struct {
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Redis appends meeting records to per-room lists. Keys expire after ttl so
// an abandoned meeting does not accumulate forever; the authoritative history
// is whatever the meeting API ingests from here.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Redis{client: client, ttl: ttl}, nil
}

func (s *Redis) AppendParticipant(ctx context.Context, roomID, userID, name string, joinedAt time.Time) error {
	rec := participantRecord{UserID: userID, Name: name, JoinedAt: joinedAt}
	return s.push(ctx, "meeting:"+roomID+":participants", rec)
}

func (s *Redis) AppendChatMessage(ctx context.Context, roomID, sender, message string, sentAt time.Time) error {
	rec := chatRecord{Sender: sender, Message: message, Timestamp: sentAt}
	return s.push(ctx, "meeting:"+roomID+":chat", rec)
}

func (s *Redis) push(ctx context.Context, key string, rec any) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := s.client.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", key, err)
	}
	return s.client.Expire(ctx, key, s.ttl).Err()
}

func (s *Redis) Close() error {
	return s.client.Close()
}
