// Package cache wraps the Redis client used to reserve participant ids and
// to queue per-step study records for offline analysis.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	participantKeyPrefix = "burgerlab:participant:"
	// ActionQueue is the list study step records are appended to.
	ActionQueue = "burgerlab:study_actions"
	// ReservationTTL bounds how long a participant id stays taken.
	ReservationTTL = 30 * 24 * time.Hour
)

// Client is a Redis connection.
type Client struct {
	rdb *redis.Client
}

// Connect dials addr and pings it.
func Connect(ctx context.Context, addr string) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	logrus.WithField("addr", addr).Info("Connected to Redis")
	return &Client{rdb: rdb}, nil
}

// Close closes the connection.
func (c *Client) Close() error { return c.rdb.Close() }

// Reserve claims a participant id. It reports false when the id is taken.
func (c *Client) Reserve(ctx context.Context, participantID int) (bool, error) {
	key := participantKeyPrefix + strconv.Itoa(participantID)
	ok, err := c.rdb.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ReservationTTL).Result()
	if err != nil {
		return false, fmt.Errorf("reserve participant %d: %w", participantID, err)
	}
	return ok, nil
}

// Release frees a participant id.
func (c *Client) Release(ctx context.Context, participantID int) error {
	return c.rdb.Del(ctx, participantKeyPrefix+strconv.Itoa(participantID)).Err()
}

// StudyActionRecord is one queued study event.
type StudyActionRecord struct {
	SessionID     uuid.UUID      `json:"sessionId"`
	ParticipantID int            `json:"participantId"`
	ActionIndex   int            `json:"actionIndex"`
	ActionType    string         `json:"actionType"`
	ActionPayload map[string]any `json:"actionPayload"`
	Timestamp     int64          `json:"timestamp"`
}

// PublishStudyAction appends rec to the action queue.
func (c *Client) PublishStudyAction(ctx context.Context, rec StudyActionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal study action: %w", err)
	}
	return c.rdb.RPush(ctx, ActionQueue, data).Err()
}
