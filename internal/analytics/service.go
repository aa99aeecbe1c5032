package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-labquote/internal/events"
)

const (
	topTestsKey   = "analytics:test_counts"
	counterPrefix = "analytics:counter:"
)

// TopTest is one entry in the most-requested-tests ranking.
type TopTest struct {
	Code  string `json:"code"`
	Name  string `json:"name,omitempty"`
	Count int64  `json:"count"`
}

// Service aggregates quote activity in Redis sorted sets and counters.
type Service struct {
	R   *redis.Client
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// RecordTestSelected bumps the selection count for a test code.
func (s *Service) RecordTestSelected(ctx context.Context, code, name string) error {
	if s == nil || s.R == nil || code == "" {
		return nil
	}
	pipe := s.R.Pipeline()
	pipe.ZIncrBy(ctx, topTestsKey, 1, code)
	if name != "" {
		pipe.HSet(ctx, topTestsKey+":names", code, name)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// RecordEventCount bumps a daily counter for the topic.
func (s *Service) RecordEventCount(ctx context.Context, topic string) error {
	if s == nil || s.R == nil || topic == "" {
		return nil
	}
	key := counterPrefix + topic + ":" + s.now().UTC().Format("2006-01-02")
	pipe := s.R.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 60*24*time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}

// TopTests returns the most selected test codes, highest count first.
func (s *Service) TopTests(ctx context.Context, limit int) ([]TopTest, error) {
	if s == nil || s.R == nil {
		return nil, errors.New("analytics: redis client not configured")
	}
	if limit <= 0 {
		limit = 10
	}
	entries, err := s.R.ZRevRangeWithScores(ctx, topTestsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	results := make([]TopTest, 0, len(entries))
	codes := make([]string, 0, len(entries))
	for _, entry := range entries {
		code, _ := entry.Member.(string)
		codes = append(codes, code)
		results = append(results, TopTest{Code: code, Count: int64(entry.Score)})
	}
	if len(codes) > 0 {
		names, err := s.R.HMGet(ctx, topTestsKey+":names", codes...).Result()
		if err == nil {
			for i, raw := range names {
				if name, ok := raw.(string); ok {
					results[i].Name = name
				}
			}
		}
	}
	return results, nil
}

// Notifier returns an event-bus notifier feeding the aggregates.
func (s *Service) Notifier() events.Notifier {
	return events.FuncNotifier(func(ctx context.Context, ev events.Event) error {
		if err := s.RecordEventCount(ctx, ev.Topic); err != nil {
			return err
		}
		if ev.Topic != events.TopicQuoteItemAdded {
			return nil
		}
		var payload struct {
			Code string `json:"code"`
			Name string `json:"name"`
		}
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return nil
		}
		return s.RecordTestSelected(ctx, payload.Code, payload.Name)
	})
}
