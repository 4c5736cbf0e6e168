package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/blindquiz/internal/domain"
	"github.com/victornm/blindquiz/internal/errors"
	"github.com/victornm/blindquiz/internal/event"
	"github.com/victornm/blindquiz/internal/scoring"
)

const (
	defaultPublishInterval = 200 * time.Millisecond
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
	// PublishInterval bounds how often leaderboard.updated is sent per room.
	PublishInterval time.Duration
}

type Service struct {
	eb       *event.Bus
	redis    redis.UniversalClient
	prefix   string
	interval time.Duration
}

func NewService(c Config) *Service {
	s := &Service{
		eb:       c.EventBus,
		redis:    c.Redis,
		prefix:   c.Prefix,
		interval: c.PublishInterval,
	}
	if s.interval <= 0 {
		s.interval = defaultPublishInterval
	}

	s.eb.Subscribe(domain.EventNameScoreUpdated, func(ctx context.Context, e event.Event) error {
		return s.UpdateLeaderboard(ctx, e.(domain.EventScoreUpdated))
	})
	s.eb.Subscribe(domain.EventNameRoomClosed, func(ctx context.Context, e event.Event) error {
		return s.DeleteLeaderboard(ctx, e.(domain.EventRoomClosed).RoomID)
	})
	s.eb.Subscribe(domain.EventNameRoomFailed, func(ctx context.Context, e event.Event) error {
		return s.DeleteLeaderboard(ctx, e.(domain.EventRoomFailed).RoomID)
	})

	return s
}

type GetLeaderboardRequest struct {
	RoomID string
}

// GetLeaderboard returns the leaderboard of a room, best score first, with the rank of every player.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	res, err := s.redis.ZRevRangeWithScores(ctx, s.getLeaderboardKey(req.RoomID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	if len(res) == 0 {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("leaderboard not found: room=%s", req.RoomID))
	}

	maxScore, err := s.redis.Get(ctx, s.getMaxScoreKey(req.RoomID)).Int()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get max score: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for _, z := range res {
		score := int(z.Score)
		entries = append(entries, domain.LeaderboardEntry{
			PlayerID: z.Member.(string),
			Score:    score,
			Rank:     scoring.Rank(score, maxScore),
		})
	}

	return &domain.Leaderboard{
		RoomID:   req.RoomID,
		MaxScore: maxScore,
		Entries:  entries,
	}, nil
}

// UpdateLeaderboard overwrites the player's score in the leaderboard.
func (s *Service) UpdateLeaderboard(ctx context.Context, e domain.EventScoreUpdated) error {
	_, err := s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, s.getLeaderboardKey(e.RoomID), redis.Z{
			Score:  float64(e.Score),
			Member: e.PlayerID,
		})
		p.Set(ctx, s.getMaxScoreKey(e.RoomID), strconv.Itoa(e.MaxScore), 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	return s.schedulePublishLeaderboard(ctx, e)
}

// schedulePublishLeaderboard publishes the leaderboard once per interval and room.
// A reveal updates every player at once, so the publish happens at the end of
// the interval to carry all of them.
func (s *Service) schedulePublishLeaderboard(ctx context.Context, e domain.EventScoreUpdated) error {
	// Several instances may share the redis, only the first one to set the key publishes.
	ok, err := s.redis.SetNX(ctx, s.getLeaderboardTimeKey(e.RoomID), e.UpdateTime.UnixMilli(), s.interval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	ctx = context.WithoutCancel(ctx)
	time.AfterFunc(s.interval, func() {
		if err := s.publishLeaderboard(ctx, e.RoomID, e.Recipients); err != nil {
			slog.ErrorContext(ctx, "leaderboard: publish failed", "room", e.RoomID, "error", err)
		}
	})

	return nil
}

func (s *Service) publishLeaderboard(ctx context.Context, roomID string, to domain.Recipients) error {
	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{
		RoomID: roomID,
	})
	if errors.Is(err, errors.CodeNotFound) {
		// Deleted in the meantime.
		return nil
	}
	if err != nil {
		return fmt.Errorf("get leaderboard failed: room=%s: %w", roomID, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
		Recipients:  to,
	})

	return nil
}

// DeleteLeaderboard drops every key of a room.
func (s *Service) DeleteLeaderboard(ctx context.Context, roomID string) error {
	err := s.redis.Del(ctx,
		s.getLeaderboardKey(roomID),
		s.getMaxScoreKey(roomID),
		s.getLeaderboardTimeKey(roomID),
	).Err()
	if err != nil {
		return fmt.Errorf("delete leaderboard: room=%s: %w", roomID, err)
	}

	return nil
}

func (s *Service) getLeaderboardKey(room string) string {
	return fmt.Sprintf("%s:%s:leaderboard", s.prefix, room)
}

func (s *Service) getMaxScoreKey(room string) string {
	return fmt.Sprintf("%s:%s:max", s.prefix, room)
}

func (s *Service) getLeaderboardTimeKey(room string) string {
	return fmt.Sprintf("%s:%s:time", s.prefix, room)
}
