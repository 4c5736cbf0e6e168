package leaderboard_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/blindquiz/internal/domain"
	"github.com/victornm/blindquiz/internal/errors"
	"github.com/victornm/blindquiz/internal/event"
	"github.com/victornm/blindquiz/internal/leaderboard"
)

const testInterval = 10 * time.Millisecond

func TestService_UpdateLeaderboard(t *testing.T) {
	s, _ := makeService(t)

	for _, e := range []domain.EventScoreUpdated{
		{RoomID: "r1", PlayerID: "u1", Score: 9, MaxScore: 10, UpdateTime: time.Now()},
		{RoomID: "r1", PlayerID: "u2", Score: 4, MaxScore: 10, UpdateTime: time.Now()},
		{RoomID: "r1", PlayerID: "u1", Score: 10, MaxScore: 10, UpdateTime: time.Now()},
	} {
		require.NoError(t, s.UpdateLeaderboard(context.Background(), e))
	}

	resp, err := s.GetLeaderboard(context.Background(), leaderboard.GetLeaderboardRequest{
		RoomID: "r1",
	})
	require.NoError(t, err)

	want := &domain.Leaderboard{
		RoomID:   "r1",
		MaxScore: 10,
		Entries: []domain.LeaderboardEntry{
			{PlayerID: "u1", Score: 10, Rank: domain.RankSPlus},
			{PlayerID: "u2", Score: 4, Rank: domain.RankC},
		},
	}
	require.Equal(t, want, resp)
}

func TestService_GetLeaderboard_NotFound(t *testing.T) {
	s, _ := makeService(t)

	_, err := s.GetLeaderboard(context.Background(), leaderboard.GetLeaderboardRequest{RoomID: "r1"})
	require.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestService_DeleteOnRoomClosed(t *testing.T) {
	eb := event.NewBus()
	s, mr := makeService(t, withEventBus(eb))

	require.NoError(t, s.UpdateLeaderboard(context.Background(), domain.EventScoreUpdated{
		RoomID: "r1", PlayerID: "u1", Score: 5, MaxScore: 5, UpdateTime: time.Now(),
	}))
	require.True(t, mr.Exists("quiz:r1:leaderboard"))

	eb.Publish(context.Background(), domain.EventRoomClosed{RoomID: "r1"})
	eb.Drain()

	assert.False(t, mr.Exists("quiz:r1:leaderboard"))
	assert.False(t, mr.Exists("quiz:r1:max"))
}

func TestService_PublishLeaderboardUpdated(t *testing.T) {
	type (
		inputs struct {
			receivedEvents []domain.EventScoreUpdated
		}

		outputs struct {
			publishedEvents []domain.EventLeaderboardUpdated
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		want    int
		assert  func(t *testing.T, out outputs)
	}{
		"should publish correct event leaderboard.updated after receiving score.updated": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventScoreUpdated{
						{
							RoomID:     "r1",
							PlayerID:   "u1",
							Score:      5,
							MaxScore:   10,
							UpdateTime: time.Now(),
							Recipients: domain.Recipients{"u1", "u2"},
						},
					},
				}
			},
			want: 1,

			assert: func(t *testing.T, out outputs) {
				require.Equal(t, domain.Leaderboard{
					RoomID:   "r1",
					MaxScore: 10,
					Entries: []domain.LeaderboardEntry{
						{PlayerID: "u1", Score: 5, Rank: domain.RankC},
					},
				}, out.publishedEvents[0].Leaderboard)
				require.Equal(t, []string{"u1", "u2"}, out.publishedEvents[0].Audience())
			},
		},

		"should publish 2 events leaderboard.updated after receiving events score.updated for 2 different rooms": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventScoreUpdated{
						{RoomID: "r1", PlayerID: "u1", Score: 5, MaxScore: 5, UpdateTime: time.Now()},
						{RoomID: "r2", PlayerID: "u2", Score: 5, MaxScore: 5, UpdateTime: time.Now()},
					},
				}
			},
			want: 2,

			assert: func(t *testing.T, out outputs) {},
		},

		"should publish 1 event carrying every score updated in the same room within the publish interval": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventScoreUpdated{
						{RoomID: "r1", PlayerID: "u1", Score: 5, MaxScore: 5, UpdateTime: time.Now()},
						{RoomID: "r1", PlayerID: "u2", Score: 0, MaxScore: 5, UpdateTime: time.Now()},
					},
				}
			},
			want: 1,

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents[0].Leaderboard.Entries, 2, "the publish should include the later update")
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in, out := tt.arrange(), outputs{}

			eb := event.NewBus()

			var mu sync.Mutex
			eb.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
				mu.Lock()
				out.publishedEvents = append(out.publishedEvents, e.(domain.EventLeaderboardUpdated))
				mu.Unlock()
				return nil
			})

			s, _ := makeService(t,
				withEventBus(eb),
			)

			for _, e := range in.receivedEvents {
				err := s.UpdateLeaderboard(context.Background(), e)
				require.NoError(t, err)
			}

			require.Eventually(t, func() bool {
				mu.Lock()
				defer mu.Unlock()
				return len(out.publishedEvents) >= tt.want
			}, time.Second, testInterval)

			// Nothing else should come.
			time.Sleep(5 * testInterval)
			eb.Stop()

			require.Len(t, out.publishedEvents, tt.want)
			tt.assert(t, out)
		})
	}
}

func makeService(t *testing.T, opts ...options) (*leaderboard.Service, *miniredis.Miniredis) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	c := leaderboard.Config{
		EventBus:        event.NewBus(),
		Redis:           rc,
		Prefix:          "quiz",
		PublishInterval: testInterval,
	}

	for _, opt := range opts {
		opt(&c)
	}

	return leaderboard.NewService(c), rs
}

type options func(c *leaderboard.Config)

func withEventBus(eb *event.Bus) options {
	return func(c *leaderboard.Config) {
		c.EventBus = eb
	}
}
