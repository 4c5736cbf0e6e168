package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/blindquiz/internal/domain"
	"github.com/victornm/blindquiz/internal/event"
)

const maxConcurrent = 100

// Events forwarded to the players' channels.
var notifiedEvents = []string{
	domain.EventNamePlayerJoined,
	domain.EventNamePlayerLeft,
	domain.EventNameRoomFailed,
	domain.EventNameRoomClosed,
	domain.EventNameRoundStarted,
	domain.EventNameRoundTick,
	domain.EventNameGuessAccepted,
	domain.EventNameRoundRevealed,
	domain.EventNameGameFinished,
	domain.EventNameLeaderboardUpdated,
}

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	PlayerJoined struct {
		RoomID string `json:"room_id"`
		Player Player `json:"player"`
	}

	PlayerLeft struct {
		RoomID   string `json:"room_id"`
		PlayerID string `json:"player_id"`
		HostID   string `json:"host_id"`
	}

	RoomFailed struct {
		RoomID string `json:"room_id"`
		Reason string `json:"reason"`
	}

	RoomClosed struct {
		RoomID string `json:"room_id"`
	}

	// RoundStarted leaves the candidate out, players only get the clip.
	RoundStarted struct {
		RoomID     string    `json:"room_id"`
		Round      int       `json:"round"`
		Rounds     int       `json:"rounds"`
		Label      string    `json:"label,omitempty"`
		Difficulty string    `json:"difficulty,omitempty"`
		MediaURL   string    `json:"media_url"`
		Choices    []string  `json:"choices,omitempty"`
		Deadline   time.Time `json:"deadline"`
		Revived    []string  `json:"revived,omitempty"`
	}

	RoundTick struct {
		RoomID      string `json:"room_id"`
		Round       int    `json:"round"`
		Phase       string `json:"phase"`
		RemainingMS int64  `json:"remaining_ms"`
	}

	GuessAccepted struct {
		RoomID     string    `json:"room_id"`
		Round      int       `json:"round"`
		ReceivedAt time.Time `json:"received_at"`
	}

	RoundRevealed struct {
		RoomID    string    `json:"room_id"`
		Round     int       `json:"round"`
		Candidate Candidate `json:"candidate"`
		Verdicts  []Verdict `json:"verdicts"`
	}

	Candidate struct {
		ID        string   `json:"id"`
		Name      string   `json:"name"`
		Franchise string   `json:"franchise,omitempty"`
		AltNames  []string `json:"alt_names,omitempty"`
		MediaURL  string   `json:"media_url"`
	}

	Verdict struct {
		PlayerID   string `json:"player_id"`
		Answer     string `json:"answer,omitempty"`
		Correct    bool   `json:"correct"`
		Points     int    `json:"points"`
		Score      int    `json:"score"`
		Streak     int    `json:"streak"`
		Lives      int    `json:"lives"`
		Eliminated bool   `json:"eliminated"`
		Healed     bool   `json:"healed"`
	}

	GameFinished struct {
		RoomID    string     `json:"room_id"`
		Rounds    int        `json:"rounds"`
		MaxScore  int        `json:"max_score"`
		Standings []Standing `json:"standings"`
	}

	Standing struct {
		Position   int    `json:"position"`
		PlayerID   string `json:"player_id"`
		Name       string `json:"name"`
		Score      int    `json:"score"`
		Streak     int    `json:"streak"`
		Eliminated bool   `json:"eliminated"`
		Rank       string `json:"rank"`
	}
)

type audience interface {
	Audience() []string
}

// PublishNotification forwards e to the channel of every player it concerns.
func (a *API) PublishNotification(ctx context.Context, e event.Event) error {
	to, ok := e.(audience)
	if !ok {
		return fmt.Errorf("pubsub: event %s has no audience", e.Name())
	}

	data, err := notification(e)
	if err != nil {
		return err
	}

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, player := range to.Audience() {
		eg.Go(func() error {
			return a.publishNotification(ctx, player, e.Name(), data)
		})
	}

	return eg.Wait()
}

func notification(e event.Event) (any, error) {
	switch e := e.(type) {
	case domain.EventPlayerJoined:
		return PlayerJoined{
			RoomID: e.RoomID,
			Player: Player{ID: e.Player.ID, Name: e.Player.Name, Avatar: e.Player.Avatar, Connected: true},
		}, nil

	case domain.EventPlayerLeft:
		return PlayerLeft{RoomID: e.RoomID, PlayerID: e.PlayerID, HostID: e.HostID}, nil

	case domain.EventRoomFailed:
		return RoomFailed{RoomID: e.RoomID, Reason: e.Reason}, nil

	case domain.EventRoomClosed:
		return RoomClosed{RoomID: e.RoomID}, nil

	case domain.EventRoundStarted:
		return RoundStarted{
			RoomID:     e.RoomID,
			Round:      e.Round,
			Rounds:     e.Rounds,
			Label:      e.Label,
			Difficulty: string(e.Difficulty),
			MediaURL:   e.MediaURL,
			Choices:    e.Choices,
			Deadline:   e.Deadline,
			Revived:    e.Revived,
		}, nil

	case domain.EventRoundTick:
		return RoundTick{
			RoomID:      e.RoomID,
			Round:       e.Round,
			Phase:       string(e.Phase),
			RemainingMS: e.Remaining.Milliseconds(),
		}, nil

	case domain.EventGuessAccepted:
		return GuessAccepted{RoomID: e.RoomID, Round: e.Round, ReceivedAt: e.ReceivedAt}, nil

	case domain.EventRoundRevealed:
		out := RoundRevealed{
			RoomID: e.RoomID,
			Round:  e.Round,
			Candidate: Candidate{
				ID:        e.Candidate.ID,
				Name:      e.Candidate.Name,
				Franchise: e.Candidate.Franchise,
				AltNames:  e.Candidate.AltNames,
				MediaURL:  e.Candidate.MediaURL,
			},
			Verdicts: make([]Verdict, 0, len(e.Verdicts)),
		}
		for _, v := range e.Verdicts {
			out.Verdicts = append(out.Verdicts, Verdict{
				PlayerID:   v.PlayerID,
				Answer:     v.Answer,
				Correct:    v.Correct,
				Points:     v.Points,
				Score:      v.Score,
				Streak:     v.Streak,
				Lives:      v.Lives,
				Eliminated: v.Eliminated,
				Healed:     v.Healed,
			})
		}
		return out, nil

	case domain.EventGameFinished:
		out := GameFinished{
			RoomID:    e.RoomID,
			Rounds:    e.Rounds,
			MaxScore:  e.MaxScore,
			Standings: make([]Standing, 0, len(e.Standings)),
		}
		for _, s := range e.Standings {
			out.Standings = append(out.Standings, Standing{
				Position:   s.Position,
				PlayerID:   s.PlayerID,
				Name:       s.Name,
				Score:      s.Score,
				Streak:     s.Streak,
				Eliminated: s.Eliminated,
				Rank:       string(s.Rank),
			})
		}
		return out, nil

	case domain.EventLeaderboardUpdated:
		return newLeaderboard(&e.Leaderboard), nil

	default:
		return nil, fmt.Errorf("pubsub: unsupported event %s", e.Name())
	}
}

func (a *API) publishNotification(ctx context.Context, player, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, a.channel(player), b).Err()
}

func (a *API) channel(player string) string {
	return fmt.Sprintf("%s:user:%s", a.prefix, player)
}
