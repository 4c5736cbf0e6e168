package api

import (
	"time"

	"github.com/victornm/blindquiz/internal/domain"
	"github.com/victornm/blindquiz/internal/game"
)

type (
	PlayerInput struct {
		ID     string `json:"id" binding:"required"`
		Name   string `json:"name"`
		Avatar string `json:"avatar"`
	}

	GameConfigInput struct {
		Mode         string `json:"mode"`
		GameType     string `json:"game_type"`
		ResponseType string `json:"response_type"`
		Rounds       int    `json:"rounds"`
		// GuessDuration is in seconds.
		GuessDuration int      `json:"guess_duration"`
		Precision     string   `json:"precision"`
		Selection     string   `json:"selection"`
		Themes        []string `json:"themes"`
		SeenIDs       []string `json:"seen_ids"`
		LivesCount    int      `json:"lives_count"`
	}

	CreateRoomInput struct {
		Name       string          `json:"name"`
		Host       PlayerInput     `json:"host"`
		Private    bool            `json:"private"`
		MaxPlayers int             `json:"max_players"`
		Config     GameConfigInput `json:"config"`
	}

	PlayerActionInput struct {
		PlayerID string `json:"player_id" binding:"required"`
	}

	GuessInput struct {
		PlayerID   string    `json:"player_id"`
		Text       string    `json:"text"`
		Choice     *int      `json:"choice"`
		ClientTime time.Time `json:"client_time"`
	}
)

func (c GameConfigInput) toDomain() domain.GameConfig {
	return domain.GameConfig{
		Mode:          domain.Mode(c.Mode),
		GameType:      domain.GameType(c.GameType),
		ResponseType:  domain.ResponseType(c.ResponseType),
		Rounds:        c.Rounds,
		GuessDuration: time.Duration(c.GuessDuration) * time.Second,
		Precision:     domain.Precision(c.Precision),
		Selection:     domain.SelectionPolicy(c.Selection),
		Themes:        c.Themes,
		SeenIDs:       c.SeenIDs,
		LivesCount:    c.LivesCount,
	}
}

func (p PlayerInput) toDomain() domain.Player {
	return domain.Player{ID: p.ID, Name: p.Name, Avatar: p.Avatar}
}

type (
	Room struct {
		RoomID     string     `json:"room_id"`
		Name       string     `json:"name"`
		HostID     string     `json:"host_id"`
		Private    bool       `json:"private"`
		Status     string     `json:"status"`
		MaxPlayers int        `json:"max_players"`
		Round      int        `json:"round"`
		Phase      string     `json:"phase"`
		Config     GameConfig `json:"config"`
		Players    []Player   `json:"players"`
		CreateTime time.Time  `json:"create_time"`
	}

	GameConfig struct {
		Mode          string   `json:"mode"`
		GameType      string   `json:"game_type"`
		ResponseType  string   `json:"response_type"`
		Rounds        int      `json:"rounds"`
		GuessDuration int      `json:"guess_duration"`
		Precision     string   `json:"precision"`
		Selection     string   `json:"selection"`
		Themes        []string `json:"themes,omitempty"`
		LivesCount    int      `json:"lives_count,omitempty"`
	}

	Player struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		Avatar     string `json:"avatar,omitempty"`
		Score      int    `json:"score"`
		Streak     int    `json:"streak"`
		Connected  bool   `json:"connected"`
		Lives      int    `json:"lives"`
		Eliminated bool   `json:"eliminated"`
		Spectator  bool   `json:"spectator,omitempty"`
		Answered   bool   `json:"answered"`
	}

	RoomSummary struct {
		RoomID      string    `json:"room_id"`
		Name        string    `json:"name"`
		Private     bool      `json:"private"`
		Status      string    `json:"status"`
		PlayerCount int       `json:"player_count"`
		MaxPlayers  int       `json:"max_players"`
		Mode        string    `json:"mode"`
		GameType    string    `json:"game_type"`
		CreateTime  time.Time `json:"create_time"`
	}

	Ack struct {
		Accepted bool   `json:"accepted"`
		Reason   string `json:"reason,omitempty"`
		Round    int    `json:"round"`
	}

	Leaderboard struct {
		RoomID   string             `json:"room_id"`
		MaxScore int                `json:"max_score"`
		Entries  []LeaderboardEntry `json:"entries"`
	}

	LeaderboardEntry struct {
		PlayerID string `json:"player_id"`
		Score    int    `json:"score"`
		Rank     string `json:"rank"`
	}
)

func newRoom(r *domain.Room) Room {
	out := Room{
		RoomID:     r.RoomID,
		Name:       r.Name,
		HostID:     r.HostID,
		Private:    r.Private,
		Status:     string(r.Status),
		MaxPlayers: r.MaxPlayers,
		Round:      r.Round,
		Phase:      string(r.Phase),
		Config: GameConfig{
			Mode:          string(r.Config.Mode),
			GameType:      string(r.Config.GameType),
			ResponseType:  string(r.Config.ResponseType),
			Rounds:        r.Config.Rounds,
			GuessDuration: int(r.Config.GuessDuration / time.Second),
			Precision:     string(r.Config.Precision),
			Selection:     string(r.Config.Selection),
			Themes:        r.Config.Themes,
			LivesCount:    r.Config.LivesCount,
		},
		Players:    make([]Player, 0, len(r.Players)),
		CreateTime: r.CreateTime,
	}

	for _, p := range r.Players {
		out.Players = append(out.Players, Player{
			ID:         p.ID,
			Name:       p.Name,
			Avatar:     p.Avatar,
			Score:      p.Score,
			Streak:     p.Streak,
			Connected:  p.Connected,
			Lives:      p.Lives,
			Eliminated: p.Eliminated,
			Spectator:  p.Spectator,
			Answered:   p.Answered,
		})
	}

	return out
}

func newRoomSummary(s domain.RoomSummary) RoomSummary {
	return RoomSummary{
		RoomID:      s.RoomID,
		Name:        s.Name,
		Private:     s.Private,
		Status:      string(s.Status),
		PlayerCount: s.PlayerCount,
		MaxPlayers:  s.MaxPlayers,
		Mode:        string(s.Mode),
		GameType:    string(s.GameType),
		CreateTime:  s.CreateTime,
	}
}

func newAck(a *game.Ack) Ack {
	return Ack{Accepted: a.Accepted, Reason: a.Reason, Round: a.Round}
}

func newLeaderboard(l *domain.Leaderboard) Leaderboard {
	out := Leaderboard{
		RoomID:   l.RoomID,
		MaxScore: l.MaxScore,
		Entries:  make([]LeaderboardEntry, 0, len(l.Entries)),
	}

	for _, e := range l.Entries {
		out.Entries = append(out.Entries, LeaderboardEntry{
			PlayerID: e.PlayerID,
			Score:    e.Score,
			Rank:     string(e.Rank),
		})
	}

	return out
}
