package domain

import (
	"time"
)

const (
	EventNamePlayerJoined       = "room.player_joined"
	EventNamePlayerLeft         = "room.player_left"
	EventNameRoomFailed         = "room.failed"
	EventNameRoomClosed         = "room.closed"
	EventNameRoundStarted       = "round.started"
	EventNameRoundTick          = "round.tick"
	EventNameRoundRevealed      = "round.revealed"
	EventNameGuessAccepted      = "guess.accepted"
	EventNameGameFinished       = "game.finished"
	EventNameScoreUpdated       = "score.updated"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

// Recipients is embedded by events broadcast to room members.
type Recipients []string

func (r Recipients) Audience() []string { return r }

type EventPlayerJoined struct {
	RoomID string
	Player Player
	Recipients
}

func (EventPlayerJoined) Name() string  { return EventNamePlayerJoined }
func (e EventPlayerJoined) Key() string { return e.RoomID }

type EventPlayerLeft struct {
	RoomID   string
	PlayerID string
	HostID   string
	Recipients
}

func (EventPlayerLeft) Name() string  { return EventNamePlayerLeft }
func (e EventPlayerLeft) Key() string { return e.RoomID }

type EventRoomFailed struct {
	RoomID string
	Reason string
	Recipients
}

func (EventRoomFailed) Name() string  { return EventNameRoomFailed }
func (e EventRoomFailed) Key() string { return e.RoomID }

type EventRoomClosed struct {
	RoomID string
	Recipients
}

func (EventRoomClosed) Name() string  { return EventNameRoomClosed }
func (e EventRoomClosed) Key() string { return e.RoomID }

// EventRoundStarted never carries the candidate's names, only what is needed to play the clip.
type EventRoundStarted struct {
	RoomID     string
	Round      int
	Rounds     int
	Label      string
	Difficulty Difficulty
	MediaURL   string
	Choices    []string
	Deadline   time.Time
	Revived    []string
	Recipients
}

func (EventRoundStarted) Name() string  { return EventNameRoundStarted }
func (e EventRoundStarted) Key() string { return e.RoomID }

type EventRoundTick struct {
	RoomID    string
	Round     int
	Phase     RoundPhase
	Remaining time.Duration
	Recipients
}

func (EventRoundTick) Name() string  { return EventNameRoundTick }
func (e EventRoundTick) Key() string { return e.RoomID }

type EventGuessAccepted struct {
	RoomID     string
	Round      int
	PlayerID   string
	ReceivedAt time.Time
}

func (EventGuessAccepted) Name() string         { return EventNameGuessAccepted }
func (e EventGuessAccepted) Key() string        { return e.RoomID }
func (e EventGuessAccepted) Audience() []string { return []string{e.PlayerID} }

type EventRoundRevealed struct {
	RoomID    string
	Round     int
	Candidate Candidate
	Verdicts  []Verdict
	Recipients
}

func (EventRoundRevealed) Name() string  { return EventNameRoundRevealed }
func (e EventRoundRevealed) Key() string { return e.RoomID }

type EventGameFinished struct {
	RoomID    string
	Rounds    int
	MaxScore  int
	Standings []Standing
	Recipients
}

func (EventGameFinished) Name() string  { return EventNameGameFinished }
func (e EventGameFinished) Key() string { return e.RoomID }

// EventScoreUpdated feeds the live leaderboard.
type EventScoreUpdated struct {
	RoomID     string
	PlayerID   string
	Score      int
	MaxScore   int
	UpdateTime time.Time
	Recipients
}

func (EventScoreUpdated) Name() string  { return EventNameScoreUpdated }
func (e EventScoreUpdated) Key() string { return e.RoomID }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
	Recipients
}

func (EventLeaderboardUpdated) Name() string  { return EventNameLeaderboardUpdated }
func (e EventLeaderboardUpdated) Key() string { return e.Leaderboard.RoomID }
