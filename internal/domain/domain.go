package domain

import (
	"time"
)

type (
	Mode            string
	GameType        string
	ResponseType    string
	ResponseMode    string
	Precision       string
	SelectionPolicy string
	Difficulty      string
	RoomStatus      string
	RoundPhase      string
	Rank            string
)

const (
	ModeSolo        Mode = "solo"
	ModeMultiplayer Mode = "multiplayer"
	ModeCompetitive Mode = "competitive"
)

const (
	GameTypeStandard     GameType = "standard"
	GameTypeBattleRoyale GameType = "battle-royale"
	GameTypeLives        GameType = "lives"
)

const (
	ResponseTypeTyping ResponseType = "typing"
	ResponseTypeQCM    ResponseType = "qcm"
	ResponseTypeMix    ResponseType = "mix"
)

// ResponseMode is the way a single guess was answered, it selects the base points.
const (
	ResponseModeTyping ResponseMode = "typing"
	ResponseModeMix    ResponseMode = "mix"
	ResponseModeQCM    ResponseMode = "qcm"
	ResponseModeBinary ResponseMode = "binary"
)

const (
	PrecisionExact     Precision = "exact"
	PrecisionFranchise Precision = "franchise"
)

const (
	SelectionRandom   SelectionPolicy = "random"
	SelectionThematic SelectionPolicy = "thematic"
	SelectionUnseen   SelectionPolicy = "unseen"
)

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

const (
	RoomStatusWaiting  RoomStatus = "waiting"
	RoomStatusPlaying  RoomStatus = "playing"
	RoomStatusFinished RoomStatus = "finished"
)

const (
	RoundPhaseIdle    RoundPhase = "idle"
	RoundPhaseIntro   RoundPhase = "intro"
	RoundPhasePlaying RoundPhase = "playing"
	RoundPhaseReveal  RoundPhase = "reveal"
)

const (
	RankSPlus     Rank = "S+"
	RankS         Rank = "S"
	RankA         Rank = "A"
	RankB         Rank = "B"
	RankC         Rank = "C"
	RankD         Rank = "D"
	RankUndefined Rank = "undefined"
)

// GameConfig is fixed when a room is created and never changes afterward.
type GameConfig struct {
	Mode          Mode
	GameType      GameType
	ResponseType  ResponseType
	Rounds        int
	GuessDuration time.Duration
	Precision     Precision
	Selection     SelectionPolicy
	// Themes are the catalog tags used by SelectionThematic.
	Themes []string
	// SeenIDs are candidates already known to the players, excluded by SelectionUnseen.
	SeenIDs    []string
	LivesCount int
}

type Player struct {
	ID     string
	Name   string
	Avatar string
}

// GamePlayer is a room member with its room-scoped progress.
// Lives, Eliminated and HealCounter are only meaningful for modes with lives.
type GamePlayer struct {
	Player

	Score     int
	Streak    int
	Connected bool

	Lives       int
	Eliminated  bool
	HealCounter int
	// Spectator joined a running game that late joiners cannot play. It is never revived.
	Spectator   bool

	// Reset at the start of every round.
	Answered      bool
	CurrentAnswer string
	IsCorrect     bool
	RoundPoints   int
}

// ResetRound clears the per-round fields.
func (p *GamePlayer) ResetRound() {
	p.Answered = false
	p.CurrentAnswer = ""
	p.IsCorrect = false
	p.RoundPoints = 0
}

// Room is a read-only snapshot of a room.
type Room struct {
	RoomID     string
	Name       string
	HostID     string
	Private    bool
	Status     RoomStatus
	MaxPlayers int
	Config     GameConfig
	Players    []GamePlayer
	Round      int
	Phase      RoundPhase
	CreateTime time.Time
}

func (r Room) Summary() RoomSummary {
	return RoomSummary{
		RoomID:      r.RoomID,
		Name:        r.Name,
		Private:     r.Private,
		Status:      r.Status,
		PlayerCount: len(r.Players),
		MaxPlayers:  r.MaxPlayers,
		Mode:        r.Config.Mode,
		GameType:    r.Config.GameType,
		CreateTime:  r.CreateTime,
	}
}

type RoomSummary struct {
	RoomID      string
	Name        string
	Private     bool
	Status      RoomStatus
	PlayerCount int
	MaxPlayers  int
	Mode        Mode
	GameType    GameType
	CreateTime  time.Time
}

// Candidate is a catalog entry. It is owned by the catalog store and never mutated here.
type Candidate struct {
	ID         string
	Name       string
	Franchise  string
	AltNames   []string
	Tags       []string
	Difficulty Difficulty
	MediaURL   string
}

// Label returns the name a guess is judged against for the given precision.
func (c Candidate) Label(p Precision) string {
	if p == PrecisionFranchise && c.Franchise != "" {
		return c.Franchise
	}

	return c.Name
}

// Guess is a player's submission. Choice is -1 for typed answers.
type Guess struct {
	PlayerID   string
	Text       string
	Choice     int
	ClientTime time.Time
	ReceivedAt time.Time
}

func (g Guess) IsChoice() bool {
	return g.Choice >= 0
}

type RoundState struct {
	Index      int
	Candidate  Candidate
	Phase      RoundPhase
	Deadline   time.Time
	Label      string
	Difficulty Difficulty
	Choices    []string
	Guesses    map[string]Guess
}

// Verdict is a player's result for a round.
type Verdict struct {
	PlayerID   string
	Answer     string
	Answered   bool
	Correct    bool
	Points     int
	Score      int
	Streak     int
	Lives      int
	Eliminated bool
	Healed     bool
}

type Standing struct {
	PlayerID   string
	Name       string
	Score      int
	Streak     int
	Eliminated bool
	Position   int
	Rank       Rank
}

type Leaderboard struct {
	RoomID   string
	MaxScore int
	Entries  []LeaderboardEntry
}

type LeaderboardEntry struct {
	PlayerID string
	Score    int
	Rank     Rank
}
