package room

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/victornm/blindquiz/internal/catalog"
	"github.com/victornm/blindquiz/internal/domain"
	"github.com/victornm/blindquiz/internal/errors"
	"github.com/victornm/blindquiz/internal/event"
	"github.com/victornm/blindquiz/internal/game"
	"github.com/victornm/blindquiz/internal/matcher"
)

const (
	maxNameLength     = 64
	defaultCapacity   = 50
	defaultMaxPlayers = 8
)

const (
	VisibilityAll     = "all"
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

type Config struct {
	EventBus *event.Bus
	Catalog  catalog.Reader
	Settings game.Settings
	// Capacity is the upper bound of a room's MaxPlayers.
	Capacity int

	NewTickerFunc func(d time.Duration) game.Ticker
	Now           func() time.Time
}

// Service is the registry of running rooms. Rooms run on their own goroutine
// and are removed from the registry once they stop.
type Service struct {
	eb        *event.Bus
	catalog   catalog.Reader
	settings  game.Settings
	capacity  int
	matcher   *matcher.Matcher
	newTicker func(d time.Duration) game.Ticker
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.RWMutex
	rooms map[string]*game.Scheduler
}

func NewService(c Config) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		eb:        c.EventBus,
		catalog:   c.Catalog,
		settings:  c.Settings,
		capacity:  cmp.Or(c.Capacity, defaultCapacity),
		matcher:   matcher.New(c.Settings.Matcher),
		newTicker: c.NewTickerFunc,
		now:       c.Now,
		ctx:       ctx,
		cancel:    cancel,
		rooms:     make(map[string]*game.Scheduler),
	}

	if s.now == nil {
		s.now = time.Now
	}

	return s
}

// CreateRoomRequest represents a request to open a new room. The host joins it right away.
type CreateRoomRequest struct {
	Name       string
	Host       domain.Player
	Private    bool
	MaxPlayers int
	Config     domain.GameConfig
}

func (s *Service) CreateRoom(ctx context.Context, req CreateRoomRequest) (*domain.Room, error) {
	if err := s.validateCreate(&req); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate room ID: %w", err)
	}

	sc, err := game.New(game.Config{
		Room: domain.Room{
			RoomID:     id.String(),
			Name:       req.Name,
			Private:    req.Private,
			MaxPlayers: req.MaxPlayers,
			Config:     req.Config,
			CreateTime: s.now(),
		},
		Host:          req.Host,
		Settings:      s.settings,
		Catalog:       s.catalog,
		Publisher:     s.eb,
		NewTickerFunc: s.newTicker,
		Now:           s.now,
	})
	if err != nil {
		return nil, err
	}

	s.spawn(sc)

	r, err := sc.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "room: created",
		"room", r.RoomID,
		"host", req.Host.ID,
		"game_type", r.Config.GameType,
		"rounds", r.Config.Rounds,
	)

	return &r, nil
}

func (s *Service) spawn(sc *game.Scheduler) {
	s.mu.Lock()
	s.rooms[sc.ID()] = sc
	s.mu.Unlock()

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		sc.Run(s.ctx)
	}()
	go func() {
		defer s.wg.Done()
		<-sc.Done()

		s.mu.Lock()
		delete(s.rooms, sc.ID())
		s.mu.Unlock()

		slog.Info("room: removed", "room", sc.ID())
	}()
}

func (s *Service) validateCreate(req *CreateRoomRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	if n := utf8.RuneCountInString(req.Name); n == 0 || n > maxNameLength {
		return errors.Invalidf("room name must have 1 to %d characters", maxNameLength)
	}
	if req.Host.ID == "" {
		return errors.Invalidf("host is required")
	}

	c := &req.Config
	c.Mode = cmp.Or(c.Mode, domain.ModeMultiplayer)
	c.GameType = cmp.Or(c.GameType, domain.GameTypeStandard)
	c.ResponseType = cmp.Or(c.ResponseType, domain.ResponseTypeTyping)
	c.Precision = cmp.Or(c.Precision, domain.PrecisionExact)
	c.Selection = cmp.Or(c.Selection, domain.SelectionRandom)

	if !slices.Contains([]domain.Mode{domain.ModeSolo, domain.ModeMultiplayer, domain.ModeCompetitive}, c.Mode) {
		return errors.Invalidf("unknown mode %q", c.Mode)
	}
	if !slices.Contains([]domain.GameType{domain.GameTypeStandard, domain.GameTypeBattleRoyale, domain.GameTypeLives}, c.GameType) {
		return errors.Invalidf("unknown game type %q", c.GameType)
	}
	if !slices.Contains([]domain.ResponseType{domain.ResponseTypeTyping, domain.ResponseTypeQCM, domain.ResponseTypeMix}, c.ResponseType) {
		return errors.Invalidf("unknown response type %q", c.ResponseType)
	}
	if !slices.Contains([]domain.Precision{domain.PrecisionExact, domain.PrecisionFranchise}, c.Precision) {
		return errors.Invalidf("unknown precision %q", c.Precision)
	}
	if !slices.Contains([]domain.SelectionPolicy{domain.SelectionRandom, domain.SelectionThematic, domain.SelectionUnseen}, c.Selection) {
		return errors.Invalidf("unknown selection policy %q", c.Selection)
	}
	if c.Selection == domain.SelectionThematic && len(c.Themes) == 0 {
		return errors.Invalidf("thematic selection needs at least one theme")
	}
	if c.Rounds < 1 {
		return errors.Invalidf("rounds must be positive: %d", c.Rounds)
	}
	if c.GuessDuration <= 0 {
		return errors.Invalidf("guess duration must be positive: %s", c.GuessDuration)
	}

	switch {
	case c.Mode == domain.ModeSolo:
		req.MaxPlayers = 1
	case req.MaxPlayers == 0:
		req.MaxPlayers = min(defaultMaxPlayers, s.capacity)
	case req.MaxPlayers < 1 || req.MaxPlayers > s.capacity:
		return errors.Invalidf("max players must be between 1 and %d: %d", s.capacity, req.MaxPlayers)
	}

	return nil
}

func (s *Service) room(id string) (*game.Scheduler, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.rooms[id]
	if !ok {
		return nil, errors.NotFoundf("room not found: room=%s", id)
	}

	return sc, nil
}

type JoinRoomRequest struct {
	RoomID string
	Player domain.Player
}

func (s *Service) JoinRoom(ctx context.Context, req JoinRoomRequest) (*domain.Room, error) {
	if req.Player.ID == "" {
		return nil, errors.Invalidf("player is required")
	}

	sc, err := s.room(req.RoomID)
	if err != nil {
		return nil, err
	}

	r, err := sc.Join(ctx, req.Player)
	if err != nil {
		return nil, err
	}

	return &r, nil
}

type LeaveRoomRequest struct {
	RoomID   string
	PlayerID string
}

// LeaveRoom removes the player. The room is destroyed when it becomes empty.
func (s *Service) LeaveRoom(ctx context.Context, req LeaveRoomRequest) error {
	sc, err := s.room(req.RoomID)
	if err != nil {
		return err
	}

	n, err := sc.Leave(ctx, req.PlayerID)
	if err != nil {
		return err
	}
	if n == 0 {
		slog.InfoContext(ctx, "room: last player left", "room", req.RoomID)
	}

	return nil
}

type StartGameRequest struct {
	RoomID   string
	PlayerID string
}

func (s *Service) StartGame(ctx context.Context, req StartGameRequest) error {
	sc, err := s.room(req.RoomID)
	if err != nil {
		return err
	}

	return sc.Start(ctx, req.PlayerID)
}

type EndGameRequest struct {
	RoomID   string
	PlayerID string
}

// EndGame destroys the room on behalf of its host.
func (s *Service) EndGame(ctx context.Context, req EndGameRequest) error {
	if req.PlayerID == "" {
		return errors.Invalidf("player is required")
	}

	sc, err := s.room(req.RoomID)
	if err != nil {
		return err
	}

	return sc.End(ctx, req.PlayerID)
}

type SubmitGuessRequest struct {
	RoomID   string
	PlayerID string
	Text     string
	// Choice is the index of a multiple choice answer, nil for typed answers.
	Choice     *int
	ClientTime time.Time
}

func (s *Service) SubmitGuess(ctx context.Context, req SubmitGuessRequest) (*game.Ack, error) {
	sc, err := s.room(req.RoomID)
	if err != nil {
		return nil, err
	}

	g := domain.Guess{
		PlayerID:   req.PlayerID,
		Text:       strings.TrimSpace(req.Text),
		Choice:     -1,
		ClientTime: req.ClientTime,
	}
	if req.Choice != nil {
		if *req.Choice < 0 {
			return nil, errors.Invalidf("choice must not be negative: %d", *req.Choice)
		}
		g.Choice = *req.Choice
	}

	ack, err := sc.Submit(ctx, g)
	if err != nil {
		return nil, err
	}

	return &ack, nil
}

type SetConnectedRequest struct {
	RoomID    string
	PlayerID  string
	Connected bool
}

func (s *Service) SetConnected(ctx context.Context, req SetConnectedRequest) error {
	sc, err := s.room(req.RoomID)
	if err != nil {
		return err
	}

	return sc.SetConnected(ctx, req.PlayerID, req.Connected)
}

type GetRoomRequest struct {
	RoomID string
}

func (s *Service) GetRoom(ctx context.Context, req GetRoomRequest) (*domain.Room, error) {
	sc, err := s.room(req.RoomID)
	if err != nil {
		return nil, err
	}

	r, err := sc.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	return &r, nil
}

type ListRoomsRequest struct {
	// Visibility is one of VisibilityAll, VisibilityPublic, VisibilityPrivate. Empty means public.
	Visibility string
}

// ListRooms returns the summaries of the running rooms, oldest first.
func (s *Service) ListRooms(ctx context.Context, req ListRoomsRequest) ([]domain.RoomSummary, error) {
	v := cmp.Or(req.Visibility, VisibilityPublic)
	if !slices.Contains([]string{VisibilityAll, VisibilityPublic, VisibilityPrivate}, v) {
		return nil, errors.Invalidf("unknown visibility %q", req.Visibility)
	}

	s.mu.RLock()
	scs := make([]*game.Scheduler, 0, len(s.rooms))
	for _, sc := range s.rooms {
		scs = append(scs, sc)
	}
	s.mu.RUnlock()

	out := make([]domain.RoomSummary, 0, len(scs))
	for _, sc := range scs {
		r, err := sc.Snapshot(ctx)
		if errors.Is(err, errors.CodeNotFound) {
			// Stopped since the registry was read.
			continue
		}
		if err != nil {
			return nil, err
		}

		if v == VisibilityPublic && r.Private || v == VisibilityPrivate && !r.Private {
			continue
		}
		out = append(out, r.Summary())
	}

	slices.SortFunc(out, func(a, b domain.RoomSummary) int {
		return cmp.Or(a.CreateTime.Compare(b.CreateTime), strings.Compare(a.RoomID, b.RoomID))
	})

	return out, nil
}

type SuggestRequest struct {
	Query     string
	Precision domain.Precision
}

// Suggest autocompletes a guess against the whole catalog.
func (s *Service) Suggest(ctx context.Context, req SuggestRequest) ([]string, error) {
	p := cmp.Or(req.Precision, domain.PrecisionExact)
	if p != domain.PrecisionExact && p != domain.PrecisionFranchise {
		return nil, errors.Invalidf("unknown precision %q", req.Precision)
	}

	cs, err := s.catalog.All(ctx)
	if err != nil {
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("catalog unavailable"),
			errors.WithCause(err),
		)
	}

	return s.matcher.Suggest(req.Query, p, cs), nil
}

// Shutdown stops every room and waits for them.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown rooms: %w", ctx.Err())
	}
}
