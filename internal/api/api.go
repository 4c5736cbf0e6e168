package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/skip2/go-qrcode"

	"github.com/victornm/blindquiz/internal/domain"
	"github.com/victornm/blindquiz/internal/errors"
	"github.com/victornm/blindquiz/internal/event"
	"github.com/victornm/blindquiz/internal/leaderboard"
	"github.com/victornm/blindquiz/internal/room"
)

const (
	defaultQRSize = 256
	maxQRSize     = 1024
)

type Config struct {
	Router       gin.IRouter
	EventBus     *event.Bus
	Room         *room.Service
	Leaderboard  *leaderboard.Service
	Redis        Redis
	PubsubPrefix string
	// PublicURL is the address players open to join a room, encoded in the QR code.
	PublicURL string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

type API struct {
	rs *room.Service
	ls *leaderboard.Service

	redis     Redis
	prefix    string
	publicURL string
}

func New(c Config) *API {
	a := &API{
		rs:        c.Room,
		ls:        c.Leaderboard,
		redis:     c.Redis,
		prefix:    c.PubsubPrefix,
		publicURL: strings.TrimSuffix(c.PublicURL, "/"),
	}

	// HTTP APIs
	v1 := c.Router.Group("/v1")
	v1.POST("/rooms", a.CreateRoom)
	v1.GET("/rooms", a.ListRooms)
	v1.GET("/rooms/:room", a.GetRoom)
	v1.POST("/rooms/:room/players", a.JoinRoom)
	v1.DELETE("/rooms/:room/players/:player", a.LeaveRoom)
	v1.POST("/rooms/:room/start", a.StartGame)
	v1.POST("/rooms/:room/end", a.EndGame)
	v1.POST("/rooms/:room/guesses", a.SubmitGuess)
	v1.GET("/rooms/:room/leaderboard", a.GetLeaderboard)
	v1.GET("/rooms/:room/qr", a.GetQRCode)
	v1.GET("/rooms/:room/players/:player/ws", a.Stream)
	v1.GET("/suggestions", a.Suggest)

	// Register event handlers
	for _, name := range notifiedEvents {
		c.EventBus.Subscribe(name, a.PublishNotification)
	}

	return a
}

func (a *API) CreateRoom(c *gin.Context) {
	var in CreateRoomInput
	if !bind(c, &in) {
		return
	}

	r, err := a.rs.CreateRoom(c, room.CreateRoomRequest{
		Name:       in.Name,
		Host:       in.Host.toDomain(),
		Private:    in.Private,
		MaxPlayers: in.MaxPlayers,
		Config:     in.Config.toDomain(),
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, newRoom(r))
}

func (a *API) ListRooms(c *gin.Context) {
	rs, err := a.rs.ListRooms(c, room.ListRoomsRequest{
		Visibility: c.Query("visibility"),
	})
	if err != nil {
		abort(c, err)
		return
	}

	out := make([]RoomSummary, 0, len(rs))
	for _, r := range rs {
		out = append(out, newRoomSummary(r))
	}

	c.JSON(http.StatusOK, gin.H{"rooms": out})
}

func (a *API) GetRoom(c *gin.Context) {
	r, err := a.rs.GetRoom(c, room.GetRoomRequest{RoomID: c.Param("room")})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, newRoom(r))
}

func (a *API) JoinRoom(c *gin.Context) {
	var in PlayerInput
	if !bind(c, &in) {
		return
	}

	r, err := a.rs.JoinRoom(c, room.JoinRoomRequest{
		RoomID: c.Param("room"),
		Player: in.toDomain(),
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, newRoom(r))
}

func (a *API) LeaveRoom(c *gin.Context) {
	err := a.rs.LeaveRoom(c, room.LeaveRoomRequest{
		RoomID:   c.Param("room"),
		PlayerID: c.Param("player"),
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) StartGame(c *gin.Context) {
	var in PlayerActionInput
	if !bind(c, &in) {
		return
	}

	if err := a.rs.StartGame(c, room.StartGameRequest{RoomID: c.Param("room"), PlayerID: in.PlayerID}); err != nil {
		abort(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) EndGame(c *gin.Context) {
	var in PlayerActionInput
	if !bind(c, &in) {
		return
	}

	if err := a.rs.EndGame(c, room.EndGameRequest{RoomID: c.Param("room"), PlayerID: in.PlayerID}); err != nil {
		abort(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) SubmitGuess(c *gin.Context) {
	var in GuessInput
	if !bind(c, &in) {
		return
	}

	ack, err := a.submitGuess(c, c.Param("room"), in)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, ack)
}

func (a *API) submitGuess(ctx context.Context, roomID string, in GuessInput) (Ack, error) {
	if in.PlayerID == "" {
		return Ack{}, errors.Invalidf("player_id is required")
	}

	ack, err := a.rs.SubmitGuess(ctx, room.SubmitGuessRequest{
		RoomID:     roomID,
		PlayerID:   in.PlayerID,
		Text:       in.Text,
		Choice:     in.Choice,
		ClientTime: in.ClientTime,
	})
	if err != nil {
		return Ack{}, err
	}

	return newAck(ack), nil
}

func (a *API) GetLeaderboard(c *gin.Context) {
	l, err := a.ls.GetLeaderboard(c, leaderboard.GetLeaderboardRequest{RoomID: c.Param("room")})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, newLeaderboard(l))
}

// GetQRCode renders a PNG QR code of the room join link.
func (a *API) GetQRCode(c *gin.Context) {
	r, err := a.rs.GetRoom(c, room.GetRoomRequest{RoomID: c.Param("room")})
	if err != nil {
		abort(c, err)
		return
	}

	size := defaultQRSize
	if s := c.Query("size"); s != "" {
		if size, err = strconv.Atoi(s); err != nil || size < 64 || size > maxQRSize {
			abort(c, errors.Invalidf("size must be between 64 and %d", maxQRSize))
			return
		}
	}

	png, err := qrcode.Encode(a.joinURL(r), qrcode.Medium, size)
	if err != nil {
		abort(c, err)
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

func (a *API) joinURL(r *domain.Room) string {
	return a.publicURL + "/rooms/" + r.RoomID
}

func (a *API) Suggest(c *gin.Context) {
	out, err := a.rs.Suggest(c, room.SuggestRequest{
		Query:     c.Query("q"),
		Precision: domain.Precision(c.Query("precision")),
	})
	if err != nil {
		abort(c, err)
		return
	}

	if out == nil {
		out = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": out})
}

func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		abort(c, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid request body: %v", err),
			errors.WithCause(err),
		))
		return false
	}

	return true
}

// abort writes err with the HTTP status of its code.
func abort(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c, "api: request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), e)
}
