package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/victornm/blindquiz/internal/domain"
	"github.com/victornm/blindquiz/internal/errors"
	"github.com/victornm/blindquiz/internal/room"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMessage = 4096

	// Sent back on the socket for guesses submitted through it.
	notificationGuessAck = "guess.ack"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Stream relays the player's notification channel over a websocket. The player
// counts as connected while the socket is open and may send guesses through it.
func (a *API) Stream(c *gin.Context) {
	roomID, playerID := c.Param("room"), c.Param("player")

	r, err := a.rs.GetRoom(c, room.GetRoomRequest{RoomID: roomID})
	if err != nil {
		abort(c, err)
		return
	}
	if !slices.ContainsFunc(r.Players, func(p domain.GamePlayer) bool { return p.ID == playerID }) {
		abort(c, errors.NotFoundf("player not in room: room=%s player=%s", roomID, playerID))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader already replied.
		slog.WarnContext(c, "api: websocket upgrade failed", "room", roomID, "player", playerID, "error", err)
		return
	}

	base := context.WithoutCancel(c.Request.Context())
	ctx, cancel := context.WithCancel(base)
	defer cancel()

	sub := a.redis.Subscribe(ctx, a.channel(playerID))
	defer sub.Close()

	// Receive blocks until the subscription is confirmed, no message is lost after this point.
	if _, err := sub.Receive(ctx); err != nil {
		slog.ErrorContext(ctx, "api: subscribe failed", "room", roomID, "player", playerID, "error", err)
		_ = conn.Close()
		return
	}

	a.setConnected(ctx, roomID, playerID, true)
	// ctx is cancelled by then.
	defer a.setConnected(base, roomID, playerID, false)

	s := &stream{conn: conn}
	defer s.close()

	go func() {
		defer cancel()
		s.readLoop(ctx, func(in GuessInput) {
			in.PlayerID = playerID

			ack, err := a.submitGuess(ctx, roomID, in)
			if err != nil {
				_ = s.writeJSON(Notification{Event: notificationGuessAck, Data: errors.Convert(err)})
				return
			}
			_ = s.writeJSON(Notification{Event: notificationGuessAck, Data: ack})
		})
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := s.write(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				return
			}
		case <-ping.C:
			if err := s.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (a *API) setConnected(ctx context.Context, roomID, playerID string, connected bool) {
	err := a.rs.SetConnected(ctx, room.SetConnectedRequest{
		RoomID:    roomID,
		PlayerID:  playerID,
		Connected: connected,
	})
	if err != nil && !errors.Is(err, errors.CodeNotFound) {
		slog.WarnContext(ctx, "api: set connected failed", "room", roomID, "player", playerID, "error", err)
	}
}

// stream serializes writes on a websocket connection.
type stream struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *stream) write(kind int, b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(kind, b)
}

func (s *stream) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return s.write(websocket.TextMessage, b)
}

func (s *stream) readLoop(ctx context.Context, onGuess func(GuessInput)) {
	s.conn.SetReadLimit(maxMessage)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for ctx.Err() == nil {
		_, b, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var in GuessInput
		if err := json.Unmarshal(b, &in); err != nil {
			_ = s.writeJSON(Notification{Event: notificationGuessAck, Data: errors.Invalidf("invalid guess: %v", err)})
			continue
		}
		onGuess(in)
	}
}

func (s *stream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	_ = s.conn.Close()
}
