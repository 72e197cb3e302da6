package match

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"shogi_backend/internal/domain/match"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSCommand is what a connected player sends.
type WSCommand struct {
	Type  string `json:"type"` // move, undo, resign, bot
	Move  string `json:"move,omitempty"`
	Count int    `json:"count,omitempty"`
}

// WSEvent is what the server pushes: a state after every change, or an
// error for the sender only.
type WSEvent struct {
	Type  string       `json:"type"`
	State *match.State `json:"state,omitempty"`
	Error string       `json:"error,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// closeFinished sends a normal close frame and drops the connection.
func (c *wsClient) closeFinished() {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "match finished")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = c.conn.Close()
}

func (c *wsClient) send(event WSEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(event)
}

// Hub fans match states out to every socket watching the match, keyed by
// public code. Public codes are reused after a match finishes, so a room is
// closed once it has seen the final state.
type Hub struct {
	log   *zap.SugaredLogger
	mu    sync.RWMutex
	rooms map[string]map[*wsClient]struct{}
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		log:   log,
		rooms: make(map[string]map[*wsClient]struct{}),
	}
}

func (h *Hub) join(room string, c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*wsClient]struct{})
	}
	h.rooms[room][c] = struct{}{}
}

func (h *Hub) leave(room string, c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms[room], c)
	if len(h.rooms[room]) == 0 {
		delete(h.rooms, room)
	}
}

func (h *Hub) Watchers(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) Broadcast(state *match.State) {
	if state == nil {
		return
	}
	room := state.KeyPublic
	finished := state.Status == match.StatusFinished

	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		clients = append(clients, c)
	}
	if finished {
		delete(h.rooms, room)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.send(WSEvent{Type: "state", State: state}); err != nil {
			h.log.Warnw("websocket write failed", "match", room, "error", err)
			_ = c.conn.Close()
			h.leave(room, c)
			continue
		}
		if finished {
			c.closeFinished()
		}
	}
}

// HandleWS streams the match to the caller. With ?player_id= the socket also
// accepts commands from that player; without it the caller only watches.
func (h *MatchHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	playerID := r.URL.Query().Get("player_id")

	state, err := h.matchUC.State(r.Context(), key)
	if err != nil {
		h.writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorf("websocket upgrade: %v", err)
		return
	}
	client := &wsClient{conn: conn}
	if state.Status == match.StatusFinished {
		if err = client.send(WSEvent{Type: "state", State: state}); err == nil {
			client.closeFinished()
		}
		_ = conn.Close()
		return
	}

	room := state.KeyPublic
	h.hub.join(room, client)
	defer func() {
		h.hub.leave(room, client)
		_ = conn.Close()
	}()

	if err = client.send(WSEvent{Type: "state", State: state}); err != nil {
		return
	}

	for {
		var cmd WSCommand
		if err = conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warnw("websocket read failed", "match", room, "error", err)
			}
			return
		}
		if playerID == "" {
			_ = client.send(WSEvent{Type: "error", Error: "spectators cannot send commands"})
			continue
		}

		next, err := h.runCommand(r.Context(), key, playerID, cmd)
		if err != nil {
			_ = client.send(WSEvent{Type: "error", Error: err.Error()})
			continue
		}
		h.hub.Broadcast(next)
	}
}

func (h *MatchHandler) runCommand(ctx context.Context, key, playerID string, cmd WSCommand) (*match.State, error) {
	switch cmd.Type {
	case "move":
		return h.matchUC.PlayMove(ctx, key, match.MoveRequest{PlayerID: playerID, Move: cmd.Move})
	case "undo":
		return h.matchUC.Undo(ctx, key, match.UndoRequest{PlayerID: playerID, Count: cmd.Count})
	case "resign":
		return h.matchUC.Resign(ctx, key, match.ResignRequest{PlayerID: playerID})
	case "bot":
		return h.matchUC.RequestBotMove(ctx, key, match.BotMoveRequest{PlayerID: playerID})
	default:
		return nil, unknownCommand(cmd.Type)
	}
}

type unknownCommand string

func (u unknownCommand) Error() string {
	return "unknown command " + string(u)
}
