package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tatianab/lesson-game/internal/actions"
	"github.com/tatianab/lesson-game/internal/models"
	"github.com/tatianab/lesson-game/internal/state"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Stream message types.
const (
	MessageSnapshot = "snapshot"
	MessageResult   = "result"
	MessageError    = "error"
)

// StreamMessage is one server-to-client websocket frame.
type StreamMessage struct {
	Type    string                        `json:"type"`
	State   *models.GameState             `json:"state,omitempty"`
	Players map[string]models.PlayerState `json:"players,omitempty"`
	Result  *actions.Result               `json:"result,omitempty"`
	Error   string                        `json:"error,omitempty"`
}

// handleStream pushes the session's snapshot after every change. Clients may
// send actions on the same socket; with ?player=<id> every action is sent as
// that player.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	player := r.URL.Query().Get("player")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Printf("stream %s: upgrade failed: %v", sess.ID, err)
		return
	}
	defer conn.Close()

	// Only the newest snapshot matters; older unsent ones are dropped.
	snaps := make(chan state.Snapshot, 1)
	push := func(snap state.Snapshot) {
		for {
			select {
			case snaps <- snap:
				return
			default:
			}
			select {
			case <-snaps:
			default:
			}
		}
	}
	replies := make(chan StreamMessage, 16)
	done := make(chan struct{})

	push(sess.Runner.Snapshot())
	unsubscribe := sess.Runner.StateManager().Subscribe(func(state.Snapshot) {
		push(sess.Runner.Snapshot())
	})
	defer unsubscribe()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writeLoop(conn, snaps, replies, done)
	}()

	conn.SetReadLimit(MaxBodyBytes)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		msg := StreamMessage{Type: MessageResult}
		a, err := actions.ParseAction(data)
		if err != nil {
			msg = StreamMessage{Type: MessageError, Error: err.Error()}
		} else {
			if player != "" {
				a.PlayerID = player
			}
			res := sess.Runner.ProcessAction(r.Context(), a)
			msg.Result = &res
		}
		select {
		case replies <- msg:
		case <-done:
		}
	}
	close(done)
	wg.Wait()
}

func (s *Server) writeLoop(conn *websocket.Conn, snaps <-chan state.Snapshot, replies <-chan StreamMessage, done <-chan struct{}) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	write := func(msg StreamMessage) bool {
		data, err := json.Marshal(msg)
		if err != nil {
			s.log.Printf("stream: marshal %s: %v", msg.Type, err)
			return true
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, data) == nil
	}
	for {
		var ok bool
		select {
		case <-done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case snap := <-snaps:
			ok = write(StreamMessage{Type: MessageSnapshot, State: &snap.State, Players: snap.Players})
		case msg := <-replies:
			ok = write(msg)
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			ok = conn.WriteMessage(websocket.PingMessage, nil) == nil
		}
		if !ok {
			// Unblock the reader.
			conn.Close()
			return
		}
	}
}
