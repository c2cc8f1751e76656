package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tatianab/lesson-game/internal/actions"
	"github.com/tatianab/lesson-game/internal/hub"
	"github.com/tatianab/lesson-game/internal/models"
	"github.com/tatianab/lesson-game/internal/storage"
	"github.com/tatianab/lesson-game/internal/systems"
)

const quizYAML = `title: Fractions
world:
  type: freeform
questionIntegration:
  trigger: action
victory:
  type: score
questions:
  - id: q1
    type: multiple_choice
    prompt: What is 1/2 + 1/4?
    options: ["3/4", "2/6"]
    correctAnswer: "3/4"
`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	h := hub.New(nil)
	t.Cleanup(h.Close)
	srv := httptest.NewServer(NewServer(h).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("%s %s: decode %s: %v", method, url, data, err)
		}
	}
	return resp.StatusCode
}

func createSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	var created sessionResponse
	if code := do(t, http.MethodPost, srv.URL+"/sessions", quizYAML, &created); code != http.StatusCreated {
		t.Fatalf("create = %d", code)
	}
	if created.ID == "" || created.Title != "Fractions" || created.State.Phase != models.PhaseLobby {
		t.Fatalf("created = %+v", created)
	}
	return created.ID
}

func answerBody(playerID, answer string) string {
	data, _ := json.Marshal(actions.Action{
		PlayerID: playerID,
		Payload:  actions.AnswerQuestion{QuestionID: "q1", Answer: models.Single(answer)},
	})
	return string(data)
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)
	base := srv.URL + "/sessions/" + id

	var p models.PlayerState
	if code := do(t, http.MethodPost, base+"/players", `{"id":"a","name":"Ada"}`, &p); code != http.StatusCreated || p.Name != "Ada" {
		t.Fatalf("add player = %d %+v", code, p)
	}
	if code := do(t, http.MethodPost, base+"/players", `{"id":"b"}`, nil); code != http.StatusCreated {
		t.Fatalf("add player b = %d", code)
	}
	if code := do(t, http.MethodDelete, base+"/players/b", "", nil); code != http.StatusNoContent {
		t.Fatalf("remove player = %d", code)
	}
	if code := do(t, http.MethodPost, base+"/start", "", nil); code != http.StatusOK {
		t.Fatalf("start = %d", code)
	}
	var snap sessionResponse
	if code := do(t, http.MethodPost, base+"/question?index=0", "", &snap); code != http.StatusOK {
		t.Fatalf("question = %d", code)
	}
	if snap.State.Phase != models.PhaseQuestion || snap.State.ActiveQuestion == nil {
		t.Fatalf("after question: %+v", snap.State)
	}

	var res actions.Result
	if code := do(t, http.MethodPost, base+"/actions", answerBody("a", "3/4"), &res); code != http.StatusOK || !res.Success {
		t.Fatalf("answer = %d %+v", code, res)
	}
	if code := do(t, http.MethodPost, base+"/next", "", &snap); code != http.StatusOK {
		t.Fatalf("next = %d", code)
	}
	if snap.State.Phase != models.PhaseComplete || len(snap.State.Winners) != 1 || snap.State.Winners[0] != "a" {
		t.Fatalf("final state = %+v", snap.State)
	}

	var board []systems.Ranking
	if code := do(t, http.MethodGet, base+"/leaderboard", "", &board); code != http.StatusOK || len(board) != 1 || board[0].Score == 0 || board[0].Rank != 1 {
		t.Fatalf("leaderboard = %d %+v", code, board)
	}
	var events []models.GameEvent
	if code := do(t, http.MethodGet, base+"/events?from=1", "", &events); code != http.StatusOK || len(events) == 0 {
		t.Fatalf("events = %d %d", code, len(events))
	}
	if events[len(events)-1].Type != models.EventGameComplete {
		t.Errorf("last event = %s", events[len(events)-1].Type)
	}
	var spec models.GameSpecification
	if code := do(t, http.MethodGet, base+"/spec", "", &spec); code != http.StatusOK || len(spec.Questions) != 1 {
		t.Fatalf("spec = %d %+v", code, spec)
	}
}

func TestErrorStatuses(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)
	base := srv.URL + "/sessions/" + id

	tests := []struct {
		name, method, url, body string
		want                    int
	}{
		{"bad spec", http.MethodPost, srv.URL + "/sessions", "world:\n  type: hex\n", http.StatusBadRequest},
		{"unknown session", http.MethodGet, srv.URL + "/sessions/nope", "", http.StatusNotFound},
		{"unknown op", http.MethodPost, base + "/dance", "", http.StatusNotFound},
		{"wrong phase", http.MethodPost, base + "/results", "", http.StatusConflict},
		{"missing player id", http.MethodPost, base + "/players", `{"name":"x"}`, http.StatusBadRequest},
		{"remove unknown player", http.MethodDelete, base + "/players/ghost", "", http.StatusNotFound},
		{"bad action", http.MethodPost, base + "/actions", `{"playerId":"a"}`, http.StatusBadRequest},
		{"bad from", http.MethodGet, base + "/events?from=-1", "", http.StatusBadRequest},
		{"bad index", http.MethodPost, base + "/question?index=x", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body errorResponse
			if code := do(t, tt.method, tt.url, tt.body, &body); code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", code, tt.want, body.Error)
			}
			if body.Error == "" {
				t.Error("missing error message")
			}
		})
	}

	if code := do(t, http.MethodPost, base+"/start", "", nil); code != http.StatusOK {
		t.Fatalf("start = %d", code)
	}
	if code := do(t, http.MethodPost, base+"/start", "", nil); code != http.StatusConflict {
		t.Fatalf("second start = %d", code)
	}
	if code := do(t, http.MethodDelete, base, "", nil); code != http.StatusNoContent {
		t.Fatalf("delete = %d", code)
	}
	if code := do(t, http.MethodGet, base, "", nil); code != http.StatusNotFound {
		t.Fatalf("get deleted = %d", code)
	}
}

func TestListSessions(t *testing.T) {
	srv := newTestServer(t)
	createSession(t, srv)
	createSession(t, srv)
	var sums []storage.Summary
	if code := do(t, http.MethodGet, srv.URL+"/sessions", "", &sums); code != http.StatusOK || len(sums) != 2 || sums[0].Title != "Fractions" {
		t.Fatalf("list = %d %+v", code, sums)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn, typ string) StreamMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read %s: %v", typ, err)
		}
		var msg StreamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatal(err)
		}
		if msg.Type == typ {
			return msg
		}
	}
}

func TestStream(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)
	base := srv.URL + "/sessions/" + id
	do(t, http.MethodPost, base+"/players", `{"id":"a","name":"Ada"}`, nil)

	url := "ws" + strings.TrimPrefix(base, "http") + "/stream?player=a"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	})

	first := readMessage(t, conn, MessageSnapshot)
	if first.State == nil || first.State.Phase != models.PhaseLobby || len(first.Players) != 1 {
		t.Fatalf("initial snapshot = %+v", first)
	}

	do(t, http.MethodPost, base+"/start", "", nil)
	do(t, http.MethodPost, base+"/question", "", nil)
	for {
		msg := readMessage(t, conn, MessageSnapshot)
		if msg.State.Phase == models.PhaseQuestion {
			break
		}
	}

	// The socket's player overrides the action's playerId.
	if err := conn.WriteMessage(websocket.TextMessage, []byte(answerBody("someone-else", "3/4"))); err != nil {
		t.Fatal(err)
	}
	msg := readMessage(t, conn, MessageResult)
	if msg.Result == nil || !msg.Result.Success {
		t.Fatalf("result = %+v", msg.Result)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`not json`)); err != nil {
		t.Fatal(err)
	}
	if msg := readMessage(t, conn, MessageError); msg.Error == "" {
		t.Fatal("expected decode error")
	}
}

func TestStreamUnknownSession(t *testing.T) {
	srv := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/missing/stream"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("resp = %+v", resp)
	}
	resp.Body.Close()
}
