package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Ryo-cool/go-concurrency-learner/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Stream frame types
const (
	FrameRun    = "run"
	FrameCancel = "cancel"
	FrameOutput = "output"
	FrameDone   = "done"
	FrameBusy   = "busy"
	FrameError  = "error"
)

// StreamMessage is one websocket frame in either direction
type StreamMessage struct {
	Type    string               `json:"type"`
	Code    string               `json:"code,omitempty"`
	Record  *models.OutputRecord `json:"record,omitempty"`
	Outcome string               `json:"outcome,omitempty"`
	Message string               `json:"message,omitempty"`
}

// streamConn serializes writes; gorilla connections allow one concurrent writer
type streamConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *streamConn) send(msg StreamMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal stream message", "error", err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("failed to send stream message", "error", err)
		return err
	}
	return nil
}

// handleSessionStream runs code over a websocket and pushes records as they are produced
func (s *Server) handleSessionStream(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	sc := &streamConn{conn: conn}
	slog.Info("stream websocket connected", "session_id", sess.ID)

	unsubscribe := sess.Subscribe(func(rec models.OutputRecord) {
		sc.send(StreamMessage{Type: FrameOutput, Record: &rec})
	})
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket read error", "error", err)
			}
			break
		}

		var msg StreamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			sc.send(StreamMessage{Type: FrameError, Message: "invalid message format"})
			continue
		}

		switch msg.Type {
		case FrameRun:
			wg.Add(1)
			go func(code string) {
				defer wg.Done()
				sess.Touch(s.now())
				if _, started := sess.Client.Execute(ctx, code); !started {
					sc.send(StreamMessage{Type: FrameBusy})
					return
				}
				done := StreamMessage{Type: FrameDone}
				if run := sess.Client.LastRun(); run != nil {
					done.Outcome = string(run.Outcome)
				}
				sc.send(done)
			}(msg.Code)
		case FrameCancel:
			sess.Client.Cancel()
		default:
			sc.send(StreamMessage{Type: FrameError, Message: "unknown message type: " + msg.Type})
		}
	}

	// A run started over this connection is abandoned with it.
	cancel()
	slog.Info("stream websocket disconnected", "session_id", sess.ID)
}
