package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/MoDevIO/unosim/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsPeer adapts a gorilla/websocket connection to session.Peer. Writes
// are serialized with a mutex since gorilla/websocket forbids concurrent
// writers on one connection; this is the WS analogue of runner's
// stdinWriter never interleaving half-lines.
type wsPeer struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (p *wsPeer) Send(msg session.OutboundMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteJSON(msg)
}

func (p *wsPeer) Close() error {
	return p.conn.Close()
}

// handleWebSocket upgrades the connection, allocates a Session, and runs
// the inbound read loop until the socket closes (spec §4.6, §6.2).
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %s", err)
		return
	}
	peer := &wsPeer{conn: conn}
	id := s.nextSessionID()
	sess := session.New(id, peer)
	s.table.Insert(sess)

	defer func() {
		sess.Close()
		s.table.Delete(id)
		_ = conn.Close()
	}()

	ctx := r.Context()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			// Socket closed or errored: unblocks this pump, triggers
			// cleanup above (spec §5 cancellation via closing the socket).
			return
		}
		var msg session.InboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("session %s: dropping malformed frame: %s", id, err)
			continue
		}
		if msg.Type == session.InCompile {
			s.handleWSCompile(ctx, sess, msg.Data)
			continue
		}
		sess.Dispatch(ctx, msg)
	}
}

// handleWSCompile runs the C3->C1 build pipeline for one `compile`
// inbound message (spec §2 flow) and broadcasts the resulting
// compilation_status to every connected peer, per spec §4.6
// ("Compilation status is broadcast so every connected peer sees the
// compile phases").
func (s *Server) handleWSCompile(ctx context.Context, sess *session.Session, msg json.RawMessage) {
	var req compileRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		log.Printf("dropping malformed compile frame: %s", err)
		return
	}
	bundle := toBundle(req)
	result, tcResult := s.runCompile(ctx, bundle)
	if result.Success {
		sess.SetArtifact(tcResult)
	}
	s.table.Broadcast(session.OutboundMessage{Type: session.OutCompilationStatus, Data: result})
}
