// Package session implements the session multiplexer (spec component
// C6, §4.6): one Session per connection, a dispatch table over inbound
// typed messages, and a process-wide session table that is the only
// mutable state shared across sessions (spec §5).
//
// Session generalizes the teacher's InoHandler (handler/handler.go) —
// one instance per LSP connection holding a mutex-guarded bundle of
// per-connection state — from "one clangd connection" to "one runner".
package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/MoDevIO/unosim/internal/protocol"
	"github.com/MoDevIO/unosim/internal/runner"
	"github.com/MoDevIO/unosim/internal/toolchain"
	"github.com/MoDevIO/unosim/pkg/pinset"
)

// Peer is anything a Session can send outbound messages to; satisfied
// by the websocket connection wrapper in internal/api.
type Peer interface {
	Send(msg OutboundMessage) error
	Close() error
}

// OutboundMessage is one JSON object sent to a peer, tagged by Type
// per spec §4.6/§6.2.
type OutboundMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Outbound message types (spec §4.6).
const (
	OutCompilationStatus = "compilation_status"
	OutCompilationError  = "compilation_error"
	OutSimulationStatus  = "simulation_status"
	OutSerialOutput      = "serial_output"
	OutSerialEvent       = "serial_event"
	OutPinState          = "pin_state"
	OutIORegistry        = "io_registry"
)

// Session owns at most one Runner and belongs to exactly one peer
// connection (spec §3).
type Session struct {
	ID   string
	peer Peer

	mu              sync.Mutex
	run             *runner.Runner
	lastArtifact    *toolchain.Result
	artifactStale   bool
	registry        *pinset.Registry
	pendingRegistry *pinset.Registry
}

// New creates a Session bound to one peer.
func New(id string, peer Peer) *Session {
	return &Session{
		ID:       id,
		peer:     peer,
		registry: pinset.NewRegistry(),
	}
}

// SetArtifact records the last successfully compiled artifact for this
// session, clearing the staleness flag (spec §4.6 code_changed handling).
func (s *Session) SetArtifact(result toolchain.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastArtifact = &result
	s.artifactStale = false
}

// MarkStale flags the current artifact as outdated on a code_changed
// message, and auto-stops any running simulation (spec §4.6).
func (s *Session) MarkStale() {
	s.mu.Lock()
	s.artifactStale = true
	run := s.run
	s.mu.Unlock()
	if run != nil {
		run.Stop()
	}
}

// EmitEvent implements runner.Emitter: routes a decoded sideband event
// to this session's own peer only (spec §4.6 unicast guarantee).
func (s *Session) EmitEvent(ev protocol.Event) {
	switch ev.Tag {
	case protocol.TagPinMode, protocol.TagPinValue, protocol.TagPinPWM:
		// Live GPIO transitions feed the pin_state view; the
		// authoritative operation registry is rebuilt wholesale from
		// IO_REGISTRY snapshots below (spec §4.8 "Pin view").
		s.send(OutboundMessage{Type: OutPinState, Data: ev})
	case protocol.TagSerialEvent:
		s.send(OutboundMessage{Type: OutSerialEvent, Data: ev})
	case protocol.TagIORegistryStart:
		s.mu.Lock()
		s.pendingRegistry = pinset.NewRegistry()
		s.mu.Unlock()
	case protocol.TagIOPin:
		s.applyIOPin(ev)
	case protocol.TagIORegistryEnd:
		s.finishIORegistry()
	case protocol.TagTimeFrozen, protocol.TagTimeResumed:
		s.send(OutboundMessage{Type: OutSimulationStatus, Data: ev})
	default:
		if ev.RawLog != "" {
			log.Printf("session %s: unrecognized sideband line: %s", s.ID, ev.RawLog)
		}
	}
}

// applyIOPin folds one IO_PIN snapshot line into the pending registry
// being assembled between IO_REGISTRY_START and IO_REGISTRY_END.
func (s *Session) applyIOPin(ev protocol.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingRegistry == nil {
		s.pendingRegistry = pinset.NewRegistry()
	}
	rec := s.pendingRegistry.Get(ev.IOPinLabel)
	if rec == nil {
		return
	}
	// IO_PIN is a full-replace snapshot line (spec §4.4), so the record
	// is reset and then rebuilt by replaying its op tokens through
	// Registry.Apply rather than assigning the fields directly.
	*rec = pinset.Record{Label: ev.IOPinLabel}
	for _, op := range parseOpTokens(ev.IOPinOps) {
		s.pendingRegistry.Apply(ev.IOPinLabel, ev.IOPinDefinedLine, op)
	}
	// The wire's own Mode/OverflowCount are authoritative: the child may
	// have already collapsed older ops before this snapshot was sent, so
	// replaying only the surviving tokens cannot reconstruct either value.
	rec.Mode = pinset.ModeFromCode(ev.IOPinModeCode)
	rec.OverflowCount = ev.IOPinOverflow
}

// parseOpTokens decodes "op@line" tokens carried by an IO_PIN event
// (e.g. "pinMode:1@12") into typed Op values.
func parseOpTokens(tokens []string) []pinset.Op {
	ops := make([]pinset.Op, 0, len(tokens))
	for _, tok := range tokens {
		at := indexByte(tok, '@')
		if at < 0 {
			continue
		}
		opPart, linePart := tok[:at], tok[at+1:]
		line := atoiSafe(linePart)
		kind := pinset.OpKind(opPart)
		arg := 0
		if colon := indexByte(opPart, ':'); colon >= 0 {
			kind = pinset.OpKind(opPart[:colon])
			arg = atoiSafe(opPart[colon+1:])
		}
		ops = append(ops, pinset.Op{Line: line, Kind: kind, Arg: arg})
	}
	return ops
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func atoiSafe(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func (s *Session) finishIORegistry() {
	s.mu.Lock()
	if s.pendingRegistry == nil {
		s.mu.Unlock()
		return
	}
	s.registry = s.pendingRegistry
	s.pendingRegistry = nil
	snap := s.registry.Snapshot()
	s.mu.Unlock()
	s.send(OutboundMessage{Type: OutIORegistry, Data: snap})
}

// EmitRawSerial implements runner.Emitter.
func (s *Session) EmitRawSerial(line string) {
	s.send(OutboundMessage{Type: OutSerialOutput, Data: line})
}

// EmitStatus implements runner.Emitter.
func (s *Session) EmitStatus(status runner.Status) {
	s.send(OutboundMessage{Type: OutSimulationStatus, Data: status})
}

func (s *Session) send(msg OutboundMessage) {
	if err := s.peer.Send(msg); err != nil {
		log.Printf("session %s: send failed: %s", s.ID, err)
	}
}

// StartSimulation creates a Runner bound exclusively to this session and
// starts it, provided a successful compile has already happened (spec
// §4.6 start_simulation precondition).
func (s *Session) StartSimulation(ctx context.Context, timeout time.Duration) error {
	s.mu.Lock()
	if s.lastArtifact == nil {
		s.mu.Unlock()
		return errors.New("no successful compile to simulate")
	}
	if s.run != nil && s.run.Status() != runner.StatusStopped {
		s.mu.Unlock()
		return errors.New("a simulation is already active for this session")
	}
	binary := s.lastArtifact.BinaryPath
	s.registry = pinset.NewRegistry()
	r := runner.New(binary, timeout, s)
	s.run = r
	s.mu.Unlock()
	return r.Start(ctx)
}

// StopSimulation stops the active runner, if any, and keeps the compiled
// artifact (spec §4.6).
func (s *Session) StopSimulation() {
	s.mu.Lock()
	r := s.run
	s.mu.Unlock()
	if r != nil {
		r.Stop()
	}
}

// PauseSimulation pauses the runner when it is running.
func (s *Session) PauseSimulation() error {
	r := s.activeRunner()
	if r == nil {
		return errors.New("no active simulation")
	}
	return r.Pause()
}

// ResumeSimulation resumes the runner when it is paused.
func (s *Session) ResumeSimulation() error {
	r := s.activeRunner()
	if r == nil {
		return errors.New("no active simulation")
	}
	return r.Resume()
}

// SendSerial forwards serial input to the runner, rejected unless
// running (spec §4.6; also rejected while paused per §5).
func (s *Session) SendSerial(payload string) error {
	r := s.activeRunner()
	if r == nil {
		return errors.New("no active simulation")
	}
	return r.SendSerial(payload)
}

// SetPinValue forwards a pin write, allowed running or paused.
func (s *Session) SetPinValue(pin string, value int) error {
	r := s.activeRunner()
	if r == nil {
		return errors.New("no active simulation")
	}
	return r.SetPin(pin, value)
}

func (s *Session) activeRunner() *runner.Runner {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}

// Close force-stops the runner and releases resources; called on peer
// disconnect (spec §4.6 cleanup).
func (s *Session) Close() {
	s.mu.Lock()
	r := s.run
	s.run = nil
	s.mu.Unlock()
	if r != nil {
		r.Stop()
	}
}
