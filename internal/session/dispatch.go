package session

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/pkg/errors"
)

// Inbound message types (spec §4.6, §2 flow).
const (
	// InCompile triggers the C3->C1 build pipeline for this connection;
	// handled by the api package (which owns the compiler), not here,
	// since the result is also broadcast to every connected peer.
	InCompile          = "compile"
	InStartSimulation  = "start_simulation"
	InStopSimulation   = "stop_simulation"
	InPauseSimulation  = "pause_simulation"
	InResumeSimulation = "resume_simulation"
	InSerialInput      = "serial_input"
	InSetPinValue      = "set_pin_value"
	InCodeChanged      = "code_changed"
)

// InboundMessage is one raw JSON object received over the websocket,
// tagged by Type (spec §4.6, §6.2). Schema validation is mandatory:
// invalid frames are logged and dropped, never crash the session.
type InboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type startSimulationPayload struct {
	TimeoutMs int `json:"timeoutMs"`
}

type serialInputPayload struct {
	Payload string `json:"payload"`
}

type setPinValuePayload struct {
	Pin   string `json:"pin"`
	Value int    `json:"value"`
}

// Dispatch routes one inbound message to the corresponding Session
// operation, following the preconditions table in spec §4.6. It never
// returns an error to the caller: malformed requests and precondition
// violations are logged and the frame is dropped (spec §7 taxonomy #1).
func (s *Session) Dispatch(ctx context.Context, msg InboundMessage) {
	switch msg.Type {
	case InStartSimulation:
		var p startSimulationPayload
		_ = json.Unmarshal(msg.Data, &p)
		timeout := time.Duration(p.TimeoutMs) * time.Millisecond
		if err := s.StartSimulation(ctx, timeout); err != nil {
			s.sendCompilationError(err)
		}
	case InStopSimulation:
		s.StopSimulation()
	case InPauseSimulation:
		if err := s.PauseSimulation(); err != nil {
			log.Printf("session %s: pause rejected: %s", s.ID, err)
		}
	case InResumeSimulation:
		if err := s.ResumeSimulation(); err != nil {
			log.Printf("session %s: resume rejected: %s", s.ID, err)
		}
	case InSerialInput:
		var p serialInputPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			log.Printf("session %s: malformed serial_input: %s", s.ID, err)
			return
		}
		if err := s.SendSerial(p.Payload); err != nil {
			log.Printf("session %s: serial_input rejected: %s", s.ID, err)
		}
	case InSetPinValue:
		var p setPinValuePayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			log.Printf("session %s: malformed set_pin_value: %s", s.ID, err)
			return
		}
		if err := s.SetPinValue(p.Pin, p.Value); err != nil {
			log.Printf("session %s: set_pin_value rejected: %s", s.ID, err)
		}
	case InCodeChanged:
		s.MarkStale()
	default:
		log.Printf("session %s: dropping unknown inbound message type %q", s.ID, msg.Type)
	}
}

func (s *Session) sendCompilationError(err error) {
	s.send(OutboundMessage{Type: OutCompilationError, Data: errors.Cause(err).Error()})
}
