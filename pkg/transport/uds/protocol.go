// Package uds is the NDJSON control protocol spoken over a Unix domain
// socket while a capture is running.
package uds

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/modoterra/tailsync/pkg/stats"
)

var msgCounter atomic.Uint64

// MsgType identifies the kind of message.
type MsgType string

const (
	MsgTypeReq MsgType = "req"
	MsgTypeRes MsgType = "res"
	MsgTypeEvt MsgType = "evt"
)

// Message is the NDJSON envelope for all communication.
type Message struct {
	Type   MsgType         `json:"type"`
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// UnmarshalData decodes the message payload into v.
func (m Message) UnmarshalData(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%s: empty payload", m.Method)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("%s: decode payload: %w", m.Method, err)
	}
	return nil
}

func newMessage(typ MsgType, id, method string, data any) (Message, error) {
	msg := Message{Type: typ, ID: id, Method: method}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return Message{}, fmt.Errorf("marshal %s: %w", method, err)
		}
		msg.Data = b
	}
	return msg, nil
}

// NewRequest creates a new request message with a unique ID.
func NewRequest(method string, data any) (Message, error) {
	return newMessage(MsgTypeReq, fmt.Sprintf("req-%d", msgCounter.Add(1)), method, data)
}

// NewResponse creates a response to a request.
func NewResponse(reqID, method string, data any) (Message, error) {
	return newMessage(MsgTypeRes, reqID, method, data)
}

// NewErrorResponse creates an error response.
func NewErrorResponse(reqID, method, errMsg string) Message {
	return Message{
		Type:   MsgTypeRes,
		ID:     reqID,
		Method: method,
		Error:  errMsg,
	}
}

// NewEvent creates a server-pushed event.
func NewEvent(method string, data any) (Message, error) {
	return newMessage(MsgTypeEvt, fmt.Sprintf("evt-%d", msgCounter.Add(1)), method, data)
}

// Methods
const (
	MethodPing    = "Ping"
	MethodStats   = "Stats"
	MethodSources = "Sources"

	EventStatsDelta     = "stats.delta"
	EventCaptureStopped = "capture.stopped"
)

// PingResponse is the response to a Ping request.
type PingResponse struct {
	Pong  bool   `json:"pong"`
	RunID string `json:"run_id,omitempty"`
}

// StatsResponse is the response to a Stats request.
type StatsResponse struct {
	RunID     string              `json:"run_id"`
	StartedAt time.Time           `json:"started_at"`
	Precision time.Duration       `json:"precision"`
	Output    string              `json:"output"`
	Sources   []stats.SourceStats `json:"sources"`
}

// SourcesResponse lists the tailed sources in registration order.
type SourcesResponse struct {
	Sources []string `json:"sources"`
}

// StoppedEvent is pushed once when the capture phase ends, before the report
// is generated and the socket closes.
type StoppedEvent struct {
	RunID   string              `json:"run_id"`
	Sources []stats.SourceStats `json:"sources"`
}
