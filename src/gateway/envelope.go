package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"personal/cordterm/src/model"
	"personal/cordterm/src/opcodes"
)

// Event names carried in the t field of Dispatch envelopes.
const (
	EventReady          = "READY"
	EventPresenceUpdate = "PRESENCE_UPDATE"
	EventMessageCreate  = "MESSAGE_CREATE"
)

// Envelope is one gateway message: {"op", "d", "s", "t"}.
type Envelope struct {
	Op opcodes.Opcode
	D  Payload
	S  *int64
	T  *string
}

// Event returns the t field, or "" when it is absent.
func (e Envelope) Event() string {
	if e.T == nil {
		return ""
	}
	return *e.T
}

// Payload is the d field. The set of implementations is closed; which one a
// frame decodes into is selected by op and, for Dispatch, by t.
type Payload interface {
	payload()
}

type HelloData struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

// Interval is the heartbeat interval as a duration.
func (h *HelloData) Interval() time.Duration {
	return time.Duration(h.HeartbeatInterval) * time.Millisecond
}

type IdentifyData struct {
	Token        string             `json:"token"`
	Capabilities Capabilities       `json:"capabilities"`
	Properties   IdentifyProperties `json:"properties"`

	// Compress asks the gateway for zlib-compressed binary frames.
	Compress bool `json:"compress,omitempty"`
}

type IdentifyProperties struct {
	OS               string `json:"os"`
	Browser          string `json:"browser"`
	BrowserUserAgent string `json:"browser_user_agent"`
}

type ReadyData struct {
	Version   int        `json:"v,omitempty"`
	SessionID string     `json:"session_id"`
	User      model.User `json:"user"`
}

type PresenceUpdateData struct {
	User         model.User         `json:"user"`
	Status       string             `json:"status"`
	LastModified int64              `json:"last_modified,omitempty"`
	ClientStatus model.ClientStatus `json:"client_status"`
	Activities   []model.Activity   `json:"activities"`
}

type MessageCreateData struct {
	model.Message
}

// RawDispatch is the payload of a Dispatch event this client does not model.
// It holds compact JSON.
type RawDispatch json.RawMessage

func (r RawDispatch) MarshalJSON() ([]byte, error) { return json.RawMessage(r).MarshalJSON() }

// RawPayload is the payload of an opcode this client does not interpret, such
// as the resumable flag of InvalidSession. It holds compact JSON.
type RawPayload json.RawMessage

func (r RawPayload) MarshalJSON() ([]byte, error) { return json.RawMessage(r).MarshalJSON() }

func (*HelloData) payload()          {}
func (*IdentifyData) payload()       {}
func (*ReadyData) payload()          {}
func (*PresenceUpdateData) payload() {}
func (*MessageCreateData) payload()  {}
func (RawDispatch) payload()         {}
func (RawPayload) payload()          {}

// HeartbeatEnvelope is {"op":1,"d":null,"s":null,"t":null}.
func HeartbeatEnvelope() Envelope {
	return Envelope{Op: opcodes.Heartbeat}
}

func IdentifyEnvelope(data *IdentifyData) Envelope {
	return Envelope{Op: opcodes.Identify, D: data}
}

type wireEnvelope struct {
	Op *int            `json:"op"`
	D  json.RawMessage `json:"d"`
	S  *int64          `json:"s"`
	T  *string         `json:"t"`
}

type outgoingEnvelope struct {
	Op int     `json:"op"`
	D  Payload `json:"d"`
	S  *int64  `json:"s"`
	T  *string `json:"t"`
}

// Encode serializes e. It fails with ErrSchemaMismatch when the payload
// variant does not belong to e's opcode and event name.
func Encode(e Envelope) ([]byte, error) {
	if err := checkPayload(e.Op, e.Event(), e.D); err != nil {
		return nil, fmt.Errorf("gateway: encode: %w", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(outgoingEnvelope{Op: int(e.Op), D: e.D, S: e.S, T: e.T}); err != nil {
		return nil, fmt.Errorf("gateway: encode op %s: %w", e.Op, err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode parses exactly one text frame. The op and t fields are read first
// and select the single payload shape that is attempted.
func Decode(raw []byte) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(raw, &w); err != nil {
		return Envelope{}, &DecodeError{Kind: ErrMalformedFrame, Raw: string(raw), Err: err}
	}
	if w.Op == nil {
		return Envelope{}, &DecodeError{Kind: ErrMalformedFrame, Raw: string(raw), Err: errors.New("missing op")}
	}

	env := Envelope{Op: opcodes.Opcode(*w.Op), S: w.S, T: w.T}
	d, err := decodePayload(env.Op, env.Event(), w.D)
	if err != nil {
		return Envelope{}, &DecodeError{
			Kind:  ErrSchemaMismatch,
			Op:    env.Op,
			Event: env.Event(),
			Raw:   string(raw),
			Err:   err,
		}
	}
	env.D = d
	return env, nil
}

func decodePayload(op opcodes.Opcode, event string, d json.RawMessage) (Payload, error) {
	absent := len(d) == 0 || bytes.Equal(d, []byte("null"))

	switch op {
	case opcodes.Hello:
		if absent {
			return nil, errors.New("hello without payload")
		}
		var h struct {
			HeartbeatInterval *int64 `json:"heartbeat_interval"`
		}
		if err := json.Unmarshal(d, &h); err != nil {
			return nil, err
		}
		if h.HeartbeatInterval == nil {
			return nil, errors.New("missing heartbeat_interval")
		}
		if *h.HeartbeatInterval <= 0 {
			return nil, fmt.Errorf("invalid heartbeat_interval %d", *h.HeartbeatInterval)
		}
		return &HelloData{HeartbeatInterval: *h.HeartbeatInterval}, nil

	case opcodes.Identify:
		if absent {
			return nil, errors.New("identify without payload")
		}
		data := &IdentifyData{}
		if err := unmarshalRequired(d, data, "token"); err != nil {
			return nil, err
		}
		return data, nil

	case opcodes.Dispatch:
		if absent {
			return nil, nil
		}
		if !isObject(d) {
			return nil, errors.New("dispatch payload is not an object")
		}
		switch event {
		case "":
			return nil, errors.New("dispatch payload without event name")
		case EventReady:
			data := &ReadyData{}
			if err := unmarshalRequired(d, data, "session_id"); err != nil {
				return nil, err
			}
			return data, nil
		case EventPresenceUpdate:
			data := &PresenceUpdateData{}
			if err := unmarshalRequired(d, data, "user"); err != nil {
				return nil, err
			}
			return data, nil
		case EventMessageCreate:
			data := &MessageCreateData{}
			if err := unmarshalRequired(d, data, "author", "content"); err != nil {
				return nil, err
			}
			return data, nil
		default:
			c, err := compact(d)
			if err != nil {
				return nil, err
			}
			return RawDispatch(c), nil
		}

	default:
		if absent {
			return nil, nil
		}
		c, err := compact(d)
		if err != nil {
			return nil, err
		}
		return RawPayload(c), nil
	}
}

// checkPayload mirrors decodePayload for outgoing envelopes: anything it
// accepts decodes back to the same envelope.
func checkPayload(op opcodes.Opcode, event string, d Payload) error {
	ok := false
	var reason string
	switch p := d.(type) {
	case nil:
		ok = op != opcodes.Hello && op != opcodes.Identify
	case *HelloData:
		ok = op == opcodes.Hello && p != nil
		if ok && p.HeartbeatInterval <= 0 {
			ok, reason = false, fmt.Sprintf("invalid heartbeat_interval %d", p.HeartbeatInterval)
		}
	case *IdentifyData:
		ok = op == opcodes.Identify && p != nil
	case *ReadyData:
		ok = op == opcodes.Dispatch && event == EventReady && p != nil
	case *PresenceUpdateData:
		ok = op == opcodes.Dispatch && event == EventPresenceUpdate && p != nil
	case *MessageCreateData:
		ok = op == opcodes.Dispatch && event == EventMessageCreate && p != nil
	case RawDispatch:
		ok = op == opcodes.Dispatch && event != "" &&
			event != EventReady && event != EventPresenceUpdate && event != EventMessageCreate
		if ok && !isObject(json.RawMessage(p)) {
			ok, reason = false, "dispatch payload is not an object"
		}
		if ok {
			ok, reason = checkRaw(p)
		}
	case RawPayload:
		ok = op != opcodes.Hello && op != opcodes.Identify && op != opcodes.Dispatch
		if ok {
			ok, reason = checkRaw(p)
		}
	}
	if !ok {
		if reason != "" {
			return fmt.Errorf("%w: %T for op %s: %s", ErrSchemaMismatch, d, op, reason)
		}
		return fmt.Errorf("%w: %T for op %s", ErrSchemaMismatch, d, op)
	}
	return nil
}

// checkRaw accepts raw JSON only in the compact, non-null form Decode
// produces.
func checkRaw(raw []byte) (bool, string) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false, "raw payload is empty"
	}
	c, err := compact(raw)
	if err != nil {
		return false, "raw payload is not valid JSON"
	}
	if !bytes.Equal(c, raw) {
		return false, "raw payload is not compact"
	}
	return true, ""
}

// unmarshalRequired decodes d into v after checking that every named field is
// present and not null.
func unmarshalRequired(d json.RawMessage, v any, fields ...string) error {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(d, &keys); err != nil {
		return err
	}
	for _, f := range fields {
		if val, ok := keys[f]; !ok || bytes.Equal(val, []byte("null")) {
			return fmt.Errorf("missing %s", f)
		}
	}
	return json.Unmarshal(d, v)
}

func isObject(d json.RawMessage) bool {
	d = bytes.TrimLeft(d, " \t\r\n")
	return len(d) > 0 && d[0] == '{'
}

func compact(d json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
