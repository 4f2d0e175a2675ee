package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message type constants.
const (
	TypeWelcome     = "welcome"
	TypeUpdatePeers = "updatePeers"
	TypeOffer       = "offer"
	TypeAnswer      = "answer"
	TypeCandidate   = "candidate"
)

const (
	fieldType     = "type"
	fieldTargetID = "targetId"
	fieldSenderID = "senderId"
)

// ErrMalformed is returned for envelopes that cannot be routed.
var ErrMalformed = errors.New("malformed envelope")

// requiredField lists the payload key each routable type must carry.
var requiredField = map[string]string{
	TypeOffer:     "offer",
	TypeAnswer:    "answer",
	TypeCandidate: "candidate",
}

// Envelope is one signaling message. On the wire it is a flat JSON object:
// the routing fields sit next to the type-specific payload fields.
type Envelope struct {
	Type string

	// TargetID is set by the sending client and consumed by the relay.
	TargetID string

	// SenderID is stamped by the relay. Whatever a client puts there is discarded.
	SenderID string

	// Body holds the type-specific fields.
	Body map[string]json.RawMessage
}

// NewEnvelope builds an envelope whose body is the JSON object form of payload.
func NewEnvelope(msgType string, payload any) (*Envelope, error) {
	env := &Envelope{Type: msgType, Body: map[string]json.RawMessage{}}
	if payload == nil {
		return env, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(raw, &env.Body); err != nil {
		return nil, fmt.Errorf("payload is not an object: %w", err)
	}
	delete(env.Body, fieldType)
	delete(env.Body, fieldTargetID)
	delete(env.Body, fieldSenderID)
	return env, nil
}

// Parse decodes a raw wire message.
func Parse(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// MarshalJSON flattens the routing fields and the body into one object.
func (e Envelope) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(e.Body)+3)
	for k, v := range e.Body {
		out[k] = v
	}

	typ, err := json.Marshal(e.Type)
	if err != nil {
		return nil, err
	}
	out[fieldType] = typ

	if e.TargetID != "" {
		out[fieldTargetID], _ = json.Marshal(e.TargetID)
	}
	if e.SenderID != "" {
		out[fieldSenderID], _ = json.Marshal(e.SenderID)
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits a flat object into routing fields and body.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if fields == nil {
		return fmt.Errorf("%w: not an object", ErrMalformed)
	}

	var err error
	if e.Type, err = stringField(fields, fieldType); err != nil {
		return err
	}
	if e.TargetID, err = stringField(fields, fieldTargetID); err != nil {
		return err
	}
	if e.SenderID, err = stringField(fields, fieldSenderID); err != nil {
		return err
	}

	delete(fields, fieldType)
	delete(fields, fieldTargetID)
	delete(fields, fieldSenderID)
	e.Body = fields
	return nil
}

func stringField(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %s is not a string", ErrMalformed, key)
	}
	return s, nil
}

// DecodePayload unmarshals the body into out.
func (e *Envelope) DecodePayload(out any) error {
	raw, err := json.Marshal(e.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformed, e.Type, err)
	}
	return nil
}

// ValidateRoutable checks a client-to-relay message before it is forwarded.
func (e *Envelope) ValidateRoutable() error {
	field, ok := requiredField[e.Type]
	if !ok {
		if e.Type == "" {
			return fmt.Errorf("%w: type is required", ErrMalformed)
		}
		return fmt.Errorf("%w: unknown type %q", ErrMalformed, e.Type)
	}
	if e.TargetID == "" {
		return fmt.Errorf("%w: %s without targetId", ErrMalformed, e.Type)
	}
	if raw, ok := e.Body[field]; !ok || string(raw) == "null" {
		return fmt.Errorf("%w: %s without %s", ErrMalformed, e.Type, field)
	}
	return nil
}

// Forwarded returns the copy the relay delivers to the target: same type and
// body, targetId dropped, senderId set to the authenticated sender.
func (e *Envelope) Forwarded(senderID string) *Envelope {
	body := make(map[string]json.RawMessage, len(e.Body))
	for k, v := range e.Body {
		body[k] = v
	}
	return &Envelope{Type: e.Type, SenderID: senderID, Body: body}
}
