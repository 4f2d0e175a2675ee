package transfer

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec names accepted in an offer.
const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// Control is a non-chunk message on the transfer channel.
type Control struct {
	Type  string     `json:"type" msgpack:"type"`
	Files []FileMeta `json:"files,omitempty" msgpack:"files,omitempty"`
}

// Frame is one decoded channel message: either a control message or a chunk.
type Frame struct {
	Control *Control
	Chunk   []byte
}

// Codec maps transfer messages onto channel messages.
type Codec interface {
	Name() string
	SendControl(ch Channel, c Control) error
	SendChunk(ch Channel, data []byte) error
	Decode(isString bool, data []byte) (Frame, error)
}

// CodecFor returns the codec for an offer's codec field. Empty selects JSON.
func CodecFor(name string) (Codec, error) {
	switch name {
	case "", CodecJSON:
		return JSONCodec{}, nil
	case CodecMsgpack:
		return MsgpackCodec{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
}

// JSONCodec sends control messages as JSON text and chunks as raw binary
// messages. Browsers speak this.
type JSONCodec struct{}

func (JSONCodec) Name() string { return CodecJSON }

func (JSONCodec) SendControl(ch Channel, c Control) error {
	data, err := json.Marshal(c)
	if err != nil {
		return NewError("marshal control", err)
	}
	return ch.SendText(string(data))
}

func (JSONCodec) SendChunk(ch Channel, data []byte) error {
	return ch.Send(data)
}

func (JSONCodec) Decode(isString bool, data []byte) (Frame, error) {
	if !isString {
		return Frame{Chunk: data}, nil
	}
	var c Control
	if err := json.Unmarshal(data, &c); err != nil {
		return Frame{}, WrapError("decode", ErrMalformedControl, err.Error())
	}
	return Frame{Control: &c}, nil
}

// msgpackRecord is the single binary shape used by MsgpackCodec.
type msgpackRecord struct {
	Type  string     `msgpack:"type"`
	Files []FileMeta `msgpack:"files,omitempty"`
	Bytes []byte     `msgpack:"bytes,omitempty"`
}

// MsgpackCodec sends every message as a binary msgpack record.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return CodecMsgpack }

func (MsgpackCodec) SendControl(ch Channel, c Control) error {
	return sendRecord(ch, msgpackRecord{Type: c.Type, Files: c.Files})
}

func (MsgpackCodec) SendChunk(ch Channel, data []byte) error {
	return sendRecord(ch, msgpackRecord{Type: MessageTypeChunk, Bytes: data})
}

func sendRecord(ch Channel, rec msgpackRecord) error {
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return NewError("marshal message", err)
	}
	return ch.Send(data)
}

func (MsgpackCodec) Decode(isString bool, data []byte) (Frame, error) {
	if isString {
		return Frame{}, WrapError("decode", ErrMalformedControl, "text message on msgpack channel")
	}
	var rec msgpackRecord
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return Frame{}, WrapError("decode", ErrMalformedControl, err.Error())
	}
	if rec.Type == MessageTypeChunk {
		if rec.Bytes == nil {
			rec.Bytes = []byte{}
		}
		return Frame{Chunk: rec.Bytes}, nil
	}
	return Frame{Control: &Control{Type: rec.Type, Files: rec.Files}}, nil
}
