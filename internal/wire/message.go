// Package wire implements the scopedb sample feed protocol: protobuf-encoded
// envelopes, length-delimited with a varint prefix for streaming over TCP.
//
// Messages are encoded directly with protowire, so the schema lives here
// rather than in generated code:
//
//	Envelope:      1=id(varint) 2=append(message) 3=error(message)
//	Append:        1=channel(string) 2=samples(repeated message)
//	Sample:        1=timestamp(double) 2=value(double)
//	ErrorReply:    1=code(varint) 2=message(string)
package wire

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/xtxerr/scopedb/internal/tsdb/types"
)

// Field numbers for the Envelope message.
const (
	envelopeFieldID     = 1
	envelopeFieldAppend = 2
	envelopeFieldError  = 3
)

// Field numbers for the Append message.
const (
	appendFieldChannel = 1
	appendFieldSample  = 2
)

// Field numbers for the Sample message.
const (
	sampleFieldTimestamp = 1
	sampleFieldValue     = 2
)

// Field numbers for the ErrorReply message.
const (
	errorFieldCode    = 1
	errorFieldMessage = 2
)

// Envelope is the top-level framed message. Exactly one of Append or
// Error is set.
type Envelope struct {
	// ID correlates requests and replies. Producers that do not expect
	// replies may leave it zero.
	ID uint64

	Append *Append
	Error  *ErrorReply
}

// Append carries an ordered batch of samples for one channel.
type Append struct {
	Channel string
	Samples []types.Sample
}

// ErrorReply reports a rejected envelope back to the producer.
type ErrorReply struct {
	Code    int32
	Message string
}

// NewAppend creates an append envelope.
func NewAppend(id uint64, channel string, samples []types.Sample) *Envelope {
	return &Envelope{
		ID:     id,
		Append: &Append{Channel: channel, Samples: samples},
	}
}

// NewError creates an error envelope.
func NewError(id uint64, code int32, msg string) *Envelope {
	return &Envelope{
		ID:    id,
		Error: &ErrorReply{Code: code, Message: msg},
	}
}

// Marshal encodes the envelope.
func (e *Envelope) Marshal() []byte {
	var b []byte
	if e.ID != 0 {
		b = protowire.AppendTag(b, envelopeFieldID, protowire.VarintType)
		b = protowire.AppendVarint(b, e.ID)
	}
	if e.Append != nil {
		b = protowire.AppendTag(b, envelopeFieldAppend, protowire.BytesType)
		b = protowire.AppendBytes(b, e.Append.marshal())
	}
	if e.Error != nil {
		b = protowire.AppendTag(b, envelopeFieldError, protowire.BytesType)
		b = protowire.AppendBytes(b, e.Error.marshal())
	}
	return b
}

func (a *Append) marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, appendFieldChannel, protowire.BytesType)
	b = protowire.AppendString(b, a.Channel)
	for _, s := range a.Samples {
		b = protowire.AppendTag(b, appendFieldSample, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalSample(s))
	}
	return b
}

func marshalSample(s types.Sample) []byte {
	var b []byte
	b = protowire.AppendTag(b, sampleFieldTimestamp, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(s.Timestamp))
	b = protowire.AppendTag(b, sampleFieldValue, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(s.Value))
	return b
}

func (r *ErrorReply) marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, errorFieldCode, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(uint32(r.Code)))
	b = protowire.AppendTag(b, errorFieldMessage, protowire.BytesType)
	b = protowire.AppendString(b, r.Message)
	return b
}

// Unmarshal decodes an envelope. Unknown fields are skipped for forward
// compatibility.
func Unmarshal(b []byte) (*Envelope, error) {
	env := &Envelope{}

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("envelope tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == envelopeFieldID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("envelope id: %w", protowire.ParseError(n))
			}
			env.ID = v
			b = b[n:]

		case num == envelopeFieldAppend && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("envelope append: %w", protowire.ParseError(n))
			}
			app, err := unmarshalAppend(v)
			if err != nil {
				return nil, err
			}
			env.Append = app
			b = b[n:]

		case num == envelopeFieldError && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("envelope error: %w", protowire.ParseError(n))
			}
			rep, err := unmarshalError(v)
			if err != nil {
				return nil, err
			}
			env.Error = rep
			b = b[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("envelope field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	return env, nil
}

func unmarshalAppend(b []byte) (*Append, error) {
	app := &Append{}

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("append tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == appendFieldChannel && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, fmt.Errorf("append channel: %w", protowire.ParseError(n))
			}
			app.Channel = v
			b = b[n:]

		case num == appendFieldSample && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("append sample: %w", protowire.ParseError(n))
			}
			s, err := unmarshalSample(v)
			if err != nil {
				return nil, err
			}
			app.Samples = append(app.Samples, s)
			b = b[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("append field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	return app, nil
}

func unmarshalSample(b []byte) (types.Sample, error) {
	var s types.Sample

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return s, fmt.Errorf("sample tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == sampleFieldTimestamp && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return s, fmt.Errorf("sample timestamp: %w", protowire.ParseError(n))
			}
			s.Timestamp = math.Float64frombits(v)
			b = b[n:]

		case num == sampleFieldValue && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return s, fmt.Errorf("sample value: %w", protowire.ParseError(n))
			}
			s.Value = math.Float64frombits(v)
			b = b[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return s, fmt.Errorf("sample field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	return s, nil
}

func unmarshalError(b []byte) (*ErrorReply, error) {
	rep := &ErrorReply{}

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("error tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == errorFieldCode && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("error code: %w", protowire.ParseError(n))
			}
			rep.Code = int32(v)
			b = b[n:]

		case num == errorFieldMessage && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, fmt.Errorf("error message: %w", protowire.ParseError(n))
			}
			rep.Message = v
			b = b[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("error field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	return rep, nil
}
