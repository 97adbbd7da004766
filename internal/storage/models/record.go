// internal/storage/models/record.go
package models

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/ugorji/go/codec"
)

// Record is one committed event as persisted by a store. Payload holds the
// msgpack-encoded event struct.
type Record struct {
	Seq     uint64           `codec:"seq"`
	Type    events.EventType `codec:"type"`
	Time    time.Time        `codec:"time"`
	Token   solana.PublicKey `codec:"token"`
	Pair    solana.PublicKey `codec:"pair"`
	Payload []byte           `codec:"payload"`
}

var handle = func() *codec.MsgpackHandle {
	h := &codec.MsgpackHandle{}
	h.WriteExt = true
	h.Canonical = true
	return h
}()

// FromEvent encodes ev into a record.
func FromEvent(ev events.Event) (Record, error) {
	var payload []byte
	if err := codec.NewEncoderBytes(&payload, handle).Encode(ev); err != nil {
		return Record{}, fmt.Errorf("encode %s event: %w", ev.Type(), err)
	}
	return Record{
		Seq:     ev.Sequence(),
		Type:    ev.Type(),
		Time:    ev.Timestamp().UTC(),
		Token:   ev.TokenAddress(),
		Pair:    ev.PairAddress(),
		Payload: payload,
	}, nil
}

// Event decodes the payload back into its typed event.
func (r Record) Event() (events.Event, error) {
	ev, ok := events.New(r.Type)
	if !ok {
		return nil, fmt.Errorf("unknown event type %q", r.Type)
	}
	if err := codec.NewDecoderBytes(r.Payload, handle).Decode(ev); err != nil {
		return nil, fmt.Errorf("decode %s event %d: %w", r.Type, r.Seq, err)
	}
	return ev, nil
}

// Marshal encodes the record itself.
func (r Record) Marshal() ([]byte, error) {
	var out []byte
	if err := codec.NewEncoderBytes(&out, handle).Encode(r); err != nil {
		return nil, fmt.Errorf("encode record %d: %w", r.Seq, err)
	}
	return out, nil
}

// Unmarshal decodes a record written by Marshal.
func Unmarshal(data []byte) (Record, error) {
	var r Record
	if err := codec.NewDecoderBytes(data, handle).Decode(&r); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	return r, nil
}
