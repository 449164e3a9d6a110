// Package dispatch builds and decodes the consumer call that dispatches a
// target call as the subject, for consumers that take the proof as opaque
// bytes: dispatch_as(identifier, proof: Vec<u8>, call).
package dispatch

import (
	"bytes"
	"fmt"

	"github.com/spacemeshos/go-scale"

	"github.com/KILTprotocol/dip-sdk/config"
	"github.com/KILTprotocol/dip-sdk/shared"
)

type Builder struct {
	Pallet uint8
	Method uint8
}

// NewBuilder targets the dispatch-as entrypoint named in cfg.
func NewBuilder(cfg config.ConsumerConfig) Builder {
	return Builder{Pallet: cfg.DipConsumerPallet, Method: cfg.DispatchAsMethod}
}

func (b Builder) Build(subject shared.Subject, envelope []byte, call shared.Call) (*shared.SubmittableOperation, error) {
	var buf bytes.Buffer
	enc := scale.NewEncoder(&buf)
	if _, err := subject.EncodeScale(enc); err != nil {
		return nil, err
	}
	if _, err := scale.EncodeByteSlice(enc, envelope); err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	if _, err := call.EncodeScale(enc); err != nil {
		return nil, fmt.Errorf("encode call: %w", err)
	}
	return &shared.SubmittableOperation{
		Call: shared.Call{Pallet: b.Pallet, Method: b.Method, Args: buf.Bytes()},
	}, nil
}

// Decoded is the content of a dispatch-as operation.
type Decoded struct {
	Subject  shared.Subject
	Envelope []byte
	Call     shared.Call
}

// Decode splits a dispatch-as operation built by b back into its parts.
func (b Builder) Decode(op *shared.SubmittableOperation) (*Decoded, error) {
	if op.Call.Pallet != b.Pallet || op.Call.Method != b.Method {
		return nil, fmt.Errorf("not a dispatch-as call; expected: %d.%d, given: %d.%d",
			b.Pallet, b.Method, op.Call.Pallet, op.Call.Method)
	}

	dec := scale.NewDecoder(bytes.NewReader(op.Call.Args))

	var out Decoded
	consumed, err := out.Subject.DecodeScale(dec)
	if err != nil {
		return nil, fmt.Errorf("decode subject: %w", err)
	}
	envelope, n, err := scale.DecodeByteSlice(dec)
	consumed += n
	if err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	out.Envelope = envelope

	rest := op.Call.Args[consumed:]
	if len(rest) < 2 {
		return nil, fmt.Errorf("decode call: expected at least 2 bytes, given: %d", len(rest))
	}
	pallet, method, args := rest[0], rest[1], append([]byte{}, rest[2:]...)
	out.Call = shared.Call{Pallet: pallet, Method: method, Args: args}
	return &out, nil
}
