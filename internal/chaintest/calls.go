package chaintest

import (
	"github.com/spacemeshos/go-scale"

	"github.com/KILTprotocol/dip-sdk/shared"
)

const (
	PostPallet = 60
	PostMethod = 0
)

type message string

func (m message) EncodeScale(e *scale.Encoder) (int, error) {
	return scale.EncodeString(e, string(m))
}

// PostCall builds the consumer's `post(message)` call.
func PostCall(msg string) shared.Call {
	args, err := shared.Encode(message(msg))
	if err != nil {
		panic(err)
	}
	return shared.Call{Pallet: PostPallet, Method: PostMethod, Args: args}
}
