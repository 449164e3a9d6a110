package envelope

import (
	"context"

	"github.com/KILTprotocol/dip-sdk/shared"
)

// Element is a proof element produced by an extension.
type Element any

// ExtensionInput is what an extension knows about the composition it is
// part of.
type ExtensionInput struct {
	Subject   shared.Subject
	Call      shared.Call
	Submitter []byte
}

// Extension contributes an additional element to the envelope body. Generate
// runs concurrently with the anchor, commitment and disclosure resolution;
// Encode runs once every leg succeeded.
type Extension interface {
	Name() string
	Generate(ctx context.Context, in ExtensionInput) (Element, error)
	Encode(el Element) ([]byte, error)
}
