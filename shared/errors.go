package shared

import (
	"errors"
	"fmt"
)

var (
	ErrAnchorNotProvable  = errors.New("anchor not provable")
	ErrCommitmentNotFound = errors.New("identity commitment not found")
	ErrDisclosure         = errors.New("disclosure proof generation failed")
	ErrSigningFailure     = errors.New("signing failed")
	ErrConsumerStateRead  = errors.New("consumer state read failed")
)

// AnchorNotProvableError is returned when the requested provider block is not
// yet followed by a finalized block, or when the relay chain does not record
// the expected head for it.
type AnchorNotProvableError struct {
	ProviderBlock  uint64
	FinalizedBlock uint64
	Reason         string
}

func (err AnchorNotProvableError) Error() string {
	return fmt.Sprintf("%v: provider block %d (finalized: %d): %s",
		ErrAnchorNotProvable, err.ProviderBlock, err.FinalizedBlock, err.Reason)
}

func (err AnchorNotProvableError) Is(target error) bool {
	return target == ErrAnchorNotProvable
}

type CommitmentNotFoundError struct {
	Subject Subject
	Version uint16
	Block   uint64
}

func (err CommitmentNotFoundError) Error() string {
	return fmt.Sprintf("%v: subject %v, version %d, provider block %d",
		ErrCommitmentNotFound, err.Subject, err.Version, err.Block)
}

func (err CommitmentNotFoundError) Is(target error) bool {
	return target == ErrCommitmentNotFound
}

// DisclosureErrorKind mirrors the typed failures of the provider runtime's
// proof generation entrypoint.
type DisclosureErrorKind uint8

const (
	DidNotFound DisclosureErrorKind = iota
	DidDeleted
	KeyNotFound
	LinkedAccountNotFound
	Web3NameNotFound
	UnsupportedVersion
	Internal
)

var disclosureErrorKinds = []string{
	"DidNotFound",
	"DidDeleted",
	"KeyNotFound",
	"LinkedAccountNotFound",
	"Web3NameNotFound",
	"UnsupportedVersion",
	"Internal",
}

func (k DisclosureErrorKind) String() string {
	if int(k) < len(disclosureErrorKinds) {
		return disclosureErrorKinds[k]
	}
	return fmt.Sprintf("DisclosureErrorKind(%d)", uint8(k))
}

type DisclosureError struct {
	Kind DisclosureErrorKind
	// Code is the raw error code reported by the provider runtime, if any.
	Code uint16
}

func (err DisclosureError) Error() string {
	if err.Kind == Internal {
		return fmt.Sprintf("%v: %v (code %d)", ErrDisclosure, err.Kind, err.Code)
	}
	return fmt.Sprintf("%v: %v", ErrDisclosure, err.Kind)
}

func (err DisclosureError) Is(target error) bool {
	if target == ErrDisclosure {
		return true
	}
	var other DisclosureError
	if errors.As(target, &other) {
		return other.Kind == err.Kind
	}
	return false
}

type SigningError struct {
	Relationship string
	Err          error
}

func (err SigningError) Error() string {
	return fmt.Sprintf("%v with `%s` key: %v", ErrSigningFailure, err.Relationship, err.Err)
}

func (err SigningError) Unwrap() error {
	return err.Err
}

func (err SigningError) Is(target error) bool {
	return target == ErrSigningFailure
}

type ConsumerStateReadError struct {
	Query string
	Err   error
}

func (err ConsumerStateReadError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrConsumerStateRead, err.Query, err.Err)
}

func (err ConsumerStateReadError) Unwrap() error {
	return err.Err
}

func (err ConsumerStateReadError) Is(target error) bool {
	return target == ErrConsumerStateRead
}
