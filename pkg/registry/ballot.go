package registry

import "fmt"

// Ballot wire encoding: a single byte, 0x01 approve, 0x00 disapprove.
// The registry never interprets anything beyond this; richer envelopes
// belong to the consuming layer.
const (
	ballotDisapprove byte = 0x00
	ballotApprove    byte = 0x01
)

// EncodeBallot encodes an approve/disapprove choice
func EncodeBallot(approve bool) []byte {
	if approve {
		return []byte{ballotApprove}
	}
	return []byte{ballotDisapprove}
}

// DecodeBallot decodes an encoded ballot into its approve/disapprove meaning
func DecodeBallot(encoded []byte) (bool, error) {
	if len(encoded) != 1 {
		return false, fmt.Errorf("%w: expected 1 byte, got %d", ErrMalformedBallot, len(encoded))
	}
	switch encoded[0] {
	case ballotApprove:
		return true, nil
	case ballotDisapprove:
		return false, nil
	default:
		return false, fmt.Errorf("%w: byte 0x%02x", ErrMalformedBallot, encoded[0])
	}
}

// ballotWeight maps a decoded ballot onto its tally contribution
func ballotWeight(approve bool) int64 {
	if approve {
		return 1
	}
	return -1
}
