package iso7816

import (
	"errors"
	"fmt"
)

// APDU (Application Protocol Data Unit) framing according to ISO/IEC 7816-4,
// seen from the CARD side: the card receives a Command APDU and answers with
// a Response APDU.
//
// COMMAND APDU (C-APDU), short encoding:
//
//	CLA INS P1 P2 Lc [Data(Lc)] [Le]
//
// The card accepts exactly two total lengths for a frame carrying Lc:
//   - Lc + 5 — no Le byte (Case 3, or Case 1 with Lc = 0).
//   - Lc + 6 — trailing Le byte (Case 4, or Case 2 with Lc = 0).
//
// One accommodation: a bare 5-byte frame whose fifth byte is non-zero is
// the ISO Case 2 short form — that byte is Le, not Lc (there is no data
// field it could describe). GET CHALLENGE arrives this way.
//
// Lc = 0 is otherwise only legal when the whole frame is 5 or 6 bytes
// long. Extended length encoding is not part of this transport.
//
// RESPONSE APDU (R-APDU):
//
//	[Data] SW1 SW2
//
// The trailing Status Word is always present; see status_word.go.

// Frame size limits for the short encoding handled by the card.
const (
	// MinCommandLen is the smallest well-formed command frame:
	// header (4 bytes) plus the Lc byte.
	MinCommandLen = 5

	// MaxShortLc is the maximum data length encodable in the Lc byte.
	MaxShortLc = 255
)

// Framing errors distinguished by the executor (they map to different
// internal error kinds even though both answer SW 6700).
var (
	// ErrFrameTooShort flags a frame below the 5-byte minimum.
	ErrFrameTooShort = errors.New("APDU shorter than header")

	// ErrFrameLength flags a frame whose total length does not match its
	// Lc byte (neither Lc+5 nor Lc+6).
	ErrFrameLength = errors.New("APDU length inconsistent with Lc")
)

// Command is a parsed short Command APDU.
type Command struct {
	CLA    byte
	Ins    InsCode
	P1, P2 byte
	Data   []byte // aliases the raw frame, length Lc
	Le     byte   // expected response length; meaningful when HasLe
	HasLe  bool
}

// ParseCommand validates the short-APDU framing rules above and splits the
// raw frame into its fields. Data aliases raw; callers must not retain it
// past the frame's lifetime.
func ParseCommand(raw []byte) (Command, error) {
	if len(raw) < MinCommandLen {
		return Command{}, fmt.Errorf("%w: %d bytes", ErrFrameTooShort, len(raw))
	}

	// Case 2 short: header plus a lone Le byte.
	if len(raw) == MinCommandLen && raw[4] != 0 {
		return Command{
			CLA:   raw[0],
			Ins:   InsCode(raw[1]),
			P1:    raw[2],
			P2:    raw[3],
			Data:  raw[5:],
			Le:    raw[4],
			HasLe: true,
		}, nil
	}

	lc := int(raw[4])
	if len(raw) != lc+5 && len(raw) != lc+6 {
		return Command{}, fmt.Errorf("%w: total %d, Lc %d", ErrFrameLength, len(raw), lc)
	}

	cmd := Command{
		CLA:  raw[0],
		Ins:  InsCode(raw[1]),
		P1:   raw[2],
		P2:   raw[3],
		Data: raw[5 : 5+lc],
	}

	if len(raw) == lc+6 {
		cmd.Le = raw[5+lc]
		cmd.HasLe = true
	}

	return cmd, nil
}

// Tag returns the 16-bit object tag conveyed in P1-P2, as used by the
// GET DATA and PUT DATA commands.
func (c Command) Tag() uint16 {
	return uint16(c.P1)<<8 | uint16(c.P2)
}

// String returns a readable one-line summary of the command header.
func (c Command) String() string {
	le := "-"
	if c.HasLe {
		le = fmt.Sprintf("%d", c.Le)
	}
	return fmt.Sprintf("CLA: %02X | INS: %02X | P1: %02X, P2: %02X | Lc: %d | Le: %s",
		c.CLA, byte(c.Ins), c.P1, c.P2, len(c.Data), le)
}
