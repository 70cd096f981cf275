package iso7816

import (
	"fmt"

	"github.com/gregLibert/pgp-token/pkg/bits"
)

// Status Word logic according to ISO/IEC 7816-4.
//
// Every response ends with a 2-byte Status Word (SW1-SW2). Most values are
// static (0x9000 success, 0x6A82 file not found, ...), but the '63CX' range
// is dynamic: when the upper nibble of SW2 is 'C', the lower nibble carries
// a counter — for this card, the remaining password verification tries.

// StatusWord represents the two-byte status (SW1-SW2) trailing a response.
type StatusWord uint16

// NewStatusWord builds a StatusWord from its two bytes.
func NewStatusWord(sw1, sw2 byte) StatusWord {
	return StatusWord(uint16(sw1)<<8 | uint16(sw2))
}

// RetriesStatus builds the dynamic '63CX' warning encoding the number of
// password tries remaining (clamped to the 4-bit counter field).
func RetriesStatus(remaining byte) StatusWord {
	if remaining > 0x0F {
		remaining = 0x0F
	}
	return SW_WARN_COUNTER_0 | StatusWord(remaining)
}

// SW1 returns the high byte of the status word.
func (sw StatusWord) SW1() byte {
	return byte(sw >> 8)
}

// SW2 returns the low byte of the status word.
func (sw StatusWord) SW2() byte {
	return byte(sw)
}

// IsCounter checks if the status carries a retry counter ('63CX').
func (sw StatusWord) IsCounter() bool {
	if sw.SW1() != 0x63 {
		return false
	}
	return bits.GetRange(sw.SW2(), 8, 5) == 0x0C
}

// Retries extracts the counter value from a '63CX' status (0 otherwise).
func (sw StatusWord) Retries() byte {
	if !sw.IsCounter() {
		return 0
	}
	return bits.GetRange(sw.SW2(), 4, 1)
}

// IsSuccess returns true for 9000.
func (sw StatusWord) IsSuccess() bool {
	return sw == SW_NO_ERROR
}

// IsWarning returns true for the 62XX/63XX warning ranges.
func (sw StatusWord) IsWarning() bool {
	sw1 := sw.SW1()
	return sw1 == 0x62 || sw1 == 0x63
}

// IsError returns true for the 64XX..6FXX error ranges.
func (sw StatusWord) IsError() bool {
	sw1 := sw.SW1()
	return sw1 >= 0x64 && sw1 <= 0x6F
}

// String renders the status word as four hex digits.
func (sw StatusWord) String() string {
	return fmt.Sprintf("%04X", uint16(sw))
}

// Status Words emitted by this card, per ISO/IEC 7816-4 and the OpenPGP
// card specification v3.3.1.
const (
	SW_NO_ERROR StatusWord = 0x9000

	SW_WARN_COUNTER_0 StatusWord = 0x63C0

	SW_ERR_WRONG_LENGTH            StatusWord = 0x6700
	SW_ERR_SECURITY_STATUS_NOT_SAT StatusWord = 0x6982
	SW_ERR_AUTH_METHOD_BLOCKED     StatusWord = 0x6983
	SW_ERR_COND_OF_USE_NOT_SAT     StatusWord = 0x6985
	SW_ERR_FILE_NOT_FOUND          StatusWord = 0x6A82
	SW_ERR_INCORRECT_PARAMS_P1P2   StatusWord = 0x6A86
	SW_ERR_REF_DATA_NOT_FOUND      StatusWord = 0x6A88
	SW_ERR_INS_INVALID             StatusWord = 0x6D00
	SW_ERR_CLA_NOT_SUPPORTED       StatusWord = 0x6E00
	SW_ERR_UNKNOWN                 StatusWord = 0x6F00
)
