package iso7816

import (
	"github.com/gregLibert/pgp-token/pkg/bits"
)

// Class Byte (CLA) structure according to ISO/IEC 7816-4, first
// interindustry range (00xx xxxx) — the only range this card speaks.
//
// Bit 8: Proprietary (1) or Interindustry (0).
// Bit 5: Command Chaining (0 = last/only, 1 = more follow).
// Bits 4-3: Secure Messaging indication.
// Bits 2-1: Logical channel (0-3).
//
// The card recognises three values: 0x00 (plain), 0x0C (secure messaging
// indicated — accepted, not unwrapped) and 0x10 (command chaining, used by
// the PUT DATA key import).

// SecureMessaging is the 2-bit SM indication of the first interindustry
// class range.
type SecureMessaging byte

const (
	// SMNone indicates no secure messaging.
	SMNone SecureMessaging = 0
	// SMProprietary indicates a proprietary SM format.
	SMProprietary SecureMessaging = 1
	// SMHeaderNoProc indicates ISO SM, command header not processed.
	SMHeaderNoProc SecureMessaging = 2
	// SMHeaderAuth indicates ISO SM, command header authenticated.
	SMHeaderAuth SecureMessaging = 3
)

// Class represents the decoded ISO 7816-4 Class byte.
type Class struct {
	Raw             byte
	IsProprietary   bool
	IsChained       bool
	SecureMessaging SecureMessaging
	Channel         uint8
}

// ParseClass decodes a raw CLA byte of the first interindustry range.
func ParseClass(cla byte) Class {
	c := Class{Raw: cla}

	if bits.IsSet(cla, 8) {
		c.IsProprietary = true
		return c
	}

	c.IsChained = bits.IsSet(cla, 5)
	c.SecureMessaging = SecureMessaging(bits.GetRange(cla, 4, 3))
	c.Channel = bits.GetRange(cla, 2, 1)

	return c
}

// IsSecureMessaging reports whether the class byte announces any secure
// messaging indication.
func (c Class) IsSecureMessaging() bool {
	return !c.IsProprietary && c.SecureMessaging != SMNone
}
