// Package openpgp implements the OpenPGP card application (specification
// v3.3.1) on top of the applet framework: password handling, the data
// object catalogue, key management and the PERFORM SECURITY OPERATION
// family.
package openpgp

import (
	"github.com/gregLibert/pgp-token/pkg/filesystem"
)

// Password identifies one of the card's authentication states. PSOCDS is
// the "PW1 valid for signing" state: it is set alongside PW1 and consumed
// by PSO:CDS unless the PW status bytes allow several signatures per
// verification.
type Password int

const (
	PW1 Password = iota
	PW3
	RC
	PSOCDS
)

// Password length bounds and the retry counter reset value
// (OpenPGP card v3.3.1, DO C4, page 23).
const (
	PW1MinLength = 6
	PW3MinLength = 8
	PW1MaxLength = 0x20
	PW3MaxLength = 0x20
	RCMaxLength  = 0x20

	DefaultPWResetCounter = 3
)

// PWMinLength returns the minimum length for a password.
func PWMinLength(pw Password) int {
	if pw == PW3 {
		return PW3MinLength
	}
	return PW1MinLength
}

// PWMaxLength returns the maximum length for a password.
func PWMaxLength(pw Password) int {
	if pw == PW3 {
		return PW3MaxLength
	}
	return PW1MaxLength
}

// LifeCycleState per OpenPGP card v3.3.1 pages 38 and 78.
type LifeCycleState byte

const (
	LifeCycleNoInfo      LifeCycleState = 0x00
	LifeCycleInit        LifeCycleState = 0x03
	LifeCycleOperational LifeCycleState = 0x05
)

// AppID is the store owner id of the OpenPGP applet.
const AppID filesystem.AppID = 0x0001

// aidPrefix is the registered OpenPGP application identifier; SELECT
// matches on this prefix.
var aidPrefix = []byte{0xD2, 0x76, 0x00, 0x01, 0x24, 0x01}

// Application version encoded into the full AID.
var aidVersion = []byte{0x03, 0x03}

// Secure-namespace object ids (password material).
const (
	fileIDPW1 filesystem.ObjectID = 0x0001
	fileIDPW3 filesystem.ObjectID = 0x0003
)

// Well-known data object ids served through GET DATA / PUT DATA.
const (
	doAID             = 0x004F
	doLoginData       = 0x005E
	doDSCounterValue  = 0x0093
	doSecuritySupport = 0x007A
	doAlgAttrSign     = 0x00C1
	doAlgAttrDecrypt  = 0x00C2
	doAlgAttrAuth     = 0x00C3
	doPWStatus        = 0x00C4
	doResettingCode   = 0x00D3
	doKeyImport       = 0x3FFF
)

func passwordFileID(pw Password) filesystem.ObjectID {
	if pw == PW3 {
		return fileIDPW3
	}
	return fileIDPW1
}
