package openpgp

import (
	"github.com/gregLibert/pgp-token/pkg/filesystem"
)

// PWStatusBytes is the DO C4 record: the PW1 signature validity flag,
// the password length maxima, and the three persistent retry counters.
//
// The retry counters live here — persistently — while the authenticated
// flags live in the in-RAM Security state. A power cycle clears the flags
// but never the counters.
type PWStatusBytes struct {
	PW1ValidSeveralCDS bool

	MaxLengthPW1 byte
	MaxLengthRC  byte
	MaxLengthPW3 byte

	ErrorCounterPW1 byte
	ErrorCounterRC  byte
	ErrorCounterPW3 byte
}

// DefaultPWStatus is the factory state: single-signature PW1, 32-byte
// maxima, full counters for PW1/PW3 and no resetting code.
func DefaultPWStatus() PWStatusBytes {
	return PWStatusBytes{
		MaxLengthPW1:    PW1MaxLength,
		MaxLengthRC:     RCMaxLength,
		MaxLengthPW3:    PW3MaxLength,
		ErrorCounterPW1: DefaultPWResetCounter,
		ErrorCounterRC:  0,
		ErrorCounterPW3: DefaultPWResetCounter,
	}
}

func clampCounter(c byte) byte {
	if c > DefaultPWResetCounter {
		return DefaultPWResetCounter
	}
	return c
}

// Serialize renders the 7-byte DO C4 encoding.
func (p *PWStatusBytes) Serialize() []byte {
	flag := byte(0x00)
	if p.PW1ValidSeveralCDS {
		flag = 0x01
	}
	return []byte{
		flag,
		p.MaxLengthPW1, p.MaxLengthRC, p.MaxLengthPW3,
		p.ErrorCounterPW1, p.ErrorCounterRC, p.ErrorCounterPW3,
	}
}

// Deserialize parses a DO C4 encoding. Counters are clamped to
// [0, DefaultPWResetCounter]; a short record falls back to the factory
// state.
func (p *PWStatusBytes) Deserialize(raw []byte) {
	if len(raw) < 7 {
		*p = DefaultPWStatus()
		return
	}
	p.PW1ValidSeveralCDS = raw[0] != 0x00
	p.MaxLengthPW1 = raw[1]
	p.MaxLengthRC = raw[2]
	p.MaxLengthPW3 = raw[3]
	p.ErrorCounterPW1 = clampCounter(raw[4])
	p.ErrorCounterRC = clampCounter(raw[5])
	p.ErrorCounterPW3 = clampCounter(raw[6])
}

// Load reads the record from DO C4.
func (p *PWStatusBytes) Load(fs *filesystem.FileSystem) error {
	raw, err := fs.ReadFile(AppID, doPWStatus, filesystem.NamespaceFile)
	if err != nil {
		return err
	}
	p.Deserialize(raw)
	return nil
}

// Save writes the record back to DO C4.
func (p *PWStatusBytes) Save(fs *filesystem.FileSystem) error {
	return fs.WriteFile(AppID, doPWStatus, filesystem.NamespaceFile, p.Serialize())
}

// PasswdTryRemains returns the remaining tries for a password. PSOCDS
// shares PW1's counter.
func (p *PWStatusBytes) PasswdTryRemains(pw Password) byte {
	switch pw {
	case PW3:
		return p.ErrorCounterPW3
	case RC:
		return p.ErrorCounterRC
	default:
		return p.ErrorCounterPW1
	}
}

// DecErrorCounter consumes one try.
func (p *PWStatusBytes) DecErrorCounter(pw Password) {
	switch pw {
	case PW3:
		if p.ErrorCounterPW3 > 0 {
			p.ErrorCounterPW3--
		}
	case RC:
		if p.ErrorCounterRC > 0 {
			p.ErrorCounterRC--
		}
	default:
		if p.ErrorCounterPW1 > 0 {
			p.ErrorCounterPW1--
		}
	}
}

// PasswdSetRemains sets a counter, clamped to [0, DefaultPWResetCounter].
func (p *PWStatusBytes) PasswdSetRemains(pw Password, tries byte) {
	tries = clampCounter(tries)
	switch pw {
	case PW3:
		p.ErrorCounterPW3 = tries
	case RC:
		p.ErrorCounterRC = tries
	default:
		p.ErrorCounterPW1 = tries
	}
}
