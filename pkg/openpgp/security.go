package openpgp

import (
	"github.com/gregLibert/pgp-token/pkg/applet"
	"github.com/gregLibert/pgp-token/pkg/filesystem"
)

// Security holds the applet's per-session authentication state and the
// policy/counter logic around it: which password states are currently
// verified, the digital-signature counter, and the static access table of
// the data objects.
//
// The four flags are RAM only. They are cleared on power-up and whenever
// the applet is (re-)selected; the retry counters in the PW status bytes
// persist independently.
type Security struct {
	fs   *filesystem.FileSystem
	auth [4]bool // indexed by Password
}

// NewSecurity builds the state over the persistent store.
func NewSecurity(fs *filesystem.FileSystem) *Security {
	return &Security{fs: fs}
}

// Reset clears every authentication flag.
func (s *Security) Reset() {
	s.auth = [4]bool{}
}

// SetAuth marks a password state verified. Verifying PW1 also arms PSOCDS.
func (s *Security) SetAuth(pw Password) {
	s.auth[pw] = true
	if pw == PW1 {
		s.auth[PSOCDS] = true
	}
}

// ClearAuth revokes a password state. Revoking PW1 also disarms PSOCDS.
func (s *Security) ClearAuth(pw Password) {
	s.auth[pw] = false
	if pw == PW1 {
		s.auth[PSOCDS] = false
	}
}

// GetAuth reports whether a password state is verified.
func (s *Security) GetAuth(pw Password) bool {
	return s.auth[pw]
}

// DS counter bounds: a 3-byte counter saturating instead of wrapping.
const maxDSCounter = 0xFFFFFF

// DSCounter reads the persistent signature counter.
func (s *Security) DSCounter() (uint32, error) {
	raw, err := s.fs.ReadFile(AppID, doDSCounterValue, filesystem.NamespaceFile)
	if err != nil {
		return 0, err
	}
	var v uint32
	for _, b := range raw {
		v = v<<8 | uint32(b)
	}
	return v, nil
}

// IncDSCounter increments the signature counter, saturating at 0xFFFFFF.
// PSO:CDS calls this on every attempt, successful or not.
func (s *Security) IncDSCounter() applet.Error {
	v, err := s.DSCounter()
	if err != nil {
		return applet.InternalError
	}
	if v < maxDSCounter {
		v++
	}
	raw := []byte{byte(v >> 16), byte(v >> 8), byte(v)}
	if err := s.fs.WriteFile(AppID, doDSCounterValue, filesystem.NamespaceFile, raw); err != nil {
		return applet.InternalError
	}
	return applet.NoError
}

// accessCondition gates one direction of data-object access.
type accessCondition int

const (
	accessAlways accessCondition = iota
	accessPW1
	accessPW3
	accessNever
)

type accessRule struct {
	read  accessCondition
	write accessCondition
}

// dataObjectAccess is the static policy table of the well-known DOs
// (OpenPGP card v3.3.1, access condition tables pages 31-36).
var dataObjectAccess = map[uint16]accessRule{
	// Private use DOs.
	0x0101: {accessAlways, accessPW1},
	0x0102: {accessAlways, accessPW3},
	0x0103: {accessPW1, accessPW1},
	0x0104: {accessPW3, accessPW3},

	// Application identification and composite templates.
	doAID:             {accessAlways, accessNever},
	0x005B:            {accessAlways, accessPW3}, // name
	doLoginData:       {accessAlways, accessPW3},
	0x0065:            {accessAlways, accessNever}, // cardholder related data
	0x006E:            {accessAlways, accessNever}, // application related data
	0x0073:            {accessAlways, accessNever}, // discretionary data objects
	doSecuritySupport: {accessAlways, accessNever},
	doDSCounterValue:  {accessAlways, accessNever},
	0x5F2D:            {accessAlways, accessPW3}, // language preference
	0x5F35:            {accessAlways, accessPW3}, // sex
	0x5F50:            {accessAlways, accessPW3}, // URL
	0x7F21:            {accessAlways, accessPW3}, // cardholder certificate

	// Algorithm attributes, PW status and key metadata.
	0x00C0:           {accessAlways, accessNever}, // extended capabilities
	doAlgAttrSign:    {accessAlways, accessPW3},
	doAlgAttrDecrypt: {accessAlways, accessPW3},
	doAlgAttrAuth:    {accessAlways, accessPW3},
	doPWStatus:       {accessAlways, accessPW3},
	0x00C5:           {accessAlways, accessPW3}, // fingerprints
	0x00C6:           {accessAlways, accessPW3}, // CA fingerprints
	0x00C7:           {accessAlways, accessPW3},
	0x00C8:           {accessAlways, accessPW3},
	0x00C9:           {accessAlways, accessPW3},
	0x00CA:           {accessAlways, accessPW3},
	0x00CD:           {accessAlways, accessPW3}, // generation timestamps

	// The resetting code can be installed but never read back.
	doResettingCode: {accessNever, accessPW3},
}

// DataObjectAccessCheck applies the policy table for a read or write of
// the given object. Unknown objects are not served: reads answer
// DataNotFound, writes AccessDenied.
func (s *Security) DataObjectAccessCheck(objectID uint16, write bool) applet.Error {
	rule, known := dataObjectAccess[objectID]
	if !known {
		if write {
			return applet.AccessDenied
		}
		return applet.DataNotFound
	}

	cond := rule.read
	if write {
		cond = rule.write
	}

	switch cond {
	case accessAlways:
		return applet.NoError
	case accessPW1:
		if s.GetAuth(PW1) {
			return applet.NoError
		}
	case accessPW3:
		if s.GetAuth(PW3) {
			return applet.NoError
		}
	}
	return applet.AccessDenied
}
