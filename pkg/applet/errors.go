// Package applet defines the command execution framework of the card: the
// closed set of command error kinds, the APDUCommand contract, the Applet
// interface, the registry of applets, and the top-level APDU executor.
package applet

// Error is the closed set of outcomes a command or the executor can
// produce. It is deliberately distinct from the wire status words; the
// executor owns the mapping between the two.
//
// ErrorPutInData is a sentinel, not a failure: it means the handler has
// already stamped a non-standard status word (such as 63CX) into the
// response and the executor must neither append 9000 nor overwrite it.
type Error int

const (
	NoError Error = iota
	WrongAPDUStructure
	WrongAPDULength
	WrongAPDUCLA
	WrongAPDUINS
	WrongAPDUP1P2
	WrongAPDUDataLength
	WrongCommand
	AppletNotFound
	DataNotFound
	AccessDenied
	WrongPassword
	PasswordLocked
	CryptoOperationError
	InternalError
	ErrorPutInData
)

var errorNames = map[Error]string{
	NoError:              "NoError",
	WrongAPDUStructure:   "WrongAPDUStructure",
	WrongAPDULength:      "WrongAPDULength",
	WrongAPDUCLA:         "WrongAPDUCLA",
	WrongAPDUINS:         "WrongAPDUINS",
	WrongAPDUP1P2:        "WrongAPDUP1P2",
	WrongAPDUDataLength:  "WrongAPDUDataLength",
	WrongCommand:         "WrongCommand",
	AppletNotFound:       "AppletNotFound",
	DataNotFound:         "DataNotFound",
	AccessDenied:         "AccessDenied",
	WrongPassword:        "WrongPassword",
	PasswordLocked:       "PasswordLocked",
	CryptoOperationError: "CryptoOperationError",
	InternalError:        "InternalError",
	ErrorPutInData:       "ErrorPutInData",
}

// String returns the error kind's name.
func (e Error) String() string {
	if name, ok := errorNames[e]; ok {
		return name
	}
	return "UnknownError"
}

// Error makes the kind usable where a standard error is expected.
func (e Error) Error() string {
	return e.String()
}
