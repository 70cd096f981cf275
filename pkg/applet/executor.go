package applet

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/gregLibert/pgp-token/pkg/buffer"
	"github.com/gregLibert/pgp-token/pkg/iso7816"
)

// APDUExecutor is the card's top level: it validates the framing of an
// incoming APDU, handles SELECT itself, forwards everything else to the
// selected applet, and finishes the response with a status word.
//
// The status-word step has two modes. NoError appends 9000 after whatever
// the handler wrote; every real error replaces the buffer with just the
// mapped status word, so a half-built response never leaks. ErrorPutInData
// suppresses both (the handler already stamped its own status).
type APDUExecutor struct {
	storage *AppletStorage

	// Log receives debug traces of command routing. Nil disables the side
	// channel entirely.
	Log logrus.FieldLogger
}

// NewAPDUExecutor builds an executor over an applet registry.
func NewAPDUExecutor(storage *AppletStorage) *APDUExecutor {
	return &APDUExecutor{storage: storage}
}

// SetResultError finishes the response according to the error kind.
func (x *APDUExecutor) SetResultError(out *buffer.Buffer, err Error) {
	switch err {
	case NoError:
		out.AppendStatus(uint16(iso7816.SW_NO_ERROR))
	case ErrorPutInData:
		// Status already stamped by the handler.
	case AppletNotFound:
		out.SetStatus(uint16(iso7816.SW_ERR_FILE_NOT_FOUND))
	case WrongAPDUStructure, WrongAPDULength, WrongAPDUDataLength:
		out.SetStatus(uint16(iso7816.SW_ERR_WRONG_LENGTH))
	case WrongAPDUCLA:
		out.SetStatus(uint16(iso7816.SW_ERR_CLA_NOT_SUPPORTED))
	case WrongAPDUINS, WrongCommand:
		out.SetStatus(uint16(iso7816.SW_ERR_INS_INVALID))
	case WrongAPDUP1P2:
		out.SetStatus(uint16(iso7816.SW_ERR_INCORRECT_PARAMS_P1P2))
	case DataNotFound:
		out.SetStatus(uint16(iso7816.SW_ERR_REF_DATA_NOT_FOUND))
	case AccessDenied, WrongPassword:
		out.SetStatus(uint16(iso7816.SW_ERR_SECURITY_STATUS_NOT_SAT))
	case PasswordLocked:
		out.SetStatus(uint16(iso7816.SW_ERR_AUTH_METHOD_BLOCKED))
	default:
		out.SetStatus(uint16(iso7816.SW_ERR_UNKNOWN))
	}
}

// Execute processes one raw APDU frame into out.
func (x *APDUExecutor) Execute(apdu []byte, out *buffer.Buffer) Error {
	out.Clear()

	cmd, err := iso7816.ParseCommand(apdu)
	if err != nil {
		out.SetStatus(uint16(iso7816.SW_ERR_WRONG_LENGTH))
		if errors.Is(err, iso7816.ErrFrameTooShort) {
			return WrongAPDUStructure
		}
		return WrongAPDULength
	}

	if cmd.Ins == iso7816.INS_SELECT {
		if cmd.CLA != 0x00 {
			out.SetStatus(uint16(iso7816.SW_ERR_CLA_NOT_SUPPORTED))
			return WrongAPDUCLA
		}
		if cmd.P1 != 0x04 || cmd.P2 != 0x00 {
			out.SetStatus(uint16(iso7816.SW_ERR_INCORRECT_PARAMS_P1P2))
			return WrongAPDUP1P2
		}

		selErr := x.storage.SelectApplet(cmd.Data, out)
		x.SetResultError(out, selErr)
		x.trace(cmd, selErr)
		return selErr
	}

	active := x.storage.SelectedApplet()
	if active == nil {
		out.SetStatus(uint16(iso7816.SW_ERR_COND_OF_USE_NOT_SAT))
		x.trace(cmd, NoError)
		return NoError
	}

	exErr := active.APDUExchange(apdu, out)
	x.SetResultError(out, exErr)
	x.trace(cmd, exErr)
	return exErr
}

func (x *APDUExecutor) trace(cmd iso7816.Command, result Error) {
	if x.Log == nil {
		return
	}
	x.Log.WithFields(logrus.Fields{
		"ins":    byte(cmd.Ins),
		"p1":     cmd.P1,
		"p2":     cmd.P2,
		"lc":     len(cmd.Data),
		"result": result.String(),
	}).Debug("apdu exchange")
}
