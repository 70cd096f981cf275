package openpgp

import (
	"bytes"

	"github.com/gregLibert/pgp-token/pkg/applet"
	"github.com/gregLibert/pgp-token/pkg/buffer"
	"github.com/gregLibert/pgp-token/pkg/cryptosuite"
	"github.com/gregLibert/pgp-token/pkg/filesystem"
	"github.com/gregLibert/pgp-token/pkg/iso7816"
	"github.com/gregLibert/pgp-token/pkg/tlv"
)

// commandContext bundles the component references every command needs.
// The composition root builds exactly one and hands it to each command,
// replacing the process-wide factory of earlier firmware generations.
type commandContext struct {
	fs       *filesystem.FileSystem
	security *Security
	lib      *cryptosuite.CryptoLib
	keys     *cryptosuite.KeyStorage
	engine   *cryptosuite.CryptoEngine
}

func (c *commandContext) readPassword(pw Password) ([]byte, error) {
	return c.fs.ReadFile(AppID, passwordFileID(pw), filesystem.NamespaceSecure)
}

func (c *commandContext) writePassword(pw Password, value []byte) error {
	return c.fs.WriteFile(AppID, passwordFileID(pw), filesystem.NamespaceSecure, value)
}

// resetRetryCounter restores a password's counter to the default and
// persists the PW status bytes.
func (c *commandContext) resetRetryCounter(pw Password) applet.Error {
	var pwstatus PWStatusBytes
	if err := pwstatus.Load(c.fs); err != nil {
		return applet.InternalError
	}
	pwstatus.PasswdSetRemains(pw, DefaultPWResetCounter)
	if err := pwstatus.Save(c.fs); err != nil {
		return applet.InternalError
	}
	return applet.NoError
}

// APDUVerify implements VERIFY (INS 20): presenting, querying and
// resetting the PW1/PW3 verification state.
type APDUVerify struct {
	ctx *commandContext
}

func (v *APDUVerify) Name() string { return "VERIFY" }

func (v *APDUVerify) Check(cla byte, ins iso7816.InsCode, p1, p2 byte) applet.Error {
	if ins != iso7816.INS_VERIFY {
		return applet.WrongCommand
	}
	if cla != 0x00 && cla != 0x0C {
		return applet.WrongAPDUCLA
	}
	if (p1 != 0x00 && p1 != 0xFF) ||
		(p2 != 0x81 && p2 != 0x82 && p2 != 0x83) {
		return applet.WrongAPDUP1P2
	}
	return applet.NoError
}

func (v *APDUVerify) Process(cla byte, ins iso7816.InsCode, p1, p2 byte, data []byte, le byte, out *buffer.Buffer) applet.Error {
	if err := v.Check(cla, ins, p1, p2); err != applet.NoError {
		return err
	}

	if p1 == 0xFF && len(data) > 0 {
		return applet.WrongAPDULength
	}

	pwID := PW1
	if p2 == 0x83 {
		pwID = PW3
	}

	// P1 FF resets the verification state.
	if p1 == 0xFF {
		v.ctx.security.ClearAuth(pwID)
		return applet.NoError
	}

	var pwstatus PWStatusBytes
	if err := pwstatus.Load(v.ctx.fs); err != nil {
		return applet.InternalError
	}

	stored, err := v.ctx.readPassword(pwID)
	if err != nil {
		return applet.InternalError
	}

	// No password installed: report the verification state instead of
	// comparing. The 63CX answer is stamped here, so the executor must not
	// trail a 9000.
	if len(stored) == 0 {
		if v.ctx.security.GetAuth(pwID) {
			return applet.NoError
		}
		out.AppendStatus(uint16(iso7816.RetriesStatus(pwstatus.PasswdTryRemains(pwID))))
		return applet.ErrorPutInData
	}

	if len(stored) < PWMinLength(pwID) {
		return applet.InternalError
	}

	if pwstatus.PasswdTryRemains(pwID) == 0 {
		return applet.PasswordLocked
	}

	if !bytes.Equal(data, stored) {
		pwstatus.DecErrorCounter(pwID)
		if err := pwstatus.Save(v.ctx.fs); err != nil {
			return applet.InternalError
		}
		return applet.WrongPassword
	}

	v.ctx.security.SetAuth(pwID)
	pwstatus.PasswdSetRemains(pwID, DefaultPWResetCounter)
	if err := pwstatus.Save(v.ctx.fs); err != nil {
		return applet.InternalError
	}
	return applet.NoError
}

// APDUChangeReferenceData implements CHANGE REFERENCE DATA (INS 24):
// replacing PW1 or PW3 after presenting the current value.
type APDUChangeReferenceData struct {
	ctx *commandContext
}

func (c *APDUChangeReferenceData) Name() string { return "CHANGE REFERENCE DATA" }

func (c *APDUChangeReferenceData) Check(cla byte, ins iso7816.InsCode, p1, p2 byte) applet.Error {
	if ins != iso7816.INS_CHANGE_REFERENCE_DATA {
		return applet.WrongCommand
	}
	if cla != 0x00 && cla != 0x0C {
		return applet.WrongAPDUCLA
	}
	if p1 != 0x00 || (p2 != 0x81 && p2 != 0x83) {
		return applet.WrongAPDUP1P2
	}
	return applet.NoError
}

func (c *APDUChangeReferenceData) Process(cla byte, ins iso7816.InsCode, p1, p2 byte, data []byte, le byte, out *buffer.Buffer) applet.Error {
	if err := c.Check(cla, ins, p1, p2); err != applet.NoError {
		return err
	}

	pwID := PW1
	if p2 == 0x83 {
		pwID = PW3
	}

	stored, err := c.ctx.readPassword(pwID)
	if err != nil {
		return applet.InternalError
	}
	if len(stored) < PWMinLength(pwID) {
		return applet.InternalError
	}

	// Data is old password followed by new password; the split point is the
	// stored length.
	if len(data) < len(stored)+PWMinLength(pwID) ||
		len(data) > len(stored)+PWMaxLength(pwID) {
		return applet.WrongAPDUDataLength
	}

	if !bytes.HasPrefix(data, stored) {
		return applet.WrongPassword
	}

	if err := c.ctx.writePassword(pwID, data[len(stored):]); err != nil {
		return applet.InternalError
	}

	return c.ctx.resetRetryCounter(pwID)
}

// APDUResetRetryCounter implements RESET RETRY COUNTER (INS 2C): setting a
// fresh PW1 either after PW3 verification (P1 02) or by presenting the
// resetting code (P1 00).
type APDUResetRetryCounter struct {
	ctx *commandContext
}

func (r *APDUResetRetryCounter) Name() string { return "RESET RETRY COUNTER" }

func (r *APDUResetRetryCounter) Check(cla byte, ins iso7816.InsCode, p1, p2 byte) applet.Error {
	if ins != iso7816.INS_RESET_RETRY_COUNTER {
		return applet.WrongCommand
	}
	if cla != 0x00 && cla != 0x0C {
		return applet.WrongAPDUCLA
	}
	if (p1 != 0x00 && p1 != 0x02) || p2 != 0x81 {
		return applet.WrongAPDUP1P2
	}
	return applet.NoError
}

func (r *APDUResetRetryCounter) Process(cla byte, ins iso7816.InsCode, p1, p2 byte, data []byte, le byte, out *buffer.Buffer) applet.Error {
	if err := r.Check(cla, ins, p1, p2); err != applet.NoError {
		return err
	}

	var newPW []byte
	if p1 == 0x02 {
		if len(data) < PW1MinLength || len(data) > PW1MaxLength {
			return applet.WrongAPDUDataLength
		}
		if !r.ctx.security.GetAuth(PW3) {
			return applet.AccessDenied
		}
		newPW = data
	} else {
		rc, err := r.ctx.fs.ReadFile(AppID, doResettingCode, filesystem.NamespaceFile)
		if err != nil {
			return applet.InternalError
		}

		if len(data) < len(rc)+PW1MinLength ||
			len(data) > len(rc)+PW1MaxLength {
			return applet.WrongAPDUDataLength
		}
		if !bytes.HasPrefix(data, rc) {
			return applet.WrongPassword
		}
		newPW = data[len(rc):]
	}

	if err := r.ctx.writePassword(PW1, newPW); err != nil {
		return applet.InternalError
	}

	return r.ctx.resetRetryCounter(PW1)
}

// APDUGetData implements GET DATA (INS CA/CB): serving data objects under
// the access policy. OpenPGP card v3.3.1 page 49.
type APDUGetData struct {
	ctx *commandContext
}

func (g *APDUGetData) Name() string { return "GET DATA" }

func (g *APDUGetData) Check(cla byte, ins iso7816.InsCode, p1, p2 byte) applet.Error {
	if ins != iso7816.INS_GET_DATA && ins != iso7816.INS_GET_DATA_BER {
		return applet.WrongCommand
	}
	if cla != 0x00 && cla != 0x0C {
		return applet.WrongAPDUCLA
	}
	return applet.NoError
}

func (g *APDUGetData) Process(cla byte, ins iso7816.InsCode, p1, p2 byte, data []byte, le byte, out *buffer.Buffer) applet.Error {
	if err := g.Check(cla, ins, p1, p2); err != applet.NoError {
		return err
	}

	objectID := uint16(p1)<<8 | uint16(p2)
	if err := g.ctx.security.DataObjectAccessCheck(objectID, false); err != applet.NoError {
		return err
	}

	// The security support template wraps the DS counter.
	if objectID == doSecuritySupport {
		v, err := g.ctx.security.DSCounter()
		if err != nil {
			return applet.InternalError
		}
		counter := []byte{byte(v >> 16), byte(v >> 8), byte(v)}
		out.Append(tlv.MustEncode(tlv.NewTemplate("7A", tlv.New("93", counter))))
		return applet.NoError
	}

	content, err := g.ctx.fs.ReadFile(AppID, filesystem.ObjectID(objectID), filesystem.NamespaceFile)
	if err != nil {
		return applet.InternalError
	}
	out.Append(content)
	return applet.NoError
}

// APDUPutData implements PUT DATA (INS DA/DB): writing data objects, and —
// for INS DB with tag 3FFF — feeding Extended Header key-import chunks to
// the key storage. Chained chunks are announced by the CLA chaining bit.
type APDUPutData struct {
	ctx *commandContext
}

func (p *APDUPutData) Name() string { return "PUT DATA" }

func (p *APDUPutData) Check(cla byte, ins iso7816.InsCode, p1, p2 byte) applet.Error {
	if ins != iso7816.INS_PUT_DATA && ins != iso7816.INS_PUT_DATA_BER {
		return applet.WrongCommand
	}
	if ins == iso7816.INS_PUT_DATA_BER && (p1 != 0x3F || p2 != 0xFF) {
		return applet.WrongCommand
	}
	if cla != 0x00 && cla != 0x0C && cla != 0x10 {
		return applet.WrongAPDUCLA
	}
	return applet.NoError
}

func (p *APDUPutData) Process(cla byte, ins iso7816.InsCode, p1, p2 byte, data []byte, le byte, out *buffer.Buffer) applet.Error {
	if err := p.Check(cla, ins, p1, p2); err != applet.NoError {
		return err
	}

	out.Clear()

	if ins == iso7816.INS_PUT_DATA {
		objectID := uint16(p1)<<8 | uint16(p2)
		if err := p.ctx.security.DataObjectAccessCheck(objectID, true); err != applet.NoError {
			return err
		}
		if err := p.ctx.fs.WriteFile(AppID, filesystem.ObjectID(objectID), filesystem.NamespaceFile, data); err != nil {
			return applet.InternalError
		}
		return applet.NoError
	}

	// Key import rewrites a key slot; only the admin may do that.
	if !p.ctx.security.GetAuth(PW3) {
		return applet.AccessDenied
	}

	morePckFollow := iso7816.ParseClass(cla).IsChained
	if err := p.ctx.keys.SetKeyExtHeader(AppID, data, morePckFollow); err != nil {
		return applet.InternalError
	}
	return applet.NoError
}
