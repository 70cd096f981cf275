package openpgp

import (
	"fmt"

	"github.com/gregLibert/pgp-token/pkg/applet"
	"github.com/gregLibert/pgp-token/pkg/buffer"
	"github.com/gregLibert/pgp-token/pkg/cryptosuite"
	"github.com/gregLibert/pgp-token/pkg/filesystem"
	"github.com/gregLibert/pgp-token/pkg/iso7816"
	"github.com/gregLibert/pgp-token/pkg/tlv"
)

// Factory default passwords (OpenPGP card v3.3.1 page 23).
var (
	defaultPW1 = []byte("123456")
	defaultPW3 = []byte("12345678")
)

// cardCapabilities is the ISO 7816-4 card capabilities record (DO 47)
// announced in the FCI: DF selection by full or partial name, plain data
// coding, command chaining supported, no extended length.
var cardCapabilities = []byte{0xC0, 0x00, 0x80}

// Applet is the OpenPGP card application. It owns the command table and
// the per-session security state; persistent data lives in the store.
type Applet struct {
	ctx      *commandContext
	security *Security
	commands []applet.APDUCommand
	fullAID  []byte
}

// New assembles the applet over its collaborators. The serial and
// manufacturer bytes are baked into the full AID.
func New(fs *filesystem.FileSystem, lib *cryptosuite.CryptoLib, keys *cryptosuite.KeyStorage,
	engine *cryptosuite.CryptoEngine, manufacturer [2]byte, serial [4]byte) *Applet {

	security := NewSecurity(fs)
	ctx := &commandContext{
		fs:       fs,
		security: security,
		lib:      lib,
		keys:     keys,
		engine:   engine,
	}

	a := &Applet{
		ctx:      ctx,
		security: security,
	}

	// Full AID: RID + application (the 6-byte prefix), version,
	// manufacturer, serial, RFU.
	a.fullAID = append(a.fullAID, aidPrefix...)
	a.fullAID = append(a.fullAID, aidVersion...)
	a.fullAID = append(a.fullAID, manufacturer[:]...)
	a.fullAID = append(a.fullAID, serial[:]...)
	a.fullAID = append(a.fullAID, 0x00, 0x00)

	a.commands = []applet.APDUCommand{
		&APDUGetChallenge{ctx},
		&APDUInternalAuthenticate{ctx},
		&APDUGenerateAsymmetricKeyPair{ctx},
		&APDUPSO{ctx},
		&APDUVerify{ctx},
		&APDUChangeReferenceData{ctx},
		&APDUResetRetryCounter{ctx},
		&APDUGetData{ctx},
		&APDUPutData{ctx},
	}

	return a
}

// AID returns the registered AID prefix used for SELECT matching.
func (a *Applet) AID() []byte {
	return aidPrefix
}

// FullAID returns the complete 16-byte AID served under DO 4F.
func (a *Applet) FullAID() []byte {
	return a.fullAID
}

// Select activates the applet: session authentication is dropped and the
// FCI template — DF name plus the proprietary template carrying the card
// capabilities — is written for the host. Persistent state is untouched.
func (a *Applet) Select(out *buffer.Buffer) applet.Error {
	a.security.Reset()
	out.Append(tlv.MustEncode(tlv.NewTemplate("6F",
		tlv.New("84", a.fullAID),
		tlv.NewTemplate("A5",
			tlv.New("47", cardCapabilities),
		),
	)))
	return applet.NoError
}

// APDUExchange routes one command APDU through the command table. The
// first command accepting the header processes it. When no command claims
// the INS the answer is WrongAPDUINS; when one recognised the INS but
// rejected CLA or P1P2, that more specific error wins.
func (a *Applet) APDUExchange(apdu []byte, out *buffer.Buffer) applet.Error {
	cmd, err := iso7816.ParseCommand(apdu)
	if err != nil {
		return applet.WrongAPDULength
	}

	headerErr := applet.WrongAPDUINS
	for _, c := range a.commands {
		chk := c.Check(cmd.CLA, cmd.Ins, cmd.P1, cmd.P2)
		if chk == applet.NoError {
			return c.Process(cmd.CLA, cmd.Ins, cmd.P1, cmd.P2, cmd.Data, cmd.Le, out)
		}
		if chk != applet.WrongCommand && headerErr == applet.WrongAPDUINS {
			headerErr = chk
		}
	}
	return headerErr
}

// EnsureInitialized seeds the factory state on first boot: default
// passwords, PW status, RSA-2048 algorithm attributes for all three slots,
// a zero DS counter and the full AID under DO 4F. A card that already
// carries an AID is left alone.
func (a *Applet) EnsureInitialized() error {
	existing, err := a.ctx.fs.ReadFile(AppID, doAID, filesystem.NamespaceFile)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	if err := a.ctx.writePassword(PW1, defaultPW1); err != nil {
		return fmt.Errorf("seeding PW1: %w", err)
	}
	if err := a.ctx.writePassword(PW3, defaultPW3); err != nil {
		return fmt.Errorf("seeding PW3: %w", err)
	}

	pwstatus := DefaultPWStatus()
	if err := pwstatus.Save(a.ctx.fs); err != nil {
		return fmt.Errorf("seeding PW status: %w", err)
	}

	alg := DefaultAlgorithmAttr()
	for _, id := range []filesystem.ObjectID{doAlgAttrSign, doAlgAttrDecrypt, doAlgAttrAuth} {
		if err := a.ctx.fs.WriteFile(AppID, id, filesystem.NamespaceFile, alg.Serialize()); err != nil {
			return fmt.Errorf("seeding algorithm attributes: %w", err)
		}
	}

	if err := a.ctx.fs.WriteFile(AppID, doDSCounterValue, filesystem.NamespaceFile, []byte{0x00, 0x00, 0x00}); err != nil {
		return fmt.Errorf("seeding DS counter: %w", err)
	}

	if err := a.ctx.fs.WriteFile(AppID, doAID, filesystem.NamespaceFile, a.fullAID); err != nil {
		return fmt.Errorf("seeding AID: %w", err)
	}

	return nil
}
