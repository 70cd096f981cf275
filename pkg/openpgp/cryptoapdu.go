package openpgp

import (
	"errors"

	"github.com/gregLibert/pgp-token/pkg/applet"
	"github.com/gregLibert/pgp-token/pkg/buffer"
	"github.com/gregLibert/pgp-token/pkg/cryptosuite"
	"github.com/gregLibert/pgp-token/pkg/filesystem"
	"github.com/gregLibert/pgp-token/pkg/iso7816"
)

// keyTypeFileID maps a key slot tag to the DO holding its algorithm
// attributes.
func keyTypeFileID(kt cryptosuite.KeyType) filesystem.ObjectID {
	switch kt {
	case cryptosuite.KeyDigitalSignature:
		return doAlgAttrSign
	case cryptosuite.KeyConfidentiality:
		return doAlgAttrDecrypt
	case cryptosuite.KeyAuthentication:
		return doAlgAttrAuth
	}
	return 0
}

// cryptoResult translates a crypto facade failure into a command error.
func cryptoResult(err error) applet.Error {
	if err == nil {
		return applet.NoError
	}
	if errors.Is(err, cryptosuite.ErrKeyNotFound) {
		return applet.DataNotFound
	}
	return applet.CryptoOperationError
}

// APDUGetChallenge implements GET CHALLENGE (INS 84): returning Le random
// bytes, where Le 0 reads as 255.
type APDUGetChallenge struct {
	ctx *commandContext
}

func (g *APDUGetChallenge) Name() string { return "GET CHALLENGE" }

func (g *APDUGetChallenge) Check(cla byte, ins iso7816.InsCode, p1, p2 byte) applet.Error {
	if ins != iso7816.INS_GET_CHALLENGE {
		return applet.WrongCommand
	}
	if cla != 0x00 {
		return applet.WrongAPDUCLA
	}
	if p1 != 0x00 || p2 != 0x00 {
		return applet.WrongAPDUP1P2
	}
	return applet.NoError
}

func (g *APDUGetChallenge) Process(cla byte, ins iso7816.InsCode, p1, p2 byte, data []byte, le byte, out *buffer.Buffer) applet.Error {
	if err := g.Check(cla, ins, p1, p2); err != applet.NoError {
		return err
	}

	if len(data) > 0 {
		return applet.WrongAPDUDataLength
	}

	n := int(le)
	if n == 0 {
		n = 0xFF
	}

	challenge, err := g.ctx.lib.GenerateRandom(n)
	if err != nil {
		return applet.CryptoOperationError
	}
	out.Append(challenge)
	return applet.NoError
}

// APDUInternalAuthenticate implements INTERNAL AUTHENTICATE (INS 88):
// signing the host's authentication input with the Authentication key.
// OpenPGP card v3.3.1 page 61.
type APDUInternalAuthenticate struct {
	ctx *commandContext
}

func (i *APDUInternalAuthenticate) Name() string { return "INTERNAL AUTHENTICATE" }

func (i *APDUInternalAuthenticate) Check(cla byte, ins iso7816.InsCode, p1, p2 byte) applet.Error {
	if ins != iso7816.INS_INTERNAL_AUTHENTICATE {
		return applet.WrongCommand
	}
	if cla != 0x00 {
		return applet.WrongAPDUCLA
	}
	if p1 != 0x00 || p2 != 0x00 {
		return applet.WrongAPDUP1P2
	}
	return applet.NoError
}

func (i *APDUInternalAuthenticate) Process(cla byte, ins iso7816.InsCode, p1, p2 byte, data []byte, le byte, out *buffer.Buffer) applet.Error {
	if err := i.Check(cla, ins, p1, p2); err != applet.NoError {
		return err
	}

	if !i.ctx.security.GetAuth(PW1) {
		return applet.AccessDenied
	}

	var alg AlgorithmAttr
	if err := alg.Load(i.ctx.fs, doAlgAttrAuth); err != nil || alg.AlgorithmID == AlgNone {
		return applet.DataNotFound
	}

	var sig []byte
	var err error
	if alg.AlgorithmID == AlgRSA {
		sig, err = i.ctx.engine.RSASign(AppID, cryptosuite.KeyAuthentication, data)
	} else {
		sig, err = i.ctx.engine.ECDSASign(AppID, cryptosuite.KeyAuthentication, data)
	}
	if err != nil {
		return cryptoResult(err)
	}

	out.Append(sig)
	return applet.NoError
}

// APDUGenerateAsymmetricKeyPair implements GENERATE ASYMMETRIC KEY PAIR
// (INS 47). P1 80 generates a fresh key for the slot named in the data
// field and answers with its 7F49 template; P1 81 re-reads the stored
// template. OpenPGP card v3.3.1 page 64.
type APDUGenerateAsymmetricKeyPair struct {
	ctx *commandContext
}

func (g *APDUGenerateAsymmetricKeyPair) Name() string { return "GENERATE ASYMMETRIC KEY PAIR" }

func (g *APDUGenerateAsymmetricKeyPair) Check(cla byte, ins iso7816.InsCode, p1, p2 byte) applet.Error {
	if ins != iso7816.INS_GENERATE_ASYMMETRIC_KEY_PAIR {
		return applet.WrongCommand
	}
	if cla != 0x00 && cla != 0x0C {
		return applet.WrongAPDUCLA
	}
	if (p1 != 0x80 && p1 != 0x81) || p2 != 0x00 {
		return applet.WrongAPDUP1P2
	}
	return applet.NoError
}

func (g *APDUGenerateAsymmetricKeyPair) Process(cla byte, ins iso7816.InsCode, p1, p2 byte, data []byte, le byte, out *buffer.Buffer) applet.Error {
	if err := g.Check(cla, ins, p1, p2); err != applet.NoError {
		return err
	}

	if len(data) != 2 {
		return applet.WrongAPDUDataLength
	}

	kt := cryptosuite.KeyType(data[0])
	fileID := keyTypeFileID(kt)
	if fileID == 0 {
		return applet.DataNotFound
	}

	var alg AlgorithmAttr
	if err := alg.Load(g.ctx.fs, fileID); err != nil || alg.AlgorithmID == AlgNone {
		return applet.DataNotFound
	}

	if p1 == 0x81 {
		template, err := g.ctx.keys.GetPublicKey7F49(AppID, kt)
		if err != nil || len(template) == 0 {
			return applet.DataNotFound
		}
		out.Append(template)
		return applet.NoError
	}

	if !g.ctx.security.GetAuth(PW3) {
		return applet.AccessDenied
	}

	switch alg.AlgorithmID {
	case AlgRSA:
		key, err := g.ctx.lib.RSAGenKey(int(alg.RSA.NLen))
		if err != nil {
			return applet.CryptoOperationError
		}
		if err := g.ctx.keys.PutRSAFullKey(AppID, kt, key); err != nil {
			return applet.InternalError
		}

	case AlgECDSAForCDSIntAuth:
		key, err := g.ctx.lib.ECDSAGenKey()
		if err != nil {
			return applet.CryptoOperationError
		}
		if err := g.ctx.keys.PutECDSAFullKey(AppID, kt, key); err != nil {
			return applet.InternalError
		}

	default:
		return applet.DataNotFound
	}

	template, err := g.ctx.keys.GetPublicKey7F49(AppID, kt)
	if err != nil {
		return cryptoResult(err)
	}
	out.Append(template)
	return applet.NoError
}

// APDUPSO implements PERFORM SECURITY OPERATION (INS 2A) with its three
// parameter pairs: CDS (9E 9A), DECIPHER (80 86) and ENCIPHER (86 80).
// OpenPGP card v3.3.1 page 53, ISO 7816-8.
type APDUPSO struct {
	ctx *commandContext
}

func (p *APDUPSO) Name() string { return "PSO" }

func (p *APDUPSO) Check(cla byte, ins iso7816.InsCode, p1, p2 byte) applet.Error {
	if ins != iso7816.INS_PERFORM_SECURITY_OPERATION {
		return applet.WrongCommand
	}
	if cla != 0x00 {
		return applet.WrongAPDUCLA
	}
	if !((p1 == 0x9E && p2 == 0x9A) || // compute digital signature
		(p1 == 0x80 && p2 == 0x86) || // decipher
		(p1 == 0x86 && p2 == 0x80)) { // encipher
		return applet.WrongAPDUP1P2
	}
	return applet.NoError
}

func (p *APDUPSO) Process(cla byte, ins iso7816.InsCode, p1, p2 byte, data []byte, le byte, out *buffer.Buffer) applet.Error {
	if err := p.Check(cla, ins, p1, p2); err != applet.NoError {
		return err
	}

	switch {
	case p1 == 0x9E && p2 == 0x9A:
		return p.computeDigitalSignature(data, out)
	case p1 == 0x80 && p2 == 0x86:
		return p.decipher(data, out)
	default:
		// PSO:ENCIPHER is accepted structurally but not implemented.
		return applet.NoError
	}
}

// computeDigitalSignature handles PSO:CDS. The DS counter advances on
// every attempt: a failed signature still consumes a counter tick, and the
// single-signature rule still disarms PSOCDS.
func (p *APDUPSO) computeDigitalSignature(data []byte, out *buffer.Buffer) applet.Error {
	if !p.ctx.security.GetAuth(PSOCDS) {
		return applet.AccessDenied
	}

	var pwstatus PWStatusBytes
	if err := pwstatus.Load(p.ctx.fs); err != nil {
		return applet.InternalError
	}

	var alg AlgorithmAttr
	if err := alg.Load(p.ctx.fs, doAlgAttrSign); err != nil || alg.AlgorithmID == AlgNone {
		return applet.DataNotFound
	}

	var sig []byte
	var signErr error
	if alg.AlgorithmID == AlgRSA {
		sig, signErr = p.ctx.engine.RSASign(AppID, cryptosuite.KeyDigitalSignature, data)
	} else {
		sig, signErr = p.ctx.engine.ECDSASign(AppID, cryptosuite.KeyDigitalSignature, data)
	}

	if !pwstatus.PW1ValidSeveralCDS {
		p.ctx.security.ClearAuth(PSOCDS)
	}

	if cntErr := p.ctx.security.IncDSCounter(); cntErr != applet.NoError {
		return cntErr
	}

	if signErr != nil {
		return cryptoResult(signErr)
	}

	out.Append(sig)
	return applet.NoError
}

// decipher handles PSO:DECIPHER. The leading padding indicator selects the
// branch: 00 is RSA, 02 would be AES and A6 ECDH — both unsupported here.
// OpenPGP card v3.3.1 page 59.
func (p *APDUPSO) decipher(data []byte, out *buffer.Buffer) applet.Error {
	if !p.ctx.security.GetAuth(PW1) {
		return applet.AccessDenied
	}

	var alg AlgorithmAttr
	if err := alg.Load(p.ctx.fs, doAlgAttrDecrypt); err != nil || alg.AlgorithmID == AlgNone {
		return applet.DataNotFound
	}

	if len(data) == 0 {
		return applet.WrongAPDUDataLength
	}

	switch data[0] {
	case 0x00:
		if alg.AlgorithmID != AlgRSA {
			return applet.NoError
		}
		plain, err := p.ctx.engine.RSADecipher(AppID, cryptosuite.KeyConfidentiality, data[1:])
		if err != nil {
			return cryptoResult(err)
		}
		out.Append(plain)
		return applet.NoError

	case 0x02, 0xA6: // AES, ECDH
		return applet.CryptoOperationError

	default:
		return applet.NoError
	}
}
