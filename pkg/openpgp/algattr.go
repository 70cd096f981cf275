package openpgp

import (
	"encoding/binary"

	"github.com/gregLibert/pgp-token/pkg/filesystem"
)

// AlgorithmID is the first byte of the algorithm attribute DOs C1/C2/C3
// (OpenPGP card v3.3.1, RFC 4880 registry). Zero means no attributes are
// present for the slot.
type AlgorithmID byte

const (
	AlgNone               AlgorithmID = 0x00
	AlgRSA                AlgorithmID = 0x01
	AlgECDH               AlgorithmID = 0x12
	AlgECDSAForCDSIntAuth AlgorithmID = 0x13
)

// RSAAttr carries the RSA branch of an algorithm attribute record.
type RSAAttr struct {
	NLen         uint16 // modulus size in bits
	PubExpLen    uint16 // public exponent size in bits
	ImportFormat byte
}

// AlgorithmAttr is one decoded C1/C2/C3 record.
type AlgorithmAttr struct {
	AlgorithmID AlgorithmID
	RSA         RSAAttr
	OID         []byte // curve OID for the ECDSA/ECDH encodings
}

// DefaultAlgorithmAttr is the factory setting for all three slots:
// RSA 2048, 32-bit public exponent field, standard import format.
func DefaultAlgorithmAttr() AlgorithmAttr {
	return AlgorithmAttr{
		AlgorithmID: AlgRSA,
		RSA:         RSAAttr{NLen: 2048, PubExpLen: 32},
	}
}

// Serialize renders the attribute record as stored in its DO.
func (a *AlgorithmAttr) Serialize() []byte {
	if a.AlgorithmID == AlgRSA {
		out := make([]byte, 6)
		out[0] = byte(AlgRSA)
		binary.BigEndian.PutUint16(out[1:3], a.RSA.NLen)
		binary.BigEndian.PutUint16(out[3:5], a.RSA.PubExpLen)
		out[5] = a.RSA.ImportFormat
		return out
	}
	return append([]byte{byte(a.AlgorithmID)}, a.OID...)
}

// Load reads and decodes the attribute record of the given DO. A missing
// or empty DO leaves AlgorithmID at zero, which callers treat as "key slot
// not configured".
func (a *AlgorithmAttr) Load(fs *filesystem.FileSystem, id filesystem.ObjectID) error {
	raw, err := fs.ReadFile(AppID, id, filesystem.NamespaceFile)
	if err != nil {
		return err
	}

	*a = AlgorithmAttr{}
	if len(raw) == 0 {
		return nil
	}

	a.AlgorithmID = AlgorithmID(raw[0])
	if a.AlgorithmID == AlgRSA {
		if len(raw) >= 5 {
			a.RSA.NLen = binary.BigEndian.Uint16(raw[1:3])
			a.RSA.PubExpLen = binary.BigEndian.Uint16(raw[3:5])
		}
		if len(raw) >= 6 {
			a.RSA.ImportFormat = raw[5]
		}
		return nil
	}

	a.OID = append([]byte(nil), raw[1:]...)
	return nil
}
