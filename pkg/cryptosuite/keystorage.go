package cryptosuite

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"
	"math/big"

	"github.com/gregLibert/pgp-token/pkg/filesystem"
	"github.com/gregLibert/pgp-token/pkg/tlv"
)

// ErrKeyNotFound reports an empty key slot.
var ErrKeyNotFound = errors.New("no key stored in slot")

// Stored key blobs carry a one-byte algorithm marker in front of the DER
// encoding, so the slot knows what it holds without consulting the
// algorithm attribute DOs.
const (
	blobRSA   = 0x01
	blobECDSA = 0x13
)

// KeyStorage persists full keys per (applet, slot) in the Secure namespace
// and assembles the chained Extended Header chunks of the key import.
type KeyStorage struct {
	fs *filesystem.FileSystem

	// extHeader accumulates PUT DATA 0xDB/3FFF chunks until the chain ends.
	extHeader map[filesystem.AppID][]byte
}

// NewKeyStorage builds key storage over the given store.
func NewKeyStorage(fs *filesystem.FileSystem) *KeyStorage {
	return &KeyStorage{
		fs:        fs,
		extHeader: make(map[filesystem.AppID][]byte),
	}
}

func slotID(kt KeyType) filesystem.ObjectID {
	return filesystem.ObjectID(kt)
}

// PutRSAFullKey stores a complete RSA key into a slot.
func (ks *KeyStorage) PutRSAFullKey(app filesystem.AppID, kt KeyType, key *rsa.PrivateKey) error {
	blob := append([]byte{blobRSA}, x509.MarshalPKCS1PrivateKey(key)...)
	return ks.fs.WriteFile(app, slotID(kt), filesystem.NamespaceSecure, blob)
}

// PutECDSAFullKey stores a complete ECDSA key into a slot.
func (ks *KeyStorage) PutECDSAFullKey(app filesystem.AppID, kt KeyType, key *ecdsa.PrivateKey) error {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fmt.Errorf("encoding ECDSA key: %w", err)
	}
	return ks.fs.WriteFile(app, slotID(kt), filesystem.NamespaceSecure, append([]byte{blobECDSA}, der...))
}

// RSAKey loads the RSA key of a slot.
func (ks *KeyStorage) RSAKey(app filesystem.AppID, kt KeyType) (*rsa.PrivateKey, error) {
	blob, err := ks.fs.ReadFile(app, slotID(kt), filesystem.NamespaceSecure)
	if err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		return nil, ErrKeyNotFound
	}
	if blob[0] != blobRSA {
		return nil, fmt.Errorf("slot %02X holds algorithm %02X, not RSA", byte(kt), blob[0])
	}
	key, err := x509.ParsePKCS1PrivateKey(blob[1:])
	if err != nil {
		return nil, fmt.Errorf("decoding stored RSA key: %w", err)
	}
	return key, nil
}

// ECDSAKey loads the ECDSA key of a slot.
func (ks *KeyStorage) ECDSAKey(app filesystem.AppID, kt KeyType) (*ecdsa.PrivateKey, error) {
	blob, err := ks.fs.ReadFile(app, slotID(kt), filesystem.NamespaceSecure)
	if err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		return nil, ErrKeyNotFound
	}
	if blob[0] != blobECDSA {
		return nil, fmt.Errorf("slot %02X holds algorithm %02X, not ECDSA", byte(kt), blob[0])
	}
	key, err := x509.ParseECPrivateKey(blob[1:])
	if err != nil {
		return nil, fmt.Errorf("decoding stored ECDSA key: %w", err)
	}
	return key, nil
}

// GetPublicKey7F49 renders the public half of a slot as the 7F49 template
// returned by GENERATE ASYMMETRIC KEY PAIR:
//
//	RSA:   7F49 { 81: modulus, 82: public exponent }
//	ECDSA: 7F49 { 86: uncompressed EC point }
func (ks *KeyStorage) GetPublicKey7F49(app filesystem.AppID, kt KeyType) ([]byte, error) {
	blob, err := ks.fs.ReadFile(app, slotID(kt), filesystem.NamespaceSecure)
	if err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		return nil, ErrKeyNotFound
	}

	switch blob[0] {
	case blobRSA:
		key, err := x509.ParsePKCS1PrivateKey(blob[1:])
		if err != nil {
			return nil, fmt.Errorf("decoding stored RSA key: %w", err)
		}
		exp := big.NewInt(int64(key.PublicKey.E))
		return tlv.Encode(tlv.NewTemplate("7F49",
			tlv.New("81", key.PublicKey.N.Bytes()),
			tlv.New("82", exp.Bytes()),
		))

	case blobECDSA:
		key, err := x509.ParseECPrivateKey(blob[1:])
		if err != nil {
			return nil, fmt.Errorf("decoding stored ECDSA key: %w", err)
		}
		byteLen := (key.Curve.Params().BitSize + 7) / 8
		point := make([]byte, 1+2*byteLen)
		point[0] = 0x04
		key.PublicKey.X.FillBytes(point[1 : 1+byteLen])
		key.PublicKey.Y.FillBytes(point[1+byteLen:])
		return tlv.Encode(tlv.NewTemplate("7F49", tlv.New("86", point)))

	default:
		return nil, fmt.Errorf("slot %02X holds unknown algorithm %02X", byte(kt), blob[0])
	}
}

// SetKeyExtHeader appends one chunk of the chained key-import data
// (PUT DATA 0xDB with tag 3FFF). When more is false the chain is complete
// and the assembled Extended Header template is imported into its slot.
func (ks *KeyStorage) SetKeyExtHeader(app filesystem.AppID, data []byte, more bool) error {
	ks.extHeader[app] = append(ks.extHeader[app], data...)
	if more {
		return nil
	}

	assembled := ks.extHeader[app]
	delete(ks.extHeader, app)
	return ks.importExtHeader(app, assembled)
}

// importExtHeader parses the 4D Extended Header template:
//
//	4D { B6|B8|A4, 7F48: header list, 5F48: key material }
//
// The 7F48 header list is a bare sequence of tag-length pairs without
// values, which general BER decoders mis-parse; since it sits inside 4D,
// the whole template is read with the manual reader below. Key material in 5F48 is the concatenation the header list
// describes: e, p, q for RSA, or the private scalar for ECDSA.
func (ks *KeyStorage) importExtHeader(app filesystem.AppID, raw []byte) error {
	r := berReader{data: raw}

	tag, content, err := r.next()
	if err != nil {
		return fmt.Errorf("extended header: %w", err)
	}
	if tag != 0x4D {
		return fmt.Errorf("extended header: expected tag 4D, got %X", tag)
	}

	inner := berReader{data: content}

	ctrlTag, _, err := inner.next()
	if err != nil {
		return fmt.Errorf("extended header control reference: %w", err)
	}
	kt := KeyType(ctrlTag)
	switch kt {
	case KeyDigitalSignature, KeyConfidentiality, KeyAuthentication:
	default:
		return fmt.Errorf("extended header: unknown key slot tag %X", ctrlTag)
	}

	hdrTag, hdrList, err := inner.next()
	if err != nil || hdrTag != 0x7F48 {
		return fmt.Errorf("extended header: missing 7F48 header list (tag %X, err %v)", hdrTag, err)
	}

	matTag, material, err := inner.next()
	if err != nil || matTag != 0x5F48 {
		return fmt.Errorf("extended header: missing 5F48 key material (tag %X, err %v)", matTag, err)
	}

	fields, err := parseHeaderList(hdrList)
	if err != nil {
		return fmt.Errorf("extended header: %w", err)
	}

	parts := make(map[uint32][]byte, len(fields))
	off := 0
	for _, f := range fields {
		if off+f.length > len(material) {
			return fmt.Errorf("extended header: field %X overruns key material", f.tag)
		}
		parts[f.tag] = material[off : off+f.length]
		off += f.length
	}

	// A q component (93) means RSA; otherwise 92 is read as the ECDSA
	// private scalar.
	if _, ok := parts[0x93]; ok {
		return ks.importRSA(app, kt, parts)
	}
	return ks.importECDSA(app, kt, parts[0x92])
}

func (ks *KeyStorage) importRSA(app filesystem.AppID, kt KeyType, parts map[uint32][]byte) error {
	eBytes, p1 := parts[0x91]
	pBytes, p2 := parts[0x92]
	qBytes, p3 := parts[0x93]
	if !p1 || !p2 || !p3 {
		return errors.New("RSA import: header list must carry e (91), p (92) and q (93)")
	}

	e := new(big.Int).SetBytes(eBytes)
	p := new(big.Int).SetBytes(pBytes)
	q := new(big.Int).SetBytes(qBytes)
	if e.Sign() == 0 || p.Sign() == 0 || q.Sign() == 0 {
		return errors.New("RSA import: zero component")
	}
	if !e.IsInt64() {
		return errors.New("RSA import: public exponent too large")
	}

	n := new(big.Int).Mul(p, q)
	pm1 := new(big.Int).Sub(p, big.NewInt(1))
	qm1 := new(big.Int).Sub(q, big.NewInt(1))
	phi := new(big.Int).Mul(pm1, qm1)

	d := new(big.Int).ModInverse(e, phi)
	if d == nil {
		return errors.New("RSA import: e not invertible modulo phi(n)")
	}

	key := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{N: n, E: int(e.Int64())},
		D:         d,
		Primes:    []*big.Int{p, q},
	}
	key.Precompute()
	if err := key.Validate(); err != nil {
		return fmt.Errorf("RSA import: %w", err)
	}

	return ks.PutRSAFullKey(app, kt, key)
}

func (ks *KeyStorage) importECDSA(app filesystem.AppID, kt KeyType, scalar []byte) error {
	if len(scalar) == 0 {
		return errors.New("ECDSA import: header list must carry the private scalar (92)")
	}

	curve := elliptic.P256()
	d := new(big.Int).SetBytes(scalar)
	if d.Sign() == 0 || d.Cmp(curve.Params().N) >= 0 {
		return errors.New("ECDSA import: scalar out of range")
	}

	key := &ecdsa.PrivateKey{D: d}
	key.Curve = curve
	key.X, key.Y = curve.ScalarBaseMult(d.Bytes())

	return ks.PutECDSAFullKey(app, kt, key)
}

// headerField is one tag-length entry of the 7F48 header list.
type headerField struct {
	tag    uint32
	length int
}

// parseHeaderList reads the bare tag-length pairs of a 7F48 value.
func parseHeaderList(data []byte) ([]headerField, error) {
	r := berReader{data: data}
	var fields []headerField
	for !r.done() {
		tag, err := r.readTag()
		if err != nil {
			return nil, err
		}
		length, err := r.readLength()
		if err != nil {
			return nil, err
		}
		fields = append(fields, headerField{tag: tag, length: length})
	}
	return fields, nil
}

// berReader is a minimal BER tag-length reader. bertlv builds the card's
// outgoing templates; this reader decodes the 4D key-import template, whose
// embedded header list bertlv cannot parse.
type berReader struct {
	data []byte
	off  int
}

func (r *berReader) done() bool {
	return r.off >= len(r.data)
}

func (r *berReader) byte() (byte, error) {
	if r.done() {
		return 0, errors.New("truncated BER data")
	}
	b := r.data[r.off]
	r.off++
	return b, nil
}

func (r *berReader) readTag() (uint32, error) {
	b, err := r.byte()
	if err != nil {
		return 0, err
	}
	tag := uint32(b)
	if b&0x1F != 0x1F {
		return tag, nil
	}
	for {
		b, err = r.byte()
		if err != nil {
			return 0, err
		}
		tag = tag<<8 | uint32(b)
		if b&0x80 == 0 {
			return tag, nil
		}
	}
}

func (r *berReader) readLength() (int, error) {
	b, err := r.byte()
	if err != nil {
		return 0, err
	}
	if b < 0x80 {
		return int(b), nil
	}
	numBytes := int(b & 0x7F)
	if numBytes == 0 || numBytes > 2 {
		return 0, fmt.Errorf("unsupported BER length encoding %02X", b)
	}
	length := 0
	for i := 0; i < numBytes; i++ {
		b, err = r.byte()
		if err != nil {
			return 0, err
		}
		length = length<<8 | int(b)
	}
	return length, nil
}

// next reads one full TLV and returns its tag and value bytes.
func (r *berReader) next() (uint32, []byte, error) {
	tag, err := r.readTag()
	if err != nil {
		return 0, nil, err
	}
	length, err := r.readLength()
	if err != nil {
		return 0, nil, err
	}
	if r.off+length > len(r.data) {
		return 0, nil, fmt.Errorf("tag %X value overruns data", tag)
	}
	value := r.data[r.off : r.off+length]
	r.off += length
	return tag, value, nil
}
