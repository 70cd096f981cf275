// Package cryptosuite wraps the primitive cryptography the card core
// consumes and the per-slot key storage behind it.
//
// Three layers, mirroring the card's internal split:
//
//   - CryptoLib — raw primitives: random bytes, key generation, signing
//     and decipher on in-memory keys.
//   - KeyStorage — persistence of full keys per (applet, key slot), the
//     7F49 public-key template, and assembly of the chained Extended
//     Header key-import data.
//   - CryptoEngine — the facade command handlers talk to: slot-addressed
//     sign and decipher.
package cryptosuite

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"io"
)

// KeyType addresses one of the card's three asymmetric key slots by its
// OpenPGP control reference template tag.
type KeyType byte

const (
	// KeyDigitalSignature is the signature key slot (tag B6).
	KeyDigitalSignature KeyType = 0xB6
	// KeyConfidentiality is the decryption key slot (tag B8).
	KeyConfidentiality KeyType = 0xB8
	// KeyAuthentication is the authentication key slot (tag A4).
	KeyAuthentication KeyType = 0xA4
)

// RSA modulus bounds accepted by key generation.
const (
	minRSABits = 512
	maxRSABits = 4096
)

// CryptoLib provides the primitive operations. The randomness source is a
// field so tests can fix it.
type CryptoLib struct {
	Rand io.Reader
}

// NewCryptoLib returns a CryptoLib drawing from the system entropy source.
func NewCryptoLib() *CryptoLib {
	return &CryptoLib{Rand: rand.Reader}
}

// GenerateRandom returns n fresh random bytes.
func (c *CryptoLib) GenerateRandom(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative challenge length %d", n)
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(c.Rand, out); err != nil {
		return nil, fmt.Errorf("entropy source: %w", err)
	}
	return out, nil
}

// RSAGenKey generates an RSA key with the given modulus size.
func (c *CryptoLib) RSAGenKey(nbits int) (*rsa.PrivateKey, error) {
	if nbits < minRSABits || nbits > maxRSABits {
		return nil, fmt.Errorf("RSA modulus size %d outside [%d, %d]", nbits, minRSABits, maxRSABits)
	}
	key, err := rsa.GenerateKey(c.Rand, nbits)
	if err != nil {
		return nil, fmt.Errorf("RSA key generation: %w", err)
	}
	return key, nil
}

// ECDSAGenKey generates a NIST P-256 key.
func (c *CryptoLib) ECDSAGenKey() (*ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), c.Rand)
	if err != nil {
		return nil, fmt.Errorf("ECDSA key generation: %w", err)
	}
	return key, nil
}

// RSASignRaw produces a PKCS#1 v1.5 signature over data. The card receives
// a ready DigestInfo (or a bare hash) from the host, so no hash function is
// applied here.
func (c *CryptoLib) RSASignRaw(key *rsa.PrivateKey, data []byte) ([]byte, error) {
	sig, err := rsa.SignPKCS1v15(c.Rand, key, 0, data)
	if err != nil {
		return nil, fmt.Errorf("RSA sign: %w", err)
	}
	return sig, nil
}

// RSADecipherRaw removes the PKCS#1 v1.5 encryption padding from ct.
func (c *CryptoLib) RSADecipherRaw(key *rsa.PrivateKey, ct []byte) ([]byte, error) {
	pt, err := rsa.DecryptPKCS1v15(c.Rand, key, ct)
	if err != nil {
		return nil, fmt.Errorf("RSA decipher: %w", err)
	}
	return pt, nil
}

// ECDSASignRaw signs a hash and returns the plain r || s encoding the
// OpenPGP card emits, each half padded to the curve size.
func (c *CryptoLib) ECDSASignRaw(key *ecdsa.PrivateKey, hash []byte) ([]byte, error) {
	r, s, err := ecdsa.Sign(c.Rand, key, hash)
	if err != nil {
		return nil, fmt.Errorf("ECDSA sign: %w", err)
	}

	byteLen := (key.Curve.Params().BitSize + 7) / 8
	out := make([]byte, 2*byteLen)
	r.FillBytes(out[:byteLen])
	s.FillBytes(out[byteLen:])
	return out, nil
}
