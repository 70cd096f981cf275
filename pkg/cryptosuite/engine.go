package cryptosuite

import (
	"github.com/gregLibert/pgp-token/pkg/filesystem"
)

// CryptoEngine is the slot-addressed facade the command handlers use. It
// resolves (applet, slot) to a stored key and applies the primitive.
type CryptoEngine struct {
	Lib  *CryptoLib
	Keys *KeyStorage
}

// NewCryptoEngine wires the primitives to the key storage.
func NewCryptoEngine(lib *CryptoLib, keys *KeyStorage) *CryptoEngine {
	return &CryptoEngine{Lib: lib, Keys: keys}
}

// RSASign signs data with the slot's RSA key.
func (e *CryptoEngine) RSASign(app filesystem.AppID, kt KeyType, data []byte) ([]byte, error) {
	key, err := e.Keys.RSAKey(app, kt)
	if err != nil {
		return nil, err
	}
	return e.Lib.RSASignRaw(key, data)
}

// ECDSASign signs a hash with the slot's ECDSA key.
func (e *CryptoEngine) ECDSASign(app filesystem.AppID, kt KeyType, hash []byte) ([]byte, error) {
	key, err := e.Keys.ECDSAKey(app, kt)
	if err != nil {
		return nil, err
	}
	return e.Lib.ECDSASignRaw(key, hash)
}

// RSADecipher removes the encryption padding from ct using the slot's RSA
// key.
func (e *CryptoEngine) RSADecipher(app filesystem.AppID, kt KeyType, ct []byte) ([]byte, error) {
	key, err := e.Keys.RSAKey(app, kt)
	if err != nil {
		return nil, err
	}
	return e.Lib.RSADecipherRaw(key, ct)
}
