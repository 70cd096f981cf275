// Package token is the composition root of the virtual security token: it
// wires the persistent store, the crypto suite and the OpenPGP applet into
// an APDU executor and exposes a single Exchange entry point.
//
// One Token is one card session: commands are processed strictly one at a
// time and every observable side effect of a command is settled before the
// next one starts. Building a new Token over the same storage directory
// models a power cycle — persistent objects survive, session state does
// not.
package token

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gregLibert/pgp-token/pkg/applet"
	"github.com/gregLibert/pgp-token/pkg/buffer"
	"github.com/gregLibert/pgp-token/pkg/cryptosuite"
	"github.com/gregLibert/pgp-token/pkg/filesystem"
	"github.com/gregLibert/pgp-token/pkg/openpgp"
)

// responseBufferCap bounds a full response: the largest payload is a data
// object at the store's size cap, plus TLV framing and the status word.
const responseBufferCap = filesystem.MaxObjectLen + 16

// Config parameterises a token.
type Config struct {
	// StorageDir roots the persistent object store.
	StorageDir string

	// Manufacturer and Serial are baked into the card's AID.
	Manufacturer [2]byte
	Serial       [4]byte

	// Log enables the executor's debug side channel when non-nil.
	Log logrus.FieldLogger
}

// Token is a booted card.
type Token struct {
	fs       *filesystem.FileSystem
	executor *applet.APDUExecutor
	pgp      *openpgp.Applet
	resp     *buffer.Buffer
}

// New boots a token: the store is opened, factory defaults are seeded on
// first use, and the applet registry is assembled.
func New(cfg Config) (*Token, error) {
	fs, err := filesystem.New(cfg.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	lib := cryptosuite.NewCryptoLib()
	keys := cryptosuite.NewKeyStorage(fs)
	engine := cryptosuite.NewCryptoEngine(lib, keys)

	pgp := openpgp.New(fs, lib, keys, engine, cfg.Manufacturer, cfg.Serial)
	if err := pgp.EnsureInitialized(); err != nil {
		return nil, fmt.Errorf("initialising applet: %w", err)
	}

	storage := applet.NewAppletStorage()
	storage.Register(pgp)

	executor := applet.NewAPDUExecutor(storage)
	executor.Log = cfg.Log

	return &Token{
		fs:       fs,
		executor: executor,
		pgp:      pgp,
		resp:     buffer.New(responseBufferCap),
	}, nil
}

// Exchange processes one raw command APDU and returns the complete
// response frame including the status word.
func (t *Token) Exchange(apdu []byte) []byte {
	t.executor.Execute(apdu, t.resp)
	return append([]byte(nil), t.resp.Bytes()...)
}

// AID returns the card's full application identifier.
func (t *Token) AID() []byte {
	return t.pgp.FullAID()
}
