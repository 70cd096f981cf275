// Package filesystem implements the card's persistent data-object store: a
// flat mapping of (applet id, object id, namespace) to an opaque byte
// string.
//
// Objects live as individual files under the store root, one directory per
// namespace. Writes go through an atomic rename so that after a power loss
// either the old or the new content of an object is visible, never a
// mixture. The Secure namespace holds password material and private keys;
// the store keeps it apart so deployments can mount or encrypt it
// differently, but treats it as an opaque flag otherwise.
package filesystem

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio"
)

// AppID identifies the applet owning an object.
type AppID uint16

// ObjectID identifies an object within an applet's store, usually the DO
// tag it is served under.
type ObjectID uint16

// Namespace separates ordinary data objects from secure ones.
type Namespace int

const (
	// NamespaceFile holds ordinary data objects.
	NamespaceFile Namespace = iota
	// NamespaceSecure holds passwords and key material.
	NamespaceSecure
)

// MaxObjectLen caps the stored size of a single object.
const MaxObjectLen = 4096

func (ns Namespace) dir() string {
	if ns == NamespaceSecure {
		return "secure"
	}
	return "do"
}

// FileSystem is a store rooted in a directory.
type FileSystem struct {
	root string
}

// New opens (creating if needed) a store rooted at dir.
func New(dir string) (*FileSystem, error) {
	for _, ns := range []Namespace{NamespaceFile, NamespaceSecure} {
		if err := os.MkdirAll(filepath.Join(dir, ns.dir()), 0o700); err != nil {
			return nil, fmt.Errorf("creating store namespace: %w", err)
		}
	}
	return &FileSystem{root: dir}, nil
}

func (fs *FileSystem) path(app AppID, id ObjectID, ns Namespace) string {
	return filepath.Join(fs.root, ns.dir(), fmt.Sprintf("%04x-%04x.bin", uint16(app), uint16(id)))
}

// ReadFile returns the stored content of an object. A missing object reads
// as empty content, not as an error.
func (fs *FileSystem) ReadFile(app AppID, id ObjectID, ns Namespace) ([]byte, error) {
	data, err := os.ReadFile(fs.path(app, id, ns))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading object %04x/%04x: %w", app, id, err)
	}
	return data, nil
}

// WriteFile atomically replaces the content of an object.
func (fs *FileSystem) WriteFile(app AppID, id ObjectID, ns Namespace, data []byte) error {
	if len(data) > MaxObjectLen {
		return fmt.Errorf("object %04x/%04x: %d bytes exceeds cap %d", app, id, len(data), MaxObjectLen)
	}
	if err := renameio.WriteFile(fs.path(app, id, ns), data, 0o600); err != nil {
		return fmt.Errorf("writing object %04x/%04x: %w", app, id, err)
	}
	return nil
}
