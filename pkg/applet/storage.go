package applet

import (
	"bytes"

	"github.com/gregLibert/pgp-token/pkg/buffer"
)

// AppletStorage is the registry of installed applets and tracks which one
// is currently selected. A card session starts with none selected.
type AppletStorage struct {
	applets  []Applet
	selected Applet
}

// NewAppletStorage returns an empty registry.
func NewAppletStorage() *AppletStorage {
	return &AppletStorage{}
}

// Register installs an applet. Registration order is the SELECT probe
// order.
func (s *AppletStorage) Register(a Applet) {
	s.applets = append(s.applets, a)
}

// SelectApplet activates the applet whose AID prefix leads aid. On a miss
// the current selection is left untouched.
func (s *AppletStorage) SelectApplet(aid []byte, out *buffer.Buffer) Error {
	for _, a := range s.applets {
		if bytes.HasPrefix(aid, a.AID()) {
			s.selected = a
			return a.Select(out)
		}
	}
	return AppletNotFound
}

// SelectedApplet returns the active applet, or nil before the first
// successful SELECT.
func (s *AppletStorage) SelectedApplet() Applet {
	return s.selected
}
