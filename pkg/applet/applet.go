package applet

import (
	"github.com/gregLibert/pgp-token/pkg/buffer"
)

// Applet is a card application selectable by AID.
type Applet interface {
	// AID returns the applet's registered AID prefix. SELECT matches when
	// this prefix leads the AID presented by the host.
	AID() []byte

	// Select activates the applet: per-session authentication state is
	// reset and the applet may write its FCI into out. Persistent state is
	// untouched.
	Select(out *buffer.Buffer) Error

	// APDUExchange processes one full command APDU into out.
	APDUExchange(apdu []byte, out *buffer.Buffer) Error
}
