package applet

import (
	"github.com/gregLibert/pgp-token/pkg/buffer"
	"github.com/gregLibert/pgp-token/pkg/iso7816"
)

// APDUCommand is implemented once per instruction the applet handles.
//
// Check validates the header alone and must be side-effect free: the
// applet's dispatcher probes every command with it, and Process re-runs it
// as its first step. The contract for Check results:
//
//   - WrongCommand       — the INS is not this command's; keep probing.
//   - WrongAPDUCLA,
//     WrongAPDUP1P2      — the INS matched but the header is invalid.
//   - NoError            — the command accepts this header.
//
// Process executes the command. The response buffer is lent to it for the
// duration of the call; the trailing status word is appended by the
// executor based on the returned Error.
type APDUCommand interface {
	Check(cla byte, ins iso7816.InsCode, p1, p2 byte) Error
	Process(cla byte, ins iso7816.InsCode, p1, p2 byte, data []byte, le byte, out *buffer.Buffer) Error
	Name() string
}
