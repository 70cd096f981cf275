package token_test

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/gregLibert/pgp-token/pkg/token"
	"github.com/gregLibert/pgp-token/pkg/tlv"
)

const selectOpenPGP = "00 A4 04 00 06 D2 76 00 01 24 01"

// 32 bytes standing in for a SHA-256 value the host wants signed.
const hash32 = "00112233445566778899AABBCCDDEEFF00112233445566778899AABBCCDDEEFF"

func mustNewCard(t *testing.T, dir string) *token.Token {
	t.Helper()
	card, err := token.New(token.Config{
		StorageDir:   dir,
		Manufacturer: [2]byte{0xFF, 0xFE},
		Serial:       [4]byte{0x00, 0x00, 0x00, 0x01},
	})
	if err != nil {
		t.Fatal(err)
	}
	return card
}

// send splits a response frame into payload and status word.
func send(card *token.Token, apdu []byte) ([]byte, uint16) {
	resp := card.Exchange(apdu)
	if len(resp) < 2 {
		return nil, 0
	}
	return resp[:len(resp)-2], uint16(resp[len(resp)-2])<<8 | uint16(resp[len(resp)-1])
}

// apduCase3 builds a case-3 APDU around arbitrary value bytes.
func apduCase3(cla, ins, p1, p2 byte, value []byte) []byte {
	apdu := []byte{cla, ins, p1, p2, byte(len(value))}
	return append(apdu, value...)
}

// berTL encodes one tag-length prefix (short and 81 length forms cover
// every structure these tests build).
func berTL(tag []byte, length int) []byte {
	out := append([]byte{}, tag...)
	if length < 0x80 {
		return append(out, byte(length))
	}
	return append(out, 0x81, byte(length))
}

// buildRSAImportTemplate renders the 4D Extended Header template importing
// e, p, q into the given key slot.
func buildRSAImportTemplate(slot byte, key *rsa.PrivateKey) []byte {
	e := []byte{0x01, 0x00, 0x01}
	p := key.Primes[0].Bytes()
	q := key.Primes[1].Bytes()

	var hdr []byte
	hdr = append(hdr, berTL([]byte{0x91}, len(e))...)
	hdr = append(hdr, berTL([]byte{0x92}, len(p))...)
	hdr = append(hdr, berTL([]byte{0x93}, len(q))...)

	material := append(append(append([]byte{}, e...), p...), q...)

	var content []byte
	content = append(content, slot, 0x00)
	content = append(content, berTL([]byte{0x7F, 0x48}, len(hdr))...)
	content = append(content, hdr...)
	content = append(content, berTL([]byte{0x5F, 0x48}, len(material))...)
	content = append(content, material...)

	return append(berTL([]byte{0x4D}, len(content)), content...)
}

func TestOpenPGPCardScenarios(t *testing.T) {
	dir := t.TempDir()
	card := mustNewCard(t, dir)

	Convey("Malformed frames are rejected with 6700", t, func() {
		So(card.Exchange(tlv.Hex("00 A4 04 00")), ShouldResemble, tlv.Hex("67 00"))
		So(card.Exchange(tlv.Hex("00 20 00 81 06 31 32")), ShouldResemble, tlv.Hex("67 00"))
	})

	Convey("Commands before SELECT answer 6985", t, func() {
		So(card.Exchange(tlv.Hex("00 84 00 00 00")), ShouldResemble, tlv.Hex("69 85"))
	})

	Convey("SELECT returns the FCI and 9000", t, func() {
		data, sw := send(card, tlv.Hex(selectOpenPGP))
		So(sw, ShouldEqual, 0x9000)

		// 6F { 84: full AID, A5 { 47: card capabilities } }
		So(data, ShouldResemble, tlv.Hex(
			"6F 19",
			"84 10 D2 76 00 01 24 01 03 03 FF FE 00 00 00 01 00 00",
			"A5 05 47 03 C0 00 80",
		))
	})

	Convey("SELECT of an unknown AID keeps the card selected", t, func() {
		_, sw := send(card, tlv.Hex("00 A4 04 00 05 A0 00 00 03 08"))
		So(sw, ShouldEqual, 0x6A82)

		// The OpenPGP applet still answers.
		_, sw = send(card, tlv.Hex("00 CA 00 C4 00"))
		So(sw, ShouldEqual, 0x9000)
	})

	Convey("GET DATA C4 reports the factory PW status", t, func() {
		data, sw := send(card, tlv.Hex("00 CA 00 C4 00"))
		So(sw, ShouldEqual, 0x9000)
		So(data, ShouldResemble, tlv.Hex("00 20 20 20 03 00 03"))

		// Idempotent: a second read yields the same bytes.
		again, _ := send(card, tlv.Hex("00 CA 00 C4 00"))
		So(again, ShouldResemble, data)
	})

	Convey("GET CHALLENGE honours Le", t, func() {
		data, sw := send(card, tlv.Hex("00 84 00 00 08"))
		So(sw, ShouldEqual, 0x9000)
		So(len(data), ShouldEqual, 8)

		other, sw := send(card, tlv.Hex("00 84 00 00 08"))
		So(sw, ShouldEqual, 0x9000)
		So(other, ShouldNotResemble, data)

		// Le 0 reads as 255.
		wide, sw := send(card, tlv.Hex("00 84 00 00 00 00"))
		So(sw, ShouldEqual, 0x9000)
		So(len(wide), ShouldEqual, 255)
	})

	Convey("VERIFY tracks the retry counter", t, func() {
		_, sw := send(card, tlv.Hex("00 20 00 81 06 31 32 33 35 36 37"))
		So(sw, ShouldEqual, 0x6982)

		data, _ := send(card, tlv.Hex("00 CA 00 C4 00"))
		So(data[4], ShouldEqual, 2)

		_, sw = send(card, tlv.Hex("00 20 00 81 06 31 32 33 34 35 36"))
		So(sw, ShouldEqual, 0x9000)

		data, _ = send(card, tlv.Hex("00 CA 00 C4 00"))
		So(data[4], ShouldEqual, 3)
	})

	Convey("PSO:CDS without authentication is denied and counts nothing", t, func() {
		_, sw := send(card, tlv.Hex(selectOpenPGP)) // drop session auth
		So(sw, ShouldEqual, 0x9000)

		_, sw = send(card, tlv.Hex("00 2A 9E 9A 20", hash32))
		So(sw, ShouldEqual, 0x6982)

		data, sw := send(card, tlv.Hex("00 CA 00 7A 00"))
		So(sw, ShouldEqual, 0x9000)
		So(data, ShouldResemble, tlv.Hex("7A 05 93 03 00 00 00"))
	})

	Convey("Key generation is gated on PW3", t, func() {
		_, sw := send(card, tlv.Hex("00 47 80 00 02 B6 00"))
		So(sw, ShouldEqual, 0x6982)
	})

	Convey("Admin configures ECDSA and generates the signature key", t, func() {
		_, sw := send(card, tlv.Hex("00 20 00 83 08 31 32 33 34 35 36 37 38"))
		So(sw, ShouldEqual, 0x9000)

		_, sw = send(card, tlv.Hex("00 DA 00 C1 09 13 2A 86 48 CE 3D 03 01 07"))
		So(sw, ShouldEqual, 0x9000)

		data, sw := send(card, tlv.Hex("00 47 80 00 02 B6 00"))
		So(sw, ShouldEqual, 0x9000)
		So(data[0], ShouldEqual, 0x7F)
		So(data[1], ShouldEqual, 0x49)

		// The stored template reads back identically.
		again, sw := send(card, tlv.Hex("00 47 81 00 02 B6 00"))
		So(sw, ShouldEqual, 0x9000)
		So(again, ShouldResemble, data)
	})

	Convey("PSO:CDS signs once per verification and advances the counter", t, func() {
		_, sw := send(card, tlv.Hex("00 20 00 81 06 31 32 33 34 35 36"))
		So(sw, ShouldEqual, 0x9000)

		sig, sw := send(card, tlv.Hex("00 2A 9E 9A 20", hash32))
		So(sw, ShouldEqual, 0x9000)
		So(len(sig), ShouldEqual, 64) // P-256 r || s

		data, _ := send(card, tlv.Hex("00 CA 00 7A 00"))
		So(data, ShouldResemble, tlv.Hex("7A 05 93 03 00 00 01"))

		// Single-signature mode: the PSOCDS state was consumed.
		_, sw = send(card, tlv.Hex("00 2A 9E 9A 20", hash32))
		So(sw, ShouldEqual, 0x6982)

		data, _ = send(card, tlv.Hex("00 CA 00 7A 00"))
		So(data, ShouldResemble, tlv.Hex("7A 05 93 03 00 00 01"))
	})

	Convey("PW1ValidSeveralCDS allows repeated signatures", t, func() {
		_, sw := send(card, apduCase3(0x00, 0xDA, 0x00, 0xC4, tlv.Hex("01 20 20 20 03 00 03")))
		So(sw, ShouldEqual, 0x9000) // PW3 still verified from the admin scenario

		_, sw = send(card, tlv.Hex("00 20 00 81 06 31 32 33 34 35 36"))
		So(sw, ShouldEqual, 0x9000)

		_, sw = send(card, tlv.Hex("00 2A 9E 9A 20", hash32))
		So(sw, ShouldEqual, 0x9000)
		_, sw = send(card, tlv.Hex("00 2A 9E 9A 20", hash32))
		So(sw, ShouldEqual, 0x9000)

		data, _ := send(card, tlv.Hex("00 CA 00 7A 00"))
		So(data, ShouldResemble, tlv.Hex("7A 05 93 03 00 00 03"))
	})

	Convey("CHANGE REFERENCE DATA replaces PW1 and resets its counter", t, func() {
		// "123456" -> "654321"
		_, sw := send(card, tlv.Hex("00 24 00 81 0C 31 32 33 34 35 36 36 35 34 33 32 31"))
		So(sw, ShouldEqual, 0x9000)

		_, sw = send(card, tlv.Hex("00 20 00 81 06 31 32 33 34 35 36"))
		So(sw, ShouldEqual, 0x6982) // old value no longer verifies

		_, sw = send(card, tlv.Hex("00 20 00 81 06 36 35 34 33 32 31"))
		So(sw, ShouldEqual, 0x9000)

		data, _ := send(card, tlv.Hex("00 CA 00 C4 00"))
		So(data[4], ShouldEqual, 3)
	})

	Convey("RESET RETRY COUNTER with the resetting code", t, func() {
		// Install RC "87654321" (admin still verified).
		_, sw := send(card, tlv.Hex("00 DA 00 D3 08 38 37 36 35 34 33 32 31"))
		So(sw, ShouldEqual, 0x9000)

		// The resetting code is never readable.
		_, sw = send(card, tlv.Hex("00 CA 00 D3 00"))
		So(sw, ShouldEqual, 0x6982)

		// Wrong RC prefix: PW1 must stay "654321".
		_, sw = send(card, tlv.Hex("00 2C 00 81 0E 38 37 36 35 34 33 32 39 39 39 39 39 39 39"))
		So(sw, ShouldEqual, 0x6982)
		_, sw = send(card, tlv.Hex("00 20 00 81 06 36 35 34 33 32 31"))
		So(sw, ShouldEqual, 0x9000)

		// Correct RC followed by the new PW1 "999999".
		_, sw = send(card, tlv.Hex("00 2C 00 81 0E 38 37 36 35 34 33 32 31 39 39 39 39 39 39"))
		So(sw, ShouldEqual, 0x9000)
		_, sw = send(card, tlv.Hex("00 20 00 81 06 39 39 39 39 39 39"))
		So(sw, ShouldEqual, 0x9000)
	})

	Convey("RESET RETRY COUNTER P1 02 requires PW3", t, func() {
		_, sw := send(card, tlv.Hex(selectOpenPGP))
		So(sw, ShouldEqual, 0x9000)

		_, sw = send(card, tlv.Hex("00 2C 02 81 06 31 31 31 31 31 31"))
		So(sw, ShouldEqual, 0x6982)

		_, sw = send(card, tlv.Hex("00 20 00 83 08 31 32 33 34 35 36 37 38"))
		So(sw, ShouldEqual, 0x9000)
		_, sw = send(card, tlv.Hex("00 2C 02 81 06 31 31 31 31 31 31"))
		So(sw, ShouldEqual, 0x9000)

		_, sw = send(card, tlv.Hex("00 20 00 81 06 31 31 31 31 31 31"))
		So(sw, ShouldEqual, 0x9000)
	})

	Convey("Private DO PUT/GET round trip", t, func() {
		_, sw := send(card, tlv.Hex("00 DA 01 01 03 C0 FF EE"))
		So(sw, ShouldEqual, 0x9000) // write gated on PW1, verified above

		data, sw := send(card, tlv.Hex("00 CA 01 01 00"))
		So(sw, ShouldEqual, 0x9000)
		So(data, ShouldResemble, tlv.Hex("C0 FF EE"))

		again, _ := send(card, tlv.Hex("00 CA 01 01 00"))
		So(again, ShouldResemble, data)
	})

	Convey("Chained key import enables PSO:DECIPHER", t, func() {
		key, err := rsa.GenerateKey(rand.Reader, 512)
		So(err, ShouldBeNil)

		template := buildRSAImportTemplate(0xB8, key)
		half := len(template) / 2

		_, sw := send(card, apduCase3(0x10, 0xDB, 0x3F, 0xFF, template[:half]))
		So(sw, ShouldEqual, 0x9000)
		_, sw = send(card, apduCase3(0x00, 0xDB, 0x3F, 0xFF, template[half:]))
		So(sw, ShouldEqual, 0x9000)

		ct, err := rsa.EncryptPKCS1v15(rand.Reader, &key.PublicKey, []byte("secret"))
		So(err, ShouldBeNil)

		plain, sw := send(card, apduCase3(0x00, 0x2A, 0x80, 0x86, append([]byte{0x00}, ct...)))
		So(sw, ShouldEqual, 0x9000)
		So(string(plain), ShouldEqual, "secret")

		// AES and ECDH padding indicators are unsupported.
		_, sw = send(card, tlv.Hex("00 2A 80 86 02 02 00"))
		So(sw, ShouldEqual, 0x6F00)
		_, sw = send(card, tlv.Hex("00 2A 80 86 02 A6 00"))
		So(sw, ShouldEqual, 0x6F00)
	})

	Convey("INTERNAL AUTHENTICATE signs with the authentication key", t, func() {
		// No key in the slot yet.
		_, sw := send(card, tlv.Hex("00 88 00 00 20", hash32))
		So(sw, ShouldEqual, 0x6A88)

		_, sw = send(card, tlv.Hex("00 DA 00 C3 09 13 2A 86 48 CE 3D 03 01 07"))
		So(sw, ShouldEqual, 0x9000)
		_, sw = send(card, tlv.Hex("00 47 80 00 02 A4 00"))
		So(sw, ShouldEqual, 0x9000)

		sig, sw := send(card, tlv.Hex("00 88 00 00 20", hash32))
		So(sw, ShouldEqual, 0x9000)
		So(len(sig), ShouldEqual, 64)
	})

	Convey("VERIFY P1 FF drops the verification state", t, func() {
		_, sw := send(card, tlv.Hex("00 20 FF 83 00"))
		So(sw, ShouldEqual, 0x9000)

		_, sw = send(card, apduCase3(0x00, 0xDA, 0x00, 0xC4, tlv.Hex("00 20 20 20 03 00 03")))
		So(sw, ShouldEqual, 0x6982)
	})

	Convey("PSO:ENCIPHER is accepted structurally", t, func() {
		data, sw := send(card, tlv.Hex("00 2A 86 80 04 AA BB CC DD"))
		So(sw, ShouldEqual, 0x9000)
		So(len(data), ShouldEqual, 0)
	})

	Convey("Header errors map to their status words", t, func() {
		So(card.Exchange(tlv.Hex("00 B0 00 00 00")), ShouldResemble, tlv.Hex("6D 00"))
		So(card.Exchange(tlv.Hex("80 20 00 81 00")), ShouldResemble, tlv.Hex("6E 00"))
		So(card.Exchange(tlv.Hex("00 20 00 80 00")), ShouldResemble, tlv.Hex("6A 86"))
	})

	Convey("Three failures lock PW3", t, func() {
		for i := 0; i < 3; i++ {
			_, sw := send(card, tlv.Hex("00 20 00 83 08 39 39 39 39 39 39 39 39"))
			So(sw, ShouldEqual, 0x6982)
		}

		data, _ := send(card, tlv.Hex("00 CA 00 C4 00"))
		So(data[6], ShouldEqual, 0)

		// Locked: even the correct password is refused.
		_, sw := send(card, tlv.Hex("00 20 00 83 08 31 32 33 34 35 36 37 38"))
		So(sw, ShouldEqual, 0x6983)
	})
}

func TestPowerCyclePersistence(t *testing.T) {
	dir := t.TempDir()

	card := mustNewCard(t, dir)
	Convey("A fresh card wastes one PW1 try", t, func() {
		_, sw := send(card, tlv.Hex(selectOpenPGP))
		So(sw, ShouldEqual, 0x9000)
		_, sw = send(card, tlv.Hex("00 20 00 81 06 31 32 33 35 36 37"))
		So(sw, ShouldEqual, 0x6982)
	})

	rebooted := mustNewCard(t, dir)
	Convey("After a power cycle the counter persists, the session does not", t, func() {
		// No applet selected yet on the new session.
		So(rebooted.Exchange(tlv.Hex("00 84 00 00 00")), ShouldResemble, tlv.Hex("69 85"))

		_, sw := send(rebooted, tlv.Hex(selectOpenPGP))
		So(sw, ShouldEqual, 0x9000)

		data, sw := send(rebooted, tlv.Hex("00 CA 00 C4 00"))
		So(sw, ShouldEqual, 0x9000)
		So(data[4], ShouldEqual, 2)

		_, sw = send(rebooted, tlv.Hex("00 20 00 81 06 31 32 33 34 35 36"))
		So(sw, ShouldEqual, 0x9000)
		data, _ = send(rebooted, tlv.Hex("00 CA 00 C4 00"))
		So(data[4], ShouldEqual, 3)
	})
}
