// Package tlv provides small helpers for composing and picking apart
// BER-TLV (Tag-Length-Value) structures on top of github.com/moov-io/bertlv.
// The card builds its outgoing templates (FCI, 7F49 public key, security
// support) from these. The incoming 4D key-import template is decoded by
// the key storage's own reader, not by bertlv.
package tlv

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/moov-io/bertlv"
)

// New builds a primitive TLV carrying a raw value.
func New(tag string, value []byte) bertlv.TLV {
	return bertlv.TLV{Tag: strings.ToUpper(tag), Value: value}
}

// NewTemplate builds a constructed TLV wrapping child TLVs.
func NewTemplate(tag string, children ...bertlv.TLV) bertlv.TLV {
	return bertlv.TLV{Tag: strings.ToUpper(tag), TLVs: children}
}

// Encode serialises the given TLVs back-to-back.
func Encode(tlvs ...bertlv.TLV) ([]byte, error) {
	return bertlv.Encode(tlvs)
}

// MustEncode serialises TLVs built from in-memory constants; it panics on
// failure, which can only mean a malformed tag literal.
func MustEncode(tlvs ...bertlv.TLV) []byte {
	out, err := bertlv.Encode(tlvs)
	if err != nil {
		panic(fmt.Sprintf("tlv: encode failed: %v", err))
	}
	return out
}

// GetValue scans raw BER-TLV data for a top-level tag and returns its
// payload (re-encoded children for a constructed tag).
func GetValue(data []byte, tag string) ([]byte, error) {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("bertlv decode failed: %w", err)
	}

	want := strings.ToUpper(tag)
	for _, p := range packets {
		if strings.ToUpper(p.Tag) == want {
			if len(p.TLVs) > 0 {
				return bertlv.Encode(p.TLVs)
			}
			return p.Value, nil
		}
	}
	return nil, fmt.Errorf("tag %s not found", want)
}

// Hex constructs a byte slice from a series of hex strings. Spaces are
// allowed, so test data can read "00 A4 04 00".
func Hex(parts ...string) []byte {
	fullHex := strings.Join(parts, "")
	cleanHex := strings.ReplaceAll(fullHex, " ", "")

	data, err := hex.DecodeString(cleanHex)
	if err != nil {
		panic(fmt.Sprintf("invalid input '%s': %v", cleanHex, err))
	}
	return data
}
