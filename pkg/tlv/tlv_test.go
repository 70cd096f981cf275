package tlv

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncodeTemplate(t *testing.T) {
	out := MustEncode(NewTemplate("6F",
		New("84", Hex("D2 76 00 01 24 01")),
	))

	want := Hex("6F 08 84 06 D2 76 00 01 24 01")
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("encoded template (-want +got):\n%s", diff)
	}
}

func TestGetValue(t *testing.T) {
	data := Hex(
		"84", "02", "1122",
		"50", "03", "414243",
	)

	got, err := GetValue(data, "50")
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if diff := cmp.Diff([]byte("ABC"), got); diff != "" {
		t.Errorf("value (-want +got):\n%s", diff)
	}

	if _, err := GetValue(data, "9F02"); err == nil {
		t.Error("expected error for missing tag")
	}
}

func TestHex(t *testing.T) {
	got := Hex("00 A4", "0400")
	if diff := cmp.Diff([]byte{0x00, 0xA4, 0x04, 0x00}, got); diff != "" {
		t.Errorf("Hex (-want +got):\n%s", diff)
	}
}
