package filesystem

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

const testApp AppID = 0x0001

func TestReadWriteRoundTrip(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	want := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	if err := fs.WriteFile(testApp, 0x00C4, NamespaceFile, want); err != nil {
		t.Fatal(err)
	}

	got, err := fs.ReadFile(testApp, 0x00C4, NamespaceFile)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
}

func TestMissingObjectReadsEmpty(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	got, err := fs.ReadFile(testApp, 0x5F2D, NamespaceFile)
	if err != nil {
		t.Fatalf("missing object returned error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("missing object read %d bytes, want 0", len(got))
	}
}

func TestNamespacesAreSeparate(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := fs.WriteFile(testApp, 0x0001, NamespaceSecure, []byte("123456")); err != nil {
		t.Fatal(err)
	}

	got, err := fs.ReadFile(testApp, 0x0001, NamespaceFile)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("secure object visible through file namespace: % X", got)
	}
}

func TestOverwrite(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := fs.WriteFile(testApp, 0x0101, NamespaceFile, []byte("old")); err != nil {
		t.Fatal(err)
	}
	if err := fs.WriteFile(testApp, 0x0101, NamespaceFile, []byte("new")); err != nil {
		t.Fatal(err)
	}

	got, err := fs.ReadFile(testApp, 0x0101, NamespaceFile)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new" {
		t.Errorf("read %q after overwrite, want \"new\"", got)
	}
}

func TestSizeCap(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := fs.WriteFile(testApp, 0x0101, NamespaceFile, make([]byte, MaxObjectLen+1)); err == nil {
		t.Error("write above MaxObjectLen succeeded")
	}
}
