package iso7816

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		raw      []byte
		wantErr  error
		wantData []byte
		wantLe   byte
		hasLe    bool
	}{
		{
			name:    "below header size",
			raw:     []byte{0x00, 0xA4, 0x04, 0x00},
			wantErr: ErrFrameTooShort,
		},
		{
			name:    "empty frame",
			raw:     nil,
			wantErr: ErrFrameTooShort,
		},
		{
			name:     "case 1: Lc 0, no Le",
			raw:      []byte{0x00, 0x84, 0x00, 0x00, 0x00},
			wantData: []byte{},
		},
		{
			name:     "case 2: Lc 0 with Le",
			raw:      []byte{0x00, 0x84, 0x00, 0x00, 0x00, 0x08},
			wantData: []byte{},
			wantLe:   0x08,
			hasLe:    true,
		},
		{
			name:     "case 2 short form: bare header with Le",
			raw:      []byte{0x00, 0x84, 0x00, 0x00, 0x08},
			wantData: []byte{},
			wantLe:   0x08,
			hasLe:    true,
		},
		{
			name:     "case 3: data, no Le",
			raw:      []byte{0x00, 0xA4, 0x04, 0x00, 0x02, 0xD2, 0x76},
			wantData: []byte{0xD2, 0x76},
		},
		{
			name:     "case 4: data and Le",
			raw:      []byte{0x00, 0x20, 0x00, 0x81, 0x02, 0x31, 0x32, 0x00},
			wantData: []byte{0x31, 0x32},
			wantLe:   0x00,
			hasLe:    true,
		},
		{
			name:    "Lc larger than frame",
			raw:     []byte{0x00, 0xA4, 0x04, 0x00, 0x06, 0xD2, 0x76},
			wantErr: ErrFrameLength,
		},
		{
			name:    "Lc smaller than frame",
			raw:     []byte{0x00, 0xA4, 0x04, 0x00, 0x01, 0xD2, 0x76, 0x00, 0x01},
			wantErr: ErrFrameLength,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := ParseCommand(tt.raw)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if diff := cmp.Diff(tt.wantData, cmd.Data); diff != "" {
				t.Errorf("Data (-want +got):\n%s", diff)
			}
			if cmd.HasLe != tt.hasLe || cmd.Le != tt.wantLe {
				t.Errorf("Le = (%v, %02X), want (%v, %02X)", cmd.HasLe, cmd.Le, tt.hasLe, tt.wantLe)
			}
		})
	}
}

func TestCommandTag(t *testing.T) {
	cmd := Command{P1: 0x5F, P2: 0x2D}
	if got := cmd.Tag(); got != 0x5F2D {
		t.Errorf("Tag() = %04X, want 5F2D", got)
	}
}

func TestStatusWordCounter(t *testing.T) {
	tests := []struct {
		sw        StatusWord
		isCounter bool
		retries   byte
	}{
		{RetriesStatus(3), true, 3},
		{RetriesStatus(0), true, 0},
		{NewStatusWord(0x63, 0xC2), true, 2},
		{NewStatusWord(0x63, 0x00), false, 0},
		{SW_NO_ERROR, false, 0},
	}

	for _, tt := range tests {
		if got := tt.sw.IsCounter(); got != tt.isCounter {
			t.Errorf("SW %s IsCounter = %v, want %v", tt.sw, got, tt.isCounter)
		}
		if got := tt.sw.Retries(); got != tt.retries {
			t.Errorf("SW %s Retries = %d, want %d", tt.sw, got, tt.retries)
		}
	}
}

func TestStatusWordClassification(t *testing.T) {
	tests := []struct {
		sw        StatusWord
		isSuccess bool
		isWarning bool
		isError   bool
	}{
		{SW_NO_ERROR, true, false, false},
		{RetriesStatus(2), false, true, false},
		{SW_ERR_WRONG_LENGTH, false, false, true},
		{SW_ERR_FILE_NOT_FOUND, false, false, true},
		{SW_ERR_CLA_NOT_SUPPORTED, false, false, true},
	}

	for _, tt := range tests {
		if got := tt.sw.IsSuccess(); got != tt.isSuccess {
			t.Errorf("SW %s IsSuccess = %v, want %v", tt.sw, got, tt.isSuccess)
		}
		if got := tt.sw.IsWarning(); got != tt.isWarning {
			t.Errorf("SW %s IsWarning = %v, want %v", tt.sw, got, tt.isWarning)
		}
		if got := tt.sw.IsError(); got != tt.isError {
			t.Errorf("SW %s IsError = %v, want %v", tt.sw, got, tt.isError)
		}
	}
}

func TestParseClass(t *testing.T) {
	tests := []struct {
		cla     byte
		chained bool
		sm      SecureMessaging
	}{
		{0x00, false, SMNone},
		{0x0C, false, SMHeaderAuth},
		{0x10, true, SMNone},
	}

	for _, tt := range tests {
		c := ParseClass(tt.cla)
		if c.IsChained != tt.chained {
			t.Errorf("CLA %02X IsChained = %v, want %v", tt.cla, c.IsChained, tt.chained)
		}
		if c.SecureMessaging != tt.sm {
			t.Errorf("CLA %02X SM = %d, want %d", tt.cla, c.SecureMessaging, tt.sm)
		}
	}
}

func TestInsCodeIsValid(t *testing.T) {
	if !INS_SELECT.IsValid() {
		t.Error("INS A4 flagged invalid")
	}
	if InsCode(0x6F).IsValid() || InsCode(0x90).IsValid() {
		t.Error("reserved 6X/9X INS accepted")
	}
}
