package iso7816

// Instruction Byte (INS) according to ISO/IEC 7816-4.
//
// INS values where the upper nibble is '6' or '9' are reserved for Status
// Words and transport control (ISO/IEC 7816-3) and never appear as
// commands. Some instructions exist in pairs: the odd variant marks a
// BER-TLV structured data field (GET DATA 0xCA / 0xCB, PUT DATA
// 0xDA / 0xDB).

// InsCode is a typed representation of the instruction byte.
type InsCode byte

// Instruction codes handled by the card. GENERATE ASYMMETRIC KEY PAIR is
// the 7816-8 pair 46/47; the OpenPGP card application uses 0x47.
const (
	INS_VERIFY                       InsCode = 0x20
	INS_CHANGE_REFERENCE_DATA        InsCode = 0x24
	INS_PERFORM_SECURITY_OPERATION   InsCode = 0x2A
	INS_RESET_RETRY_COUNTER          InsCode = 0x2C
	INS_GENERATE_ASYMMETRIC_KEY_PAIR InsCode = 0x47
	INS_GET_CHALLENGE                InsCode = 0x84
	INS_INTERNAL_AUTHENTICATE        InsCode = 0x88
	INS_SELECT                       InsCode = 0xA4
	INS_GET_DATA                     InsCode = 0xCA
	INS_GET_DATA_BER                 InsCode = 0xCB
	INS_PUT_DATA                     InsCode = 0xDA
	INS_PUT_DATA_BER                 InsCode = 0xDB
)

// IsValid rejects the '6X' and '9X' values reserved by ISO/IEC 7816-3.
func (ins InsCode) IsValid() bool {
	highNibble := byte(ins) & 0xF0
	return highNibble != 0x60 && highNibble != 0x90
}
