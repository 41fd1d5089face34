package dnswire

import "testing"

func TestReadIDAndRCode(t *testing.T) {
	msg := []byte{
		0x12, 0x34, // ID
		0x81, 0x83, // flags: QR=1, RCODE=3 (NXDOMAIN)
		0x00, 0x01,
		0x00, 0x00,
		0x00, 0x00,
		0x00, 0x00,
	}

	id, rcode, err := ReadIDAndRCode(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 0x1234 {
		t.Fatalf("id = %#x, want 0x1234", id)
	}
	if rcode != 3 {
		t.Fatalf("rcode = %d, want 3", rcode)
	}
}

func TestReadIDAndRCode_TooShort(t *testing.T) {
	if _, _, err := ReadIDAndRCode([]byte{0x00, 0x01}); err != ErrTooShort {
		t.Fatalf("err = %v, want ErrTooShort", err)
	}
}
