package rdm

import (
	"errors"
	"testing"
)

func TestUIDParts(t *testing.T) {
	u := NewUID(0x02B0, 0xDEADBEEF)
	if u.Manufacturer() != 0x02B0 {
		t.Errorf("Manufacturer() = %#04x, want 0x02b0", u.Manufacturer())
	}
	if u.Device() != 0xDEADBEEF {
		t.Errorf("Device() = %#08x, want 0xdeadbeef", u.Device())
	}
}

func TestUIDBytesRoundTrip(t *testing.T) {
	want := NewUID(0x7FF0, 0x00C0FFEE)
	b := want.Bytes()
	got, err := UIDFromBytes(b[:])
	if err != nil {
		t.Fatalf("UIDFromBytes() error: %v", err)
	}
	if got != want {
		t.Errorf("round trip = %s, want %s", got, want)
	}

	if _, err := UIDFromBytes([]byte{1, 2, 3}); !errors.Is(err, ErrInvalidUID) {
		t.Errorf("short input error = %v, want ErrInvalidUID", err)
	}
}

func TestUIDString(t *testing.T) {
	tests := []struct {
		uid  UID
		want string
	}{
		{NewUID(0x02B0, 0x17), "02b0:00000017"},
		{BroadcastAll, "ffff:ffffffff"},
		{0, "0000:00000000"},
	}
	for _, tt := range tests {
		if got := tt.uid.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
		parsed, err := ParseUID(tt.want)
		if err != nil {
			t.Errorf("ParseUID(%q) error: %v", tt.want, err)
			continue
		}
		if parsed != tt.uid {
			t.Errorf("ParseUID(%q) = %s, want %s", tt.want, parsed, tt.uid)
		}
	}
}

func TestParseUIDInvalid(t *testing.T) {
	for _, s := range []string{"", "02b0", "zzzz:00000017", "02b0:zzzzzzzz", "02b0:00000017:00"} {
		if _, err := ParseUID(s); !errors.Is(err, ErrInvalidUID) {
			t.Errorf("ParseUID(%q) error = %v, want ErrInvalidUID", s, err)
		}
	}
}

func TestUIDBroadcast(t *testing.T) {
	if !BroadcastAll.IsBroadcast() {
		t.Error("BroadcastAll.IsBroadcast() = false")
	}
	if !ManufacturerBroadcast(0x02B0).IsBroadcast() {
		t.Error("manufacturer broadcast not recognised")
	}
	if NewUID(0x02B0, 0x17).IsBroadcast() {
		t.Error("device UID reported as broadcast")
	}
	if MaxDeviceUID.IsBroadcast() {
		t.Error("MaxDeviceUID must be addressable")
	}
}
