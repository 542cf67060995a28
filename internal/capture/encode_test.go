package capture

import (
	"bytes"
	"testing"
)

func TestEncodeJPEG(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frame := solidFrame(128)
	defer frame.Close()

	data, err := EncodeJPEG(&frame, 80)
	if err != nil {
		t.Fatalf("EncodeJPEG() error = %v", err)
	}

	// JPEG SOI marker
	if !bytes.HasPrefix(data, []byte{0xFF, 0xD8}) {
		t.Errorf("output does not start with a JPEG marker: % x", data[:min(4, len(data))])
	}
}

func TestEncodeJPEG_Empty(t *testing.T) {
	if _, err := EncodeJPEG(nil, 80); err == nil {
		t.Error("expected error for nil frame")
	}
}
