package installer

import "testing"

func TestVerifyChecksum_Match(t *testing.T) {
	data := []byte("hello harbor")
	result := VerifyChecksum(data, "")
	if !result.Valid {
		t.Fatal("expected empty expected-checksum to be treated as unverified-but-valid")
	}

	ok := VerifyChecksum(data, result.ComputedChecksum)
	if !ok.Valid {
		t.Fatalf("expected checksum to match, got error: %v", ok.Error)
	}
}

func TestVerifyChecksum_Mismatch(t *testing.T) {
	result := VerifyChecksum([]byte("hello harbor"), "deadbeef")
	if result.Valid {
		t.Fatal("expected checksum mismatch to fail verification")
	}
	if result.Error == nil {
		t.Fatal("expected an error describing the mismatch")
	}
}

func TestVerifyChecksum_CaseInsensitive(t *testing.T) {
	data := []byte("hello harbor")
	computed := VerifyChecksum(data, "").ComputedChecksum

	upper := make([]byte, len(computed))
	for i, c := range []byte(computed) {
		if c >= 'a' && c <= 'f' {
			c -= 32
		}
		upper[i] = c
	}

	result := VerifyChecksum(data, string(upper))
	if !result.Valid {
		t.Fatal("expected checksum comparison to be case-insensitive")
	}
}
