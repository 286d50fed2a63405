package utils

import (
	"testing"
)

func TestHashString(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "simple string", input: "hello world"},
		{name: "empty string", input: ""},
		{name: "unicode string", input: "Привет 🌍"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash := HashString(tt.input)

			if len(hash) != 64 {
				t.Errorf("HashString() length = %d, want 64", len(hash))
			}
			if hash != HashString(tt.input) {
				t.Errorf("HashString() not consistent")
			}
		})
	}

	if HashString("abc") == HashString("abd") {
		t.Error("HashString() produced same hash for different inputs")
	}
}

func TestFingerprint(t *testing.T) {
	if got := Fingerprint(""); got != "none" {
		t.Errorf("Fingerprint(\"\") = %q, want none", got)
	}

	fp := Fingerprint("sk-test-0123456789")
	if len(fp) != 12 {
		t.Errorf("Fingerprint() length = %d, want 12", len(fp))
	}
	if fp != HashString("sk-test-0123456789")[:12] {
		t.Errorf("Fingerprint() is not a hash prefix")
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"abc", "***"},
		{"abcd", "****"},
		{"sk-0123456789", "****6789"},
	}
	for _, tt := range tests {
		if got := MaskSecret(tt.in); got != tt.want {
			t.Errorf("MaskSecret(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
