package auth

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestGenerateLaunchKey(t *testing.T) {
	key1, err := GenerateLaunchKey()
	if err != nil {
		t.Fatal(err)
	}
	if len(key1) != KeySize {
		t.Fatalf("expected %d bytes, got %d", KeySize, len(key1))
	}

	key2, err := GenerateLaunchKey()
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(key1, key2) {
		t.Fatal("two generated keys should not be equal")
	}
}

func TestComputeAndVerify(t *testing.T) {
	key := []byte("test-launchkey-32-bytes-long-xxx")
	material := []byte("tls-exporter-material-for-test")

	token := ComputeAuthToken(key, material)
	if !VerifyAuthToken(key, material, token) {
		t.Fatal("valid token should verify")
	}
}

func TestVerifyWrongKey(t *testing.T) {
	key := []byte("correct-launchkey-32-bytes-xxxxx")
	wrong := []byte("wrong-launchkey-32-bytes-xxxxxxx")
	material := []byte("tls-exporter-material")

	token := ComputeAuthToken(key, material)
	if VerifyAuthToken(wrong, material, token) {
		t.Fatal("wrong key should not verify")
	}
}

func TestVerifyWrongMaterial(t *testing.T) {
	key := []byte("test-launchkey-32-bytes-long-xxx")

	token := ComputeAuthToken(key, []byte("material-session-1"))
	if VerifyAuthToken(key, []byte("material-session-2"), token) {
		t.Fatal("different TLS session material should not verify")
	}
}

func TestVerifyTamperedToken(t *testing.T) {
	key := []byte("test-launchkey-32-bytes-long-xxx")
	material := []byte("tls-exporter-material")

	token := ComputeAuthToken(key, material)
	token[0] ^= 0xFF
	if VerifyAuthToken(key, material, token) {
		t.Fatal("tampered token should not verify")
	}
}

func TestKeyLineRoundTrip(t *testing.T) {
	key, err := GenerateLaunchKey()
	if err != nil {
		t.Fatal(err)
	}
	got, err := ReadKey(strings.NewReader(EncodeKey(key)))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, key) {
		t.Fatal("key mismatch after encode/read")
	}

	// Missing trailing newline is accepted.
	got, err = ReadKey(strings.NewReader(strings.TrimSpace(EncodeKey(key))))
	if err != nil || !bytes.Equal(got, key) {
		t.Fatalf("no newline: %v", err)
	}
}

func TestReadKeyRejectsGarbage(t *testing.T) {
	for _, in := range []string{"zz\n", "abcd\n"} {
		if _, err := ReadKey(strings.NewReader(in)); !errors.Is(err, ErrBadKey) {
			t.Fatalf("ReadKey(%q): err = %v, want ErrBadKey", in, err)
		}
	}
	if _, err := ReadKey(strings.NewReader("")); err == nil {
		t.Fatal("expected error on empty input")
	}
}
