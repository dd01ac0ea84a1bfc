// Package auth binds a plugin host connection to the process that launched
// it. The parent generates a launch key per plugin, hands it to the child on
// stdin, and accepts only a connection whose token was derived from that key
// and the connection's own TLS exporter material.
package auth

import (
	"bufio"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const KeySize = 32

// ExporterLabel is the TLS exporter label both ends use for token material.
const ExporterLabel = "mediaplug-auth-v1"

var ErrBadKey = errors.New("malformed launch key")

// GenerateLaunchKey returns a cryptographically random 32-byte key.
func GenerateLaunchKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// ComputeAuthToken expands the launch key with HKDF-SHA256, salted by the
// TLS exporter material, so a token is only valid on the session it was
// computed for.
func ComputeAuthToken(key, exporterMaterial []byte) [32]byte {
	r := hkdf.New(sha256.New, key, exporterMaterial, []byte(ExporterLabel))
	var token [32]byte
	// Reading 32 bytes from HKDF-SHA256 cannot fail.
	io.ReadFull(r, token[:])
	return token
}

// VerifyAuthToken checks token against the expected derivation.
func VerifyAuthToken(key, exporterMaterial []byte, token [32]byte) bool {
	expected := ComputeAuthToken(key, exporterMaterial)
	return hmac.Equal(token[:], expected[:])
}

// EncodeKey renders key as a single hex line for the child's stdin.
func EncodeKey(key []byte) string {
	return hex.EncodeToString(key) + "\n"
}

// ReadKey reads one hex-encoded key line from r.
func ReadKey(r io.Reader) ([]byte, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return nil, fmt.Errorf("read launch key: %w", err)
	}
	key, err := hex.DecodeString(strings.TrimSpace(line))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadKey, err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrBadKey, len(key))
	}
	return key, nil
}
