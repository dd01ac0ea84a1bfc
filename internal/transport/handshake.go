package transport

import (
	"crypto/tls"
	"fmt"
	"io"

	"github.com/chronologos/mediaplug/internal/auth"
	"github.com/chronologos/mediaplug/internal/protocol"
)

func exporterMaterial(state tls.ConnectionState) ([]byte, error) {
	material, err := state.ExportKeyingMaterial(auth.ExporterLabel, nil, 32)
	if err != nil {
		return nil, fmt.Errorf("export keying material: %w", err)
	}
	return material, nil
}

// clientHandshake sends the derived token and waits for the verdict.
func clientHandshake(rw io.ReadWriter, state tls.ConnectionState, key []byte) error {
	material, err := exporterMaterial(state)
	if err != nil {
		return err
	}
	if err := protocol.WriteMessage(rw, nil, &protocol.AuthRequest{
		Token: auth.ComputeAuthToken(key, material),
	}); err != nil {
		return fmt.Errorf("write auth request: %w", err)
	}

	msg, err := protocol.ReadMessage(rw, nil)
	if err != nil {
		return fmt.Errorf("read auth response: %w", err)
	}
	resp, ok := msg.(*protocol.AuthResponse)
	if !ok {
		return fmt.Errorf("expected AuthResponse, got %T", msg)
	}
	if resp.Status != protocol.AuthOK {
		return fmt.Errorf("authentication rejected: status %d", resp.Status)
	}
	return nil
}

// serverHandshake reads the dialer's token and answers it. stateFn is
// called after the first read so the TLS handshake has completed.
func serverHandshake(rw io.ReadWriter, stateFn func() tls.ConnectionState, key []byte) error {
	msg, err := protocol.ReadMessage(rw, nil)
	if err != nil {
		return fmt.Errorf("read auth request: %w", err)
	}
	req, ok := msg.(*protocol.AuthRequest)
	if !ok {
		return fmt.Errorf("expected AuthRequest, got %T", msg)
	}

	material, err := exporterMaterial(stateFn())
	if err != nil {
		return err
	}
	if !auth.VerifyAuthToken(key, material, req.Token) {
		protocol.WriteMessage(rw, nil, &protocol.AuthResponse{Status: protocol.AuthFailed})
		return fmt.Errorf("authentication failed: invalid launch key")
	}
	if err := protocol.WriteMessage(rw, nil, &protocol.AuthResponse{Status: protocol.AuthOK}); err != nil {
		return fmt.Errorf("write auth response: %w", err)
	}
	return nil
}
