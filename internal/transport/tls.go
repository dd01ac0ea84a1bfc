package transport

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"time"
)

const (
	alpnProtocol = "mediaplug-v1"

	// certLifetime only has to outlast one plugin session.
	certLifetime = 24 * time.Hour
)

// listenerTLS mints a throwaway loopback certificate and returns the
// listener config around it. Every Listen gets its own key pair.
func listenerTLS() (*tls.Config, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	self := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "mediaplug loopback"},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1)},
		NotBefore:    now.Add(-time.Minute),
		NotAfter:     now.Add(certLifetime),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, self, self, &priv.PublicKey, priv)
	if err != nil {
		return nil, err
	}

	conf := baseTLS()
	conf.Certificates = []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: priv}}
	return conf, nil
}

// dialerTLS skips chain verification because the launch-key handshake
// authenticates the peer. It still refuses a listener that does not speak
// the plugin protocol.
func dialerTLS() *tls.Config {
	conf := baseTLS()
	conf.InsecureSkipVerify = true
	conf.VerifyConnection = func(cs tls.ConnectionState) error {
		if cs.NegotiatedProtocol != alpnProtocol {
			return fmt.Errorf("peer negotiated %q, want %q", cs.NegotiatedProtocol, alpnProtocol)
		}
		return nil
	}
	return conf
}

func baseTLS() *tls.Config {
	return &tls.Config{
		NextProtos: []string{alpnProtocol},
		MinVersion: tls.VersionTLS13,
	}
}
