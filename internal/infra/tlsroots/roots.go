package tlsroots

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

var (
	ErrNoCertificates = errors.New("tlsroots: no certificates in PEM data")
	ErrInvalidPEM     = errors.New("tlsroots: invalid PEM data")
)

// Pool returns the system roots extended with every certificate in files.
// Systems without a readable root store start from an empty pool.
func Pool(files ...string) (*x509.CertPool, error) {
	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("tlsroots: read %s: %w", path, err)
		}
		if _, err := AppendPEM(pool, data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return pool, nil
}

// AppendPEM adds the CERTIFICATE blocks of data to pool and returns how many
// it added. Other block types are skipped.
func AppendPEM(pool *x509.CertPool, data []byte) (int, error) {
	n := 0
	for len(data) > 0 {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return n, fmt.Errorf("%w: %v", ErrInvalidPEM, err)
		}
		pool.AddCert(cert)
		n++
	}
	if n == 0 {
		return 0, ErrNoCertificates
	}
	return n, nil
}
