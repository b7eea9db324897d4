package transport

import (
	"crypto/x509"
	"testing"
)

func SetSystemCertPool(t *testing.T, f func() (*x509.CertPool, error)) {
	orig := systemCertPool
	systemCertPool = f
	t.Cleanup(func() { systemCertPool = orig })
}
