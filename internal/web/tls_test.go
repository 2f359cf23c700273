package web

import (
	"context"
	"crypto/tls"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"
)

func TestStartWithAutoTLS_NoDomains(t *testing.T) {
	srv := NewServer(":0", Deps{}, zap.NewNop())

	err := srv.StartWithAutoTLS(context.Background(), nil, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no domains")
}

func TestCertManager_HostPolicy(t *testing.T) {
	manager := newCertManager([]string{"dex.example.com"}, t.TempDir())

	assert.NoError(t, manager.HostPolicy(context.Background(), "dex.example.com"))
	assert.Error(t, manager.HostPolicy(context.Background(), "other.example.com"))
	assert.Equal(t, autocert.AcceptTOS("any"), manager.Prompt("any"))
}

func TestCertManager_DefaultCache(t *testing.T) {
	manager := newCertManager([]string{"dex.example.com"}, "")
	assert.Equal(t, autocert.DirCache(defaultCertCache), manager.Cache)
}

func TestTLSConfig_MinVersion(t *testing.T) {
	conf := tlsConfig(newCertManager([]string{"dex.example.com"}, t.TempDir()))

	assert.Equal(t, uint16(tls.VersionTLS12), conf.MinVersion)
	assert.NotNil(t, conf.GetCertificate)
	assert.Contains(t, conf.NextProtos, "acme-tls/1")
}
