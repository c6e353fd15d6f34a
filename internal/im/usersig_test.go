package im

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatapi/internal/shared/config"
)

func testIMConfig() config.IMConfig {
	return config.IMConfig{
		AppID:          "1400000001",
		Administrator:  "administrator",
		SecretKey:      "test-secret-key",
		BaseURL:        "https://console.tim.qq.com",
		RequestTimeout: 10 * time.Second,
		SigTTL:         time.Hour,
	}
}

// decodeSig reverses the Tencent base64 variant and the zlib wrapping.
func decodeSig(t *testing.T, sig string) map[string]interface{} {
	t.Helper()

	std := strings.NewReplacer("*", "+", "-", "/", "_", "=").Replace(sig)
	compressed, err := base64.StdEncoding.DecodeString(std)
	require.NoError(t, err)

	r, err := zlib.NewReader(bytes.NewReader(compressed))
	require.NoError(t, err)
	raw, err := io.ReadAll(r)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	return doc
}

func TestUserSigCarriesIdentity(t *testing.T) {
	gen, err := NewSigGenerator(testIMConfig())
	require.NoError(t, err)
	gen.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	sig, err := gen.UserSig("alice42")
	require.NoError(t, err)

	doc := decodeSig(t, sig)
	assert.Equal(t, "2.0", doc["TLS.ver"])
	assert.Equal(t, "alice42", doc["TLS.identifier"])
	assert.Equal(t, float64(1400000001), doc["TLS.sdkappid"])
	assert.NotEmpty(t, doc["TLS.sig"])
}

func TestUserSigIsDeterministicForSameInstant(t *testing.T) {
	gen, err := NewSigGenerator(testIMConfig())
	require.NoError(t, err)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	gen.now = func() time.Time { return at }

	a, err := gen.UserSig("alice42")
	require.NoError(t, err)
	b, err := gen.UserSig("alice42")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, err := gen.UserSig("bob99")
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}

func TestNewSigGeneratorRejectsBadConfig(t *testing.T) {
	cfg := testIMConfig()
	cfg.AppID = "not-a-number"
	_, err := NewSigGenerator(cfg)
	assert.Error(t, err)

	cfg = testIMConfig()
	cfg.SecretKey = ""
	_, err = NewSigGenerator(cfg)
	assert.Error(t, err)
}

func TestAdminSigCacheExpiry(t *testing.T) {
	gen, err := NewSigGenerator(testIMConfig())
	require.NoError(t, err)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	gen.now = func() time.Time { return now }

	cache := NewAdminSigCache(gen, "administrator", time.Hour)
	cache.now = func() time.Time { return now }

	first, err := cache.Get()
	require.NoError(t, err)

	// Within the TTL the cached value is returned even as time moves.
	now = now.Add(59 * time.Minute)
	cached, err := cache.Get()
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	// Past the TTL the signature is regenerated against the new clock.
	now = now.Add(2 * time.Minute)
	regenerated, err := cache.Get()
	require.NoError(t, err)
	assert.NotEqual(t, first, regenerated)
}
