package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorsEchoesAllowedOrigin(t *testing.T) {
	policy := NewCorsPolicy([]string{"http://localhost:3000"}, false)

	d := policy.Decide("http://localhost:3000")
	assert.Equal(t, "http://localhost:3000", d.AllowOrigin)
	assert.True(t, d.AllowCredentials)
	assert.Equal(t, 86400, d.MaxAgeSeconds)

	headers := d.Headers()
	assert.Equal(t, "http://localhost:3000", headers["Access-Control-Allow-Origin"])
	assert.Equal(t, "true", headers["Access-Control-Allow-Credentials"])
}

func TestCorsOmitsUnknownOrigin(t *testing.T) {
	policy := NewCorsPolicy([]string{"http://localhost:3000"}, false)

	d := policy.Decide("http://evil.example")
	assert.Empty(t, d.AllowOrigin)
	assert.False(t, d.AllowCredentials)

	headers := d.Headers()
	_, present := headers["Access-Control-Allow-Origin"]
	assert.False(t, present)
	_, present = headers["Access-Control-Allow-Credentials"]
	assert.False(t, present)
}

func TestCorsWildcardNeverCombinesWithCredentials(t *testing.T) {
	policy := NewCorsPolicy([]string{"*"}, false)

	d := policy.Decide("http://anywhere.example")
	assert.Equal(t, "*", d.AllowOrigin)
	assert.False(t, d.AllowCredentials)

	_, present := d.Headers()["Access-Control-Allow-Credentials"]
	assert.False(t, present)
}

func TestCorsExactMatchBeatsWildcard(t *testing.T) {
	policy := NewCorsPolicy([]string{"http://localhost:3000", "*"}, false)

	d := policy.Decide("http://localhost:3000")
	assert.Equal(t, "http://localhost:3000", d.AllowOrigin)
	assert.True(t, d.AllowCredentials)
}

func TestCorsDevModeEchoesAnyOrigin(t *testing.T) {
	policy := NewCorsPolicy([]string{"http://localhost:3000"}, true)

	d := policy.Decide("http://staging.example")
	assert.Equal(t, "http://staging.example", d.AllowOrigin)
	assert.True(t, d.AllowCredentials)

	// No origin header still yields no allow-origin, even in dev mode.
	assert.Empty(t, policy.Decide("").AllowOrigin)
}
