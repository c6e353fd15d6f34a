package im

import (
	"bytes"
	"compress/zlib"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"chatapi/internal/shared/config"
)

// Signatures handed to clients stay valid for half a year, matching what
// the Tencent console issues by default.
const defaultSigExpire = 180 * 24 * time.Hour

// SigGenerator produces TLS-Sig-API v2 user signatures: an HMAC-SHA256 over
// the identifier, app id and validity window, wrapped in a zlib-compressed
// JSON document and encoded with Tencent's base64 variant.
type SigGenerator struct {
	appID  int
	key    string
	expire time.Duration
	now    func() time.Time
}

func NewSigGenerator(cfg config.IMConfig) (*SigGenerator, error) {
	appID, err := strconv.Atoi(cfg.AppID)
	if err != nil {
		return nil, fmt.Errorf("invalid IM app id %q: %w", cfg.AppID, err)
	}
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("IM secret key is not set")
	}
	return &SigGenerator{
		appID:  appID,
		key:    cfg.SecretKey,
		expire: defaultSigExpire,
		now:    time.Now,
	}, nil
}

// UserSig generates a signature for the given identifier.
func (g *SigGenerator) UserSig(identifier string) (string, error) {
	currTime := g.now().Unix()
	expire := int64(g.expire / time.Second)

	sigDoc := map[string]interface{}{
		"TLS.ver":        "2.0",
		"TLS.identifier": identifier,
		"TLS.sdkappid":   g.appID,
		"TLS.expire":     expire,
		"TLS.time":       currTime,
		"TLS.sig":        g.hmac(identifier, currTime, expire),
	}

	data, err := json.Marshal(sigDoc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal sig document: %w", err)
	}

	var compressed bytes.Buffer
	w := zlib.NewWriter(&compressed)
	if _, err := w.Write(data); err != nil {
		return "", fmt.Errorf("failed to compress sig document: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to compress sig document: %w", err)
	}

	return base64urlEncode(compressed.Bytes()), nil
}

func (g *SigGenerator) hmac(identifier string, currTime, expire int64) string {
	var content strings.Builder
	content.WriteString("TLS.identifier:" + identifier + "\n")
	content.WriteString("TLS.sdkappid:" + strconv.Itoa(g.appID) + "\n")
	content.WriteString("TLS.time:" + strconv.FormatInt(currTime, 10) + "\n")
	content.WriteString("TLS.expire:" + strconv.FormatInt(expire, 10) + "\n")

	h := hmac.New(sha256.New, []byte(g.key))
	h.Write([]byte(content.String()))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// base64urlEncode applies Tencent's URL-safe base64 variant.
func base64urlEncode(data []byte) string {
	s := base64.StdEncoding.EncodeToString(data)
	r := strings.NewReplacer("+", "*", "/", "-", "=", "_")
	return r.Replace(s)
}

// AdminSigCache memoizes the administrator signature so the gateway does
// not recompute it on every upstream call. Entries live for the configured
// TTL, one hour by default, far shorter than the signature's own validity.
type AdminSigCache struct {
	gen        *SigGenerator
	identifier string
	ttl        time.Duration
	now        func() time.Time

	mu        sync.Mutex
	cached    string
	expiresAt time.Time
}

func NewAdminSigCache(gen *SigGenerator, identifier string, ttl time.Duration) *AdminSigCache {
	return &AdminSigCache{
		gen:        gen,
		identifier: identifier,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Get returns the cached administrator signature, regenerating it when the
// cache entry has expired.
func (c *AdminSigCache) Get() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.cached != "" && now.Before(c.expiresAt) {
		return c.cached, nil
	}

	sig, err := c.gen.UserSig(c.identifier)
	if err != nil {
		return "", err
	}
	c.cached = sig
	c.expiresAt = now.Add(c.ttl)
	return sig, nil
}
