// Package credentials persists the operator's auth tokens in the local
// store. The auth protocol itself lives server-side; this is deliberately a
// trivial key-value wrapper.
package credentials

import (
	"github.com/nextlevelbuilder/gateline/internal/store"
)

const (
	tokenKey        = "ticketing_access_token"
	refreshTokenKey = "ticketing_refresh_token"
)

// Credentials reads and writes the operator tokens. Its Token method
// satisfies realtime.TokenSource.
type Credentials struct {
	kv store.KV
}

func New(kv store.KV) *Credentials {
	return &Credentials{kv: kv}
}

// Token returns the current access token, or "" when absent. Stored junk
// values like "undefined" and "null" left behind by web clients are treated
// as absent and removed.
func (c *Credentials) Token() string {
	return c.read(tokenKey)
}

func (c *Credentials) SetToken(token string) error {
	return c.kv.Set(tokenKey, token)
}

func (c *Credentials) ClearToken() error {
	return c.kv.Delete(tokenKey)
}

func (c *Credentials) RefreshToken() string {
	return c.read(refreshTokenKey)
}

func (c *Credentials) SetRefreshToken(token string) error {
	return c.kv.Set(refreshTokenKey, token)
}

func (c *Credentials) ClearRefreshToken() error {
	return c.kv.Delete(refreshTokenKey)
}

// HasToken reports whether a usable access token is stored.
func (c *Credentials) HasToken() bool {
	return c.Token() != ""
}

func (c *Credentials) read(key string) string {
	value, ok, err := c.kv.Get(key)
	if err != nil || !ok {
		return ""
	}
	if value == "undefined" || value == "null" {
		c.kv.Delete(key)
		return ""
	}
	return value
}
