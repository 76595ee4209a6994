// Package userconfig works out which configuration, if any, a request is for.
//
// A manifest URL carries either nothing (anonymous), an inline base64url
// JSON configuration, or a stored user's uuid and password. The resolved
// value is a Config, which is always exactly one of Anonymous or Configured.
package userconfig

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"aiostreams/internal/apierror"
	"aiostreams/internal/users"
	"aiostreams/pkg/models"
)

// Config is Anonymous or Configured.
type Config interface {
	isConfig()
}

type Anonymous struct{}

type Configured struct {
	Data models.UserData
}

func (Anonymous) isConfig()  {}
func (Configured) isConfig() {}

const (
	ctxKey = "user_config"

	ParamID       = "id"
	ParamPassword = "password"
)

// Authenticator resolves stored configurations.
type Authenticator interface {
	Authenticate(ctx context.Context, uuid, password string) (*users.User, error)
}

// Resolve stores the request's Config on the gin context. Malformed or
// unknown configurations abort the request before any handler runs.
func Resolve(store Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg, err := resolve(c, store)
		if err != nil {
			apierror.Abort(c, err)
			return
		}
		c.Set(ctxKey, cfg)
		c.Next()
	}
}

func resolve(c *gin.Context, store Authenticator) (Config, error) {
	id := strings.TrimSpace(c.Param(ParamID))
	password := c.Param(ParamPassword)

	switch {
	case id == "":
		return Anonymous{}, nil
	case password != "":
		u, err := store.Authenticate(c.Request.Context(), id, password)
		if err != nil {
			return nil, users.ToAPIError(err)
		}
		data := u.Config
		data.UUID = u.UUID
		return Configured{Data: data}, nil
	default:
		data, err := DecodeInline(id)
		if err != nil {
			return nil, apierror.InvalidConfig(err)
		}
		return Configured{Data: data}, nil
	}
}

// FromContext returns the resolved Config, Anonymous when none was set.
func FromContext(c *gin.Context) Config {
	v, ok := c.Get(ctxKey)
	if !ok {
		return Anonymous{}
	}
	cfg, ok := v.(Config)
	if !ok {
		return Anonymous{}
	}
	return cfg
}

// DecodeInline parses a base64 (url or standard alphabet, padded or not)
// JSON configuration and validates it.
func DecodeInline(s string) (models.UserData, error) {
	var data models.UserData

	raw, err := decodeBase64(s)
	if err != nil {
		return data, fmt.Errorf("decode inline config: %w", err)
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, fmt.Errorf("decode inline config json: %w", err)
	}
	if err := data.Validate(); err != nil {
		return data, err
	}
	return data, nil
}

// EncodeInline is the inverse of DecodeInline.
func EncodeInline(data models.UserData) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode inline config: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	if strings.ContainsAny(s, "+/") {
		return base64.RawStdEncoding.DecodeString(s)
	}
	return base64.RawURLEncoding.DecodeString(s)
}
