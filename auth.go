/*
 *    Copyright 2025 The Grapevine Authors
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package grapevine

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

type jwtClaimsKey struct{}

var jwtContextKey = jwtClaimsKey{}

// WithJWTClaims stores JWT claims into a context.
func WithJWTClaims(ctx context.Context, claims jwt.MapClaims) context.Context {
	return context.WithValue(ctx, jwtContextKey, claims)
}

// JWTClaims retrieves JWT claims from context if present.
func JWTClaims(ctx context.Context) (jwt.MapClaims, bool) {
	v := ctx.Value(jwtContextKey)
	if v == nil {
		return nil, false
	}
	mc, ok := v.(jwt.MapClaims)
	return mc, ok
}

// JWTConfig configures the JWTAuth middleware. Provide at least a Keyfunc to
// resolve the verification key. Only Bearer tokens are considered; failures
// yield 401 with a WWW-Authenticate header. Scheme negotiation on the wire
// stays the listener's concern; this guard only validates what arrived.
type JWTConfig struct {
	Keyfunc  jwt.Keyfunc
	Issuer   string
	Audience string
	Skew     time.Duration
	Optional bool
}

// JWTAuth creates a middleware that validates Bearer JWTs and injects the
// claims into the request context.
func JWTAuth(cfg JWTConfig) Middleware {
	if cfg.Skew == 0 {
		cfg.Skew = 30 * time.Second
	}
	return func(next Handler) Handler {
		return func(c *Context) error {
			authz := c.Header("Authorization")
			if authz == "" {
				if cfg.Optional {
					return next(c)
				}
				unauthorized(c, "missing Authorization header")
				return nil
			}
			parts := strings.SplitN(authz, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				unauthorized(c, "invalid Authorization scheme")
				return nil
			}

			opts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"HS256", "HS384", "HS512", "RS256", "RS384", "RS512", "ES256", "EdDSA"}),
				jwt.WithLeeway(cfg.Skew),
			}
			if cfg.Issuer != "" {
				opts = append(opts, jwt.WithIssuer(cfg.Issuer))
			}
			if cfg.Audience != "" {
				opts = append(opts, jwt.WithAudience(cfg.Audience))
			}

			tok, err := jwt.NewParser(opts...).ParseWithClaims(parts[1], jwt.MapClaims{}, cfg.Keyfunc)
			if err != nil {
				unauthorized(c, fmt.Sprintf("token parse/verify failed: %v", err))
				return nil
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok || !tok.Valid {
				unauthorized(c, "invalid token claims")
				return nil
			}

			c.R = c.R.WithContext(WithJWTClaims(c.R.Context(), claims))
			return next(c)
		}
	}
}

func unauthorized(c *Context, desc string) {
	c.SetHeader("WWW-Authenticate", "Bearer error=\"invalid_token\", error_description=\""+escapeAuthParam(desc)+"\"")
	c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: desc})
}

// escapeAuthParam per RFC 6750 to safely include in a WWW-Authenticate param.
func escapeAuthParam(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	return s
}
