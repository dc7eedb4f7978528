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

import "fmt"

// SecurityHeadersConfig configures the SecurityHeaders middleware.
type SecurityHeadersConfig struct {
	// HSTSMaxAge is the max-age value for Strict-Transport-Security in
	// seconds. 0 omits the HSTS header entirely. Default: 63072000 (2 years).
	HSTSMaxAge int

	// HSTSIncludeSubdomains adds includeSubDomains to the HSTS header.
	HSTSIncludeSubdomains bool

	// ContentTypeNosniff sets X-Content-Type-Options: nosniff.
	ContentTypeNosniff bool

	// FrameOption sets the X-Frame-Options header value (e.g. "DENY",
	// "SAMEORIGIN"). Empty string omits the header.
	FrameOption string

	// ReferrerPolicy sets the Referrer-Policy header value. Empty string
	// omits the header.
	ReferrerPolicy string
}

// DefaultSecurityHeadersConfig returns production defaults.
func DefaultSecurityHeadersConfig() SecurityHeadersConfig {
	return SecurityHeadersConfig{
		HSTSMaxAge:            63072000,
		HSTSIncludeSubdomains: true,
		ContentTypeNosniff:    true,
		FrameOption:           "DENY",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}
}

// SecurityHeaders creates a middleware that sets common security-related
// response headers before the handler writes.
func SecurityHeaders(cfg SecurityHeadersConfig) Middleware {
	var hstsValue string
	if cfg.HSTSMaxAge > 0 {
		hstsValue = fmt.Sprintf("max-age=%d", cfg.HSTSMaxAge)
		if cfg.HSTSIncludeSubdomains {
			hstsValue += "; includeSubDomains"
		}
	}

	return func(next Handler) Handler {
		return func(c *Context) error {
			h := c.W.Header()
			if hstsValue != "" {
				h.Set("Strict-Transport-Security", hstsValue)
			}
			if cfg.ContentTypeNosniff {
				h.Set("X-Content-Type-Options", "nosniff")
			}
			if cfg.FrameOption != "" {
				h.Set("X-Frame-Options", cfg.FrameOption)
			}
			if cfg.ReferrerPolicy != "" {
				h.Set("Referrer-Policy", cfg.ReferrerPolicy)
			}
			return next(c)
		}
	}
}
