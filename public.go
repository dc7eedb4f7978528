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
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// PublicFolder serves static files for requests no route claims. The
// dispatcher consults it on a routing miss, before producing the 404, for GET
// and HEAD requests whose path falls under Prefix.
type PublicFolder struct {
	// Root is the directory served from.
	Root string `yaml:"root"`
	// Prefix is the URL prefix mapped onto Root; "/" (the default) maps the
	// whole path space.
	Prefix string `yaml:"prefix"`
	// DefaultFile is served when the request resolves to a directory.
	// Defaults to "index.html".
	DefaultFile string `yaml:"defaultFile"`
}

// TryServe attempts to satisfy the request from the folder. It returns false
// without touching the response when the request is not eligible or no file
// exists, leaving the 404 to the caller. Paths escaping Root are rejected.
func (p *PublicFolder) TryServe(c *Context) bool {
	if p == nil || p.Root == "" {
		return false
	}
	if c.Method() != http.MethodGet && c.Method() != http.MethodHead {
		return false
	}

	prefix := p.Prefix
	if prefix == "" {
		prefix = "/"
	}
	urlPath := c.Path()
	if !strings.HasPrefix(urlPath, prefix) {
		return false
	}
	rel := strings.TrimPrefix(urlPath, prefix)
	rel = path.Clean("/" + rel)
	if strings.Contains(rel, "..") {
		return false
	}

	name := filepath.Join(p.Root, filepath.FromSlash(rel))
	info, err := os.Stat(name)
	if err != nil {
		return false
	}
	if info.IsDir() {
		def := p.DefaultFile
		if def == "" {
			def = "index.html"
		}
		name = filepath.Join(name, def)
		info, err = os.Stat(name)
		if err != nil || info.IsDir() {
			return false
		}
	}

	f, err := os.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()

	http.ServeContent(c.W, c.R, filepath.Base(name), info.ModTime(), f)
	c.status = http.StatusOK
	c.wrote = true
	return true
}
