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
	"fmt"
	"regexp"
	"strings"
)

// matchAllExpression is what empty patterns compile to.
const matchAllExpression = "^.*$"

// bracketParam matches one [name] template token.
var bracketParam = regexp.MustCompile(`\[(\w+)\]`)

// CompiledPattern is the immutable result of compiling a path pattern: a
// matching expression plus the bracket parameter names in left-to-right order.
// It is derived once at registration time and never mutated, so it is safe for
// concurrent use by any number of workers.
type CompiledPattern struct {
	expr   *regexp.Regexp
	source string
	params []string
}

// CompilePattern compiles a path pattern into a CompiledPattern.
//
// Three forms are accepted:
//   - "" compiles to the match-all expression "^.*$" with no parameters.
//   - A string that already looks like a regular expression (it starts with
//     "^", or contains a backslash escape or a parenthesized group) is used
//     verbatim. No parameters are extracted, even from bracket-like character
//     classes such as [0-9]; regex intent overrides template parsing.
//   - Anything else is a template: every [name] token becomes a greedy
//     capturing group and name is recorded as a parameter.
//
// Template expressions are always anchored at the start. The end is anchored
// only when the source pattern itself ends with "$": the tail of the template
// is carried into the expression verbatim, so a trailing "$" survives and
// nothing else appends one. Callers relying on exact-suffix matching must
// therefore write the "$" themselves.
//
// Duplicate parameter names within one pattern are a construction-time error
// wrapping ErrDuplicateParameter.
func CompilePattern(pattern string) (*CompiledPattern, error) {
	if pattern == "" {
		return &CompiledPattern{
			expr:   regexp.MustCompile(matchAllExpression),
			source: matchAllExpression,
		}, nil
	}

	// Regex classification happens before any bracket scanning.
	if isRegexPattern(pattern) {
		expr, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("grapevine: invalid pattern %q: %w", pattern, err)
		}
		return &CompiledPattern{expr: expr, source: pattern}, nil
	}

	var params []string
	seen := map[string]bool{}
	var dup string
	source := "^" + bracketParam.ReplaceAllStringFunc(pattern, func(tok string) string {
		name := tok[1 : len(tok)-1]
		if seen[name] && dup == "" {
			dup = name
		}
		seen[name] = true
		params = append(params, name)
		return "(.+)"
	})
	if dup != "" {
		return nil, fmt.Errorf("%w: %q in pattern %q", ErrDuplicateParameter, dup, pattern)
	}

	expr, err := regexp.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("grapevine: invalid pattern %q: %w", pattern, err)
	}
	return &CompiledPattern{expr: expr, source: source, params: params}, nil
}

// isRegexPattern reports whether the input carries regex syntax that a bracket
// template cannot explain: a leading anchor, a backslash escape, or a
// parenthesized group.
func isRegexPattern(pattern string) bool {
	return strings.HasPrefix(pattern, "^") || strings.ContainsAny(pattern, `\(`)
}

// Expression returns the source text of the compiled matching expression.
func (p *CompiledPattern) Expression() string { return p.source }

// Params returns the parameter names in declaration order. The returned slice
// must not be modified.
func (p *CompiledPattern) Params() []string { return p.params }

// Match tests path against the compiled expression. On a match it returns the
// declared parameter names mapped to their positional capture values. Patterns
// compiled from a verbatim regex declare no parameters and yield a nil map
// even when the expression itself captures groups.
func (p *CompiledPattern) Match(path string) (map[string]string, bool) {
	m := p.expr.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}
	if len(p.params) == 0 {
		return nil, true
	}
	values := make(map[string]string, len(p.params))
	for i, name := range p.params {
		if i+1 < len(m) {
			values[name] = m[i+1]
		}
	}
	return values, true
}
