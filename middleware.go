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
	"net/http"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
)

// chain composes middlewares around a final handler.
func chain(mw []Middleware, h Handler) Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

type ctxKey string

const ctxKeyRequestID ctxKey = "request_id"

// WithRequestID injects a request correlation id into ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// RequestIDFrom extracts the request correlation id from ctx.
func RequestIDFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyRequestID).(string)
	return v, ok
}

// RequestID propagates the dispatcher's correlation id into the request
// context so downstream code can pick it up with RequestIDFrom.
func RequestID() Middleware {
	return func(next Handler) Handler {
		return func(c *Context) error {
			c.R = c.R.WithContext(WithRequestID(c.R.Context(), c.RequestID()))
			return next(c)
		}
	}
}

// Recover converts a handler panic into an error so the dispatch wrapper sees
// a fault instead of unwinding the worker. The safe-dispatch path already
// recovers on its own; this middleware exists for embedders who call
// Router.Route directly.
func Recover(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next Handler) Handler {
		return func(c *Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("panic recovered",
						zap.Any("err", r),
						zap.String("stack", string(debug.Stack())),
					)
					c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
					err = nil
				}
			}()
			return next(c)
		}
	}
}

// Timeout bounds the request context seen by the handler. Handlers must
// observe c.Context() for it to have any effect.
func Timeout(d time.Duration) Middleware {
	return func(next Handler) Handler {
		return func(c *Context) error {
			if d > 0 {
				ctx, cancel := context.WithTimeout(c.R.Context(), d)
				defer cancel()
				c.R = c.R.WithContext(ctx)
			}
			return next(c)
		}
	}
}
