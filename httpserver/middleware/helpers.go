/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/vasayxtx/go-glob"
)

// RoutePatternGetterFunc is a function for getting route pattern from the request. Used in multiple middlewares.
type RoutePatternGetterFunc func(r *http.Request) string

// WrapResponseWriterIfNeeded wraps an http.ResponseWriter (if it is not already wrapped), returning a proxy that allows
// to get the status code and the number of written bytes after the response is sent.
func WrapResponseWriterIfNeeded(rw http.ResponseWriter, protoMajor int) chimw.WrapResponseWriter {
	if wrw, ok := rw.(chimw.WrapResponseWriter); ok {
		return wrw
	}
	return chimw.NewWrapResponseWriter(rw, protoMajor)
}

// statusOf returns the response status, 200 is assumed when the handler has not written the header explicitly.
func statusOf(wrw chimw.WrapResponseWriter) int {
	if status := wrw.Status(); status != 0 {
		return status
	}
	return http.StatusOK
}

type pathMatcher []func(string) bool

// newPathMatcher compiles glob patterns (e.g. "/healthz", "/internal/*") into a matcher of URL paths.
func newPathMatcher(patterns []string) pathMatcher {
	m := make(pathMatcher, 0, len(patterns))
	for _, p := range patterns {
		m = append(m, glob.Compile(p))
	}
	return m
}

func (m pathMatcher) Match(urlPath string) bool {
	for _, match := range m {
		if match(urlPath) {
			return true
		}
	}
	return false
}
