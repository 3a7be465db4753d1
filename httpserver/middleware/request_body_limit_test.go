/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-notifygate/restapi"
	"github.com/acronis/go-notifygate/testutil"
)

type mockRequestBodyLimitNextHandler struct {
	called int
}

func (h *mockRequestBodyLimitNextHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	h.called++
	var dst map[string]interface{}
	if err := restapi.DecodeRequestJSON(r, &dst); err != nil {
		restapi.RespondMalformedRequestOrInternalError(rw, "NotifyGate", err, nil)
	}
}

func TestRequestBodyLimitHandler_ServeHTTP(t *testing.T) {
	jsonOfSize := func(n int) string {
		return `{"m":"` + strings.Repeat("a", n-8) + `"}`
	}

	tests := []struct {
		name              string
		maxSize           uint64
		reqBody           string
		sendContentLength bool
		wantStatus        int
		wantNextCalled    int
	}{
		{
			name:              "too large content length",
			maxSize:           32,
			reqBody:           jsonOfSize(64),
			sendContentLength: true,
			wantStatus:        http.StatusRequestEntityTooLarge,
		},
		{
			name:           "small body",
			maxSize:        32,
			reqBody:        jsonOfSize(16),
			wantStatus:     http.StatusOK,
			wantNextCalled: 1,
		},
		{
			name:           "body of exactly max size",
			maxSize:        32,
			reqBody:        jsonOfSize(32),
			wantStatus:     http.StatusOK,
			wantNextCalled: 1,
		},
		{
			name:           "body is larger than max size, no content length",
			maxSize:        32,
			reqBody:        jsonOfSize(33),
			wantStatus:     http.StatusRequestEntityTooLarge,
			wantNextCalled: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &mockRequestBodyLimitNextHandler{}
			req := httptest.NewRequest(http.MethodPost, "/notification", bytes.NewBufferString(tt.reqBody))
			if !tt.sendContentLength {
				req.ContentLength = -1
			}
			resp := httptest.NewRecorder()

			RequestBodyLimit(tt.maxSize, "NotifyGate")(next).ServeHTTP(resp, req)

			require.Equal(t, tt.wantNextCalled, next.called)
			if tt.wantStatus == http.StatusOK {
				require.Equal(t, http.StatusOK, resp.Code)
				return
			}
			testutil.RequireErrorInRecorder(t, resp, tt.wantStatus, "NotifyGate", "requestEntityTooLarge")
		})
	}
}
