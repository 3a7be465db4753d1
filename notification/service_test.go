/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-notifygate/log"
	"github.com/acronis/go-notifygate/log/logtest"
	"github.com/acronis/go-notifygate/ratelimit"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Request
}

func (s *recordingSender) Send(_ context.Context, req Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, req)
}

func (s *recordingSender) Sent() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.sent...)
}

type admitterFunc func(notificationType, recipient string) (ratelimit.Decision, error)

func (f admitterFunc) Decide(notificationType, recipient string) (ratelimit.Decision, error) {
	return f(notificationType, recipient)
}

func newTestAdmissionController(t *testing.T, policies map[string]ratelimit.Policy) *ratelimit.AdmissionController {
	t.Helper()
	table, err := ratelimit.NewPolicyTable(policies)
	require.NoError(t, err)
	return ratelimit.NewAdmissionController(table, ratelimit.NewCounterStore())
}

func TestService_Send(t *testing.T) {
	sender := &recordingSender{}
	admitter := newTestAdmissionController(t, map[string]ratelimit.Policy{
		"status": {Limit: 2, Period: time.Minute},
		"news":   {Limit: 1, Period: 24 * time.Hour},
	})
	svc := NewService(admitter, sender)

	tests := []struct {
		req         Request
		wantSuccess bool
		wantMessage string
	}{
		{Request{"status", "alice", "ok"}, true, "Notification 'status' sent to alice"},
		{Request{"status", "alice", "ok"}, true, "Notification 'status' sent to alice"},
		{Request{"status", "alice", "ok"}, false, "Rate limit exceeded for 'status' notification to alice"},
		{Request{"news", "bob", "daily"}, true, "Notification 'news' sent to bob"},
		{Request{"news", "carol", "daily"}, true, "Notification 'news' sent to carol"},
		{Request{"news", "bob", "daily"}, false, "Rate limit exceeded for 'news' notification to bob"},
		{Request{"alert", "bob", "disk is full"}, true, "Notification 'alert' sent to bob"},
	}
	for i, tt := range tests {
		resp, err := svc.Send(context.Background(), tt.req)
		require.NoError(t, err, "request #%d", i)
		require.Equal(t, tt.wantSuccess, resp.Success, "request #%d", i)
		require.Equal(t, tt.wantMessage, resp.Message, "request #%d", i)
		if tt.wantSuccess {
			require.Zero(t, resp.RetryAfter)
		} else {
			require.Greater(t, resp.RetryAfter, time.Duration(0))
		}
	}

	require.Equal(t, []Request{
		{"status", "alice", "ok"},
		{"status", "alice", "ok"},
		{"news", "bob", "daily"},
		{"news", "carol", "daily"},
		{"alert", "bob", "disk is full"},
	}, sender.Sent())
}

func TestService_SendInvalidRequest(t *testing.T) {
	sender := &recordingSender{}
	admitter := admitterFunc(func(string, string) (ratelimit.Decision, error) {
		t.Fatal("admitter must not be called for invalid request")
		return ratelimit.Decision{}, nil
	})
	svc := NewService(admitter, sender)

	_, err := svc.Send(context.Background(), Request{Recipient: "alice"})
	require.ErrorIs(t, err, ErrInvalidRequest)
	require.EqualError(t, err, "invalid notification request: type must not be empty")

	_, err = svc.Send(context.Background(), Request{Type: "status"})
	require.ErrorIs(t, err, ErrInvalidRequest)
	require.EqualError(t, err, "invalid notification request: recipient must not be empty")

	require.Empty(t, sender.Sent())
}

func TestService_SendAdmissionFailure(t *testing.T) {
	sender := &recordingSender{}
	admitter := admitterFunc(func(notificationType, _ string) (ratelimit.Decision, error) {
		return ratelimit.Decision{}, fmt.Errorf("check rate limit for %q notification type: %w", notificationType, ratelimit.ErrStoreFull)
	})
	svc := NewService(admitter, sender)

	resp, err := svc.Send(context.Background(), Request{"status", "alice", "ok"})
	require.ErrorIs(t, err, ratelimit.ErrStoreFull)
	require.False(t, resp.Success)
	require.Empty(t, sender.Sent(), "notification must not be sent when rate limit cannot be checked")
}

func TestService_SendExcludedRecipients(t *testing.T) {
	sender := &recordingSender{}
	logRecorder := logtest.NewRecorder()
	var admitted []string
	admitter := admitterFunc(func(_, recipient string) (ratelimit.Decision, error) {
		admitted = append(admitted, recipient)
		return ratelimit.Decision{Allowed: false, Restricted: true, Limit: 0}, nil
	})
	svc := NewServiceWithOpts(admitter, sender, ServiceOpts{
		ExcludedRecipients: []string{"*@ops.example.com", "oncall-*"},
		Logger:             logRecorder,
	})

	for _, recipient := range []string{"alice@ops.example.com", "oncall-eu", "bob@example.com"} {
		_, err := svc.Send(context.Background(), Request{"status", recipient, "ok"})
		require.NoError(t, err)
	}

	require.Equal(t, []string{"bob@example.com"}, admitted)
	require.Equal(t, []Request{
		{"status", "alice@ops.example.com", "ok"},
		{"status", "oncall-eu", "ok"},
	}, sender.Sent())

	entry, found := logRecorder.FindEntry("Rate limit exceeded for 'status' notification to bob@example.com")
	require.True(t, found)
	require.Equal(t, log.LevelInfo, entry.Level)
	recipientField, found := entry.FindField("recipient")
	require.True(t, found)
	require.Equal(t, "bob@example.com", string(recipientField.Bytes))
}

func TestService_SendConcurrently(t *testing.T) {
	const limit = 5
	sender := &recordingSender{}
	svc := NewService(newTestAdmissionController(t, map[string]ratelimit.Policy{
		"marketing": {Limit: limit, Period: time.Hour},
	}), sender)

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Send(context.Background(), Request{"marketing", "dave", "sale"}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.Len(t, sender.Sent(), limit)
}

func TestLogSender(t *testing.T) {
	logRecorder := logtest.NewRecorder()
	var sender Sender = NewLogSender(logRecorder)
	sender.Send(context.Background(), Request{"status", "alice", "build passed"})

	entries := logRecorder.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, log.LevelInfo, entries[0].Level)
	require.Equal(t, "sending notification", entries[0].Text)
	for key, want := range map[string]string{"notification_type": "status", "recipient": "alice", "message": "build passed"} {
		got, found := entries[0].StringField(key)
		require.True(t, found, key)
		require.Equal(t, want, got)
	}
}

func TestSenderFunc(t *testing.T) {
	var got Request
	var sender Sender = SenderFunc(func(_ context.Context, req Request) { got = req })
	sender.Send(context.Background(), Request{"news", "bob", "hello"})
	require.Equal(t, Request{"news", "bob", "hello"}, got)
}

func TestRequest_Validate(t *testing.T) {
	require.NoError(t, Request{Type: "status", Recipient: "alice"}.Validate())
	require.True(t, errors.Is(Request{}.Validate(), ErrInvalidRequest))
}
