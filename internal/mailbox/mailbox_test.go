package mailbox

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/toannc04966/pastel-inbox/internal/api"
	"github.com/toannc04966/pastel-inbox/internal/model"
)

// fakeClient implements the narrow API surfaces with per-test behavior
// supplied as closures.
type fakeClient struct {
	mu sync.Mutex

	listFn     func(ctx context.Context, q api.MessageQuery) (*api.MessagePage, error)
	listSentFn func(ctx context.Context, limit, offset int) (*api.MessagePage, error)
	getFn      func(ctx context.Context, id string) (*model.Message, error)
	deleteFn   func(ctx context.Context, id string) error
	sendFn     func(ctx context.Context, msg model.OutgoingMessage) error
	sendCfgFn  func(ctx context.Context) (*model.SendConfig, error)

	listCalls   int
	deleted     []string
	sentDeleted []string
	sent        []model.OutgoingMessage
}

func (f *fakeClient) ListMessages(ctx context.Context, q api.MessageQuery) (*api.MessagePage, error) {
	f.mu.Lock()
	f.listCalls++
	fn := f.listFn
	f.mu.Unlock()

	if fn == nil {
		return &api.MessagePage{}, nil
	}
	return fn(ctx, q)
}

func (f *fakeClient) ListSent(ctx context.Context, limit, offset int) (*api.MessagePage, error) {
	f.mu.Lock()
	f.listCalls++
	fn := f.listSentFn
	f.mu.Unlock()

	if fn == nil {
		return &api.MessagePage{}, nil
	}
	return fn(ctx, limit, offset)
}

func (f *fakeClient) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	if f.getFn == nil {
		return &model.Message{MessagePreview: model.MessagePreview{ID: id}}, nil
	}
	return f.getFn(ctx, id)
}

func (f *fakeClient) GetSent(ctx context.Context, id string) (*model.Message, error) {
	return f.GetMessage(ctx, id)
}

func (f *fakeClient) DeleteMessage(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		if err := f.deleteFn(ctx, id); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.deleted = append(f.deleted, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) DeleteSent(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		if err := f.deleteFn(ctx, id); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.sentDeleted = append(f.sentDeleted, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) Send(ctx context.Context, msg model.OutgoingMessage) error {
	if f.sendFn != nil {
		if err := f.sendFn(ctx, msg); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) SendConfig(ctx context.Context) (*model.SendConfig, error) {
	if f.sendCfgFn == nil {
		return &model.SendConfig{}, nil
	}
	return f.sendCfgFn(ctx)
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func (f *fakeClient) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// previews builds n message previews with ids id0..id(n-1).
func previews(prefix string, n int) []model.MessagePreview {
	out := make([]model.MessagePreview, n)
	for i := range out {
		out[i] = model.MessagePreview{
			ID:      prefix + string(rune('0'+i)),
			From:    "sender@x.test",
			Subject: "subject " + prefix,
		}
	}
	return out
}

func pageOf(msgs []model.MessagePreview) *api.MessagePage {
	return &api.MessagePage{Messages: msgs}
}

// waitUntil polls cond until it holds or the test times out.
func waitUntil(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 2*time.Millisecond, msg)
}

// sawEvent drains pending events and reports whether kind was seen
// before the timeout.
func sawEvent(ch <-chan Event, kind EventKind, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-ch:
			if ev.Kind == kind {
				return true
			}
		case <-deadline:
			return false
		}
	}
}

func inboxScope(domain, email string, mode model.AccessMode) Scope {
	return Scope{Folder: FolderInbox, Domain: domain, Email: email, Mode: mode}
}
