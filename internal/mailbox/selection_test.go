package mailbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toannc04966/pastel-inbox/internal/api"
	"github.com/toannc04966/pastel-inbox/internal/model"
	"github.com/toannc04966/pastel-inbox/tests/testutil"
)

func TestSuccessorIndex(t *testing.T) {
	tests := []struct {
		name         string
		removedIndex int
		newLen       int
		want         int
	}{
		{"empty list has no successor", 0, 0, -1},
		{"middle removal keeps the same index", 2, 5, 2},
		{"first removal keeps index zero", 0, 4, 0},
		{"last removal falls back to the new last", 4, 4, 3},
		{"index far past the end clamps to last", 9, 3, 2},
		{"negative index clamps to first", -1, 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SuccessorIndex(tt.removedIndex, tt.newLen))
		})
	}
}

func TestSelectFetchesAndMarksRead(t *testing.T) {
	events := make(chan Event, 16)
	st := testutil.NewTestStore(t)
	client := &fakeClient{
		getFn: func(_ context.Context, id string) (*model.Message, error) {
			return &model.Message{
				MessagePreview: model.MessagePreview{ID: id, Subject: "hello"},
				Content:        model.MessageContent{Text: "body"},
			}, nil
		},
	}
	c := NewSelectionCoordinator(client, st, events)

	c.Select("m1", FolderInbox)

	waitUntil(t, func() bool { return c.Selected() != nil }, "selection loads")
	assert.Equal(t, "m1", c.SelectedID())
	assert.False(t, c.Loading())

	waitUntil(t, func() bool {
		set, err := st.ReadMessageIDs(context.Background())
		return err == nil && set["m1"]
	}, "opening a message marks it read")
}

func TestSelectErrorIsRecoverable(t *testing.T) {
	events := make(chan Event, 16)
	client := &fakeClient{
		getFn: func(_ context.Context, id string) (*model.Message, error) {
			return nil, &api.Error{StatusCode: 404, Message: "gone"}
		},
	}
	c := NewSelectionCoordinator(client, nil, events)

	c.Select("vanished", FolderInbox)

	require.True(t, sawEvent(events, EventSelectionError, time.Second))
	assert.Nil(t, c.Selected())
	assert.Error(t, c.Err())
}

func TestSelectSupersedesPreviousFetch(t *testing.T) {
	events := make(chan Event, 16)
	release := make(chan struct{})
	client := &fakeClient{
		getFn: func(_ context.Context, id string) (*model.Message, error) {
			if id == "slow" {
				<-release
			}
			return &model.Message{MessagePreview: model.MessagePreview{ID: id}}, nil
		},
	}
	c := NewSelectionCoordinator(client, nil, events)

	c.Select("slow", FolderInbox)
	c.Select("fast", FolderInbox)

	waitUntil(t, func() bool { return c.SelectedID() == "fast" }, "newer selection wins")

	close(release)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, "fast", c.SelectedID(), "stale fetch must not replace the selection")
}

func TestClearDropsSelection(t *testing.T) {
	events := make(chan Event, 16)
	client := &fakeClient{}
	c := NewSelectionCoordinator(client, nil, events)

	c.Select("m1", FolderInbox)
	waitUntil(t, func() bool { return c.Selected() != nil }, "selection loads")

	c.Clear()
	assert.Nil(t, c.Selected())
	assert.Empty(t, c.SelectedID())
	assert.False(t, c.Loading())
}

func TestSelectAuthErrorPublishesAuthExpired(t *testing.T) {
	events := make(chan Event, 16)
	client := &fakeClient{
		getFn: func(_ context.Context, id string) (*model.Message, error) {
			return nil, &api.AuthError{Message: "expired"}
		},
	}
	c := NewSelectionCoordinator(client, nil, events)

	c.Select("m1", FolderInbox)
	require.True(t, sawEvent(events, EventAuthExpired, time.Second))
}
