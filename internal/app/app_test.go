package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/toannc04966/pastel-inbox/internal/mailbox"
	"github.com/toannc04966/pastel-inbox/internal/model"
)

func TestNextPageSize(t *testing.T) {
	assert.Equal(t, 20, nextPageSize(10))
	assert.Equal(t, 50, nextPageSize(20))
	assert.Equal(t, 100, nextPageSize(50))
	assert.Equal(t, 10, nextPageSize(100), "cycles back to the smallest option")
	assert.Equal(t, model.DefaultItemsPerPage, nextPageSize(33),
		"unknown sizes fall back to the default")
}

func TestMutationStatus(t *testing.T) {
	assert.Empty(t, mutationStatus(mailbox.BulkReport{}))
	assert.Equal(t, "message deleted",
		mutationStatus(mailbox.BulkReport{Total: 1}))
	assert.Equal(t, "4 messages deleted",
		mutationStatus(mailbox.BulkReport{Total: 4}))
	assert.Contains(t,
		mutationStatus(mailbox.BulkReport{Total: 3, Failed: 3}),
		"delete failed (3 messages)")
	assert.Contains(t,
		mutationStatus(mailbox.BulkReport{Total: 4, Failed: 1}),
		"deleted 3/4, 1 failed")
}

func TestContainsFold(t *testing.T) {
	domains := []string{"Alpha.Test", "beta.test"}
	assert.True(t, containsFold(domains, "alpha.test"))
	assert.True(t, containsFold(domains, "BETA.TEST"))
	assert.False(t, containsFold(domains, "gamma.test"))
	assert.False(t, containsFold(domains, ""))
}

func TestActivityFeedNeverBlocks(t *testing.T) {
	feed := NewActivityFeed()

	// Far more signals than the buffer holds; extra signals drop.
	for i := 0; i < 100; i++ {
		feed.Notify()
	}

	drained := 0
	for {
		select {
		case <-feed.Events():
			drained++
			continue
		default:
		}
		break
	}
	assert.Greater(t, drained, 0)
	assert.LessOrEqual(t, drained, 8)
}
