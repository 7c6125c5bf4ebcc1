package mailbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/toannc04966/pastel-inbox/internal/api"
	"github.com/toannc04966/pastel-inbox/internal/model"
	"github.com/toannc04966/pastel-inbox/internal/store"
)

// sendQuotaWindow is how long a locally exhausted send quota stays
// blocked when the backend policy does not supply its own reset time.
const sendQuotaWindow = time.Hour

// Composer coordinates outbound sending: the rate-limit gate, the
// per-user compose draft slot, and the send policy fetched from the
// backend.
type Composer struct {
	client SendAPI
	store  store.Store
	userID string

	mu  sync.Mutex
	cfg *model.SendConfig
}

// NewComposer creates a composer for the authenticated user.
func NewComposer(client SendAPI, st store.Store, userID string) *Composer {
	return &Composer{
		client: client,
		store:  st,
		userID: userID,
	}
}

// LoadConfig fetches the send policy and seeds the persisted rate-limit
// snapshot when none exists yet.
func (c *Composer) LoadConfig(ctx context.Context) (*model.SendConfig, error) {
	cfg, err := c.client.SendConfig(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()

	state, err := c.store.GetRateLimit(ctx, c.userID)
	if err != nil {
		return nil, err
	}
	if state.Limit == 0 && cfg.RateLimit.Limit > 0 {
		seed := cfg.RateLimit
		if seed.Remaining == 0 {
			seed.Remaining = seed.Limit
		}
		if err := c.store.SetRateLimit(ctx, c.userID, seed); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Config returns the last-fetched send policy, or nil.
func (c *Composer) Config() *model.SendConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// RateLimit returns the current quota state with any elapsed reset
// applied.
func (c *Composer) RateLimit(ctx context.Context) (model.RateLimitState, error) {
	state, err := c.store.GetRateLimit(ctx, c.userID)
	if err != nil {
		return model.RateLimitState{}, err
	}
	return state.Normalized(time.Now()), nil
}

// Send submits a message. When the local quota is exhausted, the send
// is rejected with a RateLimitError carrying the remaining wait; on a
// successful send the quota is decremented and persisted.
func (c *Composer) Send(ctx context.Context, msg model.OutgoingMessage) error {
	now := time.Now()

	state, err := c.store.GetRateLimit(ctx, c.userID)
	if err != nil {
		return err
	}
	if state.Exhausted(now) {
		return &api.RateLimitError{RetryAfter: state.WaitRemaining(now)}
	}

	if err := c.client.Send(ctx, msg); err != nil {
		return err
	}

	state = state.Normalized(now)
	if state.Limit > 0 {
		state.Remaining--
		if state.ResetAt.IsZero() {
			state.ResetAt = now.Add(sendQuotaWindow)
		}
		if err := c.store.SetRateLimit(ctx, c.userID, state); err != nil {
			return fmt.Errorf("persisting rate limit: %w", err)
		}
	}

	// A successful send consumes the draft slot.
	return c.store.DeleteDraft(ctx, c.userID)
}

// SaveDraft persists the user's single compose draft slot. Empty drafts
// discard the slot instead of storing a blank entry.
func (c *Composer) SaveDraft(ctx context.Context, draft model.ComposeDraft) error {
	if draft.Empty() {
		return c.store.DeleteDraft(ctx, c.userID)
	}
	draft.SavedAt = time.Now()
	return c.store.SaveDraft(ctx, c.userID, draft)
}

// LoadDraft returns the stored draft, or nil when none exists.
func (c *Composer) LoadDraft(ctx context.Context) (*model.ComposeDraft, error) {
	return c.store.GetDraft(ctx, c.userID)
}

// DiscardDraft drops the stored draft.
func (c *Composer) DiscardDraft(ctx context.Context) error {
	return c.store.DeleteDraft(ctx, c.userID)
}
