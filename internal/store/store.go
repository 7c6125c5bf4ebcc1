package store

import (
	"context"

	"github.com/toannc04966/pastel-inbox/internal/model"
)

// Preference keys persisted across sessions. Values are JSON-encoded.
const (
	PrefSelectedDomain = "selected_domain"
	PrefSelectedEmail  = "selected_email"
	PrefItemsPerPage   = "items_per_page"
	PrefAutoRefresh    = "auto_refresh_enabled"
)

// Store defines the local persistence interface for the mailbox client:
// user preferences, the read-message set, recent-email history, compose
// drafts, and the rate-limit snapshot.
//
// Values decode leniently: a corrupt row is discarded and reported as
// absent, never as an error that blocks startup.
type Store interface {
	// === Preferences ===

	// GetPreference decodes the stored JSON value for key into out.
	// Returns false when the key is absent or the stored value is
	// corrupt.
	GetPreference(ctx context.Context, key string, out interface{}) (bool, error)
	SetPreference(ctx context.Context, key string, value interface{}) error
	DeletePreference(ctx context.Context, key string) error

	// === Read state ===

	MarkRead(ctx context.Context, messageIDs ...string) error
	ReadMessageIDs(ctx context.Context) (map[string]bool, error)

	// === Recent emails ===

	RecentEmails(ctx context.Context, domain string) ([]model.RecentEmail, error)
	RecordRecentEmail(ctx context.Context, domain string, entry model.RecentEmail) error

	// === Compose drafts (one slot per user) ===

	SaveDraft(ctx context.Context, userID string, draft model.ComposeDraft) error
	GetDraft(ctx context.Context, userID string) (*model.ComposeDraft, error)
	DeleteDraft(ctx context.Context, userID string) error

	// === Rate limit snapshot ===

	GetRateLimit(ctx context.Context, userID string) (model.RateLimitState, error)
	SetRateLimit(ctx context.Context, userID string, state model.RateLimitState) error

	Close() error
}
