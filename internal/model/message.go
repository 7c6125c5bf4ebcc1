package model

import (
	"strings"
	"time"
)

// AccessMode describes how a user may read mail within a domain.
type AccessMode string

const (
	// ModeAllInboxes grants listing across every inbox in the domain.
	ModeAllInboxes AccessMode = "ALL_INBOXES"

	// ModeAddressOnly requires a concrete mailbox address before listing.
	ModeAddressOnly AccessMode = "ADDRESS_ONLY"

	// ModeSelfOnly pins the mailbox to the caller's own address.
	ModeSelfOnly AccessMode = "SELF_ONLY"
)

// DomainAll is the reserved domain value that aggregates across every
// domain the caller owns.
const DomainAll = "all"

// Permission grants an access mode for a single domain. At most one
// permission exists per domain; absence means no access.
type Permission struct {
	Domain string     `json:"domain"`
	Mode   AccessMode `json:"mode"`
}

// MessagePreview is the lightweight list representation of a message.
// Identity is ID; list order is server-assigned (newest first) and is
// never re-sorted client-side.
type MessagePreview struct {
	ID          string    `json:"id"`
	From        string    `json:"from"`
	SenderName  string    `json:"sender_name,omitempty"`
	SenderEmail string    `json:"sender_email,omitempty"`
	Subject     string    `json:"subject"`
	Preview     string    `json:"preview"`
	ReceivedAt  time.Time `json:"received_at"`
	InboxID     string    `json:"inbox_id,omitempty"`
	Domain      string    `json:"domain,omitempty"`
}

// MessageContent holds the alternative body representations of a message.
type MessageContent struct {
	Text string `json:"text,omitempty"`
	HTML string `json:"html,omitempty"`
	Raw  string `json:"raw,omitempty"`
}

// Attachment describes a single message attachment.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Content     []byte `json:"content,omitempty"`
}

// Message is the full representation of a message, lazily fetched only
// when the message is selected.
type Message struct {
	MessagePreview

	To          []string       `json:"to"`
	Content     MessageContent `json:"content"`
	Attachments []Attachment   `json:"attachments,omitempty"`
}

// ItemsPerPageOptions are the allowed page sizes for the message list.
var ItemsPerPageOptions = []int{10, 20, 50, 100}

// DefaultItemsPerPage is used when no preference has been persisted.
const DefaultItemsPerPage = 20

// ValidItemsPerPage reports whether n is an allowed page size.
func ValidItemsPerPage(n int) bool {
	for _, opt := range ItemsPerPageOptions {
		if n == opt {
			return true
		}
	}
	return false
}

// Pagination tracks the paging position within a message list.
type Pagination struct {
	CurrentPage  int `json:"current_page"`
	ItemsPerPage int `json:"items_per_page"`
	TotalItems   int `json:"total_items"`
}

// Offset returns the zero-based item offset of the current page.
func (p Pagination) Offset() int {
	if p.CurrentPage < 1 {
		return 0
	}
	return (p.CurrentPage - 1) * p.ItemsPerPage
}

// TotalPages returns the number of pages implied by TotalItems.
func (p Pagination) TotalPages() int {
	if p.ItemsPerPage <= 0 || p.TotalItems <= 0 {
		return 1
	}
	pages := p.TotalItems / p.ItemsPerPage
	if p.TotalItems%p.ItemsPerPage != 0 {
		pages++
	}
	return pages
}

// RecentEmail records a mailbox address the user has looked up, for
// quick re-selection in ADDRESS_ONLY domains.
type RecentEmail struct {
	Email        string    `json:"email"`
	MessageCount int       `json:"message_count"`
	LastAccessed time.Time `json:"last_accessed"`
}

// MaxRecentEmails caps the recent-email history per domain.
const MaxRecentEmails = 10

// PushRecentEmail prepends entry to history with most-recently-used
// ordering, de-duplicating addresses case-insensitively and keeping at
// most MaxRecentEmails entries.
func PushRecentEmail(history []RecentEmail, entry RecentEmail) []RecentEmail {
	out := make([]RecentEmail, 0, len(history)+1)
	out = append(out, entry)
	for _, h := range history {
		if strings.EqualFold(h.Email, entry.Email) {
			continue
		}
		out = append(out, h)
	}
	if len(out) > MaxRecentEmails {
		out = out[:MaxRecentEmails]
	}
	return out
}

// RateLimitState is the persisted snapshot of the outbound send quota.
type RateLimitState struct {
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
	Limit     int       `json:"limit"`
}

// Normalized returns the state with the quota restored when the reset
// deadline has passed.
func (r RateLimitState) Normalized(now time.Time) RateLimitState {
	if !r.ResetAt.IsZero() && now.After(r.ResetAt) {
		r.Remaining = r.Limit
		r.ResetAt = time.Time{}
	}
	return r
}

// Exhausted reports whether sending is currently blocked.
func (r RateLimitState) Exhausted(now time.Time) bool {
	r = r.Normalized(now)
	return r.Limit > 0 && r.Remaining <= 0
}

// WaitRemaining returns how long until the quota resets, or zero when
// sending is allowed.
func (r RateLimitState) WaitRemaining(now time.Time) time.Duration {
	if !r.Exhausted(now) {
		return 0
	}
	d := r.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// ComposeDraft is the single compose draft slot kept per authenticated
// user.
type ComposeDraft struct {
	From    string    `json:"from"`
	To      []string  `json:"to"`
	CC      []string  `json:"cc,omitempty"`
	BCC     []string  `json:"bcc,omitempty"`
	ReplyTo string    `json:"reply_to,omitempty"`
	Subject string    `json:"subject"`
	Text    string    `json:"text,omitempty"`
	HTML    string    `json:"html,omitempty"`
	SavedAt time.Time `json:"saved_at"`
}

// Empty reports whether the draft carries no user content worth keeping.
func (d ComposeDraft) Empty() bool {
	return len(d.To) == 0 && d.Subject == "" && d.Text == "" && d.HTML == ""
}

// SendConfig describes the outbound-send policy returned by the backend.
type SendConfig struct {
	AllowedDomains []string       `json:"allowed_domains"`
	DefaultFrom    string         `json:"default_from"`
	SelfOnly       bool           `json:"self_only"`
	RateLimit      RateLimitState `json:"rate_limit"`
}

// OutgoingMessage is the payload submitted to the send endpoint.
type OutgoingMessage struct {
	From        string       `json:"from"`
	To          []string     `json:"to"`
	CC          []string     `json:"cc,omitempty"`
	BCC         []string     `json:"bcc,omitempty"`
	ReplyTo     string       `json:"reply_to,omitempty"`
	Subject     string       `json:"subject"`
	Text        string       `json:"text,omitempty"`
	HTML        string       `json:"html,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}
