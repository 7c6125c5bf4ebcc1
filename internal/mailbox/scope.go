package mailbox

import (
	"context"

	"github.com/toannc04966/pastel-inbox/internal/api"
	"github.com/toannc04966/pastel-inbox/internal/model"
)

// Folder selects which backend collection a scope reads from.
type Folder string

const (
	FolderInbox Folder = "inbox"
	FolderSent  Folder = "sent"
)

// Scope is the (folder, domain or email, permission mode) tuple that
// determines which backend query the list synchronizer issues.
type Scope struct {
	Folder Folder
	Domain string
	Email  string
	Mode   model.AccessMode
}

// Fetchable reports whether a listing may be issued for the scope.
// ADDRESS_ONLY domains may not be listed until an address is supplied.
func (s Scope) Fetchable() bool {
	if s.Folder == FolderSent {
		return true
	}
	if s.Mode == model.ModeAddressOnly && s.Email == "" {
		return false
	}
	return true
}

// ListAPI is the narrow client surface needed to fetch message pages.
type ListAPI interface {
	ListMessages(ctx context.Context, q api.MessageQuery) (*api.MessagePage, error)
	ListSent(ctx context.Context, limit, offset int) (*api.MessagePage, error)
}

// FetchAPI is the narrow client surface needed to fetch one message.
type FetchAPI interface {
	GetMessage(ctx context.Context, id string) (*model.Message, error)
	GetSent(ctx context.Context, id string) (*model.Message, error)
}

// DeleteAPI is the narrow client surface needed to delete messages.
type DeleteAPI interface {
	DeleteMessage(ctx context.Context, id string) error
	DeleteSent(ctx context.Context, id string) error
}

// SendAPI is the narrow client surface needed to send messages.
type SendAPI interface {
	Send(ctx context.Context, msg model.OutgoingMessage) error
	SendConfig(ctx context.Context) (*model.SendConfig, error)
}
