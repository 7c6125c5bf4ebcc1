package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"

	"github.com/toannc04966/pastel-inbox/internal/model"
)

// DomainsInfo is the account overview returned by GET /domains: the
// domains visible to the caller, the per-domain permissions, and the
// caller's resolved address for SELF_ONLY accounts.
type DomainsInfo struct {
	Domains     []string           `json:"domains"`
	Permissions []model.Permission `json:"permissions"`
	SelfOnly    bool               `json:"self_only"`
	Email       string             `json:"email"`
}

// MessageQuery scopes a message-list request. Exactly one of Domain or
// Email should be set for inbox listings; both are ignored for the sent
// folder.
type MessageQuery struct {
	Domain string
	Email  string
	Limit  int
	Offset int
}

// MessagePage is one page of message previews. Total is nil when the
// backend does not report an authoritative count.
type MessagePage struct {
	Messages []model.MessagePreview `json:"messages"`
	Total    *int                   `json:"total,omitempty"`
}

// Domains fetches the domain list and permission set for the session.
func (c *Client) Domains(ctx context.Context) (*DomainsInfo, error) {
	var info DomainsInfo
	if err := c.Get(ctx, "/domains", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ListMessages fetches one page of message previews for the query
// scope. A 404 on a by-email query means the address has no messages
// and is returned as an empty page, not an error.
func (c *Client) ListMessages(ctx context.Context, q MessageQuery) (*MessagePage, error) {
	params := url.Values{}
	if q.Email != "" {
		params.Set("email", q.Email)
	} else if q.Domain != "" {
		params.Set("domain", q.Domain)
	}
	params.Set("limit", fmt.Sprint(q.Limit))
	params.Set("offset", fmt.Sprint(q.Offset))

	var page MessagePage
	err := c.Get(ctx, "/messages?"+params.Encode(), &page)
	if err != nil {
		if q.Email != "" && IsNotFound(err) {
			return &MessagePage{}, nil
		}
		return nil, err
	}
	return &page, nil
}

// GetMessage fetches the full message body for a single message.
func (c *Client) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	var msg model.Message
	if err := c.Get(ctx, "/messages/"+url.PathEscape(id), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DeleteMessage deletes a single message.
func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	return c.Delete(ctx, "/messages/"+url.PathEscape(id), nil)
}

// ListSent fetches one page of the caller's sent messages.
func (c *Client) ListSent(ctx context.Context, limit, offset int) (*MessagePage, error) {
	params := url.Values{}
	params.Set("limit", fmt.Sprint(limit))
	params.Set("offset", fmt.Sprint(offset))

	var page MessagePage
	if err := c.Get(ctx, "/sent?"+params.Encode(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetSent fetches a full sent message.
func (c *Client) GetSent(ctx context.Context, id string) (*model.Message, error) {
	var msg model.Message
	if err := c.Get(ctx, "/sent/"+url.PathEscape(id), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DeleteSent deletes a single sent message.
func (c *Client) DeleteSent(ctx context.Context, id string) error {
	return c.Delete(ctx, "/sent/"+url.PathEscape(id), nil)
}

// SendConfig fetches the outbound-send policy for the session.
func (c *Client) SendConfig(ctx context.Context) (*model.SendConfig, error) {
	var cfg model.SendConfig
	if err := c.Get(ctx, "/send/config", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Send submits an outgoing message. Messages without attachments go as
// JSON; messages with attachments go as a multipart form with the
// message fields in a "message" part and each attachment in a "file"
// part.
func (c *Client) Send(ctx context.Context, msg model.OutgoingMessage) error {
	if len(msg.Attachments) == 0 {
		return c.Post(ctx, "/send", msg, nil)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	attachments := msg.Attachments
	msg.Attachments = nil

	metaPart, err := mw.CreateFormField("message")
	if err != nil {
		return fmt.Errorf("building multipart message: %w", err)
	}
	if err := writeJSON(metaPart, msg); err != nil {
		return fmt.Errorf("encoding message part: %w", err)
	}

	for _, att := range attachments {
		part, err := mw.CreateFormFile("file", att.Filename)
		if err != nil {
			return fmt.Errorf("building attachment part %s: %w", att.Filename, err)
		}
		if _, err := part.Write(att.Content); err != nil {
			return fmt.Errorf("writing attachment %s: %w", att.Filename, err)
		}
	}

	if err := mw.Close(); err != nil {
		return fmt.Errorf("finalizing multipart message: %w", err)
	}

	return c.PostMultipart(ctx, "/send", mw.FormDataContentType(), &buf, nil)
}

// writeJSON encodes v as JSON onto w.
func writeJSON(w io.Writer, v interface{}) error {
	return json.NewEncoder(w).Encode(v)
}
