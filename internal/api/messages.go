package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"socialsync/internal/model"
)

func (c *Client) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	var resp model.ConversationListResponse
	if err := c.do(ctx, http.MethodGet, "/messages/conversations", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// ListMessages returns a page of messages, oldest first, skipping the newest offset messages.
func (c *Client) ListMessages(ctx context.Context, conversationID model.ID, limit, offset int) (*model.MessageListResponse, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var resp model.MessageListResponse
	path := "/messages/conversations/" + url.PathEscape(conversationID.String()) + "/messages"
	if err := c.do(ctx, http.MethodGet, path, q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendMessage posts to an existing conversation.
func (c *Client) SendMessage(ctx context.Context, conversationID model.ID, req model.SendMessageRequest) (*model.SendMessageResponse, error) {
	var resp model.SendMessageResponse
	path := "/messages/conversations/" + url.PathEscape(conversationID.String()) + "/messages"
	if err := c.do(ctx, http.MethodPost, path, nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendToRecipient starts (or continues) a conversation with a user by id.
func (c *Client) SendToRecipient(ctx context.Context, req model.SendMessageRequest) (*model.SendMessageResponse, error) {
	var resp model.SendMessageResponse
	if err := c.do(ctx, http.MethodPost, "/messages/send", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) MarkConversationRead(ctx context.Context, conversationID model.ID) (int, error) {
	var resp model.MarkReadResponse
	path := "/messages/conversations/" + url.PathEscape(conversationID.String()) + "/read"
	if err := c.do(ctx, http.MethodPost, path, nil, nil, &resp); err != nil {
		return 0, err
	}
	return resp.ReadCount, nil
}
