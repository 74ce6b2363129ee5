package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"socialsync/internal/model"
)

func (c *Client) ListNotifications(ctx context.Context, limit, offset int) (*model.NotificationListResponse, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var resp model.NotificationListResponse
	if err := c.do(ctx, http.MethodGet, "/notifications", q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id model.ID) error {
	return c.do(ctx, http.MethodPost, "/notifications/"+url.PathEscape(id.String())+"/read", nil, nil, nil)
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/notifications/read-all", nil, nil, nil)
}
