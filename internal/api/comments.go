package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"socialsync/internal/model"
)

func commentsPath(postID model.ID) string {
	return "/post/" + url.PathEscape(postID.String()) + "/comments"
}

func pageQuery(limit int, cursor *string) url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if cursor != nil && *cursor != "" {
		q.Set("cursor", *cursor)
	}
	return q
}

// ListComments returns a page of root comments for a post.
func (c *Client) ListComments(ctx context.Context, postID model.ID, limit int, cursor *string) (*model.CommentListResponse, error) {
	var resp model.CommentListResponse
	if err := c.do(ctx, http.MethodGet, commentsPath(postID), pageQuery(limit, cursor), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListReplies returns a page of replies under a root comment.
func (c *Client) ListReplies(ctx context.Context, postID, commentID model.ID, limit int, cursor *string) (*model.CommentListResponse, error) {
	var resp model.CommentListResponse
	path := commentsPath(postID) + "/" + url.PathEscape(commentID.String()) + "/replies"
	if err := c.do(ctx, http.MethodGet, path, pageQuery(limit, cursor), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) CreateComment(ctx context.Context, postID model.ID, req model.CreateCommentRequest) (*model.Comment, error) {
	var comment model.Comment
	if err := c.do(ctx, http.MethodPost, commentsPath(postID), nil, req, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// ToggleCommentLike flips the like on a comment or reply server-side.
func (c *Client) ToggleCommentLike(ctx context.Context, postID, commentID model.ID) (*model.LikeResponse, error) {
	var resp model.LikeResponse
	path := commentsPath(postID) + "/" + url.PathEscape(commentID.String()) + "/like"
	if err := c.do(ctx, http.MethodPost, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
