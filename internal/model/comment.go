package model

import (
	"errors"
	"time"
)

// Comment represents a comment on a post. Root comments have no RootID;
// replies carry the id of their root comment (threads are one level deep)
// and optionally the comment they answered.
type Comment struct {
	ID           ID           `json:"id"`
	PostID       ID           `json:"postId"`
	Author       *UserSummary `json:"author,omitempty"`
	Text         string       `json:"text"`
	LikesCount   int          `json:"likesCount"`
	IsLiked      bool         `json:"isLiked"`
	RepliesCount int          `json:"repliesCount"`
	RootID       *ID          `json:"rootId,omitempty"`
	ParentID     *ID          `json:"parentId,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// IsReply reports whether the comment belongs to a reply thread.
func (c *Comment) IsReply() bool {
	return c.RootID != nil && !c.RootID.IsZero()
}

// CreateCommentRequest is the request body for creating a comment.
type CreateCommentRequest struct {
	Text     string `json:"text"`
	ParentID *ID    `json:"parentId,omitempty"`
}

// CommentListResponse is the paginated comment (or reply) list response.
type CommentListResponse struct {
	Comments   []Comment `json:"comments"`
	NextCursor *string   `json:"nextCursor,omitempty"`
	HasMore    bool      `json:"hasMore"`
}

// LikeResponse is the response of POST /post/:id/comments/:cid/like.
type LikeResponse struct {
	IsLiked    bool `json:"isLiked"`
	LikesCount int  `json:"likesCount"`
}

// CommentDeletedEvent is the payload of the inbound comment_deleted event.
type CommentDeletedEvent struct {
	PostID    ID  `json:"postId"`
	CommentID ID  `json:"commentId"`
	RootID    *ID `json:"rootId,omitempty"`
}

// PostRoom is the payload of join_post/leave_post.
type PostRoom struct {
	PostID ID `json:"postId"`
}

// Comment constraints
const (
	MaxCommentLength = 2200
)

// Comment errors
var (
	ErrContentRequired = errors.New("content is required")
	ErrContentTooLong  = errors.New("content too long")
)
