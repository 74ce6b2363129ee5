package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"socialsync/internal/logger"
	"socialsync/internal/model"
	"socialsync/internal/queue"
	"socialsync/internal/store"
)

// Notifications channel events for post rooms.
const (
	EventJoinPost       = "join_post"
	EventLeavePost      = "leave_post"
	EventCommentAdded   = "comment_added"
	EventCommentDeleted = "comment_deleted"
)

// DefaultCommentPageSize is the comment and reply page size when none is configured.
const DefaultCommentPageSize = 10

// CommentService coordinates comment and reply intents for open posts and
// applies inbound comment pushes.
type CommentService struct {
	api      CommentAPI
	store    *store.Comments
	ch       Emitter
	sink     EventSink
	pageSize int
}

func NewCommentService(api CommentAPI, st *store.Comments, ch Emitter, sink EventSink, pageSize int) *CommentService {
	if pageSize <= 0 {
		pageSize = DefaultCommentPageSize
	}
	return &CommentService{
		api:      api,
		store:    st,
		ch:       ch,
		sink:     sink,
		pageSize: pageSize,
	}
}

// OpenPost joins the post's room and loads the first page of root comments.
func (s *CommentService) OpenPost(ctx context.Context, postID model.ID) error {
	emit(s.ch, "CommentService", EventJoinPost, model.PostRoom{PostID: postID})
	return s.LoadComments(ctx, postID, true)
}

// ClosePost leaves the post's room and drops its comments.
func (s *CommentService) ClosePost(postID model.ID) {
	emit(s.ch, "CommentService", EventLeavePost, model.PostRoom{PostID: postID})
	s.store.Forget(postID)
}

// LoadComments fetches root comments. reset starts from the first page;
// otherwise the stored cursor is used.
func (s *CommentService) LoadComments(ctx context.Context, postID model.ID, reset bool) error {
	cursor, err := s.store.BeginLoadComments(postID, reset)
	if err != nil {
		return err
	}

	resp, err := s.api.ListComments(ctx, postID, s.pageSize, cursor)
	if err != nil {
		logger.Warnf("[CommentService] LoadComments FAILED: post=%s err=%v", postID, err)
		s.store.FailComments(postID, err)
		return err
	}

	added := s.store.ApplyComments(postID, reset, resp)
	logger.Debugf("[CommentService] LoadComments OK: post=%s added=%d hasMore=%v", postID, added, resp.HasMore)
	return nil
}

// LoadReplies fetches a reply thread. The first call (more == false) creates
// the thread and shows it; later calls continue from the thread's cursor.
func (s *CommentService) LoadReplies(ctx context.Context, postID, rootID model.ID, more bool) error {
	cursor, err := s.store.BeginLoadReplies(postID, rootID, more)
	if err != nil {
		return err
	}

	resp, err := s.api.ListReplies(ctx, postID, rootID, s.pageSize, cursor)
	if err != nil {
		logger.Warnf("[CommentService] LoadReplies FAILED: post=%s root=%s more=%v err=%v", postID, rootID, more, err)
		s.store.FailReplies(postID, rootID, more)
		return err
	}

	added := s.store.ApplyReplies(postID, rootID, more, resp)
	logger.Debugf("[CommentService] LoadReplies OK: post=%s root=%s added=%d hasMore=%v", postID, rootID, added, resp.HasMore)
	return nil
}

// ToggleReplies shows or hides a loaded thread without refetching.
func (s *CommentService) ToggleReplies(postID, rootID model.ID) (bool, error) {
	return s.store.ToggleReplies(postID, rootID)
}

// CreateComment posts a comment or reply and applies the server's copy
// through the same dedup path as comment_added.
func (s *CommentService) CreateComment(ctx context.Context, postID model.ID, text string, parentID *model.ID) (*model.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, model.ErrContentRequired
	}
	if utf8.RuneCountInString(text) > model.MaxCommentLength {
		return nil, fmt.Errorf("%w: max %d characters", model.ErrContentTooLong, model.MaxCommentLength)
	}

	var rootID model.ID
	if parentID != nil {
		root, ok := s.store.RootOf(postID, *parentID)
		if !ok {
			return nil, model.ErrCommentNotFound
		}
		rootID = root
	}

	c, err := s.api.CreateComment(ctx, postID, model.CreateCommentRequest{Text: text, ParentID: parentID})
	if err != nil {
		logger.Warnf("[CommentService] CreateComment FAILED: post=%s err=%v", postID, err)
		return nil, err
	}

	if c.PostID == "" {
		c.PostID = postID
	}
	if rootID != "" && !c.IsReply() {
		c.RootID = &rootID
	}

	s.store.AddComment(*c)
	logger.Infof("[CommentService] CreateComment OK: post=%s comment=%s reply=%v", postID, c.ID, c.IsReply())
	return c, nil
}

// ToggleLike flips the like optimistically. On failure the exact prior
// (isLiked, likesCount) is restored and a toast raised; on success the
// server's values win.
func (s *CommentService) ToggleLike(ctx context.Context, postID, commentID model.ID) (store.LikeState, error) {
	prev, err := s.store.ToggleLike(postID, commentID)
	if err != nil {
		return store.LikeState{}, err
	}

	resp, err := s.api.ToggleCommentLike(ctx, postID, commentID)
	if err != nil {
		logger.Warnf("[CommentService] ToggleLike FAILED, rolling back: post=%s comment=%s err=%v", postID, commentID, err)
		s.store.SetLike(postID, commentID, prev)
		if s.sink != nil {
			s.sink.Publish(context.Background(), queue.NewToastEvent("Couldn't update like", "Please try again."))
		}
		return prev, err
	}

	state := store.LikeState{IsLiked: resp.IsLiked, LikesCount: resp.LikesCount}
	s.store.SetLike(postID, commentID, state)
	return state, nil
}

// Rejoin re-enters the rooms of all open posts after a reconnect.
func (s *CommentService) Rejoin() {
	for _, postID := range s.store.Posts() {
		emit(s.ch, "CommentService", EventJoinPost, model.PostRoom{PostID: postID})
	}
}

// Reset drops all comment state (logout).
func (s *CommentService) Reset() {
	s.store.Reset()
}

// =============================================================================
// Inbound events
// =============================================================================

// HandleCommentAdded applies a comment_added push.
func (s *CommentService) HandleCommentAdded(data json.RawMessage) {
	var c model.Comment
	if err := json.Unmarshal(data, &c); err != nil || c.ID == "" || c.PostID == "" {
		logger.Warnf("[CommentService] Dropping malformed comment_added: err=%v", err)
		return
	}

	if !s.store.AddComment(c) {
		return
	}
	if s.sink != nil {
		s.sink.Publish(context.Background(), queue.NewCommentAddedEvent(&c))
	}
}

// HandleCommentDeleted applies a comment_deleted push.
func (s *CommentService) HandleCommentDeleted(data json.RawMessage) {
	var ev model.CommentDeletedEvent
	if err := json.Unmarshal(data, &ev); err != nil || ev.CommentID == "" {
		logger.Warnf("[CommentService] Dropping malformed comment_deleted: err=%v", err)
		return
	}

	if !s.store.RemoveComment(ev) {
		return
	}
	if s.sink != nil {
		s.sink.Publish(context.Background(), queue.NewCommentDeletedEvent(ev.PostID, ev.CommentID))
	}
}
