package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialsync/internal/model"
)

func root(id string, likes int, liked bool) model.Comment {
	return model.Comment{ID: model.ID(id), PostID: "9", LikesCount: likes, IsLiked: liked}
}

func reply(id, rootID string) model.Comment {
	r := model.ID(rootID)
	return model.Comment{ID: model.ID(id), PostID: "9", RootID: &r}
}

func strPtr(s string) *string { return &s }

// openPost opens post 9 with the given root comments.
func openPost(t *testing.T, s *Comments, roots ...model.Comment) {
	t.Helper()
	_, err := s.BeginLoadComments("9", true)
	require.NoError(t, err)
	s.ApplyComments("9", true, &model.CommentListResponse{Comments: roots})
}

func TestComments_LikeFailureRestoresPriorState(t *testing.T) {
	s := NewComments()
	openPost(t, s, root("5", 10, false))

	prev, err := s.ToggleLike("9", "5")
	require.NoError(t, err)
	assert.Equal(t, LikeState{IsLiked: false, LikesCount: 10}, prev)

	now, _ := s.Like("9", "5")
	assert.Equal(t, LikeState{IsLiked: true, LikesCount: 11}, now)

	s.SetLike("9", "5", prev)
	now, _ = s.Like("9", "5")
	assert.Equal(t, LikeState{IsLiked: false, LikesCount: 10}, now)
}

func TestComments_UnlikeNeverNegative(t *testing.T) {
	s := NewComments()
	openPost(t, s, root("5", 0, true))

	_, err := s.ToggleLike("9", "5")
	require.NoError(t, err)
	now, _ := s.Like("9", "5")
	assert.Equal(t, LikeState{IsLiked: false, LikesCount: 0}, now)

	_, err = s.ToggleLike("9", "404")
	assert.ErrorIs(t, err, model.ErrCommentNotFound)
}

func TestComments_LikeReachesReplies(t *testing.T) {
	s := NewComments()
	openPost(t, s, root("42", 0, false))
	_, err := s.BeginLoadReplies("9", "42", false)
	require.NoError(t, err)
	s.ApplyReplies("9", "42", false, &model.CommentListResponse{Comments: []model.Comment{reply("43", "42")}})

	_, err = s.ToggleLike("9", "43")
	require.NoError(t, err)
	state, ok := s.Like("9", "43")
	require.True(t, ok)
	assert.True(t, state.IsLiked)
}

func TestComments_ThreadLifecycle(t *testing.T) {
	s := NewComments()
	assert.Equal(t, ThreadUnloaded, s.ThreadState("9", "42"))
	_, err := s.BeginLoadReplies("9", "42", false)
	assert.ErrorIs(t, err, model.ErrThreadNotLoaded)

	openPost(t, s, root("42", 3, false))
	assert.Equal(t, ThreadUnloaded, s.ThreadState("9", "42"))

	_, err = s.BeginLoadReplies("9", "42", false)
	require.NoError(t, err)
	assert.Equal(t, ThreadLoading, s.ThreadState("9", "42"))

	s.ApplyReplies("9", "42", false, &model.CommentListResponse{
		Comments:   []model.Comment{reply("43", "42"), reply("44", "42"), reply("45", "42")},
		NextCursor: strPtr("c1"),
		HasMore:    true,
	})

	th := s.View("9").Threads["42"]
	assert.Equal(t, ThreadLoaded, th.State)
	assert.True(t, th.Visible)
	assert.Len(t, th.Replies, 3)

	visible, err := s.ToggleReplies("9", "42")
	require.NoError(t, err)
	assert.False(t, visible)

	th = s.View("9").Threads["42"]
	assert.False(t, th.Visible)
	assert.Len(t, th.Replies, 3)
	assert.Equal(t, ThreadLoaded, th.State)

	cursor, err := s.BeginLoadReplies("9", "42", true)
	require.NoError(t, err)
	assert.Equal(t, "c1", *cursor)
	assert.Equal(t, ThreadLoadingMore, s.ThreadState("9", "42"))

	_, err = s.BeginLoadReplies("9", "42", true)
	assert.ErrorIs(t, err, model.ErrLoadInProgress)

	added := s.ApplyReplies("9", "42", true, &model.CommentListResponse{
		Comments: []model.Comment{reply("45", "42"), reply("46", "42")},
	})
	assert.Equal(t, 1, added)
	assert.Len(t, s.View("9").Threads["42"].Replies, 4)

	_, err = s.BeginLoadReplies("9", "42", true)
	assert.ErrorIs(t, err, model.ErrNothingMore)
}

func TestComments_FailedFirstLoadLeavesThreadUnloaded(t *testing.T) {
	s := NewComments()
	openPost(t, s, root("42", 1, false))

	_, err := s.BeginLoadReplies("9", "42", false)
	require.NoError(t, err)
	s.FailReplies("9", "42", false)
	assert.Equal(t, ThreadUnloaded, s.ThreadState("9", "42"))

	_, err = s.ToggleReplies("9", "42")
	assert.ErrorIs(t, err, model.ErrThreadNotLoaded)
	_, err = s.BeginLoadReplies("9", "42", true)
	assert.ErrorIs(t, err, model.ErrThreadNotLoaded)
}

func TestComments_FailedContinuationKeepsReplies(t *testing.T) {
	s := NewComments()
	openPost(t, s, root("42", 2, false))
	_, _ = s.BeginLoadReplies("9", "42", false)
	s.ApplyReplies("9", "42", false, &model.CommentListResponse{
		Comments: []model.Comment{reply("43", "42")},
		HasMore:  true,
	})

	_, err := s.BeginLoadReplies("9", "42", true)
	require.NoError(t, err)
	s.FailReplies("9", "42", true)

	th := s.View("9").Threads["42"]
	assert.Equal(t, ThreadLoaded, th.State)
	assert.Len(t, th.Replies, 1)
}

func TestComments_AddComment(t *testing.T) {
	s := NewComments()
	openPost(t, s, root("42", 0, false))

	assert.True(t, s.AddComment(root("50", 0, false)))
	assert.False(t, s.AddComment(root("50", 0, false)))
	assert.Equal(t, model.ID("50"), s.View("9").Comments[0].ID)

	// Reply to a root whose thread is not loaded only bumps the count.
	assert.True(t, s.AddComment(reply("60", "42")))
	v := s.View("9")
	assert.Equal(t, 1, v.Comments[1].RepliesCount)
	assert.NotContains(t, v.Threads, model.ID("42"))

	_, _ = s.BeginLoadReplies("9", "42", false)
	s.ApplyReplies("9", "42", false, &model.CommentListResponse{Comments: []model.Comment{reply("60", "42")}})

	assert.False(t, s.AddComment(reply("60", "42")))
	assert.True(t, s.AddComment(reply("61", "42")))
	v = s.View("9")
	assert.Len(t, v.Threads["42"].Replies, 2)
	assert.Equal(t, 2, v.Comments[1].RepliesCount)
}

func TestComments_RemoveComment(t *testing.T) {
	s := NewComments()
	openPost(t, s, root("42", 0, false), root("43", 0, false))
	_, _ = s.BeginLoadReplies("9", "42", false)
	s.ApplyReplies("9", "42", false, &model.CommentListResponse{Comments: []model.Comment{reply("60", "42")}})
	s.AddComment(reply("61", "42"))

	rootID := model.ID("42")
	assert.True(t, s.RemoveComment(model.CommentDeletedEvent{PostID: "9", CommentID: "61", RootID: &rootID}))
	v := s.View("9")
	assert.Len(t, v.Threads["42"].Replies, 1)
	assert.Equal(t, 0, v.Comments[0].RepliesCount)

	assert.True(t, s.RemoveComment(model.CommentDeletedEvent{PostID: "9", CommentID: "42"}))
	v = s.View("9")
	assert.Len(t, v.Comments, 1)
	assert.NotContains(t, v.Threads, model.ID("42"))

	assert.False(t, s.RemoveComment(model.CommentDeletedEvent{PostID: "77", CommentID: "1"}))
}

func TestComments_RootPagination(t *testing.T) {
	s := NewComments()

	cursor, err := s.BeginLoadComments("9", true)
	require.NoError(t, err)
	assert.Nil(t, cursor)
	_, err = s.BeginLoadComments("9", false)
	assert.ErrorIs(t, err, model.ErrLoadInProgress)

	s.ApplyComments("9", true, &model.CommentListResponse{
		Comments:   []model.Comment{root("1", 0, false), root("2", 0, false)},
		NextCursor: strPtr("n1"),
		HasMore:    true,
	})

	cursor, err = s.BeginLoadComments("9", false)
	require.NoError(t, err)
	assert.Equal(t, "n1", *cursor)
	added := s.ApplyComments("9", false, &model.CommentListResponse{Comments: []model.Comment{root("2", 0, false), root("3", 0, false)}})
	assert.Equal(t, 1, added)
	assert.Len(t, s.View("9").Comments, 3)

	_, err = s.BeginLoadComments("9", false)
	assert.ErrorIs(t, err, model.ErrNothingMore)

	s.Forget("9")
	assert.Empty(t, s.View("9").Comments)
}

func TestComments_ReplyToCollapsedThreadCountsOnce(t *testing.T) {
	s := NewComments()
	openPost(t, s, root("42", 0, false))

	// Our own reply is applied from the create response, then echoed by comment_added.
	assert.True(t, s.AddComment(reply("60", "42")))
	assert.False(t, s.AddComment(reply("60", "42")))
	assert.Equal(t, 1, s.View("9").Comments[0].RepliesCount)

	// Expanding the thread later does not count the same reply again.
	_, err := s.BeginLoadReplies("9", "42", false)
	require.NoError(t, err)
	s.ApplyReplies("9", "42", false, &model.CommentListResponse{Comments: []model.Comment{reply("60", "42")}})
	assert.False(t, s.AddComment(reply("60", "42")))
	v := s.View("9")
	assert.Equal(t, 1, v.Comments[0].RepliesCount)
	assert.Len(t, v.Threads["42"].Replies, 1)
}

func TestComments_DeleteReplyFromUnloadedThread(t *testing.T) {
	s := NewComments()
	c := root("42", 0, false)
	c.RepliesCount = 3
	openPost(t, s, c)

	rootID := model.ID("42")
	ev := model.CommentDeletedEvent{PostID: "9", CommentID: "60", RootID: &rootID}
	assert.True(t, s.RemoveComment(ev))
	assert.Equal(t, 2, s.View("9").Comments[0].RepliesCount)

	// Redelivery of the same delete changes nothing.
	assert.False(t, s.RemoveComment(ev))
	assert.Equal(t, 2, s.View("9").Comments[0].RepliesCount)

	// A late add for the deleted reply is ignored.
	assert.False(t, s.AddComment(reply("60", "42")))
	assert.Equal(t, 2, s.View("9").Comments[0].RepliesCount)

	// Without a root id an unknown reply cannot be attributed.
	assert.False(t, s.RemoveComment(model.CommentDeletedEvent{PostID: "9", CommentID: "61"}))
}

func TestComments_LatePagesAfterCloseAreDropped(t *testing.T) {
	s := NewComments()
	_, err := s.BeginLoadComments("9", true)
	require.NoError(t, err)
	s.Forget("9")

	assert.Equal(t, 0, s.ApplyComments("9", true, &model.CommentListResponse{Comments: []model.Comment{root("42", 0, false)}}))
	s.FailComments("9", assert.AnError)
	assert.Equal(t, 0, s.ApplyReplies("9", "42", false, &model.CommentListResponse{Comments: []model.Comment{reply("60", "42")}}))
	assert.Empty(t, s.Posts())

	assert.False(t, s.AddComment(root("50", 0, false)))
	assert.Empty(t, s.Posts())

	_, err = s.BeginLoadComments("9", false)
	assert.ErrorIs(t, err, model.ErrNothingMore)
	assert.Empty(t, s.Posts())
}
