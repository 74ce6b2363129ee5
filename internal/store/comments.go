package store

import (
	"sync"

	"socialsync/internal/model"
)

// ThreadState is the load state of one reply thread. A thread with no entry
// is unloaded.
type ThreadState string

const (
	ThreadUnloaded    ThreadState = "unloaded"
	ThreadLoading     ThreadState = "loading"
	ThreadLoaded      ThreadState = "loaded"
	ThreadLoadingMore ThreadState = "loading_more"
)

// LikeState is the like flag and count of one comment.
type LikeState struct {
	IsLiked    bool `json:"isLiked"`
	LikesCount int  `json:"likesCount"`
}

// ThreadView is a point-in-time copy of one reply thread.
type ThreadView struct {
	RootID     model.ID        `json:"rootId"`
	State      ThreadState     `json:"state"`
	Visible    bool            `json:"visible"`
	Replies    []model.Comment `json:"replies"`
	NextCursor *string         `json:"nextCursor,omitempty"`
	HasMore    bool            `json:"hasMore"`
}

// CommentsView is a point-in-time copy of one post's comments.
type CommentsView struct {
	PostID     model.ID                `json:"postId"`
	Comments   []model.Comment         `json:"comments"`
	NextCursor *string                 `json:"nextCursor,omitempty"`
	HasMore    bool                    `json:"hasMore"`
	Loading    bool                    `json:"loading"`
	Threads    map[model.ID]ThreadView `json:"threads"`
	Error      string                  `json:"error,omitempty"`
}

type thread struct {
	replies    []model.Comment
	nextCursor *string
	hasMore    bool
	state      ThreadState
	visible    bool
	// loadedOnce is false until the first page arrives; a failed first load
	// drops the entry entirely.
	loadedOnce bool
}

type postComments struct {
	roots      []model.Comment
	nextCursor *string
	hasMore    bool
	loading    bool
	err        string
	threads    map[model.ID]*thread
	// replyIDs holds every reply seen for this post, loaded or pushed, so
	// a reply counts toward its root once whether or not its thread is open.
	replyIDs map[model.ID]struct{}
	deleted  map[model.ID]struct{}
}

// Comments holds the root comments and reply threads of every post the
// client currently has open.
type Comments struct {
	mu    sync.Mutex
	posts map[model.ID]*postComments
}

func NewComments() *Comments {
	return &Comments{posts: make(map[model.ID]*postComments)}
}

func newPostComments() *postComments {
	return &postComments{
		threads:  make(map[model.ID]*thread),
		replyIDs: make(map[model.ID]struct{}),
		deleted:  make(map[model.ID]struct{}),
	}
}

// =============================================================================
// Root comments
// =============================================================================

// BeginLoadComments flags a root-comment fetch and returns the cursor to
// fetch from (nil on reset). A reset opens the post; a continuation needs it
// open already.
func (s *Comments) BeginLoadComments(postID model.ID, reset bool) (*string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		if !reset {
			return nil, model.ErrNothingMore
		}
		p = newPostComments()
		s.posts[postID] = p
	}
	if p.loading {
		return nil, model.ErrLoadInProgress
	}
	if !reset && !p.hasMore {
		return nil, model.ErrNothingMore
	}
	p.loading = true
	if reset {
		return nil, nil
	}
	return p.nextCursor, nil
}

// ApplyComments stores a fetched page of root comments. Pages for a post
// that was closed meanwhile are dropped.
func (s *Comments) ApplyComments(postID model.ID, reset bool, resp *model.CommentListResponse) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return 0
	}
	p.loading = false
	p.err = ""
	p.nextCursor = resp.NextCursor
	p.hasMore = resp.HasMore

	if reset {
		p.roots = nil
	}
	added := 0
	for _, c := range resp.Comments {
		if p.findRoot(c.ID) >= 0 {
			continue
		}
		if _, gone := p.deleted[c.ID]; gone {
			continue
		}
		p.roots = append(p.roots, c)
		added++
	}
	return added
}

// FailComments clears the loading flag and records the error.
func (s *Comments) FailComments(postID model.ID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[postID]
	if !ok {
		return
	}
	p.loading = false
	p.err = err.Error()
}

func (p *postComments) findRoot(id model.ID) int {
	for i := range p.roots {
		if p.roots[i].ID == id {
			return i
		}
	}
	return -1
}

func findComment(list []model.Comment, id model.ID) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

// =============================================================================
// Reply threads
// =============================================================================

// BeginLoadReplies moves a thread into a loading state and returns the cursor
// to fetch from. A first load (more == false) creates the entry; a
// continuation requires the thread to be loaded and refuses when a
// continuation is already running or nothing is left. The post must be open.
func (s *Comments) BeginLoadReplies(postID, rootID model.ID, more bool) (*string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return nil, model.ErrThreadNotLoaded
	}
	t, ok := p.threads[rootID]

	if !more {
		if !ok {
			t = &thread{}
			p.threads[rootID] = t
		}
		if t.state == ThreadLoading || t.state == ThreadLoadingMore {
			return nil, model.ErrLoadInProgress
		}
		t.state = ThreadLoading
		return nil, nil
	}

	if !ok || !t.loadedOnce {
		return nil, model.ErrThreadNotLoaded
	}
	if t.state == ThreadLoadingMore || t.state == ThreadLoading {
		return nil, model.ErrLoadInProgress
	}
	if !t.hasMore {
		return nil, model.ErrNothingMore
	}
	t.state = ThreadLoadingMore
	return t.nextCursor, nil
}

// ApplyReplies stores a fetched reply page. A first page replaces the replies
// and makes the thread visible; a continuation appends ids not yet present.
// Pages for a closed post or a dropped thread are discarded.
func (s *Comments) ApplyReplies(postID, rootID model.ID, more bool, resp *model.CommentListResponse) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return 0
	}
	t, ok := p.threads[rootID]
	if !ok {
		return 0
	}

	if !more {
		t.replies = nil
		t.visible = true
	}
	added := 0
	for _, c := range resp.Comments {
		if findComment(t.replies, c.ID) >= 0 {
			continue
		}
		if _, gone := p.deleted[c.ID]; gone {
			continue
		}
		t.replies = append(t.replies, c)
		p.replyIDs[c.ID] = struct{}{}
		added++
	}
	t.nextCursor = resp.NextCursor
	t.hasMore = resp.HasMore
	t.state = ThreadLoaded
	t.loadedOnce = true
	return added
}

// FailReplies reverts a failed reply fetch. A failed first load leaves the
// thread unloaded; a failed continuation keeps the loaded data.
func (s *Comments) FailReplies(postID, rootID model.ID, more bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return
	}
	t, ok := p.threads[rootID]
	if !ok {
		return
	}
	if !more && !t.loadedOnce {
		delete(p.threads, rootID)
		return
	}
	t.state = ThreadLoaded
}

// ToggleReplies flips thread visibility without refetching or discarding
// loaded replies. It returns the new visibility.
func (s *Comments) ToggleReplies(postID, rootID model.ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return false, model.ErrThreadNotLoaded
	}
	t, ok := p.threads[rootID]
	if !ok || !t.loadedOnce {
		return false, model.ErrThreadNotLoaded
	}
	t.visible = !t.visible
	return t.visible, nil
}

// ThreadState returns the state of one thread.
func (s *Comments) ThreadState(postID, rootID model.ID) ThreadState {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return ThreadUnloaded
	}
	t, ok := p.threads[rootID]
	if !ok {
		return ThreadUnloaded
	}
	return t.state
}

// =============================================================================
// Mutations
// =============================================================================

// AddComment inserts a comment that was created locally or pushed by
// comment_added. Root comments are prepended; replies are appended to their
// thread if it is loaded, and the root's reply count is bumped. Comments
// already seen or deleted, or for posts that are not open, are ignored. It
// reports whether anything changed.
func (s *Comments) AddComment(c model.Comment) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[c.PostID]
	if !ok {
		return false
	}
	if _, gone := p.deleted[c.ID]; gone {
		return false
	}

	if !c.IsReply() {
		if p.findRoot(c.ID) >= 0 {
			return false
		}
		p.roots = append([]model.Comment{c}, p.roots...)
		return true
	}

	if _, seen := p.replyIDs[c.ID]; seen {
		return false
	}
	p.replyIDs[c.ID] = struct{}{}

	rootID := *c.RootID
	if t, ok := p.threads[rootID]; ok {
		t.replies = append(t.replies, c)
	}
	if i := p.findRoot(rootID); i >= 0 {
		p.roots[i].RepliesCount++
	}
	return true
}

// RemoveComment applies comment_deleted. Deleting a reply decrements its
// root's count, floored at zero, whether or not the thread is loaded. A
// repeated delete is a no-op.
func (s *Comments) RemoveComment(ev model.CommentDeletedEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[ev.PostID]
	if !ok {
		return false
	}
	if _, gone := p.deleted[ev.CommentID]; gone {
		return false
	}

	if i := p.findRoot(ev.CommentID); i >= 0 {
		p.roots = append(p.roots[:i], p.roots[i+1:]...)
		delete(p.threads, ev.CommentID)
		p.deleted[ev.CommentID] = struct{}{}
		return true
	}

	var rootID model.ID
	if ev.RootID != nil {
		rootID = *ev.RootID
	} else {
		for id, t := range p.threads {
			if findComment(t.replies, ev.CommentID) >= 0 {
				rootID = id
				break
			}
		}
		if rootID == "" {
			return false
		}
	}

	changed := false
	if t, ok := p.threads[rootID]; ok {
		if i := findComment(t.replies, ev.CommentID); i >= 0 {
			t.replies = append(t.replies[:i], t.replies[i+1:]...)
			changed = true
		}
	}
	if r := p.findRoot(rootID); r >= 0 {
		p.roots[r].RepliesCount = max(0, p.roots[r].RepliesCount-1)
		changed = true
	}
	if changed {
		delete(p.replyIDs, ev.CommentID)
		p.deleted[ev.CommentID] = struct{}{}
	}
	return changed
}

// locate returns the comment with the given id in the roots or any
// thread of the post.
func (p *postComments) locate(id model.ID) *model.Comment {
	if i := p.findRoot(id); i >= 0 {
		return &p.roots[i]
	}
	for _, t := range p.threads {
		if i := findComment(t.replies, id); i >= 0 {
			return &t.replies[i]
		}
	}
	return nil
}

// RootOf returns the root comment of id: id itself for a root comment, or
// the reply's root. Threads are one level deep, so replying to a reply
// lands in the same root thread.
func (s *Comments) RootOf(postID, id model.ID) (model.ID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return "", false
	}
	c := p.locate(id)
	if c == nil {
		return "", false
	}
	if c.IsReply() {
		return *c.RootID, true
	}
	return c.ID, true
}

// ToggleLike optimistically flips the like flag and adjusts the count by one,
// never below zero. It returns the prior state for rollback.
func (s *Comments) ToggleLike(postID, commentID model.ID) (LikeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return LikeState{}, model.ErrCommentNotFound
	}
	c := p.locate(commentID)
	if c == nil {
		return LikeState{}, model.ErrCommentNotFound
	}

	prev := LikeState{IsLiked: c.IsLiked, LikesCount: c.LikesCount}
	c.IsLiked = !c.IsLiked
	if c.IsLiked {
		c.LikesCount++
	} else {
		c.LikesCount = max(0, c.LikesCount-1)
	}
	return prev, nil
}

// SetLike installs a like state: the server's authoritative answer on
// success, or the captured prior state on failure.
func (s *Comments) SetLike(postID, commentID model.ID, state LikeState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return
	}
	if c := p.locate(commentID); c != nil {
		c.IsLiked = state.IsLiked
		c.LikesCount = max(0, state.LikesCount)
	}
}

// Like returns the current like state of a comment.
func (s *Comments) Like(postID, commentID model.ID) (LikeState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return LikeState{}, false
	}
	c := p.locate(commentID)
	if c == nil {
		return LikeState{}, false
	}
	return LikeState{IsLiked: c.IsLiked, LikesCount: c.LikesCount}, true
}

// View returns a copy of one post's comment state.
func (s *Comments) View(postID model.ID) CommentsView {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := CommentsView{PostID: postID, Comments: []model.Comment{}, Threads: map[model.ID]ThreadView{}}
	p, ok := s.posts[postID]
	if !ok {
		return v
	}

	v.Comments = append(v.Comments, p.roots...)
	v.NextCursor = p.nextCursor
	v.HasMore = p.hasMore
	v.Loading = p.loading
	v.Error = p.err
	for rootID, t := range p.threads {
		v.Threads[rootID] = ThreadView{
			RootID:     rootID,
			State:      t.state,
			Visible:    t.visible,
			Replies:    append([]model.Comment{}, t.replies...),
			NextCursor: t.nextCursor,
			HasMore:    t.hasMore,
		}
	}
	return v
}

// Forget drops a post's comments when the client leaves it.
func (s *Comments) Forget(postID model.ID) {
	s.mu.Lock()
	delete(s.posts, postID)
	s.mu.Unlock()
}

// Posts returns the ids of all open posts.
func (s *Comments) Posts() []model.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]model.ID, 0, len(s.posts))
	for id := range s.posts {
		ids = append(ids, id)
	}
	return ids
}

// Reset drops all state (logout).
func (s *Comments) Reset() {
	s.mu.Lock()
	s.posts = make(map[model.ID]*postComments)
	s.mu.Unlock()
}
