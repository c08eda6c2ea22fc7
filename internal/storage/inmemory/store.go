package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/UkralStul/echonymous/internal/domain"
	"github.com/UkralStul/echonymous/internal/storage"
)

// Store implements storage.Storage in memory. Every mutation, toggles
// included, runs under the write lock.
type Store struct {
	mu               sync.RWMutex
	users            map[string]*domain.User
	userByName       map[string]string
	userByEmail      map[string]string
	posts            map[string]*domain.Post
	comments         map[string]*domain.Comment
	commentsByPost   map[string][]string // map[postID][]commentID (top-level only)
	commentsByParent map[string][]string // map[parentID][]commentID
	postLikes        assocSet
	postEchoes       assocSet
	commentLikes     assocSet
	now              func() time.Time
}

var _ storage.Storage = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		users:            make(map[string]*domain.User),
		userByName:       make(map[string]string),
		userByEmail:      make(map[string]string),
		posts:            make(map[string]*domain.Post),
		comments:         make(map[string]*domain.Comment),
		commentsByPost:   make(map[string][]string),
		commentsByParent: make(map[string][]string),
		postLikes:        make(assocSet),
		postEchoes:       make(assocSet),
		commentLikes:     make(assocSet),
		now:              func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// === User Methods ===

func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.userByName[user.Username]; ok {
		return nil, domain.Validation("Username already exists.")
	}
	if _, ok := s.userByEmail[user.Email]; ok {
		return nil, domain.Validation("Email already exists.")
	}

	u := *user
	u.ID = uuid.NewString()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.users[u.ID] = &u
	s.userByName[u.Username] = u.ID
	s.userByEmail[u.Email] = u.ID
	return cloneUser(&u), nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, domain.NotFound(storage.MsgUserNotFound)
	}
	return cloneUser(u), nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.userByName[username]
	if !ok {
		return nil, domain.NotFound(storage.MsgUserNotFound)
	}
	return cloneUser(s.users[id]), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.userByEmail[email]
	if !ok {
		return nil, domain.NotFound(storage.MsgUserNotFound)
	}
	return cloneUser(s.users[id]), nil
}

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := *post
	p.ID = uuid.NewString()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	s.posts[p.ID] = &p
	return clonePost(&p), nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, domain.NotFound(storage.MsgPostNotFound)
	}
	return clonePost(post), nil
}

func (s *Store) UpdatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.posts[post.ID]
	if !ok {
		return nil, domain.NotFound(storage.MsgPostNotFound)
	}
	existing.Category = post.Category
	existing.Content = post.Content
	existing.FilePath = post.FilePath
	existing.UpdatedAt = post.UpdatedAt
	if existing.UpdatedAt.IsZero() {
		existing.UpdatedAt = s.now()
	}
	return clonePost(existing), nil
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return domain.NotFound(storage.MsgPostNotFound)
	}
	for cid, c := range s.comments {
		if c.PostID != id {
			continue
		}
		delete(s.comments, cid)
		delete(s.commentsByParent, cid)
		s.commentLikes.drop(cid)
	}
	delete(s.commentsByPost, id)
	s.postLikes.drop(id)
	s.postEchoes.drop(id)
	delete(s.posts, id)
	return nil
}

func (s *Store) GetPosts(ctx context.Context, filter storage.PostFilter, args storage.PageArgs) ([]*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*domain.Post, 0, len(s.posts))
	for _, p := range s.posts {
		if filter.Kind != "" && p.Kind != filter.Kind {
			continue
		}
		if filter.Category != "" && !strings.EqualFold(p.Category, filter.Category) {
			continue
		}
		if filter.AuthorID != "" && p.AuthorID != filter.AuthorID {
			continue
		}
		if args.Before != nil && !p.CreatedAt.Before(*args.Before) {
			continue
		}
		matched = append(matched, clonePost(p))
	}

	sortNewestFirst(matched, func(p *domain.Post) (time.Time, string) { return p.CreatedAt, p.ID })
	return limit(matched, args.Limit), nil
}

func (s *Store) GetEchoedPosts(ctx context.Context, userID string, kind domain.PostKind, args storage.PageArgs) ([]*domain.EchoedPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var echoed []*domain.EchoedPost
	for postID, users := range s.postEchoes {
		at, ok := users[userID]
		if !ok {
			continue
		}
		p, ok := s.posts[postID]
		if !ok || (kind != "" && p.Kind != kind) {
			continue
		}
		if args.Before != nil && !at.Before(*args.Before) {
			continue
		}
		echoed = append(echoed, &domain.EchoedPost{Post: clonePost(p), EchoedAt: at})
	}

	sortNewestFirst(echoed, func(e *domain.EchoedPost) (time.Time, string) { return e.EchoedAt, e.Post.ID })
	return limit(echoed, args.Limit), nil
}

// === Engagement Methods ===

func (s *Store) TogglePostLike(ctx context.Context, postID, userID string) (domain.ToggleResult, error) {
	return s.togglePost(s.postLikes, postID, userID)
}

func (s *Store) TogglePostEcho(ctx context.Context, postID, userID string) (domain.ToggleResult, error) {
	return s.togglePost(s.postEchoes, postID, userID)
}

func (s *Store) togglePost(set assocSet, postID, userID string) (domain.ToggleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[postID]; !ok {
		return domain.ToggleResult{}, domain.NotFound(storage.MsgPostNotFound)
	}
	if _, ok := s.users[userID]; !ok {
		return domain.ToggleResult{}, domain.NotFound(storage.MsgUserNotFound)
	}
	return set.toggle(postID, userID, s.now()), nil
}

func (s *Store) ToggleCommentLike(ctx context.Context, commentID, userID string) (domain.ToggleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comments[commentID]; !ok {
		return domain.ToggleResult{}, domain.NotFound(storage.MsgCommentNotFound)
	}
	if _, ok := s.users[userID]; !ok {
		return domain.ToggleResult{}, domain.NotFound(storage.MsgUserNotFound)
	}
	return s.commentLikes.toggle(commentID, userID, s.now()), nil
}

func (s *Store) GetPostStats(ctx context.Context, postIDs []string, viewerID string) (map[string]domain.PostStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]bool, len(postIDs))
	for _, id := range postIDs {
		wanted[id] = true
	}
	commentCounts := make(map[string]int, len(postIDs))
	for _, c := range s.comments {
		if wanted[c.PostID] {
			commentCounts[c.PostID]++
		}
	}

	stats := make(map[string]domain.PostStats, len(postIDs))
	for _, id := range postIDs {
		stats[id] = domain.PostStats{
			LikeCount:    s.postLikes.count(id),
			CommentCount: commentCounts[id],
			EchoCount:    s.postEchoes.count(id),
			Liked:        s.postLikes.has(id, viewerID),
			Echoed:       s.postEchoes.has(id, viewerID),
		}
	}
	return stats, nil
}

func (s *Store) GetCommentStats(ctx context.Context, commentIDs []string, viewerID string) (map[string]domain.CommentStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]domain.CommentStats, len(commentIDs))
	for _, id := range commentIDs {
		stats[id] = domain.CommentStats{
			LikeCount:  s.commentLikes.count(id),
			ReplyCount: len(s.commentsByParent[id]),
			Liked:      s.commentLikes.has(id, viewerID),
		}
	}
	return stats, nil
}

// === Comment Methods ===

func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[comment.PostID]; !ok {
		return nil, domain.NotFound(storage.MsgPostNotFound)
	}
	if err := storage.ValidateCommentContent(comment.Content); err != nil {
		return nil, err
	}
	if comment.ParentID != nil {
		parent, ok := s.comments[*comment.ParentID]
		if !ok {
			return nil, domain.NotFound(storage.MsgParentCommentNotFound)
		}
		if parent.PostID != comment.PostID {
			return nil, domain.Validation("Parent comment belongs to a different post.")
		}
	}

	c := cloneComment(comment)
	c.ID = uuid.NewString()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	c.UpdatedAt = c.CreatedAt
	s.comments[c.ID] = c

	if c.ParentID == nil {
		s.commentsByPost[c.PostID] = append(s.commentsByPost[c.PostID], c.ID)
	} else {
		s.commentsByParent[*c.ParentID] = append(s.commentsByParent[*c.ParentID], c.ID)
	}
	return cloneComment(c), nil
}

func (s *Store) GetCommentByID(ctx context.Context, id string) (*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	comment, ok := s.comments[id]
	if !ok {
		return nil, domain.NotFound(storage.MsgCommentNotFound)
	}
	return cloneComment(comment), nil
}

func (s *Store) UpdateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.comments[comment.ID]
	if !ok {
		return nil, domain.NotFound(storage.MsgCommentNotFound)
	}
	if err := storage.ValidateCommentContent(comment.Content); err != nil {
		return nil, err
	}
	existing.Content = comment.Content
	existing.UpdatedAt = comment.UpdatedAt
	if existing.UpdatedAt.IsZero() {
		existing.UpdatedAt = s.now()
	}
	return cloneComment(existing), nil
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, ok := s.comments[id]
	if !ok {
		return domain.NotFound(storage.MsgCommentNotFound)
	}

	if root.ParentID == nil {
		s.commentsByPost[root.PostID] = without(s.commentsByPost[root.PostID], id)
	} else {
		s.commentsByParent[*root.ParentID] = without(s.commentsByParent[*root.ParentID], id)
	}

	queue := []string{id}
	for len(queue) > 0 {
		cid := queue[0]
		queue = queue[1:]
		queue = append(queue, s.commentsByParent[cid]...)

		delete(s.commentsByParent, cid)
		delete(s.comments, cid)
		s.commentLikes.drop(cid)
	}
	return nil
}

// === Pagination Methods ===

func (s *Store) GetCommentsByPostID(ctx context.Context, postID string, args storage.PageArgs) ([]*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.paginateComments(s.commentsByPost[postID], args), nil
}

func (s *Store) GetCommentsByParentID(ctx context.Context, parentID string, args storage.PageArgs) ([]*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.paginateComments(s.commentsByParent[parentID], args), nil
}

// paginateComments returns the newest comments among ids created before the bound.
func (s *Store) paginateComments(ids []string, args storage.PageArgs) []*domain.Comment {
	comments := make([]*domain.Comment, 0, len(ids))
	for _, id := range ids {
		c, ok := s.comments[id]
		if !ok {
			continue
		}
		if args.Before != nil && !c.CreatedAt.Before(*args.Before) {
			continue
		}
		comments = append(comments, cloneComment(c))
	}

	sortNewestFirst(comments, func(c *domain.Comment) (time.Time, string) { return c.CreatedAt, c.ID })
	return limit(comments, args.Limit)
}

// === Helpers ===

// sortNewestFirst orders by timestamp descending, then id descending so
// that rows sharing a timestamp keep a stable order across pages.
func sortNewestFirst[T any](rows []T, key func(T) (time.Time, string)) {
	sort.Slice(rows, func(i, j int) bool {
		ti, idi := key(rows[i])
		tj, idj := key(rows[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return idi > idj
	})
}

func limit[T any](rows []T, n int) []T {
	if n > 0 && len(rows) > n {
		return rows[:n]
	}
	return rows
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	return &c
}

func clonePost(p *domain.Post) *domain.Post {
	c := *p
	return &c
}

func cloneComment(c *domain.Comment) *domain.Comment {
	cp := *c
	if c.ParentID != nil {
		parent := *c.ParentID
		cp.ParentID = &parent
	}
	return &cp
}
