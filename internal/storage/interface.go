package storage

import (
	"context"
	"strings"
	"time"

	"github.com/UkralStul/echonymous/internal/domain"
)

// PageArgs bounds a feed query. Rows come back newest first, at most Limit
// of them, all created strictly before Before when it is set.
type PageArgs struct {
	Limit  int
	Before *time.Time
}

// PostFilter narrows a post feed. Zero fields do not filter.
// Category matches case-insensitively.
type PostFilter struct {
	Kind     domain.PostKind
	Category string
	AuthorID string
}

// Storage is the contract every backend implements.
//
// Lookups of missing rows fail with a domain.ErrNotFound error. Toggles run
// the existence check, the insert or delete, and the recount as one atomic
// unit.
type Storage interface {
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error)
	GetPostByID(ctx context.Context, id string) (*domain.Post, error)
	UpdatePost(ctx context.Context, post *domain.Post) (*domain.Post, error)
	// DeletePost removes the post with its likes, echoes, comments and comment likes.
	DeletePost(ctx context.Context, id string) error
	GetPosts(ctx context.Context, filter PostFilter, args PageArgs) ([]*domain.Post, error)
	// GetEchoedPosts pages through the posts a user echoed, ordered by echo time.
	GetEchoedPosts(ctx context.Context, userID string, kind domain.PostKind, args PageArgs) ([]*domain.EchoedPost, error)

	TogglePostLike(ctx context.Context, postID, userID string) (domain.ToggleResult, error)
	TogglePostEcho(ctx context.Context, postID, userID string) (domain.ToggleResult, error)
	GetPostStats(ctx context.Context, postIDs []string, viewerID string) (map[string]domain.PostStats, error)

	CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error)
	GetCommentByID(ctx context.Context, id string) (*domain.Comment, error)
	UpdateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error)
	// DeleteComment removes the comment, every reply below it, and their likes.
	DeleteComment(ctx context.Context, id string) error

	// Cursor pagination
	GetCommentsByPostID(ctx context.Context, postID string, args PageArgs) ([]*domain.Comment, error)
	GetCommentsByParentID(ctx context.Context, parentID string, args PageArgs) ([]*domain.Comment, error)

	ToggleCommentLike(ctx context.Context, commentID, userID string) (domain.ToggleResult, error)
	// GetCommentStats loads counters for a batch of comments in one round trip.
	GetCommentStats(ctx context.Context, commentIDs []string, viewerID string) (map[string]domain.CommentStats, error)
}

// Not-found messages shared by every backend.
const (
	MsgUserNotFound          = "User not found."
	MsgPostNotFound          = "Post not found."
	MsgCommentNotFound       = "Comment not found."
	MsgParentCommentNotFound = "Parent comment not found."
)

// Comment content rules enforced on create and update.
const MaxCommentLength = 2000

// ValidateCommentContent checks the rules every backend enforces on comment text.
func ValidateCommentContent(content string) error {
	if len(content) > MaxCommentLength {
		return domain.Validation("Comment content is too long.")
	}
	if strings.TrimSpace(content) == "" {
		return domain.Validation("Comment content cannot be empty.")
	}
	return nil
}
