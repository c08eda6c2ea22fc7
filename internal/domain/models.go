package domain

import "time"

// PostKind is the discriminator stored in posts.post_type.
type PostKind string

const (
	PostKindText  PostKind = "TEXT"
	PostKindAudio PostKind = "AUDIO"
)

// User is an account. The password hash never leaves the service.
type User struct {
	ID           string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Email        string    `json:"email" gorm:"type:varchar(255);not null;uniqueIndex"`
	Username     string    `json:"username" gorm:"type:varchar(255);not null;uniqueIndex"`
	PasswordHash string    `json:"-" gorm:"column:password;type:varchar(255);not null"`
	CreatedAt    time.Time `json:"createdAt" gorm:"not null"`
}

// Post is stored in a single table for every kind. Content is set for text
// posts, FilePath for audio posts.
type Post struct {
	ID        string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Kind      PostKind  `json:"postType" gorm:"column:post_type;type:varchar(16);not null;index"`
	Category  string    `json:"category" gorm:"type:varchar(100);not null;index"`
	AuthorID  string    `json:"authorId" gorm:"type:uuid;not null;index"`
	Content   string    `json:"content,omitempty" gorm:"type:text"`
	FilePath  string    `json:"filePath,omitempty" gorm:"type:varchar(1024)"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;index"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null"`
}

// PostLike marks that a user liked a post. One row per (post, user).
type PostLike struct {
	ID        string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	PostID    string    `json:"postId" gorm:"type:uuid;not null;uniqueIndex:idx_post_likes_post_user"`
	UserID    string    `json:"userId" gorm:"type:uuid;not null;uniqueIndex:idx_post_likes_post_user;index"`
	CreatedAt time.Time `json:"likedAt" gorm:"not null"`
}

// PostEcho marks that a user echoed (reposted) a post. One row per (post, user).
type PostEcho struct {
	ID        string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	PostID    string    `json:"postId" gorm:"type:uuid;not null;uniqueIndex:idx_post_echoes_post_user"`
	UserID    string    `json:"userId" gorm:"type:uuid;not null;uniqueIndex:idx_post_echoes_post_user;index"`
	CreatedAt time.Time `json:"echoedAt" gorm:"not null;index"`
}

// Comment belongs to a post. A nil ParentID marks a top-level comment.
type Comment struct {
	ID        string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	PostID    string    `json:"postId" gorm:"type:uuid;not null;index"`
	ParentID  *string   `json:"parentId,omitempty" gorm:"type:uuid;index"`
	AuthorID  string    `json:"authorId" gorm:"type:uuid;not null"`
	Content   string    `json:"content" gorm:"type:varchar(2000);not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;index"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null"`
}

// CommentLike marks that a user liked a comment. One row per (comment, user).
type CommentLike struct {
	ID        string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CommentID string    `json:"commentId" gorm:"type:uuid;not null;uniqueIndex:idx_comment_likes_comment_user"`
	UserID    string    `json:"userId" gorm:"type:uuid;not null;uniqueIndex:idx_comment_likes_comment_user"`
	CreatedAt time.Time `json:"likedAt" gorm:"not null"`
}

// EchoedPost pairs a post with the time the user echoed it.
type EchoedPost struct {
	Post     *Post
	EchoedAt time.Time
}

// ToggleResult is the state of an association after a toggle and the
// number of associations the target has.
type ToggleResult struct {
	Active bool `json:"active"`
	Count  int  `json:"count"`
}

// PostStats are the engagement counters of a post as seen by one viewer.
type PostStats struct {
	LikeCount    int
	CommentCount int
	EchoCount    int
	Liked        bool
	Echoed       bool
}

// CommentStats are the engagement counters of a comment as seen by one viewer.
type CommentStats struct {
	LikeCount  int
	ReplyCount int
	Liked      bool
}
