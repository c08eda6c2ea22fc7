package service

import (
	"github.com/UkralStul/echonymous/internal/cursor"
	"github.com/UkralStul/echonymous/internal/domain"
)

// Engagement is what a viewer sees of a post's likes, comments and echoes.
type Engagement struct {
	LikeCount    int  `json:"likeCount"`
	CommentCount int  `json:"commentCount"`
	EchoCount    int  `json:"echoCount"`
	Liked        bool `json:"isLiked"`
	Echoed       bool `json:"isEchoed"`
}

// PostView is a post as returned to clients. Authors stay anonymous; only
// IsCurrentUserPost tells viewers their own posts apart.
type PostView struct {
	PostID            string          `json:"postId"`
	Kind              domain.PostKind `json:"postType"`
	Category          string          `json:"category"`
	Content           string          `json:"content,omitempty"`
	FilePath          string          `json:"filePath,omitempty"`
	CreatedAt         string          `json:"createdAt"`
	UpdatedAt         string          `json:"updatedAt"`
	Engagement        Engagement      `json:"engagement"`
	IsCurrentUserPost bool            `json:"isCurrentUserPost"`
}

type CommentView struct {
	CommentID            string  `json:"commentId"`
	PostID               string  `json:"postId"`
	UserID               string  `json:"userId"`
	Comment              string  `json:"comment"`
	CreatedAt            string  `json:"createdAt"`
	UpdatedAt            string  `json:"updatedAt"`
	CommentLikesCount    int     `json:"commentLikesCount"`
	IsCommentLiked       bool    `json:"isCommentLiked"`
	ParentCommentID      *string `json:"parentCommentId"`
	ReplyCount           int     `json:"replyCount"`
	IsCurrentUserComment bool    `json:"isCurrentUserComment"`
}

func newPostView(p *domain.Post, stats domain.PostStats, viewerID string) PostView {
	return PostView{
		PostID:    p.ID,
		Kind:      p.Kind,
		Category:  p.Category,
		Content:   p.Content,
		FilePath:  p.FilePath,
		CreatedAt: cursor.Encode(p.CreatedAt),
		UpdatedAt: cursor.Encode(p.UpdatedAt),
		Engagement: Engagement{
			LikeCount:    stats.LikeCount,
			CommentCount: stats.CommentCount,
			EchoCount:    stats.EchoCount,
			Liked:        stats.Liked,
			Echoed:       stats.Echoed,
		},
		IsCurrentUserPost: viewerID != "" && p.AuthorID == viewerID,
	}
}

func newCommentView(c *domain.Comment, stats domain.CommentStats, viewerID string) CommentView {
	var parentID *string
	if c.ParentID != nil {
		id := *c.ParentID
		parentID = &id
	}
	return CommentView{
		CommentID:            c.ID,
		PostID:               c.PostID,
		UserID:               c.AuthorID,
		Comment:              c.Content,
		CreatedAt:            cursor.Encode(c.CreatedAt),
		UpdatedAt:            cursor.Encode(c.UpdatedAt),
		CommentLikesCount:    stats.LikeCount,
		IsCommentLiked:       stats.Liked,
		ParentCommentID:      parentID,
		ReplyCount:           stats.ReplyCount,
		IsCurrentUserComment: viewerID != "" && c.AuthorID == viewerID,
	}
}

// NewCommentView renders a comment that has no likes or replies yet, as
// pushed to live subscribers.
func NewCommentView(c *domain.Comment, viewerID string) CommentView {
	return newCommentView(c, domain.CommentStats{}, viewerID)
}
