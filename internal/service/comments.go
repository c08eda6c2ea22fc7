package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/UkralStul/echonymous/internal/domain"
	"github.com/UkralStul/echonymous/internal/events"
	"github.com/UkralStul/echonymous/internal/pagination"
	"github.com/UkralStul/echonymous/internal/validation"
)

type commentInput struct {
	Content string `validate:"notblank,max=2000"`
}

var commentMessages = validation.Messages{
	"Content.notblank": "Comment content cannot be empty.",
	"Content.max":      "Comment content is too long.",
}

func validateComment(content string) error {
	return validation.Struct(commentInput{Content: content}, commentMessages)
}

// CreateComment adds a comment to a post, as a reply when parentID is set.
func (s *Service) CreateComment(ctx context.Context, userID, postID string, parentID *string, content string) (CommentView, error) {
	if err := validateComment(content); err != nil {
		return CommentView{}, err
	}
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return CommentView{}, err
	}

	comment, err := s.store.CreateComment(ctx, &domain.Comment{
		PostID:   postID,
		ParentID: parentID,
		AuthorID: userID,
		Content:  content,
	})
	if err != nil {
		return CommentView{}, err
	}
	log.Info().Str("commentId", comment.ID).Str("postId", postID).Str("userId", userID).Msg("comment created")
	s.publish(ctx, events.Event{Type: events.CommentCreated, PostID: postID, UserID: userID, Comment: comment})

	return s.commentView(ctx, userID, comment)
}

// UpdateComment replaces the text of a comment. Only its author may edit.
func (s *Service) UpdateComment(ctx context.Context, userID, commentID, content string) (CommentView, error) {
	if err := validateComment(content); err != nil {
		return CommentView{}, err
	}
	comment, err := s.store.GetCommentByID(ctx, commentID)
	if err != nil {
		return CommentView{}, err
	}
	if comment.AuthorID != userID {
		return CommentView{}, domain.Unauthorized("User not authorized to update this comment.")
	}

	comment.Content = content
	comment.UpdatedAt = s.now()
	updated, err := s.store.UpdateComment(ctx, comment)
	if err != nil {
		return CommentView{}, err
	}
	return s.commentView(ctx, userID, updated)
}

// DeleteComment removes a comment and every reply below it. The comment's
// author and the post's author may delete.
func (s *Service) DeleteComment(ctx context.Context, userID, commentID string) error {
	comment, err := s.store.GetCommentByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.AuthorID != userID {
		post, err := s.store.GetPostByID(ctx, comment.PostID)
		if err != nil {
			return err
		}
		if post.AuthorID != userID {
			return domain.Unauthorized("User not authorized to delete this comment.")
		}
	}

	if err := s.store.DeleteComment(ctx, commentID); err != nil {
		return err
	}
	log.Info().Str("commentId", commentID).Str("userId", userID).Msg("comment deleted")
	return nil
}

// TopLevelComments pages through the comments of a post that are not replies.
func (s *Service) TopLevelComments(ctx context.Context, viewerID, postID, cur string, limit int) (pagination.Page[CommentView], error) {
	args, limit, err := pageArgs(cur, limit)
	if err != nil {
		return pagination.Page[CommentView]{}, err
	}
	if _, err := s.store.GetPostByID(ctx, postID); err != nil {
		return pagination.Page[CommentView]{}, err
	}
	comments, err := s.store.GetCommentsByPostID(ctx, postID, args)
	if err != nil {
		return pagination.Page[CommentView]{}, err
	}
	return s.commentPage(ctx, viewerID, comments, limit)
}

// Replies pages through the direct replies to a comment.
func (s *Service) Replies(ctx context.Context, viewerID, commentID, cur string, limit int) (pagination.Page[CommentView], error) {
	args, limit, err := pageArgs(cur, limit)
	if err != nil {
		return pagination.Page[CommentView]{}, err
	}
	if _, err := s.store.GetCommentByID(ctx, commentID); err != nil {
		return pagination.Page[CommentView]{}, err
	}
	replies, err := s.store.GetCommentsByParentID(ctx, commentID, args)
	if err != nil {
		return pagination.Page[CommentView]{}, err
	}
	return s.commentPage(ctx, viewerID, replies, limit)
}

// ToggleCommentLike likes or unlikes a comment and returns it with fresh counts.
func (s *Service) ToggleCommentLike(ctx context.Context, userID, commentID string) (CommentView, error) {
	res, err := s.store.ToggleCommentLike(ctx, commentID, userID)
	if err != nil {
		return CommentView{}, err
	}
	log.Info().Str("userId", userID).Str("commentId", commentID).Bool("liked", res.Active).Int("likes", res.Count).Msg("comment like toggled")

	comment, err := s.store.GetCommentByID(ctx, commentID)
	if err != nil {
		return CommentView{}, err
	}
	return s.commentView(ctx, userID, comment)
}

func (s *Service) commentPage(ctx context.Context, viewerID string, rows []*domain.Comment, limit int) (pagination.Page[CommentView], error) {
	page := pagination.New(rows, limit, func(c *domain.Comment) time.Time { return c.CreatedAt })

	ids := make([]string, len(page.Content))
	for i, c := range page.Content {
		ids[i] = c.ID
	}
	stats, err := s.loaders(ctx, viewerID).LoadCommentStats(ctx, ids)
	if err != nil {
		return pagination.Page[CommentView]{}, err
	}
	return pagination.Map(page, func(c *domain.Comment) CommentView {
		return newCommentView(c, stats[c.ID], viewerID)
	}), nil
}

func (s *Service) commentView(ctx context.Context, viewerID string, c *domain.Comment) (CommentView, error) {
	stats, err := s.loaders(ctx, viewerID).LoadCommentStats(ctx, []string{c.ID})
	if err != nil {
		return CommentView{}, err
	}
	return newCommentView(c, stats[c.ID], viewerID), nil
}
