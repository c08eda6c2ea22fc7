package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/UkralStul/echonymous/internal/domain"
	"github.com/UkralStul/echonymous/internal/events"
	"github.com/UkralStul/echonymous/internal/pagination"
	"github.com/UkralStul/echonymous/internal/storage"
	"github.com/UkralStul/echonymous/internal/validation"
)

// allCategories selects every category in the text feed.
const allCategories = "all"

const msgTextPostNotFound = "Text post not found."

type textPostInput struct {
	Category string `validate:"notblank"`
	Content  string `validate:"notblank"`
}

type audioPostInput struct {
	Category string `validate:"notblank"`
	FilePath string `validate:"notblank"`
}

var postMessages = validation.Messages{
	"Category.notblank": "Category cannot be blank.",
	"Content.notblank":  "Content cannot be blank.",
	"FilePath.notblank": "File path cannot be blank.",
}

func (s *Service) CreateTextPost(ctx context.Context, userID, category, content string) (*domain.Post, error) {
	if err := validation.Struct(textPostInput{Category: category, Content: content}, postMessages); err != nil {
		return nil, err
	}
	return s.createPost(ctx, &domain.Post{
		Kind:     domain.PostKindText,
		Category: category,
		AuthorID: userID,
		Content:  content,
	})
}

// CreateAudioPost stores a reference to an already uploaded audio file.
func (s *Service) CreateAudioPost(ctx context.Context, userID, category, filePath string) (*domain.Post, error) {
	if err := validation.Struct(audioPostInput{Category: category, FilePath: filePath}, postMessages); err != nil {
		return nil, err
	}
	return s.createPost(ctx, &domain.Post{
		Kind:     domain.PostKindAudio,
		Category: category,
		AuthorID: userID,
		FilePath: filePath,
	})
}

func (s *Service) createPost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	if _, err := s.store.GetUserByID(ctx, post.AuthorID); err != nil {
		return nil, err
	}
	created, err := s.store.CreatePost(ctx, post)
	if err != nil {
		return nil, err
	}
	log.Info().Str("postId", created.ID).Str("userId", created.AuthorID).Str("kind", string(created.Kind)).Msg("post created")
	s.publish(ctx, events.Event{Type: events.PostCreated, PostID: created.ID, UserID: created.AuthorID})
	return created, nil
}

// TextFeed pages through all text posts, optionally of one category.
// An empty category or "all" in any case means every category.
func (s *Service) TextFeed(ctx context.Context, viewerID, category, cur string, limit int) (pagination.Page[PostView], error) {
	filter := storage.PostFilter{Kind: domain.PostKindText}
	if !strings.EqualFold(category, allCategories) {
		filter.Category = category
	}
	return s.postFeed(ctx, viewerID, filter, cur, limit)
}

// UserTextPosts pages through the text posts authored by userID.
func (s *Service) UserTextPosts(ctx context.Context, viewerID, userID, cur string, limit int) (pagination.Page[PostView], error) {
	return s.postFeed(ctx, viewerID, storage.PostFilter{Kind: domain.PostKindText, AuthorID: userID}, cur, limit)
}

func (s *Service) postFeed(ctx context.Context, viewerID string, filter storage.PostFilter, cur string, limit int) (pagination.Page[PostView], error) {
	args, limit, err := pageArgs(cur, limit)
	if err != nil {
		return pagination.Page[PostView]{}, err
	}
	posts, err := s.store.GetPosts(ctx, filter, args)
	if err != nil {
		return pagination.Page[PostView]{}, err
	}
	page := pagination.New(posts, limit, func(p *domain.Post) time.Time { return p.CreatedAt })
	return s.postViews(ctx, viewerID, page)
}

// EchoedTextPosts pages through the text posts viewerID echoed, newest echo
// first. The cursor is the echo time.
func (s *Service) EchoedTextPosts(ctx context.Context, viewerID, cur string, limit int) (pagination.Page[PostView], error) {
	args, limit, err := pageArgs(cur, limit)
	if err != nil {
		return pagination.Page[PostView]{}, err
	}
	echoed, err := s.store.GetEchoedPosts(ctx, viewerID, domain.PostKindText, args)
	if err != nil {
		return pagination.Page[PostView]{}, err
	}
	page := pagination.New(echoed, limit, func(e *domain.EchoedPost) time.Time { return e.EchoedAt })
	posts := pagination.Map(page, func(e *domain.EchoedPost) *domain.Post { return e.Post })
	return s.postViews(ctx, viewerID, posts)
}

func (s *Service) postViews(ctx context.Context, viewerID string, page pagination.Page[*domain.Post]) (pagination.Page[PostView], error) {
	ids := make([]string, len(page.Content))
	for i, p := range page.Content {
		ids[i] = p.ID
	}
	stats, err := s.loaders(ctx, viewerID).LoadPostStats(ctx, ids)
	if err != nil {
		return pagination.Page[PostView]{}, err
	}
	return pagination.Map(page, func(p *domain.Post) PostView {
		return newPostView(p, stats[p.ID], viewerID)
	}), nil
}

func (s *Service) postView(ctx context.Context, viewerID string, post *domain.Post) (PostView, error) {
	stats, err := s.loaders(ctx, viewerID).LoadPostStats(ctx, []string{post.ID})
	if err != nil {
		return PostView{}, err
	}
	return newPostView(post, stats[post.ID], viewerID), nil
}

func (s *Service) textPost(ctx context.Context, id string) (*domain.Post, error) {
	post, err := s.store.GetPostByID(ctx, id)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.NotFound(msgTextPostNotFound)
		}
		return nil, err
	}
	if post.Kind != domain.PostKindText {
		return nil, domain.NotFound(msgTextPostNotFound)
	}
	return post, nil
}

// Post returns a post of any kind.
func (s *Service) Post(ctx context.Context, viewerID, id string) (PostView, error) {
	post, err := s.store.GetPostByID(ctx, id)
	if err != nil {
		return PostView{}, err
	}
	return s.postView(ctx, viewerID, post)
}

func (s *Service) TextPost(ctx context.Context, viewerID, id string) (PostView, error) {
	post, err := s.textPost(ctx, id)
	if err != nil {
		return PostView{}, err
	}
	return s.postView(ctx, viewerID, post)
}

// UpdateTextPost replaces category and content. Only the author may edit.
func (s *Service) UpdateTextPost(ctx context.Context, viewerID, id, category, content string) (PostView, error) {
	if err := validation.Struct(textPostInput{Category: category, Content: content}, postMessages); err != nil {
		return PostView{}, err
	}
	post, err := s.textPost(ctx, id)
	if err != nil {
		return PostView{}, err
	}
	if post.AuthorID != viewerID {
		return PostView{}, domain.Unauthorized("User not authorized to update this post.")
	}

	post.Category = category
	post.Content = content
	post.UpdatedAt = s.now()
	updated, err := s.store.UpdatePost(ctx, post)
	if err != nil {
		return PostView{}, err
	}
	log.Info().Str("postId", id).Str("userId", viewerID).Msg("post updated")
	return s.postView(ctx, viewerID, updated)
}

// DeletePost removes a post with everything attached to it. Only the
// author may delete.
func (s *Service) DeletePost(ctx context.Context, viewerID, id string) error {
	post, err := s.store.GetPostByID(ctx, id)
	if err != nil {
		return err
	}
	if post.AuthorID != viewerID {
		return domain.Unauthorized("User not authorized to delete this post.")
	}
	if err := s.store.DeletePost(ctx, id); err != nil {
		return err
	}
	log.Info().Str("postId", id).Str("userId", viewerID).Msg("post deleted")
	return nil
}

// ToggleLike likes the post, or removes the like when one exists.
func (s *Service) ToggleLike(ctx context.Context, userID, postID string) (domain.ToggleResult, error) {
	res, err := s.store.TogglePostLike(ctx, postID, userID)
	if err != nil {
		return res, err
	}
	log.Info().Str("userId", userID).Str("postId", postID).Bool("liked", res.Active).Int("likes", res.Count).Msg("post like toggled")
	s.publish(ctx, events.Event{Type: events.PostLiked, PostID: postID, UserID: userID, Active: res.Active, Count: res.Count})
	return res, nil
}

// ToggleEcho echoes the post, or removes the echo when one exists.
func (s *Service) ToggleEcho(ctx context.Context, userID, postID string) (domain.ToggleResult, error) {
	res, err := s.store.TogglePostEcho(ctx, postID, userID)
	if err != nil {
		return res, err
	}
	log.Info().Str("userId", userID).Str("postId", postID).Bool("echoed", res.Active).Int("echoes", res.Count).Msg("post echo toggled")
	s.publish(ctx, events.Event{Type: events.PostEchoed, PostID: postID, UserID: userID, Active: res.Active, Count: res.Count})
	return res, nil
}
