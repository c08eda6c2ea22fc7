package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/UkralStul/echonymous/internal/domain"
	"github.com/UkralStul/echonymous/internal/storage"
)

// Store implements storage.Storage on PostgreSQL.
//
// Toggles lock the target row with SELECT ... FOR UPDATE inside their
// transaction, so toggles on one post or comment run one at a time. The
// unique (target, user) indexes reject a second association row if that
// ever fails.
type Store struct {
	db *gorm.DB
}

var _ storage.Storage = (*Store)(nil)

// New connects to PostgreSQL and migrates the schema.
func New(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.New(&log.Logger, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	if err := db.AutoMigrate(
		&domain.User{},
		&domain.Post{},
		&domain.PostLike{},
		&domain.PostEcho{},
		&domain.Comment{},
		&domain.CommentLike{},
	); err != nil {
		return nil, errors.Wrap(err, "failed to migrate database")
	}

	for _, stmt := range []string{
		"CREATE INDEX IF NOT EXISTS idx_posts_created_at_id ON posts(created_at DESC, id DESC)",
		"CREATE INDEX IF NOT EXISTS idx_comments_post_created_at ON comments(post_id, created_at DESC)",
	} {
		if err := db.Exec(stmt).Error; err != nil {
			return nil, errors.Wrap(err, "failed to create index")
		}
	}

	return &Store{db: db}, nil
}

func (s *Store) now() time.Time { return s.db.NowFunc() }

// Row locks. Writers that touch a row and its dependents lock the row first.
var (
	lockForUpdate = clause.Locking{Strength: "UPDATE"}
	lockForShare  = clause.Locking{Strength: "SHARE"}
)

// validID keeps malformed ids away from uuid columns, where they would
// fail as a syntax error instead of a miss.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func notFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NotFound(msg)
	}
	return err
}

// === User Methods ===

func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	u := *user
	u.ID = uuid.NewString()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.Validation("Username or email already exists.")
		}
		return nil, errors.Wrap(err, "failed to create user")
	}
	return &u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if !validID(id) {
		return nil, domain.NotFound(storage.MsgUserNotFound)
	}
	return s.findUser(ctx, "id = ?", id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.findUser(ctx, "username = ?", username)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findUser(ctx, "email = ?", email)
}

func (s *Store) findUser(ctx context.Context, query string, arg string) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).First(&user, query, arg).Error; err != nil {
		return nil, errors.Wrap(notFound(err, storage.MsgUserNotFound), "failed to get user")
	}
	return &user, nil
}

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	p := *post
	p.ID = uuid.NewString()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, errors.Wrap(err, "failed to create post")
	}
	return &p, nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	if !validID(id) {
		return nil, domain.NotFound(storage.MsgPostNotFound)
	}
	var post domain.Post
	if err := s.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		return nil, errors.Wrap(notFound(err, storage.MsgPostNotFound), "failed to get post")
	}
	return &post, nil
}

func (s *Store) UpdatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	var updated domain.Post
	// Read and write in one transaction so the returned row is the one written.
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&updated, "id = ?", post.ID).Error; err != nil {
			return notFound(err, storage.MsgPostNotFound)
		}
		updated.Category = post.Category
		updated.Content = post.Content
		updated.FilePath = post.FilePath
		updated.UpdatedAt = post.UpdatedAt
		if updated.UpdatedAt.IsZero() {
			updated.UpdatedAt = tx.NowFunc()
		}
		return tx.Save(&updated).Error
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to update post")
	}
	return &updated, nil
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.NotFound(storage.MsgPostNotFound)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&domain.Post{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.NotFound(storage.MsgPostNotFound)
		}

		// Comment like toggles lock the comment row first, so lock the
		// comments before their likes.
		var commentIDs []string
		if err := tx.Model(&domain.Comment{}).Clauses(lockForUpdate).
			Where("post_id = ?", id).Pluck("id", &commentIDs).Error; err != nil {
			return err
		}
		if len(commentIDs) > 0 {
			if err := tx.Where("comment_id IN ?", commentIDs).Delete(&domain.CommentLike{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("post_id = ?", id).Delete(&domain.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&domain.PostLike{}).Error; err != nil {
			return err
		}
		return tx.Where("post_id = ?", id).Delete(&domain.PostEcho{}).Error
	})
	return errors.Wrap(err, "failed to delete post")
}

func (s *Store) GetPosts(ctx context.Context, filter storage.PostFilter, args storage.PageArgs) ([]*domain.Post, error) {
	query := s.db.WithContext(ctx).Model(&domain.Post{})
	if filter.Kind != "" {
		query = query.Where("post_type = ?", filter.Kind)
	}
	if filter.Category != "" {
		query = query.Where("LOWER(category) = LOWER(?)", filter.Category)
	}
	if filter.AuthorID != "" {
		if !validID(filter.AuthorID) {
			return []*domain.Post{}, nil
		}
		query = query.Where("author_id = ?", filter.AuthorID)
	}

	var posts []*domain.Post
	err := page(query, "created_at", "id", args).Find(&posts).Error
	return posts, errors.Wrap(err, "failed to get posts")
}

func (s *Store) GetEchoedPosts(ctx context.Context, userID string, kind domain.PostKind, args storage.PageArgs) ([]*domain.EchoedPost, error) {
	if !validID(userID) {
		return []*domain.EchoedPost{}, nil
	}
	db := s.db.WithContext(ctx)

	query := db.Model(&domain.PostEcho{}).Where("user_id = ?", userID)
	if kind != "" {
		query = query.Where("post_id IN (?)", db.Model(&domain.Post{}).Select("id").Where("post_type = ?", kind))
	}
	var echoes []domain.PostEcho
	if err := page(query, "created_at", "post_id", args).Find(&echoes).Error; err != nil {
		return nil, errors.Wrap(err, "failed to get echoes")
	}
	if len(echoes) == 0 {
		return []*domain.EchoedPost{}, nil
	}

	ids := make([]string, len(echoes))
	for i, e := range echoes {
		ids[i] = e.PostID
	}
	var posts []*domain.Post
	if err := db.Where("id IN ?", ids).Find(&posts).Error; err != nil {
		return nil, errors.Wrap(err, "failed to get echoed posts")
	}
	byID := make(map[string]*domain.Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}

	result := make([]*domain.EchoedPost, 0, len(echoes))
	for _, e := range echoes {
		if p, ok := byID[e.PostID]; ok {
			result = append(result, &domain.EchoedPost{Post: p, EchoedAt: e.CreatedAt})
		}
	}
	return result, nil
}

// page applies the feed ordering, the exclusive upper time bound and the limit.
func page(query *gorm.DB, timeColumn, idColumn string, args storage.PageArgs) *gorm.DB {
	if args.Before != nil {
		query = query.Where(timeColumn+" < ?", *args.Before)
	}
	query = query.Order(timeColumn + " DESC").Order(idColumn + " DESC")
	if args.Limit > 0 {
		query = query.Limit(args.Limit)
	}
	return query
}

// === Engagement Methods ===

func (s *Store) TogglePostLike(ctx context.Context, postID, userID string) (domain.ToggleResult, error) {
	res, err := toggleAssociation(ctx, s.db, &domain.Post{}, storage.MsgPostNotFound, "post_id", postID, userID,
		func(now time.Time) *domain.PostLike {
			return &domain.PostLike{ID: uuid.NewString(), PostID: postID, UserID: userID, CreatedAt: now}
		})
	return res, errors.Wrap(err, "failed to toggle post like")
}

func (s *Store) TogglePostEcho(ctx context.Context, postID, userID string) (domain.ToggleResult, error) {
	res, err := toggleAssociation(ctx, s.db, &domain.Post{}, storage.MsgPostNotFound, "post_id", postID, userID,
		func(now time.Time) *domain.PostEcho {
			return &domain.PostEcho{ID: uuid.NewString(), PostID: postID, UserID: userID, CreatedAt: now}
		})
	return res, errors.Wrap(err, "failed to toggle post echo")
}

func (s *Store) ToggleCommentLike(ctx context.Context, commentID, userID string) (domain.ToggleResult, error) {
	res, err := toggleAssociation(ctx, s.db, &domain.Comment{}, storage.MsgCommentNotFound, "comment_id", commentID, userID,
		func(now time.Time) *domain.CommentLike {
			return &domain.CommentLike{ID: uuid.NewString(), CommentID: commentID, UserID: userID, CreatedAt: now}
		})
	return res, errors.Wrap(err, "failed to toggle comment like")
}

// toggleAssociation flips the (target, user) association of type T and
// recounts the target's associations, all in one transaction.
func toggleAssociation[T any](
	ctx context.Context,
	db *gorm.DB,
	target any,
	targetMissing string,
	column, targetID, userID string,
	build func(now time.Time) *T,
) (domain.ToggleResult, error) {
	if !validID(targetID) {
		return domain.ToggleResult{}, domain.NotFound(targetMissing)
	}
	if !validID(userID) {
		return domain.ToggleResult{}, domain.NotFound(storage.MsgUserNotFound)
	}

	var result domain.ToggleResult
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(lockForUpdate).Select("id").First(target, "id = ?", targetID).Error
		if err != nil {
			return notFound(err, targetMissing)
		}

		var users int64
		if err := tx.Model(&domain.User{}).Where("id = ?", userID).Count(&users).Error; err != nil {
			return err
		}
		if users == 0 {
			return domain.NotFound(storage.MsgUserNotFound)
		}

		pair := tx.Where(column+" = ? AND user_id = ?", targetID, userID)
		res := pair.Delete(new(T))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.Create(build(tx.NowFunc())).Error; err != nil {
				return err
			}
			result.Active = true
		}

		var count int64
		if err := tx.Model(new(T)).Where(column+" = ?", targetID).Count(&count).Error; err != nil {
			return err
		}
		result.Count = int(count)
		return nil
	})
	return result, err
}

type countRow struct {
	ID string
	N  int
}

func (s *Store) GetPostStats(ctx context.Context, postIDs []string, viewerID string) (map[string]domain.PostStats, error) {
	stats := make(map[string]domain.PostStats, len(postIDs))
	if len(postIDs) == 0 {
		return stats, nil
	}
	db := s.db.WithContext(ctx)

	likes, err := countBy(db, &domain.PostLike{}, "post_id", postIDs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count post likes")
	}
	comments, err := countBy(db, &domain.Comment{}, "post_id", postIDs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count comments")
	}
	echoes, err := countBy(db, &domain.PostEcho{}, "post_id", postIDs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count echoes")
	}
	liked, err := viewerSet(db, &domain.PostLike{}, "post_id", postIDs, viewerID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load viewer likes")
	}
	echoed, err := viewerSet(db, &domain.PostEcho{}, "post_id", postIDs, viewerID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load viewer echoes")
	}

	for _, id := range postIDs {
		stats[id] = domain.PostStats{
			LikeCount:    likes[id],
			CommentCount: comments[id],
			EchoCount:    echoes[id],
			Liked:        liked[id],
			Echoed:       echoed[id],
		}
	}
	return stats, nil
}

func (s *Store) GetCommentStats(ctx context.Context, commentIDs []string, viewerID string) (map[string]domain.CommentStats, error) {
	stats := make(map[string]domain.CommentStats, len(commentIDs))
	if len(commentIDs) == 0 {
		return stats, nil
	}
	db := s.db.WithContext(ctx)

	likes, err := countBy(db, &domain.CommentLike{}, "comment_id", commentIDs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count comment likes")
	}
	replies, err := countBy(db, &domain.Comment{}, "parent_id", commentIDs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count replies")
	}
	liked, err := viewerSet(db, &domain.CommentLike{}, "comment_id", commentIDs, viewerID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load viewer comment likes")
	}

	for _, id := range commentIDs {
		stats[id] = domain.CommentStats{
			LikeCount:  likes[id],
			ReplyCount: replies[id],
			Liked:      liked[id],
		}
	}
	return stats, nil
}

// countBy counts rows of model grouped by column for the given ids.
func countBy(db *gorm.DB, model any, column string, ids []string) (map[string]int, error) {
	var rows []countRow
	err := db.Model(model).
		Select(column+" AS id, COUNT(*) AS n").
		Where(column+" IN ?", ids).
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.ID] = r.N
	}
	return counts, nil
}

// viewerSet reports which of ids the viewer is associated with.
func viewerSet(db *gorm.DB, model any, column string, ids []string, viewerID string) (map[string]bool, error) {
	set := make(map[string]bool)
	if !validID(viewerID) {
		return set, nil
	}
	var hits []string
	if err := db.Model(model).Where(column+" IN ? AND user_id = ?", ids, viewerID).Pluck(column, &hits).Error; err != nil {
		return nil, err
	}
	for _, id := range hits {
		set[id] = true
	}
	return set, nil
}

// === Comment Methods ===

func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	if err := storage.ValidateCommentContent(comment.Content); err != nil {
		return nil, err
	}
	if !validID(comment.PostID) {
		return nil, domain.NotFound(storage.MsgPostNotFound)
	}
	if comment.ParentID != nil && !validID(*comment.ParentID) {
		return nil, domain.NotFound(storage.MsgParentCommentNotFound)
	}

	c := *comment
	c.ID = uuid.NewString()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	c.UpdatedAt = c.CreatedAt

	// The post and parent checks and the insert share one transaction.
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Share locks keep the post and the parent from being deleted
		// before the insert commits.
		var post domain.Post
		if err := tx.Clauses(lockForShare).Select("id").First(&post, "id = ?", c.PostID).Error; err != nil {
			return notFound(err, storage.MsgPostNotFound)
		}

		if c.ParentID != nil {
			var parent domain.Comment
			if err := tx.Clauses(lockForShare).Select("id", "post_id").First(&parent, "id = ?", *c.ParentID).Error; err != nil {
				return notFound(err, storage.MsgParentCommentNotFound)
			}
			if parent.PostID != c.PostID {
				return domain.Validation("Parent comment belongs to a different post.")
			}
		}

		return tx.Create(&c).Error
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create comment")
	}
	return &c, nil
}

func (s *Store) GetCommentByID(ctx context.Context, id string) (*domain.Comment, error) {
	if !validID(id) {
		return nil, domain.NotFound(storage.MsgCommentNotFound)
	}
	var comment domain.Comment
	if err := s.db.WithContext(ctx).First(&comment, "id = ?", id).Error; err != nil {
		return nil, errors.Wrap(notFound(err, storage.MsgCommentNotFound), "failed to get comment")
	}
	return &comment, nil
}

func (s *Store) UpdateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	if err := storage.ValidateCommentContent(comment.Content); err != nil {
		return nil, err
	}
	var updated domain.Comment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&updated, "id = ?", comment.ID).Error; err != nil {
			return notFound(err, storage.MsgCommentNotFound)
		}
		updated.Content = comment.Content
		updated.UpdatedAt = comment.UpdatedAt
		if updated.UpdatedAt.IsZero() {
			updated.UpdatedAt = tx.NowFunc()
		}
		return tx.Save(&updated).Error
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to update comment")
	}
	return &updated, nil
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.NotFound(storage.MsgCommentNotFound)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var root domain.Comment
		if err := tx.Clauses(lockForUpdate).Select("id").First(&root, "id = ?", id).Error; err != nil {
			return notFound(err, storage.MsgCommentNotFound)
		}

		// Collect the subtree level by level. Each level is locked, so a reply
		// being added under it either commits first and is found by the next
		// level query or waits and then misses its parent.
		all := []string{id}
		level := []string{id}
		for len(level) > 0 {
			var children []string
			if err := tx.Model(&domain.Comment{}).Clauses(lockForUpdate).
				Where("parent_id IN ?", level).Pluck("id", &children).Error; err != nil {
				return err
			}
			all = append(all, children...)
			level = children
		}

		if err := tx.Where("comment_id IN ?", all).Delete(&domain.CommentLike{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", all).Delete(&domain.Comment{}).Error
	})
	return errors.Wrap(err, "failed to delete comment")
}

// === Pagination Methods ===

func (s *Store) GetCommentsByPostID(ctx context.Context, postID string, args storage.PageArgs) ([]*domain.Comment, error) {
	if !validID(postID) {
		return []*domain.Comment{}, nil
	}
	var comments []*domain.Comment
	// Top-level comments only (parent_id IS NULL).
	query := s.db.WithContext(ctx).Where("post_id = ? AND parent_id IS NULL", postID)
	err := page(query, "created_at", "id", args).Find(&comments).Error
	return comments, errors.Wrap(err, "failed to get post comments")
}

func (s *Store) GetCommentsByParentID(ctx context.Context, parentID string, args storage.PageArgs) ([]*domain.Comment, error) {
	if !validID(parentID) {
		return []*domain.Comment{}, nil
	}
	var comments []*domain.Comment
	query := s.db.WithContext(ctx).Where("parent_id = ?", parentID)
	err := page(query, "created_at", "id", args).Find(&comments).Error
	return comments, errors.Wrap(err, "failed to get replies")
}
