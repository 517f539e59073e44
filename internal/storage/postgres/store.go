package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/UkralStul/newspaper-service/internal/domain"
	"github.com/UkralStul/newspaper-service/internal/storage"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store реализует интерфейс Storage с использованием PostgreSQL.
type Store struct {
	db *gorm.DB
}

// New создает новый экземпляр хранилища PostgreSQL.
func New(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info), // Включаем логирование для отладки
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Выполняем миграцию схемы
	if err := db.AutoMigrate(
		&domain.User{},
		&domain.Group{},
		&domain.Author{},
		&domain.Category{},
		&domain.Post{},
		&domain.PostCategory{},
		&domain.Comment{},
		&domain.Session{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// === User Methods ===

func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	// Регистрация и вступление в группу "common" - одна транзакция,
	// чтобы пользователь не остался без группы по умолчанию.
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.User{}).Where("lower(username) = lower(?)", user.Username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return storage.ErrUsernameExists
		}

		if err := tx.Create(user).Error; err != nil {
			return err
		}

		var common domain.Group
		if err := tx.Where(domain.Group{Name: domain.GroupCommon}).FirstOrCreate(&common).Error; err != nil {
			return err
		}
		return tx.Model(user).Association("Groups").Append(&common)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Store) GetUserByID(ctx context.Context, id uint) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).First(&user, "lower(username) = lower(?)", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) UpdateUserProfile(ctx context.Context, id uint, username, email string) (*domain.User, error) {
	var user domain.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return storage.ErrNotFound
			}
			return err
		}

		if username != "" && !strings.EqualFold(username, user.Username) {
			var count int64
			if err := tx.Model(&domain.User{}).Where("lower(username) = lower(?) AND id <> ?", username, id).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return storage.ErrUsernameExists
			}
			user.Username = username
		}
		if email != "" {
			user.Email = email
		}
		return tx.Save(&user).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// === Group Methods ===

func (s *Store) EnsureGroup(ctx context.Context, name string) (*domain.Group, error) {
	var group domain.Group
	if err := s.db.WithContext(ctx).Where(domain.Group{Name: name}).FirstOrCreate(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

func (s *Store) AddUserToGroup(ctx context.Context, userID uint, name string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user domain.User
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return storage.ErrNotFound
			}
			return err
		}

		var group domain.Group
		if err := tx.Where(domain.Group{Name: name}).FirstOrCreate(&group).Error; err != nil {
			return err
		}

		// Повторное добавление - no-op, операция идемпотентна.
		var count int64
		if err := tx.Table("user_groups").Where("user_id = ? AND group_id = ?", userID, group.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		return tx.Model(&user).Association("Groups").Append(&group)
	})
}

func (s *Store) UserInGroup(ctx context.Context, userID uint, name string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Table("user_groups").
		Joins("JOIN groups ON groups.id = user_groups.group_id").
		Where("user_groups.user_id = ? AND groups.name = ?", userID, name).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// === Author Methods ===

func (s *Store) EnsureAuthor(ctx context.Context, userID uint) (*domain.Author, error) {
	var author domain.Author
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return storage.ErrNotFound
		}
		return tx.Where(domain.Author{UserID: userID}).FirstOrCreate(&author).Error
	})
	if err != nil {
		return nil, err
	}
	return &author, nil
}

func (s *Store) GetAuthorByID(ctx context.Context, id uint) (*domain.Author, error) {
	var author domain.Author
	if err := s.db.WithContext(ctx).First(&author, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &author, nil
}

func (s *Store) GetAuthorByUserID(ctx context.Context, userID uint) (*domain.Author, error) {
	var author domain.Author
	if err := s.db.WithContext(ctx).First(&author, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &author, nil
}

func (s *Store) RecomputeAuthorRating(ctx context.Context, authorID uint) (*domain.Author, error) {
	var author domain.Author
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&author, "id = ?", authorID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return storage.ErrNotFound
			}
			return err
		}

		// COALESCE: отсутствие строк считается нулем, а не NULL.
		var postSum, ownCommentSum, postCommentSum int
		if err := tx.Raw(
			"SELECT COALESCE(SUM(rating), 0) FROM posts WHERE author_id = ?", author.UserID,
		).Scan(&postSum).Error; err != nil {
			return err
		}
		if err := tx.Raw(
			"SELECT COALESCE(SUM(rating), 0) FROM comments WHERE author_id = ?", author.ID,
		).Scan(&ownCommentSum).Error; err != nil {
			return err
		}
		if err := tx.Raw(
			"SELECT COALESCE(SUM(c.rating), 0) FROM comments c JOIN posts p ON p.id = c.post_id WHERE p.author_id = ?", author.UserID,
		).Scan(&postCommentSum).Error; err != nil {
			return err
		}

		author.Rating = postSum*3 + ownCommentSum + postCommentSum
		return tx.Model(&author).UpdateColumn("rating", author.Rating).Error
	})
	if err != nil {
		return nil, err
	}
	return &author, nil
}

// === Category Methods ===

func (s *Store) CreateCategory(ctx context.Context, name string) (*domain.Category, error) {
	category := domain.Category{Name: name}
	if err := s.db.WithContext(ctx).Where(domain.Category{Name: name}).FirstOrCreate(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	var categories []*domain.Category
	err := s.db.WithContext(ctx).Order("name ASC").Find(&categories).Error
	return categories, err
}

func (s *Store) categoriesByIDs(tx *gorm.DB, ids []uint) ([]*domain.Category, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var categories []*domain.Category
	if err := tx.Where("id IN ?", ids).Find(&categories).Error; err != nil {
		return nil, err
	}
	if len(categories) != len(ids) {
		return nil, storage.ErrNotFound
	}
	return categories, nil
}

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post, categoryIDs []uint) (*domain.Post, error) {
	if err := validatePost(post.PostType, post.Title, post.Content); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		categories, err := s.categoriesByIDs(tx, categoryIDs)
		if err != nil {
			return err
		}
		if err := tx.Omit("Categories").Create(post).Error; err != nil {
			return err
		}
		if len(categories) > 0 {
			if err := tx.Model(post).Association("Categories").Append(categories); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (s *Store) GetPostByID(ctx context.Context, id uint) (*domain.Post, error) {
	var post domain.Post
	err := s.db.WithContext(ctx).
		Preload("Categories").
		Preload("Comments").
		First(&post, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &post, nil
}

func (s *Store) UpdatePost(ctx context.Context, id uint, title, content string, categoryIDs []uint) (*domain.Post, error) {
	var post domain.Post
	// Автор и тип поста после создания не меняются: обновляем только
	// заголовок, контент и категории.
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&post, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		if err := validatePost(post.PostType, title, content); err != nil {
			return err
		}

		categories, err := s.categoriesByIDs(tx, categoryIDs)
		if err != nil {
			return err
		}

		post.Title = title
		post.Content = content
		if err := tx.Model(&post).Select("title", "content").Updates(&post).Error; err != nil {
			return err
		}
		return tx.Model(&post).Association("Categories").Replace(categories)
	})
	if err != nil {
		return nil, err
	}
	return s.GetPostByID(ctx, id)
}

func (s *Store) DeletePost(ctx context.Context, id uint) error {
	// Жесткое удаление с каскадом на комментарии и связи с категориями.
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post domain.Post
		if err := tx.First(&post, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&domain.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&domain.PostCategory{}).Error; err != nil {
			return err
		}
		return tx.Delete(&post).Error
	})
}

func (s *Store) ListPosts(ctx context.Context, page int) (*storage.PostPage, error) {
	base := s.db.WithContext(ctx).Model(&domain.Post{}).
		Where("post_type IN ?", []string{domain.PostTypeNews, domain.PostTypeArticle})

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	info := storage.NewPageInfo(page, total, storage.DefaultPageSize)

	var posts []*domain.Post
	err := base.Session(&gorm.Session{}).
		Preload("Categories").
		Order("created_at DESC").
		Limit(storage.DefaultPageSize).
		Offset(info.Offset(storage.DefaultPageSize)).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}

	var newsCount, articleCount int64
	if err := s.db.WithContext(ctx).Model(&domain.Post{}).Where("post_type = ?", domain.PostTypeNews).Count(&newsCount).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&domain.Post{}).Where("post_type = ?", domain.PostTypeArticle).Count(&articleCount).Error; err != nil {
		return nil, err
	}

	return &storage.PostPage{
		Posts:        posts,
		PageInfo:     info,
		NewsCount:    newsCount,
		ArticleCount: articleCount,
	}, nil
}

func (s *Store) SearchPosts(ctx context.Context, filters storage.SearchFilters, page int) (*storage.PostPage, error) {
	query := s.db.WithContext(ctx).Model(&domain.Post{})

	// Фильтры объединяются по AND; пустой фильтр не ограничивает выборку.
	if filters.Title != "" {
		query = query.Where("posts.title ILIKE ?", "%"+filters.Title+"%")
	}
	if filters.Author != "" {
		query = query.
			Joins("JOIN users ON users.id = posts.author_id").
			Where("users.username ILIKE ?", "%"+filters.Author+"%")
	}
	if filters.CreatedAfter != nil {
		query = query.Where("posts.created_at >= ?", *filters.CreatedAfter)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	info := storage.NewPageInfo(page, total, storage.DefaultPageSize)

	var posts []*domain.Post
	err := query.Session(&gorm.Session{}).
		Preload("Categories").
		Order("posts.created_at DESC").
		Limit(storage.DefaultPageSize).
		Offset(info.Offset(storage.DefaultPageSize)).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}

	return &storage.PostPage{Posts: posts, PageInfo: info}, nil
}

// === Comment Methods ===

func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	if strings.TrimSpace(comment.Text) == "" {
		return nil, fmt.Errorf("%w: comment text cannot be empty", storage.ErrValidation)
	}

	// Проверяем существование поста и создаем комментарий в одной транзакции
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Post{}).Where("id = ?", comment.PostID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return storage.ErrNotFound
		}
		return tx.Create(comment).Error
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *Store) GetCommentByID(ctx context.Context, id uint) (*domain.Comment, error) {
	var comment domain.Comment
	if err := s.db.WithContext(ctx).First(&comment, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &comment, nil
}

func (s *Store) GetCommentsByPostID(ctx context.Context, postID uint) ([]*domain.Comment, error) {
	var comments []*domain.Comment
	err := s.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Find(&comments).Error
	return comments, err
}

// === Rating Methods ===

// adjustRating атомарно меняет рейтинг одной строки на delta.
// Инкремент выполняется на стороне БД, чтобы исключить потерю обновлений
// при параллельных лайках (никаких read-modify-write).
func (s *Store) adjustRating(ctx context.Context, model interface{}, id uint, delta int) error {
	res := s.db.WithContext(ctx).Model(model).
		Where("id = ?", id).
		UpdateColumn("rating", gorm.Expr("rating + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) LikePost(ctx context.Context, id uint) error {
	return s.adjustRating(ctx, &domain.Post{}, id, 1)
}

func (s *Store) DislikePost(ctx context.Context, id uint) error {
	return s.adjustRating(ctx, &domain.Post{}, id, -1)
}

func (s *Store) LikeComment(ctx context.Context, id uint) error {
	return s.adjustRating(ctx, &domain.Comment{}, id, 1)
}

func (s *Store) DislikeComment(ctx context.Context, id uint) error {
	return s.adjustRating(ctx, &domain.Comment{}, id, -1)
}

// === Session Methods ===

func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	return s.db.WithContext(ctx).Create(session).Error
}

func (s *Store) GetSessionUser(ctx context.Context, token string) (*domain.User, error) {
	var session domain.Session
	if err := s.db.WithContext(ctx).First(&session, "token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrSessionNotFound
		}
		return nil, err
	}
	if time.Now().After(session.ExpiresAt) {
		// Просроченную сессию сразу убираем. Для вызывающего она в любом
		// случае не существует, поэтому ошибку удаления только логируем.
		if err := s.db.WithContext(ctx).Delete(&session).Error; err != nil {
			log.Printf("failed to delete expired session: %v", err)
		}
		return nil, storage.ErrSessionNotFound
	}

	var user domain.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", session.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrSessionNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).Where("token = ?", token).Delete(&domain.Session{}).Error
}

// validatePost проверяет поля поста перед записью.
func validatePost(postType, title, content string) error {
	if postType != domain.PostTypeNews && postType != domain.PostTypeArticle {
		return fmt.Errorf("%w: invalid post type %q", storage.ErrValidation, postType)
	}
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: post title cannot be empty", storage.ErrValidation)
	}
	if len(title) > 100 {
		return fmt.Errorf("%w: post title is too long", storage.ErrValidation)
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: post content cannot be empty", storage.ErrValidation)
	}
	return nil
}
