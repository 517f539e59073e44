package storage

import (
	"context"
	"errors"
	"time"

	"github.com/UkralStul/newspaper-service/internal/domain"
)

// DefaultPageSize - размер страницы для списков и поиска.
const DefaultPageSize = 10

// Ошибки хранилища, общие для всех реализаций.
var (
	ErrNotFound        = errors.New("record not found")
	ErrUsernameExists  = errors.New("username already exists")
	ErrSessionNotFound = errors.New("session not found or expired")
	ErrValidation      = errors.New("validation failed")
)

// SearchFilters - фильтры поиска постов. Пустое поле - без ограничения,
// фильтры объединяются по AND.
type SearchFilters struct {
	Title        string     // подстрока заголовка, без учета регистра
	Author       string     // подстрока имени пользователя-автора, без учета регистра
	CreatedAfter *time.Time // включительная нижняя граница даты создания
}

// PageInfo - информация о странице для пагинации.
// StartRange и EndRange задают видимое окно номеров страниц:
// 5 страниц до текущей и 4 после, обрезанные по [1, TotalPages].
type PageInfo struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalCount  int64 `json:"totalCount"`
	StartRange  int   `json:"startRange"`
	EndRange    int   `json:"endRange"`
}

// NewPageInfo вычисляет окно пагинации для страницы page из totalCount записей.
func NewPageInfo(page int, totalCount int64, pageSize int) PageInfo {
	if page < 1 {
		page = 1
	}
	totalPages := int((totalCount + int64(pageSize) - 1) / int64(pageSize))
	if totalPages < 1 {
		totalPages = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := page - 5
	if start < 1 {
		start = 1
	}
	end := page + 4
	if end > totalPages {
		end = totalPages
	}

	return PageInfo{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalCount:  totalCount,
		StartRange:  start,
		EndRange:    end,
	}
}

// Offset возвращает смещение первой записи страницы.
func (p PageInfo) Offset(pageSize int) int {
	return (p.CurrentPage - 1) * pageSize
}

// PostPage - страница постов вместе со счетчиками по типам.
type PostPage struct {
	Posts        []*domain.Post `json:"posts"`
	PageInfo     PageInfo       `json:"pageInfo"`
	NewsCount    int64          `json:"newsCount"`
	ArticleCount int64          `json:"articleCount"`
}

// Storage определяет контракт для хранилищ.
type Storage interface {
	// Пользователи. CreateUser добавляет нового пользователя в группу
	// "common" - это явный шаг регистрации, выполняемый ровно один раз.
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	GetUserByID(ctx context.Context, id uint) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdateUserProfile(ctx context.Context, id uint, username, email string) (*domain.User, error)

	// Группы.
	EnsureGroup(ctx context.Context, name string) (*domain.Group, error)
	AddUserToGroup(ctx context.Context, userID uint, group string) error
	UserInGroup(ctx context.Context, userID uint, group string) (bool, error)

	// Авторы. EnsureAuthor создает профиль автора, если его еще нет.
	EnsureAuthor(ctx context.Context, userID uint) (*domain.Author, error)
	GetAuthorByID(ctx context.Context, id uint) (*domain.Author, error)
	GetAuthorByUserID(ctx context.Context, userID uint) (*domain.Author, error)
	RecomputeAuthorRating(ctx context.Context, authorID uint) (*domain.Author, error)

	// Категории.
	CreateCategory(ctx context.Context, name string) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]*domain.Category, error)

	// Посты.
	CreatePost(ctx context.Context, post *domain.Post, categoryIDs []uint) (*domain.Post, error)
	GetPostByID(ctx context.Context, id uint) (*domain.Post, error)
	UpdatePost(ctx context.Context, id uint, title, content string, categoryIDs []uint) (*domain.Post, error)
	DeletePost(ctx context.Context, id uint) error
	ListPosts(ctx context.Context, page int) (*PostPage, error)
	SearchPosts(ctx context.Context, filters SearchFilters, page int) (*PostPage, error)

	// Комментарии.
	CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error)
	GetCommentByID(ctx context.Context, id uint) (*domain.Comment, error)
	GetCommentsByPostID(ctx context.Context, postID uint) ([]*domain.Comment, error)

	// Рейтинги: атомарный инкремент/декремент ровно на 1.
	LikePost(ctx context.Context, id uint) error
	DislikePost(ctx context.Context, id uint) error
	LikeComment(ctx context.Context, id uint) error
	DislikeComment(ctx context.Context, id uint) error

	// Сессии.
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSessionUser(ctx context.Context, token string) (*domain.User, error)
	DeleteSession(ctx context.Context, token string) error
}
