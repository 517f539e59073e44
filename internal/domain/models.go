package domain

import "time"

// Типы постов. Тип задается при создании и больше не меняется.
const (
	PostTypeNews    = "news"
	PostTypeArticle = "article"
)

// Известные имена групп.
const (
	GroupCommon  = "common"
	GroupAuthors = "authors"
)

// previewLength - длина превью контента поста в символах.
const previewLength = 124

// User представляет зарегистрированного пользователя.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"type:varchar(150);uniqueIndex;not null"`
	Email        string    `json:"email" gorm:"type:varchar(254);not null"`
	PasswordHash string    `json:"-" gorm:"type:varchar(255);not null"`
	CreatedAt    time.Time `json:"createdAt" gorm:"not null;default:now()"`
	Groups       []*Group  `json:"-" gorm:"many2many:user_groups"` // gorm only
}

// Group представляет группу прав ("common", "authors").
type Group struct {
	ID    uint    `json:"id" gorm:"primaryKey"`
	Name  string  `json:"name" gorm:"type:varchar(100);uniqueIndex;not null"`
	Users []*User `json:"-" gorm:"many2many:user_groups"` // gorm only
}

// Author представляет профиль автора с производным рейтингом.
// Рейтинг пересчитывается целиком, по месту он не редактируется.
type Author struct {
	ID     uint `json:"id" gorm:"primaryKey"`
	UserID uint `json:"userId" gorm:"uniqueIndex;not null"`
	Rating int  `json:"rating" gorm:"not null;default:0"`
	User   User `json:"-" gorm:"foreignKey:UserID"` // gorm only
}

// Category представляет категорию постов.
type Category struct {
	ID    uint    `json:"id" gorm:"primaryKey"`
	Name  string  `json:"name" gorm:"type:varchar(100);uniqueIndex;not null"`
	Posts []*Post `json:"-" gorm:"many2many:post_categories"` // gorm only
}

// Post представляет публикацию: новость или статью.
type Post struct {
	ID         uint        `json:"id" gorm:"primaryKey"`
	AuthorID   uint        `json:"authorId" gorm:"not null;index"`
	PostType   string      `json:"postType" gorm:"type:varchar(10);not null"`
	Title      string      `json:"title" gorm:"type:varchar(100);not null"`
	Content    string      `json:"content" gorm:"type:text;not null"`
	Rating     int         `json:"rating" gorm:"not null;default:0"`
	CreatedAt  time.Time   `json:"createdAt" gorm:"not null;default:now();index"`
	Author     User        `json:"-" gorm:"foreignKey:AuthorID"`                // gorm only
	Categories []*Category `json:"categories" gorm:"many2many:post_categories"` // gorm only
	Comments   []*Comment  `json:"-" gorm:"foreignKey:PostID"`                  // gorm only
}

// Preview возвращает укороченный контент поста для списков.
// Обрезка идет по рунам, чтобы не ломать UTF-8 посреди символа.
func (p *Post) Preview() string {
	runes := []rune(p.Content)
	if len(runes) <= previewLength {
		return p.Content
	}
	return string(runes[:previewLength]) + "..."
}

// PostCategory - связующая запись пост-категория.
type PostCategory struct {
	PostID     uint `gorm:"primaryKey"`
	CategoryID uint `gorm:"primaryKey"`
}

// Comment представляет комментарий к посту.
// UserID - кто оставил комментарий, AuthorID - его профиль автора.
type Comment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	PostID    uint      `json:"postId" gorm:"not null;index"`
	UserID    uint      `json:"userId" gorm:"not null;index"`
	AuthorID  uint      `json:"authorId" gorm:"not null;index"`
	Text      string    `json:"text" gorm:"type:text;not null"`
	Rating    int       `json:"rating" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;default:now()"`
}

// Session представляет активную сессию пользователя.
type Session struct {
	Token     string    `gorm:"type:uuid;primaryKey"`
	UserID    uint      `gorm:"not null;index"`
	ExpiresAt time.Time `gorm:"not null"`
}
