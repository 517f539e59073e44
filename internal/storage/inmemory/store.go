package inmemory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/UkralStul/newspaper-service/internal/domain"
	"github.com/UkralStul/newspaper-service/internal/storage"
)

// Store реализует интерфейс Storage в памяти.
type Store struct {
	mu             sync.RWMutex
	users          map[uint]*domain.User
	groups         map[uint]*domain.Group
	groupsByName   map[string]uint
	userGroups     map[uint]map[uint]bool // map[userID]set[groupID]
	authors        map[uint]*domain.Author
	authorByUser   map[uint]uint // map[userID]authorID
	categories     map[uint]*domain.Category
	posts          map[uint]*domain.Post
	postCategories map[uint][]uint // map[postID][]categoryID
	comments       map[uint]*domain.Comment
	sessions       map[string]*domain.Session

	nextUserID     uint
	nextGroupID    uint
	nextAuthorID   uint
	nextCategoryID uint
	nextPostID     uint
	nextCommentID  uint
}

// New создает новый экземпляр in-memory хранилища.
func New() *Store {
	return &Store{
		users:          make(map[uint]*domain.User),
		groups:         make(map[uint]*domain.Group),
		groupsByName:   make(map[string]uint),
		userGroups:     make(map[uint]map[uint]bool),
		authors:        make(map[uint]*domain.Author),
		authorByUser:   make(map[uint]uint),
		categories:     make(map[uint]*domain.Category),
		posts:          make(map[uint]*domain.Post),
		postCategories: make(map[uint][]uint),
		comments:       make(map[uint]*domain.Comment),
		sessions:       make(map[string]*domain.Session),
	}
}

// === User Methods ===

// Хранимые записи наружу не отдаются: и чтения, и записи возвращают
// копии, чтобы параллельные запросы не делили одну структуру.

func copyUser(u *domain.User) *domain.User {
	cp := *u
	return &cp
}

func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Username, user.Username) {
			return nil, storage.ErrUsernameExists
		}
	}

	s.nextUserID++
	user.ID = s.nextUserID
	user.CreatedAt = time.Now().UTC()
	s.users[user.ID] = copyUser(user)

	// Новый пользователь сразу попадает в группу "common", ровно один раз.
	common := s.ensureGroupLocked(domain.GroupCommon)
	s.addUserToGroupLocked(user.ID, common.ID)

	return user, nil
}

func (s *Store) GetUserByID(ctx context.Context, id uint) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyUser(user), nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return copyUser(u), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) UpdateUserProfile(ctx context.Context, id uint, username, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	if username != "" && !strings.EqualFold(username, user.Username) {
		for _, u := range s.users {
			if u.ID != id && strings.EqualFold(u.Username, username) {
				return nil, storage.ErrUsernameExists
			}
		}
		user.Username = username
	}
	if email != "" {
		user.Email = email
	}
	return copyUser(user), nil
}

// === Group Methods ===

func (s *Store) ensureGroupLocked(name string) *domain.Group {
	if id, ok := s.groupsByName[name]; ok {
		return s.groups[id]
	}
	s.nextGroupID++
	group := &domain.Group{ID: s.nextGroupID, Name: name}
	s.groups[group.ID] = group
	s.groupsByName[name] = group.ID
	return group
}

func (s *Store) addUserToGroupLocked(userID, groupID uint) {
	if s.userGroups[userID] == nil {
		s.userGroups[userID] = make(map[uint]bool)
	}
	s.userGroups[userID][groupID] = true
}

func (s *Store) EnsureGroup(ctx context.Context, name string) (*domain.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureGroupLocked(name), nil
}

func (s *Store) AddUserToGroup(ctx context.Context, userID uint, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return storage.ErrNotFound
	}
	group := s.ensureGroupLocked(name)
	s.addUserToGroupLocked(userID, group.ID)
	return nil
}

func (s *Store) UserInGroup(ctx context.Context, userID uint, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groupID, ok := s.groupsByName[name]
	if !ok {
		return false, nil
	}
	return s.userGroups[userID][groupID], nil
}

// === Author Methods ===

func copyAuthor(a *domain.Author) *domain.Author {
	cp := *a
	return &cp
}

func (s *Store) EnsureAuthor(ctx context.Context, userID uint) (*domain.Author, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return nil, storage.ErrNotFound
	}
	if id, ok := s.authorByUser[userID]; ok {
		return copyAuthor(s.authors[id]), nil
	}

	s.nextAuthorID++
	author := &domain.Author{ID: s.nextAuthorID, UserID: userID}
	s.authors[author.ID] = author
	s.authorByUser[userID] = author.ID
	return copyAuthor(author), nil
}

func (s *Store) GetAuthorByID(ctx context.Context, id uint) (*domain.Author, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	author, ok := s.authors[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyAuthor(author), nil
}

func (s *Store) GetAuthorByUserID(ctx context.Context, userID uint) (*domain.Author, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.authorByUser[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyAuthor(s.authors[id]), nil
}

func (s *Store) RecomputeAuthorRating(ctx context.Context, authorID uint) (*domain.Author, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	author, ok := s.authors[authorID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	// Рейтинг - чистая функция от текущих строк постов и комментариев:
	// 3*sum(посты автора) + sum(его комментарии) + sum(комментарии к его постам).
	var postSum, ownCommentSum, postCommentSum int
	for _, p := range s.posts {
		if p.AuthorID == author.UserID {
			postSum += p.Rating
		}
	}
	for _, c := range s.comments {
		if c.AuthorID == author.ID {
			ownCommentSum += c.Rating
		}
		if p, ok := s.posts[c.PostID]; ok && p.AuthorID == author.UserID {
			postCommentSum += c.Rating
		}
	}

	author.Rating = postSum*3 + ownCommentSum + postCommentSum
	return copyAuthor(author), nil
}

// === Category Methods ===

func (s *Store) CreateCategory(ctx context.Context, name string) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.categories {
		if c.Name == name {
			return c, nil
		}
	}
	s.nextCategoryID++
	category := &domain.Category{ID: s.nextCategoryID, Name: name}
	s.categories[category.ID] = category
	return category, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]*domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool {
		return categories[i].Name < categories[j].Name
	})
	return categories, nil
}

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post, categoryIDs []uint) (*domain.Post, error) {
	if err := validatePost(post.PostType, post.Title, post.Content); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range categoryIDs {
		if _, ok := s.categories[id]; !ok {
			return nil, storage.ErrNotFound
		}
	}

	s.nextPostID++
	post.ID = s.nextPostID
	post.CreatedAt = time.Now().UTC()
	stored := *post
	stored.Categories = nil
	stored.Comments = nil
	s.posts[post.ID] = &stored
	s.postCategories[post.ID] = append([]uint(nil), categoryIDs...)
	post.Categories = s.categoriesOfLocked(post.ID)
	return post, nil
}

// postCopyLocked возвращает копию поста с заполненными категориями.
// Хранимая структура наружу не выходит: читатели работают с копией
// и не гоняются с писателями за ее поля.
func (s *Store) postCopyLocked(p *domain.Post) *domain.Post {
	cp := *p
	cp.Categories = s.categoriesOfLocked(p.ID)
	cp.Comments = nil
	return &cp
}

func (s *Store) categoriesOfLocked(postID uint) []*domain.Category {
	ids := s.postCategories[postID]
	categories := make([]*domain.Category, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.categories[id]; ok {
			categories = append(categories, c)
		}
	}
	return categories
}

func (s *Store) GetPostByID(ctx context.Context, id uint) (*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := s.postCopyLocked(post)
	cp.Comments = s.commentsOfLocked(id)
	return cp, nil
}

func (s *Store) UpdatePost(ctx context.Context, id uint, title, content string, categoryIDs []uint) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if err := validatePost(post.PostType, title, content); err != nil {
		return nil, err
	}
	for _, cid := range categoryIDs {
		if _, ok := s.categories[cid]; !ok {
			return nil, storage.ErrNotFound
		}
	}

	post.Title = title
	post.Content = content
	s.postCategories[id] = append([]uint(nil), categoryIDs...)
	return s.postCopyLocked(post), nil
}

func (s *Store) DeletePost(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return storage.ErrNotFound
	}

	// Каскад: комментарии поста и связи с категориями удаляются вместе с ним.
	for cid, c := range s.comments {
		if c.PostID == id {
			delete(s.comments, cid)
		}
	}
	delete(s.postCategories, id)
	delete(s.posts, id)
	return nil
}

// sortedPosts сортирует посты по убыванию времени создания.
// При равном времени - по убыванию ID, чтобы порядок был стабильным.
func sortedPosts(posts []*domain.Post) []*domain.Post {
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].ID > posts[j].ID
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts
}

func (s *Store) pageOfLocked(posts []*domain.Post, page int) (*storage.PostPage, error) {
	sortedPosts(posts)
	info := storage.NewPageInfo(page, int64(len(posts)), storage.DefaultPageSize)

	start := info.Offset(storage.DefaultPageSize)
	if start > len(posts) {
		start = len(posts)
	}
	end := start + storage.DefaultPageSize
	if end > len(posts) {
		end = len(posts)
	}

	pageItems := make([]*domain.Post, 0, end-start)
	for _, p := range posts[start:end] {
		pageItems = append(pageItems, s.postCopyLocked(p))
	}
	return &storage.PostPage{Posts: pageItems, PageInfo: info}, nil
}

func (s *Store) ListPosts(ctx context.Context, page int) (*storage.PostPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*domain.Post, 0, len(s.posts))
	var newsCount, articleCount int64
	for _, p := range s.posts {
		switch p.PostType {
		case domain.PostTypeNews:
			newsCount++
		case domain.PostTypeArticle:
			articleCount++
		default:
			continue
		}
		all = append(all, p)
	}

	result, err := s.pageOfLocked(all, page)
	if err != nil {
		return nil, err
	}
	result.NewsCount = newsCount
	result.ArticleCount = articleCount
	return result, nil
}

func (s *Store) SearchPosts(ctx context.Context, filters storage.SearchFilters, page int) (*storage.PostPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	title := strings.ToLower(filters.Title)
	authorName := strings.ToLower(filters.Author)

	var matched []*domain.Post
	for _, p := range s.posts {
		if title != "" && !strings.Contains(strings.ToLower(p.Title), title) {
			continue
		}
		if authorName != "" {
			author, ok := s.users[p.AuthorID]
			if !ok || !strings.Contains(strings.ToLower(author.Username), authorName) {
				continue
			}
		}
		if filters.CreatedAfter != nil && p.CreatedAt.Before(*filters.CreatedAfter) {
			continue
		}
		matched = append(matched, p)
	}

	return s.pageOfLocked(matched, page)
}

// === Comment Methods ===

func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(comment.Text) == "" {
		return nil, fmt.Errorf("%w: comment text cannot be empty", storage.ErrValidation)
	}
	if _, ok := s.posts[comment.PostID]; !ok {
		return nil, storage.ErrNotFound
	}

	s.nextCommentID++
	comment.ID = s.nextCommentID
	comment.CreatedAt = time.Now().UTC()
	stored := *comment
	s.comments[comment.ID] = &stored
	return comment, nil
}

func copyComment(c *domain.Comment) *domain.Comment {
	cp := *c
	return &cp
}

func (s *Store) GetCommentByID(ctx context.Context, id uint) (*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	comment, ok := s.comments[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyComment(comment), nil
}

func (s *Store) commentsOfLocked(postID uint) []*domain.Comment {
	var comments []*domain.Comment
	for _, c := range s.comments {
		if c.PostID == postID {
			comments = append(comments, copyComment(c))
		}
	}
	sort.Slice(comments, func(i, j int) bool {
		if comments[i].CreatedAt.Equal(comments[j].CreatedAt) {
			return comments[i].ID < comments[j].ID
		}
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	return comments
}

func (s *Store) GetCommentsByPostID(ctx context.Context, postID uint) ([]*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commentsOfLocked(postID), nil
}

// === Rating Methods ===

func (s *Store) LikePost(ctx context.Context, id uint) error {
	return s.adjustPostRating(id, 1)
}

func (s *Store) DislikePost(ctx context.Context, id uint) error {
	return s.adjustPostRating(id, -1)
}

func (s *Store) adjustPostRating(id uint, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[id]
	if !ok {
		return storage.ErrNotFound
	}
	post.Rating += delta
	return nil
}

func (s *Store) LikeComment(ctx context.Context, id uint) error {
	return s.adjustCommentRating(id, 1)
}

func (s *Store) DislikeComment(ctx context.Context, id uint) error {
	return s.adjustCommentRating(id, -1)
}

func (s *Store) adjustCommentRating(id uint, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	comment, ok := s.comments[id]
	if !ok {
		return storage.ErrNotFound
	}
	comment.Rating += delta
	return nil
}

// === Session Methods ===

func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *session
	s.sessions[session.Token] = &stored
	return nil
}

func (s *Store) GetSessionUser(ctx context.Context, token string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok {
		return nil, storage.ErrSessionNotFound
	}
	if time.Now().After(session.ExpiresAt) {
		delete(s.sessions, token)
		return nil, storage.ErrSessionNotFound
	}

	user, ok := s.users[session.UserID]
	if !ok {
		return nil, storage.ErrSessionNotFound
	}
	return copyUser(user), nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
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
