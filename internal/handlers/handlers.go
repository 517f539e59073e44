package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/UkralStul/newspaper-service/internal/auth"
	"github.com/UkralStul/newspaper-service/internal/domain"
	"github.com/UkralStul/newspaper-service/internal/storage"

	"github.com/go-chi/chi/v5"
)

// Пути для редиректов при отказах в доступе.
const (
	loginPath        = "/news/accounts/login/"
	accessDeniedPath = "/news/access_denied/"
	newsListPath     = "/news/"
)

// Handler содержит все HTTP-обработчики сервиса. Один обработчик - один
// сценарий использования; текущий пользователь передается явно из сессии
// запроса, без глобального состояния.
type Handler struct {
	store storage.Storage
	auth  *auth.Manager
}

// New создает набор обработчиков поверх хранилища и менеджера аутентификации.
func New(store storage.Storage, authManager *auth.Manager) *Handler {
	return &Handler{store: store, auth: authManager}
}

// Routes собирает маршруты сервиса. Роутер монтируется под /news.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListPosts)
	r.Get("/search/", h.SearchForm)
	r.Get("/search/results/", h.SearchResults)
	r.Get("/access_denied/", h.AccessDenied)

	r.Get("/accounts/signup/", h.SignupForm)
	r.Post("/accounts/signup/", h.Signup)
	r.Get("/accounts/login/", h.LoginForm)
	r.Post("/accounts/login/", h.Login)
	r.Post("/accounts/logout/", h.Logout)

	r.Get("/profile/update/", h.ProfileForm)
	r.Post("/profile/update/", h.ProfileUpdate)
	r.Post("/become_author/", h.BecomeAuthor)

	r.Get("/news/create/", h.CreatePostForm)
	r.Post("/news/create/", h.CreateNews)
	r.Get("/create/", h.CreatePostForm)
	r.Post("/create/", h.CreateArticle)

	r.Get("/authors/{id}/", h.AuthorProfile)
	r.Post("/comments/{id}/like/", h.LikeComment)
	r.Post("/comments/{id}/dislike/", h.DislikeComment)

	r.Get("/{id}/", h.PostDetail)
	r.Get("/{id}/edit/", h.EditPostForm)
	r.Post("/{id}/edit/", h.UpdatePost)
	r.Get("/{id}/update/", h.EditPostForm)
	r.Post("/{id}/update/", h.UpdatePost)
	r.Post("/{id}/delete/", h.DeletePost)
	r.Post("/{id}/comment/", h.CreateComment)
	r.Post("/{id}/like/", h.LikePost)
	r.Post("/{id}/dislike/", h.DislikePost)

	return r
}

// === Helpers ===

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// storageError переводит ошибку хранилища в HTTP-ответ.
func (h *Handler) storageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrUsernameExists), errors.Is(err, storage.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("storage error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// requireUser возвращает пользователя активной сессии.
// Без сессии - редирект на страницу входа.
func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	user, ok := h.auth.CurrentUser(r)
	if !ok {
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
		return nil, false
	}
	return user, true
}

// requireAuthor дополнительно требует членства в группе "authors".
// Аутентифицированный не-автор попадает на страницу отказа в доступе:
// это отказ в правах, а не отсутствие сессии.
func (h *Handler) requireAuthor(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return nil, false
	}
	decision, err := h.auth.CanManagePosts(r.Context(), user)
	if err != nil {
		h.storageError(w, err)
		return nil, false
	}
	if !decision.Allowed {
		http.Redirect(w, r, accessDeniedPath, http.StatusSeeOther)
		return nil, false
	}
	return user, true
}

func parseID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	return uint(id), err
}

func parsePage(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// === Serialization ===

type postItem struct {
	ID         uint      `json:"id"`
	PostType   string    `json:"postType"`
	Title      string    `json:"title"`
	Preview    string    `json:"preview"`
	Rating     int       `json:"rating"`
	AuthorID   uint      `json:"authorId"`
	CreatedAt  time.Time `json:"createdAt"`
	Categories []string  `json:"categories"`
}

func toPostItem(p *domain.Post) postItem {
	names := make([]string, 0, len(p.Categories))
	for _, c := range p.Categories {
		names = append(names, c.Name)
	}
	return postItem{
		ID:         p.ID,
		PostType:   p.PostType,
		Title:      p.Title,
		Preview:    p.Preview(),
		Rating:     p.Rating,
		AuthorID:   p.AuthorID,
		CreatedAt:  p.CreatedAt,
		Categories: names,
	}
}

func toPostItems(posts []*domain.Post) []postItem {
	items := make([]postItem, 0, len(posts))
	for _, p := range posts {
		items = append(items, toPostItem(p))
	}
	return items
}

// === List / Detail / Search ===

// ListPosts отдает страницу новостей и статей по убыванию даты создания,
// счетчики по типам и флаг is_common_user для интерфейса.
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	page, err := h.store.ListPosts(r.Context(), parsePage(r))
	if err != nil {
		h.storageError(w, err)
		return
	}

	// Аноним и обычный пользователь считаются "common"; флаг гасится
	// только для членов группы "authors".
	isCommon := true
	if user, ok := h.auth.CurrentUser(r); ok {
		decision, err := h.auth.CanManagePosts(r.Context(), user)
		if err != nil {
			h.storageError(w, err)
			return
		}
		isCommon = !decision.Allowed
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"news":           toPostItems(page.Posts),
		"pageInfo":       page.PageInfo,
		"newsCount":      page.NewsCount,
		"articleCount":   page.ArticleCount,
		"is_common_user": isCommon,
	})
}

// PostDetail отдает пост целиком вместе с категориями и комментариями.
func (h *Handler) PostDetail(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondError(w, http.StatusNotFound, "not found")
		return
	}

	post, err := h.store.GetPostByID(r.Context(), id)
	if err != nil {
		h.storageError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"news":     post,
		"comments": post.Comments,
	})
}

// SearchForm описывает доступные фильтры поиска.
func (h *Handler) SearchForm(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"action":  "/news/search/results/",
		"filters": []string{"title", "author", "date"},
	})
}

// SearchResults ищет посты по конъюнкции необязательных фильтров:
// подстрока заголовка, подстрока имени автора, нижняя граница даты.
func (h *Handler) SearchResults(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := storage.SearchFilters{
		Title:  q.Get("title"),
		Author: q.Get("author"),
	}
	if date := q.Get("date"); date != "" {
		t, err := time.Parse("2006-01-02", date)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
			return
		}
		filters.CreatedAfter = &t
	}

	page, err := h.store.SearchPosts(r.Context(), filters, parsePage(r))
	if err != nil {
		h.storageError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"search_results": toPostItems(page.Posts),
		"pageInfo":       page.PageInfo,
	})
}

// AccessDenied - страница отказа в доступе.
func (h *Handler) AccessDenied(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusForbidden, "access denied: authors group membership required")
}
