package handlers

import (
	"net/http"
	"strconv"

	"github.com/UkralStul/newspaper-service/internal/domain"
)

// parseCategoryIDs читает выбранные категории из формы.
func parseCategoryIDs(r *http.Request) ([]uint, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	values := r.Form["categories"]
	ids := make([]uint, 0, len(values))
	for _, v := range values {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, err
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

// CreatePostForm отдает форму создания поста: доступные категории.
// Тип поста в форме отсутствует - его задает путь, по которому придет POST.
func (h *Handler) CreatePostForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAuthor(w, r); !ok {
		return
	}

	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		h.storageError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"fields":     []string{"title", "content", "categories"},
		"categories": categories,
	})
}

// createPost - общая часть создания поста. Тип фиксируется обработчиком
// конкретного пути и не читается из данных формы: клиент не может его
// подменить.
func (h *Handler) createPost(w http.ResponseWriter, r *http.Request, postType string) {
	user, ok := h.requireAuthor(w, r)
	if !ok {
		return
	}

	categoryIDs, err := parseCategoryIDs(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	post := &domain.Post{
		AuthorID: user.ID,
		PostType: postType,
		Title:    r.FormValue("title"),
		Content:  r.FormValue("content"),
	}
	if _, err := h.store.CreatePost(r.Context(), post, categoryIDs); err != nil {
		h.storageError(w, err)
		return
	}

	http.Redirect(w, r, newsListPath, http.StatusSeeOther)
}

// CreateNews создает пост типа "news".
func (h *Handler) CreateNews(w http.ResponseWriter, r *http.Request) {
	h.createPost(w, r, domain.PostTypeNews)
}

// CreateArticle создает пост типа "article".
func (h *Handler) CreateArticle(w http.ResponseWriter, r *http.Request) {
	h.createPost(w, r, domain.PostTypeArticle)
}

// EditPostForm отдает пост и категории для формы редактирования.
func (h *Handler) EditPostForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAuthor(w, r); !ok {
		return
	}

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
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		h.storageError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"news":       post,
		"categories": categories,
	})
}

// UpdatePost меняет заголовок, контент и категории поста.
// Автор и тип после создания неизменяемы.
func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAuthor(w, r); !ok {
		return
	}

	id, err := parseID(r)
	if err != nil {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	categoryIDs, err := parseCategoryIDs(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	if _, err := h.store.UpdatePost(r.Context(), id, r.FormValue("title"), r.FormValue("content"), categoryIDs); err != nil {
		h.storageError(w, err)
		return
	}

	http.Redirect(w, r, newsListPath, http.StatusSeeOther)
}

// DeletePost жестко удаляет пост вместе с комментариями и связями
// с категориями.
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAuthor(w, r); !ok {
		return
	}

	id, err := parseID(r)
	if err != nil {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	if err := h.store.DeletePost(r.Context(), id); err != nil {
		h.storageError(w, err)
		return
	}

	http.Redirect(w, r, newsListPath, http.StatusSeeOther)
}
