package handlers

import (
	"fmt"
	"net/http"

	"github.com/UkralStul/newspaper-service/internal/domain"
)

// CreateComment добавляет комментарий к посту от имени текущего
// пользователя. Профиль автора комментатора создается при необходимости.
func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	postID, err := parseID(r)
	if err != nil {
		respondError(w, http.StatusNotFound, "not found")
		return
	}

	author, err := h.store.EnsureAuthor(r.Context(), user.ID)
	if err != nil {
		h.storageError(w, err)
		return
	}

	comment := &domain.Comment{
		PostID:   postID,
		UserID:   user.ID,
		AuthorID: author.ID,
		Text:     r.FormValue("text"),
	}
	if _, err := h.store.CreateComment(r.Context(), comment); err != nil {
		h.storageError(w, err)
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/news/%d/", postID), http.StatusSeeOther)
}

// === Лайки ===
// Рейтинг меняется атомарно ровно на единицу; пересчет рейтинга автора
// по запросу остается за читателем профиля (pull-модель).

func (h *Handler) adjustPost(w http.ResponseWriter, r *http.Request, adjust func(id uint) error) {
	if _, ok := h.requireUser(w, r); !ok {
		return
	}

	id, err := parseID(r)
	if err != nil {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	if err := adjust(id); err != nil {
		h.storageError(w, err)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/news/%d/", id), http.StatusSeeOther)
}

// LikePost увеличивает рейтинг поста на 1.
func (h *Handler) LikePost(w http.ResponseWriter, r *http.Request) {
	h.adjustPost(w, r, func(id uint) error { return h.store.LikePost(r.Context(), id) })
}

// DislikePost уменьшает рейтинг поста на 1.
func (h *Handler) DislikePost(w http.ResponseWriter, r *http.Request) {
	h.adjustPost(w, r, func(id uint) error { return h.store.DislikePost(r.Context(), id) })
}

func (h *Handler) adjustComment(w http.ResponseWriter, r *http.Request, adjust func(id uint) error) {
	if _, ok := h.requireUser(w, r); !ok {
		return
	}

	id, err := parseID(r)
	if err != nil {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	if err := adjust(id); err != nil {
		h.storageError(w, err)
		return
	}

	comment, err := h.store.GetCommentByID(r.Context(), id)
	if err != nil {
		h.storageError(w, err)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/news/%d/", comment.PostID), http.StatusSeeOther)
}

// LikeComment увеличивает рейтинг комментария на 1.
func (h *Handler) LikeComment(w http.ResponseWriter, r *http.Request) {
	h.adjustComment(w, r, func(id uint) error { return h.store.LikeComment(r.Context(), id) })
}

// DislikeComment уменьшает рейтинг комментария на 1.
func (h *Handler) DislikeComment(w http.ResponseWriter, r *http.Request) {
	h.adjustComment(w, r, func(id uint) error { return h.store.DislikeComment(r.Context(), id) })
}

// AuthorProfile отдает профиль автора. Рейтинг пересчитывается по текущим
// строкам постов и комментариев прямо при чтении профиля.
func (h *Handler) AuthorProfile(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondError(w, http.StatusNotFound, "not found")
		return
	}

	author, err := h.store.RecomputeAuthorRating(r.Context(), id)
	if err != nil {
		h.storageError(w, err)
		return
	}
	user, err := h.store.GetUserByID(r.Context(), author.UserID)
	if err != nil {
		h.storageError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"author": author,
		"user":   user,
	})
}
