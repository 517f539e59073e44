package handlers

import (
	"errors"
	"net/http"

	"github.com/UkralStul/newspaper-service/internal/auth"
	"github.com/UkralStul/newspaper-service/internal/domain"
	"github.com/UkralStul/newspaper-service/internal/storage"
)

// SignupForm описывает поля формы регистрации.
func (h *Handler) SignupForm(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"action": "/news/accounts/signup/",
		"fields": []string{"username", "email", "password"},
	})
}

// Signup регистрирует пользователя. Вступление в группу "common" происходит
// внутри регистрации ровно один раз. Успех - редирект на страницу входа.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	email := r.FormValue("email")
	password := r.FormValue("password")

	_, err := h.auth.Register(r.Context(), username, email, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidInput) || errors.Is(err, storage.ErrUsernameExists) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.storageError(w, err)
		return
	}

	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

// LoginForm описывает поля формы входа.
func (h *Handler) LoginForm(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"action": "/news/accounts/login/",
		"fields": []string{"username", "password"},
	})
}

// Login открывает сессию по логину и паролю.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	password := r.FormValue("password")

	_, err := h.auth.Login(r.Context(), w, username, password)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) || errors.Is(err, auth.ErrInvalidPassword) {
			respondError(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		h.storageError(w, err)
		return
	}

	http.Redirect(w, r, newsListPath, http.StatusSeeOther)
}

// Logout закрывает текущую сессию.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.auth.Logout(r.Context(), w, r)
	http.Redirect(w, r, newsListPath, http.StatusSeeOther)
}

// ProfileForm отдает профиль текущего пользователя для редактирования.
func (h *Handler) ProfileForm(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"action": "/news/profile/update/",
		"user":   user,
	})
}

// ProfileUpdate меняет имя и почту текущего пользователя.
// Чужой профиль через этот обработчик недоступен: идентичность берется
// только из сессии запроса.
func (h *Handler) ProfileUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	username := r.FormValue("username")
	email := r.FormValue("email")
	if err := auth.ValidateProfile(username, email); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.store.UpdateUserProfile(r.Context(), user.ID, username, email)
	if err != nil {
		h.storageError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"user": updated})
}

// BecomeAuthor добавляет текущего пользователя в группу "authors" и
// создает профиль автора, если его еще нет. Операция идемпотентна.
func (h *Handler) BecomeAuthor(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	if err := h.store.AddUserToGroup(r.Context(), user.ID, domain.GroupAuthors); err != nil {
		h.storageError(w, err)
		return
	}
	if _, err := h.store.EnsureAuthor(r.Context(), user.ID); err != nil {
		h.storageError(w, err)
		return
	}

	http.Redirect(w, r, newsListPath, http.StatusSeeOther)
}
