package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/UkralStul/newspaper-service/internal/auth"
	"github.com/UkralStul/newspaper-service/internal/domain"
	"github.com/UkralStul/newspaper-service/internal/storage"
	"github.com/UkralStul/newspaper-service/internal/storage/inmemory"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer собирает роутер поверх in-memory хранилища,
// как это делает main.
func newTestServer(t *testing.T) (http.Handler, storage.Storage) {
	store := inmemory.New()
	ctx := context.Background()
	for _, name := range []string{domain.GroupCommon, domain.GroupAuthors} {
		_, err := store.EnsureGroup(ctx, name)
		require.NoError(t, err)
	}

	manager := auth.NewManager(store, false)
	router := chi.NewRouter()
	router.Mount("/news", New(store, manager).Routes())
	return router, store
}

func postForm(router http.Handler, path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func get(router http.Handler, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// signupAndLogin регистрирует пользователя и возвращает cookie его сессии.
func signupAndLogin(t *testing.T, router http.Handler, username string) *http.Cookie {
	w := postForm(router, "/news/accounts/signup/", url.Values{
		"username": {username},
		"email":    {username + "@example.com"},
		"password": {"secret1"},
	}, nil)
	require.Equal(t, http.StatusSeeOther, w.Code)

	w = postForm(router, "/news/accounts/login/", url.Values{
		"username": {username},
		"password": {"secret1"},
	}, nil)
	require.Equal(t, http.StatusSeeOther, w.Code)

	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookie && c.Value != "" {
			return c
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func seedPost(t *testing.T, store storage.Storage, authorID uint, postType, title string) *domain.Post {
	post, err := store.CreatePost(context.Background(), &domain.Post{
		AuthorID: authorID,
		PostType: postType,
		Title:    title,
		Content:  "Content",
	}, nil)
	require.NoError(t, err)
	return post
}

func seedUser(t *testing.T, store storage.Storage, username string) *domain.User {
	user, err := store.CreateUser(context.Background(), &domain.User{
		Username: username, Email: username + "@example.com", PasswordHash: "p",
	})
	require.NoError(t, err)
	return user
}

func TestListPosts_PublicWithCommonFlag(t *testing.T) {
	router, store := newTestServer(t)
	user := seedUser(t, store, "writer")
	seedPost(t, store, user.ID, domain.PostTypeNews, "Hello")
	seedPost(t, store, user.ID, domain.PostTypeArticle, "World")

	w := get(router, "/news/", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["is_common_user"])
	assert.Len(t, body["news"], 2)
	assert.Equal(t, float64(1), body["newsCount"])
	assert.Equal(t, float64(1), body["articleCount"])
}

func TestPostDetail_NotFound(t *testing.T) {
	router, _ := newTestServer(t)

	w := get(router, "/news/999/", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateNews_RequiresLogin(t *testing.T) {
	router, _ := newTestServer(t)

	w := postForm(router, "/news/news/create/", url.Values{
		"title": {"T"}, "content": {"C"},
	}, nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, loginPath, w.Header().Get("Location"))
}

func TestCreateNews_NonAuthorDenied(t *testing.T) {
	router, store := newTestServer(t)
	cookie := signupAndLogin(t, router, "reader_9")

	w := postForm(router, "/news/news/create/", url.Values{
		"title": {"T"}, "content": {"C"},
	}, cookie)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, accessDeniedPath, w.Header().Get("Location"))

	// Пост не создан.
	page, err := store.ListPosts(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, page.Posts)
}

func TestCreatePost_AuthorAndForcedType(t *testing.T) {
	router, store := newTestServer(t)
	cookie := signupAndLogin(t, router, "future_author")

	w := postForm(router, "/news/become_author/", url.Values{}, cookie)
	require.Equal(t, http.StatusSeeOther, w.Code)

	// Поле post_type из формы игнорируется: тип задает путь.
	w = postForm(router, "/news/news/create/", url.Values{
		"title":     {"Breaking"},
		"content":   {"Something happened"},
		"post_type": {domain.PostTypeArticle},
	}, cookie)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, newsListPath, w.Header().Get("Location"))

	w = postForm(router, "/news/create/", url.Values{
		"title":   {"Longread"},
		"content": {"In depth"},
	}, cookie)
	require.Equal(t, http.StatusSeeOther, w.Code)

	page, err := store.ListPosts(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, page.Posts, 2)
	types := map[string]string{}
	for _, p := range page.Posts {
		types[p.Title] = p.PostType
	}
	assert.Equal(t, domain.PostTypeNews, types["Breaking"])
	assert.Equal(t, domain.PostTypeArticle, types["Longread"])
}

func TestBecomeAuthor_Idempotent(t *testing.T) {
	router, store := newTestServer(t)
	cookie := signupAndLogin(t, router, "eager_one")

	for i := 0; i < 2; i++ {
		w := postForm(router, "/news/become_author/", url.Values{}, cookie)
		require.Equal(t, http.StatusSeeOther, w.Code)
	}

	user, err := store.GetUserByUsername(context.Background(), "eager_one")
	require.NoError(t, err)
	ok, err := store.UserInGroup(context.Background(), user.ID, domain.GroupAuthors)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestProfileUpdate_SelfOnly(t *testing.T) {
	router, store := newTestServer(t)
	cookie := signupAndLogin(t, router, "old_name")

	w := postForm(router, "/news/profile/update/", url.Values{
		"username": {"new_name"},
	}, cookie)
	require.Equal(t, http.StatusOK, w.Code)

	_, err := store.GetUserByUsername(context.Background(), "new_name")
	assert.NoError(t, err)

	// Без сессии - на страницу входа.
	w = postForm(router, "/news/profile/update/", url.Values{"username": {"x_name"}}, nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, loginPath, w.Header().Get("Location"))
}

func TestSearchResults(t *testing.T) {
	router, store := newTestServer(t)
	user := seedUser(t, store, "writer")
	seedPost(t, store, user.ID, domain.PostTypeNews, "Foo happened")
	seedPost(t, store, user.ID, domain.PostTypeArticle, "Bar happened")

	w := get(router, "/news/search/results/?title=foo", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Len(t, body["search_results"], 1)

	// Пустой набор фильтров возвращает все посты.
	w = get(router, "/news/search/results/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.Len(t, body["search_results"], 2)

	w = get(router, "/news/search/results/?date=garbage", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLikeDislikePost(t *testing.T) {
	router, store := newTestServer(t)
	user := seedUser(t, store, "writer")
	post := seedPost(t, store, user.ID, domain.PostTypeNews, "Rate me")
	cookie := signupAndLogin(t, router, "reader_9")

	for i := 0; i < 3; i++ {
		w := postForm(router, "/news/1/like/", url.Values{}, cookie)
		require.Equal(t, http.StatusSeeOther, w.Code)
	}
	w := postForm(router, "/news/1/dislike/", url.Values{}, cookie)
	require.Equal(t, http.StatusSeeOther, w.Code)

	got, err := store.GetPostByID(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Rating)

	// Лайк без сессии не проходит.
	w = postForm(router, "/news/1/like/", url.Values{}, nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, loginPath, w.Header().Get("Location"))
}

func TestCommentFlow(t *testing.T) {
	router, store := newTestServer(t)
	user := seedUser(t, store, "writer")
	post := seedPost(t, store, user.ID, domain.PostTypeNews, "Discuss")
	cookie := signupAndLogin(t, router, "reader_9")

	w := postForm(router, "/news/1/comment/", url.Values{"text": {"First!"}}, cookie)
	require.Equal(t, http.StatusSeeOther, w.Code)

	comments, err := store.GetCommentsByPostID(context.Background(), post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "First!", comments[0].Text)

	// Лайк комментария возвращает на страницу поста.
	w = postForm(router, "/news/comments/1/like/", url.Values{}, cookie)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/news/1/", w.Header().Get("Location"))
}

func TestAuthorProfile_RecomputesRating(t *testing.T) {
	router, store := newTestServer(t)
	ctx := context.Background()

	user := seedUser(t, store, "writer")
	author, err := store.EnsureAuthor(ctx, user.ID)
	require.NoError(t, err)
	post := seedPost(t, store, user.ID, domain.PostTypeNews, "Popular")
	require.NoError(t, store.LikePost(ctx, post.ID))
	require.NoError(t, store.LikePost(ctx, post.ID))

	w := get(router, "/news/authors/1/", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// 3 * 2 = 6, пересчет выполняется прямо при чтении профиля.
	got, err := store.GetAuthorByID(ctx, author.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Rating)
}

func TestSignup_Validation(t *testing.T) {
	router, _ := newTestServer(t)

	w := postForm(router, "/news/accounts/signup/", url.Values{
		"username": {"ab"},
		"email":    {"a@example.com"},
		"password": {"secret1"},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Повторная регистрация того же имени.
	for i := 0; i < 2; i++ {
		w = postForm(router, "/news/accounts/signup/", url.Values{
			"username": {"taken_name"},
			"email":    {"t@example.com"},
			"password": {"secret1"},
		}, nil)
	}
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin_WrongPassword(t *testing.T) {
	router, _ := newTestServer(t)
	signupAndLogin(t, router, "reader_9")

	w := postForm(router, "/news/accounts/login/", url.Values{
		"username": {"reader_9"},
		"password": {"wrong-password"},
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAccessDeniedPage(t *testing.T) {
	router, _ := newTestServer(t)

	w := get(router, accessDeniedPath, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
