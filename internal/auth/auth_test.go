package auth

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/UkralStul/newspaper-service/internal/domain"
	"github.com/UkralStul/newspaper-service/internal/storage/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCredentials(t *testing.T) {
	assert.NoError(t, ValidateCredentials("reader_1", "reader@example.com", "secret1"))

	// Слишком короткое имя.
	assert.ErrorIs(t, ValidateCredentials("ab", "reader@example.com", "secret1"), ErrInvalidInput)
	// Имя с пробелом.
	assert.ErrorIs(t, ValidateCredentials("bad name", "reader@example.com", "secret1"), ErrInvalidInput)
	// Некорректная почта.
	assert.ErrorIs(t, ValidateCredentials("reader_1", "not-an-email", "secret1"), ErrInvalidInput)
	// Короткий пароль.
	assert.ErrorIs(t, ValidateCredentials("reader_1", "reader@example.com", "12345"), ErrInvalidInput)
}

func TestValidateProfile_SkipsEmptyFields(t *testing.T) {
	assert.NoError(t, ValidateProfile("", ""))
	assert.NoError(t, ValidateProfile("new_name", ""))
	assert.ErrorIs(t, ValidateProfile("a", ""), ErrInvalidInput)
	assert.ErrorIs(t, ValidateProfile("", "broken"), ErrInvalidInput)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NoError(t, CheckPasswordHash(hash, "correct horse"))
	assert.Error(t, CheckPasswordHash(hash, "wrong horse"))
}

func TestManager_RegisterAndLogin(t *testing.T) {
	store := inmemory.New()
	manager := NewManager(store, false)
	ctx := context.Background()

	user, err := manager.Register(ctx, "reader_1", "reader@example.com", "secret1")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)

	// Вход с верным паролем ставит cookie сессии.
	w := httptest.NewRecorder()
	logged, err := manager.Login(ctx, w, "reader_1", "secret1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)

	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookie && c.Value != "" {
			found = true
			assert.True(t, c.HttpOnly)
		}
	}
	assert.True(t, found, "session cookie must be set")

	// Неверный пароль и неизвестный пользователь.
	_, err = manager.Login(ctx, httptest.NewRecorder(), "reader_1", "nope-nope")
	assert.ErrorIs(t, err, ErrInvalidPassword)
	_, err = manager.Login(ctx, httptest.NewRecorder(), "nobody", "secret1")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestManager_CanManagePosts(t *testing.T) {
	store := inmemory.New()
	manager := NewManager(store, false)
	ctx := context.Background()

	user, err := manager.Register(ctx, "reader_1", "reader@example.com", "secret1")
	require.NoError(t, err)

	// Аноним.
	decision, err := manager.CanManagePosts(ctx, nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.NotEmpty(t, decision.Reason)

	// Обычный пользователь.
	decision, err = manager.CanManagePosts(ctx, user)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	// Член группы "authors".
	require.NoError(t, store.AddUserToGroup(ctx, user.ID, domain.GroupAuthors))
	decision, err = manager.CanManagePosts(ctx, user)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}
