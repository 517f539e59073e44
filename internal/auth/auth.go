package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/UkralStul/newspaper-service/internal/domain"
	"github.com/UkralStul/newspaper-service/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// SessionCookie - имя cookie с токеном сессии.
	SessionCookie = "newspaper_session"
	// SessionTTL - время жизни сессии.
	SessionTTL = 24 * time.Hour
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidInput    = errors.New("invalid input")
)

// Шаблоны валидации учетных данных.
var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[\p{L}0-9_]{3,20}$`) // буквы, цифры, подчеркивание
	passwordRegex = regexp.MustCompile(`^.{6,32}$`)
)

// ValidateCredentials проверяет входные данные при регистрации.
func ValidateCredentials(username, email, password string) error {
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("%w: invalid username format or length (3-20 characters, letters, numbers, underscore only)", ErrInvalidInput)
	}
	if !emailRegex.MatchString(email) || len(email) < 5 || len(email) > 50 {
		return fmt.Errorf("%w: invalid email format or length (5-50 characters)", ErrInvalidInput)
	}
	if !passwordRegex.MatchString(password) {
		return fmt.Errorf("%w: invalid password format or length (6-32 characters)", ErrInvalidInput)
	}
	return nil
}

// ValidateProfile проверяет изменяемые поля профиля.
// Пустое поле означает "не менять" и не проверяется.
func ValidateProfile(username, email string) error {
	if username != "" && !usernameRegex.MatchString(username) {
		return fmt.Errorf("%w: invalid username format or length (3-20 characters, letters, numbers, underscore only)", ErrInvalidInput)
	}
	if email != "" && (!emailRegex.MatchString(email) || len(email) < 5 || len(email) > 50) {
		return fmt.Errorf("%w: invalid email format or length (5-50 characters)", ErrInvalidInput)
	}
	return nil
}

// HashPassword возвращает bcrypt-хеш пароля.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPasswordHash сверяет пароль с хешем.
func CheckPasswordHash(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// Manager управляет регистрацией, сессиями и авторизацией поверх Storage.
type Manager struct {
	store        storage.Storage
	cookieSecure bool
}

// NewManager создает новый менеджер аутентификации.
func NewManager(store storage.Storage, cookieSecure bool) *Manager {
	return &Manager{store: store, cookieSecure: cookieSecure}
}

// Register регистрирует нового пользователя. Вступление в группу "common"
// выполняется хранилищем как явный шаг создания пользователя.
func (m *Manager) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	if err := ValidateCredentials(username, email, password); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	return m.store.CreateUser(ctx, &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	})
}

// Login аутентифицирует пользователя и открывает новую сессию.
func (m *Manager) Login(ctx context.Context, w http.ResponseWriter, username, password string) (*domain.User, error) {
	user, err := m.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("auth: failed to query user: %w", err)
	}

	if err := CheckPasswordHash(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidPassword
	}

	session := &domain.Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(SessionTTL),
	}
	if err := m.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("auth: failed to create session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    session.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  session.ExpiresAt,
	})
	return user, nil
}

// Logout закрывает сессию и гасит cookie.
func (m *Manager) Logout(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		_ = m.store.DeleteSession(ctx, c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Expires:  time.Unix(0, 0),
	})
}

// CurrentUser возвращает пользователя активной сессии запроса.
func (m *Manager) CurrentUser(r *http.Request) (*domain.User, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return nil, false
	}
	user, err := m.store.GetSessionUser(r.Context(), c.Value)
	if err != nil {
		return nil, false
	}
	return user, true
}

// Decision - типизированный результат проверки прав.
type Decision struct {
	Allowed bool
	Reason  string
}

// CanManagePosts - единая политика доступа к созданию, изменению и удалению
// постов: требуется членство в группе "authors". Все защищенные обработчики
// пользуются этой проверкой, а не собственными запросами по группам.
func (m *Manager) CanManagePosts(ctx context.Context, user *domain.User) (Decision, error) {
	if user == nil {
		return Decision{Reason: "not authenticated"}, nil
	}
	ok, err := m.store.UserInGroup(ctx, user.ID, domain.GroupAuthors)
	if err != nil {
		return Decision{}, fmt.Errorf("auth: failed to check group membership: %w", err)
	}
	if !ok {
		return Decision{Reason: "authors group membership required"}, nil
	}
	return Decision{Allowed: true}, nil
}
