package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"

	"github.com/UkralStul/newspaper-service/internal/auth"
	"github.com/UkralStul/newspaper-service/internal/domain"
	"github.com/UkralStul/newspaper-service/internal/handlers"
	"github.com/UkralStul/newspaper-service/internal/storage"
	"github.com/UkralStul/newspaper-service/internal/storage/inmemory"
	"github.com/UkralStul/newspaper-service/internal/storage/postgres"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const defaultPort = "8080"

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	storageType := flag.String("storage", "in-memory", "Storage type (in-memory or postgres)")
	cookieSecure := flag.Bool("cookie-secure", false, "Set Secure flag on session cookies")
	flag.Parse()

	var store storage.Storage
	var err error

	log.Printf("Starting server with %s storage", *storageType)
	if *storageType == "postgres" {
		dsn := os.Getenv("DATABASE_URL")
		if dsn == "" {
			log.Fatal("DATABASE_URL must be set for postgres storage")
		}
		store, err = postgres.New(dsn)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
	} else {
		store = inmemory.New()
	}

	ctx := context.Background()

	// Известные группы должны существовать до первого запроса.
	for _, name := range []string{domain.GroupCommon, domain.GroupAuthors} {
		if _, err := store.EnsureGroup(ctx, name); err != nil {
			log.Fatalf("failed to ensure group %q: %v", name, err)
		}
	}

	if *storageType != "postgres" {
		// Заполним данными для тестов
		fillWithMockData(store)
	}

	authManager := auth.NewManager(store, *cookieSecure)

	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	h := handlers.New(store, authManager)
	router.Mount("/news", h.Routes())

	log.Printf("listening on http://localhost:%s/news/", port)
	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatalf("server failed to start: %v", err)
	}
}

func fillWithMockData(s storage.Storage) {
	ctx := context.Background()

	// 1. Регистрируем демо-автора. Хеш пароля считаем честно, чтобы через
	// демо-аккаунт можно было залогиниться.
	hash, err := auth.HashPassword("demo-password")
	if err != nil {
		log.Fatalf("fillWithMockData: failed to hash password: %v", err)
	}
	user, err := s.CreateUser(ctx, &domain.User{
		Username:     "demo_author",
		Email:        "demo@example.com",
		PasswordHash: hash,
	})
	if err != nil {
		log.Fatalf("fillWithMockData: failed to create user: %v", err)
	}

	// 2. Повышаем его до автора.
	if err := s.AddUserToGroup(ctx, user.ID, domain.GroupAuthors); err != nil {
		log.Fatalf("fillWithMockData: failed to add user to authors: %v", err)
	}
	author, err := s.EnsureAuthor(ctx, user.ID)
	if err != nil {
		log.Fatalf("fillWithMockData: failed to create author: %v", err)
	}

	// 3. Пара категорий.
	politics, err := s.CreateCategory(ctx, "Политика")
	if err != nil {
		log.Fatalf("fillWithMockData: failed to create category: %v", err)
	}
	sport, err := s.CreateCategory(ctx, "Спорт")
	if err != nil {
		log.Fatalf("fillWithMockData: failed to create category: %v", err)
	}

	// 4. Новость и статья с категориями.
	news, err := s.CreatePost(ctx, &domain.Post{
		AuthorID: user.ID,
		PostType: domain.PostTypeNews,
		Title:    "Первая новость",
		Content:  "Это содержимое тестовой новости. Здесь мы обсуждаем события дня.",
	}, []uint{politics.ID})
	if err != nil {
		log.Fatalf("fillWithMockData: failed to create news post: %v", err)
	}
	_, err = s.CreatePost(ctx, &domain.Post{
		AuthorID: user.ID,
		PostType: domain.PostTypeArticle,
		Title:    "Первая статья",
		Content:  "Это содержимое тестовой статьи. Длинный разбор спортивных итогов недели.",
	}, []uint{sport.ID})
	if err != nil {
		log.Fatalf("fillWithMockData: failed to create article post: %v", err)
	}

	// 5. Комментарий автора к собственной новости.
	_, err = s.CreateComment(ctx, &domain.Comment{
		PostID:   news.ID,
		UserID:   user.ID,
		AuthorID: author.ID,
		Text:     "Отличный пост! Очень информативно.",
	})
	if err != nil {
		log.Fatalf("fillWithMockData: failed to create comment: %v", err)
	}

	log.Printf("Mock data filled successfully. Demo author ID: %d, news post ID: %d", author.ID, news.ID)
}
