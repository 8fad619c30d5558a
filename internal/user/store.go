package user

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq" // драйвер Postgres
	"golang.org/x/crypto/bcrypt"
)

// UserStore — то, что нужно web-слою от хранилища пользователей.
// Интерфейс позволяет подставлять in-memory мок в тестах handlers.
type UserStore interface {
	Register(username, password string) error
	Authenticate(username, password string) bool
	Close() error
}

// Store — хранилище пользователей поверх Postgres.
// Пароли храним только как bcrypt-хэши.
type Store struct {
	Db *sql.DB
}

// NewStore открывает соединение с БД и накатывает схему.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{Db: db}, nil
}

// Register регистрирует нового пользователя.
// 1. Проверяет, что логин и пароль не пустые.
// 2. Ограничивает длину логина (макс. 24 символа).
// 3. Хэширует пароль с помощью bcrypt и пишет строку в БД.
// Возвращает ошибку, если имя занято, некорректное или при проблемах с хэшированием.
func (store *Store) Register(username, password string) error {
	// Убираем пробелы в начале/конце
	username = strings.TrimSpace(username)

	if username == "" || password == "" {
		return fmt.Errorf("username and password are required")
	}
	if len(username) > 24 {
		return fmt.Errorf("username too long (max 24)")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	_, err = store.Db.Exec(
		`INSERT INTO users (username, password_hash, created_at) VALUES ($1, $2, $3)`,
		username, string(hash), time.Now(),
	)
	if err != nil {
		// Нарушение уникальности переводим в читаемое сообщение
		if strings.Contains(err.Error(), "unique") || strings.Contains(err.Error(), "duplicate") {
			return fmt.Errorf("username already exists")
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Authenticate проверяет логин и пароль пользователя.
// Возвращает true, если пользователь существует и пароль совпал с хэшем.
func (store *Store) Authenticate(username, password string) bool {
	var hash string
	err := store.Db.QueryRow(
		`SELECT password_hash FROM users WHERE username=$1`, username,
	).Scan(&hash)
	if err != nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Close закрывает соединение с БД.
func (store *Store) Close() error {
	return store.Db.Close()
}
