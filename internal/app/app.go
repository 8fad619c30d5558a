package app

import (
	"log"
	"net/http"
	"os"

	"github.com/go-portfolio/chat-rooms/config"
	"github.com/go-portfolio/chat-rooms/internal/auth"
	"github.com/go-portfolio/chat-rooms/internal/chat"
	"github.com/go-portfolio/chat-rooms/internal/user"
	"github.com/go-portfolio/chat-rooms/internal/web"
)

type App struct {
	Mux *http.ServeMux
}

func New() *App {
	// Загружаем конфиг
	cfg := config.Load()

	// User store
	store, err := user.NewStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init user store: %v", err)
	}

	// JWT secret
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret"
		log.Printf("[dev] JWT_SECRET not set, using default secret")
	}
	auth.InitSecret([]byte(secret))

	// Справочник комнат: строится один раз из конфигурации,
	// дальше состав комнат не меняется.
	metadata := make([]chat.RoomMetadata, 0, len(cfg.Rooms))
	for _, rc := range cfg.Rooms {
		metadata = append(metadata, chat.RoomMetadata{
			Name:        rc.Name,
			Description: rc.Description,
		})
	}
	rooms := chat.NewRoomManager(metadata, cfg.HistoryLimit)
	for _, md := range metadata {
		log.Printf("room %q ready (history limit %d)", md.Name, cfg.HistoryLimit)
	}

	// Внутренние глобальные сервисы
	web.Rooms = rooms
	web.Users = store

	// Роуты
	mux := http.NewServeMux()
	mux.HandleFunc("/api/register", web.RegisterHandler)
	mux.HandleFunc("/api/login", web.LoginHandler)
	mux.HandleFunc("/api/rooms", web.RoomsHandler)
	mux.Handle("/ws", web.AuthMiddleware(http.HandlerFunc(web.ChatConnectionHandler)))

	return &App{Mux: mux}
}
