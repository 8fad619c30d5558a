package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// RoomConfig — описание одной комнаты из конфигурации.
type RoomConfig struct {
	Name        string
	Description string
}

// Config хранит все переменные окружения для проекта.
type Config struct {
	DatabaseURL  string
	Rooms        []RoomConfig
	HistoryLimit int
}

// DefaultHistoryLimit — ёмкость истории комнаты, если не задана явно.
const DefaultHistoryLimit = 50

// Load загружает конфигурацию из .env или переменных окружения.
// Список комнат фиксируется здесь один раз: на лету комнаты не
// появляются и не исчезают.
func Load() *Config {

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	rooms := parseRooms(os.Getenv("CHAT_ROOMS"))
	if len(rooms) == 0 {
		// Дефолт для локальной разработки
		rooms = []RoomConfig{{Name: "lobby", Description: "General lobby"}}
		log.Printf("[dev] CHAT_ROOMS not set, using default room %q", rooms[0].Name)
	}

	limit := DefaultHistoryLimit
	if raw := os.Getenv("CHAT_HISTORY_LIMIT"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			log.Fatalf("CHAT_HISTORY_LIMIT must be a positive integer, got %q", raw)
		}
		limit = n
	}

	return &Config{
		DatabaseURL:  dsn,
		Rooms:        rooms,
		HistoryLimit: limit,
	}
}

// parseRooms разбирает CHAT_ROOMS вида "lobby:Общий зал,dev:Разработка".
// Описание после двоеточия необязательно.
func parseRooms(raw string) []RoomConfig {
	var rooms []RoomConfig
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, description, _ := strings.Cut(entry, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		rooms = append(rooms, RoomConfig{
			Name:        name,
			Description: strings.TrimSpace(description),
		})
	}
	return rooms
}
