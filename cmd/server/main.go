package main

import (
	"log"
	"net/http"

	"github.com/go-portfolio/chat-rooms/internal/app"

	"github.com/joho/godotenv"
)

func main() {
	// Локально читаем .env, в продакшене переменные берутся из окружения
	_ = godotenv.Load("../../.env")

	a := app.New()

	addr := ":8080"
	log.Printf("Server listening on %s", addr)
	if err := http.ListenAndServe(addr, a.Mux); err != nil {
		log.Fatal(err) // Завершаем при ошибке запуска сервера
	}
}
