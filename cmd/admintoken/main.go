package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	security "github.com/linemk/storefront-payments/internal/jwt-new"
)

// выпускает токен оператора для /api/admin. Секрет берётся из JWT_SECRET, как у сервера.
func main() {
	var (
		subject string
		ttl     time.Duration
	)
	flag.StringVar(&subject, "subject", "", "operator name or email")
	flag.DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}

	token, err := security.NewToken(subject, security.RoleAdmin, ttl, secret)
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}
	fmt.Println(token)
}
