// Command token mints a signed bearer token for local testing against the API.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joao-fontenele/roastdirect/internal/auth"
	"github.com/joao-fontenele/roastdirect/internal/config"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	userID := flag.String("user", "", "user id placed in the token subject")
	email := flag.String("email", "", "customer email for notifications")
	role := flag.String("role", string(auth.RoleCustomer), "customer or admin")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if *userID == "" {
		logger.Error("usage: token -user ID [-email ADDR] [-role customer|admin] [-ttl 1h]")
		os.Exit(1)
	}

	r := auth.Role(*role)
	if r != auth.RoleCustomer && r != auth.RoleAdmin {
		logger.Error("unknown role", slog.String("role", *role))
		os.Exit(1)
	}

	cfg, err := config.Load("")
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		logger.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}

	token, err := auth.NewSigner(cfg.JWTSecret, cfg.JWTIssuer).Sign(auth.Identity{
		UserID: *userID,
		Email:  *email,
		Role:   r,
	}, *ttl)
	if err != nil {
		logger.Error("failed to sign token", slog.String("error", err.Error()))
		os.Exit(1)
	}

	fmt.Println(token)
}
