// Command admintoken mints a bearer token for the authority endpoints using
// the server's JWT settings.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	jwttoken "certledger/internal/jwt_token"
	"certledger/internal/platform/config"
	"certledger/pkg/platform/middleware/auth"
)

func main() {
	subject := flag.String("subject", "", "operator identity recorded in audit events")
	role := flag.String("role", auth.RoleAdmin, "role claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if err := run(*subject, *role, *ttl); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(subject, role string, ttl time.Duration) error {
	if subject == "" {
		return fmt.Errorf("-subject is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("-ttl must be positive")
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	token, err := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience).
		GenerateToken(subject, role, ttl)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	fmt.Println(token)
	return nil
}
