// gentoken signs a service token for the /v1 API with JWT_SECRET.
//
// Usage: gentoken [-role order-service|admin] [-sub name] [-ttl 720h]
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"stockreserve/internal/middleware"

	"github.com/golang-jwt/jwt/v5"
)

func main() {
	role := flag.String("role", middleware.RoleOrderService, "role claim")
	sub := flag.String("sub", "order-service", "subject claim")
	ttl := flag.Duration("ttl", 30*24*time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		os.Exit(1)
	}

	tok, err := sign(secret, *role, *sub, *ttl, time.Now())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(tok)
}

func sign(secret, role, sub string, ttl time.Duration, now time.Time) (string, error) {
	claims := middleware.ServiceClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
