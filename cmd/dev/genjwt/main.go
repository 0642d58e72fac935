// Prints a signed development token accepted by the API middleware.
//
//	genjwt -role admin -actor <uuid> -ttl 1h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func main() {
	role := flag.String("role", "member", "member or admin")
	actor := flag.String("actor", "", "member or admin UUID (random when empty)")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "change-this-secret"
	}

	actorID := *actor
	if actorID == "" {
		actorID = uuid.NewString()
	} else if _, err := uuid.Parse(actorID); err != nil {
		fmt.Fprintln(os.Stderr, "-actor must be a UUID")
		os.Exit(2)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": actorID,
		"role":    *role,
		"exp":     now.Add(*ttl).Unix(),
		"iat":     now.Unix(),
	}
	if iss := os.Getenv("JWT_ISSUER"); iss != "" {
		claims["iss"] = iss
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(signed)
}
