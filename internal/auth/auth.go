package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"

	"entrevia/internal/utils/extractor"
)

type Config struct {
	Secret string
}

func ReadConfig() *Config {
	v := viper.New()
	_ = v.BindEnv("AUTH_JWT_SECRET")
	return &Config{Secret: v.GetString("AUTH_JWT_SECRET")}
}

// Identity is the verified claim set the rest of the server works with.
type Identity struct {
	UID    string
	Name   string
	Email  string
	Avatar string
	Plan   string
}

// VerifyToken validates an HS256 bearer token and extracts the identity.
// The "Bearer " prefix is optional.
func VerifyToken(tokenString, secret string) (*Identity, error) {
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")
	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	identity := &Identity{
		UID:    claimString(claims, "sub", "uid", "user_id"),
		Name:   claimString(claims, "name", "displayName"),
		Email:  claimString(claims, "email"),
		Avatar: claimString(claims, "picture", "avatar", "photoURL"),
		Plan:   claimString(claims, "plan"),
	}
	if identity.UID == "" {
		return nil, errors.New("token has no subject")
	}
	return identity, nil
}

func claimString(claims jwt.MapClaims, keys ...string) string {
	for _, key := range keys {
		if s, ok := claims[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Middleware rejects requests without a valid bearer token and exposes the
// identity to downstream handlers through the request context.
func Middleware(config *Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := VerifyToken(r.Header.Get("Authorization"), config.Secret)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"detail":"Credenciais invalidas"}`))
				return
			}

			ctx := extractor.WithValues(r.Context(), map[string][]string{
				extractor.UserID:      {identity.UID},
				extractor.UserName:    {identity.Name},
				extractor.UserEmail:   {identity.Email},
				extractor.UserAvatar:  {identity.Avatar},
				extractor.UserPlan:    {identity.Plan},
				extractor.BearerToken: {strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")},
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
