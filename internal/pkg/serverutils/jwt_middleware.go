package serverutils

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const UserIDLocal = "user_id"

// IdentityMiddleware attaches the user_id claim of a valid HS256 bearer
// token to the request. Requests without a usable token pass through
// anonymously.
func IdentityMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if secret == "" {
			return ctx.Next()
		}

		authHeader := ctx.Get("Authorization")
		if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
			return ctx.Next()
		}
		tokenStr := strings.TrimSpace(authHeader[7:])

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			return ctx.Next()
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return ctx.Next()
		}
		if userID, ok := claims["user_id"].(string); ok && userID != "" {
			ctx.Locals(UserIDLocal, userID)
		}
		return ctx.Next()
	}
}

// CallerID returns the identity set by IdentityMiddleware, or nil.
func CallerID(ctx *fiber.Ctx) *string {
	userID, ok := ctx.Locals(UserIDLocal).(string)
	if !ok || userID == "" {
		return nil
	}
	return &userID
}
