package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const userIDLocal = "user_id"

var parseMiddlewareClaimsFn = jwt.ParseWithClaims

// JWTMiddleware accepts only HS256 bearer tokens signed with secret and
// stores the caller's id in locals.
func JWTMiddleware(secret string) fiber.Handler {
	keyFn := func(_ *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}
	methods := jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})

	return func(c *fiber.Ctx) error {
		token := parseBearer(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		parsed, err := parseMiddlewareClaimsFn(token, &Claims{}, keyFn, methods)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		claims, ok := parsed.Claims.(*Claims)
		if !ok || !parsed.Valid || claims.UserID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "token invalid")
		}

		c.Locals(userIDLocal, claims.UserID)
		return c.Next()
	}
}

// CallerID returns the id stored by JWTMiddleware, or "" on public routes.
func CallerID(c *fiber.Ctx) string {
	id, _ := c.Locals(userIDLocal).(string)
	return id
}
