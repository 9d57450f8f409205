package middleware

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/gema-training-api/internal/models"
	"github.com/noah-isme/gema-training-api/internal/utils"
)

const clockSkew = 30 * time.Second

// rolePrecedence orders training roles when a token lists several.
var rolePrecedence = map[string]int{
	models.RoleAdmin:         4,
	models.RoleTrainingStaff: 3,
	models.RoleInstructor:    2,
	models.RoleTrainee:       1,
}

var roleAliases = map[string]string{
	"staff":          models.RoleTrainingStaff,
	"training-staff": models.RoleTrainingStaff,
	"trainingstaff":  models.RoleTrainingStaff,
	"teacher":        models.RoleInstructor,
	"trainer":        models.RoleInstructor,
	"student":        models.RoleTrainee,
	"administrator":  models.RoleAdmin,
}

// JWTProtected validates HMAC bearer tokens and binds user_id and user_role locals.
func JWTProtected(secret string) fiber.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithLeeway(clockSkew),
	)
	key := []byte(secret)

	return func(c *fiber.Ctx) error {
		authorization := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		scheme, tokenString, found := strings.Cut(authorization, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}
		tokenString = strings.TrimSpace(tokenString)
		if tokenString == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		claims := jwt.MapClaims{}
		token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
			return key, nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		userID, ok := userIDFromClaims(claims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "token subject missing")
		}
		c.Locals("user_id", userID)
		if role := roleFromClaims(claims); role != "" {
			c.Locals("user_role", role)
		}

		return c.Next()
	}
}

func userIDFromClaims(claims jwt.MapClaims) (uint, bool) {
	for _, key := range []string{"sub", "user_id", "id"} {
		value, ok := claims[key]
		if !ok {
			continue
		}
		if id, err := parseUserID(value); err == nil && id != 0 {
			return id, true
		}
	}
	return 0, false
}

func parseUserID(value interface{}) (uint, error) {
	switch v := value.(type) {
	case float64:
		if v < 0 || v != float64(uint(v)) {
			return 0, fmt.Errorf("invalid subject")
		}
		return uint(v), nil
	case string:
		parsed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, err
		}
		return uint(parsed), nil
	default:
		return 0, fmt.Errorf("unsupported subject type %T", value)
	}
}

// roleFromClaims reads "role" or "roles"; with several roles the most privileged wins.
func roleFromClaims(claims jwt.MapClaims) string {
	for _, key := range []string{"role", "roles"} {
		switch v := claims[key].(type) {
		case string:
			if role := canonicalRole(v); role != "" {
				return role
			}
		case []interface{}:
			best := ""
			for _, item := range v {
				name, ok := item.(string)
				if !ok {
					continue
				}
				role := canonicalRole(name)
				if role != "" && rolePrecedence[role] > rolePrecedence[best] {
					best = role
				}
			}
			if best != "" {
				return best
			}
		}
	}
	return ""
}

// canonicalRole lowercases a role and folds known aliases onto the training roles.
func canonicalRole(raw string) string {
	role := strings.ToLower(strings.TrimSpace(raw))
	if alias, ok := roleAliases[role]; ok {
		return alias
	}
	return role
}
