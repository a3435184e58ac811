package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/staffrewards/config"
	"github.com/cppla/staffrewards/models"
	"github.com/cppla/staffrewards/store"
	"github.com/cppla/staffrewards/utils"
)

const (
	// ContextUserIDKey is the key used to store the local user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey  = "username"
	ContextRoleKey      = "role"
	ContextCompanyIDKey = "company_id"
)

// UserResolver maps an identity-provider subject onto a local user.
type UserResolver interface {
	EnsureUser(ctx context.Context, id store.Identity) (*models.User, error)
}

// AuthRequired ensures the request carries a valid identity-provider JWT and
// resolves it to a local, active user.
func AuthRequired(users UserResolver) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "authorization header missing")
			ctx.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			utils.Error(ctx, http.StatusUnauthorized, 40102, "invalid authorization header format")
			ctx.Abort()
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40103, "empty bearer token")
			ctx.Abort()
			return
		}

		claims, err := utils.ParseToken(tokenString)
		if err != nil {
			utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
			ctx.Abort()
			return
		}

		companyID := strings.TrimSpace(claims.CompanyID)
		if companyID == "" {
			companyID = config.Get().DefaultCompany
		}
		user, err := users.EnsureUser(ctx.Request.Context(), store.Identity{
			Subject:   claims.Subject,
			Username:  claims.Username,
			Email:     claims.Email,
			CompanyID: companyID,
			Role:      claims.Role,
		})
		if err != nil {
			utils.Logger.Error("resolve user failed", zap.String("subject", claims.Subject), zap.Error(err))
			utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to load user")
			ctx.Abort()
			return
		}
		if !user.Active {
			utils.Error(ctx, http.StatusForbidden, 40310, "account disabled")
			ctx.Abort()
			return
		}

		role := user.Role
		if claims.Role == models.RoleAdmin {
			role = models.RoleAdmin
		}
		ctx.Set(ContextUserIDKey, user.ID)
		ctx.Set(ContextUsernameKey, user.Username)
		ctx.Set(ContextRoleKey, role)
		// The stored company wins so a user cannot hop companies by re-issuing claims.
		ctx.Set(ContextCompanyIDKey, user.CompanyID)
		ctx.Next()
	}
}

// AdminRequired allows admins by role, or by username when listed in AdminUsernames.
func AdminRequired() gin.HandlerFunc {
	admins := map[string]bool{}
	for _, name := range config.Get().AdminUsernames {
		admins[strings.ToLower(name)] = true
	}
	return func(ctx *gin.Context) {
		if ctx.GetString(ContextRoleKey) == models.RoleAdmin || admins[strings.ToLower(ctx.GetString(ContextUsernameKey))] {
			ctx.Next()
			return
		}
		utils.Error(ctx, http.StatusForbidden, 40301, "admin only")
		ctx.Abort()
	}
}
