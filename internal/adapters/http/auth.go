package httpadapter

import (
	"context"
	"net/http"
	"strings"

	"github.com/foodops/food-agent-api/internal/core/domain"
)

// Authentication happens at the gateway; this service trusts the identity
// headers it forwards and only reconstructs the caller from them.
const (
	userIDHeader    = "X-User-Id"
	userNameHeader  = "X-User-Name"
	userEmailHeader = "X-User-Email"
	userRoleHeader  = "X-User-Role"
	userSitesHeader = "X-User-Sites"
)

type userContextKey struct{}

func userFromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(userContextKey{}).(domain.User)
	return user, ok
}

func authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(userIDHeader))
		if userID == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "missing identity headers",
			})
			return
		}

		user := domain.User{
			ID:    userID,
			Name:  strings.TrimSpace(r.Header.Get(userNameHeader)),
			Email: strings.TrimSpace(r.Header.Get(userEmailHeader)),
			Role:  domain.Role(strings.TrimSpace(r.Header.Get(userRoleHeader))),
		}
		if sites := strings.TrimSpace(r.Header.Get(userSitesHeader)); sites != "" {
			for _, site := range strings.Split(sites, ",") {
				if site = strings.TrimSpace(site); site != "" {
					user.SiteIDs = append(user.SiteIDs, site)
				}
			}
		}

		ctx := context.WithValue(r.Context(), userContextKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
