package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/diegomarin28/KERANA-sub001/internal/transport/http/response"
)

type contextKey string

const userIDKey contextKey = "user_id"

// UserIDHeader идентификатор вызывающего, выставленный шлюзом идентификации
const UserIDHeader = "X-User-ID"

// Identity кладёт X-User-ID в контекст. Движок доверяет заголовку и не аутентифицирует.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(UserIDHeader)
		if raw == "" {
			response.Unauthorized(w, "Missing "+UserIDHeader+" header")
			return
		}

		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			response.Unauthorized(w, "Invalid "+UserIDHeader+" header")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
	})
}

func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}
