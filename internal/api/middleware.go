package api

import (
	"net/http"
)

// errorHandler recovers from panicking handlers and converts the panic
// into a 500 so a bad request cannot take down the server.
func (app *RelayApp) errorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				app.log.Printf("panic serving %s %s: %v", r.Method, r.URL.Path, err)
				app.writeJson(w, http.StatusInternalServerError,
					NewInternalServerError("internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware authenticates the request from the session cookie and
// stashes the user id in the request context.
func (app *RelayApp) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("token")
		if err != nil {
			app.writeJson(w, http.StatusUnauthorized, NewUnauthorizedError("missing session token"))
			return
		}

		userId, err := extractUserIdFromToken(cookie.Value, app.config.SigningKey)
		if err != nil {
			app.log.Printf("rejected token: %v", err)
			app.writeJson(w, http.StatusUnauthorized, NewUnauthorizedError("invalid session token"))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserId(r.Context(), userId)))
	})
}
