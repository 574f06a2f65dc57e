package api

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/mentorhive/relay/internal/relay"
	"github.com/mentorhive/relay/internal/types"
)

const defaultHistoryLimit = 50

func (app *RelayApp) writeJson(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		app.log.Printf("failed to write response: %v", err)
	}
}

func (app *RelayApp) healthz(w http.ResponseWriter, r *http.Request) {
	if err := app.store.Ping(r.Context()); err != nil {
		app.log.Printf("health check failed: %v", err)
		app.writeJson(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	app.writeJson(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getMessages returns chat history, either for a squad (project_id) or a
// direct conversation between the caller and peer_id.
func (app *RelayApp) getMessages(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		app.writeJson(w, http.StatusUnauthorized, NewUnauthorizedError("not authenticated"))
		return
	}

	limit := int64(defaultHistoryLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			app.writeJson(w, http.StatusBadRequest, NewBadRequestError("invalid limit"))
			return
		}
		limit = parsed
	}

	projectId := r.URL.Query().Get("project_id")
	peerId := r.URL.Query().Get("peer_id")

	switch {
	case projectId != "" && peerId != "":
		app.writeJson(w, http.StatusBadRequest, NewBadRequestError("project_id and peer_id are mutually exclusive"))
	case projectId != "":
		msgs, err := app.store.ProjectMessages(r.Context(), projectId, limit)
		if err != nil {
			app.log.Printf("fetch project messages: %v", err)
			app.writeJson(w, http.StatusInternalServerError, NewInternalServerError("failed to fetch messages"))
			return
		}
		app.writeJson(w, http.StatusOK, msgs)
	case peerId != "":
		msgs, err := app.store.Conversation(r.Context(), userId, peerId, limit)
		if err != nil {
			app.log.Printf("fetch conversation: %v", err)
			app.writeJson(w, http.StatusInternalServerError, NewInternalServerError("failed to fetch messages"))
			return
		}
		app.writeJson(w, http.StatusOK, msgs)
	default:
		app.writeJson(w, http.StatusBadRequest, NewBadRequestError("project_id or peer_id is required"))
	}
}

// serveWs upgrades the request and attaches the connection to the
// gateway. The user's profile is resolved once at connect time.
func (app *RelayApp) serveWs(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		app.writeJson(w, http.StatusUnauthorized, NewUnauthorizedError("not authenticated"))
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(app.config.AllowedOrigins, origin)
		},
	}

	user := types.User{Id: userId}
	if profile, err := app.directory.Profile(r.Context(), userId); err != nil {
		app.log.Printf("profile lookup for %s failed: %v", userId, err)
	} else {
		user.Username = profile.Name
		user.AvatarUrl = profile.AvatarUrl
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		app.log.Printf("websocket upgrade failed: %v", err)
		return
	}

	client := relay.NewClient(conn, app.gateway, app.log, user)
	app.gateway.RegisterChan <- client

	go client.Write()
	go client.Read()
}
