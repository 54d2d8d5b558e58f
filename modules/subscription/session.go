package subscription

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-kit/log/level"

	"github.com/grafana/logrooms/pkg/util/log"
)

// ServeWS upgrades r to the subscriber WebSocket channel, joins the
// requested room (the "room" query parameter, default room if absent), and
// drives the read loop until the connection closes.
//
// If cfg.AuthRequired, the request must carry a matching bearer token in
// either the Authorization header ("Bearer <token>") or the "token" query
// parameter; a mismatch is rejected before upgrading.
func (m *Manager) ServeWS(w http.ResponseWriter, r *http.Request) {
	if m.cfg.AuthRequired && !validSubscriberToken(r, m.cfg.AuthToken) {
		http.Error(w, "invalid or missing token", http.StatusUnauthorized)
		return
	}

	conn, err := Upgrade(w, r)
	if err != nil {
		level.Warn(log.Logger).Log("msg", "subscriber websocket upgrade failed", "err", err)
		return
	}

	roomID := r.URL.Query().Get("room")
	sub := m.Join(conn, roomID)
	defer m.Leave(sub)

	m.readLoop(sub)
}

// readLoop decodes one JSON command per message until conn.ReadJSON errors,
// at which point the subscriber is considered disconnected.
func (m *Manager) readLoop(sub *Subscriber) {
	for {
		var cmd command
		if err := sub.conn.ReadJSON(&cmd); err != nil {
			return
		}
		m.HandleCommand(sub, cmd)
	}
}

func validSubscriberToken(r *http.Request, want string) bool {
	got := r.URL.Query().Get("token")
	if got == "" {
		const prefix = "Bearer "
		auth := r.Header.Get("Authorization")
		if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
			got = auth[len(prefix):]
		}
	}
	if len(got) < 32 || len(got) > 256 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
