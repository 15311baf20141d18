package server

import (
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/lxzan/gws"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"go.uber.org/zap"
)

// ProfileSource lists the profiles a client may select.
type ProfileSource interface {
	ListProfiles() ([]string, error)
	ActiveProfile() string
}

// ProfilesResponse is the body of GET /api/profiles.
type ProfilesResponse struct {
	Active   string   `json:"active"`
	Profiles []string `json:"profiles"`
}

func handleWebSocket(upgrader *gws.Upgrader, logger *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		socket, err := upgrader.Upgrade(w, r)
		if err != nil {
			logger.Warnw("websocket upgrade failed", "error", err)
			return
		}
		go socket.ReadLoop()
	}
}

func handleProfiles(src ProfileSource, logger *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		names, err := src.ListProfiles()
		if err != nil {
			logger.Errorw("listing profiles", "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if names == nil {
			names = []string{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ProfilesResponse{Active: src.ActiveProfile(), Profiles: names})
	}
}

// minified wraps the static file server so html, css and js are minified on
// the way out.
func minified(next http.Handler) http.Handler {
	m := minify.New()
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/css", css.Minify)
	m.AddFuncRegexp(regexp.MustCompile("^(application|text)/(x-)?(java|ecma)script$"), js.Minify)
	return m.Middleware(next)
}
