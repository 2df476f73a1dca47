package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"

	"trivia-sync/internal/domain"
	"trivia-sync/internal/protocol"
)

const qrSize = 320

// StateSource exposes what the control process knows about the session and its displays.
type StateSource interface {
	Snapshot() protocol.Snapshot
	Displays(ctx context.Context) ([]domain.DisplayPresence, error)
}

// NewRouter wires the HTTP surface. publicURL is the externally reachable base used for the
// display join QR code; when empty it is derived from the request.
func NewRouter(channel protocol.Channel, state StateSource, publicURL string) http.Handler {
	ws := NewWSHandler(channel)

	mux := httprouter.New()
	mux.GET("/healthz", serveHealthCheck)
	mux.GET("/ws", ws.ServeWS)
	mux.GET("/state", serveState(state))
	mux.GET("/displays", serveDisplays(state))
	mux.GET("/display/qr", serveDisplayQR(publicURL))

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(mux)
}

func serveHealthCheck(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok"))
}

func serveState(state StateSource) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeJSON(w, http.StatusOK, state.Snapshot())
	}
}

func serveDisplays(state StateSource) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		displays, err := state.Displays(r.Context())
		if err != nil {
			log.Warn().Err(err).Msg("list displays failed")
			http.Error(w, "presence unavailable", http.StatusServiceUnavailable)
			return
		}
		if displays == nil {
			displays = []domain.DisplayPresence{}
		}
		writeJSON(w, http.StatusOK, displays)
	}
}

func serveDisplayQR(publicURL string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		base := strings.TrimSuffix(publicURL, "/")
		if base == "" {
			scheme := "http"
			if r.TLS != nil {
				scheme = "https"
			}
			if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
				scheme = proto
			}
			base = scheme + "://" + r.Host
		}

		png, err := qrcode.Encode(base+"/display", qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("write response failed")
	}
}
