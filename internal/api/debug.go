package api

import (
    "encoding/json"
    "net/http"
    "os"
    "time"

    "freightquote/internal/buildinfo"
)

// DebugJSON reports build info and the effective runtime configuration,
// with secrets reduced to presence flags.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
    info := map[string]any{
        "build": buildinfo.Info(),
        "time":  time.Now().UTC().Format(time.RFC3339),
        "config": map[string]any{
            "PORT":                 os.Getenv("PORT"),
            "AUTH_MODE":            os.Getenv("AUTH_MODE"),
            "UPSTREAM_RPS":         os.Getenv("UPSTREAM_RPS"),
            "WEBHOOK_MAX_ATTEMPTS": os.Getenv("WEBHOOK_MAX_ATTEMPTS"),
            "HAS_DATABASE_URL":     os.Getenv("DATABASE_URL") != "",
            "HAS_REDIS_URL":        os.Getenv("REDIS_URL") != "",
            "HAS_P44_CREDENTIALS":  os.Getenv("P44_CLIENT_ID") != "",
            "HAS_FRESHX_API_KEY":   os.Getenv("FRESHX_API_KEY") != "",
        },
    }
    w.Header().Set("Content-Type", "application/json")
    _ = json.NewEncoder(w).Encode(info)
}
