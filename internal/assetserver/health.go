package assetserver

import (
	"encoding/json"
	"net/http"
)

// Health is the body served at HealthPath.
type Health struct {
	Status   string `json:"status"`
	Port     int    `json:"port"`
	Sessions int    `json:"sessions"`
}

// HealthHandler reports the controller's state. sessions may be nil.
func HealthHandler(c *Controller, sessions func() int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := Health{Status: "stopped"}
		if handle := c.Handle(); handle != nil {
			h.Status = "ok"
			h.Port = handle.Port
		}
		if sessions != nil {
			h.Sessions = sessions()
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(h)
	})
}
