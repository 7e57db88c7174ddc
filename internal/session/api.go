package session

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Iron-Ham/drawbridge/internal/errors"
	"github.com/Iron-Ham/drawbridge/internal/lifecycle"
)

// Info is the JSON form of an open session.
type Info struct {
	InstanceID string `json:"instance_id"`
	URL        string `json:"url"`
	Target     string `json:"target,omitempty"`
	State      string `json:"state"`
	Attached   bool   `json:"attached"`
	Empty      bool   `json:"empty"`
}

// InfoOf snapshots s.
func InfoOf(s *Session) Info {
	return Info{
		InstanceID: s.ID(),
		URL:        s.URL(),
		Target:     s.TargetPath(),
		State:      s.State().String(),
		Attached:   s.Attached(),
		Empty:      s.Empty(),
	}
}

// OpenBody is the request body of POST /_drawbridge/sessions.
type OpenBody struct {
	Target   string `json:"target,omitempty"`   // Vault-relative diagram; "" starts a new one
	Name     string `json:"name,omitempty"`     // File name for a new diagram
	Document string `json:"document,omitempty"` // Vault-relative note that receives the embed
	Cursor   *int   `json:"cursor,omitempty"`   // Byte offset in Document to insert at
}

// APIHandler serves the host control endpoints:
//
//	GET    /_drawbridge/sessions               list open sessions
//	POST   /_drawbridge/sessions               open, or reuse, a session
//	DELETE /_drawbridge/sessions/{instanceID}  close a session
//
// Requests from a browser page of another origin are refused.
func (m *Manager) APIHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			if handle := m.server.Handle(); handle == nil || origin != handle.Origin() {
				writeJSONError(w, http.StatusForbidden, "origin not allowed")
				return
			}
		}

		id := chi.URLParam(r, "instanceID")
		switch {
		case id == "" && r.Method == http.MethodGet:
			m.listSessions(w)
		case id == "" && r.Method == http.MethodPost:
			m.openSession(w, r)
		case id != "" && r.Method == http.MethodGet:
			m.getSession(w, id)
		case id != "" && r.Method == http.MethodDelete:
			m.closeSession(w, r, id)
		default:
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})
}

func (m *Manager) listSessions(w http.ResponseWriter) {
	sessions := m.Sessions()
	out := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, InfoOf(s))
	}
	writeJSON(w, http.StatusOK, out)
}

func (m *Manager) getSession(w http.ResponseWriter, id string) {
	s, ok := m.Get(id)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "unknown session")
		return
	}
	writeJSON(w, http.StatusOK, InfoOf(s))
}

func (m *Manager) openSession(w http.ResponseWriter, r *http.Request) {
	var body OpenBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	req := OpenRequest{TargetPath: body.Target, FileName: body.Name}
	if body.Document != "" {
		p, err := m.policy.Vault().Clean(body.Document)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		doc := lifecycle.NewFileDocument(m.policy.Vault(), p)
		if body.Cursor != nil {
			doc = doc.WithCursor(*body.Cursor)
		}
		req.Document = doc
	}

	s, err := m.Open(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, errors.ErrInvalidInput):
			status = http.StatusBadRequest
		case errors.Is(err, errors.ErrTargetClaimed):
			status = http.StatusConflict
		}
		writeJSONError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, InfoOf(s))
}

func (m *Manager) closeSession(w http.ResponseWriter, r *http.Request, id string) {
	res, err := m.Close(r.Context(), id)
	if err != nil {
		if errors.Is(err, errors.ErrSessionNotFound) {
			writeJSONError(w, http.StatusNotFound, "unknown session")
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"instance_id":        id,
		"discarded":          res.Discarded,
		"trash_path":         res.TrashPath,
		"references_removed": res.ReferencesRemoved,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
