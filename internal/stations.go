package internal

import (
	"net/http"
	"strings"

	"surety-registry-api/internal/store"
)

// listStations returns the configured court stations. Without a configured
// list it falls back to the stations already in use.
func (s *Server) listStations(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r)

	stations := s.Config.CourtStations
	if len(stations) == 0 {
		var err error
		stations, err = store.ListStations(r.Context(), s.DB)
		if err != nil {
			serverError(w, r, "list stations", err)
			return
		}
	}

	out := make([]string, 0, len(stations))
	for _, name := range stations {
		if params.q == "" || strings.Contains(strings.ToLower(name), strings.ToLower(params.q)) {
			out = append(out, name)
		}
	}
	sendListResponse(w, out, params)
}
