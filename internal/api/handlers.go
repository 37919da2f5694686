package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/franz/culture-recs/internal/clean"
	"github.com/franz/culture-recs/internal/metrics"
	"github.com/franz/culture-recs/internal/recommend"
	"github.com/franz/culture-recs/internal/table"
	"github.com/franz/culture-recs/internal/util"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		util.ErrorLog("Failed to encode response: %v", err)
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": WelcomeMessage})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	for _, d := range clean.Domains {
		body[d.Collection()] = s.catalog.Len(d)
	}
	writeJSON(w, http.StatusOK, body)
}

// handleDomain serves title search (?titre=) or, when titre is empty, a
// random sample. The raw parameter is searched as given, blanks included.
// Title search returns every match; lookup failures answer with an empty list.
func (s *Server) handleDomain(d clean.Domain) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		title := r.URL.Query().Get("titre")

		opts := recommend.Options{
			SampleSize: recommend.LimitSample,
			Seed:       s.seed,
			Dedupe:     d != clean.Book,
		}
		kind := "title"
		if title == "" {
			kind = "sample"
		}

		start := time.Now()
		res, err := s.catalog.Query(d, title, opts)
		elapsed := time.Since(start)
		if err != nil {
			util.ErrorLog("Query %s %q failed: %v", d, title, err)
			writeJSON(w, http.StatusOK, []table.Record{})
			return
		}

		metrics.RecordQuery(string(d), kind, len(res.Records), elapsed)
		s.logger.LogQuery(string(d), title, len(res.Records), elapsed)
		util.DebugLog("GET %s titre=%q -> %d records", r.URL.Path, title, len(res.Records))

		writeJSON(w, http.StatusOK, res.Records)
	}
}
