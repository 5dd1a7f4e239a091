package server

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"gonum.org/v1/plot"

	"github.com/openclimatefix/turbine-selector/internal/chart"
	"github.com/openclimatefix/turbine-selector/internal/selection"
	"github.com/openclimatefix/turbine-selector/internal/turbine"
	"github.com/openclimatefix/turbine-selector/internal/view"
)

// handleSelect answers GET /select?Q=&H=&freq= with every turbine whose
// envelope contains (Q, H) and the nominated best.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	q, err := selection.ParseQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.Select(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// handleResults answers GET /results with the grouped results page.
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	q, err := selection.ParseQuery(values)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	state, err := view.ParseState(values)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.Select(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view.Build(res, state))
}

func (s *Server) handleTurbines(w http.ResponseWriter, r *http.Request) {
	ds, err := s.svc.Turbines(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ds)
}

func (s *Server) handleTurbine(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.svc.Turbine(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// handleEfficiency answers GET /efficiency?id= with the turbine's samples
// ordered by flow.
func (s *Server) handleEfficiency(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.URL.Query().Get("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	samples, err := s.svc.Efficiency(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, samples)
}

// handleEnvelopeChart draws the envelopes of the turbines matching Q and H,
// highlighting the best. With id set only that turbine is drawn.
func (s *Server) handleEnvelopeChart(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	q, err := selection.ParseQuery(values)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	format, err := chart.ParseFormat(values.Get("format"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	opts := chart.EnvelopeOptions{Query: &q}
	if raw := values.Get("id"); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		d, err := s.svc.Turbine(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		opts.Title = d.Name
		opts.Turbines = []turbine.Descriptor{d}
		opts.Highlight = &d.ID
	} else {
		res, err := s.svc.Select(r.Context(), q)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		opts.Turbines = res.Matched
		if res.Best != nil {
			opts.Highlight = &res.Best.ID
		}
	}

	p, err := chart.Envelope(opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeChart(w, r, p, format)
}

func (s *Server) handleEfficiencyChart(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	id, err := parseID(values.Get("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	format, err := chart.ParseFormat(values.Get("format"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	d, err := s.svc.Turbine(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	samples, err := s.svc.Efficiency(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := chart.Efficiency(d, samples)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeChart(w, r, p, format)
}

func (s *Server) writeChart(w http.ResponseWriter, r *http.Request, p *plot.Plot, format chart.Format) {
	var buf bytes.Buffer
	if err := chart.Render(&buf, p, format); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func parseID(raw string) (int32, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, turbine.Errorf(turbine.CodeInvalidQuery, "id is required")
	}
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, turbine.Errorf(turbine.CodeInvalidQuery, "id must be an integer, got %q", raw)
	}
	return int32(id), nil
}
