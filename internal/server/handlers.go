package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cdtdelta/spyconsole/internal/dashboard"
	"github.com/cdtdelta/spyconsole/internal/database"
	"github.com/cdtdelta/spyconsole/internal/model"
	"github.com/cdtdelta/spyconsole/internal/timeline"
)

// -- Console --

func (s *Server) getConsole(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.svc.Console(q.Get("filter"), q.Get("q"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) exportCSV(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="spy_console.csv"`)
	if err := s.svc.ExportCSV(w, q.Get("filter"), q.Get("q")); err != nil {
		w.Header().Del("Content-Disposition")
		s.writeError(w, r, err)
	}
}

// -- Timeline --

func (s *Server) getMarkers(w http.ResponseWriter, r *http.Request) {
	duration, err := floatParam(r, "duration")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.Markers(duration)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type positionRequest struct {
	ClientX  float64       `json:"clientX"`
	Rect     timeline.Rect `json:"rect"`
	Duration float64       `json:"duration"`
}

func (s *Server) postPosition(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.PositionToTime(req.ClientX, req.Rect, req.Duration))
}

func (s *Server) postGesture(w http.ResponseWriter, r *http.Request) {
	var g dashboard.Gesture
	if err := decodeBody(w, r, &g); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.TrackGesture(r.Context(), g)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type timeframeRequest struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Note  string  `json:"note"`
}

func (s *Server) markTimeframe(w http.ResponseWriter, r *http.Request) {
	var req timeframeRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	tf, err := s.svc.MarkTimeframe(r.Context(), req.Start, req.End, req.Note)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tf)
}

func (s *Server) listTimeframes(w http.ResponseWriter, r *http.Request) {
	frames, err := s.svc.Timeframes()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, frames)
}

func (s *Server) deleteTimeframe(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteTimeframe(r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// -- Archive --

func (s *Server) getHistogram(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := timeParam(q.Get("from"), s.svc.Location())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	to, err := timeParam(q.Get("to"), s.svc.Location())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	buckets, err := s.svc.Histogram(from, to, q.Get("type"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, buckets)
}

func (s *Server) searchArchive(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := intParam(r, "page")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pageSize, err := intParam(r, "pageSize")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.SearchArchive(q.Get("q"), page, pageSize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) getArchiveSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.ArchiveSummary()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) queryArchive(w http.ResponseWriter, r *http.Request) {
	var aq dashboard.ArchiveQuery
	if err := decodeBody(w, r, &aq); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.QueryArchive(aq)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type reindexRequest struct {
	Fields []string `json:"fields"`
}

func (s *Server) reindexArchive(w http.ResponseWriter, r *http.Request) {
	var req reindexRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if err := s.svc.ReindexArchive(req.Fields); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listFilters(w http.ResponseWriter, r *http.Request) {
	filters, err := s.svc.SavedFilters()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, filters)
}

func (s *Server) saveFilter(w http.ResponseWriter, r *http.Request) {
	var f database.SavedFilter
	if err := decodeBody(w, r, &f); err != nil {
		s.writeError(w, r, err)
		return
	}
	if f.Name == "" {
		s.writeError(w, r, fmt.Errorf("%w: filter name is required", errBadRequest))
		return
	}
	if err := s.svc.SaveFilter(f); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteFilter(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteFilter(r.PathValue("name")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// -- Events and robot --

type eventRequest struct {
	Description string `json:"description"`
}

func (s *Server) addEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.svc.AddEvent(r.Context(), req.Description)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Event added", "event": e})
}

type modeBody struct {
	Mode model.Mode `json:"mode"`
}

func (s *Server) getMode(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, modeBody{Mode: s.svc.Mode()})
}

func (s *Server) putMode(w http.ResponseWriter, r *http.Request) {
	var req modeBody
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.SetMode(req.Mode); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type moveRequest struct {
	Action string     `json:"action"`
	Mode   model.Mode `json:"mode"`
}

type messageBody struct {
	Message string `json:"message"`
}

// move relays a movement command. A client still showing review mode
// (mode=review in the query or body) is refused even if the server is live.
func (s *Server) move(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Mode == model.Review || model.Mode(r.URL.Query().Get("mode")) == model.Review {
		writeJSON(w, http.StatusConflict, errorBody{Error: "movement is disabled in review mode"})
		return
	}
	msg, err := s.svc.Move(r.Context(), req.Action)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: msg})
}

type speedRequest struct {
	Speed int `json:"speed"`
}

func (s *Server) setSpeed(w http.ResponseWriter, r *http.Request) {
	var req speedRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	msg, err := s.svc.SetSpeed(r.Context(), req.Speed)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: msg})
}

func (s *Server) getDistance(w http.ResponseWriter, r *http.Request) {
	reading, err := s.svc.Reading(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

func (s *Server) getRobotState(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.RobotState(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) playSound(w http.ResponseWriter, r *http.Request) {
	msg, err := s.svc.PlaySound(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: msg})
}

func (s *Server) playDead(w http.ResponseWriter, r *http.Request) {
	msg, err := s.svc.PlayDead(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: msg})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Status())
}

// -- Params --

func floatParam(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", errBadRequest, name)
	}
	return v, nil
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errBadRequest, name)
	}
	return v, nil
}

func timeParam(raw string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, ok := model.ParseTimestamp(raw, loc)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: unparseable time %q", errBadRequest, raw)
	}
	return t, nil
}
