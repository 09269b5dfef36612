package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/atlet99/tzresolve/internal/errors"
	"github.com/atlet99/tzresolve/internal/timeutil"
	"github.com/atlet99/tzresolve/internal/timezone"
	"github.com/atlet99/tzresolve/internal/tz"
)

// Zone operations addressed as /v1/zones/{zone}/{op}
const (
	opSysInfo   = "sys-info"
	opLocalInfo = "local-info"
	opToSys     = "to-sys"
	opToLocal   = "to-local"
)

var zoneOps = map[string]bool{
	opSysInfo:   true,
	opLocalInfo: true,
	opToSys:     true,
	opToLocal:   true,
}

// TransitionResponse describes a period of constant offset. Begin and End
// are omitted when the period is unbounded.
type TransitionResponse struct {
	Begin         string `json:"begin,omitempty"`
	End           string `json:"end,omitempty"`
	Offset        string `json:"offset"`
	OffsetSeconds int64  `json:"offset_seconds"`
	SaveSeconds   int64  `json:"save_seconds"`
	Abbrev        string `json:"abbrev"`
	IsDST         bool   `json:"is_dst"`
}

// LocalInfoResponse is the classification of a civil instant
type LocalInfoResponse struct {
	Zone     string              `json:"zone"`
	Civil    string              `json:"civil"`
	Category tz.Category         `json:"category"`
	First    TransitionResponse  `json:"first"`
	Second   *TransitionResponse `json:"second,omitempty"`
}

// SysInfoResponse is the transition covering a UTC instant
type SysInfoResponse struct {
	Zone       string             `json:"zone"`
	At         string             `json:"at"`
	Transition TransitionResponse `json:"transition"`
}

// ToSysResponse is the result of a civil to UTC conversion
type ToSysResponse struct {
	Zone   string    `json:"zone"`
	Civil  string    `json:"civil"`
	Choose tz.Policy `json:"choose"`
	Sys    string    `json:"sys"`
}

// ToLocalResponse is the result of a UTC to civil conversion
type ToLocalResponse struct {
	Zone  string `json:"zone"`
	At    string `json:"at"`
	Civil string `json:"civil"`
}

func newTransitionResponse(t tz.Transition) TransitionResponse {
	return TransitionResponse{
		Begin:         timeutil.FormatInstant(t.Begin),
		End:           timeutil.FormatInstant(t.End),
		Offset:        timeutil.FormatOffset(t.Offset),
		OffsetSeconds: int64(t.Offset.Seconds()),
		SaveSeconds:   int64(t.Save.Seconds()),
		Abbrev:        t.Abbrev,
		IsDST:         t.IsDaylight(),
	}
}

// splitZonePath splits "Area/Location/op" into the zone name and the
// operation.
func splitZonePath(rest string) (zone, op string, ok bool) {
	i := strings.LastIndexByte(rest, '/')
	if i <= 0 {
		return "", "", false
	}
	zone, op = rest[:i], rest[i+1:]
	return zone, op, zoneOps[op]
}

// handleZone dispatches /v1/zones/{zone}/{op}
func (s *Server) handleZone(w http.ResponseWriter, r *http.Request) {
	zone, op, ok := splitZonePath(r.PathValue("rest"))
	if !ok {
		s.errors.HandleError(w, r, apperrors.NotFound(r.URL.Path))
		return
	}

	switch op {
	case opSysInfo:
		s.handleSysInfo(w, r, zone)
	case opLocalInfo:
		s.handleLocalInfo(w, r, zone)
	case opToSys:
		s.handleToSys(w, r, zone)
	case opToLocal:
		s.handleToLocal(w, r, zone)
	}
}

func (s *Server) handleSysInfo(w http.ResponseWriter, r *http.Request, zone string) {
	at, err := instantParam(r, "at")
	if err != nil {
		s.errors.HandleError(w, r, err)
		return
	}
	t, err := s.service.SysInfo(r.Context(), zone, at)
	if err != nil {
		s.errors.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, SysInfoResponse{
		Zone:       zone,
		At:         timeutil.FormatInstant(at),
		Transition: newTransitionResponse(t),
	})
}

func (s *Server) handleLocalInfo(w http.ResponseWriter, r *http.Request, zone string) {
	civil, err := civilParam(r, "civil")
	if err != nil {
		s.errors.HandleError(w, r, err)
		return
	}
	res, err := s.service.LocalInfo(r.Context(), zone, civil)
	if err != nil {
		s.errors.HandleError(w, r, err)
		return
	}
	resp := LocalInfoResponse{
		Zone:     zone,
		Civil:    timeutil.FormatCivil(civil),
		Category: res.Category,
		First:    newTransitionResponse(res.First),
	}
	if res.Category != tz.Unique {
		second := newTransitionResponse(res.Second)
		resp.Second = &second
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleToSys(w http.ResponseWriter, r *http.Request, zone string) {
	civil, err := civilParam(r, "civil")
	if err != nil {
		s.errors.HandleError(w, r, err)
		return
	}
	policy := tz.RequireUnique
	if choose := r.URL.Query().Get("choose"); choose != "" {
		if err := policy.UnmarshalText([]byte(choose)); err != nil {
			s.errors.HandleError(w, r, apperrors.InvalidParameter("choose", err))
			return
		}
	}
	at, err := s.service.ToSys(r.Context(), zone, civil, policy)
	if err != nil {
		s.errors.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ToSysResponse{
		Zone:   zone,
		Civil:  timeutil.FormatCivil(civil),
		Choose: policy,
		Sys:    timeutil.FormatInstant(at),
	})
}

func (s *Server) handleToLocal(w http.ResponseWriter, r *http.Request, zone string) {
	at, err := instantParam(r, "at")
	if err != nil {
		s.errors.HandleError(w, r, err)
		return
	}
	civil, err := s.service.ToLocal(r.Context(), zone, at)
	if err != nil {
		s.errors.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ToLocalResponse{
		Zone:  zone,
		At:    timeutil.FormatInstant(at),
		Civil: timeutil.FormatCivil(civil),
	})
}

func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	zones, err := s.service.Zones()
	if errors.Is(err, timezone.ErrNoZoneData) {
		err = apperrors.NewError(apperrors.ErrCodeBackendUnavailable).
			WithMessage("No zoneinfo directory available").
			WithCause(err).
			Build()
	}
	if err != nil {
		s.errors.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"zones": zones,
		"count": len(zones),
	})
}

func (s *Server) handleLinks(w http.ResponseWriter, _ *http.Request) {
	links := s.service.Links()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"links": links,
		"count": len(links),
	})
}

func (s *Server) handleCurrentZone(w http.ResponseWriter, r *http.Request) {
	zone, err := s.service.CurrentZone(r.Context())
	if err != nil {
		s.errors.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"zone": zone})
}

func instantParam(r *http.Request, name string) (tz.SysInstant, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, apperrors.InvalidParameter(name, fmt.Errorf("missing %s", name))
	}
	at, err := timeutil.ParseInstant(v)
	if err != nil {
		return 0, apperrors.InvalidParameter(name, err)
	}
	return at, nil
}

func civilParam(r *http.Request, name string) (tz.CivilInstant, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, apperrors.InvalidParameter(name, fmt.Errorf("missing %s", name))
	}
	civil, err := timeutil.ParseCivil(v)
	if err != nil {
		return 0, apperrors.InvalidParameter(name, err)
	}
	return civil, nil
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}
