package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/search"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps domain errors onto HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownSection), errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrListNotFound):
		return http.StatusNotFound
	case domain.IsAborted(err):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSourceUnavailable), errors.Is(err, domain.ErrTransport):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.deps.Version})
}

// === Rows ===

func (s *Server) listRows(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("load") == "true" {
		if err := s.deps.Home.LoadAll(r.Context()); err != nil {
			// failed rows carry their own error field
			s.logger.Warn("home load incomplete", "error", err)
		}
	}
	respondJSON(w, http.StatusOK, s.deps.Home.Rows())
}

func (s *Server) getRow(w http.ResponseWriter, r *http.Request) {
	row, err := s.deps.Home.Row(chi.URLParam(r, "section"))
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, row)
}

// rowAction runs a row operation and answers with the row state afterwards.
// Source failures are reported in the row's error field, not as a failed request.
func (s *Server) rowAction(w http.ResponseWriter, r *http.Request, action func(section string) error) {
	section := chi.URLParam(r, "section")
	err := action(section)
	if err != nil && (errors.Is(err, domain.ErrUnknownSection) || domain.IsAborted(err)) {
		respondError(w, statusFor(err), err.Error())
		return
	}
	row, rerr := s.deps.Home.Row(section)
	if rerr != nil {
		respondError(w, statusFor(rerr), rerr.Error())
		return
	}
	respondJSON(w, http.StatusOK, row)
}

func (s *Server) loadMore(w http.ResponseWriter, r *http.Request) {
	s.rowAction(w, r, func(section string) error {
		return s.deps.Home.LoadMore(r.Context(), section)
	})
}

func (s *Server) refreshRow(w http.ResponseWriter, r *http.Request) {
	s.rowAction(w, r, func(section string) error {
		return s.deps.Home.Refresh(r.Context(), section)
	})
}

// === Search ===

// ParseQuery reads a search query from URL parameters:
// q, type, sort, year_from, year_to, year, min_vote, min_votes, genres (comma separated), page.
func ParseQuery(v url.Values) (search.Query, error) {
	q := search.Query{Text: v.Get("q")}
	var err error
	if q.Type, err = search.ParseType(v.Get("type")); err != nil {
		return q, err
	}
	if q.Sort, err = search.ParseSort(v.Get("sort")); err != nil {
		return q, err
	}

	ints := map[string]*int{
		"year_from": &q.YearFrom,
		"year_to":   &q.YearTo,
		"min_votes": &q.MinVoteCount,
		"page":      &q.Page,
	}
	for name, dst := range ints {
		if raw := v.Get(name); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return q, fmt.Errorf("invalid %s %q", name, raw)
			}
			*dst = n
		}
	}
	if raw := v.Get("year"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, fmt.Errorf("invalid year %q", raw)
		}
		q.YearFrom, q.YearTo = n, n
	}
	if raw := v.Get("min_vote"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || f < 0 || f > 10 {
			return q, fmt.Errorf("invalid min_vote %q", raw)
		}
		q.MinVote = f
	}
	if raw := v.Get("genres"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return q, fmt.Errorf("invalid genre %q", part)
			}
			q.Genres = append(q.Genres, id)
		}
	}
	return q, nil
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q, err := ParseQuery(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.deps.Search.Search(r.Context(), q)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// === Recommendations ===

func (s *Server) recommendations(w http.ResponseWriter, r *http.Request) {
	if s.deps.Recommender == nil || s.deps.Collections == nil {
		respondError(w, http.StatusNotFound, "recommendations are not enabled")
		return
	}
	favs, err := s.deps.Collections.Favorites()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read favorites")
		return
	}
	res, err := s.deps.Recommender.ForYou(r.Context(), favs, s.deps.Locale)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// === Favorites ===

func itemKeyParam(r *http.Request) (domain.ItemKey, error) {
	return domain.ParseItemKey(chi.URLParam(r, "type") + ":" + chi.URLParam(r, "id"))
}

func (s *Server) listFavorites(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Collections == nil {
		respondError(w, http.StatusNotFound, "collections are not enabled")
		return
	}
	favs, err := s.deps.Collections.Favorites()
	if err != nil {
		s.logger.Error("failed to list favorites", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to read favorites")
		return
	}
	if favs == nil {
		favs = []domain.MediaItem{}
	}
	respondJSON(w, http.StatusOK, favs)
}

func (s *Server) addFavorite(w http.ResponseWriter, r *http.Request) {
	if s.deps.Collections == nil {
		respondError(w, http.StatusNotFound, "collections are not enabled")
		return
	}
	key, err := itemKeyParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// an optional body carries the full item and saves a lookup
	item := domain.MediaItem{ID: key.ID, MediaType: key.MediaType}
	if r.ContentLength > 0 {
		var body domain.MediaItem
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request payload")
			return
		}
		if body.Key() == key {
			item = body
		}
	}

	saved, err := s.deps.Collections.AddFavorite(r.Context(), item)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, saved)
}

func (s *Server) removeFavorite(w http.ResponseWriter, r *http.Request) {
	if s.deps.Collections == nil {
		respondError(w, http.StatusNotFound, "collections are not enabled")
		return
	}
	key, err := itemKeyParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.deps.Collections.RemoveFavorite(key); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
