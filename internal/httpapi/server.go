package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"synth/internal/eventapi"
	"synth/internal/eventsearch"
	"synth/internal/store"
)

// SearchService captures the event-search operations needed by the HTTP handlers.
type SearchService interface {
	Search(ctx context.Context, params eventsearch.SearchParams) (*eventsearch.SearchResult, error)
	SearchByArtist(ctx context.Context, artistName string, opts eventsearch.ArtistOptions) ([]eventapi.Event, error)
	SearchByVenue(ctx context.Context, venueName string, opts eventsearch.VenueOptions) ([]eventapi.Event, error)
	SearchByLocation(ctx context.Context, latitude, longitude float64, radiusMiles int, opts eventsearch.LocationOptions) (*eventsearch.SearchResult, error)
	SearchByCity(ctx context.Context, city string, opts eventsearch.CityOptions) (*eventsearch.SearchResult, error)
}

// EventWriter persists user-entered events.
type EventWriter interface {
	CreateManualEvent(ctx context.Context, event eventapi.Event) error
}

// Server wires HTTP handlers to the underlying services.
type Server struct {
	search SearchService
	events EventWriter // optional; nil disables manual event creation
	logger zerolog.Logger
}

// New configures a Server with the given services.
func New(search SearchService, events EventWriter, logger zerolog.Logger) *Server {
	return &Server{
		search: search,
		events: events,
		logger: logger,
	}
}

// Routes exposes the HTTP handlers for event search.
func (s *Server) Routes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/events/search", s.handleSearch).Methods(http.MethodGet)
	api.HandleFunc("/events/artist/{name}", s.handleSearchByArtist).Methods(http.MethodGet)
	api.HandleFunc("/events/venue/{name}", s.handleSearchByVenue).Methods(http.MethodGet)
	api.HandleFunc("/events/nearby", s.handleSearchNearby).Methods(http.MethodGet)
	api.HandleFunc("/events/city/{city}", s.handleSearchByCity).Methods(http.MethodGet)
	api.HandleFunc("/events", s.handleCreateEvent).Methods(http.MethodPost)

	return router
}

type errorResponse struct {
	Error string `json:"error"`
}

type eventsResponse struct {
	Events []eventapi.Event `json:"events"`
	Total  int              `json:"total"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	params, err := parseSearchParams(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	result, err := s.search.Search(r.Context(), params)
	if err != nil {
		s.writeSearchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSearchByArtist(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	q := r.URL.Query()

	opts := eventsearch.ArtistOptions{
		IncludePastEvents: parseBool(q.Get("include_past")),
		PastEventsMonths:  parseInt(q.Get("past_months"), 0),
		Limit:             parseInt(q.Get("limit"), 0),
	}

	events, err := s.search.SearchByArtist(r.Context(), name, opts)
	if err != nil {
		s.writeSearchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: emptyIfNil(events), Total: len(events)})
}

func (s *Server) handleSearchByVenue(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	q := r.URL.Query()

	opts := eventsearch.VenueOptions{
		City:              q.Get("city"),
		State:             q.Get("state"),
		IncludePastEvents: parseBool(q.Get("include_past")),
		PastEventsMonths:  parseInt(q.Get("past_months"), 0),
		Limit:             parseInt(q.Get("limit"), 0),
	}

	events, err := s.search.SearchByVenue(r.Context(), name, opts)
	if err != nil {
		s.writeSearchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: emptyIfNil(events), Total: len(events)})
}

func (s *Server) handleSearchNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
	lng, lngErr := strconv.ParseFloat(q.Get("lng"), 64)
	if latErr != nil || lngErr != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "lat and lng are required"})
		return
	}

	opts := eventsearch.LocationOptions{
		StartDate: parseDate(q.Get("start_date")),
		EndDate:   parseDate(q.Get("end_date")),
		Limit:     parseInt(q.Get("limit"), 0),
	}

	result, err := s.search.SearchByLocation(r.Context(), lat, lng, parseInt(q.Get("radius"), 0), opts)
	if err != nil {
		s.writeSearchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSearchByCity(w http.ResponseWriter, r *http.Request) {
	city := mux.Vars(r)["city"]
	q := r.URL.Query()

	opts := eventsearch.CityOptions{
		StateCode:   q.Get("state"),
		CountryCode: q.Get("country"),
		StartDate:   parseDate(q.Get("start_date")),
		EndDate:     parseDate(q.Get("end_date")),
		Limit:       parseInt(q.Get("limit"), 0),
	}

	result, err := s.search.SearchByCity(r.Context(), city, opts)
	if err != nil {
		s.writeSearchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type createEventRequest struct {
	Title        string   `json:"title"`
	ArtistName   string   `json:"artist_name"`
	VenueName    string   `json:"venue_name"`
	EventDate    string   `json:"event_date"`
	DoorsTime    string   `json:"doors_time,omitempty"`
	Description  string   `json:"description,omitempty"`
	Genres       []string `json:"genres,omitempty"`
	VenueAddress string   `json:"venue_address,omitempty"`
	VenueCity    string   `json:"venue_city,omitempty"`
	VenueState   string   `json:"venue_state,omitempty"`
	VenueZip     string   `json:"venue_zip,omitempty"`
	TicketURL    string   `json:"ticket_url,omitempty"`
	PriceRange   string   `json:"price_range,omitempty"`
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "manual events are not enabled"})
		return
	}

	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON payload"})
		return
	}

	eventDate := parseDate(req.EventDate)
	if eventDate.IsZero() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "event_date is required (RFC 3339 or YYYY-MM-DD)"})
		return
	}

	event := eventapi.Event{
		Source:       eventapi.SourceManual,
		Title:        req.Title,
		ArtistName:   req.ArtistName,
		VenueName:    req.VenueName,
		EventDate:    eventDate,
		DoorsTime:    req.DoorsTime,
		Description:  req.Description,
		Genres:       req.Genres,
		VenueAddress: req.VenueAddress,
		VenueCity:    req.VenueCity,
		VenueState:   req.VenueState,
		VenueZip:     req.VenueZip,
		PriceRange:   req.PriceRange,
	}
	if req.TicketURL != "" {
		event.TicketURLs = []string{req.TicketURL}
		event.TicketAvailable = true
	}

	if err := s.events.CreateManualEvent(r.Context(), event); err != nil {
		switch {
		case errors.Is(err, store.ErrEventExists):
			writeJSON(w, http.StatusConflict, errorResponse{Error: "event already exists"})
		default:
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		}
		return
	}

	w.WriteHeader(http.StatusCreated)
}

func (s *Server) writeSearchError(w http.ResponseWriter, err error) {
	if errors.Is(err, eventsearch.ErrInvalidParams) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	s.logger.Error().Err(err).Msg("search failed")
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func parseSearchParams(r *http.Request) (eventsearch.SearchParams, error) {
	q := r.URL.Query()

	params := eventsearch.SearchParams{
		Keyword:           q.Get("keyword"),
		ArtistName:        q.Get("artist"),
		VenueName:         q.Get("venue"),
		VenueID:           q.Get("venue_id"),
		City:              q.Get("city"),
		StateCode:         q.Get("state"),
		CountryCode:       q.Get("country"),
		PostalCode:        q.Get("postal_code"),
		Radius:            parseInt(q.Get("radius"), 0),
		StartDate:         parseDate(q.Get("start_date")),
		EndDate:           parseDate(q.Get("end_date")),
		Classification:    q.Get("classification"),
		Page:              parseInt(q.Get("page"), 0),
		PerPage:           parseInt(q.Get("per_page"), 0),
		Limit:             parseInt(q.Get("limit"), 0),
		IncludePastEvents: parseBool(q.Get("include_past")),
	}

	latRaw, lngRaw := q.Get("lat"), q.Get("lng")
	if latRaw != "" || lngRaw != "" {
		lat, latErr := strconv.ParseFloat(latRaw, 64)
		lng, lngErr := strconv.ParseFloat(lngRaw, 64)
		if latErr != nil || lngErr != nil {
			return eventsearch.SearchParams{}, errors.New("lat and lng must both be valid numbers")
		}
		params.Latitude = &lat
		params.Longitude = &lng
	}

	return params, nil
}

func parseInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func parseBool(raw string) bool {
	v, err := strconv.ParseBool(raw)
	return err == nil && v
}

func parseDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

func emptyIfNil(events []eventapi.Event) []eventapi.Event {
	if events == nil {
		return []eventapi.Event{}
	}
	return events
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
