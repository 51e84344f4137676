package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"synth/internal/eventapi"
	"synth/internal/eventsearch"
	"synth/internal/store"
)

type stubSearchService struct {
	searchResult *eventsearch.SearchResult
	searchErr    error
	lastParams   eventsearch.SearchParams

	artistEvents []eventapi.Event
	artistErr    error
	lastArtist   string

	venueEvents []eventapi.Event
	venueErr    error
	lastVenue   string
	lastVenOpts eventsearch.VenueOptions

	locationResult *eventsearch.SearchResult
	locationErr    error
	lastLat        float64
	lastLng        float64
	lastRadius     int

	cityResult *eventsearch.SearchResult
	cityErr    error
	lastCity   string
}

func (s *stubSearchService) Search(ctx context.Context, params eventsearch.SearchParams) (*eventsearch.SearchResult, error) {
	s.lastParams = params
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.searchResult, nil
}

func (s *stubSearchService) SearchByArtist(ctx context.Context, artistName string, opts eventsearch.ArtistOptions) ([]eventapi.Event, error) {
	s.lastArtist = artistName
	if s.artistErr != nil {
		return nil, s.artistErr
	}
	return s.artistEvents, nil
}

func (s *stubSearchService) SearchByVenue(ctx context.Context, venueName string, opts eventsearch.VenueOptions) ([]eventapi.Event, error) {
	s.lastVenue = venueName
	s.lastVenOpts = opts
	if s.venueErr != nil {
		return nil, s.venueErr
	}
	return s.venueEvents, nil
}

func (s *stubSearchService) SearchByLocation(ctx context.Context, latitude, longitude float64, radiusMiles int, opts eventsearch.LocationOptions) (*eventsearch.SearchResult, error) {
	s.lastLat = latitude
	s.lastLng = longitude
	s.lastRadius = radiusMiles
	if s.locationErr != nil {
		return nil, s.locationErr
	}
	return s.locationResult, nil
}

func (s *stubSearchService) SearchByCity(ctx context.Context, city string, opts eventsearch.CityOptions) (*eventsearch.SearchResult, error) {
	s.lastCity = city
	if s.cityErr != nil {
		return nil, s.cityErr
	}
	return s.cityResult, nil
}

type stubEventWriter struct {
	created eventapi.Event
	err     error
}

func (s *stubEventWriter) CreateManualEvent(ctx context.Context, event eventapi.Event) error {
	s.created = event
	return s.err
}

func newTestServer(search SearchService, events EventWriter) *Server {
	return New(search, events, zerolog.Nop())
}

func TestHandleSearch(t *testing.T) {
	sampleResult := &eventsearch.SearchResult{
		Events: []eventapi.Event{
			{Source: eventapi.SourceJamBase, Title: "Phish at Red Rocks", ArtistName: "Phish", VenueName: "Red Rocks Amphitheatre"},
		},
		Total:       1,
		Sources:     eventsearch.SourceStatus{JamBase: true, Ticketmaster: true},
		HasNextPage: false,
	}

	tests := []struct {
		name       string
		target     string
		stub       *stubSearchService
		wantStatus int
	}{
		{
			name:       "success",
			target:     "/api/v1/events/search?keyword=phish&page=2&per_page=10",
			stub:       &stubSearchService{searchResult: sampleResult},
			wantStatus: http.StatusOK,
		},
		{
			name:       "invalid params",
			target:     "/api/v1/events/search",
			stub:       &stubSearchService{searchErr: fmt.Errorf("%w: something", eventsearch.ErrInvalidParams)},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed coordinates",
			target:     "/api/v1/events/search?lat=abc&lng=1.0",
			stub:       &stubSearchService{searchResult: sampleResult},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "internal error",
			target:     "/api/v1/events/search?keyword=phish",
			stub:       &stubSearchService{searchErr: errors.New("boom")},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(tt.stub, nil)
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			rec := httptest.NewRecorder()

			srv.Routes().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var result eventsearch.SearchResult
			if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if result.Total != sampleResult.Total {
				t.Errorf("total = %d, want %d", result.Total, sampleResult.Total)
			}
			if !result.Sources.JamBase || !result.Sources.Ticketmaster {
				t.Errorf("sources = %+v, want both true", result.Sources)
			}
		})
	}
}

func TestHandleSearchParamParsing(t *testing.T) {
	stub := &stubSearchService{searchResult: &eventsearch.SearchResult{}}
	srv := newTestServer(stub, nil)

	target := "/api/v1/events/search?keyword=jazz&city=Denver&state=CO&lat=39.7&lng=-104.9&radius=25&page=3&per_page=15&include_past=true&start_date=2026-09-01"
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()

	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	p := stub.lastParams
	if p.Keyword != "jazz" || p.City != "Denver" || p.StateCode != "CO" {
		t.Errorf("text params = %q/%q/%q", p.Keyword, p.City, p.StateCode)
	}
	if p.Latitude == nil || p.Longitude == nil || *p.Latitude != 39.7 || *p.Longitude != -104.9 {
		t.Errorf("coordinates not parsed: %+v", p)
	}
	if p.Radius != 25 || p.Page != 3 || p.PerPage != 15 {
		t.Errorf("numeric params = %d/%d/%d", p.Radius, p.Page, p.PerPage)
	}
	if !p.IncludePastEvents {
		t.Error("include_past not parsed")
	}
	want := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	if !p.StartDate.Equal(want) {
		t.Errorf("start date = %v, want %v", p.StartDate, want)
	}
}

func TestHandleSearchByArtist(t *testing.T) {
	stub := &stubSearchService{
		artistEvents: []eventapi.Event{
			{Source: eventapi.SourceJamBase, ArtistName: "Billy Strings", VenueName: "The Ryman"},
		},
	}
	srv := newTestServer(stub, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/artist/Billy%20Strings?include_past=true", nil)
	rec := httptest.NewRecorder()

	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if stub.lastArtist != "Billy Strings" {
		t.Errorf("artist = %q, want %q", stub.lastArtist, "Billy Strings")
	}

	var resp eventsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 1 || len(resp.Events) != 1 {
		t.Errorf("total = %d, events = %d", resp.Total, len(resp.Events))
	}
}

func TestHandleSearchByArtistEmptyIsNotNull(t *testing.T) {
	srv := newTestServer(&stubSearchService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/artist/Nobody", nil)
	rec := httptest.NewRecorder()

	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"events":[]`)) {
		t.Errorf("expected empty array, got %s", rec.Body.String())
	}
}

func TestHandleSearchByVenue(t *testing.T) {
	stub := &stubSearchService{
		venueEvents: []eventapi.Event{
			{Source: eventapi.SourceTicketmaster, VenueName: "Red Rocks Amphitheatre"},
		},
	}
	srv := newTestServer(stub, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/venue/Red%20Rocks?city=Morrison&state=CO", nil)
	rec := httptest.NewRecorder()

	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if stub.lastVenue != "Red Rocks" {
		t.Errorf("venue = %q", stub.lastVenue)
	}
	if stub.lastVenOpts.City != "Morrison" || stub.lastVenOpts.State != "CO" {
		t.Errorf("venue opts = %+v", stub.lastVenOpts)
	}
}

func TestHandleSearchNearby(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		stub       *stubSearchService
		wantStatus int
	}{
		{
			name:       "success",
			target:     "/api/v1/events/nearby?lat=39.74&lng=-104.99&radius=30",
			stub:       &stubSearchService{locationResult: &eventsearch.SearchResult{}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing coordinates",
			target:     "/api/v1/events/nearby?radius=30",
			stub:       &stubSearchService{locationResult: &eventsearch.SearchResult{}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "out of range coordinates",
			target:     "/api/v1/events/nearby?lat=120&lng=0",
			stub:       &stubSearchService{locationErr: fmt.Errorf("%w: latitude out of range", eventsearch.ErrInvalidParams)},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(tt.stub, nil)
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			rec := httptest.NewRecorder()

			srv.Routes().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestHandleSearchNearbyPassesThrough(t *testing.T) {
	stub := &stubSearchService{locationResult: &eventsearch.SearchResult{}}
	srv := newTestServer(stub, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/nearby?lat=39.74&lng=-104.99&radius=30", nil)
	rec := httptest.NewRecorder()

	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if stub.lastLat != 39.74 || stub.lastLng != -104.99 || stub.lastRadius != 30 {
		t.Errorf("got lat=%v lng=%v radius=%d", stub.lastLat, stub.lastLng, stub.lastRadius)
	}
}

func TestHandleSearchByCity(t *testing.T) {
	stub := &stubSearchService{cityResult: &eventsearch.SearchResult{Total: 3}}
	srv := newTestServer(stub, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/city/Austin?state=TX", nil)
	rec := httptest.NewRecorder()

	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if stub.lastCity != "Austin" {
		t.Errorf("city = %q, want %q", stub.lastCity, "Austin")
	}
}

func TestHandleCreateEvent(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		writer     *stubEventWriter
		wantStatus int
	}{
		{
			name:       "success",
			body:       `{"title":"DIY Show","artist_name":"Local Band","venue_name":"Basement","event_date":"2026-10-01T20:00:00Z","ticket_url":"https://example.com/tix"}`,
			writer:     &stubEventWriter{},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing date",
			body:       `{"title":"DIY Show","artist_name":"Local Band","venue_name":"Basement"}`,
			writer:     &stubEventWriter{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid json",
			body:       `{`,
			writer:     &stubEventWriter{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "duplicate",
			body:       `{"title":"DIY Show","artist_name":"Local Band","venue_name":"Basement","event_date":"2026-10-01"}`,
			writer:     &stubEventWriter{err: store.ErrEventExists},
			wantStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&stubSearchService{}, tt.writer)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/events", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()

			srv.Routes().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestHandleCreateEventMarksManualSource(t *testing.T) {
	writer := &stubEventWriter{}
	srv := newTestServer(&stubSearchService{}, writer)

	body := `{"title":"DIY Show","artist_name":"Local Band","venue_name":"Basement","event_date":"2026-10-01T20:00:00Z","ticket_url":"https://example.com/tix"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if writer.created.Source != eventapi.SourceManual {
		t.Errorf("source = %q, want %q", writer.created.Source, eventapi.SourceManual)
	}
	if !writer.created.TicketAvailable || len(writer.created.TicketURLs) != 1 {
		t.Errorf("ticket info not mapped: %+v", writer.created)
	}
}

func TestHandleCreateEventDisabled(t *testing.T) {
	srv := newTestServer(&stubSearchService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()

	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotImplemented)
	}
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(&stubSearchService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("body = %q, want OK", rec.Body.String())
	}
}
