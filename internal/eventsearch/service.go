package eventsearch

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"synth/internal/cache"
	"synth/internal/eventapi"
	"synth/internal/metrics"
)

// ErrInvalidParams reports a caller-side programming error, such as searching
// by location without coordinates. Provider failures never produce an error.
var ErrInvalidParams = errors.New("invalid search parameters")

const (
	defaultPerPage        = 20
	defaultPastMonths     = 3
	defaultRadiusMiles    = 50
	minProviderFetch      = 40
	maxProviderFetch      = 100
	persistTimeout        = 30 * time.Second
	defaultCacheTTL       = 15 * time.Minute
	maxGenreLookupsPerReq = 10
)

// EventStore persists provider events and serves locally entered (manual)
// events. Both capabilities are optional; a nil store disables them.
type EventStore interface {
	ListManualEvents(ctx context.Context, filter ManualEventFilter) ([]eventapi.Event, error)
	UpsertEvents(ctx context.Context, events []eventapi.Event) error
}

// ManualEventFilter narrows the manual-event lookup
type ManualEventFilter struct {
	ArtistName string
	VenueName  string
	City       string
	StateCode  string
	From       time.Time
	To         time.Time
	Limit      int
}

// SearchParams is the full request accepted by Search
type SearchParams struct {
	Keyword    string
	ArtistName string
	VenueName  string
	VenueID    string

	City        string
	StateCode   string
	CountryCode string
	PostalCode  string
	Latitude    *float64
	Longitude   *float64
	Radius      int

	StartDate time.Time
	EndDate   time.Time

	Classification string

	Page    int
	PerPage int
	Limit   int

	IncludePastEvents bool
}

// SourceStatus reports which providers contributed to a result
type SourceStatus struct {
	JamBase      bool `json:"jambase"`
	Ticketmaster bool `json:"ticketmaster"`
}

// SearchResult is the merged, deduplicated, paginated outcome of a search
type SearchResult struct {
	Events      []eventapi.Event `json:"events"`
	Total       int              `json:"total"`
	Sources     SourceStatus     `json:"sources"`
	HasNextPage bool             `json:"hasNextPage"`
}

// ArtistOptions tunes SearchByArtist
type ArtistOptions struct {
	IncludePastEvents bool
	PastEventsMonths  int
	Limit             int
}

// VenueOptions tunes SearchByVenue
type VenueOptions struct {
	City              string
	State             string
	IncludePastEvents bool
	PastEventsMonths  int
	Limit             int
}

// LocationOptions tunes SearchByLocation
type LocationOptions struct {
	StartDate time.Time
	EndDate   time.Time
	Limit     int
}

// CityOptions tunes SearchByCity
type CityOptions struct {
	StateCode   string
	CountryCode string
	StartDate   time.Time
	EndDate     time.Time
	Limit       int
}

// Service aggregates events across Ticketmaster and JamBase, plus manual
// events from the local store when one is configured.
type Service struct {
	ticketmaster eventapi.EventProvider
	jambase      eventapi.EventProvider
	venues       eventapi.VenueResolver // optional: enables venue-ID scoping
	genres       eventapi.GenreResolver // optional: backfills missing genres
	store        EventStore             // optional: manual events + persistence
	logger       zerolog.Logger

	venueCache *cache.Cache
	genreCache *cache.Cache

	now func() time.Time
}

// NewService wires the aggregator. venues, genres, and store may be nil.
func NewService(ticketmaster, jambase eventapi.EventProvider, venues eventapi.VenueResolver, genres eventapi.GenreResolver, store EventStore, logger zerolog.Logger) *Service {
	return &Service{
		ticketmaster: ticketmaster,
		jambase:      jambase,
		venues:       venues,
		genres:       genres,
		store:        store,
		logger:       logger,
		venueCache:   cache.New(defaultCacheTTL),
		genreCache:   cache.New(defaultCacheTTL),
		now:          time.Now,
	}
}

// Search fans out to both providers concurrently, waits for both to settle,
// and merges whatever succeeded. A failing provider contributes zero events
// and a false source flag; the search itself never fails because of one.
func (s *Service) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	started := time.Now()
	defer func() { metrics.ObserveSearchDuration(time.Since(started)) }()

	now := s.now()
	page := params.Page
	if page < 1 {
		page = 1
	}
	perPage := params.PerPage
	if perPage <= 0 {
		perPage = params.Limit
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}

	query := s.providerQuery(params, now, page, perPage)

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		tmEvents     []eventapi.Event
		jbEvents     []eventapi.Event
		manualEvents []eventapi.Event
		tmOK         bool
		jbOK         bool
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		events, err := s.ticketmaster.SearchEvents(ctx, query)
		metrics.ObserveProviderRequest("ticketmaster", err)
		if err != nil {
			s.logger.Warn().Err(err).Str("provider", "ticketmaster").Msg("provider search failed")
			return
		}
		mu.Lock()
		tmEvents = events
		tmOK = true
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		events, err := s.jambase.SearchEvents(ctx, query)
		metrics.ObserveProviderRequest("jambase", err)
		if err != nil {
			s.logger.Warn().Err(err).Str("provider", "jambase").Msg("provider search failed")
			return
		}
		mu.Lock()
		jbEvents = events
		jbOK = true
		mu.Unlock()
	}()

	if s.store != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			events, err := s.store.ListManualEvents(ctx, manualFilter(params, now))
			if err != nil {
				s.logger.Warn().Err(err).Msg("manual event lookup failed")
				return
			}
			mu.Lock()
			manualEvents = events
			mu.Unlock()
		}()
	}

	wg.Wait()

	merged := make([]eventapi.Event, 0, len(tmEvents)+len(jbEvents)+len(manualEvents))
	merged = append(merged, tmEvents...)
	merged = append(merged, jbEvents...)
	merged = append(merged, manualEvents...)

	if s.store != nil && len(tmEvents)+len(jbEvents) > 0 {
		s.persistAsync(append(append([]eventapi.Event{}, tmEvents...), jbEvents...))
	}

	filtered := filterAndSort(deduplicate(merged), now, params.IncludePastEvents)
	total := len(filtered)

	startIdx := (page - 1) * perPage
	endIdx := startIdx + perPage
	if startIdx > total {
		startIdx = total
	}
	if endIdx > total {
		endIdx = total
	}
	pageEvents := filtered[startIdx:endIdx]

	s.enrichGenres(ctx, pageEvents)
	metrics.AddEventsReturned(len(pageEvents))

	return &SearchResult{
		Events:      pageEvents,
		Total:       total,
		Sources:     SourceStatus{JamBase: jbOK, Ticketmaster: tmOK},
		HasNextPage: startIdx+perPage < total,
	}, nil
}

// SearchByArtist queries JamBase only. Ticketmaster's artist matching is
// name-heuristic and too imprecise for this lookup path, so it is skipped on
// purpose. When past events are requested an additional window of
// pastEventsMonths before today is fetched alongside the upcoming window.
func (s *Service) SearchByArtist(ctx context.Context, artistName string, opts ArtistOptions) ([]eventapi.Event, error) {
	artistName = strings.TrimSpace(artistName)
	if artistName == "" {
		return nil, ErrInvalidParams
	}

	now := s.now()
	events := s.fetchJamBaseWindows(ctx, eventapi.EventQuery{ArtistName: artistName, PerPage: windowFetchSize(opts.Limit)}, now, opts.IncludePastEvents, opts.PastEventsMonths)

	events = filterAndSort(deduplicate(events), now, opts.IncludePastEvents)
	if opts.Limit > 0 && len(events) > opts.Limit {
		events = events[:opts.Limit]
	}
	s.enrichGenres(ctx, events)
	metrics.AddEventsReturned(len(events))
	return events, nil
}

// SearchByVenue resolves the venue name to a JamBase venue ID when possible
// and searches by that ID for exact scoping. When no ID can be resolved it
// falls back to a keyword search post-filtered on venue name, which
// compensates for keyword matches that merely mention the venue elsewhere.
func (s *Service) SearchByVenue(ctx context.Context, venueName string, opts VenueOptions) ([]eventapi.Event, error) {
	venueName = strings.TrimSpace(venueName)
	if venueName == "" {
		return nil, ErrInvalidParams
	}

	now := s.now()
	venueID := s.resolveVenueID(ctx, venueName, opts.City, opts.State)

	var events []eventapi.Event
	if venueID != "" {
		events = s.fetchJamBaseWindows(ctx, eventapi.EventQuery{VenueID: venueID, PerPage: windowFetchSize(opts.Limit)}, now, opts.IncludePastEvents, opts.PastEventsMonths)
	} else {
		events = s.fetchJamBaseWindows(ctx, eventapi.EventQuery{Keyword: venueName, PerPage: windowFetchSize(opts.Limit)}, now, opts.IncludePastEvents, opts.PastEventsMonths)
		events = filterByVenueName(events, venueName)
	}

	events = filterAndSort(deduplicate(events), now, opts.IncludePastEvents)
	if opts.Limit > 0 && len(events) > opts.Limit {
		events = events[:opts.Limit]
	}
	s.enrichGenres(ctx, events)
	metrics.AddEventsReturned(len(events))
	return events, nil
}

// SearchByLocation is a thin wrapper over Search scoped to a coordinate radius
func (s *Service) SearchByLocation(ctx context.Context, latitude, longitude float64, radiusMiles int, opts LocationOptions) (*SearchResult, error) {
	if latitude < -90 || latitude > 90 || longitude < -180 || longitude > 180 {
		return nil, ErrInvalidParams
	}
	if radiusMiles <= 0 {
		radiusMiles = defaultRadiusMiles
	}
	return s.Search(ctx, SearchParams{
		Latitude:  &latitude,
		Longitude: &longitude,
		Radius:    radiusMiles,
		StartDate: opts.StartDate,
		EndDate:   opts.EndDate,
		Limit:     opts.Limit,
	})
}

// SearchByCity is a thin wrapper over Search scoped to a city
func (s *Service) SearchByCity(ctx context.Context, city string, opts CityOptions) (*SearchResult, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, ErrInvalidParams
	}
	return s.Search(ctx, SearchParams{
		City:        city,
		StateCode:   opts.StateCode,
		CountryCode: opts.CountryCode,
		StartDate:   opts.StartDate,
		EndDate:     opts.EndDate,
		Limit:       opts.Limit,
	})
}

// providerQuery maps caller parameters to the provider-agnostic query. The
// fetch size covers the requested page of the merged list with headroom for
// records lost to dedup and filtering.
func (s *Service) providerQuery(params SearchParams, now time.Time, page, perPage int) eventapi.EventQuery {
	fetch := page * perPage
	if fetch < minProviderFetch {
		fetch = minProviderFetch
	}
	if fetch > maxProviderFetch {
		fetch = maxProviderFetch
	}

	startDate := params.StartDate
	if !params.IncludePastEvents && startDate.IsZero() {
		startDate = now
	}

	return eventapi.EventQuery{
		Keyword:        params.Keyword,
		ArtistName:     params.ArtistName,
		VenueName:      params.VenueName,
		VenueID:        params.VenueID,
		City:           params.City,
		StateCode:      params.StateCode,
		CountryCode:    params.CountryCode,
		PostalCode:     params.PostalCode,
		Latitude:       params.Latitude,
		Longitude:      params.Longitude,
		Radius:         params.Radius,
		StartDate:      startDate,
		EndDate:        params.EndDate,
		Classification: params.Classification,
		PerPage:        fetch,
	}
}

func manualFilter(params SearchParams, now time.Time) ManualEventFilter {
	f := ManualEventFilter{
		ArtistName: params.ArtistName,
		VenueName:  params.VenueName,
		City:       params.City,
		StateCode:  params.StateCode,
		From:       params.StartDate,
		To:         params.EndDate,
		Limit:      maxProviderFetch,
	}
	if f.ArtistName == "" {
		f.ArtistName = params.Keyword
	}
	if !params.IncludePastEvents && f.From.IsZero() {
		f.From = now
	}
	return f
}

// fetchJamBaseWindows issues the upcoming-window query and, when past events
// are requested, a second past-window query, concurrently. Either window
// failing contributes zero events rather than failing the lookup.
func (s *Service) fetchJamBaseWindows(ctx context.Context, base eventapi.EventQuery, now time.Time, includePast bool, pastMonths int) []eventapi.Event {
	upcoming := base
	upcoming.StartDate = now

	queries := []eventapi.EventQuery{upcoming}
	if includePast {
		if pastMonths <= 0 {
			pastMonths = defaultPastMonths
		}
		past := base
		past.StartDate = now.AddDate(0, -pastMonths, 0)
		past.EndDate = now
		queries = append(queries, past)
	}

	results := make([][]eventapi.Event, len(queries))
	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q eventapi.EventQuery) {
			defer wg.Done()
			events, err := s.jambase.SearchEvents(ctx, q)
			metrics.ObserveProviderRequest("jambase", err)
			if err != nil {
				s.logger.Warn().Err(err).Str("provider", "jambase").Msg("window search failed")
				return
			}
			results[i] = events
		}(i, q)
	}
	wg.Wait()

	var merged []eventapi.Event
	for _, r := range results {
		merged = append(merged, r...)
	}
	return merged
}

// resolveVenueID maps a venue name to a JamBase venue ID via the resolver,
// preferring an exact case-insensitive name match over the first candidate.
// Results, including misses, are cached.
func (s *Service) resolveVenueID(ctx context.Context, name, city, state string) string {
	if s.venues == nil {
		return ""
	}

	key := "venue|" + strings.ToLower(name) + "|" + strings.ToLower(city) + "|" + strings.ToLower(state)
	if cached, ok := s.venueCache.Get(key); ok {
		return cached.(string)
	}

	candidates, err := s.venues.ResolveVenues(ctx, name, city, state)
	if err != nil {
		s.logger.Warn().Err(err).Str("venue", name).Msg("venue resolution failed")
		return ""
	}

	id := ""
	if len(candidates) > 0 {
		id = candidates[0].ID
		for _, c := range candidates {
			if strings.EqualFold(c.Name, name) {
				id = c.ID
				break
			}
		}
	}
	s.venueCache.Set(key, id)
	return id
}

// enrichGenres backfills empty genre lists from the artist's Spotify profile.
// Failures leave genres empty; lookups are capped per request and cached.
func (s *Service) enrichGenres(ctx context.Context, events []eventapi.Event) {
	if s.genres == nil {
		return
	}
	lookups := 0
	for i := range events {
		if len(events[i].Genres) > 0 {
			continue
		}
		artist := strings.TrimSpace(events[i].ArtistName)
		if artist == "" || artist == "Unknown Artist" {
			continue
		}

		key := "genres|" + strings.ToLower(artist)
		if cached, ok := s.genreCache.Get(key); ok {
			events[i].Genres = cached.([]string)
			continue
		}
		if lookups >= maxGenreLookupsPerReq {
			continue
		}
		lookups++

		genres, err := s.genres.ArtistGenres(ctx, artist)
		if err != nil {
			s.logger.Debug().Err(err).Str("artist", artist).Msg("genre lookup failed")
			continue
		}
		s.genreCache.Set(key, genres)
		events[i].Genres = genres
	}
}

func (s *Service) persistAsync(events []eventapi.Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.store.UpsertEvents(ctx, events); err != nil {
			s.logger.Warn().Err(err).Int("events", len(events)).Msg("failed to persist fetched events")
		}
	}()
}

// filterAndSort drops dateless records, optionally drops past events, and
// sorts chronologically. The sort is stable so merge order decides ties.
func filterAndSort(events []eventapi.Event, now time.Time, includePast bool) []eventapi.Event {
	kept := make([]eventapi.Event, 0, len(events))
	for _, e := range events {
		if e.EventDate.IsZero() {
			continue
		}
		if !includePast && e.EventDate.Before(now) {
			continue
		}
		kept = append(kept, e)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].EventDate.Before(kept[j].EventDate)
	})
	return kept
}

// filterByVenueName keeps events whose venue name contains, or is contained
// by, the requested name
func filterByVenueName(events []eventapi.Event, venueName string) []eventapi.Event {
	want := strings.ToLower(strings.TrimSpace(venueName))
	kept := make([]eventapi.Event, 0, len(events))
	for _, e := range events {
		have := strings.ToLower(strings.TrimSpace(e.VenueName))
		if have == "" {
			continue
		}
		if strings.Contains(have, want) || strings.Contains(want, have) {
			kept = append(kept, e)
		}
	}
	return kept
}

func windowFetchSize(limit int) int {
	if limit > 0 && limit < maxProviderFetch {
		if limit < minProviderFetch {
			return minProviderFetch
		}
		return limit
	}
	return maxProviderFetch
}
