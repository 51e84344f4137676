package eventapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const defaultTicketmasterBaseURL = "https://app.ticketmaster.com/discovery/v2"

// TicketmasterClient implements the EventProvider interface for the
// Ticketmaster Discovery API
type TicketmasterClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewTicketmasterClient creates a new Ticketmaster API client
func NewTicketmasterClient(apiKey string, opts ...TicketmasterOption) *TicketmasterClient {
	c := &TicketmasterClient{
		apiKey:  apiKey,
		baseURL: defaultTicketmasterBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TicketmasterOption customizes a TicketmasterClient
type TicketmasterOption func(*TicketmasterClient)

// WithTicketmasterBaseURL overrides the API base URL (used in tests)
func WithTicketmasterBaseURL(baseURL string) TicketmasterOption {
	return func(c *TicketmasterClient) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithTicketmasterHTTPClient overrides the HTTP client
func WithTicketmasterHTTPClient(client *http.Client) TicketmasterOption {
	return func(c *TicketmasterClient) { c.httpClient = client }
}

// Ticketmaster Discovery API response structures

type tmEventsResponse struct {
	Embedded *tmEventsEmbedded `json:"_embedded,omitempty"`
	Page     tmPage            `json:"page"`
}

type tmEventsEmbedded struct {
	Events []tmEvent `json:"events"`
}

type tmPage struct {
	Size          int `json:"size"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
	Number        int `json:"number"`
}

type tmEvent struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	URL             string             `json:"url,omitempty"`
	Info            string             `json:"info,omitempty"`
	PleaseNote      string             `json:"pleaseNote,omitempty"`
	Dates           tmDates            `json:"dates"`
	Classifications []tmClassification `json:"classifications,omitempty"`
	PriceRanges     []tmPriceRange     `json:"priceRanges,omitempty"`
	Embedded        *tmEventEmbedded   `json:"_embedded,omitempty"`
}

type tmEventEmbedded struct {
	Attractions []tmAttraction `json:"attractions,omitempty"`
	Venues      []tmVenue      `json:"venues,omitempty"`
}

type tmAttraction struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type tmVenue struct {
	Name       string      `json:"name,omitempty"`
	Address    *tmAddress  `json:"address,omitempty"`
	City       *tmNamed    `json:"city,omitempty"`
	State      *tmState    `json:"state,omitempty"`
	PostalCode string      `json:"postalCode,omitempty"`
	Location   *tmLocation `json:"location,omitempty"`
}

type tmAddress struct {
	Line1 string `json:"line1,omitempty"`
}

type tmNamed struct {
	Name string `json:"name,omitempty"`
}

type tmState struct {
	Name      string `json:"name,omitempty"`
	StateCode string `json:"stateCode,omitempty"`
}

type tmLocation struct {
	Latitude  string `json:"latitude,omitempty"`
	Longitude string `json:"longitude,omitempty"`
}

type tmDates struct {
	Start    tmDateStart `json:"start"`
	DoorTime string      `json:"doorTime,omitempty"`
	Status   tmStatus    `json:"status"`
}

type tmDateStart struct {
	LocalDate string `json:"localDate,omitempty"`
	LocalTime string `json:"localTime,omitempty"`
	DateTime  string `json:"dateTime,omitempty"`
}

type tmStatus struct {
	Code string `json:"code,omitempty"`
}

type tmClassification struct {
	Genre    *tmNamed `json:"genre,omitempty"`
	SubGenre *tmNamed `json:"subGenre,omitempty"`
}

type tmPriceRange struct {
	Currency string  `json:"currency,omitempty"`
	Min      float64 `json:"min,omitempty"`
	Max      float64 `json:"max,omitempty"`
}

// SearchEvents queries the Discovery API and normalizes the response
func (c *TicketmasterClient) SearchEvents(ctx context.Context, query EventQuery) ([]Event, error) {
	params := url.Values{}
	params.Set("apikey", c.apiKey)

	keyword := query.Keyword
	if keyword == "" {
		keyword = query.ArtistName
	}
	if keyword != "" {
		params.Set("keyword", keyword)
	}
	if query.VenueName != "" && keyword == "" {
		params.Set("keyword", query.VenueName)
	}
	if query.City != "" {
		params.Set("city", query.City)
	}
	if query.StateCode != "" {
		params.Set("stateCode", query.StateCode)
	}
	if query.CountryCode != "" {
		params.Set("countryCode", query.CountryCode)
	}
	if query.PostalCode != "" {
		params.Set("postalCode", query.PostalCode)
	}
	if query.Latitude != nil && query.Longitude != nil {
		params.Set("latlong", fmt.Sprintf("%f,%f", *query.Latitude, *query.Longitude))
		if query.Radius > 0 {
			params.Set("radius", strconv.Itoa(query.Radius))
			params.Set("unit", "miles")
		}
	}
	if query.Classification != "" {
		params.Set("classificationName", query.Classification)
	}
	if !query.StartDate.IsZero() {
		params.Set("startDateTime", query.StartDate.UTC().Format("2006-01-02T15:04:05Z"))
	}
	if !query.EndDate.IsZero() {
		params.Set("endDateTime", query.EndDate.UTC().Format("2006-01-02T15:04:05Z"))
	}
	if query.PerPage > 0 {
		params.Set("size", strconv.Itoa(query.PerPage))
	}
	if query.Page > 1 {
		// Discovery API pages are zero-indexed
		params.Set("page", strconv.Itoa(query.Page-1))
	}
	params.Set("sort", "date,asc")

	apiURL := c.baseURL + "/events.json?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ticketmaster api error: %s - %s", resp.Status, string(body))
	}

	var result tmEventsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if result.Embedded == nil {
		return []Event{}, nil
	}

	events := make([]Event, 0, len(result.Embedded.Events))
	for _, te := range result.Embedded.Events {
		events = append(events, c.convertEvent(te))
	}
	return events, nil
}

var (
	atVenueRe    = regexp.MustCompile(`(?i)^(.+?)\s+at\s+(.+)$`)
	tributeWords = []string{"tribute", "cover"}
)

// convertEvent maps a Discovery API event into the canonical shape.
// Ticketmaster often omits attraction and venue records, so several fields
// fall back to parsing the event name ("Artist at Venue", "Tour - Artist").
func (c *TicketmasterClient) convertEvent(te tmEvent) Event {
	var attraction *tmAttraction
	var venue *tmVenue
	if te.Embedded != nil {
		if len(te.Embedded.Attractions) > 0 {
			attraction = &te.Embedded.Attractions[0]
		}
		if len(te.Embedded.Venues) > 0 {
			venue = &te.Embedded.Venues[0]
		}
	}

	venueName := ""
	if venue != nil {
		venueName = venue.Name
	}
	if venueName == "" {
		if m := atVenueRe.FindStringSubmatch(te.Name); m != nil {
			venueName = strings.TrimSpace(m[2])
		}
	}
	if venueName == "" {
		if venue != nil && venue.City != nil && venue.City.Name != "" {
			venueName = venue.City.Name + " Venue"
		} else {
			venueName = "Venue TBD"
		}
	}

	artistName := ""
	artistID := ""
	if attraction != nil {
		artistName = attraction.Name
		artistID = attraction.ID
	}
	if artistName == "" {
		if idx := strings.LastIndex(te.Name, " - "); idx >= 0 {
			last := strings.TrimSpace(te.Name[idx+3:])
			if last != "" && !strings.Contains(strings.ToLower(last), "ticket") {
				artistName = last
			}
		}
	}
	if artistName == "" {
		if m := atVenueRe.FindStringSubmatch(te.Name); m != nil {
			artistName = strings.TrimSpace(m[1])
		}
	}
	if artistName == "" {
		artistName = strings.TrimSpace(te.Name)
	}
	lowered := strings.ToLower(artistName)
	for _, w := range tributeWords {
		if strings.Contains(lowered, w) {
			artistName = ""
			break
		}
	}
	if artistName == "" {
		artistName = te.Name
	}
	if artistName == "" {
		artistName = "Unknown Artist"
	}

	title := te.Name
	if title == "" {
		title = "Untitled Event"
	}

	description := te.Info
	if description == "" {
		description = te.PleaseNote
	}

	var ticketURLs []string
	if te.URL != "" {
		ticketURLs = []string{te.URL}
	}

	e := Event{
		Source:          SourceTicketmaster,
		ExternalID:      te.ID,
		Title:           title,
		ArtistName:      artistName,
		ArtistID:        artistID,
		VenueName:       venueName,
		EventDate:       parseTicketmasterDate(te.Dates.Start),
		DoorsTime:       te.Dates.DoorTime,
		Description:     description,
		Genres:          extractTicketmasterGenres(te.Classifications),
		TicketAvailable: te.Dates.Status.Code == "onsale",
		PriceRange:      formatPriceRange(te.PriceRanges),
		TicketURLs:      ticketURLs,
		ExternalURL:     te.URL,
	}

	if venue != nil {
		if venue.Address != nil {
			e.VenueAddress = venue.Address.Line1
		}
		if venue.City != nil {
			e.VenueCity = venue.City.Name
		}
		if venue.State != nil {
			e.VenueState = venue.State.StateCode
		}
		e.VenueZip = venue.PostalCode
		if venue.Location != nil {
			if lat, err := strconv.ParseFloat(venue.Location.Latitude, 64); err == nil {
				if lng, err := strconv.ParseFloat(venue.Location.Longitude, 64); err == nil {
					e.Latitude = &lat
					e.Longitude = &lng
				}
			}
		}
	}

	return e
}

// parseTicketmasterDate composes the event timestamp from localDate/localTime
// when available, falling back to the UTC dateTime. Providers disagree on
// whether they report venue-local or UTC time, so downstream dedup only uses
// the date component.
func parseTicketmasterDate(start tmDateStart) time.Time {
	if start.LocalDate != "" && start.LocalTime != "" {
		if t, err := time.Parse("2006-01-02T15:04:05", start.LocalDate+"T"+start.LocalTime); err == nil {
			return t
		}
	}
	if start.LocalDate != "" {
		if t, err := time.Parse("2006-01-02", start.LocalDate); err == nil {
			return t
		}
	}
	if start.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, start.DateTime); err == nil {
			return t
		}
	}
	return time.Time{}
}

func extractTicketmasterGenres(classifications []tmClassification) []string {
	var genres []string
	seen := map[string]bool{}
	for _, cl := range classifications {
		if cl.Genre == nil || cl.Genre.Name == "" {
			continue
		}
		if !seen[cl.Genre.Name] {
			seen[cl.Genre.Name] = true
			genres = append(genres, cl.Genre.Name)
		}
	}
	if len(genres) == 0 {
		return []string{"Other"}
	}
	return genres
}

func formatPriceRange(ranges []tmPriceRange) string {
	if len(ranges) == 0 {
		return ""
	}
	pr := ranges[0]
	switch {
	case pr.Min > 0 && pr.Max > 0 && pr.Min != pr.Max:
		return fmt.Sprintf("$%v - $%v", pr.Min, pr.Max)
	case pr.Min > 0 && pr.Max > 0:
		return fmt.Sprintf("$%v", pr.Min)
	case pr.Min > 0:
		return fmt.Sprintf("$%v+", pr.Min)
	case pr.Max > 0:
		return fmt.Sprintf("Up to $%v", pr.Max)
	}
	return ""
}
