package eventapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultJamBaseBaseURL = "https://www.jambase.com/jb-api/v1"

// JamBaseClient implements EventProvider and VenueResolver for the JamBase API
type JamBaseClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewJamBaseClient creates a new JamBase API client
func NewJamBaseClient(apiKey string, opts ...JamBaseOption) *JamBaseClient {
	c := &JamBaseClient{
		apiKey:  apiKey,
		baseURL: defaultJamBaseBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// JamBaseOption customizes a JamBaseClient
type JamBaseOption func(*JamBaseClient)

// WithJamBaseBaseURL overrides the API base URL (used in tests)
func WithJamBaseBaseURL(baseURL string) JamBaseOption {
	return func(c *JamBaseClient) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithJamBaseHTTPClient overrides the HTTP client
func WithJamBaseHTTPClient(client *http.Client) JamBaseOption {
	return func(c *JamBaseClient) { c.httpClient = client }
}

// JamBase API response structures (schema.org flavored)

type jbEventsResponse struct {
	Success bool      `json:"success"`
	Events  []jbEvent `json:"events"`
}

type jbEvent struct {
	Identifier string        `json:"identifier,omitempty"`
	Name       string        `json:"name,omitempty"`
	StartDate  string        `json:"startDate,omitempty"`
	DoorTime   string        `json:"doorTime,omitempty"`
	Performer  []jbPerformer `json:"performer,omitempty"`
	Location   *jbLocation   `json:"location,omitempty"`
	Genre      []string      `json:"genre,omitempty"`
	Offers     []jbOffer     `json:"offers,omitempty"`
	Tour       *jbTour       `json:"tour,omitempty"`
	URL        string        `json:"url,omitempty"`
}

type jbPerformer struct {
	Identifier string `json:"identifier,omitempty"`
	Name       string `json:"name,omitempty"`
}

type jbLocation struct {
	Identifier string     `json:"identifier,omitempty"`
	Name       string     `json:"name,omitempty"`
	Address    *jbAddress `json:"address,omitempty"`
	Geo        *jbGeo     `json:"geo,omitempty"`
}

type jbAddress struct {
	StreetAddress   string `json:"streetAddress,omitempty"`
	AddressLocality string `json:"addressLocality,omitempty"`
	AddressRegion   string `json:"addressRegion,omitempty"`
	PostalCode      string `json:"postalCode,omitempty"`
}

type jbGeo struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

type jbOffer struct {
	Availability string `json:"availability,omitempty"`
	Price        string `json:"price,omitempty"`
	URL          string `json:"url,omitempty"`
}

type jbTour struct {
	Name string `json:"name,omitempty"`
}

type jbVenuesResponse struct {
	Success bool      `json:"success"`
	Venues  []jbVenue `json:"venues"`
}

type jbVenue struct {
	Identifier string     `json:"identifier,omitempty"`
	Name       string     `json:"name,omitempty"`
	Address    *jbAddress `json:"address,omitempty"`
}

// SearchEvents queries the JamBase events endpoint and normalizes the response
func (c *JamBaseClient) SearchEvents(ctx context.Context, query EventQuery) ([]Event, error) {
	params := url.Values{}
	params.Set("apikey", c.apiKey)

	if query.ArtistName != "" {
		params.Set("artistName", query.ArtistName)
	} else if query.Keyword != "" {
		params.Set("artistName", query.Keyword)
	}
	if query.VenueID != "" {
		params.Set("venueId", query.VenueID)
	}
	if query.VenueName != "" && query.VenueID == "" {
		params.Set("venueName", query.VenueName)
	}
	if query.StateCode != "" {
		params.Set("geoStateIso", query.StateCode)
	}
	if query.CountryCode != "" {
		params.Set("geoCountryIso2", query.CountryCode)
	}
	if query.Latitude != nil && query.Longitude != nil {
		params.Set("geoLatitude", fmt.Sprintf("%f", *query.Latitude))
		params.Set("geoLongitude", fmt.Sprintf("%f", *query.Longitude))
		if query.Radius > 0 {
			params.Set("geoRadiusAmount", strconv.Itoa(query.Radius))
		}
	}
	params.Set("geoRadiusUnits", "mi")
	if !query.StartDate.IsZero() {
		params.Set("eventDateFrom", query.StartDate.UTC().Format("2006-01-02"))
	}
	if !query.EndDate.IsZero() {
		params.Set("eventDateTo", query.EndDate.UTC().Format("2006-01-02"))
	}
	if query.Classification != "" {
		params.Set("genreSlug", strings.ToLower(query.Classification))
	}
	if query.Page > 0 {
		params.Set("page", strconv.Itoa(query.Page))
	}
	perPage := query.PerPage
	if perPage <= 0 {
		perPage = 40
	}
	params.Set("perPage", strconv.Itoa(perPage))
	params.Set("eventType", "concerts")

	var result jbEventsResponse
	if err := c.doRequest(ctx, "/events", params, &result); err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(result.Events))
	for _, je := range result.Events {
		events = append(events, c.convertEvent(je))
	}
	return events, nil
}

// ResolveVenues looks up venue candidates by name, optionally scoped to a city/state
func (c *JamBaseClient) ResolveVenues(ctx context.Context, name, city, state string) ([]VenueCandidate, error) {
	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("venueName", name)
	if state != "" {
		params.Set("geoStateIso", state)
	}
	params.Set("perPage", "5")

	var result jbVenuesResponse
	if err := c.doRequest(ctx, "/venues", params, &result); err != nil {
		return nil, err
	}

	candidates := make([]VenueCandidate, 0, len(result.Venues))
	for _, v := range result.Venues {
		cand := VenueCandidate{
			ID:   stripJamBasePrefix(v.Identifier),
			Name: v.Name,
		}
		if v.Address != nil {
			cand.City = v.Address.AddressLocality
			cand.State = v.Address.AddressRegion
		}
		if city != "" && cand.City != "" && !strings.EqualFold(city, cand.City) {
			continue
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

func (c *JamBaseClient) doRequest(ctx context.Context, endpoint string, params url.Values, result interface{}) error {
	apiURL := c.baseURL + endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("jambase api error: %s - %s", resp.Status, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// convertEvent maps a JamBase event into the canonical shape
func (c *JamBaseClient) convertEvent(je jbEvent) Event {
	eventID := stripJamBasePrefix(je.Identifier)
	if eventID == "" {
		eventID = "jb-" + uuid.NewString()
	}

	title := je.Name
	if title == "" {
		title = "Untitled Event"
	}

	artistName := "Unknown Artist"
	artistID := ""
	if len(je.Performer) > 0 {
		if je.Performer[0].Name != "" {
			artistName = je.Performer[0].Name
		}
		artistID = stripJamBasePrefix(je.Performer[0].Identifier)
	}

	e := Event{
		Source:      SourceJamBase,
		ExternalID:  eventID,
		Title:       title,
		ArtistName:  artistName,
		ArtistID:    artistID,
		VenueName:   "Unknown Venue",
		EventDate:   parseJamBaseDate(je.StartDate),
		DoorsTime:   je.DoorTime,
		Genres:      je.Genre,
		ExternalURL: je.URL,
	}

	if je.Location != nil {
		if je.Location.Name != "" {
			e.VenueName = je.Location.Name
		}
		e.VenueID = stripJamBasePrefix(je.Location.Identifier)
		if je.Location.Address != nil {
			e.VenueAddress = je.Location.Address.StreetAddress
			e.VenueCity = je.Location.Address.AddressLocality
			e.VenueState = je.Location.Address.AddressRegion
			e.VenueZip = je.Location.Address.PostalCode
		}
		if je.Location.Geo != nil {
			e.Latitude = je.Location.Geo.Latitude
			e.Longitude = je.Location.Geo.Longitude
		}
	}

	if len(je.Offers) > 0 {
		var prices, urls []string
		for _, offer := range je.Offers {
			if offer.Availability == "InStock" {
				e.TicketAvailable = true
			}
			if offer.Price != "" {
				prices = append(prices, offer.Price)
			}
			if offer.URL != "" {
				urls = append(urls, offer.URL)
			}
		}
		e.PriceRange = strings.Join(prices, " - ")
		e.TicketURLs = urls
	}

	if je.Tour != nil {
		e.TourName = je.Tour.Name
	}

	return e
}

func stripJamBasePrefix(identifier string) string {
	return strings.TrimPrefix(identifier, "jambase:")
}

// parseJamBaseDate accepts the timestamp formats JamBase has been seen to
// emit: RFC 3339, offset-less local time, and bare dates.
func parseJamBaseDate(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
