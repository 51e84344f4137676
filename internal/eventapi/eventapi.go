package eventapi

import (
	"context"
	"time"
)

// EventSource identifies the system an event record originated from
type EventSource string

const (
	SourceTicketmaster EventSource = "ticketmaster"
	SourceJamBase      EventSource = "jambase"
	SourceManual       EventSource = "manual"
)

// Event is the canonical event shape all provider payloads are normalized into
type Event struct {
	Source          EventSource `json:"source"`
	ExternalID      string      `json:"external_id,omitempty"`
	Title           string      `json:"title"`
	ArtistName      string      `json:"artist_name"`
	ArtistID        string      `json:"artist_id,omitempty"`
	VenueName       string      `json:"venue_name"`
	VenueID         string      `json:"venue_id,omitempty"`
	EventDate       time.Time   `json:"event_date"` // zero value means the provider reported no usable date
	DoorsTime       string      `json:"doors_time,omitempty"`
	Description     string      `json:"description,omitempty"`
	Genres          []string    `json:"genres,omitempty"`
	VenueAddress    string      `json:"venue_address,omitempty"`
	VenueCity       string      `json:"venue_city,omitempty"`
	VenueState      string      `json:"venue_state,omitempty"`
	VenueZip        string      `json:"venue_zip,omitempty"`
	Latitude        *float64    `json:"latitude,omitempty"`
	Longitude       *float64    `json:"longitude,omitempty"`
	TicketAvailable bool        `json:"ticket_available"`
	PriceRange      string      `json:"price_range,omitempty"`
	TicketURLs      []string    `json:"ticket_urls,omitempty"`
	ExternalURL     string      `json:"external_url,omitempty"`
	TourName        string      `json:"tour_name,omitempty"`
}

// EventQuery carries provider-agnostic search criteria. Each client maps the
// subset its API understands and ignores the rest.
type EventQuery struct {
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
	Radius      int // miles

	StartDate time.Time
	EndDate   time.Time

	Classification string

	Page    int
	PerPage int
}

// VenueCandidate is a venue returned by the JamBase venue resolver
type VenueCandidate struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	City  string `json:"city,omitempty"`
	State string `json:"state,omitempty"`
}

// EventProvider is implemented by each external event-listing client
type EventProvider interface {
	// SearchEvents queries the provider and returns normalized events.
	// A transport or API failure is returned as an error; callers decide
	// whether that is fatal.
	SearchEvents(ctx context.Context, query EventQuery) ([]Event, error)
}

// VenueResolver resolves a venue name to provider venue identifiers
type VenueResolver interface {
	ResolveVenues(ctx context.Context, name, city, state string) ([]VenueCandidate, error)
}
