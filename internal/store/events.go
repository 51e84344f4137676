package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"synth/internal/eventapi"
	"synth/internal/eventsearch"
)

// ListManualEvents returns locally entered events matching the filter,
// ordered chronologically.
func (s *Store) ListManualEvents(ctx context.Context, filter eventsearch.ManualEventFilter) ([]eventapi.Event, error) {
	var (
		conds []string
		args  []interface{}
	)
	conds = append(conds, "source = 'manual'")

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.ArtistName != "" {
		conds = append(conds, "artist_name ILIKE "+arg("%"+filter.ArtistName+"%"))
	}
	if filter.VenueName != "" {
		conds = append(conds, "venue_name ILIKE "+arg("%"+filter.VenueName+"%"))
	}
	if filter.City != "" {
		conds = append(conds, "venue_city ILIKE "+arg("%"+filter.City+"%"))
	}
	if filter.StateCode != "" {
		conds = append(conds, "venue_state = "+arg(filter.StateCode))
	}
	if !filter.From.IsZero() {
		conds = append(conds, "event_date >= "+arg(filter.From))
	}
	if !filter.To.IsZero() {
		conds = append(conds, "event_date <= "+arg(filter.To))
	}

	query := `
		SELECT source, external_id, title, artist_name, artist_id,
		       venue_name, venue_id, event_date, doors_time, description,
		       genres, venue_address, venue_city, venue_state, venue_zip,
		       latitude, longitude, ticket_available, price_range,
		       ticket_urls, external_url, tour_name
		FROM events
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY event_date ASC`
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list manual events: %w", err)
	}
	defer rows.Close()

	var events []eventapi.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan manual event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate manual events: %w", err)
	}
	return events, nil
}

// UpsertEvents stores provider events keyed on (source, external_id),
// refreshing previously stored copies. Records without an external ID and
// manual records are skipped; those are owned by CreateManualEvent.
func (s *Store) UpsertEvents(ctx context.Context, events []eventapi.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `
		INSERT INTO events (source, external_id, title, artist_name, artist_id,
			venue_name, venue_id, event_date, doors_time, description,
			genres, venue_address, venue_city, venue_state, venue_zip,
			latitude, longitude, ticket_available, price_range,
			ticket_urls, external_url, tour_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, $12, $13, $14, $15, $16, $17, $18, $19, $20::jsonb, $21, $22)
		ON CONFLICT (source, external_id) WHERE external_id IS NOT NULL DO UPDATE SET
			title = EXCLUDED.title,
			artist_name = EXCLUDED.artist_name,
			artist_id = EXCLUDED.artist_id,
			venue_name = EXCLUDED.venue_name,
			venue_id = EXCLUDED.venue_id,
			event_date = EXCLUDED.event_date,
			doors_time = EXCLUDED.doors_time,
			description = EXCLUDED.description,
			genres = EXCLUDED.genres,
			venue_address = EXCLUDED.venue_address,
			venue_city = EXCLUDED.venue_city,
			venue_state = EXCLUDED.venue_state,
			venue_zip = EXCLUDED.venue_zip,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			ticket_available = EXCLUDED.ticket_available,
			price_range = EXCLUDED.price_range,
			ticket_urls = EXCLUDED.ticket_urls,
			external_url = EXCLUDED.external_url,
			tour_name = EXCLUDED.tour_name,
			updated_at = now()`

	for _, e := range events {
		if e.Source == eventapi.SourceManual || e.ExternalID == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, query, insertArgs(e)...); err != nil {
			return fmt.Errorf("upsert event %s/%s: %w", e.Source, e.ExternalID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	tx = nil
	return nil
}

// CreateManualEvent inserts a user-entered event. A partial unique index on
// (artist_name, venue_name, event date) for manual rows rejects duplicates.
func (s *Store) CreateManualEvent(ctx context.Context, event eventapi.Event) error {
	event.Source = eventapi.SourceManual
	if strings.TrimSpace(event.Title) == "" {
		event.Title = event.ArtistName
	}
	if strings.TrimSpace(event.ArtistName) == "" || strings.TrimSpace(event.VenueName) == "" {
		return fmt.Errorf("artist name and venue name are required")
	}
	if event.EventDate.IsZero() {
		return fmt.Errorf("event date is required")
	}

	const query = `
		INSERT INTO events (source, external_id, title, artist_name, artist_id,
			venue_name, venue_id, event_date, doors_time, description,
			genres, venue_address, venue_city, venue_state, venue_zip,
			latitude, longitude, ticket_available, price_range,
			ticket_urls, external_url, tour_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, $12, $13, $14, $15, $16, $17, $18, $19, $20::jsonb, $21, $22)`

	if _, err := s.db.ExecContext(ctx, query, insertArgs(event)...); err != nil {
		if isUniqueViolation(err) {
			return ErrEventExists
		}
		return fmt.Errorf("create manual event: %w", err)
	}
	return nil
}

func insertArgs(e eventapi.Event) []interface{} {
	return []interface{}{
		string(e.Source),
		nullString(e.ExternalID),
		e.Title,
		e.ArtistName,
		nullString(e.ArtistID),
		e.VenueName,
		nullString(e.VenueID),
		e.EventDate,
		nullString(e.DoorsTime),
		nullString(e.Description),
		marshalStrings(e.Genres),
		nullString(e.VenueAddress),
		nullString(e.VenueCity),
		nullString(e.VenueState),
		nullString(e.VenueZip),
		e.Latitude,
		e.Longitude,
		e.TicketAvailable,
		nullString(e.PriceRange),
		marshalStrings(e.TicketURLs),
		nullString(e.ExternalURL),
		nullString(e.TourName),
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (eventapi.Event, error) {
	var (
		e          eventapi.Event
		source     string
		externalID sql.NullString
		artistID   sql.NullString
		venueID    sql.NullString
		eventDate  time.Time
		doorsTime  sql.NullString
		descr      sql.NullString
		genres     sql.NullString
		address    sql.NullString
		city       sql.NullString
		state      sql.NullString
		zip        sql.NullString
		latitude   sql.NullFloat64
		longitude  sql.NullFloat64
		priceRange sql.NullString
		ticketURLs sql.NullString
		extURL     sql.NullString
		tourName   sql.NullString
	)

	if err := row.Scan(&source, &externalID, &e.Title, &e.ArtistName, &artistID,
		&e.VenueName, &venueID, &eventDate, &doorsTime, &descr,
		&genres, &address, &city, &state, &zip,
		&latitude, &longitude, &e.TicketAvailable, &priceRange,
		&ticketURLs, &extURL, &tourName); err != nil {
		return eventapi.Event{}, err
	}

	e.Source = eventapi.EventSource(source)
	e.ExternalID = externalID.String
	e.ArtistID = artistID.String
	e.VenueID = venueID.String
	e.EventDate = eventDate
	e.DoorsTime = doorsTime.String
	e.Description = descr.String
	e.VenueAddress = address.String
	e.VenueCity = city.String
	e.VenueState = state.String
	e.VenueZip = zip.String
	e.PriceRange = priceRange.String
	e.TicketURLs = unmarshalStrings(ticketURLs)
	e.ExternalURL = extURL.String
	e.TourName = tourName.String
	e.Genres = unmarshalStrings(genres)
	if latitude.Valid {
		e.Latitude = &latitude.Float64
	}
	if longitude.Valid {
		e.Longitude = &longitude.Float64
	}
	return e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func marshalStrings(values []string) string {
	if values == nil {
		values = []string{}
	}
	data, _ := json.Marshal(values)
	return string(data)
}

func unmarshalStrings(raw sql.NullString) []string {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw.String), &values); err != nil {
		return nil
	}
	if len(values) == 0 {
		return nil
	}
	return values
}
