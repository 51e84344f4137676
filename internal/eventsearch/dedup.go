package eventsearch

import (
	"regexp"
	"strings"

	"synth/internal/eventapi"
)

// venueStopTokens are branding words that providers attach inconsistently to
// the same physical venue ("The O2 Academy Brixton" vs "Brixton Academy").
// Removing them before comparison raises recall of true duplicates at the
// cost of occasionally over-merging.
var venueStopTokens = map[string]bool{
	"the":     true,
	"o2":      true,
	"academy": true,
	"ballroom": true,
	"theatre": true,
	"theater": true,
}

var nonAlphaNum = regexp.MustCompile(`[^a-z0-9\s]+`)

func normalizeArtistName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func normalizeVenueName(name string) string {
	s := strings.ToLower(name)
	s = nonAlphaNum.ReplaceAllString(s, " ")
	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		if !venueStopTokens[f] {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}

// dedupKey joins normalized artist, normalized venue, and the date-only
// component of the event timestamp. Time-of-day is excluded because the
// providers disagree on whether they report local venue time, UTC, or door
// time for the same event.
func dedupKey(e eventapi.Event) string {
	return normalizeArtistName(e.ArtistName) + "|" + normalizeVenueName(e.VenueName) + "|" + e.EventDate.Format("2006-01-02")
}

// deduplicate collapses listings that represent the same real-world event,
// keeping first-seen order. On a key collision a JamBase record replaces a
// Ticketmaster one (JamBase data is cleaner); every other collision keeps
// the record seen first. Manual records are never displaced by the provider
// preference rule. Events without a date cannot be keyed safely and always
// pass through unchanged.
func deduplicate(events []eventapi.Event) []eventapi.Event {
	out := make([]eventapi.Event, 0, len(events))
	byKey := make(map[string]int, len(events))

	for _, e := range events {
		if e.EventDate.IsZero() {
			out = append(out, e)
			continue
		}
		key := dedupKey(e)
		idx, seen := byKey[key]
		if !seen {
			byKey[key] = len(out)
			out = append(out, e)
			continue
		}
		if e.Source == eventapi.SourceJamBase && out[idx].Source == eventapi.SourceTicketmaster {
			out[idx] = e
		}
	}
	return out
}
