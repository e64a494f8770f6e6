// Package domain models earthquake records from the USGS event feed.
//
// # Data Source
//
// Records come from the USGS FDSN event web service in GeoJSON form, e.g.
// https://earthquake.usgs.gov/fdsnws/event/1/query?format=geojson&orderby=time&minmag=6&limit=10.
// The response is a FeatureCollection; each element of "features" is one event.
//
// # Feed Conventions
//
// Only four members of each feature's "properties" object are consumed:
//
//	mag    number   magnitude, usually 0–10; negative for micro-quakes
//	place  string   free-text location, e.g. "5km N of Springfield"
//	time   integer  origin time in milliseconds since the Unix epoch (UTC)
//	url    string   USGS event detail page
//
// Location format:
//
//	"<distance> <compass> of <place>"  →  e.g. "88km N of Yelizovo, Russia"
//	Events at or near a named region omit the offset (e.g. "Pacific-Antarctic Ridge").
//
// # Parse Policy
//
// Parsing is all-or-nothing. A single malformed feature (missing member, null,
// or wrong JSON type) discards the whole response, see [ParseFeed]. The feed
// order is kept; records are never re-sorted.
package domain
