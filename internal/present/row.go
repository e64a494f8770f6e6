package present

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/couchcryptid/quake-report/internal/domain"
)

// EmptyMessage is shown when a load delivers no records, whether the feed had
// none or the fetch failed.
const EmptyMessage = "No earthquakes found."

// Row holds every formatted field a list row binds to.
type Row struct {
	Magnitude       string          `json:"magnitude"`
	Bucket          MagnitudeBucket `json:"-"`
	BucketKey       string          `json:"bucket"`
	Color           string          `json:"color"`
	LocationOffset  string          `json:"location_offset"`
	LocationPrimary string          `json:"location_primary"`
	Date            string          `json:"date"`
	Time            string          `json:"time"`
	DetailURL       string          `json:"url,omitempty"`
}

// NewRow formats one record for display in the viewer's timezone loc.
func NewRow(eq domain.Earthquake, loc *time.Location) Row {
	bucket := Bucket(eq.Magnitude())
	offset, primary := SplitLocation(eq.Location())
	t := eq.Time()
	return Row{
		Magnitude:       FormatMagnitude(eq.Magnitude()),
		Bucket:          bucket,
		BucketKey:       bucket.String(),
		Color:           bucket.Color(),
		LocationOffset:  offset,
		LocationPrimary: primary,
		Date:            FormatDate(t, loc),
		Time:            FormatTime(t, loc),
		DetailURL:       eq.DetailURL(),
	}
}

// Rows formats a list, keeping its order.
func Rows(quakes []domain.Earthquake, loc *time.Location) []Row {
	rows := make([]Row, len(quakes))
	for i, eq := range quakes {
		rows[i] = NewRow(eq, loc)
	}
	return rows
}

// RenderList writes rows as an aligned text table, or EmptyMessage when there
// are none.
func RenderList(w io.Writer, rows []Row) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, EmptyMessage)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, r := range rows {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.Magnitude, r.LocationOffset, r.LocationPrimary, r.Date, r.Time); err != nil {
			return err
		}
	}
	return tw.Flush()
}
