// Package present turns earthquake records into display strings for list rows.
package present

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// locationSeparator divides an offset phrase from the primary place.
	locationSeparator = "of"

	// NearThe is the offset phrase used when a location has no separator.
	NearThe = "Near the"

	dateLayout = "Jan 02, 2006"
	timeLayout = "3:04 PM"
)

// FormatMagnitude renders a magnitude with exactly one decimal, e.g. 6.07 → "6.1".
// Rounding is applied to the exact binary value of m, so 6.05 (stored as
// 6.04999…) renders as "6.0".
func FormatMagnitude(m float64) string {
	return strconv.FormatFloat(m, 'f', 1, 64)
}

// MagnitudeBucket is a display severity tier used to pick a color.
type MagnitudeBucket int

const (
	Magnitude9Plus MagnitudeBucket = iota // catch-all: 9 and above, and everything below 1
	Magnitude1
	Magnitude2
	Magnitude3
	Magnitude4
	Magnitude5
	Magnitude6
	Magnitude7
	Magnitude8
)

var bucketColors = [...]string{
	Magnitude9Plus: "#C03823",
	Magnitude1:     "#4A7BA7",
	Magnitude2:     "#04B4B3",
	Magnitude3:     "#10CAC9",
	Magnitude4:     "#F5A623",
	Magnitude5:     "#FF7D50",
	Magnitude6:     "#FC6644",
	Magnitude7:     "#E75F40",
	Magnitude8:     "#E13A20",
}

// Bucket maps floor(m) to a tier. Only 1 through 8 have their own tier; all
// other values fall through to Magnitude9Plus, including magnitudes below 1.
func Bucket(m float64) MagnitudeBucket {
	f := math.Floor(m)
	if f >= 1 && f <= 8 {
		return MagnitudeBucket(f)
	}
	return Magnitude9Plus
}

// String returns the palette key, e.g. "magnitude4" or "magnitude9plus".
func (b MagnitudeBucket) String() string {
	if b == Magnitude9Plus {
		return "magnitude9plus"
	}
	return "magnitude" + strconv.Itoa(int(b))
}

// Color returns the palette color as a hex string.
func (b MagnitudeBucket) Color() string {
	if b < 0 || int(b) >= len(bucketColors) {
		return bucketColors[Magnitude9Plus]
	}
	return bucketColors[b]
}

// SplitLocation splits "5km N of Springfield" into ("5km N of", "Springfield").
// The split happens at the first occurrence of the substring "of", even inside
// a word: "10km S of Sofia, Bulgaria" splits correctly, but "Sofia, Bulgaria"
// yields ("Sof", "ia, Bulgaria"). Without "of" the offset is NearThe.
func SplitLocation(location string) (offset, primary string) {
	before, after, found := strings.Cut(location, locationSeparator)
	if !found {
		return NearThe, location
	}
	return strings.TrimSpace(before + locationSeparator), strings.TrimSpace(after)
}

// FormatDate renders t in loc as "Mar 03, 2016".
func FormatDate(t time.Time, loc *time.Location) string {
	return t.In(orUTC(loc)).Format(dateLayout)
}

// FormatTime renders t in loc as "4:15 PM".
func FormatTime(t time.Time, loc *time.Location) string {
	return t.In(orUTC(loc)).Format(timeLayout)
}

func orUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
