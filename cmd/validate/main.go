// Command validate checks a saved feed document, and optionally a saved
// /api/earthquakes response, for integrity before it is used as a fixture.
// It verifies the parse, per-record fields, feed ordering, and that the
// formatted rows match what the service would render.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -feed testdata/usgs_m6_latest.json \
//	  -rows testdata/api_earthquakes.json \
//	  -tz UTC
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/quake-report/internal/domain"
	"github.com/couchcryptid/quake-report/internal/present"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Plausible recorded magnitude range; anything outside is a feed defect.
const (
	minMagnitude = -2.0
	maxMagnitude = 10.0
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	feedPath := flag.String("feed", "", "path to a saved feed GeoJSON document")
	rowsPath := flag.String("rows", "", "optional path to a saved /api/earthquakes response")
	tz := flag.String("tz", "UTC", "timezone the rows were formatted in")
	flag.Parse()

	if *feedPath == "" {
		flag.Usage()
		os.Exit(1)
	}
	loc, err := time.LoadLocation(*tz)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: invalid -tz: %v\n", err)
		os.Exit(1)
	}

	if code := run(os.Stdout, *feedPath, *rowsPath, loc); code != 0 {
		os.Exit(code)
	}
}

func run(out io.Writer, feedPath, rowsPath string, loc *time.Location) int {
	fmt.Fprintln(out, "=== Earthquake Feed Validation ===")
	fmt.Fprintln(out)

	body, err := os.ReadFile(feedPath)
	if err != nil {
		fmt.Fprintf(out, "FATAL: read feed: %v\n", err)
		return 1
	}

	parse, quakes := validateParse(string(body))
	phases := []*phase{
		parse,
		validateRecords(quakes),
		validateOrdering(quakes),
	}

	if rowsPath != "" {
		saved, err := loadRows(rowsPath)
		if err != nil {
			fmt.Fprintf(out, "FATAL: load rows: %v\n", err)
			return 1
		}
		phases = append(phases, validateRows(present.Rows(quakes, loc), saved))
	}

	// ── Report results ──
	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-32s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Records: %d\n", len(quakes))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// validateParse runs the production parser and cross-checks the record count
// against a raw decode of the features array.
func validateParse(body string) (*phase, []domain.Earthquake) {
	p := &phase{name: "Feed parse"}

	quakes, err := domain.ParseFeed(body)
	if err != nil {
		p.errorf("parse: %v", err)
		return p, nil
	}
	if len(quakes) == 0 {
		p.errorf("feed has no records")
	}

	var raw struct {
		Features []json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal([]byte(body), &raw); err == nil && len(raw.Features) != len(quakes) {
		p.errorf("parsed %d records from %d features", len(quakes), len(raw.Features))
	}
	return p, quakes
}

func validateRecords(quakes []domain.Earthquake) *phase {
	p := &phase{name: "Record integrity"}
	now := domain.Now()

	seen := make(map[string]int, len(quakes))
	for i, eq := range quakes {
		pf := func(format string, args ...any) {
			p.errorf("record %d (%s): %s", i, eq.DetailURL(), fmt.Sprintf(format, args...))
		}

		if eq.Magnitude() < minMagnitude || eq.Magnitude() > maxMagnitude {
			pf("magnitude %s outside [%g, %g]", strconv.FormatFloat(eq.Magnitude(), 'f', -1, 64), minMagnitude, maxMagnitude)
		}
		if eq.Location() == "" {
			pf("place is empty")
		}
		if eq.TimeMillis() == 0 {
			pf("time is zero")
		} else if eq.Time().After(now) {
			pf("time %s is in the future", eq.Time().Format(time.RFC3339))
		}

		u, err := url.Parse(eq.DetailURL())
		switch {
		case err != nil:
			pf("url: %v", err)
		case u.Scheme != "http" && u.Scheme != "https":
			pf("url %q is not absolute http(s)", eq.DetailURL())
		}

		if prev, dup := seen[eq.DetailURL()]; dup {
			pf("url duplicates record %d", prev)
		}
		seen[eq.DetailURL()] = i
	}
	return p
}

// validateOrdering checks the newest-first order of an orderby=time query.
func validateOrdering(quakes []domain.Earthquake) *phase {
	p := &phase{name: "Newest-first ordering"}
	for i := 1; i < len(quakes); i++ {
		if quakes[i].TimeMillis() > quakes[i-1].TimeMillis() {
			p.errorf("record %d (%d) is newer than record %d (%d)",
				i, quakes[i].TimeMillis(), i-1, quakes[i-1].TimeMillis())
		}
	}
	return p
}

func validateRows(got, saved []present.Row) *phase {
	p := &phase{name: "Formatted rows"}
	if len(got) != len(saved) {
		p.errorf("rendered %d rows, saved response has %d", len(got), len(saved))
		return p
	}
	for i := range got {
		if diff := cmp.Diff(saved[i], got[i], cmpopts.IgnoreFields(present.Row{}, "Bucket")); diff != "" {
			p.errorf("row %d mismatch (-saved +rendered):\n%s", i, diff)
		}
	}
	return p
}

func loadRows(path string) ([]present.Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Rows []present.Row `json:"rows"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return resp.Rows, nil
}
