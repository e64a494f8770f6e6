// Command quakelist runs one feed load and prints the formatted list.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/quake-report/internal/adapter/usgs"
	"github.com/couchcryptid/quake-report/internal/config"
	"github.com/couchcryptid/quake-report/internal/loader"
	"github.com/couchcryptid/quake-report/internal/observability"
	"github.com/couchcryptid/quake-report/internal/present"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	feedURL := flag.String("url", cfg.FeedURL, "feed URL")
	tz := flag.String("tz", "", "display timezone (IANA name); defaults to DISPLAY_TIMEZONE")
	minMag := flag.Float64("minmag", 0, "build a USGS query with this minimum magnitude instead of -url")
	limit := flag.Int("limit", 10, "number of events when -minmag is set")
	flag.Parse()

	loc := cfg.DisplayTimezone
	if *tz != "" {
		if loc, err = time.LoadLocation(*tz); err != nil {
			fmt.Fprintf(os.Stderr, "invalid -tz: %v\n", err)
			os.Exit(2)
		}
	}

	url := *feedURL
	if *minMag > 0 {
		url = usgs.QueryURL(usgs.Query{MinMagnitude: *minMag, Limit: *limit})
	}

	// Logs go to stderr so stdout carries only the list.
	logger := observability.NewLoggerTo(os.Stderr, cfg)
	client := usgs.NewClient(cfg.FeedConnectTimeout, cfg.FeedReadTimeout, logger)
	l := loader.New(client, logger, observability.NewUnregisteredMetrics())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var result loader.Result
	task := l.Start(ctx, url, func(r loader.Result) { result = r })
	<-task.Done()

	if !task.Delivered() {
		os.Exit(130)
	}
	if err := present.RenderList(os.Stdout, present.Rows(result.Earthquakes, loc)); err != nil {
		fmt.Fprintf(os.Stderr, "write: %v\n", err)
		os.Exit(1)
	}
}
