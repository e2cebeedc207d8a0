package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pevans/newsharvest"
	"github.com/pevans/newsharvest/scraper"
)

func runScrape(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("scrape", flag.ExitOnError)
	configPath := configFlag(fs)
	sitesPath := fs.String("sites", "", "JSON file with an array of site descriptors (- for stdin)")
	format := fs.String("format", "table", "output format: table or json")
	noDeliver := fs.Bool("no-deliver", false, "skip webhook delivery")
	fs.Parse(args)

	if *sitesPath == "" {
		return errors.New("-sites is required")
	}
	if *format != "table" && *format != "json" {
		return fmt.Errorf("unknown format %q (use table or json)", *format)
	}

	sites, err := readSites(*sitesPath)
	if err != nil {
		return err
	}

	var extra []newsharvest.Option
	if *noDeliver {
		extra = append(extra, newsharvest.WithSink(nil))
	}

	a, err := newApp(ctx, *configPath, extra...)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.harvester.ScrapeWebsites(ctx, sites)
	if err != nil {
		return fmt.Errorf("scrape run failed: %w", err)
	}

	if *format == "json" {
		return printResultsJSON(os.Stdout, results)
	}
	printResultsTable(os.Stdout, results)
	return nil
}

// readSites loads a descriptor array from path, or stdin for "-".
func readSites(path string) ([]scraper.SiteDescriptor, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sites file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var sites []scraper.SiteDescriptor
	if err := json.NewDecoder(r).Decode(&sites); err != nil {
		return nil, fmt.Errorf("failed to parse sites file: %w", err)
	}
	return sites, nil
}
