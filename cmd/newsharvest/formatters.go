package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/pevans/newsharvest"
)

const maxCellWidth = 60

// printResultsJSON writes results as indented JSON.
func printResultsJSON(w io.Writer, results []newsharvest.SiteResult) error {
	if results == nil {
		results = []newsharvest.SiteResult{}
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// printResultsTable writes one summary row per site followed by a row per
// accepted article.
func printResultsTable(w io.Writer, results []newsharvest.SiteResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No sites scraped.")
		return
	}

	sites := table.NewWriter()
	sites.SetOutputMirror(w)
	sites.SetStyle(table.StyleRounded)
	sites.Style().Format.Footer = text.FormatDefault
	sites.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: maxCellWidth},
		{Number: 4, WidthMax: maxCellWidth},
	})
	sites.AppendHeader(table.Row{"#", "Site", "Articles", "Error"})

	articles := table.NewWriter()
	articles.SetOutputMirror(w)
	articles.SetStyle(table.StyleRounded)
	articles.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: maxCellWidth},
		{Number: 3, WidthMax: maxCellWidth},
	})
	articles.AppendHeader(table.Row{"Site", "Headline", "URL", "Published"})

	total := 0
	for i, result := range results {
		errText := result.Error
		if errText == "" {
			errText = "-"
		}
		sites.AppendRow(table.Row{i + 1, result.Site.HeadlineURL, result.HeadlineCount, errText})

		for _, article := range result.ContentData {
			articles.AppendRow(table.Row{i + 1, oneLine(article.Headline), article.ArticleURL, article.PublishDate})
		}
		total += result.HeadlineCount
	}
	sites.AppendFooter(table.Row{"", "Total", total, ""})

	sites.Render()
	if total > 0 {
		fmt.Fprintln(w)
		articles.Render()
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
