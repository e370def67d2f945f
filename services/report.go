package services

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"apartment-scraper/models"
)

// CycleReport summarises one search cycle.
type CycleReport struct {
	CycleID  string
	Started  time.Time
	Duration time.Duration
	Stats    models.CycleStats

	NewListings        []models.RawListing
	ListingsByLocation map[string]int

	MinPrice     float64
	MaxPrice     float64
	AveragePrice float64
	Cheapest     *models.RawListing
}

func newCycleReport(cycleID string, started time.Time) *CycleReport {
	return &CycleReport{
		CycleID:            cycleID,
		Started:            started,
		ListingsByLocation: make(map[string]int),
	}
}

func (r *CycleReport) add(l models.RawListing) {
	r.NewListings = append(r.NewListings, l)
	if l.Location != "" {
		r.ListingsByLocation[l.Location]++
	}
}

// finish freezes the counters and computes price statistics over the
// listings that exposed a price.
func (r *CycleReport) finish(stats models.CycleStats, d time.Duration) {
	r.Stats = stats
	r.Duration = d

	var total float64
	var priced int
	for i := range r.NewListings {
		l := &r.NewListings[i]
		if l.Price == nil || *l.Price <= 0 {
			continue
		}
		price := *l.Price
		if priced == 0 || price < r.MinPrice {
			r.MinPrice = price
			r.Cheapest = l
		}
		if price > r.MaxPrice {
			r.MaxPrice = price
		}
		total += price
		priced++
	}
	if priced > 0 {
		r.AveragePrice = round2(total / float64(priced))
		r.MinPrice = round2(r.MinPrice)
		r.MaxPrice = round2(r.MaxPrice)
	}
}

// Summary is the one-line log form of the report.
func (r *CycleReport) Summary() string {
	return fmt.Sprintf("Search cycle %s completed in %s. Found: %d, Processed: %d, Errors: %d",
		r.CycleID, FormatDuration(r.Duration), r.Stats.TotalFound, r.Stats.Processed, r.Stats.Errors)
}

// Write prints the full report.
func (r *CycleReport) Write(w io.Writer) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n%s\n", sep)
	fmt.Fprintf(w, "  SEARCH CYCLE %s\n", r.CycleID)
	fmt.Fprintf(w, "%s\n\n", sep)

	fmt.Fprintf(w, "  Overview\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Started        : %s\n", r.Started.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  Duration       : %s\n", FormatDuration(r.Duration))
	fmt.Fprintf(w, "  Listings found : %d\n", r.Stats.TotalFound)
	fmt.Fprintf(w, "  New listings   : %d\n", r.Stats.Processed)
	fmt.Fprintf(w, "  Errors         : %d\n\n", r.Stats.Errors)

	fmt.Fprintf(w, "  Rent (new listings)\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.AveragePrice > 0 {
		fmt.Fprintf(w, "  Average : %.2f €\n", r.AveragePrice)
		fmt.Fprintf(w, "  Minimum : %.2f €\n", r.MinPrice)
		fmt.Fprintf(w, "  Maximum : %.2f €\n", r.MaxPrice)
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	fmt.Fprintln(w)

	if r.Cheapest != nil {
		fmt.Fprintf(w, "  Cheapest New Listing\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %s\n", truncate(r.Cheapest.Title, 50))
		fmt.Fprintf(w, "  Location : %s\n", r.Cheapest.Location)
		fmt.Fprintf(w, "  Link     : %s\n\n", r.Cheapest.URL)
	}

	fmt.Fprintf(w, "  New Listings by Location\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.ListingsByLocation) == 0 {
		fmt.Fprintf(w, "  No location data\n")
	} else {
		type locCount struct {
			loc   string
			count int
		}
		locs := make([]locCount, 0, len(r.ListingsByLocation))
		for loc, cnt := range r.ListingsByLocation {
			locs = append(locs, locCount{loc, cnt})
		}
		sort.Slice(locs, func(i, j int) bool {
			if locs[i].count != locs[j].count {
				return locs[i].count > locs[j].count
			}
			return locs[i].loc < locs[j].loc
		})
		for _, lc := range locs {
			bar := strings.Repeat("█", lc.count)
			fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(lc.loc, 28), bar, lc.count)
		}
	}

	fmt.Fprintf(w, "\n%s\n\n", sep)
}

// FormatDuration renders d as "2h 30m 15s", dropping leading zero units.
func FormatDuration(d time.Duration) string {
	total := int(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	var parts []string
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || (hours > 0 && seconds > 0) {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}
	return strings.Join(parts, " ")
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

// truncate shortens s to max runes, never splitting a multi-byte character.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
