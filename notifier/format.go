package notifier

import (
	"fmt"
	"html"
	"strconv"

	"apartment-scraper/models"
)

const placeholder = "Keine Angabe"

// FormatListing renders the notification text for a new listing. Missing
// optional fields are replaced by a placeholder. Values are HTML-escaped
// because messages are sent in HTML parse mode.
func FormatListing(l *models.RawListing) string {
	location := placeholder
	if l.Location != "" {
		location = l.Location
	}

	return fmt.Sprintf("Neue Wohnung gefunden!\n\nOrt: %s\nPreis: %s€\nGröße: %sm²\nZimmer: %s\n\nLink: %s",
		html.EscapeString(location),
		formatNumber(l.Price),
		formatNumber(l.Size),
		formatNumber(l.Rooms),
		html.EscapeString(l.URL),
	)
}

func formatNumber(v *float64) string {
	if v == nil {
		return placeholder
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
