package scraper

import "testing"

func TestParseNumber(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"850 €", 850},
		{"1.150 € VB", 1150},
		{"1.234,56 €", 1234.56},
		{"75,5 m²", 75.5},
		{"75 m²", 75},
		{"3 Zi.", 3},
		{"2,5 Zi", 2.5},
		{"3.5", 3.5},
		{"Preis: 12.000.000 €", 12000000},
	}

	for _, tt := range tests {
		got := ParseNumber(tt.raw)
		if got == nil {
			t.Errorf("ParseNumber(%q) = nil; want %.2f", tt.raw, tt.want)
			continue
		}
		if *got != tt.want {
			t.Errorf("ParseNumber(%q) = %.2f; want %.2f", tt.raw, *got, tt.want)
		}
	}
}

func TestParseNumberMissing(t *testing.T) {
	for _, raw := range []string{"", "VB", "Preis auf Anfrage", "€"} {
		if got := ParseNumber(raw); got != nil {
			t.Errorf("ParseNumber(%q) = %.2f; want nil", raw, *got)
		}
	}
}

func TestNormaliseText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  hello   world  ", "hello world"},
		{"\t28199\n  Bremen - Neustadt ", "28199 Bremen - Neustadt"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		if got := normaliseText(tt.in); got != tt.want {
			t.Errorf("normaliseText(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}
