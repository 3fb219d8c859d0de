package dvf

import (
	"math"
	"strings"
	"time"
)

type Category string

const (
	House      Category = "House"
	Apartment  Category = "Apartment"
	Land       Category = "Land"
	Commercial Category = "Commercial"
	Other      Category = "Other"
)

// Categories lists every category in display order.
var Categories = []Category{House, Apartment, Land, Commercial, Other}

// Label is the French display label.
func (c Category) Label() string {
	switch c {
	case House:
		return "Maison"
	case Apartment:
		return "Appartement"
	case Land:
		return "Terrain / Dépendance"
	case Commercial:
		return "Local commercial"
	default:
		return "Autre"
	}
}

// Order matters: labels such as "Appartement avec dépendance" hit several
// needles and the earlier group wins.
var categoryNeedles = []struct {
	cat     Category
	needles []string
}{
	{House, []string{"maison", "house", "villa"}},
	{Apartment, []string{"appartement", "appart", "apartment", "studio"}},
	{Land, []string{"terrain", "dépendance", "dependance", "land"}},
	{Commercial, []string{"local", "commerc", "industriel", "boutique", "bureau"}},
}

// NormalizeCategory maps a raw type label onto a Category.
func NormalizeCategory(raw string) Category {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return Other
	}
	for _, group := range categoryNeedles {
		for _, n := range group.needles {
			if strings.Contains(s, n) {
				return group.cat
			}
		}
	}
	return Other
}

// Transaction is the canonical sale record every source maps into.
type Transaction struct {
	Date           time.Time `json:"date"`
	RawDate        string    `json:"raw_date"`
	Category       Category  `json:"category"`
	Address        string    `json:"address"`
	AreaSqm        float64   `json:"area_sqm"`
	PriceEUR       float64   `json:"price_eur"`
	PricePerSqmEUR int       `json:"price_per_sqm_eur"`
	RoomCount      int       `json:"room_count"`
	Source         string    `json:"source"`
}

// NewTransaction clamps negatives to zero and derives the price per m².
func NewTransaction(date string, cat Category, address string, area, price float64, rooms int, source string) Transaction {
	area = math.Max(area, 0)
	price = math.Max(price, 0)
	if rooms < 0 {
		rooms = 0
	}
	return Transaction{
		Date:           ParseDate(date),
		RawDate:        date,
		Category:       cat,
		Address:        address,
		AreaSqm:        area,
		PriceEUR:       price,
		PricePerSqmEUR: PricePerSqm(price, area),
		RoomCount:      rooms,
		Source:         source,
	}
}

// Valid reports whether the sale can feed statistics.
func (t Transaction) Valid() bool { return t.PriceEUR > 0 && t.AreaSqm > 0 }

// PricePerSqm is round(price/area), 0 without an area.
func PricePerSqm(price, area float64) int {
	if area <= 0 {
		return 0
	}
	return int(math.Floor(price/area + 0.5))
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "02/01/2006"}

// ParseDate accepts the date shapes seen across sources; zero when unknown.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
