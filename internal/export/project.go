// Package export flattens an analysis session into named tables for a
// spreadsheet sink.
package export

import (
	"strconv"

	"github.com/yourorg/commune-insights/dvf"
	"github.com/yourorg/commune-insights/internal/canon"
	"github.com/yourorg/commune-insights/internal/pipeline"
	"github.com/yourorg/commune-insights/scrape"
)

const (
	SheetSummary      = "Synthese"
	SheetTransactions = "Transactions"
	SheetEvolution    = "Evolution"
	SheetSurfaces     = "Surfaces"
)

// Unavailable is written where a value could not be determined.
const Unavailable = "n/d"

type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

type Workbook struct {
	Prefix string
	Tables []Table
}

func (w Workbook) Table(name string) (Table, bool) {
	for _, t := range w.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Prefix names the export files of a session, e.g. "lyon_69123".
func Prefix(s *pipeline.Session) string {
	slug := canon.Slug(s.Municipality.Name)
	if slug == "" {
		return s.Municipality.Code
	}
	return slug + "_" + s.Municipality.Code
}

// Project builds the four tables in sheet order.
func Project(s *pipeline.Session) Workbook {
	return Workbook{
		Prefix: Prefix(s),
		Tables: []Table{summary(s), transactions(s), evolution(s), surfaces(s)},
	}
}

func summary(s *pipeline.Session) Table {
	m := s.Municipality
	t := Table{Name: SheetSummary, Header: []string{"Indicateur", "Valeur"}}
	add := func(k, v string) { t.Rows = append(t.Rows, []string{k, v}) }

	add("Commune", m.Name)
	add("Code INSEE", m.Code)
	add("Code postal", m.PostalCode())
	add("Département", m.Department.Name)
	add("Région", m.Region)
	add("Population", strconv.Itoa(m.Population))
	add("Superficie (ha)", num(m.AreaHectares))
	add("Densité (hab/km²)", strconv.Itoa(s.Stats.Density))
	add("Transactions", strconv.Itoa(s.Stats.TotalCount))
	add("Transactions exploitables", strconv.Itoa(s.Stats.ValidCount))
	add("Source des transactions", transactionSource(s))
	if pct := s.Evolution(); pct != nil {
		add("Évolution prix m²", signed(*pct)+" %")
	} else {
		add("Évolution prix m²", Unavailable)
	}

	for _, cat := range dvf.Categories {
		st, ok := s.Stats.PriceStats[cat]
		if !ok {
			continue
		}
		label := cat.Label()
		add(label+" - ventes", strconv.Itoa(st.Count))
		add(label+" - prix moyen m²", strconv.Itoa(st.Avg))
		add(label+" - prix médian m²", num(st.Median))
		add(label+" - prix min m²", strconv.Itoa(st.Min))
		add(label+" - prix max m²", strconv.Itoa(st.Max))
	}

	if p := s.Prices; p != nil {
		estimate := func(label string, e *scrape.CategoryEstimate) {
			if e == nil {
				return
			}
			add("Estimation "+label+" m²", opt(e.PricePerSqm))
			add("Estimation "+label+" min", opt(e.Min))
			add("Estimation "+label+" max", opt(e.Max))
		}
		estimate("appartement", p.Apartment)
		estimate("maison", p.House)
		add("Loyer appartement m²", opt(p.RentApartment))
		add("Loyer maison m²", opt(p.RentHouse))
	}

	if d := s.Demographics; d != nil {
		add("Logements", opt(d.TotalDwellings))
		add("Résidences principales", opt(d.PrimaryResidences))
		add("Résidences secondaires", opt(d.SecondaryResidences))
		add("Logements vacants", opt(d.VacantDwellings))
		add("Part maisons (%)", opt(d.HousePct))
		add("Part appartements (%)", opt(d.ApartmentPct))
		add("Propriétaires (%)", opt(d.OwnerPct))
		add("Locataires (%)", opt(d.RenterPct))
		for _, b := range scrape.RoomBuckets {
			if v, ok := d.Rooms[b]; ok {
				add("Logements "+b+" pièce(s) (%)", opt(v))
			}
		}
		for _, p := range scrape.ConstructionPeriods {
			if v, ok := d.ConstructionPeriods[p]; ok {
				add("Construits "+p+" (%)", opt(v))
			}
		}
	}
	return t
}

func transactions(s *pipeline.Session) Table {
	t := Table{
		Name:   SheetTransactions,
		Header: []string{"Date", "Type", "Adresse", "Surface (m²)", "Prix (€)", "Prix m² (€)", "Pièces", "Source"},
		Rows:   make([][]string, 0, len(s.Transactions)),
	}
	for _, tx := range s.Transactions {
		date := tx.RawDate
		if !tx.Date.IsZero() {
			date = tx.Date.Format("2006-01-02")
		}
		t.Rows = append(t.Rows, []string{
			date,
			tx.Category.Label(),
			tx.Address,
			num(tx.AreaSqm),
			num(tx.PriceEUR),
			strconv.Itoa(tx.PricePerSqmEUR),
			strconv.Itoa(tx.RoomCount),
			tx.Source,
		})
	}
	return t
}

func evolution(s *pipeline.Session) Table {
	t := Table{Name: SheetEvolution, Header: []string{"Année", "Ventes", "Prix moyen m² (€)"}, Rows: [][]string{}}
	for _, y := range s.Stats.Yearly {
		t.Rows = append(t.Rows, []string{strconv.Itoa(y.Year), strconv.Itoa(y.Count), strconv.Itoa(y.AvgPricePerSqm)})
	}
	return t
}

func surfaces(s *pipeline.Session) Table {
	t := Table{Name: SheetSurfaces, Header: []string{"Surface", "Ventes", "Part (%)"}}
	for _, b := range s.Stats.Surface {
		t.Rows = append(t.Rows, []string{b.Label, strconv.Itoa(b.Count), strconv.Itoa(b.Percent)})
	}
	return t
}

func transactionSource(s *pipeline.Session) string {
	out := s.Outcomes[pipeline.CategoryTransactions]
	if out.State == pipeline.Resolved {
		return out.Source
	}
	return "aucune donnée"
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func opt(v *float64) string {
	if v == nil {
		return Unavailable
	}
	return num(*v)
}

func signed(v int) string {
	if v > 0 {
		return "+" + strconv.Itoa(v)
	}
	return strconv.Itoa(v)
}
