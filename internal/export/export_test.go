package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/commune-insights/dvf"
	"github.com/yourorg/commune-insights/geo"
	"github.com/yourorg/commune-insights/internal/pipeline"
	"github.com/yourorg/commune-insights/internal/stats"
	"github.com/yourorg/commune-insights/scrape"
)

func session(txs []dvf.Transaction, out pipeline.Outcome) *pipeline.Session {
	m := geo.Municipality{
		Name: "Saint-Étienne", Code: "42218", PostalCodes: []string{"42000"},
		Population: 173089, AreaHectares: 7997,
		Department: geo.Department{Name: "Loire", Code: "42"}, Region: "Auvergne-Rhône-Alpes",
	}
	return &pipeline.Session{
		ID:           "s1",
		Municipality: m,
		Transactions: txs,
		Stats:        stats.Compute(txs, m),
		Outcomes:     map[pipeline.Category]pipeline.Outcome{pipeline.CategoryTransactions: out},
	}
}

func rows(t Table) map[string]string {
	out := map[string]string{}
	for _, r := range t.Rows {
		out[r[0]] = r[1]
	}
	return out
}

func TestProject_TablesInOrder(t *testing.T) {
	s := session([]dvf.Transaction{
		dvf.NewTransaction("2022-05-01", dvf.Apartment, "3 Rue de la Paix", 50, 100000, 2, "etalab"),
		dvf.NewTransaction("2023-06-01", dvf.Apartment, "5 Rue de la Paix", 40, 100000, 2, "etalab"),
		dvf.NewTransaction("", dvf.House, "Adresse non renseignée", 0, 150000, 4, "etalab"),
	}, pipeline.Outcome{State: pipeline.Resolved, Attempt: 1, Source: "etalab"})

	wb := Project(s)
	assert.Equal(t, "saint-etienne_42218", wb.Prefix)
	names := []string{}
	for _, tb := range wb.Tables {
		names = append(names, tb.Name)
	}
	assert.Equal(t, []string{SheetSummary, SheetTransactions, SheetEvolution, SheetSurfaces}, names)

	sum, ok := wb.Table(SheetSummary)
	require.True(t, ok)
	kv := rows(sum)
	assert.Equal(t, "Saint-Étienne", kv["Commune"])
	assert.Equal(t, "2164", kv["Densité (hab/km²)"])
	assert.Equal(t, "3", kv["Transactions"])
	assert.Equal(t, "2", kv["Transactions exploitables"])
	assert.Equal(t, "etalab", kv["Source des transactions"])
	assert.Equal(t, "+25 %", kv["Évolution prix m²"])
	assert.Equal(t, "2250", kv["Appartement - prix moyen m²"])
	assert.Equal(t, "2250", kv["Appartement - prix médian m²"])
	assert.NotContains(t, kv, "Maison - ventes")
	assert.NotContains(t, kv, "Logements")

	txs, _ := wb.Table(SheetTransactions)
	require.Len(t, txs.Rows, 3)
	assert.Equal(t, []string{"2022-05-01", "Appartement", "3 Rue de la Paix", "50", "100000", "2000", "2", "etalab"}, txs.Rows[0])
	assert.Equal(t, "", txs.Rows[2][0])
	assert.Equal(t, "0", txs.Rows[2][5])

	evo, _ := wb.Table(SheetEvolution)
	assert.Equal(t, [][]string{{"2022", "1", "2000"}, {"2023", "1", "2500"}}, evo.Rows)

	surf, _ := wb.Table(SheetSurfaces)
	require.Len(t, surf.Rows, 6)
	assert.Equal(t, []string{"30-60 m²", "2", "100"}, surf.Rows[1])
}

func TestProject_EmptyAndLateSections(t *testing.T) {
	s := session([]dvf.Transaction{}, pipeline.Outcome{State: pipeline.Exhausted, Attempt: 3})
	price := 4500.0
	owners := 41.0
	s.Prices = &scrape.PriceEstimate{Apartment: &scrape.CategoryEstimate{PricePerSqm: &price}}
	s.Demographics = &scrape.DemographicProfile{OwnerPct: &owners, Rooms: map[string]*float64{"2": nil}}

	wb := Project(s)
	kv := rows(wb.Tables[0])
	assert.Equal(t, "aucune donnée", kv["Source des transactions"])
	assert.Equal(t, Unavailable, kv["Évolution prix m²"])
	assert.Equal(t, "4500", kv["Estimation appartement m²"])
	assert.Equal(t, Unavailable, kv["Estimation appartement min"])
	assert.NotContains(t, kv, "Estimation maison m²")
	assert.Equal(t, "41", kv["Propriétaires (%)"])
	assert.Equal(t, Unavailable, kv["Logements 2 pièce(s) (%)"])
	assert.NotContains(t, kv, "Logements 3 pièce(s) (%)")

	txs, _ := wb.Table(SheetTransactions)
	assert.Empty(t, txs.Rows)
	surf, _ := wb.Table(SheetSurfaces)
	for _, r := range surf.Rows {
		assert.Equal(t, "0", r[2])
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, Table{Header: []string{"a", "b"}, Rows: [][]string{{"1", "x, y"}}}))
	assert.Equal(t, "a,b\n1,\"x, y\"\n", buf.String())
}

func TestCSVSink_Write(t *testing.T) {
	dir := t.TempDir()
	s := session([]dvf.Transaction{dvf.NewTransaction("2022-05-01", dvf.House, "1 Rue A", 100, 200000, 4, "cquest")}, pipeline.Outcome{State: pipeline.Resolved, Source: "cquest"})

	paths, err := CSVSink{Dir: filepath.Join(dir, "out"), Comma: ';'}.Write(Project(s))
	require.NoError(t, err)
	require.Len(t, paths, 4)
	assert.Equal(t, filepath.Join(dir, "out", "saint-etienne_42218_transactions.csv"), paths[1])

	f, err := os.Open(paths[1])
	require.NoError(t, err)
	defer f.Close()
	r := csv.NewReader(f)
	r.Comma = ';'
	recs, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Date", recs[0][0])
	assert.Equal(t, "2000", recs[1][5])
}
