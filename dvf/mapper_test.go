package dvf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/commune-insights/internal/canon"
)

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		raw  string
		want Category
	}{
		{"Maison", House},
		{"APPARTEMENT", Apartment},
		{"Dépendance", Land},
		{"terrains a bâtir", Land},
		{"Local industriel. commercial ou assimilé", Commercial},
		{"", Other},
		{"Parking", Other},
		{"Maison avec appartement", House},
		{"Appartement et dépendance", Apartment},
		{"Dépendance de local", Land},
		{"Villa", House},
		{"Studio meublé", Apartment},
		{"Bureau", Commercial},
		{"land", Land},
		{"Sous-sol", Other},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCategory(tt.raw))
		})
	}
}

func TestPricePerSqmInvariant(t *testing.T) {
	assert.Equal(t, 10000, PricePerSqm(500000, 50))
	assert.Equal(t, 3333, PricePerSqm(100000, 30))
	assert.Equal(t, 3, PricePerSqm(5, 2), "half rounds up")
	assert.Equal(t, 0, PricePerSqm(100000, 0))

	tx := NewTransaction("2022-05-01", Apartment, "x", -3, 1000, -1, "t")
	assert.Equal(t, 0.0, tx.AreaSqm)
	assert.Equal(t, 0, tx.PricePerSqmEUR)
	assert.Equal(t, 0, tx.RoomCount)
	assert.False(t, tx.Valid())
}

func TestParseDate(t *testing.T) {
	assert.Equal(t, time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC), ParseDate("2022-05-01"))
	assert.Equal(t, 2021, ParseDate("2021-03-04T00:00:00").Year())
	assert.Equal(t, 2020, ParseDate("15/06/2020").Year())
	assert.True(t, ParseDate("sometime").IsZero())
}

func TestDecodeEtalab(t *testing.T) {
	raw := []byte(`{"mutations":[
		{"date_mutation":"2022-05-01","valeur_fonciere":"500000","adresse_numero":12,"adresse_nom_voie":"RUE DE RIVOLI",
		 "type_local":"Appartement","surface_reelle_bati":50,"nombre_pieces_principales":"2"},
		{"date_mutation":"2023-01-10","valeur_fonciere":80000,"type_local":null,"nature_culture":"terrains a bâtir","surface_terrain":"400"},
		{"date_mutation":"2023-02-10","valeur_fonciere":"abc","adresse":"Lieu-dit Les Prés"}
	]}`)
	txs, err := DecodeEtalab(raw)
	require.NoError(t, err)
	require.Len(t, txs, 3)

	assert.Equal(t, "12 RUE DE RIVOLI", txs[0].Address)
	assert.Equal(t, Apartment, txs[0].Category)
	assert.Equal(t, 10000, txs[0].PricePerSqmEUR)
	assert.Equal(t, 2, txs[0].RoomCount)
	assert.Equal(t, SourceEtalab, txs[0].Source)

	assert.Equal(t, Land, txs[1].Category)
	assert.Equal(t, 400.0, txs[1].AreaSqm)
	assert.Equal(t, 200, txs[1].PricePerSqmEUR)
	assert.Equal(t, canon.Placeholder, txs[1].Address)

	assert.Equal(t, "Lieu-dit Les Prés", txs[2].Address)
	assert.Equal(t, 0.0, txs[2].PriceEUR)
	assert.Equal(t, Other, txs[2].Category)
}

func TestDecodeCquest(t *testing.T) {
	raw := []byte(`{"resultats":[
		{"date_mutation":"2021-07-12","valeur_fonciere":245000.5,"numero_voie":"3","type_voie":"AV","voie":"DES LILAS",
		 "type_local":"Maison","surface_relle_bati":"98","nombre_pieces_principales":4},
		{"date_mutation":"2021-07-13","valeur_fonciere":"120 000","type_local":"Local industriel. commercial ou assimilé","surface_reelle_bati":60}
	]}`)
	txs, err := DecodeCquest(raw)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	assert.Equal(t, "3 Avenue DES LILAS", txs[0].Address)
	assert.Equal(t, House, txs[0].Category)
	assert.Equal(t, 98.0, txs[0].AreaSqm)
	assert.Equal(t, 2500, txs[0].PricePerSqmEUR)
	assert.Equal(t, 4, txs[0].RoomCount)

	assert.Equal(t, Commercial, txs[1].Category)
	assert.Equal(t, 60.0, txs[1].AreaSqm)
	assert.Equal(t, 120000.0, txs[1].PriceEUR)
}

func TestDecodeOpenData(t *testing.T) {
	raw := []byte(`{"total_count":1,"results":[
		{"date_mutation":"2020-02-02","valeur_fonciere":300000,"adresse_numero":"7","adresse_nom_voie":"Place du Marché",
		 "type_local":"Appartement","surface_reelle_bati":"75,5","nombre_pieces_principales":3}
	]}`)
	txs, err := DecodeOpenData(raw)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "7 Place du Marché", txs[0].Address)
	assert.InDelta(t, 75.5, txs[0].AreaSqm, 1e-9)
	assert.Equal(t, 3974, txs[0].PricePerSqmEUR)
}

func TestDecode_MalformedEnvelopes(t *testing.T) {
	_, err := DecodeEtalab([]byte(`{"resultats":[]}`))
	assert.ErrorIs(t, err, ErrMalformedEnvelope)

	_, err = DecodeCquest([]byte(`not json`))
	assert.Error(t, err)

	_, err = DecodeOpenData([]byte(`{"results":null}`))
	assert.ErrorIs(t, err, ErrMalformedEnvelope)

	txs, err := DecodeOpenData([]byte(`{"results":[]}`))
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestDecodeEtalab_OddFieldTypesDefaultToZero(t *testing.T) {
	raw := []byte(`{"mutations":[
		{"date_mutation":"2022-05-01","valeur_fonciere":300000,"type_local":"Maison","surface_reelle_bati":100,"nombre_pieces_principales":4},
		{"date_mutation":"2022-06-01","valeur_fonciere":{"v":1},"type_local":"Appartement","surface_reelle_bati":[40],"nombre_pieces_principales":true}
	]}`)
	txs, err := DecodeEtalab(raw)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	assert.Equal(t, 3000, txs[0].PricePerSqmEUR)
	assert.Equal(t, 4, txs[0].RoomCount)

	assert.Equal(t, Apartment, txs[1].Category)
	assert.Zero(t, txs[1].PriceEUR)
	assert.Zero(t, txs[1].AreaSqm)
	assert.Zero(t, txs[1].RoomCount)
	assert.False(t, txs[1].Valid())
}

func TestDecodeOpenData_NonFiniteNumbers(t *testing.T) {
	raw := []byte(`{"results":[
		{"date_mutation":"2020-02-02","valeur_fonciere":"Infinity","type_local":"Appartement","surface_reelle_bati":50},
		{"date_mutation":"2020-02-03","valeur_fonciere":"NaN","type_local":"Maison","surface_reelle_bati":"-Inf"}
	]}`)
	txs, err := DecodeOpenData(raw)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	for _, tx := range txs {
		assert.False(t, tx.Valid())
		assert.Zero(t, tx.PriceEUR)
		assert.GreaterOrEqual(t, tx.PricePerSqmEUR, 0)
	}
	assert.Equal(t, 50.0, txs[0].AreaSqm)
	assert.Zero(t, txs[1].AreaSqm)
}
