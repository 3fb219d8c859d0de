package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePriceEstimate_PointWithoutRange(t *testing.T) {
	est := ParsePriceEstimate("Le prix des appartements ... 4500 € ... m² dans la commune.")

	require.NotNil(t, est.Apartment)
	require.NotNil(t, est.Apartment.PricePerSqm)
	assert.Equal(t, 4500.0, *est.Apartment.PricePerSqm)
	assert.Nil(t, est.Apartment.Min)
	assert.Nil(t, est.Apartment.Max)
	assert.Nil(t, est.House)
	assert.True(t, est.HasData())
}

func TestParsePriceEstimate_FullPage(t *testing.T) {
	text := `Prix m² moyen appartement : 10 459 € Prix m² moyen maison : 11 920 €
		Pour les appartements, les prix vont de 7 321 € à 16 733 € selon le quartier.
		Côté maisons, comptez entre 8 100 € et 19 000 €.
		Loyer mensuel moyen appartement : 32,5 € par m². Loyer maison 27,1 €`
	est := ParsePriceEstimate(text)

	require.NotNil(t, est.Apartment)
	assert.Equal(t, 10459.0, *est.Apartment.PricePerSqm)
	assert.Equal(t, 7321.0, *est.Apartment.Min)
	assert.Equal(t, 16733.0, *est.Apartment.Max)

	require.NotNil(t, est.House)
	assert.Equal(t, 11920.0, *est.House.PricePerSqm)
	assert.Equal(t, 8100.0, *est.House.Min)
	assert.Equal(t, 19000.0, *est.House.Max)

	require.NotNil(t, est.RentApartment)
	assert.Equal(t, 32.5, *est.RentApartment)
	require.NotNil(t, est.RentHouse)
	assert.Equal(t, 27.1, *est.RentHouse)
}

func TestParsePriceEstimate_RangeOnly(t *testing.T) {
	est := ParsePriceEstimate("appartements entre 3 000 € et 5 000 € le m²")
	require.NotNil(t, est.Apartment)
	assert.Nil(t, est.Apartment.PricePerSqm, "a range never implies a point estimate")
	assert.Equal(t, 3000.0, *est.Apartment.Min)
	assert.Equal(t, 5000.0, *est.Apartment.Max)
}

func TestParsePriceEstimate_Nothing(t *testing.T) {
	est := ParsePriceEstimate("Page introuvable")
	assert.False(t, est.HasData())
	assert.Nil(t, est.Apartment)
}

func TestParseDemographics(t *testing.T) {
	text := `La commune compte 12 450 logements dont 10 020 résidences principales,
		1 230 résidences secondaires et 1 200 logements vacants.
		On y trouve 38,5 % de maisons et 60,1 % d'appartements.
		Propriétaires : 55 % ; locataires : 43,2 %.
		1 pièce : 6 % 2 pièces : 14 % 3 pièces : 22 % 4 pièces : 25 % 5 pièces ou plus : 33 %
		Avant 1919 : 10 % De 1919 à 1945 : 8 % De 1946 à 1970 : 20 % De 1971 à 1990 : 30 %
		De 1991 à 2005 : 18 % De 2006 à 2018 : 14 %`
	p := ParseDemographics(text)

	assert.Equal(t, 12450.0, *p.TotalDwellings)
	assert.Equal(t, 10020.0, *p.PrimaryResidences)
	assert.Equal(t, 1230.0, *p.SecondaryResidences)
	assert.Equal(t, 1200.0, *p.VacantDwellings)
	assert.Equal(t, 38.5, *p.HousePct)
	assert.Equal(t, 60.1, *p.ApartmentPct)
	assert.Equal(t, 55.0, *p.OwnerPct)
	assert.Equal(t, 43.2, *p.RenterPct)

	require.Len(t, p.Rooms, 5)
	assert.Equal(t, 6.0, *p.Rooms["1"])
	assert.Equal(t, 14.0, *p.Rooms["2"])
	assert.Equal(t, 33.0, *p.Rooms["5+"])

	require.Len(t, p.ConstructionPeriods, 6)
	assert.Equal(t, 10.0, *p.ConstructionPeriods["avant 1919"])
	assert.Equal(t, 14.0, *p.ConstructionPeriods["2006+"])
	assert.True(t, p.HasData())
}

func TestParseDemographics_PartialIsFine(t *testing.T) {
	p := ParseDemographics("Ici 72 % de propriétaires.")
	assert.Equal(t, 72.0, *p.OwnerPct)
	assert.Nil(t, p.TotalDwellings)
	assert.Nil(t, p.Rooms)
	assert.True(t, p.HasData())

	assert.False(t, ParseDemographics("rien").HasData())
}

func TestParseDemographics_PercentagesAreNotCounts(t *testing.T) {
	p := ParseDemographics("Résidences principales : 81 % Logements vacants : 7 %")
	assert.Nil(t, p.PrimaryResidences)
	assert.Nil(t, p.VacantDwellings)
	assert.Nil(t, p.TotalDwellings)

	p = ParseDemographics("Résidences principales : 9 870. Logements vacants : 640")
	assert.Equal(t, 9870.0, *p.PrimaryResidences)
	assert.Equal(t, 640.0, *p.VacantDwellings)
	assert.Nil(t, p.TotalDwellings)
}

func TestParseDemographics_KindCountIsNotTheTotal(t *testing.T) {
	p := ParseDemographics("On compte 1 200 logements vacants sur un parc de 20 000 logements")
	require.NotNil(t, p.TotalDwellings)
	assert.Equal(t, 20000.0, *p.TotalDwellings)
	assert.Equal(t, 1200.0, *p.VacantDwellings)

	p = ParseDemographics("Il y a 3 400 logements secondaires.")
	assert.Nil(t, p.TotalDwellings)
}
