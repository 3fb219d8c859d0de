package scrape

import (
	"github.com/yourorg/commune-insights/internal/extract"
)

// Magnitudes may carry thousands spaces but always end on a digit;
// percentages are kept short so that a neighbouring year or count is never
// glued onto them.
const (
	num = `(\d(?:[\d\s\x{00a0}\x{202f}]*\d)?(?:[.,]\d+)?)`
	pct = `(\d{1,3}(?:[.,]\d+)?)`
	gap = `[^€\d]{0,120}?`
)

const (
	factAptPrice   = "apartment.price"
	factAptMin     = "apartment.min"
	factAptMax     = "apartment.max"
	factHousePrice = "house.price"
	factHouseMin   = "house.min"
	factHouseMax   = "house.max"
	factRentApt    = "rent.apartment"
	factRentHouse  = "rent.house"
)

// categoryRules builds price rules for one property noun ("appartements?").
func categoryRules(noun, price, lo, hi string) extract.Table {
	return extract.Table{
		extract.NewRule(`prix\s+(?:du\s+)?m²\s+moyen\s+(?:des\s+)?`+noun+`\s*:?\s*`+num+`\s*€`, price),
		extract.NewRule(noun+gap+num+`\s*€[^\d]{0,30}?m²`, price),
		extract.NewRule(noun+gap+num+`\s*€\s*(?:/|par)\s*m`, price),
		extract.NewRule(noun+`[^€]{0,200}?(?:de|entre)\s+`+num+`\s*€\s+(?:à|et)\s+`+num+`\s*€`, lo, hi),
		extract.NewRule(noun+`[^€]{0,120}?fourchette[^\d]{0,40}?`+num+`\s*€?\s*[-–]\s*`+num+`\s*€`, lo, hi),
	}
}

var priceRules = concat(
	categoryRules(`appartements?`, factAptPrice, factAptMin, factAptMax),
	categoryRules(`maisons?`, factHousePrice, factHouseMin, factHouseMax),
	extract.Table{
		extract.NewRule(`loyer`+gap+`appartements?`+gap+num+`\s*€`, factRentApt),
		extract.NewRule(`appartements?[^€\d]{0,40}?loyer`+gap+num+`\s*€`, factRentApt),
		extract.NewRule(`loyer`+gap+`maisons?`+gap+num+`\s*€`, factRentHouse),
		extract.NewRule(`maisons?[^€\d]{0,40}?loyer`+gap+num+`\s*€`, factRentHouse),
	},
)

const (
	factDwellings = "dwellings.total"
	factPrimary   = "dwellings.primary"
	factSecondary = "dwellings.secondary"
	factVacant    = "dwellings.vacant"
	factHousePct  = "share.house"
	factAptPct    = "share.apartment"
	factOwnerPct  = "tenure.owner"
	factRenterPct = "tenure.renter"
)

// dwellingKinds marks a count of one kind of dwelling, never the total.
const dwellingKinds = `logements\s+(?:vacants|secondaires|principales|occasionnels)`

func roomFact(bucket string) string {
	return "rooms." + bucket
}

func periodFact(period string) string {
	return "period." + period
}

func sharePair(label, fact string) extract.Table {
	return extract.Table{
		extract.NewRule(pct+`\s*%\s*(?:de\s+|d['’]\s*)?`+label, fact),
		extract.NewRule(label+`\s*:?\s*`+pct+`\s*%`, fact),
	}
}

var demographicRules = concat(
	extract.Table{
		extract.NewRule(`nombre\s+(?:total\s+)?de\s+logements\s*:?\s*`+num, factDwellings),
		extract.NewRule(`compte\s+`+num+`\s*logements\b(?:\s+\p{L}+)?`, factDwellings).Except(dwellingKinds),
		extract.NewRule(num+`\s*logements\b(?:\s+\p{L}+)?`, factDwellings).Except(dwellingKinds),

		extract.NewRule(num+`\s*résidences?\s+principales`, factPrimary),
		extract.NewRule(`résidences?\s+principales?\s*:\s*`+num+`(?:\s*logements)?\s*(?:[^%\d\s]|$)`, factPrimary),
		extract.NewRule(num+`\s*résidences?\s+secondaires`, factSecondary),
		extract.NewRule(`résidences?\s+secondaires?(?:\s+et\s+logements\s+occasionnels)?\s*:\s*`+num+`\s*(?:[^%\d\s]|$)`, factSecondary),
		extract.NewRule(num+`\s*logements?\s+vacants`, factVacant),
		extract.NewRule(`logements?\s+vacants?\s*:\s*`+num+`\s*(?:[^%\d\s]|$)`, factVacant),
	},
	sharePair(`maisons`, factHousePct),
	sharePair(`appartements`, factAptPct),
	sharePair(`propriétaires(?:\s+occupants)?`, factOwnerPct),
	sharePair(`locataires`, factRenterPct),
	extract.Table{
		extract.NewRule(`(?:^|[^\d])1\s*pièce\b\s*:?\s*`+pct+`\s*%`, roomFact("1")),
		extract.NewRule(`(?:^|[^\d])2\s*pièces\s*:?\s*`+pct+`\s*%`, roomFact("2")),
		extract.NewRule(`(?:^|[^\d])3\s*pièces\s*:?\s*`+pct+`\s*%`, roomFact("3")),
		extract.NewRule(`(?:^|[^\d])4\s*pièces\s*:?\s*`+pct+`\s*%`, roomFact("4")),
		extract.NewRule(`(?:^|[^\d])5\s*pièces?\s*(?:ou\s+plus|et\s+plus|\+)\s*:?\s*`+pct+`\s*%`, roomFact("5+")),

		extract.NewRule(`avant\s+1919\s*:?\s*`+pct+`\s*%`, periodFact("avant 1919")),
		extract.NewRule(`1919\s*(?:à|-|et)\s*1945\s*:?\s*`+pct+`\s*%`, periodFact("1919-1945")),
		extract.NewRule(`1946\s*(?:à|-|et)\s*1970\s*:?\s*`+pct+`\s*%`, periodFact("1946-1970")),
		extract.NewRule(`1971\s*(?:à|-|et)\s*1990\s*:?\s*`+pct+`\s*%`, periodFact("1971-1990")),
		extract.NewRule(`1991\s*(?:à|-|et)\s*2005\s*:?\s*`+pct+`\s*%`, periodFact("1991-2005")),
		extract.NewRule(`2006\s*(?:à|-|et)\s*20\d\d\s*:?\s*`+pct+`\s*%`, periodFact("2006+")),
		extract.NewRule(`(?:depuis|après)\s+200[56]\s*:?\s*`+pct+`\s*%`, periodFact("2006+")),
	},
)

func concat(tables ...extract.Table) extract.Table {
	var out extract.Table
	for _, t := range tables {
		out = append(out, t...)
	}
	return out
}

// ParsePriceEstimate runs the price rule table over page text.
func ParsePriceEstimate(text string) PriceEstimate {
	r := priceRules.Extract(text)
	est := PriceEstimate{
		RentApartment: r.Value(factRentApt),
		RentHouse:     r.Value(factRentHouse),
	}
	if c := categoryEstimate(r, factAptPrice, factAptMin, factAptMax); c != nil {
		est.Apartment = c
	}
	if c := categoryEstimate(r, factHousePrice, factHouseMin, factHouseMax); c != nil {
		est.House = c
	}
	return est
}

func categoryEstimate(r extract.Result, price, lo, hi string) *CategoryEstimate {
	if !r.Has(price) && !r.Has(lo) && !r.Has(hi) {
		return nil
	}
	return &CategoryEstimate{PricePerSqm: r.Value(price), Min: r.Value(lo), Max: r.Value(hi)}
}

// ParseDemographics runs the demographic rule table over page text.
func ParseDemographics(text string) DemographicProfile {
	r := demographicRules.Extract(text)
	p := DemographicProfile{
		TotalDwellings:      r.Value(factDwellings),
		PrimaryResidences:   r.Value(factPrimary),
		SecondaryResidences: r.Value(factSecondary),
		VacantDwellings:     r.Value(factVacant),
		HousePct:            r.Value(factHousePct),
		ApartmentPct:        r.Value(factAptPct),
		OwnerPct:            r.Value(factOwnerPct),
		RenterPct:           r.Value(factRenterPct),
	}
	p.Rooms = subset(r, RoomBuckets, roomFact)
	p.ConstructionPeriods = subset(r, ConstructionPeriods, periodFact)
	return p
}

func subset(r extract.Result, keys []string, fact func(string) string) map[string]*float64 {
	var out map[string]*float64
	for _, k := range keys {
		if !r.Has(fact(k)) {
			continue
		}
		if out == nil {
			out = map[string]*float64{}
		}
		out[k] = r.Value(fact(k))
	}
	return out
}
