package scrape

// CategoryEstimate is a price per m² with an optional range. Nil means the
// page did not say.
type CategoryEstimate struct {
	PricePerSqm *float64 `json:"price_per_sqm"`
	Min         *float64 `json:"min"`
	Max         *float64 `json:"max"`
}

func (c *CategoryEstimate) hasData() bool {
	return c != nil && (c.PricePerSqm != nil || c.Min != nil || c.Max != nil)
}

type PriceEstimate struct {
	Apartment     *CategoryEstimate `json:"apartment,omitempty"`
	House         *CategoryEstimate `json:"house,omitempty"`
	RentApartment *float64          `json:"rent_apartment,omitempty"`
	RentHouse     *float64          `json:"rent_house,omitempty"`
}

func (p PriceEstimate) HasData() bool {
	return p.Apartment.hasData() || p.House.hasData() || p.RentApartment != nil || p.RentHouse != nil
}

// Room buckets and construction periods, in display order.
var (
	RoomBuckets         = []string{"1", "2", "3", "4", "5+"}
	ConstructionPeriods = []string{"avant 1919", "1919-1945", "1946-1970", "1971-1990", "1991-2005", "2006+"}
)

type DemographicProfile struct {
	TotalDwellings      *float64            `json:"total_dwellings,omitempty"`
	PrimaryResidences   *float64            `json:"primary_residences,omitempty"`
	SecondaryResidences *float64            `json:"secondary_residences,omitempty"`
	VacantDwellings     *float64            `json:"vacant_dwellings,omitempty"`
	HousePct            *float64            `json:"house_pct,omitempty"`
	ApartmentPct        *float64            `json:"apartment_pct,omitempty"`
	OwnerPct            *float64            `json:"owner_pct,omitempty"`
	RenterPct           *float64            `json:"renter_pct,omitempty"`
	Rooms               map[string]*float64 `json:"rooms,omitempty"`
	ConstructionPeriods map[string]*float64 `json:"construction_periods,omitempty"`
}

func (d DemographicProfile) HasData() bool {
	for _, v := range []*float64{d.TotalDwellings, d.PrimaryResidences, d.SecondaryResidences,
		d.VacantDwellings, d.HousePct, d.ApartmentPct, d.OwnerPct, d.RenterPct} {
		if v != nil {
			return true
		}
	}
	return anyValue(d.Rooms) || anyValue(d.ConstructionPeriods)
}

func anyValue(m map[string]*float64) bool {
	for _, v := range m {
		if v != nil {
			return true
		}
	}
	return false
}
