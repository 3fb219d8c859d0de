package geo

// Municipality is a resolved commune. Treat it as immutable.
type Municipality struct {
	Name         string     `json:"name"`
	Code         string     `json:"code"`
	PostalCodes  []string   `json:"postal_codes"`
	Population   int        `json:"population"`
	AreaHectares float64    `json:"area_hectares"`
	Department   Department `json:"department"`
	Region       string     `json:"region"`
}

type Department struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// PostalCode is the first postal code, "" when none is known.
func (m Municipality) PostalCode() string {
	if len(m.PostalCodes) == 0 {
		return ""
	}
	return m.PostalCodes[0]
}

// apiCommune mirrors geo.api.gouv.fr /communes items.
type apiCommune struct {
	Nom          string   `json:"nom"`
	Code         string   `json:"code"`
	CodesPostaux []string `json:"codesPostaux"`
	Population   int      `json:"population"`
	Surface      float64  `json:"surface"`
	Departement  *struct {
		Code string `json:"code"`
		Nom  string `json:"nom"`
	} `json:"departement"`
	Region *struct {
		Code string `json:"code"`
		Nom  string `json:"nom"`
	} `json:"region"`
}

func (c apiCommune) municipality() Municipality {
	m := Municipality{
		Name:         c.Nom,
		Code:         c.Code,
		PostalCodes:  append([]string{}, c.CodesPostaux...),
		Population:   max(c.Population, 0),
		AreaHectares: max(c.Surface, 0),
	}
	if c.Departement != nil {
		m.Department = Department{Name: c.Departement.Nom, Code: c.Departement.Code}
	}
	if c.Region != nil {
		m.Region = c.Region.Nom
	}
	return m
}
