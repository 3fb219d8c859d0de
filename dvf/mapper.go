package dvf

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/yourorg/commune-insights/internal/canon"
)

var ErrMalformedEnvelope = errors.New("malformed envelope")

// stringNumber accepts string or number JSON and stores as string
type stringNumber string

func (s *stringNumber) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			*s = ""
			return nil
		}
		*s = stringNumber(str)
		return nil
	}
	// booleans, objects and arrays read as absent rather than failing the row
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		*s = ""
		return nil
	}
	*s = stringNumber(num.String())
	return nil
}

// Float parses the value, 0 on absence or garbage.
func (s stringNumber) Float() float64 {
	v := strings.ReplaceAll(strings.TrimSpace(string(s)), " ", "")
	v = strings.Replace(v, ",", ".", 1)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}

func (s stringNumber) Int() int { return int(s.Float()) }

func (s stringNumber) String() string { return strings.TrimSpace(string(s)) }

// EtalabMutation is one row of the app.dvf.etalab.gouv.fr mutations API.
type EtalabMutation struct {
	DateMutation      string       `json:"date_mutation"`
	ValeurFonciere    stringNumber `json:"valeur_fonciere"`
	AdresseNumero     stringNumber `json:"adresse_numero"`
	AdresseSuffixe    string       `json:"adresse_suffixe"`
	AdresseNomVoie    string       `json:"adresse_nom_voie"`
	Adresse           string       `json:"adresse"`
	TypeLocal         string       `json:"type_local"`
	NatureCulture     string       `json:"nature_culture"`
	SurfaceReelleBati stringNumber `json:"surface_reelle_bati"`
	SurfaceTerrain    stringNumber `json:"surface_terrain"`
	NombrePieces      stringNumber `json:"nombre_pieces_principales"`
}

// CquestResult is one row of the api.cquest.org DVF API. The upstream
// misspells the built surface column, both spellings are accepted.
type CquestResult struct {
	DateMutation      string       `json:"date_mutation"`
	ValeurFonciere    stringNumber `json:"valeur_fonciere"`
	NumeroVoie        stringNumber `json:"numero_voie"`
	BTQ               string       `json:"b_t_q"`
	TypeVoie          string       `json:"type_voie"`
	Voie              string       `json:"voie"`
	Adresse           string       `json:"adresse"`
	TypeLocal         string       `json:"type_local"`
	NatureCulture     string       `json:"nature_culture"`
	SurfaceRelleBati  stringNumber `json:"surface_relle_bati"`
	SurfaceReelleBati stringNumber `json:"surface_reelle_bati"`
	SurfaceTerrain    stringNumber `json:"surface_terrain"`
	NombrePieces      stringNumber `json:"nombre_pieces_principales"`
}

// OpenDataRecord is one record of the open-data catalog (explore v2.1).
type OpenDataRecord struct {
	DateMutation      string       `json:"date_mutation"`
	ValeurFonciere    stringNumber `json:"valeur_fonciere"`
	AdresseNumero     stringNumber `json:"adresse_numero"`
	AdresseNomVoie    string       `json:"adresse_nom_voie"`
	Adresse           string       `json:"adresse"`
	TypeLocal         string       `json:"type_local"`
	SurfaceReelleBati stringNumber `json:"surface_reelle_bati"`
	SurfaceTerrain    stringNumber `json:"surface_terrain"`
	NombrePieces      stringNumber `json:"nombre_pieces_principales"`
}

const (
	SourceEtalab   = "etalab"
	SourceCquest   = "cquest"
	SourceOpenData = "opendata"
)

func MapEtalab(m EtalabMutation) Transaction {
	street := ""
	if m.AdresseNomVoie != "" {
		street = canon.Address(m.AdresseNumero.String(), m.AdresseSuffixe, "", m.AdresseNomVoie)
	}
	cat := NormalizeCategory(firstNonEmpty(m.TypeLocal, m.NatureCulture))
	return NewTransaction(m.DateMutation, cat, canon.FirstAddress(street, m.Adresse),
		area(m.SurfaceReelleBati, m.SurfaceTerrain), m.ValeurFonciere.Float(), m.NombrePieces.Int(), SourceEtalab)
}

func MapCquest(r CquestResult) Transaction {
	street := ""
	if r.Voie != "" {
		street = canon.Address(r.NumeroVoie.String(), r.BTQ, r.TypeVoie, r.Voie)
	}
	built := r.SurfaceRelleBati
	if built.Float() == 0 {
		built = r.SurfaceReelleBati
	}
	cat := NormalizeCategory(firstNonEmpty(r.TypeLocal, r.NatureCulture))
	return NewTransaction(r.DateMutation, cat, canon.FirstAddress(street, r.Adresse),
		area(built, r.SurfaceTerrain), r.ValeurFonciere.Float(), r.NombrePieces.Int(), SourceCquest)
}

func MapOpenData(r OpenDataRecord) Transaction {
	street := ""
	if r.AdresseNomVoie != "" {
		street = canon.Address(r.AdresseNumero.String(), "", "", r.AdresseNomVoie)
	}
	return NewTransaction(r.DateMutation, NormalizeCategory(r.TypeLocal), canon.FirstAddress(street, r.Adresse),
		area(r.SurfaceReelleBati, r.SurfaceTerrain), r.ValeurFonciere.Float(), r.NombrePieces.Int(), SourceOpenData)
}

// DecodeEtalab reads {"mutations":[...]} and maps every row.
func DecodeEtalab(raw []byte) ([]Transaction, error) {
	var root struct {
		Mutations *[]EtalabMutation `json:"mutations"`
	}
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, err
	}
	if root.Mutations == nil {
		return nil, ErrMalformedEnvelope
	}
	return mapAll(*root.Mutations, MapEtalab), nil
}

// DecodeCquest reads {"resultats":[...]}.
func DecodeCquest(raw []byte) ([]Transaction, error) {
	var root struct {
		Resultats *[]CquestResult `json:"resultats"`
	}
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, err
	}
	if root.Resultats == nil {
		return nil, ErrMalformedEnvelope
	}
	return mapAll(*root.Resultats, MapCquest), nil
}

// DecodeOpenData reads {"results":[...]}.
func DecodeOpenData(raw []byte) ([]Transaction, error) {
	var root struct {
		Results *[]OpenDataRecord `json:"results"`
	}
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, err
	}
	if root.Results == nil {
		return nil, ErrMalformedEnvelope
	}
	return mapAll(*root.Results, MapOpenData), nil
}

func mapAll[T any](rows []T, fn func(T) Transaction) []Transaction {
	out := make([]Transaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, fn(r))
	}
	return out
}

// area prefers the built surface and falls back to the plot.
func area(built, land stringNumber) float64 {
	if b := built.Float(); b > 0 {
		return b
	}
	return land.Float()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
