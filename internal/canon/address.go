package canon

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Placeholder is used when no address field carries anything.
const Placeholder = "Adresse non renseignée"

var (
	reNonSlug    = regexp.MustCompile(`[^a-z0-9]+`)
	reCommune    = regexp.MustCompile(`^(\d{5}|2[ABab]\d{3})$`)
	reStreetType = regexp.MustCompile(`^[A-Z]{1,4}$`)
)

// Address joins street parts (number, suffix, type, name) into one line.
// DVF street-type codes ("AV", "BD") are expanded.
func Address(number, suffix, streetType, street string) string {
	st := strings.TrimSpace(streetType)
	if reStreetType.MatchString(strings.ToUpper(st)) {
		st = expandStreetType(strings.ToUpper(st))
	}
	line := collapseSpaces(strings.Join([]string{number, suffix, st, street}, " "))
	return line
}

// FirstAddress returns the first non-empty candidate, or Placeholder.
func FirstAddress(candidates ...string) string {
	for _, c := range candidates {
		if c = collapseSpaces(c); c != "" {
			return c
		}
	}
	return Placeholder
}

// Slug folds accents and punctuation: "Saint-Étienne" -> "saint-etienne".
func Slug(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(strings.ReplaceAll(folded, "œ", "oe"))
	return strings.Trim(reNonSlug.ReplaceAllString(folded, "-"), "-")
}

// IsCommuneCode reports whether s looks like an INSEE commune code.
func IsCommuneCode(s string) bool {
	return reCommune.MatchString(strings.TrimSpace(s))
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func expandStreetType(s string) string {
	m := map[string]string{
		"AV": "Avenue", "AVE": "Avenue", "BD": "Boulevard", "CHE": "Chemin", "CHEM": "Chemin",
		"ALL": "Allée", "IMP": "Impasse", "PL": "Place", "RTE": "Route", "QU": "Quai",
		"QUA": "Quartier", "CRS": "Cours", "SQ": "Square", "PAS": "Passage", "LOT": "Lotissement",
		"RES": "Résidence", "FG": "Faubourg", "HAM": "Hameau", "LD": "Lieu-dit", "R": "Rue",
		"RUE": "Rue", "VOIE": "Voie", "SEN": "Sentier", "TSSE": "Terrasse", "PROM": "Promenade",
	}
	if v, ok := m[s]; ok {
		return v
	}
	return s
}
