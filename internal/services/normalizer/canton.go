package normalizer

import (
	"strings"
)

// cantonAliases map location names to the two-letter canton code, in the
// official canton order. Order matters for the substring pass: "zurich"
// must win before "uri" can match inside it.
var cantonAliases = []struct {
	code    string
	aliases []string
}{
	{"ZH", []string{"zürich", "zurich", "zurigo", "winterthur"}},
	{"BE", []string{"bern", "berne", "berna", "biel", "bienne"}},
	{"LU", []string{"luzern", "lucerne", "lucerna"}},
	{"UR", []string{"uri", "altdorf"}},
	{"SZ", []string{"schwyz"}},
	{"OW", []string{"obwalden", "obwald", "sarnen"}},
	{"NW", []string{"nidwalden", "nidwald", "stans"}},
	{"GL", []string{"glarus", "glaris"}},
	{"ZG", []string{"zug", "zoug", "zugo"}},
	{"FR", []string{"fribourg", "freiburg", "friborgo"}},
	{"SO", []string{"solothurn", "soleure", "soletta", "olten"}},
	{"BS", []string{"basel-stadt", "basel", "bâle", "basilea"}},
	{"BL", []string{"basel-landschaft", "basel-land", "baselland", "liestal"}},
	{"SH", []string{"schaffhausen", "schaffhouse", "sciaffusa"}},
	{"AR", []string{"appenzell ausserrhoden", "herisau"}},
	{"AI", []string{"appenzell innerrhoden", "appenzell"}},
	{"SG", []string{"st. gallen", "st.gallen", "st gallen", "sankt gallen", "saint-gall", "san gallo"}},
	{"GR", []string{"graubünden", "grisons", "grigioni", "chur", "coira", "davos"}},
	{"AG", []string{"aargau", "argovie", "argovia", "aarau", "baden"}},
	{"TG", []string{"thurgau", "thurgovie", "turgovia", "frauenfeld"}},
	{"TI", []string{"ticino", "tessin", "lugano", "bellinzona", "locarno"}},
	{"VD", []string{"vaud", "waadt", "lausanne", "nyon", "yverdon"}},
	{"VS", []string{"valais", "wallis", "vallese", "sion", "sitten"}},
	{"NE", []string{"neuchâtel", "neuchatel", "neuenburg"}},
	{"GE", []string{"genève", "geneve", "geneva", "genf", "ginevra"}},
	{"JU", []string{"jura", "delémont", "delemont"}},
}

// extractCanton maps a free-form location to a canton code. Exact alias
// matches are tried first, then substrings longer than two characters.
func extractCanton(location string) string {
	lower := strings.ToLower(strings.TrimSpace(location))
	if lower == "" {
		return ""
	}

	for _, canton := range cantonAliases {
		for _, alias := range canton.aliases {
			if lower == alias {
				return canton.code
			}
		}
	}

	for _, canton := range cantonAliases {
		for _, alias := range canton.aliases {
			if len(alias) > 2 && strings.Contains(lower, alias) {
				return canton.code
			}
		}
	}

	return ""
}
