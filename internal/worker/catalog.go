package worker

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Offer is one job-offer candidate the simulated producer can apply to.
type Offer struct {
	Title    string   `yaml:"title"`
	Company  string   `yaml:"company"`
	Location string   `yaml:"location"`
	Keywords []string `yaml:"keywords"`
}

type catalogFile struct {
	Offers []Offer `yaml:"offers"`
}

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// DefaultCatalog returns the built-in offer catalog.
func DefaultCatalog() []Offer {
	offers, err := parseCatalog(defaultCatalogYAML)
	if err != nil {
		// The embedded catalog is validated by tests; this cannot happen at runtime.
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return offers
}

// LoadCatalog reads an offer catalog from a YAML file.
func LoadCatalog(path string) ([]Offer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return parseCatalog(data)
}

func parseCatalog(data []byte) ([]Offer, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(f.Offers) == 0 {
		return nil, fmt.Errorf("catalog contains no offers")
	}
	return f.Offers, nil
}

// FilterOffers narrows the catalog by the user's comma-separated search
// keywords and locations. Empty criteria match everything.
func FilterOffers(offers []Offer, searchKeywords, searchLocation string) []Offer {
	keywords := splitCriteria(searchKeywords)
	locations := splitCriteria(searchLocation)

	out := make([]Offer, 0, len(offers))
	for _, o := range offers {
		if matchesKeywords(o, keywords) && matchesLocation(o, locations) {
			out = append(out, o)
		}
	}
	return out
}

func splitCriteria(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func matchesKeywords(o Offer, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	haystack := strings.ToLower(o.Title + " " + strings.Join(o.Keywords, " "))
	for _, kw := range keywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

func matchesLocation(o Offer, locations []string) bool {
	if len(locations) == 0 {
		return true
	}
	loc := strings.ToLower(o.Location)
	for _, l := range locations {
		if strings.Contains(loc, l) {
			return true
		}
	}
	return false
}
