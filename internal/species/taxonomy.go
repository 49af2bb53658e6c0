package species

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/tphakala/birdclef-go/internal/dataset"
	"github.com/tphakala/birdclef-go/internal/errors"
)

// eBird taxonomy columns
const (
	colSciName     = "SCI_NAME"
	colSpeciesCode = "SPECIES_CODE"
	colCommonName  = "PRIMARY_COM_NAME"
)

// Taxonomy maps scientific and common names to eBird species codes
type Taxonomy struct {
	bySci    map[string]string
	byCommon map[string]string
}

// normalizeName returns the lookup key of a species name: NFC normalized,
// case folded and with runs of whitespace collapsed.
func normalizeName(name string) string {
	name = norm.NFC.String(name)
	return cases.Fold().String(strings.Join(strings.Fields(name), " "))
}

// LoadTaxonomy reads an eBird taxonomy CSV
func LoadTaxonomy(path string) (*Taxonomy, error) {
	table, err := dataset.ReadTable(path)
	if err != nil {
		return nil, err
	}
	return newTaxonomy(table)
}

func newTaxonomy(table *dataset.Table) (*Taxonomy, error) {
	cols, err := table.RequireColumns(colSciName, colSpeciesCode)
	if err != nil {
		return nil, errors.New(err).
			Component("species").
			Category(errors.CategoryFileParsing).
			Context("operation", "load_taxonomy").
			Build()
	}
	commonCol := table.Column(colCommonName)

	t := &Taxonomy{
		bySci:    make(map[string]string, len(table.Rows)),
		byCommon: make(map[string]string, len(table.Rows)),
	}
	for _, row := range table.Rows {
		code := dataset.Field(row, cols[1])
		if code == "" {
			continue
		}
		if sci := dataset.Field(row, cols[0]); sci != "" {
			t.bySci[normalizeName(sci)] = code
		}
		if common := dataset.Field(row, commonCol); common != "" {
			t.byCommon[normalizeName(common)] = code
		}
	}
	return t, nil
}

// Len returns the number of scientific names known
func (t *Taxonomy) Len() int { return len(t.bySci) }

// Lookup returns the species code for a scientific name
func (t *Taxonomy) Lookup(scientific string) (string, bool) {
	code, ok := t.bySci[normalizeName(scientific)]
	return code, ok
}

// LookupCommon returns the species code for a common name
func (t *Taxonomy) LookupCommon(common string) (string, bool) {
	code, ok := t.byCommon[normalizeName(common)]
	return code, ok
}
