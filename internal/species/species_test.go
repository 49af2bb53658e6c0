package species

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const taxonomyCSV = `TAXON_ORDER,CATEGORY,SPECIES_CODE,PRIMARY_COM_NAME,SCI_NAME,ORDER1,FAMILY,SPECIES_GROUP,REPORT_AS
1,species,ostric2,Common Ostrich,Struthio camelus,Struthioniformes,Struthionidae (Ostriches),Ostriches,
2,species,amapar,Amazonian Parrotlet,Nannopsittaca dachilleae,Psittaciformes,Psittacidae,Parrots,
3,species,blfnun,Black-fronted Nunbird,Monasa nigrifrons,Galbuliformes,Bucconidae,Puffbirds,
4,species,suttan1,Sūtra Tanager,Tangara sūtra,Passeriformes,Thraupidae,Tanagers,
`

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0o644))
}

func loadTestTaxonomy(t *testing.T) *Taxonomy {
	t.Helper()
	path := filepath.Join(t.TempDir(), "eBird_Taxonomy_v2021.csv")
	require.NoError(t, os.WriteFile(path, []byte(taxonomyCSV), 0o644))
	tax, err := LoadTaxonomy(path)
	require.NoError(t, err)
	return tax
}

func TestTaxonomyLookup(t *testing.T) {
	t.Parallel()

	tax := loadTestTaxonomy(t)
	assert.Equal(t, 4, tax.Len())

	code, ok := tax.Lookup("monasa  NIGRIFRONS")
	assert.True(t, ok)
	assert.Equal(t, "blfnun", code)

	// decomposed ū must match the precomposed form in the CSV
	code, ok = tax.Lookup("Tangara su\u0304tra")
	assert.True(t, ok)
	assert.Equal(t, "suttan1", code)

	code, ok = tax.LookupCommon("amazonian parrotlet")
	assert.True(t, ok)
	assert.Equal(t, "amapar", code)

	_, ok = tax.Lookup("Passer domesticus")
	assert.False(t, ok)
}

func TestLoadTaxonomyMissingColumns(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tax.csv")
	require.NoError(t, os.WriteFile(path, []byte("CODE,NAME\na,b\n"), 0o644))
	_, err := LoadTaxonomy(path)
	require.Error(t, err)
}

func TestParseFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    ParsedName
		wantErr bool
	}{
		{
			name:  "binomial",
			input: "XC12345 - Black-fronted Nunbird - Monasa nigrifrons.mp3",
			want:  ParsedName{ID: "XC12345", Common: "Black-fronted Nunbird", Scientific: "Monasa nigrifrons"},
		},
		{
			name:  "subspecies is dropped",
			input: "XC1 - Amazonian Parrotlet - Nannopsittaca dachilleae dachilleae.mp3",
			want:  ParsedName{ID: "XC1", Common: "Amazonian Parrotlet", Scientific: "Nannopsittaca dachilleae"},
		},
		{name: "missing parts", input: "XC1 - Nunbird.mp3", wantErr: true},
		{name: "genus only", input: "XC1 - Nunbird - Monasa.mp3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseFilename(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromMetadata(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	touch(t, filepath.Join(root, "a.mp3"))
	touch(t, filepath.Join(root, "b.mp3"))
	touch(t, filepath.Join(root, "c.mp3"))

	metadata := filepath.Join(root, "metadata.csv")
	require.NoError(t, os.WriteFile(metadata, []byte(
		"filename,Species eBird Code,Country\n"+
			"a.mp3,amapar,Peru\n"+
			"b.mp3,,Peru\n"+
			"c.mp3,blfnun,Peru\n"+
			"gone.mp3,blfnun,Peru\n"), 0o644))

	res, err := FromMetadata(context.Background(), root, metadata, nil)
	require.NoError(t, err)
	assert.Equal(t, Result{Moved: 2, Skipped: 2}, res)

	assert.FileExists(t, filepath.Join(root, "amapar", "a.mp3"))
	assert.FileExists(t, filepath.Join(root, "blfnun", "c.mp3"))
	assert.FileExists(t, filepath.Join(root, "b.mp3"))
	assert.NoFileExists(t, filepath.Join(root, "a.mp3"))
}

func TestFromFilename(t *testing.T) {
	t.Parallel()

	tax := loadTestTaxonomy(t)
	root := t.TempDir()
	touch(t, filepath.Join(root, "XC1 - Black-fronted Nunbird - Monasa nigrifrons.mp3"))
	touch(t, filepath.Join(root, "XC2 - Amazonian Parrotlet - Nannopsittaca sp.mp3"))
	touch(t, filepath.Join(root, "XC3 - Unknown Bird - Avis ignota.mp3"))
	touch(t, filepath.Join(root, "random.mp3"))
	touch(t, filepath.Join(root, "XC4 - Common Ostrich - Struthio camelus.wav"))

	res, err := FromFilename(context.Background(), root, tax, "mp3", nil)
	require.NoError(t, err)
	assert.Equal(t, Result{Moved: 2, Skipped: 2}, res)

	assert.FileExists(t, filepath.Join(root, "blfnun", "XC1 - Black-fronted Nunbird - Monasa nigrifrons.mp3"))
	assert.FileExists(t, filepath.Join(root, "amapar", "XC2 - Amazonian Parrotlet - Nannopsittaca sp.mp3"))
	assert.FileExists(t, filepath.Join(root, "XC4 - Common Ostrich - Struthio camelus.wav"))
}

func TestFromMetadataCancelled(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	metadata := filepath.Join(root, "metadata.csv")
	require.NoError(t, os.WriteFile(metadata, []byte("filename,Species eBird Code\na.mp3,amapar\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := FromMetadata(ctx, root, metadata, nil)
	require.ErrorIs(t, err, context.Canceled)
}
