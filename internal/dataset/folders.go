package dataset

import (
	"os"
	"path/filepath"
	"slices"

	"github.com/tphakala/birdclef-go/internal/errors"
	"github.com/tphakala/birdclef-go/internal/logger"
	"github.com/tphakala/birdclef-go/internal/myaudio"
)

// Clip is one audio file of a species folder dataset
type Clip struct {
	Path    string
	Species string
	Label   int
}

// Dataset is a species folder tree: <root>/<species>/<clip>.
type Dataset struct {
	Root    string
	Classes []string // sorted species codes, the label of a clip is its index here
	Clips   []Clip
}

// Discover lists every species folder under root. Classes are the sorted
// folder names and clips are the supported audio files inside them.
func Discover(root string) (*Dataset, error) {
	species, err := speciesFolders(root)
	if err != nil {
		return nil, err
	}
	return DiscoverWithClasses(root, species)
}

// DiscoverWithClasses lists clips under root using a fixed class list. Folders
// whose name is not in classes are skipped with a warning.
func DiscoverWithClasses(root string, classes []string) (*Dataset, error) {
	species, err := speciesFolders(root)
	if err != nil {
		return nil, err
	}

	labelOf := make(map[string]int, len(classes))
	for i, c := range classes {
		labelOf[c] = i
	}

	ds := &Dataset{Root: root, Classes: slices.Clone(classes)}
	log := GetLogger()
	for _, name := range species {
		label, ok := labelOf[name]
		if !ok {
			log.Warn("skipping species folder not in class list", logger.String("species", name))
			continue
		}

		entries, err := os.ReadDir(filepath.Join(root, name))
		if err != nil {
			return nil, errors.New(err).
				Component("dataset").
				Category(errors.CategoryFileIO).
				Context("species", name).
				Build()
		}
		for _, e := range entries {
			if e.IsDir() || !myaudio.IsSupported(e.Name()) {
				continue
			}
			ds.Clips = append(ds.Clips, Clip{
				Path:    filepath.Join(root, name, e.Name()),
				Species: name,
				Label:   label,
			})
		}
	}

	if len(ds.Clips) == 0 {
		return nil, errors.Newf("no audio clips found under %s", root).
			Component("dataset").
			Category(errors.CategoryNotFound).
			Build()
	}
	return ds, nil
}

// ClassCounts returns the number of clips per class
func (d *Dataset) ClassCounts() []int {
	counts := make([]int, len(d.Classes))
	for _, c := range d.Clips {
		counts[c.Label]++
	}
	return counts
}

func speciesFolders(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.New(err).
			Component("dataset").
			Category(errors.CategoryFileIO).
			Context("operation", "list_species_folders").
			FileContext(root, 0).
			Build()
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}
