package overlay

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"codeberg.org/mutker/rahoverlay/internal/errors"
)

const (
	PropertiesFile = "properties.json"

	defaultWidth       = 800
	defaultHeight      = 600
	defaultDescription = "No description available."
)

type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Overlay is one catalog entry. Name is the directory the overlay lives in
// and doubles as its broadcast channel.
type Overlay struct {
	Name        string     `json:"folder_name"`
	DisplayName string     `json:"display_name"`
	Description string     `json:"description"`
	Resolution  Resolution `json:"resolution"`
	URL         string     `json:"url"`
	Running     bool       `json:"running"`
}

type properties struct {
	DisplayName string      `json:"display_name"`
	Description string      `json:"description"`
	Resolution  *Resolution `json:"resolution"`
}

// LoadCatalog reads every <dir>/<name>/properties.json. A missing dir is an
// empty catalog. Entries are sorted by name.
func LoadCatalog(dir string, urlFor func(name string) string) ([]Overlay, error) {
	errFactory := errors.New()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errFactory.Wrap(ErrCatalogRead, err)
	}

	overlays := make([]Overlay, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		name := entry.Name()
		data, err := os.ReadFile(filepath.Join(dir, name, PropertiesFile))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errFactory.Wrap(ErrCatalogRead, err)
		}

		var props properties
		if err := json.Unmarshal(data, &props); err != nil {
			return nil, errFactory.WithData(ErrCatalogRead, struct {
				Overlay string
				Error   string
			}{
				Overlay: name,
				Error:   err.Error(),
			})
		}

		overlays = append(overlays, newOverlay(name, props, urlFor))
	}

	sort.Slice(overlays, func(i, j int) bool {
		return overlays[i].Name < overlays[j].Name
	})

	return overlays, nil
}

func newOverlay(name string, props properties, urlFor func(string) string) Overlay {
	o := Overlay{
		Name:        name,
		DisplayName: props.DisplayName,
		Description: props.Description,
		Resolution:  Resolution{Width: defaultWidth, Height: defaultHeight},
	}
	if o.DisplayName == "" {
		o.DisplayName = name
	}
	if o.Description == "" {
		o.Description = defaultDescription
	}
	if r := props.Resolution; r != nil && r.Width > 0 && r.Height > 0 {
		o.Resolution = *r
	}
	if urlFor != nil {
		o.URL = urlFor(name)
	}
	return o
}
