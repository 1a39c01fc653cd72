package radio

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed stations.yml
var defaultStationsYaml []byte

type Station struct {
	Name string `yaml:"name"`
	Url  string `yaml:"url"`
}

type stationsFile struct {
	Stations []Station `yaml:"stations"`
}

// LoadStations reads the station list from path, or the embedded default
// list when path is empty.
func LoadStations(path string) ([]Station, error) {
	raw := defaultStationsYaml
	if path != "" {
		var err error
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("radio: stations file: %w", err)
		}
	}
	var f stationsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("radio: stations file: %w", err)
	}
	return f.Stations, nil
}

// Resolve maps arg to a station: a known station name from the list, or a
// stream URL used verbatim.
func Resolve(stations []Station, arg string) (Station, error) {
	for _, s := range stations {
		if strings.EqualFold(s.Name, arg) {
			return s, nil
		}
	}
	if strings.Contains(arg, "://") {
		return Station{Name: arg, Url: arg}, nil
	}
	return Station{}, fmt.Errorf("radio: unknown station %q", arg)
}
