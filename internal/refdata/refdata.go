// ABOUTME: Embedded country and state reference data for registration forms
// ABOUTME: Loaded once from go:embed JSON at startup, read-only thereafter

package refdata

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"
)

//go:embed data/countries.json data/states.json
var dataFS embed.FS

// Country is one selectable country.
type Country struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	ISO2      string `json:"iso2"`
	ISO3      string `json:"iso3"`
	PhoneCode string `json:"phonecode"`
	Emoji     string `json:"emoji"`
}

// State is one selectable state or province.
type State struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	CountryID int    `json:"country_id"`
	StateCode string `json:"state_code"`
}

var (
	loadOnce  sync.Once
	loadErr   error
	countries []Country
	states    []State
)

func load() error {
	loadOnce.Do(func() {
		data, err := dataFS.ReadFile("data/countries.json")
		if err != nil {
			loadErr = fmt.Errorf("reading embedded countries: %w", err)
			return
		}
		if err := json.Unmarshal(data, &countries); err != nil {
			loadErr = fmt.Errorf("parsing embedded countries: %w", err)
			return
		}

		data, err = dataFS.ReadFile("data/states.json")
		if err != nil {
			loadErr = fmt.Errorf("reading embedded states: %w", err)
			return
		}
		if err := json.Unmarshal(data, &states); err != nil {
			loadErr = fmt.Errorf("parsing embedded states: %w", err)
		}
	})
	return loadErr
}

// Countries returns all countries in embedded order.
func Countries() ([]Country, error) {
	if err := load(); err != nil {
		return nil, err
	}
	return countries, nil
}

// States returns all states in embedded order.
func States() ([]State, error) {
	if err := load(); err != nil {
		return nil, err
	}
	return states, nil
}

// StatesByCountry returns the states belonging to one country. The empty
// slice distinguishes "no states" from an error.
func StatesByCountry(countryID int) ([]State, error) {
	if err := load(); err != nil {
		return nil, err
	}
	var result []State
	for _, s := range states {
		if s.CountryID == countryID {
			result = append(result, s)
		}
	}
	return result, nil
}
