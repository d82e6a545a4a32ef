package service

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RegionsFile is the on-disk shape of MATCHING_REGIONS_FILE.
//
//	regions:
//	  randstad: [amsterdam, rotterdam, den haag, utrecht]
type RegionsFile struct {
	Regions map[string][]string `yaml:"regions"`
}

// CoveragePolicy decides whether a professional's coverage area reaches a
// lead's location. Coverage is a comma separated list of places or region
// names; a place matches when either string contains the other, ignoring case.
type CoveragePolicy struct {
	regions map[string][]string
}

// NewCoveragePolicy builds a policy from named regions. regions may be nil.
func NewCoveragePolicy(regions map[string][]string) *CoveragePolicy {
	normalized := make(map[string][]string, len(regions))
	for name, places := range regions {
		key := normalizePlace(name)
		if key == "" {
			continue
		}
		for _, place := range places {
			if p := normalizePlace(place); p != "" {
				normalized[key] = append(normalized[key], p)
			}
		}
	}
	return &CoveragePolicy{regions: normalized}
}

// LoadCoveragePolicy reads named regions from a YAML file. An empty path gives
// a policy without regions.
func LoadCoveragePolicy(path string) (*CoveragePolicy, error) {
	if path == "" {
		return NewCoveragePolicy(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read regions file: %w", err)
	}
	return ParseCoveragePolicy(data)
}

// ParseCoveragePolicy decodes a regions document.
func ParseCoveragePolicy(data []byte) (*CoveragePolicy, error) {
	var file RegionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse regions file: %w", err)
	}
	for name, places := range file.Regions {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("regions file has an empty region name")
		}
		if len(places) == 0 {
			return nil, fmt.Errorf("region %s has no places", name)
		}
	}
	return NewCoveragePolicy(file.Regions), nil
}

// Covers reports whether coverageArea reaches location.
func (p *CoveragePolicy) Covers(coverageArea, location string) bool {
	loc := normalizePlace(location)
	if loc == "" {
		return false
	}
	for _, area := range strings.Split(coverageArea, ",") {
		area = normalizePlace(area)
		if area == "" {
			continue
		}
		if placeMatches(area, loc) {
			return true
		}
		for _, place := range p.regions[area] {
			if placeMatches(place, loc) {
				return true
			}
		}
	}
	return false
}

func placeMatches(place, location string) bool {
	return strings.Contains(location, place) || strings.Contains(place, location)
}

func normalizePlace(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
