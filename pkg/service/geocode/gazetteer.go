package geocode

import (
	"context"
	"strings"

	"github.com/secmon-lab/osnit/pkg/domain/interfaces"
	"github.com/secmon-lab/osnit/pkg/domain/model"
)

// places are approximate centroids of the regions watched by default
var places = map[string]model.GeoPoint{
	"jammu":             {Latitude: 32.7266, Longitude: 74.8570},
	"kashmir":           {Latitude: 34.0837, Longitude: 74.7973},
	"jammu and kashmir": {Latitude: 33.7782, Longitude: 76.5762},
	"punjab":            {Latitude: 31.1471, Longitude: 75.3412},
	"rajasthan":         {Latitude: 27.0238, Longitude: 74.2179},
	"gujarat":           {Latitude: 22.2587, Longitude: 71.1924},
	"assam":             {Latitude: 26.2006, Longitude: 92.9376},
	"arunachal pradesh": {Latitude: 28.2180, Longitude: 94.7278},
	"nagaland":          {Latitude: 26.1584, Longitude: 94.5624},
	"manipur":           {Latitude: 24.6637, Longitude: 93.9063},
	"uttarakhand":       {Latitude: 30.0668, Longitude: 79.0193},
	"himachal pradesh":  {Latitude: 31.1048, Longitude: 77.1734},
	"ladakh":            {Latitude: 34.2268, Longitude: 77.5619},
	"pakistan":          {Latitude: 30.3753, Longitude: 69.3451},
	"china":             {Latitude: 35.8617, Longitude: 104.1954},
	"bangladesh":        {Latitude: 23.6850, Longitude: 90.3563},
	"nepal":             {Latitude: 28.3949, Longitude: 84.1240},
	"sri lanka":         {Latitude: 7.8731, Longitude: 80.7718},
	"india":             {Latitude: 20.5937, Longitude: 78.9629},
}

// DefaultCountry is attributed when no neighbouring country is mentioned
const DefaultCountry = "India"

// watchedStates and neighbourCountries are matched by substring, in this order
var (
	watchedStates = []string{
		"Jammu", "Kashmir", "Punjab", "Rajasthan", "Gujarat", "Assam",
		"Arunachal Pradesh", "Nagaland", "Manipur", "Uttarakhand",
		"Himachal Pradesh", "Ladakh",
	}
	neighbourCountries = []string{"Pakistan", "China", "Bangladesh", "Nepal", "Sri Lanka"}
)

// Gazetteer resolves names from a fixed table without network access
type Gazetteer struct {
	places map[string]model.GeoPoint
}

var (
	_ interfaces.Geocoder       = &Gazetteer{}
	_ interfaces.RegionResolver = &Gazetteer{}
)

// NewGazetteer returns a Gazetteer over the built-in table plus extra entries
func NewGazetteer(extra map[string]model.GeoPoint) *Gazetteer {
	g := &Gazetteer{places: make(map[string]model.GeoPoint, len(places)+len(extra))}
	for k, v := range places {
		g.places[k] = v
	}
	for k, v := range extra {
		g.places[key(k)] = v
	}
	return g
}

func (g *Gazetteer) Geocode(ctx context.Context, name string) (*model.GeocodeResult, error) {
	if p, ok := g.places[key(name)]; ok {
		return &model.GeocodeResult{Point: &p}, nil
	}
	return &model.GeocodeResult{}, nil
}

// ResolveRegion attributes the locations to a country and a watched state.
// The country is the first neighbour mentioned by any location, else DefaultCountry.
func (g *Gazetteer) ResolveRegion(locations []string) model.Region {
	return model.Region{
		Country: firstMention(locations, neighbourCountries, DefaultCountry),
		State:   firstMention(locations, watchedStates, ""),
	}
}

func firstMention(locations, names []string, fallback string) string {
	for _, loc := range locations {
		l := key(loc)
		for _, name := range names {
			if strings.Contains(l, key(name)) {
				return name
			}
		}
	}
	return fallback
}

func key(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
