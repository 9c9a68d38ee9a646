// Package refdata loads and holds the static reference data the engine
// needs before the first tick: named waypoints, the ordered wind-layer
// table, named arrival routes and their flexible-approach zones. The
// data is immutable after Load and safe to share across ticks and
// goroutines.
package refdata

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/yegors/mp-director/internal/atmos"
	"github.com/yegors/mp-director/pkg/logger"
)

// Waypoint is a named navigational fix
type Waypoint struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// FlexibleZone marks the stretch of an arrival route where an aircraft
// may be cut out early (direct to the merge point) or held on the full
// arc. Kind distinguishes the inner and outer arc families.
type FlexibleZone struct {
	Start string `json:"start"` // earliest cut-out waypoint
	End   string `json:"end"`   // latest cut-out waypoint
	Kind  string `json:"type"`  // "inner" or "outer"
}

// Data is the loaded reference data set
type Data struct {
	Waypoints     map[string]Waypoint
	WindLayers    []atmos.Layer
	Routes        map[string][]string
	FlexibleZones map[string]FlexibleZone

	mergePoint Waypoint
}

// file is the on-disk JSON layout
type file struct {
	Waypoints     []Waypoint              `json:"waypoints"`
	Wind          []atmos.Layer           `json:"wind"`
	Routes        map[string][]string     `json:"routes"`
	FlexibleZones map[string]FlexibleZone `json:"flexible_zones"`
}

// Load reads the reference data file and validates it. The named merge
// point must exist; the wind table is sorted ascending by altitude.
func Load(path, mergePoint string, log *logger.Logger) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference data file: %w", err)
	}

	var f file
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse reference data: %w", err)
	}

	d, err := New(f.Waypoints, f.Wind, f.Routes, f.FlexibleZones, mergePoint)
	if err != nil {
		return nil, err
	}

	// Routes referencing unknown waypoints are tolerated (the aircraft
	// is treated as direct-distance-only downstream) but worth a warning.
	for name, wps := range d.Routes {
		for _, wp := range wps {
			if _, ok := d.Waypoints[wp]; !ok {
				log.Warn("Route references unknown waypoint",
					logger.String("route", name),
					logger.String("waypoint", wp))
			}
		}
	}

	log.Info("Reference data loaded",
		logger.String("path", path),
		logger.Int("waypoints", len(d.Waypoints)),
		logger.Int("wind_layers", len(d.WindLayers)),
		logger.Int("routes", len(d.Routes)),
		logger.String("merge_point", mergePoint))

	return d, nil
}

// New assembles a reference data set from already-parsed values. The
// wind table is sorted ascending by altitude and the merge point
// waypoint must be present.
func New(waypoints []Waypoint, wind []atmos.Layer, routes map[string][]string, zones map[string]FlexibleZone, mergePoint string) (*Data, error) {
	d := &Data{
		Waypoints:     make(map[string]Waypoint, len(waypoints)),
		WindLayers:    wind,
		Routes:        routes,
		FlexibleZones: zones,
	}
	for _, wp := range waypoints {
		if wp.Name == "" {
			return nil, fmt.Errorf("waypoint without a name at (%v, %v)", wp.Latitude, wp.Longitude)
		}
		d.Waypoints[wp.Name] = wp
	}
	if d.Routes == nil {
		d.Routes = map[string][]string{}
	}
	if d.FlexibleZones == nil {
		d.FlexibleZones = map[string]FlexibleZone{}
	}

	sort.Slice(d.WindLayers, func(i, j int) bool {
		return d.WindLayers[i].AltitudeFt < d.WindLayers[j].AltitudeFt
	})

	mp, ok := d.Waypoints[mergePoint]
	if !ok {
		return nil, fmt.Errorf("merge point waypoint %q not found in reference data", mergePoint)
	}
	d.mergePoint = mp

	return d, nil
}

// MergePoint returns the merge point waypoint
func (d *Data) MergePoint() Waypoint {
	return d.mergePoint
}

// Waypoint looks up a waypoint by name
func (d *Data) Waypoint(name string) (Waypoint, bool) {
	wp, ok := d.Waypoints[name]
	return wp, ok
}

// Zone returns the flexible-approach zone for a route, if any
func (d *Data) Zone(routeName string) (FlexibleZone, bool) {
	z, ok := d.FlexibleZones[routeName]
	return z, ok
}
