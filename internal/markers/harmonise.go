package markers

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/banshee-data/gaitlab/internal/gait"
)

// Trunk markers carry no side prefix.
var Trunk = []string{"C7", "T2", "T10", "MAN", "SACR"}

// SidedBases are prefixed with L or R to form canonical names.
var SidedBases = []string{"ASI", "PSI", "THI", "PAT", "KNE", "KNEM", "KAX", "TIB", "ANK", "MED", "HEE", "TOE"}

// Canonical returns the full canonical vocabulary in a stable order.
func Canonical() []string {
	out := append([]string(nil), Trunk...)
	for _, side := range gait.Sides {
		for _, b := range SidedBases {
			out = append(out, side.Prefix()+b)
		}
	}
	return out
}

// IsCanonical reports whether name belongs to the canonical vocabulary.
func IsCanonical(name string) bool {
	for _, c := range Canonical() {
		if c == name {
			return true
		}
	}
	return false
}

// Heel and Toe name a side's foot markers.
func Heel(s gait.Side) string { return s.Prefix() + "HEE" }
func Toe(s gait.Side) string  { return s.Prefix() + "TOE" }

// Map is a lab's marker protocol: canonical name to the lab's raw label, or
// nil when the lab does not place that marker.
type Map map[string]*string

// ParseMap decodes a lab marker-map file.
func ParseMap(data []byte) (Map, error) {
	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, gait.Configurationf("marker map: %v", err)
	}
	if len(m) == 0 {
		return nil, gait.Configurationf("marker map is empty")
	}
	return m, nil
}

// Defined reports whether the lab places the canonical marker.
func (m Map) Defined(canonical string) bool {
	v, ok := m[canonical]
	return ok && v != nil && *v != ""
}

// Reverse returns raw label -> canonical name for the defined markers.
func (m Map) Reverse() map[string]string {
	out := make(map[string]string, len(m))
	for canonical, raw := range m {
		if raw == nil || *raw == "" {
			continue
		}
		out[*raw] = canonical
	}
	return out
}

// Validate checks that the map is invertible, uses only canonical names and
// defines the minimum marker set later stages depend on.
func (m Map) Validate() error {
	seen := map[string]string{}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, canonical := range keys {
		if !IsCanonical(canonical) {
			return gait.Configurationf("marker map: %q is not a canonical marker", canonical)
		}
		raw := m[canonical]
		if raw == nil || *raw == "" {
			continue
		}
		if other, dup := seen[*raw]; dup {
			return gait.Configurationf("marker map: raw label %q mapped by both %s and %s", *raw, other, canonical)
		}
		seen[*raw] = canonical
	}
	return checkRequired(m.Defined)
}

// RequireMarkers checks a harmonized set against the same minimum set.
func RequireMarkers(set gait.MarkerSet) error {
	return checkRequired(set.Has)
}

func checkRequired(has func(string) bool) error {
	var missing []string
	for _, name := range []string{"LASI", "RASI", "LKNE", "RKNE", "LANK", "RANK", "LHEE", "RHEE"} {
		if !has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return gait.Configurationf("required markers missing: %v", missing)
	}
	pelvis := (has("LPSI") && has("RPSI")) || has("SACR")
	alignment := has("LKAX") && has("RKAX")
	if !pelvis && !alignment {
		return gait.Configurationf("marker set needs LPSI/RPSI, SACR or LKAX/RKAX")
	}
	for _, side := range gait.Sides {
		if !has(side.Prefix()+"KAX") && !has(side.Prefix()+"KNEM") {
			return gait.Configurationf("marker set needs %sKAX or %sKNEM", side.Prefix(), side.Prefix())
		}
	}
	return nil
}

// Harmonise relabels the raw columns of set to canonical names and drops
// columns the map does not cover. Columns already carrying a canonical name
// the map defines are kept, so applying the same map twice is a no-op. The
// input is not modified.
func Harmonise(set gait.MarkerSet, m Map) (gait.MarkerSet, error) {
	if err := m.Validate(); err != nil {
		return gait.MarkerSet{}, err
	}
	reverse := m.Reverse()

	var keep []int
	var labels, dropped []string
	taken := map[string]bool{}
	for j, raw := range set.Labels {
		canonical, ok := reverse[raw]
		if !ok && m.Defined(raw) {
			canonical, ok = raw, true
		}
		if !ok || taken[canonical] {
			dropped = append(dropped, raw)
			continue
		}
		taken[canonical] = true
		keep = append(keep, j)
		labels = append(labels, canonical)
	}

	out := gait.MarkerSet{
		Rate:       set.Rate,
		FirstFrame: set.FirstFrame,
		Time:       append([]float64(nil), set.Time...),
		Labels:     labels,
		Frames:     make([][]gait.Position, len(set.Frames)),
	}
	for i, frame := range set.Frames {
		row := make([]gait.Position, len(keep))
		for k, j := range keep {
			row[k] = frame[j]
		}
		out.Frames[i] = row
	}
	if len(dropped) > 0 {
		logf("harmonise: dropped unmapped markers %v", dropped)
	}
	return out, nil
}

// String renders the map in canonical order for diagnostics.
func (m Map) String() string {
	s := ""
	for _, c := range Canonical() {
		if raw, ok := m[c]; ok {
			v := "null"
			if raw != nil {
				v = *raw
			}
			s += fmt.Sprintf("%s=%s ", c, v)
		}
	}
	return s
}
