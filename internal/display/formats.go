package display

import (
	"fmt"

	"github.com/roach88/rlchess/internal/model"
)

// builtinFormats is used when no GameFormat component has been synced.
var builtinFormats = map[int64]model.GameFormat{
	0: {ID: 0, Description: "Unlimited"},
	1: {ID: 1, Description: "Bullet", TotalTime: 60},
	2: {ID: 2, Description: "Blitz", TotalTime: 180, Increment: 2},
	3: {ID: 3, Description: "Rapid", TotalTime: 600},
	4: {ID: 4, Description: "Classical", TotalTime: 1800},
}

// Formats resolves format ids, preferring synced GameFormat components over
// the built-in catalog.
type Formats struct {
	synced map[int64]model.GameFormat
}

// NewFormats indexes synced formats.
func NewFormats(synced []model.GameFormat) Formats {
	m := make(map[int64]model.GameFormat, len(synced))
	for _, f := range synced {
		m[f.ID] = f
	}
	return Formats{synced: m}
}

// Lookup returns the format for id. Unknown ids get a placeholder name.
func (f Formats) Lookup(id int64) model.GameFormat {
	if g, ok := f.synced[id]; ok {
		return g
	}
	if g, ok := builtinFormats[id]; ok {
		return g
	}
	return model.GameFormat{ID: id, Description: fmt.Sprintf("Format %d", id)}
}

// TotalTimeString renders the time control: "3 min + 2s", "1 min", or
// "unlimited".
func TotalTimeString(f model.GameFormat) string {
	if f.TotalTime <= 0 {
		return "unlimited"
	}
	s := fmt.Sprintf("%d min", f.TotalTime/60)
	if rem := f.TotalTime % 60; rem != 0 {
		s = FormatClock(f.TotalTime)
	}
	if f.Increment > 0 {
		s += fmt.Sprintf(" + %ds", f.Increment)
	}
	return s
}
