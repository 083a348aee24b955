package segments

// Region is what a region editor displays for one segment.
type Region struct {
	ID    string  `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Label string  `json:"label"`
}

// RegionView receives declarative region operations. Implementations must
// not call back into the Synchronizer.
type RegionView interface {
	AddRegion(r Region)
	RemoveRegion(id string)
	SetRegionLabel(id, label string)
}

func regionOf(s Segment) Region {
	return Region{ID: s.ID, Start: s.StartTime, End: s.EndTime, Label: s.Label}
}

type nopView struct{}

func (nopView) AddRegion(Region)              {}
func (nopView) RemoveRegion(string)           {}
func (nopView) SetRegionLabel(string, string) {}
