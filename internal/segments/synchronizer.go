package segments

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// Status is the save state shown next to the segment list.
type Status struct {
	IsSaving    bool   `json:"isSaving"`
	SaveError   string `json:"saveError,omitempty"`
	SaveSuccess bool   `json:"saveSuccess"`
}

// Synchronizer owns the segment list of one editing session.
//
// Times flow from the region editor into the list only. Label, add and
// remove changes flow out to the RegionView as an id-keyed diff; times of a
// region the view already shows are only replaced on hydration (Load,
// ResetSegments and the refetch after a save).
type Synchronizer struct {
	lessonID string
	store    Store
	view     RegionView
	log      *zap.Logger

	mu       sync.Mutex
	list     []Segment
	snapshot []Segment
	loaded   bool
	rev      int
	saving   bool
	saveErr  error
	saved    bool
	shown    map[string]Region
}

type SyncOption func(*Synchronizer)

// WithView attaches the region editor.
func WithView(v RegionView) SyncOption {
	return func(s *Synchronizer) {
		if v != nil {
			s.view = v
		}
	}
}

func WithLogger(l *zap.Logger) SyncOption {
	return func(s *Synchronizer) {
		if l != nil {
			s.log = l
		}
	}
}

func NewSynchronizer(lessonID string, store Store, opts ...SyncOption) *Synchronizer {
	s := &Synchronizer{
		lessonID: lessonID,
		store:    store,
		view:     nopView{},
		log:      zap.NewNop(),
		shown:    make(map[string]Region),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load fetches the persisted list and makes it the reset snapshot.
func (s *Synchronizer) Load(ctx context.Context) error {
	list, err := s.store.LoadSegments(ctx, s.lessonID)
	if err != nil {
		return fmt.Errorf("load segments: %w", err)
	}
	Normalize(list)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = clone(list)
	s.snapshot = clone(list)
	s.loaded = true
	s.rev++
	s.syncView(true)
	return nil
}

// AddSegment inserts a segment with an empty label and pushes its region to
// the view. An empty id gets a placeholder.
func (s *Synchronizer) AddSegment(id string, start, end float64) (Segment, error) {
	return s.add(id, start, end, false)
}

// RegionCreated records a region the editor created itself. Nothing is
// pushed back for it.
func (s *Synchronizer) RegionCreated(id string, start, end float64) (Segment, error) {
	return s.add(id, start, end, true)
}

func (s *Synchronizer) add(id string, start, end float64, shown bool) (Segment, error) {
	if err := CheckRange(start, end); err != nil {
		return Segment{}, err
	}
	if id == "" {
		id = NewLocalID()
	}
	seg := Segment{ID: id, StartTime: RoundTime(start), EndTime: RoundTime(end)}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(id) >= 0 {
		return Segment{}, fmt.Errorf("%w: %s", ErrDuplicateSegment, id)
	}
	s.list = append(s.list, seg)
	Normalize(s.list)
	s.touchLocked()
	if shown {
		s.shown[id] = Region{ID: id, Start: start, End: end}
	}
	s.syncView(false)
	return s.list[s.indexLocked(id)], nil
}

// UpdateSegmentLabel changes a label without reordering.
func (s *Synchronizer) UpdateSegmentLabel(id, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSegment, id)
	}
	if s.list[i].Label == label {
		return nil
	}
	s.list[i].Label = label
	s.touchLocked()
	s.syncView(false)
	return nil
}

// UpdateSegmentTimes applies a drag or resize reported by the region editor.
// The view is never told about the new times since it reported them.
func (s *Synchronizer) UpdateSegmentTimes(id string, start, end float64) error {
	if err := CheckRange(start, end); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSegment, id)
	}
	s.list[i].StartTime = RoundTime(start)
	s.list[i].EndTime = RoundTime(end)
	Normalize(s.list)
	s.touchLocked()
	if r, ok := s.shown[id]; ok {
		r.Start, r.End = start, end
		s.shown[id] = r
	}
	s.syncView(false)
	return nil
}

// RemoveSegment deletes a segment and renumbers the rest.
func (s *Synchronizer) RemoveSegment(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSegment, id)
	}
	s.list = slices.Delete(s.list, i, i+1)
	Normalize(s.list)
	s.touchLocked()
	s.syncView(false)
	return nil
}

// SaveSegments validates labels, persists the whole list and adopts the
// canonical list the store returns. A validation failure is returned as
// *ValidationError and leaves the save status alone. A store failure keeps
// local edits and is recorded in Status.
func (s *Synchronizer) SaveSegments(ctx context.Context) error {
	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return ErrSaveInProgress
	}
	if err := ValidateLabels(s.list); err != nil {
		s.mu.Unlock()
		return err
	}
	list := clone(s.list)
	if list == nil {
		list = []Segment{}
	}
	rev := s.rev
	s.saving = true
	s.saveErr = nil
	s.saved = false
	s.mu.Unlock()

	if err := s.store.SaveSegments(ctx, s.lessonID, list); err != nil {
		return s.saveFailed(err)
	}
	canonical, err := s.store.LoadSegments(ctx, s.lessonID)
	if err != nil {
		return s.saveFailed(err)
	}
	Normalize(canonical)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = false
	s.snapshot = clone(canonical)
	s.loaded = true
	if s.rev != rev {
		// Edits arrived while saving; keep them and only move the snapshot.
		// The list still has unsaved changes, so saved stays false.
		s.log.Info("segments edited during save, keeping local list",
			zap.String("lesson_id", s.lessonID))
		return nil
	}
	s.saved = true
	s.list = clone(canonical)
	s.syncView(true)
	s.log.Info("segments saved", zap.String("lesson_id", s.lessonID), zap.Int("count", len(canonical)))
	return nil
}

func (s *Synchronizer) saveFailed(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = false
	s.saveErr = err
	s.log.Warn("segments save failed", zap.String("lesson_id", s.lessonID), zap.Error(err))
	return fmt.Errorf("save segments: %w", err)
}

// ResetSegments discards local edits and rehydrates from the last loaded or
// saved list, or clears the list if nothing was loaded.
func (s *Synchronizer) ResetSegments() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		s.list = clone(s.snapshot)
	} else {
		s.list = nil
	}
	s.saveErr = nil
	s.saved = false
	s.rev++
	s.syncView(true)
}

// Segments returns a copy of the ordered list.
func (s *Synchronizer) Segments() []Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := clone(s.list)
	if out == nil {
		out = []Segment{}
	}
	return out
}

func (s *Synchronizer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{IsSaving: s.saving, SaveSuccess: s.saved}
	if s.saveErr != nil {
		st.SaveError = s.saveErr.Error()
	}
	return st
}

func (s *Synchronizer) indexLocked(id string) int {
	return slices.IndexFunc(s.list, func(seg Segment) bool { return seg.ID == id })
}

// touchLocked records a local edit.
func (s *Synchronizer) touchLocked() {
	s.rev++
	s.saved = false
}

// syncView pushes the difference between the shown regions and the list.
// With hydrate set, shown regions whose times differ are replaced.
func (s *Synchronizer) syncView(hydrate bool) {
	want := make(map[string]struct{}, len(s.list))
	for _, seg := range s.list {
		want[seg.ID] = struct{}{}
	}

	stale := make([]string, 0)
	for id := range s.shown {
		if _, ok := want[id]; !ok {
			stale = append(stale, id)
		}
	}
	slices.Sort(stale)
	for _, id := range stale {
		delete(s.shown, id)
		s.view.RemoveRegion(id)
	}

	for _, seg := range s.list {
		r, ok := s.shown[seg.ID]
		switch {
		case !ok:
			s.shown[seg.ID] = regionOf(seg)
			s.view.AddRegion(regionOf(seg))
		case hydrate && (RoundTime(r.Start) != seg.StartTime || RoundTime(r.End) != seg.EndTime):
			s.view.RemoveRegion(seg.ID)
			s.shown[seg.ID] = regionOf(seg)
			s.view.AddRegion(regionOf(seg))
		case r.Label != seg.Label:
			r.Label = seg.Label
			s.shown[seg.ID] = r
			s.view.SetRegionLabel(seg.ID, seg.Label)
		}
	}
}
