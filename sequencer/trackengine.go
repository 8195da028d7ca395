package sequencer

// LinkData is the snapshot a track publishes after its own advance so a
// downstream track can mirror its cursor within the same tick pass.
type LinkData struct {
	Divisor       uint32
	RelativeTick  uint32
	SequenceState *SequenceState
}

// OutputSink receives the per-track gate/CV mirror. Implementations enqueue;
// they never block the tick path.
type OutputSink interface {
	SendGate(trackIndex int, gate bool)
	SendCv(trackIndex int, volts float32)
	SendSlide(trackIndex int, slide bool)
}

// NullOutputSink discards everything
type NullOutputSink struct{}

func (NullOutputSink) SendGate(int, bool)     {}
func (NullOutputSink) SendCv(int, float32)    {}
func (NullOutputSink) SendSlide(int, bool)    {}

// TrackEngine is the common capability set of the track machine variants
type TrackEngine interface {
	TrackMode() TrackMode
	Reset()
	Restart()
	Tick(tick uint32)
	Update(dt float32)
	ChangePattern()
	LinkData() *LinkData
	Activity() bool
	GateOutput(index int) bool
	CvOutput(index int) float32
	SequenceProgress() float32
}

// trackEngine carries what every variant needs: the engine backpointer, the
// track, and the leader engine when the track is linked.
type trackEngine struct {
	engine            *Engine
	project           *Project
	track             *Track
	linkedTrackEngine TrackEngine
	linkData          LinkData
}

func (e *trackEngine) mute() bool     { return e.track.Mute() }
func (e *trackEngine) fill() bool     { return e.track.Fill() }
func (e *trackEngine) fillAmount() int { return e.track.FillAmount() }
func (e *trackEngine) swing() int     { return e.track.Swing() }
func (e *trackEngine) pattern() int   { return e.track.Pattern() }

func (e *trackEngine) isSelected() bool {
	return e.project.SelectedTrackIndex() == e.track.TrackIndex()
}

// applySwing displaces a scheduled tick by the track's swing amount.
// Absolute ticks keep swing phase across reset boundaries.
func (e *trackEngine) applySwing(tick uint32) uint32 {
	return Swing(tick, SwingBase, e.swing())
}

// leaderLinkData returns the leader's published snapshot, or nil when unlinked
func (e *trackEngine) leaderLinkData() *LinkData {
	if e.linkedTrackEngine == nil {
		return nil
	}
	return e.linkedTrackEngine.LinkData()
}

// rotateStep maps the cursor through the track-level rotate offset within
// [firstStep, lastStep]. rotateStep(rotateStep(s, f, l, r), f, l, -r) == s.
func rotateStep(step, firstStep, lastStep, rotate int) int {
	stepCount := lastStep - firstStep + 1
	offset := (step - firstStep + rotate) % stepCount
	if offset < 0 {
		offset += stepCount
	}
	return firstStep + offset
}
