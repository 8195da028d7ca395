package sequencer

import (
	"cvgrid/debug"
	"cvgrid/midi"
)

// EngineState is the shared transport state
type EngineState struct {
	Running   bool
	Recording bool
}

// Engine owns the per-track engines and drives them from the external clock.
// All engine work happens on the caller's goroutine: Tick and Update must be
// serialized by the owner (see Player).
type Engine struct {
	project  *Project
	settings *Settings
	output   OutputSink
	state    EngineState

	trackEngines [TrackCount]TrackEngine

	cvInputs [4]float32

	seed uint32
}

// NewEngine creates the engine and one track engine per track. Engines are
// created once at boot; changing a track's mode rebuilds its engine.
func NewEngine(project *Project, settings *Settings, output OutputSink, seed uint32) *Engine {
	if output == nil {
		output = NullOutputSink{}
	}
	e := &Engine{
		project:  project,
		settings: settings,
		output:   output,
		seed:     seed,
	}
	e.rebuildTrackEngines()
	return e
}

func (e *Engine) Project() *Project  { return e.project }
func (e *Engine) Settings() *Settings { return e.settings }
func (e *Engine) Output() OutputSink { return e.output }
func (e *Engine) State() *EngineState { return &e.state }

// MeasureDivisor is the tick length of one measure (4/4)
func (e *Engine) MeasureDivisor() uint32 { return PPQN * 4 }

// TrackEngine returns the engine for a track index
func (e *Engine) TrackEngine(index int) TrackEngine {
	return e.trackEngines[clampInt(index, 0, TrackCount-1)]
}

// CvInput returns the sampled CV input channel (set by the I/O layer)
func (e *Engine) CvInput(channel int) float32 {
	return e.cvInputs[clampInt(channel, 0, len(e.cvInputs)-1)]
}

// SetCvInput stores a sampled CV input value
func (e *Engine) SetCvInput(channel int, volts float32) {
	e.cvInputs[clampInt(channel, 0, len(e.cvInputs)-1)] = volts
}

// rebuildTrackEngines creates engines in track order so a linked follower
// can resolve its leader, which always has a lower index.
func (e *Engine) rebuildTrackEngines() {
	for i := 0; i < TrackCount; i++ {
		track := e.project.Track(i)
		var linked TrackEngine
		if l := track.LinkTrack(); l >= 0 {
			linked = e.trackEngines[l]
		}
		seed := e.seed + uint32(i)*0x9e3779b9
		switch track.Mode() {
		case TrackModeNote:
			e.trackEngines[i] = NewNoteTrackEngine(e, track, linked, seed)
		case TrackModeCurve:
			e.trackEngines[i] = NewCurveTrackEngine(e, track, linked, seed)
		case TrackModeMidiCv:
			e.trackEngines[i] = NewMidiCvTrackEngine(e, track, seed)
		}
	}
	debug.Log("engine", "track engines rebuilt")
}

// SetTrackMode switches a track's machine variant and rebuilds engines
func (e *Engine) SetTrackMode(index int, mode TrackMode) {
	e.project.Track(index).SetMode(mode)
	e.rebuildTrackEngines()
}

// SetLinkTrack links a follower to a leader and rebuilds engines
func (e *Engine) SetLinkTrack(index, leader int) {
	e.project.Track(index).SetLinkTrack(leader)
	e.rebuildTrackEngines()
}

// Start begins playback from the top
func (e *Engine) Start() {
	for _, te := range e.trackEngines {
		te.Restart()
	}
	e.state.Running = true
}

// Stop halts playback and sends every track's gate low; CV outputs hold
// their last values
func (e *Engine) Stop() {
	e.state.Running = false
	for i := range e.trackEngines {
		e.output.SendGate(i, false)
	}
}

// SetRecording toggles the record state
func (e *Engine) SetRecording(recording bool) {
	e.state.Recording = recording
}

// Tick advances every track at master PPQN resolution. Pattern changes are
// latched here, at the tick boundary, never mid-tick.
func (e *Engine) Tick(tick uint32) {
	e.applyPatternRequests()

	for _, te := range e.trackEngines {
		te.Tick(tick)
	}

	debug.LogEvery(PPQN, "engine", "tick=%d", tick)
}

// Update runs slide interpolation at UI/output rate
func (e *Engine) Update(dt float32) {
	for _, te := range e.trackEngines {
		te.Update(dt)
	}
}

// ReceiveMidi routes an incoming message to the MIDI/CV tracks and, for the
// selected track, the note recorder.
func (e *Engine) ReceiveMidi(tick uint32, event midi.Event) {
	for i, te := range e.trackEngines {
		switch te := te.(type) {
		case *MidiCvTrackEngine:
			te.ReceiveMidi(event)
		case *NoteTrackEngine:
			if i == e.project.SelectedTrackIndex() {
				te.MonitorMidi(tick, event)
			}
		}
	}
}

func (e *Engine) applyPatternRequests() {
	for i := 0; i < TrackCount; i++ {
		track := e.project.Track(i)
		if track.requestedPattern >= 0 && track.requestedPattern != track.pattern {
			track.pattern = track.requestedPattern
			track.requestedPattern = -1
			e.trackEngines[i].ChangePattern()
			debug.Log("engine", "track %d pattern -> %d", i, track.pattern)
		} else {
			track.requestedPattern = -1
		}
	}
}

// CalibratedCv applies the output calibration to a track's CV
func (e *Engine) CalibratedCv(trackIndex int, volts float32) float32 {
	if e.settings == nil {
		return volts
	}
	return e.settings.Calibration().CvOutput(trackIndex).Apply(volts)
}
