package sequencer

// TrackMode selects the step machine variant running on a track
type TrackMode uint8

const (
	TrackModeNote TrackMode = iota
	TrackModeCurve
	TrackModeMidiCv
	TrackModeLast
)

func (m TrackMode) String() string {
	switch m {
	case TrackModeNote:
		return "Note"
	case TrackModeCurve:
		return "Curve"
	case TrackModeMidiCv:
		return "MIDI/CV"
	}
	return "?"
}

// NoteFillMode selects what fill substitutes on a note track
type NoteFillMode uint8

const (
	NoteFillNone NoteFillMode = iota
	NoteFillGates
	NoteFillNextPattern
	NoteFillCondition
	NoteFillLast
)

// CurveFillMode selects what fill substitutes on a curve track
type CurveFillMode uint8

const (
	CurveFillNone CurveFillMode = iota
	CurveFillVariation
	CurveFillNextPattern
	CurveFillInvert
	CurveFillLast
)

// CvUpdateMode controls when a note track publishes CV
type CvUpdateMode uint8

const (
	CvUpdateGate CvUpdateMode = iota // only on passing gates
	CvUpdateAlways
	CvUpdateLast
)

const probabilityBiasMin = -ProbabilityMax

// NoteTrack holds the configuration and patterns of a note track
type NoteTrack struct {
	playMode                 PlayMode
	fillMode                 NoteFillMode
	cvUpdateMode             CvUpdateMode
	slideTime                int
	octave                   int
	transpose                int
	rotate                   int
	gateProbabilityBias      int
	retriggerProbabilityBias int
	lengthBias               int
	noteProbabilityBias      int
	sequences                [PatternCount]NoteSequence
}

func (t *NoteTrack) PlayMode() PlayMode { return t.playMode }
func (t *NoteTrack) SetPlayMode(mode PlayMode) {
	if mode >= PlayModeLast {
		mode = PlayModeAligned
	}
	t.playMode = mode
}

func (t *NoteTrack) FillMode() NoteFillMode { return t.fillMode }
func (t *NoteTrack) SetFillMode(mode NoteFillMode) {
	if mode >= NoteFillLast {
		mode = NoteFillNone
	}
	t.fillMode = mode
}

func (t *NoteTrack) CvUpdateMode() CvUpdateMode { return t.cvUpdateMode }
func (t *NoteTrack) SetCvUpdateMode(mode CvUpdateMode) {
	if mode >= CvUpdateLast {
		mode = CvUpdateGate
	}
	t.cvUpdateMode = mode
}

func (t *NoteTrack) SlideTime() int         { return t.slideTime }
func (t *NoteTrack) SetSlideTime(time int)  { t.slideTime = clampInt(time, 0, 100) }
func (t *NoteTrack) Octave() int            { return t.octave }
func (t *NoteTrack) SetOctave(octave int)   { t.octave = clampInt(octave, -10, 10) }
func (t *NoteTrack) Transpose() int         { return t.transpose }
func (t *NoteTrack) SetTranspose(trans int) { t.transpose = clampInt(trans, -100, 100) }
func (t *NoteTrack) Rotate() int            { return t.rotate }
func (t *NoteTrack) SetRotate(rotate int)   { t.rotate = clampInt(rotate, -(StepCount - 1), StepCount-1) }

func (t *NoteTrack) GateProbabilityBias() int { return t.gateProbabilityBias }
func (t *NoteTrack) SetGateProbabilityBias(b int) {
	t.gateProbabilityBias = clampInt(b, probabilityBiasMin, ProbabilityMax)
}

func (t *NoteTrack) RetriggerProbabilityBias() int { return t.retriggerProbabilityBias }
func (t *NoteTrack) SetRetriggerProbabilityBias(b int) {
	t.retriggerProbabilityBias = clampInt(b, probabilityBiasMin, ProbabilityMax)
}

func (t *NoteTrack) LengthBias() int { return t.lengthBias }
func (t *NoteTrack) SetLengthBias(b int) {
	t.lengthBias = clampInt(b, -(LengthRange - 1), LengthRange-1)
}

func (t *NoteTrack) NoteProbabilityBias() int { return t.noteProbabilityBias }
func (t *NoteTrack) SetNoteProbabilityBias(b int) {
	t.noteProbabilityBias = clampInt(b, probabilityBiasMin, ProbabilityMax)
}

// Sequence returns the sequence for a pattern index, clamped
func (t *NoteTrack) Sequence(pattern int) *NoteSequence {
	return &t.sequences[clampInt(pattern, 0, PatternCount-1)]
}

// Clear resets the track to defaults
func (t *NoteTrack) Clear() {
	t.playMode = PlayModeAligned
	t.fillMode = NoteFillNone
	t.cvUpdateMode = CvUpdateGate
	t.slideTime = 0
	t.octave = 0
	t.transpose = 0
	t.rotate = 0
	t.gateProbabilityBias = 0
	t.retriggerProbabilityBias = 0
	t.lengthBias = 0
	t.noteProbabilityBias = 0
	for i := range t.sequences {
		t.sequences[i].Clear()
	}
}

// CurveTrack holds the configuration and patterns of a curve track
type CurveTrack struct {
	playMode             PlayMode
	fillMode             CurveFillMode
	slideTime            int
	rotate               int
	shapeProbabilityBias int
	gateProbabilityBias  int
	sequences            [PatternCount]CurveSequence
}

func (t *CurveTrack) PlayMode() PlayMode { return t.playMode }
func (t *CurveTrack) SetPlayMode(mode PlayMode) {
	if mode >= PlayModeLast {
		mode = PlayModeAligned
	}
	t.playMode = mode
}

func (t *CurveTrack) FillMode() CurveFillMode { return t.fillMode }
func (t *CurveTrack) SetFillMode(mode CurveFillMode) {
	if mode >= CurveFillLast {
		mode = CurveFillNone
	}
	t.fillMode = mode
}

func (t *CurveTrack) SlideTime() int        { return t.slideTime }
func (t *CurveTrack) SetSlideTime(time int) { t.slideTime = clampInt(time, 0, 100) }
func (t *CurveTrack) Rotate() int           { return t.rotate }
func (t *CurveTrack) SetRotate(rotate int) {
	t.rotate = clampInt(rotate, -(StepCount - 1), StepCount-1)
}

func (t *CurveTrack) ShapeProbabilityBias() int { return t.shapeProbabilityBias }
func (t *CurveTrack) SetShapeProbabilityBias(b int) {
	t.shapeProbabilityBias = clampInt(b, -ProbabilityRange, ProbabilityRange)
}

func (t *CurveTrack) GateProbabilityBias() int { return t.gateProbabilityBias }
func (t *CurveTrack) SetGateProbabilityBias(b int) {
	t.gateProbabilityBias = clampInt(b, probabilityBiasMin, ProbabilityMax)
}

// Sequence returns the sequence for a pattern index, clamped
func (t *CurveTrack) Sequence(pattern int) *CurveSequence {
	return &t.sequences[clampInt(pattern, 0, PatternCount-1)]
}

// Clear resets the track to defaults
func (t *CurveTrack) Clear() {
	t.playMode = PlayModeAligned
	t.fillMode = CurveFillNone
	t.slideTime = 0
	t.rotate = 0
	t.shapeProbabilityBias = 0
	t.gateProbabilityBias = 0
	for i := range t.sequences {
		t.sequences[i].Clear()
	}
}

// VoiceConfig selects which signals a MIDI/CV voice drives
type VoiceConfig uint8

const (
	VoiceConfigPitch VoiceConfig = iota
	VoiceConfigPitchVelocity
	VoiceConfigPitchVelocityPressure
	VoiceConfigLast
)

func (c VoiceConfig) String() string {
	switch c {
	case VoiceConfigPitch:
		return "Pitch"
	case VoiceConfigPitchVelocity:
		return "Pitch+Vel"
	case VoiceConfigPitchVelocityPressure:
		return "Pitch+Vel+Press"
	}
	return "?"
}

// NotePriority selects which held notes win voices
type NotePriority uint8

const (
	NotePriorityLast NotePriority = iota
	NotePriorityFirst
	NotePriorityLowest
	NotePriorityHighest
	NotePriorityCount
)

func (p NotePriority) String() string {
	switch p {
	case NotePriorityLast:
		return "Last Note"
	case NotePriorityFirst:
		return "First Note"
	case NotePriorityLowest:
		return "Lowest Note"
	case NotePriorityHighest:
		return "Highest Note"
	}
	return "?"
}

// MidiSource filters which incoming MIDI messages feed a MIDI/CV track
type MidiSource struct {
	port    int // -1 = any
	channel int // -1 = omni
}

func (s *MidiSource) Port() int           { return s.port }
func (s *MidiSource) SetPort(port int)    { s.port = clampInt(port, -1, 15) }
func (s *MidiSource) Channel() int        { return s.channel }
func (s *MidiSource) SetChannel(ch int)   { s.channel = clampInt(ch, -1, 15) }
func (s *MidiSource) Clear()              { s.port = -1; s.channel = -1 }

// MidiCvTrack holds the configuration of a MIDI-to-CV track
type MidiCvTrack struct {
	source          MidiSource
	voices          int
	voiceConfig     VoiceConfig
	notePriority    NotePriority
	lowNote         int
	highNote        int
	pitchBendRange  int
	modulationRange VoltageRange
	retrigger       bool
	arpeggiator     Arpeggiator
}

func (t *MidiCvTrack) Source() *MidiSource { return &t.source }

func (t *MidiCvTrack) Voices() int { return t.voices }
func (t *MidiCvTrack) SetVoices(voices int) {
	t.voices = clampInt(voices, 1, 8)
}

func (t *MidiCvTrack) VoiceConfig() VoiceConfig { return t.voiceConfig }
func (t *MidiCvTrack) SetVoiceConfig(config VoiceConfig) {
	if config >= VoiceConfigLast {
		config = VoiceConfigPitch
	}
	t.voiceConfig = config
}

func (t *MidiCvTrack) NotePriority() NotePriority { return t.notePriority }
func (t *MidiCvTrack) SetNotePriority(p NotePriority) {
	if p >= NotePriorityCount {
		p = NotePriorityLast
	}
	t.notePriority = p
}

func (t *MidiCvTrack) LowNote() int { return t.lowNote }
func (t *MidiCvTrack) SetLowNote(note int) {
	t.lowNote = clampInt(note, 0, t.highNote)
}

func (t *MidiCvTrack) HighNote() int { return t.highNote }
func (t *MidiCvTrack) SetHighNote(note int) {
	t.highNote = clampInt(note, t.lowNote, 127)
}

func (t *MidiCvTrack) PitchBendRange() int { return t.pitchBendRange }
func (t *MidiCvTrack) SetPitchBendRange(semitones int) {
	t.pitchBendRange = clampInt(semitones, 0, 48)
}

func (t *MidiCvTrack) ModulationRange() VoltageRange { return t.modulationRange }
func (t *MidiCvTrack) SetModulationRange(r VoltageRange) {
	if r >= VoltageRangeLast {
		r = VoltageRangeUnipolar5V
	}
	t.modulationRange = r
}

func (t *MidiCvTrack) Retrigger() bool             { return t.retrigger }
func (t *MidiCvTrack) SetRetrigger(retrigger bool) { t.retrigger = retrigger }

func (t *MidiCvTrack) Arpeggiator() *Arpeggiator { return &t.arpeggiator }

// Clear resets the track to defaults
func (t *MidiCvTrack) Clear() {
	t.source.Clear()
	t.highNote = 127
	t.SetVoices(1)
	t.SetVoiceConfig(VoiceConfigPitch)
	t.SetNotePriority(NotePriorityLowest)
	t.SetLowNote(0)
	t.SetHighNote(127)
	t.SetPitchBendRange(2)
	t.SetModulationRange(VoltageRangeUnipolar5V)
	t.SetRetrigger(false)
	t.arpeggiator.Clear()
}

// Track is one of the instrument's tracks: a mode tag plus the per-mode
// container, and the playback flags shared by all modes.
type Track struct {
	trackIndex int
	mode       TrackMode

	linkTrack  int // -1 = none; must be an earlier track
	mute       bool
	fill       bool
	fillAmount int
	swing      int

	pattern          int
	requestedPattern int // latched at the next tick boundary

	note   *NoteTrack
	curve  *CurveTrack
	midiCv *MidiCvTrack
}

// NewTrack creates a track in the given mode
func NewTrack(index int, mode TrackMode) *Track {
	t := &Track{
		trackIndex:       index,
		linkTrack:        -1,
		fillAmount:       100,
		swing:            SwingDefault,
		requestedPattern: -1,
	}
	t.SetMode(mode)
	return t
}

func (t *Track) TrackIndex() int { return t.trackIndex }

func (t *Track) Mode() TrackMode { return t.mode }

// SetMode switches the track mode, allocating the mode container once.
// Allocation happens at setup time, never in the tick path.
func (t *Track) SetMode(mode TrackMode) {
	if mode >= TrackModeLast {
		mode = TrackModeNote
	}
	t.mode = mode
	switch mode {
	case TrackModeNote:
		if t.note == nil {
			t.note = &NoteTrack{}
			t.note.Clear()
		}
	case TrackModeCurve:
		if t.curve == nil {
			t.curve = &CurveTrack{}
			t.curve.Clear()
		}
	case TrackModeMidiCv:
		if t.midiCv == nil {
			t.midiCv = &MidiCvTrack{}
			t.midiCv.Clear()
		}
	}
}

// LinkTrack returns the leader track index (-1 = none)
func (t *Track) LinkTrack() int { return t.linkTrack }

// SetLinkTrack links this track to an earlier one. Followers must come after
// their leader in tick order, so only earlier indices are accepted.
func (t *Track) SetLinkTrack(index int) {
	t.linkTrack = clampInt(index, -1, t.trackIndex-1)
}

func (t *Track) Mute() bool          { return t.mute }
func (t *Track) SetMute(mute bool)   { t.mute = mute }
func (t *Track) Fill() bool          { return t.fill }
func (t *Track) SetFill(fill bool)   { t.fill = fill }
func (t *Track) FillAmount() int     { return t.fillAmount }
func (t *Track) SetFillAmount(a int) { t.fillAmount = clampInt(a, 0, 100) }
func (t *Track) Swing() int          { return t.swing }
func (t *Track) SetSwing(swing int)  { t.swing = clampInt(swing, SwingMin, SwingMax) }

// Pattern returns the current pattern index
func (t *Track) Pattern() int { return t.pattern }

// RequestPattern queues a pattern change; it takes effect at the next tick
// boundary, never mid-tick.
func (t *Track) RequestPattern(pattern int) {
	t.requestedPattern = clampInt(pattern, 0, PatternCount-1)
}

func (t *Track) NoteTrack() *NoteTrack     { return t.note }
func (t *Track) CurveTrack() *CurveTrack   { return t.curve }
func (t *Track) MidiCvTrack() *MidiCvTrack { return t.midiCv }
