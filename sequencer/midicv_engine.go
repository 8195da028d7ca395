package sequencer

import "cvgrid/midi"

// ArpEvent is a scheduled arpeggiator note edge
type ArpEvent struct {
	Tick uint32
	Gate bool
	Note uint8
}

func (e ArpEvent) eventTick() uint32 { return e.Tick }

const heldNoteCap = 16

type heldNote struct {
	note     uint8
	velocity uint8
	order    uint32
}

type voice struct {
	active   bool
	gate     bool
	note     uint8
	velocity uint8
	pressure uint8
	order    uint32
	// retrigger forces one tick of gate low before the next note sounds
	retrigger bool
}

// MidiCvTrackEngine converts incoming MIDI into per-voice gate and CV
// outputs under a note-priority policy, with optional arpeggiation.
type MidiCvTrackEngine struct {
	trackEngine

	midiCvTrack *MidiCvTrack
	rng         Random

	voices [8]voice

	held      [heldNoteCap]heldNote
	heldCount int
	orderSeq  uint32

	pitchBend  float32 // normalized -1..1
	modulation float32 // normalized 0..1

	arpQueue     sortedQueue[ArpEvent]
	arpIndex     int
	arpHeldEmpty bool

	activity bool
}

// NewMidiCvTrackEngine creates the engine for a MIDI/CV-mode track
func NewMidiCvTrackEngine(engine *Engine, track *Track, seed uint32) *MidiCvTrackEngine {
	e := &MidiCvTrackEngine{
		trackEngine: trackEngine{
			engine:  engine,
			project: engine.Project(),
			track:   track,
		},
		midiCvTrack: track.MidiCvTrack(),
		rng:         NewRandom(seed),
	}
	e.Reset()
	return e
}

func (e *MidiCvTrackEngine) TrackMode() TrackMode { return TrackModeMidiCv }

// Reset drops all held notes and voices
func (e *MidiCvTrackEngine) Reset() {
	for i := range e.voices {
		e.voices[i] = voice{}
	}
	e.heldCount = 0
	e.pitchBend = 0
	e.modulation = 0
	e.arpQueue.Clear()
	e.arpIndex = 0
	e.activity = false
}

// Restart behaves like Reset; there is no cursor to keep
func (e *MidiCvTrackEngine) Restart() { e.Reset() }

// ChangePattern is a no-op; the track has no patterns
func (e *MidiCvTrackEngine) ChangePattern() {}

// LinkData is nil; a MIDI/CV track publishes no cursor
func (e *MidiCvTrackEngine) LinkData() *LinkData { return nil }

// ReceiveMidi feeds an incoming message into the voice allocator (or the
// arpeggiator's note pool when enabled). Filtering against the track's
// source and note window happens here.
func (e *MidiCvTrackEngine) ReceiveMidi(event midi.Event) {
	if !e.acceptsEvent(event) {
		return
	}

	switch {
	case event.IsNoteOn():
		if int(event.Note) < e.midiCvTrack.LowNote() || int(event.Note) > e.midiCvTrack.HighNote() {
			return
		}
		e.noteOn(event.Note, event.Velocity)
	case event.IsNoteOff():
		e.noteOff(event.Note)
	case event.Type == midi.PitchBend:
		e.pitchBend = float32(event.Bend) / 8192
	case event.Type == midi.ControlChange && event.Controller == midi.CCModWheel:
		e.modulation = float32(event.Value) / 127
	case event.Type == midi.ChannelPressure:
		for i := range e.voices {
			if e.voices[i].active {
				e.voices[i].pressure = event.Value
			}
		}
	case event.Type == midi.KeyPressure:
		for i := range e.voices {
			if e.voices[i].active && e.voices[i].note == event.Note {
				e.voices[i].pressure = event.Value
			}
		}
	}
}

func (e *MidiCvTrackEngine) acceptsEvent(event midi.Event) bool {
	source := e.midiCvTrack.Source()
	if source.Port() >= 0 && event.Port != source.Port() {
		return false
	}
	if source.Channel() >= 0 && int(event.Channel) != source.Channel() {
		return false
	}
	return true
}

func (e *MidiCvTrackEngine) noteOn(note, velocity uint8) {
	// replace an existing hold of the same note
	e.removeHeld(note)
	if e.heldCount == heldNoteCap {
		copy(e.held[:e.heldCount-1], e.held[1:e.heldCount])
		e.heldCount--
	}
	e.orderSeq++
	e.held[e.heldCount] = heldNote{note: note, velocity: velocity, order: e.orderSeq}
	e.heldCount++

	if e.midiCvTrack.Arpeggiator().Enabled() {
		return // the arp schedules voices itself
	}
	e.allocateVoices()
}

func (e *MidiCvTrackEngine) noteOff(note uint8) {
	if e.midiCvTrack.Arpeggiator().Enabled() && e.midiCvTrack.Arpeggiator().Hold() {
		return // pool is latched
	}
	e.removeHeld(note)
	if e.midiCvTrack.Arpeggiator().Enabled() {
		return
	}
	e.allocateVoices()
}

func (e *MidiCvTrackEngine) removeHeld(note uint8) {
	for i := 0; i < e.heldCount; i++ {
		if e.held[i].note == note {
			copy(e.held[i:e.heldCount-1], e.held[i+1:e.heldCount])
			e.heldCount--
			return
		}
	}
}

// allocateVoices rebinds held notes to voices under the priority policy.
// Voices keep their note when it is still among the winners, so sounding
// notes are not retriggered gratuitously.
func (e *MidiCvTrackEngine) allocateVoices() {
	voiceCount := e.midiCvTrack.Voices()
	winners := e.priorityWinners(voiceCount)
	retrigger := e.midiCvTrack.Retrigger()

	var wasSounding [8]bool
	for i := 0; i < voiceCount; i++ {
		wasSounding[i] = e.voices[i].active && e.voices[i].gate
	}

	// release voices whose note lost
	for i := 0; i < voiceCount; i++ {
		v := &e.voices[i]
		if !v.active {
			continue
		}
		found := false
		for _, w := range winners {
			if w.note == v.note {
				found = true
				break
			}
		}
		if !found {
			v.active = false
			v.gate = false
		}
	}

	// bind new winners to free voices, stealing the stalest if needed
	for _, w := range winners {
		bound := false
		for i := 0; i < voiceCount; i++ {
			if e.voices[i].active && e.voices[i].note == w.note {
				bound = true
				break
			}
		}
		if bound {
			continue
		}

		slot := -1
		for i := 0; i < voiceCount; i++ {
			if !e.voices[i].active {
				slot = i
				break
			}
		}
		if slot < 0 {
			// steal the least recently bound voice
			oldest := uint32(1<<32 - 1)
			for i := 0; i < voiceCount; i++ {
				if e.voices[i].order < oldest {
					oldest = e.voices[i].order
					slot = i
				}
			}
		}

		v := &e.voices[slot]
		v.active = true
		v.note = w.note
		v.velocity = w.velocity
		v.order = w.order
		if wasSounding[slot] && retrigger {
			// gate drops for one tick before the new note sounds
			v.gate = false
			v.retrigger = true
		} else {
			v.gate = true
		}
	}
}

// priorityWinners picks the notes that get voices, in binding order
func (e *MidiCvTrackEngine) priorityWinners(voiceCount int) []heldNote {
	if e.heldCount == 0 {
		return nil
	}

	notes := make([]heldNote, e.heldCount)
	copy(notes, e.held[:e.heldCount])

	switch e.midiCvTrack.NotePriority() {
	case NotePriorityLast:
		// newest first
		for i, j := 0, len(notes)-1; i < j; i, j = i+1, j-1 {
			notes[i], notes[j] = notes[j], notes[i]
		}
	case NotePriorityFirst:
		// oldest first: already in played order
	case NotePriorityLowest:
		sortHeldByNote(notes, false)
	case NotePriorityHighest:
		sortHeldByNote(notes, true)
	}

	if len(notes) > voiceCount {
		notes = notes[:voiceCount]
	}
	return notes
}

func sortHeldByNote(notes []heldNote, descending bool) {
	for i := 1; i < len(notes); i++ {
		for j := i; j > 0; j-- {
			less := notes[j].note < notes[j-1].note
			if descending {
				less = notes[j].note > notes[j-1].note
			}
			if !less {
				break
			}
			notes[j], notes[j-1] = notes[j-1], notes[j]
		}
	}
}

// Tick schedules arpeggiator notes and completes pending retriggers
func (e *MidiCvTrackEngine) Tick(tick uint32) {
	arp := e.midiCvTrack.Arpeggiator()
	if arp.Enabled() {
		e.tickArpeggiator(tick, arp)
	}

	// finish retrigger cycles: the low edge lasted one tick
	voiceCount := e.midiCvTrack.Voices()
	for i := 0; i < voiceCount; i++ {
		v := &e.voices[i]
		if v.retrigger {
			v.retrigger = false
			v.gate = true
		}
	}

	e.activity = false
	for i := 0; i < voiceCount; i++ {
		if e.voices[i].gate {
			e.activity = true
			break
		}
	}

	e.engine.Output().SendGate(e.track.TrackIndex(), e.GateOutput(0))
	if e.voices[0].active {
		e.engine.Output().SendCv(e.track.TrackIndex(), e.CvOutput(0))
	}
}

func (e *MidiCvTrackEngine) tickArpeggiator(tick uint32, arp *Arpeggiator) {
	divisor := uint32(arp.Divisor()) * (PPQN / SequencePPQN)

	if e.heldCount == 0 {
		e.arpHeldEmpty = true
	} else if e.arpHeldEmpty {
		// restart the cycle when notes come back
		e.arpHeldEmpty = false
		e.arpIndex = 0
	}

	if tick%divisor == 0 && e.heldCount > 0 {
		played := make([]uint8, e.heldCount)
		for i := 0; i < e.heldCount; i++ {
			played[i] = e.held[i].note
		}
		pool := arpNotePool(played, arp.Mode(), arp.Octaves(), &e.rng)
		if len(pool) > 0 {
			if e.arpIndex >= len(pool) {
				e.arpIndex = 0
			}
			note := pool[e.arpIndex]
			e.arpIndex++

			gateTicks := divisor * uint32(arp.GateLength()) / 100
			if gateTicks == 0 {
				gateTicks = 1
			}
			e.arpQueue.PushReplace(ArpEvent{Tick: tick, Gate: true, Note: note})
			e.arpQueue.PushReplace(ArpEvent{Tick: tick + gateTicks, Gate: false, Note: note})
		}
	}

	for !e.arpQueue.Empty() && tick >= e.arpQueue.Front().Tick {
		event := e.arpQueue.Front()
		e.arpQueue.Pop()

		v := &e.voices[0]
		if event.Gate {
			if v.gate && e.midiCvTrack.Retrigger() {
				v.gate = false
				v.retrigger = true
			} else {
				v.gate = true
			}
			v.active = true
			v.note = event.Note
			v.velocity = e.heldVelocity(event.Note)
		} else if v.note == event.Note {
			v.gate = false
		}
	}
}

func (e *MidiCvTrackEngine) heldVelocity(note uint8) uint8 {
	for i := 0; i < e.heldCount; i++ {
		if e.held[i].note == note {
			return e.held[i].velocity
		}
	}
	return 100
}

// Update is a no-op; voice CVs snap, they are not slewed
func (e *MidiCvTrackEngine) Update(dt float32) {}

func (e *MidiCvTrackEngine) Activity() bool { return e.activity }

// GateOutput returns the gate of a voice output
func (e *MidiCvTrackEngine) GateOutput(index int) bool {
	return e.voices[index%e.midiCvTrack.Voices()].gate
}

// CvOutput returns a voice signal: outputs are grouped signal-major, with
// the voices of each signal adjacent, so index = signal*voices + voice.
func (e *MidiCvTrackEngine) CvOutput(index int) float32 {
	voices := e.midiCvTrack.Voices()
	signals := int(e.midiCvTrack.VoiceConfig()) + 1
	total := voices * signals
	index %= total
	voiceIndex := index % voices
	signalIndex := index / voices
	v := &e.voices[voiceIndex]

	switch signalIndex {
	case 0:
		// V/Oct around middle C, plus scaled pitch bend
		volts := float32(int(v.note)-60) / 12
		if bendRange := e.midiCvTrack.PitchBendRange(); bendRange > 0 {
			volts += e.pitchBend * float32(bendRange) / 12
		}
		return volts
	case 1:
		return float32(v.velocity) / 127 * 5
	default:
		rangeInfo := e.midiCvTrack.ModulationRange().RangeInfo()
		return rangeInfo.Denormalize(float32(v.pressure) / 127)
	}
}

// ModulationOutput returns the mod-wheel CV scaled into the track's
// modulation range.
func (e *MidiCvTrackEngine) ModulationOutput() float32 {
	rangeInfo := e.midiCvTrack.ModulationRange().RangeInfo()
	return rangeInfo.Denormalize(e.modulation)
}

// SequenceProgress is always 0; there is no sequence cursor
func (e *MidiCvTrackEngine) SequenceProgress() float32 { return 0 }
