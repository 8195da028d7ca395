package sequencer

import (
	"math"
	"testing"

	"cvgrid/midi"
)

func newMidiCvEngine() (*Engine, *MidiCvTrackEngine) {
	project := NewProject()
	project.Track(0).SetMode(TrackModeMidiCv)
	engine := NewEngine(project, NewSettings(), nil, 1)
	return engine, engine.TrackEngine(0).(*MidiCvTrackEngine)
}

func noteOn(note, velocity uint8) midi.Event {
	return midi.Event{Type: midi.NoteOn, Note: note, Velocity: velocity}
}

func noteOff(note uint8) midi.Event {
	return midi.Event{Type: midi.NoteOff, Note: note}
}

func TestLowestPriorityHoldsLowestNote(t *testing.T) {
	engine, mc := newMidiCvEngine()
	track := engine.Project().Track(0).MidiCvTrack()
	track.SetVoices(1)
	track.SetNotePriority(NotePriorityLowest)

	mc.ReceiveMidi(noteOn(48, 100)) // C3
	mc.ReceiveMidi(noteOn(52, 100)) // E3

	if !mc.GateOutput(0) {
		t.Fatal("voice 0 should be gated")
	}
	if got := mc.CvOutput(0); math.Abs(float64(got)-(-1)) > 1e-6 {
		t.Errorf("voice 0 cv = %v, want -1V (C3)", got)
	}
}

func TestLowestPriorityReleaseRebindsContinuous(t *testing.T) {
	engine, mc := newMidiCvEngine()
	track := engine.Project().Track(0).MidiCvTrack()
	track.SetVoices(1)
	track.SetNotePriority(NotePriorityLowest)
	track.SetRetrigger(false)

	mc.ReceiveMidi(noteOn(48, 100))
	mc.ReceiveMidi(noteOn(52, 100))
	mc.ReceiveMidi(noteOff(48))

	// E3 takes over with a continuous gate
	if !mc.GateOutput(0) {
		t.Error("gate should stay high without retrigger")
	}
	wantE3 := float64(52-60) / 12
	if got := mc.CvOutput(0); math.Abs(float64(got)-wantE3) > 1e-6 {
		t.Errorf("voice 0 cv = %v, want %v (E3)", got, wantE3)
	}
}

func TestLowestPriorityReleaseRetriggers(t *testing.T) {
	engine, mc := newMidiCvEngine()
	track := engine.Project().Track(0).MidiCvTrack()
	track.SetVoices(1)
	track.SetNotePriority(NotePriorityLowest)
	track.SetRetrigger(true)

	mc.ReceiveMidi(noteOn(48, 100))
	mc.ReceiveMidi(noteOn(52, 100))
	mc.ReceiveMidi(noteOff(48))

	// gate drops for the retrigger edge, then comes back on the next tick
	if mc.GateOutput(0) {
		t.Error("retrigger should drop the gate first")
	}
	mc.Tick(0)
	if !mc.GateOutput(0) {
		t.Error("gate should come back after the retrigger edge")
	}
}

func TestHighestPriority(t *testing.T) {
	engine, mc := newMidiCvEngine()
	track := engine.Project().Track(0).MidiCvTrack()
	track.SetVoices(1)
	track.SetNotePriority(NotePriorityHighest)

	mc.ReceiveMidi(noteOn(48, 100))
	mc.ReceiveMidi(noteOn(52, 100))
	mc.ReceiveMidi(noteOn(40, 100))

	want := float64(52-60) / 12
	if got := mc.CvOutput(0); math.Abs(float64(got)-want) > 1e-6 {
		t.Errorf("voice 0 cv = %v, want %v (highest held)", got, want)
	}
}

func TestLastPrioritySoundsNewest(t *testing.T) {
	engine, mc := newMidiCvEngine()
	track := engine.Project().Track(0).MidiCvTrack()
	track.SetVoices(1)
	track.SetNotePriority(NotePriorityLast)

	mc.ReceiveMidi(noteOn(48, 100))
	mc.ReceiveMidi(noteOn(52, 100))

	want := float64(52-60) / 12
	if got := mc.CvOutput(0); math.Abs(float64(got)-want) > 1e-6 {
		t.Errorf("voice 0 cv = %v, want %v (newest)", got, want)
	}
}

func TestFirstPriorityKeepsOldest(t *testing.T) {
	engine, mc := newMidiCvEngine()
	track := engine.Project().Track(0).MidiCvTrack()
	track.SetVoices(1)
	track.SetNotePriority(NotePriorityFirst)

	mc.ReceiveMidi(noteOn(48, 100))
	mc.ReceiveMidi(noteOn(52, 100))

	want := float64(48-60) / 12
	if got := mc.CvOutput(0); math.Abs(float64(got)-want) > 1e-6 {
		t.Errorf("voice 0 cv = %v, want %v (oldest)", got, want)
	}
}

func TestNoteWindowFilters(t *testing.T) {
	engine, mc := newMidiCvEngine()
	track := engine.Project().Track(0).MidiCvTrack()
	track.SetVoices(1)
	track.SetHighNote(72)
	track.SetLowNote(48)

	mc.ReceiveMidi(noteOn(40, 100)) // below window
	if mc.GateOutput(0) {
		t.Error("note below the window must not allocate a voice")
	}
	mc.ReceiveMidi(noteOn(60, 100))
	if !mc.GateOutput(0) {
		t.Error("note inside the window should sound")
	}
}

func TestPitchBendScalesIntoVoct(t *testing.T) {
	engine, mc := newMidiCvEngine()
	track := engine.Project().Track(0).MidiCvTrack()
	track.SetVoices(1)
	track.SetPitchBendRange(2)

	mc.ReceiveMidi(noteOn(60, 100))
	mc.ReceiveMidi(midi.Event{Type: midi.PitchBend, Bend: 8192 / 2}) // +1 semitone

	want := 1.0 / 12
	if got := mc.CvOutput(0); math.Abs(float64(got)-want) > 1e-3 {
		t.Errorf("bent cv = %v, want %v", got, want)
	}

	track.SetPitchBendRange(0)
	if got := mc.CvOutput(0); math.Abs(float64(got)) > 1e-6 {
		t.Errorf("bend with range 0 = %v, want muted", got)
	}
}

func TestVoiceConfigOutputLayout(t *testing.T) {
	engine, mc := newMidiCvEngine()
	track := engine.Project().Track(0).MidiCvTrack()
	track.SetVoices(2)
	track.SetVoiceConfig(VoiceConfigPitchVelocity)
	track.SetNotePriority(NotePriorityLowest)

	mc.ReceiveMidi(noteOn(48, 127))
	mc.ReceiveMidi(noteOn(60, 64))

	// outputs: [voct0, voct1, vel0, vel1]
	if got := mc.CvOutput(0); math.Abs(float64(got)-(-1)) > 1e-6 {
		t.Errorf("voct0 = %v, want -1V", got)
	}
	if got := mc.CvOutput(1); math.Abs(float64(got)) > 1e-6 {
		t.Errorf("voct1 = %v, want 0V", got)
	}
	if got := mc.CvOutput(2); math.Abs(float64(got)-5) > 1e-3 {
		t.Errorf("vel0 = %v, want 5V", got)
	}
	if got := mc.CvOutput(3); math.Abs(float64(got)-float64(64)/127*5) > 1e-3 {
		t.Errorf("vel1 = %v", got)
	}
}

func TestVoicesClamp(t *testing.T) {
	track := &MidiCvTrack{}
	track.Clear()
	track.SetVoices(99)
	if track.Voices() != 8 {
		t.Errorf("voices = %d, want 8", track.Voices())
	}
	track.SetVoices(0)
	if track.Voices() != 1 {
		t.Errorf("voices = %d, want 1", track.Voices())
	}
}

func TestNoteWindowInvariant(t *testing.T) {
	track := &MidiCvTrack{}
	track.Clear()
	track.SetHighNote(40)
	track.SetLowNote(60) // clamped to highNote
	if track.LowNote() > track.HighNote() {
		t.Errorf("lowNote %d > highNote %d", track.LowNote(), track.HighNote())
	}
	track.SetPitchBendRange(100)
	if track.PitchBendRange() != 48 {
		t.Errorf("pitchBendRange = %d, want 48", track.PitchBendRange())
	}
}

func TestArpeggiatorUpSequence(t *testing.T) {
	engine, mc := newMidiCvEngine()
	track := engine.Project().Track(0).MidiCvTrack()
	track.SetVoices(1)
	arp := track.Arpeggiator()
	arp.SetEnabled(true)
	arp.SetMode(ArpUp)
	arp.SetDivisor(6) // 24 master ticks per arp note

	mc.ReceiveMidi(noteOn(52, 100))
	mc.ReceiveMidi(noteOn(48, 100))
	mc.ReceiveMidi(noteOn(55, 100))

	var notes []uint8
	for tick := uint32(0); tick < 6*24; tick++ {
		mc.Tick(tick)
		if tick%24 == 0 {
			notes = append(notes, mc.voices[0].note)
		}
	}

	want := []uint8{48, 52, 55, 48, 52, 55}
	for i := range want {
		if notes[i] != want[i] {
			t.Fatalf("arp notes %v, want %v", notes, want)
		}
	}
}

func TestArpNotePoolModes(t *testing.T) {
	rng := NewRandom(1)
	held := []uint8{52, 48, 55}

	cases := []struct {
		mode ArpeggiatorMode
		want []uint8
	}{
		{ArpUp, []uint8{48, 52, 55}},
		{ArpDown, []uint8{55, 52, 48}},
		{ArpUpDown, []uint8{48, 52, 55, 52}},
		{ArpPlayed, []uint8{52, 48, 55}},
		{ArpConverge, []uint8{48, 55, 52}},
	}
	for _, c := range cases {
		got := arpNotePool(held, c.mode, 0, &rng)
		if len(got) != len(c.want) {
			t.Errorf("%v: pool %v, want %v", c.mode, got, c.want)
			continue
		}
		for i := range c.want {
			if got[i] != c.want[i] {
				t.Errorf("%v: pool %v, want %v", c.mode, got, c.want)
				break
			}
		}
	}
}

func TestArpOctaveExpansion(t *testing.T) {
	rng := NewRandom(1)
	got := arpNotePool([]uint8{48}, ArpUp, 1, &rng)
	want := []uint8{48, 60}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("octave pool %v, want %v", got, want)
	}
}
