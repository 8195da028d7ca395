package sequencer

import (
	"testing"

	"cvgrid/midi"
)

func TestRecordHistoryTracksHeldNotes(t *testing.T) {
	var h RecordHistory
	h.Write(0, midi.Event{Type: midi.NoteOn, Note: 60, Velocity: 100})
	h.Write(5, midi.Event{Type: midi.NoteOn, Note: 64, Velocity: 100})

	if !h.IsNoteActive() {
		t.Fatal("notes should be active")
	}
	if h.ActiveNote() != 64 {
		t.Errorf("active note = %d, want the newest (64)", h.ActiveNote())
	}

	h.Write(10, midi.Event{Type: midi.NoteOff, Note: 64})
	if h.ActiveNote() != 60 {
		t.Errorf("active note = %d, want 60 after release", h.ActiveNote())
	}

	h.Write(15, midi.Event{Type: midi.NoteOff, Note: 60})
	if h.IsNoteActive() {
		t.Error("no notes should be active")
	}
}

func TestRecordHistoryBounded(t *testing.T) {
	var h RecordHistory
	for i := 0; i < 40; i++ {
		h.Write(uint32(i), midi.Event{Type: midi.NoteOn, Note: uint8(i), Velocity: 100})
	}
	if h.Size() != recordHistorySize {
		t.Errorf("size = %d, want %d", h.Size(), recordHistorySize)
	}
	// oldest entries dropped
	if h.At(0).Note != 40-recordHistorySize {
		t.Errorf("oldest note = %d, want %d", h.At(0).Note, 40-recordHistorySize)
	}
}

func TestCurveRecorderFitsRamp(t *testing.T) {
	var r CurveRecorder
	const divisor = 64

	// first window: ramp from 0.2 to 0.8
	closed := false
	for tick := uint32(0); tick <= divisor; tick++ {
		value := 0.2 + 0.6*float32(tick%divisor)/divisor
		if r.Write(tick, divisor, value) {
			closed = true
			break
		}
	}
	if !closed {
		t.Fatal("window did not close at the step boundary")
	}

	match := r.MatchCurve()
	if match.Type != CurveRampUp {
		t.Errorf("matched %v, want Ramp Up", match.Type)
	}
	if match.Min < 0.15 || match.Min > 0.25 {
		t.Errorf("min = %v, want about 0.2", match.Min)
	}
	if match.Max < 0.73 || match.Max > 0.85 {
		t.Errorf("max = %v, want about 0.8", match.Max)
	}
}

func TestCurveRecorderFitsFlat(t *testing.T) {
	var r CurveRecorder

	closed := false
	for tick := uint32(0); tick <= 64; tick++ {
		if r.Write(tick, 64, 0.5) {
			closed = true
			break
		}
	}
	if !closed {
		t.Fatal("window did not close")
	}
	match := r.MatchCurve()
	if match.Min < 0.49 || match.Max > 0.51 {
		t.Errorf("flat fit bounds [%v,%v], want 0.5", match.Min, match.Max)
	}
}

func TestCurveRecorderResetDropsWindow(t *testing.T) {
	var r CurveRecorder
	r.Write(0, 64, 0.5)
	r.Write(1, 64, 0.5)
	r.Reset()
	if r.Write(10, 64, 0.5) {
		t.Error("unprimed recorder must not close a window mid-step")
	}
}
