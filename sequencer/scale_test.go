package sequencer

import (
	"math"
	"testing"
)

func TestChromaticNoteToVolts(t *testing.T) {
	scale := ScaleByIndex(0)
	if !scale.IsChromatic() {
		t.Fatal("scale 0 should be chromatic")
	}
	cases := []struct {
		note int
		want float32
	}{
		{0, 0},
		{12, 1},
		{-12, -1},
		{7, 7.0 / 12},
	}
	for _, c := range cases {
		got := scale.NoteToVolts(c.note)
		if math.Abs(float64(got-c.want)) > 1e-6 {
			t.Errorf("NoteToVolts(%d) = %v, want %v", c.note, got, c.want)
		}
	}
}

func TestMajorScaleDegrees(t *testing.T) {
	var major *Scale
	for i := 0; i < ScaleCount(); i++ {
		if ScaleByIndex(i).Name() == "Major" {
			major = ScaleByIndex(i)
			break
		}
	}
	if major == nil {
		t.Fatal("no major scale")
	}
	if major.NotesPerOctave() != 7 {
		t.Fatalf("major notes per octave = %d, want 7", major.NotesPerOctave())
	}
	// degree 4 is a fifth: 7 semitones
	got := major.NoteToVolts(4)
	want := float32(7.0 / 12)
	if math.Abs(float64(got-want)) > 1e-6 {
		t.Errorf("major degree 4 = %v, want %v", got, want)
	}
	// degree 7 wraps the octave
	if got := major.NoteToVolts(7); math.Abs(float64(got-1)) > 1e-6 {
		t.Errorf("major degree 7 = %v, want 1V", got)
	}
}

func TestNoteFromVoltsRoundTrip(t *testing.T) {
	for i := 0; i < ScaleCount(); i++ {
		scale := ScaleByIndex(i)
		for note := -14; note <= 14; note++ {
			volts := scale.NoteToVolts(note)
			if got := scale.NoteFromVolts(volts); got != note {
				t.Errorf("%s: NoteFromVolts(NoteToVolts(%d)) = %d", scale.Name(), note, got)
			}
		}
	}
}
