package midi

import (
	"math"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"

	"cvgrid/debug"
)

// OutputEngine mirrors per-track gate/CV activity to a MIDI output port.
// CV is translated back to a note number at 1V/oct around middle C; a gate
// edge plays or releases that note on the track's channel. Sends go through
// a gomidi sender; all calls only enqueue onto the port driver.
type OutputEngine struct {
	mu     sync.Mutex
	sender func(gomidi.Message) error

	tracks [16]trackOutput
}

type trackOutput struct {
	note      uint8
	gate      bool
	slide     bool
	havePitch bool
}

// NewOutputEngine creates an output engine without a port attached
func NewOutputEngine() *OutputEngine {
	o := &OutputEngine{}
	for i := range o.tracks {
		o.tracks[i].note = 60
	}
	return o
}

// SetSender attaches (or detaches, with nil) the MIDI send function
func (o *OutputEngine) SetSender(sender func(gomidi.Message) error) {
	o.mu.Lock()
	o.sender = sender
	o.mu.Unlock()
}

// SendGate publishes a gate edge for a track
func (o *OutputEngine) SendGate(trackIndex int, gate bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	t := &o.tracks[trackIndex&15]
	if gate == t.gate {
		return
	}
	t.gate = gate

	if o.sender == nil {
		return
	}
	ch := uint8(trackIndex & 15)
	if gate {
		o.sender(gomidi.NoteOn(ch, t.note, 100))
	} else {
		o.sender(gomidi.NoteOff(ch, t.note))
	}
	debug.LogEvery(64, "midiout", "gate track=%d gate=%v note=%d", trackIndex, gate, t.note)
}

// SendCv publishes a CV update for a track
func (o *OutputEngine) SendCv(trackIndex int, volts float32) {
	o.mu.Lock()
	defer o.mu.Unlock()

	t := &o.tracks[trackIndex&15]
	note := voltsToNote(volts)
	if t.havePitch && note == t.note {
		return
	}
	prev := t.note
	t.note = note
	t.havePitch = true

	if o.sender == nil || !t.gate {
		return
	}
	// retune a sounding note: legato keeps the old note ringing until the
	// new one is on
	ch := uint8(trackIndex & 15)
	o.sender(gomidi.NoteOn(ch, note, 100))
	if prev != note {
		o.sender(gomidi.NoteOff(ch, prev))
	}
}

// SendSlide publishes the slide flag for a track (mirrored as portamento CC)
func (o *OutputEngine) SendSlide(trackIndex int, slide bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	t := &o.tracks[trackIndex&15]
	if slide == t.slide {
		return
	}
	t.slide = slide

	if o.sender == nil {
		return
	}
	value := uint8(0)
	if slide {
		value = 127
	}
	o.sender(gomidi.ControlChange(uint8(trackIndex&15), 65, value)) // portamento on/off
}

// AllNotesOff releases every sounding mirror note
func (o *OutputEngine) AllNotesOff() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sender == nil {
		return
	}
	for i := range o.tracks {
		if o.tracks[i].gate {
			o.sender(gomidi.NoteOff(uint8(i), o.tracks[i].note))
			o.tracks[i].gate = false
		}
	}
}

// voltsToNote maps volts at 1V/oct to a MIDI note around middle C
func voltsToNote(volts float32) uint8 {
	n := 60 + int(math.Round(float64(volts)*12))
	if n < 0 {
		n = 0
	}
	if n > 127 {
		n = 127
	}
	return uint8(n)
}
