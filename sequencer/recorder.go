package sequencer

import "cvgrid/midi"

// RecordEventType tags entries in the record history
type RecordEventType uint8

const (
	RecordNoteOn RecordEventType = iota
	RecordNoteOff
)

// RecordEvent is one timestamped entry of the record history
type RecordEvent struct {
	Tick uint32
	Type RecordEventType
	Note uint8
}

const recordHistorySize = 16

// RecordHistory is a small ring of timestamped note events. It is written
// from the MIDI input callback and read from the tick context; access is
// serialized by the engine's owner (single-producer/single-consumer).
type RecordHistory struct {
	events [recordHistorySize]RecordEvent
	size   int

	activeNotes [recordHistorySize]uint8
	activeCount int
}

// Clear drops all history
func (h *RecordHistory) Clear() {
	h.size = 0
	h.activeCount = 0
}

// Write appends a note event, dropping the oldest entry when full
func (h *RecordHistory) Write(tick uint32, event midi.Event) {
	switch {
	case event.IsNoteOn():
		h.append(RecordEvent{Tick: tick, Type: RecordNoteOn, Note: event.Note})
		if h.activeCount < recordHistorySize {
			h.activeNotes[h.activeCount] = event.Note
			h.activeCount++
		}
	case event.IsNoteOff():
		h.append(RecordEvent{Tick: tick, Type: RecordNoteOff, Note: event.Note})
		for i := 0; i < h.activeCount; i++ {
			if h.activeNotes[i] == event.Note {
				copy(h.activeNotes[i:h.activeCount-1], h.activeNotes[i+1:h.activeCount])
				h.activeCount--
				break
			}
		}
	}
}

func (h *RecordHistory) append(e RecordEvent) {
	if h.size == recordHistorySize {
		copy(h.events[:h.size-1], h.events[1:h.size])
		h.size--
	}
	h.events[h.size] = e
	h.size++
}

// Size returns the number of stored events
func (h *RecordHistory) Size() int { return h.size }

// At returns the event at index (oldest first)
func (h *RecordHistory) At(index int) RecordEvent { return h.events[index] }

// IsNoteActive reports whether any note is currently held
func (h *RecordHistory) IsNoteActive() bool { return h.activeCount > 0 }

// ActiveNote returns the most recently held note
func (h *RecordHistory) ActiveNote() uint8 {
	return h.activeNotes[h.activeCount-1]
}

// CurveMatch is the result of fitting one step window of sampled CV
type CurveMatch struct {
	Type CurveType
	Min  float32
	Max  float32
}

const curveRecorderSamples = 32

// CurveRecorder accumulates sampled input values across one step-duration
// window and fits the best-matching shape and normalized bounds on close.
type CurveRecorder struct {
	samples [curveRecorderSamples]float32
	filled  [curveRecorderSamples]bool
	count   int
	primed  bool
}

// Reset drops the current window
func (r *CurveRecorder) Reset() {
	r.count = 0
	r.primed = false
	for i := range r.filled {
		r.filled[i] = false
	}
}

// Write stores a sample at its position within the step. Returns true when
// a full window just closed (at the next step boundary).
func (r *CurveRecorder) Write(relativeTick, divisor uint32, value float32) bool {
	phase := relativeTick % divisor

	if phase == 0 {
		closed := r.primed && r.count > 0
		if closed {
			return true
		}
		r.primed = true
		r.count = 0
		for i := range r.filled {
			r.filled[i] = false
		}
	}

	if !r.primed {
		return false
	}

	slot := int(phase * curveRecorderSamples / divisor)
	if slot >= curveRecorderSamples {
		slot = curveRecorderSamples - 1
	}
	r.samples[slot] = value
	if !r.filled[slot] {
		r.filled[slot] = true
		r.count++
	}
	return false
}

// MatchCurve fits the stored window against the shape table and resets the
// window for the next step.
func (r *CurveRecorder) MatchCurve() CurveMatch {
	min, max := float32(1), float32(0)
	for i := 0; i < curveRecorderSamples; i++ {
		if !r.filled[i] {
			continue
		}
		v := r.samples[i]
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max < min {
		min, max = 0, 0
	}

	span := max - min
	best := CurveLow
	bestErr := float32(-1)
	for t := CurveLow; t < CurveTypeLast; t++ {
		f := CurveFunction(t)
		var err float32
		for i := 0; i < curveRecorderSamples; i++ {
			if !r.filled[i] {
				continue
			}
			x := (float32(i) + 0.5) / curveRecorderSamples
			want := min + f(x)*span
			d := r.samples[i] - want
			err += d * d
		}
		if bestErr < 0 || err < bestErr {
			bestErr = err
			best = t
		}
	}

	// keep the primed flag so consecutive windows keep closing
	r.count = 0
	for i := range r.filled {
		r.filled[i] = false
	}

	return CurveMatch{Type: best, Min: min, Max: max}
}
