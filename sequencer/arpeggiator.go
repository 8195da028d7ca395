package sequencer

// ArpeggiatorMode orders the note pool
type ArpeggiatorMode uint8

const (
	ArpUp ArpeggiatorMode = iota
	ArpDown
	ArpUpDown
	ArpDownUp
	ArpConverge
	ArpDiverge
	ArpPlayed
	ArpRandom
	ArpModeLast
)

var arpModeNames = []string{"Up", "Down", "Up Down", "Down Up", "Converge", "Diverge", "Played", "Random"}

func (m ArpeggiatorMode) String() string {
	if int(m) < len(arpModeNames) {
		return arpModeNames[m]
	}
	return "?"
}

// Arpeggiator is the configuration of a MIDI/CV track's arpeggiator
type Arpeggiator struct {
	enabled    bool
	hold       bool
	mode       ArpeggiatorMode
	divisor    int // sequence-domain ticks per arp note
	gateLength int // percent of the divisor
	octaves    int // 0 = off, +-n repeats the pool over n octaves
}

func (a *Arpeggiator) Enabled() bool           { return a.enabled }
func (a *Arpeggiator) SetEnabled(enabled bool) { a.enabled = enabled }

func (a *Arpeggiator) Hold() bool        { return a.hold }
func (a *Arpeggiator) SetHold(hold bool) { a.hold = hold }

func (a *Arpeggiator) Mode() ArpeggiatorMode { return a.mode }
func (a *Arpeggiator) SetMode(mode ArpeggiatorMode) {
	if mode >= ArpModeLast {
		mode = ArpUp
	}
	a.mode = mode
}

func (a *Arpeggiator) Divisor() int { return a.divisor }
func (a *Arpeggiator) SetDivisor(divisor int) {
	a.divisor = clampInt(divisor, 1, 192)
}

func (a *Arpeggiator) GateLength() int { return a.gateLength }
func (a *Arpeggiator) SetGateLength(length int) {
	a.gateLength = clampInt(length, 1, 100)
}

func (a *Arpeggiator) Octaves() int { return a.octaves }
func (a *Arpeggiator) SetOctaves(octaves int) {
	a.octaves = clampInt(octaves, -4, 4)
}

// Clear resets the arpeggiator to defaults
func (a *Arpeggiator) Clear() {
	a.enabled = false
	a.hold = false
	a.mode = ArpUp
	a.divisor = 12
	a.gateLength = 50
	a.octaves = 0
}

// arpNotePool builds the ordered note sequence for one full arp cycle out of
// the held notes (given in played order). The pool never exceeds
// arpMaxNotes entries.
const arpMaxNotes = 64

func arpNotePool(held []uint8, mode ArpeggiatorMode, octaves int, rng *Random) []uint8 {
	if len(held) == 0 {
		return nil
	}

	base := make([]uint8, len(held))
	copy(base, held)

	switch mode {
	case ArpUp, ArpUpDown, ArpConverge, ArpDiverge, ArpRandom:
		sortNotesAscending(base)
	case ArpDown, ArpDownUp:
		sortNotesAscending(base)
		reverseNotes(base)
	case ArpPlayed:
		// keep played order
	}

	// expand over octaves
	pool := base
	if octaves != 0 {
		pool = pool[:0:0]
		n := octaves
		if n < 0 {
			n = -n
		}
		for o := 0; o <= n; o++ {
			shift := o * 12
			if octaves < 0 {
				shift = -shift
			}
			for _, note := range base {
				v := int(note) + shift
				if v >= 0 && v <= 127 && len(pool) < arpMaxNotes {
					pool = append(pool, uint8(v))
				}
			}
		}
	}

	switch mode {
	case ArpUpDown:
		pool = appendReversedInner(pool)
	case ArpDownUp:
		pool = appendReversedInner(pool)
	case ArpConverge:
		pool = interleaveOutsideIn(pool)
	case ArpDiverge:
		pool = interleaveOutsideIn(pool)
		reverseNotes(pool)
	case ArpRandom:
		shuffleNotes(pool, rng)
	}

	return pool
}

func sortNotesAscending(notes []uint8) {
	for i := 1; i < len(notes); i++ {
		for j := i; j > 0 && notes[j] < notes[j-1]; j-- {
			notes[j], notes[j-1] = notes[j-1], notes[j]
		}
	}
}

func reverseNotes(notes []uint8) {
	for i, j := 0, len(notes)-1; i < j; i, j = i+1, j-1 {
		notes[i], notes[j] = notes[j], notes[i]
	}
}

// appendReversedInner appends the descending leg without repeating the
// endpoints: 1 2 3 -> 1 2 3 2
func appendReversedInner(notes []uint8) []uint8 {
	for i := len(notes) - 2; i >= 1; i-- {
		if len(notes) >= arpMaxNotes {
			break
		}
		notes = append(notes, notes[i])
	}
	return notes
}

// interleaveOutsideIn reorders 1 2 3 4 -> 1 4 2 3
func interleaveOutsideIn(notes []uint8) []uint8 {
	out := make([]uint8, 0, len(notes))
	lo, hi := 0, len(notes)-1
	for lo <= hi {
		out = append(out, notes[lo])
		if lo != hi {
			out = append(out, notes[hi])
		}
		lo++
		hi--
	}
	return out
}

func shuffleNotes(notes []uint8, rng *Random) {
	for i := len(notes) - 1; i > 0; i-- {
		j := int(rng.NextRange(uint32(i + 1)))
		notes[i], notes[j] = notes[j], notes[i]
	}
}
