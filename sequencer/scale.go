package sequencer

// Scale maps integer note indices (scale degrees) to output voltages at
// 1V/oct. Degree 0 of octave 0 sits at 0V.
type Scale struct {
	name      string
	intervals []int // semitones from root, strictly inside one octave
	chromatic bool
}

// Scale definitions - intervals from root (semitones)
var scales = []Scale{
	{"Chromatic", []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, true},
	{"Major", []int{0, 2, 4, 5, 7, 9, 11}, false},
	{"Minor", []int{0, 2, 3, 5, 7, 8, 10}, false},
	{"Pentatonic", []int{0, 2, 4, 7, 9}, false},
	{"Dorian", []int{0, 2, 3, 5, 7, 9, 10}, false},
	{"Phrygian", []int{0, 1, 3, 5, 7, 8, 10}, false},
	{"Lydian", []int{0, 2, 4, 6, 7, 9, 11}, false},
	{"Mixolydian", []int{0, 2, 4, 5, 7, 9, 10}, false},
	{"Locrian", []int{0, 1, 3, 5, 6, 8, 10}, false},
	{"Harm Min", []int{0, 2, 3, 5, 7, 8, 11}, false},
	{"Mel Min", []int{0, 2, 3, 5, 7, 9, 11}, false},
	{"Blues", []int{0, 3, 5, 6, 7, 10}, false},
	{"Whole Tone", []int{0, 2, 4, 6, 8, 10}, false},
	{"Hirajoshi", []int{0, 2, 3, 7, 8}, false},
	{"In Sen", []int{0, 1, 5, 7, 10}, false},
}

// ScaleCount is the number of available scales
func ScaleCount() int { return len(scales) }

// ScaleByIndex returns the scale at index, clamped
func ScaleByIndex(index int) *Scale {
	return &scales[clampInt(index, 0, len(scales)-1)]
}

// Name returns the scale name
func (s *Scale) Name() string { return s.name }

// IsChromatic reports whether the scale covers all twelve semitones
func (s *Scale) IsChromatic() bool { return s.chromatic }

// NotesPerOctave returns the number of degrees in one octave
func (s *Scale) NotesPerOctave() int { return len(s.intervals) }

// NoteToVolts converts a scale degree to volts at 1V/oct
func (s *Scale) NoteToVolts(note int) float32 {
	n := len(s.intervals)
	octave := floorDiv(note, n)
	degree := note - octave*n
	return float32(octave) + float32(s.intervals[degree])/12
}

// NoteFromVolts converts volts back to the nearest scale degree
func (s *Scale) NoteFromVolts(volts float32) int {
	semis := int(roundf(volts * 12))
	octave := floorDiv(semis, 12)
	rem := semis - octave*12

	best := 0
	bestDist := 12
	for i, iv := range s.intervals {
		d := rem - iv
		if d < 0 {
			d = -d
		}
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return octave*len(s.intervals) + best
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func roundf(v float32) float32 {
	if v < 0 {
		return -roundf(-v)
	}
	return float32(int(v + 0.5))
}
