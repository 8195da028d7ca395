package sequencer

// NoteStep is a single step of a note sequence. All setters clamp; the tick
// path never sees out-of-range values.
type NoteStep struct {
	gate                       bool
	slide                      bool
	gateProbability            int8
	gateOffset                 int8
	retrigger                  uint8
	retriggerProbability       int8
	length                     uint8
	lengthVariationRange       int8
	lengthVariationProbability int8
	note                       int8
	noteVariationRange         int8
	noteVariationProbability   int8
	condition                  Condition
}

func (s *NoteStep) Gate() bool        { return s.gate }
func (s *NoteStep) SetGate(gate bool) { s.gate = gate }

func (s *NoteStep) Slide() bool         { return s.slide }
func (s *NoteStep) SetSlide(slide bool) { s.slide = slide }

func (s *NoteStep) GateProbability() int { return int(s.gateProbability) }
func (s *NoteStep) SetGateProbability(p int) {
	s.gateProbability = int8(clampInt(p, 0, ProbabilityMax))
}

func (s *NoteStep) GateOffset() int { return int(s.gateOffset) }
func (s *NoteStep) SetGateOffset(o int) {
	s.gateOffset = int8(clampInt(o, -GateOffsetMax, GateOffsetMax))
}

func (s *NoteStep) Retrigger() int { return int(s.retrigger) }
func (s *NoteStep) SetRetrigger(r int) {
	s.retrigger = uint8(clampInt(r, 0, RetriggerMax))
}

func (s *NoteStep) RetriggerProbability() int { return int(s.retriggerProbability) }
func (s *NoteStep) SetRetriggerProbability(p int) {
	s.retriggerProbability = int8(clampInt(p, 0, ProbabilityMax))
}

func (s *NoteStep) Length() int { return int(s.length) }
func (s *NoteStep) SetLength(l int) {
	s.length = uint8(clampInt(l, 0, LengthRange-1))
}

func (s *NoteStep) LengthVariationRange() int { return int(s.lengthVariationRange) }
func (s *NoteStep) SetLengthVariationRange(r int) {
	s.lengthVariationRange = int8(clampInt(r, -(LengthRange - 1), LengthRange-1))
}

func (s *NoteStep) LengthVariationProbability() int { return int(s.lengthVariationProbability) }
func (s *NoteStep) SetLengthVariationProbability(p int) {
	s.lengthVariationProbability = int8(clampInt(p, 0, ProbabilityMax))
}

func (s *NoteStep) Note() int { return int(s.note) }
func (s *NoteStep) SetNote(n int) {
	s.note = int8(clampInt(n, NoteMin, NoteMax))
}

func (s *NoteStep) NoteVariationRange() int { return int(s.noteVariationRange) }
func (s *NoteStep) SetNoteVariationRange(r int) {
	s.noteVariationRange = int8(clampInt(r, NoteMin, NoteMax))
}

func (s *NoteStep) NoteVariationProbability() int { return int(s.noteVariationProbability) }
func (s *NoteStep) SetNoteVariationProbability(p int) {
	s.noteVariationProbability = int8(clampInt(p, 0, ProbabilityMax))
}

func (s *NoteStep) Condition() Condition { return s.condition }
func (s *NoteStep) SetCondition(c Condition) {
	if c >= ConditionLast {
		c = ConditionOff
	}
	s.condition = c
}

// Clear resets the step to defaults
func (s *NoteStep) Clear() {
	*s = NoteStep{}
	s.gateProbability = ProbabilityMax
	s.retriggerProbability = ProbabilityMax
	s.length = LengthRange/2 - 1
	s.lengthVariationProbability = ProbabilityMax
	s.noteVariationProbability = ProbabilityMax
}

// NoteSequence is a fixed array of steps with its traversal settings
type NoteSequence struct {
	steps        [StepCount]NoteStep
	firstStep    int
	lastStep     int
	divisor      int // sequence-domain ticks per step
	resetMeasure int // hard reset period in measures, 0 = never
	runMode      RunMode
	scale        int // -1 = project default
	rootNote     int // -1 = project default
}

// Step returns the step at index. Index must be in range; this is a caller
// contract, not a runtime branch.
func (s *NoteSequence) Step(index int) *NoteStep { return &s.steps[index] }

func (s *NoteSequence) FirstStep() int { return s.firstStep }
func (s *NoteSequence) SetFirstStep(step int) {
	s.firstStep = clampInt(step, 0, s.lastStep)
}

func (s *NoteSequence) LastStep() int { return s.lastStep }
func (s *NoteSequence) SetLastStep(step int) {
	s.lastStep = clampInt(step, s.firstStep, StepCount-1)
}

func (s *NoteSequence) Divisor() int { return s.divisor }
func (s *NoteSequence) SetDivisor(divisor int) {
	s.divisor = clampInt(divisor, 1, 192)
}

func (s *NoteSequence) ResetMeasure() int { return s.resetMeasure }
func (s *NoteSequence) SetResetMeasure(measure int) {
	s.resetMeasure = clampInt(measure, 0, 128)
}

func (s *NoteSequence) RunMode() RunMode { return s.runMode }
func (s *NoteSequence) SetRunMode(mode RunMode) {
	if mode >= RunModeLast {
		mode = RunModeForward
	}
	s.runMode = mode
}

func (s *NoteSequence) Scale() int { return s.scale }
func (s *NoteSequence) SetScale(scale int) {
	s.scale = clampInt(scale, -1, ScaleCount()-1)
}

func (s *NoteSequence) RootNote() int { return s.rootNote }
func (s *NoteSequence) SetRootNote(note int) {
	s.rootNote = clampInt(note, -1, 11)
}

// SelectedScale resolves the sequence scale against the project default
func (s *NoteSequence) SelectedScale(defaultScale int) *Scale {
	if s.scale < 0 {
		return ScaleByIndex(defaultScale)
	}
	return ScaleByIndex(s.scale)
}

// SelectedRootNote resolves the sequence root note against the project default
func (s *NoteSequence) SelectedRootNote(defaultRootNote int) int {
	if s.rootNote < 0 {
		return defaultRootNote
	}
	return s.rootNote
}

// Clear resets the sequence and all steps to defaults
func (s *NoteSequence) Clear() {
	for i := range s.steps {
		s.steps[i].Clear()
	}
	s.firstStep = 0
	s.lastStep = 15
	s.divisor = 12 // sixteenths
	s.resetMeasure = 0
	s.runMode = RunModeForward
	s.scale = -1
	s.rootNote = -1
}
