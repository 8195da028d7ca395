package sequencer

// CurveStep is a single step of a curve sequence. min/max are stored as u8
// and normalized on evaluation; gate is a 4-bit pattern of sub-step pulses.
type CurveStep struct {
	shape                     CurveType
	shapeVariation            CurveType
	shapeVariationProbability int8 // 0..8, strict-less test
	min                       uint8
	max                       uint8
	gate                      uint8 // 4-bit pattern
	gateProbability           int8
}

const curveValueMax = 255

func (s *CurveStep) Shape() CurveType { return s.shape }
func (s *CurveStep) SetShape(shape CurveType) {
	if shape >= CurveTypeLast {
		shape = CurveLow
	}
	s.shape = shape
}

func (s *CurveStep) ShapeVariation() CurveType { return s.shapeVariation }
func (s *CurveStep) SetShapeVariation(shape CurveType) {
	if shape >= CurveTypeLast {
		shape = CurveLow
	}
	s.shapeVariation = shape
}

func (s *CurveStep) ShapeVariationProbability() int { return int(s.shapeVariationProbability) }
func (s *CurveStep) SetShapeVariationProbability(p int) {
	s.shapeVariationProbability = int8(clampInt(p, 0, ProbabilityRange))
}

func (s *CurveStep) Min() int { return int(s.min) }
func (s *CurveStep) SetMin(v int) {
	s.min = uint8(clampInt(v, 0, curveValueMax))
	if s.max < s.min {
		s.max = s.min
	}
}

func (s *CurveStep) Max() int { return int(s.max) }
func (s *CurveStep) SetMax(v int) {
	s.max = uint8(clampInt(v, 0, curveValueMax))
	if s.min > s.max {
		s.min = s.max
	}
}

// MinNormalized returns min in [0,1]
func (s *CurveStep) MinNormalized() float32 { return float32(s.min) / curveValueMax }
func (s *CurveStep) SetMinNormalized(v float32) {
	s.SetMin(int(v*curveValueMax + 0.5))
}

// MaxNormalized returns max in [0,1]
func (s *CurveStep) MaxNormalized() float32 { return float32(s.max) / curveValueMax }
func (s *CurveStep) SetMaxNormalized(v float32) {
	s.SetMax(int(v*curveValueMax + 0.5))
}

func (s *CurveStep) GatePattern() int { return int(s.gate) }
func (s *CurveStep) SetGatePattern(gate int) {
	s.gate = uint8(clampInt(gate, 0, 15))
}

func (s *CurveStep) GateProbability() int { return int(s.gateProbability) }
func (s *CurveStep) SetGateProbability(p int) {
	s.gateProbability = int8(clampInt(p, 0, ProbabilityMax))
}

// Clear resets the step to defaults
func (s *CurveStep) Clear() {
	*s = CurveStep{}
	s.max = curveValueMax
	s.gateProbability = ProbabilityMax
}

// CurveSequence is a fixed array of curve steps with its traversal settings
type CurveSequence struct {
	steps        [StepCount]CurveStep
	firstStep    int
	lastStep     int
	divisor      int
	resetMeasure int
	runMode      RunMode
	vrange       VoltageRange
}

// Step returns the step at index (caller contract: index in range)
func (s *CurveSequence) Step(index int) *CurveStep { return &s.steps[index] }

func (s *CurveSequence) FirstStep() int { return s.firstStep }
func (s *CurveSequence) SetFirstStep(step int) {
	s.firstStep = clampInt(step, 0, s.lastStep)
}

func (s *CurveSequence) LastStep() int { return s.lastStep }
func (s *CurveSequence) SetLastStep(step int) {
	s.lastStep = clampInt(step, s.firstStep, StepCount-1)
}

func (s *CurveSequence) Divisor() int { return s.divisor }
func (s *CurveSequence) SetDivisor(divisor int) {
	s.divisor = clampInt(divisor, 1, 192)
}

func (s *CurveSequence) ResetMeasure() int { return s.resetMeasure }
func (s *CurveSequence) SetResetMeasure(measure int) {
	s.resetMeasure = clampInt(measure, 0, 128)
}

func (s *CurveSequence) RunMode() RunMode { return s.runMode }
func (s *CurveSequence) SetRunMode(mode RunMode) {
	if mode >= RunModeLast {
		mode = RunModeForward
	}
	s.runMode = mode
}

func (s *CurveSequence) Range() VoltageRange { return s.vrange }
func (s *CurveSequence) SetRange(r VoltageRange) {
	if r >= VoltageRangeLast {
		r = VoltageRangeUnipolar5V
	}
	s.vrange = r
}

// Clear resets the sequence and all steps to defaults
func (s *CurveSequence) Clear() {
	for i := range s.steps {
		s.steps[i].Clear()
	}
	s.firstStep = 0
	s.lastStep = 15
	s.divisor = 12
	s.resetMeasure = 0
	s.runMode = RunModeForward
	s.vrange = VoltageRangeBipolar5V
}
