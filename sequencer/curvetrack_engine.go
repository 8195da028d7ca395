package sequencer

// CurveTrackEngine emits a smoothly varying CV by sampling a shape function
// per step, plus gate pulses from the step's 4-bit gate pattern.
type CurveTrackEngine struct {
	trackEngine

	curveTrack *CurveTrack
	rng        Random

	sequence     *CurveSequence
	fillSequence *CurveSequence

	sequenceState       SequenceState
	freeRelativeTick    uint32
	currentStep         int
	currentStepFraction float32
	shapeVariation      bool
	fillMode            CurveFillMode

	gateQueue sortedQueue[GateEvent]

	activity       bool
	gateOutput     bool
	cvOutput       float32
	cvOutputTarget float32

	recorder    CurveRecorder
	recordValue float32
}

// NewCurveTrackEngine creates the engine for a curve-mode track
func NewCurveTrackEngine(engine *Engine, track *Track, linked TrackEngine, seed uint32) *CurveTrackEngine {
	e := &CurveTrackEngine{
		trackEngine: trackEngine{
			engine:            engine,
			project:           engine.Project(),
			track:             track,
			linkedTrackEngine: linked,
		},
		curveTrack: track.CurveTrack(),
		rng:        NewRandom(seed),
	}
	e.Reset()
	return e
}

func (e *CurveTrackEngine) TrackMode() TrackMode { return TrackModeCurve }

// Reset rewinds everything
func (e *CurveTrackEngine) Reset() {
	e.freeRelativeTick = 0
	e.sequenceState.Reset()
	e.currentStep = -1
	e.currentStepFraction = 0
	e.shapeVariation = false
	e.fillMode = CurveFillNone
	e.activity = false
	e.gateOutput = false

	e.recorder.Reset()
	e.gateQueue.Clear()

	e.ChangePattern()
}

// Restart only rewinds the cursor
func (e *CurveTrackEngine) Restart() {
	e.sequenceState.Reset()
	e.freeRelativeTick = 0
	e.currentStep = -1
	e.currentStepFraction = 0
}

// ChangePattern rebinds the sequence pointers
func (e *CurveTrackEngine) ChangePattern() {
	pattern := e.pattern()
	e.sequence = e.curveTrack.Sequence(pattern)
	fill := pattern + 1
	if fill > PatternCount-1 {
		fill = PatternCount - 1
	}
	e.fillSequence = e.curveTrack.Sequence(fill)
}

// LinkData publishes this track's cursor for downstream followers
func (e *CurveTrackEngine) LinkData() *LinkData { return &e.linkData }

// Tick advances the sequence, refreshes the interpolated CV target and
// drains due gate events.
func (e *CurveTrackEngine) Tick(tick uint32) {
	sequence := e.sequence

	if linkData := e.leaderLinkData(); linkData != nil {
		e.linkData = *linkData
		e.sequenceState = *linkData.SequenceState

		e.updateRecording(linkData.RelativeTick, linkData.Divisor)

		if linkData.RelativeTick%linkData.Divisor == 0 {
			e.triggerStep(tick, linkData.Divisor)
		}

		e.updateOutput(linkData.RelativeTick, linkData.Divisor)
	} else {
		divisor := uint32(sequence.Divisor()) * (PPQN / SequencePPQN)
		resetDivisor := uint32(sequence.ResetMeasure()) * e.engine.MeasureDivisor()
		relativeTick := tick
		if resetDivisor != 0 {
			relativeTick = tick % resetDivisor
		}

		// handle reset measure
		if relativeTick == 0 {
			e.Reset()
		}

		e.updateRecording(relativeTick, divisor)

		switch e.curveTrack.PlayMode() {
		case PlayModeAligned:
			if relativeTick%divisor == 0 {
				e.sequenceState.AdvanceAligned(int(relativeTick/divisor), sequence.RunMode(), sequence.FirstStep(), sequence.LastStep(), &e.rng)
				e.triggerStep(tick, divisor)
			}
		case PlayModeFree:
			relativeTick = e.freeRelativeTick
			e.freeRelativeTick++
			if e.freeRelativeTick >= divisor {
				e.freeRelativeTick = 0
			}
			if relativeTick == 0 {
				e.sequenceState.AdvanceFree(sequence.RunMode(), sequence.FirstStep(), sequence.LastStep(), &e.rng)
				e.triggerStep(tick, divisor)
			}
		}

		e.updateOutput(relativeTick, divisor)

		e.linkData.Divisor = divisor
		e.linkData.RelativeTick = relativeTick
		e.linkData.SequenceState = &e.sequenceState
	}

	output := e.engine.Output()

	for !e.gateQueue.Empty() && tick >= e.gateQueue.Front().Tick {
		e.activity = e.gateQueue.Front().Gate
		e.gateOutput = (!e.mute() || e.fill()) && e.activity
		e.gateQueue.Pop()

		output.SendGate(e.track.TrackIndex(), e.gateOutput)
	}
}

// Update smooths the CV output toward its target
func (e *CurveTrackEngine) Update(dt float32) {
	// override due to recording
	if e.isRecording() {
		e.updateRecordValue()
		rangeInfo := e.sequence.Range().RangeInfo()
		e.cvOutputTarget = rangeInfo.Denormalize(e.recordValue)
		e.cvOutput = e.cvOutputTarget
	}

	if !e.mute() {
		if slideTime := e.curveTrack.SlideTime(); slideTime > 0 {
			factor := 1 - 0.01*float32(slideTime)
			factor = 500 * factor * factor
			f := dt * factor
			if f > 1 {
				f = 1
			}
			e.cvOutput += (e.cvOutputTarget - e.cvOutput) * f
		} else {
			e.cvOutput = e.cvOutputTarget
		}
	}
}

func (e *CurveTrackEngine) Activity() bool             { return e.activity }
func (e *CurveTrackEngine) GateOutput(index int) bool  { return e.gateOutput }
func (e *CurveTrackEngine) CvOutput(index int) float32 { return e.cvOutput }

// SequenceProgress reports the cursor position within the range as [0,1]
func (e *CurveTrackEngine) SequenceProgress() float32 {
	if e.currentStep < 0 {
		return 0
	}
	span := e.sequence.LastStep() - e.sequence.FirstStep()
	if span == 0 {
		return 0
	}
	return float32(e.currentStep-e.sequence.FirstStep()) / float32(span)
}

// CurrentStep returns the playing step index (-1 = none)
func (e *CurveTrackEngine) CurrentStep() int { return e.currentStep }

// CurrentStepFraction returns the phase within the playing step
func (e *CurveTrackEngine) CurrentStepFraction() float32 { return e.currentStepFraction }

// triggerStep latches per-step state and pushes the gate pattern
func (e *CurveTrackEngine) triggerStep(tick, divisor uint32) {
	rotate := e.curveTrack.Rotate()
	shapeProbabilityBias := e.curveTrack.ShapeProbabilityBias()
	gateProbabilityBias := e.curveTrack.GateProbabilityBias()

	sequence := e.sequence
	e.currentStep = rotateStep(e.sequenceState.Step(), sequence.FirstStep(), sequence.LastStep(), rotate)
	step := sequence.Step(e.currentStep)

	e.shapeVariation = evalShapeVariation(step, shapeProbabilityBias, &e.rng)

	fillStep := e.fill() && int(e.rng.NextRange(100)) < e.fillAmount()
	if fillStep {
		e.fillMode = e.curveTrack.FillMode()
	} else {
		e.fillMode = CurveFillNone
	}

	// trigger gate pattern
	gate := step.GatePattern()
	for i := 0; i < 4; i++ {
		if gate&(1<<i) != 0 && evalCurveGate(step, gateProbabilityBias, &e.rng) {
			gateStart := (divisor * uint32(i)) / 4
			gateLength := divisor / 8
			e.gateQueue.PushReplace(GateEvent{e.applySwing(tick + gateStart), true})
			e.gateQueue.PushReplace(GateEvent{e.applySwing(tick + gateStart + gateLength), false})
		}
	}
}

// updateOutput samples the shape at the current step phase
func (e *CurveTrackEngine) updateOutput(relativeTick, divisor uint32) {
	if e.sequenceState.Step() < 0 || e.currentStep < 0 {
		return
	}

	fillVariation := e.fillMode == CurveFillVariation
	fillNextPattern := e.fillMode == CurveFillNextPattern
	fillInvert := e.fillMode == CurveFillInvert

	rangeInfo := e.sequence.Range().RangeInfo()

	evalSequence := e.sequence
	if fillNextPattern {
		evalSequence = e.fillSequence
	}
	step := evalSequence.Step(e.currentStep)

	e.currentStepFraction = float32(relativeTick%divisor) / float32(divisor)

	value := evalStepShape(step, e.shapeVariation || fillVariation, fillInvert, e.currentStepFraction)
	value = rangeInfo.Denormalize(value)
	e.cvOutputTarget = value

	e.engine.Output().SendCv(e.track.TrackIndex(), e.cvOutputTarget)
}

func (e *CurveTrackEngine) isRecording() bool {
	return e.engine.State().Recording &&
		e.project.CurveCvInput() >= 0 &&
		e.project.SelectedTrackIndex() == e.track.TrackIndex()
}

func (e *CurveTrackEngine) updateRecordValue() {
	rangeInfo := e.sequence.Range().RangeInfo()
	input := e.project.CurveCvInput()
	if input >= 0 {
		e.recordValue = rangeInfo.Normalize(e.engine.CvInput(input))
	} else {
		e.recordValue = 0
	}
}

// updateRecording streams input samples through the curve fitter and writes
// matched shapes back into the step that just finished.
func (e *CurveTrackEngine) updateRecording(relativeTick, divisor uint32) {
	if !e.isRecording() {
		e.recorder.Reset()
		return
	}

	e.updateRecordValue()

	if e.recorder.Write(relativeTick, divisor, e.recordValue) && e.sequenceState.Step() >= 0 {
		sequence := e.sequence
		rotate := e.curveTrack.Rotate()
		step := sequence.Step(rotateStep(e.sequenceState.Step(), sequence.FirstStep(), sequence.LastStep(), rotate))
		match := e.recorder.MatchCurve()
		step.SetShape(match.Type)
		step.SetMinNormalized(match.Min)
		step.SetMaxNormalized(match.Max)
	}
}

// curve step evaluation

func evalStepShape(step *CurveStep, variation, invert bool, fraction float32) float32 {
	shape := step.Shape()
	if variation {
		shape = step.ShapeVariation()
	}
	value := CurveFunction(shape)(fraction)
	if invert {
		value = 1 - value
	}
	min := step.MinNormalized()
	max := step.MaxNormalized()
	return min + value*(max-min)
}

func evalShapeVariation(step *CurveStep, probabilityBias int, rng *Random) bool {
	probability := clampInt(step.ShapeVariationProbability()+probabilityBias, 0, ProbabilityRange)
	return int(rng.NextRange(ProbabilityRange)) < probability
}

func evalCurveGate(step *CurveStep, probabilityBias int, rng *Random) bool {
	probability := clampInt(step.GateProbability()+probabilityBias, -1, ProbabilityMax)
	return int(rng.NextRange(ProbabilityRange)) <= probability
}
