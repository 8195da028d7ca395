package sequencer

import "cvgrid/midi"

// NoteTrackEngine advances a note sequence, evaluates steps under fill and
// probability rules, and emits time-ordered gate and CV events.
type NoteTrackEngine struct {
	trackEngine

	noteTrack *NoteTrack
	rng       Random

	sequence     *NoteSequence
	fillSequence *NoteSequence

	sequenceState    SequenceState
	freeRelativeTick uint32
	currentStep      int
	prevCondition    bool

	gateQueue sortedQueue[GateEvent]
	cvQueue   sortedQueue[CvEvent]

	activity       bool
	gateOutput     bool
	cvOutput       float32
	cvOutputTarget float32
	slideActive    bool

	recordHistory         RecordHistory
	currentRecordStep     int
	monitorStepIndex      int
	monitorOverrideActive bool
}

// NewNoteTrackEngine creates the engine for a note-mode track
func NewNoteTrackEngine(engine *Engine, track *Track, linked TrackEngine, seed uint32) *NoteTrackEngine {
	e := &NoteTrackEngine{
		trackEngine: trackEngine{
			engine:            engine,
			project:           engine.Project(),
			track:             track,
			linkedTrackEngine: linked,
		},
		noteTrack:         track.NoteTrack(),
		rng:               NewRandom(seed),
		currentRecordStep: -1,
		monitorStepIndex:  -1,
	}
	e.Reset()
	return e
}

func (e *NoteTrackEngine) TrackMode() TrackMode { return TrackModeNote }

// Reset rewinds everything; invoked at resetMeasure boundaries. A pattern
// change does not reset: it only rebinds the sequences via ChangePattern.
func (e *NoteTrackEngine) Reset() {
	e.freeRelativeTick = 0
	e.sequenceState.Reset()
	e.currentStep = -1
	e.prevCondition = false
	e.activity = false
	e.gateOutput = false
	e.cvOutput = 0
	e.cvOutputTarget = 0
	e.slideActive = false
	e.gateQueue.Clear()
	e.cvQueue.Clear()
	e.recordHistory.Clear()

	e.ChangePattern()
}

// Restart only rewinds the cursor
func (e *NoteTrackEngine) Restart() {
	e.freeRelativeTick = 0
	e.sequenceState.Reset()
	e.currentStep = -1
}

// ChangePattern rebinds the sequence pointers; the next pattern doubles as
// the fill source.
func (e *NoteTrackEngine) ChangePattern() {
	pattern := e.pattern()
	e.sequence = e.noteTrack.Sequence(pattern)
	fill := pattern + 1
	if fill > PatternCount-1 {
		fill = PatternCount - 1
	}
	e.fillSequence = e.noteTrack.Sequence(fill)
}

// LinkData publishes this track's cursor for downstream followers
func (e *NoteTrackEngine) LinkData() *LinkData { return &e.linkData }

// Tick advances the sequence and drains due events
func (e *NoteTrackEngine) Tick(tick uint32) {
	sequence := e.sequence

	if linkData := e.leaderLinkData(); linkData != nil {
		e.linkData = *linkData
		e.sequenceState = *linkData.SequenceState

		if linkData.RelativeTick%linkData.Divisor == 0 {
			e.recordStep(tick, linkData.Divisor)
			e.triggerStep(tick, linkData.Divisor)
		}
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

		// advance sequence
		switch e.noteTrack.PlayMode() {
		case PlayModeAligned:
			if relativeTick%divisor == 0 {
				e.sequenceState.AdvanceAligned(int(relativeTick/divisor), sequence.RunMode(), sequence.FirstStep(), sequence.LastStep(), &e.rng)
				e.recordStep(tick, divisor)
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
				e.recordStep(tick, divisor)
				e.triggerStep(tick, divisor)
			}
		}

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

	for !e.cvQueue.Empty() && tick >= e.cvQueue.Front().Tick {
		if !e.mute() || e.noteTrack.CvUpdateMode() == CvUpdateAlways {
			e.cvOutputTarget = e.cvQueue.Front().Cv
			e.slideActive = e.cvQueue.Front().Slide

			output.SendCv(e.track.TrackIndex(), e.cvOutputTarget)
			output.SendSlide(e.track.TrackIndex(), e.slideActive)
		}
		e.cvQueue.Pop()
	}
}

// Update runs at UI/output rate and smooths the CV output
func (e *NoteTrackEngine) Update(dt float32) {
	running := e.engine.State().Running
	recording := e.engine.State().Recording

	sequence := e.sequence
	scale := sequence.SelectedScale(e.project.Scale())
	rootNote := sequence.SelectedRootNote(e.project.RootNote())
	octave := e.noteTrack.Octave()
	transpose := e.noteTrack.Transpose()

	// enable/disable step recording mode
	isStepRecordMode := e.project.RecordMode() == RecordModeStepRecord
	if recording && isStepRecordMode {
		if e.currentRecordStep == -1 {
			e.currentRecordStep = sequence.FirstStep()
		}
	} else {
		e.currentRecordStep = -1
	}

	// override due to monitoring or recording
	if !running && (!recording || isStepRecordMode) && e.monitorStepIndex >= 0 {
		// step monitoring (first priority)
		step := sequence.Step(e.monitorStepIndex)
		e.cvOutputTarget = evalStepNote(step, 0, scale, rootNote, octave, transpose, false, &e.rng)
		e.activity = true
		e.gateOutput = true
		e.monitorOverrideActive = true
	} else if (!running || !isStepRecordMode) && e.recordHistory.IsNoteActive() {
		// midi monitoring (second priority)
		note := e.noteFromMidiNote(e.recordHistory.ActiveNote()) + evalTransposition(scale, octave, transpose)
		e.cvOutputTarget = scale.NoteToVolts(note)
		e.activity = true
		e.gateOutput = true
		e.monitorOverrideActive = true
	} else {
		if e.monitorOverrideActive {
			e.activity = false
			e.gateOutput = false
			e.monitorOverrideActive = false
		}
	}

	if e.slideActive && e.noteTrack.SlideTime() > 0 {
		factor := dt * float32(200-2*e.noteTrack.SlideTime())
		if factor > 1 {
			factor = 1
		}
		e.cvOutput += (e.cvOutputTarget - e.cvOutput) * factor
	} else {
		e.cvOutput = e.cvOutputTarget
	}
}

func (e *NoteTrackEngine) Activity() bool            { return e.activity }
func (e *NoteTrackEngine) GateOutput(index int) bool { return e.gateOutput }
func (e *NoteTrackEngine) CvOutput(index int) float32 {
	return e.cvOutput
}

// SequenceProgress reports the cursor position within the range as [0,1]
func (e *NoteTrackEngine) SequenceProgress() float32 {
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
func (e *NoteTrackEngine) CurrentStep() int { return e.currentStep }

// CurrentRecordStep returns the step-record cursor (-1 = inactive)
func (e *NoteTrackEngine) CurrentRecordStep() int { return e.currentRecordStep }

// SetMonitorStep pins a step for audition while stopped
func (e *NoteTrackEngine) SetMonitorStep(index int) {
	if index >= 0 && index < StepCount {
		e.monitorStepIndex = index
	} else {
		e.monitorStepIndex = -1
	}

	// in step record mode, select the step to continue recording from
	if e.engine.State().Recording && e.project.RecordMode() == RecordModeStepRecord &&
		index >= e.sequence.FirstStep() && index <= e.sequence.LastStep() {
		e.currentRecordStep = index
	}
}

// MonitorMidi feeds live MIDI into the record history and, in step record
// mode, writes notes directly into the sequence.
func (e *NoteTrackEngine) MonitorMidi(tick uint32, event midi.Event) {
	e.recordHistory.Write(tick, event)

	if e.engine.State().Recording && e.project.RecordMode() == RecordModeStepRecord && e.currentRecordStep >= 0 {
		if event.IsNoteOn() {
			step := e.sequence.Step(e.currentRecordStep)
			step.SetGate(true)
			step.SetNote(e.noteFromMidiNote(event.Note))

			e.currentRecordStep++
			if e.currentRecordStep > e.sequence.LastStep() {
				e.currentRecordStep = e.sequence.FirstStep()
			}
		}
	}
}

// triggerStep evaluates the current step and pushes its events
func (e *NoteTrackEngine) triggerStep(tick, divisor uint32) {
	octave := e.noteTrack.Octave()
	transpose := e.noteTrack.Transpose()
	rotate := e.noteTrack.Rotate()
	fillStep := e.fill() && int(e.rng.NextRange(100)) < e.fillAmount()
	useFillGates := fillStep && e.noteTrack.FillMode() == NoteFillGates
	useFillSequence := fillStep && e.noteTrack.FillMode() == NoteFillNextPattern
	useFillCondition := fillStep && e.noteTrack.FillMode() == NoteFillCondition

	sequence := e.sequence
	evalSequence := sequence
	if useFillSequence {
		evalSequence = e.fillSequence
	}
	e.currentStep = rotateStep(e.sequenceState.Step(), sequence.FirstStep(), sequence.LastStep(), rotate)
	step := evalSequence.Step(e.currentStep)

	gateOffset := (int64(divisor) * int64(step.GateOffset())) / (GateOffsetMax + 1)

	stepGate := evalStepGate(step, e.noteTrack.GateProbabilityBias(), &e.rng) || useFillGates
	if stepGate {
		stepGate = evalStepCondition(step, e.sequenceState.Iteration(), useFillCondition, &e.prevCondition)
	}

	if stepGate {
		stepLength := (divisor * uint32(evalStepLength(step, e.noteTrack.LengthBias(), &e.rng))) / LengthRange
		stepRetrigger := evalStepRetrigger(step, e.noteTrack.RetriggerProbabilityBias(), &e.rng)
		if stepRetrigger > 1 {
			retriggerLength := divisor / uint32(stepRetrigger)
			retriggerOffset := uint32(0)
			for stepRetrigger > 0 && retriggerOffset <= stepLength {
				on := offsetTick(tick, gateOffset) + retriggerOffset
				e.gateQueue.PushReplace(GateEvent{e.applySwing(on), true})
				e.gateQueue.PushReplace(GateEvent{e.applySwing(on + retriggerLength/2), false})
				retriggerOffset += retriggerLength
				stepRetrigger--
			}
		} else {
			on := offsetTick(tick, gateOffset)
			e.gateQueue.PushReplace(GateEvent{e.applySwing(on), true})
			e.gateQueue.PushReplace(GateEvent{e.applySwing(on + stepLength), false})
		}
	}

	if stepGate || e.noteTrack.CvUpdateMode() == CvUpdateAlways {
		scale := evalSequence.SelectedScale(e.project.Scale())
		rootNote := evalSequence.SelectedRootNote(e.project.RootNote())
		e.cvQueue.Push(CvEvent{
			Tick:  e.applySwing(offsetTick(tick, gateOffset)),
			Cv:    evalStepNote(step, e.noteTrack.NoteProbabilityBias(), scale, rootNote, octave, transpose, true, &e.rng),
			Slide: step.Slide(),
		})
	}
}

// recordStep writes live input into the step that just finished
func (e *NoteTrackEngine) recordStep(tick, divisor uint32) {
	if !e.engine.State().Recording || e.project.RecordMode() == RecordModeStepRecord || e.sequenceState.PrevStep() < 0 {
		return
	}

	stepWritten := false

	writeStep := func(stepIndex, note, lengthTicks int) {
		step := e.sequence.Step(stepIndex)
		length := (lengthTicks * LengthRange) / int(divisor)

		step.SetGate(true)
		step.SetGateProbability(ProbabilityMax)
		step.SetRetrigger(0)
		step.SetRetriggerProbability(ProbabilityMax)
		step.SetLength(length)
		step.SetLengthVariationRange(0)
		step.SetLengthVariationProbability(ProbabilityMax)
		step.SetNote(e.noteFromMidiNote(uint8(note)))
		step.SetNoteVariationRange(0)
		step.SetNoteVariationProbability(ProbabilityMax)
		step.SetCondition(ConditionOff)

		stepWritten = true
	}

	stepStart := tick - divisor
	stepEnd := tick
	margin := divisor / 2

	for i := 0; i < e.recordHistory.Size(); i++ {
		event := e.recordHistory.At(i)
		if event.Type != RecordNoteOn {
			continue
		}

		note := int(event.Note)
		noteStart := event.Tick
		noteEnd := tick
		if i+1 < e.recordHistory.Size() {
			noteEnd = e.recordHistory.At(i + 1).Tick
		}

		if noteStart+margin >= stepStart && noteStart < stepStart+margin {
			// note on during step start phase
			if noteEnd >= stepEnd {
				// note held through the step
				writeStep(e.sequenceState.PrevStep(), note, int(minTick(noteEnd, stepEnd)-stepStart))
			} else {
				// note released during the step
				writeStep(e.sequenceState.PrevStep(), note, int(noteEnd-noteStart))
			}
		} else if noteStart < stepStart && noteEnd > stepStart {
			// note held over from the previous step
			writeStep(e.sequenceState.PrevStep(), note, int(minTick(noteEnd, stepEnd)-stepStart))
		}
	}

	if e.isSelected() && !stepWritten && e.project.RecordMode() == RecordModeOverwrite {
		e.sequence.Step(e.sequenceState.PrevStep()).Clear()
	}
}

// noteFromMidiNote converts an incoming MIDI note into a scale degree
func (e *NoteTrackEngine) noteFromMidiNote(midiNote uint8) int {
	scale := e.sequence.SelectedScale(e.project.Scale())
	rootNote := e.sequence.SelectedRootNote(e.project.RootNote())

	if scale.IsChromatic() {
		return scale.NoteFromVolts(float32(int(midiNote)-60-rootNote) / 12)
	}
	return scale.NoteFromVolts(float32(int(midiNote)-60) / 12)
}

func offsetTick(tick uint32, offset int64) uint32 {
	return uint32(int64(tick) + offset)
}

func minTick(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

// step evaluation helpers, shared with monitoring

func evalStepGate(step *NoteStep, probabilityBias int, rng *Random) bool {
	probability := clampInt(step.GateProbability()+probabilityBias, -1, ProbabilityMax)
	return step.Gate() && int(rng.NextRange(ProbabilityRange)) <= probability
}

func evalStepCondition(step *NoteStep, iteration int, fill bool, prevCondition *bool) bool {
	condition := step.Condition()
	switch condition {
	case ConditionOff:
		return true
	case ConditionFill:
		*prevCondition = fill
		return *prevCondition
	case ConditionNotFill:
		*prevCondition = !fill
		return *prevCondition
	case ConditionPre:
		return *prevCondition
	case ConditionNotPre:
		return !*prevCondition
	case ConditionFirst:
		*prevCondition = iteration == 0
		return *prevCondition
	case ConditionNotFirst:
		*prevCondition = iteration != 0
		return *prevCondition
	}
	if condition.IsLoop() {
		base, offset := conditionLoop(condition)
		*prevCondition = iteration%base == offset
		return *prevCondition
	}
	return true
}

func evalStepRetrigger(step *NoteStep, probabilityBias int, rng *Random) int {
	probability := clampInt(step.RetriggerProbability()+probabilityBias, -1, ProbabilityMax)
	if int(rng.NextRange(ProbabilityRange)) <= probability {
		return step.Retrigger() + 1
	}
	return 1
}

func evalStepLength(step *NoteStep, lengthBias int, rng *Random) int {
	length := clampInt(step.Length()+lengthBias, 0, LengthRange-1) + 1
	probability := step.LengthVariationProbability()
	if int(rng.NextRange(ProbabilityRange)) <= probability {
		offset := 0
		if r := step.LengthVariationRange(); r != 0 {
			offset = int(rng.NextRange(uint32(absInt(r) + 1)))
			if r < 0 {
				offset = -offset
			}
		}
		length = clampInt(length+offset, 0, LengthRange)
	}
	return length
}

func evalTransposition(scale *Scale, octave, transpose int) int {
	return octave*scale.NotesPerOctave() + transpose
}

func evalStepNote(step *NoteStep, probabilityBias int, scale *Scale, rootNote, octave, transpose int, useVariation bool, rng *Random) float32 {
	note := step.Note() + evalTransposition(scale, octave, transpose)
	if scale.IsChromatic() {
		note += rootNote
	}
	probability := clampInt(step.NoteVariationProbability()+probabilityBias, -1, ProbabilityMax)
	if useVariation && int(rng.NextRange(ProbabilityRange)) <= probability {
		offset := 0
		if r := step.NoteVariationRange(); r != 0 {
			offset = int(rng.NextRange(uint32(absInt(r) + 1)))
			if r < 0 {
				offset = -offset
			}
		}
		note = clampInt(note+offset, NoteMin, NoteMax)
	}
	return scale.NoteToVolts(note)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
