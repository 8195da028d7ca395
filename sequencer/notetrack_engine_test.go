package sequencer

import (
	"math"
	"testing"

	"cvgrid/midi"
)

// sinkEvent captures one published output alongside the tick it happened at
type sinkEvent struct {
	tick  uint32
	track int
	kind  string // "gate", "cv", "slide"
	gate  bool
	cv    float32
	slide bool
}

// testSink records everything the engine publishes
type testSink struct {
	tick   uint32
	events []sinkEvent
}

func (s *testSink) SendGate(track int, gate bool) {
	s.events = append(s.events, sinkEvent{tick: s.tick, track: track, kind: "gate", gate: gate})
}

func (s *testSink) SendCv(track int, volts float32) {
	s.events = append(s.events, sinkEvent{tick: s.tick, track: track, kind: "cv", cv: volts})
}

func (s *testSink) SendSlide(track int, slide bool) {
	s.events = append(s.events, sinkEvent{tick: s.tick, track: track, kind: "slide", slide: slide})
}

func (s *testSink) gates(track int) []sinkEvent {
	var out []sinkEvent
	for _, e := range s.events {
		if e.track == track && e.kind == "gate" {
			out = append(out, e)
		}
	}
	return out
}

func newTestEngine() (*Engine, *testSink) {
	sink := &testSink{}
	project := NewProject()
	engine := NewEngine(project, NewSettings(), sink, 1)
	return engine, sink
}

func runTicks(e *Engine, sink *testSink, from, to uint32) {
	for tick := from; tick < to; tick++ {
		sink.tick = tick
		e.Tick(tick)
	}
}

// sixteen steps forward, all gates on, no variation, divisor 24 master ticks
func setupSixteenSteps(e *Engine) *NoteSequence {
	seq := e.Project().Track(0).NoteTrack().Sequence(0)
	seq.SetDivisor(6) // 6 * (192/48) = 24 master ticks
	seq.SetFirstStep(0)
	seq.SetLastStep(15)
	for i := 0; i <= 15; i++ {
		seq.Step(i).SetGate(true)
	}
	return seq
}

func TestAlignedForwardGateSchedule(t *testing.T) {
	engine, sink := newTestEngine()
	setupSixteenSteps(engine)

	runTicks(engine, sink, 0, 16*24)

	gates := sink.gates(0)
	if len(gates) != 32 {
		t.Fatalf("gate edge count = %d, want 32", len(gates))
	}

	// default length 31 -> (31+1)/64 of the divisor = 12 ticks
	for i := 0; i < 16; i++ {
		rise := gates[2*i]
		fall := gates[2*i+1]
		if !rise.gate || rise.tick != uint32(i*24) {
			t.Errorf("step %d: rise at %d gate=%v, want rise at %d", i, rise.tick, rise.gate, i*24)
		}
		if fall.gate || fall.tick != uint32(i*24+12) {
			t.Errorf("step %d: fall at %d gate=%v, want fall at %d", i, fall.tick, fall.gate, i*24+12)
		}
	}
}

func TestGateEdgesAlternate(t *testing.T) {
	engine, sink := newTestEngine()
	setupSixteenSteps(engine)
	runTicks(engine, sink, 0, 32*24)

	prev := false
	for i, e := range sink.gates(0) {
		if i > 0 && e.gate == prev {
			t.Fatalf("edge %d does not alternate (gate=%v twice)", i, e.gate)
		}
		prev = e.gate
	}
}

func TestCursorReturnsToFirstStep(t *testing.T) {
	engine, sink := newTestEngine()
	setupSixteenSteps(engine)
	runTicks(engine, sink, 0, 16*24+1)

	ne := engine.TrackEngine(0).(*NoteTrackEngine)
	if ne.CurrentStep() != 0 {
		t.Errorf("step after full cycle = %d, want 0", ne.CurrentStep())
	}
}

func TestRetriggerSubdividesStep(t *testing.T) {
	engine, sink := newTestEngine()
	seq := engine.Project().Track(0).NoteTrack().Sequence(0)
	seq.SetDivisor(6)
	seq.SetFirstStep(0)
	seq.SetLastStep(0)
	step := seq.Step(0)
	step.SetGate(true)
	step.SetLength(LengthRange - 1) // full step
	step.SetRetrigger(2)            // three pulses

	runTicks(engine, sink, 0, 24)

	gates := sink.gates(0)
	if len(gates) != 6 {
		t.Fatalf("gate edge count = %d, want 6: %v", len(gates), gates)
	}
	wantRises := []uint32{0, 8, 16}
	for i, rise := range wantRises {
		if !gates[2*i].gate || gates[2*i].tick != rise {
			t.Errorf("pulse %d rise at %d, want %d", i, gates[2*i].tick, rise)
		}
		if gates[2*i+1].gate || gates[2*i+1].tick != rise+4 {
			t.Errorf("pulse %d fall at %d, want %d", i, gates[2*i+1].tick, rise+4)
		}
	}
}

func TestRetriggerTailGatedByLength(t *testing.T) {
	engine, sink := newTestEngine()
	seq := engine.Project().Track(0).NoteTrack().Sequence(0)
	seq.SetDivisor(6)
	seq.SetFirstStep(0)
	seq.SetLastStep(0)
	step := seq.Step(0)
	step.SetGate(true)
	step.SetLength(0) // one length unit: retriggers past it drop
	step.SetRetrigger(2)

	runTicks(engine, sink, 0, 24)

	gates := sink.gates(0)
	if len(gates) != 2 {
		t.Fatalf("gate edge count = %d, want 2 (tail dropped): %v", len(gates), gates)
	}
}

func TestConditionLoopFiresOnMatchingIterations(t *testing.T) {
	engine, sink := newTestEngine()
	seq := engine.Project().Track(0).NoteTrack().Sequence(0)
	seq.SetDivisor(6)
	seq.SetFirstStep(0)
	seq.SetLastStep(0)
	step := seq.Step(0)
	step.SetGate(true)
	step.SetCondition(ConditionLoop(4, 0))

	// 32 iterations of the single-step range
	runTicks(engine, sink, 0, 32*24)

	var rises []uint32
	for _, e := range sink.gates(0) {
		if e.gate {
			rises = append(rises, e.tick)
		}
	}
	if len(rises) != 8 {
		t.Fatalf("rise count = %d, want 8 (iterations 0,4,...,28): %v", len(rises), rises)
	}
	for i, tick := range rises {
		if want := uint32(i * 4 * 24); tick != want {
			t.Errorf("rise %d at %d, want %d", i, tick, want)
		}
	}
}

func TestEvalStepConditionOffDoesNotWritePrev(t *testing.T) {
	var step NoteStep
	step.Clear()
	step.SetCondition(ConditionOff)
	prev := true
	if !evalStepCondition(&step, 5, false, &prev) {
		t.Error("Off condition should always fire")
	}
	if !prev {
		t.Error("Off condition must not mutate prevCondition")
	}
}

func TestEvalStepConditionPreReadsOnly(t *testing.T) {
	var step NoteStep
	step.Clear()
	step.SetCondition(ConditionPre)
	prev := true
	if !evalStepCondition(&step, 0, false, &prev) || !prev {
		t.Error("Pre should read prevCondition without writing")
	}
	step.SetCondition(ConditionNotPre)
	if evalStepCondition(&step, 0, false, &prev) || !prev {
		t.Error("NotPre should negate without writing")
	}
}

func TestEvalStepConditionFirst(t *testing.T) {
	var step NoteStep
	step.Clear()
	step.SetCondition(ConditionFirst)
	prev := false
	if !evalStepCondition(&step, 0, false, &prev) {
		t.Error("First should fire on iteration 0")
	}
	if evalStepCondition(&step, 1, false, &prev) {
		t.Error("First should not fire on iteration 1")
	}
	if prev {
		t.Error("First should have written prevCondition=false")
	}
}

func TestRotateStepInverse(t *testing.T) {
	for first := 0; first < 4; first++ {
		for last := first; last < first+9; last++ {
			for rotate := -5; rotate <= 5; rotate++ {
				for s := first; s <= last; s++ {
					r := rotateStep(s, first, last, rotate)
					if r < first || r > last {
						t.Fatalf("rotateStep(%d,%d,%d,%d) = %d out of range", s, first, last, rotate, r)
					}
					if back := rotateStep(r, first, last, -rotate); back != s {
						t.Fatalf("rotate inverse failed: s=%d f=%d l=%d r=%d", s, first, last, rotate)
					}
				}
			}
		}
	}
}

func TestGateProbabilityConvergence(t *testing.T) {
	for p := 0; p <= ProbabilityMax; p++ {
		var step NoteStep
		step.Clear()
		step.SetGate(true)
		step.SetGateProbability(p)

		rng := NewRandom(42)
		const trials = 20000
		passed := 0
		for i := 0; i < trials; i++ {
			if evalStepGate(&step, 0, &rng) {
				passed++
			}
		}
		got := float64(passed) / trials
		want := float64(p+1) / ProbabilityRange
		if math.Abs(got-want) > 0.02 {
			t.Errorf("p=%d: pass rate %.3f, want %.3f", p, got, want)
		}
	}
}

func TestGateProbabilityBiasClamps(t *testing.T) {
	var step NoteStep
	step.Clear()
	step.SetGate(true)
	step.SetGateProbability(0)

	// a fully negative bias suppresses every gate
	rng := NewRandom(3)
	for i := 0; i < 1000; i++ {
		if evalStepGate(&step, -ProbabilityMax-10, &rng) {
			t.Fatal("gate passed with probability biased to -1")
		}
	}
}

func TestPatternSwitchAtTickBoundaryMidStep(t *testing.T) {
	engine, sink := newTestEngine()
	track := engine.Project().Track(0)

	seq0 := track.NoteTrack().Sequence(0)
	seq0.SetDivisor(6)
	seq0.SetFirstStep(0)
	seq0.SetLastStep(3)
	for i := 0; i <= 3; i++ {
		seq0.Step(i).SetGate(true)
		seq0.Step(i).SetNote(0)
		seq0.Step(i).SetLength(47) // falls land 18 ticks in, after the switch
	}

	seq1 := track.NoteTrack().Sequence(1)
	seq1.SetDivisor(6)
	seq1.SetFirstStep(0)
	seq1.SetLastStep(3)
	for i := 0; i <= 3; i++ {
		seq1.Step(i).SetGate(true)
		seq1.Step(i).SetNote(12) // one octave up: 1V
	}

	// run into the middle of step 1, then switch patterns
	runTicks(engine, sink, 0, 38)
	track.RequestPattern(1)
	runTicks(engine, sink, 38, 4*24)

	// the fall of step 1 (queued before the switch) still happens
	fall := false
	for _, e := range sink.gates(0) {
		if !e.gate && e.tick == 24+18 {
			fall = true
		}
	}
	if !fall {
		t.Error("queued fall of the old pattern did not fire")
	}

	// the next step boundary reads the new pattern: 1V instead of 0V
	var cvAt48 *sinkEvent
	for i, e := range sink.events {
		if e.track == 0 && e.kind == "cv" && e.tick == 48 {
			cvAt48 = &sink.events[i]
		}
	}
	if cvAt48 == nil {
		t.Fatal("no CV event at next step boundary")
	}
	if math.Abs(float64(cvAt48.cv-1)) > 1e-6 {
		t.Errorf("cv after switch = %v, want 1V (new pattern)", cvAt48.cv)
	}
}

func TestSlideConvergesMonotonically(t *testing.T) {
	engine, _ := newTestEngine()
	ne := engine.TrackEngine(0).(*NoteTrackEngine)
	engine.Project().Track(0).NoteTrack().SetSlideTime(50)

	ne.cvOutput = 0
	ne.cvOutputTarget = 2
	ne.slideActive = true

	prev := float64(math.Abs(float64(ne.cvOutput - ne.cvOutputTarget)))
	for i := 0; i < 100; i++ {
		ne.Update(0.005)
		d := math.Abs(float64(ne.cvOutput - ne.cvOutputTarget))
		if d > prev+1e-9 {
			t.Fatalf("slide diverged at iteration %d: %v > %v", i, d, prev)
		}
		prev = d
	}
	if prev > 0.2 {
		t.Errorf("slide did not converge: remaining %v", prev)
	}
}

func TestSlideSnapWithoutSlideTime(t *testing.T) {
	engine, _ := newTestEngine()
	ne := engine.TrackEngine(0).(*NoteTrackEngine)

	ne.cvOutput = 0
	ne.cvOutputTarget = 2
	ne.slideActive = false
	ne.Update(0.005)
	if ne.cvOutput != ne.cvOutputTarget {
		t.Errorf("cv should snap to target, got %v", ne.cvOutput)
	}
}

func TestMuteSuppressesGateOutputKeepsActivity(t *testing.T) {
	engine, sink := newTestEngine()
	setupSixteenSteps(engine)
	engine.Project().Track(0).SetMute(true)

	// stop while the first step's gate is still high (default length
	// releases it at tick 12)
	runTicks(engine, sink, 0, 12)

	ne := engine.TrackEngine(0).(*NoteTrackEngine)
	if !ne.Activity() {
		t.Error("muted track should still report activity")
	}
	if ne.GateOutput(0) {
		t.Error("muted track must not drive the gate output")
	}
}

func TestFillGatesFiresDisabledSteps(t *testing.T) {
	engine, sink := newTestEngine()
	track := engine.Project().Track(0)
	seq := track.NoteTrack().Sequence(0)
	seq.SetDivisor(6)
	seq.SetFirstStep(0)
	seq.SetLastStep(3)
	// all gates off
	track.NoteTrack().SetFillMode(NoteFillGates)
	track.SetFill(true)
	track.SetFillAmount(100)

	runTicks(engine, sink, 0, 4*24)

	rises := 0
	for _, e := range sink.gates(0) {
		if e.gate {
			rises++
		}
	}
	if rises != 4 {
		t.Errorf("fill gates: %d rises, want 4", rises)
	}
}

func TestStepRecordWritesAndAdvances(t *testing.T) {
	engine, _ := newTestEngine()
	project := engine.Project()
	project.SetRecordMode(RecordModeStepRecord)
	project.SetSelectedTrackIndex(0)
	engine.SetRecording(true)

	ne := engine.TrackEngine(0).(*NoteTrackEngine)
	seq := project.Track(0).NoteTrack().Sequence(0)
	seq.SetFirstStep(0)
	seq.SetLastStep(3)

	// Update initializes the record cursor
	engine.Update(0.01)
	if ne.CurrentRecordStep() != 0 {
		t.Fatalf("record cursor = %d, want 0", ne.CurrentRecordStep())
	}

	ne.MonitorMidi(0, midi.Event{Type: midi.NoteOn, Note: 60, Velocity: 100})
	ne.MonitorMidi(1, midi.Event{Type: midi.NoteOn, Note: 72, Velocity: 100})

	if !seq.Step(0).Gate() || seq.Step(0).Note() != 0 {
		t.Errorf("step 0: gate=%v note=%d, want gate with middle C", seq.Step(0).Gate(), seq.Step(0).Note())
	}
	if !seq.Step(1).Gate() || seq.Step(1).Note() != 12 {
		t.Errorf("step 1: gate=%v note=%d, want gate one octave up", seq.Step(1).Gate(), seq.Step(1).Note())
	}
	if ne.CurrentRecordStep() != 2 {
		t.Errorf("record cursor = %d, want 2", ne.CurrentRecordStep())
	}
}

func TestLiveRecordWritesPrevStep(t *testing.T) {
	engine, sink := newTestEngine()
	project := engine.Project()
	project.SetRecordMode(RecordModeOverwrite)
	project.SetSelectedTrackIndex(0)
	engine.SetRecording(true)

	seq := project.Track(0).NoteTrack().Sequence(0)
	seq.SetDivisor(6)
	seq.SetFirstStep(0)
	seq.SetLastStep(3)

	ne := engine.TrackEngine(0).(*NoteTrackEngine)

	// play a note right at the start of step 1 and release mid-step
	runTicks(engine, sink, 0, 24)
	ne.MonitorMidi(24, midi.Event{Type: midi.NoteOn, Note: 60, Velocity: 100})
	runTicks(engine, sink, 24, 36)
	ne.MonitorMidi(36, midi.Event{Type: midi.NoteOff, Note: 60})
	runTicks(engine, sink, 36, 49)

	step := seq.Step(1)
	if !step.Gate() {
		t.Fatal("recorded step has no gate")
	}
	if step.Note() != 0 {
		t.Errorf("recorded note = %d, want 0 (middle C)", step.Note())
	}
	// 12 ticks of a 24-tick step = half the length range
	if got := step.Length(); got < LengthRange/2-2 || got > LengthRange/2+2 {
		t.Errorf("recorded length = %d, want about %d", got, LengthRange/2)
	}
}

func TestMonitorStepOverridesWhileStopped(t *testing.T) {
	engine, _ := newTestEngine()
	ne := engine.TrackEngine(0).(*NoteTrackEngine)
	seq := engine.Project().Track(0).NoteTrack().Sequence(0)
	seq.Step(5).SetNote(12)

	ne.SetMonitorStep(5)
	engine.Update(0.01)

	if !ne.GateOutput(0) {
		t.Error("monitored step should drive the gate")
	}
	if math.Abs(float64(ne.cvOutputTarget-1)) > 1e-6 {
		t.Errorf("monitored cv = %v, want 1V", ne.cvOutputTarget)
	}

	ne.SetMonitorStep(-1)
	engine.Update(0.01)
	if ne.GateOutput(0) {
		t.Error("gate should clear when monitoring ends")
	}
}
