package sequencer

import (
	"testing"
)

func TestLinkedTrackMirrorsLeaderCursor(t *testing.T) {
	sink := &testSink{}
	project := NewProject()
	engine := NewEngine(project, NewSettings(), sink, 1)

	seq0 := project.Track(0).NoteTrack().Sequence(0)
	seq0.SetDivisor(6)
	seq0.SetFirstStep(0)
	seq0.SetLastStep(7)

	engine.SetLinkTrack(1, 0)

	runTicks(engine, sink, 0, 5*24+1)

	leader := engine.TrackEngine(0).(*NoteTrackEngine)
	follower := engine.TrackEngine(1).(*NoteTrackEngine)

	if leader.sequenceState.Step() != follower.sequenceState.Step() {
		t.Errorf("follower step %d != leader step %d", follower.sequenceState.Step(), leader.sequenceState.Step())
	}
	if leader.sequenceState.Iteration() != follower.sequenceState.Iteration() {
		t.Errorf("follower iteration %d != leader iteration %d",
			follower.sequenceState.Iteration(), leader.sequenceState.Iteration())
	}
}

func TestLinkTrackOnlyAcceptsEarlierTracks(t *testing.T) {
	track := NewTrack(2, TrackModeNote)
	track.SetLinkTrack(5) // must clamp to an earlier index
	if track.LinkTrack() > 1 {
		t.Errorf("linkTrack = %d, want <= 1", track.LinkTrack())
	}
	track.SetLinkTrack(-3)
	if track.LinkTrack() != -1 {
		t.Errorf("linkTrack = %d, want -1", track.LinkTrack())
	}
}

func TestPatternChangeLatchedAtTickBoundary(t *testing.T) {
	sink := &testSink{}
	project := NewProject()
	engine := NewEngine(project, NewSettings(), sink, 1)

	track := project.Track(0)
	track.RequestPattern(3)
	if track.Pattern() != 0 {
		t.Fatal("pattern changed before the tick boundary")
	}
	engine.Tick(0)
	if track.Pattern() != 3 {
		t.Errorf("pattern = %d after tick, want 3", track.Pattern())
	}
}

func TestTrackEngineVariants(t *testing.T) {
	project := NewProject()
	project.Track(1).SetMode(TrackModeCurve)
	project.Track(2).SetMode(TrackModeMidiCv)
	engine := NewEngine(project, NewSettings(), nil, 1)

	if engine.TrackEngine(0).TrackMode() != TrackModeNote {
		t.Error("track 0 should run the note engine")
	}
	if engine.TrackEngine(1).TrackMode() != TrackModeCurve {
		t.Error("track 1 should run the curve engine")
	}
	if engine.TrackEngine(2).TrackMode() != TrackModeMidiCv {
		t.Error("track 2 should run the midi/cv engine")
	}
}

func TestCalibrationApplied(t *testing.T) {
	settings := NewSettings()
	cal := settings.Calibration().CvOutput(0)
	cal.SetOffset(0.1)
	cal.SetScale(1.5)

	engine := NewEngine(NewProject(), settings, nil, 1)
	got := engine.CalibratedCv(0, 2)
	want := float32(2*1.5 + 0.1)
	if got != want {
		t.Errorf("calibrated cv = %v, want %v", got, want)
	}
}
