package sequencer

// Project is the whole persisted instrument state: global playback settings
// plus all tracks with their patterns. Sequences live for the life of the
// project; engines hold indices into it, never copies.
type Project struct {
	name     string
	tempo    float64
	scale    int
	rootNote int

	recordMode   RecordMode
	curveCvInput int // -1 = off, else CV input channel
	selected     int // selected track index

	tracks [TrackCount]*Track
}

// NewProject creates a project with default tracks (all note mode)
func NewProject() *Project {
	p := &Project{
		tempo:        120,
		scale:        0,
		rootNote:     0,
		curveCvInput: -1,
	}
	for i := range p.tracks {
		p.tracks[i] = NewTrack(i, TrackModeNote)
	}
	return p
}

func (p *Project) Name() string { return p.name }
func (p *Project) SetName(name string) {
	if len(name) > 16 {
		name = name[:16]
	}
	p.name = name
}

func (p *Project) Tempo() float64 { return p.tempo }
func (p *Project) SetTempo(tempo float64) {
	if tempo < 20 {
		tempo = 20
	}
	if tempo > 300 {
		tempo = 300
	}
	p.tempo = tempo
}

func (p *Project) Scale() int { return p.scale }
func (p *Project) SetScale(scale int) {
	p.scale = clampInt(scale, 0, ScaleCount()-1)
}

func (p *Project) RootNote() int { return p.rootNote }
func (p *Project) SetRootNote(note int) {
	p.rootNote = clampInt(note, 0, 11)
}

func (p *Project) RecordMode() RecordMode { return p.recordMode }
func (p *Project) SetRecordMode(mode RecordMode) {
	if mode >= RecordModeLast {
		mode = RecordModeOverwrite
	}
	p.recordMode = mode
}

func (p *Project) CurveCvInput() int { return p.curveCvInput }
func (p *Project) SetCurveCvInput(input int) {
	p.curveCvInput = clampInt(input, -1, 3)
}

func (p *Project) SelectedTrackIndex() int { return p.selected }
func (p *Project) SetSelectedTrackIndex(index int) {
	p.selected = clampInt(index, 0, TrackCount-1)
}

// Track returns the track at index (caller contract: index in range)
func (p *Project) Track(index int) *Track { return p.tracks[index] }

// Clear resets the project to defaults, keeping track mode containers
func (p *Project) Clear() {
	p.name = ""
	p.tempo = 120
	p.scale = 0
	p.rootNote = 0
	p.recordMode = RecordModeOverwrite
	p.curveCvInput = -1
	p.selected = 0
	for i, t := range p.tracks {
		mode := t.Mode()
		p.tracks[i] = NewTrack(i, mode)
	}
}
