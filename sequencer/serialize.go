package sequencer

import (
	"encoding/binary"
	"errors"
	"io"
)

// File format versions. Fields carry the version they appeared in; the
// reader skips fields newer than the file being read, leaving defaults.
const (
	Version0  uint32 = 0
	Version15 uint32 = 15
	Version16 uint32 = 16

	CurrentVersion = Version16
)

var (
	ErrInvalidMagic       = errors.New("invalid file magic")
	ErrUnsupportedVersion = errors.New("unsupported file version")
)

var (
	projectMagic  = [8]byte{'P', 'R', 'O', 'J', 'E', 'C', 'T', ' '}
	settingsMagic = [8]byte{'S', 'E', 'T', 'T', 'I', 'N', 'G', 'S'}
)

// FileHeader is the typed header in front of every persisted file
type FileHeader struct {
	Magic   [8]byte
	Version uint32
}

func writeHeader(w io.Writer, magic [8]byte) error {
	header := FileHeader{Magic: magic, Version: CurrentVersion}
	return binary.Write(w, binary.LittleEndian, &header)
}

func readHeader(r io.Reader, magic [8]byte) (uint32, error) {
	var header FileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return 0, err
	}
	if header.Magic != magic {
		return 0, ErrInvalidMagic
	}
	if header.Version > CurrentVersion {
		return 0, ErrUnsupportedVersion
	}
	return header.Version, nil
}

// Writer serializes fields in declaration order at the current version
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter creates a serializer over w
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Err returns the first I/O error encountered
func (w *Writer) Err() error { return w.err }

func (w *Writer) write(v any) {
	if w.err != nil {
		return
	}
	w.err = binary.Write(w.w, binary.LittleEndian, v)
}

func (w *Writer) WriteUint8(v uint8)     { w.write(v) }
func (w *Writer) WriteInt8(v int8)       { w.write(v) }
func (w *Writer) WriteUint32(v uint32)   { w.write(v) }
func (w *Writer) WriteFloat32(v float32) { w.write(v) }

func (w *Writer) WriteBool(v bool) {
	var b uint8
	if v {
		b = 1
	}
	w.write(b)
}

// WriteName writes a fixed-width string field
func (w *Writer) WriteName(name string) {
	var buf [16]byte
	copy(buf[:], name)
	w.write(buf[:])
}

// Reader deserializes fields, honoring the file's version: a field read with
// a "since" version newer than the file is skipped and keeps its default.
type Reader struct {
	r       io.Reader
	version uint32
	err     error
}

// NewReader creates a deserializer over r for a file of the given version
func NewReader(r io.Reader, version uint32) *Reader {
	return &Reader{r: r, version: version}
}

// Err returns the first I/O error encountered
func (r *Reader) Err() error { return r.err }

// Version returns the version of the file being read
func (r *Reader) Version() uint32 { return r.version }

func (r *Reader) read(v any, since uint32) {
	if r.err != nil || r.version < since {
		return
	}
	r.err = binary.Read(r.r, binary.LittleEndian, v)
}

func (r *Reader) ReadUint8(v *uint8, since uint32)     { r.read(v, since) }
func (r *Reader) ReadInt8(v *int8, since uint32)       { r.read(v, since) }
func (r *Reader) ReadUint32(v *uint32, since uint32)   { r.read(v, since) }
func (r *Reader) ReadFloat32(v *float32, since uint32) { r.read(v, since) }

func (r *Reader) ReadBool(v *bool, since uint32) {
	var b uint8
	r.read(&b, since)
	if r.err == nil && r.version >= since {
		*v = b != 0
	}
}

// ReadName reads a fixed-width string field
func (r *Reader) ReadName(name *string, since uint32) {
	var buf [16]byte
	r.read(buf[:], since)
	if r.err == nil && r.version >= since {
		n := 0
		for n < len(buf) && buf[n] != 0 {
			n++
		}
		*name = string(buf[:n])
	}
}

// ---- model serialization ----

func (s *NoteStep) write(w *Writer) {
	w.WriteBool(s.gate)
	w.WriteBool(s.slide)
	w.WriteInt8(s.gateProbability)
	w.WriteInt8(s.gateOffset)
	w.WriteUint8(s.retrigger)
	w.WriteInt8(s.retriggerProbability)
	w.WriteUint8(s.length)
	w.WriteInt8(s.lengthVariationRange)
	w.WriteInt8(s.lengthVariationProbability)
	w.WriteInt8(s.note)
	w.WriteInt8(s.noteVariationRange)
	w.WriteInt8(s.noteVariationProbability)
	w.WriteUint8(uint8(s.condition))
}

func (s *NoteStep) read(r *Reader) {
	var condition uint8
	r.ReadBool(&s.gate, Version0)
	r.ReadBool(&s.slide, Version0)
	r.ReadInt8(&s.gateProbability, Version0)
	r.ReadInt8(&s.gateOffset, Version0)
	r.ReadUint8(&s.retrigger, Version0)
	r.ReadInt8(&s.retriggerProbability, Version0)
	r.ReadUint8(&s.length, Version0)
	r.ReadInt8(&s.lengthVariationRange, Version0)
	r.ReadInt8(&s.lengthVariationProbability, Version0)
	r.ReadInt8(&s.note, Version0)
	r.ReadInt8(&s.noteVariationRange, Version0)
	r.ReadInt8(&s.noteVariationProbability, Version0)
	r.ReadUint8(&condition, Version0)
	s.SetCondition(Condition(condition))
}

func (s *NoteSequence) write(w *Writer) {
	w.WriteUint8(uint8(s.firstStep))
	w.WriteUint8(uint8(s.lastStep))
	w.WriteUint8(uint8(s.divisor))
	w.WriteUint8(uint8(s.resetMeasure))
	w.WriteUint8(uint8(s.runMode))
	w.WriteInt8(int8(s.scale))
	w.WriteInt8(int8(s.rootNote))
	for i := range s.steps {
		s.steps[i].write(w)
	}
}

func (s *NoteSequence) read(r *Reader) {
	var first, last, divisor, resetMeasure, runMode uint8
	var scale, rootNote int8
	r.ReadUint8(&first, Version0)
	r.ReadUint8(&last, Version0)
	r.ReadUint8(&divisor, Version0)
	r.ReadUint8(&resetMeasure, Version0)
	r.ReadUint8(&runMode, Version0)
	r.ReadInt8(&scale, Version0)
	r.ReadInt8(&rootNote, Version0)
	s.lastStep = StepCount - 1
	s.SetFirstStep(int(first))
	s.lastStep = int(first)
	s.SetLastStep(int(last))
	s.SetDivisor(int(divisor))
	s.SetResetMeasure(int(resetMeasure))
	s.SetRunMode(RunMode(runMode))
	s.SetScale(int(scale))
	s.SetRootNote(int(rootNote))
	for i := range s.steps {
		s.steps[i].read(r)
	}
}

func (s *CurveStep) write(w *Writer) {
	w.WriteUint8(uint8(s.shape))
	w.WriteUint8(uint8(s.shapeVariation))
	w.WriteInt8(s.shapeVariationProbability)
	w.WriteUint8(s.min)
	w.WriteUint8(s.max)
	w.WriteUint8(s.gate)
	w.WriteInt8(s.gateProbability)
}

func (s *CurveStep) read(r *Reader) {
	var shape, shapeVariation uint8
	r.ReadUint8(&shape, Version0)
	r.ReadUint8(&shapeVariation, Version0)
	r.ReadInt8(&s.shapeVariationProbability, Version0)
	r.ReadUint8(&s.min, Version0)
	r.ReadUint8(&s.max, Version0)
	r.ReadUint8(&s.gate, Version0)
	r.ReadInt8(&s.gateProbability, Version0)
	s.SetShape(CurveType(shape))
	s.SetShapeVariation(CurveType(shapeVariation))
}

func (s *CurveSequence) write(w *Writer) {
	w.WriteUint8(uint8(s.firstStep))
	w.WriteUint8(uint8(s.lastStep))
	w.WriteUint8(uint8(s.divisor))
	w.WriteUint8(uint8(s.resetMeasure))
	w.WriteUint8(uint8(s.runMode))
	w.WriteUint8(uint8(s.vrange))
	for i := range s.steps {
		s.steps[i].write(w)
	}
}

func (s *CurveSequence) read(r *Reader) {
	var first, last, divisor, resetMeasure, runMode, vrange uint8
	r.ReadUint8(&first, Version0)
	r.ReadUint8(&last, Version0)
	r.ReadUint8(&divisor, Version0)
	r.ReadUint8(&resetMeasure, Version0)
	r.ReadUint8(&runMode, Version0)
	r.ReadUint8(&vrange, Version0)
	s.lastStep = StepCount - 1
	s.SetFirstStep(int(first))
	s.lastStep = int(first)
	s.SetLastStep(int(last))
	s.SetDivisor(int(divisor))
	s.SetResetMeasure(int(resetMeasure))
	s.SetRunMode(RunMode(runMode))
	s.SetRange(VoltageRange(vrange))
	for i := range s.steps {
		s.steps[i].read(r)
	}
}

func (t *NoteTrack) write(w *Writer) {
	w.WriteUint8(uint8(t.playMode))
	w.WriteUint8(uint8(t.fillMode))
	w.WriteUint8(uint8(t.cvUpdateMode))
	w.WriteUint8(uint8(t.slideTime))
	w.WriteInt8(int8(t.octave))
	w.WriteInt8(int8(t.transpose))
	w.WriteInt8(int8(t.rotate))
	w.WriteInt8(int8(t.gateProbabilityBias))
	w.WriteInt8(int8(t.retriggerProbabilityBias))
	w.WriteInt8(int8(t.lengthBias))
	w.WriteInt8(int8(t.noteProbabilityBias))
	for i := range t.sequences {
		t.sequences[i].write(w)
	}
}

func (t *NoteTrack) read(r *Reader) {
	var playMode, fillMode, cvUpdateMode, slideTime uint8
	var octave, transpose, rotate, gateBias, retriggerBias, lengthBias, noteBias int8
	r.ReadUint8(&playMode, Version0)
	r.ReadUint8(&fillMode, Version0)
	r.ReadUint8(&cvUpdateMode, Version0)
	r.ReadUint8(&slideTime, Version0)
	r.ReadInt8(&octave, Version0)
	r.ReadInt8(&transpose, Version0)
	r.ReadInt8(&rotate, Version0)
	r.ReadInt8(&gateBias, Version0)
	r.ReadInt8(&retriggerBias, Version0)
	r.ReadInt8(&lengthBias, Version0)
	r.ReadInt8(&noteBias, Version0)
	t.SetPlayMode(PlayMode(playMode))
	t.SetFillMode(NoteFillMode(fillMode))
	t.SetCvUpdateMode(CvUpdateMode(cvUpdateMode))
	t.SetSlideTime(int(slideTime))
	t.SetOctave(int(octave))
	t.SetTranspose(int(transpose))
	t.SetRotate(int(rotate))
	t.SetGateProbabilityBias(int(gateBias))
	t.SetRetriggerProbabilityBias(int(retriggerBias))
	t.SetLengthBias(int(lengthBias))
	t.SetNoteProbabilityBias(int(noteBias))
	for i := range t.sequences {
		t.sequences[i].read(r)
	}
}

func (t *CurveTrack) write(w *Writer) {
	w.WriteUint8(uint8(t.playMode))
	w.WriteUint8(uint8(t.fillMode))
	w.WriteUint8(uint8(t.slideTime))
	w.WriteInt8(int8(t.rotate))
	w.WriteInt8(int8(t.shapeProbabilityBias))
	w.WriteInt8(int8(t.gateProbabilityBias))
	for i := range t.sequences {
		t.sequences[i].write(w)
	}
}

func (t *CurveTrack) read(r *Reader) {
	var playMode, fillMode, slideTime uint8
	var rotate, shapeBias, gateBias int8
	r.ReadUint8(&playMode, Version0)
	r.ReadUint8(&fillMode, Version0)
	r.ReadUint8(&slideTime, Version0)
	r.ReadInt8(&rotate, Version0)
	r.ReadInt8(&shapeBias, Version0)
	r.ReadInt8(&gateBias, Version0)
	t.SetPlayMode(PlayMode(playMode))
	t.SetFillMode(CurveFillMode(fillMode))
	t.SetSlideTime(int(slideTime))
	t.SetRotate(int(rotate))
	t.SetShapeProbabilityBias(int(shapeBias))
	t.SetGateProbabilityBias(int(gateBias))
	for i := range t.sequences {
		t.sequences[i].read(r)
	}
}

func (s *MidiSource) write(w *Writer) {
	w.WriteInt8(int8(s.port))
	w.WriteInt8(int8(s.channel))
}

func (s *MidiSource) read(r *Reader) {
	var port, channel int8
	r.ReadInt8(&port, Version0)
	r.ReadInt8(&channel, Version0)
	s.SetPort(int(port))
	s.SetChannel(int(channel))
}

func (a *Arpeggiator) write(w *Writer) {
	w.WriteBool(a.enabled)
	w.WriteBool(a.hold)
	w.WriteUint8(uint8(a.mode))
	w.WriteUint8(uint8(a.divisor))
	w.WriteUint8(uint8(a.gateLength))
	w.WriteInt8(int8(a.octaves))
}

func (a *Arpeggiator) read(r *Reader) {
	var mode, divisor, gateLength uint8
	var octaves int8
	r.ReadBool(&a.enabled, Version0)
	r.ReadBool(&a.hold, Version0)
	r.ReadUint8(&mode, Version0)
	r.ReadUint8(&divisor, Version0)
	r.ReadUint8(&gateLength, Version0)
	r.ReadInt8(&octaves, Version0)
	a.SetMode(ArpeggiatorMode(mode))
	a.SetDivisor(int(divisor))
	a.SetGateLength(int(gateLength))
	a.SetOctaves(int(octaves))
}

// MidiCvTrack fields persist in a fixed order; notePriority and the note
// window were added later and read conditionally on the file version.
func (t *MidiCvTrack) write(w *Writer) {
	t.source.write(w)
	w.WriteUint8(uint8(t.voices))
	w.WriteUint8(uint8(t.voiceConfig))
	w.WriteUint8(uint8(t.notePriority))
	w.WriteUint8(uint8(t.lowNote))
	w.WriteUint8(uint8(t.highNote))
	w.WriteUint8(uint8(t.pitchBendRange))
	w.WriteUint8(uint8(t.modulationRange))
	w.WriteBool(t.retrigger)
	t.arpeggiator.write(w)
}

func (t *MidiCvTrack) read(r *Reader) {
	var voices, voiceConfig, notePriority, lowNote, highNote, pitchBendRange, modulationRange uint8
	notePriority = uint8(t.notePriority)
	lowNote = uint8(t.lowNote)
	highNote = uint8(t.highNote)
	t.source.read(r)
	r.ReadUint8(&voices, Version0)
	r.ReadUint8(&voiceConfig, Version0)
	r.ReadUint8(&notePriority, Version16)
	r.ReadUint8(&lowNote, Version15)
	r.ReadUint8(&highNote, Version15)
	r.ReadUint8(&pitchBendRange, Version0)
	r.ReadUint8(&modulationRange, Version0)
	r.ReadBool(&t.retrigger, Version0)
	t.arpeggiator.read(r)

	t.SetVoices(int(voices))
	t.SetVoiceConfig(VoiceConfig(voiceConfig))
	t.SetNotePriority(NotePriority(notePriority))
	t.highNote = 127
	t.SetLowNote(int(lowNote))
	t.highNote = int(lowNote)
	t.SetHighNote(int(highNote))
	t.SetPitchBendRange(int(pitchBendRange))
	t.SetModulationRange(VoltageRange(modulationRange))
}

func (t *Track) write(w *Writer) {
	w.WriteUint8(uint8(t.mode))
	w.WriteInt8(int8(t.linkTrack))
	w.WriteUint8(uint8(t.fillAmount))
	w.WriteUint8(uint8(t.swing))
	w.WriteUint8(uint8(t.pattern))
	switch t.mode {
	case TrackModeNote:
		t.note.write(w)
	case TrackModeCurve:
		t.curve.write(w)
	case TrackModeMidiCv:
		t.midiCv.write(w)
	}
}

func (t *Track) read(r *Reader) {
	var mode, fillAmount, swing, pattern uint8
	var linkTrack int8
	r.ReadUint8(&mode, Version0)
	r.ReadInt8(&linkTrack, Version0)
	r.ReadUint8(&fillAmount, Version0)
	r.ReadUint8(&swing, Version0)
	r.ReadUint8(&pattern, Version0)
	t.SetMode(TrackMode(mode))
	t.SetLinkTrack(int(linkTrack))
	t.SetFillAmount(int(fillAmount))
	t.SetSwing(int(swing))
	t.pattern = clampInt(int(pattern), 0, PatternCount-1)
	t.requestedPattern = -1
	switch t.mode {
	case TrackModeNote:
		t.note.read(r)
	case TrackModeCurve:
		t.curve.read(r)
	case TrackModeMidiCv:
		t.midiCv.read(r)
	}
}

// Write serializes the project body (without header)
func (p *Project) Write(w *Writer) error {
	w.WriteName(p.name)
	w.WriteFloat32(float32(p.tempo))
	w.WriteUint8(uint8(p.scale))
	w.WriteUint8(uint8(p.rootNote))
	w.WriteUint8(uint8(p.recordMode))
	w.WriteInt8(int8(p.curveCvInput))
	for _, t := range p.tracks {
		t.write(w)
	}
	return w.Err()
}

// Read deserializes the project body (without header)
func (p *Project) Read(r *Reader) error {
	var tempo float32 = 120
	var scale, rootNote, recordMode uint8
	var curveCvInput int8 = -1
	r.ReadName(&p.name, Version0)
	r.ReadFloat32(&tempo, Version0)
	r.ReadUint8(&scale, Version0)
	r.ReadUint8(&rootNote, Version0)
	r.ReadUint8(&recordMode, Version0)
	r.ReadInt8(&curveCvInput, Version0)
	p.SetTempo(float64(tempo))
	p.SetScale(int(scale))
	p.SetRootNote(int(rootNote))
	p.SetRecordMode(RecordMode(recordMode))
	p.SetCurveCvInput(int(curveCvInput))
	for _, t := range p.tracks {
		t.read(r)
	}
	return r.Err()
}

// WriteTo writes the full project file: header plus body
func (p *Project) WriteTo(w io.Writer) error {
	if err := writeHeader(w, projectMagic); err != nil {
		return err
	}
	return p.Write(NewWriter(w))
}

// ReadFrom reads a full project file, honoring its version
func (p *Project) ReadFrom(r io.Reader) error {
	version, err := readHeader(r, projectMagic)
	if err != nil {
		return err
	}
	return p.Read(NewReader(r, version))
}
