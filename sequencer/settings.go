package sequencer

import (
	"io"
	"os"
)

// SettingsFilename is the on-disk name of the settings file
const SettingsFilename = "SETTINGS.DAT"

// CvOutputCalibration trims one CV output: volts_out = volts*scale + offset
type CvOutputCalibration struct {
	offset float32
	scale  float32
}

func (c *CvOutputCalibration) Offset() float32 { return c.offset }
func (c *CvOutputCalibration) SetOffset(offset float32) {
	if offset < -1 {
		offset = -1
	}
	if offset > 1 {
		offset = 1
	}
	c.offset = offset
}

func (c *CvOutputCalibration) Scale() float32 { return c.scale }
func (c *CvOutputCalibration) SetScale(scale float32) {
	if scale < 0.5 {
		scale = 0.5
	}
	if scale > 2 {
		scale = 2
	}
	c.scale = scale
}

// Apply trims a voltage through the calibration
func (c *CvOutputCalibration) Apply(volts float32) float32 {
	return volts*c.scale + c.offset
}

// Clear resets to a unity mapping
func (c *CvOutputCalibration) Clear() {
	c.offset = 0
	c.scale = 1
}

func (c *CvOutputCalibration) write(w *Writer) {
	w.WriteFloat32(c.offset)
	w.WriteFloat32(c.scale)
}

func (c *CvOutputCalibration) read(r *Reader) {
	var offset, scale float32
	r.ReadFloat32(&offset, Version0)
	r.ReadFloat32(&scale, Version0)
	c.SetOffset(offset)
	c.SetScale(scale)
}

// Calibration is the per-output trim table
type Calibration struct {
	cvOutputs [TrackCount]CvOutputCalibration
}

// CvOutput returns the calibration for an output index
func (c *Calibration) CvOutput(index int) *CvOutputCalibration {
	return &c.cvOutputs[clampInt(index, 0, TrackCount-1)]
}

// Clear resets all outputs to unity
func (c *Calibration) Clear() {
	for i := range c.cvOutputs {
		c.cvOutputs[i].Clear()
	}
}

func (c *Calibration) write(w *Writer) {
	for i := range c.cvOutputs {
		c.cvOutputs[i].write(w)
	}
}

func (c *Calibration) read(r *Reader) {
	for i := range c.cvOutputs {
		c.cvOutputs[i].read(r)
	}
}

// Settings is the device-level persisted state (everything that is not part
// of a project).
type Settings struct {
	calibration Calibration
}

// NewSettings returns cleared settings
func NewSettings() *Settings {
	s := &Settings{}
	s.Clear()
	return s
}

// Calibration returns the calibration table
func (s *Settings) Calibration() *Calibration { return &s.calibration }

// Clear resets the settings
func (s *Settings) Clear() {
	s.calibration.Clear()
}

// WriteTo writes the settings file: header plus calibration body
func (s *Settings) WriteTo(w io.Writer) error {
	if err := writeHeader(w, settingsMagic); err != nil {
		return err
	}
	writer := NewWriter(w)
	s.calibration.write(writer)
	return writer.Err()
}

// ReadFrom reads a settings file, honoring its version
func (s *Settings) ReadFrom(r io.Reader) error {
	version, err := readHeader(r, settingsMagic)
	if err != nil {
		return err
	}
	reader := NewReader(r, version)
	s.calibration.read(reader)
	return reader.Err()
}

// WriteFile saves the settings to a path
func (s *Settings) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := s.WriteTo(f); err != nil {
		return err
	}
	return f.Sync()
}

// ReadFile loads the settings from a path
func (s *Settings) ReadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.ReadFrom(f)
}
