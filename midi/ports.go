package midi

import (
	"fmt"
	"strings"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // register MIDI driver
)

// PortManager opens MIDI ports lazily and keeps senders cached per port,
// so repeated lookups in the dispatch path stay cheap.
type PortManager struct {
	mu      sync.RWMutex
	senders map[string]func(gomidi.Message) error
}

// NewPortManager creates a port manager
func NewPortManager() *PortManager {
	return &PortManager{
		senders: make(map[string]func(gomidi.Message) error),
	}
}

// OutPortNames lists the available output ports
func OutPortNames() []string {
	var names []string
	for _, port := range gomidi.GetOutPorts() {
		names = append(names, port.String())
	}
	return names
}

// InPortNames lists the available input ports
func InPortNames() []string {
	var names []string
	for _, port := range gomidi.GetInPorts() {
		names = append(names, port.String())
	}
	return names
}

// Sender returns a send function for the given port name, lazily opening it.
// An empty or unknown name returns an error.
func (m *PortManager) Sender(portName string) (func(gomidi.Message) error, error) {
	if portName == "" {
		return nil, fmt.Errorf("no port name given")
	}

	m.mu.RLock()
	if sender, ok := m.senders[portName]; ok {
		m.mu.RUnlock()
		return sender, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// double-check after acquiring write lock
	if sender, ok := m.senders[portName]; ok {
		return sender, nil
	}

	for _, port := range gomidi.GetOutPorts() {
		if port.String() == portName || strings.Contains(port.String(), portName) {
			sender, err := gomidi.SendTo(port)
			if err != nil {
				return nil, err
			}
			m.senders[port.String()] = sender
			m.senders[portName] = sender
			return sender, nil
		}
	}
	return nil, fmt.Errorf("output port %q not found", portName)
}

// Listen starts listening on an input port, delivering translated events to
// the callback. Returns a stop function.
func Listen(portName string, portIndex int, fn func(Event)) (func(), error) {
	var in gomidi.InPort
	found := false
	for _, port := range gomidi.GetInPorts() {
		if port.String() == portName || strings.Contains(port.String(), portName) {
			in = port
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("input port %q not found", portName)
	}

	stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, timestampms int32) {
		var ch, key, vel, ctrl, val uint8
		var bend int16
		var bendAbs uint16

		switch {
		case msg.GetNoteOn(&ch, &key, &vel):
			fn(Event{Type: NoteOn, Port: portIndex, Channel: ch, Note: key, Velocity: vel})
		case msg.GetNoteOff(&ch, &key, &vel):
			fn(Event{Type: NoteOff, Port: portIndex, Channel: ch, Note: key, Velocity: vel})
		case msg.GetPitchBend(&ch, &bend, &bendAbs):
			fn(Event{Type: PitchBend, Port: portIndex, Channel: ch, Bend: bend})
		case msg.GetControlChange(&ch, &ctrl, &val):
			fn(Event{Type: ControlChange, Port: portIndex, Channel: ch, Controller: ctrl, Value: val})
		case msg.GetAfterTouch(&ch, &val):
			fn(Event{Type: ChannelPressure, Port: portIndex, Channel: ch, Value: val})
		case msg.GetPolyAfterTouch(&ch, &key, &val):
			fn(Event{Type: KeyPressure, Port: portIndex, Channel: ch, Note: key, Value: val})
		}
	})
	if err != nil {
		return nil, err
	}
	return stop, nil
}
