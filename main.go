package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	mkconfig "gitlab.com/metakeule/config"

	appconfig "cvgrid/config"
	"cvgrid/debug"
	"cvgrid/midi"
	"cvgrid/sequencer"
	"cvgrid/tui"
)

const version = "0.1.0"

var CONFIG = mkconfig.MustNew("cvgrid", version, "multi-track CV/gate step sequencer engine")

var (
	outArg     = CONFIG.NewString("out", "MIDI output port for the mirror", mkconfig.Shortflag('o'))
	inArg      = CONFIG.NewString("in", "MIDI input port for live recording", mkconfig.Shortflag('i'))
	seedArg    = CONFIG.NewInt32("seed", "random seed (0 = from clock)", mkconfig.Default(int32(0)), mkconfig.Shortflag('s'))
	projectArg = CONFIG.NewString("project", "project to load on start", mkconfig.Shortflag('p'))
	verboseArg = CONFIG.NewBool("debug", "write a debug log", mkconfig.Default(false))
	listCmd    = CONFIG.MustCommand("list", "list MIDI ports")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n\n", err.Error())
		os.Exit(1)
	}
}

func run() error {
	err := CONFIG.Run()
	if err != nil {
		fmt.Fprint(os.Stderr, CONFIG.Usage())
		return err
	}

	if CONFIG.ActiveCommand() == listCmd {
		listPorts()
		return nil
	}

	if verboseArg.Get() {
		if err := debug.Enable(); err != nil {
			return err
		}
		defer debug.Disable()
	}

	cfg, err := appconfig.Load()
	if err != nil {
		return err
	}

	// Settings (calibration); missing file just means defaults
	settings := sequencer.NewSettings()
	if path, err := sequencer.SettingsPath(); err == nil {
		if err := settings.ReadFile(path); err != nil && !os.IsNotExist(err) {
			debug.Log("main", "settings read failed: %v", err)
		}
	}

	// Project
	project := sequencer.NewProject()
	if cfg.Clock.Tempo > 0 {
		project.SetTempo(cfg.Clock.Tempo)
	}
	projectName := projectArg.Get()
	if projectName == "" {
		projectName = cfg.UI.LastProject
	}
	if projectName != "" {
		if err := sequencer.LoadProject(project, projectName, ""); err != nil {
			debug.Log("main", "project load failed: %v", err)
		}
	}

	seed := uint32(seedArg.Get())
	if seed == 0 {
		seed = cfg.Clock.Seed
	}
	if seed == 0 {
		seed = uint32(time.Now().UnixNano())
	}

	// MIDI mirror output
	output := midi.NewOutputEngine()
	ports := midi.NewPortManager()
	outPort := outArg.Get()
	if outPort == "" {
		outPort = cfg.MidiOutput.PortName
	}
	if outPort != "" {
		sender, err := ports.Sender(outPort)
		if err != nil {
			return err
		}
		output.SetSender(sender)
	}

	engine := sequencer.NewEngine(project, settings, output, seed)
	player := sequencer.NewPlayer(engine)

	// MIDI input feeds the recorder and MIDI/CV tracks
	inPort := inArg.Get()
	if inPort != "" {
		stop, err := midi.Listen(inPort, 0, func(event midi.Event) {
			player.ReceiveMidi(func(e *sequencer.Engine, tick uint32) {
				e.ReceiveMidi(tick, event)
			})
		})
		if err != nil {
			return err
		}
		defer stop()
	}

	defer output.AllNotesOff()

	m := tui.NewModel(player)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}

	if project.Name() != "" {
		cfg.UI.LastProject = project.Name()
		cfg.Save()
	}

	return nil
}

func listPorts() {
	fmt.Println("MIDI output ports:")
	for i, name := range midi.OutPortNames() {
		fmt.Printf("  [%d] %s\n", i, name)
	}
	fmt.Println("MIDI input ports:")
	for i, name := range midi.InPortNames() {
		fmt.Printf("  [%d] %s\n", i, name)
	}
}
