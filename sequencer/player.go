package sequencer

import (
	"sync"
	"time"

	"cvgrid/debug"
)

// Player drives the engine from a wall-clock goroutine: ticks at master PPQN
// derived from the project tempo, updates at UI rate. The engine itself is
// single-threaded; the player's mutex is the serialization point for
// everything that touches it (ticks, updates, live MIDI, UI edits).
type Player struct {
	mu     sync.Mutex
	engine *Engine

	playing  bool
	tick     uint32
	stopChan chan struct{}

	// Notify the UI of state changes
	UpdateChan chan struct{}
}

const updateRate = 60 // Hz

// NewPlayer creates a player for the engine
func NewPlayer(engine *Engine) *Player {
	return &Player{
		engine:     engine,
		UpdateChan: make(chan struct{}, 1),
	}
}

// Engine exposes the engine; callers must hold the player via Do for access
// that races the clock.
func (p *Player) Engine() *Engine { return p.engine }

// Do runs fn with the player lock held, serialized against the tick loop
func (p *Player) Do(fn func(e *Engine)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.engine)
}

// Playing reports whether the clock is running
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// CurrentTick returns the last tick driven into the engine
func (p *Player) CurrentTick() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tick
}

// Play starts the clock
func (p *Player) Play() {
	p.mu.Lock()
	if p.playing {
		p.mu.Unlock()
		return
	}
	p.playing = true
	p.tick = 0
	p.stopChan = make(chan struct{})
	p.engine.Start()
	stop := p.stopChan
	p.mu.Unlock()

	go p.run(stop)
	p.notify()
}

// Stop halts the clock
func (p *Player) Stop() {
	p.mu.Lock()
	if !p.playing {
		p.mu.Unlock()
		return
	}
	p.playing = false
	close(p.stopChan)
	p.engine.Stop()
	p.mu.Unlock()
	p.notify()
}

// ReceiveMidi timestamps and forwards live input
func (p *Player) ReceiveMidi(fn func(e *Engine, tick uint32)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.engine, p.tick)
}

func (p *Player) run(stop chan struct{}) {
	debug.Log("player", "clock started")

	lastUpdate := time.Now()
	next := time.Now()

	for {
		p.mu.Lock()
		tempo := p.engine.Project().Tempo()
		p.mu.Unlock()

		tickDur := time.Duration(float64(time.Minute) / (tempo * PPQN))
		next = next.Add(tickDur)

		timer := time.NewTimer(time.Until(next))
		select {
		case <-stop:
			timer.Stop()
			debug.Log("player", "clock stopped")
			return
		case <-timer.C:
		}

		p.mu.Lock()
		p.engine.Tick(p.tick)
		p.tick++

		now := time.Now()
		if dt := now.Sub(lastUpdate); dt >= time.Second/updateRate {
			p.engine.Update(float32(dt.Seconds()))
			lastUpdate = now
			p.mu.Unlock()
			p.notify()
			continue
		}
		p.mu.Unlock()
	}
}

func (p *Player) notify() {
	select {
	case p.UpdateChan <- struct{}{}:
	default:
	}
}
