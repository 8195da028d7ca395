package sequencer

// SwingMin/SwingMax bound the swing amount in percent. 50 is straight time;
// above 50 the off-sixteenth lands late, below 50 it lands early.
const (
	SwingMin     = 25
	SwingDefault = 50
	SwingMax     = 75
)

// Swing displaces the odd subdivisions within each pair of base-length
// subdivisions. Computed on absolute ticks so phase is kept across reset
// boundaries. The mapping is piecewise linear and monotonic, and adds up to
// the identity over a full period: Swing(t+2*base) == Swing(t)+2*base.
func Swing(tick uint32, base uint32, swing int) uint32 {
	swing = clampInt(swing, SwingMin, SwingMax)
	if swing == SwingDefault {
		return tick
	}

	offset := int(2*base) * (swing - 50) / 100
	period := 2 * base
	phase := int(tick % period)
	block := tick - uint32(phase)

	if phase < int(base) {
		// stretch (or compress) the first subdivision
		phase = phase * (int(base) + offset) / int(base)
	} else {
		// shift the second subdivision, compress the remainder back in
		phase = int(base) + offset + (phase-int(base))*(int(base)-offset)/int(base)
	}
	return block + uint32(phase)
}

// SwingBase is the subdivision swing operates on (sixteenths)
const SwingBase = PPQN / 4
