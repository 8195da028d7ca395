package sequencer

import "math"

// CurveType selects a shape function f: [0,1] -> [0,1]
type CurveType uint8

const (
	CurveLow CurveType = iota
	CurveHigh
	CurveStepUp
	CurveStepDown
	CurveRampUp
	CurveRampDown
	CurveRampUpHalf
	CurveRampDownHalf
	CurveExpUp
	CurveExpDown
	CurveLogUp
	CurveLogDown
	CurveSmoothUp
	CurveSmoothDown
	CurveTriangle
	CurveBell
	CurveTypeLast
)

var curveNames = []string{
	"Low", "High", "Step Up", "Step Down", "Ramp Up", "Ramp Down",
	"Ramp Up Half", "Ramp Down Half", "Exp Up", "Exp Down", "Log Up", "Log Down",
	"Smooth Up", "Smooth Down", "Triangle", "Bell",
}

func (t CurveType) String() string {
	if int(t) < len(curveNames) {
		return curveNames[t]
	}
	return "?"
}

// CurveFunction returns the shape function for the type
func CurveFunction(t CurveType) func(float32) float32 {
	switch t {
	case CurveLow:
		return func(x float32) float32 { return 0 }
	case CurveHigh:
		return func(x float32) float32 { return 1 }
	case CurveStepUp:
		return func(x float32) float32 {
			if x < 0.5 {
				return 0
			}
			return 1
		}
	case CurveStepDown:
		return func(x float32) float32 {
			if x < 0.5 {
				return 1
			}
			return 0
		}
	case CurveRampUp:
		return func(x float32) float32 { return x }
	case CurveRampDown:
		return func(x float32) float32 { return 1 - x }
	case CurveRampUpHalf:
		return func(x float32) float32 { return 0.5 * x }
	case CurveRampDownHalf:
		return func(x float32) float32 { return 1 - 0.5*x }
	case CurveExpUp:
		return func(x float32) float32 { return x * x }
	case CurveExpDown:
		return func(x float32) float32 { return (1 - x) * (1 - x) }
	case CurveLogUp:
		return func(x float32) float32 { return sqrtf(x) }
	case CurveLogDown:
		return func(x float32) float32 { return sqrtf(1 - x) }
	case CurveSmoothUp:
		return smoothstep
	case CurveSmoothDown:
		return func(x float32) float32 { return smoothstep(1 - x) }
	case CurveTriangle:
		return func(x float32) float32 {
			if x < 0.5 {
				return 2 * x
			}
			return 2 - 2*x
		}
	case CurveBell:
		return func(x float32) float32 {
			return 0.5 - 0.5*float32(math.Cos(2*math.Pi*float64(x)))
		}
	}
	return func(x float32) float32 { return 0 }
}

func smoothstep(x float32) float32 {
	return x * x * (3 - 2*x)
}

func sqrtf(x float32) float32 {
	if x <= 0 {
		return 0
	}
	return float32(math.Sqrt(float64(x)))
}
