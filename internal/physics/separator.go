package physics

import (
	"math"

	"github.com/san-kum/fieldsim/internal/dynamo"
	"github.com/san-kum/fieldsim/internal/integrators"
)

const (
	Gravity = 9.81

	DefaultGasConstant = 8.314 // J/(mol·K)
	DefaultTemperature = 300.0 // K
	DefaultMolarMass   = 0.029 // kg/mol
	DefaultGamma       = 1.4

	DefaultArea            = 10.0 // m²
	DefaultTotalVolume     = 50.0 // m³
	DefaultCd              = 0.6
	DefaultValveAreaLiquid = 0.01  // m²
	DefaultValveAreaGas    = 0.005 // m²
	DefaultAmbientPressure = 101325.0
	DefaultMinGasVolume    = 1e-3 // m³
	DefaultMaxPressure     = 1e7  // Pa

	DefaultHOil     = 0.5
	DefaultHWater   = 0.5
	DefaultPressure = 150000.0

	minGasMass = 1e-9
)

// SeparatorConstants are fixed for the lifetime of a separator.
type SeparatorConstants struct {
	Area            float64 `yaml:"area"`
	TotalVolume     float64 `yaml:"total_volume"`
	Cd              float64 `yaml:"cd"`
	ValveAreaLiquid float64 `yaml:"valve_area_liquid"`
	ValveAreaGas    float64 `yaml:"valve_area_gas"`
	AmbientPressure float64 `yaml:"ambient_pressure"`
	MolarMass       float64 `yaml:"molar_mass"`
	GasConstant     float64 `yaml:"gas_constant"`
	Temperature     float64 `yaml:"temperature"`
	Gamma           float64 `yaml:"gamma"`
	MinGasVolume    float64 `yaml:"min_gas_volume"`
	// MaxPressure caps the vessel pressure and, through it, the gas mass.
	// Without it the default inflows drive the gas mass past float range.
	MaxPressure     float64 `yaml:"max_pressure"`
}

func DefaultSeparatorConstants() SeparatorConstants {
	return SeparatorConstants{
		Area:            DefaultArea,
		TotalVolume:     DefaultTotalVolume,
		Cd:              DefaultCd,
		ValveAreaLiquid: DefaultValveAreaLiquid,
		ValveAreaGas:    DefaultValveAreaGas,
		AmbientPressure: DefaultAmbientPressure,
		MolarMass:       DefaultMolarMass,
		GasConstant:     DefaultGasConstant,
		Temperature:     DefaultTemperature,
		Gamma:           DefaultGamma,
		MinGasVolume:    DefaultMinGasVolume,
		MaxPressure:     DefaultMaxPressure,
	}
}

// SeparatorConfig holds the externally writable inputs. Inflows are in m³/s,
// valve openings in percent.
type SeparatorConfig struct {
	QInOil     float64 `yaml:"q_in_oil"`
	QInWater   float64 `yaml:"q_in_water"`
	QInGas     float64 `yaml:"q_in_gas"`
	ValveOil   float64 `yaml:"valve_oil"`
	ValveWater float64 `yaml:"valve_water"`
	ValveGas   float64 `yaml:"valve_gas"`
}

func DefaultSeparatorConfig() SeparatorConfig {
	return SeparatorConfig{
		QInOil:     0.05,
		QInWater:   0.03,
		QInGas:     0.1,
		ValveOil:   45.0,
		ValveWater: 35.0,
		ValveGas:   25.0,
	}
}

func (c SeparatorConfig) control() dynamo.Control {
	return dynamo.Control{c.QInOil, c.QInWater, c.QInGas, c.ValveOil, c.ValveWater, c.ValveGas}
}

// SeparatorState is the published state. The gas mass is internal and only
// changes through Update.
type SeparatorState struct {
	HOil     float64 `json:"h_oil"`
	HWater   float64 `json:"h_water"`
	Pressure float64 `json:"pressure"`

	gasMass float64
}

func (s SeparatorState) GasMass() float64 {
	return s.gasMass
}

// Separator is the three-phase separator model. Its continuous part is the
// system x = [h_oil, h_water, gas_mass] driven by
// u = [q_in_oil, q_in_water, q_in_gas, valve_oil, valve_water, valve_gas].
type Separator struct {
	SeparatorConstants
	integrator dynamo.Integrator
}

// NewSeparator builds a separator. A nil integrator selects explicit Euler.
func NewSeparator(k SeparatorConstants, integ dynamo.Integrator) *Separator {
	if integ == nil {
		integ = integrators.NewEuler()
	}
	return &Separator{SeparatorConstants: k, integrator: integ}
}

// NewState returns a state whose gas mass matches the given pressure.
func (s *Separator) NewState(hOil, hWater, pressure float64) SeparatorState {
	maxH := s.MaxHeight()
	hOil = dynamo.Clamp(hOil, 0, maxH)
	hWater = dynamo.Clamp(hWater, 0, maxH-hOil)
	pressure = dynamo.Clamp(pressure, s.AmbientPressure, s.maxPressure())
	return SeparatorState{
		HOil:     hOil,
		HWater:   hWater,
		Pressure: pressure,
		gasMass:  s.massAt(pressure, s.GasVolume(hOil, hWater)),
	}
}

func (s *Separator) StateDim() int   { return 3 }
func (s *Separator) ControlDim() int { return 6 }

func (s *Separator) MaxHeight() float64 {
	return s.TotalVolume / s.Area
}

// GasVolume is the vessel volume above the liquids, never below MinGasVolume.
func (s *Separator) GasVolume(hOil, hWater float64) float64 {
	v := s.TotalVolume - s.Area*(hOil+hWater)
	return math.Max(v, s.MinGasVolume)
}

func (s *Separator) CriticalPressureRatio() float64 {
	g := s.Gamma
	return math.Pow(2/(g+1), g/(g-1))
}

// LiquidOutflow is Torricelli discharge through a liquid valve.
func (s *Separator) LiquidOutflow(h, opening float64) float64 {
	return s.Cd * s.ValveAreaLiquid * (opening / 100.0) * math.Sqrt(2*Gravity*math.Max(h, 0))
}

// GasOutflow selects the choked or subcritical orifice equation from the
// ratio of ambient to vessel pressure.
func (s *Separator) GasOutflow(pressure, opening float64) float64 {
	coeff := s.Cd * s.ValveAreaGas * (opening / 100.0)
	ratio := s.AmbientPressure / pressure
	if ratio <= s.CriticalPressureRatio() {
		return s.chokedOutflow(pressure, coeff)
	}
	return s.subcriticalOutflow(pressure, ratio, coeff)
}

func (s *Separator) chokedOutflow(pressure, coeff float64) float64 {
	g := s.Gamma
	return coeff * math.Sqrt(g*pressure/s.MolarMass*math.Pow(2/(g+1), (g+1)/(g-1)))
}

func (s *Separator) subcriticalOutflow(pressure, ratio, coeff float64) float64 {
	g := s.Gamma
	term := math.Pow(ratio, 2/g) - math.Pow(ratio, (g+1)/g)
	if term <= 0 {
		return 0
	}
	return coeff * math.Sqrt(2*pressure/s.MolarMass*(g/(g-1))*term)
}

// maxPressure is MaxPressure, or the default when unset.
func (s *Separator) maxPressure() float64 {
	if s.MaxPressure <= s.AmbientPressure {
		return math.Max(DefaultMaxPressure, s.AmbientPressure)
	}
	return s.MaxPressure
}

func (s *Separator) massAt(pressure, vGas float64) float64 {
	return pressure * vGas * s.MolarMass / (s.GasConstant * s.Temperature)
}

func (s *Separator) pressureOf(mass, hOil, hWater float64) float64 {
	maxH := s.MaxHeight()
	hOil = dynamo.Clamp(hOil, 0, maxH)
	hWater = dynamo.Clamp(hWater, 0, maxH-hOil)
	p := mass * s.GasConstant * s.Temperature / (s.GasVolume(hOil, hWater) * s.MolarMass)
	if math.IsNaN(p) {
		return s.maxPressure()
	}
	return dynamo.Clamp(p, s.AmbientPressure, s.maxPressure())
}

// Project clamps x into the vessel: heights within the shell with oil on top,
// gas mass between the floor and the MaxPressure ceiling.
func (s *Separator) Project(x dynamo.State) {
	maxH := s.MaxHeight()
	x[0] = dynamo.Clamp(x[0], 0, maxH)
	x[1] = dynamo.Clamp(x[1], 0, maxH-x[0])
	if math.IsNaN(x[2]) {
		x[2] = minGasMass
	}
	x[2] = dynamo.Clamp(x[2], minGasMass, s.massAt(s.maxPressure(), s.GasVolume(x[0], x[1])))
}

func (s *Separator) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	hOil, hWater, mass := x[0], x[1], x[2]
	qInOil, qInWater, qInGas := u[0], u[1], u[2]
	valveOil, valveWater, valveGas := u[3], u[4], u[5]

	dhOil := (qInOil - s.LiquidOutflow(hOil, valveOil)) / s.Area
	dhWater := (qInWater - s.LiquidOutflow(hWater, valveWater)) / s.Area

	p := s.pressureOf(mass, hOil, hWater)
	massIn := qInGas * p * s.MolarMass / (s.GasConstant * s.Temperature)
	massOut := s.GasOutflow(p, valveGas) * s.MolarMass

	return dynamo.State{dhOil, dhWater, massIn - massOut}
}

// Update advances the separator by dt seconds. Heights, gas mass and pressure
// are clamped into their physical ranges; oil sits above water, so water gets
// whatever height the oil leaves. A NaN component keeps its previous value
// and the others still advance; the gas mass never exceeds what MaxPressure
// allows in the current gas volume.
func (s *Separator) Update(st *SeparatorState, cfg SeparatorConfig, dt float64) {
	if dt < 0 {
		return
	}
	if st.gasMass <= 0 || !finite(st.gasMass) {
		*st = s.NewState(st.HOil, st.HWater, st.Pressure)
	}

	x := dynamo.State{st.HOil, st.HWater, st.gasMass}
	next := s.integrator.Step(s, x, cfg.control(), 0, dt)
	for i, v := range next {
		if math.IsNaN(v) {
			next[i] = x[i]
		}
	}

	s.Project(next)
	st.HOil, st.HWater, st.gasMass = next[0], next[1], next[2]
	st.Pressure = s.pressureOf(st.gasMass, st.HOil, st.HWater)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
