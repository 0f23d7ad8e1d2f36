package plant_test

import (
	"context"
	"errors"
	"math"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/fieldsim/internal/config"
	"github.com/san-kum/fieldsim/internal/dynamo"
	"github.com/san-kum/fieldsim/internal/physics"
	"github.com/san-kum/fieldsim/internal/plant"
)

type countingMetric struct {
	samples int
	resets  int
}

func (c *countingMetric) Name() string           { return "count" }
func (c *countingMetric) Observe(plant.Snapshot) { c.samples++ }
func (c *countingMetric) Value() float64         { return float64(c.samples) }
func (c *countingMetric) Reset()                 { c.samples = 0; c.resets++ }

func mustRead(p *plant.Plant, id string) any {
	v, err := p.Read(id)
	Expect(err).ToNot(HaveOccurred())
	return v
}

var _ = Describe("Plant", func() {
	var p *plant.Plant

	BeforeEach(func() {
		var err error
		p, err = plant.New(config.DefaultConfig(), nil)
		Expect(err).ToNot(HaveOccurred())
	})

	It("should refuse an invalid configuration", func() {
		cfg := config.DefaultConfig()
		cfg.CycleTimeMs = 0
		_, err := plant.New(cfg, nil)
		Expect(errors.Is(err, dynamo.ErrInvalidCycle)).To(BeTrue())
	})

	It("should publish the initial state before the first cycle", func() {
		s := p.Last()
		Expect(s.Cycle.Index).To(Equal(0))
		Expect(s.Separator.Pressure).To(Equal(150000.0))
		Expect(mustRead(p, "actuator.state")).To(Equal("CLOSED"))
	})

	It("should start the control valve at its configured signal", func() {
		s := p.Last()
		Expect(s.Valve.Opening).To(Equal(physics.DefaultControlSignal))
		want := physics.ValveFlow(physics.DefaultKv,
			physics.CharacteristicFraction(physics.EqualPercentage, physics.DefaultControlSignal),
			physics.DefaultUpstreamPressure)
		Expect(want).To(BeNumerically(">", 0))
		Expect(mustRead(p, "valve.flow")).To(BeNumerically("~", want, 1e-12))

		cfg := config.DefaultConfig()
		cfg.Valve.Inputs.ControlSignal = 30
		q, err := plant.New(cfg, nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(mustRead(q, "valve.valve_opening")).To(Equal(30.0))
	})

	Describe("stepping", func() {
		It("should advance the clock by the cycle period", func() {
			s := p.Step()
			Expect(s.Cycle.Index).To(Equal(1))
			Expect(s.Cycle.TimeMs).To(Equal(uint32(100)))
			Expect(s.Cycle.Now).To(BeNumerically("~", 0.1, 1e-12))
			Expect(mustRead(p, "plant.cycle")).To(Equal(1.0))
			Expect(mustRead(p, "separator.h_oil")).To(Equal(s.Separator.HOil))
		})

		It("should run headless and report metrics", func() {
			m := &countingMetric{}
			p.AddMetric(m)

			var seen []int
			p.AddObserver(plant.ObserverFunc(func(s plant.Snapshot) {
				seen = append(seen, s.Cycle.Index)
			}))

			res, err := p.Run(context.Background(), 100)
			Expect(err).ToNot(HaveOccurred())
			Expect(res.Cycles).To(Equal(100))
			Expect(res.Snapshots).To(HaveLen(100))
			Expect(res.Metrics).To(HaveKeyWithValue("count", 100.0))
			Expect(m.resets).To(Equal(1))
			Expect(seen).To(HaveLen(100))
			Expect(seen[99]).To(Equal(100))
			Expect(p.Last().Cycle.Now).To(BeNumerically("~", 10.0, 1e-9))
		})

		It("should stop when the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			res, err := p.Run(ctx, 100)
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(res.Cycles).To(BeZero())
		})

		It("should keep the separator inside its physical envelope", func() {
			res, err := p.Run(context.Background(), 2000)
			Expect(err).ToNot(HaveOccurred())
			for _, s := range res.Snapshots {
				Expect(s.Separator.Pressure).To(BeNumerically(">=", 101325.0))
				Expect(s.Separator.HOil + s.Separator.HWater).To(BeNumerically("<=", 5.0))
			}
		})

		It("should expose every recorded point as a number", func() {
			s := p.Step()
			for _, id := range plant.SeriesPoints {
				_, ok := s.Value(id)
				Expect(ok).To(BeTrue(), id)
			}
			_, ok := s.Value("separator.nothing")
			Expect(ok).To(BeFalse())
		})

		It("should follow a change of cycle period", func() {
			Expect(p.Write("plant.cycle_time_ms", 50)).To(Succeed())
			s := p.Step()
			Expect(s.Cycle.Now).To(BeNumerically("~", 0.05, 1e-12))
			Expect(p.CycleTime().Milliseconds()).To(Equal(int64(50)))

			err := p.Write("plant.cycle_time_ms", 0)
			Expect(errors.Is(err, dynamo.ErrInvalidCycle)).To(BeTrue())
		})
	})

	Describe("point writes", func() {
		It("should clamp openings", func() {
			Expect(p.Write("separator.valve_oil", 150.0)).To(Succeed())
			Expect(mustRead(p, "separator.valve_oil")).To(Equal(100.0))
			Expect(p.Write("valve.control_signal", -20.0)).To(Succeed())
			Expect(mustRead(p, "valve.control_signal")).To(Equal(0.0))
		})

		It("should reject negative inflows and error parameters", func() {
			err := p.Write("separator.q_in_oil", -0.1)
			Expect(errors.Is(err, dynamo.ErrParameterBounds)).To(BeTrue())
			Expect(mustRead(p, "separator.q_in_oil")).To(Equal(0.05))

			err = p.Write("valve.hysteresis", -1.0)
			Expect(errors.Is(err, dynamo.ErrParameterBounds)).To(BeTrue())
		})

		It("should reject non-positive pressures, kv and travel times", func() {
			for _, id := range []string{"valve.upstream_pressure", "valve.kv", "actuator.travel_time_ms"} {
				err := p.Write(id, 0.0)
				Expect(errors.Is(err, dynamo.ErrParameterBounds)).To(BeTrue(), id)
			}
			Expect(mustRead(p, "valve.upstream_pressure")).To(Equal(5.0))
		})

		It("should validate the characteristic", func() {
			Expect(p.Write("valve.valve_characteristic", "linear")).To(Succeed())
			Expect(mustRead(p, "valve.valve_characteristic")).To(Equal("linear"))
			Expect(p.Write("valve.valve_characteristic", 1)).To(Succeed())
			Expect(mustRead(p, "valve.valve_characteristic")).To(Equal("equal_percentage"))
			Expect(p.Write("valve.valve_characteristic", "2")).ToNot(Succeed())
		})

		It("should bound the step size", func() {
			Expect(p.Write("transmitter.step_size", 0.05)).ToNot(Succeed())
			Expect(p.Write("transmitter.step_size", 10.5)).ToNot(Succeed())
			Expect(p.Write("transmitter.step_size", 2.0)).To(Succeed())
			Expect(mustRead(p, "transmitter.step_size")).To(Equal(2.0))
		})

		It("should let the last waveform write win", func() {
			Expect(mustRead(p, "transmitter.sawtooth_wave")).To(BeTrue())
			Expect(p.Write("transmitter.sine_wave", true)).To(Succeed())
			Expect(mustRead(p, "transmitter.sawtooth_wave")).To(BeFalse())

			Expect(p.Write("transmitter.overflow", true)).To(Succeed())
			Expect(p.Write("transmitter.underflow", true)).To(Succeed())
			Expect(mustRead(p, "transmitter.overflow")).To(BeFalse())
			Expect(mustRead(p, "transmitter.underflow")).To(BeTrue())
		})

		It("should refuse unknown and read-only points", func() {
			Expect(errors.Is(p.Write("separator.level", 1.0), dynamo.ErrUnknownPoint)).To(BeTrue())
			Expect(errors.Is(p.Write("separator.pressure", 1.0), dynamo.ErrReadOnly)).To(BeTrue())
			Expect(errors.Is(p.Write("actuator.state", "OPEN"), dynamo.ErrReadOnly)).To(BeTrue())
		})

		It("should list every point once", func() {
			ids := map[string]bool{}
			for _, pt := range p.Table().List() {
				Expect(ids).ToNot(HaveKey(pt.ID))
				ids[pt.ID] = true
			}
			for _, id := range []string{
				"separator.h_oil", "separator.h_water", "separator.pressure",
				"valve.valve_opening", "valve.flow",
				"actuator.state", "actuator.valve_moving", "actuator.limit_switch_open",
				"actuator.limit_switch_close", "actuator.fault",
				"transmitter.current_value", "transmitter.fault",
				"actuator.solenoid_esd", "actuator.solenoid_psd", "actuator.solenoid_pcs", "actuator.reset",
			} {
				Expect(ids).To(HaveKey(id))
			}
		})
	})

	Describe("actuator", func() {
		BeforeEach(func() {
			Expect(p.Write("actuator.travel_time_ms", 500)).To(Succeed())
			for _, id := range []string{"actuator.solenoid_esd", "actuator.solenoid_psd", "actuator.solenoid_pcs"} {
				Expect(p.Write(id, true)).To(Succeed())
			}
		})

		It("should stroke open through the point table", func() {
			p.Step()
			Expect(mustRead(p, "actuator.state")).To(Equal("OPENING"))
			Expect(mustRead(p, "actuator.valve_moving")).To(Equal(true))
			for i := 0; i < 4; i++ {
				p.Step()
			}
			Expect(mustRead(p, "actuator.state")).To(Equal("OPENING"))
			p.Step()
			Expect(mustRead(p, "actuator.state")).To(Equal("OPEN"))
			Expect(mustRead(p, "actuator.limit_switch_open")).To(Equal(true))
		})

		It("should consume the reset pulse", func() {
			Expect(p.Write("actuator.reset", true)).To(Succeed())
			p.Step()
			Expect(mustRead(p, "actuator.reset")).To(Equal(false))
		})
	})

	Describe("control valve", func() {
		It("should hold the opening during dead time", func() {
			Expect(p.Write("valve.error_model_enabled", true)).To(Succeed())
			Expect(p.Write("valve.dead_time", 0.5)).To(Succeed())
			Expect(p.Write("valve.control_signal", 80)).To(Succeed())

			for i := 0; i < 4; i++ {
				p.Step()
			}
			Expect(mustRead(p, "valve.valve_opening")).To(Equal(physics.DefaultControlSignal))
			p.Step()
			p.Step()
			Expect(mustRead(p, "valve.valve_opening")).To(Equal(80.0))
		})

		It("should expose the flow loop gains", func() {
			Expect(mustRead(p, "valve.pid_kp")).To(Equal(config.DefaultKp))
			Expect(p.Write("valve.pid_ki", 1.5)).To(Succeed())
			Expect(mustRead(p, "valve.pid_ki")).To(Equal(1.5))
			err := p.Write("valve.pid_kd", -1.0)
			Expect(errors.Is(err, dynamo.ErrParameterBounds)).To(BeTrue())
		})

		It("should reach the flow setpoint in auto mode", func() {
			Expect(p.Write("valve.valve_characteristic", "linear")).To(Succeed())
			Expect(p.Write("valve.flow_setpoint", 5.0)).To(Succeed())
			Expect(p.Write("valve.auto_mode", true)).To(Succeed())

			err := p.Write("valve.control_signal", 10)
			Expect(errors.Is(err, dynamo.ErrReadOnly)).To(BeTrue())

			_, err = p.Run(context.Background(), 500)
			Expect(err).ToNot(HaveOccurred())
			flow := mustRead(p, "valve.flow").(float64)
			Expect(math.Abs(flow - 5.0)).To(BeNumerically("<", 1e-3))
		})
	})

	It("should serialize writes with stepping", func() {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer GinkgoRecover()
			defer wg.Done()
			for i := 0; i < 200; i++ {
				p.Step()
			}
		}()
		go func() {
			defer GinkgoRecover()
			defer wg.Done()
			for i := 0; i < 200; i++ {
				Expect(p.Write("separator.valve_gas", float64(i%100))).To(Succeed())
				_, err := p.Read("separator.pressure")
				Expect(err).ToNot(HaveOccurred())
			}
		}()
		wg.Wait()
		Expect(p.Last().Cycle.Index).To(Equal(200))
	})
})
