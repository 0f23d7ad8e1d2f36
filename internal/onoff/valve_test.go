package onoff_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/fieldsim/internal/dynamo"
	"github.com/san-kum/fieldsim/internal/onoff"
)

var allOn = [onoff.MaxSolenoids]bool{true, true, true}

var _ = Describe("Valve", func() {
	var v *onoff.Valve

	BeforeEach(func() {
		v = onoff.NewValve(onoff.DefaultConfig())
	})

	It("should start closed on the closed limit switch", func() {
		Expect(v.Status.Current).To(Equal(onoff.Closed))
		Expect(v.Status.LimitClosed).To(BeTrue())
		Expect(v.Status.LimitOpen).To(BeFalse())
		Expect(v.Status.Moving).To(BeFalse())
	})

	It("should stay closed unless every solenoid is energized", func() {
		v.Inputs.Solenoids = [onoff.MaxSolenoids]bool{true, true, false}
		for i := 0; i < 100; i++ {
			v.Update(100)
		}
		Expect(v.Status.Current).To(Equal(onoff.Closed))
	})

	It("should only count configured solenoids", func() {
		v.Config.SolenoidCount = 2
		v.Inputs.Solenoids = [onoff.MaxSolenoids]bool{true, true, false}
		v.Update(100)
		Expect(v.Status.Current).To(Equal(onoff.Opening))
		Expect(v.Status.Energized).To(Equal([onoff.MaxSolenoids]bool{true, true, false}))
	})

	Context("when opening", func() {
		BeforeEach(func() {
			v.Inputs.Solenoids = allOn
			v.Update(100)
		})

		It("should reset the timer and report motion", func() {
			Expect(v.Status.Current).To(Equal(onoff.Opening))
			Expect(v.Status.Timer).To(BeZero())
			Expect(v.Status.Moving).To(BeTrue())
			Expect(v.Status.Target).To(Equal(onoff.Open))
			Expect(v.Status.LimitClosed).To(BeFalse())
		})

		It("should reach open exactly when the travel time is accumulated", func() {
			cycles := int(onoff.DefaultTravelTimeMs / 100)
			for i := 1; i < cycles; i++ {
				v.Update(100)
				Expect(v.Status.Current).To(Equal(onoff.Opening), "cycle %d", i)
			}
			v.Update(100)
			Expect(v.Status.Current).To(Equal(onoff.Open))
			Expect(v.Status.Moving).To(BeFalse())
			Expect(v.Status.LimitOpen).To(BeTrue())
		})

		It("should honour uneven cycle lengths", func() {
			v.Config.TravelTimeMs = 250
			v.Update(100)
			v.Update(100)
			Expect(v.Status.Current).To(Equal(onoff.Opening))
			v.Update(100)
			Expect(v.Status.Current).To(Equal(onoff.Open))
		})

		It("should finish the stroke even if a solenoid drops", func() {
			v.Config.TravelTimeMs = 300
			v.Inputs.Solenoids[onoff.PCS] = false
			v.Update(100)
			Expect(v.Status.Current).To(Equal(onoff.Opening))
			v.Update(100)
			v.Update(100)
			Expect(v.Status.Current).To(Equal(onoff.Open))
			v.Update(100)
			Expect(v.Status.Current).To(Equal(onoff.Closing))
		})
	})

	Context("when open", func() {
		BeforeEach(func() {
			v.Config.TravelTimeMs = 200
			v.Inputs.Solenoids = allOn
			for v.Status.Current != onoff.Open {
				v.Update(100)
			}
		})

		It("should never jump straight to closed", func() {
			v.Inputs.Solenoids[onoff.ESD] = false
			v.Update(100)
			Expect(v.Status.Current).To(Equal(onoff.Closing))
			Expect(v.Status.Moving).To(BeTrue())
			v.Update(100)
			Expect(v.Status.Current).To(Equal(onoff.Closing))
			v.Update(100)
			Expect(v.Status.Current).To(Equal(onoff.Closed))
			Expect(v.Status.LimitClosed).To(BeTrue())
		})

		It("should reopen after a trip when not latching", func() {
			v.Inputs.Solenoids[onoff.ESD] = false
			for v.Status.Current != onoff.Closed {
				v.Update(100)
			}
			v.Inputs.Solenoids = allOn
			v.Update(100)
			Expect(v.Status.Current).To(Equal(onoff.Opening))
		})
	})

	Context("with ESD latching", func() {
		BeforeEach(func() {
			v.Config.ESDLatching = true
			v.Config.TravelTimeMs = 200
			v.Inputs.Solenoids = allOn
			for v.Status.Current != onoff.Open {
				v.Update(100)
			}
			v.Inputs.Solenoids[onoff.ESD] = false
			for v.Status.Current != onoff.Closed {
				v.Update(100)
			}
			v.Inputs.Solenoids = allOn
		})

		It("should hold the valve closed until reset", func() {
			Expect(v.Status.ESDLatched).To(BeTrue())
			for i := 0; i < 10; i++ {
				v.Update(100)
			}
			Expect(v.Status.Current).To(Equal(onoff.Closed))
		})

		It("should open again once reset", func() {
			v.Inputs.Reset = true
			v.Update(100)
			Expect(v.Inputs.Reset).To(BeFalse())
			Expect(v.Status.ESDLatched).To(BeFalse())
			Expect(v.Status.Current).To(Equal(onoff.Opening))
		})

		It("should not latch on PSD trips", func() {
			v.Inputs.Reset = true
			v.Update(100)
			for v.Status.Current != onoff.Open {
				v.Update(100)
			}
			v.Inputs.Solenoids[onoff.PSD] = false
			for v.Status.Current != onoff.Closed {
				v.Update(100)
			}
			Expect(v.Status.ESDLatched).To(BeFalse())
		})
	})

	Context("in fault", func() {
		BeforeEach(func() {
			v.Status.Current = onoff.State(42)
			v.Update(100)
		})

		It("should fault on an unknown state", func() {
			Expect(v.Status.Current).To(Equal(onoff.Fault))
			Expect(v.Status.Fault).To(BeTrue())
		})

		It("should ignore everything but reset", func() {
			v.Inputs.Solenoids = allOn
			for i := 0; i < 20; i++ {
				v.Update(100)
				Expect(v.Status.Current).To(Equal(onoff.Fault))
			}
			v.Inputs.Solenoids = [onoff.MaxSolenoids]bool{}
			v.Update(100)
			Expect(v.Status.Current).To(Equal(onoff.Fault))
			Expect(v.Status.Fault).To(BeTrue())
		})

		It("should return to closed on reset and consume it", func() {
			v.Inputs.Reset = true
			v.Update(100)
			Expect(v.Status.Current).To(Equal(onoff.Closed))
			Expect(v.Status.Fault).To(BeFalse())
			Expect(v.Inputs.Reset).To(BeFalse())
		})
	})

	Describe("setters", func() {
		It("should reject a non-positive travel time", func() {
			err := v.SetTravelTime(0)
			Expect(errors.Is(err, dynamo.ErrParameterBounds)).To(BeTrue())
			Expect(v.Config.TravelTimeMs).To(Equal(uint32(onoff.DefaultTravelTimeMs)))
			Expect(v.SetTravelTime(1500)).To(Succeed())
			Expect(v.Config.TravelTimeMs).To(Equal(uint32(1500)))
		})

		It("should reject an unknown solenoid", func() {
			Expect(v.SetSolenoid(onoff.Solenoid(3), true)).ToNot(Succeed())
			Expect(v.SetSolenoid(onoff.PSD, true)).To(Succeed())
			Expect(v.Inputs.Solenoids[onoff.PSD]).To(BeTrue())
		})
	})
})

var _ = Describe("Transition", func() {
	It("should not mutate its input", func() {
		st := onoff.NewStatus()
		in := onoff.Inputs{Solenoids: allOn}
		next, consumed := onoff.Transition(st, onoff.DefaultConfig(), in, 100)
		Expect(consumed).To(BeFalse())
		Expect(next.Current).To(Equal(onoff.Opening))
		Expect(st.Current).To(Equal(onoff.Closed))
	})

	It("should report a consumed reset pulse", func() {
		st := onoff.NewStatus()
		_, consumed := onoff.Transition(st, onoff.DefaultConfig(), onoff.Inputs{Reset: true}, 100)
		Expect(consumed).To(BeTrue())
	})

	It("should name every state", func() {
		Expect(onoff.Closing.String()).To(Equal("CLOSING"))
		Expect(onoff.State(9).String()).To(Equal("UNKNOWN"))
	})

	It("should parse state names back", func() {
		for s := onoff.Closed; s <= onoff.Fault; s++ {
			parsed, err := onoff.ParseState(s.String())
			Expect(err).ToNot(HaveOccurred())
			Expect(parsed).To(Equal(s))
		}
		_, err := onoff.ParseState("UNKNOWN")
		Expect(err).To(HaveOccurred())
	})
})
