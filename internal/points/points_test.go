package points_test

import (
	"errors"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/fieldsim/internal/dynamo"
	"github.com/san-kum/fieldsim/internal/points"
)

var _ = Describe("Table", func() {
	var (
		table  *points.Table
		mu     sync.Mutex
		level  float64
		active bool
		mode   string
	)

	BeforeEach(func() {
		table = points.NewTable()
		level = 1.5
		active = false
		mode = "linear"

		table.Float(points.Point{ID: "tank.level", Unit: "m", Desc: "level"}, &mu,
			func() float64 { return level }, nil)
		table.Float(points.Point{ID: "tank.setpoint", Unit: "m", Min: 0, Max: 10, Desc: "setpoint"}, &mu,
			func() float64 { return level },
			func(v float64) error {
				if v < 0 {
					return fmt.Errorf("%w: negative", dynamo.ErrParameterBounds)
				}
				level = v
				return nil
			})
		table.Bool(points.Point{ID: "tank.active", Desc: "active"}, &mu,
			func() bool { return active },
			func(v bool) error { active = v; return nil })
		table.Enum(points.Point{ID: "tank.mode", Options: []string{"linear", "equal_percentage"}, Desc: "mode"}, &mu,
			func() string { return mode },
			func(v string) error { mode = v; return nil })
		table.Text(points.Point{ID: "tank.state", Desc: "state"}, &mu,
			func() string { return "IDLE" })
	})

	It("should list points sorted with access set", func() {
		list := table.List()
		Expect(list).To(HaveLen(5))
		Expect(list[0].ID).To(Equal("tank.active"))
		Expect(list[0].Access).To(Equal(points.ReadWrite))
		Expect(list[1].ID).To(Equal("tank.level"))
		Expect(list[1].Access).To(Equal(points.ReadOnly))
		Expect(list[1].Kind).To(Equal(points.Float))
		Expect(list[1].Owner()).To(Equal("tank"))
	})

	It("should read typed values", func() {
		v, err := table.Read("tank.level")
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal(1.5))

		v, err = table.Read("tank.state")
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal("IDLE"))
	})

	It("should reject unknown points", func() {
		_, err := table.Read("tank.missing")
		Expect(errors.Is(err, dynamo.ErrUnknownPoint)).To(BeTrue())
		err = table.Write("tank.missing", 1.0)
		Expect(errors.Is(err, dynamo.ErrUnknownPoint)).To(BeTrue())
	})

	It("should reject writes to read-only points", func() {
		err := table.Write("tank.level", 3.0)
		Expect(errors.Is(err, dynamo.ErrReadOnly)).To(BeTrue())
		Expect(level).To(Equal(1.5))
	})

	It("should coerce strings and integers", func() {
		Expect(table.Write("tank.setpoint", "4.25")).To(Succeed())
		Expect(level).To(Equal(4.25))
		Expect(table.Write("tank.setpoint", 7)).To(Succeed())
		Expect(level).To(Equal(7.0))
		Expect(table.Write("tank.active", "true")).To(Succeed())
		Expect(active).To(BeTrue())
		Expect(table.Write("tank.active", 0)).To(Succeed())
		Expect(active).To(BeFalse())
	})

	It("should report type mismatches", func() {
		err := table.Write("tank.setpoint", "abc")
		Expect(errors.Is(err, dynamo.ErrTypeMismatch)).To(BeTrue())
		err = table.Write("tank.active", 2)
		Expect(errors.Is(err, dynamo.ErrTypeMismatch)).To(BeTrue())
		err = table.Write("tank.setpoint", true)
		Expect(errors.Is(err, dynamo.ErrTypeMismatch)).To(BeTrue())
	})

	It("should wrap setter errors with the point and value", func() {
		err := table.Write("tank.setpoint", -1.0)
		Expect(errors.Is(err, dynamo.ErrParameterBounds)).To(BeTrue())

		var pe *dynamo.PointError
		Expect(errors.As(err, &pe)).To(BeTrue())
		Expect(pe.Point).To(Equal("tank.setpoint"))
		Expect(pe.Value).To(Equal(-1.0))
		Expect(level).To(Equal(1.5))
	})

	It("should accept enum names and indices", func() {
		Expect(table.Write("tank.mode", "EQUAL_PERCENTAGE")).To(Succeed())
		Expect(mode).To(Equal("equal_percentage"))
		Expect(table.Write("tank.mode", 0)).To(Succeed())
		Expect(mode).To(Equal("linear"))
		Expect(table.Write("tank.mode", "1")).To(Succeed())
		Expect(mode).To(Equal("equal_percentage"))

		err := table.Write("tank.mode", "quick_opening")
		Expect(errors.Is(err, dynamo.ErrParameterBounds)).To(BeTrue())
		err = table.Write("tank.mode", 2)
		Expect(errors.Is(err, dynamo.ErrParameterBounds)).To(BeTrue())
	})

	It("should reject non-finite floats", func() {
		err := table.Write("tank.setpoint", "NaN")
		Expect(errors.Is(err, dynamo.ErrParameterBounds)).To(BeTrue())
	})

	It("should read everything at once", func() {
		all := table.ReadAll()
		Expect(all).To(HaveLen(5))
		Expect(all).To(HaveKeyWithValue("tank.mode", "linear"))
	})

	It("should refuse duplicate registrations", func() {
		Expect(func() {
			table.Text(points.Point{ID: "tank.state"}, &mu, func() string { return "" })
		}).To(Panic())
	})

	It("should serialize writes from many goroutines", func() {
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer GinkgoRecover()
				defer wg.Done()
				Expect(table.Write("tank.setpoint", float64(i))).To(Succeed())
			}(i)
		}
		wg.Wait()
		v, err := table.Read("tank.setpoint")
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(BeNumerically(">=", 0))
	})
})

var _ = Describe("Coerce", func() {
	It("should map kinds to Go types", func() {
		v, err := points.Coerce(points.Point{Kind: points.Bool}, "on")
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal(true))

		v, err = points.Coerce(points.Point{Kind: points.Float}, float32(2.5))
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal(2.5))
	})
})
