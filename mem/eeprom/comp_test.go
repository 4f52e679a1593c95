package eeprom

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/eepromsim/logic"
	"github.com/sarchlab/eepromsim/persistence"
	"github.com/sarchlab/eepromsim/sim"
	"github.com/sarchlab/eepromsim/tracing"
)

var _ = Describe("Comp", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *sim.SerialEngine
		registry *Registry
		store    *persistence.MemStore
		saver    *MockContentSaver
		ctx      context.Context
		builder  Builder
		c        *Comp
	)

	drive := func(group string, v logic.Vector) {
		logic.Drive(c.Bus().Group(group), v)
	}

	output := func() []byte {
		return logic.Sample(c.Bus().Group(GroupDataOut)).Bytes()
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = sim.NewSerialEngine()
		registry = NewRegistry()
		store = persistence.NewMemStore()
		saver = NewMockContentSaver(mockCtrl)
		ctx = context.Background()

		builder = MakeBuilder().
			WithEngine(engine).
			WithFreq(1 * sim.MHz).
			WithGeometry(Geometry{AddressBits: 2, WordBytes: 1}).
			WithRegistry(registry).
			WithStore(store).
			WithSaver(saver).
			WithAutoPersist(true)

		var err error
		c, err = builder.WithID("rom").Build("EEPROM")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should expose the pins of the geometry", func() {
		bus := c.Bus()

		Expect(bus.Pin("WE")).NotTo(BeNil())
		Expect(bus.Pin("A1")).To(BeIdenticalTo(bus.Group(GroupAddress)[0]))
		Expect(bus.Pin("A0")).To(BeIdenticalTo(bus.Group(GroupAddress)[1]))
		Expect(bus.Group(GroupDataIn)).To(HaveLen(8))
		Expect(bus.Pin("D7")).To(BeIdenticalTo(bus.Group(GroupDataIn)[0]))
		Expect(bus.Pin("Q0").Direction()).To(Equal(logic.Output))
		Expect(bus.Pins()).To(HaveLen(1 + 2 + 8 + 8))
	})

	It("should drive the word at the address onto the outputs", func() {
		Expect(c.FlashBinary(ctx, []byte{0x10, 0x20, 0x30, 0x40})).To(Succeed())

		drive(GroupAddress, logic.Vector{1, 0})
		Expect(engine.Run()).To(Succeed())

		Expect(output()).To(Equal([]byte{0x30}))
	})

	It("should write through the bus and save once", func() {
		Expect(c.FlashBinary(ctx, []byte{0x10, 0x20, 0x30, 0x40})).To(Succeed())
		saver.EXPECT().SaveLater("rom", []byte{0x10, 0x20, 0x55, 0x40}).Times(1)

		drive(GroupAddress, logic.Vector{1, 0})
		drive(GroupDataIn, logic.VectorFromUint(0x55, 8))
		c.Bus().Pin("WE").ReceiveSignal(logic.High)
		Expect(engine.Run()).To(Succeed())

		Expect(output()).To(Equal([]byte{0x55}))
		contents, err := c.DumpBinary()
		Expect(err).NotTo(HaveOccurred())
		Expect(contents).To(Equal([]byte{0x10, 0x20, 0x55, 0x40}))
		Expect(c.Stats().Writes).To(Equal(uint64(1)))
	})

	It("should stop ticking when nothing changes", func() {
		drive(GroupAddress, logic.Vector{0, 1})
		Expect(engine.Run()).To(Succeed())

		Expect(engine.CurrentTime()).To(BeNumerically("<", 2*(1*sim.MHz).Period()))
	})

	It("should trace reads, writes and faults", func() {
		tracer := tracing.NewStepCountTracer(tracing.KindIs("eeprom"))
		tracing.CollectTrace(c, tracer)
		saver.EXPECT().SaveLater("rom", gomock.Any())

		drive(GroupAddress, logic.Vector{1, 1})
		Expect(engine.Run()).To(Succeed())

		drive(GroupDataIn, logic.VectorFromUint(0x01, 8))
		c.Bus().Pin("WE").ReceiveSignal(logic.High)
		Expect(engine.Run()).To(Succeed())

		c.Bus().Pin("WE").ReceiveSignal(logic.Low)
		c.Bus().Group(GroupAddress)[0].ReceiveSignal(2)
		Expect(engine.Run()).To(Succeed())

		Expect(tracer.GetWhatCount("write")).To(BeNumerically(">=", 1))
		Expect(tracer.GetWhatCount("read")).To(BeNumerically(">=", 1))
		Expect(tracer.GetTaskCount("fault")).To(BeNumerically(">=", 1))
	})

	It("should share memory between chips with the same id", func() {
		other, err := builder.WithID("rom").Build("EEPROM Copy")
		Expect(err).NotTo(HaveOccurred())

		Expect(c.FlashBinary(ctx, []byte{1, 2, 3, 4})).To(Succeed())

		contents, err := other.DumpBinary()
		Expect(err).NotTo(HaveOccurred())
		Expect(contents).To(Equal([]byte{1, 2, 3, 4}))
	})

	It("should generate distinct ids", func() {
		a, err := builder.Build("A")
		Expect(err).NotTo(HaveOccurred())
		b, err := builder.Build("B")
		Expect(err).NotTo(HaveOccurred())

		Expect(a.ID()).To(Equal("EEPROM 1"))
		Expect(b.ID()).To(Equal("EEPROM 2"))
		Expect(a.MemoryEngine().Array()).NotTo(BeIdenticalTo(b.MemoryEngine().Array()))
	})

	It("should reject invalid geometries", func() {
		_, err := builder.WithAddressBusBytes(0).Build("Bad")

		var cfgErr *ConfigurationError
		Expect(errors.As(err, &cfgErr)).To(BeTrue())
		Expect(errors.Is(err, ErrInvalidGeometry)).To(BeTrue())
	})

	It("should reject buffers above the ceiling", func() {
		_, err := builder.WithMaxBufferSize(2).Build("Bad")

		Expect(errors.Is(err, ErrBufferTooLarge)).To(BeTrue())
	})

	It("should panic without an engine", func() {
		Expect(func() { MakeBuilder().Build("EEPROM") }).To(Panic())
	})

	Context("flashing", func() {
		It("should fit images under FlashFit and save them", func() {
			Expect(c.FlashBinary(ctx, []byte{9})).To(Succeed())

			contents, err := store.Load(ctx, "rom")
			Expect(err).NotTo(HaveOccurred())
			Expect(contents).To(Equal([]byte{9, 0, 0, 0}))
		})

		It("should reject mismatched images under FlashStrict", func() {
			strict, err := builder.
				WithID("strict").
				WithFlashPolicy(FlashStrict).
				Build("Strict")
			Expect(err).NotTo(HaveOccurred())

			err = strict.FlashBinary(ctx, []byte{1, 2, 3, 4, 5})

			Expect(errors.Is(err, ErrImageSize)).To(BeTrue())
			Expect(store.IDs()).NotTo(ContainElement("strict"))
		})

		It("should report store failures", func() {
			failing := NewMockStore(mockCtrl)
			failing.EXPECT().Save(gomock.Any(), "rom", gomock.Any()).
				Return(errors.New("disk full"))

			chip, err := builder.WithStore(failing).WithID("rom").Build("Failing")
			Expect(err).NotTo(HaveOccurred())

			Expect(chip.FlashBinary(ctx, []byte{1})).
				To(MatchError(ContainSubstring("disk full")))
		})

		It("should flash and dump files", func() {
			dir, err := os.MkdirTemp("", "eeprom")
			Expect(err).NotTo(HaveOccurred())
			defer os.RemoveAll(dir)

			in := filepath.Join(dir, "in.bin")
			out := filepath.Join(dir, "out.bin")
			Expect(os.WriteFile(in, []byte{0xDE, 0xAD, 0xBE, 0xEF}, 0o644)).
				To(Succeed())

			Expect(c.FlashFile(ctx, in)).To(Succeed())
			Expect(c.DumpFile(out)).To(Succeed())

			data, err := os.ReadFile(out)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte{0xDE, 0xAD, 0xBE, 0xEF}))

			Expect(c.FlashFile(ctx, filepath.Join(dir, "missing.bin"))).
				NotTo(Succeed())
		})
	})

	Context("saving and loading", func() {
		It("should restore geometry, identity, and contents", func() {
			Expect(c.FlashBinary(ctx, []byte{4, 3, 2, 1})).To(Succeed())

			blob, err := c.SaveMetadata(ctx)
			Expect(err).NotTo(HaveOccurred())

			restored, err := MakeBuilder().
				WithEngine(engine).
				WithRegistry(NewRegistry()).
				WithStore(store).
				Build("Restored")
			Expect(err).NotTo(HaveOccurred())

			Expect(restored.Load(ctx, blob)).To(Succeed())

			Expect(restored.ID()).To(Equal("rom"))
			Expect(restored.Geometry()).To(Equal(Geometry{2, 1}))
			Expect(restored.Bus().Group(GroupAddress)).To(HaveLen(2))
			contents, err := restored.DumpBinary()
			Expect(err).NotTo(HaveOccurred())
			Expect(contents).To(Equal([]byte{4, 3, 2, 1}))
		})

		It("should save the contents with the metadata", func() {
			Expect(c.MemoryEngine().Configure(Geometry{2, 1})).To(Succeed())
			Expect(c.MemoryEngine().Array().Write(1, []byte{7})).To(Succeed())

			_, err := c.SaveMetadata(ctx)
			Expect(err).NotTo(HaveOccurred())

			contents, err := store.Load(ctx, "rom")
			Expect(err).NotTo(HaveOccurred())
			Expect(contents).To(Equal([]byte{0, 7, 0, 0}))
		})

		It("should start from zero when nothing is stored", func() {
			Expect(c.FlashBinary(ctx, []byte{1, 1, 1, 1})).To(Succeed())

			err := c.Load(ctx, []byte(
				`{"addrBusBytesSize":1,"dataBusBytesSize":1,"id":"fresh"}`))
			Expect(err).NotTo(HaveOccurred())

			Expect(c.ID()).To(Equal("fresh"))
			contents, err := c.DumpBinary()
			Expect(err).NotTo(HaveOccurred())
			Expect(contents).To(HaveLen(256))
			Expect(contents).To(HaveEach(byte(0)))
			Expect(c.Bus().Group(GroupAddress)).To(HaveLen(8))
		})

		It("should fit stored contents of another size", func() {
			Expect(store.Save(ctx, "short", []byte{5, 6})).To(Succeed())

			err := c.Load(ctx, []byte(
				`{"addrBusBytesSize":0,"dataBusBytesSize":1,"id":"short","addressBits":2}`))
			Expect(err).NotTo(HaveOccurred())

			contents, err := c.DumpBinary()
			Expect(err).NotTo(HaveOccurred())
			Expect(contents).To(Equal([]byte{5, 6, 0, 0}))
		})

		It("should ignore an empty blob", func() {
			Expect(c.Load(ctx, nil)).To(Succeed())
			Expect(c.ID()).To(Equal("rom"))
		})

		It("should reject malformed or invalid metadata", func() {
			Expect(c.Load(ctx, []byte("{"))).NotTo(Succeed())

			err := c.Load(ctx, []byte(
				`{"addrBusBytesSize":0,"dataBusBytesSize":1,"id":"bad"}`))
			Expect(errors.Is(err, ErrInvalidGeometry)).To(BeTrue())
			Expect(c.ID()).To(Equal("rom"))
		})
	})

	It("should rebuild pins and clear memory on reconfiguration", func() {
		Expect(c.FlashBinary(ctx, []byte{1, 2, 3, 4})).To(Succeed())

		Expect(c.ReconfigureBus(Geometry{AddressBits: 3, WordBytes: 2})).
			To(Succeed())

		Expect(c.Bus().Group(GroupAddress)).To(HaveLen(3))
		Expect(c.Bus().Group(GroupDataOut)).To(HaveLen(16))
		contents, err := c.DumpBinary()
		Expect(err).NotTo(HaveOccurred())
		Expect(contents).To(Equal(make([]byte, 16)))

		Expect(c.ReconfigureBus(Geometry{})).NotTo(Succeed())
		Expect(c.Geometry()).To(Equal(Geometry{AddressBits: 3, WordBytes: 2}))
	})
})
