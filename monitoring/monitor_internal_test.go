package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/procsim/sim/channel"
	"github.com/sarchlab/procsim/sim/resource"
	"github.com/sarchlab/procsim/sim/simulation"
)

var _ = Describe("Monitor", func() {
	var (
		s     *simulation.Simulation
		lobby *channel.BlockingQueue[int]
		m     *Monitor
	)

	get := func(url string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		m.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))

		return rec
	}

	BeforeEach(func() {
		exp := simulation.DefaultExperiment()
		exp.NumReplications = 3
		exp.LengthOfReplication = 5

		s = simulation.MakeBuilder().WithExperiment(exp).Build()
		resource.MakeBuilder().WithModel(s).WithCapacity(2).Build("teller")
		lobby = channel.MakeBuilder[int]().
			WithModel(s).
			WithCapacity(4).
			Build("lobby")

		m = NewMonitor()
		m.RegisterSimulation(s)
	})

	It("should replace a reserved port with a random one", func() {
		m.WithPortNumber(80)
		Expect(m.portNumber).To(Equal(0))

		m.WithPortNumber(8080)
		Expect(m.portNumber).To(Equal(8080))
	})

	It("should list the elements", func() {
		rec := get("/api/list_elements")

		var names []string
		Expect(json.Unmarshal(rec.Body.Bytes(), &names)).To(Succeed())
		Expect(names).To(Equal([]string{"teller", "lobby"}))
	})

	It("should answer 404 for unknown elements", func() {
		rec := get("/api/element/vault")

		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("should reject malformed field requests", func() {
		rec := get("/api/field/not-json")

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("should sort the queues by level", func() {
		lobby.SendToChannel(1)
		lobby.SendToChannel(2)

		rec := get("/api/queues")

		var levels []queueLevel
		Expect(json.Unmarshal(rec.Body.Bytes(), &levels)).To(Succeed())
		Expect(levels).To(Equal([]queueLevel{
			{Name: "lobby", Level: 2, Capacity: 4},
			{Name: "teller", Level: 0, Capacity: -1},
		}))
	})

	It("should limit the number of queues", func() {
		rec := get("/api/queues?limit=1")

		var levels []queueLevel
		Expect(json.Unmarshal(rec.Body.Bytes(), &levels)).To(Succeed())
		Expect(levels).To(HaveLen(1))

		Expect(get("/api/queues?limit=-1").Code).
			To(Equal(http.StatusBadRequest))
	})

	It("should track the finished replications", func() {
		Expect(s.Run(context.Background())).To(Succeed())

		rec := get("/api/progress")

		var bars []progressSnapshot
		Expect(json.Unmarshal(rec.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Name).To(Equal("Replications"))
		Expect(bars[0].Total).To(Equal(uint64(3)))
		Expect(bars[0].Finished).To(Equal(uint64(3)))
		Expect(bars[0].InProgress).To(Equal(uint64(0)))
	})

	It("should report the simulated time", func() {
		Expect(s.Run(context.Background())).To(Succeed())

		rec := get("/api/now")

		var now struct {
			Now         float64 `json:"now"`
			Replication int     `json:"replication"`
		}
		Expect(json.Unmarshal(rec.Body.Bytes(), &now)).To(Succeed())
		Expect(now.Now).To(Equal(5.0))
		Expect(now.Replication).To(Equal(2))
	})

	It("should pause and continue the executive", func() {
		Expect(get("/api/pause").Code).To(Equal(http.StatusOK))
		Expect(get("/api/continue").Code).To(Equal(http.StatusOK))

		Expect(s.Run(context.Background())).To(Succeed())
	})

	It("should call the stop function", func() {
		stopped := false
		m.WithStopFunc(func() { stopped = true })

		Expect(get("/api/stop").Code).To(Equal(http.StatusOK))
		Expect(stopped).To(BeTrue())
	})

	It("should remove completed progress bars", func() {
		bar := m.CreateProgressBar("extra", 10)
		Expect(m.progressBars).To(HaveLen(2))

		m.CompleteProgressBar(bar)

		Expect(m.progressBars).To(HaveLen(1))
	})

	It("should serve the web page", func() {
		rec := get("/")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(HavePrefix("<!DOCTYPE html>"))
	})
})

var _ = Describe("ProgressBar", func() {
	It("should move in-progress items to finished", func() {
		b := &ProgressBar{Total: 10}

		b.IncrementInProgress(3)
		b.MoveInProgressToFinished(2)
		b.IncrementFinished(1)

		snap := b.snapshot()
		Expect(snap.InProgress).To(Equal(uint64(1)))
		Expect(snap.Finished).To(Equal(uint64(3)))
	})
})
