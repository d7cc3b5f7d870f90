// Package monitoring turns a running simulation into a web server, so that the
// simulation can be inspected and controlled while it runs.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	// Enable profiling
	_ "net/http/pprof"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"
	"github.com/syifan/goseth"

	"github.com/sarchlab/procsim/monitoring/web"
	"github.com/sarchlab/procsim/sim/hooking"
	"github.com/sarchlab/procsim/sim/simulation"
)

// Monitor can turn a simulation into a server and allows external monitoring
// and controlling of the simulation.
type Monitor struct {
	sim         *simulation.Simulation
	stop        func()
	portNumber  int
	openBrowser bool
	logger      logrus.FieldLogger

	server   *http.Server
	listener net.Listener

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
	replicationBar   *ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{logger: logrus.StandardLogger()}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.logger.WithField("port", portNumber).
			Warn("monitoring port not allowed, using a random port instead")

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes the monitor open the default browser when the server
// starts.
func (m *Monitor) WithBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// WithLogger sets the logger of the monitor.
func (m *Monitor) WithLogger(logger logrus.FieldLogger) *Monitor {
	m.logger = logger
	return m
}

// WithStopFunc sets what the stop endpoint calls. By default it stops the
// running replication only.
func (m *Monitor) WithStopFunc(stop func()) *Monitor {
	m.stop = stop
	return m
}

// RegisterSimulation sets the simulation to monitor. A progress bar tracks the
// finished replications.
func (m *Monitor) RegisterSimulation(s *simulation.Simulation) {
	m.sim = s
	m.replicationBar = m.CreateProgressBar(
		"Replications", uint64(s.Experiment().NumReplications))

	s.AcceptHook(hooking.NewHookFunc(func(ctx hooking.HookCtx) {
		switch ctx.Pos {
		case simulation.HookPosReplicationStart:
			m.replicationBar.IncrementInProgress(1)
		case simulation.HookPosReplicationEnd:
			m.replicationBar.MoveInProgressToFinished(1)
		}
	}))
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

func (m *Monitor) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseExecutive)
	r.HandleFunc("/api/continue", m.continueExecutive)
	r.HandleFunc("/api/stop", m.stopSimulation)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/list_elements", m.listElements)
	r.HandleFunc("/api/element/{name}", m.listElementDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/queues", m.listQueues)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns the URL it
// listens on.
func (m *Monitor) StartServer() (string, error) {
	if m.sim == nil {
		return "", fmt.Errorf("monitoring: no simulation registered")
	}

	addr := ":" + strconv.Itoa(m.portNumber)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("monitoring: listening on %s: %w", addr, err)
	}

	m.listener = listener
	m.server = &http.Server{
		Handler:           m.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	m.logger.WithField("url", url).Info("monitoring simulation")

	go func() {
		err := m.server.Serve(listener)
		if err != nil && err != http.ErrServerClosed {
			m.logger.WithError(err).Error("monitoring server stopped")
		}
	}()

	if m.openBrowser {
		browser.Stdout = os.Stderr
		if err := browser.OpenURL(url); err != nil {
			m.logger.WithError(err).Warn("cannot open the browser")
		}
	}

	return url, nil
}

// StopServer shuts the web server down.
func (m *Monitor) StopServer() error {
	if m.server == nil {
		return nil
	}

	return m.server.Close()
}

func (m *Monitor) pauseExecutive(w http.ResponseWriter, _ *http.Request) {
	m.sim.Executive().Pause()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueExecutive(w http.ResponseWriter, _ *http.Request) {
	m.sim.Executive().Continue()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) stopSimulation(w http.ResponseWriter, _ *http.Request) {
	if m.stop != nil {
		m.stop()
	} else {
		m.sim.Executive().Stop()
	}

	m.sim.Executive().Continue()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	exec := m.sim.Executive()

	fmt.Fprintf(w, "{\"now\":%.10f,\"replication\":%d,\"events\":%d}",
		exec.Now(), m.sim.Replication(), exec.NumDispatched())
}

func (m *Monitor) listElements(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0)
	for _, e := range m.sim.Elements() {
		names = append(names, e.Name())
	}

	m.writeJSON(w, names)
}

func (m *Monitor) listElementDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	element := m.findElementOr404(w, name)
	if element == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(element)
	serializer.SetMaxDepth(1)

	if err := serializer.Serialize(w); err != nil {
		m.logger.WithError(err).WithField("element", name).
			Error("cannot serialize element")
	}
}

type fieldReq struct {
	ElementName string `json:"element_name,omitempty"`
	FieldName   string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	element := m.findElementOr404(w, req.ElementName)
	if element == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(element)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	if err := serializer.Serialize(w); err != nil {
		m.logger.WithError(err).WithField("element", req.ElementName).
			Error("cannot serialize field")
	}
}

func (m *Monitor) findElementOr404(
	w http.ResponseWriter,
	name string,
) simulation.Element {
	element := m.sim.GetElementByName(name)

	if element == nil {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "Element not found")
	}

	return element
}

func (m *Monitor) listQueues(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	levels := sortQueueLevels(collectQueueLevels(m.sim.Elements()))
	if limit > 0 && limit < len(levels) {
		levels = levels[:limit]
	}

	m.writeJSON(w, levels)
}

func parseLimit(r *http.Request) (int, error) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return 0, nil
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, err
	}

	if limit < 0 {
		return 0, fmt.Errorf("limit must not be negative, got %d", limit)
	}

	return limit, nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressSnapshot, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	m.writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		m.internalError(w, err)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		m.internalError(w, err)
		return
	}

	memory, err := proc.MemoryInfo()
	if err != nil {
		m.internalError(w, err)
		return
	}

	m.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memory.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		m.internalError(w, err)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		m.internalError(w, err)
		return
	}

	m.writeJSON(w, prof)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		m.internalError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if _, err := w.Write(data); err != nil {
		m.logger.WithError(err).Debug("cannot write response")
	}
}

func (m *Monitor) internalError(w http.ResponseWriter, err error) {
	m.logger.WithError(err).Error("monitoring request failed")
	w.WriteHeader(http.StatusInternalServerError)
	fmt.Fprintf(w, "Error: %s", err)
}

// queueLevel is the occupation of one queue-like element.
type queueLevel struct {
	Name     string `json:"queue"`
	Level    int    `json:"level"`
	Capacity int    `json:"cap"`
}

type boundedQueue interface {
	Size() int
	Capacity() int
}

type waitingLine interface {
	Name() string
	Len() int
}

type queuedResource interface {
	NumWaiting() int
	Capacity() int
}

func collectQueueLevels(elements []simulation.Element) []queueLevel {
	levels := make([]queueLevel, 0)

	for _, e := range elements {
		switch q := e.(type) {
		case boundedQueue:
			levels = append(levels, queueLevel{
				Name: e.Name(), Level: q.Size(), Capacity: q.Capacity(),
			})
		case queuedResource:
			levels = append(levels, queueLevel{
				Name: e.Name(), Level: q.NumWaiting(), Capacity: -1,
			})
		case waitingLine:
			levels = append(levels, queueLevel{
				Name: e.Name(), Level: q.Len(), Capacity: -1,
			})
		}
	}

	return levels
}

func sortQueueLevels(levels []queueLevel) []queueLevel {
	sort.SliceStable(levels, func(i, j int) bool {
		if levels[i].Level != levels[j].Level {
			return levels[i].Level > levels[j].Level
		}

		return levels[i].Name < levels[j].Name
	})

	return levels
}
