package simulation_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/procsim/sim/simulation"
)

func writeConfig(content string) string {
	path := filepath.Join(GinkgoT().TempDir(), "experiment.yaml")
	Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())

	return path
}

func setEnv(key, value string) {
	Expect(os.Setenv(key, value)).To(Succeed())
	DeferCleanup(os.Unsetenv, key)
}

var _ = Describe("Experiment", func() {
	It("should load a YAML file", func() {
		path := writeConfig(`
name: bank
replications: 5
replication_length: 480
warm_up_length: 60
max_wall_clock: 30s
seed: 42
advance_streams: false
params:
  arrival_mean: 1.5
`)

		exp, err := simulation.LoadExperiment(path)

		Expect(err).NotTo(HaveOccurred())
		Expect(exp.Name).To(Equal("bank"))
		Expect(exp.NumReplications).To(Equal(5))
		Expect(exp.LengthOfReplication).To(Equal(480.0))
		Expect(exp.LengthOfWarmUp).To(Equal(60.0))
		Expect(exp.MaxWallClock).To(Equal(30 * time.Second))
		Expect(exp.BaseSeed).To(Equal(int64(42)))
		Expect(exp.AdvanceStreams).To(BeFalse())
		Expect(exp.Param("arrival_mean", 0)).To(Equal(1.5))
		Expect(exp.Param("service_mean", 2)).To(Equal(2.0))
	})

	It("should keep the defaults of missing keys", func() {
		exp, err := simulation.LoadExperiment(writeConfig("name: short\n"))

		Expect(err).NotTo(HaveOccurred())
		Expect(exp.NumReplications).To(Equal(1))
		Expect(exp.AdvanceStreams).To(BeTrue())
	})

	It("should reject unknown keys", func() {
		_, err := simulation.LoadExperiment(writeConfig("replicationz: 3\n"))

		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("parsing experiment config"))
	})

	It("should report a missing file", func() {
		_, err := simulation.LoadExperiment(
			filepath.Join(GinkgoT().TempDir(), "missing.yaml"))

		Expect(err).To(MatchError(os.ErrNotExist))
	})

	It("should reject invalid settings", func() {
		_, err := simulation.LoadExperiment(writeConfig(`
replication_length: 10
warm_up_length: 20
`))

		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("must be shorter"))
	})

	It("should let the environment override the file", func() {
		setEnv("PROCSIM_REPLICATIONS", "7")
		setEnv("PROCSIM_SEED", "99")
		setEnv("PROCSIM_MAX_WALL_CLOCK", "2m")

		exp, err := simulation.LoadExperiment(writeConfig(`
replications: 2
seed: 1
`))

		Expect(err).NotTo(HaveOccurred())
		Expect(exp.NumReplications).To(Equal(7))
		Expect(exp.BaseSeed).To(Equal(int64(99)))
		Expect(exp.MaxWallClock).To(Equal(2 * time.Minute))
	})

	It("should report malformed environment values", func() {
		setEnv("PROCSIM_REPLICATION_LENGTH", "long")

		exp := simulation.DefaultExperiment()
		err := simulation.ApplyEnv(&exp)

		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("PROCSIM_REPLICATION_LENGTH"))
	})

	DescribeTable("validation",
		func(mutate func(e *simulation.Experiment), valid bool) {
			exp := simulation.DefaultExperiment()
			mutate(&exp)

			if valid {
				Expect(exp.Validate()).To(Succeed())
			} else {
				Expect(exp.Validate()).NotTo(Succeed())
			}
		},
		Entry("default", func(*simulation.Experiment) {}, true),
		Entry("no replication", func(e *simulation.Experiment) {
			e.NumReplications = 0
		}, false),
		Entry("negative length", func(e *simulation.Experiment) {
			e.LengthOfReplication = -1
		}, false),
		Entry("negative warm-up", func(e *simulation.Experiment) {
			e.LengthOfWarmUp = -1
		}, false),
		Entry("warm-up without length", func(e *simulation.Experiment) {
			e.LengthOfWarmUp = 5
		}, true),
		Entry("negative wall clock", func(e *simulation.Experiment) {
			e.MaxWallClock = -time.Second
		}, false),
	)
})
