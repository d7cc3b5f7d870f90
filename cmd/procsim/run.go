package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/procsim/datarecording"
	"github.com/sarchlab/procsim/examples/bank"
	"github.com/sarchlab/procsim/monitoring"
	"github.com/sarchlab/procsim/sim/resource"
	"github.com/sarchlab/procsim/sim/simulation"
	"github.com/sarchlab/procsim/sim/timing"
)

type runOptions struct {
	configPath   string
	replications int
	length       float64
	seed         int64
	rule         string
	logLevel     string

	dbPath         string
	clickHouseAddr string
	clickHouseDB   string
	clickHouseUser string

	monitor     bool
	monitorPort int
	openBrowser bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an experiment of the bank model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "",
		"YAML file describing the experiment")
	f.IntVarP(&opts.replications, "replications", "n", 1,
		"Number of replications, overrides the config file")
	f.Float64Var(&opts.length, "length", 480,
		"Length of each replication in minutes, overrides the config file")
	f.Int64Var(&opts.seed, "seed", 0,
		"Base seed of the random streams, overrides the config file")
	f.StringVar(&opts.rule, "rule", "",
		"Teller capacity change rule (IGNORE or WAIT)")
	f.StringVar(&opts.logLevel, "log-level", "info",
		"Log level (trace, debug, info, warn, error)")

	f.StringVar(&opts.dbPath, "db", "",
		"Record results to this SQLite file")
	f.StringVar(&opts.clickHouseAddr, "clickhouse", "",
		"Record results to the ClickHouse server at host:port")
	f.StringVar(&opts.clickHouseDB, "clickhouse-db", "default",
		"ClickHouse database")
	f.StringVar(&opts.clickHouseUser, "clickhouse-user", "default",
		"ClickHouse user, the password is read from "+
			simulation.EnvPrefix+"CLICKHOUSE_PASSWORD")

	f.BoolVar(&opts.monitor, "monitor", false,
		"Serve the monitoring page while the experiment runs")
	f.IntVar(&opts.monitorPort, "monitor-port", 0,
		"Port of the monitoring server, random if 0")
	f.BoolVar(&opts.openBrowser, "open-browser", false,
		"Open the monitoring page in the default browser")

	return cmd
}

func (o *runOptions) run(cmd *cobra.Command) error {
	logger, err := o.logger()
	if err != nil {
		return err
	}

	exp, err := o.experiment(cmd)
	if err != nil {
		return err
	}

	cfg, err := bank.ConfigFromExperiment(exp)
	if err != nil {
		return err
	}

	if o.rule != "" {
		cfg.Rule, err = resource.ParseCapacityChangeRule(o.rule)
		if err != nil {
			return err
		}
	}

	s := simulation.MakeBuilder().
		WithExperiment(exp).
		WithLogger(logger).
		Build()

	if logger.IsLevelEnabled(logrus.TraceLevel) {
		s.Executive().AcceptHook(
			timing.NewEventLogger(logger).WithLevel(logrus.TraceLevel))
	}

	model, err := bank.New(s, cfg)
	if err != nil {
		return err
	}

	recorder, err := o.recorder()
	if err != nil {
		return err
	}

	var execRecorder *datarecording.ExecRecorder
	if recorder != nil {
		defer func() {
			if err := recorder.Close(); err != nil {
				logger.WithError(err).Error("closing the recorder")
			}
		}()

		execRecorder = attachRecorder(recorder, s, model)
		execRecorder.Start()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if o.monitor {
		m := monitoring.NewMonitor().
			WithLogger(logger).
			WithPortNumber(o.monitorPort).
			WithBrowser(o.openBrowser).
			WithStopFunc(stop)
		m.RegisterSimulation(s)

		if _, err := m.StartServer(); err != nil {
			return err
		}
		defer func() { _ = m.StopServer() }()
	}

	runErr := s.Run(ctx)

	if execRecorder != nil {
		execRecorder.End()
		recorder.Flush()
	}

	printSummary(cmd, model.History())

	return runErr
}

func (o *runOptions) logger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(o.logLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", o.logLevel, err)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(os.Stderr)

	return logger, nil
}

func (o *runOptions) experiment(cmd *cobra.Command) (simulation.Experiment, error) {
	var exp simulation.Experiment

	if o.configPath != "" {
		loaded, err := simulation.LoadExperiment(o.configPath)
		if err != nil {
			return exp, err
		}

		exp = loaded
	} else {
		exp = simulation.DefaultExperiment()
		exp.Name = "bank"
		exp.LengthOfReplication = o.length

		if err := simulation.ApplyEnv(&exp); err != nil {
			return exp, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("replications") {
		exp.NumReplications = o.replications
	}

	if flags.Changed("length") {
		exp.LengthOfReplication = o.length
	}

	if flags.Changed("seed") {
		exp.BaseSeed = o.seed
	}

	return exp, exp.Validate()
}

func (o *runOptions) recorder() (datarecording.DataRecorder, error) {
	switch {
	case o.dbPath != "" && o.clickHouseAddr != "":
		return nil, fmt.Errorf("--db and --clickhouse cannot be used together")
	case o.dbPath != "":
		return datarecording.New(o.dbPath)
	case o.clickHouseAddr != "":
		host, portStr, err := net.SplitHostPort(o.clickHouseAddr)
		if err != nil {
			return nil, fmt.Errorf("parsing --clickhouse: %w", err)
		}

		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("parsing --clickhouse port: %w", err)
		}

		return datarecording.NewClickHouseRecorder(
			datarecording.ClickHouseOptions{
				Host:     host,
				Port:     port,
				Database: o.clickHouseDB,
				Username: o.clickHouseUser,
				Password: os.Getenv(simulation.EnvPrefix + "CLICKHOUSE_PASSWORD"),
			})
	default:
		return nil, nil
	}
}

func attachRecorder(
	recorder datarecording.DataRecorder,
	s *simulation.Simulation,
	model *bank.Bank,
) *datarecording.ExecRecorder {
	execRecorder := datarecording.NewExecRecorder(recorder)
	execRecorder.Set("Simulation", s.ID())
	execRecorder.Set("Experiment", s.Name())
	execRecorder.Set("Replications", strconv.Itoa(s.Experiment().NumReplications))
	execRecorder.Set("Seed", strconv.FormatInt(s.Experiment().BaseSeed, 10))

	s.AcceptHook(datarecording.NewReplicationRecorder(recorder))
	model.Tellers().AcceptHook(datarecording.NewResourceRecorder(recorder, s))
	model.RecordCustomersTo(recorder)

	return execRecorder
}

func printSummary(cmd *cobra.Command, history []bank.Stats) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "REPLICATION\tARRIVED\tSERVED\tAPPROVED\tAUDITED\t"+
		"MEAN WAIT\tMAX WAIT\tIN SYSTEM\tBUSY TELLERS")
	for _, st := range history {
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%.3f\t%.3f\t%.3f\t%.2f\n",
			st.Replication, st.Arrived, st.Served, st.Approved, st.Audited,
			st.MeanWait(), st.MaxWait, st.MeanTimeInSystem, st.MeanBusyTellers)
	}

	_ = w.Flush()
}
