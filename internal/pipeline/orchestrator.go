package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/lmoraga/lakeflow/internal/clean"
	"github.com/lmoraga/lakeflow/internal/codec"
	"github.com/lmoraga/lakeflow/internal/config"
	"github.com/lmoraga/lakeflow/internal/dataset"
	"github.com/lmoraga/lakeflow/internal/fault"
	"github.com/lmoraga/lakeflow/internal/gateway"
	"github.com/lmoraga/lakeflow/internal/logging"
	"github.com/lmoraga/lakeflow/internal/merge"
	"github.com/lmoraga/lakeflow/internal/tier"
	"github.com/lmoraga/lakeflow/internal/verify"
)

// Cleaned-tier artifact names. The mirror keeps a directory per dataset
// kind, matching the distributed filesystem's /bigdata layout.
const (
	WeatherCleanedName = "weather_cleaned.parquet"
	TrafficCleanedName = "traffic_cleaned.parquet"
	MergedName         = "merged_data.parquet"
)

// MirrorName returns the mirrored-tier name for a cleaned artifact.
func MirrorName(kind, name string) string {
	return kind + "/" + name
}

// Orchestrator sequences the pipeline phases over one gateway. It never
// branches on backend type; tiers are its only storage vocabulary.
type Orchestrator struct {
	cfg      *config.Config
	gw       *gateway.Gateway
	verifier *verify.Verifier
	log      *slog.Logger

	join       merge.JoinPolicy
	imputation clean.Imputation
}

// New creates an orchestrator. The policy knobs are parsed once here so
// an invalid policy fails at startup, not mid-run.
func New(cfg *config.Config, gw *gateway.Gateway) (*Orchestrator, error) {
	join, err := merge.ParseJoinPolicy(cfg.Pipeline.Join)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrInvalidConfig, err)
	}
	imputation, err := clean.ParseImputation(cfg.Pipeline.Imputation)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrInvalidConfig, err)
	}

	return &Orchestrator{
		cfg:        cfg,
		gw:         gw,
		verifier:   verify.New(gw),
		log:        logging.Component("orchestrator"),
		join:       join,
		imputation: imputation,
	}, nil
}

// runState carries the in-flight data of one run. Datasets live only
// for the duration of the run; artifacts are the only entities that
// outlive it.
type runState struct {
	run *Run

	weatherRaw *dataset.Dataset
	trafficRaw *dataset.Dataset

	weather *dataset.Dataset
	traffic *dataset.Dataset
	merged  *dataset.Dataset

	cleanReports []*clean.Report
	mergeStats   *merge.Stats

	// cleaned maps cleaned-tier artifact names to their encoded bytes,
	// reused by the mirror phase so both tiers hold identical bytes.
	cleaned map[string][]byte

	artifacts      []gateway.Artifact
	reconciliation *verify.Report
}

// Execute runs all phases in order and returns the run report. The
// report reflects the true terminal state of every attempted phase,
// including partial runs; err is non-nil when the run failed.
func (o *Orchestrator) Execute(ctx context.Context) (*Report, error) {
	state := &runState{
		run:     NewRun(),
		cleaned: make(map[string][]byte),
	}
	ctx = logging.ContextWithRunID(ctx, state.run.ID)
	log := logging.WithContext(ctx).With("component", "orchestrator")

	log.Info("run starting", "join", o.join.String())

	if err := o.gw.Preflight(ctx); err != nil {
		state.run.Finish()
		state.run.Status = StatusFailed
		report := o.buildReport(state, err)
		return report, err
	}

	var runErr error
	for _, id := range AllPhases() {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if err := o.runPhase(ctx, state, id); err != nil {
			runErr = fmt.Errorf("phase %s: %w", id, err)
			break
		}
	}

	state.run.Finish()
	if runErr != nil {
		state.run.Status = StatusFailed
	}

	report := o.buildReport(state, runErr)
	o.persistReport(ctx, state, report)

	log.Info("run finished", "status", state.run.Status.String())
	return report, runErr
}

// runPhase drives one phase through its state machine. A failure is
// recorded on the phase with its classification; artifacts written by
// prior phases stay in place — tiers are additive, there is no rollback.
func (o *Orchestrator) runPhase(ctx context.Context, state *runState, id PhaseID) error {
	phase := state.run.Phase(id)
	phase.Status = StatusRunning
	phase.StartedAt = nowUTC()

	phaseCtx := logging.ContextWithPhase(ctx, id.String())
	log := logging.WithContext(phaseCtx).With("component", "orchestrator")
	log.Info("phase starting")

	skipped, err := o.execute(phaseCtx, state, id)
	phase.EndedAt = nowUTC()

	if err != nil {
		phase.Status = StatusFailed
		phase.Error = err.Error()
		phase.ErrorKind = fault.Classify(err).String()
		log.Error("phase failed", "error", err, "class", phase.ErrorKind)
		return err
	}

	if skipped {
		phase.Status = StatusSkipped
		log.Info("phase skipped, outputs already current")
	} else {
		phase.Status = StatusSucceeded
		log.Info("phase succeeded")
	}
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, state *runState, id PhaseID) (bool, error) {
	switch id {
	case PhaseIngestRaw:
		return o.ingestRaw(ctx, state)
	case PhaseClean:
		return false, o.clean(state)
	case PhaseMerge:
		return false, o.merge(state)
	case PhaseWriteCleaned:
		return o.writeCleaned(ctx, state)
	case PhaseMirror:
		return o.mirror(ctx, state)
	case PhaseWriteResults:
		return o.writeResults(ctx, state)
	case PhaseVerify:
		return false, o.verify(ctx, state)
	default:
		return false, fmt.Errorf("unknown phase %d", int(id))
	}
}

// ingestRaw reads the raw CSV inputs, archives them unchanged in the
// raw tier, and parses them into untyped datasets for cleaning.
func (o *Orchestrator) ingestRaw(ctx context.Context, state *runState) (bool, error) {
	type input struct {
		path   string
		schema *dataset.Schema
		into   **dataset.Dataset
	}
	inputs := []input{
		{o.cfg.Input.WeatherFile, dataset.WeatherSchema(), &state.weatherRaw},
		{o.cfg.Input.TrafficFile, dataset.TrafficSchema(), &state.trafficRaw},
	}

	allReused := true
	for _, in := range inputs {
		data, err := os.ReadFile(in.path)
		if err != nil {
			return false, fmt.Errorf("read raw input: %w", err)
		}

		art, reused, err := o.gw.Put(ctx, tier.TierRaw, filepath.Base(in.path), data, gateway.FormatCSV)
		if err != nil {
			return false, err
		}
		state.artifacts = append(state.artifacts, art)
		allReused = allReused && reused

		parsed, err := codec.ParseCSV(data, in.schema)
		if err != nil {
			return false, err
		}
		*in.into = parsed
	}
	return allReused, nil
}

// clean validates and normalizes both raw datasets.
func (o *Orchestrator) clean(state *runState) error {
	opts := clean.Options{Imputation: o.imputation}

	weather, wreport, err := clean.Clean(state.weatherRaw, dataset.WeatherSchema(), opts)
	if err != nil {
		return err
	}
	traffic, treport, err := clean.Clean(state.trafficRaw, dataset.TrafficSchema(), opts)
	if err != nil {
		return err
	}

	state.weather = weather
	state.traffic = traffic
	state.cleanReports = []*clean.Report{wreport, treport}

	// Raw records are discarded after dataset construction.
	state.weatherRaw = nil
	state.trafficRaw = nil
	return nil
}

// merge joins the cleaned datasets under the configured policy.
func (o *Orchestrator) merge(state *runState) error {
	merged, stats, err := merge.Merge(state.weather, state.traffic, o.join)
	if err != nil {
		return err
	}
	state.merged = merged
	state.mergeStats = stats
	return nil
}

// writeCleaned encodes the cleaned and merged datasets as columnar
// artifacts and uploads them to the cleaned tier.
func (o *Orchestrator) writeCleaned(ctx context.Context, state *runState) (bool, error) {
	outputs := []struct {
		name string
		ds   *dataset.Dataset
	}{
		{WeatherCleanedName, state.weather},
		{TrafficCleanedName, state.traffic},
		{MergedName, state.merged},
	}

	jobs := make([]uploadJob, 0, len(outputs))
	for _, out := range outputs {
		data, err := codec.EncodeParquet(out.ds)
		if err != nil {
			return false, err
		}
		state.cleaned[out.name] = data
		jobs = append(jobs, uploadJob{name: out.name, data: data, format: gateway.FormatParquet})
	}

	return o.uploadAll(ctx, state, tier.TierCleaned, jobs)
}

// mirror copies the cleaned-tier artifacts, byte for byte, to the
// distributed-filesystem tier under a directory per dataset kind.
func (o *Orchestrator) mirror(ctx context.Context, state *runState) (bool, error) {
	jobs := []uploadJob{
		{name: MirrorName("weather", WeatherCleanedName), data: state.cleaned[WeatherCleanedName], format: gateway.FormatParquet},
		{name: MirrorName("traffic", TrafficCleanedName), data: state.cleaned[TrafficCleanedName], format: gateway.FormatParquet},
		{name: MirrorName("merged", MergedName), data: state.cleaned[MergedName], format: gateway.FormatParquet},
	}
	return o.uploadAll(ctx, state, tier.TierMirrored, jobs)
}

// writeResults uploads externally produced analysis outputs into the
// results tier. The pipeline never interprets their content.
func (o *Orchestrator) writeResults(ctx context.Context, state *runState) (bool, error) {
	if o.cfg.Input.ResultsDir == "" {
		return false, nil
	}

	entries, err := os.ReadDir(o.cfg.Input.ResultsDir)
	if err != nil {
		return false, fmt.Errorf("read results dir: %w", err)
	}

	var jobs []uploadJob
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(o.cfg.Input.ResultsDir, entry.Name()))
		if err != nil {
			return false, fmt.Errorf("read result file: %w", err)
		}
		jobs = append(jobs, uploadJob{
			name:   entry.Name(),
			data:   data,
			format: gateway.FormatForName(entry.Name()),
		})
	}
	if len(jobs) == 0 {
		return false, nil
	}

	return o.uploadAll(ctx, state, tier.TierResults, jobs)
}

// verify reconciles everything the run wrote beyond the raw tier.
// Mismatches on the cleaned or mirrored tier are fatal.
func (o *Orchestrator) verify(ctx context.Context, state *runState) error {
	var expected []gateway.Artifact
	for _, art := range state.artifacts {
		if art.Tier == tier.TierRaw {
			continue
		}
		expected = append(expected, art)
	}

	report, err := o.verifier.Reconcile(ctx, expected)
	if err != nil {
		return err
	}
	state.reconciliation = report
	return report.Err()
}

// uploadJob is one artifact upload within a write phase.
type uploadJob struct {
	name   string
	data   []byte
	format gateway.Format
}

// uploadAll puts independent artifacts concurrently under the bounded
// worker count. Distinct names share no mutable state, so ordering
// between them is neither guaranteed nor required. The phase is
// skipped-idempotent only if every put was a checksum no-op.
func (o *Orchestrator) uploadAll(ctx context.Context, state *runState, t tier.Tier, jobs []uploadJob) (bool, error) {
	arts := make([]gateway.Artifact, len(jobs))
	reused := make([]bool, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Pipeline.UploadWorkers)

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			art, noop, err := o.gw.Put(gctx, t, job.name, job.data, job.format)
			if err != nil {
				return err
			}
			arts[i] = art
			reused[i] = noop
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}

	allReused := true
	for i := range jobs {
		state.artifacts = append(state.artifacts, arts[i])
		allReused = allReused && reused[i]
	}
	return allReused, nil
}
