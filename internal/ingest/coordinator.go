package ingest

import (
	"bufio"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/charmap"

	"spedflow/internal/config"
	"spedflow/internal/domain"
	"spedflow/internal/observability"
	"spedflow/internal/port"
	"spedflow/internal/sped"
)

// maxLineBytes bounds a single SPED line; long 0200 descriptions exceed bufio's default.
const maxLineBytes = 4 * 1024 * 1024

// Options tunes the pipeline.
type Options struct {
	Workers        int
	BatchLines     int
	QueueFactor    int
	FlushThreshold int
	FlushInterval  time.Duration
	InsertChunk    int
	ParseCacheSize int
}

// OptionsFromConfig maps pipeline configuration to options.
func OptionsFromConfig(cfg *config.PipelineConfig) Options {
	return Options{
		Workers:        cfg.EffectiveWorkers(),
		BatchLines:     cfg.BatchLines,
		QueueFactor:    cfg.QueueFactor,
		FlushThreshold: cfg.FlushThreshold,
		FlushInterval:  cfg.FlushInterval,
		InsertChunk:    cfg.InsertChunk,
		ParseCacheSize: cfg.ParseCacheSize,
	}
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.BatchLines <= 0 {
		o.BatchLines = 1000
	}
	if o.QueueFactor <= 0 {
		o.QueueFactor = 2
	}
	if o.FlushThreshold <= 0 {
		o.FlushThreshold = 20000
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 2 * time.Second
	}
	return o
}

// Request describes one import run.
type Request struct {
	CompanyID uuid.UUID
	RunID     uuid.UUID
	Sources   []Source
	Force     bool
}

// Outcome summarises a completed run.
type Outcome struct {
	Opening domain.OpeningContext
	Counts  domain.ImportCounts
}

type lineRef struct {
	text   string
	lineNo int
	stamp  sped.Stamp
}

type batch struct {
	scope domain.RunScope
	lines []lineRef
}

// Coordinator runs the reader → workers → aggregator → persister pipeline.
type Coordinator struct {
	tx      port.TxManager
	repos   Repositories
	opts    Options
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewCoordinator creates a pipeline coordinator. It is safe for concurrent
// runs; each run owns its parser cache.
func NewCoordinator(tx port.TxManager, repos Repositories, opts Options, logger *zap.Logger, metrics *observability.Metrics) *Coordinator {
	logger = logger.With(zap.String("component", "ingest"))
	return &Coordinator{
		tx:      tx,
		repos:   repos,
		opts:    opts.withDefaults(),
		logger:  logger,
		metrics: metrics,
	}
}

// Run imports the sources of one run. Any error cancels the pipeline; batches
// committed before the error stay committed.
func (c *Coordinator) Run(ctx context.Context, req Request) (*Outcome, error) {
	if len(req.Sources) == 0 {
		return nil, domain.ErrNoSourceFiles
	}
	log := c.logger.With(zap.String("run_id", req.RunID.String()), zap.String("company_id", req.CompanyID.String()))
	parser := sped.NewParser(c.opts.ParseCacheSize, log)
	defer parser.Reset()
	agg := NewBufferAggregator(c.opts.FlushThreshold)
	pers := NewPersister(c.tx, c.repos, c.opts.InsertChunk, log, c.metrics)
	tracker := sped.NewTracker()

	var flushMu sync.Mutex
	flush := func(ctx context.Context, final bool) error {
		flushMu.Lock()
		defer flushMu.Unlock()
		snap := agg.Drain()
		if snap.Len() == 0 && !final {
			return nil
		}
		return pers.Flush(ctx, snap, final)
	}

	g, gctx := errgroup.WithContext(ctx)
	batches := make(chan batch, c.opts.Workers*c.opts.QueueFactor)
	var lines int

	g.Go(func() error {
		defer close(batches)
		n, err := c.read(gctx, req, tracker, pers, batches, log)
		lines = n
		return err
	})

	var wg sync.WaitGroup
	for i := 0; i < c.opts.Workers; i++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			return c.work(gctx, parser, batches, agg, log)
		})
	}
	workersDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(workersDone)
	}()

	g.Go(func() error {
		ticker := time.NewTicker(c.opts.FlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-workersDone:
				return nil
			case <-agg.Ready():
				if err := flush(gctx, false); err != nil {
					return err
				}
			case <-ticker.C:
				if err := flush(gctx, false); err != nil {
					return err
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		log.Error("import run failed", zap.Error(err))
		return nil, err
	}
	if err := flush(ctx, true); err != nil {
		log.Error("final flush failed", zap.Error(err))
		return nil, err
	}

	counts := pers.Counts()
	counts.Files = len(req.Sources)
	counts.Lines = lines
	opening := tracker.Opening()
	log.Info("import run complete",
		zap.String("period", opening.Period),
		zap.String("branch", opening.BranchCode),
		zap.Int("lines", counts.Lines),
		zap.Int("documents", counts.Documents),
		zap.Int("items", counts.Items),
		zap.Int("discarded", counts.Discarded))
	return &Outcome{Opening: *opening, Counts: counts}, nil
}

// read streams every source in order, runs the tracker and pushes line batches.
func (c *Coordinator) read(ctx context.Context, req Request, tracker *sped.Tracker, pers *Persister, out chan<- batch, log *zap.Logger) (int, error) {
	var (
		scope domain.RunScope
		total int
	)
	send := func(b batch) error {
		if len(b.lines) == 0 {
			return nil
		}
		select {
		case out <- b:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for i, src := range req.Sources {
		tracker.StartFile(i+1, src.Name())
		n, err := c.readSource(ctx, src, req, tracker, pers, &scope, send, log)
		total += n
		c.metrics.AddLinesRead(n)
		if err != nil {
			return total, err
		}
		if !tracker.EndSeen() {
			log.Warn("file has no 9999 end marker; it may be truncated", zap.String("file", src.Name()))
		}
	}

	if tracker.Opening() == nil {
		return total, &domain.ValidationError{File: req.Sources[0].Name(), Line: 0, Reason: domain.ErrMissingOpening}
	}
	return total, nil
}

func (c *Coordinator) readSource(
	ctx context.Context,
	src Source,
	req Request,
	tracker *sped.Tracker,
	pers *Persister,
	scope *domain.RunScope,
	send func(batch) error,
	log *zap.Logger,
) (int, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return 0, fmt.Errorf("coordinator.read: %w", err)
	}
	defer rc.Close()

	scanner := bufio.NewScanner(charmap.ISO8859_1.NewDecoder().Reader(rc))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	cur := batch{scope: *scope, lines: make([]lineRef, 0, c.opts.BatchLines)}
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := scanner.Text()

		st, err := tracker.Observe(text, lineNo)
		if err != nil {
			return lineNo, err
		}
		if st.Latched {
			opening := tracker.Opening()
			if err := pers.Guard(ctx, req.CompanyID, opening.Period, req.Force); err != nil {
				return lineNo, err
			}
			*scope = domain.RunScope{
				CompanyID:  req.CompanyID,
				RunID:      req.RunID,
				Period:     opening.Period,
				BranchCode: opening.BranchCode,
			}
			cur.scope = *scope
			log.Info("opening record latched",
				zap.String("period", opening.Period), zap.String("branch", opening.BranchCode))
		}

		if _, ok := handlers[st.Tag]; !ok {
			continue
		}
		if st.Tag == sped.TagItem && st.Parent.IsZero() {
			log.Warn("discarding line item without a preceding document",
				zap.String("file", src.Name()), zap.Int("line", lineNo))
			c.metrics.AddItemsDiscarded("no_header", 1)
			pers.Discard(1)
			continue
		}

		cur.lines = append(cur.lines, lineRef{text: text, lineNo: lineNo, stamp: st})
		if len(cur.lines) >= c.opts.BatchLines {
			if err := send(cur); err != nil {
				return lineNo, err
			}
			cur = batch{scope: *scope, lines: make([]lineRef, 0, c.opts.BatchLines)}
		}
	}
	if err := scanner.Err(); err != nil {
		return lineNo, fmt.Errorf("coordinator.read %s: %w", src.Name(), err)
	}
	return lineNo, send(cur)
}

// work parses batches and hands decoded rows to the aggregator.
func (c *Coordinator) work(ctx context.Context, parser *sped.Parser, in <-chan batch, agg *BufferAggregator, log *zap.Logger) error {
	for b := range in {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, ln := range b.lines {
			rec := parser.Parse(ln.text)
			handle, ok := handlers[rec.Tag]
			if !ok {
				continue
			}
			c.metrics.IncrRecordParsed(string(rec.Tag))
			if !handle(agg, rec, ln, b.scope) {
				log.Debug("skipping short record", zap.String("tag", string(rec.Tag)), zap.Int("line", ln.lineNo))
			}
		}
	}
	return nil
}
