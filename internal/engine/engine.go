// Package engine implements the event-frame extraction core: recursive
// time-range chunking that keeps each remote query under the API's page cap,
// and a two-level concurrent harvest of frames and their attribute values.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/KhavKivar/piwebapi-etl/internal/auth"
	"github.com/KhavKivar/piwebapi-etl/internal/config"
	"github.com/KhavKivar/piwebapi-etl/internal/logger"
	"github.com/KhavKivar/piwebapi-etl/internal/model"
	"github.com/KhavKivar/piwebapi-etl/internal/piweb"
	"github.com/KhavKivar/piwebapi-etl/internal/timeconv"
)

// Defaults mirroring the engine's tuning knobs.
const (
	DefaultPageCap       = 1000
	DefaultFrameWorkers  = 20
	DefaultAttrWorkers   = 5
	DefaultMaxSplitDepth = 32

	attrValueTimeout = 10 * time.Second
)

// Engine drives the whole extraction: a sequential interval loop feeding a
// bounded frame-level worker pool, each frame task nesting a second bounded
// pool for attribute values.
type Engine struct {
	cfg *config.Config
	log *logger.Logger

	pageCap       int
	frameWorkers  int
	attrWorkers   int
	maxSplitDepth int
	insecure      bool
}

// Option tunes Engine behavior beyond what the config file sets.
type Option func(*Engine)

// WithPageCap overrides the page-size cap that triggers interval bisection.
func WithPageCap(n int) Option {
	return func(e *Engine) { e.pageCap = n }
}

// WithWorkers overrides the frame-level and attribute-level pool widths.
func WithWorkers(frame, attr int) Option {
	return func(e *Engine) {
		e.frameWorkers = frame
		e.attrWorkers = attr
	}
}

// WithMaxSplitDepth overrides the bisection depth guard.
func WithMaxSplitDepth(n int) Option {
	return func(e *Engine) { e.maxSplitDepth = n }
}

// New creates an Engine over the given site registry. Zero config values
// fall back to the package defaults.
func New(cfg *config.Config, log *logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		cfg:           cfg,
		log:           log,
		pageCap:       cfg.Engine.PageCap,
		frameWorkers:  cfg.Engine.FrameWorkers,
		attrWorkers:   cfg.Engine.AttrWorkers,
		maxSplitDepth: cfg.Engine.MaxSplitDepth,
		insecure:      cfg.Engine.InsecureSkipVerify,
	}
	if e.pageCap <= 0 {
		e.pageCap = DefaultPageCap
	}
	if e.frameWorkers <= 0 {
		e.frameWorkers = DefaultFrameWorkers
	}
	if e.attrWorkers <= 0 {
		e.attrWorkers = DefaultAttrWorkers
	}
	if e.maxSplitDepth <= 0 {
		e.maxSplitDepth = DefaultMaxSplitDepth
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fetch extracts every closed event frame for the site between start and end
// (end defaults to now when zero). Transient network failures degrade to
// missing data and are listed in the result's report; only invalid input and
// configuration problems return an error.
func (e *Engine) Fetch(ctx context.Context, site string, start, end time.Time) (*Result, error) {
	if site == "" || start.IsZero() {
		return nil, fmt.Errorf("%w: site and start time must be provided", model.ErrInvalidInput)
	}

	siteCfg, err := e.cfg.Site(site)
	if err != nil {
		return nil, err
	}

	if end.IsZero() {
		end = time.Now().UTC()
	}
	start, end = start.UTC(), end.UTC()
	if start.After(end) {
		return nil, fmt.Errorf("%w: start %s is after end %s", model.ErrInvalidInput,
			start.Format(queryTimeFormat), end.Format(queryTimeFormat))
	}

	loc, err := timeconv.Load(siteCfg.Timezone)
	if err != nil {
		return nil, err
	}

	// One credential per invocation, shared read-only by every session.
	cred, err := auth.Resolve(siteCfg)
	if err != nil {
		return nil, err
	}

	e.log.Debugw("fetching eventframes", "site", site, "start", start, "end", end)

	acc := newAccumulator()
	var splits, openSkipped int

	// The list session lives for the whole interval loop; the loop is
	// strictly sequential, so it is never shared across goroutines.
	listSess := e.newSession(cred)
	defer listSess.Close()

	stack := []interval{{start: start, end: end}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		iv := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		e.log.Debugw("processing chunk", "start", iv.start, "end", iv.end, "span", iv.span())

		frames, err := e.listFrames(ctx, listSess, siteCfg, iv)
		if err != nil {
			e.log.Debugw("chunk fetch failed, treating as empty", "start", iv.start, "end", iv.end, "err", err)
			acc.fail(StageFrameList, iv.start.Format(queryTimeFormat)+"/"+iv.end.Format(queryTimeFormat), err)
			continue
		}

		if len(frames) >= e.pageCap {
			if iv.depth >= e.maxSplitDepth {
				return nil, fmt.Errorf("%w: split depth %d exceeded for interval %s/%s; record density never drops below the page cap",
					model.ErrConfiguration, e.maxSplitDepth,
					iv.start.Format(queryTimeFormat), iv.end.Format(queryTimeFormat))
			}
			left, right := iv.bisect()
			stack = append(stack, right, left)
			splits++
			e.log.Debugw("page cap reached, splitting range", "count", len(frames), "cap", e.pageCap)
			continue
		}

		if len(frames) == 0 {
			continue
		}

		closed := frames[:0]
		for _, f := range frames {
			if f.IsOpen() {
				openSkipped++
				continue
			}
			closed = append(closed, f)
		}
		if len(closed) == 0 {
			continue
		}

		e.harvest(ctx, siteCfg, loc, cred, closed, acc)
	}

	records, attrs, failures := acc.snapshot()
	res := &Result{
		Records:   records,
		AttrNames: attrs,
		Report: Report{
			Frames:      len(records),
			OpenSkipped: openSkipped,
			Splits:      splits,
			Failures:    failures,
		},
	}

	e.log.Infow("fetch complete", "site", site,
		"frames", res.Report.Frames, "attributes", len(res.AttrNames),
		"splits", res.Report.Splits, "open_skipped", res.Report.OpenSkipped,
		"failures", len(res.Report.Failures))
	return res, nil
}

// newSession builds a task-scoped session. Callers own it exclusively and
// must Close it.
func (e *Engine) newSession(cred auth.Credential, opts ...piweb.Option) *piweb.Session {
	if e.insecure {
		opts = append(opts, piweb.WithInsecureSkipVerify())
	}
	return piweb.NewSession(cred, opts...)
}
