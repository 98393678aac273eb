package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/KhavKivar/piwebapi-etl/internal/auth"
	"github.com/KhavKivar/piwebapi-etl/internal/config"
	"github.com/KhavKivar/piwebapi-etl/internal/model"
	"github.com/KhavKivar/piwebapi-etl/internal/piweb"
	"github.com/KhavKivar/piwebapi-etl/internal/timeconv"
)

// harvest fans out one task per frame onto a bounded worker pool. Each task
// opens its own session, fetches the frame's attribute directory, then fans
// out a second bounded pool to resolve each attribute's value. Completed
// records merge into the accumulator in completion order.
func (e *Engine) harvest(ctx context.Context, site config.SiteConfig, loc *time.Location,
	cred auth.Credential, frames []model.FrameDescriptor, acc *accumulator) {

	workers := e.frameWorkers
	if workers > len(frames) {
		workers = len(frames)
	}

	jobs := make(chan model.FrameDescriptor, len(frames))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobs {
				acc.add(e.harvestFrame(ctx, f, loc, cred, acc))
			}
		}()
	}

	for _, f := range frames {
		jobs <- f
	}
	close(jobs)
	wg.Wait()
}

// harvestFrame builds one FlatRecord. Any failure past the core fields
// degrades the record rather than erroring: a missing attribute directory
// yields a core-only record, a failed value fetch an empty string.
func (e *Engine) harvestFrame(ctx context.Context, f model.FrameDescriptor, loc *time.Location,
	cred auth.Credential, acc *accumulator) model.FlatRecord {

	rec := model.FlatRecord{
		Name:         f.Name,
		StartTime:    timeconv.LocalString(f.StartTime, loc),
		StartTimeUTC: f.StartTime,
		EndTime:      timeconv.LocalString(f.EndTime, loc),
		EndTimeUTC:   f.EndTime,
		TemplateName: f.TemplateName,
		WebID:        f.WebID,
		ID:           f.ID,
	}

	if f.Links.Attributes == "" {
		e.log.Debugw("frame has no attributes link", "frame", f.Name)
		return rec
	}

	// Task-exclusive session; never shared with sibling frame tasks.
	sess := e.newSession(cred)
	defer sess.Close()

	var dir model.ItemsEnvelope[model.AttributeDescriptor]
	if err := sess.GetJSON(ctx, f.Links.Attributes, nil, &dir); err != nil {
		e.log.Debugw("attribute directory fetch failed", "frame", f.Name, "err", err)
		acc.fail(StageAttrDirectory, f.Name, err)
		return rec
	}
	if len(dir.Items) == 0 {
		return rec
	}

	rec.Attributes = e.fetchValues(ctx, sess, f.Name, dir.Items, acc)
	return rec
}

type valueResult struct {
	name  string
	value any
	err   error
}

// fetchValues resolves every attribute's value on a nested bounded pool.
// The frame's session is reused across its value tasks; it never crosses a
// frame boundary.
func (e *Engine) fetchValues(ctx context.Context, sess *piweb.Session, frameName string,
	attrs []model.AttributeDescriptor, acc *accumulator) map[string]any {

	workers := e.attrWorkers
	if workers > len(attrs) {
		workers = len(attrs)
	}

	jobs := make(chan model.AttributeDescriptor, len(attrs))
	results := make(chan valueResult, len(attrs))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for attr := range jobs {
				v, err := e.resolveValue(ctx, sess, attr)
				results <- valueResult{name: attr.Name, value: v, err: err}
			}
		}()
	}

	for _, attr := range attrs {
		jobs <- attr
	}
	close(jobs)
	wg.Wait()
	close(results)

	out := make(map[string]any, len(attrs))
	for r := range results {
		if r.name == "" {
			continue
		}
		if r.err != nil {
			// One failed value never aborts the frame or its siblings.
			acc.fail(StageAttrValue, frameName+"/"+r.name, r.err)
			out[r.name] = ""
			continue
		}
		out[r.name] = r.value
	}
	return out
}

// resolveValue fetches the value endpoint when the inline value is absent,
// unwraps one nested {Value: ...} envelope, and serializes compound values
// to a JSON string for storage.
func (e *Engine) resolveValue(ctx context.Context, sess *piweb.Session, attr model.AttributeDescriptor) (any, error) {
	v := attr.Value
	if attr.Links.Value != "" {
		vctx, cancel := context.WithTimeout(ctx, attrValueTimeout)
		defer cancel()

		var env model.ValueEnvelope
		if err := sess.GetJSON(vctx, attr.Links.Value, nil, &env); err != nil {
			return nil, err
		}
		v = env.Value
	}

	if m, ok := v.(map[string]any); ok {
		if inner, nested := m["Value"]; nested && len(m) == 1 {
			v = inner
		}
	}

	switch v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return "", nil
		}
		return string(b), nil
	default:
		return v, nil
	}
}
