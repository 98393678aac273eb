package engine

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/KhavKivar/piwebapi-etl/internal/config"
	"github.com/KhavKivar/piwebapi-etl/internal/model"
	"github.com/KhavKivar/piwebapi-etl/internal/piweb"
)

// queryTimeFormat is the second-precision, Z-suffixed layout the eventframes
// endpoint expects.
const queryTimeFormat = "2006-01-02T15:04:05Z"

// listFrames issues one paginated list query for the interval. Errors bubble
// up to the orchestrator, which records the failure and treats the interval
// as empty — failure and true emptiness look the same downstream.
func (e *Engine) listFrames(ctx context.Context, sess *piweb.Session, site config.SiteConfig, iv interval) ([]model.FrameDescriptor, error) {
	endpoint := fmt.Sprintf("%s/assetdatabases/%s/eventframes",
		strings.TrimRight(site.APIURL, "/"), site.DatabaseWebID)

	q := url.Values{}
	q.Set("startTime", iv.start.UTC().Format(queryTimeFormat))
	q.Set("endTime", iv.end.UTC().Format(queryTimeFormat))
	q.Set("templateName", site.TemplateName)

	var resp model.ItemsEnvelope[model.FrameDescriptor]
	if err := sess.GetJSON(ctx, endpoint, q, &resp); err != nil {
		return nil, fmt.Errorf("list eventframes: %w", err)
	}
	return resp.Items, nil
}
