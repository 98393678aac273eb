package model

// Core field names shared by every FlatRecord. Sinks key on these.
const (
	FieldName         = "Event Frame Name"
	FieldStartTime    = "Start Time"
	FieldStartTimeUTC = "Start Time UTC"
	FieldEndTime      = "End Time"
	FieldEndTimeUTC   = "End Time UTC"
	FieldTemplateName = "Template Name"
	FieldWebID        = "WebId"
	FieldID           = "Id"
)

// CoreFields lists the eight fixed fields in their canonical order.
var CoreFields = []string{
	FieldName,
	FieldStartTime,
	FieldStartTimeUTC,
	FieldEndTime,
	FieldEndTimeUTC,
	FieldTemplateName,
	FieldWebID,
	FieldID,
}

// FlatRecord is the engine's unit of output: one row per event frame. The
// fixed core fields are typed members; attribute-derived fields are sparse
// and live in Attributes (string, number, or JSON-encoded compound).
type FlatRecord struct {
	Name         string
	StartTime    string // site-local, "2006-01-02T15:04:05"
	StartTimeUTC string // verbatim from the remote API
	EndTime      string
	EndTimeUTC   string
	TemplateName string
	WebID        string
	ID           string

	Attributes map[string]any
}

// Fields merges the core fields and the sparse attribute map into one flat
// field-name-to-value view for sinks.
func (r FlatRecord) Fields() map[string]any {
	m := make(map[string]any, len(CoreFields)+len(r.Attributes))
	m[FieldName] = r.Name
	m[FieldStartTime] = r.StartTime
	m[FieldStartTimeUTC] = r.StartTimeUTC
	m[FieldEndTime] = r.EndTime
	m[FieldEndTimeUTC] = r.EndTimeUTC
	m[FieldTemplateName] = r.TemplateName
	m[FieldWebID] = r.WebID
	m[FieldID] = r.ID
	for k, v := range r.Attributes {
		m[k] = v
	}
	return m
}
