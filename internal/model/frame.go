package model

// FrameDescriptor is the raw PI Web API representation of one event frame,
// as returned by the asset database eventframes endpoint.
type FrameDescriptor struct {
	ID           string     `json:"Id"`
	Name         string     `json:"Name"`
	StartTime    string     `json:"StartTime"` // UTC, RFC 3339-ish as sent by the server
	EndTime      string     `json:"EndTime"`   // "9999-12-31..." while the frame is still open
	TemplateName string     `json:"TemplateName"`
	WebID        string     `json:"WebId"`
	Links        FrameLinks `json:"Links"`
}

// FrameLinks holds the follow-up URLs attached to a frame descriptor.
type FrameLinks struct {
	Attributes string `json:"Attributes"`
}

// AttributeDescriptor is one named attribute of an event frame. The value is
// either inline or behind the Value link.
type AttributeDescriptor struct {
	Name  string         `json:"Name"`
	Value any            `json:"Value"`
	Links AttributeLinks `json:"Links"`
}

// AttributeLinks holds the follow-up URLs attached to an attribute descriptor.
type AttributeLinks struct {
	Value string `json:"Value"`
}

// ItemsEnvelope is the PI Web API list wrapper: {"Items": [...]}.
type ItemsEnvelope[T any] struct {
	Items []T `json:"Items"`
}

// ValueEnvelope is the PI Web API value wrapper: {"Value": ...}. The payload
// may itself be one more {"Value": ...} envelope deep.
type ValueEnvelope struct {
	Value any `json:"Value"`
}

// OpenFramePrefix marks an event frame that has not yet closed. Frames whose
// end time starts with it are excluded from extraction.
const OpenFramePrefix = "9999-12-31"

// IsOpen reports whether the frame carries the far-future end-time sentinel.
func (f FrameDescriptor) IsOpen() bool {
	return len(f.EndTime) >= len(OpenFramePrefix) && f.EndTime[:len(OpenFramePrefix)] == OpenFramePrefix
}
