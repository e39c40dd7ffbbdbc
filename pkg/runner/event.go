package runner

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/models"
)

// DefaultNamespace is contained when the trigger names none
const DefaultNamespace = "default"

// Event is the inbound trigger, shaped like an EventBridge event
type Event struct {
	Mode   string                 `json:"mode"`
	Detail map[string]interface{} `json:"detail"`
}

// ParseEvent decodes a raw trigger. An empty payload is an audit request.
func ParseEvent(raw []byte) (Event, error) {
	var event Event
	if len(raw) == 0 || string(raw) == "null" {
		return event, nil
	}
	if err := json.Unmarshal(raw, &event); err != nil {
		return Event{}, fmt.Errorf("failed to parse event: %w", err)
	}
	return event, nil
}

// Request resolves the event into a containment request. The top-level mode
// wins over detail.mode; anything unrecognised means audit.
func (e Event) Request(now time.Time) models.ContainmentRequest {
	detail := e.Detail
	if detail == nil {
		detail = map[string]interface{}{}
	}

	mode := e.Mode
	if mode == "" {
		mode, _ = detail["mode"].(string)
	}
	namespace, _ := detail["namespace"].(string)
	if namespace == "" {
		namespace = DefaultNamespace
	}

	return models.ContainmentRequest{
		Mode:      models.ParseMode(mode),
		Namespace: namespace,
		Detail:    detail,
		Timestamp: now.Unix(),
	}
}
