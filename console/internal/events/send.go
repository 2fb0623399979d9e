package events

import (
	"strings"

	"github.com/gsv-labs/gsv/console/internal/run"
)

// SendResult is the acknowledgement of a chat.send call.
type SendResult struct {
	// Directive is set when the gateway handled the message itself and no
	// run will follow.
	Directive bool
	RunID     string
	Phase     run.Phase
	HasPhase  bool
	Response  string
	Error     string
}

// ParseSendResult interprets a chat.send response payload. A top-level error
// string is always reported regardless of status.
func ParseSendResult(d Doc) SendResult {
	var res SendResult
	status, _ := d.Str("status")
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "started", "running":
		res.RunID = RunID(d)
		res.Phase, res.HasPhase = run.Running, true
	case "queued":
		res.RunID = RunID(d)
		res.Phase, res.HasPhase = run.Queued, true
	case "command", "directive", "directive-only":
		res.Response, _ = d.Str("response")
		res.Directive = true
	}
	if e, ok := d.Str("error"); ok {
		res.Error = e
	}
	return res
}
