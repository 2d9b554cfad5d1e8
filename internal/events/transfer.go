package events

// Entity types
const (
	EntityTransfer = "transfer"
	EntityServer   = "server"
)

// Event type constants
const (
	EventTransferCompleted = "transfer.completed"
	EventRefreshCompleted  = "refresh.completed"
	EventRefreshSkipped    = "refresh.skipped"
	EventRefreshFailed     = "refresh.failed"
)

// Skip reasons carried by RefreshSkipped.
const (
	SkipDisabled    = "disabled"
	SkipNoTarget    = "no_target_path"
	SkipNoServices  = "no_active_services"
	SkipPendingLock = "pending_lock"
)

// MediaInfo identifies the imported media.
type MediaInfo struct {
	Title    string `json:"title"`
	Year     int    `json:"year,omitempty"`
	Type     string `json:"type,omitempty"`     // movie, series
	Category string `json:"category,omitempty"` // library category, e.g. anime
}

// TransferCompleted is emitted when a media file has finished being
// imported into its final library location.
type TransferCompleted struct {
	BaseEvent
	Media      MediaInfo `json:"mediainfo"`
	TargetPath string    `json:"target_path"` // destination directory of the import
}

// RefreshCompleted is emitted after refresh dispatch for a target path
// has been attempted against every active server.
type RefreshCompleted struct {
	BaseEvent
	TargetPath string   `json:"target_path"`
	Servers    []string `json:"servers"` // servers that were dispatched to
}

// RefreshSkipped is emitted when a notification produces no dispatch.
type RefreshSkipped struct {
	BaseEvent
	TargetPath string `json:"target_path,omitempty"`
	Reason     string `json:"reason"`
}

// RefreshFailed is emitted per server whose refresh call errored.
// Failures are isolated; remaining servers are still dispatched to.
type RefreshFailed struct {
	BaseEvent
	TargetPath string `json:"target_path"`
	Server     string `json:"server"`
	Reason     string `json:"reason"`
}
