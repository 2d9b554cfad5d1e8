// Package mediaserver provides clients for media-server backends
// (Plex, Emby, Jellyfin) and the capability model used to pick the
// refresh operation each backend supports.
package mediaserver

import "context"

// RefreshItem describes one imported media item whose library view
// should be refreshed.
type RefreshItem struct {
	Title      string
	Year       int
	Type       string // movie, series
	Category   string
	TargetPath string // destination directory of the import
}

// Client is the minimal surface every media-server client exposes.
// Ping reports reachability; an error means the server is inactive
// and must be excluded from dispatch.
type Client interface {
	Ping(ctx context.Context) error
}

// ItemRefresher refreshes individual library items by path.
type ItemRefresher interface {
	Client
	RefreshItems(ctx context.Context, items []RefreshItem) error
}

// LibraryRefresher refreshes the whole library. Fallback for backends
// without a per-item refresh API.
type LibraryRefresher interface {
	Client
	RefreshLibrary(ctx context.Context) error
}

// Capability is the refresh operation a client supports, resolved once
// per service and dispatched via an explicit switch.
type Capability int

const (
	CapabilityNone    Capability = iota // no refresh operation available
	CapabilityItems                     // item-scoped refresh (preferred)
	CapabilityLibrary                   // whole-library refresh only
)

func (c Capability) String() string {
	switch c {
	case CapabilityItems:
		return "items"
	case CapabilityLibrary:
		return "library"
	default:
		return "none"
	}
}

// DetectCapability resolves the best refresh operation a client supports.
// Item-scoped refresh wins over whole-library refresh.
func DetectCapability(c Client) Capability {
	switch c.(type) {
	case ItemRefresher:
		return CapabilityItems
	case LibraryRefresher:
		return CapabilityLibrary
	default:
		return CapabilityNone
	}
}
