package v1

import "time"

// transferNotification is the webhook payload sent by the host when a
// transfer finishes. Field names follow the host's wire format.
type transferNotification struct {
	MediaInfo struct {
		Title    string `json:"title"`
		Year     int    `json:"year,omitempty"`
		Type     string `json:"type,omitempty"`
		Category string `json:"category,omitempty"`
	} `json:"mediainfo"`
	TransferInfo struct {
		TargetDirItem struct {
			Path string `json:"path"`
		} `json:"target_diritem"`
	} `json:"transferinfo"`
}

type notifyResponse struct {
	EventID string `json:"event_id"`
	Status  string `json:"status"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Servers int    `json:"servers"`
}

type serverResponse struct {
	Name       string `json:"name"`
	Capability string `json:"capability"`
	Connected  bool   `json:"connected"`
	Error      string `json:"error,omitempty"`
}

type eventResponse struct {
	ID         int64     `json:"id"`
	EventType  string    `json:"event_type"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

type listEventsResponse struct {
	Items []eventResponse `json:"items"`
	Total int             `json:"total"`
}
