package models

// Job statuses as projected from the tracking stream.
const (
	JobStatusAssigned   = "assigned"
	JobStatusInProgress = "in_progress"
	JobStatusCompleted  = "completed"
)

// Tracking message types delivered over the job event stream.
const (
	MsgLocationUpdated = "location_updated"
	MsgJobAccepted     = "job_accepted"
	MsgJobStarted      = "job_started"
	MsgJobCompleted    = "job_completed"
)

// ProLocation is the contractor's last reported position.
type ProLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// JobTrackingState is the UI-consumable snapshot projected from the
// stream. Status and ProLocation survive reconnects; IsConnected flips
// on every open/close.
type JobTrackingState struct {
	Status      string                 `json:"status,omitempty"`
	LastUpdate  map[string]interface{} `json:"last_update,omitempty"`
	IsConnected bool                   `json:"is_connected"`
	ProLocation *ProLocation           `json:"pro_location,omitempty"`
}
