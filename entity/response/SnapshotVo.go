package response

import "time"

// SnapshotVo is the HUD wire shape of a session snapshot. Field names
// match the session snapshot so copier can fill it.
type SnapshotVo struct {
	Health string `json:"health"`
	Banner string `json:"banner"`

	Streaming        bool   `json:"streaming"`
	Recording        bool   `json:"recording"`
	BackendConnected bool   `json:"backend_connected"`
	BackendErr       string `json:"backend_err,omitempty"`
	Profile          string `json:"profile,omitempty"`

	CameraState string `json:"camera_state"`

	StopPending      bool   `json:"stop_pending"`
	StopInSeconds    int    `json:"stop_in_seconds"`
	PendingPreset    int    `json:"pending_preset"`
	PresetInSeconds  int    `json:"preset_in_seconds"`
	CriticalAlert    string `json:"critical_alert,omitempty"`
	CriticalAlertAt  string `json:"critical_alert_at,omitempty"`
	RecoveryActive   bool   `json:"recovery_active"`
	RecoveryAttempts int    `json:"recovery_attempts"`

	TimerEnabled       bool   `json:"timer_enabled"`
	TimerStatus        string `json:"timer_status,omitempty"`
	TimerNextTarget    string `json:"timer_next_target,omitempty"`
	TimerCountdownSecs int    `json:"timer_countdown_secs"`

	Events    []string  `json:"events"`
	UpdatedAt time.Time `json:"updated_at"`
}
