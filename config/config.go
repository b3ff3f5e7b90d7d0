package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads a yaml config file and applies defaults for anything
// the file leaves out. Components receive their section at construction
// and must never mutate it.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Config is the full daemon configuration.
type Config struct {
	Common     CommonConfig     `yaml:"common"`
	OBS        OBSConfig        `yaml:"obs"`
	Camera     CameraConfig     `yaml:"camera"`
	Presets    PresetConfig     `yaml:"presets"`
	Safety     SafetyConfig     `yaml:"safety"`
	Recovery   RecoveryConfig   `yaml:"recovery"`
	Timer      TimerConfig      `yaml:"timer"`
	Trigger    TriggerConfig    `yaml:"trigger"`
	HUD        HUDConfig        `yaml:"hud"`
	Store      StoreConfig      `yaml:"store"`
	ServiceEnd ServiceEndConfig `yaml:"service_end"`
}

// CommonConfig holds shared settings.
type CommonConfig struct {
	Log      LogConfig `yaml:"log"`
	Debug    bool      `yaml:"debug"`
	HomeTest bool      `yaml:"home_test"` // simulate camera I/O, relax gating
}

type LogConfig struct {
	Level          string `yaml:"level"`           // debug, info, warn, error
	FilePath       string `yaml:"file_path"`       // "stdout" or a file path
	MaxSize        int    `yaml:"max_size"`        // max size of one log file (MB)
	RetentionCount int    `yaml:"retention_count"` // rotated files to keep
}

// OBSConfig describes the broadcast backend connection and the optional
// profile preflight performed before a stream start.
type OBSConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	Password      string `yaml:"password"`
	AutoReconnect bool   `yaml:"auto_reconnect"`
	CallTimeoutMS int    `yaml:"call_timeout_ms"`

	ProfileCheckEnabled bool   `yaml:"profile_check_enabled"`
	ExpectedProfile     string `yaml:"expected_profile"`
	// block: refuse the start; warn: log and proceed; switch: switch profile
	// then start after SwitchGraceSeconds.
	ProfileMismatchAction string  `yaml:"profile_mismatch_action"`
	SwitchGraceSeconds    float64 `yaml:"switch_grace_seconds"`
}

// CameraConfig describes the VISCA-over-UDP camera.
type CameraConfig struct {
	IP               string `yaml:"ip"`
	ViscaPort        int    `yaml:"visca_port"`
	UseOverIPHeader  bool   `yaml:"use_overip_header"`
	Address          byte   `yaml:"address"`            // VISCA address byte, usually 0x81
	BootSeconds      int    `yaml:"boot_seconds"`       // power-on to usable
	AutoWakeOnPreset bool   `yaml:"auto_wake_on_preset"`
	PresetNumberBase int    `yaml:"preset_number_base"` // preset 1 -> pp=base
}

// PresetConfig holds preset labels and the optional per-preset delays
// applied to automation-sourced recalls.
type PresetConfig struct {
	Labels        map[int]string `yaml:"labels"`
	DelaysEnabled bool           `yaml:"delays_enabled"`
	DelaySeconds  map[int]int    `yaml:"delay_seconds"`
}

// SafetyConfig holds the stream start/stop guard timings.
type SafetyConfig struct {
	StopDelaySeconds        int     `yaml:"stop_delay_seconds"`
	StartDebounceSeconds    float64 `yaml:"start_debounce_seconds"`
	StopIntentExpirySeconds int     `yaml:"stop_intent_expiry_seconds"`
}

// RecoveryConfig tunes the self-healing restart policy.
type RecoveryConfig struct {
	Enabled           bool    `yaml:"enabled"`
	MaxAttempts       int     `yaml:"max_attempts"`
	BaseDelaySeconds  int     `yaml:"base_delay_seconds"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	CooldownSeconds   int     `yaml:"cooldown_seconds"`
	StartGraceSeconds int     `yaml:"start_grace_seconds"`
}

// TimerConfig describes the weekly scheduled auto-start.
type TimerConfig struct {
	Enabled   bool   `yaml:"enabled"`
	StartHHMM string `yaml:"start_hhmm"`
	Weekday   int    `yaml:"weekday"` // Monday=0 .. Sunday=6
	Timezone  string `yaml:"timezone"`
	// local: fall back to the system zone; fixed: use FallbackUTCOffset.
	TZFallbackMode    string `yaml:"tz_fallback_mode"`
	FallbackUTCOffset int    `yaml:"tz_fallback_utc_offset_hours"`
	PersistState      bool   `yaml:"persist_state"`
	GraceMinutes      int    `yaml:"grace_minutes"`
}

// TriggerConfig describes the trigger-source listener. The bridge sends
// small JSON datagrams carrying either a named event or a raw note.
type TriggerConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
	Channel    int    `yaml:"channel"` // 1-based; 0 accepts any channel

	NoteStart        int `yaml:"note_start"`
	NoteStop         int `yaml:"note_stop"`
	NoteRecordToggle int `yaml:"note_record_toggle"`
	NotePresetFirst  int `yaml:"note_preset_first"`
	NotePresetLast   int `yaml:"note_preset_last"`
}

// HUDConfig describes the operator-facing web HUD.
type HUDConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	LogLines int    `yaml:"log_lines"`
}

// StoreConfig selects the timer-state persistence backend.
type StoreConfig struct {
	Backend  string      `yaml:"backend"` // file, redis
	FilePath string      `yaml:"file_path"`
	Redis    RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// ServiceEndConfig gates the optional post-service archive sequence.
// Both Enabled and TriggerStopGate must be on, and the stop must have
// come from the trigger source, before the sequence runs.
type ServiceEndConfig struct {
	Enabled             bool   `yaml:"enabled"`
	TriggerStopGate     bool   `yaml:"trigger_stop_gate"`
	ArchiveRoot         string `yaml:"archive_root"`
	PostStopWaitSeconds int    `yaml:"post_stop_wait_seconds"`
	CopyPreviousLogs    bool   `yaml:"copy_previous_logs"`
	CopyRecordings      bool   `yaml:"copy_recordings"`
	RecordingPath       string `yaml:"recording_path"`
}

// Default returns the shipped defaults, matching a small church setup.
func Default() *Config {
	return &Config{
		Common: CommonConfig{
			Log: LogConfig{Level: "info", FilePath: "stdout", MaxSize: 100, RetentionCount: 30},
		},
		OBS: OBSConfig{
			Host:                  "127.0.0.1",
			Port:                  4455,
			AutoReconnect:         true,
			CallTimeoutMS:         3000,
			ProfileMismatchAction: "block",
			SwitchGraceSeconds:    2.0,
		},
		Camera: CameraConfig{
			ViscaPort:        1259,
			Address:          0x81,
			BootSeconds:      20,
			AutoWakeOnPreset: true,
			PresetNumberBase: 1,
		},
		Presets: PresetConfig{
			Labels: map[int]string{
				1: "Pulpit", 2: "Panorama", 3: "Children's Time", 4: "Altar",
				5: "Choir", 6: "Screen", 7: "Band", 8: "Piano",
				9: "Communion", 10: "(Unassigned)",
			},
			DelaySeconds: map[int]int{},
		},
		Safety: SafetyConfig{
			StopDelaySeconds:        30,
			StartDebounceSeconds:    5.0,
			StopIntentExpirySeconds: 120,
		},
		Recovery: RecoveryConfig{
			Enabled:           true,
			MaxAttempts:       3,
			BaseDelaySeconds:  10,
			BackoffMultiplier: 2.0,
			CooldownSeconds:   300,
			StartGraceSeconds: 30,
		},
		Timer: TimerConfig{
			Enabled:           true,
			StartHHMM:         "09:55",
			Weekday:           6,
			Timezone:          "America/Regina",
			TZFallbackMode:    "local",
			FallbackUTCOffset: -6,
			PersistState:      true,
			GraceMinutes:      15,
		},
		Trigger: TriggerConfig{
			Enabled:          true,
			ListenAddr:       ":9800",
			Channel:          1,
			NoteStart:        60,
			NoteStop:         61,
			NoteRecordToggle: 62,
			NotePresetFirst:  70,
			NotePresetLast:   79,
		},
		HUD: HUDConfig{
			Enabled:  true,
			Host:     "0.0.0.0",
			Port:     "8765",
			LogLines: 30,
		},
		Store: StoreConfig{
			Backend:  "file",
			FilePath: "csg_timer_state.json",
			Redis:    RedisConfig{Addr: "127.0.0.1:6379", Key: "csg:timer_state"},
		},
		ServiceEnd: ServiceEndConfig{
			PostStopWaitSeconds: 60,
			CopyPreviousLogs:    true,
			CopyRecordings:      true,
		},
	}
}

// Validate rejects configurations that would silently misbehave.
func (c *Config) Validate() error {
	switch c.OBS.ProfileMismatchAction {
	case "", "block", "warn", "switch":
	default:
		return fmt.Errorf("obs.profile_mismatch_action must be block, warn or switch, got %q", c.OBS.ProfileMismatchAction)
	}
	if c.Timer.Weekday < 0 || c.Timer.Weekday > 6 {
		return fmt.Errorf("timer.weekday must be 0..6 (Monday=0), got %d", c.Timer.Weekday)
	}
	if _, _, err := ParseHHMM(c.Timer.StartHHMM); err != nil {
		return fmt.Errorf("timer.start_hhmm: %w", err)
	}
	switch c.Store.Backend {
	case "", "file", "redis":
	default:
		return fmt.Errorf("store.backend must be file or redis, got %q", c.Store.Backend)
	}
	return nil
}

// ParseHHMM parses "HH:MM" (a bare "9:55" is accepted).
func ParseHHMM(s string) (hh, mm int, err error) {
	if _, err = fmt.Sscanf(s, "%d:%d", &hh, &mm); err != nil {
		return 0, 0, fmt.Errorf("invalid HH:MM %q", s)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, 0, fmt.Errorf("HH:MM out of range %q", s)
	}
	return hh, mm, nil
}
