package request

// PresetRequest selects a camera preset from the HUD.
type PresetRequest struct {
	Preset int `json:"preset" binding:"required,min=1,max=10"`
}
