package ir

// Version constants for the frame format and engine.
const (
	// FrameVersion is the serialized frame schema version.
	FrameVersion = "1"

	// EngineVersion is the animlist engine version.
	EngineVersion = "0.1.0"
)
