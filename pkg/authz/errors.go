package authz

import "fmt"

// EngineNotFoundError is returned for an unknown engine id.
type EngineNotFoundError struct {
	EngineID string
}

func (e *EngineNotFoundError) Error() string {
	return fmt.Sprintf("engine %q not found", e.EngineID)
}

// InvalidModeError is returned for an unrecognized engine mode.
type InvalidModeError struct {
	Mode string
}

func (e *InvalidModeError) Error() string {
	return fmt.Sprintf("invalid engine mode %q (want %q or %q)", e.Mode, "enforce", "log_only")
}

// GatewayNotAttachedError is returned when detaching a gateway that has no
// engine attached.
type GatewayNotAttachedError struct {
	GatewayID string
}

func (e *GatewayNotAttachedError) Error() string {
	return fmt.Sprintf("gateway %q has no engine attached", e.GatewayID)
}
