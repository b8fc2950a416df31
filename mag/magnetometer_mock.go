package mag

import (
	"context"
)

// FieldBehaviorFunc defines the function signature for magnetic field
// behavior. It returns the field vector in microtesla or an error.
type FieldBehaviorFunc func(ctx context.Context) (x, y, z float32, err error)

// MockMagnetometer is a mock implementation of a triaxial magnetometer that
// uses a behavior function to produce results without requiring hardware.
// This can be used to mock sensors like the MLX90393.
type MockMagnetometer struct {
	behavior FieldBehaviorFunc
}

// NewMockMagnetometer creates a new mock magnetometer with the given behavior
// function. The behavior function is called whenever ReadAll is invoked.
//
// Example usage:
//
//	m := NewMockMagnetometer(func(ctx context.Context) (float32, float32, float32, error) { return 12.5, -3.2, 48.0, nil })
func NewMockMagnetometer(behavior FieldBehaviorFunc) *MockMagnetometer {
	return &MockMagnetometer{behavior: behavior}
}

// ReadAll returns the field vector (in microtesla) by calling the behavior
// function.
func (m *MockMagnetometer) ReadAll(ctx context.Context) (x, y, z float32, err error) {
	return m.behavior(ctx)
}

// NewMockMLX90393 creates a new mock MLX90393 (alias for NewMockMagnetometer).
func NewMockMLX90393(behavior FieldBehaviorFunc) *MockMagnetometer {
	return &MockMagnetometer{behavior: behavior}
}
