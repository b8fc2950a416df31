package mag

import (
	"context"
	"fmt"
	"testing"
)

func TestMockMagnetometer_StaticValue(t *testing.T) {
	m := NewMockMagnetometer(func(ctx context.Context) (float32, float32, float32, error) { return 12.5, -3.25, 48, nil })
	ctx := context.Background()
	x, y, z, err := m.ReadAll(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if x != 12.5 || y != -3.25 || z != 48 {
		t.Errorf("expected (12.5, -3.25, 48), got (%v, %v, %v)", x, y, z)
	}
}

func TestMockMagnetometer_Dynamic(t *testing.T) {
	val := float32(100)
	m := NewMockMagnetometer(func(ctx context.Context) (float32, float32, float32, error) { return val, 0, 0, nil })
	ctx := context.Background()

	x, _, _, _ := m.ReadAll(ctx)
	if x != 100 {
		t.Errorf("expected 100, got %v", x)
	}
	val = 250
	x, _, _, _ = m.ReadAll(ctx)
	if x != 250 {
		t.Errorf("expected 250, got %v", x)
	}
}

func TestMockMagnetometer_Error(t *testing.T) {
	m := NewMockMagnetometer(func(ctx context.Context) (float32, float32, float32, error) {
		return 0, 0, 0, fmt.Errorf("sensor error")
	})
	ctx := context.Background()
	_, _, _, err := m.ReadAll(ctx)
	if err == nil || err.Error() != "sensor error" {
		t.Errorf("expected sensor error, got %v", err)
	}
}

func TestMockMagnetometer_ContextPropagation(t *testing.T) {
	var received context.Context
	m := NewMockMLX90393(func(ctx context.Context) (float32, float32, float32, error) { received = ctx; return 1, 2, 3, nil })
	type ctxKey string
	key := ctxKey("k")
	ctx := context.WithValue(context.Background(), key, "v")
	_, _, _, _ = m.ReadAll(ctx)
	if received.Value(key) != "v" {
		t.Error("context was not propagated")
	}
}
