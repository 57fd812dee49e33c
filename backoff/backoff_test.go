package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPolicy(t *testing.T) {
	p := Default()

	assert.Equal(t, 20*time.Second, p.Base)
	assert.Equal(t, 2*time.Minute, p.Max)
	assert.Equal(t, 1.5, p.Factor)
	assert.NoError(t, p.Validate())
}

func TestNextGrowsUntilCapped(t *testing.T) {
	p := Default()

	// 20s base grows 30s, 45s, 67.5s, 101.25s, then pins at the 120s cap.
	want := []time.Duration{
		30 * time.Second,
		45 * time.Second,
		67500 * time.Millisecond,
		101250 * time.Millisecond,
		120 * time.Second,
		120 * time.Second,
		120 * time.Second,
	}

	current := p.Base
	for i, expected := range want {
		current = p.Next(current)
		assert.Equalf(t, expected, current, "interval after %d consecutive failures", i+1)
	}
}

func TestNextClampsInput(t *testing.T) {
	p := Default()

	assert.Equal(t, 30*time.Second, p.Next(0), "below-base input treated as base")
	assert.Equal(t, 30*time.Second, p.Next(5*time.Second))
	assert.Equal(t, 2*time.Minute, p.Next(119*time.Second))
	assert.Equal(t, 2*time.Minute, p.Next(2*time.Minute))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		wantErr bool
	}{
		{"default", Default(), false},
		{"custom", Policy{Base: time.Second, Max: time.Minute, Factor: 2}, false},
		{"constant interval", Policy{Base: time.Second, Max: time.Second, Factor: 1}, false},
		{"zero base", Policy{Max: time.Minute, Factor: 1.5}, true},
		{"negative base", Policy{Base: -time.Second, Max: time.Minute, Factor: 1.5}, true},
		{"max below base", Policy{Base: time.Minute, Max: time.Second, Factor: 1.5}, true},
		{"shrinking factor", Policy{Base: time.Second, Max: time.Minute, Factor: 0.5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
