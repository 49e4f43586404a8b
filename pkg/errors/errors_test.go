package topo_errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigurationError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  ConfigurationError
		want string
	}{
		{
			name: "component and field",
			err:  ConfigurationError{Component: "network", Field: "cidr", Reason: "not a CIDR block"},
			want: "configuration error in network (cidr): not a CIDR block",
		},
		{
			name: "with cause",
			err: ConfigurationError{
				Component: "datatier",
				Reason:    "invalid engine version",
				Err:       errors.New("boom"),
			},
			want: "configuration error in datatier: invalid engine version: boom",
		},
		{
			name: "reason only",
			err:  ConfigurationError{Reason: "bad"},
			want: "configuration error: bad",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestReferenceError_Error(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(
		"reference error: aws:load_balancer:alb consumes aws:autoscaling_group:pool: not registered",
		ReferenceError{Consumer: "aws:load_balancer:alb", Ref: "aws:autoscaling_group:pool", Reason: "not registered"}.Error(),
	)
	assert.Equal(
		"reference error: edge router consumes an empty reference",
		ReferenceError{Consumer: "edge router"}.Error(),
	)
}

func TestIsHelpers(t *testing.T) {
	assert := assert.New(t)

	cfg := Configf("compute", "steps", "step %d overlaps step %d", 1, 2)
	ref := ReferenceError{Consumer: "a", Ref: "b"}

	wrapped := fmt.Errorf("assemble: %w", errors.Join(cfg, ref))

	assert.True(IsConfigurationError(wrapped))
	assert.True(IsReferenceError(wrapped))
	assert.False(IsConfigurationError(errors.New("plain")))
	assert.Equal(ConfigInvalidCode, cfg.ErrorCode())
	assert.Equal(ReferenceMissingCode, ref.ErrorCode())
}

func TestCollect(t *testing.T) {
	assert := assert.New(t)

	cfg := Configf("network", "", "bad")
	ref := ReferenceError{Consumer: "a", Ref: "b"}

	got := Collect(fmt.Errorf("outer: %w", errors.Join(cfg, errors.New("untyped"), ref)))
	assert.Equal([]TopologyError{cfg, ref}, got)
	assert.Nil(Collect(nil))
}
