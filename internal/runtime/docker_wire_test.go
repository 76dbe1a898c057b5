package runtime

import (
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToPortBindings(t *testing.T) {
	tests := []struct {
		name  string
		ports map[string]any
		want  nat.PortMap
	}{
		{
			name:  "json number defaults to tcp",
			ports: map[string]any{"80": float64(8080)},
			want:  nat.PortMap{"80/tcp": {{HostPort: "8080"}}},
		},
		{
			name:  "yaml int with protocol",
			ports: map[string]any{"1812/udp": 1812},
			want:  nat.PortMap{"1812/udp": {{HostPort: "1812"}}},
		},
		{
			name:  "ip and port string",
			ports: map[string]any{"443/tcp": "127.0.0.1:8443"},
			want:  nat.PortMap{"443/tcp": {{HostIP: "127.0.0.1", HostPort: "8443"}}},
		},
		{
			name:  "null binds a random port",
			ports: map[string]any{"53/udp": nil},
			want:  nat.PortMap{"53/udp": {{}}},
		},
		{
			name:  "list of bindings",
			ports: map[string]any{"1813/udp": []any{1813, "0.0.0.0:11813"}},
			want:  nat.PortMap{"1813/udp": {{HostPort: "1813"}, {HostIP: "0.0.0.0", HostPort: "11813"}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exposed, bindings, err := toPortBindings(tt.ports)
			require.NoError(t, err)
			assert.Equal(t, tt.want, bindings)
			for port := range tt.want {
				assert.Contains(t, exposed, port)
			}
		})
	}
}

func TestToPortBindings_Empty(t *testing.T) {
	exposed, bindings, err := toPortBindings(nil)
	require.NoError(t, err)
	assert.Nil(t, exposed)
	assert.Nil(t, bindings)
}

func TestToPortBindings_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		ports map[string]any
	}{
		{"bad container port", map[string]any{"http": 80}},
		{"bad host port string", map[string]any{"80": "eighty"}},
		{"out of range", map[string]any{"80": 70000}},
		{"fractional", map[string]any{"80": 80.5}},
		{"unsupported type", map[string]any{"80": map[string]any{"port": 80}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := toPortBindings(tt.ports)
			assert.Error(t, err)
		})
	}
}

func TestToEnv(t *testing.T) {
	env := toEnv(map[string]any{
		"OKTA_ORG":   "example",
		"RETRIES":    float64(3),
		"DEBUG":      false,
		"EMPTY":      nil,
		"YAML_COUNT": 7,
	})
	assert.Equal(t, []string{
		"DEBUG=false",
		"EMPTY=",
		"OKTA_ORG=example",
		"RETRIES=3",
		"YAML_COUNT=7",
	}, env)
	assert.Nil(t, toEnv(nil))
}
