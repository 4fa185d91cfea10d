package main

import (
	"testing"

	"mytestbed/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPreset_AllRegisteredAreValid(t *testing.T) {
	names := presetNames()
	require.NotEmpty(t, names)
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			cfg, err := buildPreset(name)
			require.NoError(t, err)
			require.NotNil(t, cfg)
			assert.Len(t, cfg.NodesByRole(domain.RoleSource), 1)
			assert.NotEmpty(t, cfg.NodesByRole(domain.RoleLoadBalancer))
			assert.NotEmpty(t, cfg.NodesByRole(domain.RoleService))
		})
	}
}

func TestBuildPreset_TwoTierShape(t *testing.T) {
	cfg, err := buildPreset("two-tier")
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.TopologyDepth)
	require.Len(t, cfg.Nodes, 7)

	src, err := cfg.FindNode("source")
	require.NoError(t, err)
	assert.Equal(t, domain.Address{Host: "127.0.0.1", Port: 2000}, src.Target)

	// Each balancer's pool occupies the ports directly above its own.
	lb, err := cfg.FindNode("lb1")
	require.NoError(t, err)
	pool := domain.DeriveRange(lb.ServiceHost, lb.Port, lb.ServiceCount)
	for _, addr := range pool {
		var member NodeConfig
		found := false
		for _, nc := range cfg.Nodes {
			if nc.Role == domain.RoleService && nc.Port == addr.Port {
				member, found = nc, true
				break
			}
		}
		require.True(t, found, "no service on derived port %d", addr.Port)
		assert.Equal(t, domain.Address{Host: "127.0.0.1", Port: 3000}, member.Target)
		assert.False(t, member.TargetIsSource)
	}

	// The last tier delivers straight back to the source.
	terminal, err := cfg.FindNode("svc2-1")
	require.NoError(t, err)
	assert.True(t, terminal.TargetIsSource)
	assert.Equal(t, src.Port, terminal.Target.Port)
}

func TestBuildPreset_SingleTierShape(t *testing.T) {
	cfg, err := buildPreset("single-tier")
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.TopologyDepth)
	require.Len(t, cfg.Nodes, 4)
	for _, nc := range cfg.NodesByRole(domain.RoleService) {
		assert.True(t, nc.TargetIsSource)
	}
}

func TestBuildPreset_Unknown(t *testing.T) {
	_, err := buildPreset("mesh")
	require.ErrorIs(t, err, ErrUnknownPreset)
	assert.Contains(t, err.Error(), "two-tier")
	assert.Contains(t, err.Error(), "single-tier")
}
