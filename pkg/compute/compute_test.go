package compute

import (
	"testing"

	"github.com/klothoplatform/infratopo/pkg/construct"
	topo_errs "github.com/klothoplatform/infratopo/pkg/errors"
	"github.com/klothoplatform/infratopo/pkg/identity"
	"github.com/klothoplatform/infratopo/pkg/network"
	"github.com/klothoplatform/infratopo/pkg/provider/aws/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	reg  *construct.Registry
	net  *network.Network
	sg   *network.SecurityGroup
	role *identity.Role
}

func newFixture(t *testing.T) fixture {
	reg := construct.NewRegistry()
	reg.SetStack("network")
	n, err := network.Build(reg, network.Params{Name: "main", CidrBlock: "10.0.0.0/16", Region: "us-east-1"})
	require.NoError(t, err)
	sg, err := n.AddSecurityGroup("asg", "")
	require.NoError(t, err)
	reg.SetStack("identity")
	role, err := identity.Build(reg, identity.Params{Name: "role", SecretPrefix: "secret"})
	require.NoError(t, err)
	reg.SetStack("compute")
	return fixture{reg: reg, net: n, sg: sg, role: role}
}

func (f fixture) bootstrapped(name string) Bootstrapped {
	return Bootstrapped{
		Name:            name,
		InstanceType:    "t2.small",
		BootstrapScript: "#!/bin/bash\nyum update -y\n",
		Role:            f.role,
		SecurityGroups:  []*network.SecurityGroup{f.sg},
		Environment:     map[string]string{"REGION": "us-east-1", "db-host.name": "aurora"},
	}
}

func TestBuildFixedInstance(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	f := newFixture(t)

	fixed, err := BuildFixedInstance(f.reg, f.net, FixedInstanceParams{Bootstrapped: f.bootstrapped("web")})
	require.NoError(err)

	instance, err := construct.Resolve[*resources.Ec2Instance](f.reg, "test", fixed.Id)
	require.NoError(err)
	assert.Equal(f.net.Subnets(resources.PublicSubnet)[0], instance.Subnet)
	assert.Equal(resources.LATEST_AMAZON_LINUX_2, instance.Image)
	assert.Equal([]construct.ResourceId{f.sg.Id}, instance.SecurityGroups)
	assert.Equal("#!/bin/bash\nyum update -y\n", instance.UserData)
	assert.Equal(map[string]string{"REGION": "us-east-1", "db_host_name": "aurora"}, instance.Environment)

	profile, err := construct.Resolve[*resources.InstanceProfile](f.reg, "test", instance.InstanceProfile)
	require.NoError(err)
	assert.Equal(f.role.Id, profile.Role)

	ok, err := f.reg.DependsOn(fixed.Id, f.role.Id)
	require.NoError(err)
	assert.True(ok, "instance depends on its role through the instance profile")

	var unit Unit = fixed
	assert.Equal(fixed.Id, unit.ResourceId())
	assert.Same(f.role, unit.Role())
}

func TestBuildElasticPool(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	f := newFixture(t)

	pool, err := BuildElasticPool(f.reg, f.net, ElasticPoolParams{
		Bootstrapped: f.bootstrapped("pool"),
		Min:          2,
		Max:          10,
	})
	require.NoError(err)

	asg, err := construct.Resolve[*resources.AutoScalingGroup](f.reg, "test", pool.Id)
	require.NoError(err)
	assert.Equal(2, asg.MinSize)
	assert.Equal(2, asg.DesiredCapacity)
	assert.Equal(10, asg.MaxSize)
	assert.Equal(f.net.Subnets(resources.PrivateWithEgressSubnet), asg.Subnets)

	if assert.Len(pool.Policies, 1) {
		policy, err := construct.Resolve[*resources.ScalingPolicy](f.reg, "test", pool.Policies[0])
		require.NoError(err)
		assert.Equal(resources.StepScaling, policy.PolicyType)
		assert.Equal(resources.CPU_UTILIZATION, policy.MetricName)
		assert.Len(policy.Steps, 3)
		assert.Equal("compute", f.reg.StackOf(policy.Id()))
	}
}

func TestBuildElasticPool_SubnetIndexes(t *testing.T) {
	f := newFixture(t)
	params := ElasticPoolParams{Bootstrapped: f.bootstrapped("pool"), Min: 1, Max: 2, Steps: []resources.ScalingStep{}}
	// private subnets are isolated first, then with egress
	params.Subnets = SubnetSelection{Indexes: []int{2, 3}}

	pool, err := BuildElasticPool(f.reg, f.net, params)
	require.NoError(t, err)
	asg, err := construct.Resolve[*resources.AutoScalingGroup](f.reg, "test", pool.Id)
	require.NoError(t, err)
	assert.Equal(t, f.net.Subnets(resources.PrivateWithEgressSubnet), asg.Subnets)
	assert.Empty(t, pool.Policies)
}

func TestBuildElasticPool_Errors(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(f fixture, p *ElasticPoolParams)
		wantErr func(error) bool
	}{
		{
			name:    "min above max",
			modify:  func(f fixture, p *ElasticPoolParams) { p.Min, p.Max = 5, 2 },
			wantErr: topo_errs.IsConfigurationError,
		},
		{
			name:    "zero min",
			modify:  func(f fixture, p *ElasticPoolParams) { p.Min = 0 },
			wantErr: topo_errs.IsConfigurationError,
		},
		{
			name:    "desired above max",
			modify:  func(f fixture, p *ElasticPoolParams) { p.Desired = 11 },
			wantErr: topo_errs.IsConfigurationError,
		},
		{
			name: "overlapping steps",
			modify: func(f fixture, p *ElasticPoolParams) {
				p.Steps = []resources.ScalingStep{{Upper: bound(20), Change: -1}, {Lower: bound(10), Change: 1}}
			},
			wantErr: topo_errs.IsConfigurationError,
		},
		{
			name:    "isolated subnets",
			modify:  func(f fixture, p *ElasticPoolParams) { p.Subnets = SubnetSelection{Kind: resources.PrivateIsolatedSubnet} },
			wantErr: topo_errs.IsConfigurationError,
		},
		{
			name:    "subnet index out of range",
			modify:  func(f fixture, p *ElasticPoolParams) { p.Subnets = SubnetSelection{Indexes: []int{7}} },
			wantErr: topo_errs.IsConfigurationError,
		},
		{
			name:    "no role",
			modify:  func(f fixture, p *ElasticPoolParams) { p.Role = nil },
			wantErr: topo_errs.IsReferenceError,
		},
		{
			name:    "no security group",
			modify:  func(f fixture, p *ElasticPoolParams) { p.SecurityGroups = nil },
			wantErr: topo_errs.IsReferenceError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			params := ElasticPoolParams{Bootstrapped: f.bootstrapped("pool"), Min: 2, Max: 10}
			tt.modify(f, &params)
			_, err := BuildElasticPool(f.reg, f.net, params)
			assert.True(t, tt.wantErr(err), "unexpected error: %v", err)
			assert.False(t, f.reg.Has(construct.ResourceId{Provider: "aws", Type: resources.AUTO_SCALING_GROUP_TYPE, Name: "pool"}))
		})
	}
}

func TestElasticPool_ScaleOnRequestCount(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	f := newFixture(t)

	pool, err := BuildElasticPool(f.reg, f.net, ElasticPoolParams{Bootstrapped: f.bootstrapped("pool"), Min: 2, Max: 10})
	require.NoError(err)

	tg := &resources.TargetGroup{Name: "tg", Vpc: f.net.Vpc, Port: 80, Protocol: resources.HTTP, Targets: []construct.ResourceId{pool.Id}}
	require.NoError(f.reg.Add(tg))

	id, err := pool.ScaleOnRequestCount(tg.Id(), 60)
	require.NoError(err)
	policy, err := construct.Resolve[*resources.ScalingPolicy](f.reg, "test", id)
	require.NoError(err)
	assert.Equal(resources.TargetTrackingScaling, policy.PolicyType)
	assert.Equal(60.0, policy.TargetValue)
	assert.Equal(tg.Id(), policy.TargetGroup)
	assert.Len(pool.Policies, 2)

	_, err = pool.ScaleOnRequestCount(tg.Id(), 0)
	assert.True(topo_errs.IsConfigurationError(err))
	_, err = pool.ScaleOnRequestCount(construct.ResourceId{}, 60)
	assert.True(topo_errs.IsReferenceError(err))
}
