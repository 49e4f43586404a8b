package edge

import (
	"testing"

	"github.com/klothoplatform/infratopo/pkg/compute"
	"github.com/klothoplatform/infratopo/pkg/construct"
	topo_errs "github.com/klothoplatform/infratopo/pkg/errors"
	"github.com/klothoplatform/infratopo/pkg/identity"
	"github.com/klothoplatform/infratopo/pkg/network"
	"github.com/klothoplatform/infratopo/pkg/provider/aws/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	reg    *construct.Registry
	net    *network.Network
	router *network.SecurityGroup
	poolSg *network.SecurityGroup
	pool   *compute.ElasticPool
	fixed  *compute.FixedInstance
}

func newFixture(t *testing.T) fixture {
	reg := construct.NewRegistry()
	reg.SetStack("network")
	n, err := network.Build(reg, network.Params{Name: "main", CidrBlock: "10.0.0.0/16", Region: "us-east-1"})
	require.NoError(t, err)
	router, err := n.AddSecurityGroup("router", "")
	require.NoError(t, err)
	poolSg, err := n.AddSecurityGroup("pool", "")
	require.NoError(t, err)

	reg.SetStack("identity")
	role, err := identity.Build(reg, identity.Params{Name: "role", SecretPrefix: "secret"})
	require.NoError(t, err)

	reg.SetStack("compute")
	bootstrapped := func(name string) compute.Bootstrapped {
		return compute.Bootstrapped{
			Name:           name,
			InstanceType:   "t2.small",
			Role:           role,
			SecurityGroups: []*network.SecurityGroup{poolSg},
		}
	}
	pool, err := compute.BuildElasticPool(reg, n, compute.ElasticPoolParams{Bootstrapped: bootstrapped("pool"), Min: 2, Max: 10})
	require.NoError(t, err)
	fixed, err := compute.BuildFixedInstance(reg, n, compute.FixedInstanceParams{Bootstrapped: bootstrapped("web")})
	require.NoError(t, err)

	reg.SetStack("edge")
	return fixture{reg: reg, net: n, router: router, poolSg: poolSg, pool: pool, fixed: fixed}
}

func TestBuild(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	f := newFixture(t)

	r, err := Build(f.reg, f.net, Params{
		Name:                   "Router",
		Target:                 f.pool,
		SecurityGroup:          f.router,
		Port:                   80,
		RequestTargetPerMinute: 60,
		OpenIngress:            true,
	})
	require.NoError(err)
	assert.Equal(f.pool.Id, r.Pool)

	lb, err := construct.Resolve[*resources.LoadBalancer](f.reg, "test", r.Id)
	require.NoError(err)
	assert.Equal("router", lb.Name)
	assert.Equal(resources.INTERNET_FACING, lb.Scheme)
	assert.Equal(f.net.Subnets(resources.PublicSubnet), lb.Subnets)

	tg, err := construct.Resolve[*resources.TargetGroup](f.reg, "test", r.TargetGroup)
	require.NoError(err)
	assert.Equal([]construct.ResourceId{f.pool.Id}, tg.Targets)
	assert.Equal(80, tg.Port)

	listener, err := construct.Resolve[*resources.Listener](f.reg, "test", r.Listener)
	require.NoError(err)
	assert.Equal(r.TargetGroup, listener.DefaultAction.TargetGroup)

	routerSg, err := f.router.Definition()
	require.NoError(err)
	if assert.Len(routerSg.IngressRules, 1) {
		assert.True(routerSg.IngressRules[0].IsAnyIPv4())
	}
	poolSg, err := f.poolSg.Definition()
	require.NoError(err)
	if assert.Len(poolSg.IngressRules, 1) {
		assert.Equal(f.router.Id, poolSg.IngressRules[0].Source)
	}

	policy, err := construct.Resolve[*resources.ScalingPolicy](f.reg, "test", r.ScalingPolicy)
	require.NoError(err)
	assert.Equal(60.0, policy.TargetValue)
	assert.Equal("edge", f.reg.StackOf(policy.Id()))

	ok, err := f.reg.DependsOn(r.Listener, f.pool.Id)
	require.NoError(err)
	assert.True(ok, "listener depends on the pool through the target group")

	out, ok := f.reg.Outputs()[DnsOutput]
	require.True(ok)
	assert.Equal("${aws:load_balancer:router#dns_name}", out.Placeholder())
}

func TestBuild_ClosedIngress(t *testing.T) {
	f := newFixture(t)
	r, err := Build(f.reg, f.net, Params{Name: "router", Target: f.pool, SecurityGroup: f.router, TargetPort: 8080})
	require.NoError(t, err)
	assert.True(t, r.ScalingPolicy.IsZero())

	routerSg, err := f.router.Definition()
	require.NoError(t, err)
	assert.Empty(t, routerSg.IngressRules)

	poolSg, err := f.poolSg.Definition()
	require.NoError(t, err)
	if assert.Len(t, poolSg.IngressRules, 1) {
		assert.Equal(t, 8080, poolSg.IngressRules[0].FromPort)
	}
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(f fixture, p *Params)
		wantErr func(error) bool
	}{
		{
			name:    "no target",
			modify:  func(f fixture, p *Params) { p.Target = nil },
			wantErr: topo_errs.IsReferenceError,
		},
		{
			name:    "fixed instance target",
			modify:  func(f fixture, p *Params) { p.Target = f.fixed },
			wantErr: topo_errs.IsReferenceError,
		},
		{
			name:    "nil pool",
			modify:  func(f fixture, p *Params) { p.Target = (*compute.ElasticPool)(nil) },
			wantErr: topo_errs.IsReferenceError,
		},
		{
			name:    "nil fixed instance",
			modify:  func(f fixture, p *Params) { p.Target = (*compute.FixedInstance)(nil) },
			wantErr: topo_errs.IsReferenceError,
		},
		{
			name:    "unregistered pool",
			modify:  func(f fixture, p *Params) { p.Target = &compute.ElasticPool{} },
			wantErr: topo_errs.IsReferenceError,
		},
		{
			name:    "no security group",
			modify:  func(f fixture, p *Params) { p.SecurityGroup = nil },
			wantErr: topo_errs.IsReferenceError,
		},
		{
			name:    "no name",
			modify:  func(f fixture, p *Params) { p.Name = "" },
			wantErr: topo_errs.IsConfigurationError,
		},
		{
			name:    "invalid port",
			modify:  func(f fixture, p *Params) { p.Port = 70000 },
			wantErr: topo_errs.IsConfigurationError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			params := Params{Name: "router", Target: f.pool, SecurityGroup: f.router, OpenIngress: true}
			tt.modify(f, &params)
			_, err := Build(f.reg, f.net, params)
			assert.True(t, tt.wantErr(err), "unexpected error: %v", err)
			assert.Empty(t, construct.ListOf[*resources.LoadBalancer](f.reg))
		})
	}
}
