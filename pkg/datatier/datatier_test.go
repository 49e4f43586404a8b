package datatier

import (
	"testing"

	"github.com/klothoplatform/infratopo/pkg/construct"
	topo_errs "github.com/klothoplatform/infratopo/pkg/errors"
	"github.com/klothoplatform/infratopo/pkg/network"
	"github.com/klothoplatform/infratopo/pkg/provider/aws/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	reg *construct.Registry
	net *network.Network
	db  *network.SecurityGroup
	web *network.SecurityGroup
}

func newFixture(t *testing.T) fixture {
	reg := construct.NewRegistry()
	reg.SetStack("network")
	n, err := network.Build(reg, network.Params{Name: "main", CidrBlock: "10.0.0.0/16", Region: "us-east-1"})
	require.NoError(t, err)
	db, err := n.AddSecurityGroup("db", "")
	require.NoError(t, err)
	web, err := n.AddSecurityGroup("web", "")
	require.NoError(t, err)
	reg.SetStack("data")
	return fixture{reg: reg, net: n, db: db, web: web}
}

func (f fixture) params() Params {
	return Params{
		Identifier:    "demo",
		DatabaseName:  "covid",
		EngineVersion: "2.07.2",
		InstanceClass: "t3.small",
		Tier:          resources.PrivateIsolatedSubnet,
		SecurityGroup: f.db,
		Consumers:     []*network.SecurityGroup{f.web},
		SecretName:    "aurora-secret-name",
	}
}

func TestBuild(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	f := newFixture(t)

	params := f.params()
	params.ReaderCount = 1
	retention := 7
	params.BackupRetentionDays = &retention
	params.BackupWindow = "16:00-16:30"

	c, err := Build(f.reg, f.net, params)
	require.NoError(err)

	cluster, err := construct.Resolve[*resources.RdsCluster](f.reg, "test", c.Id)
	require.NoError(err)
	assert.Equal("demo", cluster.ClusterIdentifier)
	assert.Equal("covid", cluster.DatabaseName)
	assert.Equal("5.7.mysql_aurora.2.07.2", cluster.EngineVersion)
	assert.Equal(c.Secret, cluster.Credentials)
	assert.Equal([]construct.ResourceId{f.db.Id}, cluster.SecurityGroups)
	assert.False(cluster.DeletionProtection)
	assert.Equal(resources.RemovalPolicyDestroy, cluster.RemovalPolicy)
	assert.Equal(7, *cluster.BackupRetentionPeriod)

	secret, err := construct.Resolve[*resources.Secret](f.reg, "test", c.Secret)
	require.NoError(err)
	assert.Equal("aurora-secret-name", secret.SecretName)
	assert.Equal(`{"username":"admin"}`, secret.Generate.SecretStringTemplate)
	assert.Equal(`"@/\`, secret.Generate.ExcludeCharacters)

	subnetGroup, err := construct.Resolve[*resources.RdsSubnetGroup](f.reg, "test", c.SubnetGroup)
	require.NoError(err)
	assert.Equal(f.net.Subnets(resources.PrivateIsolatedSubnet), subnetGroup.Subnets)

	if assert.Len(c.Instances, 2) {
		writer, err := construct.Resolve[*resources.RdsInstance](f.reg, "test", c.Instances[0])
		require.NoError(err)
		assert.True(writer.Writer)
		assert.Equal("db.t3.small", writer.InstanceClass)
		reader, err := construct.Resolve[*resources.RdsInstance](f.reg, "test", c.Instances[1])
		require.NoError(err)
		assert.False(reader.Writer)
		assert.False(reader.PubliclyAccessible)
	}

	sg, err := f.db.Definition()
	require.NoError(err)
	if assert.Len(sg.IngressRules, 1) {
		assert.Equal(f.web.Id, sg.IngressRules[0].Source)
		assert.Equal(resources.MYSQL_PORT, sg.IngressRules[0].FromPort)
	}
	assert.NoError(VerifyIngress(f.reg, c.Id))

	out, ok := f.reg.Outputs()[SecretOutput]
	require.True(ok)
	assert.Equal(c.Secret, out.Ref)

	assert.Equal("data", f.reg.StackOf(c.Id))
	assert.Equal("network", f.reg.StackOf(f.db.Id))
}

func TestBuild_DeletionProtection(t *testing.T) {
	f := newFixture(t)
	params := f.params()
	params.DeletionProtection = true
	c, err := Build(f.reg, f.net, params)
	require.NoError(t, err)
	cluster, err := construct.Resolve[*resources.RdsCluster](f.reg, "test", c.Id)
	require.NoError(t, err)
	assert.True(t, cluster.DeletionProtection)
	assert.Equal(t, resources.RemovalPolicyRetain, cluster.RemovalPolicy)
}

func TestBuild_Errors(t *testing.T) {
	ninety := 90
	tests := []struct {
		name    string
		modify  func(t *testing.T, f fixture, p *Params)
		wantErr func(error) bool
	}{
		{
			name:    "public tier",
			modify:  func(t *testing.T, f fixture, p *Params) { p.Tier = resources.PublicSubnet },
			wantErr: topo_errs.IsConfigurationError,
		},
		{
			name:    "unknown tier",
			modify:  func(t *testing.T, f fixture, p *Params) { p.Tier = "" },
			wantErr: topo_errs.IsConfigurationError,
		},
		{
			name:    "negative readers",
			modify:  func(t *testing.T, f fixture, p *Params) { p.ReaderCount = -1 },
			wantErr: topo_errs.IsConfigurationError,
		},
		{
			name:    "retention out of range",
			modify:  func(t *testing.T, f fixture, p *Params) { p.BackupRetentionDays = &ninety },
			wantErr: topo_errs.IsConfigurationError,
		},
		{
			name:    "short backup window",
			modify:  func(t *testing.T, f fixture, p *Params) { p.BackupWindow = "16:00-16:10" },
			wantErr: topo_errs.IsConfigurationError,
		},
		{
			name:    "malformed backup window",
			modify:  func(t *testing.T, f fixture, p *Params) { p.BackupWindow = "4pm" },
			wantErr: topo_errs.IsConfigurationError,
		},
		{
			name:    "unsupported engine",
			modify:  func(t *testing.T, f fixture, p *Params) { p.EngineVersion = "1.22.2" },
			wantErr: topo_errs.IsConfigurationError,
		},
		{
			name:    "no security group",
			modify:  func(t *testing.T, f fixture, p *Params) { p.SecurityGroup = nil },
			wantErr: topo_errs.IsReferenceError,
		},
		{
			name:    "missing consumer",
			modify:  func(t *testing.T, f fixture, p *Params) { p.Consumers = []*network.SecurityGroup{nil} },
			wantErr: topo_errs.IsReferenceError,
		},
		{
			name: "security group open to the internet",
			modify: func(t *testing.T, f fixture, p *Params) {
				require.NoError(t, f.db.AllowAnyIPv4(3306, "open"))
			},
			wantErr: topo_errs.IsConfigurationError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			params := f.params()
			tt.modify(t, f, &params)
			_, err := Build(f.reg, f.net, params)
			assert.True(t, tt.wantErr(err), "unexpected error: %v", err)
		})
	}
}

func TestVerifyIngress(t *testing.T) {
	f := newFixture(t)
	c, err := Build(f.reg, f.net, f.params())
	require.NoError(t, err)
	require.NoError(t, f.db.AllowAnyIPv4(3306, "added after the cluster"))
	assert.True(t, topo_errs.IsConfigurationError(VerifyIngress(f.reg, c.Id)))
}

func TestEngineVersion(t *testing.T) {
	tests := []struct {
		version string
		want    string
		wantErr bool
	}{
		{version: "2.07.2", want: "5.7.mysql_aurora.2.07.2"},
		{version: "5.7.mysql_aurora.2.10.1", want: "5.7.mysql_aurora.2.10.1"},
		{version: "3.02.0", want: "8.0.mysql_aurora.3.02.0"},
		{version: "8.0.mysql_aurora.2.07.2", wantErr: true},
		{version: "4.0.0", wantErr: true},
		{version: "latest", wantErr: true},
		{version: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			got, err := EngineVersion(tt.version)
			if tt.wantErr {
				assert.True(t, topo_errs.IsConfigurationError(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
