package network

import (
	"testing"

	"github.com/klothoplatform/infratopo/pkg/construct"
	topo_errs "github.com/klothoplatform/infratopo/pkg/errors"
	"github.com/klothoplatform/infratopo/pkg/provider/aws/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityGroup_AllowFrom(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	reg := construct.NewRegistry()
	reg.SetStack("network")
	n, err := Build(reg, Params{Name: "main", CidrBlock: "10.0.0.0/16", Region: "us-east-1"})
	require.NoError(err)

	reg.SetStack("data")
	web, err := n.AddSecurityGroup("Web", "web servers")
	require.NoError(err)
	db, err := n.AddSecurityGroup("Db", "aurora cluster")
	require.NoError(err)
	assert.Equal("network", reg.StackOf(db.Id), "security groups live with their network")

	require.NoError(db.AllowFrom(web, resources.MYSQL_PORT, "from web"))
	// idempotent
	require.NoError(db.AllowFrom(web, resources.MYSQL_PORT, "again"))

	def, err := db.Definition()
	require.NoError(err)
	if assert.Len(def.IngressRules, 1) {
		rule := def.IngressRules[0]
		assert.Equal(web.Id, rule.Source)
		assert.Equal(3306, rule.FromPort)
		assert.False(rule.IsAnyIPv4())
	}
	producers, err := reg.Producers(db.Id)
	require.NoError(err)
	assert.Contains(producers, web.Id)

	assert.True(topo_errs.IsReferenceError(db.AllowFrom(nil, 3306, "")))
	assert.True(topo_errs.IsReferenceError(db.AllowFrom(&SecurityGroup{}, 3306, "")))
	assert.True(topo_errs.IsConfigurationError(db.AllowFrom(web, 0, "")))
	assert.True(topo_errs.IsConfigurationError(web.AllowFrom(db, 3306, "")), "mutual ingress is a cycle")
}

func TestSecurityGroup_DifferentNetworks(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	reg := construct.NewRegistry()
	a, err := Build(reg, Params{Name: "a", CidrBlock: "10.0.0.0/16", Region: "us-east-1"})
	require.NoError(err)
	b, err := Build(reg, Params{Name: "b", CidrBlock: "10.1.0.0/16", Region: "us-east-1"})
	require.NoError(err)

	sgA, err := a.AddSecurityGroup("app", "")
	require.NoError(err)
	sgB, err := b.AddSecurityGroup("app", "")
	require.NoError(err)
	assert.NotEqual(sgA.Id, sgB.Id)

	assert.True(topo_errs.IsConfigurationError(sgA.AllowFrom(sgB, 80, "")))
	_, err = a.SecurityGroup(sgB.Id)
	assert.True(topo_errs.IsConfigurationError(err))
	got, err := b.SecurityGroup(sgB.Id)
	require.NoError(err)
	assert.Equal(sgB.Id, got.Id)
}

func TestSecurityGroup_AllowAnyIPv4(t *testing.T) {
	assert := assert.New(t)
	reg := construct.NewRegistry()
	n, err := Build(reg, Params{Name: "main", CidrBlock: "10.0.0.0/16", Region: "us-east-1"})
	require.NoError(t, err)
	lb, err := n.AddSecurityGroup("lb", "")
	require.NoError(t, err)

	require.NoError(t, lb.AllowAnyIPv4(80, "http"))
	def, err := lb.Definition()
	require.NoError(t, err)
	if assert.Len(def.IngressRules, 1) {
		assert.True(def.IngressRules[0].IsAnyIPv4())
		assert.True(def.IngressRules[0].Source.IsZero())
	}
	assert.Equal([]construct.ResourceId{lb.Id}, n.SecurityGroups())
}
