package topology

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/klothoplatform/infratopo/pkg/compute"
	"github.com/klothoplatform/infratopo/pkg/config"
	"github.com/klothoplatform/infratopo/pkg/construct"
	"github.com/klothoplatform/infratopo/pkg/datatier"
	"github.com/klothoplatform/infratopo/pkg/edge"
	topo_errs "github.com/klothoplatform/infratopo/pkg/errors"
	"github.com/klothoplatform/infratopo/pkg/identity"
	"github.com/klothoplatform/infratopo/pkg/logging"
	"github.com/klothoplatform/infratopo/pkg/network"
	"github.com/klothoplatform/infratopo/pkg/provider/aws/resources"
	"github.com/klothoplatform/infratopo/pkg/provisioning"
	"go.uber.org/zap"
)

const component = "topology"

const (
	NetworkStack  = "network"
	IdentityStack = "identity"
	DataStack     = "data"
	ComputeStack  = "compute"
	EdgeStack     = "edge"

	SshPort = 22
)

type (
	// Topology is an assembled and validated set of definitions. Components a profile leaves out are nil.
	Topology struct {
		Profile     config.Profile
		Environment map[string]string
		Registry    *construct.Registry

		Network *network.Network
		Role    *identity.Role
		Cluster *datatier.Cluster
		Fixed   *compute.FixedInstance
		Pool    *compute.ElasticPool
		Router  *edge.Router

		Groups SecurityGroups
	}

	SecurityGroups struct {
		Web    *network.SecurityGroup
		Db     *network.SecurityGroup
		Pool   *network.SecurityGroup
		Router *network.SecurityGroup
	}
)

// Assemble declares every component the profile asks for, in the order Network, Identity, DataCluster,
// compute units and EdgeRouter, then validates the result.
func Assemble(ctx context.Context, profile config.Profile, env map[string]string) (*Topology, error) {
	log := logging.GetLogger(ctx).Named(component).With(logging.ProfileField(profile.Name))

	profile.ApplyEnvironment(env)
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	t := &Topology{
		Profile:     profile,
		Environment: make(map[string]string, len(env)),
		Registry:    construct.NewRegistry(),
	}
	for k, v := range env {
		t.Environment[k] = v
	}

	stages := []struct {
		stack string
		run   func() error
	}{
		{NetworkStack, t.declareNetwork},
		{IdentityStack, t.declareIdentity},
		{DataStack, t.declareData},
		{ComputeStack, t.declareCompute},
		{EdgeStack, t.declareEdge},
	}
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		before := t.Registry.Len()
		t.Registry.SetStack(stage.stack)
		if err := stage.run(); err != nil {
			return nil, err
		}
		log.Info("declared stack", logging.StackField(stage.stack), zap.Int("resources", t.Registry.Len()-before))
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Topology) declareNetwork() error {
	p := t.Profile
	net, err := network.Build(t.Registry, network.Params{
		Name:        p.Network.Name,
		CidrBlock:   p.Network.Cidr,
		Region:      p.Region,
		ZoneCount:   p.Network.AvailabilityZones,
		NatGateways: p.Network.NatGateways,
	})
	if err != nil {
		return err
	}
	t.Network = net

	if t.Groups.Db, err = net.AddSecurityGroup("AuroraDbSecurityGroup", "aurora cluster"); err != nil {
		return err
	}
	if p.HasFixedInstance || !p.HasDedicatedAsgSecurityGroup {
		if t.Groups.Web, err = net.AddSecurityGroup("WebServerSecurityGroup", "web servers"); err != nil {
			return err
		}
		if p.OpenIngress {
			if err := t.Groups.Web.AllowAnyIPv4(p.ListenerPort, "public http"); err != nil {
				return err
			}
		}
		if p.SshIngress {
			if err := t.Groups.Web.AllowAnyIPv4(SshPort, "ssh"); err != nil {
				return err
			}
		}
	}
	if p.HasElasticPool {
		t.Groups.Pool = t.Groups.Web
		if p.HasDedicatedAsgSecurityGroup {
			if t.Groups.Pool, err = net.AddSecurityGroup("AsgSecurityGroup", "elastic pool instances"); err != nil {
				return err
			}
		}
	}
	if p.HasLoadBalancer {
		if t.Groups.Router, err = net.AddSecurityGroup("AlbSecurityGroup", "load balancer"); err != nil {
			return err
		}
	}
	return nil
}

func (t *Topology) declareIdentity() error {
	p := t.Profile
	role, err := identity.Build(t.Registry, identity.Params{
		Name:            p.Role.Name,
		Region:          p.Region,
		Account:         p.Account,
		SecretPrefix:    p.Database.SecretName,
		ArtifactBucket:  p.Role.ArtifactBucket,
		ManagedPolicies: append([]string{identity.CloudFormationReadOnly}, p.Role.ExtraPolicies...),
	})
	if err != nil {
		return err
	}
	t.Role = role
	return nil
}

func (t *Topology) declareData() error {
	p := t.Profile
	var consumers []*network.SecurityGroup
	if p.HasFixedInstance {
		consumers = append(consumers, t.Groups.Web)
	}
	if p.HasElasticPool && !slices.Contains(consumers, t.Groups.Pool) {
		consumers = append(consumers, t.Groups.Pool)
	}
	cluster, err := datatier.Build(t.Registry, t.Network, datatier.Params{
		Identifier:          p.Database.Identifier,
		DatabaseName:        p.Database.Name,
		EngineVersion:       p.Database.EngineVersion,
		InstanceClass:       p.Database.InstanceClass,
		ReaderCount:         p.ReaderCount,
		Tier:                resources.SubnetKind(p.Database.Tier),
		SecurityGroup:       t.Groups.Db,
		Consumers:           consumers,
		SecretName:          p.Database.SecretName,
		BackupRetentionDays: p.BackupRetentionDays,
		BackupWindow:        p.BackupWindow,
		DeletionProtection:  p.DeletionProtection,
	})
	if err != nil {
		return err
	}
	t.Cluster = cluster
	return nil
}

func (t *Topology) bootstrapped(name, instanceType string, sg *network.SecurityGroup) (compute.Bootstrapped, error) {
	secret, err := construct.Resolve[*resources.Secret](t.Registry, name, t.Cluster.Secret)
	if err != nil {
		return compute.Bootstrapped{}, err
	}
	return compute.Bootstrapped{
		Name:            name,
		InstanceType:    instanceType,
		BootstrapScript: t.Profile.BootstrapScript,
		Role:            t.Role,
		SecurityGroups:  []*network.SecurityGroup{sg},
		Environment: map[string]string{
			"REGION":      t.Profile.Region,
			"SECRET_NAME": secret.SecretName,
		},
		Secrets: []construct.ResourceId{t.Cluster.Secret},
	}, nil
}

func (t *Topology) declareCompute() error {
	p := t.Profile
	if p.HasFixedInstance {
		unit, err := t.bootstrapped(p.Instance.Name, p.Instance.InstanceType, t.Groups.Web)
		if err != nil {
			return err
		}
		fixed, err := compute.BuildFixedInstance(t.Registry, t.Network, compute.FixedInstanceParams{Bootstrapped: unit})
		if err != nil {
			return err
		}
		t.Fixed = fixed
	}
	if p.HasElasticPool {
		unit, err := t.bootstrapped(p.Pool.Name, p.Pool.InstanceType, t.Groups.Pool)
		if err != nil {
			return err
		}
		params := compute.ElasticPoolParams{
			Bootstrapped: unit,
			Min:          p.Pool.Min,
			Max:          p.Pool.Max,
		}
		if len(p.Pool.SubnetIndexes) > 0 {
			params.Subnets = compute.SubnetSelection{Indexes: p.Pool.SubnetIndexes}
		}
		pool, err := compute.BuildElasticPool(t.Registry, t.Network, params)
		if err != nil {
			return err
		}
		t.Pool = pool
	}
	// units start after the role exists and the database they read credentials for is up
	for _, unit := range t.Units() {
		for _, producer := range []construct.ResourceId{t.Role.Id, t.Cluster.Id} {
			if err := t.Registry.DependOn(unit.ResourceId(), producer, construct.ReasonOrdering); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Topology) declareEdge() error {
	p := t.Profile
	if !p.HasLoadBalancer {
		return nil
	}
	// a profile without a pool hands the router its fixed instance, which it rejects
	var target compute.Unit
	switch {
	case t.Pool != nil:
		target = t.Pool
	case t.Fixed != nil:
		target = t.Fixed
	}
	router, err := edge.Build(t.Registry, t.Network, edge.Params{
		Name:                   "ApplicationLoadBalancer",
		Target:                 target,
		SecurityGroup:          t.Groups.Router,
		Port:                   p.ListenerPort,
		RequestTargetPerMinute: p.Pool.RequestTargetPerMinute,
		OpenIngress:            p.OpenIngress,
	})
	if err != nil {
		return err
	}
	t.Router = router

	for _, producer := range []construct.ResourceId{t.Cluster.Id, t.Role.Id} {
		if err := t.Registry.DependOn(router.Id, producer, construct.ReasonOrdering); err != nil {
			return err
		}
	}
	return nil
}

// Units returns the declared compute units.
func (t *Topology) Units() []compute.Unit {
	var units []compute.Unit
	if t.Fixed != nil {
		units = append(units, t.Fixed)
	}
	if t.Pool != nil {
		units = append(units, t.Pool)
	}
	return units
}

// Validate checks the assembled topology as a whole.
func (t *Topology) Validate() error {
	reg := t.Registry
	if _, err := reg.TopologicalSort(); err != nil {
		return topo_errs.ConfigurationError{Component: component, Field: "dependencies", Reason: "dependency graph is not acyclic", Err: err}
	}
	if _, err := reg.StackOrder(); err != nil {
		return err
	}
	var errs error
	producers, err := reg.Producers(t.Network.Vpc)
	if err != nil {
		return err
	}
	if len(producers) > 0 {
		errs = errors.Join(errs, topo_errs.Configf(component, "dependencies", "%s must not depend on %v", t.Network.Vpc, producers))
	}
	errs = errors.Join(errs, reg.VerifyReferences())
	errs = errors.Join(errs, t.Network.Validate())
	if t.Cluster != nil {
		errs = errors.Join(errs, datatier.VerifyIngress(reg, t.Cluster.Id))
	}
	if role, err := t.Role.Definition(); err != nil {
		errs = errors.Join(errs, err)
	} else {
		errs = errors.Join(errs, identity.VerifyBaseline(role))
	}
	return errs
}

func (t *Topology) Document() (*construct.Document, error) {
	return t.Registry.Document(t.Environment)
}

// Deploy hands the topology to a provisioning backend. Backend errors are returned as is.
func (t *Topology) Deploy(ctx context.Context, backend provisioning.Backend) (provisioning.Outputs, error) {
	doc, err := t.Document()
	if err != nil {
		return nil, fmt.Errorf("could not build document for %s: %w", t.Profile.Name, err)
	}
	logging.GetLogger(ctx).Named(component).Info("provisioning topology",
		logging.ProfileField(t.Profile.Name),
		zap.Int("resources", len(doc.Resources)),
		zap.Strings("stacks", doc.Stacks),
	)
	return backend.Provision(ctx, doc)
}
