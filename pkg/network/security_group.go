package network

import (
	"fmt"

	"github.com/iancoleman/strcase"
	"github.com/klothoplatform/infratopo/pkg/construct"
	topo_errs "github.com/klothoplatform/infratopo/pkg/errors"
	"github.com/klothoplatform/infratopo/pkg/logging"
	"github.com/klothoplatform/infratopo/pkg/provider/aws/resources"
	"github.com/klothoplatform/infratopo/pkg/sanitization/aws"
	"go.uber.org/zap"
)

// SecurityGroup is a placeholder for a security group registered in a network. Rules are added through the
// handle; the definition itself lives in the registry.
type SecurityGroup struct {
	Id  construct.ResourceId
	net *Network
}

// AddSecurityGroup registers an empty security group in the network's stack. Outbound traffic is allowed.
func (n *Network) AddSecurityGroup(name, description string) (*SecurityGroup, error) {
	sgName := aws.SecurityGroupSanitizer.Apply(strcase.ToKebab(name))
	if sgName == "" {
		return nil, topo_errs.Configf(component, "security_group", "invalid security group name %q", name)
	}
	sg := &resources.SecurityGroup{
		Name:             sgName,
		Vpc:              n.Vpc,
		Description:      description,
		AllowAllOutbound: true,
	}
	err := n.reg.InStack(n.Stack(), func() error {
		return n.reg.Add(sg)
	})
	if err != nil {
		return nil, err
	}
	n.groups = append(n.groups, sg.Id())
	return &SecurityGroup{Id: sg.Id(), net: n}, nil
}

// SecurityGroup returns the handle for a security group registered in this network.
func (n *Network) SecurityGroup(id construct.ResourceId) (*SecurityGroup, error) {
	def, err := construct.Resolve[*resources.SecurityGroup](n.reg, component, id)
	if err != nil {
		return nil, err
	}
	if def.Vpc != n.Vpc {
		return nil, topo_errs.Configf(component, "security_group", "%s belongs to %s, not %s", id, def.Vpc, n.Vpc)
	}
	return &SecurityGroup{Id: id, net: n}, nil
}

func (n *Network) SecurityGroups() []construct.ResourceId {
	return append([]construct.ResourceId(nil), n.groups...)
}

func (sg *SecurityGroup) Definition() (*resources.SecurityGroup, error) {
	if sg == nil || sg.net == nil {
		return nil, topo_errs.ReferenceError{Consumer: component, Reason: "security group was never produced"}
	}
	return construct.Resolve[*resources.SecurityGroup](sg.net.reg, component, sg.Id)
}

// AllowFrom admits TCP traffic on port from another security group of the same network.
func (sg *SecurityGroup) AllowFrom(source *SecurityGroup, port int, description string) error {
	if source == nil || source.Id.IsZero() {
		return topo_errs.ReferenceError{Consumer: sg.Id.String(), Reason: "ingress source security group was never produced"}
	}
	src, err := source.Definition()
	if err != nil {
		return err
	}
	def, err := sg.Definition()
	if err != nil {
		return err
	}
	if src.Vpc != def.Vpc {
		return topo_errs.Configf(component, "ingress",
			"%s cannot admit %s: security groups belong to different networks", sg.Id, source.Id)
	}
	return sg.addIngress(def, resources.SecurityGroupRule{
		Description: description,
		Protocol:    resources.TCP,
		FromPort:    port,
		ToPort:      port,
		Source:      source.Id,
	})
}

// AllowAnyIPv4 admits TCP traffic on port from every IPv4 address.
func (sg *SecurityGroup) AllowAnyIPv4(port int, description string) error {
	def, err := sg.Definition()
	if err != nil {
		return err
	}
	return sg.addIngress(def, resources.SecurityGroupRule{
		Description: description,
		Protocol:    resources.TCP,
		FromPort:    port,
		ToPort:      port,
		CidrBlocks:  []string{resources.AnyIPv4},
	})
}

func (sg *SecurityGroup) addIngress(def *resources.SecurityGroup, rule resources.SecurityGroupRule) error {
	if rule.FromPort < 1 || rule.ToPort > 65535 {
		return topo_errs.Configf(component, "ingress", "%s: invalid port %d", sg.Id, rule.FromPort)
	}
	if def.HasIngress(rule) {
		return nil
	}
	updated := def.Clone()
	updated.IngressRules = append(updated.IngressRules, rule)
	if err := sg.net.reg.Replace(updated); err != nil {
		return fmt.Errorf("could not add ingress %s to %s: %w", rule, sg.Id, err)
	}
	zap.L().Named(component).Debug("added ingress", logging.ResourceField(sg.Id), zap.Stringer("rule", rule))
	return nil
}
