package resources

import (
	"fmt"
	"slices"

	"github.com/klothoplatform/infratopo/pkg/construct"
)

type (
	SecurityGroup struct {
		Name             string               `yaml:"-"`
		Vpc              construct.ResourceId `yaml:"vpc"`
		Description      string               `yaml:"description,omitempty"`
		IngressRules     []SecurityGroupRule  `yaml:"ingress_rules,omitempty"`
		AllowAllOutbound bool                 `yaml:"allow_all_outbound"`
	}

	// SecurityGroupRule allows traffic from either a set of CIDR blocks or another security group.
	SecurityGroupRule struct {
		Description string               `yaml:"description,omitempty"`
		Protocol    string               `yaml:"protocol"`
		FromPort    int                  `yaml:"from_port"`
		ToPort      int                  `yaml:"to_port"`
		CidrBlocks  []string             `yaml:"cidr_blocks,omitempty"`
		Source      construct.ResourceId `yaml:"source,omitempty"`
	}
)

func (sg *SecurityGroup) Id() construct.ResourceId {
	return awsId(SECURITY_GROUP_TYPE, sg.Vpc.Name, sg.Name)
}

func (sg *SecurityGroup) References() []construct.ResourceId {
	refs := []construct.ResourceId{sg.Vpc}
	for _, rule := range sg.IngressRules {
		refs = append(refs, optional(rule.Source)...)
	}
	return refs
}

// IsAnyIPv4 reports whether the rule admits every IPv4 address.
func (rule SecurityGroupRule) IsAnyIPv4() bool {
	return slices.Contains(rule.CidrBlocks, AnyIPv4)
}

func (rule SecurityGroupRule) String() string {
	var from string
	switch {
	case !rule.Source.IsZero():
		from = rule.Source.String()
	default:
		from = fmt.Sprint(rule.CidrBlocks)
	}
	if rule.FromPort == rule.ToPort {
		return fmt.Sprintf("%s/%d from %s", rule.Protocol, rule.FromPort, from)
	}
	return fmt.Sprintf("%s/%d-%d from %s", rule.Protocol, rule.FromPort, rule.ToPort, from)
}

// HasIngress reports whether an equivalent rule is already present, ignoring the description.
func (sg *SecurityGroup) HasIngress(rule SecurityGroupRule) bool {
	for _, existing := range sg.IngressRules {
		if existing.Protocol == rule.Protocol &&
			existing.FromPort == rule.FromPort &&
			existing.ToPort == rule.ToPort &&
			existing.Source == rule.Source &&
			slices.Equal(existing.CidrBlocks, rule.CidrBlocks) {
			return true
		}
	}
	return false
}

// Clone returns a copy whose rule slice can be appended to without affecting sg.
func (sg *SecurityGroup) Clone() *SecurityGroup {
	c := *sg
	c.IngressRules = slices.Clone(sg.IngressRules)
	return &c
}
