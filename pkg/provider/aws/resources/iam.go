package resources

import (
	"fmt"
	"slices"
	"strings"

	"github.com/klothoplatform/infratopo/pkg/construct"
)

const VERSION = "2012-10-17"

const (
	EC2_SERVICE_PRINCIPAL = "ec2.amazonaws.com"

	// SSM_MANAGED_INSTANCE_CORE lets the instance be reached through Session Manager without inbound access.
	SSM_MANAGED_INSTANCE_CORE = "AmazonSSMManagedInstanceCore"
)

type (
	IamRole struct {
		Name                string          `yaml:"-"`
		AssumeRolePolicyDoc *PolicyDocument `yaml:"assume_role_policy"`
		ManagedPolicies     []string        `yaml:"managed_policies,omitempty"`
		InlinePolicies      []InlinePolicy  `yaml:"inline_policies,omitempty"`
	}

	InlinePolicy struct {
		Name   string          `yaml:"name"`
		Policy *PolicyDocument `yaml:"policy"`
	}

	PolicyDocument struct {
		Version   string           `yaml:"Version"`
		Statement []StatementEntry `yaml:"Statement"`
	}

	StatementEntry struct {
		Effect    string     `yaml:"Effect"`
		Action    []string   `yaml:"Action"`
		Resource  []string   `yaml:"Resource,omitempty"`
		Principal *Principal `yaml:"Principal,omitempty"`
	}

	Principal struct {
		Service string `yaml:"Service"`
	}

	InstanceProfile struct {
		Name string               `yaml:"-"`
		Role construct.ResourceId `yaml:"role"`
	}
)

func AssumeRolePolicy(service string) *PolicyDocument {
	return &PolicyDocument{
		Version: VERSION,
		Statement: []StatementEntry{
			{
				Effect:    "Allow",
				Principal: &Principal{Service: service},
				Action:    []string{"sts:AssumeRole"},
			},
		},
	}
}

// ManagedPolicyArn turns a well-known AWS managed policy name into its ARN. Full ARNs are returned as-is.
func ManagedPolicyArn(name string) string {
	if strings.HasPrefix(name, "arn:") {
		return name
	}
	return "arn:aws:iam::aws:policy/" + name
}

// SecretArnPattern matches every secret whose name starts with prefix, including the random suffix
// Secrets Manager appends to secret ARNs.
func SecretArnPattern(region, account, prefix string) string {
	return fmt.Sprintf("arn:aws:secretsmanager:%s:%s:secret:%s*", region, account, prefix)
}

func (role *IamRole) Id() construct.ResourceId {
	return awsId(IAM_ROLE_TYPE, "", role.Name)
}

func (role *IamRole) References() []construct.ResourceId {
	return nil
}

func (role *IamRole) HasManagedPolicy(name string) bool {
	return slices.Contains(role.ManagedPolicies, ManagedPolicyArn(name))
}

func (role *IamRole) InlinePolicy(name string) (InlinePolicy, bool) {
	for _, p := range role.InlinePolicies {
		if p.Name == name {
			return p, true
		}
	}
	return InlinePolicy{}, false
}

// Clone returns a copy whose policy slices can be appended to without affecting role.
func (role *IamRole) Clone() *IamRole {
	c := *role
	c.ManagedPolicies = slices.Clone(role.ManagedPolicies)
	c.InlinePolicies = slices.Clone(role.InlinePolicies)
	return &c
}

func (profile *InstanceProfile) Id() construct.ResourceId {
	return awsId(INSTANCE_PROFILE_TYPE, "", profile.Name)
}

func (profile *InstanceProfile) References() []construct.ResourceId {
	return []construct.ResourceId{profile.Role}
}
