package identity

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/iancoleman/strcase"
	"github.com/klothoplatform/infratopo/pkg/construct"
	topo_errs "github.com/klothoplatform/infratopo/pkg/errors"
	"github.com/klothoplatform/infratopo/pkg/logging"
	"github.com/klothoplatform/infratopo/pkg/provider/aws/resources"
	"github.com/klothoplatform/infratopo/pkg/sanitization/aws"
	"go.uber.org/zap"
)

const component = "identity"

const (
	SecretReadPolicy       = "secret-read"
	ArtifactReadPolicy     = "artifact-read"
	CloudFormationReadOnly = "AWSCloudFormationReadOnlyAccess"
)

var actionPattern = regexp.MustCompile(`^(\*|[a-zA-Z0-9-]+:[a-zA-Z0-9*]+)$`)

type (
	Params struct {
		Name    string
		Region  string
		Account string
		// SecretPrefix scopes the baseline secret-read statement to the deployment's generated secrets.
		SecretPrefix string
		// ArtifactBucket, when set, grants read access to the bucket holding bootstrap artifacts.
		ArtifactBucket  string
		ManagedPolicies []string
	}

	// Role is the handle to a registered execution role assumed by the compute service.
	Role struct {
		Id  construct.ResourceId
		reg *construct.Registry
	}
)

// Build registers a role trusted by the compute service with the security baseline every compute-facing
// role carries: Systems Manager core access and read access to the deployment's secrets.
func Build(reg *construct.Registry, params Params) (*Role, error) {
	if params.Name == "" {
		return nil, topo_errs.Configf(component, "name", "role has no name")
	}
	if params.SecretPrefix == "" {
		return nil, topo_errs.Configf(component, "secret_prefix", "role %s has no secret scope", params.Name)
	}
	region, account := params.Region, params.Account
	if region == "" {
		region = "*"
	}
	if account == "" {
		zap.L().Named(component).Warn("no account to scope secret access, matching any account", zap.String("role", params.Name))
		account = "*"
	}

	def := &resources.IamRole{
		Name:                aws.IamRoleSanitizer.Apply(strcase.ToKebab(params.Name)),
		AssumeRolePolicyDoc: resources.AssumeRolePolicy(resources.EC2_SERVICE_PRINCIPAL),
	}
	if err := reg.Add(def); err != nil {
		return nil, err
	}
	role := &Role{Id: def.Id(), reg: reg}

	var errs error
	for _, name := range append([]string{resources.SSM_MANAGED_INSTANCE_CORE}, params.ManagedPolicies...) {
		errs = errors.Join(errs, role.AttachManaged(name))
	}
	errs = errors.Join(errs, role.AttachInline(SecretReadPolicy, resources.StatementEntry{
		Effect:   "Allow",
		Action:   []string{"secretsmanager:GetSecretValue", "secretsmanager:DescribeSecret"},
		Resource: []string{resources.SecretArnPattern(region, account, params.SecretPrefix)},
	}))
	if params.ArtifactBucket != "" {
		bucketArn := "arn:aws:s3:::" + params.ArtifactBucket
		errs = errors.Join(errs, role.AttachInline(ArtifactReadPolicy,
			resources.StatementEntry{Effect: "Allow", Action: []string{"s3:ListBucket"}, Resource: []string{bucketArn}},
			resources.StatementEntry{Effect: "Allow", Action: []string{"s3:GetObject"}, Resource: []string{bucketArn + "/*"}},
		))
	}
	if errs != nil {
		return nil, errs
	}
	return role, nil
}

func (r *Role) Definition() (*resources.IamRole, error) {
	if r == nil {
		return nil, topo_errs.ReferenceError{Consumer: component, Reason: "role was never produced"}
	}
	return construct.Resolve[*resources.IamRole](r.reg, component, r.Id)
}

// AttachManaged attaches an AWS managed policy by well-known name (AmazonSSMManagedInstanceCore) or ARN.
func (r *Role) AttachManaged(name string) error {
	if name == "" {
		return topo_errs.Configf(component, "managed_policies", "%s: empty managed policy name", r.Id)
	}
	def, err := r.Definition()
	if err != nil {
		return err
	}
	if def.HasManagedPolicy(name) {
		return nil
	}
	updated := def.Clone()
	updated.ManagedPolicies = append(updated.ManagedPolicies, resources.ManagedPolicyArn(name))
	return r.reg.Replace(updated)
}

// AttachInline adds a named inline policy. Re-attaching a name replaces its statements.
func (r *Role) AttachInline(name string, statements ...resources.StatementEntry) error {
	if name == "" {
		return topo_errs.Configf(component, "inline_policies", "%s: inline policy has no name", r.Id)
	}
	if len(statements) == 0 {
		return topo_errs.Configf(component, "inline_policies", "%s: policy %s has no statements", r.Id, name)
	}
	var errs error
	for i, stmt := range statements {
		errs = errors.Join(errs, validateStatement(fmt.Sprintf("%s[%d]", name, i), stmt))
	}
	if errs != nil {
		return errs
	}
	def, err := r.Definition()
	if err != nil {
		return err
	}
	updated := def.Clone()
	policy := resources.InlinePolicy{
		Name:   aws.IamPolicySanitizer.Apply(name),
		Policy: &resources.PolicyDocument{Version: resources.VERSION, Statement: statements},
	}
	replaced := false
	for i, p := range updated.InlinePolicies {
		if p.Name == policy.Name {
			updated.InlinePolicies[i] = policy
			replaced = true
		}
	}
	if !replaced {
		updated.InlinePolicies = append(updated.InlinePolicies, policy)
	}
	zap.L().Named(component).Debug("attached inline policy", logging.ResourceField(r.Id), zap.String("policy", policy.Name))
	return r.reg.Replace(updated)
}

func validateStatement(name string, stmt resources.StatementEntry) error {
	var errs error
	if stmt.Effect != "Allow" && stmt.Effect != "Deny" {
		errs = errors.Join(errs, topo_errs.Configf(component, "effect", "%s: effect must be Allow or Deny, got %q", name, stmt.Effect))
	}
	if len(stmt.Action) == 0 {
		errs = errors.Join(errs, topo_errs.Configf(component, "action", "%s: no actions", name))
	}
	for _, action := range stmt.Action {
		if !actionPattern.MatchString(action) {
			errs = errors.Join(errs, topo_errs.Configf(component, "action", "%s: malformed action %q", name, action))
		}
	}
	if len(stmt.Resource) == 0 {
		errs = errors.Join(errs, topo_errs.Configf(component, "resource", "%s: no resources", name))
	}
	return errs
}

// VerifyBaseline checks that a role carries the compute security baseline.
func VerifyBaseline(def *resources.IamRole) error {
	var errs error
	if !def.HasManagedPolicy(resources.SSM_MANAGED_INSTANCE_CORE) {
		errs = errors.Join(errs, topo_errs.Configf(component, "managed_policies",
			"%s is missing %s", def.Id(), resources.SSM_MANAGED_INSTANCE_CORE))
	}
	if _, ok := def.InlinePolicy(SecretReadPolicy); !ok {
		errs = errors.Join(errs, topo_errs.Configf(component, "inline_policies",
			"%s is missing the %s policy", def.Id(), SecretReadPolicy))
	}
	return errs
}
