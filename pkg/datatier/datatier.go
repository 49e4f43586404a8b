package datatier

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/iancoleman/strcase"
	"github.com/klothoplatform/infratopo/pkg/construct"
	topo_errs "github.com/klothoplatform/infratopo/pkg/errors"
	"github.com/klothoplatform/infratopo/pkg/logging"
	"github.com/klothoplatform/infratopo/pkg/network"
	"github.com/klothoplatform/infratopo/pkg/provider/aws/resources"
	"github.com/klothoplatform/infratopo/pkg/sanitization/aws"
	"go.uber.org/zap"
)

const component = "datatier"

const (
	SecretOutput = "DbCredentialSecretArn"

	DefaultUsername          = "admin"
	DefaultExcludeCharacters = `"@/\`
	maxReaders               = 15
	maxRetentionDays         = 35
)

var backupWindowPattern = regexp.MustCompile(`^(\d{2}:\d{2})-(\d{2}:\d{2})$`)

type (
	Params struct {
		Identifier    string
		DatabaseName  string
		EngineVersion string
		InstanceClass string
		ReaderCount   int
		// Tier is the subnet kind the cluster is placed in. It must be private.
		Tier          resources.SubnetKind
		SecurityGroup *network.SecurityGroup
		// Consumers are the only security groups admitted on the database port.
		Consumers  []*network.SecurityGroup
		SecretName string

		BackupRetentionDays *int
		BackupWindow        string
		DeletionProtection  bool
		OutputName          string
	}

	// Cluster is the handle to a registered cluster. Secret is the only value consumed downstream.
	Cluster struct {
		Id            construct.ResourceId
		Secret        construct.ResourceId
		SubnetGroup   construct.ResourceId
		Instances     []construct.ResourceId
		SecurityGroup *network.SecurityGroup
		Port          int
	}
)

func (p Params) validate(net *network.Network) error {
	var errs error
	if p.Identifier == "" {
		errs = errors.Join(errs, topo_errs.Configf(component, "identifier", "cluster has no identifier"))
	}
	if p.DatabaseName == "" {
		errs = errors.Join(errs, topo_errs.Configf(component, "database_name", "cluster has no default schema"))
	}
	if p.InstanceClass == "" {
		errs = errors.Join(errs, topo_errs.Configf(component, "instance_class", "cluster has no instance class"))
	}
	switch {
	case p.Tier == resources.PublicSubnet:
		errs = errors.Join(errs, topo_errs.Configf(component, "tier", "a data cluster cannot be placed in the public tier"))
	case !p.Tier.IsPrivate():
		errs = errors.Join(errs, topo_errs.Configf(component, "tier", "unknown tier %q", p.Tier))
	case !net.HasTier(p.Tier):
		errs = errors.Join(errs, topo_errs.Configf(component, "tier", "network %s has no %s subnets", net.Name, p.Tier))
	}
	if p.ReaderCount < 0 || p.ReaderCount > maxReaders {
		errs = errors.Join(errs, topo_errs.Configf(component, "reader_count", "%d readers, must be 0 to %d", p.ReaderCount, maxReaders))
	}
	if p.BackupRetentionDays != nil && (*p.BackupRetentionDays < 1 || *p.BackupRetentionDays > maxRetentionDays) {
		errs = errors.Join(errs, topo_errs.Configf(component, "backup_retention_days",
			"%d days, must be 1 to %d", *p.BackupRetentionDays, maxRetentionDays))
	}
	if p.BackupWindow != "" {
		errs = errors.Join(errs, validateWindow(p.BackupWindow))
	}
	return errs
}

func validateWindow(window string) error {
	m := backupWindowPattern.FindStringSubmatch(window)
	if m == nil {
		return topo_errs.Configf(component, "backup_window", "%q is not hh:mm-hh:mm", window)
	}
	start, err := time.Parse("15:04", m[1])
	if err != nil {
		return topo_errs.ConfigurationError{Component: component, Field: "backup_window", Reason: window, Err: err}
	}
	end, err := time.Parse("15:04", m[2])
	if err != nil {
		return topo_errs.ConfigurationError{Component: component, Field: "backup_window", Reason: window, Err: err}
	}
	length := end.Sub(start)
	if length < 0 {
		length += 24 * time.Hour
	}
	if length < 30*time.Minute {
		return topo_errs.Configf(component, "backup_window", "%q is shorter than 30 minutes", window)
	}
	return nil
}

// Build registers a generated credential secret, a subnet group over the placement tier, the cluster and
// one writer plus ReaderCount reader instances. Each consumer security group is admitted on the database
// port of the cluster's security group.
func Build(reg *construct.Registry, net *network.Network, params Params) (*Cluster, error) {
	if net == nil {
		return nil, topo_errs.ReferenceError{Consumer: component, Reason: "network was never produced"}
	}
	if params.SecurityGroup == nil {
		return nil, topo_errs.ReferenceError{Consumer: component, Reason: "security group was never produced"}
	}
	if err := params.validate(net); err != nil {
		return nil, err
	}
	version, err := EngineVersion(params.EngineVersion)
	if err != nil {
		return nil, err
	}
	sg, err := net.SecurityGroup(params.SecurityGroup.Id)
	if err != nil {
		return nil, err
	}
	sgDef, err := sg.Definition()
	if err != nil {
		return nil, err
	}
	for _, rule := range sgDef.IngressRules {
		if rule.IsAnyIPv4() {
			return nil, topo_errs.Configf(component, "security_group",
				"%s admits %s, a data cluster may only admit its consumers", sg.Id, rule)
		}
	}

	identifier := aws.RdsClusterSanitizer.Apply(strings.ToLower(params.Identifier))
	secretName := params.SecretName
	if secretName == "" {
		secretName = identifier + "-credentials"
	}
	secret := &resources.Secret{
		Name:        strcase.ToKebab(secretName),
		SecretName:  aws.SecretSanitizer.Apply(secretName),
		Description: fmt.Sprintf("credentials of the %s cluster", identifier),
		Generate: &resources.GeneratedSecret{
			SecretStringTemplate: fmt.Sprintf(`{"username":%q}`, DefaultUsername),
			GenerateStringKey:    "password",
			ExcludeCharacters:    DefaultExcludeCharacters,
			PasswordLength:       30,
		},
	}
	if err := reg.Add(secret); err != nil {
		return nil, err
	}

	subnetGroup := &resources.RdsSubnetGroup{
		Name:        aws.RdsSubnetGroupSanitizer.Apply(identifier + "-subnets"),
		Description: fmt.Sprintf("%s subnets of %s", params.Tier, net.Name),
		Subnets:     net.Subnets(params.Tier),
	}
	if err := reg.Add(subnetGroup); err != nil {
		return nil, err
	}

	removal := resources.RemovalPolicyDestroy
	if params.DeletionProtection {
		removal = resources.RemovalPolicyRetain
	}
	instanceClass := params.InstanceClass
	if !strings.HasPrefix(instanceClass, "db.") {
		instanceClass = "db." + instanceClass
	}
	cluster := &resources.RdsCluster{
		Name:                    identifier,
		ClusterIdentifier:       identifier,
		Engine:                  resources.AURORA_MYSQL_ENGINE,
		EngineVersion:           version,
		DatabaseName:            aws.RdsDBNameSanitizer.Apply(params.DatabaseName),
		Credentials:             secret.Id(),
		SubnetGroup:             subnetGroup.Id(),
		SecurityGroups:          []construct.ResourceId{sg.Id},
		Port:                    resources.MYSQL_PORT,
		BackupRetentionPeriod:   params.BackupRetentionDays,
		PreferredBackupWindow:   params.BackupWindow,
		DeletionProtection:      params.DeletionProtection,
		RemovalPolicy:           removal,
		InstanceUpdateBehaviour: "ROLLING",
		StorageEncrypted:        true,
	}
	if err := reg.Add(cluster); err != nil {
		return nil, err
	}

	c := &Cluster{
		Id:            cluster.Id(),
		Secret:        secret.Id(),
		SubnetGroup:   subnetGroup.Id(),
		SecurityGroup: sg,
		Port:          cluster.Port,
	}
	for i := 0; i <= params.ReaderCount; i++ {
		instance := &resources.RdsInstance{
			Name:          "writer",
			Cluster:       cluster.Id(),
			InstanceClass: instanceClass,
			Writer:        i == 0,
			PromotionTier: i,
		}
		if i > 0 {
			instance.Name = fmt.Sprintf("reader%d", i)
		}
		if err := reg.Add(instance); err != nil {
			return nil, err
		}
		c.Instances = append(c.Instances, instance.Id())
	}

	for _, consumer := range params.Consumers {
		if err := c.AllowFrom(consumer); err != nil {
			return nil, err
		}
	}

	outputName := params.OutputName
	if outputName == "" {
		outputName = SecretOutput
	}
	err = reg.AddOutput(outputName, construct.Output{
		Ref:         secret.Id(),
		Property:    "arn",
		Description: fmt.Sprintf("secret holding the %s cluster credentials", identifier),
	})
	if err != nil {
		return nil, err
	}
	zap.L().Named(component).Debug("registered data cluster",
		logging.ResourceField(c.Id),
		zap.Int("instances", len(c.Instances)),
		zap.Bool("deletion_protection", params.DeletionProtection),
	)
	return c, nil
}

// AllowFrom admits a consumer's security group on the database port.
func (c *Cluster) AllowFrom(consumer *network.SecurityGroup) error {
	if consumer == nil || consumer.Id.IsZero() {
		return topo_errs.ReferenceError{Consumer: c.Id.String(), Reason: "consumer security group was never produced"}
	}
	return c.SecurityGroup.AllowFrom(consumer, c.Port, fmt.Sprintf("mysql from %s", consumer.Id.Name))
}

// VerifyIngress checks that every ingress rule of the cluster's security groups is sourced from another
// security group.
func VerifyIngress(reg *construct.Registry, id construct.ResourceId) error {
	cluster, err := construct.Resolve[*resources.RdsCluster](reg, component, id)
	if err != nil {
		return err
	}
	var errs error
	for _, sgId := range cluster.SecurityGroups {
		sg, err := construct.Resolve[*resources.SecurityGroup](reg, component, sgId)
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		for _, rule := range sg.IngressRules {
			if rule.Source.IsZero() || len(rule.CidrBlocks) > 0 {
				errs = errors.Join(errs, topo_errs.Configf(component, "security_group",
					"%s of %s admits %s, only consumer security groups are allowed", sgId, id, rule))
			}
		}
	}
	return errs
}
