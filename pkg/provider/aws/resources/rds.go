package resources

import "github.com/klothoplatform/infratopo/pkg/construct"

const (
	AURORA_MYSQL_ENGINE = "aurora-mysql"
	MYSQL_PORT          = 3306
)

type (
	RemovalPolicy string

	RdsSubnetGroup struct {
		Name        string                 `yaml:"-"`
		Description string                 `yaml:"description,omitempty"`
		Subnets     []construct.ResourceId `yaml:"subnets"`
	}

	RdsCluster struct {
		Name                    string                 `yaml:"-"`
		ClusterIdentifier       string                 `yaml:"cluster_identifier"`
		Engine                  string                 `yaml:"engine"`
		EngineVersion           string                 `yaml:"engine_version"`
		DatabaseName            string                 `yaml:"database_name"`
		Credentials             construct.ResourceId   `yaml:"credentials"`
		SubnetGroup             construct.ResourceId   `yaml:"subnet_group"`
		SecurityGroups          []construct.ResourceId `yaml:"security_groups"`
		Port                    int                    `yaml:"port"`
		BackupRetentionPeriod   *int                   `yaml:"backup_retention_period,omitempty"`
		PreferredBackupWindow   string                 `yaml:"preferred_backup_window,omitempty"`
		DeletionProtection      bool                   `yaml:"deletion_protection"`
		RemovalPolicy           RemovalPolicy          `yaml:"removal_policy"`
		InstanceUpdateBehaviour string                 `yaml:"instance_update_behaviour,omitempty"`
		StorageEncrypted        bool                   `yaml:"storage_encrypted"`
	}

	RdsInstance struct {
		Name               string               `yaml:"-"`
		Cluster            construct.ResourceId `yaml:"cluster"`
		InstanceClass      string               `yaml:"instance_class"`
		Writer             bool                 `yaml:"writer"`
		PromotionTier      int                  `yaml:"promotion_tier"`
		PubliclyAccessible bool                 `yaml:"publicly_accessible"`
	}
)

const (
	RemovalPolicyDestroy  RemovalPolicy = "destroy"
	RemovalPolicyRetain   RemovalPolicy = "retain"
	RemovalPolicySnapshot RemovalPolicy = "snapshot"
)

func (sg *RdsSubnetGroup) Id() construct.ResourceId {
	return awsId(RDS_SUBNET_GROUP_TYPE, "", sg.Name)
}

func (sg *RdsSubnetGroup) References() []construct.ResourceId {
	return sg.Subnets
}

func (cluster *RdsCluster) Id() construct.ResourceId {
	return awsId(RDS_CLUSTER_TYPE, "", cluster.Name)
}

func (cluster *RdsCluster) References() []construct.ResourceId {
	refs := []construct.ResourceId{cluster.Credentials, cluster.SubnetGroup}
	return append(refs, cluster.SecurityGroups...)
}

func (instance *RdsInstance) Id() construct.ResourceId {
	return awsId(RDS_INSTANCE_TYPE, instance.Cluster.Name, instance.Name)
}

func (instance *RdsInstance) References() []construct.ResourceId {
	return []construct.ResourceId{instance.Cluster}
}
