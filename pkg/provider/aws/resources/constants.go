package resources

import "github.com/klothoplatform/infratopo/pkg/construct"

const AWS_PROVIDER = "aws"

const (
	VPC_TYPE              = "vpc"
	SUBNET_TYPE           = "subnet"
	INTERNET_GATEWAY_TYPE = "internet_gateway"
	ELASTIC_IP_TYPE       = "elastic_ip"
	NAT_GATEWAY_TYPE      = "nat_gateway"
	VPC_ENDPOINT_TYPE     = "vpc_endpoint"
	SECURITY_GROUP_TYPE   = "security_group"

	IAM_ROLE_TYPE         = "iam_role"
	INSTANCE_PROFILE_TYPE = "instance_profile"
	SECRET_TYPE           = "secret"

	RDS_SUBNET_GROUP_TYPE = "rds_subnet_group"
	RDS_CLUSTER_TYPE      = "rds_cluster"
	RDS_INSTANCE_TYPE     = "rds_instance"

	EC2_INSTANCE_TYPE       = "ec2_instance"
	AUTO_SCALING_GROUP_TYPE = "auto_scaling_group"
	SCALING_POLICY_TYPE     = "scaling_policy"

	LOAD_BALANCER_TYPE = "load_balancer"
	TARGET_GROUP_TYPE  = "target_group"
	LISTENER_TYPE      = "listener"
)

// AnyIPv4 is the CIDR source of an ingress rule open to the internet.
const AnyIPv4 = "0.0.0.0/0"

func awsId(typ, namespace, name string) construct.ResourceId {
	return construct.ResourceId{Provider: AWS_PROVIDER, Type: typ, Namespace: namespace, Name: name}
}

// optional returns the non-empty ids.
func optional(ids ...construct.ResourceId) []construct.ResourceId {
	var out []construct.ResourceId
	for _, id := range ids {
		if !id.IsZero() {
			out = append(out, id)
		}
	}
	return out
}
