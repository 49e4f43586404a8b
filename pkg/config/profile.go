package config

import (
	"errors"
	"fmt"

	topo_errs "github.com/klothoplatform/infratopo/pkg/errors"
)

const component = "profile"

type (
	// Profile selects which components a topology contains and how they are parameterized. Fields left unset in a
	// profile file keep the value of the base profile it is loaded over.
	Profile struct {
		Name    string  `json:"name" yaml:"name" toml:"name" mapstructure:"name"`
		Region  string  `json:"region" yaml:"region" toml:"region" mapstructure:"region"`
		Account string  `json:"account,omitempty" yaml:"account,omitempty" toml:"account,omitempty" mapstructure:"account"`
		Network Network `json:"network" yaml:"network" toml:"network" mapstructure:"network"`

		HasLoadBalancer              bool `json:"has_load_balancer" yaml:"has_load_balancer" toml:"has_load_balancer" mapstructure:"has_load_balancer"`
		HasDedicatedAsgSecurityGroup bool `json:"has_dedicated_asg_security_group" yaml:"has_dedicated_asg_security_group" toml:"has_dedicated_asg_security_group" mapstructure:"has_dedicated_asg_security_group"`
		HasFixedInstance             bool `json:"has_fixed_instance" yaml:"has_fixed_instance" toml:"has_fixed_instance" mapstructure:"has_fixed_instance"`
		HasElasticPool               bool `json:"has_elastic_pool" yaml:"has_elastic_pool" toml:"has_elastic_pool" mapstructure:"has_elastic_pool"`

		// BackupRetentionDays is left to the provider default when unset.
		BackupRetentionDays *int   `json:"backup_retention_days,omitempty" yaml:"backup_retention_days,omitempty" toml:"backup_retention_days,omitempty" mapstructure:"backup_retention_days"`
		BackupWindow        string `json:"backup_window,omitempty" yaml:"backup_window,omitempty" toml:"backup_window,omitempty" mapstructure:"backup_window"`
		ReaderCount         int    `json:"reader_count" yaml:"reader_count" toml:"reader_count" mapstructure:"reader_count"`
		DeletionProtection  bool   `json:"deletion_protection" yaml:"deletion_protection" toml:"deletion_protection" mapstructure:"deletion_protection"`

		// OpenIngress admits any IPv4 address on the listener port of the router and the web server.
		OpenIngress bool `json:"open_ingress" yaml:"open_ingress" toml:"open_ingress" mapstructure:"open_ingress"`
		// SshIngress admits any IPv4 address on port 22 of the web server.
		SshIngress bool `json:"ssh_ingress" yaml:"ssh_ingress" toml:"ssh_ingress" mapstructure:"ssh_ingress"`

		Database     Database `json:"database" yaml:"database" toml:"database" mapstructure:"database"`
		Instance     Instance `json:"instance" yaml:"instance" toml:"instance" mapstructure:"instance"`
		Pool         Pool     `json:"pool" yaml:"pool" toml:"pool" mapstructure:"pool"`
		Role         Role     `json:"role" yaml:"role" toml:"role" mapstructure:"role"`
		ListenerPort int      `json:"listener_port" yaml:"listener_port" toml:"listener_port" mapstructure:"listener_port"`

		// BootstrapScript is the text every compute unit runs at start. BootstrapScriptPath, when set, is read
		// by Load and replaces it.
		BootstrapScript     string `json:"bootstrap_script,omitempty" yaml:"bootstrap_script,omitempty" toml:"bootstrap_script,omitempty" mapstructure:"bootstrap_script"`
		BootstrapScriptPath string `json:"bootstrap_script_path,omitempty" yaml:"bootstrap_script_path,omitempty" toml:"bootstrap_script_path,omitempty" mapstructure:"bootstrap_script_path"`
	}

	Network struct {
		Name              string `json:"name" yaml:"name" toml:"name" mapstructure:"name"`
		Cidr              string `json:"cidr" yaml:"cidr" toml:"cidr" mapstructure:"cidr"`
		AvailabilityZones int    `json:"availability_zones" yaml:"availability_zones" toml:"availability_zones" mapstructure:"availability_zones"`
		NatGateways       int    `json:"nat_gateways,omitempty" yaml:"nat_gateways,omitempty" toml:"nat_gateways,omitempty" mapstructure:"nat_gateways"`
	}

	Database struct {
		Name          string `json:"name" yaml:"name" toml:"name" mapstructure:"name"`
		Identifier    string `json:"identifier" yaml:"identifier" toml:"identifier" mapstructure:"identifier"`
		EngineVersion string `json:"engine_version" yaml:"engine_version" toml:"engine_version" mapstructure:"engine_version"`
		InstanceClass string `json:"instance_class" yaml:"instance_class" toml:"instance_class" mapstructure:"instance_class"`
		SecretName    string `json:"secret_name" yaml:"secret_name" toml:"secret_name" mapstructure:"secret_name"`
		// Tier is private_isolated or private_with_egress.
		Tier string `json:"tier" yaml:"tier" toml:"tier" mapstructure:"tier"`
	}

	Instance struct {
		Name         string `json:"name" yaml:"name" toml:"name" mapstructure:"name"`
		InstanceType string `json:"instance_type" yaml:"instance_type" toml:"instance_type" mapstructure:"instance_type"`
	}

	Pool struct {
		Name                   string `json:"name" yaml:"name" toml:"name" mapstructure:"name"`
		InstanceType           string `json:"instance_type" yaml:"instance_type" toml:"instance_type" mapstructure:"instance_type"`
		Min                    int    `json:"min" yaml:"min" toml:"min" mapstructure:"min"`
		Max                    int    `json:"max" yaml:"max" toml:"max" mapstructure:"max"`
		RequestTargetPerMinute int    `json:"request_target_per_minute" yaml:"request_target_per_minute" toml:"request_target_per_minute" mapstructure:"request_target_per_minute"`
		// SubnetIndexes pick from the private subnets, isolated first. Empty means every subnet with egress.
		SubnetIndexes []int `json:"subnet_indexes,omitempty" yaml:"subnet_indexes,omitempty" toml:"subnet_indexes,omitempty" mapstructure:"subnet_indexes"`
	}

	Role struct {
		Name           string   `json:"name" yaml:"name" toml:"name" mapstructure:"name"`
		ArtifactBucket string   `json:"artifact_bucket,omitempty" yaml:"artifact_bucket,omitempty" toml:"artifact_bucket,omitempty" mapstructure:"artifact_bucket"`
		ExtraPolicies  []string `json:"extra_policies,omitempty" yaml:"extra_policies,omitempty" toml:"extra_policies,omitempty" mapstructure:"extra_policies"`
	}
)

const (
	DemoProfile       = "demo"
	ProductionProfile = "production"
)

// BaseProfiles lists the built-in profile names.
var BaseProfiles = []string{DemoProfile, ProductionProfile}

const defaultBootstrapScript = `#!/bin/bash
yum update -y
yum install -y python3 python3-pip
`

// BaseProfile returns a copy of a built-in profile.
func BaseProfile(name string) (Profile, error) {
	p := Profile{
		Name:   name,
		Region: "ap-southeast-1",
		Network: Network{
			Name:              "VpcStackAuroraDemo",
			Cidr:              "10.0.0.0/16",
			AvailabilityZones: 2,
		},
		HasLoadBalancer:              true,
		HasDedicatedAsgSecurityGroup: true,
		HasFixedInstance:             true,
		HasElasticPool:               true,
		BackupWindow:                 "16:00-16:30",
		Database: Database{
			Name:          "covid",
			Identifier:    "demo",
			EngineVersion: "2.07.2",
			InstanceClass: "t3.small",
			SecretName:    "aurora-secret-name",
			Tier:          "private_isolated",
		},
		Instance: Instance{Name: "WebServerAuroraDemo", InstanceType: "t3.small"},
		Pool: Pool{
			Name:                   "WebServerPool",
			InstanceType:           "t2.small",
			Min:                    2,
			Max:                    10,
			RequestTargetPerMinute: 60,
		},
		Role:            Role{Name: "RoleForWebServerAuroraDemo"},
		ListenerPort:    80,
		BootstrapScript: defaultBootstrapScript,
	}
	switch name {
	case DemoProfile:
		retention := 7
		p.BackupRetentionDays = &retention
		p.OpenIngress = true
		p.SshIngress = true

	case ProductionProfile:
		retention := 14
		p.BackupRetentionDays = &retention
		p.ReaderCount = 1
		p.DeletionProtection = true
		p.OpenIngress = true
		p.HasFixedInstance = false
		p.Network.NatGateways = 2

	default:
		return Profile{}, topo_errs.Configf(component, "name", "unknown base profile %q, expected one of %v", name, BaseProfiles)
	}
	return p, nil
}

// Validate checks the combinations of components a profile asks for. Component parameters are checked by
// the builders themselves.
func (p Profile) Validate() error {
	var errs error
	fail := func(field, format string, args ...any) {
		errs = errors.Join(errs, topo_errs.Configf(component, field, format, args...))
	}
	if p.Name == "" {
		fail("name", "profile has no name")
	}
	if p.Region == "" {
		fail("region", "profile %s has no region", p.Name)
	}
	if !p.HasFixedInstance && !p.HasElasticPool {
		fail("has_elastic_pool", "profile %s declares no compute unit", p.Name)
	}
	if p.HasDedicatedAsgSecurityGroup && !p.HasElasticPool {
		fail("has_dedicated_asg_security_group", "profile %s has a dedicated pool security group but no elastic pool", p.Name)
	}
	if p.ListenerPort < 1 || p.ListenerPort > 65535 {
		fail("listener_port", "invalid listener port %d", p.ListenerPort)
	}
	if p.BootstrapScript == "" && p.BootstrapScriptPath == "" {
		fail("bootstrap_script", "profile %s has no bootstrap script", p.Name)
	}
	return errs
}

func (p Profile) String() string {
	return fmt.Sprintf("%s (%s, %s)", p.Name, p.Region, p.Network.Cidr)
}
