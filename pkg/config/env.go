package config

import "os"

// EnvVar represents an environment variable, specified by its key name. Use GetOr to get its value, or a
// default if the value isn't set.
type EnvVar string

const (
	DefaultAccount EnvVar = "CDK_DEFAULT_ACCOUNT"
	DefaultRegion  EnvVar = "CDK_DEFAULT_REGION"
	AwsRegion      EnvVar = "AWS_REGION"
	AwsProfile     EnvVar = "AWS_PROFILE"
)

// PassthroughVars are copied unmodified into a topology's environment.
var PassthroughVars = []EnvVar{DefaultAccount, DefaultRegion, AwsRegion, AwsProfile}

// GetOr uses os.Getenv to get the env var specified by the target EnvVar. If that env var's value is unset or empty,
// it returns the defaultValue.
func (s EnvVar) GetOr(defaultValue string) string {
	value := os.Getenv(string(s))
	if value == "" {
		return defaultValue
	} else {
		return value
	}
}

// Environment returns the set passthrough variables.
func Environment() map[string]string {
	env := make(map[string]string)
	for _, v := range PassthroughVars {
		if value := v.GetOr(""); value != "" {
			env[string(v)] = value
		}
	}
	return env
}

// ApplyEnvironment fills the profile's account from the environment, and its region when the profile has none.
func (p *Profile) ApplyEnvironment(env map[string]string) {
	if p.Account == "" {
		p.Account = env[string(DefaultAccount)]
	}
	if p.Region == "" {
		p.Region = env[string(DefaultRegion)]
	}
	if p.Region == "" {
		p.Region = env[string(AwsRegion)]
	}
}
