package resources

import "github.com/klothoplatform/infratopo/pkg/construct"

type (
	Secret struct {
		Name        string `yaml:"-"`
		SecretName  string `yaml:"secret_name"`
		Description string `yaml:"description,omitempty"`
		// Generate is set when the secret value is generated at creation time instead of supplied.
		Generate *GeneratedSecret `yaml:"generate,omitempty"`
	}

	GeneratedSecret struct {
		SecretStringTemplate string `yaml:"secret_string_template"`
		GenerateStringKey    string `yaml:"generate_string_key"`
		ExcludeCharacters    string `yaml:"exclude_characters,omitempty"`
		PasswordLength       int    `yaml:"password_length,omitempty"`
	}
)

func (secret *Secret) Id() construct.ResourceId {
	return awsId(SECRET_TYPE, "", secret.Name)
}

func (secret *Secret) References() []construct.ResourceId {
	return nil
}
