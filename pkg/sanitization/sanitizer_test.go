package sanitization_test

import (
	"testing"

	"github.com/klothoplatform/infratopo/pkg/sanitization"
	"github.com/klothoplatform/infratopo/pkg/sanitization/aws"
	"github.com/stretchr/testify/assert"
)

func TestSanitizers(t *testing.T) {
	tests := []struct {
		name      string
		sanitizer *sanitization.Sanitizer
		input     string
		want      string
	}{
		{
			name:      "rds cluster identifier",
			sanitizer: aws.RdsClusterSanitizer,
			input:     "1demo__cluster-",
			want:      "demo-cluster",
		},
		{
			name:      "db name strips punctuation",
			sanitizer: aws.RdsDBNameSanitizer,
			input:     "covid-db",
			want:      "coviddb",
		},
		{
			name:      "role name",
			sanitizer: aws.IamRoleSanitizer,
			input:     "Role For Ec2",
			want:      "Role_For_Ec2",
		},
		{
			name:      "load balancer name is truncated",
			sanitizer: aws.LoadBalancerSanitizer,
			input:     "internal-a-very-long-application-load-balancer-name",
			want:      "a-very-long-application-load-bal",
		},
		{
			name:      "security group reserved prefix",
			sanitizer: aws.SecurityGroupSanitizer,
			input:     "sg-web",
			want:      "web",
		},
		{
			name:      "secret name",
			sanitizer: aws.SecretSanitizer,
			input:     "aurora secret",
			want:      "aurora-secret",
		},
		{
			name:      "env var key",
			sanitizer: sanitization.EnvVarKeySanitizer,
			input:     "1secret-id",
			want:      "secret_id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sanitizer.Apply(tt.input))
		})
	}
}
