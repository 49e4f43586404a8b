package logging

import (
	"github.com/klothoplatform/infratopo/pkg/construct"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type resourceField construct.ResourceId

func (f resourceField) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	id := construct.ResourceId(f)
	enc.AddString("id", id.String())
	enc.AddString("type", id.QualifiedTypeName())
	return nil
}

func ResourceField(id construct.ResourceId) zap.Field {
	return zap.Object("resource", resourceField(id))
}

func StackField(stack string) zap.Field {
	return zap.String("stack", stack)
}

func ProfileField(profile string) zap.Field {
	return zap.String("profile", profile)
}
