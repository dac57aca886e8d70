package common

import (
	"context"
	"encoding/hex"
	commonv1 "go.opentelemetry.io/proto/otlp/common/v1"
	resourcev1 "go.opentelemetry.io/proto/otlp/resource/v1"
	"google.golang.org/grpc/metadata"
	"time"
)

const (
	TenantMetadataKey  = "x-tenant-id"
	TenantAttribute    = "tenant.id"
	ServiceAttribute   = "service.name"
	UserAttribute      = "user.id"
	RequestAttribute   = "request.id"
	UnknownServiceName = "unknown_service"
)

// TenantID prefers the x-tenant-id request metadata over the tenant.id resource attribute.
func TenantID(ctx context.Context, resource *resourcev1.Resource) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(TenantMetadataKey); len(values) > 0 && values[0] != "" {
			return values[0]
		}
	}
	return StringAttribute(resource.GetAttributes(), TenantAttribute)
}

func ServiceName(resource *resourcev1.Resource) string {
	if name := StringAttribute(resource.GetAttributes(), ServiceAttribute); name != "" {
		return name
	}
	return UnknownServiceName
}

func StringAttribute(attributes []*commonv1.KeyValue, key string) string {
	for _, attr := range attributes {
		if attr.GetKey() == key {
			return attr.GetValue().GetStringValue()
		}
	}
	return ""
}

func Attributes(attributes []*commonv1.KeyValue) map[string]interface{} {
	if len(attributes) == 0 {
		return nil
	}
	result := make(map[string]interface{}, len(attributes))
	for _, attr := range attributes {
		result[attr.GetKey()] = Value(attr.GetValue())
	}
	return result
}

func Value(value *commonv1.AnyValue) interface{} {
	switch v := value.GetValue().(type) {
	case *commonv1.AnyValue_StringValue:
		return v.StringValue
	case *commonv1.AnyValue_BoolValue:
		return v.BoolValue
	case *commonv1.AnyValue_IntValue:
		return v.IntValue
	case *commonv1.AnyValue_DoubleValue:
		return v.DoubleValue
	case *commonv1.AnyValue_BytesValue:
		return hex.EncodeToString(v.BytesValue)
	case *commonv1.AnyValue_ArrayValue:
		values := make([]interface{}, len(v.ArrayValue.GetValues()))
		for i, item := range v.ArrayValue.GetValues() {
			values[i] = Value(item)
		}
		return values
	case *commonv1.AnyValue_KvlistValue:
		return Attributes(v.KvlistValue.GetValues())
	default:
		return nil
	}
}

func UnixNano(ts uint64) time.Time {
	return time.Unix(0, int64(ts)).UTC()
}
