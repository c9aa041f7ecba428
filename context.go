package authengine

import "context"

type clientIPContextKey struct{}
type userAgentContextKey struct{}
type deviceNameContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Engine uses it
// for attempt recording, audit logging, and the suspicious-activity check.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx for attempt
// recording and session metadata.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

// WithDeviceName attaches a caller-supplied device label to ctx for
// session metadata.
func WithDeviceName(ctx context.Context, deviceName string) context.Context {
	return context.WithValue(ctx, deviceNameContextKey{}, deviceName)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}

func deviceNameFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	deviceName, _ := ctx.Value(deviceNameContextKey{}).(string)
	return deviceName
}

// metaFromContext builds a ClientMeta from context values, with explicit
// fields taking precedence over context-carried ones.
func metaFromContext(ctx context.Context, meta ClientMeta) ClientMeta {
	if meta.IP == "" {
		meta.IP = clientIPFromContext(ctx)
	}
	if meta.UserAgent == "" {
		meta.UserAgent = userAgentFromContext(ctx)
	}
	if meta.DeviceName == "" {
		meta.DeviceName = deviceNameFromContext(ctx)
	}
	return meta
}
