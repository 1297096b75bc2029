package audit

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	requestIDKey contextKey = "audit_request_id"
	clientIPKey  contextKey = "audit_client_ip"
)

// NewRequestID returns a fresh UUID4 used to correlate the audit events
// written while serving one request.
func NewRequestID() string {
	return uuid.New().String()
}

// WithRequest attaches the request id and client address to ctx so that
// events logged further down the call chain carry them.
func WithRequest(ctx context.Context, requestID, clientIP string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	return context.WithValue(ctx, clientIPKey, clientIP)
}

// RequestID returns the request id stored in ctx, if any.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ClientIP returns the client address stored in ctx, if any.
func ClientIP(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}
