package middleware

import (
	"context"

	"zonegate/internal/models"
)

type ctxKey string

const (
	ctxRequestID ctxKey = "request_id"
	ctxIdentity  ctxKey = "identity"
	ctxSession   ctxKey = "session"
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxRequestID, id)
}

func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(ctxRequestID).(string)
	return v
}

func WithIdentity(ctx context.Context, si models.SessionIdentity) context.Context {
	return context.WithValue(ctx, ctxIdentity, si)
}

// Identity returns the resolved session identity, guest when none was
// attached.
func Identity(ctx context.Context) models.SessionIdentity {
	si, ok := ctx.Value(ctxIdentity).(models.SessionIdentity)
	if !ok {
		return models.Guest()
	}
	return si
}

func WithSession(ctx context.Context, s models.GateSession) context.Context {
	return context.WithValue(ctx, ctxSession, s)
}

func Session(ctx context.Context) (models.GateSession, bool) {
	s, ok := ctx.Value(ctxSession).(models.GateSession)
	return s, ok
}
