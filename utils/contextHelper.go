package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/agromate_backend/appctx"
)

// Alias the shared context key type so existing code keeps working.
type contextKey = appctx.ContextKey

var (
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeyMessageId     = appctx.ContextKeyMessageId
	ContextKeySubmitterId   = appctx.ContextKeySubmitterId
	ContextKeyIngestSource  = appctx.ContextKeyIngestSource
)

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func GetMessageIdFromContext(ctx context.Context) (uint, bool) {
	return appctx.GetUint(ctx, ContextKeyMessageId)
}

func SetMessageIdInContext(ctx context.Context, messageId uint) context.Context {
	return appctx.Set(ctx, ContextKeyMessageId, messageId)
}

func GetSubmitterIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeySubmitterId)
}

func SetSubmitterIdInContext(ctx context.Context, submitterId string) context.Context {
	return appctx.Set(ctx, ContextKeySubmitterId, submitterId)
}

func GetIngestSourceFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyIngestSource)
}

func SetIngestSourceInContext(ctx context.Context, source string) context.Context {
	return appctx.Set(ctx, ContextKeyIngestSource, source)
}
