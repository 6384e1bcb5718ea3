package extractor

import (
	"context"
	"errors"
	"strings"
)

type Extractor interface {
	Get(ctx context.Context, name string) []string
	GetFirst(ctx context.Context, name string) string
	GetUserID(ctx context.Context) (string, error)
	GetEmail(ctx context.Context) string
	GetName(ctx context.Context) string
	GetAvatar(ctx context.Context) string
	GetPlan(ctx context.Context) string
	GetRequestID(ctx context.Context) string
	GetXForwardedFor(ctx context.Context) string
	GetBearerToken(ctx context.Context) string
}

type valuesKey struct{}

// WithValues attaches request-scoped values (verified identity claims plus
// selected headers) for later extraction. Later calls merge over earlier ones.
func WithValues(ctx context.Context, values map[string][]string) context.Context {
	merged := map[string][]string{}
	if prev, ok := ctx.Value(valuesKey{}).(map[string][]string); ok {
		for k, v := range prev {
			merged[k] = v
		}
	}
	for k, v := range values {
		merged[strings.ToLower(k)] = v
	}
	return context.WithValue(ctx, valuesKey{}, merged)
}

type extractor struct {
}

func New() Extractor {
	return &extractor{}
}

func (t *extractor) Get(ctx context.Context, name string) []string {
	md, ok := ctx.Value(valuesKey{}).(map[string][]string)
	if !ok {
		return nil
	}

	return md[strings.ToLower(name)]
}

func (t *extractor) GetFirst(ctx context.Context, name string) string {
	values := t.Get(ctx, name)
	if len(values) == 0 {
		return ""
	}

	return values[0]
}

func (t *extractor) GetUserID(ctx context.Context) (string, error) {
	values := t.Get(ctx, UserID)
	if len(values) == 0 || values[0] == "" {
		return "", errors.New("context does not have x-user-id")
	}

	return values[0], nil
}

func (t *extractor) GetEmail(ctx context.Context) string {
	return t.GetFirst(ctx, UserEmail)
}

func (t *extractor) GetName(ctx context.Context) string {
	return t.GetFirst(ctx, UserName)
}

func (t *extractor) GetAvatar(ctx context.Context) string {
	return t.GetFirst(ctx, UserAvatar)
}

func (t *extractor) GetPlan(ctx context.Context) string {
	return t.GetFirst(ctx, UserPlan)
}

func (t *extractor) GetRequestID(ctx context.Context) string {
	return t.GetFirst(ctx, RequestID)
}

func (t *extractor) GetXForwardedFor(ctx context.Context) string {
	values := t.Get(ctx, XForwardedFor)
	if len(values) == 0 {
		return ""
	}

	return strings.Join(values[:], ",")
}

func (t *extractor) GetBearerToken(ctx context.Context) string {
	return t.GetFirst(ctx, BearerToken)
}
