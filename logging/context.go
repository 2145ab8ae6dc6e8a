package logging

import (
	"context"

	"go.viam.com/utils"
)

type debugKey struct{}

// EnableDebugMode marks ctx so that C-prefixed logging methods called with it log at every level,
// whatever the logger's own level. An empty name is replaced with a random one.
func EnableDebugMode(ctx context.Context, name string) context.Context {
	if name == "" {
		name = utils.RandomAlphaString(6)
	}
	return context.WithValue(ctx, debugKey{}, name)
}

// IsDebugMode reports whether ctx was marked by EnableDebugMode.
func IsDebugMode(ctx context.Context) bool {
	return GetName(ctx) != ""
}

// GetName returns the name ctx was marked with, or "".
func GetName(ctx context.Context) string {
	name, _ := ctx.Value(debugKey{}).(string)
	return name
}
