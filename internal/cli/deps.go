package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/mongolens/internal/analyzer"
	mongoinspect "github.com/ppiankov/mongolens/internal/mongo"
	"github.com/ppiankov/mongolens/internal/telemetry"
)

type inspector interface {
	analyzer.CollectionSource
	Close(ctx context.Context) error
	ServerInfo(ctx context.Context) mongoinspect.ServerInfo
	ListTargets(ctx context.Context, includeDBs, includeColls []string) ([]mongoinspect.Target, error)
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

var (
	newInspector = func(ctx context.Context, cfg mongoinspect.Config) (inspector, error) {
		return mongoinspect.NewInspector(ctx, cfg)
	}
	initTelemetry = func(ctx context.Context, service, version string) (shutdowner, error) {
		return telemetry.Init(ctx, service, version)
	}
)

func validateFormat(format string, allowed ...string) error {
	for _, v := range allowed {
		if format == v {
			return nil
		}
	}
	return fmt.Errorf("invalid --format %q (allowed: %s)", format, strings.Join(allowed, ", "))
}
