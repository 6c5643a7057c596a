// Package telemetry is a thin contract around the external error
// reporting collaborator (spec.md "telemetry exporters (Sentry, OTel
// collectors)" are out of scope as a product feature, but the ambient
// engineering concern of reporting unexpected errors is not — see
// SPEC_FULL.md §1). Only the collaborator boundary is implemented;
// dashboards, alerting and sampling policy live in Sentry itself.
package telemetry

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// Reporter captures unexpected errors for external visibility. Kept as
// an interface so components depend on the contract, not the
// concrete SDK, mirroring instancedriver.Client's collaborator shape.
type Reporter interface {
	CaptureError(err error, tags map[string]string)
	Flush(timeout time.Duration)
}

// noopReporter is the default when no DSN is configured, so components
// never need a nil check.
type noopReporter struct{}

func (noopReporter) CaptureError(error, map[string]string) {}
func (noopReporter) Flush(time.Duration)                   {}

// NewNoop returns a Reporter that discards everything.
func NewNoop() Reporter { return noopReporter{} }

type sentryReporter struct{}

// New initializes the sentry-go SDK with dsn and environment, returning
// a Reporter backed by it. If dsn is empty, returns a no-op Reporter
// instead of failing startup over a missing optional collaborator.
func New(dsn, environment, release string) (Reporter, error) {
	if dsn == "" {
		return NewNoop(), nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	}); err != nil {
		return nil, err
	}
	return sentryReporter{}, nil
}

func (sentryReporter) CaptureError(err error, tags map[string]string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

func (sentryReporter) Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}
