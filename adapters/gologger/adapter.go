package gologger

import (
	"strings"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

const componentPrefix = "relay"

// ResolveComponent resolves a logger for one relay component, with
// deterministic precedence provider > logger > nop. Component names are
// normalized under the relay namespace so log output from the store, the
// orchestrator, and the tick consumer stays groupable.
func ResolveComponent(
	component string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(componentName(component), provider, logger)
}

func componentName(component string) string {
	component = strings.TrimSpace(component)
	if component == "" || component == componentPrefix {
		return componentPrefix
	}
	if strings.HasPrefix(component, componentPrefix+"-") {
		return component
	}
	return componentPrefix + "-" + component
}

// JobLogging carries one resolved component logger in both the glog and the
// go-job shapes, so queue/scheduler wiring and relay code share a sink.
type JobLogging struct {
	Provider    glog.LoggerProvider
	Logger      glog.Logger
	JobProvider job.LoggerProvider
	JobLogger   job.Logger
}

// ResolveJobLogging resolves the component logger and bridges it to the
// go-job logging contracts. The logger side always comes back usable; the
// provider side stays nil when none was supplied.
func ResolveJobLogging(
	component string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) JobLogging {
	resolvedProvider, resolvedLogger := ResolveComponent(component, provider, logger)
	resolvedLogger = glog.Ensure(resolvedLogger)
	logging := JobLogging{
		Provider:  resolvedProvider,
		Logger:    resolvedLogger,
		JobLogger: job.GoLogger(resolvedLogger),
	}
	if resolvedProvider != nil {
		logging.JobProvider = job.GoLoggerProvider(resolvedProvider)
	}
	return logging
}
