// Package ilog is the structured-logging facade used by rpc, registry
// and middleware. Loggers returned by WithContext come from slf's own
// package-level factory, which logs nothing until one is installed with
// slf.Set. SetLogger only records a base logger; WithContext does not
// consult it, so SetLogger does not change where log output goes.
package ilog

import "github.com/ventu-io/slf"

var base slf.Logger = &slf.Noop{}

// SetLogger replaces the package-wide base logger.
func SetLogger(l slf.Logger) {
	if l == nil {
		l = &slf.Noop{}
	}
	base = l
}

// WithContext returns a structured logger scoped to the given context
// name, e.g. ilog.WithContext("transport.ActiveSocket").
func WithContext(context string) slf.StructuredLogger {
	return slf.WithContext(context)
}
