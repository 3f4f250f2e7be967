// Package metrics counts plugin and command activity with Prometheus
// collectors on a private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dshills/composer/internal/plugin"
)

const namespace = "composer"

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Collector records shell events. It implements the shell's Metrics
// interface, command execution included.
type Collector struct {
	registry *prometheus.Registry

	pluginsLoaded      *prometheus.CounterVec
	pluginActivations  *prometheus.CounterVec
	activationDuration prometheus.Histogram
	commandExecutions  *prometheus.CounterVec
	commandDuration    *prometheus.HistogramVec
}

// New creates a collector with its own registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		pluginsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugins_loaded_total",
			Help:      "Plugins loaded, by activation policy.",
		}, []string{"policy"}),
		pluginActivations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugin_activations_total",
			Help:      "Plugin activations, by plugin and result.",
		}, []string{"plugin", "result"}),
		activationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "plugin_activation_duration_seconds",
			Help:      "Time spent in plugin Activate.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		commandExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_executions_total",
			Help:      "Command executions, by command and result.",
		}, []string{"command", "result"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Command execution time including lazy plugin activation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
	}
	c.registry.MustRegister(
		c.pluginsLoaded,
		c.pluginActivations,
		c.activationDuration,
		c.commandExecutions,
		c.commandDuration,
	)
	return c
}

// Registry returns the registry holding the collectors.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the collected metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// PluginLoaded counts a loaded plugin.
func (c *Collector) PluginLoaded(_ string, policy plugin.ActivationType) {
	c.pluginsLoaded.WithLabelValues(string(policy)).Inc()
}

// PluginActivated counts an activation attempt.
func (c *Collector) PluginActivated(id string, elapsed time.Duration, err error) {
	c.pluginActivations.WithLabelValues(id, result(err)).Inc()
	c.activationDuration.Observe(elapsed.Seconds())
}

// CommandExecuted counts a command execution.
func (c *Collector) CommandExecuted(id string, elapsed time.Duration, err error) {
	c.commandExecutions.WithLabelValues(id, result(err)).Inc()
	c.commandDuration.WithLabelValues(id).Observe(elapsed.Seconds())
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
