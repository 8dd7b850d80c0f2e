// Package metrics exposes the process counters on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TasksStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "browser_agent_tasks_started_total",
		Help: "Browser tasks accepted for execution.",
	})
	TasksSucceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "browser_agent_tasks_succeeded_total",
		Help: "Browser tasks that finished with overall success.",
	})
	CaptchaDetections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "browser_agent_captcha_detections_total",
		Help: "Challenge pages detected during task execution.",
	})
	FallbackAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "browser_agent_fallback_attempts_total",
		Help: "Fallback strategies executed for blocked searches.",
	})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
