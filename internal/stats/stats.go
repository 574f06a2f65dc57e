package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"time"
)

// StatsProvider is what the relay needs from a metrics sink: named
// counters it can move up and down. Lifecycle (Run/Stop) stays on the
// concrete type, owned by main.
type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
}

// StatsUpdater maintains relay counters in an expvar map, applied by a
// single goroutine so handlers never block on metric updates.
type StatsUpdater struct {
	vars   *expvar.Map
	deltas chan metricDelta
}

type metricDelta struct {
	name  string
	value int64
}

func (su *StatsUpdater) expvarHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	expvarData := make(map[string]any)
	su.vars.Do(func(kv expvar.KeyValue) {
		var value any
		json.Unmarshal([]byte(kv.Value.String()), &value)
		expvarData[kv.Key] = value
	})

	json.NewEncoder(w).Encode(expvarData)
}

// NewStatsUpdater creates a stats updater and mounts its handler on mux.
func NewStatsUpdater(mux *http.ServeMux) *StatsUpdater {
	su := &StatsUpdater{
		deltas: make(chan metricDelta, 512),
	}
	mux.Handle("GET /debug/vars", http.HandlerFunc(su.expvarHandler))
	su.vars = expvar.NewMap("relay-stats")

	startTime := time.Now()
	su.vars.Set("Uptime", expvar.Func(func() any {
		return time.Since(startTime).Milliseconds()
	}))

	return su
}

func (su *StatsUpdater) applyDeltas() {
	for d := range su.deltas {
		metric := su.vars.Get(d.name)
		if metric == nil {
			panic("metric not found: " + d.name)
		}

		metric.(*expvar.Int).Add(d.value)
	}
}

func (su *StatsUpdater) Incr(name string) {
	su.deltas <- metricDelta{name: name, value: 1}
}

func (su *StatsUpdater) Decr(name string) {
	su.deltas <- metricDelta{name: name, value: -1}
}

func (su *StatsUpdater) RegisterMetric(name string) {
	su.vars.Set(name, expvar.NewInt(name))
}

func (su *StatsUpdater) Run() {
	go su.applyDeltas()
}

func (su *StatsUpdater) Stop() {
	close(su.deltas)
}
