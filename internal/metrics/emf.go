// Package metrics emits CloudWatch Embedded Metrics Format (EMF) documents.
// EMF metrics are written as single-line JSON to stdout, where CloudWatch
// Logs extracts them when the detector runs in Lambda; elsewhere they are
// ordinary log lines and cost nothing.
//
// See: https://docs.aws.amazon.com/AmazonCloudWatch/latest/monitoring/CloudWatch_Embedded_Metric_Format_Specification.html
package metrics

import (
	"encoding/json"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Standard CloudWatch metric units.
const (
	UnitMilliseconds = "Milliseconds"
	UnitCount        = "Count"
	UnitBytes        = "Bytes"
	UnitNone         = "None"
)

type metricDef struct {
	Name string `json:"Name"`
	Unit string `json:"Unit"`
}

type emfDirective struct {
	Timestamp         int64      `json:"Timestamp"`
	CloudWatchMetrics []cwMetric `json:"CloudWatchMetrics"`
}

type cwMetric struct {
	Namespace  string      `json:"Namespace"`
	Dimensions [][]string  `json:"Dimensions"`
	Metrics    []metricDef `json:"Metrics"`
}

// Emitter creates Recorders that share a namespace and output. A disabled
// Emitter hands out Recorders whose Flush is a no-op, so call sites never
// need to check whether metrics are on.
type Emitter struct {
	namespace string
	enabled   bool

	mu  sync.Mutex
	out io.Writer
}

// NewEmitter returns an Emitter writing to stdout.
func NewEmitter(namespace string, enabled bool) *Emitter {
	return &Emitter{namespace: namespace, enabled: enabled, out: os.Stdout}
}

// Disabled returns an Emitter that never writes.
func Disabled() *Emitter {
	return &Emitter{}
}

// SetOutput redirects flushed documents, mainly for tests.
func (e *Emitter) SetOutput(w io.Writer) {
	e.mu.Lock()
	e.out = w
	e.mu.Unlock()
}

// Enabled reports whether Flush writes anything.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled
}

// Recorder starts a new document for one operation. The Lambda function
// name, when present, is added as a dimension.
func (e *Emitter) Recorder() *Recorder {
	r := &Recorder{
		emitter:    e,
		dimensions: make(map[string]string),
		metrics:    make(map[string]metricDef),
		values:     make(map[string]float64),
		properties: make(map[string]interface{}),
	}
	if fn := os.Getenv("AWS_LAMBDA_FUNCTION_NAME"); fn != "" {
		r.dimensions["FunctionName"] = fn
	}
	return r
}

func (e *Emitter) write(line []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.out.Write(append(line, '\n')); err != nil {
		log.Warn().Err(err).Msg("Failed to write EMF document")
	}
}

// Recorder accumulates dimensions, metrics, and properties for a single flush.
// It is not safe for concurrent use; create one per operation.
type Recorder struct {
	emitter    *Emitter
	dimensions map[string]string
	metrics    map[string]metricDef
	values     map[string]float64
	properties map[string]interface{}
}

// Dimension adds a dimension key-value pair.
func (r *Recorder) Dimension(key, value string) *Recorder {
	r.dimensions[key] = value
	return r
}

// Metric records a named value with a CloudWatch unit.
func (r *Recorder) Metric(name string, value float64, unit string) *Recorder {
	r.metrics[name] = metricDef{Name: name, Unit: unit}
	r.values[name] = value
	return r
}

// Count records a count metric, accumulating across calls with the same name.
func (r *Recorder) Count(name string) *Recorder {
	return r.Metric(name, r.values[name]+1, UnitCount)
}

// Duration records d in milliseconds.
func (r *Recorder) Duration(name string, d time.Duration) *Recorder {
	return r.Metric(name, float64(d.Milliseconds()), UnitMilliseconds)
}

// Property adds a non-metric field, searchable in Logs Insights.
func (r *Recorder) Property(key string, value interface{}) *Recorder {
	r.properties[key] = value
	return r
}

// Flush writes the document as one JSON line. Empty recorders and recorders
// from a disabled Emitter write nothing. The Recorder must not be reused.
func (r *Recorder) Flush() {
	if !r.emitter.Enabled() || len(r.metrics) == 0 {
		return
	}

	doc := make(map[string]interface{}, len(r.dimensions)+len(r.values)+len(r.properties)+1)

	defs := make([]metricDef, 0, len(r.metrics))
	for _, m := range r.metrics {
		defs = append(defs, m)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })

	dimKeys := make([]string, 0, len(r.dimensions))
	for k := range r.dimensions {
		dimKeys = append(dimKeys, k)
	}
	sort.Strings(dimKeys)

	for k, v := range r.properties {
		doc[k] = v
	}
	for k, v := range r.dimensions {
		doc[k] = v
	}
	for k, v := range r.values {
		doc[k] = v
	}
	doc["_aws"] = emfDirective{
		Timestamp: time.Now().UnixMilli(),
		CloudWatchMetrics: []cwMetric{{
			Namespace:  r.emitter.namespace,
			Dimensions: [][]string{dimKeys},
			Metrics:    defs,
		}},
	}

	data, err := json.Marshal(doc)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to marshal EMF document")
		return
	}
	r.emitter.write(data)
}
