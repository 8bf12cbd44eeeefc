// Package metrics writes CloudWatch Embedded Metric Format (EMF) documents.
// Each document is one JSON line; in Lambda, CloudWatch Logs extracts the
// metrics from stdout without any API call.
//
// See: https://docs.aws.amazon.com/AmazonCloudWatch/latest/monitoring/CloudWatch_Embedded_Metric_Format_Specification.html
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"time"
)

// DefaultNamespace is the CloudWatch namespace for publish metrics.
const DefaultNamespace = "MetaPublisher"

// CloudWatch units used by the publisher.
const (
	UnitMilliseconds = "Milliseconds"
	UnitCount        = "Count"
)

type metricDef struct {
	Name string `json:"Name"`
	Unit string `json:"Unit"`
}

type directive struct {
	Timestamp         int64         `json:"Timestamp"`
	CloudWatchMetrics []metricGroup `json:"CloudWatchMetrics"`
}

type metricGroup struct {
	Namespace  string      `json:"Namespace"`
	Dimensions [][]string  `json:"Dimensions"`
	Metrics    []metricDef `json:"Metrics"`
}

// Recorder collects one EMF document. It is not safe for concurrent use;
// create one per job or request.
type Recorder struct {
	namespace  string
	out        io.Writer
	now        func() time.Time
	dimensions map[string]string
	defs       []metricDef
	fields     map[string]any
}

// New creates a Recorder for namespace (DefaultNamespace when empty) that
// writes to stdout. Inside Lambda the FunctionName dimension is added.
func New(namespace string) *Recorder {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	r := &Recorder{
		namespace:  namespace,
		out:        os.Stdout,
		now:        time.Now,
		dimensions: map[string]string{},
		fields:     map[string]any{},
	}
	if fn := os.Getenv("AWS_LAMBDA_FUNCTION_NAME"); fn != "" {
		r.dimensions["FunctionName"] = fn
	}
	return r
}

// To redirects the document to w. A nil w keeps stdout.
func (r *Recorder) To(w io.Writer) *Recorder {
	if w != nil {
		r.out = w
	}
	return r
}

// Dimension adds a dimension; every metric in the document is indexed by
// the full dimension set.
func (r *Recorder) Dimension(key, value string) *Recorder {
	r.dimensions[key] = value
	return r
}

// Metric records value under name. Recording a name twice keeps the first
// unit and the last value.
func (r *Recorder) Metric(name string, value float64, unit string) *Recorder {
	if !slices.ContainsFunc(r.defs, func(d metricDef) bool { return d.Name == name }) {
		r.defs = append(r.defs, metricDef{Name: name, Unit: unit})
	}
	r.fields[name] = value
	return r
}

// Count records name with value 1.
func (r *Recorder) Count(name string) *Recorder {
	return r.Metric(name, 1, UnitCount)
}

// Property adds a searchable field that is not a metric.
func (r *Recorder) Property(key string, value any) *Recorder {
	r.fields[key] = value
	return r
}

// document returns the EMF object, or nil when no metric was recorded.
func (r *Recorder) document() map[string]any {
	if len(r.defs) == 0 {
		return nil
	}
	doc := make(map[string]any, len(r.fields)+len(r.dimensions)+1)
	maps.Copy(doc, r.fields)
	for k, v := range r.dimensions {
		doc[k] = v
	}
	doc["_aws"] = directive{
		Timestamp: r.now().UnixMilli(),
		CloudWatchMetrics: []metricGroup{{
			Namespace:  r.namespace,
			Dimensions: [][]string{slices.Sorted(maps.Keys(r.dimensions))},
			Metrics:    r.defs,
		}},
	}
	return doc
}

// Flush writes the document as a single JSON line. A Recorder with no
// metrics writes nothing. Do not reuse a Recorder after Flush.
func (r *Recorder) Flush() {
	doc := r.document()
	if doc == nil {
		return
	}
	data, err := json.Marshal(doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "emf: marshal: %v\n", err)
		return
	}
	data = append(data, '\n')
	r.out.Write(data)
}
