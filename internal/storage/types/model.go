package types

import (
	"fmt"
	"time"

	"github.com/xtxerr/hivestore/internal/metrics"
)

// Precision is the resolution of an artifact timestamp.
type Precision uint8

const (
	// PrecisionDateTime stamps artifacts to the second.
	PrecisionDateTime Precision = iota

	// PrecisionDate stamps artifacts to the day.
	PrecisionDate
)

// String returns the string representation of the precision.
func (p Precision) String() string {
	switch p {
	case PrecisionDateTime:
		return "datetime"
	case PrecisionDate:
		return "date"
	default:
		return fmt.Sprintf("unknown(%d)", p)
	}
}

// Layout returns the time layout used in artifact filenames.
func (p Precision) Layout() string {
	if p == PrecisionDate {
		return "20060102"
	}
	return "20060102_150405"
}

// ModelKind distinguishes classification from regression models.
type ModelKind string

const (
	Classification ModelKind = "classification"
	Regression     ModelKind = "regression"
)

// Model is a serialized model artifact. Payload holds the opaque model
// bytes produced by whatever trained it.
type Model struct {
	Name      string            `msgpack:"name" cbor:"1,keyasint"`
	Kind      ModelKind         `msgpack:"kind" cbor:"2,keyasint"`
	Features  []string          `msgpack:"features" cbor:"3,keyasint"`
	CreatedAt time.Time         `msgpack:"created_at" cbor:"4,keyasint"`
	Precision Precision         `msgpack:"precision" cbor:"5,keyasint"`
	Params    map[string]string `msgpack:"params,omitempty" cbor:"6,keyasint,omitempty"`
	Payload   []byte            `msgpack:"payload" cbor:"7,keyasint"`
	Metrics   *metrics.Report   `msgpack:"metrics,omitempty" cbor:"8,keyasint,omitempty"`
}

// NewModel creates a model stamped with the current UTC time.
func NewModel(name string, kind ModelKind, features []string, payload []byte) *Model {
	return &Model{
		Name:      name,
		Kind:      kind,
		Features:  features,
		CreatedAt: time.Now().UTC(),
		Payload:   payload,
	}
}

// Timestamp returns the creation time truncated to the model's precision.
func (m *Model) Timestamp() time.Time {
	t := m.CreatedAt.UTC()
	if m.Precision == PrecisionDate {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return t.Truncate(time.Second)
}

// FormatTimestamp renders the timestamp for use in a filename.
func (m *Model) FormatTimestamp() string {
	return m.Timestamp().Format(m.Precision.Layout())
}

// Evaluate computes classification metrics on held-out data and attaches
// them to the model.
func (m *Model) Evaluate(yTrue []bool, scores []float64, threshold float64) error {
	r, err := metrics.Classify(yTrue, scores, threshold, 1)
	if err != nil {
		return err
	}
	m.Kind = Classification
	m.Metrics = &metrics.Report{Classification: r}
	return nil
}

// EvaluateRegression computes regression metrics and attaches them.
func (m *Model) EvaluateRegression(yTrue, yPred []float64) error {
	r, err := metrics.Regress(yTrue, yPred)
	if err != nil {
		return err
	}
	m.Kind = Regression
	m.Metrics = &metrics.Report{Regression: r}
	return nil
}
