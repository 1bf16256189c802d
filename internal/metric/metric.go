// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package metric

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	instrumentationName = "github.com/tochemey/atomvar"
	namespaceAttribute  = "atomvar.namespace"
)

// VariableMetric holds the instruments shared by every variable of a namespace
type VariableMetric struct {
	// Specifies the total number of remote reads
	reads metric.Int64Counter
	// Specifies the total number of committed conditional writes
	writes metric.Int64Counter
	// Specifies the total number of conditional writes rejected on version
	conflicts metric.Int64Counter
	// Specifies the total number of nodes created
	creates metric.Int64Counter

	attributes metric.MeasurementOption
}

// NewVariableMetric creates the instruments from the given provider.
// A nil provider falls back to the global one.
func NewVariableMetric(provider metric.MeterProvider, namespace string) (*VariableMetric, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}

	meter := provider.Meter(instrumentationName)
	variableMetric := &VariableMetric{
		attributes: metric.WithAttributes(attribute.String(namespaceAttribute, namespace)),
	}

	var err error
	if variableMetric.reads, err = meter.Int64Counter(
		"atomvar.variable.reads",
		metric.WithDescription("Total number of remote variable reads"),
	); err != nil {
		return nil, fmt.Errorf("failed to create reads instrument, %w", err)
	}

	if variableMetric.writes, err = meter.Int64Counter(
		"atomvar.variable.writes",
		metric.WithDescription("Total number of committed variable writes"),
	); err != nil {
		return nil, fmt.Errorf("failed to create writes instrument, %w", err)
	}

	if variableMetric.conflicts, err = meter.Int64Counter(
		"atomvar.variable.conflicts",
		metric.WithDescription("Total number of conditional writes rejected on version"),
	); err != nil {
		return nil, fmt.Errorf("failed to create conflicts instrument, %w", err)
	}

	if variableMetric.creates, err = meter.Int64Counter(
		"atomvar.variable.creates",
		metric.WithDescription("Total number of variables created"),
	); err != nil {
		return nil, fmt.Errorf("failed to create creates instrument, %w", err)
	}

	return variableMetric, nil
}

// RecordRead counts a remote read
func (x *VariableMetric) RecordRead(ctx context.Context) {
	x.reads.Add(ctx, 1, x.attributes)
}

// RecordWrite counts a committed write
func (x *VariableMetric) RecordWrite(ctx context.Context) {
	x.writes.Add(ctx, 1, x.attributes)
}

// RecordConflict counts a write rejected on version
func (x *VariableMetric) RecordConflict(ctx context.Context) {
	x.conflicts.Add(ctx, 1, x.attributes)
}

// RecordCreate counts a created node
func (x *VariableMetric) RecordCreate(ctx context.Context) {
	x.creates.Add(ctx, 1, x.attributes)
}
