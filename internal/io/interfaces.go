// Package io names the boundary between the evolution core and whatever
// supplies sensing and consumes actuation. The core never polls physics
// itself; it only sees these two contracts.
package io

import "context"

type Sensor interface {
	Name() string
	// Read returns one finite-valued sensor vector for the current tick.
	Read(ctx context.Context) ([]float64, error)
}

type Actuator interface {
	Name() string
	// Write consumes one action vector; thresholding and scaling are the
	// actuator's concern.
	Write(ctx context.Context, values []float64) error
}

// SensorFunc adapts a closure into a Sensor.
type SensorFunc struct {
	SensorName string
	ReadFunc   func(ctx context.Context) ([]float64, error)
}

func (s SensorFunc) Name() string {
	return s.SensorName
}

func (s SensorFunc) Read(ctx context.Context) ([]float64, error) {
	return s.ReadFunc(ctx)
}

// ActuatorFunc adapts a closure into an Actuator.
type ActuatorFunc struct {
	ActuatorName string
	WriteFunc    func(ctx context.Context, values []float64) error
}

func (a ActuatorFunc) Name() string {
	return a.ActuatorName
}

func (a ActuatorFunc) Write(ctx context.Context, values []float64) error {
	return a.WriteFunc(ctx, values)
}
