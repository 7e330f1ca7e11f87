// Package history provides a fixed-capacity ring of recent pose samples used for
// velocity and peak-velocity estimation.
package history

import (
	"time"

	"github.com/ayusman/posetrack/internal/spatial"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultCapacity is the number of samples kept per pose source.
const DefaultCapacity = 30

// Sample is one recorded pose update.
type Sample struct {
	Time            time.Time
	Position        spatial.Vec
	Rotation        spatial.Quat
	Velocity        spatial.Vec
	AngularVelocity spatial.Vec
}

// Metric selects which speed PeakVelocityOver compares.
type Metric int

const (
	// LinearSpeed compares the magnitude of Velocity.
	LinearSpeed Metric = iota
	// AngularSpeed compares the magnitude of AngularVelocity.
	AngularSpeed
)

func (m Metric) speed(s Sample) float64 {
	if m == AngularSpeed {
		return r3.Norm2(s.AngularVelocity)
	}
	return r3.Norm2(s.Velocity)
}

// Buffer is a ring of the most recent samples. Logical index 0 is the oldest
// entry and Len()-1 the newest. It is not safe for concurrent use.
type Buffer struct {
	samples []Sample
	next    int // write cursor
	count   int
}

// New creates a Buffer holding at most capacity samples.
// A capacity below 1 falls back to DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Buffer{samples: make([]Sample, capacity)}
}

// Cap returns the maximum number of samples.
func (b *Buffer) Cap() int {
	return len(b.samples)
}

// Len returns the number of samples currently held.
func (b *Buffer) Len() int {
	return b.count
}

// Push appends s, overwriting the oldest sample when the buffer is full.
func (b *Buffer) Push(s Sample) {
	b.samples[b.next] = s
	b.next = (b.next + 1) % len(b.samples)
	if b.count < len(b.samples) {
		b.count++
	}
}

// physical maps a logical index to a slot in samples.
func (b *Buffer) physical(i int) int {
	start := b.next - b.count
	if start < 0 {
		start += len(b.samples)
	}
	return (start + i) % len(b.samples)
}

// At returns the sample at logical index i. It panics if i is out of range.
func (b *Buffer) At(i int) Sample {
	if i < 0 || i >= b.count {
		panic("history: index out of range")
	}
	return b.samples[b.physical(i)]
}

// Latest returns the newest sample.
func (b *Buffer) Latest() (Sample, bool) {
	if b.count == 0 {
		return Sample{}, false
	}
	return b.At(b.count - 1), true
}

// Samples returns a copy of the held samples, oldest first.
func (b *Buffer) Samples() []Sample {
	out := make([]Sample, b.count)
	for i := range out {
		out[i] = b.At(i)
	}
	return out
}

// PeakVelocityOver scans the newest window samples and returns the logical index
// of the one with the largest speed for metric. Among equal maxima the oldest wins.
// It returns false when the buffer is empty.
func (b *Buffer) PeakVelocityOver(window int, metric Metric) (int, bool) {
	if b.count == 0 || window < 1 {
		return 0, false
	}
	if window > b.count {
		window = b.count
	}

	top := b.count - window
	topSpeed := metric.speed(b.At(top))
	for i := top + 1; i < b.count; i++ {
		if speed := metric.speed(b.At(i)); speed > topSpeed {
			top = i
			topSpeed = speed
		}
	}
	return top, true
}

// AverageVelocities averages Velocity and AngularVelocity over count samples
// around center. The window starts at center-(count-1)/2 and is shifted to stay
// inside the buffer, so for count 2 it covers center and the next newer sample.
func (b *Buffer) AverageVelocities(count, center int) (velocity, angularVelocity spatial.Vec) {
	if b.count == 0 || count < 1 {
		return spatial.Vec{}, spatial.Vec{}
	}
	if count > b.count {
		count = b.count
	}

	start := center - (count-1)/2
	if start+count > b.count {
		start = b.count - count
	}
	if start < 0 {
		start = 0
	}

	for i := start; i < start+count; i++ {
		s := b.At(i)
		velocity = r3.Add(velocity, s.Velocity)
		angularVelocity = r3.Add(angularVelocity, s.AngularVelocity)
	}
	n := 1 / float64(count)
	return r3.Scale(n, velocity), r3.Scale(n, angularVelocity)
}

// VelocitiesAt returns the velocities at time t, linearly interpolated between the
// two samples that bracket it. Times outside the held range clamp to the oldest or
// newest sample.
func (b *Buffer) VelocitiesAt(t time.Time) (velocity, angularVelocity spatial.Vec, ok bool) {
	if b.count == 0 {
		return spatial.Vec{}, spatial.Vec{}, false
	}

	oldest := b.At(0)
	if !t.After(oldest.Time) {
		return oldest.Velocity, oldest.AngularVelocity, true
	}
	newest := b.At(b.count - 1)
	if !t.Before(newest.Time) {
		return newest.Velocity, newest.AngularVelocity, true
	}

	for i := b.count - 1; i > 0; i-- {
		prev, cur := b.At(i-1), b.At(i)
		if t.Before(prev.Time) {
			continue
		}
		span := cur.Time.Sub(prev.Time)
		if span <= 0 {
			return cur.Velocity, cur.AngularVelocity, true
		}
		frac := float64(t.Sub(prev.Time)) / float64(span)
		return spatial.Lerp(prev.Velocity, cur.Velocity, frac),
			spatial.Lerp(prev.AngularVelocity, cur.AngularVelocity, frac), true
	}
	return oldest.Velocity, oldest.AngularVelocity, true
}

// Clear empties the buffer without releasing its storage.
func (b *Buffer) Clear() {
	for i := range b.samples {
		b.samples[i] = Sample{}
	}
	b.next = 0
	b.count = 0
}
