package gpio

import "errors"

// FakeDevice is a test double that returns scripted input samples and
// records every output write.
type FakeDevice struct {
	// Samples contains scripted readings to return.
	// Each call to Read() consumes the next sample.
	Samples []Sample

	// index tracks current position in Samples
	index int

	// Writes contains every Levels passed to Write, in order.
	Writes []Levels

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error

	// WriteError, if set, will be returned by Write()
	WriteError error
}

// NewFakeDevice creates a FakeDevice with the given samples.
func NewFakeDevice(samples []Sample) *FakeDevice {
	return &FakeDevice{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeDevice) Read() (Sample, error) {
	if f.ReadError != nil {
		return Sample{}, f.ReadError
	}

	if len(f.Samples) == 0 {
		return Sample{}, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample, nil
}

// Write records the levels.
func (f *FakeDevice) Write(levels Levels) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Writes = append(f.Writes, levels)
	return nil
}

// Last returns the most recent write, or all-low if nothing was written.
func (f *FakeDevice) Last() Levels {
	if len(f.Writes) == 0 {
		return Levels{}
	}
	return f.Writes[len(f.Writes)-1]
}

// Close drives the outputs low and marks the device as closed.
func (f *FakeDevice) Close() error {
	if f.Closed {
		return nil
	}
	f.Writes = append(f.Writes, Levels{})
	f.Closed = true
	return nil
}

// Reset rewinds the samples and forgets recorded writes.
func (f *FakeDevice) Reset() {
	f.index = 0
	f.Writes = nil
	f.Closed = false
}
