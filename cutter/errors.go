package cutter

import "fmt"

// ConfigError is returned when the control file can not be opened, read or
// decoded with the requested encoding
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("cutter table: %s", e.Err)
	}
	return fmt.Sprintf("cutter table '%s': %s", e.Path, e.Err)
}
func (e *ConfigError) Unwrap() error { return e.Err }

// StreamReadError is returned when the sequence source fails mid-stream.
// Segments emitted before the failure remain valid.
type StreamReadError struct {
	// bytes successfully read from the source prior to the failure
	Offset int64
	Err    error
}

func (e *StreamReadError) Error() string {
	return fmt.Sprintf("reading sequence at byte offset %d failed: %s", e.Offset, e.Err)
}
func (e *StreamReadError) Unwrap() error { return e.Err }

// SinkWriteError is returned when an emitted segment can not be written out
type SinkWriteError struct {
	Emitter string
	Err     error
}

func (e *SinkWriteError) Error() string {
	if e.Emitter == "" {
		return fmt.Sprintf("writing segment failed: %s", e.Err)
	}
	return fmt.Sprintf("emitting '%s' failed: %s", e.Emitter, e.Err)
}
func (e *SinkWriteError) Unwrap() error { return e.Err }
