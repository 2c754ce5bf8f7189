package convert

import "fmt"

// ConfigError reports a problem detected before any sink I/O: an
// unsupported extension, an unreadable source, a missing output directory.
type ConfigError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return "config: " + e.Reason
	}
	return fmt.Sprintf("config: %s: %s", e.Path, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ConvertError wraps a failure raised while a conversion was running.
type ConvertError struct {
	Path   string
	Format Format
	Err    error
}

func (e *ConvertError) Error() string {
	return fmt.Sprintf("convert %s source %s: %v", e.Format, e.Path, e.Err)
}

func (e *ConvertError) Unwrap() error { return e.Err }
