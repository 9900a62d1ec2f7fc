package models

import "fmt"

// InputError reports an incoming message that is structurally unreadable.
// The message is skipped; monitoring continues with the next one.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid message: %s %s", e.Field, e.Reason)
}

// ConfigurationError reports configuration that makes the service unusable.
// It is fatal at startup.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}
