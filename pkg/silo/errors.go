package silo

import (
	"fmt"

	"github.com/storacha/silo/pkg/host"
	"github.com/storacha/silo/pkg/storage"
)

// ConfigError reports configuration that cannot start a silo. It is raised
// before any cluster contact.
type ConfigError struct {
	Field string
	Cause error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %v", e.Cause)
	}
	return fmt.Sprintf("invalid configuration %s: %v", e.Field, e.Cause)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// ClusterJoinError reports that the silo could not become a cluster member.
type ClusterJoinError struct {
	ClusterID string
	Stage     string
	Cause     error
}

func (e *ClusterJoinError) Error() string {
	return fmt.Sprintf("joining cluster %q failed at %s: %v", e.ClusterID, e.Stage, e.Cause)
}

func (e *ClusterJoinError) Unwrap() error { return e.Cause }

// StorageBindingError reports a storage role that could not be bound.
type StorageBindingError struct {
	Binding storage.Binding
	Cause   error
}

func (e *StorageBindingError) Error() string {
	return fmt.Sprintf("binding %s: %v", e.Binding, e.Cause)
}

func (e *StorageBindingError) Unwrap() error { return e.Cause }

// RuntimeFault is a failure raised by background work after startup.
type RuntimeFault = host.Fault
