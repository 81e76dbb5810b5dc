// Package memory provides an in-process StateStore for single-replica deployments and tests.
package memory
