// Package errors provides the classified error primitives used across press.
//
// Every failure that crosses a package boundary is a ClassifiedError carrying a
// category (what kind of failure), a severity (how bad) and free-form context.
// The category decides recovery policy: filesystem and pipeline failures abort
// the current operation, parse failures of data sources are downgraded to
// warnings by the data loader.
//
//	err := errors.WrapError(readErr, errors.CategoryFileSystem, "read page").
//		WithContext("path", rel).
//		Build()
package errors
