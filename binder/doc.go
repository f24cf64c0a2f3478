// Package binder decodes HTTP request bodies into typed request structs for
// handler.Wrap.
package binder
