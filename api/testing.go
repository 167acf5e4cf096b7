// Package api
// Author: momentics
//
// Test-friendly implementations of the core contracts.

package api

// TaskFunc adapts a plain function to Task.
type TaskFunc func(env *Env)

// Run calls f(env).
func (f TaskFunc) Run(env *Env) { f(env) }
