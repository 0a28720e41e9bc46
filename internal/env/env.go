// Package env composes the environment for processes hotc spawns: the
// compile server launched by the client, and compiler invocations made by
// the server. Overrides are applied on top of the OS environment in "K=V"
// form, last writer wins.
package env

import (
	"os"
	"path/filepath"
	"strings"
)

// Variables for specialized runtime hosting. When the build environment sets
// ToolRootVar, a newly launched server receives RuntimeRootVar and
// RuntimeVersionVar so the hosted runtime selects the right root and
// version. No environment is touched when the marker is absent.
const (
	ToolRootVar       = "HOTC_TOOLROOT"
	RuntimeRootVar    = "HOTC_RUNTIME_ROOT"
	RuntimeVersionVar = "HOTC_RUNTIME_VERSION"
	RuntimeVersion    = "v1"
)

// LibPathVar carries the library search path. The client forwards its value
// in each request; the server sets it for compiler invocations.
const LibPathVar = "HOTC_LIBPATH"

type Var map[string]string

// Env accumulates overrides to apply on top of a base environment.
type Env struct {
	Var  Var
	base Var
}

func New() *Env {
	return &Env{Var: make(Var)}
}

// FromOS caches the current process environment as the base.
func (e *Env) FromOS() {
	base := make(Var)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			base[kv[:i]] = kv[i+1:]
		}
	}
	e.base = base
}

// Set records an override K=V.
func (e *Env) Set(k, v string) {
	if e.Var == nil {
		e.Var = make(Var)
	}
	e.Var[k] = v
}

// Merge composes the final environment list: OS base, then accumulated
// overrides, then extra "K=V" entries. Malformed entries with an empty key
// are skipped.
func (e *Env) Merge(extra []string) []string {
	if e.base == nil {
		e.FromOS()
	}
	m := make(Var, len(e.base)+len(e.Var)+len(extra))
	for k, v := range e.base {
		m[k] = v
	}
	for k, v := range e.Var {
		if k == "" {
			continue
		}
		m[k] = v
	}
	for _, kv := range extra {
		if i := strings.IndexByte(kv, '='); i > 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	return out
}

// ForServer composes the environment a newly launched compile server
// inherits, applying the runtime-hosting augmentation when the marker is
// present.
func ForServer() []string {
	e := New()
	if root := os.Getenv(ToolRootVar); root != "" {
		e.Set(RuntimeRootVar, filepath.Join(root, "runtime"))
		e.Set(RuntimeVersionVar, RuntimeVersion)
	}
	return e.Merge(nil)
}
