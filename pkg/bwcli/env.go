package bwcli

import (
	"os"
	"sort"
	"strings"
)

// Environment variables understood by the bw CLI.
const (
	EnvSession       = "BW_SESSION"
	EnvServer        = "BW_SERVER"
	EnvAppDataDir    = "BITWARDENCLI_APPDATA_DIR"
	EnvNoInteraction = "BW_NOINTERACTION"
)

// strippedPrefixes lists inherited variables that would leak the user's own
// bw state into our invocations.
var strippedPrefixes = []string{"BW_", "BITWARDENCLI_"}

// Env is the execution context for a single bw invocation. It is built
// fresh from the current session for every call.
type Env struct {
	Session   string
	Server    string
	ConfigDir string

	// Extra holds per-call variables, e.g. the password for --passwordenv.
	Extra map[string]string
}

// Environ returns base with every inherited bw variable removed and the
// values of e applied. base itself is not modified.
func (e Env) Environ(base []string) []string {
	env := make([]string, 0, len(base)+4+len(e.Extra))
	for _, kv := range base {
		if isStripped(kv) {
			continue
		}
		env = append(env, kv)
	}

	if e.Session != "" {
		env = append(env, EnvSession+"="+e.Session)
	}
	if e.Server != "" {
		env = append(env, EnvServer+"="+e.Server)
	}
	if e.ConfigDir != "" {
		env = append(env, EnvAppDataDir+"="+e.ConfigDir)
	}
	env = append(env, EnvNoInteraction+"=true")

	// Sorted so that invocations are reproducible in logs and tests.
	keys := make([]string, 0, len(e.Extra))
	for k := range e.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+e.Extra[k])
	}

	return env
}

// With returns a copy of e with an additional variable set.
func (e Env) With(key, value string) Env {
	extra := make(map[string]string, len(e.Extra)+1)
	for k, v := range e.Extra {
		extra[k] = v
	}
	extra[key] = value
	e.Extra = extra
	return e
}

func isStripped(kv string) bool {
	name := kv
	if i := strings.IndexByte(kv, '='); i >= 0 {
		name = kv[:i]
	}
	for _, p := range strippedPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// hostEnviron is the default base environment.
func hostEnviron() []string {
	return os.Environ()
}
