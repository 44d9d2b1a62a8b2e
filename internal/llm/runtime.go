package llm

import "fmt"

// LlamaBuilt reports whether the in-process llama runtime is compiled in.
func LlamaBuilt() bool { return llamaBuilt }

// RuntimeConfig selects and configures a runtime by name.
type RuntimeConfig struct {
	// Kind is "llama" (in-process) or "server" (llama-server).
	Kind    string
	Threads int
	Server  ServerConfig
}

// NewRuntime builds the runtime named by cfg.Kind. An empty kind picks the
// in-process runtime when it is compiled in and llama-server otherwise.
func NewRuntime(cfg RuntimeConfig) (Runtime, error) {
	kind := cfg.Kind
	if kind == "" {
		kind = "server"
		if llamaBuilt {
			kind = "llama"
		}
	}
	switch kind {
	case "llama":
		return NewLlamaRuntime(cfg.Threads), nil
	case "server":
		sc := cfg.Server
		if sc.Threads == 0 {
			sc.Threads = cfg.Threads
		}
		return NewServerRuntime(sc), nil
	default:
		return nil, fmt.Errorf("unknown runtime %q (want llama or server)", kind)
	}
}
