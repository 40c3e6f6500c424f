package transcode

import "fmt"

// EngineFactory builds an Engine by name. Engines that need native
// libraries register themselves from their own packages.
type EngineFactory func() Engine

var engines = map[string]EngineFactory{
	"native": func() Engine { return NewNativeEngine() },
}

// Register makes an engine available to NewEngine. It is meant to be
// called from init functions and is not safe for concurrent use.
func Register(name string, f EngineFactory) {
	engines[name] = f
}

// NewEngine returns the engine registered under name.
func NewEngine(name string) (Engine, error) {
	f, ok := engines[name]
	if !ok {
		return nil, fmt.Errorf("unknown image engine %q", name)
	}
	return f(), nil
}
