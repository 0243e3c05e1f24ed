package tts

import "fmt"

// TargetKind tags the EngineTarget variant.
type TargetKind int

const (
	// TargetNone is the zero value; it never reaches an engine.
	TargetNone TargetKind = iota
	// TargetLocal runs the mimic3 executable once per request.
	TargetLocal
	// TargetRemote talks to a mimic3-server HTTP endpoint.
	TargetRemote
)

func (k TargetKind) String() string {
	switch k {
	case TargetLocal:
		return "local"
	case TargetRemote:
		return "remote"
	case TargetNone:
		return "none"
	default:
		return fmt.Sprintf("TargetKind(%d)", int(k))
	}
}

// EngineTarget says where the engine is reached. Only the fields of the
// active Kind are meaningful: BinaryPath for Local, BaseURL and AuthToken for
// Remote. EngineTarget is comparable and is used as a cache key.
type EngineTarget struct {
	Kind       TargetKind
	BinaryPath string
	BaseURL    string
	AuthToken  string
}

// LocalTarget returns a Local variant for the given executable.
func LocalTarget(binaryPath string) EngineTarget {
	return EngineTarget{Kind: TargetLocal, BinaryPath: binaryPath}
}

// RemoteTarget returns a Remote variant for the given base URL.
func RemoteTarget(baseURL, authToken string) EngineTarget {
	return EngineTarget{Kind: TargetRemote, BaseURL: baseURL, AuthToken: authToken}
}

// IsZero reports whether no target has been resolved.
func (t EngineTarget) IsZero() bool { return t.Kind == TargetNone }

// String never includes the auth token.
func (t EngineTarget) String() string {
	switch t.Kind {
	case TargetLocal:
		return "local:" + t.BinaryPath
	case TargetRemote:
		return "remote:" + t.BaseURL
	default:
		return t.Kind.String()
	}
}
