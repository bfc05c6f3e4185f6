package openapi

// Info is the info block of the generated document.
type Info struct {
	Title       string
	Version     string
	Description string
}

// Media types a document path can publish. They match the snapshot codecs
// of pkg/state.
const (
	MediaJSON = "application/json"
	MediaCBOR = "application/cbor"
)

type generatorConfig struct {
	openAPIVersion string
	info           Info
	path           string
	mediaTypes     []string
}

func newGeneratorConfig(opts []GeneratorOption) generatorConfig {
	cfg := generatorConfig{
		openAPIVersion: "3.0.3",
		info:           Info{Title: "Layered Document", Version: "1.0.0"},
		path:           "/documents/{id}",
		mediaTypes:     []string{MediaJSON},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// GeneratorOption configures Generate.
type GeneratorOption func(*generatorConfig)

// WithOpenAPIVersion overrides the "3.0.3" version string.
func WithOpenAPIVersion(version string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if version != "" {
			cfg.openAPIVersion = version
		}
	}
}

// WithInfo replaces the info block. Empty title or version keep the
// defaults.
func WithInfo(info Info) GeneratorOption {
	return func(cfg *generatorConfig) {
		if info.Title == "" {
			info.Title = cfg.info.Title
		}
		if info.Version == "" {
			info.Version = cfg.info.Version
		}
		cfg.info = info
	}
}

// WithPath sets the path serving a document snapshot.
func WithPath(path string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if path != "" {
			cfg.path = path
		}
	}
}

// WithMediaTypes lists the encodings the document path responds with.
func WithMediaTypes(types ...string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if len(types) > 0 {
			cfg.mediaTypes = append([]string(nil), types...)
		}
	}
}

func (info Info) toMap() map[string]any {
	out := map[string]any{
		"title":   info.Title,
		"version": info.Version,
	}
	if info.Description != "" {
		out["description"] = info.Description
	}
	return out
}
