package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/storacha/silo/pkg/config/app"
)

// HostEnvPrefix marks environment variables that configure the host itself
// (environment name, application name, content root, secrets directory).
const HostEnvPrefix = "SILO_"

const (
	DefaultEnvironment = "Production"
	DefaultSecretsDir  = "/run/secrets"
	baseFileName       = "appsettings"
	baseFileExt        = ".json"
)

// HostSettings are resolved before any application layer because they decide
// which layers exist.
type HostSettings struct {
	Environment     string
	ApplicationName string
	ContentRoot     string
	SecretsDir      string
}

// IsDevelopment reports whether the host runs in the Development environment.
func (h HostSettings) IsDevelopment() bool {
	return strings.EqualFold(h.Environment, app.EnvironmentDevelopment)
}

// Layer describes one configuration source as applied by the resolver.
type Layer struct {
	Name    string
	Applied bool
	Keys    int
}

// Resolved is the outcome of merging every layer. It is never mutated after Resolve returns.
type Resolved struct {
	Host   HostSettings
	Layers []Layer

	settings map[string]any
	v        *viper.Viper
}

// Viper returns the merged configuration with defaults applied.
func (r *Resolved) Viper() *viper.Viper {
	return r.v
}

// Settings returns the merged layers as flat normalized keys, without defaults.
func (r *Resolved) Settings() map[string]any {
	out := make(map[string]any)
	flatten("", r.settings, out)
	return out
}

// Resolver merges configuration layers in fixed precedence order: base file,
// environment file, key-per-file secrets, development user secrets,
// environment variables and finally the command line.
type Resolver struct {
	environ       []string
	host          HostSettings
	hostOverrides HostSettings
	userConfigDir string
	commandLine   Source
}

type ResolverOption func(*Resolver)

// WithEnviron replaces os.Environ() as the environment variable source.
func WithEnviron(environ []string) ResolverOption {
	return func(r *Resolver) {
		r.environ = environ
	}
}

// WithHostOverrides sets host settings from the command line, non empty fields
// win over SILO_ prefixed environment variables.
func WithHostOverrides(h HostSettings) ResolverOption {
	return func(r *Resolver) {
		r.hostOverrides = h
	}
}

// WithUserConfigDir sets the directory holding development user secrets.
func WithUserConfigDir(dir string) ResolverOption {
	return func(r *Resolver) {
		r.userConfigDir = dir
	}
}

// WithCommandLine sets the highest precedence layer.
func WithCommandLine(src Source) ResolverOption {
	return func(r *Resolver) {
		r.commandLine = src
	}
}

func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{}
	for _, opt := range opts {
		opt(r)
	}
	if r.environ == nil {
		r.environ = os.Environ()
	}
	if r.userConfigDir == "" {
		// no user config dir simply means no user secrets
		r.userConfigDir, _ = os.UserConfigDir()
	}
	r.host = r.resolveHost()
	return r
}

// Host returns the host settings the layers are selected with.
func (r *Resolver) Host() HostSettings {
	return r.host
}

func (r *Resolver) resolveHost() HostSettings {
	h := HostSettings{
		Environment: DefaultEnvironment,
		SecretsDir:  DefaultSecretsDir,
	}
	if wd, err := os.Getwd(); err == nil {
		h.ContentRoot = wd
	}

	for _, kv := range r.environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(strings.ToUpper(k), HostEnvPrefix) || v == "" {
			continue
		}
		switch NormalizeKey(k[len(HostEnvPrefix):]) {
		case "environment":
			h.Environment = v
		case "applicationname":
			h.ApplicationName = v
		case "contentroot":
			h.ContentRoot = v
		case "secretsdir":
			h.SecretsDir = v
		}
	}

	o := r.hostOverrides
	if o.Environment != "" {
		h.Environment = o.Environment
	}
	if o.ApplicationName != "" {
		h.ApplicationName = o.ApplicationName
	}
	if o.ContentRoot != "" {
		h.ContentRoot = o.ContentRoot
	}
	if o.SecretsDir != "" {
		h.SecretsDir = o.SecretsDir
	}
	return h
}

// Sources returns the layers in the order they are applied.
func (r *Resolver) Sources() []Source {
	h := r.host
	sources := []Source{
		File(filepath.Join(h.ContentRoot, baseFileName+baseFileExt)),
		File(filepath.Join(h.ContentRoot, baseFileName+"."+h.Environment+baseFileExt)),
		KeyPerFile(h.SecretsDir),
	}
	if h.IsDevelopment() && h.ApplicationName != "" && r.userConfigDir != "" {
		sources = append(sources, UserSecrets(r.userConfigDir, h.ApplicationName))
	}
	sources = append(sources, Environment(r.environ, HostEnvPrefix))
	if r.commandLine != nil {
		sources = append(sources, r.commandLine)
	}
	return sources
}

// Resolve loads every layer and merges them, later layers override earlier
// ones key by key. The first malformed layer aborts resolution.
func (r *Resolver) Resolve() (*Resolved, error) {
	merged := make(map[string]any)
	var layers []Layer

	for _, src := range r.Sources() {
		m, err := src.Load()
		if err != nil {
			return nil, err
		}
		if m == nil {
			log.Debugw("configuration layer absent", "layer", src.Name())
			layers = append(layers, Layer{Name: src.Name()})
			continue
		}
		leaves := make(map[string]any)
		flatten("", m, leaves)
		mergeInto(merged, m)
		layers = append(layers, Layer{Name: src.Name(), Applied: true, Keys: len(leaves)})
		log.Debugw("configuration layer applied", "layer", src.Name(), "keys", len(leaves))
	}

	v := viper.New()
	SetDefaults(v)
	if err := v.MergeConfigMap(merged); err != nil {
		return nil, &SourceError{Source: "merged", Cause: err}
	}

	return &Resolved{
		Host:     r.host,
		Layers:   layers,
		settings: merged,
		v:        v,
	}, nil
}
