package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Source is a single configuration layer. Load returns a nil map when the
// layer is optional and absent; that is never an error.
type Source interface {
	Name() string
	Load() (map[string]any, error)
}

type fileSource struct {
	name string
	path string
}

// File returns a layer backed by a JSON, YAML or TOML document, the format
// is inferred from the file extension.
func File(path string) Source {
	return fileSource{name: "file:" + filepath.Base(path), path: path}
}

func (s fileSource) Name() string { return s.name }

func (s fileSource) Load() (map[string]any, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &SourceError{Source: s.name, Cause: err}
	}
	if info.IsDir() {
		return nil, &SourceError{Source: s.name, Cause: fmt.Errorf("%s is a directory", s.path)}
	}
	if info.Size() == 0 {
		return map[string]any{}, nil
	}

	v := viper.New()
	v.SetConfigFile(s.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, &SourceError{Source: s.name, Cause: err}
	}
	return normalizeMap(v.AllSettings()), nil
}

type keyPerFileSource struct {
	dir string
}

// KeyPerFile returns a layer where every regular file in dir is one key: the
// file name is the key ("__" separates segments) and the content is the value.
func KeyPerFile(dir string) Source {
	return keyPerFileSource{dir: dir}
}

func (s keyPerFileSource) Name() string { return "keyperfile:" + s.dir }

func (s keyPerFileSource) Load() (map[string]any, error) {
	if s.dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &SourceError{Source: s.Name(), Cause: err}
	}

	out := make(map[string]any)
	for _, e := range entries {
		// hidden entries include the ..data links mounted by kubernetes
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, &SourceError{Source: s.Name(), Cause: err}
		}
		setNestedValue(out, NormalizeKey(e.Name()), strings.TrimRight(string(b), "\r\n"))
	}
	return out, nil
}

type userSecretsSource struct {
	app  string
	path string
}

// UserSecrets returns the development secret store of an application, a JSON
// document kept outside the project tree in the user's config directory.
func UserSecrets(userConfigDir, applicationName string) Source {
	return userSecretsSource{
		app:  applicationName,
		path: filepath.Join(userConfigDir, applicationName, "secrets.json"),
	}
}

func (s userSecretsSource) Name() string { return "usersecrets:" + s.app }

func (s userSecretsSource) Load() (map[string]any, error) {
	return fileSource{name: s.Name(), path: s.path}.Load()
}

type envSource struct {
	environ []string
	prefix  string
}

// Environment returns a layer holding every variable of environ except the
// ones carrying the host bootstrap prefix.
func Environment(environ []string, hostPrefix string) Source {
	return envSource{environ: environ, prefix: hostPrefix}
}

func (s envSource) Name() string { return "env" }

func (s envSource) Load() (map[string]any, error) {
	out := make(map[string]any)
	for _, kv := range s.environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		if s.prefix != "" && strings.HasPrefix(strings.ToUpper(k), s.prefix) {
			continue
		}
		setNestedValue(out, NormalizeKey(k), v)
	}
	return out, nil
}

type commandLineSource struct {
	values map[string]string
	args   []string
}

// CommandLine returns the highest precedence layer. values holds keys set
// through named flags, args holds free form "key=value" overrides, optionally
// prefixed with "--" or "/".
func CommandLine(values map[string]string, args []string) Source {
	return commandLineSource{values: values, args: args}
}

func (s commandLineSource) Name() string { return "commandline" }

func (s commandLineSource) Load() (map[string]any, error) {
	out := make(map[string]any)
	for k, v := range s.values {
		setNestedValue(out, NormalizeKey(k), v)
	}
	for _, arg := range s.args {
		k, v, err := ParseOverride(arg)
		if err != nil {
			return nil, &SourceError{Source: s.Name(), Cause: err}
		}
		setNestedValue(out, k, v)
	}
	return out, nil
}

// ParseOverride splits a "key=value" command line override and normalizes its key.
func ParseOverride(arg string) (string, string, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(arg, "--"), "/")
	k, v, ok := strings.Cut(trimmed, "=")
	if !ok {
		return "", "", fmt.Errorf("override %q is not in key=value form", arg)
	}
	key := NormalizeKey(k)
	if key == "" {
		return "", "", fmt.Errorf("override %q has an empty key", arg)
	}
	return key, v, nil
}
