package remotefs

import (
	"os"
	"sort"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"

	"github.com/anyfs/anyfs/fserrors"
	"github.com/anyfs/anyfs/vfs"
)

// Descriptor holds everything needed to re-establish a remote
// filesystem: scheme, endpoint, namespace root, and credentials. It
// round-trips through JSON and YAML so connections can be stored and
// redialed later.
type Descriptor struct {
	Scheme   string            `json:"scheme" yaml:"scheme"`
	Host     string            `json:"host" yaml:"host"`
	Port     int               `json:"port,omitempty" yaml:"port,omitempty"`
	Root     string            `json:"root,omitempty" yaml:"root,omitempty"`
	Username string            `json:"username,omitempty" yaml:"username,omitempty"`
	Password string            `json:"password,omitempty" yaml:"password,omitempty"`
	TLS      bool              `json:"tls,omitempty" yaml:"tls,omitempty"`
	Params   map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
}

// MarshalJSON renders the descriptor as JSON.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	type plain Descriptor
	return sonic.Marshal(plain(d))
}

// ParseDescriptor decodes a JSON descriptor.
func ParseDescriptor(data []byte) (Descriptor, error) {
	var d Descriptor
	if err := sonic.Unmarshal(data, &d); err != nil {
		return Descriptor{}, fserrors.Remote("parse", err)
	}
	return d, nil
}

// LoadDescriptor reads a YAML descriptor file.
func LoadDescriptor(path string) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, fserrors.FromOS("load", path, err)
	}
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Descriptor{}, fserrors.Remote("load", err)
	}
	return d, nil
}

// SaveDescriptor writes a descriptor as YAML.
func SaveDescriptor(path string, d Descriptor) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return fserrors.Remote("save", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fserrors.FromOS("save", path, err)
	}
	return nil
}

// Dialer opens a filesystem from a descriptor. Dialing is fallible and
// may block on network establishment.
type Dialer func(Descriptor) (vfs.FS, error)

var (
	dialersMu sync.RWMutex
	dialers   = make(map[string]Dialer)
)

// Register installs a dialer for a scheme, replacing any previous one.
// Backends register themselves from init.
func Register(scheme string, dial Dialer) {
	dialersMu.Lock()
	defer dialersMu.Unlock()
	dialers[scheme] = dial
}

// Schemes lists registered schemes, sorted.
func Schemes() []string {
	dialersMu.RLock()
	defer dialersMu.RUnlock()
	out := make([]string, 0, len(dialers))
	for s := range dialers {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Dial opens the filesystem a descriptor points at.
func Dial(d Descriptor) (vfs.FS, error) {
	dialersMu.RLock()
	dial, ok := dialers[d.Scheme]
	dialersMu.RUnlock()
	if !ok {
		return nil, &fserrors.Error{
			Kind: fserrors.KindUnsupported,
			Op:   "dial",
			Msg:  "no dialer registered for scheme " + d.Scheme,
		}
	}
	return dial(d)
}
