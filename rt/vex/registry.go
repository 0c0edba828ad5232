package vex

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrEmptyProgram   = errors.New("empty program path")
	ErrUnknownProgram = errors.New("unknown program")
)

// Param is a parameter a kernel declares. Exported parameters are the
// kernel's outputs; the engine creates missing output attributes for them.
type Param struct {
	Name   string
	Kind   Kind
	Export bool
}

// Kernel is a loaded program instance. Run processes n elements; every
// declared parameter is reachable through b, bound or not.
type Kernel struct {
	Name   string
	Params []Param
	Run    func(n int, b *Bindings, rd *RunData) error
}

// Loader resolves an argv (program name followed by key=value arguments)
// to a fresh kernel instance. Loaded kernels are never shared between
// goroutines, so loaders must return a new instance per call.
type Loader interface {
	Load(argv []string) (*Kernel, error)
}

// Constructor builds a kernel from parsed arguments.
type Constructor func(args Args) (*Kernel, error)

// Registry maps program names to constructors.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// Register adds or replaces the constructor for name.
func (r *Registry) Register(name string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[name] = ctor
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ctors))
	for n := range r.ctors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Load(argv []string) (*Kernel, error) {
	if len(argv) == 0 {
		return nil, ErrEmptyProgram
	}
	r.mu.RLock()
	ctor, ok := r.ctors[argv[0]]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProgram, argv[0])
	}
	args, err := parseArgv(argv[1:])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", argv[0], err)
	}
	k, err := ctor(args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", argv[0], err)
	}
	if k.Name == "" {
		k.Name = argv[0]
	}
	return k, nil
}

// ParseArgs splits a program path into argv the way a host passes a
// shader string: whitespace separated, program name first.
func ParseArgs(path string) []string {
	return strings.Fields(path)
}

// Args are the key=value arguments following the program name.
type Args map[string]string

func parseArgv(argv []string) (Args, error) {
	args := make(Args, len(argv))
	for _, a := range argv {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("malformed argument %q", a)
		}
		args[k] = v
	}
	return args, nil
}

func (a Args) Str(key, def string) string {
	if v, ok := a[key]; ok {
		return v
	}
	return def
}

func (a Args) Float(key string, def float32) (float32, error) {
	v, ok := a[key]
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return def, fmt.Errorf("argument %s: %w", key, err)
	}
	return float32(f), nil
}

func (a Args) Int(key string, def int) (int, error) {
	v, ok := a[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("argument %s: %w", key, err)
	}
	return n, nil
}

// Vec3 parses "x,y,z". A single number is broadcast to all axes.
func (a Args) Vec3(key string, def mgl32.Vec3) (mgl32.Vec3, error) {
	v, ok := a[key]
	if !ok {
		return def, nil
	}
	parts := strings.Split(v, ",")
	if len(parts) != 1 && len(parts) != 3 {
		return def, fmt.Errorf("argument %s: expected 1 or 3 components, got %d", key, len(parts))
	}
	var out mgl32.Vec3
	for i := range out {
		s := parts[0]
		if len(parts) == 3 {
			s = parts[i]
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
		if err != nil {
			return def, fmt.Errorf("argument %s: %w", key, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}
