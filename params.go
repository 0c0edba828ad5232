package deform

import (
	"bytes"
	"fmt"
	"os"

	"github.com/gekko3d/deform/rt/exec"
	"github.com/gekko3d/deform/rt/frame"
	"gopkg.in/yaml.v3"
)

// MaxProgramSlots is the longest program chain an instance accepts.
const MaxProgramSlots = 4

const (
	DefaultFPS         = 24
	DefaultTimeSamples = 1
)

// ParamSource is the host's typed argument import. Each call reports
// whether the argument was supplied.
type ParamSource interface {
	ImportString(name string) (string, bool)
	ImportInts(name string) ([]int, bool)
	ImportFloats(name string) ([]float32, bool)
}

// MapSource serves arguments from a map, as decoded from a YAML document.
type MapSource map[string]any

func (m MapSource) ImportString(name string) (string, bool) {
	v, ok := m[name]
	if !ok {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case fmt.Stringer:
		return s.String(), true
	}
	return fmt.Sprint(v), true
}

func (m MapSource) ImportInts(name string) ([]int, bool) {
	v, ok := m[name]
	if !ok {
		return nil, false
	}
	var out []int
	for _, x := range listOf(v) {
		switch n := x.(type) {
		case int:
			out = append(out, n)
		case int64:
			out = append(out, int(n))
		case float64:
			out = append(out, int(n))
		case float32:
			out = append(out, int(n))
		case bool:
			if n {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		default:
			return nil, false
		}
	}
	return out, len(out) > 0
}

func (m MapSource) ImportFloats(name string) ([]float32, bool) {
	v, ok := m[name]
	if !ok {
		return nil, false
	}
	var out []float32
	for _, x := range listOf(v) {
		switch n := x.(type) {
		case float64:
			out = append(out, float32(n))
		case float32:
			out = append(out, n)
		case int:
			out = append(out, float32(n))
		case int64:
			out = append(out, float32(n))
		default:
			return nil, false
		}
	}
	return out, len(out) > 0
}

func listOf(v any) []any {
	switch l := v.(type) {
	case []any:
		return l
	case []int:
		out := make([]any, len(l))
		for i, x := range l {
			out[i] = x
		}
		return out
	case []float64:
		out := make([]any, len(l))
		for i, x := range l {
			out[i] = x
		}
		return out
	case []float32:
		out := make([]any, len(l))
		for i, x := range l {
			out[i] = x
		}
		return out
	}
	return []any{v}
}

// LoadParamFile reads a YAML mapping of argument names to values.
func LoadParamFile(path string) (MapSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	src := MapSource{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&src); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return src, nil
}

// ProgramSlot is one program in an instance's chain.
type ProgramSlot struct {
	Path   string
	Domain exec.Domain
}

// Params is the full argument set of the procedural.
type Params struct {
	File           string
	LoadPointCloud bool
	Instances      int
	ComputeNormals bool
	VelocityBlur   bool
	TimeSamples    int
	MultiThreaded  bool
	Slots          []ProgramSlot

	// PreFrame runs a frame pass before the first program; PostFrame[i]
	// runs one after program i.
	PreFrame  bool
	PostFrame [MaxProgramSlots]bool
	Frame     frame.Params

	FPS          float32
	ShutterOpen  float32
	ShutterClose float32

	// ParallelInstances > 0 builds that many instances concurrently.
	ParallelInstances int
}

func DefaultParams() Params {
	return Params{
		TimeSamples: DefaultTimeSamples,
		Frame:       frame.DefaultParams(),
		FPS:         DefaultFPS,
	}
}

// ParseParams imports every argument the procedural understands, using
// defaults for absent ones. Requesting more than MaxProgramSlots programs
// is an ErrConfiguration.
func ParseParams(src ParamSource) (Params, error) {
	p := DefaultParams()

	p.File = importString(src, "file", "")
	p.LoadPointCloud = importInt(src, "loadPointCloud", 0) != 0
	p.Instances = importInt(src, "instance", 0)
	p.ComputeNormals = importInt(src, "computeN", 0) != 0
	p.VelocityBlur = importInt(src, "velBlur", 0) != 0
	p.TimeSamples = importInt(src, "geoTimeSample", DefaultTimeSamples)
	p.MultiThreaded = importInt(src, "isMultiThreads", 0) != 0
	p.ParallelInstances = importInt(src, "parallelInstances", 0)

	if fps, ok := src.ImportFloats("global:fps"); ok {
		p.FPS = fps[0]
	}
	if shutter, ok := src.ImportFloats("camera:shutter"); ok {
		p.ShutterOpen = shutter[0]
		if len(shutter) > 1 {
			p.ShutterClose = shutter[1]
		}
	}

	count := importInt(src, "cvexnum", 0)
	if count > MaxProgramSlots {
		return p, fmt.Errorf("%w: %d programs requested, at most %d supported", ErrConfiguration, count, MaxProgramSlots)
	}
	for i := 1; i <= count; i++ {
		path, okPath := src.ImportString(fmt.Sprintf("CVEX%d", i))
		domain, okDomain := src.ImportInts(fmt.Sprintf("CVEX_type%d", i))
		if !okPath || !okDomain {
			continue
		}
		p.Slots = append(p.Slots, ProgramSlot{Path: path, Domain: exec.Domain(domain[0])})
	}

	p.PreFrame = importInt(src, "prePolyframe", 0) != 0
	framed := p.PreFrame
	for i := range p.PostFrame {
		p.PostFrame[i] = importInt(src, fmt.Sprintf("postPolyframe%d", i+1), 0) != 0
		framed = framed || p.PostFrame[i]
	}
	if framed {
		p.Frame.Style = frame.Style(importInt(src, "style", 0))
		p.Frame.Which = importInt(src, "which", frame.WriteNormal)
		p.Frame.Names[frame.NormalSlot] = importString(src, "normName", p.Frame.Names[frame.NormalSlot])
		p.Frame.Names[frame.TangentSlot] = importString(src, "tanName", p.Frame.Names[frame.TangentSlot])
		p.Frame.Names[frame.BitangentSlot] = importString(src, "bitanName", p.Frame.Names[frame.BitangentSlot])
		p.Frame.Orthogonal = importInt(src, "orthogonal", 0) != 0
		p.Frame.LeftHanded = importInt(src, "leftHanded", 0) != 0
		p.Frame.UVName = importString(src, "uvName", "")
	}
	return p, nil
}

func importString(src ParamSource, name, def string) string {
	if v, ok := src.ImportString(name); ok {
		return v
	}
	return def
}

func importInt(src ParamSource, name string, def int) int {
	if v, ok := src.ImportInts(name); ok {
		return v[0]
	}
	return def
}

// Settings returns the per-instance configuration. Each call returns an
// independent copy.
func (p Params) Settings() Settings {
	return Settings{
		Slots:          append([]ProgramSlot(nil), p.Slots...),
		MultiThreaded:  p.MultiThreaded,
		VelocityBlur:   p.VelocityBlur,
		TimeSamples:    p.TimeSamples,
		ComputeNormals: p.ComputeNormals,
		PreFrame:       p.PreFrame,
		PostFrame:      p.PostFrame,
		Frame:          p.Frame.Clone(),
		FPS:            p.FPS,
		ShutterOpen:    p.ShutterOpen,
		ShutterClose:   p.ShutterClose,
	}
}
