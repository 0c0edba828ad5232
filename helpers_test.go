package deform

import (
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/gekko3d/deform/rt/geo"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu       sync.Mutex
	warnings []string
	errors   []string
	infos    []string
}

func (l *recordingLogger) DebugEnabled() bool                { return false }
func (l *recordingLogger) SetDebug(enabled bool)             {}
func (l *recordingLogger) Debugf(format string, args ...any) {}
func (l *recordingLogger) Infof(format string, args ...any) {
	l.mu.Lock()
	l.infos = append(l.infos, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}
func (l *recordingLogger) Warnf(format string, args ...any) {
	l.mu.Lock()
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}
func (l *recordingLogger) Errorf(format string, args ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}

func (l *recordingLogger) Warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warnings...)
}

func (l *recordingLogger) Errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errors...)
}

// memStore serves clones of registered details and counts loads. Loads
// listed in failOn (1-based, per path) fail.
type memStore struct {
	mu     sync.Mutex
	files  map[string]*geo.Detail
	loads  map[string]int
	failOn map[string]map[int]bool
}

func newMemStore() *memStore {
	return &memStore{
		files:  make(map[string]*geo.Detail),
		loads:  make(map[string]int),
		failOn: make(map[string]map[int]bool),
	}
}

func (s *memStore) Put(path string, d *geo.Detail) { s.files[path] = d }

func (s *memStore) FailLoad(path string, n int) {
	if s.failOn[path] == nil {
		s.failOn[path] = make(map[int]bool)
	}
	s.failOn[path][n] = true
}

func (s *memStore) Load(path string) (*geo.Detail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads[path]++
	if s.failOn[path][s.loads[path]] {
		return nil, fmt.Errorf("%s: %w", path, os.ErrNotExist)
	}
	d, ok := s.files[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, os.ErrNotExist)
	}
	return d.Clone(), nil
}

func (s *memStore) Loads(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads[path]
}

// quad is a unit square in the XY plane with a velocity attribute.
func quad(t *testing.T, vel mgl32.Vec3) *geo.Detail {
	t.Helper()
	d := geo.NewDetail()
	d.AddPoint(mgl32.Vec3{0, 0, 0})
	d.AddPoint(mgl32.Vec3{1, 0, 0})
	d.AddPoint(mgl32.Vec3{1, 1, 0})
	d.AddPoint(mgl32.Vec3{0, 1, 0})
	_, err := d.AddPolygon(0, 1, 2, 3)
	require.NoError(t, err)
	v, err := d.AddFloatTuple(geo.OwnerPoint, VelocityAttrib, 3)
	require.NoError(t, err)
	for i := 0; i < d.NumPoints(); i++ {
		v.SetVec3(i, vel)
	}
	return d
}

func singlePoint(t *testing.T, vel mgl32.Vec3) *geo.Detail {
	t.Helper()
	d := geo.NewDetail()
	d.AddPoint(mgl32.Vec3{})
	v, err := d.AddFloatTuple(geo.OwnerPoint, VelocityAttrib, 3)
	require.NoError(t, err)
	v.SetVec3(0, vel)
	return d
}
