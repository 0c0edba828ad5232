package geo

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quad(t *testing.T) *Detail {
	t.Helper()
	d := NewDetail()
	d.AddPoint(mgl32.Vec3{0, 0, 0})
	d.AddPoint(mgl32.Vec3{1, 0, 0})
	d.AddPoint(mgl32.Vec3{1, 1, 0})
	d.AddPoint(mgl32.Vec3{0, 1, 0})
	_, err := d.AddPolygon(0, 1, 2, 3)
	require.NoError(t, err)
	return d
}

func TestDetail_Counts(t *testing.T) {
	d := quad(t)

	assert.Equal(t, 4, d.NumPoints())
	assert.Equal(t, 1, d.NumPrimitives())
	assert.Equal(t, 4, d.NumVertices())
	assert.Equal(t, 1, d.NumElements(OwnerDetail))
	assert.Equal(t, []int{0, 1, 2, 3}, d.PrimitivePoints(0))
}

func TestDetail_AddPolygonRejectsBadPoint(t *testing.T) {
	d := quad(t)
	_, err := d.AddPolygon(0, 9)
	assert.Error(t, err)
	assert.Equal(t, 1, d.NumPrimitives())
}

func TestDetail_AddAttributeExistingLayout(t *testing.T) {
	d := quad(t)
	a, err := d.AddFloatTuple(OwnerPoint, "Cd", 3)
	require.NoError(t, err)

	again, err := d.AddFloatTuple(OwnerPoint, "Cd", 3)
	require.NoError(t, err)
	assert.Same(t, a, again)

	_, err = d.AddFloatTuple(OwnerPoint, "Cd", 4)
	assert.ErrorIs(t, err, ErrAttributeExists)
}

func TestAttribute_PrecisionRounding(t *testing.T) {
	d := quad(t)
	half, err := d.AddAttribute(OwnerPoint, "h", StorageFloat, 1, Precision16)
	require.NoError(t, err)
	full, err := d.AddAttribute(OwnerPoint, "f", StorageFloat, 1, Precision64)
	require.NoError(t, err)
	i32, err := d.AddIntTuple(OwnerPoint, "id", 1)
	require.NoError(t, err)

	half.SetFloat(0, 0, 0.1)
	full.SetFloat(0, 0, 0.1)
	i32.SetInt(0, 0, math.MaxInt32+1)

	// 0.1 is not representable in half precision; nearest is 0.0999755859375.
	assert.InDelta(t, 0.0999755859375, half.Float(0, 0), 1e-12)
	assert.Equal(t, 0.1, full.Float(0, 0))
	assert.Equal(t, int64(math.MinInt32), i32.Int(0, 0))
}

func TestDetail_CloneIsDeep(t *testing.T) {
	d := quad(t)
	c := d.Clone()
	c.Translate(mgl32.Vec3{5, 0, 0})

	assert.Equal(t, mgl32.Vec3{0, 0, 0}, d.Position().Vec3(0))
	assert.Equal(t, mgl32.Vec3{5, 0, 0}, c.Position().Vec3(0))
}

func TestBox_EnlargeIsMonotonic(t *testing.T) {
	box := EmptyBox()
	assert.True(t, box.IsEmpty())

	pts := []mgl32.Vec3{{1, 2, 3}, {-1, 0, 5}, {0, 0, 0}, {0.5, 0.5, 0.5}, {10, -10, 0}}
	prev := box
	for i, p := range pts {
		box.EnlargePoint(p)
		assert.True(t, box.Contains(p), "point %d should be inside", i)
		if !prev.IsEmpty() {
			for axis := 0; axis < 3; axis++ {
				if box.Min[axis] > prev.Min[axis] || box.Max[axis] < prev.Max[axis] {
					t.Errorf("Expected box to grow or stay, got %v -> %v", prev, box)
				}
			}
		}
		prev = box
	}
	assert.Equal(t, mgl32.Vec3{-1, -10, 0}, box.Min)
	assert.Equal(t, mgl32.Vec3{10, 2, 5}, box.Max)
}

func TestBox_EnlargeBoxIgnoresEmpty(t *testing.T) {
	box := Box{Min: mgl32.Vec3{0, 0, 0}, Max: mgl32.Vec3{1, 1, 1}}
	box.EnlargeBox(EmptyBox())
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, box.Size())
}

func TestDetail_ComputeNormals(t *testing.T) {
	d := quad(t)
	require.NoError(t, d.ComputeNormals())

	n := d.FindAttribute(OwnerPoint, NormalAttrib)
	require.NotNil(t, n)
	for i := 0; i < d.NumPoints(); i++ {
		assert.InDelta(t, 1.0, n.Float(i, 2), 1e-6)
	}
}

func TestDetail_YAMLAndBinaryRoundTrip(t *testing.T) {
	d := quad(t)
	cd, err := d.AddFloatTuple(OwnerPoint, "Cd", 3)
	require.NoError(t, err)
	cd.SetVec3(2, mgl32.Vec3{0.25, 0.5, 1})
	name, err := d.AddStringAttribute(OwnerPrimitive, "name")
	require.NoError(t, err)
	name.SetStr(0, "piece0")
	id, err := d.AddIntTuple(OwnerVertex, "vid", 1)
	require.NoError(t, err)
	id.SetInt(3, 0, 7)

	dir := t.TempDir()
	for _, file := range []string{"quad.yaml", "quad.gdet"} {
		path := filepath.Join(dir, file)
		require.NoError(t, Save(path, d))

		got, err := Load(path)
		require.NoError(t, err, file)
		assert.Equal(t, d.NumPoints(), got.NumPoints(), file)
		assert.Equal(t, d.PrimitivePoints(0), got.PrimitivePoints(0), file)
		assert.Equal(t, mgl32.Vec3{1, 1, 0}, got.Position().Vec3(2), file)
		assert.Equal(t, mgl32.Vec3{0.25, 0.5, 1}, got.FindAttribute(OwnerPoint, "Cd").Vec3(2), file)
		assert.Equal(t, "piece0", got.FindAttribute(OwnerPrimitive, "name").Str(0), file)
		assert.Equal(t, int64(7), got.FindAttribute(OwnerVertex, "vid").Int(3, 0), file)
	}
}

func TestLoad_Failures(t *testing.T) {
	_, err := Load("geometry.obj")
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = ReadBinary(bytes.NewReader([]byte("VOX 1234")))
	assert.Error(t, err)
}

func gdetHeader() *bytes.Buffer {
	var buf bytes.Buffer
	buf.WriteString(GDETMagicNumber)
	putU32(&buf, GDETVersion)
	return &buf
}

func TestReadBinary_RejectsForgedCounts(t *testing.T) {
	t.Run("points without data", func(t *testing.T) {
		buf := gdetHeader()
		var pnts bytes.Buffer
		putU32(&pnts, 0xFFFFFFFF)
		require.NoError(t, writeChunk(buf, "PNTS", pnts.Bytes()))

		_, err := ReadBinary(buf)
		assert.Error(t, err)
	})

	t.Run("attribute shorter than point count", func(t *testing.T) {
		buf := gdetHeader()
		var pnts bytes.Buffer
		putU32(&pnts, 1<<30)
		require.NoError(t, writeChunk(buf, "PNTS", pnts.Bytes()))
		var attr bytes.Buffer
		attr.Write([]byte{byte(OwnerPoint), byte(StorageFloat), 3, byte(Precision32)})
		putStr(&attr, PositionAttrib)
		putU64(&attr, 0)
		require.NoError(t, writeChunk(buf, "ATTR", attr.Bytes()))

		_, err := ReadBinary(buf)
		assert.Error(t, err)
	})

	t.Run("primitive count", func(t *testing.T) {
		buf := gdetHeader()
		var prim bytes.Buffer
		putU32(&prim, 0x7FFFFFFF)
		require.NoError(t, writeChunk(buf, "PRIM", prim.Bytes()))

		_, err := ReadBinary(buf)
		assert.Error(t, err)
	})

	t.Run("chunk size past end of file", func(t *testing.T) {
		buf := gdetHeader()
		buf.WriteString("PNTS")
		putU32(buf, 0x7FFFFFFF)
		putU32(buf, 0)
		putU32(buf, 4)

		_, err := ReadBinary(buf)
		assert.Error(t, err)
	})
}

func TestBox_IgnoresNaN(t *testing.T) {
	nan := float32(math.NaN())
	b := EmptyBox()
	b.EnlargePoint(mgl32.Vec3{1, 2, 3})
	b.EnlargePoint(mgl32.Vec3{nan, 0, 0})
	b.EnlargePoint(mgl32.Vec3{-1, 0, nan})

	assert.Equal(t, mgl32.Vec3{1, 2, 3}, b.Min)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, b.Max)
}
