package vex

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	argv := ParseArgs("  translate   offset=1,2,3 attrib=rest ")
	assert.Equal(t, []string{"translate", "offset=1,2,3", "attrib=rest"}, argv)
	assert.Empty(t, ParseArgs("   "))
}

func TestRegistry_LoadErrors(t *testing.T) {
	r := Builtins()

	_, err := r.Load(nil)
	assert.ErrorIs(t, err, ErrEmptyProgram)

	_, err = r.Load([]string{"nope"})
	assert.ErrorIs(t, err, ErrUnknownProgram)

	_, err = r.Load([]string{"translate", "offset"})
	assert.Error(t, err)

	_, err = r.Load([]string{"translate", "offset=a,b,c"})
	assert.Error(t, err)
}

func TestRegistry_ReturnsFreshKernels(t *testing.T) {
	r := Builtins()
	a, err := r.Load([]string{"translate"})
	require.NoError(t, err)
	b, err := r.Load([]string{"translate"})
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, "translate", a.Name)
}

func TestValue_UniformBroadcast(t *testing.T) {
	u := UniformVec3("off", mgl32.Vec3{1, 2, 3})
	assert.Equal(t, 1, u.Len())
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, u.Vec3(0))
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, u.Vec3(41))

	i := UniformInt("instance", 7)
	assert.Equal(t, int32(7), i.Int(3))
	assert.Equal(t, float32(7), i.Float(3, 0))
	assert.Equal(t, float32(0), i.Float(0, 1), "missing components read zero")
}

func TestContext_BindsMatchingInputsOnly(t *testing.T) {
	c := NewContext(Builtins())
	p := c.AddInput("P", Vector3, true)
	c.AddInput("Cd", Scalar, true)
	c.AddUniform(UniformInt(InstanceInput, 3))

	require.NoError(t, c.Load(ParseArgs("colorize")))

	assert.Nil(t, c.FindInput("P", Vector3), "colorize does not read P")
	assert.Nil(t, c.FindInput("Cd", Scalar), "kind mismatch must not bind")
	assert.NotNil(t, c.FindInput(InstanceInput, Integer))
	require.Len(t, c.Outputs(), 1)
	assert.NotNil(t, c.FindOutput("Cd", Vector3))
	assert.Nil(t, p.Floats)
}

func TestContext_RunSeedsOutputsFromInputs(t *testing.T) {
	c := NewContext(Builtins())
	p := c.AddInput("P", Vector3, true)
	require.NoError(t, c.Load(ParseArgs("translate offset=0,1,0")))

	in := c.FindInput("P", Vector3)
	require.Same(t, p, in)
	in.Floats = []float32{0, 0, 0, 1, 1, 1}

	require.NoError(t, c.Run(2, nil))
	out := c.FindOutput("P", Vector3)
	require.NotNil(t, out)
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, out.Vec3(0))
	assert.Equal(t, mgl32.Vec3{1, 2, 1}, out.Vec3(1))
	assert.Equal(t, []float32{0, 0, 0, 1, 1, 1}, in.Floats, "inputs are not modified")
}

func TestContext_RunRejectsShortInputs(t *testing.T) {
	c := NewContext(Builtins())
	c.AddInput("P", Vector3, true).Floats = []float32{0, 0, 0}
	require.NoError(t, c.Load(ParseArgs("translate")))

	assert.Error(t, c.Run(2, nil))
}

func TestContext_RunWithoutLoad(t *testing.T) {
	c := NewContext(Builtins())
	assert.ErrorIs(t, c.Run(1, nil), ErrNotLoaded)
}

func TestBuiltins_ProcIDUsesElementOffsets(t *testing.T) {
	c := NewContext(Builtins())
	require.NoError(t, c.Load(ParseArgs("procid")))
	require.NoError(t, c.Run(3, &RunData{ProcID: []int{10, 11, 12}}))

	out := c.FindOutput("id", Integer)
	require.NotNil(t, out)
	assert.Equal(t, []int32{10, 11, 12}, out.Ints)
}

func TestBuiltins_TagQueuesCommands(t *testing.T) {
	c := NewContext(Builtins())
	require.NoError(t, c.Load(ParseArgs("tag every=2")))

	q := &CommandQueue{}
	require.NoError(t, c.Run(4, &RunData{ProcID: []int{4, 5, 6, 7}, Commands: q}))

	require.Equal(t, 2, q.Len())
	assert.Equal(t, 4, q.Commands()[0].Elem)
	assert.Equal(t, 6, q.Commands()[1].Elem)
	assert.Equal(t, int32(1), q.Commands()[1].Value.Int(0))
}

func TestBuiltins_OffsetWithoutUniformIsNoop(t *testing.T) {
	c := NewContext(Builtins())
	c.AddInput("P", Vector3, true).Floats = []float32{1, 2, 3}
	require.NoError(t, c.Load(ParseArgs("offset")))
	require.NoError(t, c.Run(1, nil))

	assert.Equal(t, mgl32.Vec3{1, 2, 3}, c.FindOutput("P", Vector3).Vec3(0))
}
