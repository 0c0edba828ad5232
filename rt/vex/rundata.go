package vex

// RunData carries per-run context into a kernel.
type RunData struct {
	// ProcID maps a local element index to its element offset in the
	// geometry. Nil means local and global indices coincide.
	ProcID   []int
	Commands *CommandQueue
}

// Elem returns the geometry offset of local element i.
func (rd *RunData) Elem(i int) int {
	if rd == nil || rd.ProcID == nil {
		return i
	}
	return rd.ProcID[i]
}

// Command is an attribute write issued by a kernel outside its declared
// outputs. Value holds exactly one element.
type Command struct {
	Name  string
	Elem  int
	Value Value
}

// CommandQueue collects commands in issue order.
type CommandQueue struct {
	cmds []Command
}

// SetAttrib queues a write of element 0 of v to attribute name at elem.
// The attribute is created on apply if it does not exist.
func (q *CommandQueue) SetAttrib(name string, elem int, v Value) {
	if q == nil {
		return
	}
	one := Value{Name: name, Kind: v.Kind, Role: Output, Export: true}
	if v.Kind == Integer {
		one.Ints = []int32{v.Int(0)}
	} else {
		one.Floats = make([]float32, v.Kind.Width())
		for c := range one.Floats {
			one.Floats[c] = v.Float(0, c)
		}
	}
	q.cmds = append(q.cmds, Command{Name: name, Elem: elem, Value: one})
}

func (q *CommandQueue) Commands() []Command {
	if q == nil {
		return nil
	}
	return q.cmds
}

func (q *CommandQueue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.cmds)
}
