package interop

import "github.com/mabhi256/jinterop/internal/osthread"

// LocalFrame scopes local references: everything created after Push is freed
// by Pop except the one reference Pop keeps.
type LocalFrame struct {
	s      *Session
	owner  osthread.ID
	popped bool
}

// PushLocalFrame opens a frame with room for capacity local references.
func (s *Session) PushLocalFrame(capacity int) (*LocalFrame, error) {
	env, err := s.Env()
	if err != nil {
		return nil, err
	}
	if err := env.PushLocalFrame(capacity); err != nil {
		return nil, raise(err, "PushLocalFrame", "capacity %d", capacity)
	}
	return &LocalFrame{s: s, owner: osthread.Current()}, nil
}

// Pop closes the frame. keep, if valid, survives as a new local reference in
// the enclosing frame and is returned; keep itself is invalidated.
func (f *LocalFrame) Pop(keep *Ref) (*Ref, error) {
	if f.popped {
		return nil, nil
	}
	if cur := osthread.Current(); cur != f.owner {
		return nil, raise(ErrCrossThread, "LocalFrame.Pop", "frame of thread %d popped on thread %d", f.owner, cur)
	}

	env, err := f.s.Env()
	if err != nil {
		return nil, err
	}

	h, err := keep.Handle()
	if err != nil {
		return nil, err
	}
	if keep.IsGlobal() {
		h = 0
	}

	f.popped = true
	res := env.PopLocalFrame(h)
	if keep.Valid() && !keep.IsGlobal() {
		keep.obj = 0
		keep.owner = 0
		return f.s.adopt(res, false, keep.isClass), nil
	}
	if res != 0 {
		env.DeleteLocalRef(res)
	}
	return keep, nil
}
