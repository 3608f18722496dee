package memvm

import (
	"errors"
	"fmt"

	"github.com/mabhi256/jinterop/internal/host"
	"github.com/mabhi256/jinterop/internal/osthread"
)

var (
	ErrUnattachedThread = errors.New("JVMTI_ERROR_UNATTACHED_THREAD")
	ErrInvalidClass     = errors.New("JVMTI_ERROR_INVALID_CLASS")
	ErrInvalidMethodID  = errors.New("JVMTI_ERROR_INVALID_METHODID")
	ErrInvalidFieldID   = errors.New("JVMTI_ERROR_INVALID_FIELDID")
	ErrInvalidThread    = errors.New("JVMTI_ERROR_INVALID_THREAD")
	ErrWrongPhase       = errors.New("JVMTI_ERROR_WRONG_PHASE")
)

type tooling struct {
	vm *VM
}

var _ host.Tooling = (*tooling)(nil)

// enter locks the VM and returns the calling thread's Env.
func (t *tooling) enter(op, subject string) (*Env, error) {
	t.vm.mu.Lock()
	env, ok := t.vm.attached[osthread.Current()]
	if !ok {
		t.vm.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", op, ErrUnattachedThread)
	}
	if t.vm.fault != nil {
		if err := t.vm.fault(op, subject); err != nil {
			t.vm.mu.Unlock()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	return env, nil
}

func (t *tooling) leave() {
	t.vm.mu.Unlock()
}

func (t *tooling) GetPhase() (host.Phase, error) {
	t.vm.mu.Lock()
	defer t.vm.mu.Unlock()
	return t.vm.phase, nil
}

func (t *tooling) live(op string) error {
	if t.vm.phase != host.PhaseLive {
		return fmt.Errorf("%s: %w (%s)", op, ErrWrongPhase, t.vm.phase)
	}
	return nil
}

func (t *tooling) GetAllThreads() ([]host.Object, error) {
	env, err := t.enter("GetAllThreads", "")
	if err != nil {
		return nil, err
	}
	defer t.leave()
	if err := t.live("GetAllThreads"); err != nil {
		return nil, err
	}

	out := make([]host.Object, 0, len(t.vm.threads))
	for _, th := range t.vm.threads {
		out = append(out, env.localLocked(th))
	}
	return out, nil
}

func (t *tooling) GetThreadInfo(thread host.Object) (host.ThreadInfo, error) {
	env, err := t.enter("GetThreadInfo", "")
	if err != nil {
		return host.ThreadInfo{}, err
	}
	defer t.leave()

	inst := t.vm.derefLocked(thread)
	if inst == nil || inst.thread == nil {
		return host.ThreadInfo{}, fmt.Errorf("GetThreadInfo: %w", ErrInvalidThread)
	}
	return host.ThreadInfo{
		Name:               inst.thread.name,
		Priority:           5,
		Daemon:             inst.thread.daemon,
		ContextClassLoader: env.localLocked(inst.thread.loader),
	}, nil
}

func (t *tooling) GetLoadedClasses() ([]host.Object, error) {
	env, err := t.enter("GetLoadedClasses", "")
	if err != nil {
		return nil, err
	}
	defer t.leave()
	if err := t.live("GetLoadedClasses"); err != nil {
		return nil, err
	}

	out := make([]host.Object, 0, len(t.vm.order))
	for _, cls := range t.vm.order {
		out = append(out, env.localLocked(cls.mirror))
	}
	return out, nil
}

func (t *tooling) classLocked(op string, cls host.Object) (*Class, error) {
	inst := t.vm.derefLocked(cls)
	if inst == nil || inst.mirror == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidClass)
	}
	return inst.mirror, nil
}

// enterClass is enter plus class resolution, with the fault hook seeing the
// class name.
func (t *tooling) enterClass(op string, cls host.Object) (*Env, *Class, error) {
	t.vm.mu.Lock()
	c, err := t.classLocked(op, cls)
	t.vm.mu.Unlock()
	if err != nil {
		return nil, nil, err
	}

	env, err := t.enter(op, c.Name)
	if err != nil {
		return nil, nil, err
	}
	return env, c, nil
}

func (t *tooling) GetClassSignature(cls host.Object) (string, error) {
	_, c, err := t.enterClass("GetClassSignature", cls)
	if err != nil {
		return "", err
	}
	defer t.leave()
	return c.Signature(), nil
}

func (t *tooling) GetClassStatus(cls host.Object) (host.ClassStatus, error) {
	_, c, err := t.enterClass("GetClassStatus", cls)
	if err != nil {
		return 0, err
	}
	defer t.leave()
	return c.Status, nil
}

func (t *tooling) GetClassMethods(cls host.Object) ([]host.MethodID, error) {
	_, c, err := t.enterClass("GetClassMethods", cls)
	if err != nil {
		return nil, err
	}
	defer t.leave()

	ids := make([]host.MethodID, len(c.Methods))
	for i, m := range c.Methods {
		ids[i] = m.ID
	}
	return ids, nil
}

func (t *tooling) GetClassFields(cls host.Object) ([]host.FieldID, error) {
	_, c, err := t.enterClass("GetClassFields", cls)
	if err != nil {
		return nil, err
	}
	defer t.leave()

	ids := make([]host.FieldID, len(c.Fields))
	for i, f := range c.Fields {
		ids[i] = f.ID
	}
	return ids, nil
}

func (t *tooling) method(op string, id host.MethodID) (*Env, *Method, error) {
	t.vm.mu.Lock()
	m := t.vm.methods[id]
	t.vm.mu.Unlock()
	if m == nil {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidMethodID)
	}

	env, err := t.enter(op, m.Name)
	if err != nil {
		return nil, nil, err
	}
	return env, m, nil
}

func (t *tooling) GetMethodDeclaringClass(id host.MethodID) (host.Object, error) {
	env, m, err := t.method("GetMethodDeclaringClass", id)
	if err != nil {
		return 0, err
	}
	defer t.leave()
	return env.localLocked(m.Class.mirror), nil
}

func (t *tooling) GetMethodName(id host.MethodID) (string, string, error) {
	_, m, err := t.method("GetMethodName", id)
	if err != nil {
		return "", "", err
	}
	defer t.leave()
	return m.Name, m.Sig, nil
}

func (t *tooling) GetMethodModifiers(id host.MethodID) (int32, error) {
	_, m, err := t.method("GetMethodModifiers", id)
	if err != nil {
		return 0, err
	}
	defer t.leave()
	return m.Modifiers, nil
}

func (t *tooling) field(op string, id host.FieldID) (*Env, *Field, error) {
	t.vm.mu.Lock()
	f := t.vm.fields[id]
	t.vm.mu.Unlock()
	if f == nil {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidFieldID)
	}

	env, err := t.enter(op, f.Name)
	if err != nil {
		return nil, nil, err
	}
	return env, f, nil
}

func (t *tooling) GetFieldDeclaringClass(_ host.Object, id host.FieldID) (host.Object, error) {
	env, f, err := t.field("GetFieldDeclaringClass", id)
	if err != nil {
		return 0, err
	}
	defer t.leave()
	return env.localLocked(f.Class.mirror), nil
}

func (t *tooling) GetFieldName(_ host.Object, id host.FieldID) (string, string, error) {
	_, f, err := t.field("GetFieldName", id)
	if err != nil {
		return "", "", err
	}
	defer t.leave()
	return f.Name, f.Sig, nil
}

func (t *tooling) GetFieldModifiers(_ host.Object, id host.FieldID) (int32, error) {
	_, f, err := t.field("GetFieldModifiers", id)
	if err != nil {
		return 0, err
	}
	defer t.leave()
	return f.Modifiers, nil
}

func (t *tooling) Dispose() error {
	return nil
}
