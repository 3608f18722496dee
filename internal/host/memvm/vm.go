// Package memvm is an in-process JVM model implementing the host ABI. It
// holds classes, objects, strings and arrays in Go memory, runs methods whose
// bodies are Go functions, and counts every explicit reference operation.
//
// Heap dump and classpath images are loaded into a VM; tests build one by
// hand.
package memvm

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mabhi256/jinterop/internal/host"
	"github.com/mabhi256/jinterop/internal/osthread"
)

// Stats counts explicit reference operations made through Env.
type Stats struct {
	NewGlobal      int
	DeleteGlobal   int
	NewLocal       int
	DeleteLocal    int
	InvalidDeletes int
	LiveGlobals    int
}

// FaultFunc may fail a Tooling call. op is the JVMTI function name and
// subject the slashed class name (or member name) it concerns.
type FaultFunc func(op, subject string) error

type handle struct {
	target *Instance
	kind   host.RefType
	owner  osthread.ID
}

// VM is a single in-memory Java VM.
type VM struct {
	mu sync.Mutex

	name    string
	handles map[host.Object]*handle
	nextObj host.Object

	classes map[string]*Class
	order   []*Class
	methods map[host.MethodID]*Method
	fields  map[host.FieldID]*Field
	nextID  uintptr

	threads  []*Instance
	attached map[osthread.ID]*Env
	loader   *Instance
	props    map[string]string

	phase     host.Phase
	noTooling bool
	fault     FaultFunc
	stderr    io.Writer
	readOnly  bool
	noLoader  bool
	lastHash  int32

	stats Stats
}

type Option func(*VM)

// WithName labels the VM in diagnostics.
func WithName(name string) Option {
	return func(vm *VM) { vm.name = name }
}

// WithoutTooling makes Tooling return host.ErrVersion.
func WithoutTooling() Option {
	return func(vm *VM) { vm.noTooling = true }
}

// WithPhase sets the initial tooling phase (default live).
func WithPhase(p host.Phase) Option {
	return func(vm *VM) { vm.phase = p }
}

// WithStderr redirects ExceptionDescribe output.
func WithStderr(w io.Writer) Option {
	return func(vm *VM) { vm.stderr = w }
}

// WithProperties seeds System.getProperty.
func WithProperties(props map[string]string) Option {
	return func(vm *VM) {
		for k, v := range props {
			vm.props[k] = v
		}
	}
}

// ReadOnly rejects field writes with IllegalAccessError; used for snapshots.
func ReadOnly() Option {
	return func(vm *VM) { vm.readOnly = true }
}

// WithoutContextLoader starts the main thread with no context class loader.
func WithoutContextLoader() Option {
	return func(vm *VM) { vm.noLoader = true }
}

func New(opts ...Option) *VM {
	vm := &VM{
		name:     "memvm",
		handles:  make(map[host.Object]*handle),
		nextObj:  0x1000,
		classes:  make(map[string]*Class),
		methods:  make(map[host.MethodID]*Method),
		fields:   make(map[host.FieldID]*Field),
		nextID:   0x10,
		attached: make(map[osthread.ID]*Env),
		props: map[string]string{
			"java.version": "21",
			"java.vendor":  "memvm",
			"os.name":      "memvm",
		},
		phase:  host.PhaseLive,
		stderr: os.Stderr,
	}

	for _, opt := range opts {
		opt(vm)
	}

	vm.bootstrap()
	return vm
}

func (vm *VM) String() string {
	return vm.name
}

// SetPhase changes the phase reported by Tooling.
func (vm *VM) SetPhase(p host.Phase) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.phase = p
}

// SetFault installs (or clears, with nil) a Tooling fault hook.
func (vm *VM) SetFault(f FaultFunc) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.fault = f
}

func (vm *VM) Stats() Stats {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	s := vm.stats
	s.LiveGlobals = 0
	for _, h := range vm.handles {
		if h.kind == host.RefGlobal {
			s.LiveGlobals++
		}
	}
	return s
}

// ResetStats zeroes the reference counters.
func (vm *VM) ResetStats() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.stats = Stats{}
}

// Locator returns a host.Locator that finds this VM.
func (vm *VM) Locator() host.Locator {
	return locator{vms: []host.VM{vm}}
}

// EmptyLocator finds no VMs.
func EmptyLocator() host.Locator {
	return locator{}
}

type locator struct {
	vms []host.VM
}

func (l locator) CreatedVMs() ([]host.VM, error) {
	return l.vms, nil
}

// AttachedThreads is the number of OS threads currently attached.
func (vm *VM) AttachedThreads() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return len(vm.attached)
}

func (vm *VM) GetEnv() (host.Env, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	env, ok := vm.attached[osthread.Current()]
	if !ok {
		return nil, host.ErrDetached
	}
	return env, nil
}

func (vm *VM) AttachCurrentThread(daemon bool) (host.Env, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	tid := osthread.Current()
	if env, ok := vm.attached[tid]; ok {
		return env, nil
	}

	env := &Env{vm: vm, tid: tid, frames: [][]host.Object{nil}}
	thread := vm.newThreadLocked(fmt.Sprintf("Thread-%d", len(vm.threads)), daemon)
	env.thread = thread
	vm.attached[tid] = env
	return env, nil
}

func (vm *VM) DetachCurrentThread() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	tid := osthread.Current()
	env, ok := vm.attached[tid]
	if !ok {
		return host.ErrDetached
	}

	for _, frame := range env.frames {
		for _, h := range frame {
			delete(vm.handles, h)
		}
	}
	for i, t := range vm.threads {
		if t == env.thread {
			vm.threads = append(vm.threads[:i], vm.threads[i+1:]...)
			break
		}
	}
	delete(vm.attached, tid)
	return nil
}

func (vm *VM) Tooling() (host.Tooling, error) {
	if vm.noTooling {
		return nil, host.ErrVersion
	}
	return &tooling{vm: vm}, nil
}

// Global pins an instance with a new global handle, outside of any Env.
// Image loaders use it to hand roots to callers.
func (vm *VM) Global(inst *Instance) host.Object {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.newHandleLocked(inst, host.RefGlobal, 0)
}

// Resolve returns the instance behind a handle, or nil.
func (vm *VM) Resolve(obj host.Object) *Instance {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.derefLocked(obj)
}

func (vm *VM) newHandleLocked(inst *Instance, kind host.RefType, owner osthread.ID) host.Object {
	if inst == nil {
		return 0
	}
	vm.nextObj += 8
	vm.handles[vm.nextObj] = &handle{target: inst, kind: kind, owner: owner}
	return vm.nextObj
}

func (vm *VM) derefLocked(obj host.Object) *Instance {
	if obj == 0 {
		return nil
	}
	h, ok := vm.handles[obj]
	if !ok {
		return nil
	}
	return h.target
}

func (vm *VM) nextIDLocked() uintptr {
	vm.nextID += 4
	return vm.nextID
}
