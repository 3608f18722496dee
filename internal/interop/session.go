// Package interop bridges Go code and a running JVM: owned references with
// local or global strength, introspected method and field handles, a
// per-class directory of those handles, and the session that tracks attached
// threads and loaded classes.
//
// JNI environments belong to OS threads. Goroutines that use a Session must
// call runtime.LockOSThread before AttachThread and keep the lock until
// DetachThread.
package interop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mabhi256/jinterop/internal/descriptor"
	"github.com/mabhi256/jinterop/internal/host"
	"github.com/mabhi256/jinterop/internal/osthread"
)

const loaderSig = "(Ljava/lang/String;)Ljava/lang/Class;"

type threadEntry struct {
	env      host.Env
	attached bool
	daemon   bool
}

// Session owns the connection to one JVM.
type Session struct {
	vm      host.VM
	tooling host.Tooling
	log     *slog.Logger
	poll    time.Duration

	mu      sync.RWMutex
	threads map[osthread.ID]*threadEntry

	loader    *Ref
	findClass host.MethodID
	loadClass host.MethodID

	classMu sync.RWMutex
	classes map[string]*Ref
	loads   singleflight.Group

	dir *Directory
}

type options struct {
	log    *slog.Logger
	poll   time.Duration
	daemon bool
}

type Option func(*options)

// WithLogger sets the session logger (slog.Default otherwise).
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithPollInterval sets the sleep between phase and class dump polls.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.poll = d }
}

// AsDaemon attaches the initializing thread as a daemon thread.
func AsDaemon() Option {
	return func(o *options) { o.daemon = true }
}

// Initialize locates the running VM, attaches the calling thread, obtains the
// tooling interface and finds a context class loader among the live threads.
func Initialize(locator host.Locator, opts ...Option) (*Session, error) {
	o := options{log: slog.Default(), poll: 100 * time.Millisecond}
	for _, opt := range opts {
		opt(&o)
	}

	vms, err := locator.CreatedVMs()
	if err != nil {
		return nil, raise(fmt.Errorf("%w: %w", ErrNoRuntime, err), "Initialize", "no jvm found")
	}
	if len(vms) == 0 {
		return nil, raise(ErrNoRuntime, "Initialize", "no jvm found")
	}

	s := &Session{
		vm:      vms[0],
		log:     o.log,
		poll:    o.poll,
		threads: make(map[osthread.ID]*threadEntry),
		classes: make(map[string]*Ref),
	}
	s.dir = newDirectory(s)

	if err := s.AttachThread(o.daemon); err != nil {
		return nil, err
	}

	ti, err := s.vm.Tooling()
	if err != nil {
		_ = s.DetachThread()
		return nil, raise(fmt.Errorf("%w: %w", ErrNoTooling, err), "Initialize", "Failed to get jvmti environment")
	}
	s.tooling = ti

	if err := s.findLoader(); err != nil {
		_ = s.DetachThread()
		return nil, err
	}
	return s, nil
}

func (s *Session) findLoader() error {
	env, err := s.Env()
	if err != nil {
		return err
	}

	threads, err := s.tooling.GetAllThreads()
	if err != nil {
		return raise(fmt.Errorf("%w: %w", ErrNoClassLoader, err), "Initialize", "failed to get all threads")
	}
	if len(threads) == 0 {
		return raise(ErrNoClassLoader, "Initialize", "no java threads found")
	}

	for _, th := range threads {
		if s.loader == nil {
			info, err := s.tooling.GetThreadInfo(th)
			if err == nil && info.ContextClassLoader != 0 {
				s.loader = s.adopt(env.NewGlobalRef(info.ContextClassLoader), true, false)
				s.log.Debug("found context class loader", "thread", info.Name)
			}
			if info.ContextClassLoader != 0 {
				env.DeleteLocalRef(info.ContextClassLoader)
			}
		}
		env.DeleteLocalRef(th)
	}

	if s.loader == nil {
		return raise(ErrNoClassLoader, "Initialize", "failed to find thread class loader")
	}

	cls := env.GetObjectClass(s.loader.obj)
	defer env.DeleteLocalRef(cls)

	s.findClass = env.GetMethodID(cls, "findClass", loaderSig)
	env.ExceptionClear()
	s.loadClass = env.GetMethodID(cls, "loadClass", loaderSig)
	env.ExceptionClear()

	if s.findClass == 0 && s.loadClass == 0 {
		_ = s.loader.Release()
		s.loader = nil
		return raise(ErrNoClassLoader, "Initialize", "class loader has neither findClass nor loadClass")
	}
	return nil
}

// Tooling is the JVMTI interface.
func (s *Session) Tooling() host.Tooling {
	return s.tooling
}

// Directory is the session's reflective type directory.
func (s *Session) Directory() *Directory {
	return s.dir
}

func (s *Session) Logger() *slog.Logger {
	return s.log
}

// Env returns the calling thread's environment.
func (s *Session) Env() (host.Env, error) {
	s.mu.RLock()
	t, ok := s.threads[osthread.Current()]
	s.mu.RUnlock()
	if !ok {
		return nil, raise(ErrNotAttached, "Env", "thread %d is not attached", osthread.Current())
	}
	return t.env, nil
}

// AttachThread attaches the calling OS thread. Attaching a thread that is
// already registered is a no-op.
func (s *Session) AttachThread(daemon bool) error {
	tid := osthread.Current()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.threads[tid]; ok {
		return nil
	}

	if env, err := s.vm.GetEnv(); err == nil {
		// Attached by someone else; track it but leave detaching to them.
		s.threads[tid] = &threadEntry{env: env}
		return nil
	} else if !errors.Is(err, host.ErrDetached) {
		return raise(err, "AttachThread", "Failed to get jni environment")
	}

	env, err := s.vm.AttachCurrentThread(daemon)
	if err != nil {
		return raise(err, "AttachThread", "Failed to attach current thread (daemon=%t)", daemon)
	}
	s.threads[tid] = &threadEntry{env: env, attached: true, daemon: daemon}
	return nil
}

// RegisterThread records an environment handed to us by the runtime, such as
// the one passed to a native callback.
func (s *Session) RegisterThread(env host.Env) {
	tid := osthread.Current()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.threads[tid]; ok {
		return
	}
	s.threads[tid] = &threadEntry{env: env}
}

// DetachThread detaches the calling thread if AttachThread attached it.
func (s *Session) DetachThread() error {
	tid := osthread.Current()

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[tid]
	if !ok || !t.attached {
		return nil
	}
	if err := s.vm.DetachCurrentThread(); err != nil {
		return fmt.Errorf("detach thread %d: %w", tid, err)
	}
	delete(s.threads, tid)
	return nil
}

// UnregisterThread forgets the calling thread without detaching it.
func (s *Session) UnregisterThread() {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, osthread.Current())
}

// Attached reports whether the calling thread has an environment.
func (s *Session) Attached() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.threads[osthread.Current()]
	return ok
}

// ThreadCount is the number of tracked threads.
func (s *Session) ThreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.threads)
}

// dottedName converts a slashed class name to the form ClassLoader expects.
func dottedName(name string) string {
	return strings.ReplaceAll(name, "/", ".")
}

func slashedName(name string) string {
	return strings.ReplaceAll(name, ".", "/")
}

// FindClass resolves a class through the context loader's findClass.
func (s *Session) FindClass(name string) (*Ref, error) {
	return s.resolveClass("findClass", s.findClass, name)
}

// LoadClass resolves a class through the context loader's loadClass.
func (s *Session) LoadClass(name string) (*Ref, error) {
	return s.resolveClass("loadClass", s.loadClass, name)
}

// FetchClass returns a cached class without calling into the runtime. The
// result is nil when the class has not been seen.
func (s *Session) FetchClass(name string) *Ref {
	s.classMu.RLock()
	defer s.classMu.RUnlock()
	return s.classes[dottedName(name)]
}

// resolveClass returns the cached global class reference for name, calling
// into the loader on a miss. The returned Ref is owned by the cache.
func (s *Session) resolveClass(op string, mid host.MethodID, name string) (*Ref, error) {
	key := dottedName(name)
	if cls := s.FetchClass(key); cls != nil {
		return cls, nil
	}
	if mid == 0 {
		return nil, raise(ErrNoClassLoader, op, "loader has no %s", op)
	}

	v, err, _ := s.loads.Do(key, func() (any, error) {
		if cls := s.FetchClass(key); cls != nil {
			return cls, nil
		}

		env, err := s.Env()
		if err != nil {
			return nil, err
		}

		jname := env.NewString(key)
		res := env.CallMethod(s.loader.obj, mid, descriptor.KindObject, []host.Value{host.Ref(jname)})
		env.DeleteLocalRef(jname)
		if err := s.takeException(env); err != nil {
			return nil, fmt.Errorf("%s %s: %w", op, key, err)
		}
		if res.IsNull() {
			return nil, fmt.Errorf("%s %s: %w", op, key, ErrInvalidReference)
		}

		cls := s.adopt(env.NewGlobalRef(res.Object()), true, true)
		env.DeleteLocalRef(res.Object())
		return s.cacheClass(env, key, cls), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Ref), nil
}

// cacheClass inserts cls unless the name is already cached, in which case the
// new reference is released and the cached one returned.
func (s *Session) cacheClass(env host.Env, key string, cls *Ref) *Ref {
	s.classMu.Lock()
	defer s.classMu.Unlock()

	if cur, ok := s.classes[key]; ok {
		env.DeleteGlobalRef(cls.obj)
		return cur
	}
	s.classes[key] = cls
	return cls
}

// CachedClasses lists cached class names in sorted order.
func (s *Session) CachedClasses() []string {
	s.classMu.RLock()
	defer s.classMu.RUnlock()

	names := make([]string, 0, len(s.classes))
	for name := range s.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ClassName returns the dotted and simple names of a class handle, read
// through the tooling interface.
func (s *Session) ClassName(cls host.Object) (full, simple string, err error) {
	sig, err := s.tooling.GetClassSignature(cls)
	if err != nil {
		return "", "", err
	}
	return classNames(sig)
}

func classNames(sig string) (full, simple string, err error) {
	switch {
	case strings.HasPrefix(sig, "L") && strings.HasSuffix(sig, ";"):
		full = dottedName(sig[1 : len(sig)-1])
	case strings.HasPrefix(sig, "["):
		d, perr := descriptor.ParseFieldSignature(sig)
		if perr != nil {
			return "", "", perr
		}
		full = d.JavaName()
	default:
		return "", "", fmt.Errorf("class signature %q: %w", sig, descriptor.ErrInvalidSignature)
	}

	simple = full
	if i := strings.LastIndexByte(full, '.'); i >= 0 {
		simple = full[i+1:]
	}
	return full, simple, nil
}

// DumpOptions controls DumpClasses.
type DumpOptions struct {
	// Anchor is a dotted class name that must be loaded before the dump is
	// accepted. Empty accepts the first sweep.
	Anchor string
	// Exclude lists package prefixes to skip, such as "sun." or "jdk.".
	Exclude []string
	// Interval between sweeps; the session poll interval when zero.
	Interval time.Duration
}

// DumpClasses sweeps every loaded class into the class cache, repeating until
// the anchor class shows up or ctx ends. It returns the number of classes
// added.
func (s *Session) DumpClasses(ctx context.Context, opts DumpOptions) (int, error) {
	env, err := s.Env()
	if err != nil {
		return 0, err
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = s.poll
	}
	anchor := dottedName(opts.Anchor)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for sweep := 1; ; sweep++ {
		if anchor != "" && s.FetchClass(anchor) != nil {
			return 0, nil
		}

		found, err := s.sweepClasses(env, opts.Exclude)
		if err != nil {
			return 0, err
		}

		if _, ok := found[anchor]; anchor == "" || ok {
			added := 0
			for name, local := range found {
				g := s.adopt(env.NewGlobalRef(local), true, true)
				env.DeleteLocalRef(local)
				if s.cacheClass(env, name, g) == g {
					added++
				}
			}
			s.log.Debug("class dump complete", "sweeps", sweep, "classes", len(found), "added", added)
			return added, nil
		}

		for _, local := range found {
			env.DeleteLocalRef(local)
		}

		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("waiting for %s after %d sweeps: %w", anchor, sweep, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (s *Session) sweepClasses(env host.Env, exclude []string) (map[string]host.Object, error) {
	classes, err := s.tooling.GetLoadedClasses()
	if err != nil {
		return nil, fmt.Errorf("GetLoadedClasses: %w", err)
	}

	found := make(map[string]host.Object, len(classes))
	for _, cls := range classes {
		sig, err := s.tooling.GetClassSignature(cls)
		if err != nil || !strings.HasPrefix(sig, "L") || excluded(sig, exclude) {
			env.DeleteLocalRef(cls)
			continue
		}
		name, _, err := classNames(sig)
		if err != nil {
			env.DeleteLocalRef(cls)
			continue
		}
		if prev, dup := found[name]; dup {
			env.DeleteLocalRef(prev)
		}
		found[name] = cls
	}
	return found, nil
}

func excluded(sig string, prefixes []string) bool {
	name := dottedName(strings.TrimSuffix(strings.TrimPrefix(sig, "L"), ";"))
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// WaitLive blocks until the tooling phase is live.
func (s *Session) WaitLive(ctx context.Context) error {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		phase, err := s.tooling.GetPhase()
		if err != nil {
			return fmt.Errorf("GetPhase: %w", err)
		}
		if phase == host.PhaseLive {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for live phase (now %s): %w", phase, ctx.Err())
		case <-ticker.C:
		}
	}
}

// takeException turns a pending Java exception into an error and clears it.
func (s *Session) takeException(env host.Env) error {
	if !env.ExceptionCheck() {
		return nil
	}

	exc := env.ExceptionOccurred()
	if s.log.Enabled(context.Background(), slog.LevelDebug) {
		env.ExceptionDescribe()
	}
	env.ExceptionClear()
	defer env.DeleteLocalRef(exc)

	return fmt.Errorf("%w: %s", ErrJavaException, s.describe(env, exc))
}

func (s *Session) describe(env host.Env, exc host.Object) string {
	if exc == 0 {
		return "unknown exception"
	}

	cls := env.GetObjectClass(exc)
	defer env.DeleteLocalRef(cls)

	mid := env.GetMethodID(cls, "toString", "()Ljava/lang/String;")
	if mid == 0 {
		env.ExceptionClear()
		return "unknown exception"
	}
	str := env.CallMethod(exc, mid, descriptor.KindObject, nil)
	if env.ExceptionCheck() || str.IsNull() {
		env.ExceptionClear()
		return "unknown exception"
	}
	defer env.DeleteLocalRef(str.Object())
	return env.GetString(str.Object())
}

// Destroy releases cached classes and directory entries, detaches the
// calling thread and disposes of the tooling interface. Threads still
// attached afterwards are logged.
func (s *Session) Destroy() error {
	env, err := s.Env()
	if err != nil {
		return err
	}

	s.dir.release()

	s.classMu.Lock()
	for name, cls := range s.classes {
		if cls.Valid() {
			env.DeleteGlobalRef(cls.obj)
			cls.obj = 0
		}
		delete(s.classes, name)
	}
	s.classMu.Unlock()

	if s.loader != nil {
		_ = s.loader.Release()
	}

	if err := s.DetachThread(); err != nil {
		s.log.Warn("detach on destroy", "err", err)
	}
	if s.tooling != nil {
		if err := s.tooling.Dispose(); err != nil {
			s.log.Warn("dispose tooling", "err", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for tid, t := range s.threads {
		if t.attached {
			s.log.Warn("dangling thread", "thread", tid, "daemon", t.daemon)
		}
	}
	clear(s.threads)
	return nil
}
