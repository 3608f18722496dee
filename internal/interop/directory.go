package interop

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/mabhi256/jinterop/internal/host"
)

// Directory caches one Class entry per distinct class for the life of the
// session. Entries are bucketed by class signature; classes that share a name
// under different loaders get separate entries.
type Directory struct {
	s *Session

	mu      sync.RWMutex
	entries map[string][]*Class
	group   singleflight.Group
}

func newDirectory(s *Session) *Directory {
	return &Directory{s: s, entries: make(map[string][]*Class)}
}

// Get returns the entry for cls, building it on first use. Concurrent callers
// for the same class share one build. A caller whose ctx is still live does
// not inherit another caller's cancellation; it builds again instead.
func (d *Directory) Get(ctx context.Context, cls *Ref) (*Class, error) {
	if err := cls.checkInstance("Directory.Get"); err != nil {
		return nil, err
	}
	sig, err := d.s.tooling.GetClassSignature(cls.obj)
	if err != nil {
		return nil, fmt.Errorf("class signature: %w", err)
	}
	env, err := d.s.Env()
	if err != nil {
		return nil, err
	}

	for {
		if c := d.find(env, sig, cls.obj); c != nil {
			return c, nil
		}

		v, err, shared := d.group.Do(sig, func() (any, error) {
			if c := d.find(env, sig, cls.obj); c != nil {
				return c, nil
			}
			c, err := d.build(ctx, cls)
			if err != nil {
				return nil, err
			}

			d.mu.Lock()
			defer d.mu.Unlock()
			if cur := d.findLocked(env, sig, cls.obj); cur != nil {
				c.release()
				return cur, nil
			}
			d.entries[sig] = append(d.entries[sig], c)
			return c, nil
		})

		switch {
		case err == nil:
			c := v.(*Class)
			if shared && !env.IsSameObject(c.ref.obj, cls.obj) {
				// built for another class with the same name
				continue
			}
			return c, nil
		case shared && ctx.Err() == nil && isContextErr(err):
			continue
		default:
			return nil, err
		}
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ForName loads a class by name through the session and returns its entry.
func (d *Directory) ForName(ctx context.Context, name string) (*Class, error) {
	load := d.s.LoadClass
	if d.s.loadClass == 0 {
		load = d.s.FindClass
	}
	cls, err := load(name)
	if err != nil {
		return nil, err
	}
	return d.Get(ctx, cls)
}

// Lookup returns an already built entry by dotted class name. When several
// loaders define the name, the first entry built wins.
func (d *Directory) Lookup(name string) *Class {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if bucket := d.entries["L"+slashedName(name)+";"]; len(bucket) > 0 {
		return bucket[0]
	}
	return nil
}

func (d *Directory) find(env host.Env, sig string, cls host.Object) *Class {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.findLocked(env, sig, cls)
}

func (d *Directory) findLocked(env host.Env, sig string, cls host.Object) *Class {
	for _, c := range d.entries[sig] {
		if env.IsSameObject(c.ref.obj, cls) {
			return c
		}
	}
	return nil
}

// Len is the number of built entries.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n := 0
	for _, bucket := range d.entries {
		n += len(bucket)
	}
	return n
}

// Names lists the dotted names of built entries.
func (d *Directory) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var names []string
	for _, bucket := range d.entries {
		for _, c := range bucket {
			names = append(names, c.fullName)
		}
	}
	sort.Strings(names)
	return names
}

func (d *Directory) build(ctx context.Context, cls *Ref) (*Class, error) {
	s := d.s
	if err := s.WaitLive(ctx); err != nil {
		return nil, err
	}

	ref, err := cls.Clone()
	if err != nil {
		return nil, err
	}
	ref.isClass = true
	if err := ref.MakeGlobal(); err != nil {
		_ = ref.Release()
		return nil, err
	}

	full, simple, err := s.ClassName(ref.obj)
	if err != nil {
		_ = ref.Release()
		return nil, fmt.Errorf("class name: %w", err)
	}

	c := newClass(ref)
	c.fullName = full
	c.name = simple

	log := s.log.With("class", full)
	fail := func(step string, err error) *Class {
		c.err = fmt.Errorf("%s: %w", step, err)
		log.Error("class build incomplete", "step", step, "err", err)
		return c
	}

	if c.status, err = s.tooling.GetClassStatus(ref.obj); err != nil {
		return fail("GetClassStatus", err), nil
	}

	env, err := s.Env()
	if err != nil {
		return fail("Env", err), nil
	}

	mids, err := s.tooling.GetClassMethods(ref.obj)
	if err != nil {
		return fail("GetClassMethods", err), nil
	}
	for _, id := range mids {
		owner, err := ref.Clone()
		if err != nil {
			return fail("clone class", err), nil
		}
		m, err := s.newMethod(env, id, owner, full)
		if err != nil {
			return fail("method", err), nil
		}
		c.addMethod(m)
	}

	fids, err := s.tooling.GetClassFields(ref.obj)
	if err != nil {
		return fail("GetClassFields", err), nil
	}
	for _, id := range fids {
		owner, err := ref.Clone()
		if err != nil {
			return fail("clone class", err), nil
		}
		f, err := s.newField(env, id, owner, full)
		if err != nil {
			return fail("field", err), nil
		}
		c.addField(f)
	}

	log.Debug("class built", "methods", len(c.methodOrder), "fields", len(c.fieldOrder), "status", c.status)
	return c, nil
}

// release drops every entry; the session calls it on Destroy.
func (d *Directory) release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for sig, bucket := range d.entries {
		for _, c := range bucket {
			c.release()
		}
		delete(d.entries, sig)
	}
}
