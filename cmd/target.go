package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mabhi256/jinterop/internal/browse"
	"github.com/mabhi256/jinterop/internal/classpath"
	"github.com/mabhi256/jinterop/internal/facade"
	"github.com/mabhi256/jinterop/internal/heapdump"
	"github.com/mabhi256/jinterop/internal/host"
	"github.com/mabhi256/jinterop/internal/host/jni"
	"github.com/mabhi256/jinterop/internal/host/memvm"
	"github.com/mabhi256/jinterop/internal/interop"
	"github.com/mabhi256/jinterop/internal/mapping"
	"github.com/mabhi256/jinterop/internal/symbols"
)

// target is an initialized session over the configured host. Commands run
// on the main goroutine, which main pins to its OS thread.
type target struct {
	session  *interop.Session
	resolver symbols.Resolver
	table    *mapping.Mappings
	runtime  *facade.Runtime
	heap     *heapdump.Image
}

func openTarget(ctx context.Context) (*target, error) {
	t := &target{}

	locator, err := t.locate(ctx)
	if err != nil {
		return nil, err
	}

	t.session, err = interop.Initialize(locator,
		interop.WithLogger(logger),
		interop.WithPollInterval(cfg.GetPollInterval()),
	)
	if err != nil {
		return nil, fmt.Errorf("initialize session on %s: %w", cfg, err)
	}

	liveCtx, cancel := context.WithTimeout(ctx, cfg.GetPhaseTimeout())
	defer cancel()
	if err := t.session.WaitLive(liveCtx); err != nil {
		t.Close()
		return nil, err
	}

	if t.table, err = cfg.Mappings(logger); err != nil {
		t.Close()
		return nil, err
	}
	if t.resolver, err = newResolver(cfg.Mode, t.table); err != nil {
		t.Close()
		return nil, err
	}
	t.runtime = facade.New(t.session, t.resolver, cfg.GetPhaseTimeout())

	logger.Debug("session ready", "host", cfg.String(), "mode", cfg.Mode)
	return t, nil
}

func newResolver(mode symbols.Mode, table *mapping.Mappings) (symbols.Resolver, error) {
	if table == nil {
		return symbols.New(mode, nil)
	}
	return symbols.New(mode, table)
}

func (t *target) locate(ctx context.Context) (host.Locator, error) {
	switch {
	case cfg.HeapDump != "":
		img, err := heapdump.Open(cfg.HeapDump, heapdump.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("load heap dump: %w", err)
		}
		t.heap = img
		return img.VM.Locator(), nil

	case len(cfg.Classpath) > 0:
		img, err := classpath.Open(ctx, cfg.Classpath)
		if err != nil {
			return nil, fmt.Errorf("load classpath: %w", err)
		}
		return img.VM.Locator(), nil

	case cfg.JVM:
		if !jni.Available() {
			return nil, fmt.Errorf("--jvm: %w", jni.ErrUnavailable)
		}
		return jni.Start(cfg.JVMOptions)

	default:
		logger.Info("no host selected, using the bootstrap runtime")
		return memvm.New(memvm.WithName("bootstrap")).Locator(), nil
	}
}

func (t *target) Close() {
	if t.session == nil {
		return
	}
	if err := t.session.Destroy(); err != nil {
		logger.Warn("destroy session", "err", err)
	}
}

// class resolves a logical class name through the resolver.
func (t *target) class(ctx context.Context, logical string) (*interop.Class, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.GetPhaseTimeout())
	defer cancel()
	return symbols.Class(ctx, t.resolver, t.session.Directory(), logical)
}

// names maps runtime names back to logical ones, or is nil without a
// mapping table.
func (t *target) names() browse.Names {
	if t.table == nil {
		return nil
	}
	return t.table
}

// logicalName is the logical spelling of a runtime class name.
func (t *target) logicalName(runtime string) string {
	if t.table == nil {
		return runtime
	}
	return t.table.OriginalClassName(runtime)
}

// dumpClasses fills the session class cache and returns every cached
// directory entry outside the excluded packages.
func (t *target) dumpClasses(ctx context.Context, all bool) ([]*interop.Class, error) {
	var exclude []string
	if !all {
		exclude = cfg.ExcludePackages
	}

	dumpCtx, cancel := context.WithTimeout(ctx, cfg.GetDumpTimeout())
	defer cancel()
	added, err := t.session.DumpClasses(dumpCtx, interop.DumpOptions{
		Anchor:  cfg.Anchor,
		Exclude: exclude,
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("classes dumped", "added", added)

	var classes []*interop.Class
	var errs []error
	for _, name := range t.session.CachedClasses() {
		if excludedName(name, exclude) {
			continue
		}
		cls, err := t.session.Directory().Get(ctx, t.session.FetchClass(name))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		classes = append(classes, cls)
	}
	if len(errs) > 0 {
		logger.Warn("some classes could not be described", "err", errors.Join(errs...))
	}
	return classes, nil
}

func excludedName(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// instance pins the n-th heap dump instance of cls as a global reference.
func (t *target) instance(cls *interop.Class, n int) (*interop.Ref, error) {
	if t.heap == nil {
		return nil, errors.New("--instance needs a heap dump (--heap)")
	}
	return t.heap.Pin(t.session, cls.SlashedName(), n)
}
