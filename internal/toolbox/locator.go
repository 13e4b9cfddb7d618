// Package toolbox resolves binaries across the coreutils/busybox/toolbox
// variance found on embedded devices. It builds the variant lists that feed
// the session's fallback machinery and caches resolution results.
package toolbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	shellquote "github.com/kballard/go-shellquote"

	"github.com/zjrosen/shellfw/internal/cachemanager"
	"github.com/zjrosen/shellfw/internal/log"
	"github.com/zjrosen/shellfw/internal/shell"
)

// ErrNotFound is returned when a binary exists in none of the toolboxes.
var ErrNotFound = errors.New("toolbox: binary not found")

// DefaultTTL is how long a resolved binary path stays cached.
const DefaultTTL = 10 * time.Minute

// Toolboxes are the command prefixes tried in order: plain coreutils first,
// then the busybox and toolbox multiplexers.
var Toolboxes = []string{"", "busybox", "toolbox"}

// Executor runs a variant set against a shell. *shell.Session satisfies it.
type Executor interface {
	Execute(variants []string, opts ...shell.ExecOption) (*shell.Result, error)
}

// Variants builds the fallback list for a command across all toolboxes:
// "df -h" becomes ["df -h", "busybox df -h", "toolbox df -h"].
func Variants(command string) []string {
	out := make([]string, 0, len(Toolboxes))
	for _, tb := range Toolboxes {
		out = append(out, strings.TrimSpace(tb+" "+command))
	}
	return out
}

// Command quotes argv into a single shell command string.
func Command(name string, args ...string) string {
	return shellquote.Join(append([]string{name}, args...)...)
}

// Locator resolves binary names to paths through a session, remembering
// results so repeated lookups skip the shell round-trip.
type Locator struct {
	exec  Executor
	cache *cachemanager.ReadThroughCache[string, string, string]
	ttl   time.Duration
}

// NewLocator creates a Locator executing probes on exec. A non-positive ttl
// falls back to DefaultTTL.
func NewLocator(exec Executor, ttl time.Duration) *Locator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	l := &Locator{exec: exec, ttl: ttl}
	manager := cachemanager.NewInMemoryCacheManager[string, string](
		"binary-locator", ttl, cachemanager.DefaultCleanupInterval)
	l.cache = cachemanager.NewReadThroughCache[string, string, string](manager, l.probe, false)
	return l
}

// Find resolves name to the path reported by the first toolbox that knows
// it. Results are cached for the locator's TTL; a miss in every toolbox is
// ErrNotFound and is not cached.
func (l *Locator) Find(ctx context.Context, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: blank binary name", shell.ErrInvalidArgument)
	}
	return l.cache.Get(ctx, name, name, l.ttl)
}

func (l *Locator) probe(ctx context.Context, name string) (string, error) {
	res, err := l.exec.Execute(Variants(Command("which", name)))
	if err != nil {
		return "", err
	}
	if !res.Ok() {
		log.Debug(log.CatCache, "binary not found in any toolbox", "binary", name, "code", res.ExitCode)
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	path, ok := res.Output.Trim().Last()
	if !ok {
		// which exited 0 but printed nothing; fall back to the bare name.
		path = name
	}
	log.Debug(log.CatCache, "binary resolved", "binary", name, "path", path, "variant", res.Variant)
	return path, nil
}
