// Package fetch caches read queries by query key and turns read failures
// into empty views carrying an error, so one failed collection never breaks
// the page that shows it.
package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

type Observer interface {
	CacheHit(query string)
	CacheMiss(query string)
}

type nopObserver struct{}

func (nopObserver) CacheHit(string) {}
func (nopObserver) CacheMiss(string) {}

type Cache struct {
	log   logrus.FieldLogger
	items *cache.Cache
	obs   Observer
}

func New(log logrus.FieldLogger, ttl, cleanup time.Duration, obs Observer) *Cache {
	if obs == nil {
		obs = nopObserver{}
	}
	return &Cache{
		log:   log,
		items: cache.New(ttl, cleanup),
		obs:   obs,
	}
}

// Key joins the parts of a query key, e.g. Key("enrollments", userID).
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

func family(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return key
}

// Get returns the cached value for key, running fn on a miss. Errors are
// never cached.
func Get[T any](ctx context.Context, c *Cache, key string, fn func(context.Context) (T, error)) (T, error) {
	if v, ok := c.items.Get(key); ok {
		if t, ok := v.(T); ok {
			c.obs.CacheHit(family(key))
			return t, nil
		}
	}
	c.obs.CacheMiss(family(key))

	v, err := fn(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	c.items.SetDefault(key, v)
	return v, nil
}

// Invalidate drops key and every key below it, so Invalidate("users") also
// drops "users:42".
func (c *Cache) Invalidate(key string) {
	c.items.Delete(key)
	prefix := key + ":"
	for k := range c.items.Items() {
		if strings.HasPrefix(k, prefix) {
			c.items.Delete(k)
		}
	}
}

// View is what read endpoints return: the data, or an empty value and the
// reason it is missing.
type View[T any] struct {
	Data  T      `json:"data"`
	Error string `json:"error,omitempty"`
}

func (v View[T]) Failed() bool { return v.Error != "" }

// Load runs a cached query and degrades a failure to an empty view.
func Load[T any](ctx context.Context, c *Cache, key string, empty T, fn func(context.Context) (T, error)) View[T] {
	v, err := Get(ctx, c, key, fn)
	if err != nil {
		c.log.WithError(err).WithField("query", key).Warn("query failed, serving empty result")
		return View[T]{Data: empty, Error: fmt.Sprintf("could not load %s", family(key))}
	}
	return View[T]{Data: v}
}
