package geocode

import (
	"context"
	"fmt"
	"sync"
)

// CoordKey is the cache key for a coordinate pair. Six decimals keeps
// nearby probe points from fanning out into separate lookups.
func CoordKey(lat, lng float64) string {
	return fmt.Sprintf("%.6f,%.6f", lat, lng)
}

// Cache memoizes a Resolver. Only successful lookups are stored, so a
// transient API failure does not poison later runs.
type Cache struct {
	next     Resolver
	onLookup func(hit bool)

	mu      sync.Mutex
	places  map[string]AddressInfo
	coords  map[string]string
	hits    int
	lookups int
}

func NewCache(next Resolver) *Cache {
	return &Cache{
		next:   next,
		places: make(map[string]AddressInfo),
		coords: make(map[string]string),
	}
}

// OnLookup registers a hook called after every lookup with whether the
// cache answered it. Set it before the cache is shared.
func (c *Cache) OnLookup(fn func(hit bool)) { c.onLookup = fn }

func (c *Cache) note(hit bool) {
	if c.onLookup != nil {
		c.onLookup(hit)
	}
}

func (c *Cache) PlaceDetails(ctx context.Context, placeID string) (AddressInfo, error) {
	c.mu.Lock()
	c.lookups++
	if info, ok := c.places[placeID]; ok {
		c.hits++
		c.mu.Unlock()
		c.note(true)
		return info, nil
	}
	c.mu.Unlock()
	c.note(false)

	info, err := c.next.PlaceDetails(ctx, placeID)
	if err != nil {
		return AddressInfo{}, err
	}
	c.mu.Lock()
	c.places[placeID] = info
	c.mu.Unlock()
	return info, nil
}

func (c *Cache) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	key := CoordKey(lat, lng)
	c.mu.Lock()
	c.lookups++
	if addr, ok := c.coords[key]; ok {
		c.hits++
		c.mu.Unlock()
		c.note(true)
		return addr, nil
	}
	c.mu.Unlock()
	c.note(false)

	addr, err := c.next.ReverseGeocode(ctx, lat, lng)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.coords[key] = addr
	c.mu.Unlock()
	return addr, nil
}

// Stats reports lookups sent through the cache and how many hit.
func (c *Cache) Stats() (lookups, hits int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookups, c.hits
}
