// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package registry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/go-zookeeper/zk"
)

// # Discovery

// Callback is invoked after every watch-driven refresh with the fresh
// snapshot. It runs on the watch goroutine; keep it short.
type Callback func(instances []ServiceInstance)

// Discovery maintains a watch-driven cache of live peer instances.
//
// # Concurrency
//
// The instance cache sits behind a read/write lock: selectors take read
// locks on the hot path, refreshes swap slices under the write lock.
// Children watches are one-shot in the ZooKeeper protocol, so each watch
// goroutine re-arms its watch as part of handling an event.
type Discovery struct {
	conn   Conn
	root   string
	logger *slog.Logger

	mu        sync.RWMutex
	instances map[string][]ServiceInstance

	watchMu   sync.Mutex
	callbacks map[string]Callback
	watched   map[string]bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewDiscovery constructs a [Discovery] rooted at root (DefaultRoot when
// empty).
func NewDiscovery(conn Conn, root string, logger *slog.Logger) *Discovery {
	if root == "" {
		root = DefaultRoot
	}
	return &Discovery{
		conn:      conn,
		root:      root,
		logger:    logger,
		instances: make(map[string][]ServiceInstance),
		callbacks: make(map[string]Callback),
		watched:   make(map[string]bool),
		stop:      make(chan struct{}),
	}
}

/*
Subscribe starts watching a service and performs one immediate refresh, so
callers never observe an empty cache until the first membership change.

Description: The callback may be nil. Subscribing twice replaces the
callback without spawning a second watch goroutine.

Parameters:
  - service: string
  - callback: Callback (nullable)

Returns:
  - error: Initial refresh failure
*/
func (discovery *Discovery) Subscribe(service string, callback Callback) error {
	discovery.watchMu.Lock()
	discovery.callbacks[service] = callback
	alreadyWatched := discovery.watched[service]
	discovery.watched[service] = true
	discovery.watchMu.Unlock()

	if _, err := discovery.Refresh(service); err != nil {
		return err
	}
	if alreadyWatched {
		return nil
	}

	discovery.wg.Add(1)
	go discovery.watch(service)
	return nil
}

/*
Refresh lists the service children, decodes each node body, and swaps the
cache.

Description: A node whose body fails to decode is dropped with a warn log;
it never reaches the cache, so selectors only ever see well-formed
instances.

Parameters:
  - service: string

Returns:
  - []ServiceInstance: The fresh snapshot
  - error: Coordination-service listing failures
*/
func (discovery *Discovery) Refresh(service string) ([]ServiceInstance, error) {
	children, _, err := discovery.conn.Children(discovery.root + "/" + service)
	if err != nil {
		return nil, fmt.Errorf("registry: failed to list %s: %w", service, err)
	}
	return discovery.store(service, children), nil
}

// store decodes the children bodies and swaps the cached slice.
func (discovery *Discovery) store(service string, children []string) []ServiceInstance {
	servicePath := discovery.root + "/" + service

	fresh := make([]ServiceInstance, 0, len(children))
	for _, child := range children {
		nodePath := servicePath + "/" + child

		body, _, err := discovery.conn.Get(nodePath)
		if err != nil {
			discovery.logger.Warn("discovery_node_read_failed",
				slog.String("node", nodePath),
				slog.Any("error", err),
			)
			continue
		}

		var instance ServiceInstance
		if err := json.Unmarshal(body, &instance); err != nil {
			discovery.logger.Warn("discovery_instance_undecodable",
				slog.String("node", nodePath),
				slog.Any("error", err),
			)
			continue
		}
		fresh = append(fresh, instance)
	}

	discovery.mu.Lock()
	discovery.instances[service] = fresh
	discovery.mu.Unlock()

	return fresh
}

// watch is the per-service watch loop. It arms a one-shot children watch,
// stores the membership it returned, and blocks until the next event or
// shutdown.
func (discovery *Discovery) watch(service string) {
	defer discovery.wg.Done()
	servicePath := discovery.root + "/" + service

	for {
		children, _, events, err := discovery.conn.ChildrenW(servicePath)
		if err != nil {
			discovery.logger.Warn("discovery_watch_arm_failed",
				slog.String("service", service),
				slog.Any("error", err),
			)
			select {
			case <-discovery.stop:
				return
			case <-time.After(time.Second):
				continue
			}
		}

		snapshot := discovery.store(service, children)
		discovery.notify(service, snapshot)

		select {
		case <-discovery.stop:
			return
		case <-events:
		}
	}
}

// notify looks up the callback and invokes it outside the lock, so a
// callback may safely call back into Subscribe.
func (discovery *Discovery) notify(service string, snapshot []ServiceInstance) {
	discovery.watchMu.Lock()
	callback := discovery.callbacks[service]
	discovery.watchMu.Unlock()

	if callback != nil {
		callback(snapshot)
	}
}

// Close stops every watch goroutine and waits for them to exit.
func (discovery *Discovery) Close() {
	close(discovery.stop)
	discovery.wg.Wait()
}

// # Selection

// GetInstances returns a copy of the cached snapshot for the service.
func (discovery *Discovery) GetInstances(service string) []ServiceInstance {
	discovery.mu.RLock()
	defer discovery.mu.RUnlock()

	cached := discovery.instances[service]
	snapshot := make([]ServiceInstance, len(cached))
	copy(snapshot, cached)
	return snapshot
}

/*
SelectInstance picks one cached instance uniformly at random.

Returns:
  - *ServiceInstance: The chosen instance
  - error: ErrNoInstances when the cache is empty
*/
func (discovery *Discovery) SelectInstance(service string) (*ServiceInstance, error) {
	discovery.mu.RLock()
	defer discovery.mu.RUnlock()

	cached := discovery.instances[service]
	if len(cached) == 0 {
		return nil, ErrNoInstances
	}

	chosen := cached[rand.IntN(len(cached))]
	return &chosen, nil
}

/*
SelectInstanceWeighted picks one cached instance proportionally to its
weight.

Description: Draws r in [1, W] over the weight total W and walks the
prefix sums. When W is not positive (all weights zero or negative) the
selection falls back to uniform.

Parameters:
  - service: string

Returns:
  - *ServiceInstance: The chosen instance
  - error: ErrNoInstances when the cache is empty
*/
func (discovery *Discovery) SelectInstanceWeighted(service string) (*ServiceInstance, error) {
	discovery.mu.RLock()
	defer discovery.mu.RUnlock()

	cached := discovery.instances[service]
	if len(cached) == 0 {
		return nil, ErrNoInstances
	}

	var total int64
	for _, instance := range cached {
		if instance.Weight > 0 {
			total += instance.Weight
		}
	}
	if total <= 0 {
		chosen := cached[rand.IntN(len(cached))]
		return &chosen, nil
	}

	draw := rand.Int64N(total) + 1
	for _, instance := range cached {
		if instance.Weight <= 0 {
			continue
		}
		draw -= instance.Weight
		if draw <= 0 {
			chosen := instance
			return &chosen, nil
		}
	}

	// Unreachable while total equals the sum of positive weights.
	chosen := cached[len(cached)-1]
	return &chosen, nil
}

// Ensure the real client satisfies the seam.
var _ Conn = (*zk.Conn)(nil)
