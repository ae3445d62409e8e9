// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-zookeeper/zk"

	"github.com/taibuivan/yomira-passport/internal/platform/apperr"
)

// # Connection

/*
Connect dials the ZooKeeper ensemble and waits for a live session.

Parameters:
  - servers: []string (host:port ensemble members)
  - sessionTimeout: time.Duration
  - logger: *slog.Logger

Returns:
  - *zk.Conn: Connected client
  - error: Dial failures or session-establishment timeout
*/
func Connect(servers []string, sessionTimeout time.Duration, logger *slog.Logger) (*zk.Conn, error) {
	connection, events, err := zk.Connect(servers, sessionTimeout, zk.WithLogInfo(false))
	if err != nil {
		return nil, fmt.Errorf("registry: failed to dial zookeeper: %w", err)
	}

	deadline := time.After(sessionTimeout)
	for {
		select {
		case event := <-events:
			if event.State == zk.StateHasSession {
				logger.Info("registry_connected",
					slog.Any("servers", servers),
				)
				return connection, nil
			}
		case <-deadline:
			connection.Close()
			return nil, errors.New("registry: timed out waiting for zookeeper session")
		}
	}
}

// # Registrar

// Registry publishes one instance of this process as an ephemeral node.
//
// Register, Update, and Unregister are serialised by a mutex; the
// registered flag makes Unregister idempotent.
type Registry struct {
	conn   Conn
	root   string
	logger *slog.Logger

	mu         sync.Mutex
	registered bool
	nodePath   string
	instance   ServiceInstance
}

// NewRegistry constructs a [Registry] rooted at root (DefaultRoot when empty).
func NewRegistry(conn Conn, root string, logger *slog.Logger) *Registry {
	if root == "" {
		root = DefaultRoot
	}
	return &Registry{conn: conn, root: root, logger: logger}
}

/*
Register publishes the instance as an ephemeral node.

Description: The persistent root and service parents are created
idempotently first. A leftover node from a crashed predecessor at the same
address is overwritten in place; its ephemeral owner is gone, so the write
is safe.

Parameters:
  - instance: ServiceInstance

Returns:
  - error: Validation failure, ServiceUnavailable while disconnected, or
    coordination-service errors
*/
func (registry *Registry) Register(instance ServiceInstance) error {
	if err := instance.Validate(); err != nil {
		return err
	}
	if registry.conn.State() != zk.StateHasSession {
		return apperr.ServiceUnavailable("Coordination service is not connected")
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if instance.InstanceID == "" {
		instance.InstanceID = instance.Address()
	}

	servicePath := registry.root + "/" + instance.ServiceName
	if err := registry.ensurePersistent(registry.root); err != nil {
		return err
	}
	if err := registry.ensurePersistent(servicePath); err != nil {
		return err
	}

	body, err := json.Marshal(instance)
	if err != nil {
		return fmt.Errorf("registry: failed to encode instance: %w", err)
	}

	nodePath := servicePath + "/" + instance.Address()
	_, err = registry.conn.Create(nodePath, body, zk.FlagEphemeral, zk.WorldACL(zk.PermAll))
	if errors.Is(err, zk.ErrNodeExists) {
		_, err = registry.conn.Set(nodePath, body, -1)
	}
	if err != nil {
		return fmt.Errorf("registry: failed to create node %s: %w", nodePath, err)
	}

	registry.registered = true
	registry.nodePath = nodePath
	registry.instance = instance

	registry.logger.Info("registry_instance_registered",
		slog.String("node", nodePath),
		slog.Int64("weight", instance.Weight),
	)
	return nil
}

/*
Unregister removes the ephemeral node.

Description: Idempotent. A missing node (session already expired, or never
registered) is a successful no-op. Runs during shutdown.
*/
func (registry *Registry) Unregister() error {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if !registry.registered {
		return nil
	}

	err := registry.conn.Delete(registry.nodePath, -1)
	if err != nil && !errors.Is(err, zk.ErrNoNode) {
		return fmt.Errorf("registry: failed to delete node %s: %w", registry.nodePath, err)
	}

	registry.registered = false
	registry.logger.Info("registry_instance_unregistered",
		slog.String("node", registry.nodePath),
	)
	return nil
}

/*
Update overwrites the published node body, typically after a weight change.

Parameters:
  - instance: ServiceInstance

Returns:
  - error: Validation failure, not-registered, or coordination-service errors
*/
func (registry *Registry) Update(instance ServiceInstance) error {
	if err := instance.Validate(); err != nil {
		return err
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if !registry.registered {
		return errors.New("registry: instance is not registered")
	}

	if instance.InstanceID == "" {
		instance.InstanceID = instance.Address()
	}

	body, err := json.Marshal(instance)
	if err != nil {
		return fmt.Errorf("registry: failed to encode instance: %w", err)
	}

	if _, err := registry.conn.Set(registry.nodePath, body, -1); err != nil {
		return fmt.Errorf("registry: failed to update node %s: %w", registry.nodePath, err)
	}

	registry.instance = instance
	registry.logger.Info("registry_instance_updated",
		slog.String("node", registry.nodePath),
		slog.Int64("weight", instance.Weight),
	)
	return nil
}

// ensurePersistent creates a persistent node if absent. Concurrent creation
// by a peer is fine.
func (registry *Registry) ensurePersistent(path string) error {
	exists, _, err := registry.conn.Exists(path)
	if err != nil {
		return fmt.Errorf("registry: failed to check %s: %w", path, err)
	}
	if exists {
		return nil
	}

	_, err = registry.conn.Create(path, nil, 0, zk.WorldACL(zk.PermAll))
	if err != nil && !errors.Is(err, zk.ErrNodeExists) {
		return fmt.Errorf("registry: failed to create %s: %w", path, err)
	}
	return nil
}
