// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package registry publishes this process into a ZooKeeper service tree and
keeps a watch-driven cache of its peers.

# Layout

Under a persistent root (default /services), each service owns one
persistent child, and each live process owns one ephemeral node below it:

	/services/passport/10.0.0.7:8080  → JSON ServiceInstance

Ephemerality is the liveness signal. A process death severs the session
and the coordination service removes the node within one session timeout;
no explicit deregistration is required for crash cleanup.
*/
package registry

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/go-zookeeper/zk"
)

// DefaultRoot is the persistent tree root used when configuration is silent.
const DefaultRoot = "/services"

// ErrNoInstances is returned by the selectors when the cache holds no live
// instance for the requested service.
var ErrNoInstances = errors.New("registry: no instances available")

// ServiceInstance is the JSON body of one ephemeral node.
type ServiceInstance struct {
	ServiceName string            `json:"service_name"`
	InstanceID  string            `json:"instance_id"`
	Host        string            `json:"host"`
	Port        int               `json:"port"`
	Weight      int64             `json:"weight"`
	Metadata    map[string]string `json:"metadata"`
}

// Address returns the host:port form, which doubles as the instance id and
// the ephemeral node name.
func (instance ServiceInstance) Address() string {
	return net.JoinHostPort(instance.Host, strconv.Itoa(instance.Port))
}

// Validate rejects instances that cannot form a usable node.
func (instance ServiceInstance) Validate() error {
	if instance.ServiceName == "" {
		return errors.New("registry: service name must not be empty")
	}
	if instance.Host == "" {
		return errors.New("registry: host must not be empty")
	}
	if instance.Port <= 0 {
		return fmt.Errorf("registry: port must be positive, got %d", instance.Port)
	}
	return nil
}

// Conn is the narrow slice of the ZooKeeper client the package needs.
// Satisfied by [*zk.Conn]; tests substitute an in-memory fake.
type Conn interface {
	State() zk.State
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	Exists(path string) (bool, *zk.Stat, error)
	Get(path string) ([]byte, *zk.Stat, error)
	Set(path string, data []byte, version int32) (*zk.Stat, error)
	Delete(path string, version int32) error
	Children(path string) ([]string, *zk.Stat, error)
	ChildrenW(path string) ([]string, *zk.Stat, <-chan zk.Event, error)
}
