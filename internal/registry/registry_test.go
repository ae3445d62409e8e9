// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package registry_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/go-zookeeper/zk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira-passport/internal/platform/apperr"
	"github.com/taibuivan/yomira-passport/internal/registry"
)

// # Fake Coordination Client

// fakeConn is an in-memory node tree implementing registry.Conn.
type fakeConn struct {
	mu       sync.Mutex
	state    zk.State
	nodes    map[string][]byte
	watchers map[string][]chan zk.Event
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		state:    zk.StateHasSession,
		nodes:    make(map[string][]byte),
		watchers: make(map[string][]chan zk.Event),
	}
}

func (conn *fakeConn) State() zk.State {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	return conn.state
}

func (conn *fakeConn) setState(state zk.State) {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	conn.state = state
}

func (conn *fakeConn) Create(path string, data []byte, _ int32, _ []zk.ACL) (string, error) {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if _, exists := conn.nodes[path]; exists {
		return "", zk.ErrNodeExists
	}
	conn.nodes[path] = data
	conn.fireLocked(parentOf(path))
	return path, nil
}

func (conn *fakeConn) Exists(path string) (bool, *zk.Stat, error) {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	_, exists := conn.nodes[path]
	return exists, &zk.Stat{}, nil
}

func (conn *fakeConn) Get(path string) ([]byte, *zk.Stat, error) {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	data, exists := conn.nodes[path]
	if !exists {
		return nil, nil, zk.ErrNoNode
	}
	return data, &zk.Stat{}, nil
}

func (conn *fakeConn) Set(path string, data []byte, _ int32) (*zk.Stat, error) {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if _, exists := conn.nodes[path]; !exists {
		return nil, zk.ErrNoNode
	}
	conn.nodes[path] = data
	return &zk.Stat{}, nil
}

func (conn *fakeConn) Delete(path string, _ int32) error {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if _, exists := conn.nodes[path]; !exists {
		return zk.ErrNoNode
	}
	delete(conn.nodes, path)
	conn.fireLocked(parentOf(path))
	return nil
}

func (conn *fakeConn) Children(path string) ([]string, *zk.Stat, error) {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	return conn.childrenLocked(path), &zk.Stat{}, nil
}

func (conn *fakeConn) ChildrenW(path string) ([]string, *zk.Stat, <-chan zk.Event, error) {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	watcher := make(chan zk.Event, 1)
	conn.watchers[path] = append(conn.watchers[path], watcher)
	return conn.childrenLocked(path), &zk.Stat{}, watcher, nil
}

func (conn *fakeConn) childrenLocked(path string) []string {
	prefix := path + "/"
	var children []string
	for node := range conn.nodes {
		if rest, ok := strings.CutPrefix(node, prefix); ok && !strings.Contains(rest, "/") {
			children = append(children, rest)
		}
	}
	return children
}

// fireLocked delivers one event to every armed watcher and disarms them,
// matching the protocol's one-shot watch semantics.
func (conn *fakeConn) fireLocked(path string) {
	for _, watcher := range conn.watchers[path] {
		watcher <- zk.Event{Type: zk.EventNodeChildrenChanged, Path: path}
		close(watcher)
	}
	conn.watchers[path] = nil
}

func parentOf(path string) string {
	index := strings.LastIndex(path, "/")
	if index <= 0 {
		return "/"
	}
	return path[:index]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testInstance(port int, weight int64) registry.ServiceInstance {
	return registry.ServiceInstance{
		ServiceName: "passport",
		Host:        "10.0.0.7",
		Port:        port,
		Weight:      weight,
	}
}

// # Tests

/*
TestRegistry_Register covers the happy path: parents are created, the node
body decodes back to the instance, and the id defaults to host:port.
*/
func TestRegistry_Register(t *testing.T) {
	conn := newFakeConn()
	reg := registry.NewRegistry(conn, "/services", discardLogger())

	require.NoError(t, reg.Register(testInstance(8080, 100)))

	body, ok := conn.nodes["/services/passport/10.0.0.7:8080"]
	require.True(t, ok)

	var decoded registry.ServiceInstance
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "10.0.0.7:8080", decoded.InstanceID)
	assert.Equal(t, int64(100), decoded.Weight)

	_, hasRoot := conn.nodes["/services"]
	_, hasService := conn.nodes["/services/passport"]
	assert.True(t, hasRoot)
	assert.True(t, hasService)
}

/*
TestRegistry_Register_Rejections covers the disconnected and invalid
instance paths.
*/
func TestRegistry_Register_Rejections(t *testing.T) {
	conn := newFakeConn()
	reg := registry.NewRegistry(conn, "/services", discardLogger())

	conn.setState(zk.StateDisconnected)
	err := reg.Register(testInstance(8080, 100))
	assert.True(t, apperr.HasCode(err, apperr.CodeServiceUnavailable))
	conn.setState(zk.StateHasSession)

	assert.Error(t, reg.Register(registry.ServiceInstance{ServiceName: "passport", Host: "", Port: 8080}))
	assert.Error(t, reg.Register(registry.ServiceInstance{ServiceName: "passport", Host: "10.0.0.7", Port: 0}))
	assert.Error(t, reg.Register(registry.ServiceInstance{ServiceName: "", Host: "10.0.0.7", Port: 8080}))
}

/*
TestRegistry_Register_OverwritesStaleNode checks that a leftover node at
the same address is overwritten instead of failing registration.
*/
func TestRegistry_Register_OverwritesStaleNode(t *testing.T) {
	conn := newFakeConn()
	conn.nodes["/services"] = nil
	conn.nodes["/services/passport"] = nil
	conn.nodes["/services/passport/10.0.0.7:8080"] = []byte(`{"weight":1}`)

	reg := registry.NewRegistry(conn, "/services", discardLogger())
	require.NoError(t, reg.Register(testInstance(8080, 50)))

	var decoded registry.ServiceInstance
	require.NoError(t, json.Unmarshal(conn.nodes["/services/passport/10.0.0.7:8080"], &decoded))
	assert.Equal(t, int64(50), decoded.Weight)
}

/*
TestRegistry_UnregisterIdempotent checks that Unregister removes the node
once and is a no-op afterwards, including before any Register.
*/
func TestRegistry_UnregisterIdempotent(t *testing.T) {
	conn := newFakeConn()
	reg := registry.NewRegistry(conn, "/services", discardLogger())

	require.NoError(t, reg.Unregister())

	require.NoError(t, reg.Register(testInstance(8080, 100)))
	require.NoError(t, reg.Unregister())

	_, exists := conn.nodes["/services/passport/10.0.0.7:8080"]
	assert.False(t, exists)

	require.NoError(t, reg.Unregister())
}

/*
TestRegistry_Update checks the SetData path and the not-registered guard.
*/
func TestRegistry_Update(t *testing.T) {
	conn := newFakeConn()
	reg := registry.NewRegistry(conn, "/services", discardLogger())

	assert.Error(t, reg.Update(testInstance(8080, 100)))

	require.NoError(t, reg.Register(testInstance(8080, 100)))
	require.NoError(t, reg.Update(testInstance(8080, 500)))

	var decoded registry.ServiceInstance
	require.NoError(t, json.Unmarshal(conn.nodes["/services/passport/10.0.0.7:8080"], &decoded))
	assert.Equal(t, int64(500), decoded.Weight)
}
