// Package inmemorystore provides an ephemeral, thread-safe, in-memory
// implementation of the nodestore.Store interface.
//
// # Purpose
//
// This package implements the execution state store of an open project. It
// keeps node states, loop progress and failures in memory using sync.Map for
// fine-grained concurrent access without global lock contention.
//
// # Concurrency Model
//
// sync.Map suits this workload:
//   - **Write-Heavy:** workers constantly flip states while jobs run
//   - **Independent Keys:** each node's state is independent of the others
//   - **Concurrent Reads + Writes:** view builders read while workers write
//
// State is lost when the project closes; nothing is persisted.
package inmemorystore

import (
	"context"
	"sync"

	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/nodestore"
)

// Store is an in-memory implementation of nodestore.Store.
//
// The store maintains three independent sync.Maps:
//   - states: node ID to nodestore.State
//   - loops: node ID to nodestore.LoopInfo
//   - errors: node ID to the error of the last failed execution
type Store struct {
	states sync.Map
	loops  sync.Map
	errors sync.Map
}

// New creates a new, empty in-memory execution state store.
func New() nodestore.Store {
	return &Store{}
}

// SetState updates the execution state of a node.
func (s *Store) SetState(ctx context.Context, id nodeid.ID, state nodestore.State) error {
	s.states.Store(id, state)
	return nil
}

// GetState retrieves the execution state of a node.
// If no state has been set, it returns StateConfigured.
func (s *Store) GetState(ctx context.Context, id nodeid.ID) (nodestore.State, error) {
	state, ok := s.states.Load(id)
	if !ok {
		return nodestore.StateConfigured, nil
	}
	return state.(nodestore.State), nil
}

// SetLoop records the loop progress of a node.
func (s *Store) SetLoop(ctx context.Context, id nodeid.ID, info nodestore.LoopInfo) error {
	s.loops.Store(id, info)
	return nil
}

// GetLoop retrieves the loop progress of a node.
func (s *Store) GetLoop(ctx context.Context, id nodeid.ID) (nodestore.LoopInfo, error) {
	info, ok := s.loops.Load(id)
	if !ok {
		return nodestore.LoopInfo{Status: nodestore.LoopNone}, nil
	}
	return info.(nodestore.LoopInfo), nil
}

// SetError records the failure of a node; nil clears it.
func (s *Store) SetError(ctx context.Context, id nodeid.ID, nodeErr error) error {
	if nodeErr == nil {
		s.errors.Delete(id)
		return nil
	}
	s.errors.Store(id, nodeErr)
	return nil
}

// GetError retrieves the recorded failure of a node.
func (s *Store) GetError(ctx context.Context, id nodeid.ID) (error, error) {
	err, ok := s.errors.Load(id)
	if !ok {
		return nil, nil // If not found, there is no error.
	}
	return err.(error), nil
}

// Delete forgets all state recorded for a node.
func (s *Store) Delete(ctx context.Context, id nodeid.ID) error {
	s.states.Delete(id)
	s.loops.Delete(id)
	s.errors.Delete(id)
	return nil
}
