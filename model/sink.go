// Copyright 2017-25 the original author or authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package model

import (
	"errors"
	"fmt"
)

// ErrUnknownEntityType is returned when a member references an entity type
// outside of NODE, WAY and RELATION.
var ErrUnknownEntityType = errors.New("unknown entity type")

// ErrNilEntity reports a Factory that returned neither an entity nor an
// error.
var ErrNilEntity = errors.New("factory returned a nil entity")

// Factory constructs empty entities that the decoder then populates. A
// Factory shared by several decoders running in parallel must be safe for
// concurrent use. Returning a nil entity without an error fails the run
// with ErrNilEntity.
type Factory interface {
	NewNode(id ID) (*Node, error)
	NewWay(id ID) (*Way, error)
	NewRelation(id ID) (*Relation, error)
	NewMember(t EntityType, id ID, role string) (Member, error)
}

// Sink receives fully populated entities in the order they appear in the
// stream. Ownership of each entity passes to the Sink.
type Sink interface {
	AcceptNode(n *Node) error
	AcceptWay(w *Way) error
	AcceptRelation(r *Relation) error
}

// DefaultFactory allocates plain entities.
type DefaultFactory struct{}

var _ Factory = DefaultFactory{}

func (DefaultFactory) NewNode(id ID) (*Node, error) {
	return &Node{ID: id}, nil
}

func (DefaultFactory) NewWay(id ID) (*Way, error) {
	return &Way{ID: id}, nil
}

func (DefaultFactory) NewRelation(id ID) (*Relation, error) {
	return &Relation{ID: id}, nil
}

func (DefaultFactory) NewMember(t EntityType, id ID, role string) (Member, error) {
	if t < NODE || t > RELATION {
		return Member{}, fmt.Errorf("member %d: %w: %d", id, ErrUnknownEntityType, t)
	}

	return Member{ID: id, Type: t, Role: role}, nil
}

// SinkFunc adapts a single callback to the Sink interface.
type SinkFunc func(e Entity) error

var _ Sink = SinkFunc(nil)

func (f SinkFunc) AcceptNode(n *Node) error {
	return f(n)
}

func (f SinkFunc) AcceptWay(w *Way) error {
	return f(w)
}

func (f SinkFunc) AcceptRelation(r *Relation) error {
	return f(r)
}

// Discard is a Sink that drops everything it is given.
var Discard Sink = SinkFunc(func(Entity) error { return nil })

// Collector is a Sink that keeps every entity in memory, in arrival order.
// It is not safe for concurrent use.
type Collector struct {
	Nodes     []*Node
	Ways      []*Way
	Relations []*Relation

	// Entities holds every accepted entity in stream order.
	Entities []Entity
}

var _ Sink = (*Collector)(nil)

func (c *Collector) AcceptNode(n *Node) error {
	c.Nodes = append(c.Nodes, n)
	c.Entities = append(c.Entities, n)

	return nil
}

func (c *Collector) AcceptWay(w *Way) error {
	c.Ways = append(c.Ways, w)
	c.Entities = append(c.Entities, w)

	return nil
}

func (c *Collector) AcceptRelation(r *Relation) error {
	c.Relations = append(c.Relations, r)
	c.Entities = append(c.Entities, r)

	return nil
}

// Len returns the number of accepted entities.
func (c *Collector) Len() int {
	return len(c.Entities)
}
