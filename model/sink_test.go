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

package model_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"m4o.io/osmpbf/model"
)

func TestDefaultFactory(t *testing.T) {
	f := model.DefaultFactory{}

	n, err := f.NewNode(7)
	require.NoError(t, err)
	assert.Equal(t, model.ID(7), n.GetID())
	assert.Nil(t, n.GetTags())
	assert.Nil(t, n.GetInfo())

	w, err := f.NewWay(8)
	require.NoError(t, err)
	assert.Equal(t, model.ID(8), w.ID)

	r, err := f.NewRelation(9)
	require.NoError(t, err)
	assert.Equal(t, model.ID(9), r.ID)

	m, err := f.NewMember(model.WAY, 10, "outer")
	require.NoError(t, err)
	assert.Equal(t, model.Member{ID: 10, Type: model.WAY, Role: "outer"}, m)

	_, err = f.NewMember(model.EntityType(3), 11, "")
	assert.ErrorIs(t, err, model.ErrUnknownEntityType)
}

func TestCollector(t *testing.T) {
	c := &model.Collector{}

	require.NoError(t, c.AcceptWay(&model.Way{ID: 2}))
	require.NoError(t, c.AcceptNode(&model.Node{ID: 1}))
	require.NoError(t, c.AcceptRelation(&model.Relation{ID: 3}))

	assert.Equal(t, 3, c.Len())
	assert.Len(t, c.Nodes, 1)
	assert.Len(t, c.Ways, 1)
	assert.Len(t, c.Relations, 1)

	ids := make([]model.ID, 0, c.Len())
	for _, e := range c.Entities {
		ids = append(ids, e.GetID())
	}

	assert.Equal(t, []model.ID{2, 1, 3}, ids)
}

func TestSinkFunc(t *testing.T) {
	stop := errors.New("stop")

	var seen []string

	s := model.SinkFunc(func(e model.Entity) error {
		switch e.(type) {
		case *model.Node:
			seen = append(seen, "node")
		case *model.Way:
			seen = append(seen, "way")
		case *model.Relation:
			seen = append(seen, "relation")
			return stop
		}

		return nil
	})

	assert.NoError(t, s.AcceptNode(&model.Node{}))
	assert.NoError(t, s.AcceptWay(&model.Way{}))
	assert.ErrorIs(t, s.AcceptRelation(&model.Relation{}), stop)
	assert.Equal(t, []string{"node", "way", "relation"}, seen)

	assert.NoError(t, model.Discard.AcceptNode(&model.Node{}))
}

func TestEntityTypeString(t *testing.T) {
	assert.Equal(t, "NODE", model.NODE.String())
	assert.Equal(t, "WAY", model.WAY.String())
	assert.Equal(t, "RELATION", model.RELATION.String())
	assert.Equal(t, "EntityType(5)", model.EntityType(5).String())
}

func TestEntityType(t *testing.T) {
	entities := []model.Entity{&model.Node{}, &model.Way{}, &model.Relation{}}

	var types []model.EntityType
	for _, e := range entities {
		types = append(types, e.Type())
	}

	assert.Equal(t, []model.EntityType{model.NODE, model.WAY, model.RELATION}, types)
}
