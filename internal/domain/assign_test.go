package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignNearest(t *testing.T) {
	points := []GridPoint{
		{ID: 0, Lat: 5, Lon: 1},
		{ID: 1, Lat: 5, Lon: 20},
	}

	t.Run("centroid nearest point", func(t *testing.T) {
		got, err := AssignNearest(context.Background(), twoDepartmentCommunes(), points, 2)
		require.NoError(t, err)
		assert.Equal(t, Assignment{"27001": 0, "27002": 0, "28001": 1}, got)
	})

	t.Run("equidistant points resolve to lowest id", func(t *testing.T) {
		tied := []GridPoint{
			{ID: 1, Lat: 0, Lon: 1},
			{ID: 0, Lat: 0, Lon: -1},
			{ID: 2, Lat: 1, Lon: 0},
		}
		communes := []Commune{{Code: "c", Department: "27", Geometry: rect(-0.5, -1.5, 0.5, -0.5)}}

		for range 10 {
			got, err := AssignNearest(context.Background(), communes, tied, 1)
			require.NoError(t, err)
			assert.Equal(t, 0, got["c"])
		}
	})

	t.Run("worker count does not change the result", func(t *testing.T) {
		var communes []Commune
		for i := range 300 {
			x := float64(i % 30)
			y := float64(i / 30)
			communes = append(communes, Commune{
				Code:       fmt.Sprintf("27%03d", i),
				Department: "27",
				Geometry:   rect(x, y, x+1, y+1),
			})
		}
		var grid []GridPoint
		for i := range 12 {
			grid = append(grid, GridPoint{ID: i, Lat: float64(i%3) * 4, Lon: float64(i/3) * 8})
		}

		serial, err := AssignNearest(context.Background(), communes, grid, 1)
		require.NoError(t, err)
		parallel, err := AssignNearest(context.Background(), communes, grid, 8)
		require.NoError(t, err)
		assert.Equal(t, serial, parallel)
		assert.Len(t, parallel, 300)

		ids := make(map[int]bool, len(grid))
		for _, pt := range grid {
			ids[pt.ID] = true
		}
		for _, c := range communes {
			id, ok := parallel[c.Code]
			require.True(t, ok, c.Code)
			assert.True(t, ids[id], "%s assigned to unknown point %d", c.Code, id)
		}
	})

	t.Run("empty points", func(t *testing.T) {
		_, err := AssignNearest(context.Background(), twoDepartmentCommunes(), nil, 1)
		assert.True(t, errors.Is(err, ErrConfig))
	})

	t.Run("empty communes", func(t *testing.T) {
		_, err := AssignNearest(context.Background(), nil, points, 1)
		assert.True(t, errors.Is(err, ErrConfig))
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := AssignNearest(ctx, twoDepartmentCommunes(), points, 1)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestPointIndexNearest(t *testing.T) {
	ix := newPointIndex([]GridPoint{
		{ID: 3, Lat: 10, Lon: 10},
		{ID: 4, Lat: 0, Lon: 0},
	})
	id, ok := ix.nearest(geom.Point{X: 1, Y: 1})
	assert.True(t, ok)
	assert.Equal(t, 4, id)

	id, ok = ix.nearest(geom.Point{X: 9, Y: 8})
	assert.True(t, ok)
	assert.Equal(t, 3, id)
}
