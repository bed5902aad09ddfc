package domain

import (
	"context"
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"golang.org/x/sync/errgroup"
)

// assignChunk is the number of communes one worker resolves per task.
const assignChunk = 64

type indexedPoint struct {
	geom.Point
	id int
}

// pointIndex answers nearest-point queries over the grid. Queries do not
// mutate the tree, so one index is shared by all workers.
type pointIndex struct {
	tree *rtree.Rtree
}

func newPointIndex(points []GridPoint) *pointIndex {
	tree := rtree.NewTree(25, 50)
	for _, p := range points {
		tree.Insert(&indexedPoint{Point: p.Location(), id: p.ID})
	}
	return &pointIndex{tree: tree}
}

// nearest returns the identifier of the point closest to c. Equidistant
// points resolve to the lowest identifier.
func (ix *pointIndex) nearest(c geom.Point) (int, bool) {
	best, ok := ix.tree.NearestNeighbor(c).(*indexedPoint)
	if !ok || best == nil {
		return 0, false
	}
	id, bestDist := best.id, distance(c, best.Point)

	// Every point at distance bestDist lies in the square of half-width bestDist around c.
	pad := bestDist + 1e-9*(1+bestDist)
	box := &geom.Bounds{
		Min: geom.Point{X: c.X - pad, Y: c.Y - pad},
		Max: geom.Point{X: c.X + pad, Y: c.Y + pad},
	}
	for _, s := range ix.tree.SearchIntersect(box) {
		p, ok := s.(*indexedPoint)
		if !ok {
			continue
		}
		d := distance(c, p.Point)
		if d < bestDist || (d == bestDist && p.id < id) {
			id, bestDist = p.id, d
		}
	}
	return id, true
}

func distance(a, b geom.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// AssignNearest maps every commune to the grid point nearest its centroid.
// Work is spread over up to workers goroutines; results are keyed by commune
// code, so the mapping does not depend on completion order.
func AssignNearest(ctx context.Context, communes []Commune, points []GridPoint, workers int) (Assignment, error) {
	if len(points) == 0 {
		return nil, &Error{Kind: ErrConfig, Op: "assign nearest", Err: fmt.Errorf("empty point set")}
	}
	if len(communes) == 0 {
		return nil, &Error{Kind: ErrConfig, Op: "assign nearest", Err: fmt.Errorf("empty commune set")}
	}
	if workers < 1 {
		workers = 1
	}

	index := newPointIndex(points)
	nearest := make([]int, len(communes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < len(communes); start += assignChunk {
		end := min(start+assignChunk, len(communes))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				id, err := assignOne(index, communes[i])
				if err != nil {
					return err
				}
				nearest[i] = id
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(Assignment, len(communes))
	for i, c := range communes {
		out[c.Code] = nearest[i]
	}
	return out, nil
}

func assignOne(index *pointIndex, c Commune) (int, error) {
	centroid := c.Geometry.Centroid()
	if math.IsNaN(centroid.X) || math.IsNaN(centroid.Y) {
		return 0, &Error{Kind: ErrData, Op: "assign nearest", Commune: c.Code, Err: fmt.Errorf("degenerate geometry has no centroid")}
	}
	id, ok := index.nearest(centroid)
	if !ok {
		return 0, &Error{Kind: ErrLookup, Op: "assign nearest", Commune: c.Code, Err: fmt.Errorf("no grid point found")}
	}
	return id, nil
}
