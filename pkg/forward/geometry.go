package forward

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"

	"geoem1d/internal/models"
	"geoem1d/pkg/emerror"
	"geoem1d/pkg/hankel"
	"geoem1d/pkg/kernel"
	"geoem1d/pkg/layers"
	"geoem1d/pkg/quadrature"
)

// coincident is the distance in m below which receivers share a site
const coincident = 1e-6

// location is a receiver position in the site index
type location struct {
	models.Point
	index int
}

// Compare implements the kdtree.Comparable interface
func (p location) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(location)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	case 2:
		return p.Z - q.Z
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions
func (p location) Dims() int { return 3 }

// Distance returns the squared euclidean distance
func (p location) Distance(c kdtree.Comparable) float64 {
	d := p.Sub(c.(location).Point)
	return d.X*d.X + d.Y*d.Y + d.Z*d.Z
}

type locations []location

func (p locations) Index(i int) kdtree.Comparable         { return p[i] }
func (p locations) Len() int                              { return len(p) }
func (p locations) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p locations) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(plane{locations: p, Dim: d}, kdtree.MedianOfRandoms(plane{locations: p, Dim: d}, 100))
}

// plane implements sort.Interface and kdtree.SortSlicer for locations
type plane struct {
	locations
	kdtree.Dim
}

func (p plane) Less(i, j int) bool {
	return p.locations[i].Compare(p.locations[j], p.Dim) < 0
}

func (p plane) Slice(start, end int) kdtree.SortSlicer {
	return plane{locations: p.locations[start:end], Dim: p.Dim}
}

func (p plane) Swap(i, j int) {
	p.locations[i], p.locations[j] = p.locations[j], p.locations[i]
}

// sourcePoint is one integration point of the source. Weight is the
// bipole length element, 1 for point sources.
type sourcePoint struct {
	pos    models.Point
	weight float64
}

// pair is one source point and receiver site combination
type pair struct {
	src, site int
	point     hankel.Point
}

// group collects the pairs sharing source and receiver depth; they share
// one kernel configuration per frequency
type group struct {
	zs, zr float64
	pairs  []pair
	comps  []kernel.Component
	index  map[kernel.Component]int
}

// offsets returns the horizontal offsets of the group
func (g *group) offsets() []float64 {
	out := make([]float64, len(g.pairs))
	for i, p := range g.pairs {
		out[i] = p.point.Offset
	}
	return out
}

// geometry is the resolved source and receiver layout of a run
type geometry struct {
	srcField kernel.Field
	sdir     [3]float64
	points   []sourcePoint

	sites  []models.Point
	alias  []int
	rdir   [][3]float64
	rfield []kernel.Field

	groups []*group

	// at[src][site] locates a pair as group and pair index
	at [][]slot

	notes []string
}

type slot struct{ group, pair int }

func fieldOf(k models.ReceiverKind) kernel.Field {
	if k == models.ElectricReceiver {
		return kernel.Electric
	}
	return kernel.Magnetic
}

func finite(p models.Point) bool {
	for _, v := range []float64{p.X, p.Y, p.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// newGeometry validates the source and receivers against the model and
// groups all source point and receiver site pairs by depth
func newGeometry(model *layers.Model, in Input, opts Options) (*geometry, error) {
	src := in.Source
	g := &geometry{}

	if !finite(src.Position) {
		return nil, emerror.Configf("source.position", "coordinates must be finite")
	}
	switch src.Kind {
	case models.ElectricDipole, models.MagneticDipole:
		g.points = []sourcePoint{{pos: src.Position, weight: 1}}
		g.sdir = models.Direction(src.Azimuth, src.Dip)
	case models.Loop:
		if !(src.Area > 0) {
			return nil, emerror.Configf("source.area", "loop area must be positive, got %g", src.Area)
		}
		if src.Turns < 0 {
			return nil, emerror.Configf("source.turns", "must not be negative, got %g", src.Turns)
		}
		g.points = []sourcePoint{{pos: src.Position, weight: 1}}
		g.sdir = models.Direction(src.Azimuth, src.Dip)
	case models.ElectricBipole:
		if !finite(src.End) {
			return nil, emerror.Configf("source.end", "coordinates must be finite")
		}
		seg := src.End.Sub(src.Position)
		length := seg.Length()
		if !(length > 0) {
			return nil, emerror.Configf("source.end", "bipole ends coincide")
		}
		n := src.Points
		if n == 0 {
			n = 5
		}
		if n < 1 {
			return nil, emerror.Configf("source.points", "must be positive, got %d", src.Points)
		}
		g.sdir = [3]float64{seg.X / length, seg.Y / length, seg.Z / length}
		rule := quadrature.Legendre(n)
		for i, x := range rule.X {
			s := (x + 1) / 2
			g.points = append(g.points, sourcePoint{
				pos: models.Point{
					X: src.Position.X + s*seg.X,
					Y: src.Position.Y + s*seg.Y,
					Z: src.Position.Z + s*seg.Z,
				},
				weight: rule.W[i] * length / 2,
			})
		}
	default:
		return nil, emerror.Configf("source.kind", "unknown source kind %d", src.Kind)
	}
	g.srcField = kernel.Electric
	if src.Kind == models.MagneticDipole || src.Kind == models.Loop {
		g.srcField = kernel.Magnetic
	}
	if src.Strength < 0 || math.IsNaN(src.Strength) {
		return nil, emerror.Configf("source.strength", "must not be negative, got %g", src.Strength)
	}
	for i, p := range g.points {
		if _, err := model.LayerOf(p.pos.Z, opts.Policy); err != nil {
			return nil, fmt.Errorf("source point %d: %w", i, err)
		}
	}

	if len(in.Receivers) == 0 {
		return nil, emerror.Configf("receivers", "at least one receiver is required")
	}
	g.rdir = make([][3]float64, len(in.Receivers))
	g.rfield = make([]kernel.Field, len(in.Receivers))
	for i, r := range in.Receivers {
		field := fmt.Sprintf("receivers[%d]", i)
		if !finite(r.Position) {
			return nil, emerror.Configf(field+".position", "coordinates must be finite")
		}
		switch r.Kind {
		case models.ElectricReceiver, models.MagneticReceiver:
		case models.LoopReceiver:
			if !(r.Area > 0) {
				return nil, emerror.Configf(field+".area", "loop area must be positive, got %g", r.Area)
			}
		default:
			return nil, emerror.Configf(field+".kind", "unknown receiver kind %d", r.Kind)
		}
		if _, err := model.LayerOf(r.Position.Z, opts.Policy); err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		g.rdir[i] = models.Direction(r.Azimuth, r.Dip)
		g.rfield[i] = fieldOf(r.Kind)
	}

	g.dedupe(in.Receivers)
	g.pair(in.Receivers, opts.MinOffset)
	return g, nil
}

// dedupe maps coincident receivers onto one site so their tensors are
// computed once
func (g *geometry) dedupe(receivers []Receiver) {
	locs := make(locations, len(receivers))
	for i, r := range receivers {
		locs[i] = location{Point: r.Position, index: i}
	}
	tree := kdtree.New(append(locations(nil), locs...), false)

	g.alias = make([]int, len(receivers))
	for i := range g.alias {
		g.alias[i] = -1
	}
	for i, loc := range locs {
		if g.alias[i] >= 0 {
			continue
		}
		site := len(g.sites)
		g.sites = append(g.sites, loc.Point)
		keeper := kdtree.NewDistKeeper(coincident * coincident)
		tree.NearestSet(keeper, loc)
		for _, c := range keeper.Heap {
			if c.Comparable == nil {
				continue
			}
			if j := c.Comparable.(location).index; g.alias[j] < 0 {
				g.alias[j] = site
			}
		}
		g.alias[i] = site
	}
	if n := len(receivers) - len(g.sites); n > 0 {
		g.notes = append(g.notes, fmt.Sprintf("%d coincident receivers share a site", n))
	}
}

// pair builds the depth groups and their component lists
func (g *geometry) pair(receivers []Receiver, minOffset float64) {
	type key struct{ zs, zr float64 }
	byDepth := make(map[key]int)

	// receiver components needed at every site
	need := make([]map[kernel.Component]bool, len(g.sites))
	for i := range need {
		need[i] = make(map[kernel.Component]bool)
	}
	for i := range receivers {
		site := g.alias[i]
		for ra, rc := range g.rdir[i] {
			if rc == 0 {
				continue
			}
			for sa, sc := range g.sdir {
				if sc == 0 {
					continue
				}
				need[site][kernel.Component{Rec: g.rfield[i], RecAxis: kernel.Axis(ra), Src: g.srcField, SrcAxis: kernel.Axis(sa)}] = true
			}
		}
	}

	clamped := 0
	g.at = make([][]slot, len(g.points))
	for si, sp := range g.points {
		g.at[si] = make([]slot, len(g.sites))
		for ri, site := range g.sites {
			k := key{sp.pos.Z, site.Z}
			gi, ok := byDepth[k]
			if !ok {
				gi = len(g.groups)
				byDepth[k] = gi
				g.groups = append(g.groups, &group{zs: sp.pos.Z, zr: site.Z, index: make(map[kernel.Component]int)})
			}
			grp := g.groups[gi]
			g.at[si][ri] = slot{group: gi, pair: len(grp.pairs)}

			dx, dy := site.X-sp.pos.X, site.Y-sp.pos.Y
			off := math.Hypot(dx, dy)
			if off < minOffset {
				off = minOffset
				clamped++
			}
			grp.pairs = append(grp.pairs, pair{src: si, site: ri, point: hankel.Point{Offset: off, Azimuth: math.Atan2(dy, dx)}})
			for _, c := range kernel.AllComponents() {
				if _, seen := grp.index[c]; need[ri][c] && !seen {
					grp.index[c] = len(grp.comps)
					grp.comps = append(grp.comps, c)
				}
			}
		}
	}
	if clamped > 0 {
		g.notes = append(g.notes, fmt.Sprintf("%d offsets below %g m were clamped to it", clamped, minOffset))
	}
}

// logSpaced reports whether at least three distinct offsets form a
// geometric sequence, which makes the lagged convolution worthwhile
func logSpaced(offsets []float64) bool {
	d := distinctSorted(offsets)
	if len(d) < 3 {
		return false
	}
	step := math.Log(d[1] / d[0])
	for i := 2; i < len(d); i++ {
		if math.Abs(math.Log(d[i]/d[i-1])-step) > 0.01*step {
			return false
		}
	}
	return true
}
