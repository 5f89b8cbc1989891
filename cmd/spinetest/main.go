// Command spinetest segments mask images, builds the spine of every object
// and reports lengths, widths and cross-frame projections.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	pcimage "cell-spine/internal/image"
	"cell-spine/internal/lineage"
	"cell-spine/internal/params"
	"cell-spine/internal/region"
	"cell-spine/internal/segment"
	"cell-spine/internal/spine"
	"cell-spine/internal/thinning"
	"cell-spine/internal/version"
	"cell-spine/internal/voxel"
	"cell-spine/pkg/colorutil"
	"cell-spine/pkg/geometry"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	paramsPath := flag.String("params", "", "JSON parameter overrides (default ~/.config/cell-spine/params.json)")
	pixelSize := flag.Float64("pixel", 0, "Pixel size in µm (overrides TIFF calibration)")
	cvThin := flag.Bool("cvthin", false, "Use OpenCV contrib thinning instead of the built-in one")
	overlayDir := flag.String("overlay", "", "Directory for PNG overlays of contours and spines")
	margin := flag.Float64("margin", 2, "Distance from the poles excluded from the mean width, in pixels")
	verbose := flag.Bool("v", false, "Log spine construction progress")
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	frames := flag.Args()
	if len(frames) == 0 {
		fmt.Println("Usage: spinetest [-params p.json] [-pixel 0.065] [-cvthin] [-overlay dir] mask1.tif [mask2.tif ...]")
		os.Exit(1)
	}

	path := *paramsPath
	if path == "" {
		path = params.DefaultPath()
	}
	p, err := params.Load(path)
	if err != nil {
		log.Fatalf("params: %v", err)
	}

	opts := p.Spine(spine.DefaultOptions())
	if *verbose {
		opts = opts.WithLogger(log.Printf)
	}
	var thinner thinning.Thinner = thinning.ZhangSuen{}
	if *cvThin {
		thinner = segment.Thinner{}
	}
	builder := spine.NewBuilder(thinner, opts)

	lin := lineage.New()
	var previous []tracked
	for t, framePath := range frames {
		frame, err := pcimage.Load(framePath)
		if err != nil {
			log.Fatalf("frame %d: %v", t, err)
		}
		size := frame.PixelSize
		if *pixelSize > 0 {
			size = *pixelSize
		}
		fmt.Printf("Frame %d: %s (%dx%d, %.4f µm/px)\n", t, framePath, frame.Width(), frame.Height(), size)

		masks, err := segment.Objects(frame.Image, segmentParams(p, segment.DefaultParams().WithPixelSize(size)))
		if err != nil {
			log.Fatalf("frame %d: %v", t, err)
		}
		regions := make([]region.Region, len(masks))
		for i, m := range masks {
			regions[i] = m
		}

		results, errs := builder.BuildAll(regions)
		fmt.Printf("%-6s %8s %10s %10s %10s\n", "Label", "Area", "Vertebrae", "Length", "Width")
		var current []tracked
		for i, m := range masks {
			if errs[i] != nil {
				fmt.Printf("%-6d %8d %10s %10s %10s  (%v)\n", m.Label, m.Area(), "-", "NaN", "NaN", errs[i])
				continue
			}
			res := results[i]
			fmt.Printf("%-6d %8d %10d %10.2f %10.2f\n",
				m.Label, m.Area(), len(res.Spine), res.PhysicalLength(), res.MeanWidth(*margin)*res.ScaleXY)
			current = append(current, tracked{object: lin.Add(t, m.Label, res), voxels: m.Voxels()})
		}

		if *overlayDir != "" {
			out := filepath.Join(*overlayDir, strings.TrimSuffix(filepath.Base(framePath), filepath.Ext(framePath))+"_spine.png")
			if err := writeOverlay(frame, results, out); err != nil {
				log.Printf("overlay: %v", err)
			}
		}

		link(lin, previous, current)
		previous = current
	}

	if len(frames) > 1 {
		reportProjections(lin)
	}
}

// segmentParams applies the segmentation overrides of p to base.
func segmentParams(p *params.Params, base segment.Params) segment.Params {
	base.Threshold = float32(p.FloatWithFallback(params.KeyThreshold, float64(base.Threshold)))
	base.Otsu = p.Bool(params.KeyOtsu, base.Otsu)
	base.OpenKernel = p.IntWithFallback(params.KeyOpenKernel, base.OpenKernel)
	base.MinArea = p.IntWithFallback(params.KeyMinArea, base.MinArea)
	base.MaxArea = p.IntWithFallback(params.KeyMaxArea, base.MaxArea)
	base.DropBorders = p.Bool(params.KeyDropBorders, base.DropBorders)
	return base
}

type tracked struct {
	object *lineage.Object
	voxels voxel.Set
}

// link attaches every object of the current frame to the previous-frame
// object it overlaps most. A parent keeps at most its two largest overlaps.
func link(lin *lineage.Lineage, previous, current []tracked) {
	type claim struct {
		child   uuid.UUID
		overlap int
	}
	claims := make(map[uuid.UUID][]claim)
	for _, c := range current {
		var best uuid.UUID
		bestOverlap := 0
		for _, p := range previous {
			n := 0
			for v := range c.voxels {
				if p.voxels.Has(v) {
					n++
				}
			}
			if n > bestOverlap {
				best, bestOverlap = p.object.ID, n
			}
		}
		if bestOverlap > 0 {
			claims[best] = append(claims[best], claim{c.object.ID, bestOverlap})
		}
	}
	for parent, cs := range claims {
		for len(cs) > 2 {
			smallest := 0
			for i := range cs {
				if cs[i].overlap < cs[smallest].overlap {
					smallest = i
				}
			}
			cs = append(cs[:smallest], cs[smallest+1:]...)
		}
		for _, c := range cs {
			if err := lin.Link(parent, c.child); err != nil {
				log.Printf("link: %v", err)
			}
		}
	}
}

// reportProjections carries the centre of every first-frame object to its
// descendants in the last frame.
func reportProjections(lin *lineage.Lineage) {
	objects := lin.Objects()
	if len(objects) == 0 {
		return
	}
	locs := lineage.BuildLocalizers(objects)
	proj := lineage.NewProjector(lin, locs)

	first, last := objects[0].Frame, objects[len(objects)-1].Frame
	fmt.Printf("\nProjections from frame %d to frame %d:\n", first, last)
	for _, src := range objects {
		if src.Frame != first {
			continue
		}
		loc := locs[src.ID]
		if loc == nil {
			continue
		}
		c := loc.Coordinate(loc.Length()/2, 0)
		for _, dst := range objects {
			if dst.Frame != last {
				continue
			}
			path, ok := lin.Path(src.ID, dst.ID)
			if !ok || len(path) < 2 {
				continue
			}
			if out, ok := proj.Project(c, path); ok {
				fmt.Printf("  object %d s=%.2f -> object %d s=%.2f (%.0f%% of %.2f)\n",
					src.Label, c.Curvilinear, dst.Label, out.Curvilinear, 100*out.Relative(), out.Length)
			} else {
				fmt.Printf("  object %d s=%.2f -> object %d: not projectable\n", src.Label, c.Curvilinear, dst.Label)
			}
		}
	}
}

func writeOverlay(frame *pcimage.Frame, results []*spine.Result, path string) error {
	ov := pcimage.NewOverlay(frame.Image)
	for i, res := range results {
		if res == nil {
			continue
		}
		ov.AddPoints(res.Circular, colorutil.Palette(i), 0.8)
		ov.AddPoints(res.Spine.Points(), colorutil.Spine, 1)
		if n := len(res.Spine); n > 0 {
			ov.AddPoints([]geometry.Point2D{res.Spine[0].Point, res.Spine[n-1].Point}, colorutil.Pole, 1)
		}
	}
	return ov.SavePNG(path)
}
