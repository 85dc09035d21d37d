// Command gridpath-load drives a gridpath server with synthetic random walks
// and reports request latencies.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/gridpath/internal/client"
	"github.com/banshee-data/gridpath/internal/grid"
)

var (
	addr     = flag.String("addr", "127.0.0.1:4321", "Server address")
	clients  = flag.Int("clients", 8, "Concurrent client connections")
	walks    = flag.Int("walks", 100, "Walks per client")
	steps    = flag.Int("steps", 50, "Points per walk")
	span     = flag.Int64("span", 200, "Walk area side in cells")
	queries  = flag.Int("queries", 20, "One-to-one queries per client after walking")
	oneToAll = flag.Bool("one-to-all", true, "Finish each client with a one-to-all query")
	reset    = flag.Bool("reset", false, "Reset the grid before starting")
	seed     = flag.Int64("seed", 1, "Random seed")
)

// latencies collects per-kind request durations from every client.
type latencies struct {
	mu sync.Mutex
	by map[grid.Kind][]time.Duration
}

func (l *latencies) add(kind grid.Kind, d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.by[kind] = append(l.by[kind], d)
}

func (l *latencies) report() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, kind := range []grid.Kind{grid.KindWalk, grid.KindOneToOne, grid.KindOneToAll} {
		ds := l.by[kind]
		if len(ds) == 0 {
			continue
		}
		sort.Slice(ds, func(i, j int) bool { return ds[i] < ds[j] })
		fmt.Printf("%-11s n=%-6d p50=%-10v p95=%-10v max=%v\n",
			kind, len(ds), ds[len(ds)/2], ds[len(ds)*95/100], ds[len(ds)-1])
	}
}

// randomWalk takes unit steps on the cell lattice, emitting the centre of
// each visited cell and the leg length in raw units.
func randomWalk(rng *rand.Rand, n int, side int64) ([]grid.Point, []uint32) {
	pts := make([]grid.Point, n)
	lengths := make([]uint32, 0, n-1)
	x, y := rng.Int63n(side), rng.Int63n(side)
	for i := range pts {
		if i > 0 {
			switch rng.Intn(4) {
			case 0:
				x = min(x+1, side-1)
			case 1:
				x = max(x-1, 0)
			case 2:
				y = min(y+1, side-1)
			default:
				y = max(y-1, 0)
			}
			lengths = append(lengths, uint32(grid.CellSize+rng.Intn(grid.CellSize)))
		}
		pts[i] = grid.Point{X: x*2*grid.CellSize + grid.CellSize/2, Y: y*2*grid.CellSize + grid.CellSize/2}
	}
	return pts, lengths
}

func runClient(ctx context.Context, id int, lat *latencies) error {
	c, err := client.Dial(ctx, *addr)
	if err != nil {
		return err
	}
	defer c.Close()
	c.SetTimeout(time.Minute)

	rng := rand.New(rand.NewSource(*seed + int64(id)))
	var visited []grid.Point
	for i := 0; i < *walks; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		pts, lengths := randomWalk(rng, *steps, *span)
		start := time.Now()
		if err := c.Walk(pts, lengths); err != nil {
			return fmt.Errorf("client %d walk %d: %w", id, i, err)
		}
		lat.add(grid.KindWalk, time.Since(start))
		visited = append(visited, pts[0], pts[len(pts)-1])
	}

	for i := 0; i < *queries && len(visited) > 1; i++ {
		a := visited[rng.Intn(len(visited))]
		b := visited[rng.Intn(len(visited))]
		start := time.Now()
		// Unreachable pairs are expected on a sparse grid.
		if _, err := c.OneToOne(a, b); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		lat.add(grid.KindOneToOne, time.Since(start))
	}

	if *oneToAll && len(visited) > 0 {
		start := time.Now()
		if _, err := c.OneToAll(visited[0]); err != nil {
			return fmt.Errorf("client %d one-to-all: %w", id, err)
		}
		lat.add(grid.KindOneToAll, time.Since(start))
	}
	return nil
}

func main() {
	flag.Parse()
	if *steps < 2 {
		log.Fatal("-steps must be at least 2")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *reset {
		c, err := client.Dial(ctx, *addr)
		if err != nil {
			log.Fatalf("Failed to connect: %v", err)
		}
		if err := c.Reset(); err != nil {
			log.Fatalf("Reset failed: %v", err)
		}
		c.Close()
	}

	lat := &latencies{by: make(map[grid.Kind][]time.Duration)}
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < *clients; i++ {
		g.Go(func() error { return runClient(gctx, i, lat) })
	}
	if err := g.Wait(); err != nil {
		log.Printf("load run failed: %v", err)
		lat.report()
		os.Exit(1)
	}

	fmt.Printf("%d clients finished in %v\n", *clients, time.Since(start).Round(time.Millisecond))
	lat.report()
}
