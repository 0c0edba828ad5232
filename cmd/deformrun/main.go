package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/gekko3d/deform"
	"github.com/gekko3d/deform/rt/geo"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	var (
		debug   = flag.Bool("debug", false, "Enable debug logging")
		name    = flag.String("procedural", deform.DeformerProcedural, "Procedural to instantiate")
		out     = flag.String("out", "", "Directory to write the deformed geometry to")
		metrics = flag.Bool("metrics", false, "Print collected metrics after the run")
	)
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <params.yaml>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	logger := deform.NewDefaultLogger("deformrun", *debug)
	src, err := deform.LoadParamFile(args[0])
	if err != nil {
		log.Fatalf("reading parameters: %v", err)
	}

	// Relative geometry paths resolve against the parameter file.
	base := filepath.Dir(args[0])
	load := func(path string) (*geo.Detail, error) {
		if !filepath.IsAbs(path) {
			path = filepath.Join(base, path)
		}
		return geo.Load(path)
	}

	factory := deform.RegisterProcedural(deform.NewFactory(), load, nil)
	proc, err := factory.Create(context.Background(), *name, src, logger)
	if err != nil {
		log.Fatalf("creating %s: %v", *name, err)
	}

	srv := deform.NewRenderServer()
	srv.AddProcedural(proc)

	if in, ok := proc.(*deform.Instancer); ok {
		logger.Infof("%s", in.Describe())
	}
	b := srv.Bounds()
	fmt.Printf("%d geometry objects, bounds %v..%v\n", len(srv.Objects()), b.Min, b.Max)

	if *out != "" {
		if err := os.MkdirAll(*out, 0o755); err != nil {
			log.Fatalf("creating %s: %v", *out, err)
		}
		for _, id := range srv.Objects() {
			g, _ := srv.Geometry(id)
			for i, seg := range g.Segments {
				path := filepath.Join(*out, fmt.Sprintf("instance%04d_s%d.gdet", g.Instance, i))
				if err := geo.Save(path, seg.Detail); err != nil {
					log.Fatalf("writing %s: %v", path, err)
				}
			}
		}
	}

	if *metrics {
		printMetrics()
	}
}

func printMetrics() {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		log.Printf("gathering metrics: %v", err)
		return
	}
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "deform_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := ""
			for _, l := range m.GetLabel() {
				labels += fmt.Sprintf(" %s=%s", l.GetName(), l.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				fmt.Printf("%s%s %g\n", mf.GetName(), labels, m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				fmt.Printf("%s%s count=%d sum=%gs\n", mf.GetName(), labels, h.GetSampleCount(), h.GetSampleSum())
			}
		}
	}
}
