// Command firstlight brings up the GPU, links the triangle pipeline and
// runs the frame loop until interrupted.
//
// There are no flags and no environment knobs: the program always detects
// the primary display, renders the same static triangle every frame, and
// prints one elapsed-microseconds line per frame to stdout. Any bring-up
// or frame failure aborts the process.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/gogpu/firstlight/display"
	"github.com/gogpu/firstlight/frame"
	"github.com/gogpu/firstlight/scene"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := display.Bootstrap(display.Config{})
	if err != nil {
		log.Fatalf("display bring-up: %v", err)
	}

	s, err := scene.Setup(d, scene.Config{})
	if err != nil {
		d.Close()
		log.Fatalf("scene setup: %v", err)
	}

	loop := frame.New(d, s, frame.Config{})
	if err := loop.Run(ctx); err != nil {
		s.Close()
		d.Close()
		log.Fatalf("frame loop: %v", err)
	}

	s.Close()
	d.Close()
}
