// Command apf plans and replays agent paths through an artificial potential
// field.
//
//	apf plan scene.json            # plan once, print the PlanOutput JSON
//	apf plan --format geojson < scene.json
//	apf serve scene.json           # run the player, live engine and viz feed
//
// A scene is read from the file argument or, when none is given, from stdin.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cxd309/apf-engine/internal/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := NewRootCommand().ExecuteContext(ctx)
	observability.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
