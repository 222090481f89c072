// Command diagrams renders the fuzic architecture diagrams as Graphviz sources
// under ./go-diagrams. Run `dot -Tpng` on the output to produce images.
package main

import (
	"fmt"

	"github.com/blushft/go-diagrams/diagram"
	"github.com/blushft/go-diagrams/nodes/gcp"
	"github.com/blushft/go-diagrams/nodes/programming"
	log "github.com/sirupsen/logrus"
)

func main() {
	if err := generateArchitectureDiagram(); err != nil {
		log.WithError(err).Fatal("Failed to render architecture diagram")
	}
	if err := generateComponentDiagram(); err != nil {
		log.WithError(err).Fatal("Failed to render component diagram")
	}

	log.Info("Diagrams written to ./go-diagrams")
}

func generateArchitectureDiagram() error {
	d, err := diagram.New(
		diagram.Filename("architecture"),
		diagram.Label("fuzic architecture"),
		diagram.Direction("LR"),
	)
	if err != nil {
		return fmt.Errorf("creating diagram: %w", err)
	}

	browser := gcp.Network.Dns(diagram.NodeLabel("Dashboard"))
	cli := programming.Language.Go(diagram.NodeLabel("fuzic CLI"))
	api := gcp.Network.LoadBalancing(diagram.NodeLabel("fuzic serve"))
	sessions := gcp.Database.Sql(diagram.NodeLabel("Sessions (memory / SQLite)"))
	spotify := gcp.Compute.ComputeEngine(diagram.NodeLabel("Spotify Web API"))

	d.Connect(browser, api, diagram.Forward())
	d.Connect(api, sessions, diagram.Forward())
	d.Connect(api, spotify, diagram.Forward())
	d.Connect(cli, spotify, diagram.Forward())

	return d.Render()
}

func generateComponentDiagram() error {
	d, err := diagram.New(
		diagram.Filename("components"),
		diagram.Label("fuzic components"),
		diagram.Direction("TB"),
	)
	if err != nil {
		return fmt.Errorf("creating diagram: %w", err)
	}

	server := programming.Language.Go(diagram.NodeLabel("internal/server"))
	playlist := programming.Language.Go(diagram.NodeLabel("internal/playlist"))
	search := programming.Language.Go(diagram.NodeLabel("internal/search"))
	aggregator := programming.Language.Go(diagram.NodeLabel("internal/merge"))
	duplicate := gcp.Database.Memorystore(diagram.NodeLabel("internal/duplicate"))
	session := gcp.Database.Sql(diagram.NodeLabel("internal/session"))
	provider := gcp.Compute.ComputeEngine(diagram.NodeLabel("internal/spotify"))

	d.Connect(server, playlist, diagram.Forward())
	d.Connect(server, search, diagram.Forward())
	d.Connect(server, session, diagram.Forward())
	d.Connect(playlist, aggregator, diagram.Forward())
	d.Connect(aggregator, duplicate, diagram.Forward())
	d.Connect(aggregator, provider, diagram.Forward())

	return d.Render()
}
