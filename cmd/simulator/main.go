package main

import (
	"context"
	"log"
	"time"

	"github.com/WiggoHelgesson/stridefeed/simulator"
)

func main() {
	config := simulator.SimConfig{
		NumViewers:       8,
		SimulationTime:   5 * time.Minute,
		LikeFrequency:    6.0,
		CommentFrequency: 2.0,
		RefreshRate:      0.05,
		LoadMoreRate:     0.1,
		ZipfS:            1.07,
		TickInterval:     time.Second,
		EngineURL:        "http://localhost:8080",
	}

	sim := simulator.NewSimulator(config)
	ctx, cancel := context.WithTimeout(context.Background(), config.SimulationTime)
	defer cancel()

	log.Printf("Starting simulation with configuration:")
	log.Printf("- Engine URL: %s", config.EngineURL)
	log.Printf("- Number of viewers: %d", config.NumViewers)
	log.Printf("- Simulation time: %v", config.SimulationTime)
	log.Printf("- Like frequency: %.2f toggles/viewer/minute", config.LikeFrequency)
	log.Printf("- Comment frequency: %.2f comments/viewer/minute", config.CommentFrequency)

	if err := sim.Run(ctx); err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}

	m := sim.GetMetrics()
	log.Printf("\nSimulation completed. Final metrics:")
	log.Printf("- Total requests: %d", m.TotalRequests)
	log.Printf("- Successful: %d", m.SuccessRequests)
	log.Printf("- Failed: %d", m.FailedRequests)
	log.Printf("- Likes toggled: %d", m.TotalLikes)
	log.Printf("- Comments added: %d", m.TotalComments)
	log.Printf("- Refreshes: %d", m.TotalRefreshes)
	log.Printf("- Pages revealed: %d", m.TotalPageLoads)
	log.Printf("- Average latency: %v", m.AverageLatency)
}
