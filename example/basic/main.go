// Embedding example: feed simulated printer temperatures through a channel
// source, then read the merged history back out of the in-memory store.
package main

import (
	"context"
	"log"
	"time"

	factortel "github.com/kangbyounggwan/factor-telemetry"
)

func main() {
	cfg := &factortel.Config{}
	cfg.Postgres.ConnString = "unused"
	cfg.Policy.BufferSize = 10
	cfg.Policy.FlushInterval = 2 * time.Second
	cfg.ApplyDefaults()

	samples := make(chan factortel.DeviceSample)

	rt, err := factortel.NewRuntime(cfg,
		factortel.WithStore(factortel.NewMemStore()),
		factortel.WithSource(factortel.NewChannelSource(samples)),
	)
	if err != nil {
		log.Fatal(err)
	}
	if err := rt.Start(); err != nil {
		log.Fatal(err)
	}

	go func() {
		defer close(samples)
		for i := 0; i < 25; i++ {
			samples <- factortel.DeviceSample{
				DeviceID: "printer-1",
				Sample: factortel.Sample{
					Timestamp: time.Now(),
					Fields: map[string]float64{
						"nozzle_actual": 209.4 + float64(i%3),
						"nozzle_target": 210,
						"bed_actual":    59.8,
						"bed_target":    60,
					},
				},
			}
			time.Sleep(100 * time.Millisecond)
		}
	}()

	time.Sleep(4 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	history, err := rt.History(ctx, "printer-1", time.Minute)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("archived %d samples for printer-1", len(history))

	if err := rt.Shutdown(ctx); err != nil {
		log.Fatal(err)
	}
}
