// scope-feed streams synthetic test signals into a scopedb daemon. It
// generates a sine wave with additive noise per channel, useful for
// exercising the store and the console plot.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xtxerr/scopedb/internal/client"
	"github.com/xtxerr/scopedb/internal/tsdb/types"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9317", "daemon address")
	channels := flag.Int("channels", 1, "number of channels to feed")
	prefix := flag.String("prefix", "sig", "channel name prefix")
	rate := flag.Float64("rate", 100, "samples per second per channel")
	freq := flag.Float64("freq", 0.5, "sine frequency in Hz")
	amplitude := flag.Float64("amplitude", 1.0, "sine amplitude")
	noise := flag.Float64("noise", 0.1, "noise amplitude")
	batch := flag.Int("batch", 100, "samples per batch")
	flag.Parse()

	if *rate <= 0 || *channels < 1 || *batch < 1 {
		log.Fatal("rate, channels and batch must be positive")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := client.New(*addr)
	if err := c.Connect(ctx); err != nil {
		log.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	log.Printf("Feeding %d channel(s) at %g Hz to %s", *channels, *rate, *addr)

	interval := time.Duration(float64(*batch) / *rate * float64(time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	step := 1.0 / *rate
	next := float64(time.Now().UnixNano()) / 1e9

	// One reusable batch per channel.
	batches := make([]*types.SampleBatch, *channels)
	for ch := range batches {
		batches[ch] = types.NewSampleBatch(*batch)
	}

	var sent int64
	for {
		select {
		case <-ctx.Done():
			// Surface any pending rejection before exiting.
			if err := c.Drain(time.Second); err != nil {
				log.Printf("Warning: %v", err)
			}
			log.Printf("Sent %d samples", sent)
			return
		case <-ticker.C:
		}

		for ch := 0; ch < *channels; ch++ {
			name := fmt.Sprintf("%s%d", *prefix, ch)
			// Phase offset per channel so plots are distinguishable.
			phase := float64(ch) * math.Pi / 4

			b := batches[ch]
			b.Clear()
			for i := 0; i < *batch; i++ {
				t := next + float64(i)*step
				v := *amplitude*math.Sin(2*math.Pi**freq*t+phase) +
					*noise*(rng.Float64()*2-1)
				b.Add(types.Sample{Timestamp: t, Value: v})
			}

			if err := c.SendBatch(name, b.Samples); err != nil {
				log.Printf("Send %s: %v", name, err)
				os.Exit(1)
			}
			sent += int64(b.Len())
		}
		next += float64(*batch) * step
	}
}
