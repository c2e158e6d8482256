// checkfire floods a running crossline instance with synthetic checkpoint
// webhooks, including deliberate duplicates, to exercise the dedup queue
// and the pipeline under bursts.
package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Default configuration constants.
const (
	defaultNumCheckpoints = 1000
	defaultDuplicateRate  = 30 // percent of checkpoints re-sent verbatim
	defaultWorkers        = 2  // multiplier for runtime.NumCPU()
	defaultTimeout        = 10 * time.Second
	defaultRunTimeout     = 5 * time.Minute
)

var points = []string{"Salida", "5k", "10k", "Media", "21k", "Meta"}

type webhookPayload struct {
	CompetitionID string `json:"competitionId"`
	ParticipantID string `json:"participantId"`
	Type          string `json:"type"`
	Key           string `json:"key,omitempty"`
	RawTime       int64  `json:"rawTime,omitempty"`
	ExtraData     struct {
		Point    string `json:"point"`
		Location string `json:"location"`
	} `json:"extraData"`
}

type counters struct {
	queued        atomic.Int64
	alreadyQueued atomic.Int64
	backpressured atomic.Int64
	failed        atomic.Int64
}

func main() {
	var (
		baseURL       = flag.String("url", "http://localhost:9080", "Base URL of the service")
		competitionID = flag.String("competition", "COMP-LOAD", "Competition id to stamp on every checkpoint")
		num           = flag.Int("checkpoints", defaultNumCheckpoints, "Number of distinct checkpoints to submit")
		dupRate       = flag.Int("dup", defaultDuplicateRate, "Percentage of checkpoints re-sent as duplicates")
		workers       = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent senders")
		sharedKey     = flag.String("key", "", "Shared key for webhook auth")
		timeout       = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	payloads := generate(*competitionID, *num, *dupRate, *sharedKey)

	hc := &http.Client{Timeout: *timeout}
	var c counters
	jobs := make(chan webhookPayload)

	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				send(ctx, hc, *baseURL, p, &c)
			}
		}()
	}

	start := time.Now()
submit:
	for _, p := range payloads {
		select {
		case <-ctx.Done():
			break submit
		case jobs <- p:
		}
	}
	close(jobs)
	wg.Wait()

	fmt.Printf("sent %d payloads in %s: queued=%d already_queued=%d backpressured=%d failed=%d\n",
		len(payloads), time.Since(start).Round(time.Millisecond),
		c.queued.Load(), c.alreadyQueued.Load(), c.backpressured.Load(), c.failed.Load(),
	)
	if c.failed.Load() > 0 {
		os.Exit(1)
	}
}

// generate builds num distinct checkpoints and re-appends dupRate percent
// of them verbatim, shuffled in, so duplicates arrive interleaved.
func generate(competitionID string, num, dupRate int, sharedKey string) []webhookPayload {
	out := make([]webhookPayload, 0, num+num*dupRate/100)
	for i := 0; i < num; i++ {
		var p webhookPayload
		p.CompetitionID = competitionID
		p.ParticipantID = uuid.NewString()
		p.Type = "detection"
		p.Key = sharedKey
		p.RawTime = time.Now().UnixMilli()
		point := points[randInt(len(points))]
		p.ExtraData.Point = point
		p.ExtraData.Location = point
		out = append(out, p)
	}
	for i := 0; i < num*dupRate/100; i++ {
		out = append(out, out[randInt(num)])
	}
	for i := len(out) - 1; i > 0; i-- {
		j := randInt(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func send(ctx context.Context, hc *http.Client, baseURL string, p webhookPayload, c *counters) {
	body, err := json.Marshal(p)
	if err != nil {
		c.failed.Add(1)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/webhooks/checkpoint", bytes.NewReader(body))
	if err != nil {
		c.failed.Add(1)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		c.failed.Add(1)
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		c.backpressured.Add(1)
		return
	case http.StatusOK:
	default:
		c.failed.Add(1)
		return
	}

	var ack struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		c.failed.Add(1)
		return
	}
	if ack.Status == "already_queued" {
		c.alreadyQueued.Add(1)
	} else {
		c.queued.Add(1)
	}
}

func randInt(n int) int {
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}
