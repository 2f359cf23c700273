// Command sse_load opens many concurrent subscriptions to the dexsim price
// or trade stream and reports how many events each event type delivered.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
)

var streams = map[string]string{
	"prices": "/prices/stream",
	"trades": "/trades/stream",
}

type counters struct {
	connected   atomic.Int64
	connectErrs atomic.Int64
	streamErrs  atomic.Int64

	mu     sync.Mutex
	events map[string]int64
}

func (c *counters) event(name string) {
	c.mu.Lock()
	c.events[name]++
	c.mu.Unlock()
}

func (c *counters) summary() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.events))
	for name := range c.events {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, c.events[name]))
	}
	return strings.Join(parts, " ")
}

func (c *counters) total() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, v := range c.events {
		n += v
	}
	return n
}

func main() {
	var (
		baseURL      string
		stream       string
		connections  int
		testDuration time.Duration
		rampUp       time.Duration
	)

	flag.StringVar(&baseURL, "base", "http://localhost:8080", "dexsim base URL")
	flag.StringVar(&stream, "stream", "prices", "stream to load: prices or trades")
	flag.IntVar(&connections, "conns", 500, "number of concurrent connections to open")
	flag.DurationVar(&testDuration, "dur", 60*time.Second, "test duration (0 for until interrupted)")
	flag.DurationVar(&rampUp, "ramp", 0, "spread connection starts across this window")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	path, ok := streams[stream]
	if !ok {
		logger.Fatal("unknown stream", zap.String("stream", stream))
	}
	if connections <= 0 {
		logger.Fatal("invalid conns", zap.Int("conns", connections))
	}
	if rampUp == 0 && connections > 100 {
		rampUp = max(time.Duration(connections/500)*time.Second, time.Second)
	}
	target := strings.TrimRight(baseURL, "/") + path

	logger.Info("starting SSE load",
		zap.String("url", target),
		zap.Int("conns", connections),
		zap.Duration("duration", testDuration),
		zap.Duration("ramp", rampUp))

	client := &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     connections + 100,
			MaxIdleConns:        connections + 100,
			MaxIdleConnsPerHost: connections + 100,
			DisableCompression:  true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if testDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, testDuration)
		defer cancel()
	}

	c := &counters{events: make(map[string]int64)}
	start := time.Now()

	var interval time.Duration
	if rampUp > 0 {
		interval = rampUp / time.Duration(connections)
	}

	var wg sync.WaitGroup
	for i := 0; i < connections && ctx.Err() == nil; i++ {
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
				continue
			case <-time.After(interval):
			}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			subscribe(ctx, client, target, c)
		}()
	}

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logger.Info("status",
					zap.Int64("connected", c.connected.Load()),
					zap.Int64("connect_errs", c.connectErrs.Load()),
					zap.Int64("stream_errs", c.streamErrs.Load()),
					zap.String("events", c.summary()),
					zap.Duration("elapsed", time.Since(start).Truncate(time.Second)))
			}
		}
	}()

	wg.Wait()

	elapsed := max(time.Since(start), time.Millisecond)
	fmt.Fprintf(os.Stdout, "done: connected=%d connect_errs=%d stream_errs=%d %s elapsed=%s events/s=%.2f\n",
		c.connected.Load(),
		c.connectErrs.Load(),
		c.streamErrs.Load(),
		c.summary(),
		elapsed.Truncate(time.Millisecond),
		float64(c.total())/elapsed.Seconds(),
	)
}

// subscribe reads one stream until ctx is done, tallying events by their "event:" name.
func subscribe(ctx context.Context, client *http.Client, target string, c *counters) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		c.connectErrs.Add(1)
		return
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		c.connectErrs.Add(1)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.connectErrs.Add(1)
		return
	}
	c.connected.Add(1)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			c.event(strings.TrimSpace(strings.TrimPrefix(line, "event:")))
		case strings.HasPrefix(line, ":"):
			c.event("heartbeat")
		}
	}
	if ctx.Err() == nil {
		c.streamErrs.Add(1)
	}
}
