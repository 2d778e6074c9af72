// Package statsd emits bulk action lifecycle metrics over UDP.
package statsd

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// maxPacketSize keeps datagrams under a 1500 byte Ethernet MTU after IP/UDP headers.
const maxPacketSize = 1432

// Sink describes the minimal interface required to emit StatsD-style metrics.
type Sink interface {
	Count(name string, value int64, tags map[string]string)
	Gauge(name string, value float64, tags map[string]string)
	Timing(name string, value time.Duration, tags map[string]string)
}

// Batcher is implemented by sinks that can coalesce several metrics into one write.
type Batcher interface {
	Batch(fn func(Sink))
}

// Batch runs fn against sink, coalescing its metrics when sink is a Batcher.
func Batch(sink Sink, fn func(Sink)) {
	if sink == nil || fn == nil {
		return
	}
	if b, ok := sink.(Batcher); ok {
		b.Batch(fn)
		return
	}
	fn(sink)
}

// Config describes how to connect to a StatsD-compatible sink.
type Config struct {
	Enabled    bool
	Address    string
	Prefix     string
	Logger     *slog.Logger
	GlobalTags map[string]string
}

// Client writes the StatsD line protocol with DogStatsD-style tags over UDP.
// It is safe for concurrent use. A nil *Client is a valid no-op sink.
type Client struct {
	prefix     string
	globalTags map[string]string
	logger     *slog.Logger

	mu      sync.Mutex
	enabled bool
	conn    net.Conn
}

var (
	_ Sink    = (*Client)(nil)
	_ Batcher = (*Client)(nil)
)

// NewClient dials the configured StatsD endpoint unless disabled.
func NewClient(cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	address := strings.TrimSpace(cfg.Address)
	client := &Client{
		prefix:     sanitizePrefix(cfg.Prefix),
		globalTags: cloneTags(cfg.GlobalTags),
		logger:     logger,
	}
	if !cfg.Enabled || address == "" {
		return client, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := (&net.Dialer{}).DialContext(ctx, "udp", address)
	if err != nil {
		return nil, fmt.Errorf("statsd dial %s: %w", address, err)
	}
	client.conn = conn
	client.enabled = true
	return client, nil
}

// Enabled reports whether the client actively emits metrics.
func (c *Client) Enabled() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled && c.conn != nil
}

// Count increments a counter metric.
func (c *Client) Count(name string, value int64, tags map[string]string) {
	if c == nil {
		return
	}
	c.send(c.line(name, strconv.FormatInt(value, 10)+"|c", tags))
}

// Gauge records the current value for a gauge metric.
func (c *Client) Gauge(name string, value float64, tags map[string]string) {
	if c == nil {
		return
	}
	c.send(c.line(name, formatFloat(value)+"|g", tags))
}

// Timing records a timing metric in milliseconds.
func (c *Client) Timing(name string, value time.Duration, tags map[string]string) {
	if c == nil {
		return
	}
	c.send(c.line(name, formatMillis(value)+"|ms", tags))
}

// Batch collects every metric fn emits and sends them as newline-joined packets.
func (c *Client) Batch(fn func(Sink)) {
	if c == nil || fn == nil {
		return
	}
	b := &batch{client: c}
	fn(b)
	c.send(b.lines...)
}

// Close releases the underlying UDP connection if one was established.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.enabled = false
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// line renders one metric, or "" when the name normalizes to nothing.
func (c *Client) line(name, payload string, tags map[string]string) string {
	metric := c.metricName(name)
	if metric == "" {
		return ""
	}
	return metric + ":" + payload + formatTags(c.globalTags, tags)
}

func (c *Client) send(lines ...string) {
	packets := packLines(lines, maxPacketSize)
	if len(packets) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled || c.conn == nil {
		return
	}
	for _, p := range packets {
		if _, err := c.conn.Write([]byte(p)); err != nil {
			c.logger.Debug("statsd write failed", "error", err, "bytes", len(p))
		}
	}
}

func (c *Client) metricName(name string) string {
	normalized := normalizeMetricName(name)
	switch {
	case normalized == "":
		return ""
	case c.prefix == "":
		return normalized
	default:
		return c.prefix + "." + normalized
	}
}

// batch buffers rendered lines for Client.Batch.
type batch struct {
	client *Client
	lines  []string
}

func (b *batch) Count(name string, value int64, tags map[string]string) {
	b.add(b.client.line(name, strconv.FormatInt(value, 10)+"|c", tags))
}

func (b *batch) Gauge(name string, value float64, tags map[string]string) {
	b.add(b.client.line(name, formatFloat(value)+"|g", tags))
}

func (b *batch) Timing(name string, value time.Duration, tags map[string]string) {
	b.add(b.client.line(name, formatMillis(value)+"|ms", tags))
}

func (b *batch) add(line string) {
	if line != "" {
		b.lines = append(b.lines, line)
	}
}

// packLines joins lines with '\n' into packets of at most limit bytes. A line longer than
// limit travels alone rather than being dropped.
func packLines(lines []string, limit int) []string {
	var (
		packets []string
		cur     strings.Builder
	)
	for _, l := range lines {
		if l == "" {
			continue
		}
		if cur.Len() > 0 && cur.Len()+1+len(l) > limit {
			packets = append(packets, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(l)
	}
	if cur.Len() > 0 {
		packets = append(packets, cur.String())
	}
	return packets
}

func sanitizePrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), ".")
}

func normalizeMetricName(name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	n = strings.NewReplacer(" ", "_", "/", "_").Replace(n)
	for strings.Contains(n, "..") {
		n = strings.ReplaceAll(n, "..", ".")
	}
	return strings.Trim(n, ".")
}

// formatTags merges global and local tags, local winning, sorted by key.
func formatTags(global, local map[string]string) string {
	merged := cloneTags(global)
	for k, v := range cloneTags(local) {
		merged[k] = v
	}
	if len(merged) == 0 {
		return ""
	}

	keys := slices.Sorted(maps.Keys(merged))
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + ":" + merged[k]
	}
	return "|#" + strings.Join(pairs, ",")
}

func cloneTags(tags map[string]string) map[string]string {
	cp := make(map[string]string, len(tags))
	for k, v := range tags {
		if key := strings.TrimSpace(k); key != "" {
			cp[key] = strings.TrimSpace(v)
		}
	}
	return cp
}

func formatMillis(d time.Duration) string {
	return formatFloat(float64(d) / float64(time.Millisecond))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
