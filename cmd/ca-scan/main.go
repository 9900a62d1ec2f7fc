// ca-scan replays saved messages through the detection pipeline offline and
// prints what the bot would have reported. Input is one message per line:
// either a JSON-encoded IncomingMessage or plain text, which is attributed to
// a synthetic channel.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/rewired-gh/ca-monitor/internal/detector"
	"github.com/rewired-gh/ca-monitor/internal/dispatch"
	"github.com/rewired-gh/ca-monitor/internal/logger"
	"github.com/rewired-gh/ca-monitor/internal/models"
)

const plainSourceID = "scan"

var (
	disable  = pflag.StringSlice("disable", nil, "Platforms to switch off: pumpfun, moonshot, raydium, birdeye, native")
	asJSON   = pflag.Bool("json", false, "Print detections as JSON lines")
	logLevel = pflag.String("log-level", "warn", "Log level (debug, info, warn, error)")
)

// report aggregates one scan run
type report struct {
	Lines      int
	Invalid    int
	Detections []models.Detection
	Notified   int
	BySource   map[string]int
}

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ca-scan [flags] [file ...]\n\nReads stdin when no file is given.\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	logger.Init(*logLevel, "text")

	toggles, err := togglesFromFlags(*disable)
	if err != nil {
		logger.Fatal("%v", err)
	}

	var inputs []io.Reader
	if pflag.NArg() == 0 {
		inputs = append(inputs, os.Stdin)
	}
	for _, path := range pflag.Args() {
		f, err := os.Open(path)
		if err != nil {
			logger.Fatal("Failed to open %s: %v", path, err)
		}
		defer f.Close()
		inputs = append(inputs, f)
	}

	r, err := scan(io.MultiReader(inputs...), toggles)
	if err != nil {
		logger.Fatal("Scan failed: %v", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		for _, d := range r.Detections {
			if err := enc.Encode(d); err != nil {
				logger.Fatal("Failed to encode detection: %v", err)
			}
		}
		return
	}
	printReport(os.Stdout, r)
}

// togglesFromFlags starts from everything enabled and switches off the named
// platforms.
func togglesFromFlags(disabled []string) (models.Toggles, error) {
	toggles := models.DefaultToggles()
	for _, name := range disabled {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "pumpfun":
			toggles.PumpFun = false
		case "moonshot":
			toggles.Moonshot = false
		case "raydium":
			toggles.Raydium = false
		case "birdeye":
			toggles.Birdeye = false
		case "native":
			toggles.Native = false
		default:
			return toggles, fmt.Errorf("unknown platform %q", name)
		}
	}
	return toggles, nil
}

// scan runs every line through the engine and a lifetime dispatcher
func scan(in io.Reader, toggles models.Toggles) (*report, error) {
	engine := detector.NewEngine()
	dispatcher, err := dispatch.New(dispatch.Recipients{Owner: 1})
	if err != nil {
		return nil, err
	}

	r := &report{BySource: make(map[string]int)}
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		r.Lines++

		msg, err := parseLine(line)
		if err != nil {
			r.Invalid++
			logger.Warn("Line %d: %v", r.Lines, err)
			continue
		}

		dets, err := engine.Process(msg, toggles)
		if err != nil {
			r.Invalid++
			logger.Warn("Line %d: %v", r.Lines, err)
			continue
		}
		for _, d := range dets {
			r.Detections = append(r.Detections, d)
			r.BySource[d.SourceLabel()]++
			if len(dispatcher.Route(d)) > 0 {
				r.Notified++
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return r, nil
}

func parseLine(line string) (*models.IncomingMessage, error) {
	if strings.HasPrefix(line, "{") {
		var msg models.IncomingMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		if msg.ReceivedAt.IsZero() {
			msg.ReceivedAt = time.Now()
		}
		return &msg, nil
	}
	return &models.IncomingMessage{
		SourceID:   plainSourceID,
		SourceKind: models.SourceChannel,
		Text:       line,
		ReceivedAt: time.Now(),
	}, nil
}

func printReport(w io.Writer, r *report) {
	fmt.Fprintf(w, "Scanned %d messages (%d invalid)\n", r.Lines, r.Invalid)
	fmt.Fprintf(w, "Detections: %d, would notify: %d\n", len(r.Detections), r.Notified)

	counts := make(map[models.Platform]int)
	for _, d := range r.Detections {
		counts[d.Platform]++
	}
	fmt.Fprintln(w, "\nBy platform:")
	for _, p := range models.AllPlatforms {
		fmt.Fprintf(w, "  %-9s %d\n", p, counts[p])
	}

	if len(r.BySource) > 0 {
		sources := make([]string, 0, len(r.BySource))
		for s := range r.BySource {
			sources = append(sources, s)
		}
		sort.Slice(sources, func(i, j int) bool {
			if r.BySource[sources[i]] != r.BySource[sources[j]] {
				return r.BySource[sources[i]] > r.BySource[sources[j]]
			}
			return sources[i] < sources[j]
		})
		fmt.Fprintln(w, "\nBy source:")
		for i, s := range sources {
			if i >= 10 {
				break
			}
			fmt.Fprintf(w, "  %d. %s: %d\n", i+1, s, r.BySource[s])
		}
	}

	if len(r.Detections) > 0 {
		fmt.Fprintln(w, "\nDetections:")
		fmt.Fprintln(w, strings.Repeat("=", 80))
		for _, d := range r.Detections {
			hints := ""
			if !d.Hints.Empty() {
				hints = " [" + d.Hints.String() + "]"
			}
			fmt.Fprintf(w, "%-9s %-44s %s%s\n", d.Platform, d.Address, d.Origin, hints)
		}
	}
}
