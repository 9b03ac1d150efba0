package audio

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

var percentRe = regexp.MustCompile(`(\d+)\s*%`)

type streamInfo struct {
	ID      int
	Volume  int
	AppName string
}

// Ducker lowers the volume of other PulseAudio playback streams while the
// assistant speaks, so replies stay audible over music. Streams whose
// application.name matches selfNames are left alone.
type Ducker struct {
	mu          sync.Mutex
	active      bool
	selfNames   []string
	originalVol map[int]int
	minVolume   int
}

func NewDucker(selfNames []string, minVolume int) *Ducker {
	if minVolume < 0 {
		minVolume = 0
	}
	if minVolume > 150 {
		minVolume = 150
	}

	return &Ducker{
		selfNames:   append([]string(nil), selfNames...),
		originalVol: make(map[int]int),
		minVolume:   minVolume,
	}
}

// Duck scales every foreign stream down to volume*factor, floored at
// minVolume. Calling Duck while already ducked is a no-op.
func (d *Ducker) Duck(ctx context.Context, factor float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return nil
	}

	streams, err := listStreams(ctx)
	if err != nil {
		return fmt.Errorf("list streams: %w", err)
	}

	d.originalVol = make(map[int]int)

	for _, s := range streams {
		if d.isSelf(s) {
			continue
		}

		target := math.Round(float64(s.Volume) * factor)
		if target < float64(d.minVolume) {
			target = float64(d.minVolume)
		}

		d.originalVol[s.ID] = s.Volume
		if err := setSinkInputVolume(ctx, s.ID, int(target)); err != nil {
			return fmt.Errorf("set volume id=%d: %w", s.ID, err)
		}
	}

	d.active = true
	return nil
}

// Restore returns previously ducked streams to their original volumes.
// Streams that appeared after Duck are left untouched.
func (d *Ducker) Restore(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return nil
	}

	streams, err := listStreams(ctx)
	if err != nil {
		return fmt.Errorf("list streams: %w", err)
	}

	for _, s := range streams {
		orig, ok := d.originalVol[s.ID]
		if !ok {
			continue
		}
		if err := setSinkInputVolume(ctx, s.ID, orig); err != nil {
			return fmt.Errorf("restore volume id=%d: %w", s.ID, err)
		}
	}

	d.originalVol = make(map[int]int)
	d.active = false
	return nil
}

func (d *Ducker) isSelf(s streamInfo) bool {
	for _, name := range d.selfNames {
		if s.AppName == name {
			return true
		}
	}
	return false
}

func listStreams(ctx context.Context) ([]streamInfo, error) {
	out, err := exec.CommandContext(ctx, "pactl", "list", "sink-inputs").Output()
	if err != nil {
		return nil, err
	}

	var (
		streams []streamInfo
		cur     *streamInfo
	)

	for _, line := range strings.Split(string(out), "\n") {
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "Sink Input #"):
			if cur != nil {
				streams = append(streams, *cur)
			}
			id, err := strconv.Atoi(strings.TrimPrefix(trimmed, "Sink Input #"))
			if err != nil {
				cur = nil
				continue
			}
			cur = &streamInfo{ID: id}

		case cur != nil && strings.HasPrefix(trimmed, "Volume:"):
			if m := percentRe.FindStringSubmatch(trimmed); m != nil {
				cur.Volume, _ = strconv.Atoi(m[1])
			}

		case cur != nil && strings.HasPrefix(trimmed, `application.name = "`):
			cur.AppName = strings.Trim(strings.TrimPrefix(trimmed, "application.name = "), `"`)
		}
	}
	if cur != nil {
		streams = append(streams, *cur)
	}

	return streams, nil
}

func setSinkInputVolume(ctx context.Context, id, percent int) error {
	return exec.CommandContext(ctx, "pactl",
		"set-sink-input-volume", strconv.Itoa(id), fmt.Sprintf("%d%%", percent)).Run()
}
