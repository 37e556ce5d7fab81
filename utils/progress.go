package utils

import (
	"fmt"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
)

// ProgressTracker manages transfer progress display with real-time statistics
type ProgressTracker struct {
	bar       *pb.ProgressBar
	quiet     bool
	startTime time.Time
	total     int64
	current   int64
	filename  string
	mutex     sync.RWMutex

	// Statistics tracking
	lastUpdate   time.Time
	lastBytes    int64
	speedSamples []float64
	maxSamples   int
}

// TransferSummary contains final transfer statistics
type TransferSummary struct {
	TotalBytes   int64
	TotalTime    time.Duration
	AverageSpeed float64 // bytes per second
	PeakSpeed    float64 // bytes per second
	Filename     string
}

// NewProgressTracker creates a new progress tracker. A total of -1 means the
// remote size is unknown; the bar counts bytes without a percentage. Resumed
// transfers pass the starting offset so percentages stay honest.
func NewProgressTracker(total, resumedFrom int64, quiet bool) *ProgressTracker {
	tracker := &ProgressTracker{
		quiet:        quiet,
		startTime:    time.Now(),
		total:        total,
		current:      resumedFrom,
		lastUpdate:   time.Now(),
		lastBytes:    resumedFrom,
		speedSamples: make([]float64, 0),
		maxSamples:   10, // Keep last 10 speed samples for smoothing
	}

	if !quiet {
		tmpl := `{{string . "prefix"}}{{counters . }} {{bar . }} {{percent . }} {{speed . }} {{rtime . "ETA %s"}}`
		if total < 0 {
			tmpl = `{{string . "prefix"}}{{counters . }} {{speed . }}`
		}
		bar := pb.ProgressBarTemplate(tmpl).Start64(total)
		bar.Set(pb.Bytes, true)
		bar.Set(pb.SIBytesPrefix, true)
		bar.Set("prefix", "Downloading: ")
		if resumedFrom > 0 {
			bar.SetCurrent(resumedFrom)
		}
		tracker.bar = bar
	}

	return tracker
}

// Update updates the progress bar with current progress and refreshes the
// smoothed speed estimate.
func (p *ProgressTracker) Update(current int64) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	now := time.Now()
	p.current = current

	if p.bar != nil {
		p.bar.SetCurrent(current)
	}

	// Sample speed at most every 100ms to avoid jitter
	timeDiff := now.Sub(p.lastUpdate).Seconds()
	if timeDiff > 0.1 {
		bytesDiff := current - p.lastBytes
		currentSpeed := float64(bytesDiff) / timeDiff

		p.speedSamples = append(p.speedSamples, currentSpeed)
		if len(p.speedSamples) > p.maxSamples {
			p.speedSamples = p.speedSamples[1:]
		}

		p.lastUpdate = now
		p.lastBytes = current
	}
}

// Add advances the progress by delta bytes.
func (p *ProgressTracker) Add(delta int64) {
	p.mutex.RLock()
	current := p.current
	p.mutex.RUnlock()
	p.Update(current + delta)
}

// SetFilename records the destination filename for the final summary.
func (p *ProgressTracker) SetFilename(filename string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.filename = filename
}

// Finish completes the progress bar and returns the transfer summary.
func (p *ProgressTracker) Finish() *TransferSummary {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	endTime := time.Now()
	totalTime := endTime.Sub(p.startTime)

	if p.bar != nil {
		p.bar.Finish()
	}

	averageSpeed := float64(p.current) / totalTime.Seconds()

	var peakSpeed float64
	for _, speed := range p.speedSamples {
		if speed > peakSpeed {
			peakSpeed = speed
		}
	}

	summary := &TransferSummary{
		TotalBytes:   p.current,
		TotalTime:    totalTime,
		AverageSpeed: averageSpeed,
		PeakSpeed:    peakSpeed,
		Filename:     p.filename,
	}

	if !p.quiet {
		p.displaySummary(summary)
	}

	return summary
}

// displaySummary prints the transfer summary statistics
func (p *ProgressTracker) displaySummary(summary *TransferSummary) {
	fmt.Printf("\n")
	fmt.Printf("Download completed successfully!\n")
	fmt.Printf("Total size: %s\n", formatBytes(summary.TotalBytes))
	fmt.Printf("Total time: %v\n", summary.TotalTime.Round(time.Millisecond))
	fmt.Printf("Average speed: %s/s\n", formatBytes(int64(summary.AverageSpeed)))
	if summary.PeakSpeed > 0 {
		fmt.Printf("Peak speed: %s/s\n", formatBytes(int64(summary.PeakSpeed)))
	}
	if summary.Filename != "" {
		fmt.Printf("Saved to: %s\n", summary.Filename)
	}
}

// GetCurrentStats returns current transfer statistics
func (p *ProgressTracker) GetCurrentStats() (speed float64, eta time.Duration, percentage float64) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	var currentSpeed float64
	if len(p.speedSamples) > 0 {
		sampleCount := len(p.speedSamples)
		if sampleCount > 3 {
			sampleCount = 3 // Use last 3 samples for current speed
		}
		for i := len(p.speedSamples) - sampleCount; i < len(p.speedSamples); i++ {
			currentSpeed += p.speedSamples[i]
		}
		currentSpeed /= float64(sampleCount)
	}

	var etaTime time.Duration
	if currentSpeed > 0 && p.total > p.current {
		remainingBytes := p.total - p.current
		etaSeconds := float64(remainingBytes) / currentSpeed
		etaTime = time.Duration(etaSeconds) * time.Second
	}

	var percent float64
	if p.total > 0 {
		percent = float64(p.current) / float64(p.total) * 100
	}

	return currentSpeed, etaTime, percent
}

// IsQuiet returns whether the tracker is in quiet mode
func (p *ProgressTracker) IsQuiet() bool {
	return p.quiet
}

// formatBytes formats byte count as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
