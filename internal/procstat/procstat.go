// Package procstat measures how much CPU a process used during each frame.
package procstat

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/process"
)

// Sample is one reading of a process' cumulative CPU time.
type Sample struct {
	CPUSeconds float64
	Command    string
}

// Usage is the CPU a process consumed over one frame.
type Usage struct {
	CPUSeconds float64
	// Percent is CPUSeconds relative to the frame's wall time. It exceeds
	// 100 when several cores are busy.
	Percent float64
}

func (u Usage) String() string {
	return fmt.Sprintf("[process cpu] %5.1f%% (%.3fs)", u.Percent, u.CPUSeconds)
}

// Sampler diffs successive CPU readings of one process.
type Sampler struct {
	read     func() (Sample, error)
	baseline Sample
}

// New samples the process with the given pid. The first reading is taken
// immediately and becomes the baseline.
func New(pid int32) (*Sampler, error) {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return nil, fmt.Errorf("failed to open process %d: %w", pid, err)
	}
	return newSampler(func() (Sample, error) { return snapshot(proc) })
}

// NewSelf samples the calling process.
func NewSelf() (*Sampler, error) {
	return New(int32(os.Getpid()))
}

func newSampler(read func() (Sample, error)) (*Sampler, error) {
	baseline, err := read()
	if err != nil {
		return nil, fmt.Errorf("initial snapshot failed: %w", err)
	}
	return &Sampler{read: read, baseline: baseline}, nil
}

// Command returns the command line of the sampled process.
func (s *Sampler) Command() string {
	return s.baseline.Command
}

// Frame returns the CPU used since the previous call (or since New) and
// moves the baseline forward. frameSeconds is the wall time of the frame.
func (s *Sampler) Frame(frameSeconds float64) (Usage, error) {
	current, err := s.read()
	if err != nil {
		return Usage{}, fmt.Errorf("snapshot failed: %w", err)
	}

	diff := current.CPUSeconds - s.baseline.CPUSeconds
	s.baseline = current
	if diff < 0 {
		diff = 0
	}

	usage := Usage{CPUSeconds: diff}
	if frameSeconds > 0 {
		usage.Percent = diff / frameSeconds * 100
	}
	return usage, nil
}

func snapshot(proc *process.Process) (Sample, error) {
	times, err := proc.Times()
	if err != nil {
		return Sample{}, err
	}

	command, err := proc.Cmdline()
	if err != nil || command == "" {
		command, _ = proc.Name()
	}
	if command == "" {
		command = "<unknown>"
	}

	return Sample{
		CPUSeconds: times.User + times.System,
		Command:    command,
	}, nil
}
