package telemetry

import (
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// Segment is one run of consecutive register addresses. Values is the
// concatenation of the register values in address order.
type Segment struct {
	Start  string
	End    string
	Values string
}

func (s Segment) String() string {
	return s.Start + s.End + s.Values
}

type register struct {
	key   string
	addr  uint64
	value string
}

// Segments partitions registers into maximal runs of consecutive hex
// addresses. Keys that are not hex numbers are skipped.
func Segments(registers map[string]string) []Segment {
	regs := make([]register, 0, len(registers))
	for k, v := range registers {
		addr, err := strconv.ParseUint(k, 16, 64)
		if err != nil {
			continue
		}
		regs = append(regs, register{key: k, addr: addr, value: v})
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].addr < regs[j].addr })

	var segments []Segment
	var cur *Segment
	for i, r := range regs {
		if cur == nil {
			cur = &Segment{Start: r.key}
		}
		cur.Values += r.value
		if i == len(regs)-1 || regs[i+1].addr != r.addr+1 {
			cur.End = r.key
			segments = append(segments, *cur)
			cur = nil
		}
	}
	return segments
}

// DecodeSegments expands segments back into registers. width is the number
// of hex characters per register value.
func DecodeSegments(segments []Segment, width int) (map[string]string, error) {
	if width <= 0 {
		return nil, errors.Errorf("invalid register width %d", width)
	}
	registers := make(map[string]string)
	for _, s := range segments {
		start, err := strconv.ParseUint(s.Start, 16, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "segment start %q", s.Start)
		}
		end, err := strconv.ParseUint(s.End, 16, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "segment end %q", s.End)
		}
		if end < start {
			return nil, errors.Errorf("segment %s-%s is reversed", s.Start, s.End)
		}
		n := int(end-start) + 1
		if len(s.Values) != n*width {
			return nil, errors.Errorf("segment %s-%s carries %d chars, want %d", s.Start, s.End, len(s.Values), n*width)
		}
		for i := 0; i < n; i++ {
			key := strconv.FormatUint(start+uint64(i), 16)
			key = padKey(key, len(s.Start))
			registers[key] = s.Values[i*width : (i+1)*width]
		}
	}
	return registers, nil
}

func padKey(key string, width int) string {
	for len(key) < width {
		key = "0" + key
	}
	return key
}
