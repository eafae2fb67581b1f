package sink

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/danmuck/picoctl/internal/protocol"
	"github.com/pelletier/go-toml/v2"
)

// Report is the per-burst document written by ReportSink.
type Report struct {
	Burst          string         `toml:"burst"`
	Device         string         `toml:"device"`
	Version        string         `toml:"version"`
	Port           string         `toml:"port,omitempty"`
	Outcome        string         `toml:"outcome"`
	ErrorCode      string         `toml:"error_code,omitempty"`
	Started        time.Time      `toml:"started"`
	ElapsedSeconds float64        `toml:"elapsed_seconds"`
	Succeeded      int            `toml:"succeeded"`
	Failed         int            `toml:"failed"`
	Measurements   int            `toml:"measurements"`
	Curves         []CurveReport  `toml:"curves"`
	Variables      []VarRangeInfo `toml:"variables"`
}

// CurveReport counts the points of one curve.
type CurveReport struct {
	Index  int `toml:"index"`
	Points int `toml:"points"`
}

// VarRangeInfo is the observed span of one variable type across the burst.
type VarRangeInfo struct {
	Code  string  `toml:"code"`
	Label string  `toml:"label"`
	Count int     `toml:"count"`
	Min   float64 `toml:"min"`
	Max   float64 `toml:"max"`
	NaN   int     `toml:"nan,omitempty"`
}

// ReportSink writes <dir>/<burst id>.toml when a burst ends.
type ReportSink struct {
	dir     string
	device  protocol.VersionInfo
	port    string
	curves  map[int]int
	order   []protocol.VarType
	vars    map[protocol.VarType]*VarRangeInfo
	written []string
}

func NewReportSink(dir string, device protocol.VersionInfo, port string) (*ReportSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("report sink: %w", err)
	}
	s := &ReportSink{dir: dir, device: device, port: port}
	s.reset()
	return s, nil
}

func (s *ReportSink) reset() {
	s.curves = make(map[int]int)
	s.order = nil
	s.vars = make(map[protocol.VarType]*VarRangeInfo)
}

// Written lists the report files produced so far.
func (s *ReportSink) Written() []string {
	return append([]string(nil), s.written...)
}

func (s *ReportSink) HandleMeasurement(_ context.Context, m protocol.Measurement) error {
	s.curves[m.Curve]++
	for _, r := range m.Readings {
		info, ok := s.vars[r.VarType]
		if !ok {
			info = &VarRangeInfo{
				Code:  r.VarType.Code(),
				Label: r.VarType.Label(),
				Min:   math.Inf(1),
				Max:   math.Inf(-1),
			}
			s.vars[r.VarType] = info
			s.order = append(s.order, r.VarType)
		}
		if math.IsNaN(r.Value) {
			info.NaN++
			continue
		}
		info.Count++
		info.Min = math.Min(info.Min, r.Value)
		info.Max = math.Max(info.Max, r.Value)
	}
	return nil
}

func (s *ReportSink) build(sum protocol.Summary) Report {
	rep := Report{
		Burst:          sum.ID,
		Device:         s.device.Device.String(),
		Version:        s.device.Raw,
		Port:           s.port,
		Outcome:        sum.Outcome.String(),
		ErrorCode:      sum.ErrorCode,
		Started:        sum.Started,
		ElapsedSeconds: sum.Elapsed.Seconds(),
		Succeeded:      sum.Counters.Succeeded,
		Failed:         sum.Counters.Failed,
		Measurements:   sum.Measurements,
	}
	for idx, points := range s.curves {
		rep.Curves = append(rep.Curves, CurveReport{Index: idx, Points: points})
	}
	sort.Slice(rep.Curves, func(i, j int) bool {
		return rep.Curves[i].Index < rep.Curves[j].Index
	})
	for _, v := range s.order {
		info := *s.vars[v]
		if info.Count == 0 {
			info.Min, info.Max = 0, 0
		}
		rep.Variables = append(rep.Variables, info)
	}
	return rep
}

func (s *ReportSink) HandleSummary(_ context.Context, sum protocol.Summary) error {
	defer s.reset()
	data, err := toml.Marshal(s.build(sum))
	if err != nil {
		return fmt.Errorf("report sink: encode: %w", err)
	}
	name := sum.ID
	if name == "" {
		name = "burst"
	}
	path := filepath.Join(s.dir, name+".toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("report sink: %w", err)
	}
	s.written = append(s.written, path)
	return nil
}

// ReadReport decodes a report written by ReportSink.
func ReadReport(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("report sink: %w", err)
	}
	var rep Report
	if err := toml.Unmarshal(data, &rep); err != nil {
		return Report{}, fmt.Errorf("report sink: parse %s: %w", path, err)
	}
	return rep, nil
}

func (s *ReportSink) Close() error {
	return nil
}
