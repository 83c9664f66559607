// Package export writes statistics as json, csv, prometheus or influxdb line protocol.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"ccload/internal/stats"
)

// Formats lists the supported export formats.
var Formats = []string{"json", "csv", "prometheus", "influxdb"}

// Report is the statistics of one target.
type Report struct {
	Target     string           `json:"target"`
	Statistics stats.Statistics `json:"metrics"`
}

// Supported reports whether format is one of Formats.
func Supported(format string) bool {
	for _, f := range Formats {
		if f == format {
			return true
		}
	}
	return false
}

// Write renders reports in format, stamped with ts.
func Write(w io.Writer, format string, ts time.Time, reports []Report) error {
	switch format {
	case "json":
		return writeJSON(w, ts, reports)
	case "csv":
		return writeCSV(w, ts, reports)
	case "prometheus":
		return writePrometheus(w, reports)
	case "influxdb":
		return writeInflux(w, ts, reports)
	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
}

func writeJSON(w io.Writer, ts time.Time, reports []Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	stamp := ts.Format(time.RFC3339)
	if len(reports) == 1 {
		return enc.Encode(struct {
			Timestamp string           `json:"timestamp"`
			Metrics   stats.Statistics `json:"metrics"`
		}{stamp, reports[0].Statistics})
	}
	if reports == nil {
		reports = []Report{}
	}
	return enc.Encode(struct {
		Timestamp string   `json:"timestamp"`
		Results   []Report `json:"results"`
	}{stamp, reports})
}

func writeCSV(w io.Writer, ts time.Time, reports []Report) error {
	cw := csv.NewWriter(w)

	header := []string{"timestamp", "target"}
	for _, f := range (stats.Statistics{}).Fields() {
		header = append(header, f.Name)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	stamp := ts.Format(time.RFC3339)
	for _, r := range reports {
		record := []string{stamp, r.Target}
		for _, f := range r.Statistics.Fields() {
			record = append(record, strconv.FormatFloat(f.Value, 'f', -1, 64))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// writePrometheus renders one gauge per statistic, labelled by target, in the
// text exposition format.
func writePrometheus(w io.Writer, reports []Report) error {
	reg := prometheus.NewRegistry()
	gauges := make(map[string]*prometheus.GaugeVec)

	for _, f := range (stats.Statistics{}).Fields() {
		g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ccload",
			Name:      f.Name,
			Help:      "ccload " + strings.ReplaceAll(f.Name, "_", " "),
		}, []string{"target"})
		if err := reg.Register(g); err != nil {
			return err
		}
		gauges[f.Name] = g
	}

	for _, r := range reports {
		for _, f := range r.Statistics.Fields() {
			gauges[f.Name].WithLabelValues(r.Target).Set(f.Value)
		}
	}

	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

var (
	influxTagEscaper = strings.NewReplacer(",", `\,`, "=", `\=`, " ", `\ `)
)

// writeInflux renders one point per report in line protocol.
func writeInflux(w io.Writer, ts time.Time, reports []Report) error {
	for _, r := range reports {
		fields := r.Statistics.Fields()
		parts := make([]string, 0, len(fields))
		for _, f := range fields {
			parts = append(parts, f.Name+"="+influxValue(f))
		}
		sort.Strings(parts)

		series := "ccload"
		if r.Target != "" {
			series += ",target=" + influxTagEscaper.Replace(r.Target)
		}
		line := fmt.Sprintf("%s %s %d\n", series, strings.Join(parts, ","), ts.UnixNano())
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}
	return nil
}

// influxValue writes counts as integers and everything else as floats.
func influxValue(f stats.Field) string {
	if strings.HasSuffix(f.Name, "_requests") {
		return strconv.FormatInt(int64(f.Value), 10) + "i"
	}
	return strconv.FormatFloat(f.Value, 'f', -1, 64)
}
