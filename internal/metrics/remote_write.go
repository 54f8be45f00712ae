package metrics

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/golang/snappy"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/prometheus/prompb"
	"go.uber.org/zap"
)

// StartRemoteWrite pushes gathered metrics to Mimir every flush interval
// until ctx is done. It returns immediately when no URL is configured.
func (c *Collector) StartRemoteWrite(ctx context.Context) {
	if c == nil || c.config.URL == "" {
		return
	}

	interval := c.config.FlushInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.writeToMimir(ctx); err != nil {
				c.logger.Warn("Remote write failed", zap.Error(err))
			}
		}
	}
}

func (c *Collector) writeToMimir(ctx context.Context) error {
	mfs, err := c.gatherer.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	series := metricsToSeries(mfs, time.Now().UnixMilli())
	if len(series) == 0 {
		return nil
	}

	batchSize := c.config.BatchSize
	if batchSize <= 0 {
		batchSize = len(series)
	}

	for i := 0; i < len(series); i += batchSize {
		end := i + batchSize
		if end > len(series) {
			end = len(series)
		}
		if err := c.sendBatch(ctx, series[i:end]); err != nil {
			return fmt.Errorf("failed to send batch: %w", err)
		}
	}
	return nil
}

func metricsToSeries(mfs []*dto.MetricFamily, timestamp int64) []prompb.TimeSeries {
	var series []prompb.TimeSeries

	for _, mf := range mfs {
		for _, m := range mf.Metric {
			var value float64
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				value = m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				value = m.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				hist := m.GetHistogram()
				for _, bucket := range hist.GetBucket() {
					le := prompb.Label{Name: "le", Value: fmt.Sprintf("%g", bucket.GetUpperBound())}
					series = append(series, prompb.TimeSeries{
						Labels:  seriesLabels(mf.GetName()+"_bucket", m.Label, le),
						Samples: []prompb.Sample{{Value: float64(bucket.GetCumulativeCount()), Timestamp: timestamp}},
					})
				}

				series = append(series,
					prompb.TimeSeries{
						Labels:  seriesLabels(mf.GetName()+"_count", m.Label),
						Samples: []prompb.Sample{{Value: float64(hist.GetSampleCount()), Timestamp: timestamp}},
					},
					prompb.TimeSeries{
						Labels:  seriesLabels(mf.GetName()+"_sum", m.Label),
						Samples: []prompb.Sample{{Value: hist.GetSampleSum(), Timestamp: timestamp}},
					},
				)
				continue
			default:
				continue
			}

			series = append(series, prompb.TimeSeries{
				Labels:  seriesLabels(mf.GetName(), m.Label),
				Samples: []prompb.Sample{{Value: value, Timestamp: timestamp}},
			})
		}
	}

	return series
}

// seriesLabels builds the label set of one series sorted by name, as remote
// write receivers require.
func seriesLabels(name string, pairs []*dto.LabelPair, extra ...prompb.Label) []prompb.Label {
	labels := make([]prompb.Label, 0, len(pairs)+len(extra)+1)
	labels = append(labels, prompb.Label{Name: "__name__", Value: name})
	for _, l := range pairs {
		labels = append(labels, prompb.Label{Name: l.GetName(), Value: l.GetValue()})
	}
	labels = append(labels, extra...)
	sort.Slice(labels, func(i, j int) bool { return labels[i].Name < labels[j].Name })
	return labels
}

func (c *Collector) sendBatch(ctx context.Context, series []prompb.TimeSeries) error {
	req := &prompb.WriteRequest{Timeseries: series}

	data, err := req.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	compressed := snappy.Encode(nil, data)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL+"/api/v1/push", bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/x-protobuf")
	httpReq.Header.Set("Content-Encoding", "snappy")
	httpReq.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")
	if c.config.TenantID != "" {
		httpReq.Header.Set(c.config.TenantHeader, c.config.TenantID)
	}
	if c.config.AuthToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.AuthToken)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("remote write failed with status %d", resp.StatusCode)
	}
	return nil
}
