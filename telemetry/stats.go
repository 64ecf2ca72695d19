package telemetry

import (
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartTick int32   `csv:"-"`
	WindowEndTick   int32   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Population counts at window end
	Agents    int `csv:"agents"`
	Following int `csv:"following"`
	Idle      int `csv:"idle"`

	// Planning
	PlansOK       int     `csv:"plans_ok"`
	PlansFailed   int     `csv:"plans_failed"`
	FailRate      float64 `csv:"fail_rate"`
	MeanExpanded  float64 `csv:"mean_expanded"`
	MeanWaypoints float64 `csv:"mean_waypoints"`
	MeanPathCost  float64 `csv:"mean_path_cost"`

	// Events during window
	Arrivals        int `csv:"arrivals"`
	Replans         int `csv:"replans"`
	ObstaclesPlaced int `csv:"obstacles_placed"`
	CellsBlocked    int `csv:"cells_blocked"`
	Spawned         int `csv:"spawned"`
	Removed         int `csv:"removed"`

	// Trip durations in sim seconds for arrivals in this window
	TripSecMean  float64 `csv:"trip_sec_mean"`
	TripSecP10   float64 `csv:"trip_sec_p10"`
	TripSecP50   float64 `csv:"trip_sec_p50"`
	TripSecP90   float64 `csv:"trip_sec_p90"`
	TripDistMean float64 `csv:"trip_dist_mean"`

	// Speed distribution (sampled at window end)
	SpeedMean float64 `csv:"speed_mean"`
	SpeedP90  float64 `csv:"speed_p90"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeDistribution calculates mean and percentiles of values.
// values is not modified.
func ComputeDistribution(values []float64) (mean, p10, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}

	mean = stat.Mean(values, nil)

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)

	return mean, p10, p50, p90
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (s WindowStats) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt32("window_start", s.WindowStartTick)
	enc.AddInt32("window_end", s.WindowEndTick)
	enc.AddFloat64("sim_time", s.SimTimeSec)
	enc.AddInt("agents", s.Agents)
	enc.AddInt("following", s.Following)
	enc.AddInt("idle", s.Idle)
	enc.AddInt("plans_ok", s.PlansOK)
	enc.AddInt("plans_failed", s.PlansFailed)
	enc.AddFloat64("fail_rate", s.FailRate)
	enc.AddFloat64("mean_expanded", s.MeanExpanded)
	enc.AddFloat64("mean_waypoints", s.MeanWaypoints)
	enc.AddFloat64("mean_path_cost", s.MeanPathCost)
	enc.AddInt("arrivals", s.Arrivals)
	enc.AddInt("replans", s.Replans)
	enc.AddInt("obstacles_placed", s.ObstaclesPlaced)
	enc.AddInt("cells_blocked", s.CellsBlocked)
	enc.AddInt("spawned", s.Spawned)
	enc.AddInt("removed", s.Removed)
	enc.AddFloat64("trip_sec_mean", s.TripSecMean)
	enc.AddFloat64("trip_sec_p10", s.TripSecP10)
	enc.AddFloat64("trip_sec_p50", s.TripSecP50)
	enc.AddFloat64("trip_sec_p90", s.TripSecP90)
	enc.AddFloat64("trip_dist_mean", s.TripDistMean)
	enc.AddFloat64("speed_mean", s.SpeedMean)
	enc.AddFloat64("speed_p90", s.SpeedP90)
	return nil
}

// LogStats logs the headline numbers of the window.
func (s WindowStats) LogStats(log *zap.Logger) {
	log.Info("stats",
		zap.Int32("window_end", s.WindowEndTick),
		zap.Float64("sim_time", s.SimTimeSec),
		zap.Int("agents", s.Agents),
		zap.Int("following", s.Following),
		zap.Int("plans_ok", s.PlansOK),
		zap.Int("plans_failed", s.PlansFailed),
		zap.Int("arrivals", s.Arrivals),
		zap.Int("replans", s.Replans),
		zap.Float64("trip_sec_p50", s.TripSecP50),
		zap.Float64("speed_mean", s.SpeedMean),
	)
}
