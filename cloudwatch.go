package main

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/cloudwatch"

	"github.com/stojg/gradient/descent"
)

const Day = time.Hour * 24

type metricsClient interface {
	GetMetricStatistics(*cloudwatch.GetMetricStatisticsInput) (*cloudwatch.GetMetricStatisticsOutput, error)
}

func NewPeriod(span time.Duration) *Period {
	return &Period{
		span:   span,
		Period: 60,
	}
}

// Period splits a span into day long windows of one minute buckets.
type Period struct {
	span   time.Duration
	Period int64
}

func (period *Period) Days() float64 {
	return float64(period.span) / float64(Day)
}

func (period *Period) Start(days float64) time.Time {
	return time.Now().Add(time.Duration(float64(Day)*-days) - time.Second)
}

func (period *Period) End(days float64) time.Time {
	days = math.Max(0, days-1)
	return time.Now().Add(time.Duration(float64(Day) * -days))
}

// loadCloudWatchDataset fetches both metrics of src and pairs them by the
// minute they were recorded in, oldest first.
func loadCloudWatchDataset(client metricsClient, src CloudWatchSource) (descent.Dataset, error) {
	period := NewPeriod(src.Span)

	xs, err := getMetric(client, src, src.XMetric, period)
	if err != nil {
		return nil, err
	}
	ys, err := getMetric(client, src, src.YMetric, period)
	if err != nil {
		return nil, err
	}

	var agos []int
	for ago := range ys {
		if _, found := xs[ago]; found {
			agos = append(agos, ago)
		}
	}
	if len(agos) == 0 {
		return nil, fmt.Errorf("no overlapping datapoints for '%s' and '%s'", src.XMetric, src.YMetric)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(agos)))

	data := make(descent.Dataset, len(agos))
	for i, ago := range agos {
		data[i] = descent.Point{X: xs[ago], Y: ys[ago]}
	}
	return data, nil
}

func getMetric(client metricsClient, src CloudWatchSource, metricName string, period *Period) (map[int]float64, error) {
	result := make(map[int]float64)

	var dimensions []*cloudwatch.Dimension
	if src.DimensionName != "" {
		dimensions = []*cloudwatch.Dimension{
			{
				Name:  aws.String(src.DimensionName),
				Value: aws.String(src.DimensionValue),
			},
		}
	}

	for i := period.Days(); i > 0; i-- {
		res, err := client.GetMetricStatistics(&cloudwatch.GetMetricStatisticsInput{
			Dimensions: dimensions,
			Namespace:  aws.String(src.Namespace),
			MetricName: aws.String(metricName),
			StartTime:  aws.Time(period.Start(i)),
			EndTime:    aws.Time(period.End(i)),
			Period:     aws.Int64(period.Period),
			Statistics: []*string{aws.String(src.Statistic)},
		})
		if err != nil {
			return nil, fmt.Errorf("could not get '%s' statistics: %w", metricName, err)
		}
		sumMetric(res.Datapoints, src.Statistic, result)
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("no datapoints were found for '%s'", metricName)
	}
	return result, nil
}

// sumMetric adds each datapoint's statistic to the bucket for its minute.
func sumMetric(in []*cloudwatch.Datapoint, statistic string, result map[int]float64) {
	for _, point := range in {
		v := statisticValue(point, statistic)
		if v == nil || point.Timestamp == nil {
			continue
		}
		result[minutesAgo(point)] += *v
	}
}

func statisticValue(point *cloudwatch.Datapoint, statistic string) *float64 {
	switch statistic {
	case cloudwatch.StatisticAverage:
		return point.Average
	case cloudwatch.StatisticMaximum:
		return point.Maximum
	case cloudwatch.StatisticMinimum:
		return point.Minimum
	case cloudwatch.StatisticSampleCount:
		return point.SampleCount
	}
	return point.Sum
}

func minutesAgo(point *cloudwatch.Datapoint) int {
	since := time.Since(*point.Timestamp)
	return int(math.Floor(float64(since / time.Minute)))
}
