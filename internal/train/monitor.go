package train

import (
	"context"
	"fmt"
	"strings"

	"github.com/eamonbyrne/promoter-models/internal/checkpoint"
	"github.com/eamonbyrne/promoter-models/internal/dataset"
	"github.com/eamonbyrne/promoter-models/internal/metrics"
	"github.com/eamonbyrne/promoter-models/internal/nn"
)

const (
	monitorPrefix  = "val_"
	spearmanSuffix = "_mean_SpearmanR"
)

// resolveMonitor validates the monitored metric against the loaded
// datasets and returns its name and optimization direction. The empty
// monitor defaults to overall validation loss.
func resolveMonitor(p Params, loaders []dataset.Loader) (string, checkpoint.Direction, error) {
	name := p.MetricToMonitor
	if name == "" {
		name = MonitorOverallValLoss
	}

	direction, err := checkpoint.ParseDirection(defaultDirection(p))
	if err != nil {
		return "", "", err
	}
	if name == MonitorOverallValLoss {
		return name, direction, nil
	}

	if _, err := monitorLoader(name, loaders); err != nil {
		return "", "", err
	}
	return name, direction, nil
}

// monitorLoader resolves a "val_{Dataset}_mean_SpearmanR" monitor to the
// index of its dataset.
func monitorLoader(name string, loaders []dataset.Loader) (int, error) {
	if !strings.HasPrefix(name, monitorPrefix) || !strings.HasSuffix(name, spearmanSuffix) {
		return 0, fmt.Errorf("unknown metric to monitor %q", name)
	}
	target := strings.TrimSuffix(strings.TrimPrefix(name, monitorPrefix), spearmanSuffix)
	for i, l := range loaders {
		if l.Name() == target {
			return i, nil
		}
	}
	return 0, fmt.Errorf("metric %q monitors dataset %q, which is not among the loaded tasks", name, target)
}

// monitorValue computes the monitored metric on the validation splits.
func monitorValue(ctx context.Context, trainer *nn.Trainer,
	loaders []dataset.Loader, splits []*dataset.Splits, name string) (float64, error) {

	if name == MonitorOverallValLoss {
		var total float64
		for head := range splits {
			loss, err := trainer.Loss(ctx, head, splits[head].Val)
			if err != nil {
				return 0, err
			}
			total += loss
		}
		return total / float64(len(splits)), nil
	}

	head, err := monitorLoader(name, loaders)
	if err != nil {
		return 0, err
	}
	val := splits[head].Val
	if len(val) == 0 {
		return 0, fmt.Errorf("dataset %s has an empty validation split", loaders[head].Name())
	}

	net := trainer.Network()
	outputs := len(loaders[head].OutputNames())
	y := make([][]float64, outputs)
	pred := make([][]float64, outputs)
	for _, sample := range val {
		p := net.Predict(sample.Input, head)
		for j := 0; j < outputs; j++ {
			if sample.Mask != nil && !sample.Mask[j] {
				continue
			}
			y[j] = append(y[j], sample.Target[j])
			pred[j] = append(pred[j], p[j])
		}
	}

	var total float64
	for j := 0; j < outputs; j++ {
		metrics.ZeroFillNaN(pred[j])
		total += metrics.Spearman(y[j], pred[j])
	}
	return total / float64(outputs), nil
}
