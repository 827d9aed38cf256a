// Package metrics computes evaluation statistics for stored model
// artifacts: precision/recall/F-beta, confusion counts and the ROC curve
// for classifiers; squared, absolute and percentage errors plus
// absolute-error quantiles for regressors.
package metrics

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/DataDog/sketches-go/ddsketch"
)

// sketchAccuracy is the relative accuracy of the absolute-error quantiles.
const sketchAccuracy = 0.01

// Report is what a model artifact carries. Exactly one field is set.
type Report struct {
	Classification *ClassificationReport `msgpack:"classification,omitempty" cbor:"1,keyasint,omitempty"`
	Regression     *RegressionReport     `msgpack:"regression,omitempty" cbor:"2,keyasint,omitempty"`
}

// ClassificationReport holds binary classification metrics at one threshold.
type ClassificationReport struct {
	Threshold float64  `msgpack:"threshold" cbor:"1,keyasint"`
	Beta      float64  `msgpack:"beta" cbor:"2,keyasint"`
	Precision float64  `msgpack:"precision" cbor:"3,keyasint"`
	Recall    float64  `msgpack:"recall" cbor:"4,keyasint"`
	FScore    float64  `msgpack:"f_score" cbor:"5,keyasint"`
	TP        int      `msgpack:"tp" cbor:"6,keyasint"`
	FP        int      `msgpack:"fp" cbor:"7,keyasint"`
	FN        int      `msgpack:"fn" cbor:"8,keyasint"`
	TN        int      `msgpack:"tn" cbor:"9,keyasint"`
	ROC       ROCCurve `msgpack:"roc" cbor:"10,keyasint"`
	AUC       float64  `msgpack:"auc" cbor:"11,keyasint"`
}

// ROCCurve is a receiver operating characteristic curve. Point i is
// (FPR[i], TPR[i]) obtained by predicting positive when score >= Thresholds[i].
type ROCCurve struct {
	FPR        []float64 `msgpack:"fpr" cbor:"1,keyasint"`
	TPR        []float64 `msgpack:"tpr" cbor:"2,keyasint"`
	Thresholds []float64 `msgpack:"thresholds" cbor:"3,keyasint"`
}

// RegressionReport holds regression error statistics.
type RegressionReport struct {
	Count     int     `msgpack:"count" cbor:"1,keyasint"`
	MSE       float64 `msgpack:"mse" cbor:"2,keyasint"`
	MAE       float64 `msgpack:"mae" cbor:"3,keyasint"`
	MAPE      float64 `msgpack:"mape" cbor:"4,keyasint"`
	P50AbsErr float64 `msgpack:"p50_abs_err" cbor:"5,keyasint"`
	P90AbsErr float64 `msgpack:"p90_abs_err" cbor:"6,keyasint"`
	P99AbsErr float64 `msgpack:"p99_abs_err" cbor:"7,keyasint"`
}

// ErrLengthMismatch is returned when truth and prediction lengths differ.
var ErrLengthMismatch = errors.New("metrics: truth and prediction lengths differ")

// ErrEmpty is returned for empty inputs.
var ErrEmpty = errors.New("metrics: no observations")

// Classify computes metrics for binary labels and scores. A score strictly
// above threshold counts as a positive prediction. beta weights recall in
// the F score; beta <= 0 is treated as 1.
func Classify(yTrue []bool, scores []float64, threshold, beta float64) (*ClassificationReport, error) {
	if len(yTrue) != len(scores) {
		return nil, ErrLengthMismatch
	}
	if len(yTrue) == 0 {
		return nil, ErrEmpty
	}
	if beta <= 0 {
		beta = 1
	}

	r := &ClassificationReport{Threshold: threshold, Beta: beta}
	for i, positive := range yTrue {
		predicted := scores[i] > threshold
		switch {
		case positive && predicted:
			r.TP++
		case !positive && predicted:
			r.FP++
		case positive && !predicted:
			r.FN++
		default:
			r.TN++
		}
	}

	r.Precision = ratio(r.TP, r.TP+r.FP)
	r.Recall = ratio(r.TP, r.TP+r.FN)
	b2 := beta * beta
	if d := b2*r.Precision + r.Recall; d > 0 {
		r.FScore = (1 + b2) * r.Precision * r.Recall / d
	}

	r.ROC = ROC(yTrue, scores)
	r.AUC = r.ROC.AUC()
	return r, nil
}

// ROC computes the ROC curve with one point per distinct score, highest
// first, preceded by the (0, 0) point at an infinite threshold.
func ROC(yTrue []bool, scores []float64) ROCCurve {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	var pos, neg int
	for _, p := range yTrue {
		if p {
			pos++
		} else {
			neg++
		}
	}

	curve := ROCCurve{
		FPR:        []float64{0},
		TPR:        []float64{0},
		Thresholds: []float64{math.Inf(1)},
	}

	var tp, fp int
	for i, idx := range order {
		if yTrue[idx] {
			tp++
		} else {
			fp++
		}
		// Emit a point only after the last observation sharing this score.
		if i+1 < len(order) && scores[order[i+1]] == scores[idx] {
			continue
		}
		curve.FPR = append(curve.FPR, ratio(fp, neg))
		curve.TPR = append(curve.TPR, ratio(tp, pos))
		curve.Thresholds = append(curve.Thresholds, scores[idx])
	}
	return curve
}

// AUC is the area under the curve by the trapezoidal rule.
func (c ROCCurve) AUC() float64 {
	var area float64
	for i := 1; i < len(c.FPR); i++ {
		area += (c.FPR[i] - c.FPR[i-1]) * (c.TPR[i] + c.TPR[i-1]) / 2
	}
	return area
}

// Regress computes regression error statistics.
func Regress(yTrue, yPred []float64) (*RegressionReport, error) {
	if len(yTrue) != len(yPred) {
		return nil, ErrLengthMismatch
	}
	if len(yTrue) == 0 {
		return nil, ErrEmpty
	}

	sketch, err := ddsketch.NewDefaultDDSketch(sketchAccuracy)
	if err != nil {
		return nil, fmt.Errorf("create sketch: %w", err)
	}

	r := &RegressionReport{Count: len(yTrue)}
	var sq, abs, pct float64
	var pctN int
	for i, truth := range yTrue {
		e := yPred[i] - truth
		ae := math.Abs(e)
		sq += e * e
		abs += ae
		if truth != 0 {
			pct += ae / math.Abs(truth)
			pctN++
		}
		if err := sketch.Add(ae); err != nil {
			return nil, fmt.Errorf("sketch add: %w", err)
		}
	}

	n := float64(len(yTrue))
	r.MSE = sq / n
	r.MAE = abs / n
	if pctN > 0 {
		r.MAPE = pct / float64(pctN)
	}

	for _, q := range []struct {
		dst *float64
		q   float64
	}{{&r.P50AbsErr, 0.50}, {&r.P90AbsErr, 0.90}, {&r.P99AbsErr, 0.99}} {
		v, err := sketch.GetValueAtQuantile(q.q)
		if err != nil {
			return nil, fmt.Errorf("sketch quantile %.2f: %w", q.q, err)
		}
		*q.dst = v
	}
	return r, nil
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}
