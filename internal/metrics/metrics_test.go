package metrics

import (
	"bytes"
	"math"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	yTrue := []bool{true, true, true, false, false, true}
	scores := []float64{0.8, 0.7, 0.5, 0.2, 0.8, 0.1}

	r, err := Classify(yTrue, scores, 0.5, 1)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	// Positive predictions: 0.8, 0.7, 0.8 (0.5 is not above the threshold).
	if r.TP != 2 || r.FP != 1 || r.FN != 2 || r.TN != 1 {
		t.Errorf("confusion tp=%d fp=%d fn=%d tn=%d", r.TP, r.FP, r.FN, r.TN)
	}
	if math.Abs(r.Precision-2.0/3.0) > 1e-9 {
		t.Errorf("precision = %f", r.Precision)
	}
	if math.Abs(r.Recall-0.5) > 1e-9 {
		t.Errorf("recall = %f", r.Recall)
	}
	want := 2 * (2.0 / 3.0) * 0.5 / (2.0/3.0 + 0.5)
	if math.Abs(r.FScore-want) > 1e-9 {
		t.Errorf("f1 = %f, want %f", r.FScore, want)
	}
}

func TestClassifyErrors(t *testing.T) {
	if _, err := Classify([]bool{true}, []float64{0.1, 0.2}, 0.5, 1); err != ErrLengthMismatch {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
	if _, err := Classify(nil, nil, 0.5, 1); err != ErrEmpty {
		t.Errorf("expected ErrEmpty, got %v", err)
	}
}

func TestROCPerfectAndRandom(t *testing.T) {
	perfect := ROC([]bool{true, true, false, false}, []float64{0.9, 0.8, 0.3, 0.1})
	if auc := perfect.AUC(); math.Abs(auc-1) > 1e-9 {
		t.Errorf("perfect AUC = %f", auc)
	}
	if !math.IsInf(perfect.Thresholds[0], 1) {
		t.Errorf("first threshold should be +Inf, got %f", perfect.Thresholds[0])
	}
	last := len(perfect.FPR) - 1
	if perfect.FPR[last] != 1 || perfect.TPR[last] != 1 {
		t.Errorf("curve should end at (1,1), got (%f,%f)", perfect.FPR[last], perfect.TPR[last])
	}

	// All scores tied: a single step from (0,0) to (1,1).
	tied := ROC([]bool{true, false, true, false}, []float64{0.5, 0.5, 0.5, 0.5})
	if len(tied.FPR) != 2 {
		t.Fatalf("expected 2 points, got %d", len(tied.FPR))
	}
	if auc := tied.AUC(); math.Abs(auc-0.5) > 1e-9 {
		t.Errorf("tied AUC = %f", auc)
	}
}

func TestRegress(t *testing.T) {
	yTrue := []float64{1, 2, 4, 0}
	yPred := []float64{1.5, 2, 3, 1}

	r, err := Regress(yTrue, yPred)
	if err != nil {
		t.Fatalf("Regress: %v", err)
	}

	if r.Count != 4 {
		t.Errorf("count = %d", r.Count)
	}
	// errors: 0.5, 0, -1, 1
	if math.Abs(r.MSE-(0.25+0+1+1)/4) > 1e-9 {
		t.Errorf("mse = %f", r.MSE)
	}
	if math.Abs(r.MAE-2.5/4) > 1e-9 {
		t.Errorf("mae = %f", r.MAE)
	}
	// zero truth is skipped: (0.5/1 + 0/2 + 1/4) / 3
	if math.Abs(r.MAPE-0.75/3) > 1e-9 {
		t.Errorf("mape = %f", r.MAPE)
	}
	if r.P99AbsErr < r.P50AbsErr {
		t.Errorf("p99 %f < p50 %f", r.P99AbsErr, r.P50AbsErr)
	}
	if math.Abs(r.P99AbsErr-1) > 0.02 {
		t.Errorf("p99 = %f, want ~1", r.P99AbsErr)
	}
}

func TestRenderROC(t *testing.T) {
	c := ROC([]bool{true, false, true, false}, []float64{0.9, 0.6, 0.7, 0.2})

	var buf bytes.Buffer
	if err := RenderROC(&buf, c, 30, 10); err != nil {
		t.Fatalf("RenderROC: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "ROC curve (AUC=") {
		t.Errorf("missing title: %q", out)
	}
	if !strings.Contains(out, "*") {
		t.Error("curve not drawn")
	}
	// title + 10 rows + axis + labels
	if lines := strings.Count(out, "\n"); lines != 13 {
		t.Errorf("expected 13 lines, got %d", lines)
	}
}
