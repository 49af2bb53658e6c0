// Package scoring implements the validation metrics: softmax, one-hot
// encoding, average precision and the padded class-wise mAP.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/tphakala/birdclef-go/internal/errors"
)

// DefaultPadN is the number of all-ones rows appended before scoring
const DefaultPadN = 5

// Softmax returns the row-wise softmax of logits. Rows are max-shifted
// before exponentiation.
func Softmax(logits [][]float64) [][]float64 {
	out := make([][]float64, len(logits))
	for i, row := range logits {
		out[i] = SoftmaxRow(row)
	}
	return out
}

// SoftmaxRow returns the softmax of a single logit vector
func SoftmaxRow(row []float64) []float64 {
	p := make([]float64, len(row))
	if len(row) == 0 {
		return p
	}
	m := floats.Max(row)
	for j, v := range row {
		p[j] = math.Exp(v - m)
	}
	floats.Scale(1/floats.Sum(p), p)
	return p
}

// OneHot encodes labels as rows of numClasses columns.
func OneHot(labels []int, numClasses int) ([][]float64, error) {
	out := make([][]float64, len(labels))
	for i, l := range labels {
		if l < 0 || l >= numClasses {
			return nil, errors.Newf("label %d at row %d outside [0, %d)", l, i, numClasses).
				Component("scoring").
				Category(errors.CategoryValidation).
				Build()
		}
		out[i] = make([]float64, numClasses)
		out[i][l] = 1
	}
	return out, nil
}

// AveragePrecision computes AP = Σ (R_n − R_{n−1}) P_n over the distinct
// score thresholds, highest first. Tied scores form one threshold. A column
// without positives scores 0.
func AveragePrecision(yTrue, scores []float64) float64 {
	n := len(scores)
	if n == 0 || len(yTrue) != n {
		return 0
	}

	var positives float64
	for _, y := range yTrue {
		if y > 0 {
			positives++
		}
	}
	if positives == 0 {
		return 0
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	var ap, tp, fp, prevRecall float64
	for i := 0; i < n; {
		threshold := scores[order[i]]
		for i < n && scores[order[i]] == threshold {
			if yTrue[order[i]] > 0 {
				tp++
			} else {
				fp++
			}
			i++
		}
		recall := tp / positives
		precision := tp / (tp + fp)
		ap += (recall - prevRecall) * precision
		prevRecall = recall
	}
	return ap
}

// MacroAveragePrecision averages AveragePrecision over the columns of the
// row-major matrices yTrue and scores.
func MacroAveragePrecision(yTrue, scores [][]float64) (float64, error) {
	if len(yTrue) != len(scores) {
		return 0, shapeError("row count", len(yTrue), len(scores))
	}
	if len(scores) == 0 {
		return 0, errors.Newf("cannot score an empty prediction matrix").
			Component("scoring").
			Category(errors.CategoryValidation).
			Build()
	}

	numClasses := len(scores[0])
	for i := range scores {
		if len(scores[i]) != numClasses || len(yTrue[i]) != numClasses {
			return 0, shapeError(fmt.Sprintf("column count of row %d", i), numClasses, len(scores[i]))
		}
	}
	if numClasses == 0 {
		return 0, nil
	}

	colTrue := make([]float64, len(scores))
	colScore := make([]float64, len(scores))
	var total float64
	for c := range numClasses {
		for r := range scores {
			colTrue[r] = yTrue[r][c]
			colScore[r] = scores[r][c]
		}
		total += AveragePrecision(colTrue, colScore)
	}
	return total / float64(numClasses), nil
}

// PaddedCMAP one-hot encodes labels, softmaxes logits, appends padN
// all-ones rows to both and returns the macro average precision.
func PaddedCMAP(logits [][]float64, labels []int, numClasses, padN int) (float64, error) {
	if len(logits) != len(labels) {
		return 0, shapeError("prediction and label count", len(logits), len(labels))
	}
	for i, row := range logits {
		if len(row) != numClasses {
			return 0, shapeError(fmt.Sprintf("logit width of row %d", i), numClasses, len(row))
		}
	}

	truth, err := OneHot(labels, numClasses)
	if err != nil {
		return 0, err
	}
	return paddedMacroAP(truth, Softmax(logits), numClasses, padN)
}

// PaddedCMAPFromProbabilities pads an already normalized prediction matrix
// and a solution matrix and returns the macro average precision.
func PaddedCMAPFromProbabilities(solution, submission [][]float64, padN int) (float64, error) {
	if len(submission) == 0 {
		return 0, errors.Newf("cannot score an empty submission").
			Component("scoring").
			Category(errors.CategoryValidation).
			Build()
	}
	return paddedMacroAP(solution, submission, len(submission[0]), padN)
}

func paddedMacroAP(truth, scores [][]float64, numClasses, padN int) (float64, error) {
	if padN < 0 {
		return 0, errors.Newf("padding rows must not be negative, got %d", padN).
			Component("scoring").
			Category(errors.CategoryValidation).
			Build()
	}

	pad := make([]float64, numClasses)
	for i := range pad {
		pad[i] = 1
	}

	paddedTruth := make([][]float64, 0, len(truth)+padN)
	paddedScores := make([][]float64, 0, len(scores)+padN)
	paddedTruth = append(paddedTruth, truth...)
	paddedScores = append(paddedScores, scores...)
	for range padN {
		paddedTruth = append(paddedTruth, pad)
		paddedScores = append(paddedScores, pad)
	}

	return MacroAveragePrecision(paddedTruth, paddedScores)
}

// Accuracy returns the percentage of rows whose argmax equals the label
func Accuracy(logits [][]float64, labels []int) float64 {
	if len(logits) == 0 || len(logits) != len(labels) {
		return 0
	}
	var hits int
	for i, row := range logits {
		if len(row) > 0 && floats.MaxIdx(row) == labels[i] {
			hits++
		}
	}
	return 100 * float64(hits) / float64(len(logits))
}

func shapeError(what string, want, got int) error {
	return errors.Newf("shape mismatch in %s: %d vs %d", what, want, got).
		Component("scoring").
		Category(errors.CategoryValidation).
		Build()
}
