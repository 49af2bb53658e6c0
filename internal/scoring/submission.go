package scoring

import (
	"strconv"

	"github.com/tphakala/birdclef-go/internal/dataset"
	"github.com/tphakala/birdclef-go/internal/errors"
)

// RowIDColumn identifies rows in solution and submission files
const RowIDColumn = "row_id"

// Matrices is a solution and submission pair aligned by class column
type Matrices struct {
	Classes    []string
	Solution   [][]float64
	Submission [][]float64
}

// ScoreFiles reads a solution and a submission CSV and returns their padded
// cmAP. Both files carry a row_id column and one column per class.
func ScoreFiles(solutionPath, submissionPath string, padN int) (float64, *Matrices, error) {
	solution, err := dataset.ReadTable(solutionPath)
	if err != nil {
		return 0, nil, err
	}
	submission, err := dataset.ReadTable(submissionPath)
	if err != nil {
		return 0, nil, err
	}

	m, err := AlignTables(solution, submission)
	if err != nil {
		return 0, nil, err
	}
	score, err := PaddedCMAPFromProbabilities(m.Solution, m.Submission, padN)
	return score, m, err
}

// AlignTables drops the row_id column and orders submission columns like the
// solution's. Row ids, when present in both, must match row by row.
func AlignTables(solution, submission *dataset.Table) (*Matrices, error) {
	if len(solution.Rows) != len(submission.Rows) {
		return nil, shapeError("solution and submission row count", len(solution.Rows), len(submission.Rows))
	}

	solIDCol := solution.Column(RowIDColumn)
	subIDCol := submission.Column(RowIDColumn)

	m := &Matrices{}
	var solCols, subCols []int
	for i, name := range solution.Header {
		if i == solIDCol {
			continue
		}
		name = dataset.Field(solution.Header, i)
		j := submission.Column(name)
		if j < 0 {
			return nil, errors.Newf("submission is missing class column %q", name).
				Component("scoring").
				Category(errors.CategoryValidation).
				Build()
		}
		m.Classes = append(m.Classes, name)
		solCols = append(solCols, i)
		subCols = append(subCols, j)
	}
	if len(m.Classes) == 0 {
		return nil, errors.Newf("solution has no class columns").
			Component("scoring").
			Category(errors.CategoryValidation).
			Build()
	}

	m.Solution = make([][]float64, len(solution.Rows))
	m.Submission = make([][]float64, len(submission.Rows))
	for r := range solution.Rows {
		if solIDCol >= 0 && subIDCol >= 0 {
			want, got := dataset.Field(solution.Rows[r], solIDCol), dataset.Field(submission.Rows[r], subIDCol)
			if want != got {
				return nil, errors.Newf("row %d: solution row_id %q does not match submission row_id %q", r+1, want, got).
					Component("scoring").
					Category(errors.CategoryValidation).
					Build()
			}
		}

		var err error
		if m.Solution[r], err = parseRow(solution.Rows[r], solCols, r); err != nil {
			return nil, err
		}
		if m.Submission[r], err = parseRow(submission.Rows[r], subCols, r); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func parseRow(row []string, cols []int, r int) ([]float64, error) {
	out := make([]float64, len(cols))
	for k, c := range cols {
		v, err := strconv.ParseFloat(dataset.Field(row, c), 64)
		if err != nil {
			return nil, errors.Newf("row %d column %d: %v", r+1, c+1, err).
				Component("scoring").
				Category(errors.CategoryFileParsing).
				Build()
		}
		out[k] = v
	}
	return out, nil
}
