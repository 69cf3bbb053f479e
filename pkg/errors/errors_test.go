package errors

import (
	"fmt"
	"math"
	"strings"
	"testing"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "modelbench: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "modelbench: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースにテストファイルが含まれること
			formatted := fmt.Sprintf("%+v", err)
			if !strings.Contains(formatted, "errors_test.go") {
				t.Error("Expected stack trace to contain test file name")
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 10, 4, 1)

	want := "modelbench: Predict: dimension mismatch on axis 1 (features). Expected 10, got 4"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Fatal("Error should be castable to *DimensionError")
	}
	if dimErr.Expected != 10 || dimErr.Got != 4 {
		t.Errorf("unexpected fields: %+v", dimErr)
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("NuSVR", "Predict")

	want := "modelbench: NuSVR: this model is not fitted yet. Call Fit() before using Predict()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("nu", "must be in (0, 1]", 1.5)

	want := "modelbench: validation failed for parameter 'nu': must be in (0, 1] (got: 1.5)"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var valErr *ValidationError
	if !As(err, &valErr) {
		t.Fatal("Error should be castable to *ValidationError")
	}
	if valErr.ParamName != "nu" {
		t.Errorf("ParamName = %q, want nu", valErr.ParamName)
	}
}

func TestNewConvergenceWarning(t *testing.T) {
	warn := NewConvergenceWarning("SGDClassifier", 1000, "")

	want := "SGDClassifier failed to converge after 1000 iterations. Consider increasing max_iter or adjusting parameters."
	if warn.Error() != want {
		t.Errorf("Error() = %v, want %v", warn.Error(), want)
	}

	withMsg := NewConvergenceWarning("NuSVR", 50, "reached max_iter")
	if !strings.HasSuffix(withMsg.Error(), ": reached max_iter") {
		t.Errorf("unexpected message: %s", withMsg.Error())
	}
}

func TestWarnUsesHandler(t *testing.T) {
	var got []error
	SetWarningHandler(func(w error) {
		got = append(got, w)
	})
	defer SetWarningHandler(nil)

	Warn(NewUndefinedMetricWarning("oob_score", "samples never left out of bag", 0))
	Warn(NewConvergenceWarning("NuSVR", 10, ""))

	if len(got) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(got))
	}

	var metricWarn *UndefinedMetricWarning
	if !As(got[0], &metricWarn) {
		t.Errorf("first warning should be *UndefinedMetricWarning, got %T", got[0])
	}
}

func TestWarnPrefersZerologFunc(t *testing.T) {
	var handled, bridged int
	SetWarningHandler(func(error) { handled++ })
	SetZerologWarnFunc(func(error) { bridged++ })
	defer SetWarningHandler(nil)

	Warn(NewConvergenceWarning("SGDRegressor", 5, ""))

	if bridged != 1 || handled != 0 {
		t.Errorf("bridged=%d handled=%d, want 1 and 0", bridged, handled)
	}
}

func TestWrapfAndIs(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: expected %d, got %d", "Predict", 10, 5)

	if !Is(wrapped, ErrEmptyData) {
		t.Error("Expected Is(wrapped, ErrEmptyData) to be true")
	}

	expectedMsg := "in Predict: expected 10, got 5"
	if !strings.Contains(wrapped.Error(), expectedMsg) {
		t.Errorf("Expected wrapped error to contain %q", expectedMsg)
	}
}

func TestErrorChaining(t *testing.T) {
	err1 := fmt.Errorf("base error")
	err2 := Wrap(err1, "wrapped once")
	err3 := NewModelError("Operation", "failed", err2)

	if !strings.Contains(err3.Error(), "base error") {
		t.Error("Expected error chain to contain base error")
	}
	if !Is(err3, err1) {
		t.Error("Expected Is to see through ModelError.Unwrap")
	}
}

func TestCheckScalar(t *testing.T) {
	if err := CheckScalar("loss", 1.5, 0); err != nil {
		t.Errorf("finite value should pass, got %v", err)
	}

	err := CheckScalar("loss", math.NaN(), 7)
	if err == nil {
		t.Fatal("NaN should be rejected")
	}
	var numErr *NumericalInstabilityError
	if !As(err, &numErr) {
		t.Fatalf("expected *NumericalInstabilityError, got %T", err)
	}
	if numErr.Iteration != 7 {
		t.Errorf("Iteration = %d, want 7", numErr.Iteration)
	}

	if err := CheckNumericalStability("coef", []float64{1, math.Inf(1)}, 2); err == nil {
		t.Error("Inf should be rejected")
	}
}

func TestStabilizeExp(t *testing.T) {
	if v := StabilizeExp(1000); math.IsInf(v, 0) {
		t.Error("StabilizeExp should not overflow")
	}
	if v := StabilizeExp(-1000); v != 0 {
		t.Errorf("StabilizeExp(-1000) = %v, want 0", v)
	}
	if v := StabilizeExp(0); v != 1 {
		t.Errorf("StabilizeExp(0) = %v, want 1", v)
	}
}
