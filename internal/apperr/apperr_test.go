package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"churchcare/internal/apperr"
)

func TestKindOf(t *testing.T) {
	if got := apperr.KindOf(apperr.Duplicatef("record exists")); got != apperr.Duplicate {
		t.Fatalf("expected Duplicate, got %v", got)
	}
	if got := apperr.KindOf(errors.New("plain")); got != apperr.Internal {
		t.Fatalf("unclassified error must be Internal, got %v", got)
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	inner := apperr.Unauthorizedf("shepherd 5 does not own member 9")
	outer := fmt.Errorf("submit: %w", inner)
	if !apperr.IsKind(outer, apperr.Unauthorized) {
		t.Fatalf("kind lost through fmt.Errorf wrapping")
	}
}

func TestWrapNil(t *testing.T) {
	if err := apperr.Wrap(apperr.Internal, nil, "no-op"); err != nil {
		t.Fatalf("Wrap(nil) must be nil, got %v", err)
	}
}

func TestUnwrapKeepsCause(t *testing.T) {
	cause := errors.New("driver: bad connection")
	err := apperr.Internalf(cause, "load member")
	if !errors.Is(err, cause) {
		t.Fatalf("cause not reachable via errors.Is")
	}
}
