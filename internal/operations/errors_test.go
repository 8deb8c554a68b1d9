package operations

import (
	"fmt"
	"testing"
)

func TestAsUnwrapsWrappedErrors(t *testing.T) {
	err := fmt.Errorf("approve: %w", NotFound(ErrClassNotFound))
	opErr, ok := As(err)
	if !ok {
		t.Fatalf("expected operation error")
	}
	if opErr.Kind != KindNotFound || opErr.Code != ErrClassNotFound {
		t.Fatalf("unexpected error %+v", opErr)
	}
	if !IsCode(err, ErrClassNotFound) {
		t.Fatalf("expected IsCode to match")
	}
	if IsCode(fmt.Errorf("boom"), ErrClassNotFound) {
		t.Fatalf("plain errors must not match")
	}
}

func TestWithMessageCopies(t *testing.T) {
	base := Conflict(ErrAlreadySubmitted)
	withMsg := base.WithMessage("second attempt")
	if base.Message != "" {
		t.Fatalf("base error mutated")
	}
	if withMsg.Error() != "already_submitted: second attempt" {
		t.Fatalf("unexpected message %q", withMsg.Error())
	}
}
