package result

import (
	"strings"
	"testing"
)

func TestSuccess(t *testing.T) {
	r := Success(42)
	if !r.IsSuccess() {
		t.Fatal("ожидался Success")
	}
	if r.Value() != 42 {
		t.Errorf("Value = %d, ожидалось 42", r.Value())
	}
	if r.Err().Code != "" {
		t.Errorf("Success не должен содержать ошибку, получен %q", r.Err().Code)
	}
}

func TestFailure(t *testing.T) {
	e := NewError("User.InvalidRefreshTokenProvided", "An error occurred while trying to refresh token.", KindTokenInvalid)
	r := Failure[string](e)
	if r.IsSuccess() {
		t.Fatal("ожидался Failure")
	}
	if r.Value() != "" {
		t.Errorf("Failure не должен содержать значение, получено %q", r.Value())
	}
	if r.Err().Code != e.Code {
		t.Errorf("Code = %q, ожидался %q", r.Err().Code, e.Code)
	}
	if r.Err().Kind != KindTokenInvalid {
		t.Errorf("Kind = %q, ожидался %q", r.Err().Kind, KindTokenInvalid)
	}
}

func TestFailure_PanicsWithoutCode(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("ожидалась паника для ошибки без кода")
		}
	}()
	_ = Failure[int](Error{})
}

func TestError_WithTechnical(t *testing.T) {
	base := NewError("Group.GroupNotFound", "Group not found.", KindNotFound)

	enriched := base.WithTechnical("status 404: Could not find group by id")
	if !strings.HasSuffix(enriched.Description, "status 404: Could not find group by id") {
		t.Errorf("Description = %q, ожидалось техническое сообщение в конце", enriched.Description)
	}
	// Исходное значение каталога не изменилось
	if base.Description != "Group not found." {
		t.Errorf("исходная ошибка изменена: %q", base.Description)
	}

	if same := base.WithTechnical(""); same.Description != base.Description {
		t.Errorf("пустое сообщение не должно менять описание: %q", same.Description)
	}
}

func TestEmpty(t *testing.T) {
	if !Ok().IsSuccess() {
		t.Error("Ok() должен быть Success")
	}
	r := Fail(NewError("User.EmailVerificationError", "x", KindRejected))
	if r.IsSuccess() {
		t.Error("Fail() должен быть Failure")
	}
}

func TestMap(t *testing.T) {
	r := Map(Success(2), func(v int) string { return strings.Repeat("a", v) })
	if r.Value() != "aa" {
		t.Errorf("Value = %q, ожидалось aa", r.Value())
	}

	f := Map(Failure[int](NewError("X.Y", "z", KindRejected)), func(v int) string { return "never" })
	if f.IsSuccess() || f.Err().Code != "X.Y" {
		t.Errorf("Failure должен передаваться без изменений, получено %+v", f.Err())
	}
}
