package xerrors

import (
	"errors"
	"testing"
)

func TestWrap(t *testing.T) {
	// nil 错误应返回 nil
	if err := Wrap(nil, "context"); err != nil {
		t.Errorf("Wrap(nil) = %v，期望 nil", err)
	}

	base := errors.New("base error")
	wrapped := Wrap(base, "context")
	if wrapped == nil {
		t.Fatal("Wrap(err) = nil，期望非 nil")
	}
	if wrapped.Error() != "context: base error" {
		t.Errorf("Wrap(err).Error() = %q，期望 %q", wrapped.Error(), "context: base error")
	}

	// 应保留错误链
	if !errors.Is(wrapped, base) {
		t.Error("errors.Is(wrapped, base) = false，期望 true")
	}
}

func TestWrapf(t *testing.T) {
	if err := Wrapf(nil, "metric %s", "x"); err != nil {
		t.Errorf("Wrapf(nil) = %v，期望 nil", err)
	}

	base := errors.New("not found")
	wrapped := Wrapf(base, "metric %s", "x")
	if wrapped.Error() != "metric x: not found" {
		t.Errorf("Wrapf(err).Error() = %q，期望 %q", wrapped.Error(), "metric x: not found")
	}
}

func TestMark(t *testing.T) {
	if err := Mark(nil, ErrNotFound); err != nil {
		t.Errorf("Mark(nil) = %v，期望 nil", err)
	}

	base := errors.New("prom: metric not found")
	marked := Mark(base, ErrNotFound)

	if marked.Error() != base.Error() {
		t.Errorf("Mark 不应修改错误消息，得到 %q", marked.Error())
	}
	if !errors.Is(marked, base) {
		t.Error("errors.Is(marked, base) = false，期望 true")
	}
	if !errors.Is(marked, ErrNotFound) {
		t.Error("errors.Is(marked, ErrNotFound) = false，期望 true")
	}
	if errors.Is(marked, ErrConflict) {
		t.Error("errors.Is(marked, ErrConflict) = true，期望 false")
	}

	// 包装后依然可以匹配类别
	wrapped := Wrapf(marked, "lookup %s", "a:b")
	if !errors.Is(wrapped, ErrNotFound) {
		t.Error("包装后的 marked 错误应仍匹配 ErrNotFound")
	}

	if got := Mark(base, nil); got != base {
		t.Error("Mark(err, nil) 应原样返回 err")
	}
}

func TestMust(t *testing.T) {
	v := Must(42, nil)
	if v != 42 {
		t.Errorf("Must(42, nil) = %d，期望 42", v)
	}

	defer func() {
		if r := recover(); r == nil {
			t.Error("Must(_, err) 未触发 panic")
		}
	}()
	Must(0, errors.New("boom"))
}

func TestCombine(t *testing.T) {
	if err := Combine(nil, nil); err != nil {
		t.Errorf("Combine(nil, nil) = %v，期望 nil", err)
	}

	e1 := errors.New("e1")
	if err := Combine(nil, e1); err != e1 {
		t.Errorf("Combine 单个错误应原样返回，得到 %v", err)
	}

	e2 := errors.New("e2")
	err := Combine(e1, nil, e2)
	var multi *MultiError
	if !errors.As(err, &multi) {
		t.Fatalf("Combine 多个错误应返回 *MultiError，得到 %T", err)
	}
	if len(multi.Errors) != 2 {
		t.Errorf("len(multi.Errors) = %d，期望 2", len(multi.Errors))
	}
	if !errors.Is(err, e2) {
		t.Error("errors.Is(err, e2) = false，期望 true")
	}
	if err.Error() != "e1 (and 1 more errors)" {
		t.Errorf("err.Error() = %q", err.Error())
	}
}
