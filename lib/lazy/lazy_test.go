package lazy

import (
	"errors"
	"testing"
)

// TestCellConstructsOnce tests that the constructor runs only once
func TestCellConstructsOnce(t *testing.T) {
	calls := 0
	c := New(func() (int, error) {
		calls++
		return 42, nil
	})

	if c.Loaded() {
		t.Fatal("Cell must not be loaded before the first Get")
	}

	for i := 0; i < 3; i++ {
		v, err := c.Get()
		if err != nil || v != 42 {
			t.Fatalf("Get() = %d, %v; expected 42, nil", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("Expected 1 constructor call, got %d", calls)
	}
	if !c.Loaded() {
		t.Error("Cell should be loaded")
	}
}

// TestCellRetriesAfterError tests that a failed construction is not cached
func TestCellRetriesAfterError(t *testing.T) {
	fail := true
	c := New(func() (string, error) {
		if fail {
			return "", errors.New("not yet")
		}
		return "ok", nil
	})

	if _, err := c.Get(); err == nil {
		t.Fatal("Expected an error from the first Get")
	}
	fail = false
	if v, err := c.Get(); err != nil || v != "ok" {
		t.Fatalf("Get() = %q, %v; expected ok, nil", v, err)
	}
}

// TestCellReentrant tests that a constructor asking for its own value gets ErrReentrant
func TestCellReentrant(t *testing.T) {
	var c *Cell[int]
	var inner error
	c = New(func() (int, error) {
		_, inner = c.Get()
		return 1, nil
	})

	v, err := c.Get()
	if err != nil || v != 1 {
		t.Fatalf("Get() = %d, %v; expected 1, nil", v, err)
	}
	if !errors.Is(inner, ErrReentrant) {
		t.Errorf("Expected ErrReentrant from the nested Get, got %v", inner)
	}
}

// TestCellReset tests that Reset forces a new construction
func TestCellReset(t *testing.T) {
	calls := 0
	c := New(func() (int, error) {
		calls++
		return calls, nil
	})

	first, _ := c.Get()
	c.Reset()
	second, _ := c.Get()

	if first != 1 || second != 2 {
		t.Errorf("Expected values 1 and 2, got %d and %d", first, second)
	}
}
